//go:build integration

package postgres

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	postgrescontainer "github.com/testcontainers/testcontainers-go/modules/postgres"

	"example.com/octofit/internal/domain"
	"example.com/octofit/internal/events"
	"example.com/octofit/internal/seed"
)

func TestRepositorySeedAndRead(t *testing.T) {
	ctx := context.Background()
	repo, _, cleanup := setupRepository(t, ctx)
	defer cleanup()

	users, err := repo.ListUsers(ctx, domain.UserFilter{})
	require.NoError(t, err)
	require.Len(t, users, 12)
	for i := 1; i < len(users); i++ {
		require.GreaterOrEqual(t, users[i-1].TotalPoints, users[i].TotalPoints)
	}

	teams, err := repo.ListTeams(ctx, domain.TeamFilter{})
	require.NoError(t, err)
	require.Equal(t, "Team DC", teams[0].Name)

	recent, err := repo.ListActivities(ctx, domain.ActivityFilter{Limit: domain.RecentActivityLimit})
	require.NoError(t, err)
	require.Len(t, recent, domain.RecentActivityLimit)

	board, err := repo.ListLeaderboard(ctx, domain.LeaderboardFilter{Type: domain.EntryTypeTeam})
	require.NoError(t, err)
	require.Len(t, board, 2)
	require.NotNil(t, board[0].MemberCount)
	require.Nil(t, board[0].EntityAlias)

	found, err := repo.ListUsers(ctx, domain.UserFilter{Search: "lantern"})
	require.NoError(t, err)
	require.Len(t, found, 1)
}

func TestRepositoryUpdateUserWritesOutbox(t *testing.T) {
	ctx := context.Background()
	repo, pool, cleanup := setupRepository(t, ctx)
	defer cleanup()

	team := "team_dc"
	alias := "Iron Patriot"
	updated, err := repo.UpdateUser(ctx, "user_1", domain.UserUpdate{Alias: &alias, TeamID: &team})
	require.NoError(t, err)
	require.Equal(t, "Iron Patriot", updated.Alias)

	dc, err := repo.GetTeam(ctx, "team_dc")
	require.NoError(t, err)
	require.Equal(t, 7, dc.MemberCount)

	var (
		eventType, topic, key string
		payload               []byte
	)
	require.NoError(t, pool.QueryRow(ctx,
		`SELECT event_type, topic, partition_key, payload FROM outbox WHERE aggregate_id = $1`, "user_1",
	).Scan(&eventType, &topic, &key, &payload))
	require.Equal(t, events.UserUpdatedType, eventType)
	require.Equal(t, events.UserEventsTopic, topic)
	require.Equal(t, "user_1", key)

	var evt events.UserUpdated
	require.NoError(t, json.Unmarshal(payload, &evt))
	require.Equal(t, "team_marvel", evt.PreviousTeamID)
	require.True(t, evt.TeamChanged())

	require.NoError(t, repo.RebuildLeaderboard(ctx))
	board, err := repo.ListLeaderboard(ctx, domain.LeaderboardFilter{Type: domain.EntryTypeTeam})
	require.NoError(t, err)
	for _, e := range board {
		if e.EntityID == "team_dc" {
			require.Equal(t, 7, *e.MemberCount)
		}
	}
}

func TestRepositoryUpdateUserDuplicateEmail(t *testing.T) {
	ctx := context.Background()
	repo, _, cleanup := setupRepository(t, ctx)
	defer cleanup()

	email := "BATMAN@dc.com"
	_, err := repo.UpdateUser(ctx, "user_1", domain.UserUpdate{Email: &email})
	require.ErrorIs(t, err, domain.ErrDuplicateEmail)

	missing, err := repo.UpdateUser(ctx, "user_404", domain.UserUpdate{Email: &email})
	require.NoError(t, err)
	require.Nil(t, missing)
}

func setupRepository(t *testing.T, ctx context.Context) (*Repository, *pgxpool.Pool, func()) {
	t.Helper()

	pg, err := postgrescontainer.RunContainer(ctx,
		postgrescontainer.WithDatabase("fitness"),
		postgrescontainer.WithUsername("octofit"),
		postgrescontainer.WithPassword("octofit"),
	)
	require.NoError(t, err)

	connStr, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	require.NoError(t, waitForDatabase(ctx, connStr))
	require.NoError(t, Migrate(connStr))

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)

	repo := NewRepository(pool)
	ds, err := seed.Generate(seed.Options{Seed: 11, Now: time.Date(2025, time.May, 1, 0, 0, 0, 0, time.UTC)})
	require.NoError(t, err)
	require.NoError(t, repo.Seed(ctx, ds))

	cleanup := func() {
		pool.Close()
		_ = pg.Terminate(ctx)
	}
	return repo, pool, cleanup
}

func waitForDatabase(ctx context.Context, connStr string) error {
	deadline := time.Now().Add(30 * time.Second)
	for {
		pool, err := pgxpool.New(ctx, connStr)
		if err == nil {
			err = pool.Ping(ctx)
			pool.Close()
			if err == nil {
				return nil
			}
		}
		if time.Now().After(deadline) {
			return err
		}
		time.Sleep(time.Second)
	}
}
