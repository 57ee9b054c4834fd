// Package postgres provides the pgx-backed OctoFit repository.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/octofit/internal/domain"
	"example.com/octofit/internal/events"
	"example.com/octofit/internal/leaderboard"
	"example.com/octofit/internal/observability"
)

const uniqueViolation = "23505"

// Option configures a Repository.
type Option func(*Repository)

// WithUserEventsTopic overrides the topic recorded on user outbox rows.
func WithUserEventsTopic(topic string) Option {
	return func(r *Repository) {
		if topic != "" {
			r.userTopic = topic
		}
	}
}

// Repository provides Postgres-backed persistence for OctoFit records and outbox events.
type Repository struct {
	pool      *pgxpool.Pool
	userTopic string
	now       func() time.Time
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool, opts ...Option) *Repository {
	r := &Repository{
		pool:      pool,
		userTopic: events.UserEventsTopic,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type scanner interface {
	Scan(dest ...any) error
}

const userColumns = `user_id, name, alias, email, team_id, total_points, activities_completed, joined_at, profile_image`

func scanUser(row scanner) (domain.User, error) {
	var (
		u        domain.User
		id       string
		joinedAt time.Time
	)
	if err := row.Scan(&id, &u.Name, &u.Alias, &u.Email, &u.TeamID, &u.TotalPoints, &u.ActivitiesCompleted, &joinedAt, &u.ProfileImage); err != nil {
		return domain.User{}, err
	}
	u.ID = domain.ID(id)
	u.JoinedAt = domain.NewTimestamp(joinedAt)
	return u, nil
}

const teamColumns = `team_id, name, description, member_count, created_at`

func scanTeam(row scanner) (domain.Team, error) {
	var (
		t         domain.Team
		id        string
		createdAt time.Time
	)
	if err := row.Scan(&id, &t.Name, &t.Description, &t.MemberCount, &createdAt); err != nil {
		return domain.Team{}, err
	}
	t.ID = domain.ID(id)
	t.CreatedAt = domain.NewTimestamp(createdAt)
	return t, nil
}

const workoutColumns = `workout_id, name, icon, unit, points_per_unit, description, created_at`

func scanWorkout(row scanner) (domain.Workout, error) {
	var (
		w         domain.Workout
		id        string
		createdAt time.Time
	)
	if err := row.Scan(&id, &w.Name, &w.Icon, &w.Unit, &w.PointsPerUnit, &w.Description, &createdAt); err != nil {
		return domain.Workout{}, err
	}
	w.ID = domain.ID(id)
	w.CreatedAt = domain.NewTimestamp(createdAt)
	return w, nil
}

const activityColumns = `activity_id, user_id, user_name, user_alias, workout_id, workout_name, workout_icon, description, quantity, unit, points_earned, completed_at, team_id`

func scanActivity(row scanner) (domain.Activity, error) {
	var (
		a           domain.Activity
		id          string
		completedAt time.Time
	)
	if err := row.Scan(&id, &a.UserID, &a.UserName, &a.UserAlias, &a.WorkoutID, &a.WorkoutName, &a.WorkoutIcon, &a.Description, &a.Quantity, &a.Unit, &a.PointsEarned, &completedAt, &a.TeamID); err != nil {
		return domain.Activity{}, err
	}
	a.ID = domain.ID(id)
	a.CompletedAt = domain.NewTimestamp(completedAt)
	return a, nil
}

const leaderboardColumns = `entry_id, entry_type, rank, entity_id, entity_name, entity_alias, team_id, total_points, activities_count, member_count, updated_at`

func scanEntry(row scanner) (domain.LeaderboardEntry, error) {
	var (
		e         domain.LeaderboardEntry
		id        string
		entryType string
		updatedAt time.Time
	)
	if err := row.Scan(&id, &entryType, &e.Rank, &e.EntityID, &e.EntityName, &e.EntityAlias, &e.TeamID, &e.TotalPoints, &e.ActivitiesCount, &e.MemberCount, &updatedAt); err != nil {
		return domain.LeaderboardEntry{}, err
	}
	e.ID = domain.ID(id)
	e.Type = domain.EntryType(entryType)
	e.UpdatedAt = domain.NewTimestamp(updatedAt)
	return e, nil
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func collect[T any](ctx context.Context, q querier, scan func(scanner) (T, error), query string, args ...any) ([]T, error) {
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]T, 0)
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func getOne[T any](ctx context.Context, q querier, scan func(scanner) (T, error), query string, args ...any) (*T, error) {
	item, err := scan(q.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &item, nil
}

// whereBuilder accumulates positional predicates.
type whereBuilder struct {
	clauses []string
	args    []any
}

func (w *whereBuilder) add(clause string, arg any) {
	w.args = append(w.args, arg)
	w.clauses = append(w.clauses, strings.ReplaceAll(clause, "?", fmt.Sprintf("$%d", len(w.args))))
}

func (w *whereBuilder) search(term string, columns ...string) {
	if term == "" {
		return
	}
	w.args = append(w.args, "%"+term+"%")
	placeholder := fmt.Sprintf("$%d", len(w.args))
	parts := make([]string, 0, len(columns))
	for _, col := range columns {
		parts = append(parts, col+" ILIKE "+placeholder)
	}
	w.clauses = append(w.clauses, "("+strings.Join(parts, " OR ")+")")
}

func (w *whereBuilder) String() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.clauses, " AND ")
}

// ListUsers implements domain.Repository.
func (r *Repository) ListUsers(ctx context.Context, filter domain.UserFilter) ([]domain.User, error) {
	var where whereBuilder
	if filter.TeamID != "" {
		where.add("team_id = ?", filter.TeamID)
	}
	where.search(filter.Search, "name", "alias", "email")
	query := `SELECT ` + userColumns + ` FROM users` + where.String() + ` ORDER BY total_points DESC, user_id`
	return collect(ctx, r.pool, scanUser, query, where.args...)
}

// GetUser implements domain.Repository.
func (r *Repository) GetUser(ctx context.Context, id string) (*domain.User, error) {
	return getOne(ctx, r.pool, scanUser, `SELECT `+userColumns+` FROM users WHERE user_id=$1`, id)
}

// UpdateUser applies the update, adjusts team member counts and records a user.updated
// outbox event inside a single transaction.
func (r *Repository) UpdateUser(ctx context.Context, id string, update domain.UserUpdate) (_ *domain.User, err error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	current, err := scanUser(tx.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE user_id=$1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			tx.Rollback(ctx)
			return nil, nil
		}
		return nil, err
	}

	previousTeam := current.TeamID
	update.Apply(&current)

	_, err = tx.Exec(ctx, `UPDATE users SET name=$2, alias=$3, email=$4, team_id=$5 WHERE user_id=$1`,
		id, current.Name, current.Alias, current.Email, current.TeamID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, domain.ErrDuplicateEmail
		}
		return nil, err
	}

	if current.TeamID != previousTeam {
		if _, err = tx.Exec(ctx, `UPDATE teams SET member_count = GREATEST(member_count - 1, 0) WHERE team_id=$1`, previousTeam); err != nil {
			return nil, err
		}
		if _, err = tx.Exec(ctx, `UPDATE teams SET member_count = member_count + 1 WHERE team_id=$1`, current.TeamID); err != nil {
			return nil, err
		}
	}

	occurredAt := r.now()
	if err = r.insertOutbox(ctx, tx, id, events.UserUpdatedType, events.UserUpdated{
		UserID:         id,
		Name:           current.Name,
		Alias:          current.Alias,
		Email:          current.Email,
		TeamID:         current.TeamID,
		PreviousTeamID: previousTeam,
		TotalPoints:    current.TotalPoints,
		OccurredAt:     occurredAt,
	}); err != nil {
		return nil, err
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, err
	}
	observability.RecordUserUpdated(occurredAt)
	return &current, nil
}

func (r *Repository) insertOutbox(ctx context.Context, tx pgx.Tx, aggregateID, eventType string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	dedupeKey := aggregateID + ":" + uuid.NewString()
	const stmt = `INSERT INTO outbox (aggregate_type, aggregate_id, event_type, topic, partition_key, payload, dedupe_key)
        VALUES ($1,$2,$3,$4,$5,$6,$7)`

	_, err = tx.Exec(ctx, stmt,
		events.UserAggregateType,
		aggregateID,
		eventType,
		r.userTopic,
		aggregateID,
		body,
		dedupeKey,
	)
	return err
}

// ListTeams implements domain.Repository.
func (r *Repository) ListTeams(ctx context.Context, filter domain.TeamFilter) ([]domain.Team, error) {
	var where whereBuilder
	where.search(filter.Search, "name", "description")
	return collect(ctx, r.pool, scanTeam, `SELECT `+teamColumns+` FROM teams`+where.String()+` ORDER BY name`, where.args...)
}

// GetTeam implements domain.Repository.
func (r *Repository) GetTeam(ctx context.Context, id string) (*domain.Team, error) {
	return getOne(ctx, r.pool, scanTeam, `SELECT `+teamColumns+` FROM teams WHERE team_id=$1`, id)
}

// ListWorkouts implements domain.Repository.
func (r *Repository) ListWorkouts(ctx context.Context, filter domain.WorkoutFilter) ([]domain.Workout, error) {
	var where whereBuilder
	where.search(filter.Search, "name", "description")
	return collect(ctx, r.pool, scanWorkout, `SELECT `+workoutColumns+` FROM workouts`+where.String()+` ORDER BY name`, where.args...)
}

// GetWorkout implements domain.Repository.
func (r *Repository) GetWorkout(ctx context.Context, id string) (*domain.Workout, error) {
	return getOne(ctx, r.pool, scanWorkout, `SELECT `+workoutColumns+` FROM workouts WHERE workout_id=$1`, id)
}

// ListActivities implements domain.Repository.
func (r *Repository) ListActivities(ctx context.Context, filter domain.ActivityFilter) ([]domain.Activity, error) {
	var where whereBuilder
	if filter.UserID != "" {
		where.add("user_id = ?", filter.UserID)
	}
	if filter.WorkoutID != "" {
		where.add("workout_id = ?", filter.WorkoutID)
	}
	if filter.TeamID != "" {
		where.add("team_id = ?", filter.TeamID)
	}
	where.search(filter.Search, "user_name", "workout_name", "description")

	query := `SELECT ` + activityColumns + ` FROM activities` + where.String() + ` ORDER BY completed_at DESC, activity_id`
	args := where.args
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	return collect(ctx, r.pool, scanActivity, query, args...)
}

// GetActivity implements domain.Repository.
func (r *Repository) GetActivity(ctx context.Context, id string) (*domain.Activity, error) {
	return getOne(ctx, r.pool, scanActivity, `SELECT `+activityColumns+` FROM activities WHERE activity_id=$1`, id)
}

// ListLeaderboard implements domain.Repository.
func (r *Repository) ListLeaderboard(ctx context.Context, filter domain.LeaderboardFilter) ([]domain.LeaderboardEntry, error) {
	var where whereBuilder
	if filter.Type != "" {
		where.add("entry_type = ?", string(filter.Type))
	}
	query := `SELECT ` + leaderboardColumns + ` FROM leaderboard` + where.String() + ` ORDER BY rank, entry_type = 'team', entry_id`
	return collect(ctx, r.pool, scanEntry, query, where.args...)
}

// RebuildLeaderboard recomputes rankings from the users and teams tables and replaces
// the leaderboard rows atomically.
func (r *Repository) RebuildLeaderboard(ctx context.Context) (err error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	// Serialises concurrent rebuilds from the api and the consumer.
	if _, err = tx.Exec(ctx, `LOCK TABLE leaderboard IN EXCLUSIVE MODE`); err != nil {
		return err
	}

	users, err := collect(ctx, tx, scanUser, `SELECT `+userColumns+` FROM users`)
	if err != nil {
		return err
	}
	teams, err := collect(ctx, tx, scanTeam, `SELECT `+teamColumns+` FROM teams`)
	if err != nil {
		return err
	}

	now := r.now()
	entries := leaderboard.Compute(users, teams, now)
	if err = replaceLeaderboard(ctx, tx, entries); err != nil {
		return err
	}
	if err = tx.Commit(ctx); err != nil {
		return err
	}
	observability.RecordLeaderboardRebuilt(now)
	return nil
}

func replaceLeaderboard(ctx context.Context, tx pgx.Tx, entries []domain.LeaderboardEntry) error {
	if _, err := tx.Exec(ctx, `DELETE FROM leaderboard`); err != nil {
		return err
	}
	_, err := tx.CopyFrom(ctx,
		pgx.Identifier{"leaderboard"},
		[]string{"entry_id", "entry_type", "rank", "entity_id", "entity_name", "entity_alias", "team_id", "total_points", "activities_count", "member_count", "updated_at"},
		pgx.CopyFromSlice(len(entries), func(i int) ([]any, error) {
			e := entries[i]
			return []any{string(e.ID), string(e.Type), e.Rank, e.EntityID, e.EntityName, e.EntityAlias, e.TeamID, e.TotalPoints, e.ActivitiesCount, e.MemberCount, e.UpdatedAt.Time}, nil
		}),
	)
	return err
}
