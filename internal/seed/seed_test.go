package seed

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"example.com/octofit/internal/domain"
)

func TestLoadFixtures(t *testing.T) {
	f, err := LoadFixtures()
	require.NoError(t, err)
	require.Len(t, f.Teams, 2)
	require.Len(t, f.Users, 12)
	require.Len(t, f.Workouts, 7)
	require.Equal(t, "Running", f.Workouts[0].Name)
	require.Equal(t, 10, f.Workouts[0].PointsPerUnit)
}

func TestGenerateIsConsistent(t *testing.T) {
	now := time.Date(2025, time.June, 1, 9, 0, 0, 0, time.UTC)
	ds, err := Generate(Options{Seed: 42, Now: now})
	require.NoError(t, err)

	require.Len(t, ds.Activities, ActivityCount)
	require.Len(t, ds.Leaderboard, len(ds.Users)+len(ds.Teams))

	workouts := make(map[string]domain.Workout)
	for _, w := range ds.Workouts {
		workouts[w.Key()] = w
	}
	points := make(map[string]int)
	counts := make(map[string]int)
	for _, a := range ds.Activities {
		w := workouts[a.WorkoutID]
		require.Equal(t, a.Quantity*w.PointsPerUnit, a.PointsEarned)
		require.False(t, a.CompletedAt.After(now))
		points[a.UserID] += a.PointsEarned
		counts[a.UserID]++
	}

	members := make(map[string]int)
	for _, u := range ds.Users {
		require.Equal(t, points[u.Key()], u.TotalPoints, u.Name)
		require.Equal(t, counts[u.Key()], u.ActivitiesCompleted, u.Name)
		members[u.TeamID]++
	}
	for _, team := range ds.Teams {
		require.Equal(t, members[team.Key()], team.MemberCount)
	}
	require.Equal(t, domain.ID("user_1"), ds.Users[0].ID)
	require.Equal(t, "Tony Stark", ds.Users[0].Name)
}

func TestGenerateIsDeterministic(t *testing.T) {
	now := time.Date(2025, time.June, 1, 9, 0, 0, 0, time.UTC)
	a, err := Generate(Options{Seed: 7, Now: now})
	require.NoError(t, err)
	b, err := Generate(Options{Seed: 7, Now: now})
	require.NoError(t, err)

	require.Empty(t, cmp.Diff(a.Activities, b.Activities))
	require.Empty(t, cmp.Diff(a.Users, b.Users))
}
