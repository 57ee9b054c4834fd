// Package memory provides an in-process repository for local development and tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"example.com/octofit/internal/domain"
	"example.com/octofit/internal/leaderboard"
	"example.com/octofit/internal/seed"
)

// Repository stores OctoFit records in memory. Every read returns copies.
type Repository struct {
	mu          sync.RWMutex
	teams       []domain.Team
	users       []domain.User
	workouts    []domain.Workout
	activities  []domain.Activity
	leaderboard []domain.LeaderboardEntry
	now         func() time.Time
}

// NewRepository constructs a repository holding the supplied dataset.
func NewRepository(ds *seed.Dataset) *Repository {
	r := &Repository{now: func() time.Time { return time.Now().UTC() }}
	if ds != nil {
		r.teams = append(r.teams, ds.Teams...)
		r.users = append(r.users, ds.Users...)
		r.workouts = append(r.workouts, ds.Workouts...)
		r.activities = append(r.activities, ds.Activities...)
		r.leaderboard = append(r.leaderboard, ds.Leaderboard...)
	}
	return r
}

// NewSeededRepository constructs a repository populated with the demo dataset.
func NewSeededRepository() (*Repository, error) {
	ds, err := seed.Generate(seed.Options{Seed: 1})
	if err != nil {
		return nil, err
	}
	return NewRepository(ds), nil
}

func matches(search string, fields ...string) bool {
	if search == "" {
		return true
	}
	needle := strings.ToLower(search)
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), needle) {
			return true
		}
	}
	return false
}

// ListUsers implements domain.Repository.
func (r *Repository) ListUsers(ctx context.Context, filter domain.UserFilter) ([]domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.User, 0, len(r.users))
	for _, u := range r.users {
		if filter.TeamID != "" && u.TeamID != filter.TeamID {
			continue
		}
		if !matches(filter.Search, u.Name, u.Alias, u.Email) {
			continue
		}
		out = append(out, u)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].TotalPoints > out[j].TotalPoints })
	return out, nil
}

// GetUser implements domain.Repository.
func (r *Repository) GetUser(ctx context.Context, id string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if i := r.userIndex(id); i >= 0 {
		u := r.users[i]
		return &u, nil
	}
	return nil, nil
}

func (r *Repository) userIndex(id string) int {
	for i, u := range r.users {
		if u.Key() == id {
			return i
		}
	}
	return -1
}

func (r *Repository) teamIndex(id string) int {
	for i, t := range r.teams {
		if t.Key() == id {
			return i
		}
	}
	return -1
}

// UpdateUser implements domain.Repository. The leaderboard is rebuilt before the lock is released.
func (r *Repository) UpdateUser(ctx context.Context, id string, update domain.UserUpdate) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.userIndex(id)
	if i < 0 {
		return nil, nil
	}
	if update.Email != nil {
		for j, other := range r.users {
			if j != i && strings.EqualFold(other.Email, *update.Email) {
				return nil, domain.ErrDuplicateEmail
			}
		}
	}

	previousTeam := r.users[i].TeamID
	update.Apply(&r.users[i])
	if current := r.users[i].TeamID; current != previousTeam {
		if t := r.teamIndex(previousTeam); t >= 0 && r.teams[t].MemberCount > 0 {
			r.teams[t].MemberCount--
		}
		if t := r.teamIndex(current); t >= 0 {
			r.teams[t].MemberCount++
		}
	}

	r.leaderboard = leaderboard.Compute(r.users, r.teams, r.now())
	u := r.users[i]
	return &u, nil
}

// ListTeams implements domain.Repository.
func (r *Repository) ListTeams(ctx context.Context, filter domain.TeamFilter) ([]domain.Team, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Team, 0, len(r.teams))
	for _, t := range r.teams {
		if matches(filter.Search, t.Name, t.Description) {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// GetTeam implements domain.Repository.
func (r *Repository) GetTeam(ctx context.Context, id string) (*domain.Team, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if i := r.teamIndex(id); i >= 0 {
		t := r.teams[i]
		return &t, nil
	}
	return nil, nil
}

// ListWorkouts implements domain.Repository.
func (r *Repository) ListWorkouts(ctx context.Context, filter domain.WorkoutFilter) ([]domain.Workout, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Workout, 0, len(r.workouts))
	for _, w := range r.workouts {
		if matches(filter.Search, w.Name, w.Description) {
			out = append(out, w)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// GetWorkout implements domain.Repository.
func (r *Repository) GetWorkout(ctx context.Context, id string) (*domain.Workout, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, w := range r.workouts {
		if w.Key() == id {
			return &w, nil
		}
	}
	return nil, nil
}

// ListActivities implements domain.Repository.
func (r *Repository) ListActivities(ctx context.Context, filter domain.ActivityFilter) ([]domain.Activity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Activity, 0, len(r.activities))
	for _, a := range r.activities {
		if filter.UserID != "" && a.UserID != filter.UserID {
			continue
		}
		if filter.WorkoutID != "" && a.WorkoutID != filter.WorkoutID {
			continue
		}
		if filter.TeamID != "" && a.TeamID != filter.TeamID {
			continue
		}
		if !matches(filter.Search, a.UserName, a.WorkoutName, a.Description) {
			continue
		}
		out = append(out, a)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CompletedAt.After(out[j].CompletedAt.Time) })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// GetActivity implements domain.Repository.
func (r *Repository) GetActivity(ctx context.Context, id string) (*domain.Activity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, a := range r.activities {
		if a.Key() == id {
			return &a, nil
		}
	}
	return nil, nil
}

// ListLeaderboard implements domain.Repository.
func (r *Repository) ListLeaderboard(ctx context.Context, filter domain.LeaderboardFilter) ([]domain.LeaderboardEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.LeaderboardEntry, 0, len(r.leaderboard))
	for _, e := range r.leaderboard {
		if filter.Type != "" && e.Type != filter.Type {
			continue
		}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Rank < out[j].Rank })
	return out, nil
}

// RebuildLeaderboard implements domain.Repository.
func (r *Repository) RebuildLeaderboard(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leaderboard = leaderboard.Compute(r.users, r.teams, r.now())
	return nil
}
