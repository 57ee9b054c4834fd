// Package domain defines the OctoFit records and the rules for reading and editing them.
package domain

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"sort"
	"strings"
)

var (
	// ErrUserNotFound is returned when a user cannot be located.
	ErrUserNotFound = errors.New("user not found")
	// ErrTeamNotFound is returned when a team cannot be located.
	ErrTeamNotFound = errors.New("team not found")
	// ErrWorkoutNotFound is returned when a workout cannot be located.
	ErrWorkoutNotFound = errors.New("workout not found")
	// ErrActivityNotFound is returned when an activity cannot be located.
	ErrActivityNotFound = errors.New("activity not found")
	// ErrDuplicateEmail is returned by repositories when the email is already taken.
	ErrDuplicateEmail = errors.New("user with this email already exists")
)

// ValidationError carries per-field messages for a rejected update.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// UserFilter narrows user listings.
type UserFilter struct {
	TeamID string
	Search string
}

// TeamFilter narrows team listings.
type TeamFilter struct {
	Search string
}

// WorkoutFilter narrows workout listings.
type WorkoutFilter struct {
	Search string
}

// ActivityFilter narrows activity listings.
type ActivityFilter struct {
	UserID    string
	WorkoutID string
	TeamID    string
	Search    string
	Limit     int
}

// LeaderboardFilter narrows leaderboard listings. An empty Type returns both boards.
type LeaderboardFilter struct {
	Type EntryType
}

// Repository captures persistence operations.
type Repository interface {
	ListUsers(ctx context.Context, filter UserFilter) ([]User, error)
	GetUser(ctx context.Context, id string) (*User, error)
	UpdateUser(ctx context.Context, id string, update UserUpdate) (*User, error)
	ListTeams(ctx context.Context, filter TeamFilter) ([]Team, error)
	GetTeam(ctx context.Context, id string) (*Team, error)
	ListWorkouts(ctx context.Context, filter WorkoutFilter) ([]Workout, error)
	GetWorkout(ctx context.Context, id string) (*Workout, error)
	ListActivities(ctx context.Context, filter ActivityFilter) ([]Activity, error)
	GetActivity(ctx context.Context, id string) (*Activity, error)
	ListLeaderboard(ctx context.Context, filter LeaderboardFilter) ([]LeaderboardEntry, error)
	RebuildLeaderboard(ctx context.Context) error
}

// Option configures a Service.
type Option func(*Service)

// WithInlineLeaderboard rebuilds the leaderboard synchronously after each user update.
// Deployments without an event consumer need this to keep rankings current.
func WithInlineLeaderboard() Option {
	return func(s *Service) { s.inlineLeaderboard = true }
}

// Service orchestrates OctoFit reads and user edits.
type Service struct {
	repo              Repository
	inlineLeaderboard bool
}

// NewService constructs a Service.
func NewService(repo Repository, opts ...Option) *Service {
	s := &Service{repo: repo}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RecentActivityLimit bounds the recent activities feed.
const RecentActivityLimit = 20

// ListUsers returns users ordered by total points, highest first.
func (s *Service) ListUsers(ctx context.Context, filter UserFilter) ([]User, error) {
	return s.repo.ListUsers(ctx, filter)
}

// GetUser fetches a user by ID.
func (s *Service) GetUser(ctx context.Context, id string) (*User, error) {
	user, err := s.repo.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// UpdateUser validates and applies a partial update of the editable user fields.
func (s *Service) UpdateUser(ctx context.Context, id string, update UserUpdate) (*User, error) {
	if _, err := s.GetUser(ctx, id); err != nil {
		return nil, err
	}

	normalized, err := s.validateUpdate(ctx, update)
	if err != nil {
		return nil, err
	}

	updated, err := s.repo.UpdateUser(ctx, id, normalized)
	if err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			return nil, &ValidationError{Fields: map[string]string{"email": ErrDuplicateEmail.Error()}}
		}
		return nil, err
	}
	if updated == nil {
		return nil, ErrUserNotFound
	}

	if s.inlineLeaderboard {
		if err := s.repo.RebuildLeaderboard(ctx); err != nil {
			return nil, fmt.Errorf("rebuild leaderboard: %w", err)
		}
	}
	return updated, nil
}

func (s *Service) validateUpdate(ctx context.Context, update UserUpdate) (UserUpdate, error) {
	fields := make(map[string]string)
	out := UserUpdate{}

	requireText := func(name string, value *string) *string {
		if value == nil {
			return nil
		}
		trimmed := strings.TrimSpace(*value)
		if trimmed == "" {
			fields[name] = "this field may not be blank"
			return nil
		}
		return &trimmed
	}

	out.Name = requireText("name", update.Name)
	out.Alias = requireText("alias", update.Alias)
	out.Email = requireText("email", update.Email)
	if out.Email != nil {
		if _, err := mail.ParseAddress(*out.Email); err != nil {
			fields["email"] = "enter a valid email address"
			out.Email = nil
		}
	}

	if update.TeamID != nil {
		teamID := strings.TrimSpace(*update.TeamID)
		if teamID != "" {
			team, err := s.repo.GetTeam(ctx, teamID)
			if err != nil {
				return UserUpdate{}, err
			}
			if team == nil {
				fields["team_id"] = fmt.Sprintf("team %q does not exist", teamID)
			}
		}
		out.TeamID = &teamID
	}

	if len(fields) > 0 {
		return UserUpdate{}, &ValidationError{Fields: fields}
	}
	if update.Empty() {
		return UserUpdate{}, &ValidationError{Fields: map[string]string{"non_field_errors": "no editable fields supplied"}}
	}
	return out, nil
}

// UserActivities lists activities logged by one user.
func (s *Service) UserActivities(ctx context.Context, userID string) ([]Activity, error) {
	if _, err := s.GetUser(ctx, userID); err != nil {
		return nil, err
	}
	return s.repo.ListActivities(ctx, ActivityFilter{UserID: userID})
}

// ListTeams returns teams ordered by name.
func (s *Service) ListTeams(ctx context.Context, filter TeamFilter) ([]Team, error) {
	return s.repo.ListTeams(ctx, filter)
}

// GetTeam fetches a team by ID.
func (s *Service) GetTeam(ctx context.Context, id string) (*Team, error) {
	team, err := s.repo.GetTeam(ctx, id)
	if err != nil {
		return nil, err
	}
	if team == nil {
		return nil, ErrTeamNotFound
	}
	return team, nil
}

// TeamMembers lists the users assigned to a team.
func (s *Service) TeamMembers(ctx context.Context, teamID string) ([]User, error) {
	if _, err := s.GetTeam(ctx, teamID); err != nil {
		return nil, err
	}
	return s.repo.ListUsers(ctx, UserFilter{TeamID: teamID})
}

// TeamActivities lists activities credited to a team.
func (s *Service) TeamActivities(ctx context.Context, teamID string) ([]Activity, error) {
	if _, err := s.GetTeam(ctx, teamID); err != nil {
		return nil, err
	}
	return s.repo.ListActivities(ctx, ActivityFilter{TeamID: teamID})
}

// ListWorkouts returns workouts ordered by name.
func (s *Service) ListWorkouts(ctx context.Context, filter WorkoutFilter) ([]Workout, error) {
	return s.repo.ListWorkouts(ctx, filter)
}

// GetWorkout fetches a workout by ID.
func (s *Service) GetWorkout(ctx context.Context, id string) (*Workout, error) {
	workout, err := s.repo.GetWorkout(ctx, id)
	if err != nil {
		return nil, err
	}
	if workout == nil {
		return nil, ErrWorkoutNotFound
	}
	return workout, nil
}

// ListActivities returns activities, most recent first.
func (s *Service) ListActivities(ctx context.Context, filter ActivityFilter) ([]Activity, error) {
	return s.repo.ListActivities(ctx, filter)
}

// RecentActivities returns the latest activities across all users.
func (s *Service) RecentActivities(ctx context.Context) ([]Activity, error) {
	return s.repo.ListActivities(ctx, ActivityFilter{Limit: RecentActivityLimit})
}

// GetActivity fetches an activity by ID.
func (s *Service) GetActivity(ctx context.Context, id string) (*Activity, error) {
	activity, err := s.repo.GetActivity(ctx, id)
	if err != nil {
		return nil, err
	}
	if activity == nil {
		return nil, ErrActivityNotFound
	}
	return activity, nil
}

// Leaderboard returns ranked entries, optionally restricted to one board.
func (s *Service) Leaderboard(ctx context.Context, filter LeaderboardFilter) ([]LeaderboardEntry, error) {
	return s.repo.ListLeaderboard(ctx, filter)
}

// RebuildLeaderboard recomputes rankings from current user data.
func (s *Service) RebuildLeaderboard(ctx context.Context) error {
	return s.repo.RebuildLeaderboard(ctx)
}
