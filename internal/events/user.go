// Package events defines the payloads exchanged between the api and the consumer.
package events

import "time"

// Event types and routing metadata for user changes.
const (
	UserUpdatedType   = "user.updated"
	UserAggregateType = "user"
	UserEventsTopic   = "user_events"
)

// UserUpdated is emitted after an edit to a user's name, alias, email or team.
type UserUpdated struct {
	UserID         string    `json:"user_id"`
	Name           string    `json:"name"`
	Alias          string    `json:"alias"`
	Email          string    `json:"email"`
	TeamID         string    `json:"team_id"`
	PreviousTeamID string    `json:"previous_team_id,omitempty"`
	TotalPoints    int       `json:"total_points"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// TeamChanged reports whether the edit moved the user between teams.
func (e UserUpdated) TeamChanged() bool {
	return e.TeamID != e.PreviousTeamID
}
