package domain

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// ID is a record identifier. Upstreams emit either strings or numbers; both decode.
type ID string

// UnmarshalJSON accepts a JSON string, number or null.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = ID(n.String())
	return nil
}

// String returns the identifier text.
func (id ID) String() string { return string(id) }

// Timestamp is a point in time that tolerates the formats Django and Postgres produce.
// Values that do not parse decode to the zero time instead of failing the whole payload.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// NewTimestamp wraps t in UTC.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t.UTC()}
}

// ParseTimestamp tries the known layouts in order.
func ParseTimestamp(raw string) (Timestamp, bool) {
	raw = strings.TrimSpace(raw)
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return Timestamp{Time: parsed}, true
		}
	}
	return Timestamp{}, false
}

// UnmarshalJSON implements json.Unmarshaler.
func (ts *Timestamp) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		*ts = Timestamp{}
		return nil
	}
	parsed, _ := ParseTimestamp(raw)
	*ts = parsed
	return nil
}

// MarshalJSON writes RFC 3339 or null for the zero value.
func (ts Timestamp) MarshalJSON() ([]byte, error) {
	if ts.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(ts.UTC().Format(time.RFC3339Nano))
}

// Team is a group of users competing together.
type Team struct {
	ID          ID        `json:"_id"`
	LegacyID    ID        `json:"id,omitempty"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   Timestamp `json:"created_at"`
	MemberCount int       `json:"member_count"`
}

// Key returns the identifier used to address the team.
func (t Team) Key() string { return firstNonEmpty(t.ID, t.LegacyID) }

// User is a registered participant.
type User struct {
	ID                  ID        `json:"_id"`
	LegacyID            ID        `json:"id,omitempty"`
	Name                string    `json:"name"`
	Alias               string    `json:"alias"`
	Email               string    `json:"email"`
	TeamID              string    `json:"team_id"`
	TotalPoints         int       `json:"total_points"`
	ActivitiesCompleted int       `json:"activities_completed"`
	JoinedAt            Timestamp `json:"joined_at"`
	ProfileImage        string    `json:"profile_image"`
}

// Key returns the identifier used to address the user.
func (u User) Key() string { return firstNonEmpty(u.ID, u.LegacyID) }

// Workout is a kind of exercise and its scoring rule.
type Workout struct {
	ID            ID        `json:"_id"`
	LegacyID      ID        `json:"id,omitempty"`
	Name          string    `json:"name"`
	Icon          string    `json:"icon"`
	Unit          string    `json:"unit"`
	PointsPerUnit int       `json:"points_per_unit"`
	Description   string    `json:"description"`
	CreatedAt     Timestamp `json:"created_at"`
}

// Key returns the identifier used to address the workout.
func (w Workout) Key() string { return firstNonEmpty(w.ID, w.LegacyID) }

// Activity is one logged workout session. User and workout fields are denormalised.
type Activity struct {
	ID           ID        `json:"_id"`
	LegacyID     ID        `json:"id,omitempty"`
	UserID       string    `json:"user_id"`
	UserName     string    `json:"user_name"`
	UserAlias    string    `json:"user_alias"`
	WorkoutID    string    `json:"workout_id"`
	WorkoutName  string    `json:"workout_name"`
	WorkoutIcon  string    `json:"workout_icon"`
	Description  string    `json:"description"`
	Quantity     int       `json:"quantity"`
	Unit         string    `json:"unit"`
	PointsEarned int       `json:"points_earned"`
	CompletedAt  Timestamp `json:"completed_at"`
	TeamID       string    `json:"team_id"`
}

// Key returns the identifier used to address the activity.
func (a Activity) Key() string { return firstNonEmpty(a.ID, a.LegacyID) }

// EntryType distinguishes team rows from individual rows on the leaderboard.
type EntryType string

const (
	EntryTypeIndividual EntryType = "individual"
	EntryTypeTeam       EntryType = "team"
)

// LeaderboardEntry is one ranked row.
type LeaderboardEntry struct {
	ID              ID        `json:"_id"`
	LegacyID        ID        `json:"id,omitempty"`
	Type            EntryType `json:"type"`
	Rank            int       `json:"rank"`
	EntityID        string    `json:"entity_id"`
	EntityName      string    `json:"entity_name"`
	EntityAlias     *string   `json:"entity_alias"`
	TeamID          *string   `json:"team_id"`
	TotalPoints     int       `json:"total_points"`
	ActivitiesCount *int      `json:"activities_count"`
	MemberCount     *int      `json:"member_count"`
	UpdatedAt       Timestamp `json:"updated_at"`
}

// Key returns the identifier used to address the entry.
func (e LeaderboardEntry) Key() string { return firstNonEmpty(e.ID, e.LegacyID) }

// RankLabel renders a rank with medals for the podium and an English ordinal otherwise.
func RankLabel(rank int) string {
	switch rank {
	case 1:
		return "🥇 1st"
	case 2:
		return "🥈 2nd"
	case 3:
		return "🥉 3rd"
	}
	return Ordinal(rank)
}

// Ordinal formats n as 1st, 2nd, 3rd, 4th, 11th, 21st...
func Ordinal(n int) string {
	suffix := "th"
	switch n % 100 {
	case 11, 12, 13:
	default:
		switch n % 10 {
		case 1:
			suffix = "st"
		case 2:
			suffix = "nd"
		case 3:
			suffix = "rd"
		}
	}
	return strconv.Itoa(n) + suffix
}

func firstNonEmpty(ids ...ID) string {
	for _, id := range ids {
		if id != "" {
			return string(id)
		}
	}
	return ""
}

// UserUpdate is the editable subset of a user. Nil fields are left untouched.
type UserUpdate struct {
	Name   *string `json:"name,omitempty"`
	Alias  *string `json:"alias,omitempty"`
	Email  *string `json:"email,omitempty"`
	TeamID *string `json:"team_id,omitempty"`
}

// Apply copies the provided fields onto u.
func (p UserUpdate) Apply(u *User) {
	if p.Name != nil {
		u.Name = *p.Name
	}
	if p.Alias != nil {
		u.Alias = *p.Alias
	}
	if p.Email != nil {
		u.Email = *p.Email
	}
	if p.TeamID != nil {
		u.TeamID = *p.TeamID
	}
}

// Empty reports whether no field is set.
func (p UserUpdate) Empty() bool {
	return p.Name == nil && p.Alias == nil && p.Email == nil && p.TeamID == nil
}

// Itoa is a small helper for rendering ids built from counters.
func Itoa(prefix string, n int) ID {
	return ID(prefix + strconv.Itoa(n))
}
