// Package seed produces the demo dataset used by the in-memory store and SEED_DATABASE.
package seed

import (
	_ "embed"
	"fmt"
	"math/rand/v2"
	"time"

	"gopkg.in/yaml.v3"

	"example.com/octofit/internal/domain"
	"example.com/octofit/internal/leaderboard"
)

//go:embed fixtures.yaml
var fixturesYAML []byte

// ActivityCount is the number of generated activities.
const ActivityCount = 100

// Fixtures is the static part of the dataset.
type Fixtures struct {
	Teams []struct {
		ID          string `yaml:"id"`
		Name        string `yaml:"name"`
		Description string `yaml:"description"`
	} `yaml:"teams"`
	Users []struct {
		Name  string `yaml:"name"`
		Alias string `yaml:"alias"`
		Email string `yaml:"email"`
		Team  string `yaml:"team"`
	} `yaml:"users"`
	Workouts []struct {
		Name          string   `yaml:"name"`
		Icon          string   `yaml:"icon"`
		Unit          string   `yaml:"unit"`
		PointsPerUnit int      `yaml:"points_per_unit"`
		Sessions      []string `yaml:"sessions"`
	} `yaml:"workouts"`
}

// LoadFixtures decodes the embedded fixtures.
func LoadFixtures() (*Fixtures, error) {
	var f Fixtures
	if err := yaml.Unmarshal(fixturesYAML, &f); err != nil {
		return nil, fmt.Errorf("decode fixtures: %w", err)
	}
	return &f, nil
}

// Dataset is a complete, internally consistent set of records.
type Dataset struct {
	Teams       []domain.Team
	Users       []domain.User
	Workouts    []domain.Workout
	Activities  []domain.Activity
	Leaderboard []domain.LeaderboardEntry
}

// Options tune generation.
type Options struct {
	// Seed makes the generated activities reproducible.
	Seed uint64
	// Now anchors every generated timestamp.
	Now time.Time
}

// Generate builds the dataset. The same options always yield the same records.
func Generate(opts Options) (*Dataset, error) {
	fixtures, err := LoadFixtures()
	if err != nil {
		return nil, err
	}
	now := opts.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	rng := rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15))

	ds := &Dataset{}
	teamIndex := make(map[string]int, len(fixtures.Teams))
	for i, t := range fixtures.Teams {
		ds.Teams = append(ds.Teams, domain.Team{
			ID:          domain.ID(t.ID),
			Name:        t.Name,
			Description: t.Description,
			CreatedAt:   domain.NewTimestamp(now),
		})
		teamIndex[t.ID] = i
	}

	for i, u := range fixtures.Users {
		ds.Users = append(ds.Users, domain.User{
			ID:           domain.Itoa("user_", i+1),
			Name:         u.Name,
			Alias:        u.Alias,
			Email:        u.Email,
			TeamID:       u.Team,
			JoinedAt:     domain.NewTimestamp(now.Add(-time.Duration(1+rng.IntN(90)) * 24 * time.Hour)),
			ProfileImage: "https://api.dicebear.com/7.x/avataaars/svg?seed=" + u.Alias,
		})
		if idx, ok := teamIndex[u.Team]; ok {
			ds.Teams[idx].MemberCount++
		}
	}

	for i, w := range fixtures.Workouts {
		ds.Workouts = append(ds.Workouts, domain.Workout{
			ID:            domain.Itoa("workout_", i+1),
			Name:          w.Name,
			Icon:          w.Icon,
			Unit:          w.Unit,
			PointsPerUnit: w.PointsPerUnit,
			Description:   w.Name + " exercise",
			CreatedAt:     domain.NewTimestamp(now),
		})
	}

	if len(ds.Users) == 0 || len(ds.Workouts) == 0 {
		return nil, fmt.Errorf("fixtures need at least one user and one workout")
	}

	for i := 1; i <= ActivityCount; i++ {
		ui := rng.IntN(len(ds.Users))
		wi := rng.IntN(len(ds.Workouts))
		user := &ds.Users[ui]
		workout := ds.Workouts[wi]
		sessions := fixtures.Workouts[wi].Sessions
		quantity := 1 + rng.IntN(50)
		points := quantity * workout.PointsPerUnit

		description := workout.Name
		if len(sessions) > 0 {
			description = sessions[rng.IntN(len(sessions))]
		}
		age := time.Duration(rng.IntN(31))*24*time.Hour + time.Duration(rng.IntN(24))*time.Hour

		ds.Activities = append(ds.Activities, domain.Activity{
			ID:           domain.Itoa("activity_", i),
			UserID:       user.Key(),
			UserName:     user.Name,
			UserAlias:    user.Alias,
			WorkoutID:    workout.Key(),
			WorkoutName:  workout.Name,
			WorkoutIcon:  workout.Icon,
			Description:  description,
			Quantity:     quantity,
			Unit:         workout.Unit,
			PointsEarned: points,
			CompletedAt:  domain.NewTimestamp(now.Add(-age)),
			TeamID:       user.TeamID,
		})
		user.TotalPoints += points
		user.ActivitiesCompleted++
	}

	ds.Leaderboard = leaderboard.Compute(ds.Users, ds.Teams, now)
	return ds, nil
}
