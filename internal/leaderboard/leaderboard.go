// Package leaderboard ranks users and teams by total points.
package leaderboard

import (
	"sort"
	"time"

	"example.com/octofit/internal/domain"
)

// Compute builds the individual board followed by the team board.
// Entries are ordered by points, highest first, with ties broken by name.
func Compute(users []domain.User, teams []domain.Team, now time.Time) []domain.LeaderboardEntry {
	updatedAt := domain.NewTimestamp(now)
	entries := make([]domain.LeaderboardEntry, 0, len(users)+len(teams))
	entries = append(entries, Individuals(users, updatedAt)...)
	entries = append(entries, Teams(users, teams, updatedAt)...)
	return entries
}

// Individuals ranks users.
func Individuals(users []domain.User, updatedAt domain.Timestamp) []domain.LeaderboardEntry {
	sorted := make([]domain.User, len(users))
	copy(sorted, users)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].TotalPoints != sorted[j].TotalPoints {
			return sorted[i].TotalPoints > sorted[j].TotalPoints
		}
		return sorted[i].Name < sorted[j].Name
	})

	out := make([]domain.LeaderboardEntry, 0, len(sorted))
	for i, user := range sorted {
		rank := i + 1
		alias := user.Alias
		count := user.ActivitiesCompleted
		entry := domain.LeaderboardEntry{
			ID:              domain.Itoa("leaderboard_user_", rank),
			Type:            domain.EntryTypeIndividual,
			Rank:            rank,
			EntityID:        user.Key(),
			EntityName:      user.Name,
			EntityAlias:     &alias,
			TotalPoints:     user.TotalPoints,
			ActivitiesCount: &count,
			UpdatedAt:       updatedAt,
		}
		if user.TeamID != "" {
			teamID := user.TeamID
			entry.TeamID = &teamID
		}
		out = append(out, entry)
	}
	return out
}

type teamTotals struct {
	team    domain.Team
	points  int
	members int
}

// Teams ranks teams by the summed points of their members.
func Teams(users []domain.User, teams []domain.Team, updatedAt domain.Timestamp) []domain.LeaderboardEntry {
	totals := make([]*teamTotals, 0, len(teams))
	byID := make(map[string]*teamTotals, len(teams))
	for _, team := range teams {
		t := &teamTotals{team: team}
		totals = append(totals, t)
		byID[team.Key()] = t
	}
	for _, user := range users {
		if t, ok := byID[user.TeamID]; ok {
			t.points += user.TotalPoints
			t.members++
		}
	}

	sort.SliceStable(totals, func(i, j int) bool {
		if totals[i].points != totals[j].points {
			return totals[i].points > totals[j].points
		}
		return totals[i].team.Name < totals[j].team.Name
	})

	out := make([]domain.LeaderboardEntry, 0, len(totals))
	for i, t := range totals {
		rank := i + 1
		members := t.members
		out = append(out, domain.LeaderboardEntry{
			ID:          domain.Itoa("leaderboard_team_", rank),
			Type:        domain.EntryTypeTeam,
			Rank:        rank,
			EntityID:    t.team.Key(),
			EntityName:  t.team.Name,
			TotalPoints: t.points,
			MemberCount: &members,
			UpdatedAt:   updatedAt,
		})
	}
	return out
}
