package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"example.com/octofit/internal/client"
	"example.com/octofit/internal/domain"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	podiumStyle = cellStyle.Foreground(lipgloss.Color("214"))
	mutedStyle  = lipgloss.NewStyle().Faint(true)
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
)

func (a *app) render(title, summary string, headers []string, rows [][]string, highlight func(row int) bool) {
	fmt.Fprintln(a.out, titleStyle.Render(title))
	fmt.Fprintln(a.out, mutedStyle.Render(summary))

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case highlight != nil && highlight(row):
				return podiumStyle
			}
			return cellStyle
		})
	fmt.Fprintln(a.out, t.Render())
}

func (a *app) empty(title, message string) {
	fmt.Fprintln(a.out, titleStyle.Render(title))
	fmt.Fprintln(a.out, mutedStyle.Render(message))
}

func date(ts domain.Timestamp) string {
	if ts.IsZero() {
		return "-"
	}
	return ts.UTC().Format("1/2/2006")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func (a *app) printTeams(ctx context.Context) error {
	teams, err := a.api.ListTeams(ctx)
	if err != nil {
		return err
	}
	if len(teams) == 0 {
		a.empty("🏆 Teams", "No teams found")
		return nil
	}
	rows := make([][]string, 0, len(teams))
	for _, t := range teams {
		description := t.Description
		if description == "" {
			description = "No description available"
		}
		rows = append(rows, []string{"👥 " + t.Name, description, strconv.Itoa(t.MemberCount), date(t.CreatedAt)})
	}
	a.render("🏆 Teams", fmt.Sprintf("Total Teams: %d", len(teams)), []string{"Team", "Description", "Members", "Created"}, rows, nil)
	return nil
}

func (a *app) printWorkouts(ctx context.Context) error {
	workouts, err := a.api.ListWorkouts(ctx)
	if err != nil {
		return err
	}
	if len(workouts) == 0 {
		a.empty("💪 Workout Activities", "No workout activities available")
		return nil
	}
	rows := make([][]string, 0, len(workouts))
	for _, w := range workouts {
		description := w.Description
		if description == "" {
			description = "No description available"
		}
		rows = append(rows, []string{w.Icon + " " + w.Name, description, w.Unit, strconv.Itoa(w.PointsPerUnit), date(w.CreatedAt)})
	}
	a.render("💪 Workout Activities", fmt.Sprintf("Available Workouts: %d", len(workouts)),
		[]string{"Workout", "Description", "Unit", "Points per unit", "Created"}, rows, nil)
	return nil
}

func (a *app) printActivities(ctx context.Context) error {
	activities, err := a.api.ListActivities(ctx)
	if err != nil {
		return err
	}
	if len(activities) == 0 {
		a.empty("🏃 Activities", "No activities found")
		return nil
	}
	rows := make([][]string, 0, len(activities))
	for _, act := range activities {
		rows = append(rows, []string{
			act.UserName,
			act.UserAlias,
			act.WorkoutIcon + " " + act.WorkoutName,
			fmt.Sprintf("%d %s", act.Quantity, act.Unit),
			strconv.Itoa(act.PointsEarned),
			date(act.CompletedAt),
		})
	}
	a.render("🏃 Activities", fmt.Sprintf("Recent Activities: %d Total", len(activities)),
		[]string{"User", "Username", "Workout", "Quantity", "Points Earned", "Date"}, rows, nil)
	return nil
}

func (a *app) printLeaderboard(ctx context.Context) error {
	entries, err := a.api.ListLeaderboard(ctx)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		a.empty("🏆 Leaderboard", "No leaderboard data available")
		return nil
	}
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		kind := "👤 Individual"
		if e.Type == domain.EntryTypeTeam {
			kind = "👥 Team"
		}
		alias := "-"
		if e.EntityAlias != nil {
			alias = orDash(*e.EntityAlias)
		}
		count := "-"
		if e.ActivitiesCount != nil && *e.ActivitiesCount != 0 {
			count = strconv.Itoa(*e.ActivitiesCount)
		}
		rows = append(rows, []string{domain.RankLabel(e.Rank), kind, e.EntityName, alias, strconv.Itoa(e.TotalPoints), count})
	}
	a.render("🏆 Leaderboard", fmt.Sprintf("Top Performers: %d Competitors", len(entries)),
		[]string{"Rank", "Type", "Name", "Alias/Username", "Total Points", "Activities"}, rows,
		func(row int) bool { return entries[row].Rank > 0 && entries[row].Rank <= 3 })
	return nil
}

func (a *app) printUsers(ctx context.Context) error {
	users, err := a.api.ListUsers(ctx)
	if err != nil {
		return err
	}
	if len(users) == 0 {
		a.empty("👥 Users", "No users found")
		return nil
	}
	a.render("👥 Users", fmt.Sprintf("Registered Users: %d Total", len(users)), userHeaders, userRows(users), nil)
	return nil
}

var userHeaders = []string{"ID", "Name", "Username (Alias)", "Email", "Team", "Total Points", "Activities"}

func userRows(users []domain.User) [][]string {
	rows := make([][]string, 0, len(users))
	for _, u := range users {
		team := u.TeamID
		if team == "" {
			team = "No team"
		}
		rows = append(rows, []string{u.Key(), u.Name, u.Alias, u.Email, team, strconv.Itoa(u.TotalPoints), strconv.Itoa(u.ActivitiesCompleted)})
	}
	return rows
}

func (a *app) usersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Show users",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.printUsers(cmd.Context())
		},
	}

	var name, alias, email, team string
	edit := &cobra.Command{
		Use:   "edit ID",
		Short: "Edit a user's name, alias, email or team",
		Long: `Fetches the user, overrides the fields given as flags and sends all four
editable fields back. Pass --team "" to clear the team.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			current, err := a.api.GetUser(ctx, args[0])
			if err != nil {
				return err
			}
			form := client.FormFromUser(*current)
			flags := cmd.Flags()
			if flags.Changed("name") {
				form.Name = name
			}
			if flags.Changed("alias") {
				form.Alias = alias
			}
			if flags.Changed("email") {
				form.Email = email
			}
			if flags.Changed("team") {
				form.TeamID = team
			}

			updated, err := a.api.UpdateUser(ctx, args[0], form)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, okStyle.Render("User updated successfully!"))
			a.render("👥 Users", "", userHeaders, userRows([]domain.User{*updated}), nil)
			return nil
		},
	}
	edit.Flags().StringVar(&name, "name", "", "full name")
	edit.Flags().StringVar(&alias, "alias", "", "username (alias)")
	edit.Flags().StringVar(&email, "email", "", "email address")
	edit.Flags().StringVar(&team, "team", "", "team id")

	cmd.AddCommand(edit)
	return cmd
}
