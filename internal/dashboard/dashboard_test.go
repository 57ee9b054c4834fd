package dashboard

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"example.com/octofit/internal/client"
	"example.com/octofit/internal/domain"
)

type fakeAPI struct {
	mu         sync.Mutex
	users      []domain.User
	teams      []domain.Team
	workouts   []domain.Workout
	activities []domain.Activity
	board      []domain.LeaderboardEntry
	listErr    error
	teamsErr   error
	updateErr  error
	updated    *domain.User
	patches    []client.UserForm
}

func (f *fakeAPI) ListUsers(ctx context.Context) ([]domain.User, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]domain.User(nil), f.users...), nil
}

func (f *fakeAPI) ListTeams(ctx context.Context) ([]domain.Team, error) {
	if f.teamsErr != nil {
		return nil, f.teamsErr
	}
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.teams, nil
}

func (f *fakeAPI) ListWorkouts(ctx context.Context) ([]domain.Workout, error) {
	return f.workouts, f.listErr
}

func (f *fakeAPI) ListActivities(ctx context.Context) ([]domain.Activity, error) {
	return f.activities, f.listErr
}

func (f *fakeAPI) ListLeaderboard(ctx context.Context) ([]domain.LeaderboardEntry, error) {
	return f.board, f.listErr
}

func (f *fakeAPI) UpdateUser(ctx context.Context, id string, form client.UserForm) (*domain.User, error) {
	f.mu.Lock()
	f.patches = append(f.patches, form)
	f.mu.Unlock()
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	return f.updated, nil
}

var (
	tagPattern   = regexp.MustCompile(`<[^>]*>`)
	spacePattern = regexp.MustCompile(`\s+`)
)

// text strips markup and collapses whitespace so assertions read like the rendered page.
func text(html string) string {
	return strings.TrimSpace(spacePattern.ReplaceAllString(tagPattern.ReplaceAllString(html, " "), " "))
}

func render(t *testing.T, api API, method, target string, form url.Values) (int, string) {
	t.Helper()
	srv, err := New(api, WithLogger(zaptest.NewLogger(t)), WithCloseDelay(2*time.Second))
	require.NoError(t, err)

	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req := httptest.NewRequest(method, target, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	rr := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rr, req)
	return rr.Code, rr.Body.String()
}

func ts(raw string) domain.Timestamp {
	parsed, _ := domain.ParseTimestamp(raw)
	return parsed
}

func TestHomeShowsNavigationAndCards(t *testing.T) {
	code, page := render(t, &fakeAPI{}, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, code)
	out := text(page)
	require.Contains(t, out, "OctoFit Tracker")
	require.Contains(t, out, "Welcome to OctoFit Tracker! 🏋️")
	for _, label := range []string{"👥 Users", "🏆 Teams", "📊 Activities", "🏅 Leaderboard", "💪 Workouts"} {
		require.Contains(t, out, label)
	}
	for _, href := range []string{`href="/users"`, `href="/teams"`, `href="/activities"`, `href="/leaderboard"`, `href="/workouts"`} {
		require.Contains(t, page, href)
	}
}

func TestTeamsCard(t *testing.T) {
	api := &fakeAPI{}
	api.teams = client.DecodeList[domain.Team]([]byte(`[{"_id":"1","name":"Alpha","member_count":5}]`))

	code, page := render(t, api, http.MethodGet, "/teams", nil)
	require.Equal(t, http.StatusOK, code)
	out := text(page)
	require.Contains(t, out, "Total Teams: 1")
	require.Equal(t, 1, strings.Count(out, "👥 Alpha"))
	require.Contains(t, out, "Members: 5")
	require.Contains(t, out, "No description available")
	require.Contains(t, out, "Created: -")
	require.Contains(t, page, "#loading { display: none; }")
}

func TestTeamsMarkdownDescription(t *testing.T) {
	api := &fakeAPI{teams: []domain.Team{{ID: "t", Name: "Beta", Description: "Runs **fast** <script>x</script>", CreatedAt: ts("2024-03-05T10:00:00Z")}}}
	_, page := render(t, api, http.MethodGet, "/teams", nil)
	require.Contains(t, page, "<strong>fast</strong>")
	require.NotContains(t, page, "<script>x</script>")
	require.Contains(t, text(page), "Members: 0")
	require.Contains(t, text(page), "Created: 3/5/2024")
}

func TestEmptyStates(t *testing.T) {
	cases := map[string]string{
		"/teams":       "No teams found",
		"/workouts":    "No workout activities available",
		"/activities":  "No activities found",
		"/leaderboard": "No leaderboard data available",
		"/users":       "No users found",
	}
	for path, want := range cases {
		t.Run(path, func(t *testing.T) {
			code, page := render(t, &fakeAPI{}, http.MethodGet, path, nil)
			require.Equal(t, http.StatusOK, code)
			require.Contains(t, text(page), want)
		})
	}
}

func TestErrorBanner(t *testing.T) {
	api := &fakeAPI{listErr: client.ErrResponseNotOK}
	for _, path := range []string{"/teams", "/workouts", "/activities", "/leaderboard", "/users"} {
		t.Run(path, func(t *testing.T) {
			_, page := render(t, api, http.MethodGet, path, nil)
			out := text(page)
			require.Contains(t, out, "Error! Error: Network response was not ok")
			require.Contains(t, out, "Loading")
			require.Contains(t, page, "#loading { display: none; }")
		})
	}
}

func TestWorkoutsCard(t *testing.T) {
	api := &fakeAPI{workouts: []domain.Workout{{ID: "w1", Name: "Running", Icon: "🏃", Unit: "km", PointsPerUnit: 10}}}
	_, page := render(t, api, http.MethodGet, "/workouts", nil)
	out := text(page)
	require.Contains(t, out, "💪 Workout Activities")
	require.Contains(t, out, "Available Workouts: 1")
	require.Contains(t, out, "🏃 Running")
	require.Contains(t, out, "Unit: km")
	require.Contains(t, out, "Points per km: 10")
}

func TestActivitiesTable(t *testing.T) {
	api := &fakeAPI{activities: []domain.Activity{{
		ID: "a1", UserName: "Tony Stark", UserAlias: "Iron Man", WorkoutIcon: "🚴", WorkoutName: "Cycling",
		Quantity: 12, Unit: "km", PointsEarned: 60, CompletedAt: ts("2025-01-09T08:00:00Z"),
	}}}
	_, page := render(t, api, http.MethodGet, "/activities", nil)
	out := text(page)
	require.Contains(t, out, "Recent Activities 1 Total")
	require.Contains(t, out, "Tony Stark Iron Man 🚴 Cycling 12 km 60 1/9/2025")
}

func TestLeaderboardBadges(t *testing.T) {
	alias := "Hulk"
	count := 4
	api := &fakeAPI{board: []domain.LeaderboardEntry{
		{ID: "1", Type: domain.EntryTypeTeam, Rank: 1, EntityName: "Team Marvel", TotalPoints: 900},
		{ID: "2", Type: domain.EntryTypeIndividual, Rank: 2, EntityName: "Bruce Banner", EntityAlias: &alias, TotalPoints: 300, ActivitiesCount: &count},
		{ID: "3", Type: domain.EntryTypeIndividual, Rank: 22, EntityName: "Nobody"},
	}}
	_, page := render(t, api, http.MethodGet, "/leaderboard", nil)
	out := text(page)
	require.Contains(t, out, "Top Performers 3 Competitors")
	require.Contains(t, out, "🥇 1st 👥 Team Team Marvel - 900 -")
	require.Contains(t, out, "🥈 2nd 👤 Individual Bruce Banner Hulk 300 4")
	require.Contains(t, out, "22nd 👤 Individual Nobody - 0 -")
	require.Equal(t, 2, strings.Count(page, `class="table-active"`))
}

func TestRankBadge(t *testing.T) {
	require.Equal(t, rankBadge{Label: "🥉 3rd", Class: "bg-danger"}, badgeFor(3))
	require.Equal(t, rankBadge{Label: "21st", Class: "bg-light text-dark"}, badgeFor(21))
}

func heroes() []domain.User {
	return []domain.User{
		{ID: "u1", Name: "Tony Stark", Alias: "Iron Man", Email: "tony@stark.com", TeamID: "team_marvel", TotalPoints: 120},
		{ID: "u2", Name: "Bruce Wayne", Alias: "Batman", Email: "bruce@wayne.com", TotalPoints: 90},
	}
}

func TestUsersListAndEditDialog(t *testing.T) {
	api := &fakeAPI{users: heroes(), teams: []domain.Team{{ID: "team_marvel", Name: "Team Marvel"}, {ID: "team_dc", Name: "Team DC"}}}

	_, page := render(t, api, http.MethodGet, "/users", nil)
	out := text(page)
	require.Contains(t, out, "Registered Users 2 Total")
	require.Contains(t, out, "Bruce Wayne Batman bruce@wayne.com No team 90 0")
	require.NotContains(t, page, "Edit User Details")

	_, page = render(t, api, http.MethodGet, "/users?edit=u1", nil)
	require.Contains(t, page, "Edit User Details")
	require.Contains(t, page, `value="Tony Stark"`)
	require.Contains(t, page, `value="tony@stark.com"`)
	require.Contains(t, page, `<option value="team_marvel" selected>Team Marvel</option>`)
	require.Contains(t, page, `action="/users/u1"`)

	_, page = render(t, api, http.MethodGet, "/users?edit=ghost", nil)
	require.NotContains(t, page, "Edit User Details")
}

func TestUsersTeamsFailureIsIgnored(t *testing.T) {
	api := &fakeAPI{users: heroes(), teamsErr: errors.New("teams down")}
	_, page := render(t, api, http.MethodGet, "/users?edit=u1", nil)
	require.NotContains(t, page, "Error!")
	require.Contains(t, page, `<option value="">No Team</option>`)
	require.NotContains(t, page, "Team Marvel")
}

func TestUpdateUserSuccessReplacesRow(t *testing.T) {
	updated := domain.User{ID: "u1", Name: "Tony Stark", Alias: "Iron Patriot", Email: "tony@stark.com", TeamID: "team_dc", TotalPoints: 120}
	api := &fakeAPI{users: heroes(), teams: []domain.Team{{ID: "team_dc", Name: "Team DC"}}, updated: &updated}

	form := url.Values{"name": {"Tony Stark"}, "alias": {"Iron Patriot"}, "email": {"tony@stark.com"}, "team_id": {"team_dc"}}
	code, page := render(t, api, http.MethodPost, "/users/u1", form)
	require.Equal(t, http.StatusOK, code)

	require.Equal(t, []client.UserForm{{Name: "Tony Stark", Alias: "Iron Patriot", Email: "tony@stark.com", TeamID: "team_dc"}}, api.patches)
	out := text(page)
	require.Contains(t, out, "User updated successfully!")
	require.Contains(t, out, "Tony Stark Iron Patriot tony@stark.com team_dc 120")
	require.Contains(t, out, "Bruce Wayne Batman bruce@wayne.com No team 90")
	require.NotContains(t, out, "Iron Man")
	require.Contains(t, page, "setTimeout(")
	require.Contains(t, page, "2000")
}

func TestUpdateUserFailureKeepsFormAndList(t *testing.T) {
	api := &fakeAPI{
		users:     heroes(),
		updateErr: &client.StatusError{StatusCode: http.StatusBadRequest, Body: []byte(`{"email": ["enter a valid email address"]}`)},
	}
	form := url.Values{"name": {"Tony"}, "alias": {"Shellhead"}, "email": {"nope"}, "team_id": {""}}
	_, page := render(t, api, http.MethodPost, "/users/u1", form)

	require.Contains(t, page, `{&#34;email&#34;:[&#34;enter a valid email address&#34;]}`)
	require.Contains(t, page, `value="Shellhead"`)
	require.Contains(t, page, `value="nope"`)
	require.NotContains(t, page, "User updated successfully!")
	require.NotContains(t, page, "setTimeout(")
	require.Contains(t, text(page), "Tony Stark Iron Man tony@stark.com team_marvel 120")
}

func TestHandlerRejectsPostWithoutCSRFToken(t *testing.T) {
	srv, err := New(&fakeAPI{users: heroes()})
	require.NoError(t, err)
	handler := srv.Handler(SecurityConfig{CSRFKey: []byte("0123456789abcdef0123456789abcdef")})

	req := httptest.NewRequest(http.MethodPost, "/users/u1", strings.NewReader("name=x"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusForbidden, rr.Code)

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/users?edit=u1", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `name="gorilla.csrf.Token"`)
	require.Equal(t, "DENY", rr.Header().Get("X-Frame-Options"))
}
