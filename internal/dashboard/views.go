package dashboard

import (
	"context"
	"html/template"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/csrf"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"example.com/octofit/internal/client"
	"example.com/octofit/internal/domain"
)

type navLink struct {
	Href   string
	Label  string
	Active bool
}

var navigation = []navLink{
	{Href: "/", Label: "Home"},
	{Href: "/users", Label: "Users"},
	{Href: "/teams", Label: "Teams"},
	{Href: "/activities", Label: "Activities"},
	{Href: "/leaderboard", Label: "Leaderboard"},
	{Href: "/workouts", Label: "Workouts"},
}

type homeCard struct {
	Href  string
	Title string
	Text  string
}

var homeCards = []homeCard{
	{Href: "/users", Title: "👥 Users", Text: "View all registered users and their fitness stats."},
	{Href: "/teams", Title: "🏆 Teams", Text: "Explore teams and their collective achievements."},
	{Href: "/activities", Title: "📊 Activities", Text: "Track and monitor all fitness activities."},
	{Href: "/leaderboard", Title: "🏅 Leaderboard", Text: "See the top performers and compete for the best rank."},
	{Href: "/workouts", Title: "💪 Workouts", Text: "Discover workout activities and earn points."},
}

// view names the page chrome and the template that renders its content.
type view struct {
	path     string
	title    string
	noun     string
	template string
}

var (
	usersView       = view{path: "/users", title: "Users", noun: "users", template: "users"}
	teamsView       = view{path: "/teams", title: "Teams", noun: "teams", template: "teams"}
	activitiesView  = view{path: "/activities", title: "Activities", noun: "activities", template: "activities"}
	leaderboardView = view{path: "/leaderboard", title: "Leaderboard", noun: "leaderboard", template: "leaderboard"}
	workoutsView    = view{path: "/workouts", title: "Workouts", noun: "workouts", template: "workouts"}
)

type shell struct {
	Title string
	Nav   []navLink
}

func newShell(v view) shell {
	nav := make([]navLink, len(navigation))
	copy(nav, navigation)
	for i := range nav {
		nav[i].Active = nav[i].Href == v.path
	}
	return shell{Title: v.title, Nav: nav}
}

// stream flushes the shell and a spinner, then renders either the loaded content or the error banner.
// The load runs on the request context so a client that navigates away cancels the upstream read.
func (s *Server) stream(w http.ResponseWriter, r *http.Request, v view, load func(ctx context.Context) (any, error)) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if !s.execute(w, "head", newShell(v)) {
		http.Error(w, "render error", http.StatusInternalServerError)
		return
	}
	s.execute(w, "loading", v.noun)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}

	data, err := load(r.Context())
	switch {
	case err != nil && r.Context().Err() != nil:
		s.logger.Debug("view abandoned", zap.String("view", v.template), zap.Error(err))
		return
	case err != nil:
		s.logger.Warn("view load failed", zap.String("view", v.template), zap.Error(err))
		s.execute(w, "error", err.Error())
	default:
		s.execute(w, v.template, data)
	}
	s.execute(w, "foot", nil)
}

func (s *Server) home(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	s.execute(w, "head", newShell(view{path: "/"}))
	s.execute(w, "home", homeCards)
	s.execute(w, "foot", nil)
}

func (s *Server) teams(w http.ResponseWriter, r *http.Request) {
	s.stream(w, r, teamsView, func(ctx context.Context) (any, error) {
		return s.api.ListTeams(ctx)
	})
}

func (s *Server) workouts(w http.ResponseWriter, r *http.Request) {
	s.stream(w, r, workoutsView, func(ctx context.Context) (any, error) {
		return s.api.ListWorkouts(ctx)
	})
}

func (s *Server) activities(w http.ResponseWriter, r *http.Request) {
	s.stream(w, r, activitiesView, func(ctx context.Context) (any, error) {
		return s.api.ListActivities(ctx)
	})
}

func (s *Server) leaderboard(w http.ResponseWriter, r *http.Request) {
	s.stream(w, r, leaderboardView, func(ctx context.Context) (any, error) {
		return s.api.ListLeaderboard(ctx)
	})
}

type usersPage struct {
	Users []domain.User
	Teams []domain.Team
	Edit  *editDialog
}

type editDialog struct {
	UserID       string
	Form         client.UserForm
	Error        string
	Success      bool
	CloseDelayMS int64
	CSRFField    template.HTML
}

func (p *usersPage) find(id string) *domain.User {
	for i := range p.Users {
		if p.Users[i].Key() == id {
			return &p.Users[i]
		}
	}
	return nil
}

// replace swaps the row with the given id for the server's copy. Other rows are untouched.
func (p *usersPage) replace(id string, updated domain.User) {
	for i := range p.Users {
		if p.Users[i].Key() == id {
			p.Users[i] = updated
		}
	}
}

// loadUsers reads users and teams concurrently. Only the users read can fail the page;
// without teams the selector offers just "No Team".
func (s *Server) loadUsers(ctx context.Context) (*usersPage, error) {
	page := &usersPage{}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		users, err := s.api.ListUsers(gctx)
		if err != nil {
			return err
		}
		page.Users = users
		return nil
	})
	g.Go(func() error {
		teams, err := s.api.ListTeams(gctx)
		if err != nil {
			s.logger.Warn("teams read failed", zap.Error(err))
			return nil
		}
		page.Teams = teams
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return page, nil
}

func (s *Server) dialog(r *http.Request, id string, form client.UserForm) *editDialog {
	return &editDialog{
		UserID:       id,
		Form:         form,
		CloseDelayMS: s.closeDelay.Milliseconds(),
		CSRFField:    csrf.TemplateField(r),
	}
}

func (s *Server) users(w http.ResponseWriter, r *http.Request) {
	editID := r.URL.Query().Get("edit")
	s.stream(w, r, usersView, func(ctx context.Context) (any, error) {
		page, err := s.loadUsers(ctx)
		if err != nil {
			return nil, err
		}
		if editID != "" {
			if user := page.find(editID); user != nil {
				page.Edit = s.dialog(r, editID, client.FormFromUser(*user))
			}
		}
		return page, nil
	})
}

func (s *Server) updateUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	form := client.UserForm{
		Name:   r.PostForm.Get("name"),
		Alias:  r.PostForm.Get("alias"),
		Email:  r.PostForm.Get("email"),
		TeamID: r.PostForm.Get("team_id"),
	}

	s.stream(w, r, usersView, func(ctx context.Context) (any, error) {
		updated, patchErr := s.api.UpdateUser(ctx, id, form)
		page, err := s.loadUsers(ctx)
		if err != nil {
			return nil, err
		}

		dlg := s.dialog(r, id, form)
		if patchErr != nil {
			s.logger.Info("user update rejected", zap.String("user_id", id), zap.Error(patchErr))
			dlg.Error = patchErr.Error()
		} else {
			s.logger.Debug("user updated", zap.String("user_id", id))
			page.replace(id, *updated)
			dlg.Form = client.FormFromUser(*updated)
			dlg.Success = true
		}
		page.Edit = dlg
		return page, nil
	})
}
