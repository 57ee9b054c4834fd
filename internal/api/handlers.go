// Package api exposes the OctoFit REST endpoints.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"example.com/octofit/internal/auth"
	"example.com/octofit/internal/domain"
)

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the logger used for server errors.
func WithLogger(logger *zap.Logger) Option {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithBaseURL fixes the absolute URL advertised by the API root. When empty and
// codespace is set, the GitHub Codespaces forwarded address is used instead.
func WithBaseURL(publicBaseURL, codespace string) Option {
	return func(h *Handler) {
		h.publicBaseURL = strings.TrimRight(publicBaseURL, "/")
		h.codespace = codespace
	}
}

// WithWriteScope requires bearer claims carrying auth.ScopeUsersWrite on user edits.
func WithWriteScope() Option {
	return func(h *Handler) { h.requireScope = true }
}

// Handler coordinates HTTP requests with the domain service.
type Handler struct {
	service       *domain.Service
	logger        *zap.Logger
	publicBaseURL string
	codespace     string
	requireScope  bool
}

// NewHandler builds a Handler.
func NewHandler(service *domain.Service, opts ...Option) *Handler {
	h := &Handler{service: service, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterRoutes wires endpoints to the mux. Both the trailing-slash and bare forms are served.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/", h.root)
	mux.HandleFunc("/api", h.root)
	mux.HandleFunc("/api/", h.root)
	h.collection(mux, "users", h.users)
	h.collection(mux, "teams", h.teams)
	h.collection(mux, "workouts", h.workouts)
	h.collection(mux, "activities", h.activities)
	h.collection(mux, "leaderboard", h.leaderboard)
	mux.HandleFunc("/healthz", healthz)
}

func (h *Handler) collection(mux *http.ServeMux, name string, fn func(http.ResponseWriter, *http.Request, []string)) {
	prefix := "/api/" + name
	handler := func(w http.ResponseWriter, r *http.Request) {
		rest := strings.Trim(strings.TrimPrefix(r.URL.Path, prefix), "/")
		var segments []string
		if rest != "" {
			segments = strings.Split(rest, "/")
		}
		fn(w, r, segments)
	}
	mux.HandleFunc(prefix, handler)
	mux.HandleFunc(prefix+"/", handler)
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// APIRoot lists the collection endpoints.
type APIRoot struct {
	Teams       string `json:"teams"`
	Users       string `json:"users"`
	Workouts    string `json:"workouts"`
	Activities  string `json:"activities"`
	Leaderboard string `json:"leaderboard"`
}

func (h *Handler) root(w http.ResponseWriter, r *http.Request) {
	switch strings.TrimRight(r.URL.Path, "/") {
	case "", "/api":
	default:
		writeError(w, http.StatusNotFound, "not_found", "no route for "+r.URL.Path)
		return
	}
	if !allowGet(w, r) {
		return
	}

	base := h.baseURL(r)
	writeJSON(w, http.StatusOK, APIRoot{
		Teams:       base + "/api/teams/",
		Users:       base + "/api/users/",
		Workouts:    base + "/api/workouts/",
		Activities:  base + "/api/activities/",
		Leaderboard: base + "/api/leaderboard/",
	})
}

func (h *Handler) baseURL(r *http.Request) string {
	if h.publicBaseURL != "" {
		return h.publicBaseURL
	}
	if h.codespace != "" {
		return fmt.Sprintf("https://%s-8000.app.github.dev", h.codespace)
	}
	return requestScheme(r) + "://" + r.Host
}

func allowGet(w http.ResponseWriter, r *http.Request) bool {
	if r.Method == http.MethodGet || r.Method == http.MethodHead {
		return true
	}
	w.Header().Set("Allow", "GET, HEAD")
	writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	return false
}

func (h *Handler) users(w http.ResponseWriter, r *http.Request, segments []string) {
	switch len(segments) {
	case 0:
		if !allowGet(w, r) {
			return
		}
		q := r.URL.Query()
		users, err := h.service.ListUsers(r.Context(), domain.UserFilter{TeamID: q.Get("team_id"), Search: q.Get("search")})
		if err != nil {
			h.serverError(w, err)
			return
		}
		writeList(w, r, users)
	case 1:
		switch r.Method {
		case http.MethodGet, http.MethodHead:
			user, err := h.service.GetUser(r.Context(), segments[0])
			h.writeResult(w, user, err)
		case http.MethodPatch, http.MethodPut:
			h.updateUser(w, r, segments[0])
		default:
			w.Header().Set("Allow", "GET, HEAD, PATCH, PUT")
			writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		}
	case 2:
		if segments[1] != "activities" {
			writeError(w, http.StatusNotFound, "not_found", "no route for "+r.URL.Path)
			return
		}
		if !allowGet(w, r) {
			return
		}
		activities, err := h.service.UserActivities(r.Context(), segments[0])
		h.writeListResult(w, r, activities, err)
	default:
		writeError(w, http.StatusNotFound, "not_found", "no route for "+r.URL.Path)
	}
}

// UpdateUserRequest is the payload for PATCH /api/users/{id}/.
type UpdateUserRequest struct {
	Name   *string `json:"name"`
	Alias  *string `json:"alias"`
	Email  *string `json:"email"`
	TeamID *string `json:"team_id"`
}

func (h *Handler) updateUser(w http.ResponseWriter, r *http.Request, id string) {
	if h.requireScope {
		claims, ok := auth.FromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
			return
		}
		if !claims.HasScope(auth.ScopeUsersWrite) {
			writeError(w, http.StatusForbidden, "forbidden", "scope "+auth.ScopeUsersWrite+" required")
			return
		}
	}

	var req UpdateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}

	user, err := h.service.UpdateUser(r.Context(), id, domain.UserUpdate{
		Name:   req.Name,
		Alias:  req.Alias,
		Email:  req.Email,
		TeamID: req.TeamID,
	})
	if err != nil {
		var vErr *domain.ValidationError
		if errors.As(err, &vErr) {
			writeJSON(w, http.StatusBadRequest, ValidationErrorResponse{
				Type:   "validation_failed",
				Detail: vErr.Error(),
				Fields: vErr.Fields,
			})
			return
		}
	}
	h.writeResult(w, user, err)
}

// ValidationErrorResponse carries per-field validation messages.
type ValidationErrorResponse struct {
	Type   string            `json:"type"`
	Detail string            `json:"detail"`
	Fields map[string]string `json:"fields"`
}

func (h *Handler) teams(w http.ResponseWriter, r *http.Request, segments []string) {
	if !allowGet(w, r) {
		return
	}
	switch {
	case len(segments) == 0:
		teams, err := h.service.ListTeams(r.Context(), domain.TeamFilter{Search: r.URL.Query().Get("search")})
		h.writeListResult(w, r, teams, err)
	case len(segments) == 1:
		team, err := h.service.GetTeam(r.Context(), segments[0])
		h.writeResult(w, team, err)
	case len(segments) == 2 && segments[1] == "members":
		members, err := h.service.TeamMembers(r.Context(), segments[0])
		h.writeListResult(w, r, members, err)
	case len(segments) == 2 && segments[1] == "activities":
		activities, err := h.service.TeamActivities(r.Context(), segments[0])
		h.writeListResult(w, r, activities, err)
	default:
		writeError(w, http.StatusNotFound, "not_found", "no route for "+r.URL.Path)
	}
}

func (h *Handler) workouts(w http.ResponseWriter, r *http.Request, segments []string) {
	if !allowGet(w, r) {
		return
	}
	switch len(segments) {
	case 0:
		workouts, err := h.service.ListWorkouts(r.Context(), domain.WorkoutFilter{Search: r.URL.Query().Get("search")})
		h.writeListResult(w, r, workouts, err)
	case 1:
		workout, err := h.service.GetWorkout(r.Context(), segments[0])
		h.writeResult(w, workout, err)
	default:
		writeError(w, http.StatusNotFound, "not_found", "no route for "+r.URL.Path)
	}
}

func (h *Handler) activities(w http.ResponseWriter, r *http.Request, segments []string) {
	if !allowGet(w, r) {
		return
	}
	switch {
	case len(segments) == 0:
		q := r.URL.Query()
		activities, err := h.service.ListActivities(r.Context(), domain.ActivityFilter{
			UserID:    q.Get("user_id"),
			WorkoutID: q.Get("workout_id"),
			TeamID:    q.Get("team_id"),
			Search:    q.Get("search"),
		})
		h.writeListResult(w, r, activities, err)
	case len(segments) == 1 && segments[0] == "recent":
		activities, err := h.service.RecentActivities(r.Context())
		h.writeListResult(w, r, activities, err)
	case len(segments) == 1:
		activity, err := h.service.GetActivity(r.Context(), segments[0])
		h.writeResult(w, activity, err)
	default:
		writeError(w, http.StatusNotFound, "not_found", "no route for "+r.URL.Path)
	}
}

func (h *Handler) leaderboard(w http.ResponseWriter, r *http.Request, segments []string) {
	if !allowGet(w, r) {
		return
	}
	var filter domain.LeaderboardFilter
	switch {
	case len(segments) == 0:
		filter.Type = domain.EntryType(r.URL.Query().Get("type"))
	case len(segments) == 1 && segments[0] == string(domain.EntryTypeIndividual):
		filter.Type = domain.EntryTypeIndividual
	case len(segments) == 1 && segments[0] == string(domain.EntryTypeTeam):
		filter.Type = domain.EntryTypeTeam
	case len(segments) == 1:
		h.leaderboardEntry(w, r, segments[0])
		return
	default:
		writeError(w, http.StatusNotFound, "not_found", "no route for "+r.URL.Path)
		return
	}
	entries, err := h.service.Leaderboard(r.Context(), filter)
	h.writeListResult(w, r, entries, err)
}

func (h *Handler) leaderboardEntry(w http.ResponseWriter, r *http.Request, id string) {
	entries, err := h.service.Leaderboard(r.Context(), domain.LeaderboardFilter{})
	if err != nil {
		h.serverError(w, err)
		return
	}
	for _, e := range entries {
		if e.Key() == id {
			writeJSON(w, http.StatusOK, e)
			return
		}
	}
	writeError(w, http.StatusNotFound, "not_found", "leaderboard entry not found")
}

func (h *Handler) writeResult(w http.ResponseWriter, payload any, err error) {
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrUserNotFound),
			errors.Is(err, domain.ErrTeamNotFound),
			errors.Is(err, domain.ErrWorkoutNotFound),
			errors.Is(err, domain.ErrActivityNotFound):
			writeError(w, http.StatusNotFound, "not_found", err.Error())
		default:
			h.serverError(w, err)
		}
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

func writeListResultFor[T any](h *Handler, w http.ResponseWriter, r *http.Request, items []T, err error) {
	if err != nil {
		h.writeResult(w, nil, err)
		return
	}
	writeList(w, r, items)
}

func (h *Handler) writeListResult(w http.ResponseWriter, r *http.Request, items any, err error) {
	switch v := items.(type) {
	case []domain.User:
		writeListResultFor(h, w, r, v, err)
	case []domain.Team:
		writeListResultFor(h, w, r, v, err)
	case []domain.Workout:
		writeListResultFor(h, w, r, v, err)
	case []domain.Activity:
		writeListResultFor(h, w, r, v, err)
	case []domain.LeaderboardEntry:
		writeListResultFor(h, w, r, v, err)
	default:
		h.serverError(w, fmt.Errorf("unsupported list type %T", items))
	}
}

func (h *Handler) serverError(w http.ResponseWriter, err error) {
	h.logger.Error("request failed", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "server_error", err.Error())
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	payload := map[string]string{
		"type":   code,
		"detail": detail,
	}
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
