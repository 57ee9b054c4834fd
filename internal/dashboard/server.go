// Package dashboard serves the server-rendered OctoFit web UI.
package dashboard

import (
	"bytes"
	"context"
	"html/template"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/csrf"
	"go.uber.org/zap"

	"example.com/octofit/internal/client"
	"example.com/octofit/internal/domain"
)

// API is the subset of the REST client the views need.
type API interface {
	ListUsers(ctx context.Context) ([]domain.User, error)
	ListTeams(ctx context.Context) ([]domain.Team, error)
	ListWorkouts(ctx context.Context) ([]domain.Workout, error)
	ListActivities(ctx context.Context) ([]domain.Activity, error)
	ListLeaderboard(ctx context.Context) ([]domain.LeaderboardEntry, error)
	UpdateUser(ctx context.Context, id string, form client.UserForm) (*domain.User, error)
}

// DefaultCloseDelay is how long the edit dialog stays open after a successful save.
const DefaultCloseDelay = 1500 * time.Millisecond

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request and diagnostic logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithCloseDelay overrides DefaultCloseDelay.
func WithCloseDelay(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.closeDelay = d
		}
	}
}

// Server renders dashboard pages backed by the OctoFit API.
type Server struct {
	api        API
	logger     *zap.Logger
	closeDelay time.Duration
	templates  *template.Template
}

// New parses the embedded templates and builds a Server.
func New(api API, opts ...Option) (*Server, error) {
	tpl, err := parseTemplates()
	if err != nil {
		return nil, err
	}
	s := &Server{
		api:        api,
		logger:     zap.NewNop(),
		closeDelay: DefaultCloseDelay,
		templates:  tpl,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Routes returns the page router without CSRF protection. Use Handler in production wiring.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)

	r.Get("/", s.home)
	r.Get("/users", s.users)
	r.Post("/users/{id}", s.updateUser)
	r.Get("/teams", s.teams)
	r.Get("/activities", s.activities)
	r.Get("/leaderboard", s.leaderboard)
	r.Get("/workouts", s.workouts)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return r
}

// SecurityConfig tunes Handler.
type SecurityConfig struct {
	// CSRFKey must be 32 bytes.
	CSRFKey        []byte
	Production     bool
	TrustedOrigins []string
}

// Handler wraps Routes with security headers and CSRF protection for the edit form.
func (s *Server) Handler(cfg SecurityConfig) http.Handler {
	protect := csrf.Protect(
		cfg.CSRFKey,
		csrf.Secure(cfg.Production),
		csrf.Path("/"),
		csrf.TrustedOrigins(cfg.TrustedOrigins),
		csrf.ErrorHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s.logger.Warn("csrf rejected", zap.String("path", r.URL.Path), zap.Error(csrf.FailureReason(r)))
			http.Error(w, "Forbidden - invalid form token", http.StatusForbidden)
		})),
	)
	protected := protect(s.Routes())

	return securityHeaders(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !cfg.Production {
			r = csrf.PlaintextHTTPRequest(r)
		}
		protected.ServeHTTP(w, r)
	}))
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Security-Policy", "default-src 'self'; style-src 'self' 'unsafe-inline' https://cdn.jsdelivr.net; script-src 'self' 'unsafe-inline'; img-src 'self' data: https:")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				logger.Info("http request",
					zap.String("request_id", middleware.GetReqID(r.Context())),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("duration", time.Since(start)),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}

// execute renders one named template into a buffer so a failing template never leaves half a fragment.
func (s *Server) execute(w http.ResponseWriter, name string, data any) bool {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		s.logger.Error("template render failed", zap.String("template", name), zap.Error(err))
		return false
	}
	_, _ = w.Write(buf.Bytes())
	return true
}
