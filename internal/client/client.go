// Package client is a typed HTTP client for the OctoFit REST API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"example.com/octofit/internal/domain"
)

// Collection endpoints relative to the API base URL.
const (
	UsersPath       = "/api/users/"
	TeamsPath       = "/api/teams/"
	WorkoutsPath    = "/api/workouts/"
	ActivitiesPath  = "/api/activities/"
	LeaderboardPath = "/api/leaderboard/"
)

// ErrResponseNotOK is returned by list reads when the API answers with a non-2xx status.
var ErrResponseNotOK = errors.New("Network response was not ok")

// StatusError is returned by writes rejected by the API. Body holds the raw response body.
type StatusError struct {
	StatusCode int
	Body       []byte
}

// Error returns the response body as compact JSON, or trimmed text when it is not JSON.
func (e *StatusError) Error() string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, e.Body); err == nil && buf.Len() > 0 {
		return buf.String()
	}
	if text := strings.TrimSpace(string(e.Body)); text != "" {
		return text
	}
	return "HTTP " + strconv.Itoa(e.StatusCode)
}

// UserForm is the editable subset of a user. All four fields are always sent.
type UserForm struct {
	Name   string `json:"name"`
	Alias  string `json:"alias"`
	Email  string `json:"email"`
	TeamID string `json:"team_id"`
}

// FormFromUser pre-fills a form with the user's current values.
func FormFromUser(u domain.User) UserForm {
	return UserForm{Name: u.Name, Alias: u.Alias, Email: u.Email, TeamID: u.TeamID}
}

// Option configures a Client.
type Option func(*Client)

// WithToken sends the token as a bearer credential on every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithTimeout bounds each request.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithHTTPClient swaps the underlying transport client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithLogger enables debug logs of request URLs and fetched payloads.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Client talks to one OctoFit API deployment.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	logger  *zap.Logger
}

// New builds a Client for baseURL, e.g. http://localhost:8000.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the API root this client targets.
func (c *Client) BaseURL() string { return c.baseURL }

// ListUsers fetches every user.
func (c *Client) ListUsers(ctx context.Context) ([]domain.User, error) {
	return list[domain.User](ctx, c, UsersPath)
}

// ListTeams fetches every team.
func (c *Client) ListTeams(ctx context.Context) ([]domain.Team, error) {
	return list[domain.Team](ctx, c, TeamsPath)
}

// ListWorkouts fetches every workout.
func (c *Client) ListWorkouts(ctx context.Context) ([]domain.Workout, error) {
	return list[domain.Workout](ctx, c, WorkoutsPath)
}

// ListActivities fetches every activity.
func (c *Client) ListActivities(ctx context.Context) ([]domain.Activity, error) {
	return list[domain.Activity](ctx, c, ActivitiesPath)
}

// ListLeaderboard fetches the ranked leaderboard.
func (c *Client) ListLeaderboard(ctx context.Context) ([]domain.LeaderboardEntry, error) {
	return list[domain.LeaderboardEntry](ctx, c, LeaderboardPath)
}

// GetUser fetches one user by id.
func (c *Client) GetUser(ctx context.Context, id string) (*domain.User, error) {
	body, status, err := c.do(ctx, http.MethodGet, UsersPath+url.PathEscape(id)+"/", nil)
	if err != nil {
		return nil, err
	}
	if status < 200 || status > 299 {
		return nil, &StatusError{StatusCode: status, Body: body}
	}
	var user domain.User
	if err := json.Unmarshal(body, &user); err != nil {
		return nil, fmt.Errorf("decode user: %w", err)
	}
	return &user, nil
}

// UpdateUser sends PATCH /api/users/{id}/ with the four editable fields and returns the
// server's view of the user. Rejections come back as *StatusError.
func (c *Client) UpdateUser(ctx context.Context, id string, form UserForm) (*domain.User, error) {
	payload, err := json.Marshal(form)
	if err != nil {
		return nil, err
	}
	body, status, err := c.do(ctx, http.MethodPatch, UsersPath+url.PathEscape(id)+"/", payload)
	if err != nil {
		return nil, err
	}
	if status < 200 || status > 299 {
		return nil, &StatusError{StatusCode: status, Body: body}
	}
	var user domain.User
	if err := json.Unmarshal(body, &user); err != nil {
		return nil, fmt.Errorf("decode updated user: %w", err)
	}
	return &user, nil
}

func list[T any](ctx context.Context, c *Client, path string) ([]T, error) {
	body, status, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	if status < 200 || status > 299 {
		return nil, ErrResponseNotOK
	}
	c.logger.Debug("fetched payload", zap.String("path", path), zap.ByteString("payload", body))
	return DecodeList[T](body), nil
}

func (c *Client) do(ctx context.Context, method, path string, payload []byte) ([]byte, int, error) {
	endpoint := c.baseURL + path
	c.logger.Debug("calling api", zap.String("method", method), zap.String("url", endpoint))

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		recordRequest(path, method, "transport_error", time.Since(start))
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	recordRequest(path, method, strconv.Itoa(resp.StatusCode), time.Since(start))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read response: %w", err)
	}
	return body, resp.StatusCode, nil
}

// DecodeList accepts a bare array or a {"results": [...]} envelope. Anything else,
// including arrays holding non-object elements, yields zero rows.
func DecodeList[T any](body []byte) []T {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return []T{}
	}

	raw := body
	if body[0] == '{' {
		var envelope struct {
			Results json.RawMessage `json:"results"`
		}
		if err := json.Unmarshal(body, &envelope); err != nil {
			return []T{}
		}
		raw = bytes.TrimSpace(envelope.Results)
	}
	if len(raw) == 0 || raw[0] != '[' {
		return []T{}
	}

	var elements []json.RawMessage
	if err := json.Unmarshal(raw, &elements); err != nil {
		return []T{}
	}
	out := make([]T, 0, len(elements))
	for _, el := range elements {
		el = bytes.TrimSpace(el)
		if len(el) == 0 || el[0] != '{' {
			return []T{}
		}
		var item T
		if err := json.Unmarshal(el, &item); err != nil {
			return []T{}
		}
		out = append(out, item)
	}
	return out
}
