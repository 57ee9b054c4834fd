// Package config centralises configuration parsing for the OctoFit binaries.
package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures runtime configuration values shared by the api, consumer and dashboard.
type Config struct {
	Environment      string
	LogLevel         string
	HTTPAddress      string
	DashboardAddress string
	MetricsAddress   string

	PostgresURL  string
	SeedDatabase bool

	KafkaBrokers       []string
	UserEventsTopic    string
	ConsumerGroupID    string
	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	DLQPollInterval    time.Duration
	DLQMaxRetries      int
	DLQBaseDelay       time.Duration

	JWTSecret     string
	JWTIssuer     string
	PublicBaseURL string

	CodespaceName   string
	APIURL          string
	APIToken        string
	UpstreamTimeout time.Duration
	EditCloseDelay  time.Duration
	CSRFKey         string
}

// Load reads environment variables into Config, applying defaults suitable for local dev.
func Load() Config {
	return Config{
		Environment:        getEnv("OCTOFIT_ENV", "development"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		HTTPAddress:        getEnv("HTTP_ADDRESS", ":8000"),
		DashboardAddress:   getEnv("DASHBOARD_ADDRESS", ":3000"),
		MetricsAddress:     getEnv("METRICS_ADDRESS", ":9195"),
		PostgresURL:        getEnv("POSTGRES_URL", ""),
		SeedDatabase:       getBoolEnv("SEED_DATABASE", false),
		KafkaBrokers:       splitAndTrim(getEnv("KAFKA_BROKERS", "")),
		UserEventsTopic:    getEnv("USER_EVENTS_TOPIC", "user_events"),
		ConsumerGroupID:    getEnv("CONSUMER_GROUP_ID", "octofit-leaderboard"),
		OutboxPollInterval: getDurationEnv("OUTBOX_POLL_INTERVAL", 2*time.Second),
		OutboxBatchSize:    getIntEnv("OUTBOX_BATCH_SIZE", 25),
		DLQPollInterval:    getDurationEnv("DLQ_POLL_INTERVAL", 30*time.Second),
		DLQMaxRetries:      getIntEnv("DLQ_MAX_RETRIES", 5),
		DLQBaseDelay:       getDurationEnv("DLQ_BASE_DELAY", time.Minute),
		JWTSecret:          getEnv("JWT_SECRET", ""),
		JWTIssuer:          getEnv("JWT_ISSUER", "octofit.identity"),
		PublicBaseURL:      getEnv("PUBLIC_BASE_URL", ""),
		CodespaceName:      getEnv("CODESPACE_NAME", ""),
		APIURL:             getEnv("OCTOFIT_API_URL", ""),
		APIToken:           getEnv("OCTOFIT_API_TOKEN", ""),
		UpstreamTimeout:    getDurationEnv("UPSTREAM_TIMEOUT", 10*time.Second),
		EditCloseDelay:     getDurationEnv("EDIT_CLOSE_DELAY", 1500*time.Millisecond),
		CSRFKey:            getEnv("CSRF_KEY", ""),
	}
}

// IsProduction reports whether the binaries run with production hardening.
func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

// APIBaseURL resolves the base URL of the OctoFit REST API the dashboard talks to.
// An explicit OCTOFIT_API_URL wins, then the Codespaces forwarded port, then localhost.
func (c Config) APIBaseURL() string {
	if c.APIURL != "" {
		return strings.TrimRight(c.APIURL, "/")
	}
	if c.CodespaceName != "" {
		return fmt.Sprintf("https://%s-8000.app.github.dev", c.CodespaceName)
	}
	return "http://localhost:8000"
}

// CSRFAuthKey decodes CSRF_KEY. It returns nil when unset so callers can generate a dev key.
func (c Config) CSRFAuthKey() ([]byte, error) {
	if c.CSRFKey == "" {
		return nil, nil
	}
	key, err := hex.DecodeString(c.CSRFKey)
	if err != nil || len(key) != 32 {
		return nil, fmt.Errorf("CSRF_KEY must be 64 hex characters (32 bytes)")
	}
	return key, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func splitAndTrim(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getIntEnv(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getBoolEnv(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}
