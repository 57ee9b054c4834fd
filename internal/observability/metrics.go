package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	userUpdatedGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "octofit",
		Subsystem: "persistence",
		Name:      "last_user_updated_timestamp_seconds",
		Help:      "Unix timestamp of the most recent user edit committed to Postgres.",
	})
	userUpdatesCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "octofit",
		Subsystem: "persistence",
		Name:      "user_updates_total",
		Help:      "Number of user edits committed.",
	})
	leaderboardRebuiltGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "octofit",
		Subsystem: "leaderboard",
		Name:      "last_rebuild_timestamp_seconds",
		Help:      "Unix timestamp of the most recent leaderboard rebuild.",
	})
)

func init() {
	prometheus.MustRegister(userUpdatedGauge, userUpdatesCounter, leaderboardRebuiltGauge)
}

// RecordUserUpdated counts an edit and moves the update watermark.
func RecordUserUpdated(ts time.Time) {
	userUpdatesCounter.Inc()
	if ts.IsZero() {
		return
	}
	userUpdatedGauge.Set(float64(ts.Unix()))
}

// RecordLeaderboardRebuilt updates the rebuild watermark gauge.
func RecordLeaderboardRebuilt(ts time.Time) {
	if ts.IsZero() {
		return
	}
	leaderboardRebuiltGauge.Set(float64(ts.Unix()))
}
