package client

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	upstreamRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "octofit",
		Subsystem: "upstream",
		Name:      "requests_total",
		Help:      "Calls made to the OctoFit API grouped by endpoint and outcome.",
	}, []string{"endpoint", "method", "code"})

	upstreamLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "octofit",
		Subsystem: "upstream",
		Name:      "request_duration_seconds",
		Help:      "Latency of calls to the OctoFit API.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"endpoint", "method"})
)

func init() {
	prometheus.MustRegister(upstreamRequests, upstreamLatency)
}

// endpointLabel folds detail paths onto their collection to keep label cardinality bounded.
func endpointLabel(path string) string {
	for _, p := range []string{UsersPath, TeamsPath, WorkoutsPath, ActivitiesPath, LeaderboardPath} {
		if strings.HasPrefix(path, p) {
			if path == p {
				return p
			}
			return p + "{id}/"
		}
	}
	return "other"
}

func recordRequest(path, method, code string, elapsed time.Duration) {
	endpoint := endpointLabel(path)
	upstreamRequests.WithLabelValues(endpoint, method, code).Inc()
	upstreamLatency.WithLabelValues(endpoint, method).Observe(elapsed.Seconds())
}
