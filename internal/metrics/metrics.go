// Package metrics provides Prometheus instrumentation for the settlement
// engine.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// MatchesInitialized counts matches created.
	MatchesInitialized = promauto.NewCounter(prometheus.CounterOpts{
		Name: "goalpost_matches_initialized_total",
		Help: "Total number of matches initialized",
	})

	// LiveMatches tracks matches currently accepting deposits.
	LiveMatches = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "goalpost_live_matches",
		Help: "Number of currently live matches",
	})

	// MatchesSettled counts ended matches, partitioned by winner.
	MatchesSettled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "goalpost_matches_settled_total",
		Help: "Total number of matches settled",
	}, []string{"winner"})

	// DepositsTotal counts accepted deposits, partitioned by side.
	DepositsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "goalpost_deposits_total",
		Help: "Total number of deposits accepted",
	}, []string{"side"})

	// DepositVolume tracks cumulative deposited base units per side.
	DepositVolume = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "goalpost_deposit_volume_total",
		Help: "Cumulative deposit volume in base units",
	}, []string{"side"})

	// ScoreUpdatesTotal counts applied oracle score updates.
	ScoreUpdatesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "goalpost_score_updates_total",
		Help: "Total number of applied score updates",
	})

	// ClaimsTotal counts processed reward claims, including zero payouts.
	ClaimsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "goalpost_claims_total",
		Help: "Total number of processed claims",
	})

	// PayoutVolume tracks cumulative paid-out base units.
	PayoutVolume = promauto.NewCounter(prometheus.CounterOpts{
		Name: "goalpost_payout_volume_total",
		Help: "Cumulative payout volume in base units",
	})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "goalpost_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "goalpost_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "goalpost_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		// Use the raw path for the label; route shapes here are shallow.
		path := r.URL.Path
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
