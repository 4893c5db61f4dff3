// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dukerupert/cadence/internal/apperr"
)

const namespace = "cadence"

var (
	// HTTPRequests counts requests by route pattern and status code.
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by route and status",
	}, []string{"route", "method", "status"})

	// HTTPDuration measures handler latency by route pattern.
	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route", "method"})

	// SequenceTransitions counts sequencer operations.
	// Labels: op (start, next, stop, toggle, ...), outcome (ok, invalid_state, ...)
	SequenceTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "sequence",
		Name:      "transitions_total",
		Help:      "Sequencer operations by outcome",
	}, []string{"op", "outcome"})

	// SequencesFinished counts sequences advanced past their last item.
	SequencesFinished = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "sequence",
		Name:      "finished_total",
		Help:      "Sequences walked to the end",
	})

	// CheckIns counts check-in attempts by outcome.
	CheckIns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "streak",
		Name:      "check_ins_total",
		Help:      "Check-in attempts by outcome",
	}, []string{"outcome"})

	// FocusMinutes sums the minutes of recorded focus sessions.
	FocusMinutes = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "stats",
		Name:      "focus_minutes_total",
		Help:      "Minutes of focus recorded",
	})

	// ReportDuration measures how long a statistics report takes to build.
	ReportDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "stats",
		Name:      "report_duration_seconds",
		Help:      "Statistics report build time in seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	})

	// ConflictRetries counts retries of operations that lost an update race.
	ConflictRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "store",
		Name:      "conflict_retries_total",
		Help:      "Retries after optimistic concurrency conflicts",
	}, []string{"op"})

	// Backups counts database snapshot uploads by outcome.
	Backups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "backup",
		Name:      "runs_total",
		Help:      "Database backup runs",
	}, []string{"outcome"})
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Outcome turns an operation result into a low-cardinality label value.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, apperr.ErrNotFound), errors.Is(err, apperr.ErrForbidden):
		return "not_found"
	case errors.Is(err, apperr.ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, apperr.ErrAlreadyExists):
		return "already_exists"
	case errors.Is(err, apperr.ErrConflict):
		return "conflict"
	case errors.Is(err, apperr.ErrInvalidArgument):
		return "invalid_argument"
	default:
		return "error"
	}
}

// ObserveSince records the time elapsed since start on h.
func ObserveSince(h prometheus.Observer, start time.Time) {
	h.Observe(time.Since(start).Seconds())
}
