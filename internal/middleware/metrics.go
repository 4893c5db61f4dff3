package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/dukerupert/cadence/internal/metrics"
)

// Instrument records request count and latency under the route pattern.
// The pattern is passed in rather than read from the request because
// nested muxes and context copies lose r.Pattern.
func Instrument(route string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := record(w)

			next.ServeHTTP(rec, r)

			metrics.HTTPRequests.WithLabelValues(route, r.Method, strconv.Itoa(rec.status)).Inc()
			metrics.HTTPDuration.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
		})
	}
}
