package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"vigil/internal/platform/metrics"
)

// LatencyMiddleware records request duration and in-flight count. The
// route label uses the chi pattern ("/v1/alerts/{id}") rather than the
// raw path to keep metric cardinality bounded.
func LatencyMiddleware(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			release := m.TrackInFlight()
			defer release()

			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			route := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			m.ObserveRequest(route, r.Method, rec.status, time.Since(start))
		})
	}
}
