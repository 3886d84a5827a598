package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
)

// HTTPRecorder receives per-request observations (implemented by
// metrics.Collector).
type HTTPRecorder interface {
	HTTPRequest(method, route, status string, seconds float64)
}

// Metrics records request count and latency per chi route pattern. Patterns
// keep label cardinality bounded; raw paths would not.
func Metrics(rec HTTPRecorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rw, r)

			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if p := rctx.RoutePattern(); p != "" {
					route = p
				}
			}
			rec.HTTPRequest(r.Method, route, strconv.Itoa(rw.status), time.Since(start).Seconds())
		})
	}
}
