package middleware

import (
	"net/http"
	"time"

	"github.com/dionisbeci/iute-integration/internal/logger"
	"github.com/dionisbeci/iute-integration/internal/metrics"
	"github.com/dionisbeci/iute-integration/internal/utils"

	"go.uber.org/zap"
)

// Instrument records request count and latency under the route pattern.
func Instrument(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &logger.StatusRecorder{ResponseWriter: w, Status: http.StatusOK}

			next.ServeHTTP(rec, r)

			// r.Pattern is set by ServeMux on the same *Request
			route := r.Pattern
			if route == "" {
				route = "unmatched"
			}
			m.ObserveRequest(route, rec.Status, time.Since(start))
		})
	}
}

// Recover turns a handler panic into a 500.
func Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if p := recover(); p != nil {
				if p == http.ErrAbortHandler {
					panic(p)
				}
				logger.FromCtx(r.Context()).Error("panic in handler",
					zap.Any("panic", p),
					zap.String("path", r.URL.Path),
					zap.Stack("stack"),
				)
				utils.WriteJSONError(w, "Internal server error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
