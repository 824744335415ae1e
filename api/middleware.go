package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/GoCodeAlone/console/metrics"
)

// statusRecorder captures the status code a handler writes so the request
// can be recorded after it completes.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(status int) {
	sr.status = status
	sr.ResponseWriter.WriteHeader(status)
}

// RequestMetrics records method, matched route, status, and duration for
// every request. The matched mux pattern is used as the path label so per-ID
// routes do not explode metric cardinality; unmatched requests share one
// bucket.
func RequestMetrics(collector *metrics.Collector) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			path := r.Pattern
			if _, after, ok := strings.Cut(path, " "); ok {
				path = after
			}
			if path == "" {
				path = "unmatched"
			}
			collector.RecordHTTPRequest(r.Method, path, rec.status, time.Since(start))
		})
	}
}
