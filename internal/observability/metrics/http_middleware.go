package metrics

import (
	"net/http"
	"strconv"
	"time"
)

// HTTPMetricsMiddleware records one duration sample per request, labeled by
// method, path and the status code the handler chain wrote.
func HTTPMetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := statusRecorder{ResponseWriter: w, code: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(&rec, r)
		ObserveHTTPRequest(r.Method, r.URL.Path, strconv.Itoa(rec.code), time.Since(start))
	})
}

// statusRecorder captures the status code for the metric label. A handler
// that never calls WriteHeader implicitly wrote 200.
type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}
