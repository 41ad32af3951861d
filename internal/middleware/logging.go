// Package middleware holds HTTP middleware shared by all routes.
package middleware

import (
	"net/http"
	"time"

	"coursehub/internal/common/logging"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(p []byte) (int, error) {
	n, err := r.ResponseWriter.Write(p)
	r.bytes += n
	return n, err
}

// LoggingMiddleware logs one line per request: method, path, status and
// duration. 4xx responses log at warn, 5xx at error.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		fields := []logging.Field{
			{Key: "method", Value: r.Method},
			{Key: "path", Value: r.URL.Path},
			{Key: "status", Value: rec.status},
			{Key: "bytes", Value: rec.bytes},
			{Key: "duration_ms", Value: time.Since(start).Milliseconds()},
		}
		if r.URL.RawQuery != "" {
			fields = append(fields, logging.Field{Key: "query", Value: r.URL.RawQuery})
		}

		switch {
		case rec.status >= 500:
			logging.Error("request completed", nil, fields...)
		case rec.status >= 400:
			logging.Warn("request completed", fields...)
		default:
			logging.Info("request completed", fields...)
		}
	})
}
