package middleware

import (
	"net/http"
	"strconv"

	"github.com/sqlgate/sqlgate/pkg/metrics"
)

// Metrics counts every request by method and response status.
func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := NewResponseRecorder(w)
		next.ServeHTTP(rec, r)
		metrics.RequestsTotal.WithLabelValues(r.Method, strconv.Itoa(rec.StatusCode)).Inc()
	})
}
