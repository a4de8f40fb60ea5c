package middleware

import (
	"net/http"

	"serotonyl.ru/birdwatch/internal/metrics"
)

// Inflight ограничивает число одновременно обрабатываемых запросов.
// Семафор на буферизованном канале; при переполнении сразу отвечаем 503.
func Inflight(limit int) func(http.Handler) http.Handler {
	if limit <= 0 {
		limit = 64
	}
	sem := make(chan struct{}, limit)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case sem <- struct{}{}:
			default:
				metrics.HTTPRejected.WithLabelValues("inflight").Inc()
				writeError(w, http.StatusServiceUnavailable, "overloaded", "server is busy, try again later")
				return
			}
			metrics.HTTPInflight.Inc()
			defer func() {
				metrics.HTTPInflight.Dec()
				<-sem
			}()
			next.ServeHTTP(w, r)
		})
	}
}
