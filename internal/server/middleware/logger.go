// Package middleware содержит промежуточные обработчики HTTP: request id, логирование,
// восстановление после паники, rate-limiting, ограничение параллелизма, метрики и аутентификацию.
package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/birdwatch/internal/metrics"
)

type requestIDKey struct{}

// RequestID берёт X-Request-ID клиента или генерирует UUID и возвращает его в ответе.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

// RequestIDFrom возвращает id запроса из контекста.
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// Logger логирует каждый запрос: метод, маршрут, статус, длительность.
// Заодно пишет HTTP-метрики, чтобы не оборачивать ResponseWriter дважды.
func Logger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := routePattern(r)
		duration := time.Since(start)
		metrics.RecordHTTP(r.Method, route, status, duration)

		entry := log.WithFields(log.Fields{
			"request_id":  RequestIDFrom(r.Context()),
			"method":      r.Method,
			"route":       route,
			"status":      status,
			"duration_ms": duration.Milliseconds(),
			"bytes":       ww.BytesWritten(),
		})
		switch {
		case status >= 500:
			entry.Warn("HTTP-запрос")
		default:
			entry.Debug("HTTP-запрос")
		}
	})
}

// routePattern возвращает шаблон маршрута chi ("/api/user/nearby-spots/{id}"),
// чтобы не плодить метки метрик на каждый id.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}
