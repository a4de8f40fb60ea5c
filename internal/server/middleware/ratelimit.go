package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/httprate"

	"serotonyl.ru/birdwatch/internal/auth"
	"serotonyl.ru/birdwatch/internal/metrics"
)

// LimitByUser ограничивает количество запросов на пользователя (скользящее окно httprate).
// Ключ: id пользователя из JWT. Ставится после Authenticate; анонимные запросы пропускаются.
//
// Параметры:
//   - requests: сколько запросов разрешено за окно
//   - window: длина окна
func LimitByUser(requests int, window time.Duration) func(http.Handler) http.Handler {
	limit := httprate.Limit(requests, window,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			return "user:" + strconv.FormatInt(auth.UserID(r.Context()), 10), nil
		}),
		httprate.WithLimitHandler(rejectRateLimited(window)),
	)

	return func(next http.Handler) http.Handler {
		limited := limit(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if auth.UserID(r.Context()) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			limited.ServeHTTP(w, r)
		})
	}
}

// LimitByIP ограничивает анонимные маршруты (/api/auth) по IP через httprate.
func LimitByIP(requests int, window time.Duration) func(http.Handler) http.Handler {
	return httprate.Limit(requests, window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(rejectRateLimited(window)),
	)
}

func rejectRateLimited(window time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		metrics.HTTPRejected.WithLabelValues("rate_limit").Inc()
		if w.Header().Get("Retry-After") == "" {
			w.Header().Set("Retry-After", strconv.Itoa(int(window.Seconds())))
		}
		writeError(w, http.StatusTooManyRequests, "rate_limited", "too many requests, try again later")
	}
}
