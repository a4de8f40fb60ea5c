package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/getsentry/sentry-go"
	json "github.com/goccy/go-json"
	log "github.com/sirupsen/logrus"
)

// Recover перехватывает панику в обработчике, логирует стек,
// отправляет событие в Sentry и отвечает 500.
func Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			// http.ErrAbortHandler: штатный способ прервать ответ, его пробрасываем
			if rec == http.ErrAbortHandler {
				panic(rec)
			}

			log.WithFields(log.Fields{
				"component":  "panic_recovery",
				"request_id": RequestIDFrom(r.Context()),
				"panic":      fmt.Sprintf("%v", rec),
				"stack":      string(debug.Stack()),
			}).Error("ПАНИКА в обработчике, восстановлено")

			hub := sentry.GetHubFromContext(r.Context())
			if hub == nil {
				hub = sentry.CurrentHub()
			}
			hub.Recover(rec)

			writeError(w, http.StatusInternalServerError, "internal_error", "")
		}()
		next.ServeHTTP(w, r)
	})
}

// SentryHub кладёт в контекст запроса клон хаба Sentry с данными запроса.
func SentryHub(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub := sentry.CurrentHub().Clone()
		hub.Scope().SetRequest(r)
		hub.Scope().SetTag("request_id", RequestIDFrom(r.Context()))
		next.ServeHTTP(w, r.WithContext(sentry.SetHubOnContext(r.Context(), hub)))
	})
}

// writeError пишет тело ошибки в том же формате, что и server.RespondError.
func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	body := map[string]string{"error": code}
	if message != "" {
		body["message"] = message
	}
	_ = json.NewEncoder(w).Encode(body)
}
