package middleware

import (
	"net/http"
	"strings"

	"github.com/getsentry/sentry-go"

	"serotonyl.ru/birdwatch/internal/auth"
)

// Authenticate требует заголовок "Authorization: Bearer <access>".
// Пользователь из токена кладётся в контекст (auth.FromContext).
func Authenticate(tokens *auth.Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || strings.TrimSpace(token) == "" {
				writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
				return
			}

			claims, err := tokens.Parse(strings.TrimSpace(token), auth.TokenAccess)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "unauthorized", "invalid or expired token")
				return
			}

			p := claims.Principal()
			if hub := sentry.GetHubFromContext(r.Context()); hub != nil {
				hub.Scope().SetUser(sentry.User{ID: claims.Subject})
			}
			next.ServeHTTP(w, r.WithContext(auth.WithPrincipal(r.Context(), p)))
		})
	}
}
