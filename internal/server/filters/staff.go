// Package filters содержит фильтры доступа к маршрутам.
package filters

import (
	"context"
	"net/http"

	json "github.com/goccy/go-json"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/birdwatch/internal/auth"
)

// StaffChecker проверяет флаг is_staff по базе.
type StaffChecker interface {
	IsStaff(ctx context.Context, userID int64) (bool, error)
}

// StaffFilter пропускает только модераторов.
// Флаг в токене может устареть (права сняли после входа), поэтому
// сначала быстро отсекаем по claims, затем подтверждаем по БД.
type StaffFilter struct {
	users StaffChecker
}

// NewStaffFilter создаёт фильтр.
func NewStaffFilter(users StaffChecker) *StaffFilter {
	return &StaffFilter{users: users}
}

// Middleware отвечает 403 всем, кроме модераторов.
func (f *StaffFilter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := auth.FromContext(r.Context())
		if !ok {
			deny(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		logger := log.WithFields(log.Fields{
			"component": "StaffFilter",
			"user_id":   p.UserID,
			"path":      r.URL.Path,
		})

		// 1) Токен без флага: дальше не идём
		if !p.Staff {
			logger.Debug("deny: token without staff flag")
			deny(w, http.StatusForbidden, "forbidden")
			return
		}

		// 2) Подтверждаем по БД
		isStaff, err := f.users.IsStaff(r.Context(), p.UserID)
		if err != nil {
			logger.WithError(err).Error("staff check failed (db)")
			deny(w, http.StatusInternalServerError, "internal_error")
			return
		}
		if !isStaff {
			logger.Info("deny: staff flag revoked")
			deny(w, http.StatusForbidden, "forbidden")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func deny(w http.ResponseWriter, status int, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": code})
}
