// Package streak: handlers.go отдаёт прогресс стрика: текущую серию и рекорд.
package streak

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"serotonyl.ru/birdwatch/internal/auth"
	"serotonyl.ru/birdwatch/internal/server"
)

// Handler обрабатывает запросы стрик-системы.
type Handler struct {
	service *Service
}

// NewHandler создаёт новый обработчик.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Routes монтирует маршруты в /api/user.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/streak", h.GetStreak)
}

// GetStreak: GET /api/user/streak.
//
// Пример ответа:
//
//	{"current_streak": 8, "longest_streak": 12, "last_activity_date": "2024-05-01", "status": "8 Days Active"}
func (h *Handler) GetStreak(w http.ResponseWriter, r *http.Request) {
	st, err := h.service.Get(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		server.RespondError(w, r, err)
		return
	}
	server.RespondJSON(w, http.StatusOK, Response(st))
}
