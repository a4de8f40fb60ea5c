// Package activity: handlers.go обрабатывает /api/user/recent-activity.
package activity

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"serotonyl.ru/birdwatch/internal/auth"
	"serotonyl.ru/birdwatch/internal/server"
)

// Handler обрабатывает запросы ленты.
type Handler struct {
	service *Service
}

// NewHandler создаёт обработчик ленты.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Routes монтирует маршруты в /api/user.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/recent-activity", func(r chi.Router) {
		r.Get("/", h.Recent)
		r.Get("/all", h.All)
		r.Get("/search", h.Search)
	})
}

// Recent: последние 10 действий.
func (h *Handler) Recent(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.Recent(r.Context(), auth.UserID(r.Context()))
	h.respond(w, r, items, err)
}

// All: вся лента.
func (h *Handler) All(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.All(r.Context(), auth.UserID(r.Context()))
	h.respond(w, r, items, err)
}

// Search: поиск по ?q=.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.Search(r.Context(), auth.UserID(r.Context()), r.URL.Query().Get("q"))
	h.respond(w, r, items, err)
}

func (h *Handler) respond(w http.ResponseWriter, r *http.Request, items []*Activity, err error) {
	if err != nil {
		server.RespondError(w, r, err)
		return
	}
	server.RespondJSON(w, http.StatusOK, items)
}
