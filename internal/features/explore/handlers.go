// Package explore: handlers.go обрабатывает маршруты раздела «Обзор» в /api/user.
package explore

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"serotonyl.ru/birdwatch/internal/server"
)

// Handler обрабатывает запросы раздела.
type Handler struct {
	service *Service
}

// NewHandler создаёт обработчик.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Routes монтирует маршруты в /api/user.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/explore", h.Featured)
	r.Get("/search", h.Search)
	r.Get("/common-feeder-birds", h.FeederBirds)
	r.Get("/birds-by-category", h.ByCategory)
}

// Featured: GET /explore
func (h *Handler) Featured(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.Featured(r.Context())
	respond(w, r, list, err)
}

// Search: GET /search?query&filter=rarity|region&value
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	list, err := h.service.Search(r.Context(), SearchRequest{
		Query:  q.Get("query"),
		Filter: q.Get("filter"),
		Value:  q.Get("value"),
	})
	respond(w, r, list, err)
}

// FeederBirds: GET /common-feeder-birds
func (h *Handler) FeederBirds(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.FeederBirds(r.Context())
	respond(w, r, list, err)
}

// ByCategory: GET /birds-by-category?category
func (h *Handler) ByCategory(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ByCategory(r.Context(), r.URL.Query().Get("category"))
	respond(w, r, list, err)
}

func respond(w http.ResponseWriter, r *http.Request, v any, err error) {
	if err != nil {
		server.RespondError(w, r, err)
		return
	}
	server.RespondJSON(w, http.StatusOK, v)
}
