// Package collection: handlers.go обрабатывает HTTP-запросы коллекции.
package collection

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"serotonyl.ru/birdwatch/internal/auth"
	"serotonyl.ru/birdwatch/internal/server"
)

// Handler обрабатывает запросы коллекции.
type Handler struct {
	service *Service
}

// NewHandler создаёт обработчик.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Routes монтирует маршруты в /api/user (под аутентификацией).
func (h *Handler) Routes(r chi.Router) {
	r.Route("/collection", func(r chi.Router) {
		r.Get("/", h.List)
		r.Post("/create", h.Create)
		r.Get("/favorites", h.Favorites)
		r.Post("/favorite", h.ToggleFavorite)
		r.Post("/search", h.Search)
		r.Post("/filter", h.Filter)
		r.Get("/stats", h.Stats)
		r.Get("/rarity-highlights", h.Highlights)
		r.Get("/categories", h.Categories)
		r.Get("/{id}", h.Get)
		r.Patch("/{id}", h.Update)
		r.Delete("/{id}", h.Delete)
	})
	r.Get("/bragging-rights", h.Bragging)
	r.Get("/achievements", h.Achievements)
}

func respond(w http.ResponseWriter, r *http.Request, v any, err error) {
	if err != nil {
		server.RespondError(w, r, err)
		return
	}
	server.RespondJSON(w, http.StatusOK, v)
}

// List: GET /collection
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	entries, err := h.service.List(r.Context(), auth.UserID(r.Context()), Filter{})
	respond(w, r, entries, err)
}

// Favorites: GET /collection/favorites
func (h *Handler) Favorites(w http.ResponseWriter, r *http.Request) {
	entries, err := h.service.List(r.Context(), auth.UserID(r.Context()), Filter{Favorites: true})
	respond(w, r, entries, err)
}

// Create: POST /collection/create
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := server.DecodeJSON(r, &req); err != nil {
		server.RespondError(w, r, err)
		return
	}
	entry, err := h.service.Create(r.Context(), auth.UserID(r.Context()), req)
	if err != nil {
		server.RespondError(w, r, err)
		return
	}
	server.RespondJSON(w, http.StatusCreated, entry)
}

// Get: GET /collection/{id}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := server.PathID(r, "id")
	if err != nil {
		server.RespondError(w, r, err)
		return
	}
	entry, err := h.service.Get(r.Context(), auth.UserID(r.Context()), id)
	respond(w, r, entry, err)
}

// Update: PATCH /collection/{id}
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := server.PathID(r, "id")
	if err != nil {
		server.RespondError(w, r, err)
		return
	}
	var req UpdateRequest
	if err := server.DecodeJSON(r, &req); err != nil {
		server.RespondError(w, r, err)
		return
	}
	entry, err := h.service.Update(r.Context(), auth.UserID(r.Context()), id, req)
	respond(w, r, entry, err)
}

// Delete: DELETE /collection/{id}
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := server.PathID(r, "id")
	if err != nil {
		server.RespondError(w, r, err)
		return
	}
	if err := h.service.Delete(r.Context(), auth.UserID(r.Context()), id); err != nil {
		server.RespondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ToggleFavorite: POST /collection/favorite
//
//	{"bird_id": 12} → {"status": "favorited"}
func (h *Handler) ToggleFavorite(w http.ResponseWriter, r *http.Request) {
	var req FavoriteRequest
	if err := server.DecodeJSON(r, &req); err != nil {
		server.RespondError(w, r, err)
		return
	}
	resp, err := h.service.ToggleFavorite(r.Context(), auth.UserID(r.Context()), req.BirdID)
	respond(w, r, resp, err)
}

// Search: POST /collection/search
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := server.DecodeJSON(r, &req); err != nil {
		server.RespondError(w, r, err)
		return
	}
	entries, err := h.service.Search(r.Context(), auth.UserID(r.Context()), req)
	respond(w, r, entries, err)
}

// Filter: POST /collection/filter
func (h *Handler) Filter(w http.ResponseWriter, r *http.Request) {
	var req FilterRequest
	if err := server.DecodeJSON(r, &req); err != nil {
		server.RespondError(w, r, err)
		return
	}
	entries, err := h.service.QuickFilter(r.Context(), auth.UserID(r.Context()), req)
	respond(w, r, entries, err)
}

// Stats: GET /collection/stats
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context(), auth.UserID(r.Context()))
	respond(w, r, stats, err)
}

// Highlights: GET /collection/rarity-highlights
func (h *Handler) Highlights(w http.ResponseWriter, r *http.Request) {
	score, err := h.service.Highlights(r.Context(), auth.UserID(r.Context()))
	respond(w, r, score, err)
}

// Categories: GET /collection/categories
func (h *Handler) Categories(w http.ResponseWriter, r *http.Request) {
	cats, err := h.service.Categories(r.Context())
	respond(w, r, cats, err)
}

// Bragging: GET /bragging-rights
//
// Пример ответа:
//
//	{"rarest_find": {"label": "A-Rarity Find", "bird": {...}}, "collection_rank": "Top 10%",
//	 "locations_explored": 4, "streak_status": "1 Day Active", "achievements": [...]}
func (h *Handler) Bragging(w http.ResponseWriter, r *http.Request) {
	b, err := h.service.Bragging(r.Context(), auth.UserID(r.Context()))
	respond(w, r, b, err)
}

// Achievements: GET /achievements
func (h *Handler) Achievements(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.Achievements(r.Context(), auth.UserID(r.Context()))
	respond(w, r, list, err)
}
