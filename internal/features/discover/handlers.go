// Package discover: handlers.go обрабатывает /api/user/discovery-learn, статьи и закладки.
package discover

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"serotonyl.ru/birdwatch/internal/auth"
	"serotonyl.ru/birdwatch/internal/server"
)

// Handler обрабатывает запросы статей и закладок.
type Handler struct {
	service *Service
}

// NewHandler создаёт обработчик.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Routes монтирует маршруты в /api/user.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/discovery-learn", h.Learn)
	r.Get("/article-details/{id}", h.Details)
	r.Post("/bookmark", h.Bookmark)
	r.Get("/bookmarked-articles", h.Bookmarks)
	r.Delete("/bookmarks/{id}", h.DeleteBookmark)
}

// StaffRoutes монтирует редактирование статей в /api/user (только staff).
func (h *Handler) StaffRoutes(r chi.Router) {
	r.Post("/articles", h.CreateArticle)
	r.Patch("/articles/{id}", h.UpdateArticle)
	r.Delete("/articles/{id}", h.DeleteArticle)
}

// Learn: GET /discovery-learn?category
func (h *Handler) Learn(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.Learn(r.Context(), r.URL.Query().Get("category"))
	respond(w, r, http.StatusOK, list, err)
}

// Details: GET /article-details/{id}
func (h *Handler) Details(w http.ResponseWriter, r *http.Request) {
	id, err := server.PathID(r, "id")
	if err != nil {
		server.RespondError(w, r, err)
		return
	}
	d, err := h.service.Details(r.Context(), auth.UserID(r.Context()), id)
	respond(w, r, http.StatusOK, d, err)
}

// CreateArticle: POST /articles
func (h *Handler) CreateArticle(w http.ResponseWriter, r *http.Request) {
	var req ArticleRequest
	if err := server.DecodeJSON(r, &req); err != nil {
		server.RespondError(w, r, err)
		return
	}
	a, err := h.service.CreateArticle(r.Context(), req)
	respond(w, r, http.StatusCreated, a, err)
}

// UpdateArticle: PATCH /articles/{id}
func (h *Handler) UpdateArticle(w http.ResponseWriter, r *http.Request) {
	id, err := server.PathID(r, "id")
	if err != nil {
		server.RespondError(w, r, err)
		return
	}
	var req ArticleUpdateRequest
	if err := server.DecodeJSON(r, &req); err != nil {
		server.RespondError(w, r, err)
		return
	}
	a, err := h.service.UpdateArticle(r.Context(), id, req)
	respond(w, r, http.StatusOK, a, err)
}

// DeleteArticle: DELETE /articles/{id}
func (h *Handler) DeleteArticle(w http.ResponseWriter, r *http.Request) {
	id, err := server.PathID(r, "id")
	if err != nil {
		server.RespondError(w, r, err)
		return
	}
	if err := h.service.DeleteArticle(r.Context(), id); err != nil {
		server.RespondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Bookmark: POST /bookmark {article_id, notes}
func (h *Handler) Bookmark(w http.ResponseWriter, r *http.Request) {
	var req BookmarkRequest
	if err := server.DecodeJSON(r, &req); err != nil {
		server.RespondError(w, r, err)
		return
	}
	res, err := h.service.Bookmark(r.Context(), auth.UserID(r.Context()), req)
	respond(w, r, http.StatusOK, res, err)
}

// Bookmarks: GET /bookmarked-articles
func (h *Handler) Bookmarks(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.Bookmarks(r.Context(), auth.UserID(r.Context()))
	respond(w, r, http.StatusOK, list, err)
}

// DeleteBookmark: DELETE /bookmarks/{id}
func (h *Handler) DeleteBookmark(w http.ResponseWriter, r *http.Request) {
	id, err := server.PathID(r, "id")
	if err != nil {
		server.RespondError(w, r, err)
		return
	}
	if err := h.service.DeleteBookmark(r.Context(), auth.UserID(r.Context()), id); err != nil {
		server.RespondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func respond(w http.ResponseWriter, r *http.Request, status int, v any, err error) {
	if err != nil {
		server.RespondError(w, r, err)
		return
	}
	server.RespondJSON(w, status, v)
}
