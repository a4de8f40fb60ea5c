// Package subscription: handlers.go обрабатывает /api/subscription.
package subscription

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"serotonyl.ru/birdwatch/internal/auth"
	"serotonyl.ru/birdwatch/internal/common"
	"serotonyl.ru/birdwatch/internal/server"
)

// MaxWebhookBody: предел тела вебхука.
const MaxWebhookBody = 64 << 10

// Handler обрабатывает запросы подписок.
type Handler struct {
	service *Service
}

// NewHandler создаёт обработчик.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Routes монтирует маршруты в /api/subscription (под аутентификацией).
func (h *Handler) Routes(r chi.Router) {
	r.Get("/plans", h.Plans)
	r.Post("/plans/{id}/subscribe", h.Subscribe)
	r.Post("/cancel", h.Cancel)
	r.Get("/status", h.Status)
	r.Get("/history", h.History)
}

// WebhookRoutes монтирует вебхук Stripe (без аутентификации, проверяется подпись).
func (h *Handler) WebhookRoutes(r chi.Router) {
	r.Post("/webhook", h.Webhook)
}

// Plans: GET /plans
func (h *Handler) Plans(w http.ResponseWriter, r *http.Request) {
	plans, err := h.service.Plans(r.Context())
	respond(w, r, plans, err)
}

// Subscribe: POST /plans/{id}/subscribe
func (h *Handler) Subscribe(w http.ResponseWriter, r *http.Request) {
	id, err := server.PathID(r, "id")
	if err != nil {
		server.RespondError(w, r, err)
		return
	}
	p, _ := auth.FromContext(r.Context())
	resp, err := h.service.Subscribe(r.Context(), p.UserID, p.Email, id)
	respond(w, r, resp, err)
}

// Cancel: POST /cancel
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Cancel(r.Context(), auth.UserID(r.Context())); err != nil {
		server.RespondError(w, r, err)
		return
	}
	server.RespondJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

// Status: GET /status
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	st, err := h.service.Status(r.Context(), auth.UserID(r.Context()))
	respond(w, r, st, err)
}

// History: GET /history
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.History(r.Context(), auth.UserID(r.Context()))
	respond(w, r, list, err)
}

// Webhook: POST /webhook
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxWebhookBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			server.RespondError(w, r, common.InvalidField("body", "payload is too large"))
			return
		}
		server.RespondError(w, r, common.InvalidField("body", "could not read body"))
		return
	}
	if err := h.service.HandleWebhook(r.Context(), payload, r.Header.Get("Stripe-Signature")); err != nil {
		server.RespondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func respond(w http.ResponseWriter, r *http.Request, v any, err error) {
	if err != nil {
		server.RespondError(w, r, err)
		return
	}
	server.RespondJSON(w, http.StatusOK, v)
}
