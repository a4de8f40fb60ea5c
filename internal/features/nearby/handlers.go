// Package nearby: handlers.go обрабатывает HTTP-запросы мест и наблюдений.
package nearby

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"serotonyl.ru/birdwatch/internal/auth"
	"serotonyl.ru/birdwatch/internal/geo"
	"serotonyl.ru/birdwatch/internal/server"
)

// Handler обрабатывает запросы мест и наблюдений.
type Handler struct {
	service *Service
}

// NewHandler создаёт обработчик.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Routes монтирует маршруты в /api/user (под аутентификацией).
func (h *Handler) Routes(r chi.Router) {
	r.Route("/nearby-spots", func(r chi.Router) {
		r.Get("/", h.NearbySpots)
		r.Post("/create", h.CreateSpot)
		r.Get("/{id}", h.GetSpot)
		r.Patch("/{id}", h.UpdateSpot)
		r.Delete("/{id}", h.DeleteSpot)
		r.Get("/{id}/birds", h.SpotSightings)
	})
	r.Route("/nearby-bird-activity", func(r chi.Router) {
		r.Get("/", h.NearbyActivity)
		r.Get("/search", h.SearchActivity)
		r.Get("/view-all", h.ViewAllActivity)
	})
	r.Route("/nearby-sightings", func(r chi.Router) {
		r.Post("/create", h.ReportSighting)
		r.Get("/{id}", h.GetSighting)
		r.Patch("/{id}", h.UpdateSighting)
		r.Delete("/{id}", h.DeleteSighting)
	})
}

// ModerationRoutes монтирует маршруты модерации в /api/moderation (только staff).
func (h *Handler) ModerationRoutes(r chi.Router) {
	r.Post("/spots/{id}/verify", h.VerifySpot)
	r.Post("/sightings/{id}/verify", h.VerifySighting)
	r.Get("/sightings/pending", h.PendingSightings)
}

// parseArea читает latitude, longitude и radius из строки запроса.
// Ошибки копятся в q и возвращаются через q.Err().
func parseArea(q *server.Query) SearchArea {
	area := SearchArea{
		Center: geo.Point{
			Lat: q.Float("latitude"),
			Lon: q.Float("longitude"),
		},
		RadiusKm: q.FloatOr("radius", DefaultRadiusKm),
	}
	if area.Center.Lat < -90 || area.Center.Lat > 90 {
		q.Invalid("latitude", "must be between -90 and 90")
	}
	if area.Center.Lon < -180 || area.Center.Lon > 180 {
		q.Invalid("longitude", "must be between -180 and 180")
	}
	if area.RadiusKm <= 0 {
		q.Invalid("radius", "must be greater than 0")
	}
	return area
}

// NearbySpots: GET /nearby-spots?latitude&longitude&radius
func (h *Handler) NearbySpots(w http.ResponseWriter, r *http.Request) {
	q := server.NewQuery(r)
	area := parseArea(q)
	if err := q.Err(); err != nil {
		server.RespondError(w, r, err)
		return
	}

	spots, err := h.service.NearbySpots(r.Context(), area)
	if err != nil {
		server.RespondError(w, r, err)
		return
	}
	server.RespondJSON(w, http.StatusOK, spots)
}

// NearbyActivity: GET /nearby-bird-activity: 10 ближайших проверенных наблюдений.
func (h *Handler) NearbyActivity(w http.ResponseWriter, r *http.Request) {
	h.activity(w, r, ActivityLimit)
}

// ViewAllActivity: GET /nearby-bird-activity/view-all: то же без ограничения.
func (h *Handler) ViewAllActivity(w http.ResponseWriter, r *http.Request) {
	h.activity(w, r, -1)
}

func (h *Handler) activity(w http.ResponseWriter, r *http.Request, limit int) {
	q := server.NewQuery(r)
	area := parseArea(q)
	period := q.OneOf("time_period", PeriodAll, PeriodAll, PeriodRecent)
	if err := q.Err(); err != nil {
		server.RespondError(w, r, err)
		return
	}

	sightings, err := h.service.NearbyActivity(r.Context(), area, period, limit)
	if err != nil {
		server.RespondError(w, r, err)
		return
	}
	server.RespondJSON(w, http.StatusOK, sightings)
}

// SearchActivity: GET /nearby-bird-activity/search?query&latitude&longitude&radius
func (h *Handler) SearchActivity(w http.ResponseWriter, r *http.Request) {
	q := server.NewQuery(r)
	area := parseArea(q)
	text := q.String("query", "")
	if err := q.Err(); err != nil {
		server.RespondError(w, r, err)
		return
	}

	sightings, err := h.service.SearchActivity(r.Context(), area, text)
	if err != nil {
		server.RespondError(w, r, err)
		return
	}
	server.RespondJSON(w, http.StatusOK, sightings)
}

// CreateSpot: POST /nearby-spots/create
func (h *Handler) CreateSpot(w http.ResponseWriter, r *http.Request) {
	var req CreateSpotRequest
	if err := server.DecodeJSON(r, &req); err != nil {
		server.RespondError(w, r, err)
		return
	}

	spot, err := h.service.CreateSpot(r.Context(), auth.UserID(r.Context()), req)
	if err != nil {
		server.RespondError(w, r, err)
		return
	}
	server.RespondJSON(w, http.StatusCreated, spot)
}

// GetSpot: GET /nearby-spots/{id}
func (h *Handler) GetSpot(w http.ResponseWriter, r *http.Request) {
	id, err := server.PathID(r, "id")
	if err != nil {
		server.RespondError(w, r, err)
		return
	}
	spot, err := h.service.GetSpot(r.Context(), id)
	if err != nil {
		server.RespondError(w, r, err)
		return
	}
	server.RespondJSON(w, http.StatusOK, spot)
}

// UpdateSpot: PATCH /nearby-spots/{id}
func (h *Handler) UpdateSpot(w http.ResponseWriter, r *http.Request) {
	id, err := server.PathID(r, "id")
	if err != nil {
		server.RespondError(w, r, err)
		return
	}
	var req UpdateSpotRequest
	if err := server.DecodeJSON(r, &req); err != nil {
		server.RespondError(w, r, err)
		return
	}

	spot, err := h.service.UpdateSpot(r.Context(), auth.UserID(r.Context()), id, req)
	if err != nil {
		server.RespondError(w, r, err)
		return
	}
	server.RespondJSON(w, http.StatusOK, spot)
}

// DeleteSpot: DELETE /nearby-spots/{id}
func (h *Handler) DeleteSpot(w http.ResponseWriter, r *http.Request) {
	id, err := server.PathID(r, "id")
	if err != nil {
		server.RespondError(w, r, err)
		return
	}
	if err := h.service.DeleteSpot(r.Context(), auth.UserID(r.Context()), id); err != nil {
		server.RespondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SpotSightings: GET /nearby-spots/{id}/birds
func (h *Handler) SpotSightings(w http.ResponseWriter, r *http.Request) {
	id, err := server.PathID(r, "id")
	if err != nil {
		server.RespondError(w, r, err)
		return
	}
	sightings, err := h.service.SpotSightings(r.Context(), id)
	if err != nil {
		server.RespondError(w, r, err)
		return
	}
	server.RespondJSON(w, http.StatusOK, sightings)
}

// ReportSighting: POST /nearby-sightings/create
func (h *Handler) ReportSighting(w http.ResponseWriter, r *http.Request) {
	var req CreateSightingRequest
	if err := server.DecodeJSON(r, &req); err != nil {
		server.RespondError(w, r, err)
		return
	}

	sighting, err := h.service.ReportSighting(r.Context(), auth.UserID(r.Context()), req)
	if err != nil {
		server.RespondError(w, r, err)
		return
	}
	server.RespondJSON(w, http.StatusCreated, sighting)
}

// GetSighting: GET /nearby-sightings/{id}
func (h *Handler) GetSighting(w http.ResponseWriter, r *http.Request) {
	id, err := server.PathID(r, "id")
	if err != nil {
		server.RespondError(w, r, err)
		return
	}
	sighting, err := h.service.GetSighting(r.Context(), id)
	if err != nil {
		server.RespondError(w, r, err)
		return
	}
	server.RespondJSON(w, http.StatusOK, sighting)
}

// UpdateSighting: PATCH /nearby-sightings/{id}
func (h *Handler) UpdateSighting(w http.ResponseWriter, r *http.Request) {
	id, err := server.PathID(r, "id")
	if err != nil {
		server.RespondError(w, r, err)
		return
	}
	var req UpdateSightingRequest
	if err := server.DecodeJSON(r, &req); err != nil {
		server.RespondError(w, r, err)
		return
	}

	sighting, err := h.service.UpdateSighting(r.Context(), auth.UserID(r.Context()), id, req)
	if err != nil {
		server.RespondError(w, r, err)
		return
	}
	server.RespondJSON(w, http.StatusOK, sighting)
}

// DeleteSighting: DELETE /nearby-sightings/{id}
func (h *Handler) DeleteSighting(w http.ResponseWriter, r *http.Request) {
	id, err := server.PathID(r, "id")
	if err != nil {
		server.RespondError(w, r, err)
		return
	}
	if err := h.service.DeleteSighting(r.Context(), auth.UserID(r.Context()), id); err != nil {
		server.RespondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// VerifySpot: POST /moderation/spots/{id}/verify
func (h *Handler) VerifySpot(w http.ResponseWriter, r *http.Request) {
	id, err := server.PathID(r, "id")
	if err != nil {
		server.RespondError(w, r, err)
		return
	}
	if err := h.service.VerifySpot(r.Context(), id); err != nil {
		server.RespondError(w, r, err)
		return
	}
	server.RespondJSON(w, http.StatusOK, map[string]any{"id": id, "is_verified": true})
}

// VerifySighting: POST /moderation/sightings/{id}/verify
func (h *Handler) VerifySighting(w http.ResponseWriter, r *http.Request) {
	id, err := server.PathID(r, "id")
	if err != nil {
		server.RespondError(w, r, err)
		return
	}
	if err := h.service.VerifySighting(r.Context(), id); err != nil {
		server.RespondError(w, r, err)
		return
	}
	server.RespondJSON(w, http.StatusOK, map[string]any{"id": id, "is_verified": true})
}

// PendingSightings: GET /moderation/sightings/pending
func (h *Handler) PendingSightings(w http.ResponseWriter, r *http.Request) {
	sightings, err := h.service.PendingSightings(r.Context())
	if err != nil {
		server.RespondError(w, r, err)
		return
	}
	server.RespondJSON(w, http.StatusOK, sightings)
}
