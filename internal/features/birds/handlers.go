// Package birds: handlers.go обрабатывает HTTP-запросы каталога и распознавания.
package birds

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"

	"github.com/go-chi/chi/v5"

	"serotonyl.ru/birdwatch/internal/auth"
	"serotonyl.ru/birdwatch/internal/common"
	"serotonyl.ru/birdwatch/internal/server"
)

// Handler обрабатывает запросы /api/birds.
type Handler struct {
	service   *Service
	limit     func(http.Handler) http.Handler
	maxUpload int64
}

// NewHandler создаёт обработчик. limit: ограничитель частоты для
// дорогих AI-эндпоинтов (может быть nil), maxUpload: предел тела multipart.
func NewHandler(service *Service, limit func(http.Handler) http.Handler, maxUpload int64) *Handler {
	if limit == nil {
		limit = func(next http.Handler) http.Handler { return next }
	}
	return &Handler{service: service, limit: limit, maxUpload: maxUpload}
}

// Routes монтирует маршруты в /api/birds (под аутентификацией).
func (h *Handler) Routes(r chi.Router) {
	r.Get("/list", h.List)
	r.Get("/details/{id}", h.Details)
	r.Get("/identifications", h.Identifications)
	r.With(h.limit).Post("/identify", h.Identify)
	r.With(h.limit).Post("/enhance", h.Enhance)
}

// List: GET /list?query&rarity&order
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := server.NewQuery(r)
	f := ListFilter{
		Query:  q.String("query", ""),
		Rarity: q.OneOf("rarity", "", Rarities...),
		Order:  q.OneOf("order", OrderNewest, OrderName, OrderRarity, OrderNewest),
	}
	if err := q.Err(); err != nil {
		server.RespondError(w, r, err)
		return
	}

	birds, err := h.service.List(r.Context(), f)
	if err != nil {
		server.RespondError(w, r, err)
		return
	}
	server.RespondJSON(w, http.StatusOK, birds)
}

// Details: GET /details/{id}
func (h *Handler) Details(w http.ResponseWriter, r *http.Request) {
	id, err := server.PathID(r, "id")
	if err != nil {
		server.RespondError(w, r, err)
		return
	}
	d, err := h.service.Details(r.Context(), id)
	if err != nil {
		server.RespondError(w, r, err)
		return
	}
	server.RespondJSON(w, http.StatusOK, d)
}

// Identifications: GET /identifications
func (h *Handler) Identifications(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.Identifications(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		server.RespondError(w, r, err)
		return
	}
	server.RespondJSON(w, http.StatusOK, list)
}

// Identify: POST /identify (multipart: image или sound, latitude, longitude, location_name)
func (h *Handler) Identify(w http.ResponseWriter, r *http.Request) {
	if err := h.parseMultipart(w, r); err != nil {
		server.RespondError(w, r, err)
		return
	}

	req := IdentifyRequest{}
	var err error
	if req.Image, err = formFile(r, "image"); err != nil {
		server.RespondError(w, r, err)
		return
	}
	if req.Sound, err = formFile(r, "sound"); err != nil {
		server.RespondError(w, r, err)
		return
	}

	q := server.NewForm(r)
	req.Latitude = q.FloatPtr("latitude")
	req.Longitude = q.FloatPtr("longitude")
	req.LocationName = q.String("location_name", "")
	if req.Latitude != nil && (*req.Latitude < -90 || *req.Latitude > 90) {
		q.Invalid("latitude", "must be between -90 and 90")
	}
	if req.Longitude != nil && (*req.Longitude < -180 || *req.Longitude > 180) {
		q.Invalid("longitude", "must be between -180 and 180")
	}
	if err := q.Err(); err != nil {
		server.RespondError(w, r, err)
		return
	}

	rec, err := h.service.Identify(r.Context(), auth.UserID(r.Context()), req)
	if err != nil {
		server.RespondError(w, r, err)
		return
	}
	server.RespondJSON(w, http.StatusCreated, rec)
}

// Enhance: POST /enhance (multipart: image)
func (h *Handler) Enhance(w http.ResponseWriter, r *http.Request) {
	if err := h.parseMultipart(w, r); err != nil {
		server.RespondError(w, r, err)
		return
	}
	image, err := formFile(r, "image")
	if err != nil {
		server.RespondError(w, r, err)
		return
	}

	resp, err := h.service.Enhance(r.Context(), image)
	if err != nil {
		server.RespondError(w, r, err)
		return
	}
	server.RespondJSON(w, http.StatusOK, resp)
}

// parseMultipart ограничивает размер тела и разбирает форму.
func (h *Handler) parseMultipart(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return common.InvalidField("body", "upload is too large")
		}
		return common.InvalidField("body", "multipart/form-data body is required")
	}
	return nil
}

// formFile читает файл поля name; отсутствующее поле даёт nil без ошибки.
func formFile(r *http.Request, name string) (*Upload, error) {
	f, header, err := r.FormFile(name)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, common.InvalidField(name, "could not read file")
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, common.InvalidField(name, "could not read file")
	}
	if len(data) == 0 {
		return nil, common.InvalidField(name, "file is empty")
	}
	return &Upload{
		Data:        data,
		Filename:    filepath.Base(header.Filename),
		ContentType: contentType(header, data),
	}, nil
}

// contentType берёт тип из заголовка части, а если его нет, определяет по содержимому.
func contentType(h *multipart.FileHeader, data []byte) string {
	if ct := h.Header.Get("Content-Type"); ct != "" && ct != "application/octet-stream" {
		return ct
	}
	return http.DetectContentType(data)
}
