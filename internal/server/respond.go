// Package server: respond.go пишет JSON-ответы и переводит ошибки домена в HTTP-коды.
package server

import (
	"errors"
	"io"
	"net/http"

	"github.com/getsentry/sentry-go"
	json "github.com/goccy/go-json"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/birdwatch/internal/common"
	"serotonyl.ru/birdwatch/internal/server/middleware"
	"serotonyl.ru/birdwatch/internal/validation"
)

// ErrorBody: формат тела ошибки.
type ErrorBody struct {
	Error   string            `json:"error"`
	Message string            `json:"message,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// RespondJSON пишет v как JSON с указанным статусом.
func RespondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Warn("Ошибка записи JSON-ответа")
	}
}

// RespondError выбирает код ответа по категории ошибки.
// Детали 5xx не уходят клиенту: только в лог и Sentry.
func RespondError(w http.ResponseWriter, r *http.Request, err error) {
	var fe *common.FieldError
	switch {
	case errors.As(err, &fe):
		RespondJSON(w, http.StatusBadRequest, ErrorBody{
			Error: "invalid_parameters", Message: "invalid parameters", Fields: fe.Fields,
		})
	case errors.Is(err, common.ErrInvalidParameters):
		RespondJSON(w, http.StatusBadRequest, ErrorBody{Error: "invalid_parameters", Message: err.Error()})
	case errors.Is(err, common.ErrUnauthorized):
		RespondJSON(w, http.StatusUnauthorized, ErrorBody{Error: "unauthorized", Message: "authentication required"})
	case errors.Is(err, common.ErrForbidden):
		RespondJSON(w, http.StatusForbidden, ErrorBody{Error: "forbidden", Message: "you do not have access to this resource"})
	case errors.Is(err, common.ErrNotFound):
		RespondJSON(w, http.StatusNotFound, ErrorBody{Error: "not_found", Message: err.Error()})
	case errors.Is(err, common.ErrConflict):
		RespondJSON(w, http.StatusConflict, ErrorBody{Error: "conflict", Message: err.Error()})
	case errors.Is(err, common.ErrTooManyAttempts):
		RespondJSON(w, http.StatusTooManyRequests, ErrorBody{Error: "too_many_attempts", Message: "too many failed attempts, try again later"})
	case errors.Is(err, common.ErrUpstream):
		report(r, err, "Ошибка внешнего сервиса")
		RespondJSON(w, http.StatusBadGateway, ErrorBody{Error: "upstream_error", Message: "external service is unavailable, try again later"})
	default:
		report(r, err, "Внутренняя ошибка")
		RespondJSON(w, http.StatusInternalServerError, ErrorBody{Error: "internal_error"})
	}
}

func report(r *http.Request, err error, msg string) {
	log.WithFields(log.Fields{
		"request_id": middleware.RequestIDFrom(r.Context()),
		"method":     r.Method,
		"path":       r.URL.Path,
	}).WithError(err).Error(msg)

	if hub := sentry.GetHubFromContext(r.Context()); hub != nil {
		hub.CaptureException(err)
		return
	}
	sentry.CaptureException(err)
}

// DecodeJSON читает тело запроса в v и проверяет его валидатором.
// Пустое или битое тело даёт ErrInvalidParameters с полем "body".
func DecodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return common.InvalidField("body", "request body is required")
		}
		return common.InvalidField("body", "malformed JSON")
	}
	return validation.Struct(v)
}
