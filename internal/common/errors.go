// Package common: errors.go определяет таксономию ошибок API.
// Сервисы и репозитории возвращают (или оборачивают) эти ошибки,
// а HTTP-слой по errors.Is выбирает код ответа.
package common

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Базовые категории ошибок
var (
	// ErrInvalidParameters: отсутствующие или некорректные поля запроса (400)
	ErrInvalidParameters = errors.New("invalid parameters")
	// ErrUnauthorized: нет токена или он недействителен (401)
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden: пользователь аутентифицирован, но не владелец ресурса (403)
	ErrForbidden = errors.New("forbidden")
	// ErrNotFound: запись (место, наблюдение, птица, статья) не найдена (404)
	ErrNotFound = errors.New("not found")
	// ErrConflict: нарушение уникальности, например повторная птица в коллекции (409)
	ErrConflict = errors.New("conflict")
	// ErrUpstream: сбой внешнего сервиса (AI, платежи). Автоматических повторов нет (502)
	ErrUpstream = errors.New("upstream service error")
	// ErrTooManyAttempts: слишком много неудачных попыток входа (429)
	ErrTooManyAttempts = errors.New("too many attempts")
)

// FieldError описывает ошибку валидации с привязкой к полям запроса.
// errors.Is(err, ErrInvalidParameters) == true.
type FieldError struct {
	Fields map[string]string
}

// InvalidField создаёт FieldError для одного поля.
func InvalidField(field, reason string) *FieldError {
	return &FieldError{Fields: map[string]string{field: reason}}
}

// Add добавляет поле к ошибке и возвращает её же (для цепочек).
func (e *FieldError) Add(field, reason string) *FieldError {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	e.Fields[field] = reason
	return e
}

// Empty сообщает, что ни одного поля не добавлено.
func (e *FieldError) Empty() bool {
	return len(e.Fields) == 0
}

func (e *FieldError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "invalid parameters: " + strings.Join(parts, "; ")
}

func (e *FieldError) Unwrap() error {
	return ErrInvalidParameters
}

// Upstream оборачивает ошибку внешнего сервиса, сохраняя причину для логов.
func Upstream(service string, err error) error {
	return fmt.Errorf("%s: %w: %w", service, ErrUpstream, err)
}
