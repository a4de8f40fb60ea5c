package server

import (
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"serotonyl.ru/birdwatch/internal/common"
)

// Query разбирает параметры строки запроса и копит ошибки по полям.
//
// Пример:
//
//	q := server.NewQuery(r)
//	lat := q.Float("latitude")
//	radius := q.FloatOr("radius", 10)
//	if err := q.Err(); err != nil { ... }
type Query struct {
	values url.Values
	errs   common.FieldError
}

// NewQuery создаёт разборщик для строки запроса.
func NewQuery(r *http.Request) *Query {
	return &Query{values: r.URL.Query()}
}

// NewForm создаёт разборщик для полей формы (в том числе multipart).
// Форма должна быть уже разобрана (ParseMultipartForm / ParseForm).
func NewForm(r *http.Request) *Query {
	return &Query{values: r.Form}
}

func (q *Query) raw(name string) (string, bool) {
	v := strings.TrimSpace(q.values.Get(name))
	return v, v != ""
}

// FloatPtr возвращает необязательный числовой параметр или nil.
func (q *Query) FloatPtr(name string) *float64 {
	v, ok := q.raw(name)
	if !ok {
		return nil
	}
	f := q.parseFloat(name, v, 0)
	return &f
}

// Float возвращает обязательный числовой параметр.
func (q *Query) Float(name string) float64 {
	v, ok := q.raw(name)
	if !ok {
		q.errs.Add(name, "is required")
		return 0
	}
	return q.parseFloat(name, v, 0)
}

// FloatOr возвращает необязательный числовой параметр или def.
func (q *Query) FloatOr(name string, def float64) float64 {
	v, ok := q.raw(name)
	if !ok {
		return def
	}
	return q.parseFloat(name, v, def)
}

func (q *Query) parseFloat(name, v string, def float64) float64 {
	f, err := strconv.ParseFloat(v, 64)
	// NaN и Inf тоже числа для ParseFloat, но не для нас
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		q.errs.Add(name, "must be a number")
		return def
	}
	return f
}

// String возвращает строковый параметр или def.
func (q *Query) String(name, def string) string {
	if v, ok := q.raw(name); ok {
		return v
	}
	return def
}

// OneOf возвращает параметр, если он из списка допустимых; пустой даёт def.
func (q *Query) OneOf(name, def string, allowed ...string) string {
	v, ok := q.raw(name)
	if !ok {
		return def
	}
	for _, a := range allowed {
		if v == a {
			return v
		}
	}
	q.errs.Add(name, "must be one of: "+strings.Join(allowed, ", "))
	return def
}

// Date возвращает необязательную дату YYYY-MM-DD.
func (q *Query) Date(name string) *time.Time {
	v, ok := q.raw(name)
	if !ok {
		return nil
	}
	d, err := common.ParseDate(v)
	if err != nil {
		q.errs.Add(name, "must be a date in format YYYY-MM-DD")
		return nil
	}
	return &d
}

// Invalid добавляет ошибку для поля вручную (проверки диапазонов в хендлерах).
func (q *Query) Invalid(name, reason string) {
	q.errs.Add(name, reason)
}

// Err возвращает накопленные ошибки или nil.
func (q *Query) Err() error {
	if q.errs.Empty() {
		return nil
	}
	return &q.errs
}

// PathID разбирает числовой параметр пути ({id}).
func PathID(r *http.Request, name string) (int64, error) {
	v := chi.URLParam(r, name)
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil || id <= 0 {
		return 0, common.InvalidField(name, "must be a positive integer")
	}
	return id, nil
}
