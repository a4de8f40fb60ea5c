// Package validation проверяет тела запросов через go-playground/validator.
// Валидатор создаётся один раз (sync.Once) и кеширует разбор структур.
//
// Пример:
//
//	type CreateSpotRequest struct {
//	    Name     string   `json:"name" validate:"required,max=255"`
//	    Latitude *float64 `json:"latitude" validate:"required,latitude"`
//	}
//
//	if err := validation.Struct(&req); err != nil {
//	    server.RespondError(w, r, err) // 400 с полями
//	}
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"serotonyl.ru/birdwatch/internal/common"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// Get возвращает общий экземпляр валидатора.
// Имена полей в ошибках берутся из json-тегов, чтобы клиент видел "latitude", а не "Latitude".
func Get() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})
		// notblank из validator/non-standard не регистрируется по умолчанию
		_ = validate.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
			return strings.TrimSpace(fl.Field().String()) != ""
		})
	})
	return validate
}

// Struct проверяет структуру. Возвращает nil или *common.FieldError.
func Struct(s any) error {
	err := Get().Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		// InvalidValidationError: передали не структуру (ошибка программиста)
		return fmt.Errorf("validation: %w", err)
	}

	fe := &common.FieldError{}
	for _, v := range verrs {
		fe.Add(v.Field(), message(v))
	}
	return fe
}

// message переводит тег валидатора в понятный клиенту текст.
func message(v validator.FieldError) string {
	switch v.Tag() {
	case "required", "notblank":
		return "is required"
	case "latitude":
		return "must be between -90 and 90"
	case "longitude":
		return "must be between -180 and 180"
	case "email":
		return "must be a valid email"
	case "min":
		if v.Kind() == reflect.String {
			return fmt.Sprintf("must be at least %s characters", v.Param())
		}
		return fmt.Sprintf("must be at least %s", v.Param())
	case "max":
		if v.Kind() == reflect.String {
			return fmt.Sprintf("must be at most %s characters", v.Param())
		}
		return fmt.Sprintf("must be at most %s", v.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", v.Param())
	case "len":
		return fmt.Sprintf("must be exactly %s characters", v.Param())
	case "oneof":
		return "must be one of: " + v.Param()
	case "numeric":
		return "must be numeric"
	case "datetime":
		return "must be a date in format " + v.Param()
	case "url":
		return "must be a valid URL"
	default:
		return fmt.Sprintf("failed on '%s'", v.Tag())
	}
}
