// Package common содержит общие утилиты, используемые во всём проекте:
// таксономию ошибок, работу с календарными датами и форматирование статусов.
package common

import (
	"time"

	log "github.com/sirupsen/logrus"
)

// LoadLocation загружает часовой пояс приложения.
// Если зона неизвестна (нет tzdata в контейнере), используем UTC.
func LoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		log.WithError(err).WithField("timezone", name).Warn("Не удалось загрузить часовой пояс, используем UTC")
		return time.UTC
	}
	return loc
}

// DateOf возвращает календарную дату t в поясе loc (полночь, без времени).
func DateOf(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// DaysBetween считает разницу в календарных днях между датами from и to.
// Считаем через UTC-полночи, чтобы переход на летнее время не давал 23/25 часов.
//
// Примеры:
//
//	DaysBetween(2024-01-01, 2024-01-02) → 1
//	DaysBetween(2024-01-02, 2024-01-02) → 0
//	DaysBetween(2024-01-03, 2024-01-01) → -2
func DaysBetween(from, to time.Time) int {
	a := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	b := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours() / 24)
}

// ParseDate разбирает дату формата 2006-01-02.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(time.DateOnly, s)
}
