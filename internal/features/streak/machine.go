// Package streak: machine.go содержит автомат переходов стрика.
package streak

import (
	"time"

	"serotonyl.ru/birdwatch/internal/common"
)

// Advance применяет одно засчитываемое действие в день today (календарная дата).
//
// Переходы:
//
//	действий не было        → Current = 1
//	прошлое действие вчера  → Current + 1
//	прошлое действие сегодня → без изменений
//	перерыв больше дня       → Current = 1 (первый день новой серии)
//
// После любого перехода LastActivity = today и Current <= Longest.
// Дата из будущего (сдвиг часов) обрабатывается как сегодняшняя: состояние не меняется.
func Advance(s State, today time.Time) State {
	next := s

	if s.LastActivity == nil {
		next.Current = 1
	} else {
		switch days := common.DaysBetween(*s.LastActivity, today); {
		case days <= 0:
			return s
		case days == 1:
			next.Current = s.Current + 1
		default:
			next.Current = 1
		}
	}

	if next.Current > next.Longest {
		next.Longest = next.Current
	}
	d := today
	next.LastActivity = &d
	return next
}

// Expired сообщает, что серия уже прервана: последнее действие было раньше вчерашнего дня.
func Expired(s State, today time.Time) bool {
	return s.LastActivity != nil && common.DaysBetween(*s.LastActivity, today) > 1
}
