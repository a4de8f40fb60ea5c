// Package common: pluralize.go форматирует счётчики для ответов API.
// Клиентское приложение англоязычное, поэтому правила английские.
package common

import "fmt"

// PluralizeDays возвращает "Day" или "Days" для числа n.
//
//	PluralizeDays(1) → "Day"
//	PluralizeDays(0) → "Days"
//	PluralizeDays(5) → "Days"
func PluralizeDays(n int) string {
	if n == 1 || n == -1 {
		return "Day"
	}
	return "Days"
}

// FormatStreakStatus создаёт строку статуса стрика для «bragging rights».
// Пример: FormatStreakStatus(3) → "3 Days Active"
func FormatStreakStatus(current int) string {
	return fmt.Sprintf("%d %s Active", current, PluralizeDays(current))
}

// FormatPercentBucket создаёт подпись перцентиля: FormatPercentBucket(5) → "Top 5%".
func FormatPercentBucket(p int) string {
	return fmt.Sprintf("Top %d%%", p)
}
