// Package streak управляет ежедневными сериями (стриками) пользователя.
// models.go описывает структуру данных стрика.
package streak

import "time"

// State: состояние автомата стрика.
type State struct {
	Current      int        // Текущая серия (дней подряд)
	Longest      int        // Личный рекорд
	LastActivity *time.Time // Календарная дата последнего действия; nil, если действий не было
}

// Streak представляет запись стрика пользователя.
// Стрик растёт, когда пользователь каждый день добавляет птицу в коллекцию
// или сообщает о наблюдении.
type Streak struct {
	UserID int64
	State
	UpdatedAt time.Time
}

// StreakResponse: ответ GET /api/user/streak.
type StreakResponse struct {
	CurrentStreak    int     `json:"current_streak"`
	LongestStreak    int     `json:"longest_streak"`
	LastActivityDate *string `json:"last_activity_date"`
	Status           string  `json:"status"`
}
