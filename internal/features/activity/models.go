// Package activity ведёт ленту действий пользователя: распознавания,
// изменения коллекции, наблюдения, закладки.
// models.go описывает запись ленты.
package activity

import (
	"time"

	"serotonyl.ru/birdwatch/internal/features/birds"
)

// Типы действий
const (
	TypeIdentification = "identification"          // Распознавание птицы
	TypeCollected      = "added_to_collection"     // Птица добавлена в коллекцию
	TypeUncollected    = "removed_from_collection" // Птица удалена из коллекции
	TypeSighting       = "sighting"                // Сообщение о наблюдении
	TypeBookmark       = "bookmark"                // Статья в закладках
	TypeStreak         = "streak"                  // Новый рекорд серии
)

// Entry: данные для записи в ленту.
type Entry struct {
	UserID       int64
	Type         string
	BirdID       *int64
	Description  string
	Latitude     *float64
	Longitude    *float64
	LocationName string
}

// Activity: запись ленты в ответе API.
type Activity struct {
	ID           int64          `json:"id"`
	ActivityType string         `json:"activity_type"`
	Bird         *birds.Summary `json:"bird"`
	Description  string         `json:"description"`
	Latitude     *float64       `json:"latitude"`
	Longitude    *float64       `json:"longitude"`
	LocationName string         `json:"location_name"`
	CreatedAt    time.Time      `json:"created_at"`
}
