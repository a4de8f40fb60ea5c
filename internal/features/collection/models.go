// Package collection управляет личной коллекцией птиц: записями,
// избранным, очками редкости, рангом и достижениями.
// models.go описывает структуры данных коллекции.
package collection

import (
	"time"

	"serotonyl.ru/birdwatch/internal/features/birds"
)

// Entry: птица в коллекции пользователя.
type Entry struct {
	ID         int64         `json:"id"`
	UserID     int64         `json:"-"`
	BirdID     int64         `json:"bird_id"`
	Bird       birds.Summary `json:"bird"`
	Location   string        `json:"location"`
	Latitude   *float64      `json:"latitude"`
	Longitude  *float64      `json:"longitude"`
	Notes      string        `json:"notes"`
	IsFavorite bool          `json:"is_favorite"`
	IsFeatured bool          `json:"is_featured"`
	DateAdded  time.Time     `json:"date_added"`
}

// RarityScore: кеш очков редкости пользователя (всегда выводится из коллекции).
type RarityScore struct {
	TierCounts
	TotalScore int        `json:"total_score"`
	UpdatedAt  *time.Time `json:"updated_at"`
}

// Achievement: полученное достижение.
type Achievement struct {
	ID           int64     `json:"id"`
	Type         string    `json:"achievement_type"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Value        int       `json:"value"`
	IconURL      string    `json:"icon_url"`
	DateAchieved time.Time `json:"date_achieved"`
}

// Stats: ответ GET /api/user/collection/stats.
type Stats struct {
	TotalBirds        int        `json:"total_birds"`
	FavoriteBirds     int        `json:"favorite_birds"`
	FeaturedBirds     int        `json:"featured_birds"`
	LocationsExplored int        `json:"locations_explored"`
	RarityCounts      TierCounts `json:"rarity_distribution"`
	TotalScore        int        `json:"total_score"`
	RarityIndex       float64    `json:"rarity_index"`
	RecentAdditions   []*Entry   `json:"recent_additions"`
}

// RarestFind: самая редкая находка пользователя.
type RarestFind struct {
	Label string         `json:"label"`
	Bird  *birds.Summary `json:"bird"`
}

// BraggingRights: ответ GET /api/user/bragging-rights.
type BraggingRights struct {
	RarestFind        RarestFind     `json:"rarest_find"`
	CollectionRank    string         `json:"collection_rank"`
	LocationsExplored int            `json:"locations_explored"`
	StreakStatus      string         `json:"streak_status"`
	Achievements      []*Achievement `json:"achievements"`
}

// Counters: агрегаты коллекции одного пользователя.
type Counters struct {
	Total     int
	Favorites int
	Featured  int
	Locations int
}

// Filter: условия выборки записей коллекции. Пустые поля не фильтруют.
type Filter struct {
	Query     string // имя или научное имя птицы
	Rarity    string
	Category  string
	Location  string
	Region    string // место записи или распространение вида
	Season    string // характер миграции
	From      *time.Time
	To        *time.Time // включительно
	Favorites bool
	Limit     int // 0: без ограничения
}

// ============================================================================
// Запросы
// ============================================================================

// CreateRequest: POST /api/user/collection/create.
type CreateRequest struct {
	BirdID    int64    `json:"bird_id" validate:"required,gt=0"`
	Location  string   `json:"location" validate:"max=255"`
	Latitude  *float64 `json:"latitude" validate:"omitempty,latitude"`
	Longitude *float64 `json:"longitude" validate:"omitempty,longitude"`
	Notes     string   `json:"notes"`
}

// UpdateRequest: PATCH /api/user/collection/{id}. Отсутствующие поля не меняются.
type UpdateRequest struct {
	Location   *string `json:"location" validate:"omitempty,max=255"`
	Notes      *string `json:"notes"`
	IsFeatured *bool   `json:"is_featured"`
}

// FavoriteRequest: POST /api/user/collection/favorite.
type FavoriteRequest struct {
	BirdID int64 `json:"bird_id" validate:"required,gt=0"`
}

// FavoriteResponse: результат переключения избранного.
type FavoriteResponse struct {
	Status string `json:"status"` // "favorited" | "unfavorited"
}

// SearchRequest: POST /api/user/collection/search.
type SearchRequest struct {
	Query    string `json:"query"`
	Rarity   string `json:"rarity" validate:"omitempty,oneof=S A B C"`
	Category string `json:"category"`
	Location string `json:"location"`
	DateFrom string `json:"date_from" validate:"omitempty,datetime=2006-01-02"`
	DateTo   string `json:"date_to" validate:"omitempty,datetime=2006-01-02"`
}

// Типы быстрых фильтров
const (
	FilterRarity = "rarity"
	FilterRegion = "region"
	FilterSeason = "season"
)

// FilterRequest: POST /api/user/collection/filter.
type FilterRequest struct {
	FilterType  string `json:"filter_type" validate:"required,oneof=rarity region season"`
	FilterValue string `json:"filter_value" validate:"notblank"`
}
