// Package nearby реализует места для наблюдений (spots), сообщения о
// наблюдениях (sightings) и поиск ближайших из них к пользователю.
// models.go описывает сущности и тела запросов.
package nearby

import (
	"time"

	"serotonyl.ru/birdwatch/internal/features/birds"
	"serotonyl.ru/birdwatch/internal/geo"
)

// Значения time_period
const (
	PeriodAll    = "all"
	PeriodRecent = "recent"
)

// RecentDays: глубина периода recent.
const RecentDays = 30

// Spot: место для наблюдения за птицами.
type Spot struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
	CreatedBy   int64     `json:"created_by"`
	IsVerified  bool      `json:"is_verified"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (s *Spot) Location() geo.Point { return geo.Point{Lat: s.Latitude, Lon: s.Longitude} }
func (s *Spot) Key() int64          { return s.ID }

// Sighting: сообщение о том, что птицу видели в месте.
// Координаты наблюдения берутся от места.
type Sighting struct {
	ID           int64         `json:"id"`
	Spot         *Spot         `json:"spot"`
	Bird         birds.Summary `json:"bird"`
	ReportedBy   int64         `json:"reported_by"`
	SightingDate string        `json:"sighting_date"` // YYYY-MM-DD
	Notes        string        `json:"notes"`
	ImageURL     string        `json:"image_url"`
	IsVerified   bool          `json:"is_verified"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

func (s *Sighting) Location() geo.Point { return s.Spot.Location() }
func (s *Sighting) Key() int64          { return s.ID }

// NearbySpot: место с расстоянием до пользователя.
type NearbySpot struct {
	Spot
	Distance float64 `json:"distance"`
}

// NearbySighting: наблюдение с расстоянием до пользователя.
type NearbySighting struct {
	Sighting
	Distance float64 `json:"distance"`
}

func toNearbySpots(ranked []Ranked[*Spot]) []NearbySpot {
	out := make([]NearbySpot, 0, len(ranked))
	for _, r := range ranked {
		out = append(out, NearbySpot{Spot: *r.Item, Distance: r.DistanceKm})
	}
	return out
}

func toNearbySightings(ranked []Ranked[*Sighting]) []NearbySighting {
	out := make([]NearbySighting, 0, len(ranked))
	for _, r := range ranked {
		out = append(out, NearbySighting{Sighting: *r.Item, Distance: r.DistanceKm})
	}
	return out
}

// SearchArea: центр и радиус запроса.
type SearchArea struct {
	Center   geo.Point
	RadiusKm float64
}

// CreateSpotRequest: тело POST /nearby-spots/create.
type CreateSpotRequest struct {
	Name        string   `json:"name" validate:"required,notblank,max=255"`
	Description string   `json:"description"`
	Latitude    *float64 `json:"latitude" validate:"required,latitude"`
	Longitude   *float64 `json:"longitude" validate:"required,longitude"`
}

// UpdateSpotRequest: тело PATCH /nearby-spots/{id}; отсутствующие поля не меняются.
type UpdateSpotRequest struct {
	Name        *string  `json:"name" validate:"omitempty,notblank,max=255"`
	Description *string  `json:"description"`
	Latitude    *float64 `json:"latitude" validate:"omitempty,latitude"`
	Longitude   *float64 `json:"longitude" validate:"omitempty,longitude"`
}

// CreateSightingRequest: тело POST /nearby-sightings/create.
type CreateSightingRequest struct {
	SpotID       int64  `json:"spot" validate:"required,gt=0"`
	BirdID       int64  `json:"bird" validate:"required,gt=0"`
	SightingDate string `json:"sighting_date" validate:"required,datetime=2006-01-02"`
	Notes        string `json:"notes"`
	ImageURL     string `json:"image_url" validate:"omitempty,url,max=500"`
}

// UpdateSightingRequest: тело PATCH /nearby-sightings/{id}.
type UpdateSightingRequest struct {
	SightingDate *string `json:"sighting_date" validate:"omitempty,datetime=2006-01-02"`
	Notes        *string `json:"notes"`
	ImageURL     *string `json:"image_url" validate:"omitempty,url,max=500"`
}
