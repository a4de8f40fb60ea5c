// Package nearby: service.go содержит бизнес-логику мест и наблюдений:
// поиск поблизости, CRUD с проверкой владельца и модерацию.
package nearby

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/birdwatch/internal/common"
	"serotonyl.ru/birdwatch/internal/db/postgres"
	"serotonyl.ru/birdwatch/internal/features/activity"
	"serotonyl.ru/birdwatch/internal/features/streak"
	"serotonyl.ru/birdwatch/internal/geo"
	"serotonyl.ru/birdwatch/internal/metrics"
)

// Service управляет местами и наблюдениями.
type Service struct {
	db       postgres.TxBeginner
	repo     *Repository
	streaks  *streak.Service
	feed     *activity.Service
	notifier Notifier
	loc      *time.Location
	now      func() time.Time
}

// NewService создаёт сервис. notifier может быть nil: тогда оповещений нет.
func NewService(db postgres.TxBeginner, repo *Repository, streaks *streak.Service, feed *activity.Service, notifier Notifier, loc *time.Location) *Service {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &Service{
		db:       db,
		repo:     repo,
		streaks:  streaks,
		feed:     feed,
		notifier: notifier,
		loc:      loc,
		now:      time.Now,
	}
}

// ============================================================================
// Поиск поблизости
// ============================================================================

// NearbySpots возвращает места в радиусе, ближайшие первыми.
// Проверенность мест не учитывается.
func (s *Service) NearbySpots(ctx context.Context, area SearchArea) ([]NearbySpot, error) {
	candidates, err := s.repo.SpotsInBox(ctx, geo.Around(area.Center, area.RadiusKm))
	if err != nil {
		return nil, err
	}
	metrics.ProximityCandidates.Observe(float64(len(candidates)))
	return toNearbySpots(Filter(area.Center, area.RadiusKm, candidates)), nil
}

// NearbyActivity возвращает проверенные наблюдения в радиусе.
// period: PeriodAll или PeriodRecent (последние RecentDays дней).
// limit < 0 означает без ограничения.
func (s *Service) NearbyActivity(ctx context.Context, area SearchArea, period string, limit int) ([]NearbySighting, error) {
	q := SightingQuery{Box: geo.Around(area.Center, area.RadiusKm)}
	if period == PeriodRecent {
		since := common.DateOf(s.now(), s.loc).AddDate(0, 0, -RecentDays)
		q.Since = &since
	}
	return s.rankSightings(ctx, area, q, limit)
}

// SearchActivity ищет проверенные наблюдения в радиусе по имени птицы или заметкам.
func (s *Service) SearchActivity(ctx context.Context, area SearchArea, text string) ([]NearbySighting, error) {
	q := SightingQuery{
		Box:  geo.Around(area.Center, area.RadiusKm),
		Text: strings.TrimSpace(text),
	}
	return s.rankSightings(ctx, area, q, -1)
}

func (s *Service) rankSightings(ctx context.Context, area SearchArea, q SightingQuery, limit int) ([]NearbySighting, error) {
	candidates, err := s.repo.VerifiedSightings(ctx, q)
	if err != nil {
		return nil, err
	}
	metrics.ProximityCandidates.Observe(float64(len(candidates)))
	return toNearbySightings(Top(Filter(area.Center, area.RadiusKm, candidates), limit)), nil
}

// ============================================================================
// Места
// ============================================================================

// CreateSpot создаёт место от имени пользователя.
func (s *Service) CreateSpot(ctx context.Context, userID int64, req CreateSpotRequest) (*Spot, error) {
	spot := &Spot{
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		Latitude:    *req.Latitude,
		Longitude:   *req.Longitude,
		CreatedBy:   userID,
	}
	if err := s.repo.CreateSpot(ctx, spot); err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"user_id": userID,
		"spot_id": spot.ID,
	}).Info("Создано место для наблюдений")
	s.notifier.SpotCreated(ctx, spot)
	return spot, nil
}

// GetSpot возвращает место по id.
func (s *Service) GetSpot(ctx context.Context, id int64) (*Spot, error) {
	return s.repo.GetSpot(ctx, id)
}

func (s *Service) ownSpot(ctx context.Context, userID, id int64) (*Spot, error) {
	spot, err := s.repo.GetSpot(ctx, id)
	if err != nil {
		return nil, err
	}
	if spot.CreatedBy != userID {
		return nil, fmt.Errorf("место %d: %w", id, common.ErrForbidden)
	}
	return spot, nil
}

// UpdateSpot меняет место. Только создатель, иначе ErrForbidden.
func (s *Service) UpdateSpot(ctx context.Context, userID, id int64, req UpdateSpotRequest) (*Spot, error) {
	spot, err := s.ownSpot(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if req.Name != nil {
		spot.Name = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		spot.Description = *req.Description
	}
	if req.Latitude != nil {
		spot.Latitude = *req.Latitude
	}
	if req.Longitude != nil {
		spot.Longitude = *req.Longitude
	}
	if err := s.repo.UpdateSpot(ctx, spot); err != nil {
		return nil, err
	}
	return spot, nil
}

// DeleteSpot удаляет место вместе с его наблюдениями. Только создатель.
func (s *Service) DeleteSpot(ctx context.Context, userID, id int64) error {
	if _, err := s.ownSpot(ctx, userID, id); err != nil {
		return err
	}
	return s.repo.DeleteSpot(ctx, id)
}

// SpotSightings возвращает наблюдения места по убыванию даты.
func (s *Service) SpotSightings(ctx context.Context, spotID int64) ([]*Sighting, error) {
	if _, err := s.repo.GetSpot(ctx, spotID); err != nil {
		return nil, err
	}
	return s.repo.SightingsBySpot(ctx, spotID)
}

// ============================================================================
// Наблюдения
// ============================================================================

// ReportSighting сохраняет наблюдение. В одной транзакции:
//  1. Вставка наблюдения (несуществующие место или птица: ErrNotFound)
//  2. Продвижение серии пользователя (строка серии под FOR UPDATE)
//  3. Запись в ленту действий
//
// После фиксации: метрика и оповещение модераторов.
//
// Параметры:
//   - userID: автор наблюдения
//   - req: место, птица, дата (YYYY-MM-DD), заметки
//
// Возвращает:
//   - *Sighting: сохранённое наблюдение с местом и птицей
//   - error: ErrNotFound, ErrInvalidParameters или ошибка БД
func (s *Service) ReportSighting(ctx context.Context, userID int64, req CreateSightingRequest) (*Sighting, error) {
	date, err := common.ParseDate(req.SightingDate)
	if err != nil {
		return nil, common.InvalidField("sighting_date", "must be a date in format YYYY-MM-DD")
	}

	var sighting *Sighting
	err = postgres.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		repo := s.repo.WithTx(tx)

		id, err := repo.CreateSighting(ctx, req.SpotID, req.BirdID, userID, date, req.Notes, req.ImageURL)
		if err != nil {
			return err
		}
		if _, err := s.streaks.Touch(ctx, tx, userID); err != nil {
			return err
		}
		if sighting, err = repo.GetSighting(ctx, id); err != nil {
			return err
		}

		lat, lon := sighting.Spot.Latitude, sighting.Spot.Longitude
		return s.feed.Log(ctx, tx, activity.Entry{
			UserID:       userID,
			Type:         activity.TypeSighting,
			BirdID:       &sighting.Bird.ID,
			Description:  fmt.Sprintf("Spotted %s at %s", sighting.Bird.Name, sighting.Spot.Name),
			Latitude:     &lat,
			Longitude:    &lon,
			LocationName: sighting.Spot.Name,
		})
	})
	if err != nil {
		return nil, err
	}

	metrics.SightingsReported.Inc()
	log.WithFields(log.Fields{
		"user_id":     userID,
		"sighting_id": sighting.ID,
		"bird":        sighting.Bird.Name,
	}).Info("Новое наблюдение")
	s.notifier.SightingReported(ctx, sighting)
	return sighting, nil
}

// GetSighting возвращает наблюдение по id.
func (s *Service) GetSighting(ctx context.Context, id int64) (*Sighting, error) {
	return s.repo.GetSighting(ctx, id)
}

func (s *Service) ownSighting(ctx context.Context, userID, id int64) (*Sighting, error) {
	g, err := s.repo.GetSighting(ctx, id)
	if err != nil {
		return nil, err
	}
	if g.ReportedBy != userID {
		return nil, fmt.Errorf("наблюдение %d: %w", id, common.ErrForbidden)
	}
	return g, nil
}

// UpdateSighting меняет дату, заметки или фото. Только автор.
func (s *Service) UpdateSighting(ctx context.Context, userID, id int64, req UpdateSightingRequest) (*Sighting, error) {
	g, err := s.ownSighting(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	date, err := common.ParseDate(g.SightingDate)
	if err != nil {
		return nil, fmt.Errorf("дата наблюдения %d: %w", id, err)
	}
	if req.SightingDate != nil {
		if date, err = common.ParseDate(*req.SightingDate); err != nil {
			return nil, common.InvalidField("sighting_date", "must be a date in format YYYY-MM-DD")
		}
	}
	notes, imageURL := g.Notes, g.ImageURL
	if req.Notes != nil {
		notes = *req.Notes
	}
	if req.ImageURL != nil {
		imageURL = *req.ImageURL
	}

	if err := s.repo.UpdateSighting(ctx, id, date, notes, imageURL); err != nil {
		return nil, err
	}
	return s.repo.GetSighting(ctx, id)
}

// DeleteSighting удаляет наблюдение. Только автор.
func (s *Service) DeleteSighting(ctx context.Context, userID, id int64) error {
	if _, err := s.ownSighting(ctx, userID, id); err != nil {
		return err
	}
	return s.repo.DeleteSighting(ctx, id)
}

// ============================================================================
// Модерация
// ============================================================================

// VerifySpot отмечает место как проверенное.
func (s *Service) VerifySpot(ctx context.Context, id int64) error {
	if err := s.repo.VerifySpot(ctx, id); err != nil {
		return err
	}
	log.WithField("spot_id", id).Info("Место проверено модератором")
	return nil
}

// VerifySighting отмечает наблюдение как проверенное:
// с этого момента оно видно в поиске поблизости.
func (s *Service) VerifySighting(ctx context.Context, id int64) error {
	if err := s.repo.VerifySighting(ctx, id); err != nil {
		return err
	}
	log.WithField("sighting_id", id).Info("Наблюдение проверено модератором")
	return nil
}

// PendingSightings возвращает наблюдения, ждущие проверки.
func (s *Service) PendingSightings(ctx context.Context) ([]*Sighting, error) {
	return s.repo.PendingSightings(ctx)
}
