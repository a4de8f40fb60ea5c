// Package collection: service.go содержит бизнес-логику коллекции.
// Очки редкости пересчитываются в той же транзакции, что и изменение коллекции,
// поэтому кеш rarity_scores всегда совпадает с коллекцией на момент фиксации.
package collection

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/birdwatch/internal/common"
	"serotonyl.ru/birdwatch/internal/db/postgres"
	"serotonyl.ru/birdwatch/internal/features/activity"
	"serotonyl.ru/birdwatch/internal/features/birds"
	"serotonyl.ru/birdwatch/internal/features/streak"
	"serotonyl.ru/birdwatch/internal/metrics"
)

// RecentLimit: сколько последних добавлений показывать в статистике.
const RecentLimit = 5

// Service управляет коллекцией.
type Service struct {
	db      postgres.TxBeginner
	repo    *Repository
	catalog *birds.Repository
	streaks *streak.Service
	feed    *activity.Service
}

// NewService создаёт сервис коллекции.
func NewService(db postgres.TxBeginner, repo *Repository, catalog *birds.Repository, streaks *streak.Service, feed *activity.Service) *Service {
	return &Service{db: db, repo: repo, catalog: catalog, streaks: streaks, feed: feed}
}

// recompute пересчитывает очки пользователя внутри транзакции tx.
// Строка очков блокируется, так что параллельные изменения коллекции
// одного пользователя пересчитываются по очереди.
func recompute(ctx context.Context, repo *Repository, userID int64) (TierCounts, error) {
	if err := repo.EnsureScore(ctx, userID); err != nil {
		return TierCounts{}, err
	}
	if err := repo.LockScore(ctx, userID); err != nil {
		return TierCounts{}, err
	}
	counts, err := repo.TierCounts(ctx, userID)
	if err != nil {
		return TierCounts{}, err
	}
	return counts, repo.SaveScore(ctx, userID, counts)
}

// ============================================================================
// Записи
// ============================================================================

// Create добавляет птицу в коллекцию.
//
// В одной транзакции:
//  1. Вставка записи (повтор: ErrConflict, нет птицы: ErrNotFound)
//  2. Пересчёт очков редкости
//  3. Продвижение серии
//
// После фиксации: достижения, запись в ленту и метрика.
func (s *Service) Create(ctx context.Context, userID int64, req CreateRequest) (*Entry, error) {
	entry := &Entry{
		UserID:    userID,
		BirdID:    req.BirdID,
		Location:  req.Location,
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
		Notes:     req.Notes,
	}

	var (
		counts TierCounts
		st     streak.State
	)
	err := postgres.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		repo := s.repo.WithTx(tx)
		if err := repo.Insert(ctx, entry); err != nil {
			return err
		}
		var err error
		if counts, err = recompute(ctx, repo, userID); err != nil {
			return err
		}
		if st, err = s.streaks.Touch(ctx, tx, userID); err != nil {
			return err
		}
		saved, err := repo.Get(ctx, entry.ID)
		if err != nil {
			return err
		}
		entry = saved
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.CollectionEntriesCreated.Inc()
	log.WithFields(log.Fields{
		"user_id": userID,
		"bird":    entry.Bird.Name,
		"rarity":  entry.Bird.Rarity,
		"score":   counts.TotalScore(),
	}).Info("Птица добавлена в коллекцию")

	if err := s.afterCreate(ctx, entry, counts, st); err != nil {
		log.WithError(err).WithField("user_id", userID).Error("Не удалось обработать достижения после добавления птицы")
	}
	return entry, nil
}

// afterCreate выдаёт заработанные достижения и пишет ленту.
// Ошибка здесь не отменяет добавление птицы.
func (s *Service) afterCreate(ctx context.Context, e *Entry, counts TierCounts, st streak.State) error {
	c, err := s.repo.Counters(ctx, e.UserID)
	if err != nil {
		return err
	}
	earned := Earned(Progress{
		Entries:       c.Total,
		SCount:        counts.S,
		LongestStreak: st.Longest,
		Locations:     c.Locations,
	})

	return postgres.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		repo := s.repo.WithTx(tx)
		for i := range earned {
			a := &earned[i]
			awarded, err := repo.Award(ctx, e.UserID, a)
			if err != nil {
				return err
			}
			if !awarded {
				continue
			}
			log.WithFields(log.Fields{"user_id": e.UserID, "title": a.Title}).Info("Новое достижение")
			if a.Type == AchievementStreak {
				if err := s.feed.Log(ctx, tx, activity.Entry{
					UserID:      e.UserID,
					Type:        activity.TypeStreak,
					Description: fmt.Sprintf("Reached a %s", a.Title),
				}); err != nil {
					return err
				}
			}
		}
		return s.feed.Log(ctx, tx, activity.Entry{
			UserID:       e.UserID,
			Type:         activity.TypeCollected,
			BirdID:       &e.BirdID,
			Description:  fmt.Sprintf("Added %s to collection", e.Bird.Name),
			Latitude:     e.Latitude,
			Longitude:    e.Longitude,
			LocationName: e.Location,
		})
	})
}

// List возвращает коллекцию пользователя по фильтру.
func (s *Service) List(ctx context.Context, userID int64, f Filter) ([]*Entry, error) {
	return s.repo.List(ctx, userID, f)
}

// Get возвращает запись. Только владелец, иначе ErrForbidden.
func (s *Service) Get(ctx context.Context, userID, id int64) (*Entry, error) {
	e, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if e.UserID != userID {
		return nil, fmt.Errorf("запись коллекции %d: %w", id, common.ErrForbidden)
	}
	return e, nil
}

// Update меняет место, заметки и отметку записи.
func (s *Service) Update(ctx context.Context, userID, id int64, req UpdateRequest) (*Entry, error) {
	e, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if req.Location != nil {
		e.Location = *req.Location
	}
	if req.Notes != nil {
		e.Notes = *req.Notes
	}
	if req.IsFeatured != nil {
		e.IsFeatured = *req.IsFeatured
	}
	if err := s.repo.Update(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// Delete удаляет запись и пересчитывает очки в той же транзакции.
func (s *Service) Delete(ctx context.Context, userID, id int64) error {
	return postgres.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		repo := s.repo.WithTx(tx)
		e, err := repo.Get(ctx, id)
		if err != nil {
			return err
		}
		if e.UserID != userID {
			return fmt.Errorf("запись коллекции %d: %w", id, common.ErrForbidden)
		}
		if err := repo.Delete(ctx, id); err != nil {
			return err
		}
		if _, err := recompute(ctx, repo, userID); err != nil {
			return err
		}
		return s.feed.Log(ctx, tx, activity.Entry{
			UserID:       userID,
			Type:         activity.TypeUncollected,
			BirdID:       &e.BirdID,
			Description:  fmt.Sprintf("Removed %s from collection", e.Bird.Name),
			LocationName: e.Location,
		})
	})
}

// ToggleFavorite переключает избранное для птицы из коллекции.
func (s *Service) ToggleFavorite(ctx context.Context, userID, birdID int64) (*FavoriteResponse, error) {
	fav, err := s.repo.ToggleFavorite(ctx, userID, birdID)
	if err != nil {
		return nil, err
	}
	if fav {
		return &FavoriteResponse{Status: "favorited"}, nil
	}
	return &FavoriteResponse{Status: "unfavorited"}, nil
}

// Search переводит запрос поиска в фильтр.
func (s *Service) Search(ctx context.Context, userID int64, req SearchRequest) ([]*Entry, error) {
	f := Filter{
		Query:    req.Query,
		Rarity:   req.Rarity,
		Category: req.Category,
		Location: req.Location,
	}
	if req.DateFrom != "" {
		d, err := common.ParseDate(req.DateFrom)
		if err != nil {
			return nil, common.InvalidField("date_from", "must be a date in format YYYY-MM-DD")
		}
		f.From = &d
	}
	if req.DateTo != "" {
		d, err := common.ParseDate(req.DateTo)
		if err != nil {
			return nil, common.InvalidField("date_to", "must be a date in format YYYY-MM-DD")
		}
		f.To = &d
	}
	if f.From != nil && f.To != nil && f.To.Before(*f.From) {
		return nil, common.InvalidField("date_to", "must not be before date_from")
	}
	return s.repo.List(ctx, userID, f)
}

// QuickFilter: быстрый фильтр по редкости, региону или сезону.
func (s *Service) QuickFilter(ctx context.Context, userID int64, req FilterRequest) ([]*Entry, error) {
	var f Filter
	switch req.FilterType {
	case FilterRarity:
		if !birds.ValidRarity(req.FilterValue) {
			return nil, common.InvalidField("filter_value", "must be one of S A B C")
		}
		f.Rarity = req.FilterValue
	case FilterRegion:
		f.Region = req.FilterValue
	case FilterSeason:
		f.Season = req.FilterValue
	default:
		return nil, common.InvalidField("filter_type", "must be one of rarity region season")
	}
	return s.repo.List(ctx, userID, f)
}

// ============================================================================
// Статистика
// ============================================================================

// Stats собирает сводку коллекции.
func (s *Service) Stats(ctx context.Context, userID int64) (*Stats, error) {
	c, err := s.repo.Counters(ctx, userID)
	if err != nil {
		return nil, err
	}
	score, err := s.repo.GetScore(ctx, userID)
	if err != nil {
		return nil, err
	}
	recent, err := s.repo.List(ctx, userID, Filter{Limit: RecentLimit})
	if err != nil {
		return nil, err
	}
	return &Stats{
		TotalBirds:        c.Total,
		FavoriteBirds:     c.Favorites,
		FeaturedBirds:     c.Featured,
		LocationsExplored: c.Locations,
		RarityCounts:      score.TierCounts,
		TotalScore:        score.TotalScore,
		RarityIndex:       RarityIndex(score.TotalScore, c.Total),
		RecentAdditions:   recent,
	}, nil
}

// Highlights возвращает кеш очков редкости (нули, если его нет).
func (s *Service) Highlights(ctx context.Context, userID int64) (*RarityScore, error) {
	return s.repo.GetScore(ctx, userID)
}

// Bragging собирает «хвастовство»: редчайшая находка, ранг, места, серия, достижения.
func (s *Service) Bragging(ctx context.Context, userID int64) (*BraggingRights, error) {
	rarest, err := s.repo.Rarest(ctx, userID)
	if err != nil {
		return nil, err
	}
	score, err := s.repo.GetScore(ctx, userID)
	if err != nil {
		return nil, err
	}
	greater, total, err := s.repo.RankCounts(ctx, score.TotalScore)
	if err != nil {
		return nil, err
	}
	c, err := s.repo.Counters(ctx, userID)
	if err != nil {
		return nil, err
	}
	st, err := s.streaks.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	achievements, err := s.repo.Achievements(ctx, userID)
	if err != nil {
		return nil, err
	}

	find := RarestFind{Label: NoFindsLabel}
	if rarest != nil {
		find = RarestFind{Label: RarestFindLabel(rarest.Rarity), Bird: rarest}
	}
	return &BraggingRights{
		RarestFind:        find,
		CollectionRank:    Rank(greater, total),
		LocationsExplored: c.Locations,
		StreakStatus:      common.FormatStreakStatus(st.Current),
		Achievements:      achievements,
	}, nil
}

// Achievements возвращает достижения пользователя.
func (s *Service) Achievements(ctx context.Context, userID int64) ([]*Achievement, error) {
	return s.repo.Achievements(ctx, userID)
}

// Categories возвращает категории птиц каталога.
func (s *Service) Categories(ctx context.Context) ([]birds.Category, error) {
	return s.catalog.Categories(ctx)
}

// Summary: агрегаты для профиля пользователя.
type Summary struct {
	TotalScore        int
	LocationsExplored int
}

// ProfileSummary возвращает очки и число мест для /user/me.
func (s *Service) ProfileSummary(ctx context.Context, userID int64) (Summary, error) {
	score, err := s.repo.GetScore(ctx, userID)
	if err != nil {
		return Summary{}, err
	}
	c, err := s.repo.Counters(ctx, userID)
	if err != nil {
		return Summary{}, err
	}
	return Summary{TotalScore: score.TotalScore, LocationsExplored: c.Locations}, nil
}

// ReconcileScores сверяет кеш очков с коллекциями. Запускается кроном ночью.
func (s *Service) ReconcileScores(ctx context.Context) error {
	started := time.Now()
	n, err := s.repo.ReconcileScores(ctx)
	if err != nil {
		return err
	}
	log.WithFields(log.Fields{
		"fixed":    n,
		"duration": time.Since(started),
	}).Info("Сверка очков редкости завершена")
	return nil
}
