// Package activity: service.go записывает и отдаёт ленту действий.
package activity

import (
	"context"
	"strings"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/birdwatch/internal/db/postgres"
)

// RecentLimit: сколько записей показывает GET /api/user/recent-activity.
const RecentLimit = 10

// Service управляет лентой действий.
type Service struct {
	repo *Repository
}

// NewService создаёт сервис ленты.
func NewService(repo *Repository) *Service {
	return &Service{repo: repo}
}

// Log записывает действие в транзакции вызывающего (db может быть pgx.Tx),
// чтобы запись ленты появлялась только вместе с самим действием.
func (s *Service) Log(ctx context.Context, db postgres.DBTX, e Entry) error {
	if err := s.repo.WithTx(db).Insert(ctx, e); err != nil {
		return err
	}
	log.WithFields(log.Fields{
		"user_id": e.UserID,
		"type":    e.Type,
	}).Debug("Действие записано в ленту")
	return nil
}

// Recent возвращает последние RecentLimit действий.
func (s *Service) Recent(ctx context.Context, userID int64) ([]*Activity, error) {
	return s.repo.List(ctx, userID, RecentLimit)
}

// All возвращает всю ленту пользователя.
func (s *Service) All(ctx context.Context, userID int64) ([]*Activity, error) {
	return s.repo.List(ctx, userID, 0)
}

// Search ищет по описанию, типу и месту. Пустой запрос возвращает всю ленту.
func (s *Service) Search(ctx context.Context, userID int64, q string) ([]*Activity, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return s.All(ctx, userID)
	}
	return s.repo.Search(ctx, userID, q)
}
