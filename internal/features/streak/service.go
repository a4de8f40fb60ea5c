// Package streak: service.go содержит бизнес-логику стрик-системы.
// Сервис продвигает серию на засчитываемых действиях и гасит прерванные серии.
package streak

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/birdwatch/internal/common"
	"serotonyl.ru/birdwatch/internal/db/postgres"
)

// Service управляет стрик-системой.
type Service struct {
	repo *Repository    // Репозиторий стриков
	loc  *time.Location // Пояс, в котором считаются календарные дни
	now  func() time.Time
}

// NewService создаёт новый сервис стриков.
func NewService(repo *Repository, loc *time.Location) *Service {
	return &Service{repo: repo, loc: loc, now: time.Now}
}

// Touch засчитывает действие пользователя (новая птица в коллекции или наблюдение).
// tx: транзакция вызывающего: строка стрика блокируется (FOR UPDATE) до её фиксации,
// поэтому два одновременных действия одного пользователя не посчитаются дважды.
//
// Алгоритм:
//  1. Создаём запись, если её нет (upsert)
//  2. Читаем с блокировкой строки
//  3. Применяем Advance
//  4. Сохраняем, если состояние изменилось
//
// Параметры:
//   - ctx: контекст запроса
//   - tx: транзакция вызывающего (или пул, если транзакция не нужна)
//   - userID: пользователь, совершивший действие
//
// Возвращает:
//   - State: состояние серии после действия
//   - error: ошибка БД
func (s *Service) Touch(ctx context.Context, tx postgres.DBTX, userID int64) (State, error) {
	repo := s.repo.WithTx(tx)

	if err := repo.Ensure(ctx, userID); err != nil {
		return State{}, err
	}
	current, err := repo.GetForUpdate(ctx, userID)
	if err != nil {
		return State{}, err
	}

	today := common.DateOf(s.now(), s.loc)
	next := Advance(current.State, today)
	if next.Current == current.Current && next.Longest == current.Longest && sameDate(next.LastActivity, current.LastActivity) {
		return next, nil
	}

	if err := repo.Save(ctx, userID, next); err != nil {
		return State{}, err
	}

	log.WithFields(log.Fields{
		"user_id": userID,
		"current": next.Current,
		"longest": next.Longest,
	}).Debug("Стрик обновлён")
	return next, nil
}

func sameDate(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return common.DaysBetween(*a, *b) == 0
}

// Get возвращает стрик пользователя. Если записи нет, возвращается нулевое состояние.
// Серия, прерванная до ночного сброса, показывается как 0.
func (s *Service) Get(ctx context.Context, userID int64) (State, error) {
	st, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		return State{}, err
	}
	if st == nil {
		return State{}, nil
	}
	if Expired(st.State, common.DateOf(s.now(), s.loc)) {
		st.Current = 0
	}
	return st.State, nil
}

// ExpireBroken обнуляет прерванные серии. Запускается кроном после полуночи.
func (s *Service) ExpireBroken(ctx context.Context) error {
	log.Info("Запуск ежедневного сброса прерванных стриков")

	n, err := s.repo.ExpireBroken(ctx, common.DateOf(s.now(), s.loc))
	if err != nil {
		return fmt.Errorf("ошибка сброса стриков: %w", err)
	}

	log.WithField("broken", n).Info("Ежедневный сброс стриков завершён")
	return nil
}

// Response формирует ответ API по состоянию.
func Response(st State) StreakResponse {
	resp := StreakResponse{
		CurrentStreak: st.Current,
		LongestStreak: st.Longest,
		Status:        common.FormatStreakStatus(st.Current),
	}
	if st.LastActivity != nil {
		d := st.LastActivity.Format(time.DateOnly)
		resp.LastActivityDate = &d
	}
	return resp
}
