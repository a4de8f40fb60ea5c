// Package streak: repository.go выполняет операции с таблицей streaks.
package streak

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"serotonyl.ru/birdwatch/internal/db/postgres"
)

// Repository предоставляет методы для работы с таблицей streaks.
type Repository struct {
	db postgres.DBTX
}

// NewRepository создаёт новый репозиторий стриков.
func NewRepository(db postgres.DBTX) *Repository {
	return &Repository{db: db}
}

// WithTx возвращает репозиторий, работающий внутри транзакции tx.
func (r *Repository) WithTx(tx postgres.DBTX) *Repository {
	return &Repository{db: tx}
}

const streakColumns = `user_id, current_streak, longest_streak, last_activity_date, updated_at`

func scanStreak(row pgx.Row) (*Streak, error) {
	var s Streak
	err := row.Scan(&s.UserID, &s.Current, &s.Longest, &s.LastActivity, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Ensure создаёт пустую запись стрика, если её ещё нет.
// ON CONFLICT DO NOTHING делает операцию безопасной при гонке двух запросов.
func (r *Repository) Ensure(ctx context.Context, userID int64) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO streaks (user_id, current_streak, longest_streak)
		VALUES ($1, 0, 0)
		ON CONFLICT (user_id) DO NOTHING
	`, userID)
	if err != nil {
		return fmt.Errorf("ошибка создания стрика: %w", err)
	}
	return nil
}

// GetForUpdate читает стрик с блокировкой строки до конца транзакции.
// Вызывать только внутри транзакции (WithTx).
func (r *Repository) GetForUpdate(ctx context.Context, userID int64) (*Streak, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+streakColumns+` FROM streaks WHERE user_id = $1 FOR UPDATE`, userID)
	s, err := scanStreak(row)
	if err != nil {
		return nil, postgres.Translate(err, "streak")
	}
	return s, nil
}

// GetByUserID возвращает стрик пользователя или nil, если записи нет.
func (r *Repository) GetByUserID(ctx context.Context, userID int64) (*Streak, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+streakColumns+` FROM streaks WHERE user_id = $1`, userID)
	s, err := scanStreak(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка получения стрика (user_id=%d): %w", userID, err)
	}
	return s, nil
}

// Save записывает новое состояние стрика.
func (r *Repository) Save(ctx context.Context, userID int64, s State) error {
	_, err := r.db.Exec(ctx, `
		UPDATE streaks
		SET current_streak = $2, longest_streak = $3, last_activity_date = $4, updated_at = NOW()
		WHERE user_id = $1
	`, userID, s.Current, s.Longest, s.LastActivity)
	if err != nil {
		return fmt.Errorf("ошибка обновления стрика: %w", err)
	}
	return nil
}

// ExpireBroken обнуляет серии, у которых последнее действие было раньше вчерашнего дня.
// Рекорд не трогаем, поэтому current <= longest сохраняется.
func (r *Repository) ExpireBroken(ctx context.Context, today time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE streaks
		SET current_streak = 0, updated_at = NOW()
		WHERE current_streak > 0 AND last_activity_date < $1
	`, today.AddDate(0, 0, -1))
	if err != nil {
		return 0, fmt.Errorf("ошибка сброса прерванных стриков: %w", err)
	}
	return tag.RowsAffected(), nil
}
