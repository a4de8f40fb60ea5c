// Package activity: repository.go выполняет операции с таблицей activities.
package activity

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"serotonyl.ru/birdwatch/internal/db/postgres"
	"serotonyl.ru/birdwatch/internal/features/birds"
)

// Repository предоставляет методы для работы с лентой.
type Repository struct {
	db postgres.DBTX
}

// NewRepository создаёт новый репозиторий ленты.
func NewRepository(db postgres.DBTX) *Repository {
	return &Repository{db: db}
}

// WithTx возвращает репозиторий, работающий внутри транзакции.
func (r *Repository) WithTx(tx postgres.DBTX) *Repository {
	return &Repository{db: tx}
}

// Insert записывает действие в ленту.
func (r *Repository) Insert(ctx context.Context, e Entry) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO activities (user_id, activity_type, bird_id, description, latitude, longitude, location_name)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, e.UserID, e.Type, e.BirdID, e.Description, e.Latitude, e.Longitude, e.LocationName)
	if err != nil {
		return fmt.Errorf("ошибка записи действия: %w", err)
	}
	return nil
}

const selectActivities = `
	SELECT a.id, a.activity_type, a.description, a.latitude, a.longitude, a.location_name, a.created_at,
	       b.id, b.name, b.scientific_name, b.image_url, b.rarity, b.conservation_status
	FROM activities a
	LEFT JOIN birds b ON b.id = a.bird_id
`

// List возвращает действия пользователя, новые первыми.
// limit <= 0 означает без ограничения.
func (r *Repository) List(ctx context.Context, userID int64, limit int) ([]*Activity, error) {
	query := selectActivities + ` WHERE a.user_id = $1 ORDER BY a.created_at DESC, a.id DESC`
	args := []any{userID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения ленты: %w", err)
	}
	return scanActivities(rows)
}

// Search ищет подстроку в описании, типе или названии места.
func (r *Repository) Search(ctx context.Context, userID int64, q string) ([]*Activity, error) {
	rows, err := r.db.Query(ctx, selectActivities+`
		WHERE a.user_id = $1
		  AND (a.description ILIKE $2 OR a.activity_type ILIKE $2 OR a.location_name ILIKE $2)
		ORDER BY a.created_at DESC, a.id DESC
	`, userID, postgres.LikePattern(q))
	if err != nil {
		return nil, fmt.Errorf("ошибка поиска по ленте: %w", err)
	}
	return scanActivities(rows)
}

func scanActivities(rows pgx.Rows) ([]*Activity, error) {
	defer rows.Close()

	out := make([]*Activity, 0)
	for rows.Next() {
		var a Activity
		var birdID *int64
		var name, sci, image, rarity, conserv *string
		err := rows.Scan(
			&a.ID, &a.ActivityType, &a.Description, &a.Latitude, &a.Longitude, &a.LocationName, &a.CreatedAt,
			&birdID, &name, &sci, &image, &rarity, &conserv,
		)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования действия: %w", err)
		}
		if birdID != nil {
			a.Bird = &birds.Summary{
				ID: *birdID, Name: *name, ScientificName: *sci,
				ImageURL: *image, Rarity: *rarity, ConservationStatus: *conserv,
			}
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}
