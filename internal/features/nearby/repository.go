// Package nearby: repository.go выполняет операции с таблицами spots и sightings.
package nearby

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"serotonyl.ru/birdwatch/internal/db/postgres"
	"serotonyl.ru/birdwatch/internal/geo"
)

// Repository предоставляет методы для работы с местами и наблюдениями.
type Repository struct {
	db postgres.DBTX
}

// NewRepository создаёт новый репозиторий.
func NewRepository(db postgres.DBTX) *Repository {
	return &Repository{db: db}
}

// WithTx возвращает репозиторий, работающий внутри транзакции.
func (r *Repository) WithTx(tx postgres.DBTX) *Repository {
	return &Repository{db: tx}
}

// ============================================================================
// Места
// ============================================================================

const spotColumns = `id, name, description, latitude, longitude, created_by, is_verified, created_at, updated_at`

func scanSpot(row pgx.Row) (*Spot, error) {
	var s Spot
	err := row.Scan(&s.ID, &s.Name, &s.Description, &s.Latitude, &s.Longitude,
		&s.CreatedBy, &s.IsVerified, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// CreateSpot вставляет место.
func (r *Repository) CreateSpot(ctx context.Context, s *Spot) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO spots (name, description, latitude, longitude, created_by)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, is_verified, created_at, updated_at
	`, s.Name, s.Description, s.Latitude, s.Longitude, s.CreatedBy).
		Scan(&s.ID, &s.IsVerified, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return postgres.Translate(err, "место")
	}
	return nil
}

// GetSpot возвращает место или ErrNotFound.
func (r *Repository) GetSpot(ctx context.Context, id int64) (*Spot, error) {
	s, err := scanSpot(r.db.QueryRow(ctx, `SELECT `+spotColumns+` FROM spots WHERE id = $1`, id))
	if err != nil {
		return nil, postgres.Translate(err, "место")
	}
	return s, nil
}

// UpdateSpot сохраняет изменяемые поля места.
func (r *Repository) UpdateSpot(ctx context.Context, s *Spot) error {
	err := r.db.QueryRow(ctx, `
		UPDATE spots
		SET name = $2, description = $3, latitude = $4, longitude = $5, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`, s.ID, s.Name, s.Description, s.Latitude, s.Longitude).Scan(&s.UpdatedAt)
	return postgres.Translate(err, "место")
}

// DeleteSpot удаляет место; наблюдения в нём удаляются каскадно.
func (r *Repository) DeleteSpot(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM spots WHERE id = $1`, id)
	if err != nil {
		return postgres.Translate(err, "место")
	}
	if tag.RowsAffected() == 0 {
		return postgres.Translate(pgx.ErrNoRows, "место")
	}
	return nil
}

// VerifySpot отмечает место как проверенное.
func (r *Repository) VerifySpot(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `UPDATE spots SET is_verified = TRUE, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("ошибка проверки места: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return postgres.Translate(pgx.ErrNoRows, "место")
	}
	return nil
}

// SpotsInBox возвращает места внутри рамки (предварительный отбор по индексу).
func (r *Repository) SpotsInBox(ctx context.Context, box geo.BoundingBox) ([]*Spot, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+spotColumns+`
		FROM spots
		WHERE latitude BETWEEN $1 AND $2 AND longitude BETWEEN $3 AND $4
		ORDER BY id
	`, box.MinLat, box.MaxLat, box.MinLon, box.MaxLon)
	if err != nil {
		return nil, fmt.Errorf("ошибка выборки мест: %w", err)
	}
	defer rows.Close()

	out := make([]*Spot, 0)
	for rows.Next() {
		s, err := scanSpot(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования места: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ============================================================================
// Наблюдения
// ============================================================================

const selectSightings = `
	SELECT g.id, g.reported_by, g.sighting_date, g.notes, g.image_url, g.is_verified, g.created_at, g.updated_at,
	       s.id, s.name, s.description, s.latitude, s.longitude, s.created_by, s.is_verified, s.created_at, s.updated_at,
	       b.id, b.name, b.scientific_name, b.image_url, b.rarity, b.conservation_status
	FROM sightings g
	JOIN spots s ON s.id = g.spot_id
	JOIN birds b ON b.id = g.bird_id
`

func scanSighting(row pgx.Row) (*Sighting, error) {
	var g Sighting
	var sp Spot
	var date time.Time
	err := row.Scan(
		&g.ID, &g.ReportedBy, &date, &g.Notes, &g.ImageURL, &g.IsVerified, &g.CreatedAt, &g.UpdatedAt,
		&sp.ID, &sp.Name, &sp.Description, &sp.Latitude, &sp.Longitude, &sp.CreatedBy, &sp.IsVerified, &sp.CreatedAt, &sp.UpdatedAt,
		&g.Bird.ID, &g.Bird.Name, &g.Bird.ScientificName, &g.Bird.ImageURL, &g.Bird.Rarity, &g.Bird.ConservationStatus,
	)
	if err != nil {
		return nil, err
	}
	g.Spot = &sp
	g.SightingDate = date.Format(time.DateOnly)
	return &g, nil
}

func collectSightings(rows pgx.Rows) ([]*Sighting, error) {
	defer rows.Close()

	out := make([]*Sighting, 0)
	for rows.Next() {
		g, err := scanSighting(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования наблюдения: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// CreateSighting вставляет наблюдение и возвращает его id.
// Несуществующие место или птица дают ErrNotFound (нарушение внешнего ключа).
func (r *Repository) CreateSighting(ctx context.Context, spotID, birdID, reportedBy int64, date time.Time, notes, imageURL string) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `
		INSERT INTO sightings (spot_id, bird_id, sighting_date, notes, image_url, reported_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, spotID, birdID, date, notes, imageURL, reportedBy).Scan(&id)
	if err != nil {
		return 0, postgres.Translate(err, "наблюдение")
	}
	return id, nil
}

// GetSighting возвращает наблюдение вместе с местом и птицей.
func (r *Repository) GetSighting(ctx context.Context, id int64) (*Sighting, error) {
	g, err := scanSighting(r.db.QueryRow(ctx, selectSightings+` WHERE g.id = $1`, id))
	if err != nil {
		return nil, postgres.Translate(err, "наблюдение")
	}
	return g, nil
}

// UpdateSighting сохраняет дату, заметки и фото наблюдения.
func (r *Repository) UpdateSighting(ctx context.Context, id int64, date time.Time, notes, imageURL string) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE sightings SET sighting_date = $2, notes = $3, image_url = $4, updated_at = NOW()
		WHERE id = $1
	`, id, date, notes, imageURL)
	if err != nil {
		return postgres.Translate(err, "наблюдение")
	}
	if tag.RowsAffected() == 0 {
		return postgres.Translate(pgx.ErrNoRows, "наблюдение")
	}
	return nil
}

// DeleteSighting удаляет наблюдение.
func (r *Repository) DeleteSighting(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM sightings WHERE id = $1`, id)
	if err != nil {
		return postgres.Translate(err, "наблюдение")
	}
	if tag.RowsAffected() == 0 {
		return postgres.Translate(pgx.ErrNoRows, "наблюдение")
	}
	return nil
}

// VerifySighting отмечает наблюдение как проверенное.
func (r *Repository) VerifySighting(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `UPDATE sightings SET is_verified = TRUE, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("ошибка проверки наблюдения: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return postgres.Translate(pgx.ErrNoRows, "наблюдение")
	}
	return nil
}

// SightingsBySpot возвращает все наблюдения места, новые первыми.
func (r *Repository) SightingsBySpot(ctx context.Context, spotID int64) ([]*Sighting, error) {
	rows, err := r.db.Query(ctx, selectSightings+`
		WHERE g.spot_id = $1
		ORDER BY g.sighting_date DESC, g.id DESC
	`, spotID)
	if err != nil {
		return nil, fmt.Errorf("ошибка выборки наблюдений места: %w", err)
	}
	return collectSightings(rows)
}

// SightingQuery: условия выборки проверенных наблюдений для поиска поблизости.
type SightingQuery struct {
	Box   geo.BoundingBox
	Since *time.Time // sighting_date >= Since
	Text  string     // подстрока в имени птицы или заметках
}

// VerifiedSightings возвращает проверенные наблюдения из мест внутри рамки.
func (r *Repository) VerifiedSightings(ctx context.Context, q SightingQuery) ([]*Sighting, error) {
	var sb strings.Builder
	sb.WriteString(selectSightings)
	sb.WriteString(` WHERE g.is_verified = TRUE
		AND s.latitude BETWEEN $1 AND $2 AND s.longitude BETWEEN $3 AND $4`)
	args := []any{q.Box.MinLat, q.Box.MaxLat, q.Box.MinLon, q.Box.MaxLon}

	if q.Since != nil {
		args = append(args, *q.Since)
		fmt.Fprintf(&sb, ` AND g.sighting_date >= $%d`, len(args))
	}
	if q.Text != "" {
		args = append(args, postgres.LikePattern(q.Text))
		fmt.Fprintf(&sb, ` AND (b.name ILIKE $%d OR g.notes ILIKE $%d)`, len(args), len(args))
	}
	sb.WriteString(` ORDER BY g.id`)

	rows, err := r.db.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка выборки наблюдений: %w", err)
	}
	return collectSightings(rows)
}

// PendingSightings возвращает непроверенные наблюдения, старые первыми.
func (r *Repository) PendingSightings(ctx context.Context) ([]*Sighting, error) {
	rows, err := r.db.Query(ctx, selectSightings+` WHERE g.is_verified = FALSE ORDER BY g.created_at, g.id`)
	if err != nil {
		return nil, fmt.Errorf("ошибка выборки непроверенных наблюдений: %w", err)
	}
	return collectSightings(rows)
}
