// Package birds: repository.go выполняет операции с каталогом птиц
// и историей распознаваний.
package birds

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"serotonyl.ru/birdwatch/internal/db/postgres"
)

// Repository предоставляет методы для работы с каталогом.
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

const birdColumns = `b.id, b.name, b.scientific_name, b.description, b.image_url, b.rarity,
	b.conservation_status, b.weight_range, b.wingspan_range, b.length_range,
	b.kingdom, b.phylum, b.bird_class, b.bird_order, b.family, b.habitat, b.behavior,
	b.feeding_habits, b.breeding_info, b.migration_pattern, b.sound_description,
	b.range_map_url, b.global_distribution, b.created_at, b.updated_at`

func scanBird(row pgx.Row) (*Bird, error) {
	var b Bird
	err := row.Scan(&b.ID, &b.Name, &b.ScientificName, &b.Description, &b.ImageURL, &b.Rarity,
		&b.ConservationStatus, &b.WeightRange, &b.WingspanRange, &b.LengthRange,
		&b.Kingdom, &b.Phylum, &b.BirdClass, &b.Order, &b.Family, &b.Habitat, &b.Behavior,
		&b.FeedingHabits, &b.BreedingInfo, &b.MigrationPattern, &b.SoundDescription,
		&b.RangeMapURL, &b.GlobalDistribution, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func collectBirds(rows pgx.Rows) ([]*Bird, error) {
	defer rows.Close()

	out := make([]*Bird, 0)
	for rows.Next() {
		b, err := scanBird(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка чтения птицы: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// rarityRank сортирует от самых редких (S) к частым (C).
const rarityRank = `CASE b.rarity WHEN 'S' THEN 0 WHEN 'A' THEN 1 WHEN 'B' THEN 2 ELSE 3 END`

// orderClauses: допустимые сортировки списка.
var orderClauses = map[string]string{
	OrderName:   "b.name ASC, b.id ASC",
	OrderRarity: rarityRank + ", b.name ASC",
	OrderNewest: "b.created_at DESC, b.id DESC",
}

// List ищет по каталогу: подстрока в имени или научном имени, фильтр по редкости.
func (r *Repository) List(ctx context.Context, f ListFilter) ([]*Bird, error) {
	var (
		where []string
		args  []any
	)
	if q := strings.TrimSpace(f.Query); q != "" {
		args = append(args, postgres.LikePattern(q))
		where = append(where, fmt.Sprintf("(b.name ILIKE $%d OR b.scientific_name ILIKE $%d)", len(args), len(args)))
	}
	if f.Rarity != "" {
		args = append(args, f.Rarity)
		where = append(where, fmt.Sprintf("b.rarity = $%d", len(args)))
	}
	if region := strings.TrimSpace(f.Region); region != "" {
		args = append(args, postgres.LikePattern(region))
		where = append(where, fmt.Sprintf("b.global_distribution ILIKE $%d", len(args)))
	}

	order, ok := orderClauses[f.Order]
	if !ok {
		order = orderClauses[OrderNewest]
	}

	sql := `SELECT ` + birdColumns + ` FROM birds b`
	if len(where) > 0 {
		sql += ` WHERE ` + strings.Join(where, " AND ")
	}
	sql += ` ORDER BY ` + order

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка выборки птиц: %w", err)
	}
	return collectBirds(rows)
}

// Get возвращает птицу или ErrNotFound.
func (r *Repository) Get(ctx context.Context, id int64) (*Bird, error) {
	b, err := scanBird(r.db.QueryRow(ctx, `SELECT `+birdColumns+` FROM birds b WHERE b.id = $1`, id))
	if err != nil {
		return nil, postgres.Translate(err, "птица")
	}
	return b, nil
}

// GetOrCreate находит птицу по имени без учёта регистра или создаёт её
// с редкостью C и статусом DD. Вставка идёт через ON CONFLICT DO NOTHING
// по уникальному индексу LOWER(name), так что гонка двух распознаваний
// одного вида не создаёт дубликат.
func (r *Repository) GetOrCreate(ctx context.Context, name, scientificName string) (*Bird, bool, error) {
	var id int64
	err := r.db.QueryRow(ctx, `
		INSERT INTO birds (name, scientific_name, rarity, conservation_status)
		VALUES ($1, $2, 'C', 'DD')
		ON CONFLICT ((LOWER(name))) DO NOTHING
		RETURNING id
	`, name, scientificName).Scan(&id)

	switch {
	case errors.Is(err, pgx.ErrNoRows):
		// Вид уже есть в каталоге
		b, err := scanBird(r.db.QueryRow(ctx,
			`SELECT `+birdColumns+` FROM birds b WHERE LOWER(b.name) = LOWER($1)`, name))
		if err != nil {
			return nil, false, postgres.Translate(err, "птица")
		}
		return b, false, nil
	case err != nil:
		return nil, false, postgres.Translate(err, "птица")
	}

	b, err := r.Get(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

// SaveDetails сохраняет справочные поля карточки (после обогащения).
func (r *Repository) SaveDetails(ctx context.Context, b *Bird) error {
	err := r.db.QueryRow(ctx, `
		UPDATE birds SET
			scientific_name = $2, description = $3, conservation_status = $4,
			weight_range = $5, wingspan_range = $6, length_range = $7,
			bird_order = $8, family = $9, habitat = $10, behavior = $11,
			feeding_habits = $12, breeding_info = $13, migration_pattern = $14,
			updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`, b.ID, b.ScientificName, b.Description, b.ConservationStatus,
		b.WeightRange, b.WingspanRange, b.LengthRange,
		b.Order, b.Family, b.Habitat, b.Behavior,
		b.FeedingHabits, b.BreedingInfo, b.MigrationPattern).Scan(&b.UpdatedAt)
	return postgres.Translate(err, "птица")
}

// Images возвращает фотографии вида, основная первой.
func (r *Repository) Images(ctx context.Context, birdID int64) ([]Image, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, image_url, is_primary FROM bird_images
		WHERE bird_id = $1
		ORDER BY is_primary DESC, id
	`, birdID)
	if err != nil {
		return nil, fmt.Errorf("ошибка выборки фото: %w", err)
	}
	defer rows.Close()

	out := make([]Image, 0)
	for rows.Next() {
		var img Image
		if err := rows.Scan(&img.ID, &img.ImageURL, &img.IsPrimary); err != nil {
			return nil, fmt.Errorf("ошибка чтения фото: %w", err)
		}
		out = append(out, img)
	}
	return out, rows.Err()
}

// Sounds возвращает записи голоса вида.
func (r *Repository) Sounds(ctx context.Context, birdID int64) ([]Sound, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, sound_url, sound_type, description FROM bird_sounds
		WHERE bird_id = $1
		ORDER BY id
	`, birdID)
	if err != nil {
		return nil, fmt.Errorf("ошибка выборки записей: %w", err)
	}
	defer rows.Close()

	out := make([]Sound, 0)
	for rows.Next() {
		var s Sound
		if err := rows.Scan(&s.ID, &s.SoundURL, &s.SoundType, &s.Description); err != nil {
			return nil, fmt.Errorf("ошибка чтения записи: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Similar возвращает похожие виды, самые похожие первыми.
func (r *Repository) Similar(ctx context.Context, birdID int64) ([]Similar, error) {
	rows, err := r.db.Query(ctx, `
		SELECT sb.id, sb.similarity_score,
		       b.id, b.name, b.scientific_name, b.image_url, b.rarity, b.conservation_status
		FROM similar_birds sb
		JOIN birds b ON b.id = sb.similar_to_id
		WHERE sb.bird_id = $1
		ORDER BY sb.similarity_score DESC, sb.id
	`, birdID)
	if err != nil {
		return nil, fmt.Errorf("ошибка выборки похожих видов: %w", err)
	}
	defer rows.Close()

	out := make([]Similar, 0)
	for rows.Next() {
		var s Similar
		err := rows.Scan(&s.ID, &s.SimilarityScore,
			&s.Bird.ID, &s.Bird.Name, &s.Bird.ScientificName, &s.Bird.ImageURL,
			&s.Bird.Rarity, &s.Bird.ConservationStatus)
		if err != nil {
			return nil, fmt.Errorf("ошибка чтения похожего вида: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ============================================================================
// Категории и подборки
// ============================================================================

// Categories возвращает все категории по алфавиту.
func (r *Repository) Categories(ctx context.Context) ([]Category, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, name, description, image_url, created_at
		FROM bird_categories
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("ошибка выборки категорий: %w", err)
	}
	defer rows.Close()

	out := make([]Category, 0)
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.ImageURL, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("ошибка чтения категории: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ByCategory возвращает птиц категории (имя без учёта регистра).
func (r *Repository) ByCategory(ctx context.Context, category string) ([]*Bird, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+birdColumns+`
		FROM birds b
		JOIN bird_category_assignments bca ON bca.bird_id = b.id
		JOIN bird_categories c ON c.id = bca.category_id
		WHERE LOWER(c.name) = LOWER($1)
		ORDER BY b.name, b.id
	`, category)
	if err != nil {
		return nil, fmt.Errorf("ошибка выборки птиц категории: %w", err)
	}
	return collectBirds(rows)
}

// WithBehavior возвращает птиц, в поведении которых встречается подстрока.
func (r *Repository) WithBehavior(ctx context.Context, text string) ([]*Bird, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+birdColumns+`
		FROM birds b
		WHERE b.behavior ILIKE $1
		ORDER BY b.name, b.id
	`, postgres.LikePattern(text))
	if err != nil {
		return nil, fmt.Errorf("ошибка выборки птиц по поведению: %w", err)
	}
	return collectBirds(rows)
}

// ============================================================================
// Распознавания
// ============================================================================

// CreateIdentification сохраняет результат распознавания.
func (r *Repository) CreateIdentification(ctx context.Context, id *Identification) error {
	aiResponse := id.AIResponse
	if len(aiResponse) == 0 {
		aiResponse = []byte("{}")
	}
	err := r.db.QueryRow(ctx, `
		INSERT INTO identifications (
			user_id, bird_id, image_url, sound_url, identified_species, scientific_name,
			confidence_level, provider, ai_response, latitude, longitude, location_name
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, created_at
	`, id.UserID, id.BirdID, id.ImageURL, id.SoundURL, id.IdentifiedSpecies, id.ScientificName,
		id.ConfidenceLevel, id.Provider, aiResponse, id.Latitude, id.Longitude, id.LocationName).
		Scan(&id.ID, &id.CreatedAt)
	if err != nil {
		return postgres.Translate(err, "распознавание")
	}
	return nil
}

// Identifications возвращает распознавания пользователя, новые первыми.
func (r *Repository) Identifications(ctx context.Context, userID int64) ([]*Identification, error) {
	rows, err := r.db.Query(ctx, `
		SELECT i.id, i.user_id, i.bird_id, i.image_url, i.sound_url, i.identified_species,
		       i.scientific_name, i.confidence_level, i.provider, i.ai_response,
		       i.latitude, i.longitude, i.location_name, i.created_at,
		       b.name, b.scientific_name, b.image_url, b.rarity, b.conservation_status
		FROM identifications i
		LEFT JOIN birds b ON b.id = i.bird_id
		WHERE i.user_id = $1
		ORDER BY i.created_at DESC, i.id DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("ошибка выборки распознаваний: %w", err)
	}
	defer rows.Close()

	out := make([]*Identification, 0)
	for rows.Next() {
		var id Identification
		var name, sci, img, rarity, status *string
		err := rows.Scan(&id.ID, &id.UserID, &id.BirdID, &id.ImageURL, &id.SoundURL, &id.IdentifiedSpecies,
			&id.ScientificName, &id.ConfidenceLevel, &id.Provider, &id.AIResponse,
			&id.Latitude, &id.Longitude, &id.LocationName, &id.CreatedAt,
			&name, &sci, &img, &rarity, &status)
		if err != nil {
			return nil, fmt.Errorf("ошибка чтения распознавания: %w", err)
		}
		if id.BirdID != nil && name != nil {
			id.Bird = &Summary{
				ID:                 *id.BirdID,
				Name:               *name,
				ScientificName:     deref(sci),
				ImageURL:           deref(img),
				Rarity:             deref(rarity),
				ConservationStatus: deref(status),
			}
		}
		out = append(out, &id)
	}
	return out, rows.Err()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
