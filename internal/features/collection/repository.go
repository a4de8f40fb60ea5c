// Package collection: repository.go выполняет операции с записями коллекции,
// кешем очков редкости и достижениями.
package collection

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"serotonyl.ru/birdwatch/internal/db/postgres"
	"serotonyl.ru/birdwatch/internal/features/birds"
)

// Repository предоставляет методы для работы с коллекцией.
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
// Записи коллекции
// ============================================================================

const selectEntries = `
	SELECT e.id, e.user_id, e.bird_id, e.location, e.latitude, e.longitude, e.notes,
	       e.is_favorite, e.is_featured, e.date_added,
	       b.name, b.scientific_name, b.image_url, b.rarity, b.conservation_status
	FROM collection_entries e
	JOIN birds b ON b.id = e.bird_id
`

func scanEntry(row pgx.Row) (*Entry, error) {
	var e Entry
	err := row.Scan(&e.ID, &e.UserID, &e.BirdID, &e.Location, &e.Latitude, &e.Longitude, &e.Notes,
		&e.IsFavorite, &e.IsFeatured, &e.DateAdded,
		&e.Bird.Name, &e.Bird.ScientificName, &e.Bird.ImageURL, &e.Bird.Rarity, &e.Bird.ConservationStatus)
	if err != nil {
		return nil, err
	}
	e.Bird.ID = e.BirdID
	return &e, nil
}

func collectEntries(rows pgx.Rows) ([]*Entry, error) {
	defer rows.Close()

	out := make([]*Entry, 0)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка чтения записи коллекции: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Insert добавляет птицу в коллекцию.
// Повтор той же птицы даёт ErrConflict, несуществующая птица ErrNotFound.
func (r *Repository) Insert(ctx context.Context, e *Entry) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO collection_entries (user_id, bird_id, location, latitude, longitude, notes)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, is_favorite, is_featured, date_added
	`, e.UserID, e.BirdID, e.Location, e.Latitude, e.Longitude, e.Notes).
		Scan(&e.ID, &e.IsFavorite, &e.IsFeatured, &e.DateAdded)
	if err != nil {
		return postgres.Translate(err, "запись коллекции")
	}
	return nil
}

// Get возвращает запись коллекции или ErrNotFound.
func (r *Repository) Get(ctx context.Context, id int64) (*Entry, error) {
	e, err := scanEntry(r.db.QueryRow(ctx, selectEntries+` WHERE e.id = $1`, id))
	if err != nil {
		return nil, postgres.Translate(err, "запись коллекции")
	}
	return e, nil
}

// List возвращает записи пользователя по фильтру, новые первыми.
func (r *Repository) List(ctx context.Context, userID int64, f Filter) ([]*Entry, error) {
	where := []string{"e.user_id = $1"}
	args := []any{userID}
	add := func(cond string, arg any) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}

	if q := strings.TrimSpace(f.Query); q != "" {
		add("(b.name ILIKE $%[1]d OR b.scientific_name ILIKE $%[1]d)", postgres.LikePattern(q))
	}
	if f.Rarity != "" {
		add("b.rarity = $%d", f.Rarity)
	}
	if c := strings.TrimSpace(f.Category); c != "" {
		add(`EXISTS (
			SELECT 1 FROM bird_category_assignments a
			JOIN bird_categories c ON c.id = a.category_id
			WHERE a.bird_id = b.id AND c.name ILIKE $%d)`, postgres.LikePattern(c))
	}
	if l := strings.TrimSpace(f.Location); l != "" {
		add("e.location ILIKE $%d", postgres.LikePattern(l))
	}
	if g := strings.TrimSpace(f.Region); g != "" {
		add("(e.location ILIKE $%[1]d OR b.global_distribution ILIKE $%[1]d)", postgres.LikePattern(g))
	}
	if s := strings.TrimSpace(f.Season); s != "" {
		add("b.migration_pattern ILIKE $%d", postgres.LikePattern(s))
	}
	if f.From != nil {
		add("e.date_added >= $%d", *f.From)
	}
	if f.To != nil {
		add("e.date_added < $%d", f.To.AddDate(0, 0, 1))
	}
	if f.Favorites {
		where = append(where, "e.is_favorite")
	}

	sql := selectEntries + ` WHERE ` + strings.Join(where, " AND ") + ` ORDER BY e.date_added DESC, e.id DESC`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		sql += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка выборки коллекции: %w", err)
	}
	return collectEntries(rows)
}

// Update сохраняет изменяемые поля записи.
func (r *Repository) Update(ctx context.Context, e *Entry) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE collection_entries SET location = $2, notes = $3, is_featured = $4 WHERE id = $1
	`, e.ID, e.Location, e.Notes, e.IsFeatured)
	if err != nil {
		return postgres.Translate(err, "запись коллекции")
	}
	if tag.RowsAffected() == 0 {
		return postgres.Translate(pgx.ErrNoRows, "запись коллекции")
	}
	return nil
}

// Delete удаляет запись.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM collection_entries WHERE id = $1`, id)
	if err != nil {
		return postgres.Translate(err, "запись коллекции")
	}
	if tag.RowsAffected() == 0 {
		return postgres.Translate(pgx.ErrNoRows, "запись коллекции")
	}
	return nil
}

// ToggleFavorite инвертирует флаг избранного и возвращает новое значение.
// Нет записи о птице: ErrNotFound.
func (r *Repository) ToggleFavorite(ctx context.Context, userID, birdID int64) (bool, error) {
	var fav bool
	err := r.db.QueryRow(ctx, `
		UPDATE collection_entries SET is_favorite = NOT is_favorite
		WHERE user_id = $1 AND bird_id = $2
		RETURNING is_favorite
	`, userID, birdID).Scan(&fav)
	if err != nil {
		return false, postgres.Translate(err, "запись коллекции")
	}
	return fav, nil
}

// Counters считает записи, избранное, отмеченные и различные непустые места.
func (r *Repository) Counters(ctx context.Context, userID int64) (Counters, error) {
	var c Counters
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE is_favorite),
		       COUNT(*) FILTER (WHERE is_featured),
		       COUNT(DISTINCT NULLIF(TRIM(location), ''))
		FROM collection_entries
		WHERE user_id = $1
	`, userID).Scan(&c.Total, &c.Favorites, &c.Featured, &c.Locations)
	if err != nil {
		return Counters{}, fmt.Errorf("ошибка подсчёта коллекции: %w", err)
	}
	return c, nil
}

// Rarest возвращает самую редкую птицу коллекции (при равенстве последнюю добавленную) или nil.
func (r *Repository) Rarest(ctx context.Context, userID int64) (*birds.Summary, error) {
	e, err := scanEntry(r.db.QueryRow(ctx, selectEntries+`
		WHERE e.user_id = $1
		ORDER BY CASE b.rarity WHEN 'S' THEN 0 WHEN 'A' THEN 1 WHEN 'B' THEN 2 ELSE 3 END,
		         e.date_added DESC, e.id DESC
		LIMIT 1
	`, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка поиска редчайшей птицы: %w", err)
	}
	return &e.Bird, nil
}

// ============================================================================
// Очки редкости
// ============================================================================

// TierCounts считает птиц коллекции по уровням редкости.
func (r *Repository) TierCounts(ctx context.Context, userID int64) (TierCounts, error) {
	rows, err := r.db.Query(ctx, `
		SELECT b.rarity, COUNT(*)
		FROM collection_entries e
		JOIN birds b ON b.id = e.bird_id
		WHERE e.user_id = $1
		GROUP BY b.rarity
	`, userID)
	if err != nil {
		return TierCounts{}, fmt.Errorf("ошибка подсчёта уровней: %w", err)
	}
	defer rows.Close()

	var c TierCounts
	for rows.Next() {
		var (
			tier string
			n    int
		)
		if err := rows.Scan(&tier, &n); err != nil {
			return TierCounts{}, fmt.Errorf("ошибка чтения уровня: %w", err)
		}
		c.Add(tier, n)
	}
	return c, rows.Err()
}

// EnsureScore создаёт нулевую строку очков, если её нет.
func (r *Repository) EnsureScore(ctx context.Context, userID int64) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO rarity_scores (user_id) VALUES ($1)
		ON CONFLICT (user_id) DO NOTHING
	`, userID)
	if err != nil {
		return fmt.Errorf("ошибка создания очков: %w", err)
	}
	return nil
}

// LockScore блокирует строку очков до конца транзакции.
func (r *Repository) LockScore(ctx context.Context, userID int64) error {
	var id int64
	err := r.db.QueryRow(ctx,
		`SELECT user_id FROM rarity_scores WHERE user_id = $1 FOR UPDATE`, userID).Scan(&id)
	return postgres.Translate(err, "очки редкости")
}

// SaveScore записывает пересчитанные очки.
func (r *Repository) SaveScore(ctx context.Context, userID int64, c TierCounts) error {
	_, err := r.db.Exec(ctx, `
		UPDATE rarity_scores
		SET s_count = $2, a_count = $3, b_count = $4, c_count = $5, total_score = $6, updated_at = NOW()
		WHERE user_id = $1
	`, userID, c.S, c.A, c.B, c.C, c.TotalScore())
	if err != nil {
		return fmt.Errorf("ошибка сохранения очков: %w", err)
	}
	return nil
}

// GetScore возвращает кеш очков; без строки нулевые значения.
func (r *Repository) GetScore(ctx context.Context, userID int64) (*RarityScore, error) {
	var (
		s         RarityScore
		updatedAt time.Time
	)
	err := r.db.QueryRow(ctx, `
		SELECT s_count, a_count, b_count, c_count, total_score, updated_at
		FROM rarity_scores WHERE user_id = $1
	`, userID).Scan(&s.S, &s.A, &s.B, &s.C, &s.TotalScore, &updatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return &RarityScore{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения очков: %w", err)
	}
	s.UpdatedAt = &updatedAt
	return &s, nil
}

// RankCounts возвращает число пользователей с очками и число тех, у кого очков больше score.
func (r *Repository) RankCounts(ctx context.Context, score int) (greater, total int, err error) {
	err = r.db.QueryRow(ctx, `
		SELECT COUNT(*) FILTER (WHERE total_score > $1), COUNT(*) FROM rarity_scores
	`, score).Scan(&greater, &total)
	if err != nil {
		return 0, 0, fmt.Errorf("ошибка подсчёта ранга: %w", err)
	}
	return greater, total, nil
}

// ReconcileScores пересчитывает все строки очков по коллекциям одним запросом.
// Возвращает число исправленных строк.
func (r *Repository) ReconcileScores(ctx context.Context) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		WITH actual AS (
			SELECT s.user_id,
			       COUNT(b.id) FILTER (WHERE b.rarity = 'S') AS s,
			       COUNT(b.id) FILTER (WHERE b.rarity = 'A') AS a,
			       COUNT(b.id) FILTER (WHERE b.rarity = 'B') AS b,
			       COUNT(b.id) FILTER (WHERE b.rarity = 'C') AS c
			FROM rarity_scores s
			LEFT JOIN collection_entries e ON e.user_id = s.user_id
			LEFT JOIN birds b ON b.id = e.bird_id
			GROUP BY s.user_id
		)
		UPDATE rarity_scores r
		SET s_count = a.s, a_count = a.a, b_count = a.b, c_count = a.c,
		    total_score = a.s*$1 + a.a*$2 + a.b*$3 + a.c*$4,
		    updated_at = NOW()
		FROM actual a
		WHERE r.user_id = a.user_id
		  AND (r.s_count, r.a_count, r.b_count, r.c_count, r.total_score)
		      IS DISTINCT FROM (a.s, a.a, a.b, a.c, a.s*$1 + a.a*$2 + a.b*$3 + a.c*$4)
	`, WeightS, WeightA, WeightB, WeightC)
	if err != nil {
		return 0, fmt.Errorf("ошибка сверки очков: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ============================================================================
// Достижения
// ============================================================================

// Award выдаёт достижение. Возвращает false, если оно уже было получено.
func (r *Repository) Award(ctx context.Context, userID int64, a *Achievement) (bool, error) {
	err := r.db.QueryRow(ctx, `
		INSERT INTO achievements (user_id, achievement_type, title, description, value, icon_url)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id, achievement_type, title) DO NOTHING
		RETURNING id, date_achieved
	`, userID, a.Type, a.Title, a.Description, a.Value, a.IconURL).Scan(&a.ID, &a.DateAchieved)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("ошибка выдачи достижения: %w", err)
	}
	return true, nil
}

// Achievements возвращает достижения пользователя, новые первыми.
func (r *Repository) Achievements(ctx context.Context, userID int64) ([]*Achievement, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, achievement_type, title, description, value, icon_url, date_achieved
		FROM achievements
		WHERE user_id = $1
		ORDER BY date_achieved DESC, id DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("ошибка выборки достижений: %w", err)
	}
	defer rows.Close()

	out := make([]*Achievement, 0)
	for rows.Next() {
		var a Achievement
		if err := rows.Scan(&a.ID, &a.Type, &a.Title, &a.Description, &a.Value, &a.IconURL, &a.DateAchieved); err != nil {
			return nil, fmt.Errorf("ошибка чтения достижения: %w", err)
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}
