// Package discover: repository.go выполняет операции с таблицами articles и bookmarks.
package discover

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"serotonyl.ru/birdwatch/internal/db/postgres"
)

// Repository предоставляет методы для работы со статьями и закладками.
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

const articleColumns = `a.id, a.title, a.content, a.image_url, a.category, a.author,
	a.preview_text, a.read_time, a.tags, a.created_at, a.updated_at`

func scanArticle(row pgx.Row, a *Article) error {
	return row.Scan(&a.ID, &a.Title, &a.Content, &a.ImageURL, &a.Category, &a.Author,
		&a.PreviewText, &a.ReadTime, &a.Tags, &a.CreatedAt, &a.UpdatedAt)
}

func collectArticles(rows pgx.Rows) ([]*Article, error) {
	defer rows.Close()

	out := make([]*Article, 0)
	for rows.Next() {
		var a Article
		if err := scanArticle(rows, &a); err != nil {
			return nil, fmt.Errorf("ошибка сканирования статьи: %w", err)
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}

// ============================================================================
// Статьи
// ============================================================================

// Articles возвращает статьи, новые первыми. Пустой список категорий: все статьи.
func (r *Repository) Articles(ctx context.Context, categories ...string) ([]*Article, error) {
	query := `SELECT ` + articleColumns + ` FROM articles a`
	var args []any
	if len(categories) > 0 {
		query += ` WHERE a.category = ANY($1)`
		args = append(args, categories)
	}
	query += ` ORDER BY a.created_at DESC, a.id DESC`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка выборки статей: %w", err)
	}
	return collectArticles(rows)
}

// GetArticle возвращает статью по id.
func (r *Repository) GetArticle(ctx context.Context, id int64) (*Article, error) {
	var a Article
	err := scanArticle(r.db.QueryRow(ctx, `SELECT `+articleColumns+` FROM articles a WHERE a.id = $1`, id), &a)
	if err != nil {
		return nil, postgres.Translate(err, fmt.Sprintf("статья %d", id))
	}
	return &a, nil
}

// CreateArticle сохраняет статью и заполняет id и даты.
func (r *Repository) CreateArticle(ctx context.Context, a *Article) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO articles (title, content, image_url, category, author, preview_text, read_time, tags)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at
	`, a.Title, a.Content, a.ImageURL, a.Category, a.Author, a.PreviewText, a.ReadTime, a.Tags,
	).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return postgres.Translate(err, "статья")
	}
	return nil
}

// UpdateArticle сохраняет изменённую статью.
func (r *Repository) UpdateArticle(ctx context.Context, a *Article) error {
	err := r.db.QueryRow(ctx, `
		UPDATE articles
		SET title = $2, content = $3, image_url = $4, category = $5, author = $6,
		    preview_text = $7, read_time = $8, tags = $9, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`, a.ID, a.Title, a.Content, a.ImageURL, a.Category, a.Author, a.PreviewText, a.ReadTime, a.Tags,
	).Scan(&a.UpdatedAt)
	if err != nil {
		return postgres.Translate(err, fmt.Sprintf("статья %d", a.ID))
	}
	return nil
}

// DeleteArticle удаляет статью вместе с закладками на неё.
func (r *Repository) DeleteArticle(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM articles WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("ошибка удаления статьи: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return postgres.Translate(pgx.ErrNoRows, fmt.Sprintf("статья %d", id))
	}
	return nil
}

// ============================================================================
// Закладки
// ============================================================================

// UpsertBookmark создаёт закладку или обновляет заметку существующей.
func (r *Repository) UpsertBookmark(ctx context.Context, userID, articleID int64, notes string) (string, error) {
	var saved string
	err := r.db.QueryRow(ctx, `
		INSERT INTO bookmarks (user_id, article_id, notes)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, article_id) DO UPDATE SET notes = EXCLUDED.notes
		RETURNING notes
	`, userID, articleID, notes).Scan(&saved)
	if err != nil {
		return "", postgres.Translate(err, fmt.Sprintf("статья %d", articleID))
	}
	return saved, nil
}

// IsBookmarked проверяет, есть ли у пользователя закладка на статью.
func (r *Repository) IsBookmarked(ctx context.Context, userID, articleID int64) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM bookmarks WHERE user_id = $1 AND article_id = $2)`,
		userID, articleID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("ошибка проверки закладки: %w", err)
	}
	return exists, nil
}

// Bookmarks возвращает закладки пользователя, новые первыми.
func (r *Repository) Bookmarks(ctx context.Context, userID int64) ([]*Bookmark, error) {
	rows, err := r.db.Query(ctx, `
		SELECT bm.id, bm.user_id, bm.notes, bm.created_at, `+articleColumns+`
		FROM bookmarks bm
		JOIN articles a ON a.id = bm.article_id
		WHERE bm.user_id = $1
		ORDER BY bm.created_at DESC, bm.id DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("ошибка выборки закладок: %w", err)
	}
	defer rows.Close()

	out := make([]*Bookmark, 0)
	for rows.Next() {
		var b Bookmark
		a := &b.Article
		err := rows.Scan(&b.ID, &b.UserID, &b.Notes, &b.CreatedAt,
			&a.ID, &a.Title, &a.Content, &a.ImageURL, &a.Category, &a.Author,
			&a.PreviewText, &a.ReadTime, &a.Tags, &a.CreatedAt, &a.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования закладки: %w", err)
		}
		out = append(out, &b)
	}
	return out, rows.Err()
}

// BookmarkOwner возвращает владельца закладки.
func (r *Repository) BookmarkOwner(ctx context.Context, id int64) (int64, error) {
	var owner int64
	err := r.db.QueryRow(ctx, `SELECT user_id FROM bookmarks WHERE id = $1`, id).Scan(&owner)
	if err != nil {
		return 0, postgres.Translate(err, fmt.Sprintf("закладка %d", id))
	}
	return owner, nil
}

// DeleteBookmark удаляет закладку.
func (r *Repository) DeleteBookmark(ctx context.Context, id int64) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM bookmarks WHERE id = $1`, id); err != nil {
		return fmt.Errorf("ошибка удаления закладки: %w", err)
	}
	return nil
}
