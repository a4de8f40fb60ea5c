// Package discover ведёт статьи для раздела «Узнать» и закладки пользователей.
// models.go описывает статьи, закладки и запросы к ним.
package discover

import "time"

// Категории статей, которые показывает раздел «Обзор»
const (
	CategoryMigration   = "Migration"
	CategoryFeederBirds = "Feeder Birds"
)

// Article: статья.
type Article struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	ImageURL    string    `json:"image_url"`
	Category    string    `json:"category"`
	Author      string    `json:"author"`
	PreviewText string    `json:"preview_text"`
	ReadTime    int       `json:"read_time"` // минуты
	Tags        string    `json:"tags"`      // через запятую
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ArticleDetails: статья с признаком закладки текущего пользователя.
type ArticleDetails struct {
	Article
	IsBookmarked bool `json:"is_bookmarked"`
}

// Bookmark: закладка пользователя.
type Bookmark struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"-"`
	Article   Article   `json:"article"`
	Notes     string    `json:"notes"`
	CreatedAt time.Time `json:"created_at"`
}

// BookmarkResult: ответ POST /bookmark.
type BookmarkResult struct {
	Status       string `json:"status"`
	IsBookmarked bool   `json:"is_bookmarked"`
	Notes        string `json:"notes"`
}

// ============================================================================
// Запросы
// ============================================================================

// ArticleRequest: тело POST /articles.
type ArticleRequest struct {
	Title       string `json:"title" validate:"notblank,max=255"`
	Content     string `json:"content" validate:"notblank"`
	ImageURL    string `json:"image_url" validate:"omitempty,url,max=500"`
	Category    string `json:"category" validate:"notblank,max=50"`
	Author      string `json:"author" validate:"notblank,max=100"`
	PreviewText string `json:"preview_text"`
	ReadTime    int    `json:"read_time" validate:"gte=0,lte=600"`
	Tags        string `json:"tags" validate:"max=255"`
}

// ArticleUpdateRequest: тело PATCH /articles/{id}. Поля nil не меняются.
type ArticleUpdateRequest struct {
	Title       *string `json:"title" validate:"omitempty,notblank,max=255"`
	Content     *string `json:"content" validate:"omitempty,notblank"`
	ImageURL    *string `json:"image_url" validate:"omitempty,url,max=500"`
	Category    *string `json:"category" validate:"omitempty,notblank,max=50"`
	Author      *string `json:"author" validate:"omitempty,notblank,max=100"`
	PreviewText *string `json:"preview_text"`
	ReadTime    *int    `json:"read_time" validate:"omitempty,gte=0,lte=600"`
	Tags        *string `json:"tags" validate:"omitempty,max=255"`
}

// Apply переносит заданные поля в статью.
func (req ArticleUpdateRequest) Apply(a *Article) {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	set(&a.Title, req.Title)
	set(&a.Content, req.Content)
	set(&a.ImageURL, req.ImageURL)
	set(&a.Category, req.Category)
	set(&a.Author, req.Author)
	set(&a.PreviewText, req.PreviewText)
	set(&a.Tags, req.Tags)
	if req.ReadTime != nil {
		a.ReadTime = *req.ReadTime
	}
}

// BookmarkRequest: тело POST /bookmark.
type BookmarkRequest struct {
	ArticleID int64  `json:"article_id" validate:"required,gt=0"`
	Notes     string `json:"notes"`
}
