// Package discover: service.go содержит логику статей и закладок.
package discover

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/birdwatch/internal/common"
	"serotonyl.ru/birdwatch/internal/db/postgres"
	"serotonyl.ru/birdwatch/internal/features/activity"
)

// Service управляет статьями и закладками.
type Service struct {
	db   postgres.TxBeginner
	repo *Repository
	feed *activity.Service
}

// NewService создаёт сервис.
func NewService(db postgres.TxBeginner, repo *Repository, feed *activity.Service) *Service {
	return &Service{db: db, repo: repo, feed: feed}
}

// Learn возвращает статьи категории (пустая категория: все).
func (s *Service) Learn(ctx context.Context, category string) ([]*Article, error) {
	if category = strings.TrimSpace(category); category != "" {
		return s.repo.Articles(ctx, category)
	}
	return s.repo.Articles(ctx)
}

// Details возвращает статью с признаком закладки.
func (s *Service) Details(ctx context.Context, userID, id int64) (*ArticleDetails, error) {
	a, err := s.repo.GetArticle(ctx, id)
	if err != nil {
		return nil, err
	}
	marked, err := s.repo.IsBookmarked(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	return &ArticleDetails{Article: *a, IsBookmarked: marked}, nil
}

// CreateArticle публикует статью.
func (s *Service) CreateArticle(ctx context.Context, req ArticleRequest) (*Article, error) {
	a := &Article{
		Title:       strings.TrimSpace(req.Title),
		Content:     req.Content,
		ImageURL:    req.ImageURL,
		Category:    strings.TrimSpace(req.Category),
		Author:      strings.TrimSpace(req.Author),
		PreviewText: req.PreviewText,
		ReadTime:    req.ReadTime,
		Tags:        req.Tags,
	}
	if err := s.repo.CreateArticle(ctx, a); err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{"article_id": a.ID, "category": a.Category}).Info("Статья опубликована")
	return a, nil
}

// UpdateArticle меняет заданные поля статьи.
func (s *Service) UpdateArticle(ctx context.Context, id int64, req ArticleUpdateRequest) (*Article, error) {
	a, err := s.repo.GetArticle(ctx, id)
	if err != nil {
		return nil, err
	}
	req.Apply(a)
	if err := s.repo.UpdateArticle(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// DeleteArticle удаляет статью.
func (s *Service) DeleteArticle(ctx context.Context, id int64) error {
	if err := s.repo.DeleteArticle(ctx, id); err != nil {
		return err
	}
	log.WithField("article_id", id).Info("Статья удалена")
	return nil
}

// Bookmark добавляет статью в закладки (или меняет заметку) и пишет действие в ленту.
func (s *Service) Bookmark(ctx context.Context, userID int64, req BookmarkRequest) (*BookmarkResult, error) {
	var notes string
	err := postgres.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		repo := s.repo.WithTx(tx)
		a, err := repo.GetArticle(ctx, req.ArticleID)
		if err != nil {
			return err
		}
		if notes, err = repo.UpsertBookmark(ctx, userID, a.ID, req.Notes); err != nil {
			return err
		}
		return s.feed.Log(ctx, tx, activity.Entry{
			UserID:      userID,
			Type:        activity.TypeBookmark,
			Description: fmt.Sprintf("Bookmarked %s", a.Title),
		})
	})
	if err != nil {
		return nil, err
	}
	return &BookmarkResult{Status: "success", IsBookmarked: true, Notes: notes}, nil
}

// Bookmarks возвращает закладки пользователя.
func (s *Service) Bookmarks(ctx context.Context, userID int64) ([]*Bookmark, error) {
	return s.repo.Bookmarks(ctx, userID)
}

// DeleteBookmark удаляет закладку владельца. Чужая закладка даёт ErrForbidden.
func (s *Service) DeleteBookmark(ctx context.Context, userID, id int64) error {
	owner, err := s.repo.BookmarkOwner(ctx, id)
	if err != nil {
		return err
	}
	if owner != userID {
		return fmt.Errorf("закладка %d: %w", id, common.ErrForbidden)
	}
	return s.repo.DeleteBookmark(ctx, id)
}
