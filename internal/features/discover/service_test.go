package discover

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serotonyl.ru/birdwatch/internal/common"
	"serotonyl.ru/birdwatch/internal/features/activity"
	"serotonyl.ru/birdwatch/internal/testutil"
)

type fixture struct {
	pool *pgxpool.Pool
	svc  *Service
	feed *activity.Service
}

func newFixture(t *testing.T) *fixture {
	pool := testutil.NewPostgres(t)
	feed := activity.NewService(activity.NewRepository(pool))
	return &fixture{pool: pool, svc: NewService(pool, NewRepository(pool), feed), feed: feed}
}

func (f *fixture) article(t *testing.T, title, category string) *Article {
	t.Helper()
	a, err := f.svc.CreateArticle(context.Background(), ArticleRequest{
		Title: title, Content: "Body of " + title, Category: category, Author: "Staff", ReadTime: 4,
	})
	require.NoError(t, err)
	return a
}

func TestArticlesCRUD(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := f.article(t, "Spring Flyways", CategoryMigration)
	second := f.article(t, "Suet Feeders", CategoryFeederBirds)

	all, err := f.svc.Learn(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, second.ID, all[0].ID, "новые первыми")

	only, err := f.svc.Learn(ctx, CategoryMigration)
	require.NoError(t, err)
	require.Len(t, only, 1)
	assert.Equal(t, first.ID, only[0].ID)

	title, readTime := "Autumn Flyways", 7
	updated, err := f.svc.UpdateArticle(ctx, first.ID, ArticleUpdateRequest{Title: &title, ReadTime: &readTime})
	require.NoError(t, err)
	assert.Equal(t, "Autumn Flyways", updated.Title)
	assert.Equal(t, 7, updated.ReadTime)
	assert.Equal(t, CategoryMigration, updated.Category)

	require.NoError(t, f.svc.DeleteArticle(ctx, first.ID))
	assert.ErrorIs(t, f.svc.DeleteArticle(ctx, first.ID), common.ErrNotFound)
	_, err = f.svc.UpdateArticle(ctx, first.ID, ArticleUpdateRequest{Title: &title})
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestBookmarkUpsertAndOwnership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := testutil.CreateUser(t, f.pool, "reader@example.com")
	other := testutil.CreateUser(t, f.pool, "other@example.com")
	a := f.article(t, "Owl Pellets", "Guides")

	d, err := f.svc.Details(ctx, owner, a.ID)
	require.NoError(t, err)
	assert.False(t, d.IsBookmarked)

	res, err := f.svc.Bookmark(ctx, owner, BookmarkRequest{ArticleID: a.ID, Notes: "later"})
	require.NoError(t, err)
	assert.Equal(t, &BookmarkResult{Status: "success", IsBookmarked: true, Notes: "later"}, res)

	// Повтор обновляет заметку, а не создаёт дубль
	res, err = f.svc.Bookmark(ctx, owner, BookmarkRequest{ArticleID: a.ID, Notes: "read twice"})
	require.NoError(t, err)
	assert.Equal(t, "read twice", res.Notes)

	list, err := f.svc.Bookmarks(ctx, owner)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Owl Pellets", list[0].Article.Title)

	d, err = f.svc.Details(ctx, owner, a.ID)
	require.NoError(t, err)
	assert.True(t, d.IsBookmarked)

	feed, err := f.feed.All(ctx, owner)
	require.NoError(t, err)
	require.Len(t, feed, 2)
	assert.Equal(t, activity.TypeBookmark, feed[0].ActivityType)
	assert.Equal(t, "Bookmarked Owl Pellets", feed[0].Description)

	_, err = f.svc.Bookmark(ctx, owner, BookmarkRequest{ArticleID: 999999})
	assert.ErrorIs(t, err, common.ErrNotFound)

	assert.ErrorIs(t, f.svc.DeleteBookmark(ctx, other, list[0].ID), common.ErrForbidden)
	require.NoError(t, f.svc.DeleteBookmark(ctx, owner, list[0].ID))
	assert.ErrorIs(t, f.svc.DeleteBookmark(ctx, owner, list[0].ID), common.ErrNotFound)

	list, err = f.svc.Bookmarks(ctx, owner)
	require.NoError(t, err)
	assert.Empty(t, list)
}
