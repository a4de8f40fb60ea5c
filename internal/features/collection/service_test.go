package collection

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serotonyl.ru/birdwatch/internal/common"
	"serotonyl.ru/birdwatch/internal/features/activity"
	"serotonyl.ru/birdwatch/internal/features/birds"
	"serotonyl.ru/birdwatch/internal/features/streak"
	"serotonyl.ru/birdwatch/internal/testutil"
)

type fixture struct {
	pool *pgxpool.Pool
	svc  *Service
	feed *activity.Service
}

func newFixture(t *testing.T) *fixture {
	pool := testutil.NewPostgres(t)
	streaks := streak.NewService(streak.NewRepository(pool), time.UTC)
	feed := activity.NewService(activity.NewRepository(pool))
	return &fixture{
		pool: pool,
		svc:  NewService(pool, NewRepository(pool), birds.NewRepository(pool), streaks, feed),
		feed: feed,
	}
}

func TestCreateScoresAndAdvancesStreak(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := testutil.CreateUser(t, f.pool, "collector@example.com")

	s := testutil.CreateBird(t, f.pool, "Snowy Owl", "S")
	a := testutil.CreateBird(t, f.pool, "Bald Eagle", "A")
	c := testutil.CreateBird(t, f.pool, "House Sparrow", "C")

	_, err := f.svc.Create(ctx, userID, CreateRequest{BirdID: s, Location: "Central Park"})
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, userID, CreateRequest{BirdID: a, Location: "central park "})
	require.NoError(t, err)
	entry, err := f.svc.Create(ctx, userID, CreateRequest{BirdID: c})
	require.NoError(t, err)
	assert.Equal(t, "House Sparrow", entry.Bird.Name)
	assert.Equal(t, c, entry.Bird.ID)

	score, err := f.svc.Highlights(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, TierCounts{S: 1, A: 1, C: 1}, score.TierCounts)
	assert.Equal(t, 160, score.TotalScore)

	// Повтор птицы
	_, err = f.svc.Create(ctx, userID, CreateRequest{BirdID: c})
	assert.ErrorIs(t, err, common.ErrConflict)
	// Несуществующая птица
	_, err = f.svc.Create(ctx, userID, CreateRequest{BirdID: 999999})
	assert.ErrorIs(t, err, common.ErrNotFound)

	var current int
	require.NoError(t, f.pool.QueryRow(ctx,
		`SELECT current_streak FROM streaks WHERE user_id = $1`, userID).Scan(&current))
	assert.Equal(t, 1, current)

	stats, err := f.svc.Stats(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalBirds)
	assert.Equal(t, 2, stats.LocationsExplored)
	assert.InDelta(t, 160.0/3, stats.RarityIndex, 1e-9)
	require.Len(t, stats.RecentAdditions, 3)
	assert.Equal(t, c, stats.RecentAdditions[0].BirdID)

	achievements, err := f.svc.Achievements(ctx, userID)
	require.NoError(t, err)
	require.Len(t, achievements, 1)
	assert.Equal(t, "S-Rank Collector", achievements[0].Title)

	feed, err := f.feed.All(ctx, userID)
	require.NoError(t, err)
	require.Len(t, feed, 3)
	assert.Equal(t, activity.TypeCollected, feed[0].ActivityType)
}

func TestDeleteRecomputesScore(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := testutil.CreateUser(t, f.pool, "owner@example.com")
	other := testutil.CreateUser(t, f.pool, "other@example.com")
	b := testutil.CreateBird(t, f.pool, "Kakapo", "S")

	entry, err := f.svc.Create(ctx, owner, CreateRequest{BirdID: b})
	require.NoError(t, err)

	assert.ErrorIs(t, f.svc.Delete(ctx, other, entry.ID), common.ErrForbidden)
	_, err = f.svc.Get(ctx, other, entry.ID)
	assert.ErrorIs(t, err, common.ErrForbidden)

	require.NoError(t, f.svc.Delete(ctx, owner, entry.ID))
	score, err := f.svc.Highlights(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, 0, score.TotalScore)
	assert.Equal(t, TierCounts{}, score.TierCounts)

	assert.ErrorIs(t, f.svc.Delete(ctx, owner, entry.ID), common.ErrNotFound)

	feed, err := f.feed.Recent(ctx, owner)
	require.NoError(t, err)
	require.NotEmpty(t, feed)
	assert.Equal(t, activity.TypeUncollected, feed[0].ActivityType)
}

func TestFavoriteToggleAndFilters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := testutil.CreateUser(t, f.pool, "fav@example.com")
	robin := testutil.CreateBird(t, f.pool, "American Robin", "C")
	owl := testutil.CreateBird(t, f.pool, "Great Grey Owl", "A")

	_, err := f.pool.Exec(ctx,
		`UPDATE birds SET migration_pattern = 'Winter visitor', global_distribution = 'Boreal Canada' WHERE id = $1`, owl)
	require.NoError(t, err)

	_, err = f.svc.Create(ctx, userID, CreateRequest{BirdID: robin, Location: "Backyard"})
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, userID, CreateRequest{BirdID: owl, Location: "Forest"})
	require.NoError(t, err)

	resp, err := f.svc.ToggleFavorite(ctx, userID, robin)
	require.NoError(t, err)
	assert.Equal(t, "favorited", resp.Status)

	favs, err := f.svc.List(ctx, userID, Filter{Favorites: true})
	require.NoError(t, err)
	require.Len(t, favs, 1)
	assert.Equal(t, robin, favs[0].BirdID)

	resp, err = f.svc.ToggleFavorite(ctx, userID, robin)
	require.NoError(t, err)
	assert.Equal(t, "unfavorited", resp.Status)

	_, err = f.svc.ToggleFavorite(ctx, userID, 999999)
	assert.ErrorIs(t, err, common.ErrNotFound)

	got, err := f.svc.QuickFilter(ctx, userID, FilterRequest{FilterType: FilterSeason, FilterValue: "winter"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, owl, got[0].BirdID)

	got, err = f.svc.QuickFilter(ctx, userID, FilterRequest{FilterType: FilterRegion, FilterValue: "backyard"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, robin, got[0].BirdID)

	_, err = f.svc.QuickFilter(ctx, userID, FilterRequest{FilterType: FilterRarity, FilterValue: "Z"})
	assert.ErrorIs(t, err, common.ErrInvalidParameters)

	got, err = f.svc.Search(ctx, userID, SearchRequest{Query: "owl", Rarity: "A"})
	require.NoError(t, err)
	require.Len(t, got, 1)

	today := time.Now().UTC().Format(time.DateOnly)
	got, err = f.svc.Search(ctx, userID, SearchRequest{DateFrom: today, DateTo: today})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	_, err = f.svc.Search(ctx, userID, SearchRequest{DateFrom: "2024-05-02", DateTo: "2024-05-01"})
	assert.ErrorIs(t, err, common.ErrInvalidParameters)
}

func TestBraggingRights(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	top := testutil.CreateUser(t, f.pool, "top@example.com")
	low := testutil.CreateUser(t, f.pool, "low@example.com")

	empty, err := f.svc.Bragging(ctx, low)
	require.NoError(t, err)
	assert.Equal(t, NoFindsLabel, empty.RarestFind.Label)
	assert.Nil(t, empty.RarestFind.Bird)
	assert.Equal(t, NewCollectorRank, empty.CollectionRank)
	assert.Equal(t, "0 Days Active", empty.StreakStatus)
	assert.NotNil(t, empty.Achievements)

	eagle := testutil.CreateBird(t, f.pool, "Harpy Eagle", "A")
	crow := testutil.CreateBird(t, f.pool, "Carrion Crow", "C")
	_, err = f.svc.Create(ctx, top, CreateRequest{BirdID: eagle})
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, low, CreateRequest{BirdID: crow})
	require.NoError(t, err)

	b, err := f.svc.Bragging(ctx, top)
	require.NoError(t, err)
	assert.Equal(t, "A-Rarity Find", b.RarestFind.Label)
	require.NotNil(t, b.RarestFind.Bird)
	assert.Equal(t, "Harpy Eagle", b.RarestFind.Bird.Name)
	assert.Equal(t, "Top 5%", b.CollectionRank)
	assert.Equal(t, "1 Day Active", b.StreakStatus)

	b, err = f.svc.Bragging(ctx, low)
	require.NoError(t, err)
	assert.Equal(t, "Top 50%", b.CollectionRank)
}

func TestReconcileScoresFixesDrift(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := testutil.CreateUser(t, f.pool, "drift@example.com")
	b := testutil.CreateBird(t, f.pool, "Kestrel", "B")
	_, err := f.svc.Create(ctx, userID, CreateRequest{BirdID: b})
	require.NoError(t, err)

	_, err = f.pool.Exec(ctx, `UPDATE rarity_scores SET total_score = 999 WHERE user_id = $1`, userID)
	require.NoError(t, err)

	require.NoError(t, f.svc.ReconcileScores(ctx))
	score, err := f.svc.Highlights(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 25, score.TotalScore)

	n, err := f.svc.repo.ReconcileScores(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}
