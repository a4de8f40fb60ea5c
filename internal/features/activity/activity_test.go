package activity

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serotonyl.ru/birdwatch/internal/testutil"
)

func TestServiceRecentAllSearch(t *testing.T) {
	pool := testutil.NewPostgres(t)
	ctx := context.Background()
	userID := testutil.CreateUser(t, pool, "feed@example.com")
	other := testutil.CreateUser(t, pool, "other@example.com")
	birdID := testutil.CreateBird(t, pool, "Northern Cardinal", "B")

	svc := NewService(NewRepository(pool))
	for i := 0; i < 12; i++ {
		require.NoError(t, svc.Log(ctx, pool, Entry{
			UserID:      userID,
			Type:        TypeIdentification,
			Description: fmt.Sprintf("Распознавание %d", i),
		}))
	}
	require.NoError(t, svc.Log(ctx, pool, Entry{
		UserID:       userID,
		Type:         TypeSighting,
		BirdID:       &birdID,
		Description:  "Кардинал у кормушки",
		LocationName: "Central Park",
	}))
	require.NoError(t, svc.Log(ctx, pool, Entry{UserID: other, Type: TypeBookmark, Description: "чужое"}))

	recent, err := svc.Recent(ctx, userID)
	require.NoError(t, err)
	require.Len(t, recent, RecentLimit)
	assert.Equal(t, TypeSighting, recent[0].ActivityType)
	require.NotNil(t, recent[0].Bird)
	assert.Equal(t, "Northern Cardinal", recent[0].Bird.Name)
	assert.Equal(t, "B", recent[0].Bird.Rarity)
	assert.Nil(t, recent[1].Bird)

	all, err := svc.All(ctx, userID)
	require.NoError(t, err)
	assert.Len(t, all, 13)

	found, err := svc.Search(ctx, userID, "central")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "Central Park", found[0].LocationName)

	byType, err := svc.Search(ctx, userID, "sight")
	require.NoError(t, err)
	assert.Len(t, byType, 1)

	none, err := svc.Search(ctx, userID, "100%")
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)

	blank, err := svc.Search(ctx, userID, "   ")
	require.NoError(t, err)
	assert.Len(t, blank, 13)
}
