package streak

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serotonyl.ru/birdwatch/internal/db/postgres"
	"serotonyl.ru/birdwatch/internal/testutil"
)

func TestServiceTouchConcurrentSameUser(t *testing.T) {
	pool := testutil.NewPostgres(t)
	ctx := context.Background()
	userID := testutil.CreateUser(t, pool, "streak@example.com")

	svc := NewService(NewRepository(pool), time.UTC)
	yesterday := time.Now().UTC().AddDate(0, 0, -1)
	svc.now = func() time.Time { return yesterday }
	require.NoError(t, postgres.WithTx(ctx, pool, func(tx pgx.Tx) error {
		_, err := svc.Touch(ctx, tx, userID)
		return err
	}))

	// Два одновременных действия сегодня: серия должна вырасти ровно на 1
	svc.now = time.Now
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := postgres.WithTx(ctx, pool, func(tx pgx.Tx) error {
				_, err := svc.Touch(ctx, tx, userID)
				return err
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	st, err := svc.Get(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 2, st.Current)
	assert.Equal(t, 2, st.Longest)
}

func TestServiceExpireBroken(t *testing.T) {
	pool := testutil.NewPostgres(t)
	ctx := context.Background()
	userID := testutil.CreateUser(t, pool, "expire@example.com")

	svc := NewService(NewRepository(pool), time.UTC)
	svc.now = func() time.Time { return time.Now().UTC().AddDate(0, 0, -3) }
	require.NoError(t, postgres.WithTx(ctx, pool, func(tx pgx.Tx) error {
		_, err := svc.Touch(ctx, tx, userID)
		return err
	}))

	svc.now = time.Now
	require.NoError(t, svc.ExpireBroken(ctx))

	raw, err := svc.repo.GetByUserID(ctx, userID)
	require.NoError(t, err)
	require.NotNil(t, raw)
	assert.Equal(t, 0, raw.Current)
	assert.Equal(t, 1, raw.Longest)
}

func TestServiceGetWithoutRow(t *testing.T) {
	pool := testutil.NewPostgres(t)
	userID := testutil.CreateUser(t, pool, "nobody@example.com")

	st, err := NewService(NewRepository(pool), time.UTC).Get(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, State{}, st)
}
