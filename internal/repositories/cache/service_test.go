package cache

import (
	"context"
	"testing"
	"time"

	"parkpay/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T, ttl time.Duration) (*CacheService, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCacheService(client, ttl), mr
}

func TestCacheService_WalletRoundTrip(t *testing.T) {
	svc, mr := newTestCache(t, time.Minute)
	ctx := context.Background()

	got, gen, err := svc.GetWallet(ctx, "w-1")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Equal(t, int64(0), gen)

	require.NoError(t, svc.SetWallet(ctx, &models.Wallet{ID: "w-1", Balance: 500, Version: 2}, gen))

	got, _, err = svc.GetWallet(ctx, "w-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(500), got.Balance)
	assert.Equal(t, int64(2), got.Version)

	mr.FastForward(2 * time.Minute)
	got, _, err = svc.GetWallet(ctx, "w-1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestCacheService_FillAfterInvalidationIsDropped(t *testing.T) {
	svc, _ := newTestCache(t, time.Minute)
	ctx := context.Background()

	// A reader misses and loads the row at version 1.
	_, gen, err := svc.GetWallet(ctx, "w-1")
	require.NoError(t, err)
	loaded := &models.Wallet{ID: "w-1", Balance: 1_000, Version: 1}

	// A movement commits and invalidates before the reader fills.
	require.NoError(t, svc.InvalidateWallets(ctx, "w-1"))
	require.NoError(t, svc.SetWallet(ctx, loaded, gen))

	got, next, err := svc.GetWallet(ctx, "w-1")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Equal(t, gen+1, next)

	// A fill at the current generation lands.
	require.NoError(t, svc.SetWallet(ctx, &models.Wallet{ID: "w-1", Balance: 400, Version: 2}, next))
	got, _, err = svc.GetWallet(ctx, "w-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(400), got.Balance)
}

func TestCacheService_InvalidateWallets(t *testing.T) {
	svc, mr := newTestCache(t, time.Minute)
	ctx := context.Background()

	for _, id := range []string{"w-1", "w-2"} {
		require.NoError(t, svc.SetWallet(ctx, &models.Wallet{ID: id, Balance: 1}, 0))
	}
	require.NoError(t, svc.InvalidateWallets(ctx))
	require.NoError(t, svc.InvalidateWallets(ctx, "w-1", "w-2"))

	for _, id := range []string{"w-1", "w-2"} {
		assert.False(t, mr.Exists(WalletKey(id)), id)
		gen, err := mr.Get(GenerationKey(id))
		require.NoError(t, err)
		assert.Equal(t, "1", gen)
		assert.Greater(t, mr.TTL(GenerationKey(id)), time.Duration(0))
	}
}

func TestCacheService_CorruptGeneration(t *testing.T) {
	svc, mr := newTestCache(t, time.Minute)
	require.NoError(t, mr.Set(GenerationKey("w-1"), "not-a-number"))

	_, _, err := svc.GetWallet(context.Background(), "w-1")
	assert.Error(t, err)
}

func TestCacheService_HealthCheck(t *testing.T) {
	svc, _ := newTestCache(t, time.Minute)
	assert.NoError(t, svc.HealthCheck(context.Background()))
}

func TestNoop(t *testing.T) {
	var c Noop
	ctx := context.Background()
	require.NoError(t, c.SetWallet(ctx, &models.Wallet{ID: "w-1"}, 0))
	got, gen, err := c.GetWallet(ctx, "w-1")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Equal(t, int64(0), gen)
	assert.NoError(t, c.InvalidateWallets(ctx, "w-1"))
}
