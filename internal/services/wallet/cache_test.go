package wallet

import (
	"context"
	"testing"
	"time"

	"parkpay/internal/models"
	"parkpay/internal/repositories/cache"
	"parkpay/internal/repositories/memory"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// racingCache commits a balance change between the store load and the cache
// fill, the way a concurrent transfer would.
type racingCache struct {
	*cache.CacheService
	store *memory.Store
	fired bool
}

func (c *racingCache) SetWallet(ctx context.Context, w *models.Wallet, generation int64) error {
	if !c.fired {
		c.fired = true
		if _, err := c.store.Wallets().AdjustBalance(ctx, w.ID, -250, w.Version); err != nil {
			return err
		}
		if err := c.CacheService.InvalidateWallets(ctx, w.ID); err != nil {
			return err
		}
	}
	return c.CacheService.SetWallet(ctx, w, generation)
}

func TestWalletService_GetBalanceDoesNotCacheSupersededRow(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	rc := &racingCache{CacheService: cache.NewCacheService(client, time.Minute)}
	svc, store := newTestService(t, rc, nil)
	rc.store = store
	ctx := userCtx("u-1")

	w, err := svc.Provision(ctx, ProvisionRequest{OwnerType: models.OwnerTypeUser, OwnerID: "u-1", WalletType: models.WalletTypePersonal})
	require.NoError(t, err)
	_, err = store.Wallets().AdjustBalance(context.Background(), w.ID, 1_000, w.Version)
	require.NoError(t, err)

	// The first read returns the row it loaded but must not cache it.
	bal, err := svc.GetBalance(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1_000), bal.Balance)
	assert.True(t, rc.fired)
	assert.False(t, mr.Exists(cache.WalletKey(w.ID)))

	bal, err = svc.GetBalance(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(750), bal.Balance)

	cached, _, err := rc.GetWallet(context.Background(), w.ID)
	require.NoError(t, err)
	require.NotNil(t, cached)
	assert.Equal(t, int64(750), cached.Balance)
}
