// Package cache holds read-through snapshots of wallets in Redis. Snapshots
// serve balance reads only; money movements always read the database.
//
// Every wallet also has a generation counter. Invalidation bumps it in the
// same MULTI that drops the snapshot, and a fill only lands while the
// generation still matches the one read before the database load, so a
// reader that loaded a row before a movement committed cannot write it back.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"parkpay/internal/models"

	"github.com/redis/go-redis/v9"
)

// generationTTL outlives any snapshot so a counter never resets under a live fill.
const generationTTL = 24 * time.Hour

var setIfGeneration = redis.NewScript(`
local current = redis.call('GET', KEYS[2]) or '0'
if current ~= ARGV[1] then
  return 0
end
if tonumber(ARGV[3]) > 0 then
  redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
else
  redis.call('SET', KEYS[1], ARGV[2])
end
return 1
`)

type CacheService struct {
	client *redis.Client
	ttl    time.Duration
}

func NewCacheService(client *redis.Client, defaultTTL time.Duration) *CacheService {
	return &CacheService{
		client: client,
		ttl:    defaultTTL,
	}
}

// GetWallet returns the cached snapshot, or nil on a miss, together with the
// wallet's current generation.
func (s *CacheService) GetWallet(ctx context.Context, walletID string) (*models.Wallet, int64, error) {
	vals, err := s.client.MGet(ctx, WalletKey(walletID), GenerationKey(walletID)).Result()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get cache value: %w", err)
	}

	var generation int64
	if raw, ok := vals[1].(string); ok {
		if generation, err = strconv.ParseInt(raw, 10, 64); err != nil {
			return nil, 0, fmt.Errorf("invalid wallet generation %q: %w", raw, err)
		}
	}

	raw, ok := vals[0].(string)
	if !ok {
		return nil, generation, nil
	}
	var wallet models.Wallet
	if err := json.Unmarshal([]byte(raw), &wallet); err != nil {
		return nil, generation, fmt.Errorf("failed to unmarshal cache value: %w", err)
	}
	return &wallet, generation, nil
}

// SetWallet stores the snapshot unless the wallet was invalidated after
// generation was read. A skipped write is not an error.
func (s *CacheService) SetWallet(ctx context.Context, wallet *models.Wallet, generation int64) error {
	if wallet == nil {
		return errors.New("cannot cache nil wallet")
	}
	data, err := json.Marshal(wallet)
	if err != nil {
		return fmt.Errorf("failed to marshal cache value: %w", err)
	}
	keys := []string{WalletKey(wallet.ID), GenerationKey(wallet.ID)}
	return setIfGeneration.Run(ctx, s.client, keys, generation, string(data), s.ttl.Milliseconds()).Err()
}

func (s *CacheService) InvalidateWallets(ctx context.Context, walletIDs ...string) error {
	if len(walletIDs) == 0 {
		return nil
	}
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, id := range walletIDs {
			pipe.Incr(ctx, GenerationKey(id))
			pipe.Expire(ctx, GenerationKey(id), generationTTL)
			pipe.Del(ctx, WalletKey(id))
		}
		return nil
	})
	return err
}

// HealthCheck pings Redis.
func (s *CacheService) HealthCheck(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis connection failed: %w", err)
	}
	return nil
}

// Close closes the Redis client connection
func (s *CacheService) Close() error {
	return s.client.Close()
}

// WalletKey is the cache key of a wallet snapshot.
func WalletKey(walletID string) string {
	return fmt.Sprintf("wallet:id:%s", walletID)
}

// GenerationKey counts invalidations of a wallet.
func GenerationKey(walletID string) string {
	return fmt.Sprintf("wallet:gen:%s", walletID)
}

// Noop is used when Redis is disabled; every lookup misses.
type Noop struct{}

func (Noop) GetWallet(context.Context, string) (*models.Wallet, int64, error) { return nil, 0, nil }
func (Noop) SetWallet(context.Context, *models.Wallet, int64) error           { return nil }
func (Noop) InvalidateWallets(context.Context, ...string) error               { return nil }
