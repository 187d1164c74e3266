package notification

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// LogSink writes every event to the structured log.
type LogSink struct {
	logger *zap.Logger
}

func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Publish(ctx context.Context, event *Event) error {
	s.logger.Info("wallet event",
		zap.String("event_id", event.ID),
		zap.String("type", event.Type),
		zap.String("wallet_id", event.WalletID),
		zap.ByteString("data", event.Data))
	return nil
}

// RedisSink publishes to a per-wallet pub/sub channel that UI gateways
// subscribe to for live balance updates.
type RedisSink struct {
	client *redis.Client
}

func NewRedisSink(client *redis.Client) *RedisSink {
	return &RedisSink{client: client}
}

func (s *RedisSink) Name() string { return "redis" }

func (s *RedisSink) Publish(ctx context.Context, event *Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling event: %w", err)
	}
	if err := s.client.Publish(ctx, WalletChannel(event.WalletID), data).Err(); err != nil {
		return fmt.Errorf("publishing to redis: %w", err)
	}
	return nil
}

// WalletChannel is the pub/sub channel carrying a wallet's events.
func WalletChannel(walletID string) string {
	return "wallet-events:" + walletID
}
