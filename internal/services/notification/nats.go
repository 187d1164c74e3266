package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"parkpay/internal/config"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"
)

// SubjectPrefix is prepended to the event type to form the NATS subject.
const SubjectPrefix = "events."

// NATSSink publishes events to a JetStream stream.
type NATSSink struct {
	conn   *nats.Conn
	js     jetstream.JetStream
	logger *zap.Logger
}

// NewNATSSink connects to NATS and ensures the event stream exists.
func NewNATSSink(ctx context.Context, cfg config.NATSConfig, logger *zap.Logger) (*NATSSink, error) {
	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(c *nats.Conn, err error) {
			logger.Warn("NATS disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("NATS reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS: %w", err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("creating JetStream context: %w", err)
	}

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      cfg.Stream,
		Subjects:  []string{SubjectPrefix + "wallet.>"},
		MaxAge:    7 * 24 * time.Hour,
		Retention: jetstream.LimitsPolicy,
		Storage:   jetstream.FileStorage,
	})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("creating/updating stream %s: %w", cfg.Stream, err)
	}

	logger.Info("NATS connection established",
		zap.String("url", conn.ConnectedUrl()),
		zap.String("stream", cfg.Stream))

	return &NATSSink{conn: conn, js: js, logger: logger}, nil
}

func (s *NATSSink) Name() string { return "nats" }

func (s *NATSSink) Publish(ctx context.Context, event *Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling event: %w", err)
	}

	// Msg ID lets JetStream de-duplicate redeliveries of the same event.
	if _, err := s.js.Publish(ctx, SubjectPrefix+event.Type, data, jetstream.WithMsgID(event.ID)); err != nil {
		return fmt.Errorf("publishing event: %w", err)
	}
	return nil
}

// HealthCheck checks NATS connection health
func (s *NATSSink) HealthCheck() error {
	if !s.conn.IsConnected() {
		return fmt.Errorf("NATS not connected")
	}
	return nil
}

func (s *NATSSink) Close() {
	s.conn.Close()
}
