// Package notification delivers post-commit wallet events. Delivery is
// best-effort and asynchronous: a failed or slow sink never affects the
// movement that produced the event.
package notification

import (
	"context"
	"sync"
	"time"

	"parkpay/internal/metrics"

	"go.uber.org/zap"
)

// Notifier is called by services after a movement has committed.
type Notifier interface {
	OnBalanceChanged(ctx context.Context, e BalanceChanged)
	OnTransactionSettled(ctx context.Context, e TransactionSettled)
}

// Sink delivers an event to one destination.
type Sink interface {
	Name() string
	Publish(ctx context.Context, event *Event) error
}

// DispatcherConfig bounds the queue and retry behaviour.
type DispatcherConfig struct {
	QueueSize   int
	MaxAttempts int
	RetryBase   time.Duration
	SendTimeout time.Duration
}

// Dispatcher fans events out to sinks from a single background worker.
type Dispatcher struct {
	sinks   []Sink
	cfg     DispatcherConfig
	logger  *zap.Logger
	metrics metrics.Collector

	queue  chan *Event
	done   chan struct{}
	mu     sync.RWMutex
	closed bool
}

// NewDispatcher starts the delivery worker.
func NewDispatcher(cfg DispatcherConfig, logger *zap.Logger, collector metrics.Collector, sinks ...Sink) *Dispatcher {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1024
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = 100 * time.Millisecond
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if collector == nil {
		collector = metrics.NoopCollector{}
	}

	d := &Dispatcher{
		sinks:   sinks,
		cfg:     cfg,
		logger:  logger,
		metrics: collector,
		queue:   make(chan *Event, cfg.QueueSize),
		done:    make(chan struct{}),
	}
	go d.run()
	return d
}

func (d *Dispatcher) OnBalanceChanged(ctx context.Context, e BalanceChanged) {
	d.enqueue(EventBalanceChanged, e.WalletID, e)
}

func (d *Dispatcher) OnTransactionSettled(ctx context.Context, e TransactionSettled) {
	d.enqueue(EventTransactionSettled, e.WalletID, e)
}

func (d *Dispatcher) enqueue(eventType, walletID string, data interface{}) {
	event, err := NewEvent(eventType, walletID, data)
	if err != nil {
		d.logger.Error("failed to build event", zap.String("type", eventType), zap.Error(err))
		return
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.drop(event, "dispatcher closed")
		return
	}

	select {
	case d.queue <- event:
	default:
		d.drop(event, "queue full")
	}
}

func (d *Dispatcher) drop(event *Event, reason string) {
	d.metrics.RecordEventDropped(event.Type)
	d.logger.Warn("dropping event",
		zap.String("event_id", event.ID),
		zap.String("type", event.Type),
		zap.String("wallet_id", event.WalletID),
		zap.String("reason", reason))
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for event := range d.queue {
		for _, sink := range d.sinks {
			d.deliver(sink, event)
		}
	}
}

func (d *Dispatcher) deliver(sink Sink, event *Event) {
	var err error
	for attempt := 1; attempt <= d.cfg.MaxAttempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), d.cfg.SendTimeout)
		err = sink.Publish(ctx, event)
		cancel()
		if err == nil {
			return
		}
		if attempt < d.cfg.MaxAttempts {
			time.Sleep(d.cfg.RetryBase * time.Duration(1<<(attempt-1)))
		}
	}

	d.metrics.RecordEventDropped(event.Type)
	d.logger.Error("event delivery failed",
		zap.String("sink", sink.Name()),
		zap.String("event_id", event.ID),
		zap.String("type", event.Type),
		zap.Int("attempts", d.cfg.MaxAttempts),
		zap.Error(err))
}

// Close stops accepting events and waits for queued ones to be delivered.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Noop discards every event.
type Noop struct{}

func (Noop) OnBalanceChanged(context.Context, BalanceChanged)         {}
func (Noop) OnTransactionSettled(context.Context, TransactionSettled) {}
