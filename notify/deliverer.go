package notify

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/GoCodeAlone/console/metrics"
	"github.com/GoCodeAlone/console/store"
)

// DeliveryStatus represents the status of a notification delivery.
type DeliveryStatus string

const (
	StatusPending    DeliveryStatus = "pending"
	StatusDelivered  DeliveryStatus = "delivered"
	StatusFailed     DeliveryStatus = "failed"
	StatusDeadLetter DeliveryStatus = "dead_letter"
)

// RetryConfig holds the retry policy for notification deliveries.
type RetryConfig struct {
	MaxRetries        int           `json:"max_retries" yaml:"maxRetries"`
	InitialBackoff    time.Duration `json:"initial_backoff" yaml:"initialBackoff"`
	MaxBackoff        time.Duration `json:"max_backoff" yaml:"maxBackoff"`
	BackoffMultiplier float64       `json:"backoff_multiplier" yaml:"backoffMultiplier"`
	JitterFraction    float64       `json:"jitter_fraction" yaml:"jitterFraction"`
	Timeout           time.Duration `json:"timeout" yaml:"timeout"`
}

// DefaultRetryConfig returns a RetryConfig with sensible defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:        5,
		InitialBackoff:    time.Second,
		MaxBackoff:        60 * time.Second,
		BackoffMultiplier: 2.0,
		JitterFraction:    0.1,
		Timeout:           30 * time.Second,
	}
}

// Delivery tracks one notification pushed through one channel.
type Delivery struct {
	ID           string                   `json:"id"`
	Channel      string                   `json:"channel"`
	Notification *store.AlertNotification `json:"notification"`
	Status       DeliveryStatus           `json:"status"`
	Attempts     int                      `json:"attempts"`
	MaxRetries   int                      `json:"max_retries"`
	LastError    string                   `json:"last_error,omitempty"`
	CreatedAt    time.Time                `json:"created_at"`
	LastAttempt  *time.Time               `json:"last_attempt,omitempty"`
	DeliveredAt  *time.Time               `json:"delivered_at,omitempty"`
}

const queueCapacity = 256

// Deliverer consumes recorded alert notifications and pushes them through the
// configured channels with exponential backoff and jitter. Exhausted retries
// land in the dead letter store for replay.
//
// Enqueue never blocks, so the Deliverer satisfies the alert dispatcher's
// queue contract; deliveries run on a background worker started with Start.
type Deliverer struct {
	config      RetryConfig
	email       Channel
	chat        Channel
	deadLetters *DeadLetterStore
	queue       chan *store.AlertNotification
	logger      *slog.Logger
	collector   *metrics.Collector

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewDeliverer creates a Deliverer over the given channels. Either channel
// may be nil when not configured; collector may be nil.
func NewDeliverer(
	config RetryConfig,
	email Channel,
	chat Channel,
	deadLetters *DeadLetterStore,
	logger *slog.Logger,
	collector *metrics.Collector,
) *Deliverer {
	if config.MaxRetries <= 0 {
		config.MaxRetries = 5
	}
	if config.InitialBackoff <= 0 {
		config.InitialBackoff = time.Second
	}
	if config.MaxBackoff <= 0 {
		config.MaxBackoff = 60 * time.Second
	}
	if config.BackoffMultiplier <= 0 {
		config.BackoffMultiplier = 2.0
	}
	if config.JitterFraction < 0 {
		config.JitterFraction = 0
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if deadLetters == nil {
		deadLetters = NewDeadLetterStore()
	}

	return &Deliverer{
		config:      config,
		email:       email,
		chat:        chat,
		deadLetters: deadLetters,
		queue:       make(chan *store.AlertNotification, queueCapacity),
		logger:      logger,
		collector:   collector,
	}
}

// Enqueue hands a recorded notification to the delivery worker. It never
// blocks: when the queue is full the notification is dropped and logged.
func (d *Deliverer) Enqueue(n *store.AlertNotification) {
	select {
	case d.queue <- n:
	default:
		d.logger.Warn("notification queue full, dropping",
			slog.String("tenant_id", n.TenantID),
			slog.String("channel", string(n.Channel)))
		if d.collector != nil {
			d.collector.RecordNotificationDelivery(string(n.Channel), "dropped")
		}
	}
}

// Start launches the background delivery worker.
func (d *Deliverer) Start(_ context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cancel != nil {
		return errors.New("notify: deliverer already running")
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	d.cancel = cancel
	d.done = done
	go d.run(ctx, done)

	d.logger.Info("notification deliverer started")
	return nil
}

// Stop halts the worker. An in-flight delivery is cut short and dead-lettered
// for replay; notifications still queued are dropped.
func (d *Deliverer) Stop(ctx context.Context) error {
	d.mu.Lock()
	cancel := d.cancel
	done := d.done
	d.cancel = nil
	d.done = nil
	d.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	d.logger.Info("notification deliverer stopped", slog.Int("queued", len(d.queue)))
	return nil
}

func (d *Deliverer) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case n := <-d.queue:
			d.process(ctx, n)
		}
	}
}

// process fans one notification out to every channel its configuration names.
func (d *Deliverer) process(ctx context.Context, n *store.AlertNotification) {
	channels := d.channelsFor(n.Channel)
	if len(channels) == 0 {
		d.logger.Warn("no delivery channel configured",
			slog.String("tenant_id", n.TenantID),
			slog.String("channel", string(n.Channel)))
		if d.collector != nil {
			d.collector.RecordNotificationDelivery(string(n.Channel), "skipped")
		}
		return
	}

	for _, ch := range channels {
		if _, err := d.Send(ctx, ch, n); err != nil {
			d.logger.Error("notification delivery failed",
				slog.String("tenant_id", n.TenantID),
				slog.String("channel", ch.Name()),
				slog.String("error", err.Error()))
		}
	}
}

// Send pushes one notification through a single channel with retry. On
// exhausting retries the delivery is placed in the dead letter store.
func (d *Deliverer) Send(ctx context.Context, ch Channel, n *store.AlertNotification) (*Delivery, error) {
	id, err := generateDeliveryID()
	if err != nil {
		return nil, fmt.Errorf("notify: generate delivery id: %w", err)
	}

	delivery := &Delivery{
		ID:           id,
		Channel:      ch.Name(),
		Notification: n,
		Status:       StatusPending,
		MaxRetries:   d.config.MaxRetries,
		CreatedAt:    time.Now(),
	}

	if err := d.deliver(ctx, ch, delivery); err != nil {
		d.deadLetter(delivery, err)
		return delivery, err
	}
	return delivery, nil
}

// Replay retries a dead-lettered delivery. On failure the delivery returns
// to the dead letter store.
func (d *Deliverer) Replay(ctx context.Context, id string) (*Delivery, error) {
	delivery, ok := d.deadLetters.Remove(id)
	if !ok {
		return nil, fmt.Errorf("notify: dead letter %q not found", id)
	}

	ch := d.channelByName(delivery.Channel)
	if ch == nil {
		d.deadLetters.Add(delivery)
		return delivery, fmt.Errorf("notify: channel %q not configured", delivery.Channel)
	}

	delivery.Status = StatusPending
	delivery.Attempts = 0
	delivery.LastError = ""

	if err := d.deliver(ctx, ch, delivery); err != nil {
		d.deadLetter(delivery, err)
		return delivery, err
	}
	return delivery, nil
}

func (d *Deliverer) deliver(ctx context.Context, ch Channel, delivery *Delivery) error {
	var lastErr error

	for attempt := 0; attempt <= d.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(d.backoff(attempt)):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		delivery.Attempts = attempt + 1
		now := time.Now()
		delivery.LastAttempt = &now

		sendCtx, cancel := context.WithTimeout(ctx, d.config.Timeout)
		err := ch.Send(sendCtx, delivery.Notification)
		cancel()
		if err == nil {
			t := time.Now()
			delivery.Status = StatusDelivered
			delivery.DeliveredAt = &t
			if d.collector != nil {
				d.collector.RecordNotificationDelivery(ch.Name(), "delivered")
			}
			d.logger.Info("notification delivered",
				slog.String("delivery_id", delivery.ID),
				slog.String("channel", ch.Name()),
				slog.String("tenant_id", delivery.Notification.TenantID),
				slog.Int("attempts", delivery.Attempts))
			return nil
		}

		lastErr = err
		delivery.LastError = err.Error()
		d.logger.Warn("notification delivery attempt failed",
			slog.String("delivery_id", delivery.ID),
			slog.String("channel", ch.Name()),
			slog.Int("attempt", delivery.Attempts),
			slog.String("error", err.Error()))
	}

	delivery.Status = StatusFailed
	return fmt.Errorf("notify: delivery failed after %d attempts: %w", delivery.Attempts, lastErr)
}

func (d *Deliverer) deadLetter(delivery *Delivery, err error) {
	delivery.Status = StatusDeadLetter
	delivery.LastError = err.Error()
	d.deadLetters.Add(delivery)
	if d.collector != nil {
		d.collector.RecordNotificationDelivery(delivery.Channel, "dead_letter")
	}
}

func (d *Deliverer) channelsFor(ch store.AlertChannel) []Channel {
	var out []Channel
	if (ch == store.ChannelEmail || ch == store.ChannelBoth) && d.email != nil {
		out = append(out, d.email)
	}
	if (ch == store.ChannelChat || ch == store.ChannelBoth) && d.chat != nil {
		out = append(out, d.chat)
	}
	return out
}

func (d *Deliverer) channelByName(name string) Channel {
	switch {
	case d.email != nil && d.email.Name() == name:
		return d.email
	case d.chat != nil && d.chat.Name() == name:
		return d.chat
	}
	return nil
}

func (d *Deliverer) backoff(attempt int) time.Duration {
	base := float64(d.config.InitialBackoff) * math.Pow(d.config.BackoffMultiplier, float64(attempt-1))
	if base > float64(d.config.MaxBackoff) {
		base = float64(d.config.MaxBackoff)
	}
	if d.config.JitterFraction > 0 {
		jitter := base * d.config.JitterFraction * (cryptoFloat64()*2 - 1)
		base += jitter
		if base < 0 {
			base = 0
		}
	}
	return time.Duration(base)
}

// cryptoFloat64 returns a cryptographically random float64 in [0.0, 1.0).
func cryptoFloat64() float64 {
	var b [8]byte
	_, _ = rand.Read(b[:])
	// Top 53 bits for a uniform float64 in [0, 1)
	return float64(binary.BigEndian.Uint64(b[:])>>(64-53)) / float64(1<<53)
}

func generateDeliveryID() (string, error) {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return "nd-" + hex.EncodeToString(b), nil
}
