package outbox

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"

	"shipper-dispatch/internal/domain"
	"shipper-dispatch/internal/logx"
)

// Store is the durable event queue.
type Store interface {
	ClaimEvents(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]domain.Event, error)
	MarkPublished(ctx context.Context, id uuid.UUID, at time.Time) error
	MarkFailed(ctx context.Context, id uuid.UUID, attempts int, final bool, lastErr string) error
}

// Producer delivers a keyed message to a topic.
type Producer interface {
	SendMessage(ctx context.Context, topic, key string, value []byte) error
	Close() error
}

// Metrics counts delivery results.
type Metrics interface {
	Published(result string)
}

type nopMetrics struct{}

func (nopMetrics) Published(string) {}

// Config controls the publisher loop.
type Config struct {
	Topic        string
	PollInterval time.Duration
	BatchSize    int
	MaxAttempts  int
	Lease        time.Duration
}

var defaultConfig = Config{
	Topic:        "dispatch.events",
	PollInterval: time.Second,
	BatchSize:    64,
	MaxAttempts:  10,
	Lease:        30 * time.Second,
}

// Publisher drains the outbox into a Producer
type Publisher struct {
	store    Store
	producer Producer
	metrics  Metrics
	logger   logx.Logger
	cfg      Config
	now      func() time.Time
}

// NewPublisher creates a Publisher; zero config fields take defaults.
func NewPublisher(store Store, producer Producer, m Metrics, cfg Config, logger logx.Logger) *Publisher {
	if cfg.Topic == "" {
		cfg.Topic = defaultConfig.Topic
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultConfig.PollInterval
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultConfig.BatchSize
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultConfig.MaxAttempts
	}
	if cfg.Lease <= 0 {
		cfg.Lease = defaultConfig.Lease
	}
	if m == nil {
		m = nopMetrics{}
	}
	logger = logx.OrNop(logger)
	return &Publisher{
		store:    store,
		producer: producer,
		metrics:  m,
		logger:   logger,
		cfg:      cfg,
		now:      time.Now,
	}
}

// Run polls until ctx is cancelled, then closes the producer.
func (p *Publisher) Run(ctx context.Context) error {
	p.logger.Info("outbox publisher started", logx.String("topic", p.cfg.Topic))
	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()
	defer func() {
		if err := p.producer.Close(); err != nil {
			p.logger.Warn("outbox producer close failed", logx.Err(err))
		}
	}()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("outbox publisher stopped")
			return nil
		case <-ticker.C:
			if _, err := p.PollOnce(ctx); err != nil && ctx.Err() == nil {
				p.logger.Error("outbox batch failed", logx.Err(err))
			}
		}
	}
}

// PollOnce publishes one batch and returns how many events were delivered.
func (p *Publisher) PollOnce(ctx context.Context) (int, error) {
	events, err := p.store.ClaimEvents(ctx, p.now().UTC(), p.cfg.Lease, p.cfg.BatchSize)
	if err != nil {
		return 0, err
	}
	sent := 0
	for _, e := range events {
		if ctx.Err() != nil {
			return sent, ctx.Err()
		}
		if p.publish(ctx, e) {
			sent++
		}
	}
	return sent, nil
}

func (p *Publisher) publish(ctx context.Context, e domain.Event) bool {
	log := p.logger.With(
		logx.String("event_id", e.ID.String()),
		logx.String("event", string(e.Type)),
		logx.Int64("order_id", e.OrderID),
	)

	body, err := json.Marshal(toMessage(e))
	if err == nil {
		err = p.producer.SendMessage(ctx, p.cfg.Topic, strconv.FormatInt(e.OrderID, 10), body)
	}
	if err == nil {
		if err := p.store.MarkPublished(ctx, e.ID, p.now().UTC()); err != nil {
			log.Error("outbox mark published failed", logx.Err(err))
		}
		p.metrics.Published("ok")
		return true
	}

	attempts := e.Attempts + 1
	final := attempts >= p.cfg.MaxAttempts
	if final {
		p.metrics.Published("dropped")
		log.Error("outbox event dropped", logx.Int("attempts", attempts), logx.Err(err))
	} else {
		p.metrics.Published("error")
		log.Warn("outbox publish failed", logx.Int("attempts", attempts), logx.Err(err))
	}
	if merr := p.store.MarkFailed(ctx, e.ID, attempts, final, err.Error()); merr != nil {
		log.Error("outbox mark failed failed", logx.Err(merr))
	}
	return false
}

type message struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Severity  string          `json:"severity"`
	OrderID   int64           `json:"order_id"`
	ShipperID *int64          `json:"shipper_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

func toMessage(e domain.Event) message {
	return message{
		ID:        e.ID.String(),
		Type:      string(e.Type),
		Severity:  string(e.Severity),
		OrderID:   e.OrderID,
		ShipperID: e.ShipperID,
		Payload:   e.Payload,
		CreatedAt: e.CreatedAt,
	}
}
