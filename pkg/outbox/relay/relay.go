// Package relay moves committed outbox rows onto Pub/Sub. Any number of
// relays may run against one database: rows are claimed with SKIP LOCKED.
package relay

import (
	"context"
	"errors"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/anucarts/marketplace-backend/pkg/config"
	"github.com/anucarts/marketplace-backend/pkg/db/models"
	"github.com/anucarts/marketplace-backend/pkg/enums"
	"github.com/anucarts/marketplace-backend/pkg/logger"
	"github.com/anucarts/marketplace-backend/pkg/metrics"
	"github.com/anucarts/marketplace-backend/pkg/outbox"
)

const maxBatchBackoff = 30 * time.Second

// Sink publishes one message and waits for the broker's ack.
type Sink interface {
	Publish(ctx context.Context, topic string, msg *gcppubsub.Message) error
}

type queue interface {
	Claim(tx *gorm.DB, limit int, now time.Time) ([]models.OutboxEvent, error)
	MarkPublished(tx *gorm.DB, id uuid.UUID, at time.Time) error
	Reschedule(tx *gorm.DB, id uuid.UUID, cause error, retryAt time.Time) error
	Bury(tx *gorm.DB, row models.OutboxEvent, reason enums.DeadLetterReason, cause error, at time.Time) error
}

type resolver interface {
	Resolve(row models.OutboxEvent) (outbox.Resolved, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type Params struct {
	Logger  *logger.Logger
	DB      txRunner
	Queue   queue
	Catalog resolver
	Sink    Sink
	Metrics *metrics.OutboxMetrics
	Config  config.OutboxConfig
	Now     func() time.Time
}

type Relay struct {
	logg    *logger.Logger
	db      txRunner
	queue   queue
	catalog resolver
	sink    Sink
	metrics *metrics.OutboxMetrics
	cfg     config.OutboxConfig
	now     func() time.Time
}

func New(p Params) (*Relay, error) {
	switch {
	case p.Logger == nil:
		return nil, errors.New("relay: logger is required")
	case p.DB == nil:
		return nil, errors.New("relay: database is required")
	case p.Queue == nil:
		return nil, errors.New("relay: outbox store is required")
	case p.Catalog == nil:
		return nil, errors.New("relay: catalog is required")
	case p.Sink == nil:
		return nil, errors.New("relay: sink is required")
	}
	if p.Now == nil {
		p.Now = time.Now
	}
	return &Relay{
		logg:    p.Logger,
		db:      p.DB,
		queue:   p.Queue,
		catalog: p.Catalog,
		sink:    p.Sink,
		metrics: p.Metrics,
		cfg:     withDefaults(p.Config),
		now:     p.Now,
	}, nil
}

func withDefaults(cfg config.OutboxConfig) config.OutboxConfig {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 500 * time.Millisecond
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 10
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = 2 * time.Second
	}
	if cfg.RetryMax < cfg.RetryBase {
		cfg.RetryMax = max(5*time.Minute, cfg.RetryBase)
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = 15 * time.Second
	}
	return cfg
}

// Run drains the outbox until ctx is cancelled. A full batch is followed
// immediately by the next one, an empty batch waits PollInterval, and a
// failed batch backs off with jitter.
func (r *Relay) Run(ctx context.Context) error {
	failures := backoff.NewExponentialBackOff()
	failures.InitialInterval = r.cfg.PollInterval
	failures.MaxInterval = maxBatchBackoff
	failures.MaxElapsedTime = 0
	failures.Reset()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := r.Drain(ctx)
		wait := r.cfg.PollInterval
		switch {
		case err != nil && ctx.Err() != nil:
			return ctx.Err()
		case err != nil:
			r.metrics.IncBatchError()
			wait = failures.NextBackOff()
			r.logg.Error(r.logg.WithField(ctx, "retry_in", wait.String()), "outbox.batch_failed", err)
		case n >= r.cfg.BatchSize:
			failures.Reset()
			continue
		default:
			failures.Reset()
		}
		if err := sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// Drain claims and settles one batch in a single transaction and returns how
// many rows it claimed.
func (r *Relay) Drain(ctx context.Context) (int, error) {
	var claimed int
	err := r.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := r.queue.Claim(tx, r.cfg.BatchSize, r.now().UTC())
		if err != nil {
			return err
		}
		claimed = len(rows)
		held := make(map[uuid.UUID]bool)
		for _, row := range rows {
			// A later event must not overtake one of its aggregate that
			// just failed; it stays claimable for the next batch.
			if held[row.AggregateID] {
				continue
			}
			published, err := r.settle(ctx, tx, row)
			if err != nil {
				return err
			}
			if !published {
				held[row.AggregateID] = true
			}
		}
		return nil
	})
	return claimed, err
}

// settle publishes row and records the outcome. It only returns an error when
// the outcome itself could not be written.
func (r *Relay) settle(ctx context.Context, tx *gorm.DB, row models.OutboxEvent) (bool, error) {
	logCtx := r.logg.WithFields(ctx, map[string]any{
		"event_id":     row.ID.String(),
		"event_type":   row.EventType,
		"aggregate_id": row.AggregateID.String(),
		"attempts":     row.Attempts,
	})

	resolved, err := r.catalog.Resolve(row)
	if err != nil {
		return false, r.bury(logCtx, tx, row, enums.DeadLetterPermanent, err)
	}

	pubErr := r.publish(ctx, row, resolved)
	now := r.now().UTC()
	if pubErr == nil {
		if err := r.queue.MarkPublished(tx, row.ID, now); err != nil {
			return false, err
		}
		r.metrics.Observe(string(row.EventType), metrics.OutboxPublished)
		r.logg.Debug(r.logg.WithField(logCtx, "topic", resolved.Route.Topic), "outbox.published")
		return true, nil
	}

	row.Attempts++
	switch {
	case outbox.IsPermanent(pubErr):
		return false, r.bury(logCtx, tx, row, enums.DeadLetterPermanent, pubErr)
	case row.Attempts >= r.cfg.MaxAttempts:
		return false, r.bury(logCtx, tx, row, enums.DeadLetterExhausted, pubErr)
	}
	delay := r.retryDelay(row.Attempts)
	if err := r.queue.Reschedule(tx, row.ID, pubErr, now.Add(delay)); err != nil {
		return false, err
	}
	r.metrics.Observe(string(row.EventType), metrics.OutboxRetried)
	r.logg.Warn(r.logg.WithFields(logCtx, map[string]any{
		"error":    pubErr.Error(),
		"retry_in": delay.String(),
	}), "outbox.publish_failed")
	return false, nil
}

func (r *Relay) bury(ctx context.Context, tx *gorm.DB, row models.OutboxEvent, reason enums.DeadLetterReason, cause error) error {
	if err := r.queue.Bury(tx, row, reason, cause, r.now().UTC()); err != nil {
		return err
	}
	r.metrics.Observe(string(row.EventType), metrics.OutboxDeadLettered)
	r.logg.Warn(r.logg.WithFields(ctx, map[string]any{
		"reason": reason,
		"error":  cause.Error(),
	}), "outbox.dead_lettered")
	return nil
}

// publish sends the stored envelope as is. The aggregate id is the ordering
// key so subscribers see one order's events in emit order.
func (r *Relay) publish(ctx context.Context, row models.OutboxEvent, resolved outbox.Resolved) error {
	msg := &gcppubsub.Message{
		Data:        row.Payload,
		OrderingKey: row.AggregateID.String(),
		Attributes: map[string]string{
			"event_id":       row.ID.String(),
			"event_type":     string(row.EventType),
			"aggregate_type": string(row.AggregateType),
			"aggregate_id":   row.AggregateID.String(),
			"created_at":     row.CreatedAt.UTC().Format(time.RFC3339Nano),
		},
	}
	ctx, cancel := context.WithTimeout(ctx, r.cfg.PublishTimeout)
	defer cancel()
	return r.sink.Publish(ctx, resolved.Route.Topic, msg)
}

// retryDelay is RetryBase doubled per prior attempt, capped at RetryMax.
func (r *Relay) retryDelay(attempt int) time.Duration {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.cfg.RetryBase
	b.MaxInterval = r.cfg.RetryMax
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Reset()
	d := b.NextBackOff()
	for i := 1; i < attempt; i++ {
		d = b.NextBackOff()
	}
	return d
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
