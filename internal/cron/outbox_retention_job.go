package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/anucarts/marketplace-backend/pkg/logger"
)

const (
	defaultOutboxRetention = 30 * 24 * time.Hour
	defaultRetentionBatch  = 500
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPruner interface {
	DeletePublishedBefore(tx *gorm.DB, cutoff time.Time, limit int) (int64, error)
}

// OutboxRetentionJobParams configure outbox-retention. Only rows that were
// published are ever deleted.
type OutboxRetentionJobParams struct {
	Logger    *logger.Logger
	DB        txRunner
	Outbox    outboxPruner
	Retention time.Duration
	BatchSize int
	Now       func() time.Time
}

type outboxRetentionJob struct {
	OutboxRetentionJobParams
}

func NewOutboxRetentionJob(p OutboxRetentionJobParams) (Job, error) {
	switch {
	case p.Logger == nil:
		return nil, errors.New("logger required")
	case p.DB == nil:
		return nil, errors.New("db runner required")
	case p.Outbox == nil:
		return nil, errors.New("outbox store required")
	}
	if p.Retention <= 0 {
		p.Retention = defaultOutboxRetention
	}
	if p.BatchSize <= 0 {
		p.BatchSize = defaultRetentionBatch
	}
	if p.Now == nil {
		p.Now = time.Now
	}
	return &outboxRetentionJob{p}, nil
}

func (j *outboxRetentionJob) Name() string { return "outbox-retention" }

// Run deletes in short transactions so the relay's claims on live rows are
// never blocked behind one long delete.
func (j *outboxRetentionJob) Run(ctx context.Context) error {
	cutoff := j.Now().UTC().Add(-j.Retention)
	var total int64
	for batches := 1; ; batches++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		var n int64
		err := j.DB.WithTx(ctx, func(tx *gorm.DB) (err error) {
			n, err = j.Outbox.DeletePublishedBefore(tx, cutoff, j.BatchSize)
			return err
		})
		if err != nil {
			return fmt.Errorf("delete published outbox rows: %w", err)
		}
		total += n
		if n < int64(j.BatchSize) {
			j.Logger.Info(j.Logger.WithFields(ctx, map[string]any{
				"cutoff":  cutoff.Format(time.RFC3339),
				"deleted": total,
				"batches": batches,
			}), "cron.outbox_pruned")
			return nil
		}
	}
}
