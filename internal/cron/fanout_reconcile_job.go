package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/anucarts/marketplace-backend/internal/orders"
	"github.com/anucarts/marketplace-backend/pkg/logger"
	"go.uber.org/multierr"
)

const (
	defaultReconcileBatch   = 50
	defaultReconcileMinAge  = time.Minute
	defaultReconcileBatches = 10
)

type fanoutReconciler interface {
	ReconcileFanout(ctx context.Context, limit int, minAge time.Duration) (orders.ReconcileResult, error)
}

// FanoutReconcileJobParams configure the fanout-reconcile job. MinAge keeps
// the job away from orders whose checkout request may still be propagating.
type FanoutReconcileJobParams struct {
	Logger     *logger.Logger
	Orders     fanoutReconciler
	BatchSize  int
	MinAge     time.Duration
	MaxBatches int
}

type fanoutReconcileJob struct {
	logg       *logger.Logger
	orders     fanoutReconciler
	batchSize  int
	minAge     time.Duration
	maxBatches int
}

func NewFanoutReconcileJob(params FanoutReconcileJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders service required")
	}
	job := &fanoutReconcileJob{
		logg:       params.Logger,
		orders:     params.Orders,
		batchSize:  params.BatchSize,
		minAge:     params.MinAge,
		maxBatches: params.MaxBatches,
	}
	if job.batchSize <= 0 {
		job.batchSize = defaultReconcileBatch
	}
	if job.minAge <= 0 {
		job.minAge = defaultReconcileMinAge
	}
	if job.maxBatches <= 0 {
		job.maxBatches = defaultReconcileBatches
	}
	return job, nil
}

func (j *fanoutReconcileJob) Name() string { return "fanout-reconcile" }

// Run drains incomplete orders batch by batch. It stops early when a batch is
// short or when nothing in it completed, so a persistently failing seller
// does not spin the loop.
func (j *fanoutReconcileJob) Run(ctx context.Context) error {
	var (
		total orders.ReconcileResult
		errs  error
	)
	for i := 0; i < j.maxBatches; i++ {
		if err := ctx.Err(); err != nil {
			errs = multierr.Append(errs, err)
			break
		}
		result, err := j.orders.ReconcileFanout(ctx, j.batchSize, j.minAge)
		total.Scanned += result.Scanned
		total.Completed += result.Completed
		if err != nil {
			errs = multierr.Append(errs, err)
		}
		if result.Scanned < j.batchSize || result.Completed == 0 {
			break
		}
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"orders_scanned":   total.Scanned,
		"orders_completed": total.Completed,
	})
	if errs != nil {
		return fmt.Errorf("fanout reconcile: %w", errs)
	}
	j.logg.Info(logCtx, "fanout reconcile complete")
	return nil
}
