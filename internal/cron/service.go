// Package cron runs the maintenance jobs of the marketplace on a fixed
// cadence. Every cycle is guarded by a Redis lease so that only one worker
// replica runs the jobs at a time.
package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/anucarts/marketplace-backend/pkg/logger"
	"github.com/anucarts/marketplace-backend/pkg/metrics"
)

const defaultInterval = time.Minute

// Job is one unit of maintenance work. Run should be safe to repeat: a
// cycle that dies half way is simply retried on the next tick.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

type ServiceParams struct {
	Logger   *logger.Logger
	Locker   Locker
	Jobs     []Job
	Metrics  *metrics.CronJobMetrics
	Interval time.Duration
	// Now is overridable for tests.
	Now func() time.Time
}

type Service struct {
	logg     *logger.Logger
	locker   Locker
	jobs     []Job
	metrics  *metrics.CronJobMetrics
	interval time.Duration
	now      func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	if params.Locker == nil {
		return nil, errors.New("locker required")
	}
	s := &Service{
		logg:     params.Logger,
		locker:   params.Locker,
		metrics:  params.Metrics,
		interval: params.Interval,
		now:      params.Now,
	}
	seen := map[string]bool{}
	for _, job := range params.Jobs {
		if job == nil {
			continue
		}
		if seen[job.Name()] {
			return nil, fmt.Errorf("duplicate cron job %q", job.Name())
		}
		seen[job.Name()] = true
		s.jobs = append(s.jobs, job)
	}
	if s.interval <= 0 {
		s.interval = defaultInterval
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s, nil
}

// Run executes a cycle immediately and then once per interval until ctx is
// cancelled, returning ctx's error.
func (s *Service) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		if err := s.Cycle(ctx); err != nil {
			s.logg.Error(ctx, "cron.cycle_failed", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Cycle runs every job once under the lease. A failing job does not stop
// the jobs after it. Returns nil when another worker holds the lease.
func (s *Service) Cycle(ctx context.Context) error {
	unlock, err := s.locker.Lock(ctx)
	if errors.Is(err, ErrLockHeld) {
		s.logg.Debug(ctx, "cron.cycle_skipped")
		s.metrics.CycleSkipped()
		return nil
	}
	if err != nil {
		return err
	}
	defer func() {
		if err := unlock(context.WithoutCancel(ctx)); err != nil {
			s.logg.Error(ctx, "cron.unlock_failed", err)
		}
	}()

	for _, job := range s.jobs {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.runJob(ctx, job)
	}
	return nil
}

func (s *Service) runJob(ctx context.Context, job Job) {
	ctx = s.logg.WithField(ctx, "job", job.Name())
	started := s.now()
	err := s.guard(ctx, job)
	finished := s.now()
	elapsed := finished.Sub(started)
	s.metrics.ObserveRun(job.Name(), finished, elapsed, err)

	ctx = s.logg.WithField(ctx, "duration_ms", elapsed.Milliseconds())
	if err != nil {
		s.logg.Error(ctx, "cron.job_failed", err)
		return
	}
	s.logg.Info(ctx, "cron.job_done")
}

// guard turns a panicking job into a failed run.
func (s *Service) guard(ctx context.Context, job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()
	return job.Run(ctx)
}
