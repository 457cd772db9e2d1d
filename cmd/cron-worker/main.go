// Command cron-worker runs the periodic maintenance jobs. Replicas share a
// Redis lease so each cycle runs on at most one of them.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/anucarts/marketplace-backend/internal/cron"
	"github.com/anucarts/marketplace-backend/internal/fanout"
	"github.com/anucarts/marketplace-backend/internal/orders"
	product "github.com/anucarts/marketplace-backend/internal/products"
	"github.com/anucarts/marketplace-backend/internal/users"
	"github.com/anucarts/marketplace-backend/pkg/config"
	"github.com/anucarts/marketplace-backend/pkg/db"
	"github.com/anucarts/marketplace-backend/pkg/logger"
	"github.com/anucarts/marketplace-backend/pkg/metrics"
	"github.com/anucarts/marketplace-backend/pkg/migrate"
	"github.com/anucarts/marketplace-backend/pkg/outbox"
	"github.com/anucarts/marketplace-backend/pkg/redis"
)

const serviceKind = "cron-worker"

func main() {
	logg := logger.New(logger.Options{ServiceName: serviceKind})
	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}
	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = serviceKind
	logg = logger.ForApp(serviceKind, cfg.App)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "serviceKind": serviceKind})

	if err := run(ctx, cfg, logg); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "cron worker shut down")
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) error {
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer closeQuietly(ctx, logg, "database", dbClient.Close)

	if err := migrate.ApplyOnBoot(ctx, cfg, logg, dbClient); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	defer closeQuietly(ctx, logg, "redis", redisClient.Close)

	jobs, err := buildJobs(cfg, logg, dbClient)
	if err != nil {
		return err
	}
	locker, err := cron.NewRedisLocker(redisClient, redisClient.LockKey(lockName(cfg.App.Env)), cfg.Cron.LockTTL)
	if err != nil {
		return err
	}
	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Locker:   locker,
		Jobs:     jobs,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		return err
	}

	go func() {
		if err := metrics.Serve(ctx, cfg.Metrics.Addr, prometheus.DefaultGatherer, logg); err != nil {
			logg.Error(ctx, "metrics listener stopped", err)
		}
	}()

	logg.Info(ctx, "cron worker started")
	return service.Run(ctx)
}

func buildJobs(cfg *config.Config, logg *logger.Logger, dbClient *db.Client) ([]cron.Job, error) {
	conn := dbClient.DB()
	outboxStore := outbox.NewStore(conn)

	fanoutService, err := fanout.NewService(fanout.NewRepository(conn), dbClient)
	if err != nil {
		return nil, err
	}
	orderService, err := orders.NewService(orders.ServiceParams{
		Repo:          orders.NewRepository(conn),
		DB:            dbClient,
		Users:         users.NewRepository(conn),
		Products:      product.NewRepository(conn),
		Fanout:        fanoutService,
		Outbox:        outbox.NewEmitter(outboxStore, logg),
		Metrics:       metrics.NewOrderMetrics(prometheus.DefaultRegisterer),
		Logger:        logg,
		FanoutTimeout: cfg.Orders.FanoutTimeout,
	})
	if err != nil {
		return nil, err
	}

	reconcile, err := cron.NewFanoutReconcileJob(cron.FanoutReconcileJobParams{
		Logger:    logg,
		Orders:    orderService,
		BatchSize: cfg.Orders.ReconcileBatchSize,
		MinAge:    cfg.Orders.ReconcileMinAge,
	})
	if err != nil {
		return nil, fmt.Errorf("fanout reconcile job: %w", err)
	}
	retention, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:    logg,
		DB:        dbClient,
		Outbox:    outboxStore,
		Retention: cfg.Cron.OutboxRetention,
		BatchSize: cfg.Cron.RetentionBatchSize,
	})
	if err != nil {
		return nil, fmt.Errorf("outbox retention job: %w", err)
	}
	return []cron.Job{reconcile, retention}, nil
}

func lockName(env string) string {
	if env == "" {
		env = "local"
	}
	return "cron-worker:" + env
}

func closeQuietly(ctx context.Context, logg *logger.Logger, name string, closeFn func() error) {
	if err := closeFn(); err != nil {
		logg.Error(logg.WithField(ctx, "dependency", name), "close failed", err)
	}
}
