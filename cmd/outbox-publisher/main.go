// Command outbox-publisher relays committed outbox rows to Pub/Sub.
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

	"github.com/anucarts/marketplace-backend/pkg/config"
	"github.com/anucarts/marketplace-backend/pkg/db"
	"github.com/anucarts/marketplace-backend/pkg/logger"
	"github.com/anucarts/marketplace-backend/pkg/metrics"
	"github.com/anucarts/marketplace-backend/pkg/migrate"
	"github.com/anucarts/marketplace-backend/pkg/outbox"
	"github.com/anucarts/marketplace-backend/pkg/outbox/relay"
	"github.com/anucarts/marketplace-backend/pkg/pubsub"
)

const serviceKind = "outbox-publisher"

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
		logg.Error(ctx, "outbox publisher stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "outbox publisher shut down")
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

	catalog, err := outbox.NewCatalog(cfg.PubSub)
	if err != nil {
		return err
	}
	broker, err := pubsub.NewClient(ctx, cfg.GCP, catalog.Topics(), logg)
	if err != nil {
		return fmt.Errorf("pubsub: %w", err)
	}
	defer closeQuietly(ctx, logg, "pubsub", broker.Close)

	r, err := relay.New(relay.Params{
		Logger:  logg,
		DB:      dbClient,
		Queue:   outbox.NewStore(dbClient.DB()),
		Catalog: catalog,
		Sink:    broker,
		Metrics: metrics.NewOutboxMetrics(prometheus.DefaultRegisterer),
		Config:  cfg.Outbox,
	})
	if err != nil {
		return err
	}

	go func() {
		if err := metrics.Serve(ctx, cfg.Metrics.Addr, prometheus.DefaultGatherer, logg); err != nil {
			logg.Error(ctx, "metrics listener stopped", err)
		}
	}()

	logg.Info(ctx, "outbox publisher started")
	return r.Run(ctx)
}

func closeQuietly(ctx context.Context, logg *logger.Logger, name string, closeFn func() error) {
	if err := closeFn(); err != nil {
		logg.Error(logg.WithField(ctx, "dependency", name), "close failed", err)
	}
}
