package migrate

import (
	"context"
	"fmt"

	"github.com/anucarts/marketplace-backend/pkg/config"
	"github.com/anucarts/marketplace-backend/pkg/db"
	"github.com/anucarts/marketplace-backend/pkg/logger"
)

// ApplyOnBoot runs pending migrations at process start. It only acts in the
// dev environment with ANUCARTS_AUTO_MIGRATE enabled; other environments run
// cmd/migrate as a release step.
func ApplyOnBoot(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.FeatureFlags.AutoMigrate {
		return nil
	}
	if !cfg.App.IsDev() {
		if cfg.App.IsProd() {
			logg.Warn(ctx, "ANUCARTS_AUTO_MIGRATE ignored in prod, run cmd/migrate instead")
		}
		return nil
	}
	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("unwrap sql.DB: %w", err)
	}
	runner, err := NewRunner(sqlDB, Migrations())
	if err != nil {
		return err
	}
	applied, err := runner.Up(ctx)
	if err != nil {
		return err
	}
	logg.Info(logg.WithField(ctx, "applied", applied), "migrations applied on boot")
	return nil
}
