package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/anucarts/marketplace-backend/pkg/config"
	"github.com/anucarts/marketplace-backend/pkg/db"
	"github.com/anucarts/marketplace-backend/pkg/logger"
	"github.com/anucarts/marketplace-backend/pkg/migrate"
	"github.com/joho/godotenv"
)

const usage = `usage: migrate <command> [flags]

commands:
  up                 apply all pending migrations
  down               roll back the latest migration
  status             list migrations and their state
  to -version N      move the schema to version N
  create -name NAME  write a new migration into -dir
  validate           check migration files in -dir`

func main() {
	_ = godotenv.Load()

	fset := flag.NewFlagSet("migrate", flag.ExitOnError)
	dir := fset.String("dir", migrate.SourceDir, "migration source directory (create, validate)")
	name := fset.String("name", "", "migration name for create")
	version := fset.String("version", "", "target version for to")

	if len(os.Args) < 2 {
		fail(usage)
	}
	command := os.Args[1]
	_ = fset.Parse(os.Args[2:])

	// Offline commands operate on files only.
	switch command {
	case "create":
		path, err := migrate.Create(*dir, *name, time.Now())
		if err != nil {
			fail(err.Error())
		}
		fmt.Println(path)
		return
	case "validate":
		if err := migrate.Validate(os.DirFS(*dir)); err != nil {
			fail(err.Error())
		}
		fmt.Println("migrations ok")
		return
	}

	cfg, err := config.Load()
	if err != nil {
		fail("config: " + err.Error())
	}
	logg := logger.ForApp("migrate", cfg.App)
	ctx := logg.WithFields(context.Background(), map[string]any{"env": cfg.App.Env, "command": command})

	client, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "database unavailable", err)
		os.Exit(1)
	}
	defer client.Close()

	sqlDB, err := client.DB().DB()
	if err != nil {
		logg.Error(ctx, "unwrap sql.DB", err)
		os.Exit(1)
	}
	runner, err := migrate.NewRunner(sqlDB, migrate.Migrations())
	if err != nil {
		logg.Error(ctx, "goose init failed", err)
		os.Exit(1)
	}

	if err := run(ctx, runner, command, *version); err != nil {
		logg.Error(ctx, "migration failed", err)
		os.Exit(1)
	}
	logg.Info(ctx, "migration complete")
}

func run(ctx context.Context, runner *migrate.Runner, command, version string) error {
	switch command {
	case "up":
		_, err := runner.Up(ctx)
		return err
	case "down":
		return runner.Down(ctx)
	case "status":
		lines, err := runner.Status(ctx)
		for _, line := range lines {
			fmt.Println(line)
		}
		return err
	case "to":
		target, err := strconv.ParseInt(version, 10, 64)
		if err != nil {
			return fmt.Errorf("-version must be a migration version: %w", err)
		}
		return runner.MoveTo(ctx, target)
	default:
		return fmt.Errorf("unknown command %q\n%s", command, usage)
	}
}

func fail(msg string) {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(2)
}
