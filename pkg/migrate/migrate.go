// Package migrate applies the goose SQL migrations that ship embedded in the
// binary, so workers and the API never depend on a checkout of the repo.
package migrate

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"
)

// SourceDir is where new migration files are written by the create command.
const SourceDir = "pkg/migrate/migrations"

//go:embed migrations/*.sql
var embedded embed.FS

// Migrations exposes the embedded migration files rooted at their directory.
func Migrations() fs.FS {
	sub, err := fs.Sub(embedded, "migrations")
	if err != nil {
		panic(fmt.Sprintf("migrations fs: %v", err))
	}
	return sub
}

// Runner drives goose against a Postgres database.
type Runner struct {
	provider *goose.Provider
}

func NewRunner(db *sql.DB, migrations fs.FS) (*Runner, error) {
	if db == nil {
		return nil, fmt.Errorf("db is required")
	}
	if migrations == nil {
		migrations = Migrations()
	}
	provider, err := goose.NewProvider(goose.DialectPostgres, db, migrations)
	if err != nil {
		return nil, fmt.Errorf("goose provider: %w", err)
	}
	return &Runner{provider: provider}, nil
}

// Up applies every pending migration and returns how many ran.
func (r *Runner) Up(ctx context.Context) (int, error) {
	results, err := r.provider.Up(ctx)
	if err != nil {
		return len(results), fmt.Errorf("goose up: %w", err)
	}
	return len(results), nil
}

// Down rolls back the most recent migration.
func (r *Runner) Down(ctx context.Context) error {
	if _, err := r.provider.Down(ctx); err != nil {
		return fmt.Errorf("goose down: %w", err)
	}
	return nil
}

// Status lists each known migration as "<version> <path> <state>".
func (r *Runner) Status(ctx context.Context) ([]string, error) {
	statuses, err := r.provider.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("goose status: %w", err)
	}
	lines := make([]string, 0, len(statuses))
	for _, st := range statuses {
		lines = append(lines, fmt.Sprintf("%d %s %s", st.Source.Version, st.Source.Path, st.State))
	}
	return lines, nil
}

// MoveTo migrates up or down until the database sits at target.
func (r *Runner) MoveTo(ctx context.Context, target int64) error {
	current, err := r.provider.GetDBVersion(ctx)
	if err != nil {
		return fmt.Errorf("read db version: %w", err)
	}
	switch {
	case current < target:
		_, err = r.provider.UpTo(ctx, target)
	case current > target:
		_, err = r.provider.DownTo(ctx, target)
	}
	if err != nil {
		return fmt.Errorf("goose migrate %d -> %d: %w", current, target, err)
	}
	return nil
}
