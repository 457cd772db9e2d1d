package migrate_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/anucarts/marketplace-backend/pkg/config"
	"github.com/anucarts/marketplace-backend/pkg/logger"
	"github.com/anucarts/marketplace-backend/pkg/migrate"
)

func readMigration(t *testing.T, suffix string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", "*_"+suffix+".sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no %s migration file found", suffix)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	return string(data)
}

func assertContains(t *testing.T, content string, checks []string) {
	t.Helper()
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestEmbeddedMigrationsAreValid(t *testing.T) {
	if err := migrate.Validate(migrate.Migrations()); err != nil {
		t.Fatalf("validate migrations: %v", err)
	}
}

func TestCreateWritesTemplate(t *testing.T) {
	dir := t.TempDir()
	at := time.Date(2026, 4, 2, 9, 30, 0, 0, time.UTC)

	path, err := migrate.Create(dir, "Add Order Notes!", at)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if filepath.Base(path) != "20260402093000_add_order_notes.sql" {
		t.Fatalf("unexpected file name %s", filepath.Base(path))
	}
	if err := migrate.Validate(os.DirFS(dir)); err != nil {
		t.Fatalf("created migration should validate: %v", err)
	}
	if _, err := migrate.Create(dir, "add order notes", at); err == nil {
		t.Fatalf("expected an error for a clashing file")
	}
	if _, err := migrate.Create(dir, "!!!", at); err == nil {
		t.Fatalf("expected an error for an empty slug")
	}
}

func TestValidateRejectsBadFiles(t *testing.T) {
	cases := map[string]fstest.MapFS{
		"bad name":     {"001_init.sql": {Data: []byte("-- +goose Up\n-- +goose Down\n")}},
		"missing down": {"20260301120000_init.sql": {Data: []byte("-- +goose Up\n")}},
		"duplicate": {
			"20260301120000_a.sql": {Data: []byte("-- +goose Up\n-- +goose Down\n")},
			"20260301120000_b.sql": {Data: []byte("-- +goose Up\n-- +goose Down\n")},
		},
		"empty": {},
	}
	for name, fsys := range cases {
		if err := migrate.Validate(fsys); err == nil {
			t.Errorf("%s: expected validation error", name)
		}
	}
}

func TestOrdersMigrationContainsConstraints(t *testing.T) {
	assertContains(t, readMigration(t, "create_orders_tables"), []string{
		"CREATE TABLE IF NOT EXISTS orders",
		"CONSTRAINT orders_payment_ref_key UNIQUE (payment_ref)",
		"CHECK (status IN ('Pending', 'Paid', 'Shipped', 'Delivered', 'Undelivered', 'Cancelled'))",
		"CHECK (line_total_cents = quantity * unit_price_cents)",
		"DROP TABLE IF EXISTS orders",
	})
}

func TestFanoutMigrationContainsIdempotencyKey(t *testing.T) {
	assertContains(t, readMigration(t, "create_seller_fanout_tables"), []string{
		"CONSTRAINT seller_fanouts_seller_id_key UNIQUE (seller_id)",
		"CONSTRAINT fanout_entries_order_product_key UNIQUE (order_id, product_id)",
		"DROP TABLE IF EXISTS fanout_entries",
	})
}

func TestCartMigrationContainsMergeKey(t *testing.T) {
	assertContains(t, readMigration(t, "create_carts_tables"), []string{
		"CONSTRAINT carts_buyer_id_key UNIQUE (buyer_id)",
		"CONSTRAINT cart_items_cart_product_key UNIQUE (cart_id, product_id)",
		"CHECK (quantity >= 1)",
	})
}

func TestApplyOnBootSkipsOutsideDev(t *testing.T) {
	var buf bytes.Buffer
	logg := logger.New(logger.Options{ServiceName: "api", Level: logger.ParseLevel("info"), Output: &buf})

	for _, env := range []string{"prod", "staging"} {
		cfg := &config.Config{
			App:          config.AppConfig{Env: env},
			FeatureFlags: config.FeatureFlagsConfig{AutoMigrate: true},
		}
		// A nil client proves nothing touched the database.
		if err := migrate.ApplyOnBoot(context.Background(), cfg, logg, nil); err != nil {
			t.Fatalf("%s: %v", env, err)
		}
	}
	if n := strings.Count(buf.String(), "ANUCARTS_AUTO_MIGRATE ignored"); n != 1 {
		t.Fatalf("expected one prod warning, got %d in %s", n, buf.String())
	}
}
