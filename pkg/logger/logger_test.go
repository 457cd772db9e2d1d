package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/anucarts/marketplace-backend/pkg/config"
	"github.com/rs/zerolog"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		entry := map[string]any{}
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("decode %q: %v", line, err)
		}
		out = append(out, entry)
	}
	return out
}

func TestScopedFieldsFollowContext(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "api", Level: zerolog.DebugLevel, Output: buf})

	ctx := log.WithRequestID(context.Background(), "req-123")
	ctx = log.WithPrincipal(ctx, "buyer-1", "buyer")
	ctx = log.WithOrderID(ctx, "order-9")
	log.Error(ctx, "order.place_failed", errors.New("db down"))

	entries := decodeLines(t, buf)
	if len(entries) != 1 {
		t.Fatalf("expected one entry, got %d", len(entries))
	}
	got := entries[0]
	want := map[string]string{
		"service":      "api",
		"request_id":   "req-123",
		"principal_id": "buyer-1",
		"role":         "buyer",
		"order_id":     "order-9",
		"error":        "db down",
		"message":      "order.place_failed",
	}
	for k, v := range want {
		if got[k] != v {
			t.Fatalf("field %s = %v, want %s", k, got[k], v)
		}
	}
	if _, ok := got["stack"]; !ok {
		t.Fatalf("error entries carry a stack: %v", got)
	}
}

func TestParentContextUnaffected(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "api", Output: buf})

	parent := log.WithField(context.Background(), "seller_id", "s-1")
	_ = log.WithFields(parent, map[string]any{"product_id": "p-1"})
	log.Info(parent, "seller.request")

	entry := decodeLines(t, buf)[0]
	if entry["seller_id"] != "s-1" {
		t.Fatalf("expected seller_id on parent entry: %v", entry)
	}
	if _, leaked := entry["product_id"]; leaked {
		t.Fatalf("child fields leaked into parent: %v", entry)
	}
}

func TestWarnStackToggle(t *testing.T) {
	buf := &bytes.Buffer{}
	New(Options{Output: buf, WarnStack: true}).Warn(context.Background(), "slow fan-out")
	if !strings.Contains(buf.String(), `"stack"`) {
		t.Fatalf("expected stack with WarnStack enabled")
	}

	buf.Reset()
	New(Options{Output: buf}).Warn(context.Background(), "slow fan-out")
	if strings.Contains(buf.String(), `"stack"`) {
		t.Fatalf("unexpected stack with WarnStack disabled")
	}
}

func TestLevelFiltering(t *testing.T) {
	buf := &bytes.Buffer{}
	log := ForApp("cron-worker", config.AppConfig{LogLevel: "warn"})
	log.root = log.root.Output(buf)

	log.Info(context.Background(), "hidden")
	if buf.Len() != 0 {
		t.Fatalf("info should be filtered at warn level: %s", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"":        zerolog.InfoLevel,
		"bogus":   zerolog.InfoLevel,
		" WARN ":  zerolog.WarnLevel,
		"debug":   zerolog.DebugLevel,
		"ERROR\n": zerolog.ErrorLevel,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
