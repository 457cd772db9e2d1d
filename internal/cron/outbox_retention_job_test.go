package cron

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/anucarts/marketplace-backend/pkg/db"
	"github.com/anucarts/marketplace-backend/pkg/db/dbtest"
	"github.com/anucarts/marketplace-backend/pkg/db/models"
	"github.com/anucarts/marketplace-backend/pkg/enums"
	"github.com/anucarts/marketplace-backend/pkg/logger"
	"github.com/anucarts/marketplace-backend/pkg/outbox"
)

func TestOutboxRetentionDeletesOnlyOldPublishedRows(t *testing.T) {
	conn := dbtest.Open(t)
	store := outbox.NewStore(conn)
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	insert := func(publishedAt *time.Time) uuid.UUID {
		row := models.OutboxEvent{
			EventType:     enums.EventOrderPlaced,
			AggregateType: enums.AggregateOrder,
			AggregateID:   uuid.New(),
			Payload:       json.RawMessage(`{}`),
			AvailableAt:   now.Add(-90 * 24 * time.Hour),
			PublishedAt:   publishedAt,
		}
		require.NoError(t, store.Append(conn, &row))
		return row.ID
	}
	ago := func(d time.Duration) *time.Time {
		at := now.Add(-d)
		return &at
	}
	for i := 0; i < 5; i++ {
		insert(ago(40 * 24 * time.Hour))
	}
	recent := insert(ago(24 * time.Hour))
	pending := insert(nil)

	var logs bytes.Buffer
	job, err := NewOutboxRetentionJob(OutboxRetentionJobParams{
		Logger:    logger.New(logger.Options{Output: &logs}),
		DB:        db.Wrap(conn),
		Outbox:    store,
		BatchSize: 2,
		Now:       func() time.Time { return now },
	})
	require.NoError(t, err)
	require.Equal(t, "outbox-retention", job.Name())
	require.NoError(t, job.Run(context.Background()))

	var left []models.OutboxEvent
	require.NoError(t, conn.Find(&left).Error)
	ids := make([]uuid.UUID, 0, len(left))
	for _, r := range left {
		ids = append(ids, r.ID)
	}
	assert.ElementsMatch(t, []uuid.UUID{recent, pending}, ids)
	assert.Contains(t, logs.String(), `"deleted":5`)
	assert.Contains(t, logs.String(), `"batches":3`)
}

type failingPruner struct{ calls int }

func (f *failingPruner) DeletePublishedBefore(*gorm.DB, time.Time, int) (int64, error) {
	f.calls++
	return 0, errors.New("connection reset")
}

type directTx struct{}

func (directTx) WithTx(_ context.Context, fn func(tx *gorm.DB) error) error { return fn(nil) }

func TestOutboxRetentionStopsOnError(t *testing.T) {
	pruner := &failingPruner{}
	job, err := NewOutboxRetentionJob(OutboxRetentionJobParams{
		Logger: logger.New(logger.Options{Output: &bytes.Buffer{}}),
		DB:     directTx{},
		Outbox: pruner,
	})
	require.NoError(t, err)

	assert.ErrorContains(t, job.Run(context.Background()), "connection reset")
	assert.Equal(t, 1, pruner.calls)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, job.Run(ctx), context.Canceled)
	assert.Equal(t, 1, pruner.calls)
}

func TestNewOutboxRetentionJobDefaults(t *testing.T) {
	job, err := NewOutboxRetentionJob(OutboxRetentionJobParams{
		Logger: logger.New(logger.Options{Output: &bytes.Buffer{}}),
		DB:     directTx{},
		Outbox: &failingPruner{},
	})
	require.NoError(t, err)
	params := job.(*outboxRetentionJob).OutboxRetentionJobParams
	assert.Equal(t, defaultOutboxRetention, params.Retention)
	assert.Equal(t, defaultRetentionBatch, params.BatchSize)

	_, err = NewOutboxRetentionJob(OutboxRetentionJobParams{})
	assert.Error(t, err)
}
