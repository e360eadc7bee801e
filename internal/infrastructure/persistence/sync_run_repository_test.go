package persistence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pimsync/backend/internal/domain/integration"
)

func newRun(t *testing.T, mode integration.SyncMode, startedAt time.Time) *integration.SyncRun {
	t.Helper()
	run, err := integration.NewSyncRun(mode, nil)
	require.NoError(t, err)
	require.NoError(t, run.Start())
	run.StartedAt = &startedAt
	run.CreatedAt = startedAt
	return run
}

func TestGormSyncRunRepository(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)

	t.Run("save inserts then updates", func(t *testing.T) {
		repo := NewGormSyncRunRepository(newSQLiteDatabase(t).DB)
		run := newRun(t, integration.SyncModeFull, base)
		require.NoError(t, repo.Save(ctx, run))

		require.NoError(t, run.RecordPage(2))
		require.NoError(t, run.RecordProjected(4))
		require.NoError(t, run.RecordFailure("product:7", errors.New("boom")))
		run.Complete()
		require.NoError(t, repo.Save(ctx, run))

		found, err := repo.FindByID(ctx, run.ID)
		require.NoError(t, err)
		assert.Equal(t, integration.SyncStatusPartial, found.Status)
		assert.Equal(t, 2, found.RecordsFetched)
		assert.Equal(t, 4, found.FieldsWritten)
		require.Len(t, found.Failures, 1)
		assert.Equal(t, "product:7", found.Failures[0].EntityID)
		assert.NotNil(t, found.FinishedAt)
	})

	t.Run("find by id not found", func(t *testing.T) {
		repo := NewGormSyncRunRepository(newSQLiteDatabase(t).DB)
		_, err := repo.FindByID(ctx, uuid.New())
		assert.ErrorIs(t, err, integration.ErrSyncRunNotFound)
	})

	t.Run("find recent is newest first and limited", func(t *testing.T) {
		repo := NewGormSyncRunRepository(newSQLiteDatabase(t).DB)
		var ids []uuid.UUID
		for i := range 3 {
			run := newRun(t, integration.SyncModeFull, base.Add(time.Duration(i)*time.Hour))
			require.NoError(t, repo.Save(ctx, run))
			ids = append(ids, run.ID)
		}

		runs, err := repo.FindRecent(ctx, 2)
		require.NoError(t, err)
		require.Len(t, runs, 2)
		assert.Equal(t, ids[2], runs[0].ID)
		assert.Equal(t, ids[1], runs[1].ID)

		all, err := repo.FindRecent(ctx, 0)
		require.NoError(t, err)
		assert.Len(t, all, 3)
	})

	t.Run("last watermark skips bounded, grouped and unsuccessful runs", func(t *testing.T) {
		repo := NewGormSyncRunRepository(newSQLiteDatabase(t).DB)

		_, err := repo.LastWatermark(ctx)
		assert.ErrorIs(t, err, integration.ErrSyncRunNotFound)

		full := newRun(t, integration.SyncModeFull, base)
		full.Complete()
		incremental := newRun(t, integration.SyncModeIncremental, base.Add(time.Hour))
		incremental.Complete()
		aborted := newRun(t, integration.SyncModeIncremental, base.Add(2*time.Hour))
		aborted.Abort("transport error", "")
		bounded := newRun(t, integration.SyncModeFull, base.Add(3*time.Hour))
		bounded.Bounded = true
		bounded.Complete()
		grouped := newRun(t, integration.SyncModeGrouped, base.Add(4*time.Hour))
		grouped.Complete()
		for _, r := range []*integration.SyncRun{full, incremental, aborted, bounded, grouped} {
			require.NoError(t, repo.Save(ctx, r))
		}

		last, err := repo.LastWatermark(ctx)
		require.NoError(t, err)
		assert.Equal(t, incremental.ID, last.ID)
		require.NotNil(t, last.StartedAt)
		assert.True(t, base.Add(time.Hour).Equal(*last.StartedAt))

		found, err := repo.FindByID(ctx, bounded.ID)
		require.NoError(t, err)
		assert.True(t, found.Bounded)
	})

	t.Run("a complete full run establishes the watermark", func(t *testing.T) {
		repo := NewGormSyncRunRepository(newSQLiteDatabase(t).DB)

		full := newRun(t, integration.SyncModeFull, base)
		full.Complete()
		require.NoError(t, repo.Save(ctx, full))

		last, err := repo.LastWatermark(ctx)
		require.NoError(t, err)
		assert.Equal(t, full.ID, last.ID)
	})
}
