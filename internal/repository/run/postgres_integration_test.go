//go:build integration

package run

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Taichi-iskw/yt-digest/internal/errors"
	"github.com/Taichi-iskw/yt-digest/internal/model"
	"github.com/Taichi-iskw/yt-digest/internal/repository/common"
)

func TestPostgresRepository_Integration(t *testing.T) {
	pool := common.SetupTestDB(t)
	repo := NewPostgresRepository(pool)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	base := time.Now().UTC().Truncate(time.Microsecond)
	older := model.NewRun(model.Source{URL: "https://youtu.be/dQw4w9WgXcQ"})
	older.CreatedAt = base.Add(-time.Minute)
	newer := model.NewRun(model.Source{FilePath: "/data/uploads/abc_talk.mp4"})
	newer.CreatedAt = base

	require.NoError(t, repo.Create(ctx, older))
	require.NoError(t, repo.Create(ctx, newer))

	t.Run("duplicate create conflicts", func(t *testing.T) {
		err := repo.Create(ctx, older)
		var appErr *apperrors.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, apperrors.CodeConflict, appErr.Code)
	})

	t.Run("update round trip", func(t *testing.T) {
		started := base.Add(time.Second)
		older.Status = model.RunStatusCompleted
		older.Stage = model.StageDone
		older.Origin = model.OriginCaptions
		older.Language = "es"
		older.FailedWindows = []int{1}
		older.ChunkCount = 3
		older.StartedAt = &started
		older.CompletedAt = &started
		require.NoError(t, repo.Update(ctx, older))

		got, err := repo.Get(ctx, older.ID)
		require.NoError(t, err)
		assert.Equal(t, model.RunStatusCompleted, got.Status)
		assert.Equal(t, []int{1}, got.FailedWindows)
		assert.Equal(t, 3, got.ChunkCount)
		require.NotNil(t, got.CompletedAt)
		assert.True(t, started.Equal(*got.CompletedAt))
	})

	t.Run("latest and list", func(t *testing.T) {
		latest, err := repo.Latest(ctx)
		require.NoError(t, err)
		assert.Equal(t, newer.ID, latest.ID)

		runs, err := repo.List(ctx, 10, 0)
		require.NoError(t, err)
		require.Len(t, runs, 2)
		assert.Equal(t, older.ID, runs[1].ID)
	})

	t.Run("invalid status violates check", func(t *testing.T) {
		bad := *newer
		bad.Status = "exploded"
		err := repo.Update(ctx, &bad)
		assert.True(t, apperrors.IsCode(err, apperrors.CodeInvalidArg))
	})
}
