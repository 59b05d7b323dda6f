package run

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Taichi-iskw/yt-digest/internal/errors"
	"github.com/Taichi-iskw/yt-digest/internal/model"
)

func newRedisRepository(t *testing.T) (Repository, *miniredis.Miniredis) {
	t.Helper()
	server := miniredis.RunT(t)
	client, err := NewRedisClient(context.Background(), "redis://"+server.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisRepository(client), server
}

func TestRedisRepository_Lifecycle(t *testing.T) {
	ctx := context.Background()
	repo, server := newRedisRepository(t)

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	first := newRunAt(base)
	second := newRunAt(base.Add(time.Minute))
	require.NoError(t, repo.Create(ctx, first))
	require.NoError(t, repo.Create(ctx, second))
	assert.True(t, server.Exists(redisKeyPrefix+first.ID))

	err := repo.Create(ctx, first)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeConflict))

	latest, err := repo.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, second.ID, latest.ID)

	first.Status = model.RunStatusFailed
	first.Error = "translation exploded"
	require.NoError(t, repo.Update(ctx, first))

	got, err := repo.Get(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusFailed, got.Status)
	assert.Equal(t, "translation exploded", got.Error)

	runs, err := repo.List(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, second.ID, runs[0].ID)
	assert.Equal(t, first.ID, runs[1].ID)

	runs, err = repo.List(ctx, 1, 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, first.ID, runs[0].ID)
}

func TestRedisRepository_NotFound(t *testing.T) {
	ctx := context.Background()
	repo, _ := newRedisRepository(t)

	_, err := repo.Get(ctx, "missing")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeNotFound))

	_, err = repo.Latest(ctx)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeNotFound))

	err = repo.Update(ctx, model.NewRun(model.Source{URL: "u"}))
	assert.True(t, apperrors.IsCode(err, apperrors.CodeNotFound))

	runs, err := repo.List(ctx, 5, 0)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestRedisRepository_SkipsDanglingIndexEntries(t *testing.T) {
	ctx := context.Background()
	repo, server := newRedisRepository(t)

	run := newRunAt(time.Now().UTC())
	require.NoError(t, repo.Create(ctx, run))
	server.Del(redisKeyPrefix + run.ID)

	runs, err := repo.List(ctx, 5, 0)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestNewRedisClient_Errors(t *testing.T) {
	_, err := NewRedisClient(context.Background(), "not a url")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeInvalidArg))

	server := miniredis.RunT(t)
	addr := server.Addr()
	server.Close()

	_, err = NewRedisClient(context.Background(), "redis://"+addr)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeUnavailable))
}
