package run

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Taichi-iskw/yt-digest/internal/errors"
	"github.com/Taichi-iskw/yt-digest/internal/model"
)

var columns = []string{
	"id", "source_url", "source_file", "origin", "language", "status", "stage", "error",
	"failed_windows", "chunk_count", "created_at", "started_at", "completed_at",
}

func TestPostgresRepository_Create(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(mock pgxmock.PgxPoolIface, run *model.Run)
		wantCode string
	}{
		{
			name: "successful creation",
			setup: func(mock pgxmock.PgxPoolIface, run *model.Run) {
				mock.ExpectExec("INSERT INTO runs").
					WithArgs(run.ID, run.SourceURL, "", "", "", "pending", "acquisition", "",
						[]int32{}, 0, run.CreatedAt, run.StartedAt, run.CompletedAt).
					WillReturnResult(pgxmock.NewResult("INSERT", 1))
			},
		},
		{
			name: "duplicate id",
			setup: func(mock pgxmock.PgxPoolIface, run *model.Run) {
				mock.ExpectExec("INSERT INTO runs").
					WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
						pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
						pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
					WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "runs_pkey"})
			},
			wantCode: apperrors.CodeConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err)
			defer mock.Close()

			run := model.NewRun(model.Source{URL: "https://youtu.be/dQw4w9WgXcQ"})
			tt.setup(mock, run)

			err = NewPostgresRepository(mock).Create(context.Background(), run)

			if tt.wantCode != "" {
				assert.True(t, apperrors.IsCode(err, tt.wantCode), "got %v", err)
			} else {
				assert.NoError(t, err)
			}
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestPostgresRepository_Get(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	id := "3f0c2d7e-5c1a-4c8e-9d57-0a4b8a1d2e6f"

	tests := []struct {
		name     string
		setup    func(mock pgxmock.PgxPoolIface)
		want     *model.Run
		wantCode string
	}{
		{
			name: "successful get",
			setup: func(mock pgxmock.PgxPoolIface) {
				rows := pgxmock.NewRows(columns).AddRow(
					id, "https://youtu.be/x", "", "captions", "es", "completed", "done", "",
					[]int32{1, 3}, 4, now, &now, &now,
				)
				mock.ExpectQuery("SELECT (.+) FROM runs WHERE id").WithArgs(id).WillReturnRows(rows)
			},
			want: &model.Run{
				ID:            id,
				SourceURL:     "https://youtu.be/x",
				Origin:        model.OriginCaptions,
				Language:      "es",
				Status:        model.RunStatusCompleted,
				Stage:         model.StageDone,
				FailedWindows: []int{1, 3},
				ChunkCount:    4,
				CreatedAt:     now,
				StartedAt:     &now,
				CompletedAt:   &now,
			},
		},
		{
			name: "not found",
			setup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery("SELECT (.+) FROM runs WHERE id").WithArgs(id).WillReturnError(pgx.ErrNoRows)
			},
			wantCode: apperrors.CodeNotFound,
		},
		{
			name: "database error",
			setup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery("SELECT (.+) FROM runs WHERE id").WithArgs(id).WillReturnError(assert.AnError)
			},
			wantCode: apperrors.CodeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err)
			defer mock.Close()

			tt.setup(mock)

			got, err := NewPostgresRepository(mock).Get(context.Background(), id)

			if tt.wantCode != "" {
				assert.True(t, apperrors.IsCode(err, tt.wantCode), "got %v", err)
				assert.Nil(t, got)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestPostgresRepository_LatestAndList(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("latest", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		rows := pgxmock.NewRows(columns).AddRow(
			"run-2", "", "/data/uploads/a.mp4", "asr", "hi", "running", "chunking", "",
			[]int32{}, 0, now, &now, nil,
		)
		mock.ExpectQuery("SELECT (.+) FROM runs ORDER BY created_at DESC, id DESC LIMIT 1").WillReturnRows(rows)

		got, err := NewPostgresRepository(mock).Latest(context.Background())

		require.NoError(t, err)
		assert.Equal(t, "run-2", got.ID)
		assert.Equal(t, model.OriginASR, got.Origin)
		assert.Nil(t, got.FailedWindows)
		assert.Nil(t, got.CompletedAt)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("latest on empty table", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery("SELECT (.+) FROM runs ORDER BY").WillReturnError(pgx.ErrNoRows)

		_, err = NewPostgresRepository(mock).Latest(context.Background())

		assert.True(t, apperrors.IsCode(err, apperrors.CodeNotFound))
	})

	t.Run("list applies default limit", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		rows := pgxmock.NewRows(columns).
			AddRow("run-2", "", "", "", "", "pending", "acquisition", "", []int32{}, 0, now, nil, nil).
			AddRow("run-1", "", "", "asr", "en", "failed", "translation", "boom", []int32{}, 0, now.Add(-time.Hour), &now, &now)
		mock.ExpectQuery("SELECT (.+) FROM runs ORDER BY (.+) LIMIT").
			WithArgs(DefaultListLimit, 0).
			WillReturnRows(rows)

		runs, err := NewPostgresRepository(mock).List(context.Background(), 0, -3)

		require.NoError(t, err)
		require.Len(t, runs, 2)
		assert.Equal(t, "run-1", runs[1].ID)
		assert.Equal(t, "boom", runs[1].Error)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresRepository_Update(t *testing.T) {
	tests := []struct {
		name     string
		result   pgconn.CommandTag
		err      error
		wantCode string
	}{
		{name: "updated", result: pgxmock.NewResult("UPDATE", 1)},
		{name: "missing run", result: pgxmock.NewResult("UPDATE", 0), wantCode: apperrors.CodeNotFound},
		{name: "check violation", err: &pgconn.PgError{Code: "23514"}, wantCode: apperrors.CodeInvalidArg},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err)
			defer mock.Close()

			run := model.NewRun(model.Source{FilePath: "a.mp4"})
			run.Status = model.RunStatusFailed
			run.FailedWindows = []int{0, 2}

			expect := mock.ExpectExec("UPDATE runs SET").
				WithArgs(run.ID, "", "", "failed", "acquisition", "", []int32{0, 2}, 0, run.StartedAt, run.CompletedAt)
			if tt.err != nil {
				expect.WillReturnError(tt.err)
			} else {
				expect.WillReturnResult(tt.result)
			}

			err = NewPostgresRepository(mock).Update(context.Background(), run)

			if tt.wantCode != "" {
				assert.True(t, apperrors.IsCode(err, tt.wantCode), "got %v", err)
			} else {
				assert.NoError(t, err)
			}
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}
