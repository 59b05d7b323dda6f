package embedding

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Taichi-iskw/yt-digest/internal/errors"
	"github.com/Taichi-iskw/yt-digest/internal/model"
)

const runID = "3f0c2d7e-5c1a-4c8e-9d57-0a4b8a1d2e6f"

func collection() *model.EmbeddingCollection {
	return &model.EmbeddingCollection{
		RunID:     runID,
		Model:     "all-MiniLM-L6-v2",
		Dimension: 2,
		Items: []model.Embedding{
			{ChunkIndex: 1, Text: "first", Vector: []float32{0.6, 0.8}},
			{ChunkIndex: 2, Text: "second", Vector: []float32{1, 0}},
		},
	}
}

func TestEmbeddingRepository_Replace(t *testing.T) {
	columns := []string{"run_id", "chunk_index", "content", "model", "embedding"}

	tests := []struct {
		name     string
		input    *model.EmbeddingCollection
		setup    func(mock pgxmock.PgxPoolIface)
		wantCode string
	}{
		{
			name:  "replaces rows in a transaction",
			input: collection(),
			setup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectBegin()
				mock.ExpectExec("DELETE FROM chunk_embeddings").WithArgs(runID).
					WillReturnResult(pgxmock.NewResult("DELETE", 4))
				mock.ExpectCopyFrom(pgx.Identifier{"chunk_embeddings"}, columns).WillReturnResult(2)
				mock.ExpectCommit()
			},
		},
		{
			name:  "empty collection only clears",
			input: &model.EmbeddingCollection{RunID: runID},
			setup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectBegin()
				mock.ExpectExec("DELETE FROM chunk_embeddings").WithArgs(runID).
					WillReturnResult(pgxmock.NewResult("DELETE", 0))
				mock.ExpectCommit()
			},
		},
		{
			name:  "missing run rolls back",
			input: collection(),
			setup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectBegin()
				mock.ExpectExec("DELETE FROM chunk_embeddings").WithArgs(runID).
					WillReturnResult(pgxmock.NewResult("DELETE", 0))
				mock.ExpectCopyFrom(pgx.Identifier{"chunk_embeddings"}, columns).
					WillReturnError(&pgconn.PgError{Code: "23503", ConstraintName: "chunk_embeddings_run_id_fkey"})
				mock.ExpectRollback()
			},
			wantCode: apperrors.CodeDependency,
		},
		{
			name:     "no run id",
			input:    &model.EmbeddingCollection{},
			setup:    func(mock pgxmock.PgxPoolIface) {},
			wantCode: apperrors.CodeInvalidArg,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err)
			defer mock.Close()

			tt.setup(mock)

			err = NewRepository(mock).Replace(context.Background(), tt.input)

			if tt.wantCode != "" {
				assert.True(t, apperrors.IsCode(err, tt.wantCode), "got %v", err)
			} else {
				assert.NoError(t, err)
			}
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestEmbeddingRepository_Search(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	rows := pgxmock.NewRows([]string{"chunk_index", "content", "distance"}).
		AddRow(2, "second", 0.1).
		AddRow(1, "first", 0.4)
	mock.ExpectQuery("SELECT chunk_index, content, embedding <=> (.+) FROM chunk_embeddings").
		WithArgs(runID, pgxmock.AnyArg(), 5).
		WillReturnRows(rows)

	matches, err := NewRepository(mock).Search(context.Background(), runID, []float32{1, 0}, 0)

	require.NoError(t, err)
	assert.Equal(t, []Match{
		{ChunkIndex: 2, Content: "second", Distance: 0.1},
		{ChunkIndex: 1, Content: "first", Distance: 0.4},
	}, matches)
	require.NoError(t, mock.ExpectationsWereMet())
}
