// Package embedding mirrors chunk vectors into PostgreSQL with pgvector.
package embedding

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"

	apperrors "github.com/Taichi-iskw/yt-digest/internal/errors"
	"github.com/Taichi-iskw/yt-digest/internal/model"
	"github.com/Taichi-iskw/yt-digest/internal/repository/common"
)

// Repository defines operations for chunk embedding persistence
type Repository interface {
	// Replace swaps all stored vectors of a run for the given collection
	Replace(ctx context.Context, collection *model.EmbeddingCollection) error
	// Search returns the k chunks of a run closest to vector by cosine distance
	Search(ctx context.Context, runID string, vector []float32, k int) ([]Match, error)
}

// Match is one search hit
type Match struct {
	ChunkIndex int     `json:"chunk_index"`
	Content    string  `json:"content"`
	Distance   float64 `json:"distance"`
}

// Pool interface for abstracting pgx connection pool
type Pool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

type embeddingRepository struct {
	pool Pool
}

// NewRepository creates a new instance of Repository
func NewRepository(pool Pool) Repository {
	return &embeddingRepository{pool: pool}
}

// Replace deletes the run's rows and bulk-loads the new ones in one transaction
func (r *embeddingRepository) Replace(ctx context.Context, collection *model.EmbeddingCollection) error {
	if collection == nil || collection.RunID == "" {
		return apperrors.New(apperrors.CodeInvalidArg, "embedding collection needs a run id")
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return common.HandlePostgreSQLError(err, "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM chunk_embeddings WHERE run_id = $1`, collection.RunID); err != nil {
		return common.HandlePostgreSQLError(err, "failed to clear embeddings")
	}

	if len(collection.Items) > 0 {
		rows := make([][]any, len(collection.Items))
		for i, item := range collection.Items {
			rows[i] = []any{collection.RunID, item.ChunkIndex, item.Text, collection.Model, pgvector.NewVector(item.Vector)}
		}
		_, err := tx.CopyFrom(ctx,
			pgx.Identifier{"chunk_embeddings"},
			[]string{"run_id", "chunk_index", "content", "model", "embedding"},
			pgx.CopyFromRows(rows),
		)
		if err != nil {
			return common.HandlePostgreSQLError(err, "failed to store embeddings")
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return common.HandlePostgreSQLError(err, "failed to commit embeddings")
	}
	return nil
}

// Search ranks a run's chunks by cosine distance to vector
func (r *embeddingRepository) Search(ctx context.Context, runID string, vector []float32, k int) ([]Match, error) {
	if k <= 0 {
		k = 5
	}
	sql := `SELECT chunk_index, content, embedding <=> $2 AS distance
		FROM chunk_embeddings WHERE run_id = $1
		ORDER BY distance LIMIT $3`

	rows, err := r.pool.Query(ctx, sql, runID, pgvector.NewVector(vector), k)
	if err != nil {
		return nil, common.HandlePostgreSQLError(err, "failed to search embeddings")
	}
	defer rows.Close()

	matches := []Match{}
	for rows.Next() {
		var m Match
		if err := rows.Scan(&m.ChunkIndex, &m.Content, &m.Distance); err != nil {
			return nil, common.HandlePostgreSQLError(err, "failed to scan match")
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, common.HandlePostgreSQLError(err, "failed to search embeddings")
	}
	return matches, nil
}
