package run

import (
	"context"
	"errors"

	apperrors "github.com/Taichi-iskw/yt-digest/internal/errors"
	"github.com/Taichi-iskw/yt-digest/internal/model"
	"github.com/Taichi-iskw/yt-digest/internal/repository/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Pool interface for abstracting pgx connection pool
type Pool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const runColumns = `id, source_url, source_file, origin, language, status, stage, error,
	failed_windows, chunk_count, created_at, started_at, completed_at`

// postgresRepository implements Repository using PostgreSQL
type postgresRepository struct {
	pool Pool
}

// NewPostgresRepository creates a new Postgres-backed Repository
func NewPostgresRepository(pool Pool) Repository {
	return &postgresRepository{pool: pool}
}

// Create inserts a new run record
func (r *postgresRepository) Create(ctx context.Context, run *model.Run) error {
	sql := `INSERT INTO runs (` + runColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err := r.pool.Exec(ctx, sql,
		run.ID,
		run.SourceURL,
		run.SourceFile,
		string(run.Origin),
		run.Language,
		string(run.Status),
		string(run.Stage),
		run.Error,
		failedWindows(run),
		run.ChunkCount,
		run.CreatedAt,
		run.StartedAt,
		run.CompletedAt,
	)
	if err != nil {
		return common.HandlePostgreSQLError(err, "failed to create run")
	}
	return nil
}

// Get retrieves a run by its ID
func (r *postgresRepository) Get(ctx context.Context, id string) (*model.Run, error) {
	sql := `SELECT ` + runColumns + ` FROM runs WHERE id = $1`

	run, err := scanRun(r.pool.QueryRow(ctx, sql, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.Wrap(err, apperrors.CodeNotFound, "run not found: "+id)
		}
		return nil, common.HandlePostgreSQLError(err, "failed to get run")
	}
	return run, nil
}

// Latest retrieves the most recently created run
func (r *postgresRepository) Latest(ctx context.Context) (*model.Run, error) {
	sql := `SELECT ` + runColumns + ` FROM runs ORDER BY created_at DESC, id DESC LIMIT 1`

	run, err := scanRun(r.pool.QueryRow(ctx, sql))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.Wrap(err, apperrors.CodeNotFound, "no runs yet")
		}
		return nil, common.HandlePostgreSQLError(err, "failed to get latest run")
	}
	return run, nil
}

// List retrieves runs newest first
func (r *postgresRepository) List(ctx context.Context, limit, offset int) ([]*model.Run, error) {
	limit, offset = normalizePage(limit, offset)
	sql := `SELECT ` + runColumns + ` FROM runs ORDER BY created_at DESC, id DESC LIMIT $1 OFFSET $2`

	rows, err := r.pool.Query(ctx, sql, limit, offset)
	if err != nil {
		return nil, common.HandlePostgreSQLError(err, "failed to list runs")
	}
	defer rows.Close()

	runs := []*model.Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, common.HandlePostgreSQLError(err, "failed to scan run")
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, common.HandlePostgreSQLError(err, "failed to list runs")
	}
	return runs, nil
}

// Update overwrites the mutable fields of a run
func (r *postgresRepository) Update(ctx context.Context, run *model.Run) error {
	sql := `UPDATE runs SET origin = $2, language = $3, status = $4, stage = $5, error = $6,
		failed_windows = $7, chunk_count = $8, started_at = $9, completed_at = $10
		WHERE id = $1`

	tag, err := r.pool.Exec(ctx, sql,
		run.ID,
		string(run.Origin),
		run.Language,
		string(run.Status),
		string(run.Stage),
		run.Error,
		failedWindows(run),
		run.ChunkCount,
		run.StartedAt,
		run.CompletedAt,
	)
	if err != nil {
		return common.HandlePostgreSQLError(err, "failed to update run")
	}
	if tag.RowsAffected() == 0 {
		return apperrors.New(apperrors.CodeNotFound, "run not found: "+run.ID)
	}
	return nil
}

func scanRun(row pgx.Row) (*model.Run, error) {
	var (
		run                   model.Run
		origin, status, stage string
		windows               []int32
	)
	err := row.Scan(
		&run.ID,
		&run.SourceURL,
		&run.SourceFile,
		&origin,
		&run.Language,
		&status,
		&stage,
		&run.Error,
		&windows,
		&run.ChunkCount,
		&run.CreatedAt,
		&run.StartedAt,
		&run.CompletedAt,
	)
	if err != nil {
		return nil, err
	}

	run.Origin = model.Origin(origin)
	run.Status = model.RunStatus(status)
	run.Stage = model.Stage(stage)
	if len(windows) > 0 {
		run.FailedWindows = make([]int, len(windows))
		for i, w := range windows {
			run.FailedWindows[i] = int(w)
		}
	}
	return &run, nil
}

// failedWindows never returns nil so the NOT NULL column gets an empty array
func failedWindows(run *model.Run) []int32 {
	out := make([]int32, len(run.FailedWindows))
	for i, w := range run.FailedWindows {
		out[i] = int32(w)
	}
	return out
}
