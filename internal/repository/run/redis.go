package run

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Taichi-iskw/yt-digest/internal/errors"
	"github.com/Taichi-iskw/yt-digest/internal/model"
)

const (
	redisKeyPrefix = "ytdigest:run:"
	redisIndexKey  = "ytdigest:runs"
)

// redisRepository stores run records as JSON strings and keeps a sorted
// set of ids scored by creation time
type redisRepository struct {
	client *redis.Client
}

// NewRedisClient parses a redis:// URL and checks the connection
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInvalidArg, "invalid redis URL")
	}

	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, errors.CodeUnavailable, "failed to connect to redis")
	}
	return client, nil
}

// NewRedisRepository creates a Redis-backed Repository
func NewRedisRepository(client *redis.Client) Repository {
	return &redisRepository{client: client}
}

func runKey(id string) string {
	return redisKeyPrefix + id
}

func (r *redisRepository) Create(ctx context.Context, run *model.Run) error {
	data, err := json.Marshal(run)
	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, "failed to encode run")
	}

	created, err := r.client.SetNX(ctx, runKey(run.ID), data, 0).Result()
	if err != nil {
		return errors.Wrap(err, errors.CodeUnavailable, "failed to create run")
	}
	if !created {
		return errors.New(errors.CodeConflict, "run with this ID already exists")
	}

	score := float64(run.CreatedAt.UnixNano())
	if err := r.client.ZAdd(ctx, redisIndexKey, redis.Z{Score: score, Member: run.ID}).Err(); err != nil {
		return errors.Wrap(err, errors.CodeUnavailable, "failed to index run")
	}
	return nil
}

func (r *redisRepository) Get(ctx context.Context, id string) (*model.Run, error) {
	data, err := r.client.Get(ctx, runKey(id)).Bytes()
	if err == redis.Nil {
		return nil, errors.New(errors.CodeNotFound, "run not found: "+id)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeUnavailable, "failed to get run")
	}
	return decodeRun(data)
}

func (r *redisRepository) Latest(ctx context.Context) (*model.Run, error) {
	runs, err := r.List(ctx, 1, 0)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, errors.New(errors.CodeNotFound, "no runs yet")
	}
	return runs[0], nil
}

func (r *redisRepository) List(ctx context.Context, limit, offset int) ([]*model.Run, error) {
	limit, offset = normalizePage(limit, offset)

	ids, err := r.client.ZRevRange(ctx, redisIndexKey, int64(offset), int64(offset+limit-1)).Result()
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeUnavailable, "failed to list runs")
	}
	if len(ids) == 0 {
		return []*model.Run{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = runKey(id)
	}
	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeUnavailable, "failed to load runs")
	}

	runs := make([]*model.Run, 0, len(values))
	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			// index entry without a record, skip it
			continue
		}
		run, err := decodeRun([]byte(s))
		if err != nil {
			return nil, fmt.Errorf("run %s: %w", ids[i], err)
		}
		runs = append(runs, run)
	}
	return runs, nil
}

func (r *redisRepository) Update(ctx context.Context, run *model.Run) error {
	data, err := json.Marshal(run)
	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, "failed to encode run")
	}

	updated, err := r.client.SetXX(ctx, runKey(run.ID), data, 0).Result()
	if err != nil {
		return errors.Wrap(err, errors.CodeUnavailable, "failed to update run")
	}
	if !updated {
		return errors.New(errors.CodeNotFound, "run not found: "+run.ID)
	}
	return nil
}

func decodeRun(data []byte) (*model.Run, error) {
	var run model.Run
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "failed to parse run record")
	}
	return &run, nil
}
