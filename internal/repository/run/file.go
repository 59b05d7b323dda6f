package run

import (
	"context"
	"encoding/json"
	"os"
	"sync"

	"github.com/Taichi-iskw/yt-digest/internal/errors"
	"github.com/Taichi-iskw/yt-digest/internal/model"
	"github.com/Taichi-iskw/yt-digest/internal/storage"
)

// fileRepository keeps each run record as run.json inside the run directory
type fileRepository struct {
	store *storage.Store
	mu    sync.RWMutex
}

// NewFileRepository creates a Repository backed by the run directories
func NewFileRepository(store *storage.Store) Repository {
	return &fileRepository{store: store}
}

func (r *fileRepository) Create(ctx context.Context, run *model.Run) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	layout, err := r.store.Create(run.ID)
	if err != nil {
		return err
	}
	if storage.Exists(layout.RunRecordPath()) {
		return errors.New(errors.CodeConflict, "run with this ID already exists")
	}
	return r.write(layout, run)
}

func (r *fileRepository) Get(ctx context.Context, id string) (*model.Run, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	layout, err := r.store.Open(id)
	if err != nil {
		return nil, err
	}
	return readRecord(layout.RunRecordPath())
}

func (r *fileRepository) Latest(ctx context.Context) (*model.Run, error) {
	runs, err := r.List(ctx, 1, 0)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, errors.New(errors.CodeNotFound, "no runs yet")
	}
	return runs[0], nil
}

func (r *fileRepository) List(ctx context.Context, limit, offset int) ([]*model.Run, error) {
	limit, offset = normalizePage(limit, offset)

	r.mu.RLock()
	defer r.mu.RUnlock()

	entries, err := os.ReadDir(r.store.RunsDir())
	if err != nil {
		if os.IsNotExist(err) {
			return []*model.Run{}, nil
		}
		return nil, errors.Wrap(err, errors.CodeInternal, "failed to list runs")
	}

	runs := make([]*model.Run, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		run, err := readRecord(r.store.Layout(entry.Name()).RunRecordPath())
		if err != nil {
			// directories without a record are runs that never got registered
			continue
		}
		runs = append(runs, run)
	}

	sortNewestFirst(runs)
	return page(runs, limit, offset), nil
}

func (r *fileRepository) Update(ctx context.Context, run *model.Run) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	layout, err := r.store.Open(run.ID)
	if err != nil {
		return err
	}
	if !storage.Exists(layout.RunRecordPath()) {
		return errors.New(errors.CodeNotFound, "run not found: "+run.ID)
	}
	return r.write(layout, run)
}

func (r *fileRepository) write(layout storage.Layout, run *model.Run) error {
	if err := storage.WriteJSONAtomic(layout.RunRecordPath(), run); err != nil {
		return errors.Wrap(err, errors.CodeInternal, "failed to write run record")
	}
	return nil
}

func readRecord(path string) (*model.Run, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(err, errors.CodeNotFound, "run record not found")
		}
		return nil, errors.Wrap(err, errors.CodeInternal, "failed to read run record")
	}

	var run model.Run
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "failed to parse run record")
	}
	return &run, nil
}
