package pipeline

import (
	"context"
	"path/filepath"

	"github.com/Taichi-iskw/yt-digest/internal/errors"
	"github.com/Taichi-iskw/yt-digest/internal/model"
	"github.com/Taichi-iskw/yt-digest/internal/repository/run"
	"github.com/Taichi-iskw/yt-digest/internal/storage"
)

// TrackedArtifacts is how many artifacts the progress monitor looks for
const TrackedArtifacts = 3

// Classify maps the number of present artifacts to a progress status
func Classify(present, total int) model.ProgressStatus {
	switch {
	case present <= 0:
		return model.ProgressProcessing
	case present >= total:
		return model.ProgressCompleted
	default:
		return model.ProgressPartial
	}
}

// Artifacts lists which tracked artifacts of a run exist: the translated
// transcript, the cleaned transcript and the chunk stage output. Chunk output
// is any chunk file or, when chunks were not retained, the embedding collection.
func Artifacts(layout storage.Layout) []string {
	found := []string{}
	for _, path := range []string{layout.EnglishPath(), layout.CleanedPath()} {
		if storage.Exists(path) {
			found = append(found, filepath.Base(path))
		}
	}

	chunks, err := layout.ChunkFiles()
	if (err == nil && len(chunks) > 0) || storage.Exists(layout.EmbeddingsPath()) {
		found = append(found, filepath.Base(layout.ChunkDir()))
	}
	return found
}

// Monitor reports run progress from artifact presence and the run record
type Monitor struct {
	store *storage.Store
	runs  run.Repository
}

// NewMonitor creates a progress Monitor
func NewMonitor(store *storage.Store, runs run.Repository) *Monitor {
	return &Monitor{store: store, runs: runs}
}

// Status reports the progress of runID, or of the latest run when runID is
// empty. Without any run it reports processing with nothing found.
func (m *Monitor) Status(ctx context.Context, runID string) (*model.Progress, error) {
	var (
		record *model.Run
		err    error
	)
	if runID == "" {
		record, err = m.runs.Latest(ctx)
		if errors.IsCode(err, errors.CodeNotFound) {
			return &model.Progress{
				Status:         model.ProgressProcessing,
				CompletedFiles: []string{},
				TotalFiles:     TrackedArtifacts,
			}, nil
		}
	} else {
		record, err = m.runs.Get(ctx, runID)
	}
	if err != nil {
		return nil, err
	}

	layout, err := m.store.Open(record.ID)
	if err != nil {
		return nil, err
	}

	found := Artifacts(layout)
	return &model.Progress{
		Status:         Classify(len(found), TrackedArtifacts),
		CompletedFiles: found,
		TotalFiles:     TrackedArtifacts,
		Run:            record,
	}, nil
}
