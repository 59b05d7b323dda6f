// Package pipeline sequences the stages that turn a raw transcript into
// chunks and embeddings, in the background and per run.
package pipeline

import (
	"context"
	stderrors "errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/Taichi-iskw/yt-digest/internal/cleaner"
	"github.com/Taichi-iskw/yt-digest/internal/logger"
	"github.com/Taichi-iskw/yt-digest/internal/model"
	"github.com/Taichi-iskw/yt-digest/internal/repository/run"
	"github.com/Taichi-iskw/yt-digest/internal/storage"
)

// Translator produces the English transcript. It never fails; on trouble it
// returns the path of the text downstream stages should use instead.
type Translator interface {
	TranslateFile(ctx context.Context, layout storage.Layout, sourceLang string) (string, *model.TranslationManifest)
}

// CleanFunc cleans the text at in and writes it to out
type CleanFunc func(in, out string) error

// Chunker writes the chunk files of a run
type Chunker interface {
	ChunkAndSave(ctx context.Context, layout storage.Layout) (int, error)
}

// Vectorizer embeds the chunk files of a run
type Vectorizer interface {
	Vectorize(ctx context.Context, layout storage.Layout) (*model.EmbeddingCollection, error)
}

// Stages bundles the pipeline stages in execution order
type Stages struct {
	Translator Translator
	Clean      CleanFunc
	Chunker    Chunker
	Vectorizer Vectorizer
}

// Runner executes the tail of the pipeline for one run at a time per goroutine
type Runner struct {
	stages Stages
	runs   run.Repository
	log    *logger.Logger

	// gate bounds concurrent runs; nil means unbounded
	gate chan struct{}
	wg   sync.WaitGroup
}

// NewRunner creates a Runner. maxConcurrent <= 0 admits every run at once.
func NewRunner(stages Stages, runs run.Repository, maxConcurrent int, log *logger.Logger) *Runner {
	if stages.Clean == nil {
		stages.Clean = cleaner.CleanFile
	}
	if log == nil {
		log = logger.Discard()
	}
	r := &Runner{
		stages: stages,
		runs:   runs,
		log:    log.WithComponent("runner"),
	}
	if maxConcurrent > 0 {
		r.gate = make(chan struct{}, maxConcurrent)
	}
	return r
}

// Dispatch starts the run in the background and returns immediately.
// The run is detached from ctx cancellation but keeps its values. The
// background goroutine works on its own copy of record.
func (r *Runner) Dispatch(ctx context.Context, record *model.Run, transcript *model.Transcript, layout storage.Layout) {
	own := *record
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		_ = r.Run(context.WithoutCancel(ctx), &own, transcript, layout)
	}()
}

// Wait blocks until every dispatched run has finished
func (r *Runner) Wait() {
	r.wg.Wait()
}

// Run executes translation, cleaning, chunking and vectorization in order and
// records the outcome. A panic in any stage fails the run instead of the process.
func (r *Runner) Run(ctx context.Context, record *model.Run, transcript *model.Transcript, layout storage.Layout) (err error) {
	log := r.log.WithRun(record.ID)

	if r.gate != nil {
		select {
		case r.gate <- struct{}{}:
			defer func() { <-r.gate }()
		case <-ctx.Done():
			r.finish(ctx, record, model.RunStatusFailed, ctx.Err())
			return ctx.Err()
		}
	}

	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("stage %s panicked: %v", record.Stage, p)
			log.WithField("stack", string(debug.Stack())).WithError(err).Error("background run panicked")
			r.finish(ctx, record, model.RunStatusFailed, err)
		}
	}()

	started := time.Now().UTC()
	record.StartedAt = &started
	record.Status = model.RunStatusRunning
	r.advance(ctx, record, model.StageTranslation)

	status, err := r.execute(ctx, record, transcript, layout, log)
	if err != nil {
		log.WithField("stage", record.Stage).WithError(err).Error("background run failed")
	}
	r.finish(ctx, record, status, err)
	return err
}

func (r *Runner) execute(ctx context.Context, record *model.Run, transcript *model.Transcript, layout storage.Layout, log *logger.Logger) (model.RunStatus, error) {
	englishPath, manifest := r.stages.Translator.TranslateFile(ctx, layout, transcript.Language)
	record.FailedWindows = manifest.FailedIndices()
	if len(record.FailedWindows) > 0 {
		log.WithField("failed_windows", record.FailedWindows).Warn("translation degraded")
	}

	r.advance(ctx, record, model.StageCleaning)
	if err := r.stages.Clean(englishPath, layout.CleanedPath()); err != nil {
		if stderrors.Is(err, cleaner.ErrEmptyTranscript) {
			log.Info("cleaned transcript is empty, stopping")
			return model.RunStatusEmpty, nil
		}
		return model.RunStatusFailed, err
	}

	r.advance(ctx, record, model.StageChunking)
	count, err := r.stages.Chunker.ChunkAndSave(ctx, layout)
	if err != nil {
		return model.RunStatusFailed, err
	}
	record.ChunkCount = count

	r.advance(ctx, record, model.StageVectorization)
	if _, err := r.stages.Vectorizer.Vectorize(ctx, layout); err != nil {
		return model.RunStatusFailed, err
	}

	record.Stage = model.StageDone
	log.WithField("chunks", count).Info("background run completed")
	return model.RunStatusCompleted, nil
}

// advance moves the run to stage and persists it; registry errors are logged only
func (r *Runner) advance(ctx context.Context, record *model.Run, stage model.Stage) {
	record.Stage = stage
	r.save(ctx, record)
}

func (r *Runner) finish(ctx context.Context, record *model.Run, status model.RunStatus, err error) {
	completed := time.Now().UTC()
	record.Status = status
	record.CompletedAt = &completed
	if err != nil {
		record.Error = err.Error()
	}
	r.save(ctx, record)
}

func (r *Runner) save(ctx context.Context, record *model.Run) {
	if err := r.runs.Update(ctx, record); err != nil {
		r.log.WithRun(record.ID).WithError(err).Warn("failed to update run record")
	}
}
