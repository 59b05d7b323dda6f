package pipeline

import (
	"context"
	"os"

	"github.com/Taichi-iskw/yt-digest/internal/errors"
	"github.com/Taichi-iskw/yt-digest/internal/logger"
	"github.com/Taichi-iskw/yt-digest/internal/model"
	"github.com/Taichi-iskw/yt-digest/internal/repository/run"
	"github.com/Taichi-iskw/yt-digest/internal/storage"
)

// PreviewChars is how much of the raw transcript a submission echoes back
const PreviewChars = 500

// Acquirer resolves the raw transcript of a run
type Acquirer interface {
	Acquire(ctx context.Context, source model.Source, layout storage.Layout) (*model.Transcript, error)
}

// Submission is the synchronous result of accepting a video
type Submission struct {
	Run        *model.Run
	Transcript *model.Transcript
	Preview    string
}

// Processor accepts videos: it acquires the transcript in the caller's
// goroutine and hands the rest to the Runner
type Processor struct {
	store    *storage.Store
	runs     run.Repository
	acquirer Acquirer
	runner   *Runner
	log      *logger.Logger
}

// NewProcessor creates a Processor
func NewProcessor(store *storage.Store, runs run.Repository, acquirer Acquirer, runner *Runner, log *logger.Logger) *Processor {
	if log == nil {
		log = logger.Discard()
	}
	return &Processor{
		store:    store,
		runs:     runs,
		acquirer: acquirer,
		runner:   runner,
		log:      log.WithComponent("processor"),
	}
}

// Submit acquires the transcript and dispatches the remaining stages in
// the background. Acquisition failures are returned to the caller.
func (p *Processor) Submit(ctx context.Context, source model.Source) (*Submission, error) {
	sub, layout, err := p.acquire(ctx, source)
	if err != nil {
		return nil, err
	}
	p.runner.Dispatch(ctx, sub.Run, sub.Transcript, layout)
	return sub, nil
}

// Process acquires the transcript and runs every stage before returning.
// The returned run reflects the final record.
func (p *Processor) Process(ctx context.Context, source model.Source) (*Submission, error) {
	sub, layout, err := p.acquire(ctx, source)
	if err != nil {
		return nil, err
	}
	if err := p.runner.Run(ctx, sub.Run, sub.Transcript, layout); err != nil {
		return sub, err
	}
	return sub, nil
}

func (p *Processor) acquire(ctx context.Context, source model.Source) (*Submission, storage.Layout, error) {
	if source.Empty() {
		return nil, storage.Layout{}, errors.New(errors.CodeInvalidArg, "no video or URL provided")
	}

	record := model.NewRun(source)
	layout, err := p.store.Create(record.ID)
	if err != nil {
		return nil, storage.Layout{}, err
	}
	if err := p.runs.Create(ctx, record); err != nil {
		return nil, storage.Layout{}, err
	}

	log := p.log.WithRun(record.ID)
	log.WithField("url", source.URL).WithField("file", source.FilePath).Info("run accepted")

	transcript, err := p.acquirer.Acquire(ctx, source, layout)
	if err != nil {
		record.Status = model.RunStatusFailed
		record.Error = err.Error()
		if updateErr := p.runs.Update(context.WithoutCancel(ctx), record); updateErr != nil {
			log.WithError(updateErr).Warn("failed to update run record")
		}
		log.WithError(err).Error("acquisition failed")
		return nil, storage.Layout{}, err
	}

	record.Origin = transcript.Origin
	record.Language = transcript.Language
	if err := p.runs.Update(ctx, record); err != nil {
		log.WithError(err).Warn("failed to update run record")
	}

	preview, err := readPreview(transcript.Path, PreviewChars)
	if err != nil {
		return nil, storage.Layout{}, errors.Wrap(err, errors.CodeInternal, "failed to read transcript")
	}

	return &Submission{Run: record, Transcript: transcript, Preview: preview}, layout, nil
}

// readPreview returns the first n characters of the file, with "..." when cut
func readPreview(path string, n int) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return Preview(string(data), n), nil
}

// Preview truncates text to n runes and marks the cut with an ellipsis
func Preview(text string, n int) string {
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n]) + "..."
}
