package pipeline

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Taichi-iskw/yt-digest/internal/chunker"
	"github.com/Taichi-iskw/yt-digest/internal/model"
	"github.com/Taichi-iskw/yt-digest/internal/repository/run"
	"github.com/Taichi-iskw/yt-digest/internal/storage"
)

// copyTranslator writes the transcript unchanged as the English transcript
type copyTranslator struct {
	failed []model.WindowFailure
	panics bool
}

func (c *copyTranslator) TranslateFile(ctx context.Context, layout storage.Layout, sourceLang string) (string, *model.TranslationManifest) {
	if c.panics {
		panic("translation service exploded")
	}
	data, err := os.ReadFile(layout.TranscriptPath())
	if err != nil {
		return layout.TranscriptPath(), &model.TranslationManifest{FellBack: true}
	}
	if err := storage.WriteFileAtomic(layout.EnglishPath(), data, 0644); err != nil {
		return layout.TranscriptPath(), &model.TranslationManifest{FellBack: true}
	}
	return layout.EnglishPath(), &model.TranslationManifest{Target: "en", TotalWindows: 1, FailedWindows: c.failed}
}

// fileVectorizer writes an empty collection file, optionally blocking first
type fileVectorizer struct {
	err     error
	release chan struct{}
	active  atomic.Int32
	peak    atomic.Int32
}

func (f *fileVectorizer) Vectorize(ctx context.Context, layout storage.Layout) (*model.EmbeddingCollection, error) {
	n := f.active.Add(1)
	defer f.active.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	if f.release != nil {
		<-f.release
	}
	if f.err != nil {
		return nil, f.err
	}
	collection := &model.EmbeddingCollection{RunID: layout.RunID}
	return collection, storage.WriteFileAtomic(layout.EmbeddingsPath(), []byte("gob"), 0644)
}

var errChunkFailed = errors.New("chunk directory is read-only")

type failingChunker struct{}

func (failingChunker) ChunkAndSave(ctx context.Context, layout storage.Layout) (int, error) {
	return 0, errChunkFailed
}

// fakeAcquirer writes a fixed transcript
type fakeAcquirer struct {
	text     string
	language string
	err      error

	mu    sync.Mutex
	calls int
}

func (f *fakeAcquirer) Acquire(ctx context.Context, source model.Source, layout storage.Layout) (*model.Transcript, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if err := storage.WriteFileAtomic(layout.TranscriptPath(), []byte(f.text), 0644); err != nil {
		return nil, err
	}
	return &model.Transcript{Path: layout.TranscriptPath(), Language: f.language, Origin: model.OriginASR}, nil
}

type env struct {
	store *storage.Store
	runs  run.Repository
}

func newEnv(t *testing.T) *env {
	t.Helper()
	store := storage.NewStore(t.TempDir())
	return &env{store: store, runs: run.NewFileRepository(store)}
}

// newRun registers a run whose raw transcript holds text
func (e *env) newRun(t *testing.T, text string) (*model.Run, *model.Transcript, storage.Layout) {
	t.Helper()
	record := model.NewRun(model.Source{URL: "https://youtu.be/dQw4w9WgXcQ"})
	require.NoError(t, e.runs.Create(context.Background(), record))
	layout := e.store.Layout(record.ID)
	require.NoError(t, os.WriteFile(layout.TranscriptPath(), []byte(text), 0644))
	return record, &model.Transcript{Path: layout.TranscriptPath(), Language: "en", Origin: model.OriginCaptions}, layout
}

func newChunker(t *testing.T) *chunker.Chunker {
	t.Helper()
	c, err := chunker.New(1000, 100)
	require.NoError(t, err)
	return c
}
