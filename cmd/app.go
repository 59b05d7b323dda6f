package cmd

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Taichi-iskw/yt-digest/cmd/output"
	"github.com/Taichi-iskw/yt-digest/internal/chunker"
	"github.com/Taichi-iskw/yt-digest/internal/config"
	"github.com/Taichi-iskw/yt-digest/internal/digest"
	"github.com/Taichi-iskw/yt-digest/internal/embedding"
	"github.com/Taichi-iskw/yt-digest/internal/logger"
	"github.com/Taichi-iskw/yt-digest/internal/pipeline"
	embeddingRepo "github.com/Taichi-iskw/yt-digest/internal/repository/embedding"
	"github.com/Taichi-iskw/yt-digest/internal/repository/run"
	"github.com/Taichi-iskw/yt-digest/internal/service/acquisition"
	"github.com/Taichi-iskw/yt-digest/internal/service/common"
	"github.com/Taichi-iskw/yt-digest/internal/service/translation"
	"github.com/Taichi-iskw/yt-digest/internal/storage"
	"github.com/Taichi-iskw/yt-digest/internal/vectorizer"
)

// app holds the components a command needs. Heavier parts are built on demand.
type app struct {
	cfg   *config.Config
	log   *logger.Logger
	store *storage.Store
	runs  run.Repository
	pool  *pgxpool.Pool

	embedder embedding.Embedder
	runner   *pipeline.Runner
	cleanup  []func()
}

// newApp loads configuration and opens the run registry: Postgres when
// database_url is set, Redis when redis_url is set, run.json files otherwise
func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	a := &app{
		cfg:   cfg,
		log:   logger.New(logger.Options{Level: cfg.Log.Level, Format: cfg.Log.Format}),
		store: storage.NewStore(cfg.DataDir),
	}

	switch {
	case cfg.DatabaseURL != "":
		var opts []config.PoolOption
		if cfg.Embedding.StoreInDatabase {
			opts = append(opts, config.WithVectorTypes())
		}
		pool, err := config.NewDatabasePool(ctx, cfg, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		a.pool = pool
		a.runs = run.NewPostgresRepository(pool)
		a.onClose(func() { config.CloseDatabasePool(pool) })
	case cfg.RedisURL != "":
		client, err := run.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		a.runs = run.NewRedisRepository(client)
		a.onClose(func() { client.Close() })
	default:
		a.runs = run.NewFileRepository(a.store)
	}

	return a, nil
}

func (a *app) onClose(fn func()) {
	a.cleanup = append(a.cleanup, fn)
}

// Close releases resources in reverse order of acquisition
func (a *app) Close() {
	for i := len(a.cleanup) - 1; i >= 0; i-- {
		a.cleanup[i]()
	}
}

func (a *app) formatter() (output.Formatter, error) {
	return output.GetFormatter(outputFormat)
}

// embeddings returns the embedding model, or a stand-in that fails every call
// when no model is configured
func (a *app) embeddings() embedding.Embedder {
	if a.embedder != nil {
		return a.embedder
	}

	e, err := embedding.NewONNXEmbedder(embedding.ONNXConfig{
		ModelName:      a.cfg.Embedding.ModelName,
		ModelPath:      a.cfg.Embedding.ModelPath,
		TokenizerPath:  a.cfg.Embedding.TokenizerPath,
		LibraryPath:    a.cfg.Embedding.LibraryPath,
		MaxBatchTokens: a.cfg.Embedding.MaxBatchTokens,
	}, a.log)
	if err != nil {
		a.log.WithError(err).Warn("embedding model unavailable, runs will stop at vectorization")
		e = embedding.Unavailable(err)
	}
	a.embedder = e
	a.onClose(func() { _ = e.Close() })
	return e
}

// vectorMirror returns the pgvector store when vectors go to the database
func (a *app) vectorMirror() embeddingRepo.Repository {
	if a.pool == nil || !a.cfg.Embedding.StoreInDatabase {
		return nil
	}
	return embeddingRepo.NewRepository(a.pool)
}

func (a *app) chunker() (*chunker.Chunker, error) {
	return chunker.New(a.cfg.Chunking.MaxChars, a.cfg.Chunking.Overlap)
}

func (a *app) translator() translation.Translator {
	t := a.cfg.Translation
	if t.Provider == "command" {
		return translation.NewCommandTranslatorWithCmdRunner(common.NewCmdRunner(), t.Command)
	}
	return translation.NewHTTPTranslator(t.Endpoint, t.Timeout)
}

// processor builds the full pipeline: acquisition up front, the remaining
// stages on the background runner
func (a *app) processor() (*pipeline.Processor, error) {
	c, err := a.chunker()
	if err != nil {
		return nil, err
	}

	var mirror vectorizer.Mirror
	if m := a.vectorMirror(); m != nil {
		mirror = m
	}

	t := a.cfg.Translation
	stages := pipeline.Stages{
		Translator: translation.NewAdapter(a.translator(), translation.Options{
			Target:      t.Target,
			WindowChars: t.WindowChars,
			MaxAttempts: t.MaxAttempts,
			RetryDelay:  t.RetryDelay,
			WindowDelay: t.WindowDelay,
		}, a.log),
		Chunker:    c,
		Vectorizer: vectorizer.New(a.embeddings(), mirror, a.cfg.Chunking.RetainChunks, a.log),
	}
	a.runner = pipeline.NewRunner(stages, a.runs, a.cfg.Runner.MaxConcurrent, a.log)

	acq := a.cfg.Acquisition
	acquirer := acquisition.NewAcquirer(
		acquisition.NewCaptionSource(acq.YtDlpBinary),
		acquisition.NewAudioDownloader(acq.YtDlpBinary),
		acquisition.NewSegmenter(acq.FFmpegBinary, acq.SegmentSeconds),
		acquisition.NewWhisperRecognizer(acq.WhisperBinary, acq.WhisperModel),
		acquisition.Options{
			PreferredLanguage: t.Target,
			Concurrency:       acq.ASRConcurrency,
			RatePerMinute:     acq.ASRRatePerMin,
		},
		a.log,
	)

	return pipeline.NewProcessor(a.store, a.runs, acquirer, a.runner, a.log), nil
}

// waitRuns blocks until dispatched background runs finish
func (a *app) waitRuns() {
	if a.runner != nil {
		a.runner.Wait()
	}
}

func (a *app) monitor() *pipeline.Monitor {
	return pipeline.NewMonitor(a.store, a.runs)
}

// digester builds the summary and notes service. Without an API key every
// request uses the local fallback.
func (a *app) digester(ctx context.Context) *digest.Service {
	var generator digest.Generator
	g, err := digest.NewGeminiGenerator(ctx, a.cfg.LLM.APIKey, a.cfg.LLM.Model)
	if err != nil {
		a.log.WithError(err).Warn("language model unavailable, summaries fall back to excerpts")
	} else {
		generator = g
	}
	return digest.NewService(a.store, a.runs, generator, a.log)
}

// withApp runs fn with a freshly built app and closes it afterwards
func withApp(ctx context.Context, fn func(a *app) error) error {
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}
