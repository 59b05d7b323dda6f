package acquisition

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/Taichi-iskw/yt-digest/internal/errors"
	"github.com/Taichi-iskw/yt-digest/internal/logger"
	"github.com/Taichi-iskw/yt-digest/internal/model"
	"github.com/Taichi-iskw/yt-digest/internal/storage"
)

// Options tunes transcript acquisition
type Options struct {
	PreferredLanguage string
	// Concurrency bounds parallel segment recognition
	Concurrency int
	// RatePerMinute limits recognizer calls; zero means unlimited
	RatePerMinute int
}

// Acquirer resolves the raw transcript of a run from captions or speech recognition
type Acquirer struct {
	captions   CaptionSource
	audio      AudioDownloader
	segmenter  Segmenter
	recognizer Recognizer
	opts       Options
	log        *logger.Logger
}

// NewAcquirer wires the acquisition strategies together.
// A nil CaptionSource disables the caption path.
func NewAcquirer(captions CaptionSource, audio AudioDownloader, segmenter Segmenter, recognizer Recognizer, opts Options, log *logger.Logger) *Acquirer {
	if opts.PreferredLanguage == "" {
		opts.PreferredLanguage = "en"
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Acquirer{
		captions:   captions,
		audio:      audio,
		segmenter:  segmenter,
		recognizer: recognizer,
		opts:       opts,
		log:        log.WithComponent("acquisition"),
	}
}

// Acquire writes the raw transcript into layout and describes it.
// Caption absence falls back to audio; audio failures are fatal.
func (a *Acquirer) Acquire(ctx context.Context, source model.Source, layout storage.Layout) (*model.Transcript, error) {
	if source.Empty() {
		return nil, errors.New(errors.CodeInvalidArg, "no video or URL provided")
	}

	log := a.log.WithRun(layout.RunID)

	var (
		text       string
		language   string
		origin     model.Origin
		err        error
		hasCaption bool
	)

	if source.IsURL() {
		text, language, hasCaption = a.tryCaptions(ctx, source.URL, log)
		origin = model.OriginCaptions
	}

	if !hasCaption {
		origin = model.OriginASR
		text, language, err = a.transcribe(ctx, source, layout, log)
		if err != nil {
			return nil, err
		}
	}

	if strings.TrimSpace(text) == "" {
		return nil, errors.New(errors.CodeExternal, "transcript is empty")
	}

	if err := storage.WriteFileAtomic(layout.TranscriptPath(), []byte(text), 0644); err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "failed to save transcript")
	}

	log.WithField("origin", origin).WithField("language", language).WithField("chars", len(text)).Info("transcript acquired")
	return &model.Transcript{Path: layout.TranscriptPath(), Language: language, Origin: origin}, nil
}

// tryCaptions reports false for any caption failure so the caller falls back to audio
func (a *Acquirer) tryCaptions(ctx context.Context, videoURL string, log *logger.Logger) (string, string, bool) {
	if a.captions == nil {
		return "", "", false
	}
	if _, ok := VideoID(videoURL); !ok {
		log.WithField("url", videoURL).Info("no video id in URL, skipping captions")
		return "", "", false
	}

	captions, err := FetchCaptions(ctx, a.captions, videoURL, a.opts.PreferredLanguage)
	switch {
	case stderrors.Is(err, ErrNoCaptions):
		log.Info("captions not available, using speech recognition")
		return "", "", false
	case err != nil:
		log.WithError(err).Warn("caption lookup failed, using speech recognition")
		return "", "", false
	}

	log.WithField("language", captions.Language).WithField("platform_translated", captions.Translated).Info("using captions")
	return captions.Text, captions.Language, true
}

// transcribe runs the audio path inside the run's temp dir and always removes it
func (a *Acquirer) transcribe(ctx context.Context, source model.Source, layout storage.Layout, log *logger.Logger) (string, string, error) {
	tempDir := layout.TempDir()
	if err := os.MkdirAll(tempDir, 0755); err != nil {
		return "", "", errors.Wrap(err, errors.CodeInternal, "failed to create temp directory")
	}
	defer func() {
		if err := os.RemoveAll(tempDir); err != nil {
			log.WithError(err).Warn("failed to remove temp directory")
		}
	}()

	mediaPath := source.FilePath
	if source.IsURL() {
		path, err := a.audio.DownloadAudio(ctx, source.URL, filepath.Join(tempDir, "download"))
		if err != nil {
			return "", "", err
		}
		mediaPath = path
	}

	segments, err := a.segmenter.Split(ctx, mediaPath, filepath.Join(tempDir, "segments"))
	if err != nil {
		return "", "", err
	}
	log.WithField("segments", len(segments)).Info("transcribing audio")

	results, err := a.recognizeAll(ctx, segments)
	if err != nil {
		return "", "", err
	}

	texts := make([]string, 0, len(results))
	languages := make([]string, 0, len(results))
	for _, r := range results {
		if r.Text != "" {
			texts = append(texts, r.Text)
			languages = append(languages, r.Language)
		}
	}
	return strings.Join(texts, "\n"), dominantLanguage(languages), nil
}

// recognizeAll fans out over segments and keeps results in segment order
func (a *Acquirer) recognizeAll(ctx context.Context, segments []string) ([]*Recognition, error) {
	limit := rate.Inf
	if a.opts.RatePerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(a.opts.RatePerMinute))
	}
	limiter := rate.NewLimiter(limit, 1)

	results := make([]*Recognition, len(segments))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.opts.Concurrency)

	for i, segment := range segments {
		g.Go(func() error {
			if err := limiter.Wait(gctx); err != nil {
				return err
			}
			r, err := a.recognizer.Recognize(gctx, segment)
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		var appErr *errors.AppError
		if stderrors.As(err, &appErr) {
			return nil, err
		}
		return nil, errors.Wrap(err, errors.CodeExternal, "speech recognition failed")
	}
	return results, nil
}

// dominantLanguage returns the most frequent known language, first seen on ties
func dominantLanguage(languages []string) string {
	counts := make(map[string]int)
	best := model.LanguageUnknown
	for _, l := range languages {
		if l == "" || l == model.LanguageUnknown {
			continue
		}
		counts[l]++
		if best == model.LanguageUnknown || counts[l] > counts[best] {
			best = l
		}
	}
	return best
}
