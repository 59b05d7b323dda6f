package translation

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/Taichi-iskw/yt-digest/internal/logger"
	"github.com/Taichi-iskw/yt-digest/internal/model"
	"github.com/Taichi-iskw/yt-digest/internal/storage"
)

// Translator is the external machine-translation capability
type Translator interface {
	Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error)
}

// Options controls windowing and retry behaviour
type Options struct {
	Target      string
	WindowChars int
	MaxAttempts int
	RetryDelay  time.Duration // between attempts on the same window
	WindowDelay time.Duration // between windows, whatever the outcome
}

// DefaultOptions mirrors the limits of the public translate endpoint
func DefaultOptions() Options {
	return Options{
		Target:      "en",
		WindowChars: 4000,
		MaxAttempts: 3,
		RetryDelay:  2 * time.Second,
		WindowDelay: 1 * time.Second,
	}
}

// Adapter translates whole transcripts window by window. It never fails:
// windows that exhaust their retries are dropped and recorded in the manifest,
// and if nothing at all can be translated the source transcript is used as is.
type Adapter struct {
	translator Translator
	opts       Options
	log        *logger.Logger
}

// NewAdapter creates an Adapter
func NewAdapter(translator Translator, opts Options, log *logger.Logger) *Adapter {
	if opts.Target == "" {
		opts.Target = "en"
	}
	if opts.WindowChars <= 0 {
		opts.WindowChars = 4000
	}
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	return &Adapter{translator: translator, opts: opts, log: log.WithComponent("translation")}
}

// TranslateFile translates the run's raw transcript into the English artifact
// and writes the translation manifest. It returns the path downstream stages
// should read: the English transcript, or the raw transcript on fallback.
func (a *Adapter) TranslateFile(ctx context.Context, layout storage.Layout, sourceLang string) (string, *model.TranslationManifest) {
	manifest := &model.TranslationManifest{
		Target:        a.opts.Target,
		WindowChars:   a.opts.WindowChars,
		FailedWindows: []model.WindowFailure{},
	}
	fallback := func(reason string, err error) (string, *model.TranslationManifest) {
		manifest.FellBack = true
		a.log.WithError(err).Warnf("translation fell back to source transcript: %s", reason)
		a.writeManifest(layout, manifest)
		return layout.TranscriptPath(), manifest
	}

	data, err := os.ReadFile(layout.TranscriptPath())
	if err != nil {
		return fallback("cannot read transcript", err)
	}

	text := strings.TrimSpace(string(data))
	if text == "" {
		return fallback("transcript is empty", nil)
	}

	var translated string
	if isTarget(sourceLang, a.opts.Target) {
		// Already in the target language; copy instead of calling out
		translated = text
	} else {
		translated, manifest = a.TranslateText(ctx, text, sourceLang)
		if manifest.TotalWindows > 0 && len(manifest.FailedWindows) == manifest.TotalWindows {
			last := manifest.FailedWindows[len(manifest.FailedWindows)-1]
			return fallback("every window failed", errors.New(last.Error))
		}
	}

	if err := storage.WriteFileAtomic(layout.EnglishPath(), []byte(translated), 0644); err != nil {
		return fallback("cannot write translated transcript", err)
	}

	a.writeManifest(layout, manifest)
	return layout.EnglishPath(), manifest
}

// TranslateText translates text window by window, joining surviving windows with newlines
func (a *Adapter) TranslateText(ctx context.Context, text, sourceLang string) (string, *model.TranslationManifest) {
	windows := SplitWindows(text, a.opts.WindowChars)
	manifest := &model.TranslationManifest{
		Target:        a.opts.Target,
		WindowChars:   a.opts.WindowChars,
		TotalWindows:  len(windows),
		FailedWindows: []model.WindowFailure{},
	}

	a.log.Infof("translating %d window(s) to %s", len(windows), a.opts.Target)

	parts := make([]string, 0, len(windows))
	for i, window := range windows {
		if err := ctx.Err(); err != nil {
			for j := i; j < len(windows); j++ {
				manifest.FailedWindows = append(manifest.FailedWindows, model.WindowFailure{Index: j, Error: err.Error()})
			}
			break
		}

		out, err := a.translateWindow(ctx, i, len(windows), window, sourceLang)
		if err != nil {
			a.log.WithError(err).Errorf("window %d/%d dropped after %d attempt(s)", i+1, len(windows), a.opts.MaxAttempts)
			manifest.FailedWindows = append(manifest.FailedWindows, model.WindowFailure{Index: i, Error: err.Error()})
		} else {
			parts = append(parts, out)
		}

		if i < len(windows)-1 {
			sleep(ctx, a.opts.WindowDelay)
		}
	}

	return strings.Join(parts, "\n"), manifest
}

// translateWindow retries one window with a constant delay
func (a *Adapter) translateWindow(ctx context.Context, i, total int, window, sourceLang string) (string, error) {
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(a.opts.RetryDelay), uint64(a.opts.MaxAttempts-1)),
		ctx,
	)

	attempt := 0
	op := func() (string, error) {
		attempt++
		out, err := a.translator.Translate(ctx, window, sourceLang, a.opts.Target)
		if err != nil {
			return "", err
		}
		if strings.TrimSpace(out) == "" {
			return "", fmt.Errorf("empty translation")
		}
		return out, nil
	}
	notify := func(err error, wait time.Duration) {
		a.log.WithError(err).Warnf("window %d/%d attempt %d/%d failed, retrying in %s", i+1, total, attempt, a.opts.MaxAttempts, wait)
	}

	out, err := backoff.RetryNotifyWithData(op, policy, notify)
	if err != nil {
		return "", err
	}
	a.log.Debugf("window %d/%d translated", i+1, total)
	return out, nil
}

func (a *Adapter) writeManifest(layout storage.Layout, manifest *model.TranslationManifest) {
	if err := storage.WriteJSONAtomic(layout.ManifestPath(), manifest); err != nil {
		a.log.WithError(err).Warn("failed to write translation manifest")
	}
}

// SplitWindows cuts text into consecutive windows of at most size runes,
// without regard for sentence boundaries.
func SplitWindows(text string, size int) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	windows := make([]string, 0, (len(runes)+size-1)/size)
	for start := 0; start < len(runes); start += size {
		end := min(start+size, len(runes))
		windows = append(windows, string(runes[start:end]))
	}
	return windows
}

// isTarget reports whether lang already is the target language ("en", "en-US", ...)
func isTarget(lang, target string) bool {
	lang = strings.ToLower(lang)
	target = strings.ToLower(target)
	return lang == target || strings.HasPrefix(lang, target+"-")
}

// sleep waits for d or until ctx is done
func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
