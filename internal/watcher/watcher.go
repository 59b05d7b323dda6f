// Package watcher turns files dropped into a folder into pipeline runs.
package watcher

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Taichi-iskw/yt-digest/internal/errors"
	"github.com/Taichi-iskw/yt-digest/internal/logger"
)

// EventHandler processes one new media file
type EventHandler func(ctx context.Context, path string) error

// Watcher monitors a directory for new media files
type Watcher interface {
	Start(ctx context.Context) error
	Stop() error
}

var mediaExtensions = map[string]bool{
	".mp4": true, ".mov": true, ".avi": true, ".mkv": true, ".webm": true, ".m4v": true, ".flv": true,
	".mp3": true, ".wav": true, ".m4a": true, ".ogg": true, ".flac": true,
}

// IsMediaFile reports whether path has a supported video or audio extension
func IsMediaFile(path string) bool {
	return mediaExtensions[strings.ToLower(filepath.Ext(path))]
}

// Options configures a Watcher
type Options struct {
	MaxConcurrent int
	// SettleDelay is how long to wait after a create event before handling
	// the file, so the writer can finish
	SettleDelay time.Duration
}

type fsWatcher struct {
	inputDir  string
	handler   EventHandler
	log       *logger.Logger
	watcher   *fsnotify.Watcher
	settle    time.Duration
	semaphore chan struct{}
	wg        sync.WaitGroup
}

// New creates a Watcher on inputDir. MaxConcurrent defaults to 2.
func New(inputDir string, handler EventHandler, opts Options, log *logger.Logger) (Watcher, error) {
	if inputDir == "" {
		return nil, errors.New(errors.CodeInvalidArg, "watcher input directory is not set")
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "failed to create file watcher")
	}
	if err := w.Add(inputDir); err != nil {
		w.Close()
		return nil, errors.Wrap(err, errors.CodeInvalidArg, "failed to watch "+inputDir)
	}

	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 2
	}

	return &fsWatcher{
		inputDir:  inputDir,
		handler:   handler,
		log:       log.WithComponent("watcher"),
		watcher:   w,
		settle:    opts.SettleDelay,
		semaphore: make(chan struct{}, opts.MaxConcurrent),
	}, nil
}

// Start handles create events until ctx is cancelled, then waits for
// in-flight files
func (w *fsWatcher) Start(ctx context.Context) error {
	w.log.WithField("dir", w.inputDir).WithField("max_concurrent", cap(w.semaphore)).Info("watching for media files")

	for {
		select {
		case <-ctx.Done():
			w.wg.Wait()
			w.log.Info("watcher stopped")
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				w.wg.Wait()
				return nil
			}
			if !event.Has(fsnotify.Create) {
				continue
			}
			if !IsMediaFile(event.Name) {
				w.log.WithField("file", event.Name).Debug("ignoring non-media file")
				continue
			}

			select {
			case w.semaphore <- struct{}{}:
			case <-ctx.Done():
				w.wg.Wait()
				return ctx.Err()
			}

			w.wg.Add(1)
			go func(path string) {
				defer w.wg.Done()
				defer func() { <-w.semaphore }()
				w.handle(ctx, path)
			}(event.Name)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				w.wg.Wait()
				return nil
			}
			w.log.WithError(err).Warn("watcher error")
		}
	}
}

func (w *fsWatcher) handle(ctx context.Context, path string) {
	if w.settle > 0 {
		select {
		case <-time.After(w.settle):
		case <-ctx.Done():
			return
		}
	}

	log := w.log.WithField("file", path)
	log.Info("new media file")
	if err := w.handler(ctx, path); err != nil {
		log.WithError(err).Error("failed to process file")
	}
}

// Stop closes the underlying watcher, which ends Start
func (w *fsWatcher) Stop() error {
	return w.watcher.Close()
}
