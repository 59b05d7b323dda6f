package watcher

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/Taichi-iskw/yt-digest/internal/errors"
	"github.com/Taichi-iskw/yt-digest/internal/logger"
	"github.com/Taichi-iskw/yt-digest/internal/model"
	"github.com/Taichi-iskw/yt-digest/internal/pipeline"
	"github.com/Taichi-iskw/yt-digest/internal/storage"
)

// Submitter starts a run for a source
type Submitter interface {
	Submit(ctx context.Context, source model.Source) (*pipeline.Submission, error)
}

// NewUploadHandler returns an EventHandler that moves a dropped file into
// the uploads area and submits it like an uploaded video
func NewUploadHandler(store *storage.Store, submitter Submitter, log *logger.Logger) EventHandler {
	return func(ctx context.Context, path string) error {
		dest, err := store.UploadPath(filepath.Base(path))
		if err != nil {
			return err
		}
		if err := moveFile(path, dest); err != nil {
			return errors.Wrap(err, errors.CodeInternal, "failed to move "+path+" into uploads")
		}

		sub, err := submitter.Submit(ctx, model.Source{FilePath: dest})
		if err != nil {
			return err
		}
		log.WithRun(sub.Run.ID).WithField("file", dest).Info("run dispatched")
		return nil
	}
}

// moveFile renames src to dst, copying when they are on different devices
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(src)
}
