package storage

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/Taichi-iskw/yt-digest/internal/errors"
)

const (
	runsDir    = "runs"
	uploadsDir = "uploads"
)

// Store owns the data directory and hands out per-run layouts
type Store struct {
	DataDir string
}

// NewStore creates a Store rooted at dataDir
func NewStore(dataDir string) *Store {
	return &Store{DataDir: dataDir}
}

// RunsDir is the parent directory of all run roots
func (s *Store) RunsDir() string {
	return filepath.Join(s.DataDir, runsDir)
}

// Layout returns the layout of runID without touching the filesystem
func (s *Store) Layout(runID string) Layout {
	return Layout{RunID: runID, Root: filepath.Join(s.RunsDir(), runID)}
}

// Create makes the directory tree of a new run
func (s *Store) Create(runID string) (Layout, error) {
	if err := validateRunID(runID); err != nil {
		return Layout{}, err
	}

	layout := s.Layout(runID)
	for _, dir := range []string{layout.TranscriptsDir(), layout.ChunkDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return Layout{}, errors.Wrap(err, errors.CodeInternal, "failed to create run directory")
		}
	}
	return layout, nil
}

// Open returns the layout of an existing run
func (s *Store) Open(runID string) (Layout, error) {
	if err := validateRunID(runID); err != nil {
		return Layout{}, err
	}

	layout := s.Layout(runID)
	info, err := os.Stat(layout.Root)
	if err != nil {
		if os.IsNotExist(err) {
			return Layout{}, errors.New(errors.CodeNotFound, "run not found: "+runID)
		}
		return Layout{}, errors.Wrap(err, errors.CodeInternal, "failed to open run directory")
	}
	if !info.IsDir() {
		return Layout{}, errors.New(errors.CodeInternal, "run path is not a directory: "+layout.Root)
	}
	return layout, nil
}

// UploadPath returns where an uploaded file named name is stored
func (s *Store) UploadPath(name string) (string, error) {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if base == "." || base == "/" || base == ".." || base == "" {
		return "", errors.New(errors.CodeInvalidArg, "invalid upload file name")
	}

	dir := filepath.Join(s.DataDir, uploadsDir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", errors.Wrap(err, errors.CodeInternal, "failed to create uploads directory")
	}
	// Prefix with a short id so two uploads with the same name don't clash
	return filepath.Join(dir, uuid.New().String()[:8]+"_"+base), nil
}

// RemoveTemp deletes the temporary directory of a run
func (s *Store) RemoveTemp(layout Layout) error {
	return os.RemoveAll(layout.TempDir())
}

func validateRunID(runID string) error {
	if _, err := uuid.Parse(runID); err != nil {
		return errors.Wrap(err, errors.CodeInvalidArg, "invalid run id: "+runID)
	}
	return nil
}
