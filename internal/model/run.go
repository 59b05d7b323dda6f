package model

import (
	"time"

	"github.com/google/uuid"
)

// RunStatus is the lifecycle state of a pipeline run
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusEmpty     RunStatus = "empty" // cleaned transcript had no text left
)

// Terminal reports whether no further transitions are expected
func (s RunStatus) Terminal() bool {
	switch s {
	case RunStatusCompleted, RunStatusFailed, RunStatusEmpty:
		return true
	default:
		return false
	}
}

// Stage names the pipeline step a run is in (or failed in)
type Stage string

const (
	StageAcquisition   Stage = "acquisition"
	StageTranslation   Stage = "translation"
	StageCleaning      Stage = "cleaning"
	StageChunking      Stage = "chunking"
	StageVectorization Stage = "vectorization"
	StageDone          Stage = "done"
)

// Run is the persisted completion record of one pipeline execution
type Run struct {
	ID            string     `json:"id" db:"id"`
	SourceURL     string     `json:"source_url,omitempty" db:"source_url"`
	SourceFile    string     `json:"source_file,omitempty" db:"source_file"`
	Origin        Origin     `json:"origin,omitempty" db:"origin"`
	Language      string     `json:"language,omitempty" db:"language"`
	Status        RunStatus  `json:"status" db:"status"`
	Stage         Stage      `json:"stage" db:"stage"`
	Error         string     `json:"error,omitempty" db:"error"`
	FailedWindows []int      `json:"failed_windows,omitempty" db:"failed_windows"`
	ChunkCount    int        `json:"chunk_count" db:"chunk_count"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	StartedAt     *time.Time `json:"started_at,omitempty" db:"started_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty" db:"completed_at"`
}

// NewRunID returns a fresh run identifier
func NewRunID() string {
	return uuid.New().String()
}

// NewRun creates a pending run record for the given source
func NewRun(source Source) *Run {
	return &Run{
		ID:         NewRunID(),
		SourceURL:  source.URL,
		SourceFile: source.FilePath,
		Status:     RunStatusPending,
		Stage:      StageAcquisition,
		CreatedAt:  time.Now().UTC(),
	}
}

// Source is what a run was started from: a video URL or an uploaded file
type Source struct {
	URL      string `json:"url,omitempty"`
	FilePath string `json:"file_path,omitempty"`
}

// IsURL reports whether the source is a remote video link
func (s Source) IsURL() bool {
	return s.URL != ""
}

// Empty reports whether neither a URL nor a file was supplied
func (s Source) Empty() bool {
	return s.URL == "" && s.FilePath == ""
}
