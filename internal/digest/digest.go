// Package digest produces on-demand summaries and study notes from a run's
// cleaned transcript.
package digest

import (
	"context"
	"os"
	"strings"

	"github.com/Taichi-iskw/yt-digest/internal/errors"
	"github.com/Taichi-iskw/yt-digest/internal/logger"
	"github.com/Taichi-iskw/yt-digest/internal/model"
	"github.com/Taichi-iskw/yt-digest/internal/repository/run"
	"github.com/Taichi-iskw/yt-digest/internal/storage"
)

const (
	// ExcerptWords is the length of the summary used when generation fails
	ExcerptWords = 100
	// NotesKeyPoints is how many ranked sentences local notes carry
	NotesKeyPoints = 8

	emptyTranscriptText = "No transcript content available."
)

// Result is a generated summary or notes document
type Result struct {
	RunID     string `json:"run_id"`
	Text      string `json:"text"`
	WordCount int    `json:"word_count"`
	Path      string `json:"path"`
	DocxPath  string `json:"docx_path,omitempty"`
	// Fallback is set when the text was built locally instead of by the model
	Fallback bool `json:"fallback"`
}

// Service generates summaries and notes for runs
type Service struct {
	store     *storage.Store
	runs      run.Repository
	generator Generator
	log       *logger.Logger
}

// NewService creates a digest Service. A nil generator makes every request
// use the local fallback.
func NewService(store *storage.Store, runs run.Repository, generator Generator, log *logger.Logger) *Service {
	return &Service{
		store:     store,
		runs:      runs,
		generator: generator,
		log:       log.WithComponent("digest"),
	}
}

// Summarize writes summary.txt for runID, or for the latest run when runID is empty
func (s *Service) Summarize(ctx context.Context, runID string) (*Result, error) {
	layout, id, transcript, err := s.load(ctx, runID)
	if err != nil {
		return nil, err
	}

	result := &Result{RunID: id, Path: layout.SummaryPath()}
	switch {
	case transcript == "":
		result.Text = emptyTranscriptText
	default:
		text, err := s.generate(ctx, id, buildSummaryPrompt(transcript))
		if err != nil {
			result.Text = excerpt(transcript, ExcerptWords)
			result.Fallback = true
		} else {
			result.Text = strings.TrimSpace(text)
		}
	}

	if err := storage.WriteFileAtomic(result.Path, []byte(result.Text), 0o644); err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "failed to write summary")
	}
	result.WordCount = wordCount(result.Text)
	s.log.WithRun(id).WithField("word_count", result.WordCount).Info("summary generated")
	return result, nil
}

// Notes writes detailed_notes.txt and detailed_notes.docx for runID, or for
// the latest run when runID is empty
func (s *Service) Notes(ctx context.Context, runID string) (*Result, error) {
	layout, id, transcript, err := s.load(ctx, runID)
	if err != nil {
		return nil, err
	}

	result := &Result{RunID: id, Path: layout.NotesPath(), DocxPath: layout.NotesDocxPath()}
	switch {
	case transcript == "":
		result.Text = emptyTranscriptText
	default:
		text, err := s.generate(ctx, id, buildNotesPrompt(transcript))
		if err != nil {
			result.Text = localNotes(transcript)
			result.Fallback = true
		} else {
			result.Text = strings.TrimSpace(text)
		}
	}

	if err := storage.WriteFileAtomic(result.Path, []byte(result.Text), 0o644); err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "failed to write notes")
	}
	if err := writeNotesDocx(result.Text, result.DocxPath); err != nil {
		// the text notes are already saved
		s.log.WithRun(id).WithError(err).Warn("failed to write notes document")
		result.DocxPath = ""
	}
	result.WordCount = wordCount(result.Text)
	s.log.WithRun(id).WithField("word_count", result.WordCount).Info("notes generated")
	return result, nil
}

func (s *Service) load(ctx context.Context, runID string) (storage.Layout, string, string, error) {
	var (
		record *model.Run
		err    error
	)
	if runID == "" {
		record, err = s.runs.Latest(ctx)
	} else {
		record, err = s.runs.Get(ctx, runID)
	}
	if err != nil {
		return storage.Layout{}, "", "", err
	}

	layout, err := s.store.Open(record.ID)
	if err != nil {
		return storage.Layout{}, "", "", err
	}

	data, err := os.ReadFile(layout.CleanedPath())
	if os.IsNotExist(err) {
		return storage.Layout{}, "", "", errors.New(errors.CodeNotFound, "cleaned transcript not found for run "+record.ID)
	}
	if err != nil {
		return storage.Layout{}, "", "", errors.Wrap(err, errors.CodeInternal, "failed to read cleaned transcript")
	}
	return layout, record.ID, strings.TrimSpace(string(data)), nil
}

func (s *Service) generate(ctx context.Context, runID, prompt string) (string, error) {
	if s.generator == nil {
		return "", errors.New(errors.CodeUnavailable, "no language model configured")
	}
	text, err := s.generator.Generate(ctx, prompt)
	if err == nil && strings.TrimSpace(text) == "" {
		err = errors.New(errors.CodeExternal, "language model returned no text")
	}
	if err != nil {
		s.log.WithRun(runID).WithError(err).Warn("generation failed, using local fallback")
		return "", err
	}
	return text, nil
}
