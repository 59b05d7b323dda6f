// Package output renders command results for the terminal.
package output

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Taichi-iskw/yt-digest/internal/digest"
	"github.com/Taichi-iskw/yt-digest/internal/model"
	"github.com/Taichi-iskw/yt-digest/internal/pipeline"
	"github.com/Taichi-iskw/yt-digest/internal/repository/embedding"
)

// Formatter defines interface for output formatting
type Formatter interface {
	Run(run *model.Run) (string, error)
	Runs(runs []*model.Run) (string, error)
	Progress(progress *model.Progress) (string, error)
	Submission(sub *pipeline.Submission) (string, error)
	Digest(result *digest.Result) (string, error)
	Matches(matches []embedding.Match) (string, error)
}

// TextFormatter formats output as plain text
type TextFormatter struct{}

// Run formats a run record as plain text
func (f *TextFormatter) Run(run *model.Run) (string, error) {
	var output strings.Builder

	output.WriteString(fmt.Sprintf("Run ID: %s\n", run.ID))
	output.WriteString(fmt.Sprintf("Source: %s\n", source(run)))
	output.WriteString(fmt.Sprintf("Status: %s\n", run.Status))
	output.WriteString(fmt.Sprintf("Stage: %s\n", run.Stage))
	if run.Origin != "" {
		output.WriteString(fmt.Sprintf("Origin: %s\n", run.Origin))
	}
	if run.Language != "" {
		output.WriteString(fmt.Sprintf("Language: %s\n", run.Language))
	}
	output.WriteString(fmt.Sprintf("Chunks: %d\n", run.ChunkCount))
	if len(run.FailedWindows) > 0 {
		output.WriteString(fmt.Sprintf("Failed Translation Windows: %v\n", run.FailedWindows))
	}
	if run.Error != "" {
		output.WriteString(fmt.Sprintf("Error: %s\n", run.Error))
	}
	output.WriteString(fmt.Sprintf("Created At: %s\n", run.CreatedAt.Format(time.RFC3339)))
	if run.CompletedAt != nil {
		output.WriteString(fmt.Sprintf("Completed At: %s\n", run.CompletedAt.Format(time.RFC3339)))
	}

	return output.String(), nil
}

// Runs formats run records as one line each
func (f *TextFormatter) Runs(runs []*model.Run) (string, error) {
	if len(runs) == 0 {
		return "No runs found.\n", nil
	}

	var output strings.Builder
	for _, run := range runs {
		output.WriteString(fmt.Sprintf("%s  %-9s  %-13s  %s  %s\n",
			run.ID, run.Status, run.Stage, run.CreatedAt.Format("2006-01-02 15:04:05"), truncateString(source(run), 60)))
	}
	return output.String(), nil
}

// Progress formats a progress report as plain text
func (f *TextFormatter) Progress(progress *model.Progress) (string, error) {
	var output strings.Builder

	if progress.Run != nil {
		output.WriteString(fmt.Sprintf("Run ID: %s (%s)\n", progress.Run.ID, progress.Run.Status))
	}
	output.WriteString(fmt.Sprintf("Progress: %s (%d/%d)\n", progress.Status, len(progress.CompletedFiles), progress.TotalFiles))
	for _, name := range progress.CompletedFiles {
		output.WriteString(fmt.Sprintf("  ✓ %s\n", name))
	}
	return output.String(), nil
}

// Submission formats an accepted video as plain text
func (f *TextFormatter) Submission(sub *pipeline.Submission) (string, error) {
	var output strings.Builder

	output.WriteString(fmt.Sprintf("Run ID: %s\n", sub.Run.ID))
	output.WriteString(fmt.Sprintf("Status: %s\n", sub.Run.Status))
	output.WriteString(fmt.Sprintf("Transcript: %s (%s, %s)\n", sub.Transcript.Path, sub.Transcript.Origin, sub.Transcript.Language))
	if sub.Run.ChunkCount > 0 {
		output.WriteString(fmt.Sprintf("Chunks: %d\n", sub.Run.ChunkCount))
	}
	output.WriteString("\nPreview:\n")
	output.WriteString("========\n")
	output.WriteString(sub.Preview)
	output.WriteString("\n")

	return output.String(), nil
}

// Digest formats a summary or notes result as plain text
func (f *TextFormatter) Digest(result *digest.Result) (string, error) {
	var output strings.Builder

	output.WriteString(result.Text)
	output.WriteString("\n\n")
	output.WriteString(fmt.Sprintf("Words: %d\n", result.WordCount))
	output.WriteString(fmt.Sprintf("Saved: %s\n", result.Path))
	if result.DocxPath != "" {
		output.WriteString(fmt.Sprintf("Document: %s\n", result.DocxPath))
	}
	if result.Fallback {
		output.WriteString("Note: the language model was unavailable, text was built locally\n")
	}
	return output.String(), nil
}

// Matches formats search hits as plain text
func (f *TextFormatter) Matches(matches []embedding.Match) (string, error) {
	if len(matches) == 0 {
		return "No matches found.\n", nil
	}

	var output strings.Builder
	for i, m := range matches {
		output.WriteString(fmt.Sprintf("[%d] chunk %03d  distance %.4f\n    %s\n", i+1, m.ChunkIndex, m.Distance, truncateString(m.Content, 200)))
	}
	return output.String(), nil
}

// JSONFormatter formats output as JSON
type JSONFormatter struct{}

func (f *JSONFormatter) Run(run *model.Run) (string, error) { return marshal(run) }

func (f *JSONFormatter) Runs(runs []*model.Run) (string, error) {
	if runs == nil {
		runs = []*model.Run{}
	}
	return marshal(runs)
}

func (f *JSONFormatter) Progress(progress *model.Progress) (string, error) { return marshal(progress) }

func (f *JSONFormatter) Submission(sub *pipeline.Submission) (string, error) {
	type Output struct {
		Run        *model.Run        `json:"run"`
		Transcript *model.Transcript `json:"transcript"`
		Preview    string            `json:"transcript_preview"`
	}
	return marshal(Output{Run: sub.Run, Transcript: sub.Transcript, Preview: sub.Preview})
}

func (f *JSONFormatter) Digest(result *digest.Result) (string, error) { return marshal(result) }

func (f *JSONFormatter) Matches(matches []embedding.Match) (string, error) {
	if matches == nil {
		matches = []embedding.Match{}
	}
	return marshal(matches)
}

func marshal(v any) (string, error) {
	jsonBytes, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return string(jsonBytes) + "\n", nil
}

// GetFormatter returns the appropriate formatter based on format string
func GetFormatter(format string) (Formatter, error) {
	switch strings.ToLower(format) {
	case "text", "txt", "":
		return &TextFormatter{}, nil
	case "json":
		return &JSONFormatter{}, nil
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}

func source(run *model.Run) string {
	if run.SourceURL != "" {
		return run.SourceURL
	}
	return run.SourceFile
}

// truncateString truncates a string to the specified number of runes
func truncateString(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}
