package cleaner

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/Taichi-iskw/yt-digest/internal/storage"
)

// ErrEmptyTranscript means there is no text left to process
var ErrEmptyTranscript = errors.New("transcript is empty")

var (
	// [00:10], (00:10), 00:10, 1:23:45
	timestamp = regexp.MustCompile(`\[?\(?\d{1,2}:\d{2}(?::\d{2})?\)?\]?`)
	// Latin letters, digits, Devanagari, whitespace and . , ? !
	disallowed = regexp.MustCompile(`[^a-zA-Z0-9\x{0900}-\x{097F}\s.,?!]`)
	whitespace = regexp.MustCompile(`\s+`)
)

// Clean strips timestamps and symbols and collapses whitespace.
// Clean(Clean(s)) == Clean(s).
func Clean(text string) string {
	text = timestamp.ReplaceAllString(text, " ")
	text = disallowed.ReplaceAllString(text, " ")
	return strings.TrimSpace(whitespace.ReplaceAllString(text, " "))
}

// CleanFile cleans the transcript at in and writes the result to out.
// It returns ErrEmptyTranscript when the input or the cleaned text is blank.
func CleanFile(in, out string) error {
	data, err := os.ReadFile(in)
	if err != nil {
		return fmt.Errorf("read transcript: %w", err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return ErrEmptyTranscript
	}

	cleaned := Clean(string(data))
	if cleaned == "" {
		return ErrEmptyTranscript
	}

	if err := storage.WriteFileAtomic(out, []byte(cleaned), 0644); err != nil {
		return fmt.Errorf("write cleaned transcript: %w", err)
	}
	return nil
}
