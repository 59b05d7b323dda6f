// Package chunker splits cleaned transcripts into overlapping,
// sentence-snapped chunks and persists them for vectorization.
package chunker

import (
	"errors"
	"iter"
	"regexp"
	"strings"

	"github.com/Taichi-iskw/yt-digest/internal/model"
)

// ErrInvalidWindow is returned for a window that could not make progress
var ErrInvalidWindow = errors.New("chunker: need max_chars > 0 and 0 <= overlap < max_chars")

// snapThreshold is the fraction of the window a period must lie beyond to be used as the chunk end
const snapThreshold = 0.6

var whitespaceRun = regexp.MustCompile(`\s+`)

// Normalize collapses whitespace runs to one space and trims the ends
func Normalize(text string) string {
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(text, " "))
}

// Chunker holds a validated window configuration
type Chunker struct {
	maxChars int
	overlap  int
}

// New validates the window and returns a Chunker
func New(maxChars, overlap int) (*Chunker, error) {
	if maxChars <= 0 || overlap < 0 || overlap >= maxChars {
		return nil, ErrInvalidWindow
	}
	return &Chunker{maxChars: maxChars, overlap: overlap}, nil
}

// MaxChars returns the window width
func (c *Chunker) MaxChars() int { return c.maxChars }

// Overlap returns the number of characters repeated between neighbours
func (c *Chunker) Overlap() int { return c.overlap }

// Chunks returns a lazy sequence of chunks over the normalized text.
// Lengths and offsets count runes. The sequence can be ranged over any number of times.
func (c *Chunker) Chunks(text string) iter.Seq[model.Chunk] {
	runes := []rune(Normalize(text))

	return func(yield func(model.Chunk) bool) {
		n := len(runes)
		start, index := 0, 1

		for start < n {
			end := min(start+c.maxChars, n)
			if end < n {
				end = c.snap(runes, start, end)
			}

			if !yield(model.Chunk{Index: index, Text: string(runes[start:end]), Start: start, End: end}) {
				return
			}
			if end >= n {
				return
			}

			start = end - c.overlap
			index++
		}
	}
}

// snap moves end back to just after the last period in the window when that
// period is far enough in and the next window would still advance.
func (c *Chunker) snap(runes []rune, start, end int) int {
	for p := end - 1; p >= start; p-- {
		if runes[p] != '.' {
			continue
		}
		if float64(p-start) <= snapThreshold*float64(c.maxChars) {
			return end
		}
		if cut := p + 1; cut-c.overlap > start {
			return cut
		}
		return end
	}
	return end
}

// Split collects every chunk of text
func (c *Chunker) Split(text string) []model.Chunk {
	var chunks []model.Chunk
	for chunk := range c.Chunks(text) {
		chunks = append(chunks, chunk)
	}
	return chunks
}

// Split is a one-shot helper for callers without a Chunker
func Split(text string, maxChars, overlap int) ([]model.Chunk, error) {
	c, err := New(maxChars, overlap)
	if err != nil {
		return nil, err
	}
	return c.Split(text), nil
}
