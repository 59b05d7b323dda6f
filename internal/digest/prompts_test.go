package digest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSummaryLength(t *testing.T) {
	tests := []struct {
		words    int
		min, max int
	}{
		{words: 0, min: 60, max: 120},
		{words: 1000, min: 60, max: 120},
		{words: 1001, min: 80, max: 150},
		{words: 2000, min: 80, max: 150},
		{words: 2001, min: 100, max: 200},
	}

	for _, tt := range tests {
		minWords, maxWords := summaryLength(tt.words)
		assert.Equal(t, tt.min, minWords, "words=%d", tt.words)
		assert.Equal(t, tt.max, maxWords, "words=%d", tt.words)
	}
}

func TestExcerpt(t *testing.T) {
	assert.Equal(t, "one two three", excerpt("one  two\nthree", 5))
	assert.Equal(t, "one two...", excerpt("one two three", 2))
	assert.Equal(t, "", excerpt("   ", 3))
}

func TestKeyPoints(t *testing.T) {
	text := "Tiny. " +
		"This is a plain sentence that has some words in it. " +
		"The main idea is that caches trade memory for speed. " +
		"Can a cache ever make a program slower than before? " +
		"Another plain sentence follows here for padding"

	points := keyPoints(text, 2)

	// ranked by score but returned in transcript order
	assert.Equal(t, []string{
		"The main idea is that caches trade memory for speed",
		"Can a cache ever make a program slower than before",
	}, points)
}

func TestKeyPoints_SkipsShortSentences(t *testing.T) {
	assert.Empty(t, keyPoints("Yes. No! Maybe?", 5))
	assert.Len(t, keyPoints(strings.Repeat("A sentence long enough to count. ", 12), 8), 8)
}
