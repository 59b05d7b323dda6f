package cleaner

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClean(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "bracket timestamp", input: "[00:10] Hello there", want: "Hello there"},
		{name: "paren timestamp", input: "(00:10) Hello", want: "Hello"},
		{name: "bare timestamp", input: "at 12:30 we start", want: "at we start"},
		{name: "hour timestamp", input: "1:23:45 Chapter two.", want: "Chapter two."},
		{name: "symbols", input: "Vectors -> matrices & tensors; ok?", want: "Vectors matrices tensors ok?"},
		{name: "keeps punctuation", input: "Yes, no. Maybe? Sure!", want: "Yes, no. Maybe? Sure!"},
		{name: "keeps devanagari", input: "नमस्ते [00:01] दुनिया।", want: "नमस्ते दुनिया।"},
		{name: "whitespace", input: "  a\n\n\tb   c  ", want: "a b c"},
		{name: "music marker", input: "[Music] ♪ la la ♪", want: "Music la la"},
		{name: "empty", input: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Clean(tt.input))
		})
	}
}

func TestClean_Idempotent(t *testing.T) {
	inputs := []string{
		"[00:10] Hello — world!! (01:02:03) ¿Qué? 12:34:56:78",
		"एक [1:00] दो तीन",
		"plain text already clean.",
		"((( [[ 9:99 ]] )))",
	}

	for _, input := range inputs {
		once := Clean(input)
		assert.Equal(t, once, Clean(once), "input %q", input)
	}
}

func TestCleanFile(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "transcript_english.txt")
	out := filepath.Join(dir, "transcript_cleaned.txt")

	require.NoError(t, os.WriteFile(in, []byte("[00:01] Welcome to the   course.\n[00:05] Let's begin!"), 0644))
	require.NoError(t, CleanFile(in, out))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "Welcome to the course. Let s begin!", string(data))
}

func TestCleanFile_Empty(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "whitespace only", content: "   \n\t "},
		{name: "only symbols", content: "[00:01] ♪ ♪ ♪"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			in := filepath.Join(dir, "in.txt")
			out := filepath.Join(dir, "out.txt")
			require.NoError(t, os.WriteFile(in, []byte(tt.content), 0644))

			err := CleanFile(in, out)
			assert.ErrorIs(t, err, ErrEmptyTranscript)
			assert.NoFileExists(t, out)
		})
	}
}

func TestCleanFile_MissingInput(t *testing.T) {
	err := CleanFile(filepath.Join(t.TempDir(), "missing.txt"), filepath.Join(t.TempDir(), "out.txt"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrEmptyTranscript)
}
