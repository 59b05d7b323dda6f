package storage

import (
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
)

const (
	transcriptsDir = "transcripts"
	chunksDir      = "text_chunks"
	tempDir        = "tmp"

	transcriptFile = "transcript.txt"
	englishFile    = "transcript_english.txt"
	cleanedFile    = "transcript_cleaned.txt"
	manifestFile   = "translation_manifest.json"
	embeddingsFile = "embeddings.gob"
	summaryFile    = "summary.txt"
	notesFile      = "detailed_notes.txt"
	notesDocxFile  = "detailed_notes.docx"
	runRecordFile  = "run.json"
)

var chunkFilePattern = regexp.MustCompile(`^chunk_(\d+)\.txt$`)

// Layout resolves every artifact location of a single run.
// All paths live below Root so concurrent runs never share a file.
type Layout struct {
	RunID string
	Root  string
}

func (l Layout) TranscriptsDir() string { return filepath.Join(l.Root, transcriptsDir) }
func (l Layout) TranscriptPath() string { return filepath.Join(l.Root, transcriptsDir, transcriptFile) }
func (l Layout) EnglishPath() string    { return filepath.Join(l.Root, transcriptsDir, englishFile) }
func (l Layout) CleanedPath() string    { return filepath.Join(l.Root, transcriptsDir, cleanedFile) }
func (l Layout) ManifestPath() string   { return filepath.Join(l.Root, transcriptsDir, manifestFile) }
func (l Layout) SummaryPath() string    { return filepath.Join(l.Root, transcriptsDir, summaryFile) }
func (l Layout) NotesPath() string      { return filepath.Join(l.Root, transcriptsDir, notesFile) }
func (l Layout) NotesDocxPath() string  { return filepath.Join(l.Root, transcriptsDir, notesDocxFile) }
func (l Layout) ChunkDir() string       { return filepath.Join(l.Root, chunksDir) }
func (l Layout) EmbeddingsPath() string { return filepath.Join(l.Root, chunksDir, embeddingsFile) }
func (l Layout) RunRecordPath() string  { return filepath.Join(l.Root, runRecordFile) }
func (l Layout) TempDir() string        { return filepath.Join(l.Root, tempDir) }

// ChunkPath returns the file of the 1-based chunk index
func (l Layout) ChunkPath(index int) string {
	return filepath.Join(l.ChunkDir(), ChunkFileName(index))
}

// ChunkFileName is the zero-padded file name of a chunk
func ChunkFileName(index int) string {
	return fmt.Sprintf("chunk_%03d.txt", index)
}

// ChunkIndex parses the index out of a chunk file name
func ChunkIndex(name string) (int, bool) {
	m := chunkFilePattern.FindStringSubmatch(filepath.Base(name))
	if m == nil {
		return 0, false
	}
	i, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return i, true
}

// ChunkFiles lists persisted chunk files ordered by index.
// Sorting numerically keeps order past chunk_999.
func (l Layout) ChunkFiles() ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(l.ChunkDir(), "chunk_*.txt"))
	if err != nil {
		return nil, err
	}

	type indexed struct {
		path  string
		index int
	}
	files := make([]indexed, 0, len(matches))
	for _, m := range matches {
		if i, ok := ChunkIndex(m); ok {
			files = append(files, indexed{path: m, index: i})
		}
	}
	sort.Slice(files, func(a, b int) bool { return files[a].index < files[b].index })

	paths := make([]string, len(files))
	for i, f := range files {
		paths[i] = f.path
	}
	return paths, nil
}
