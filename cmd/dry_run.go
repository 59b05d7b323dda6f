package cmd

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/Taichi-iskw/yt-digest/internal/chunker"
	"github.com/Taichi-iskw/yt-digest/internal/model"
)

// ChunkPlan describes the chunks a transcript would produce without writing them
type ChunkPlan struct {
	RunID        string
	MaxChars     int
	Overlap      int
	CleanedChars int
	Chunks       []model.Chunk
}

// PlanChunks simulates chunking of text
func PlanChunks(c *chunker.Chunker, runID, text string) *ChunkPlan {
	plan := &ChunkPlan{
		RunID:        runID,
		MaxChars:     c.MaxChars(),
		Overlap:      c.Overlap(),
		CleanedChars: utf8.RuneCountInString(chunker.Normalize(text)),
	}
	for chunk := range c.Chunks(text) {
		plan.Chunks = append(plan.Chunks, chunk)
	}
	return plan
}

// FormatChunkPlan formats the plan for display
func FormatChunkPlan(plan *ChunkPlan) string {
	var output strings.Builder

	output.WriteString(fmt.Sprintf(`DRY RUN ANALYSIS
================
Run ID: %s
Window: %d chars, %d overlap

Statistics:
- Cleaned Characters: %d
- Chunks to Write: %d

Chunk Details:
`, plan.RunID, plan.MaxChars, plan.Overlap, plan.CleanedChars, len(plan.Chunks)))

	for _, chunk := range plan.Chunks {
		output.WriteString(fmt.Sprintf("  Chunk %03d: chars %d-%d (%d)\n",
			chunk.Index, chunk.Start, chunk.End, chunk.End-chunk.Start))
	}

	output.WriteString("\nThis is a dry run - no chunk files will be written.\n")
	return output.String()
}
