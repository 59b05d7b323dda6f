package chunker

import (
	"context"
	"fmt"
	"os"

	"github.com/Taichi-iskw/yt-digest/internal/storage"
)

// ChunkAndSave chunks the run's cleaned transcript and writes one file per
// chunk into the run's chunk directory. It returns the number of chunks written.
func (c *Chunker) ChunkAndSave(ctx context.Context, layout storage.Layout) (int, error) {
	data, err := os.ReadFile(layout.CleanedPath())
	if err != nil {
		return 0, fmt.Errorf("read cleaned transcript: %w", err)
	}
	return c.Save(ctx, layout, string(data))
}

// Save writes the chunks of text into the run's chunk directory,
// replacing chunk files left by an earlier attempt.
func (c *Chunker) Save(ctx context.Context, layout storage.Layout, text string) (int, error) {
	if err := os.MkdirAll(layout.ChunkDir(), 0755); err != nil {
		return 0, fmt.Errorf("create chunk directory: %w", err)
	}
	if err := removeChunkFiles(layout); err != nil {
		return 0, err
	}

	count := 0
	for chunk := range c.Chunks(text) {
		if err := ctx.Err(); err != nil {
			return count, err
		}
		if err := storage.WriteFileAtomic(layout.ChunkPath(chunk.Index), []byte(chunk.Text), 0644); err != nil {
			return count, fmt.Errorf("write chunk %d: %w", chunk.Index, err)
		}
		count++
	}
	return count, nil
}

func removeChunkFiles(layout storage.Layout) error {
	existing, err := layout.ChunkFiles()
	if err != nil {
		return fmt.Errorf("list chunk files: %w", err)
	}
	for _, path := range existing {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove stale chunk: %w", err)
		}
	}
	return nil
}
