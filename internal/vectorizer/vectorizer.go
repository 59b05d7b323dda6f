// Package vectorizer embeds the persisted chunks of a run.
package vectorizer

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"
	"os"

	"github.com/Taichi-iskw/yt-digest/internal/embedding"
	"github.com/Taichi-iskw/yt-digest/internal/errors"
	"github.com/Taichi-iskw/yt-digest/internal/logger"
	"github.com/Taichi-iskw/yt-digest/internal/model"
	"github.com/Taichi-iskw/yt-digest/internal/storage"
)

// Mirror receives a copy of every written collection, e.g. a pgvector table
type Mirror interface {
	Replace(ctx context.Context, collection *model.EmbeddingCollection) error
}

// Vectorizer turns chunk files into an embedding collection
type Vectorizer struct {
	embedder embedding.Embedder
	mirror   Mirror
	retain   bool
	log      *logger.Logger
}

// New creates a Vectorizer. mirror may be nil. When retainChunks is false the
// chunk files are removed once the collection is safely written.
func New(embedder embedding.Embedder, mirror Mirror, retainChunks bool, log *logger.Logger) *Vectorizer {
	if log == nil {
		log = logger.Discard()
	}
	return &Vectorizer{
		embedder: embedder,
		mirror:   mirror,
		retain:   retainChunks,
		log:      log.WithComponent("vectorizer"),
	}
}

// Vectorize reads chunk_NNN.txt in index order, embeds them and writes
// embeddings.gob next to them
func (v *Vectorizer) Vectorize(ctx context.Context, layout storage.Layout) (*model.EmbeddingCollection, error) {
	files, err := layout.ChunkFiles()
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "failed to list chunk files")
	}
	if len(files) == 0 {
		return nil, errors.New(errors.CodeNotFound, "no chunks to vectorize")
	}

	texts := make([]string, len(files))
	indices := make([]int, len(files))
	for i, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeInternal, "failed to read chunk")
		}
		texts[i] = string(data)
		indices[i], _ = storage.ChunkIndex(path)
	}

	vectors, err := v.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(texts) {
		return nil, errors.New(errors.CodeInternal,
			fmt.Sprintf("embedder returned %d vectors for %d chunks", len(vectors), len(texts)))
	}

	collection := &model.EmbeddingCollection{
		RunID: layout.RunID,
		Model: v.embedder.Model(),
		Items: make([]model.Embedding, len(texts)),
	}
	for i := range texts {
		collection.Items[i] = model.Embedding{ChunkIndex: indices[i], Text: texts[i], Vector: vectors[i]}
	}
	if len(vectors) > 0 {
		collection.Dimension = len(vectors[0])
	}

	if err := Save(layout.EmbeddingsPath(), collection); err != nil {
		return nil, err
	}

	log := v.log.WithRun(layout.RunID)
	if v.mirror != nil {
		// the file collection is authoritative; a mirror failure only costs search
		if err := v.mirror.Replace(ctx, collection); err != nil {
			log.WithError(err).Warn("failed to mirror embeddings to database")
		}
	}

	if !v.retain {
		for _, path := range files {
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				log.WithError(err).Warn("failed to remove chunk file")
			}
		}
	}

	log.WithField("chunks", len(texts)).WithField("dimension", collection.Dimension).Info("chunks vectorized")
	return collection, nil
}

// Save writes a collection atomically in gob encoding
func Save(path string, collection *model.EmbeddingCollection) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(collection); err != nil {
		return errors.Wrap(err, errors.CodeInternal, "failed to encode embeddings")
	}
	if err := storage.WriteFileAtomic(path, buf.Bytes(), 0644); err != nil {
		return errors.Wrap(err, errors.CodeInternal, "failed to write embeddings")
	}
	return nil
}

// Load reads a collection written by Save
func Load(path string) (*model.EmbeddingCollection, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(err, errors.CodeNotFound, "embeddings not found")
		}
		return nil, errors.Wrap(err, errors.CodeInternal, "failed to open embeddings")
	}
	defer f.Close()

	var collection model.EmbeddingCollection
	if err := gob.NewDecoder(f).Decode(&collection); err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "failed to decode embeddings")
	}
	return &collection, nil
}
