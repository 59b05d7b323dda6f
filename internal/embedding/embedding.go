// Package embedding turns chunk texts into sentence vectors.
package embedding

import (
	"context"
	"math"
)

// Embedder computes one vector per input text, in input order
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	// Model names the embedding model so stored vectors can be traced back
	Model() string
	Close() error
}

// planBatches groups consecutive items so that batch size times the longest
// sequence in the batch stays within maxTokens. A single item longer than the
// budget gets a batch of its own.
func planBatches(lengths []int, maxTokens int) [][2]int {
	var batches [][2]int
	i := 0
	for i < len(lengths) {
		start := i
		maxLen := 0
		for i < len(lengths) {
			newMax := max(maxLen, lengths[i])
			if i > start && (i-start+1)*newMax > maxTokens {
				break
			}
			maxLen = newMax
			i++
		}
		batches = append(batches, [2]int{start, i})
	}
	return batches
}

// meanPool averages the hidden states of each sequence over the positions
// where mask is set. hidden is laid out [batch, seqLen, dim].
func meanPool(hidden []float32, mask []int64, batch, seqLen, dim int) [][]float32 {
	out := make([][]float32, batch)
	for b := 0; b < batch; b++ {
		vec := make([]float32, dim)
		count := 0
		for s := 0; s < seqLen; s++ {
			if mask[b*seqLen+s] == 0 {
				continue
			}
			count++
			offset := (b*seqLen + s) * dim
			for d := 0; d < dim; d++ {
				vec[d] += hidden[offset+d]
			}
		}
		if count > 0 {
			for d := range vec {
				vec[d] /= float32(count)
			}
		}
		out[b] = vec
	}
	return out
}

// normalize scales v to unit length in place; a zero vector is left as is
func normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	norm := float32(math.Sqrt(sum))
	for i := range v {
		v[i] /= norm
	}
}

// unavailable stands in when no model is configured; every Embed fails with err
type unavailable struct {
	err error
}

// Unavailable returns an Embedder that reports err on every call, so runs
// still produce chunks and fail only at vectorization
func Unavailable(err error) Embedder {
	return unavailable{err: err}
}

func (u unavailable) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, u.err
}

func (u unavailable) Model() string { return "" }

func (u unavailable) Close() error { return nil }
