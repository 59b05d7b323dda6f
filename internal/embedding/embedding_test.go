package embedding

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPlanBatches(t *testing.T) {
	tests := []struct {
		name      string
		lengths   []int
		maxTokens int
		want      [][2]int
	}{
		{
			name:      "empty",
			lengths:   nil,
			maxTokens: 100,
			want:      nil,
		},
		{
			name:      "everything fits",
			lengths:   []int{10, 20, 30},
			maxTokens: 100,
			want:      [][2]int{{0, 3}},
		},
		{
			name:      "longest sequence drives the budget",
			lengths:   []int{10, 40, 10, 10},
			maxTokens: 100,
			want:      [][2]int{{0, 2}, {2, 4}},
		},
		{
			name:      "oversized item gets its own batch",
			lengths:   []int{10, 500, 10},
			maxTokens: 100,
			want:      [][2]int{{0, 1}, {1, 2}, {2, 3}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, planBatches(tt.lengths, tt.maxTokens))
		})
	}
}

func TestMeanPool(t *testing.T) {
	// batch 2, seqLen 3, dim 2
	hidden := []float32{
		1, 2, 3, 4, 100, 100,
		2, 2, 4, 4, 6, 6,
	}
	mask := []int64{
		1, 1, 0,
		1, 1, 1,
	}

	got := meanPool(hidden, mask, 2, 3, 2)

	assert.Equal(t, [][]float32{{2, 3}, {4, 4}}, got)
}

func TestMeanPool_AllMasked(t *testing.T) {
	got := meanPool([]float32{1, 1}, []int64{0}, 1, 1, 2)

	assert.Equal(t, [][]float32{{0, 0}}, got)
}

func TestNormalize(t *testing.T) {
	v := []float32{3, 4}
	normalize(v)
	assert.InDelta(t, 0.6, v[0], 1e-6)
	assert.InDelta(t, 0.8, v[1], 1e-6)

	var sum float64
	for _, x := range v {
		sum += float64(x * x)
	}
	assert.InDelta(t, 1, math.Sqrt(sum), 1e-6)

	zero := []float32{0, 0}
	normalize(zero)
	assert.Equal(t, []float32{0, 0}, zero)
}

func TestTruncate(t *testing.T) {
	ids, mask := truncate([]int{101, 1, 2, 3, 102}, []int{1, 1, 1, 1, 1}, 3)
	assert.Equal(t, []int{101, 1, 102}, ids)
	assert.Equal(t, []int{1, 1, 1}, mask)

	ids, _ = truncate([]int{101, 102}, []int{1, 1}, 3)
	assert.Equal(t, []int{101, 102}, ids)
}

func TestNewONNXEmbedder_RequiresPaths(t *testing.T) {
	_, err := NewONNXEmbedder(ONNXConfig{}, nil)
	assert.Error(t, err)
}

func TestUnavailable(t *testing.T) {
	e := Unavailable(assert.AnError)
	_, err := e.Embed(context.Background(), []string{"a"})
	assert.ErrorIs(t, err, assert.AnError)
	assert.NoError(t, e.Close())
}
