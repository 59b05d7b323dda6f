package model

// Chunk is one overlap-linked segment of a cleaned transcript.
// Start and End are rune offsets into the cleaned text.
type Chunk struct {
	Index int    `json:"index"` // 1-based
	Text  string `json:"text"`
	Start int    `json:"start"`
	End   int    `json:"end"`
}

// Embedding is the vector of one chunk
type Embedding struct {
	ChunkIndex int       `json:"chunk_index"`
	Text       string    `json:"text,omitempty"`
	Vector     []float32 `json:"vector"`
}

// EmbeddingCollection is the serialized set of chunk vectors of one run
type EmbeddingCollection struct {
	RunID     string      `json:"run_id"`
	Model     string      `json:"model"`
	Dimension int         `json:"dimension"`
	Items     []Embedding `json:"items"`
}
