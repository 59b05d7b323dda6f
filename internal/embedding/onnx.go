package embedding

import (
	"context"
	"fmt"
	"sync"

	"github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/pretrained"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/Taichi-iskw/yt-digest/internal/errors"
	"github.com/Taichi-iskw/yt-digest/internal/logger"
)

// maxSequenceLength is the position limit of BERT-style encoders
const maxSequenceLength = 512

// ONNXConfig locates the model files of an ONNX sentence encoder
type ONNXConfig struct {
	ModelName      string
	ModelPath      string
	TokenizerPath  string
	LibraryPath    string
	MaxBatchTokens int
}

// onnxEmbedder runs a MiniLM-style encoder with mean pooling
type onnxEmbedder struct {
	tokenizer *tokenizer.Tokenizer
	session   *ort.DynamicAdvancedSession
	config    ONNXConfig
	log       *logger.Logger

	// the runtime session is not safe for concurrent Run calls
	mu sync.Mutex
}

// NewONNXEmbedder loads the tokenizer and the ONNX model
func NewONNXEmbedder(config ONNXConfig, log *logger.Logger) (Embedder, error) {
	if config.ModelPath == "" || config.TokenizerPath == "" {
		return nil, errors.New(errors.CodeUnavailable, "embedding model_path and tokenizer_path must be configured")
	}
	if config.MaxBatchTokens <= 0 {
		config.MaxBatchTokens = 6000
	}
	if log == nil {
		log = logger.Discard()
	}

	tok, err := pretrained.FromFile(config.TokenizerPath)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeUnavailable, "failed to load tokenizer")
	}

	if config.LibraryPath != "" {
		ort.SetSharedLibraryPath(config.LibraryPath)
	}
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, errors.Wrap(err, errors.CodeUnavailable, "failed to initialize ONNX environment")
		}
	}

	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeUnavailable, "failed to create session options")
	}
	defer opts.Destroy()

	if err := opts.SetGraphOptimizationLevel(ort.GraphOptimizationLevelEnableAll); err != nil {
		return nil, errors.Wrap(err, errors.CodeUnavailable, "failed to set graph optimization")
	}
	if err := opts.SetIntraOpNumThreads(0); err != nil {
		log.WithError(err).Warn("failed to set ONNX thread count")
	}

	session, err := ort.NewDynamicAdvancedSession(
		config.ModelPath,
		[]string{"input_ids", "attention_mask", "token_type_ids"},
		[]string{"last_hidden_state"},
		opts,
	)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeUnavailable, "failed to create ONNX session")
	}

	return &onnxEmbedder{
		tokenizer: tok,
		session:   session,
		config:    config,
		log:       log.WithComponent("embedding"),
	}, nil
}

func (e *onnxEmbedder) Model() string {
	return e.config.ModelName
}

// Embed tokenizes all texts once and runs them through the model in
// token-budgeted batches
func (e *onnxEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	inputs := make([]tokenizer.EncodeInput, len(texts))
	for i, t := range texts {
		inputs[i] = tokenizer.NewSingleEncodeInput(tokenizer.NewInputSequence(t))
	}
	encodings, err := e.tokenizer.EncodeBatch(inputs, true)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "tokenization failed")
	}

	lengths := make([]int, len(encodings))
	for i, enc := range encodings {
		lengths[i] = min(len(enc.GetIds()), maxSequenceLength)
	}

	vectors := make([][]float32, 0, len(texts))
	for _, b := range planBatches(lengths, e.config.MaxBatchTokens) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		batch, err := e.embedBatch(encodings[b[0]:b[1]])
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeInternal, fmt.Sprintf("embedding batch %d-%d failed", b[0], b[1]))
		}
		vectors = append(vectors, batch...)
	}
	return vectors, nil
}

func (e *onnxEmbedder) embedBatch(encodings []tokenizer.Encoding) ([][]float32, error) {
	ids := make([][]int, len(encodings))
	masks := make([][]int, len(encodings))
	maxLen := 0
	for i, enc := range encodings {
		ids[i], masks[i] = truncate(enc.GetIds(), enc.GetAttentionMask(), maxSequenceLength)
		maxLen = max(maxLen, len(ids[i]))
	}

	batchSize := len(encodings)
	inputIDs := make([]int64, batchSize*maxLen)
	attentionMask := make([]int64, batchSize*maxLen)
	tokenTypeIDs := make([]int64, batchSize*maxLen)
	for i := range encodings {
		offset := i * maxLen
		for j := range ids[i] {
			inputIDs[offset+j] = int64(ids[i][j])
			attentionMask[offset+j] = int64(masks[i][j])
		}
	}

	shape := ort.NewShape(int64(batchSize), int64(maxLen))
	idsTensor, err := ort.NewTensor(shape, inputIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to create input_ids tensor: %w", err)
	}
	defer idsTensor.Destroy()

	maskTensor, err := ort.NewTensor(shape, attentionMask)
	if err != nil {
		return nil, fmt.Errorf("failed to create attention_mask tensor: %w", err)
	}
	defer maskTensor.Destroy()

	typeTensor, err := ort.NewTensor(shape, tokenTypeIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to create token_type_ids tensor: %w", err)
	}
	defer typeTensor.Destroy()

	outputs := make([]ort.Value, 1)
	e.mu.Lock()
	err = e.session.Run([]ort.Value{idsTensor, maskTensor, typeTensor}, outputs)
	e.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}
	defer outputs[0].Destroy()

	hidden, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("output tensor is not float32 type")
	}
	outShape := hidden.GetShape()
	if len(outShape) != 3 {
		return nil, fmt.Errorf("unexpected output shape %v", outShape)
	}

	// meanPool copies out of the tensor memory before it is destroyed
	vectors := meanPool(hidden.GetData(), attentionMask, int(outShape[0]), int(outShape[1]), int(outShape[2]))
	for _, v := range vectors {
		normalize(v)
	}
	return vectors, nil
}

// truncate clips a sequence to limit tokens, keeping its final separator token
func truncate(ids, mask []int, limit int) ([]int, []int) {
	if len(ids) <= limit {
		return ids, mask
	}
	clippedIDs := append(append([]int(nil), ids[:limit-1]...), ids[len(ids)-1])
	clippedMask := append(append([]int(nil), mask[:limit-1]...), mask[len(mask)-1])
	return clippedIDs, clippedMask
}

// Close releases the session and the runtime environment
func (e *onnxEmbedder) Close() error {
	if e.session != nil {
		if err := e.session.Destroy(); err != nil {
			return err
		}
	}
	return ort.DestroyEnvironment()
}
