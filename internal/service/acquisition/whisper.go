package acquisition

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/Taichi-iskw/yt-digest/internal/errors"
	"github.com/Taichi-iskw/yt-digest/internal/model"
	"github.com/Taichi-iskw/yt-digest/internal/service/common"
)

// Recognition is the speech recognition result of one audio segment
type Recognition struct {
	Text     string `json:"text"`
	Language string `json:"language"`
}

// Recognizer defines speech-to-text over a single audio file
type Recognizer interface {
	Recognize(ctx context.Context, audioPath string) (*Recognition, error)
}

// whisperRecognizer implements Recognizer using the Whisper CLI
type whisperRecognizer struct {
	cmdRunner common.CmdRunner
	binary    string
	model     string
}

// NewWhisperRecognizer creates a new Recognizer with default CmdRunner
func NewWhisperRecognizer(binary, model string) Recognizer {
	return NewWhisperRecognizerWithCmdRunner(common.NewCmdRunner(), binary, model)
}

// NewWhisperRecognizerWithCmdRunner creates a new Recognizer with custom CmdRunner (for testing)
func NewWhisperRecognizerWithCmdRunner(cmdRunner common.CmdRunner, binary, model string) Recognizer {
	if binary == "" {
		binary = "whisper"
	}
	if model == "" {
		model = "tiny"
	}
	return &whisperRecognizer{
		cmdRunner: cmdRunner,
		binary:    binary,
		model:     model,
	}
}

// Recognize transcribes audioPath and detects its language.
// Whisper writes <base>.json next to the requested output directory.
func (s *whisperRecognizer) Recognize(ctx context.Context, audioPath string) (*Recognition, error) {
	if audioPath == "" {
		return nil, errors.New(errors.CodeInvalidArg, "audio path is required")
	}

	outputDir := filepath.Dir(audioPath)
	args := []string{
		audioPath,
		"--model", s.model,
		"--task", "transcribe",
		"--output_format", "json",
		"--output_dir", outputDir,
		"--temperature", "0",
		"--fp16", "False",
		"--verbose", "False",
	}

	if _, err := s.cmdRunner.Run(ctx, s.binary, args...); err != nil {
		return nil, errors.Wrap(err, errors.CodeExternal, "whisper execution failed")
	}

	baseName := strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))
	jsonData, err := os.ReadFile(filepath.Join(outputDir, baseName+".json"))
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeExternal, "failed to read whisper output")
	}

	var result Recognition
	if err := json.Unmarshal(jsonData, &result); err != nil {
		return nil, errors.Wrap(err, errors.CodeExternal, "failed to parse whisper output")
	}
	result.Text = strings.TrimSpace(result.Text)
	if result.Language == "" {
		result.Language = model.LanguageUnknown
	}

	return &result, nil
}
