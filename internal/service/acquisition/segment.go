package acquisition

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/Taichi-iskw/yt-digest/internal/errors"
	"github.com/Taichi-iskw/yt-digest/internal/service/common"
)

const segmentPattern = "segment_%04d.wav"

// Segmenter cuts a media file into fixed-length mono 16 kHz WAV segments
type Segmenter interface {
	Split(ctx context.Context, mediaPath, outputDir string) ([]string, error)
}

type ffmpegSegmenter struct {
	cmdRunner common.CmdRunner
	binary    string
	seconds   int
}

// NewSegmenter creates a Segmenter backed by ffmpeg
func NewSegmenter(binary string, seconds int) Segmenter {
	return NewSegmenterWithCmdRunner(common.NewCmdRunner(), binary, seconds)
}

// NewSegmenterWithCmdRunner creates a Segmenter with custom CmdRunner (for testing)
func NewSegmenterWithCmdRunner(cmdRunner common.CmdRunner, binary string, seconds int) Segmenter {
	if binary == "" {
		binary = "ffmpeg"
	}
	if seconds <= 0 {
		seconds = 60
	}
	return &ffmpegSegmenter{cmdRunner: cmdRunner, binary: binary, seconds: seconds}
}

// Split runs ffmpeg's segment muxer and returns the segments in order
func (s *ffmpegSegmenter) Split(ctx context.Context, mediaPath, outputDir string) ([]string, error) {
	if mediaPath == "" {
		return nil, errors.New(errors.CodeInvalidArg, "media path is required")
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "failed to create segment directory")
	}

	args := []string{
		"-hide_banner", "-loglevel", "error", "-y",
		"-i", mediaPath,
		"-vn", "-ac", "1", "-ar", "16000",
		"-f", "segment",
		"-segment_time", strconv.Itoa(s.seconds),
		"-c:a", "pcm_s16le",
		filepath.Join(outputDir, segmentPattern),
	}

	if _, err := s.cmdRunner.Run(ctx, s.binary, args...); err != nil {
		return nil, errors.Wrap(err, errors.CodeExternal, "ffmpeg failed to split audio")
	}

	segments, err := filepath.Glob(filepath.Join(outputDir, "segment_*.wav"))
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "failed to list audio segments")
	}
	if len(segments) == 0 {
		return nil, errors.New(errors.CodeExternal, "ffmpeg produced no audio segments")
	}
	// zero-padded names sort in playback order
	sort.Strings(segments)
	return segments, nil
}
