package acquisition

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Taichi-iskw/yt-digest/internal/errors"
	"github.com/Taichi-iskw/yt-digest/internal/service/common"
)

// AudioDownloader defines operations for downloading audio from videos
type AudioDownloader interface {
	// DownloadAudio downloads the audio track of a video URL into outputDir
	DownloadAudio(ctx context.Context, videoURL string, outputDir string) (string, error)
}

// audioDownloader implements AudioDownloader using yt-dlp
type audioDownloader struct {
	cmdRunner common.CmdRunner
	binary    string
}

// NewAudioDownloader creates a new AudioDownloader with default CmdRunner
func NewAudioDownloader(binary string) AudioDownloader {
	return NewAudioDownloaderWithCmdRunner(common.NewCmdRunner(), binary)
}

// NewAudioDownloaderWithCmdRunner creates a new AudioDownloader with custom CmdRunner (for testing)
func NewAudioDownloaderWithCmdRunner(cmdRunner common.CmdRunner, binary string) AudioDownloader {
	if binary == "" {
		binary = "yt-dlp"
	}
	return &audioDownloader{
		cmdRunner: cmdRunner,
		binary:    binary,
	}
}

// DownloadAudio downloads audio from a video URL using yt-dlp
func (s *audioDownloader) DownloadAudio(ctx context.Context, videoURL string, outputDir string) (string, error) {
	if videoURL == "" {
		return "", errors.New(errors.CodeInvalidArg, "video URL is required")
	}
	if outputDir == "" {
		return "", errors.New(errors.CodeInvalidArg, "output directory is required")
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", errors.Wrap(err, errors.CodeInternal, "failed to create output directory")
	}

	args := []string{
		"-f", "bestaudio/best",
		"--no-playlist",
		"--no-warnings",
		"--output", filepath.Join(outputDir, "audio.%(ext)s"),
		videoURL,
	}

	if _, err := s.cmdRunner.Run(ctx, s.binary, args...); err != nil {
		return "", errors.Wrap(err, errors.CodeExternal, formatYtDlpError(err, videoURL))
	}

	// yt-dlp picks the extension, so scan the output directory
	audioPath, err := findDownloadedAudio(outputDir)
	if err != nil {
		return "", errors.Wrap(err, errors.CodeExternal, "failed to find downloaded audio file")
	}

	return audioPath, nil
}

// formatYtDlpError turns common yt-dlp failures into a readable message
func formatYtDlpError(err error, videoURL string) string {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "executable file not found"):
		return "yt-dlp is not installed or not in PATH"
	case strings.Contains(msg, "Video unavailable"), strings.Contains(msg, "Private video"):
		return fmt.Sprintf("video is unavailable: %s", videoURL)
	case strings.Contains(msg, "Sign in to confirm"):
		return "video requires sign-in"
	case strings.Contains(msg, "HTTP Error 429"):
		return "rate limited by video platform"
	case strings.Contains(msg, "Unsupported URL"):
		return fmt.Sprintf("unsupported URL: %s", videoURL)
	default:
		return "yt-dlp failed"
	}
}

var audioExtensions = map[string]bool{
	".m4a": true, ".mp3": true, ".webm": true, ".ogg": true,
	".opus": true, ".wav": true, ".aac": true, ".flac": true, ".mp4": true,
}

// findDownloadedAudio returns the first audio file in outputDir by name
func findDownloadedAudio(outputDir string) (string, error) {
	entries, err := os.ReadDir(outputDir)
	if err != nil {
		return "", fmt.Errorf("failed to read output directory: %w", err)
	}

	var audioFiles []string
	for _, entry := range entries {
		if entry.IsDir() || strings.HasSuffix(entry.Name(), ".part") {
			continue
		}
		if audioExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			audioFiles = append(audioFiles, filepath.Join(outputDir, entry.Name()))
		}
	}

	if len(audioFiles) == 0 {
		return "", fmt.Errorf("no audio files found in output directory")
	}

	sort.Strings(audioFiles)
	return audioFiles[0], nil
}
