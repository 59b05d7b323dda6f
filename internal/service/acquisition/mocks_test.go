package acquisition

import (
	"context"
	"fmt"
	"sync"

	"github.com/stretchr/testify/mock"
)

// mockCmdRunner is a mock implementation of CmdRunner
type mockCmdRunner struct {
	mock.Mock
}

func (m *mockCmdRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	arguments := m.Called(ctx, name, args)
	return arguments.Get(0).([]byte), arguments.Error(1)
}

// fakeCaptionSource serves fixed tracks and texts keyed by language
type fakeCaptionSource struct {
	tracks  []CaptionTrack
	texts   map[string]string
	listErr error

	fetchedTrack CaptionTrack
	translateTo  string
}

func (f *fakeCaptionSource) ListTracks(ctx context.Context, videoURL string) ([]CaptionTrack, error) {
	return f.tracks, f.listErr
}

func (f *fakeCaptionSource) Fetch(ctx context.Context, track CaptionTrack, translateTo string) (string, error) {
	f.fetchedTrack = track
	f.translateTo = translateTo
	key := track.Language
	if translateTo != "" {
		key = track.Language + ">" + translateTo
	}
	text, ok := f.texts[key]
	if !ok {
		return "", fmt.Errorf("no text for %s", key)
	}
	return text, nil
}

type fakeAudioDownloader struct {
	path string
	err  error
	dir  string
}

func (f *fakeAudioDownloader) DownloadAudio(ctx context.Context, videoURL, outputDir string) (string, error) {
	f.dir = outputDir
	return f.path, f.err
}

type fakeSegmenter struct {
	segments []string
	err      error
	input    string
}

func (f *fakeSegmenter) Split(ctx context.Context, mediaPath, outputDir string) ([]string, error) {
	f.input = mediaPath
	return f.segments, f.err
}

// fakeRecognizer maps segment paths to results
type fakeRecognizer struct {
	mu      sync.Mutex
	results map[string]*Recognition
	err     error
	calls   int
}

func (f *fakeRecognizer) Recognize(ctx context.Context, audioPath string) (*Recognition, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.results[audioPath], nil
}
