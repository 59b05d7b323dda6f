package acquisition

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/Taichi-iskw/yt-digest/internal/errors"
	"github.com/Taichi-iskw/yt-digest/internal/service/common"
)

// ErrNoCaptions signals that the video has no caption track at all.
// It is an expected condition that triggers the audio fallback.
var ErrNoCaptions = stderrors.New("no captions available")

// CaptionTrack is one subtitle track offered by the platform
type CaptionTrack struct {
	Language     string
	Name         string
	Automatic    bool
	URL          string
	Translatable bool // the platform can machine-translate this track
}

// CaptionSource lists and fetches platform captions
type CaptionSource interface {
	ListTracks(ctx context.Context, videoURL string) ([]CaptionTrack, error)
	// Fetch returns the plain text of track, translated by the platform
	// into translateTo when it is non-empty.
	Fetch(ctx context.Context, track CaptionTrack, translateTo string) (string, error)
}

// Captions is the result of a successful caption lookup
type Captions struct {
	Text       string
	Language   string
	Translated bool
}

// SelectTrack picks the caption track to use: a manual track in the preferred
// language, an automatic one in it, then any manual track, then any track.
func SelectTrack(tracks []CaptionTrack, preferred string) (CaptionTrack, bool) {
	if len(tracks) == 0 {
		return CaptionTrack{}, false
	}

	sorted := append([]CaptionTrack(nil), tracks...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Automatic != sorted[j].Automatic {
			return !sorted[i].Automatic
		}
		return sorted[i].Language < sorted[j].Language
	})

	for _, exact := range []bool{true, false} {
		for _, t := range sorted {
			if matchesLanguage(t.Language, preferred, exact) {
				return t, true
			}
		}
	}
	return sorted[0], true
}

func matchesLanguage(lang, preferred string, exact bool) bool {
	lang = strings.ToLower(lang)
	preferred = strings.ToLower(preferred)
	if exact {
		return lang == preferred
	}
	return strings.HasPrefix(lang, preferred+"-")
}

// FetchCaptions resolves the captions of videoURL in the preferred language.
// It returns ErrNoCaptions when the video has none.
func FetchCaptions(ctx context.Context, source CaptionSource, videoURL, preferred string) (*Captions, error) {
	tracks, err := source.ListTracks(ctx, videoURL)
	if err != nil {
		return nil, err
	}

	track, ok := SelectTrack(tracks, preferred)
	if !ok {
		return nil, ErrNoCaptions
	}

	language := track.Language
	translateTo := ""
	if !matchesLanguage(track.Language, preferred, true) && !matchesLanguage(track.Language, preferred, false) && track.Translatable {
		translateTo = preferred
		language = preferred
	}

	text, err := source.Fetch(ctx, track, translateTo)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, ErrNoCaptions
	}

	return &Captions{Text: text, Language: language, Translated: translateTo != ""}, nil
}

// ytdlpCaptionSource lists tracks with yt-dlp and downloads them over HTTP
type ytdlpCaptionSource struct {
	cmdRunner  common.CmdRunner
	binary     string
	httpClient *http.Client
}

// NewCaptionSource creates a CaptionSource backed by yt-dlp
func NewCaptionSource(binary string) CaptionSource {
	return NewCaptionSourceWithDeps(common.NewCmdRunner(), binary, &http.Client{Timeout: 30 * time.Second})
}

// NewCaptionSourceWithDeps creates a CaptionSource with custom dependencies (for testing)
func NewCaptionSourceWithDeps(cmdRunner common.CmdRunner, binary string, httpClient *http.Client) CaptionSource {
	if binary == "" {
		binary = "yt-dlp"
	}
	return &ytdlpCaptionSource{cmdRunner: cmdRunner, binary: binary, httpClient: httpClient}
}

type captionFormat struct {
	Ext  string `json:"ext"`
	URL  string `json:"url"`
	Name string `json:"name"`
}

type videoCaptionInfo struct {
	ID                string                     `json:"id"`
	Subtitles         map[string][]captionFormat `json:"subtitles"`
	AutomaticCaptions map[string][]captionFormat `json:"automatic_captions"`
}

// ListTracks reads the caption listing from yt-dlp's JSON dump
func (s *ytdlpCaptionSource) ListTracks(ctx context.Context, videoURL string) ([]CaptionTrack, error) {
	args := []string{"--dump-single-json", "--skip-download", "--no-warnings", videoURL}

	output, err := s.cmdRunner.Run(ctx, s.binary, args...)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeExternal, formatYtDlpError(err, videoURL))
	}

	var info videoCaptionInfo
	if err := json.Unmarshal(output, &info); err != nil {
		return nil, errors.Wrap(err, errors.CodeExternal, "failed to parse yt-dlp output")
	}

	return parseTracks(info), nil
}

func parseTracks(info videoCaptionInfo) []CaptionTrack {
	var tracks []CaptionTrack
	add := func(listing map[string][]captionFormat, automatic bool) {
		for lang, formats := range listing {
			if lang == "live_chat" {
				continue
			}
			f, ok := pickFormat(formats)
			if !ok {
				continue
			}
			tracks = append(tracks, CaptionTrack{
				Language:     strings.TrimSuffix(lang, "-orig"),
				Name:         f.Name,
				Automatic:    automatic,
				URL:          f.URL,
				Translatable: strings.Contains(f.URL, "/api/timedtext"),
			})
		}
	}
	add(info.Subtitles, false)
	add(info.AutomaticCaptions, true)

	sort.Slice(tracks, func(i, j int) bool {
		if tracks[i].Language != tracks[j].Language {
			return tracks[i].Language < tracks[j].Language
		}
		return !tracks[i].Automatic && tracks[j].Automatic
	})
	return tracks
}

// pickFormat prefers json3, then any timedtext URL that can be asked for json3
func pickFormat(formats []captionFormat) (captionFormat, bool) {
	for _, f := range formats {
		if f.Ext == "json3" && f.URL != "" {
			return f, true
		}
	}
	for _, f := range formats {
		if strings.Contains(f.URL, "/api/timedtext") {
			return f, true
		}
	}
	return captionFormat{}, false
}

// Fetch downloads a track in json3 form, retrying transient failures
func (s *ytdlpCaptionSource) Fetch(ctx context.Context, track CaptionTrack, translateTo string) (string, error) {
	u, err := url.Parse(track.URL)
	if err != nil {
		return "", errors.Wrap(err, errors.CodeExternal, "invalid caption URL")
	}
	q := u.Query()
	q.Set("fmt", "json3")
	if translateTo != "" {
		q.Set("tlang", translateTo)
	}
	u.RawQuery = q.Encode()

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)
	body, err := backoff.RetryWithData(func() ([]byte, error) {
		return s.get(ctx, u.String())
	}, policy)
	if err != nil {
		return "", errors.Wrap(err, errors.CodeExternal, "failed to download captions")
	}

	return parseJSON3(body)
}

func (s *ytdlpCaptionSource) get(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, backoff.Permanent(err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, err
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, fmt.Errorf("caption server returned %d", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, backoff.Permanent(fmt.Errorf("caption server returned %d", resp.StatusCode))
	}
	return body, nil
}

type json3Document struct {
	Events []struct {
		Segs []struct {
			UTF8 string `json:"utf8"`
		} `json:"segs"`
	} `json:"events"`
}

// parseJSON3 joins the caption snippets with single spaces
func parseJSON3(body []byte) (string, error) {
	var doc json3Document
	if err := json.Unmarshal(body, &doc); err != nil {
		return "", errors.Wrap(err, errors.CodeExternal, "failed to parse captions")
	}

	snippets := make([]string, 0, len(doc.Events))
	for _, event := range doc.Events {
		var b strings.Builder
		for _, seg := range event.Segs {
			b.WriteString(seg.UTF8)
		}
		if text := strings.Join(strings.Fields(b.String()), " "); text != "" {
			snippets = append(snippets, text)
		}
	}
	return strings.Join(snippets, " "), nil
}
