package model

// Origin tells where the raw transcript text came from
type Origin string

const (
	OriginCaptions Origin = "captions"
	OriginASR      Origin = "asr"
)

// LanguageUnknown is used when the source language could not be determined
const LanguageUnknown = "unknown"

// Transcript is the raw, immutable transcript of one run
type Transcript struct {
	Path     string `json:"path"`
	Language string `json:"language"`
	Origin   Origin `json:"origin"`
}

// IsEnglish reports whether the transcript is already in English
func (t *Transcript) IsEnglish() bool {
	return t.Language == "en" || len(t.Language) > 3 && t.Language[:3] == "en-"
}

// WindowFailure records a translation window that failed after all retries
type WindowFailure struct {
	Index int    `json:"index"`
	Error string `json:"error"`
}

// TranslationManifest describes how a transcript was translated
type TranslationManifest struct {
	Target        string          `json:"target"`
	WindowChars   int             `json:"window_chars"`
	TotalWindows  int             `json:"total_windows"`
	FailedWindows []WindowFailure `json:"failed_windows"`
	// FellBack is set when nothing could be translated and the source text was kept
	FellBack bool `json:"fell_back"`
}

// FailedIndices returns the indices of failed windows in order
func (m *TranslationManifest) FailedIndices() []int {
	if m == nil || len(m.FailedWindows) == 0 {
		return nil
	}
	indices := make([]int, len(m.FailedWindows))
	for i, f := range m.FailedWindows {
		indices[i] = f.Index
	}
	return indices
}
