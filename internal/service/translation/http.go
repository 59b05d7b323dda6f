package translation

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Taichi-iskw/yt-digest/internal/errors"
)

// httpTranslator calls the public translate_a/single endpoint
type httpTranslator struct {
	client   *http.Client
	endpoint string
}

// NewHTTPTranslator creates a Translator backed by the public translate endpoint
func NewHTTPTranslator(endpoint string, timeout time.Duration) Translator {
	return NewHTTPTranslatorWithClient(endpoint, &http.Client{Timeout: timeout})
}

// NewHTTPTranslatorWithClient creates a Translator with a custom HTTP client (for testing)
func NewHTTPTranslatorWithClient(endpoint string, client *http.Client) Translator {
	return &httpTranslator{client: client, endpoint: endpoint}
}

// Translate sends one window of text and concatenates the translated sentences
func (t *httpTranslator) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", errors.New(errors.CodeInvalidArg, "text cannot be empty")
	}
	if sourceLang == "" || sourceLang == "unknown" {
		sourceLang = "auto"
	}

	form := url.Values{
		"client": {"gtx"},
		"sl":     {sourceLang},
		"tl":     {targetLang},
		"dt":     {"t"},
		"q":      {text},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", errors.Wrap(err, errors.CodeInternal, "failed to build translate request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded;charset=utf-8")

	resp, err := t.client.Do(req)
	if err != nil {
		return "", errors.Wrap(err, errors.CodeExternal, "translate request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return "", errors.Wrap(err, errors.CodeExternal, "failed to read translate response")
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return "", errors.New(errors.CodeExternal, "rate limited by translate endpoint")
	case resp.StatusCode != http.StatusOK:
		return "", errors.New(errors.CodeExternal, fmt.Sprintf("translate endpoint returned %d", resp.StatusCode))
	}

	return parseTranslateResponse(body)
}

// parseTranslateResponse extracts text from [[["translated","source",...],...],...]
func parseTranslateResponse(body []byte) (string, error) {
	var top []json.RawMessage
	if err := json.Unmarshal(body, &top); err != nil || len(top) == 0 {
		return "", errors.New(errors.CodeExternal, "unexpected translate response format")
	}

	var sentences [][]any
	if err := json.Unmarshal(top[0], &sentences); err != nil {
		return "", errors.New(errors.CodeExternal, "unexpected translate response format")
	}

	var b strings.Builder
	for _, s := range sentences {
		if len(s) == 0 {
			continue
		}
		if part, ok := s[0].(string); ok {
			b.WriteString(part)
		}
	}
	if b.Len() == 0 {
		return "", errors.New(errors.CodeExternal, "translate response contained no text")
	}
	return b.String(), nil
}
