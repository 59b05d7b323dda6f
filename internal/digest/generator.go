package digest

import (
	"context"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"google.golang.org/genai"

	"github.com/Taichi-iskw/yt-digest/internal/errors"
)

// Generator produces text from a prompt with a language model
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type geminiGenerator struct {
	client *genai.Client
	model  string
}

// NewGeminiGenerator creates a Generator backed by the Gemini API
func NewGeminiGenerator(ctx context.Context, apiKey, model string) (Generator, error) {
	if apiKey == "" {
		return nil, errors.New(errors.CodeUnavailable, "GEMINI_API_KEY is not set")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeUnavailable, "failed to create Gemini client")
	}
	return &geminiGenerator{client: client, model: model}, nil
}

// Generate retries rate-limit errors with exponential backoff; any other
// error is returned at once
func (g *geminiGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 2 * time.Second
	retry := backoff.WithContext(backoff.WithMaxRetries(policy, 3), ctx)

	text, err := backoff.RetryWithData(func() (string, error) {
		result, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), nil)
		if err != nil {
			if isRateLimited(err) {
				return "", err
			}
			return "", backoff.Permanent(err)
		}
		return responseText(result)
	}, retry)
	if err != nil {
		return "", errors.Wrap(err, errors.CodeExternal, "Gemini request failed")
	}
	return text, nil
}

func isRateLimited(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "429") || strings.Contains(msg, "quota") || strings.Contains(msg, "RESOURCE_EXHAUSTED")
}

func responseText(result *genai.GenerateContentResponse) (string, error) {
	if result == nil || len(result.Candidates) == 0 || result.Candidates[0].Content == nil {
		return "", backoff.Permanent(errors.New(errors.CodeExternal, "empty response from Gemini"))
	}
	var b strings.Builder
	for _, part := range result.Candidates[0].Content.Parts {
		if part != nil && part.Text != "" {
			b.WriteString(part.Text)
		}
	}
	if strings.TrimSpace(b.String()) == "" {
		return "", backoff.Permanent(errors.New(errors.CodeExternal, "empty response from Gemini"))
	}
	return b.String(), nil
}
