// Package genai provides the generative-text clients shared by the crop
// recommender and the treatment advisor.
package genai

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

// ErrEmptyResponse is returned when the model answered without any text.
var ErrEmptyResponse = errors.New("no content returned from AI")

// Generator sends one prompt and returns the model's free-text answer.
type Generator interface {
	Name() string
	Generate(ctx context.Context, prompt string) (string, error)
}

// Config selects and configures a backend.
type Config struct {
	Provider     string // "gemini" or "openai"
	GeminiAPIKey string
	GeminiModel  string
	OpenAIAPIKey string
	OpenAIModel  string
	OpenAIURL    string
	HTTPClient   *http.Client
}

// New builds the configured backend. It returns (nil, nil) when the selected
// provider has no credential: callers treat a nil Generator as "not
// configured" and use their offline path.
func New(ctx context.Context, cfg Config) (Generator, error) {
	switch strings.ToLower(cfg.Provider) {
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			return nil, nil
		}
		return NewOpenAI(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.OpenAIURL, cfg.HTTPClient), nil
	default:
		if cfg.GeminiAPIKey == "" {
			return nil, nil
		}
		g, err := NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, err
		}
		return g, nil
	}
}
