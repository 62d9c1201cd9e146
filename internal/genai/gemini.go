package genai

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// Gemini generates text with a Google Gemini model.
type Gemini struct {
	client    *genai.Client
	model     *genai.GenerativeModel
	modelName string
}

func NewGemini(ctx context.Context, apiKey, modelName string) (*Gemini, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("genai client init failed: %w", err)
	}

	model := client.GenerativeModel(modelName)
	model.SetTemperature(0.4)

	return &Gemini{
		client:    client,
		model:     model,
		modelName: modelName,
	}, nil
}

func (g *Gemini) Name() string {
	return "gemini:" + g.modelName
}

func (g *Gemini) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", ErrEmptyResponse
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}

	out := strings.TrimSpace(sb.String())
	if out == "" {
		return "", ErrEmptyResponse
	}
	return out, nil
}

// Close releases the underlying client.
func (g *Gemini) Close() error {
	return g.client.Close()
}
