package genai

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"
)

const systemPrompt = "You are an expert agronomist advising smallholder farmers. Answer concisely and follow the requested output format exactly."

// OpenAI generates text with an OpenAI chat model.
type OpenAI struct {
	client *openai.Client
	model  string
}

// NewOpenAI creates a chat client. baseURL and hc are optional.
func NewOpenAI(apiKey, model, baseURL string, hc *http.Client) *OpenAI {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if hc != nil {
		cfg.HTTPClient = hc
	}
	if model == "" {
		model = openai.GPT4oMini
	}

	return &OpenAI{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

func (o *OpenAI) Name() string {
	return "openai:" + o.model
}

func (o *OpenAI) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := o.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model: o.model,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleSystem,
					Content: systemPrompt,
				},
				{
					Role:    openai.ChatMessageRoleUser,
					Content: prompt,
				},
			},
			MaxTokens:   800,
			Temperature: 0.4,
		},
	)
	if err != nil {
		return "", fmt.Errorf("openai chat completion error: %w", err)
	}

	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", ErrEmptyResponse
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
