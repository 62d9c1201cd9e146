package genai

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_MissingCredentialReturnsNil(t *testing.T) {
	g, err := New(context.Background(), Config{Provider: "gemini"})
	require.NoError(t, err)
	assert.Nil(t, g)

	g, err = New(context.Background(), Config{Provider: "openai"})
	require.NoError(t, err)
	assert.Nil(t, g)
}

func TestNew_OpenAI(t *testing.T) {
	g, err := New(context.Background(), Config{Provider: "OpenAI", OpenAIAPIKey: "sk-test"})
	require.NoError(t, err)
	require.NotNil(t, g)
	assert.Equal(t, "openai:gpt-4o-mini", g.Name())
}
