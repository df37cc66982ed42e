package openai_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/edupulse/edupulse/internal/ai/openai"
	"github.com/edupulse/edupulse/internal/config"
	"github.com/edupulse/edupulse/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProvider(serverURL string) *openai.Provider {
	return openai.NewProvider(config.OpenAIConfig{
		APIKey:  "sk-test",
		BaseURL: serverURL,
		Model:   "gpt-4o",
	}, 5*time.Second)
}

func TestComplete_Success(t *testing.T) {
	var gotAuth string
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		json.NewEncoder(w).Encode(map[string]any{
			"model": "gpt-4o-2024",
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": "summary text"}},
			},
			"usage": map[string]any{"prompt_tokens": 120, "completion_tokens": 45},
		})
	}))
	defer server.Close()

	p := newTestProvider(server.URL)
	resp, err := p.Complete(context.Background(), models.CompletionRequest{
		System:    "you summarize forums",
		Prompt:    "analyze this",
		MaxTokens: 512,
	})
	require.NoError(t, err)

	assert.Equal(t, "summary text", resp.Text)
	assert.Equal(t, "gpt-4o-2024", resp.Model)
	assert.Equal(t, 120, resp.InputTokens)
	assert.Equal(t, 45, resp.OutputTokens)

	assert.Equal(t, "Bearer sk-test", gotAuth)
	assert.Equal(t, "gpt-4o", gotBody["model"])
}

func TestComplete_ServerErrorIsProviderUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	p := newTestProvider(server.URL)
	_, err := p.Complete(context.Background(), models.CompletionRequest{Prompt: "x"})
	assert.ErrorIs(t, err, models.ErrProviderUnavailable)
}

func TestComplete_MalformedBodyIsInvalidResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer server.Close()

	p := newTestProvider(server.URL)
	_, err := p.Complete(context.Background(), models.CompletionRequest{Prompt: "x"})
	assert.ErrorIs(t, err, models.ErrInvalidResponse)
}

func TestComplete_NoChoicesIsInvalidResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"model": "gpt-4o", "choices": []any{}})
	}))
	defer server.Close()

	p := newTestProvider(server.URL)
	_, err := p.Complete(context.Background(), models.CompletionRequest{Prompt: "x"})
	assert.ErrorIs(t, err, models.ErrInvalidResponse)
}

func TestComplete_UnreachableHostIsProviderUnavailable(t *testing.T) {
	p := newTestProvider("http://127.0.0.1:1")
	_, err := p.Complete(context.Background(), models.CompletionRequest{Prompt: "x"})
	assert.ErrorIs(t, err, models.ErrProviderUnavailable)
}
