package anthropic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/edupulse/edupulse/internal/config"
	"github.com/edupulse/edupulse/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProvider(serverURL string) *Provider {
	p := NewProvider(config.AnthropicConfig{
		APIKey: "ak-test",
		Model:  "claude-sonnet-4-5-20250929",
	}, 5*time.Second)
	p.baseURL = serverURL
	return p
}

func TestComplete_Success(t *testing.T) {
	var gotKey, gotVersion string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("x-api-key")
		gotVersion = r.Header.Get("anthropic-version")
		json.NewEncoder(w).Encode(map[string]any{
			"model": "claude-sonnet-4-5-20250929",
			"content": []map[string]any{
				{"type": "text", "text": "first "},
				{"type": "tool_use", "text": "ignored"},
				{"type": "text", "text": "second"},
			},
			"usage": map[string]any{"input_tokens": 200, "output_tokens": 80},
		})
	}))
	defer server.Close()

	p := newTestProvider(server.URL)
	resp, err := p.Complete(context.Background(), models.CompletionRequest{Prompt: "analyze"})
	require.NoError(t, err)

	// Text blocks concatenate; non-text blocks are skipped.
	assert.Equal(t, "first second", resp.Text)
	assert.Equal(t, 200, resp.InputTokens)
	assert.Equal(t, 80, resp.OutputTokens)
	assert.Equal(t, "ak-test", gotKey)
	assert.Equal(t, apiVersion, gotVersion)
}

func TestComplete_RateLimitedIsProviderUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	p := newTestProvider(server.URL)
	_, err := p.Complete(context.Background(), models.CompletionRequest{Prompt: "x"})
	assert.ErrorIs(t, err, models.ErrProviderUnavailable)
}

func TestComplete_EmptyContentIsInvalidResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"model": "claude", "content": []any{}})
	}))
	defer server.Close()

	p := newTestProvider(server.URL)
	_, err := p.Complete(context.Background(), models.CompletionRequest{Prompt: "x"})
	assert.ErrorIs(t, err, models.ErrInvalidResponse)
}
