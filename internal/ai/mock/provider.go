package mock

import (
	"context"
	"sync"

	"github.com/edupulse/edupulse/pkg/models"
)

// MockProvider satisfies models.AIProvider for testing.
type MockProvider struct {
	Name_        string
	CompleteFunc func(ctx context.Context, req models.CompletionRequest) (models.CompletionResponse, error)

	mu    sync.Mutex
	calls int
}

func (m *MockProvider) Name() string { return m.Name_ }

func (m *MockProvider) Complete(ctx context.Context, req models.CompletionRequest) (models.CompletionResponse, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, req)
	}
	return models.CompletionResponse{}, nil
}

// Calls returns how many times Complete was invoked.
func (m *MockProvider) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// NewMockProvider returns a MockProvider with a sensible default response.
func NewMockProvider() *MockProvider {
	return &MockProvider{
		Name_: "mock",
		CompleteFunc: func(_ context.Context, req models.CompletionRequest) (models.CompletionResponse, error) {
			text := "## Summary\nSimulated participation analysis.\n" +
				"## Positives\n- Steady engagement\n" +
				"## Alerts\n- None observed\n" +
				"## Insights\n- Activity levels are typical for the course stage\n" +
				"## Recommended Action\nKeep the current facilitation rhythm."
			return models.CompletionResponse{
				Text:         text,
				Model:        "mock-v1",
				InputTokens:  len(req.Prompt) / 4,
				OutputTokens: len(text) / 4,
			}, nil
		},
	}
}

// NewFailingProvider returns a MockProvider that always returns the given error.
func NewFailingProvider(err error) *MockProvider {
	return &MockProvider{
		Name_: "mock",
		CompleteFunc: func(_ context.Context, _ models.CompletionRequest) (models.CompletionResponse, error) {
			return models.CompletionResponse{}, err
		},
	}
}

var _ models.AIProvider = (*MockProvider)(nil)
