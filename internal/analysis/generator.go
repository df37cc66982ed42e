package analysis

import (
	"context"
	"fmt"
	"time"

	"github.com/edupulse/edupulse/pkg/models"
)

// Generation is the outcome of one summarization call, parsed and ready for
// the cache.
type Generation struct {
	Analysis     StructuredAnalysis
	Raw          string
	Provider     string
	Model        string
	InputTokens  int
	OutputTokens int
}

// Generator invokes the external summarization service once per stale
// activity. Failures are not retried here: the caller records them and
// moves on to the next activity.
type Generator struct {
	provider  models.AIProvider
	maxTokens int
	timeout   time.Duration
}

// NewGenerator creates a Generator around an AI provider.
func NewGenerator(provider models.AIProvider, maxTokens int, timeout time.Duration) *Generator {
	return &Generator{provider: provider, maxTokens: maxTokens, timeout: timeout}
}

// Generate builds the context payload for one activity and normalizes the
// provider response. An empty or unparseable response is an error, never a
// valid empty analysis.
func (g *Generator) Generate(ctx context.Context, input ActivityInput) (*Generation, error) {
	system, user := BuildPrompt(input)

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	resp, err := g.provider.Complete(callCtx, models.CompletionRequest{
		System:    system,
		Prompt:    user,
		MaxTokens: g.maxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("completing analysis for %s %s: %w",
			input.ActivityType, input.ActivityID, err)
	}

	parsed, err := Parse(resp.Text)
	if err != nil {
		return nil, fmt.Errorf("parsing analysis for %s %s: %w",
			input.ActivityType, input.ActivityID, err)
	}

	return &Generation{
		Analysis:     parsed,
		Raw:          resp.Text,
		Provider:     g.provider.Name(),
		Model:        resp.Model,
		InputTokens:  resp.InputTokens,
		OutputTokens: resp.OutputTokens,
	}, nil
}
