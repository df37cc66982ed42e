package ai

import (
	"fmt"

	"github.com/edupulse/edupulse/internal/ai/anthropic"
	"github.com/edupulse/edupulse/internal/ai/mock"
	"github.com/edupulse/edupulse/internal/ai/openai"
	"github.com/edupulse/edupulse/internal/config"
	"github.com/edupulse/edupulse/pkg/models"
)

// NewProvider constructs the appropriate AI provider based on config.
// Called once at server startup.
func NewProvider(cfg config.AIConfig) (models.AIProvider, error) {
	switch cfg.Provider {
	case "openai":
		return openai.NewProvider(cfg.OpenAI, cfg.InferenceTimeout), nil
	case "anthropic":
		return anthropic.NewProvider(cfg.Anthropic, cfg.InferenceTimeout), nil
	case "mock":
		return mock.NewMockProvider(), nil
	default:
		return nil, fmt.Errorf("unknown AI provider %q: must be one of openai, anthropic, mock", cfg.Provider)
	}
}
