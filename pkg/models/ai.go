// Package models contains shared data models used across the EduPulse codebase.
package models

import (
	"context"
	"errors"
)

// Provider failure classes, wrapped by every provider implementation so
// callers can branch with errors.Is without knowing which backend ran.
var (
	ErrProviderUnavailable = errors.New("ai provider unavailable")
	ErrInferenceTimeout    = errors.New("ai inference timeout")
	ErrInvalidResponse     = errors.New("ai provider returned invalid response")
)

// AIProvider is the core interface every summarization backend must
// implement. Never call specific providers directly — always inject this
// interface.
type AIProvider interface {
	// Complete sends one prompt to the provider and returns the raw
	// completion text plus token usage accounting.
	Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error)
	// Name returns the provider identifier (e.g., "openai", "anthropic").
	Name() string
}

// CompletionRequest is the input to a single summarization call.
type CompletionRequest struct {
	System    string
	Prompt    string
	Model     string
	MaxTokens int
}

// CompletionResponse is the raw provider output before parsing.
type CompletionResponse struct {
	Text         string
	Model        string
	InputTokens  int
	OutputTokens int
}
