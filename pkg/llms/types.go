// Package llms provides completion providers for the pipeline's LLM calls.
package llms

import "context"

// CompletionRequest is a single-turn completion request. The pipeline talks
// to models exclusively through this shape.
type CompletionRequest struct {
	// System is an optional system prompt.
	System string

	// Prompt is the user-turn content.
	Prompt string

	// Temperature overrides the provider default when non-negative.
	Temperature float64

	// MaxTokens limits the completion length. Zero uses the provider default.
	MaxTokens int
}

// Provider performs non-streaming completions. Implementations must be safe
// for concurrent use.
type Provider interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)

	ModelName() string

	Close() error
}
