// Package embedders provides embedding providers for dense retrieval.
package embedders

import (
	"context"
	"fmt"

	"github.com/kadirpekel/recall/pkg/config"
	"github.com/kadirpekel/recall/pkg/registry"
)

// Provider generates embeddings. Implementations must be safe for
// concurrent use; EmbedBatch may fan out to parallel single-text calls.
type Provider interface {
	Embed(ctx context.Context, text string) ([]float32, error)

	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	Dimension() int

	ModelName() string

	Close() error
}

type EmbedderRegistry struct {
	*registry.Registry[Provider]
}

func NewEmbedderRegistry() *EmbedderRegistry {
	return &EmbedderRegistry{
		Registry: registry.New[Provider](),
	}
}

func (r *EmbedderRegistry) RegisterEmbedder(name string, provider Provider) error {
	if name == "" {
		return fmt.Errorf("embedder name cannot be empty")
	}
	if provider == nil {
		return fmt.Errorf("embedder provider cannot be nil")
	}
	return r.Register(name, provider)
}

func (r *EmbedderRegistry) GetEmbedder(name string) (Provider, error) {
	provider, exists := r.Get(name)
	if !exists {
		return nil, fmt.Errorf("embedder provider '%s' not found", name)
	}
	return provider, nil
}

// NewProviderFromConfig builds a provider for the configured type.
func NewProviderFromConfig(cfg *config.EmbedderConfig) (Provider, error) {
	switch cfg.Provider {
	case config.EmbedderProviderOllama:
		return NewOllamaEmbedderFromConfig(cfg)
	case config.EmbedderProviderOpenAI:
		return NewOpenAIEmbedderFromConfig(cfg)
	default:
		return nil, fmt.Errorf("unsupported embedder type: %s (supported: ollama, openai)", cfg.Provider)
	}
}
