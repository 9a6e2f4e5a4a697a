package llms

import (
	"fmt"

	"github.com/kadirpekel/recall/pkg/config"
	"github.com/kadirpekel/recall/pkg/registry"
)

type LLMRegistry struct {
	*registry.Registry[Provider]
}

func NewLLMRegistry() *LLMRegistry {
	return &LLMRegistry{
		Registry: registry.New[Provider](),
	}
}

func (r *LLMRegistry) RegisterLLM(name string, provider Provider) error {
	if name == "" {
		return fmt.Errorf("LLM name cannot be empty")
	}
	if provider == nil {
		return fmt.Errorf("LLM provider cannot be nil")
	}
	return r.Register(name, provider)
}

// CreateFromConfig builds and registers a provider from config.
func (r *LLMRegistry) CreateFromConfig(name string, cfg *config.LLMConfig) (Provider, error) {
	if name == "" {
		return nil, fmt.Errorf("LLM name cannot be empty")
	}
	if cfg == nil {
		return nil, fmt.Errorf("LLM config cannot be nil")
	}

	provider, err := NewProviderFromConfig(cfg)
	if err != nil {
		return nil, err
	}

	if err := r.RegisterLLM(name, provider); err != nil {
		return nil, fmt.Errorf("failed to register LLM: %w", err)
	}

	return provider, nil
}

func (r *LLMRegistry) GetLLM(name string) (Provider, error) {
	provider, exists := r.Get(name)
	if !exists {
		return nil, fmt.Errorf("LLM provider '%s' not found", name)
	}
	return provider, nil
}

// NewProviderFromConfig builds a provider for the configured type.
func NewProviderFromConfig(cfg *config.LLMConfig) (Provider, error) {
	switch cfg.Provider {
	case config.LLMProviderOpenAI:
		return NewOpenAIProviderFromConfig(cfg)
	case config.LLMProviderAnthropic:
		return NewAnthropicProviderFromConfig(cfg)
	case config.LLMProviderOllama:
		return NewOllamaProviderFromConfig(cfg)
	default:
		return nil, fmt.Errorf("unsupported LLM type: %s (supported: openai, anthropic, ollama)", cfg.Provider)
	}
}
