// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"fmt"
	"os"
)

// LLMProvider identifies the completion provider type.
type LLMProvider string

const (
	LLMProviderOpenAI    LLMProvider = "openai"
	LLMProviderAnthropic LLMProvider = "anthropic"
	LLMProviderOllama    LLMProvider = "ollama"
)

// LLMConfig configures the completion provider.
type LLMConfig struct {
	// Provider type (openai, anthropic, ollama).
	Provider LLMProvider `yaml:"provider,omitempty" json:"provider,omitempty" jsonschema:"enum=openai,enum=anthropic,enum=ollama,default=openai"`

	// Model name (e.g. "gpt-4o-mini", "claude-sonnet-4-20250514").
	Model string `yaml:"model,omitempty" json:"model,omitempty"`

	// APIKey for authentication. Supports ${VAR} expansion.
	APIKey string `yaml:"api_key,omitempty" json:"api_key,omitempty"`

	// BaseURL overrides the default API endpoint.
	BaseURL string `yaml:"base_url,omitempty" json:"base_url,omitempty"`

	// Temperature for generation.
	Temperature *float64 `yaml:"temperature,omitempty" json:"temperature,omitempty"`

	// MaxTokens limits response length.
	MaxTokens int `yaml:"max_tokens,omitempty" json:"max_tokens,omitempty"`

	// Timeout in seconds for a single request.
	Timeout int `yaml:"timeout,omitempty" json:"timeout,omitempty"`

	// MaxRetries for transient HTTP failures.
	MaxRetries int `yaml:"max_retries,omitempty" json:"max_retries,omitempty"`

	// RetryDelay in seconds between retries.
	RetryDelay int `yaml:"retry_delay,omitempty" json:"retry_delay,omitempty"`
}

func detectLLMProviderFromEnv() LLMProvider {
	if os.Getenv("OPENAI_API_KEY") != "" {
		return LLMProviderOpenAI
	}
	if os.Getenv("ANTHROPIC_API_KEY") != "" {
		return LLMProviderAnthropic
	}
	return LLMProviderOllama
}

func apiKeyFromEnv(provider LLMProvider) string {
	switch provider {
	case LLMProviderOpenAI:
		return os.Getenv("OPENAI_API_KEY")
	case LLMProviderAnthropic:
		return os.Getenv("ANTHROPIC_API_KEY")
	}
	return ""
}

// SetDefaults applies default values.
func (c *LLMConfig) SetDefaults() {
	if c.Provider == "" {
		c.Provider = detectLLMProviderFromEnv()
	}
	if c.Model == "" {
		switch c.Provider {
		case LLMProviderOpenAI:
			c.Model = "gpt-4o-mini"
		case LLMProviderAnthropic:
			c.Model = "claude-sonnet-4-20250514"
		case LLMProviderOllama:
			c.Model = "llama3.2"
		}
	}
	if c.APIKey == "" {
		c.APIKey = apiKeyFromEnv(c.Provider)
	}
	if c.Temperature == nil {
		c.Temperature = FloatPtr(0.7)
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = 2048
	}
	if c.Timeout == 0 {
		c.Timeout = 60
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.RetryDelay == 0 {
		c.RetryDelay = 2
	}
}

// Validate checks the LLM configuration.
func (c *LLMConfig) Validate() error {
	switch c.Provider {
	case LLMProviderOpenAI, LLMProviderAnthropic, LLMProviderOllama:
	default:
		return fmt.Errorf("invalid provider %q (valid: openai, anthropic, ollama)", c.Provider)
	}
	if c.Temperature != nil && (*c.Temperature < 0 || *c.Temperature > 2) {
		return fmt.Errorf("temperature must be in [0, 2], got %v", *c.Temperature)
	}
	if c.MaxTokens < 0 {
		return fmt.Errorf("max_tokens cannot be negative")
	}
	return nil
}

// EmbedderProvider identifies the embedding provider type.
type EmbedderProvider string

const (
	EmbedderProviderOpenAI EmbedderProvider = "openai"
	EmbedderProviderOllama EmbedderProvider = "ollama"
)

// EmbedderConfig configures the embedding provider.
type EmbedderConfig struct {
	// Provider type (openai, ollama).
	Provider EmbedderProvider `yaml:"provider,omitempty" json:"provider,omitempty" jsonschema:"enum=openai,enum=ollama,default=ollama"`

	// Model name (e.g. "nomic-embed-text", "text-embedding-3-small").
	Model string `yaml:"model,omitempty" json:"model,omitempty"`

	// APIKey for authenticated providers.
	APIKey string `yaml:"api_key,omitempty" json:"api_key,omitempty"`

	// Host for local providers (ollama).
	Host string `yaml:"host,omitempty" json:"host,omitempty"`

	// Dimension of the embedding space. Fixed per deployment.
	Dimension int `yaml:"dimension,omitempty" json:"dimension,omitempty"`

	// Timeout in seconds for a single request.
	Timeout int `yaml:"timeout,omitempty" json:"timeout,omitempty"`

	// MaxRetries for transient failures.
	MaxRetries int `yaml:"max_retries,omitempty" json:"max_retries,omitempty"`
}

// SetDefaults applies default values.
func (c *EmbedderConfig) SetDefaults() {
	if c.Provider == "" {
		if os.Getenv("OPENAI_API_KEY") != "" {
			c.Provider = EmbedderProviderOpenAI
		} else {
			c.Provider = EmbedderProviderOllama
		}
	}
	if c.Model == "" {
		switch c.Provider {
		case EmbedderProviderOpenAI:
			c.Model = "text-embedding-3-small"
		case EmbedderProviderOllama:
			c.Model = "nomic-embed-text"
		}
	}
	if c.APIKey == "" && c.Provider == EmbedderProviderOpenAI {
		c.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if c.Host == "" {
		c.Host = "http://localhost:11434"
	}
	if c.Dimension == 0 {
		c.Dimension = 768
	}
	if c.Timeout == 0 {
		c.Timeout = 30
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
}

// Validate checks the embedder configuration.
func (c *EmbedderConfig) Validate() error {
	switch c.Provider {
	case EmbedderProviderOpenAI, EmbedderProviderOllama:
	default:
		return fmt.Errorf("invalid provider %q (valid: openai, ollama)", c.Provider)
	}
	if c.Dimension <= 0 {
		return fmt.Errorf("dimension must be positive")
	}
	return nil
}

// VectorStoreType identifies the vector store backend.
type VectorStoreType string

const (
	VectorStoreTypeChromem VectorStoreType = "chromem"
	VectorStoreTypeQdrant  VectorStoreType = "qdrant"
)

// VectorStoreConfig configures the vector store provider.
type VectorStoreConfig struct {
	// Type is the vector store type: "chromem" (embedded) or "qdrant".
	Type VectorStoreType `yaml:"type,omitempty" json:"type,omitempty" jsonschema:"enum=chromem,enum=qdrant,default=chromem"`

	// Host for qdrant.
	Host string `yaml:"host,omitempty" json:"host,omitempty"`

	// Port for qdrant (gRPC).
	Port int `yaml:"port,omitempty" json:"port,omitempty"`

	// APIKey for authenticated access.
	APIKey string `yaml:"api_key,omitempty" json:"api_key,omitempty"`

	// EnableTLS enables TLS connections.
	EnableTLS *bool `yaml:"enable_tls,omitempty" json:"enable_tls,omitempty"`

	// PersistPath for chromem file persistence. Empty = in-memory.
	PersistPath string `yaml:"persist_path,omitempty" json:"persist_path,omitempty"`

	// Compress enables gzip compression for chromem persistence.
	Compress bool `yaml:"compress,omitempty" json:"compress,omitempty"`

	// Collection is the message collection name.
	Collection string `yaml:"collection,omitempty" json:"collection,omitempty"`
}

// SetDefaults applies default values.
func (c *VectorStoreConfig) SetDefaults() {
	if c.Type == "" {
		c.Type = VectorStoreTypeChromem
	}
	if c.Port == 0 && c.Type == VectorStoreTypeQdrant {
		c.Port = 6334
	}
	if c.EnableTLS == nil {
		c.EnableTLS = BoolPtr(false)
	}
	if c.Collection == "" {
		c.Collection = "messages"
	}
}

// Validate checks the configuration for errors.
func (c *VectorStoreConfig) Validate() error {
	switch c.Type {
	case VectorStoreTypeChromem, VectorStoreTypeQdrant:
	default:
		return fmt.Errorf("invalid vector store type %q (valid: chromem, qdrant)", c.Type)
	}
	if c.Type == VectorStoreTypeQdrant && c.Host == "" {
		return fmt.Errorf("host is required for qdrant vector store")
	}
	return nil
}
