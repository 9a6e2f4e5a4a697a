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

// Package databases provides vector store providers for dense retrieval.
package databases

import (
	"context"
	"fmt"

	"github.com/kadirpekel/recall/pkg/config"
	"github.com/kadirpekel/recall/pkg/registry"
)

// SearchResult is a single vector search hit.
type SearchResult struct {
	ID       string
	Content  string
	Vector   []float32
	Metadata map[string]interface{}
	Score    float32
}

// Provider abstracts a vector store. Filters are equality matches on
// payload fields; a []string value matches points whose field contains
// any of the listed values.
type Provider interface {
	Upsert(ctx context.Context, collection string, id string, vector []float32, metadata map[string]interface{}) error

	Search(ctx context.Context, collection string, queryVector []float32, topK int) ([]SearchResult, error)

	SearchWithFilter(ctx context.Context, collection string, queryVector []float32, topK int, filter map[string]interface{}) ([]SearchResult, error)

	// Get fetches a single point by id. Returns nil when absent.
	Get(ctx context.Context, collection string, id string) (*SearchResult, error)

	Delete(ctx context.Context, collection string, id string) error

	DeleteByFilter(ctx context.Context, collection string, filter map[string]interface{}) error

	CreateCollection(ctx context.Context, collection string, vectorSize uint64) error

	DeleteCollection(ctx context.Context, collection string) error

	Close() error
}

type DatabaseRegistry struct {
	*registry.Registry[Provider]
}

func NewDatabaseRegistry() *DatabaseRegistry {
	return &DatabaseRegistry{
		Registry: registry.New[Provider](),
	}
}

func (r *DatabaseRegistry) RegisterDatabase(name string, provider Provider) error {
	if name == "" {
		return fmt.Errorf("database name cannot be empty")
	}
	if provider == nil {
		return fmt.Errorf("database provider cannot be nil")
	}
	return r.Register(name, provider)
}

func (r *DatabaseRegistry) GetDatabase(name string) (Provider, error) {
	provider, exists := r.Get(name)
	if !exists {
		return nil, fmt.Errorf("database provider '%s' not found", name)
	}
	return provider, nil
}

// NewProviderFromConfig builds a provider for the configured type.
func NewProviderFromConfig(cfg *config.VectorStoreConfig) (Provider, error) {
	switch cfg.Type {
	case config.VectorStoreTypeChromem:
		return NewChromemProviderFromConfig(cfg)
	case config.VectorStoreTypeQdrant:
		return NewQdrantProviderFromConfig(cfg)
	default:
		return nil, fmt.Errorf("unsupported vector store type: %s (supported: chromem, qdrant)", cfg.Type)
	}
}
