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

package main

import (
	"fmt"

	"github.com/kadirpekel/recall/pkg/cache"
	"github.com/kadirpekel/recall/pkg/config"
	"github.com/kadirpekel/recall/pkg/databases"
	"github.com/kadirpekel/recall/pkg/embedders"
	"github.com/kadirpekel/recall/pkg/llms"
	"github.com/kadirpekel/recall/pkg/memory"
	"github.com/kadirpekel/recall/pkg/rag"
)

// runtime bundles the wired pipeline and its providers.
type runtime struct {
	config       *config.Config
	llm          llms.Provider
	embedder     embedders.Provider
	store        databases.Provider
	cache        *cache.Cache
	orchestrator *rag.Orchestrator
	memory       *memory.Store
}

// loadConfig loads the config file, or defaults when no path is given.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

// buildRuntime wires providers and the pipeline from configuration.
func buildRuntime(cfg *config.Config) (*runtime, error) {
	llm, err := llms.NewProviderFromConfig(&cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM provider: %w", err)
	}

	embedder, err := embedders.NewProviderFromConfig(&cfg.Embedder)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}

	store, err := databases.NewProviderFromConfig(&cfg.VectorStore)
	if err != nil {
		return nil, fmt.Errorf("failed to create vector store: %w", err)
	}

	pipelineCache := cache.New(cfg.Pipeline.Cache)

	orchestrator := rag.NewOrchestrator(llm, embedder, store, pipelineCache, cfg)
	memoryStore := memory.NewStore(store, embedder, cfg.VectorStore.Collection)
	orchestrator.SetGradingSink(memoryStore)

	return &runtime{
		config:       cfg,
		llm:          llm,
		embedder:     embedder,
		store:        store,
		cache:        pipelineCache,
		orchestrator: orchestrator,
		memory:       memoryStore,
	}, nil
}

func (r *runtime) Close() {
	r.cache.Close()
	_ = r.llm.Close()
	_ = r.embedder.Close()
	_ = r.store.Close()
}
