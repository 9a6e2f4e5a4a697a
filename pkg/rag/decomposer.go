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

package rag

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kadirpekel/recall/pkg/cache"
	"github.com/kadirpekel/recall/pkg/config"
	"github.com/kadirpekel/recall/pkg/llms"
)

// Decomposer breaks complex queries into prioritized, dependency-tagged
// sub-queries. Never fails: LLM or parse errors yield a single-echo
// fallback at complexity 5.
type Decomposer struct {
	llm    llms.Provider
	cache  *cache.Cache
	config config.DecomposerConfig
	cfgC   config.CacheConfig
}

// NewDecomposer creates a Decomposer. cache may be nil.
func NewDecomposer(llm llms.Provider, c *cache.Cache, cfg config.DecomposerConfig, cacheCfg config.CacheConfig) *Decomposer {
	return &Decomposer{
		llm:    llm,
		cache:  c,
		config: cfg,
		cfgC:   cacheCfg,
	}
}

func (d *Decomposer) cacheEnabled() bool {
	return d.cache != nil && d.cache.Enabled() &&
		(d.cfgC.CacheDecompositions == nil || *d.cfgC.CacheDecompositions)
}

// Decompose splits the query into sub-queries. Cached per user.
func (d *Decomposer) Decompose(ctx context.Context, query, userID string) *DecomposedQuery {
	var key string
	if d.cacheEnabled() {
		key = cache.Key("decomposition", userID, query)
		if cached, ok := d.cache.Get(key); ok {
			if result, ok := cached.(*DecomposedQuery); ok {
				return result
			}
		}
	}

	result := d.generate(ctx, query)

	if d.cacheEnabled() {
		d.cache.Set(key, result)
	}
	return result
}

func (d *Decomposer) generate(ctx context.Context, query string) *DecomposedQuery {
	prompt := fmt.Sprintf(`Decompose the following query into independently answerable sub-queries.

Query: "%s"

Rules:
- Each sub-query must be answerable on its own
- Priority 1 is highest; order sub-queries by priority
- A sub-query that needs another's answer lists that sub-query's text in depends_on
- Suggest a tool per sub-query when one clearly applies (search, calculate, summarize)
- Use at most %d sub-queries

Respond with only a JSON object:
{"type": "simple|complex|comparative|list_building", "complexity": 0-10, "sub_queries": [{"text": "...", "priority": 1, "depends_on": [], "suggested_tool": "search"}]}`,
		sanitizeInput(query), d.config.MaxSubQueries)

	var parsed struct {
		Type       QueryType  `json:"type"`
		Complexity int        `json:"complexity"`
		SubQueries []SubQuery `json:"sub_queries"`
	}
	err := generateJSON(ctx, d.llm, "", prompt, d.config.Temperature, 500, &parsed)
	if err != nil {
		slog.Debug("Decomposition fell back to single sub-query", "error", err)
		return fallbackDecomposition(query)
	}

	decomposed := &DecomposedQuery{
		Original:   query,
		Type:       parsed.Type,
		Complexity: clampComplexity(parsed.Complexity),
		SubQueries: parsed.SubQueries,
	}

	if d.config.MaxSubQueries > 0 && len(decomposed.SubQueries) > d.config.MaxSubQueries {
		decomposed.SubQueries = decomposed.SubQueries[:d.config.MaxSubQueries]
	}
	if len(decomposed.SubQueries) == 0 {
		decomposed.SubQueries = []SubQuery{{Text: query, Priority: 1}}
	}
	if decomposed.Type == "" {
		decomposed.Type = QueryTypeSimple
	}

	return decomposed
}

// fallbackDecomposition echoes the original query as the only
// sub-query.
func fallbackDecomposition(query string) *DecomposedQuery {
	return &DecomposedQuery{
		Original:   query,
		Type:       QueryTypeSimple,
		Complexity: 5,
		SubQueries: []SubQuery{{Text: query, Priority: 1}},
	}
}
