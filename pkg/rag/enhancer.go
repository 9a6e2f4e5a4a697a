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
	"sync"

	"github.com/kadirpekel/recall/pkg/cache"
	"github.com/kadirpekel/recall/pkg/config"
	"github.com/kadirpekel/recall/pkg/llms"
)

// Enhancer runs HyDE and query expansion. Both operations degrade
// gracefully: HyDE falls back to echoing the original query at 0.5
// confidence, expansion falls back to empty lists.
//
// HyDE generates a hypothetical answer and embeds that instead of the
// bare query; the hypothetical's embedding tends to sit closer to
// relevant documents than the query embedding does.
// Paper: "Precise Zero-Shot Dense Retrieval without Relevance Labels"
// https://arxiv.org/abs/2212.10496
type Enhancer struct {
	llm    llms.Provider
	cache  *cache.Cache
	config config.EnhancerConfig
	cfgC   config.CacheConfig
}

// NewEnhancer creates an Enhancer. cache may be nil to disable caching.
func NewEnhancer(llm llms.Provider, c *cache.Cache, cfg config.EnhancerConfig, cacheCfg config.CacheConfig) *Enhancer {
	return &Enhancer{
		llm:    llm,
		cache:  c,
		config: cfg,
		cfgC:   cacheCfg,
	}
}

// Enhance runs the requested sub-operations concurrently and returns
// when both complete. Sub-fields stay nil when not requested.
func (e *Enhancer) Enhance(ctx context.Context, query, userID string, useHyDE, useExpansion bool) *EnhancedQuery {
	enhanced := &EnhancedQuery{Original: query}
	if !useHyDE && !useExpansion {
		return enhanced
	}

	var wg sync.WaitGroup
	if useHyDE {
		wg.Add(1)
		go func() {
			defer wg.Done()
			enhanced.HyDE = e.hyde(ctx, query, userID)
		}()
	}
	if useExpansion {
		wg.Add(1)
		go func() {
			defer wg.Done()
			enhanced.Expansion = e.expand(ctx, query, userID)
		}()
	}
	wg.Wait()

	return enhanced
}

func (e *Enhancer) cacheEnabled() bool {
	return e.cache != nil && e.cache.Enabled() &&
		(e.cfgC.CacheHyDE == nil || *e.cfgC.CacheHyDE)
}

// hyde generates a hypothetical answer for the query. Never fails: the
// fallback echoes the original query with confidence 0.5.
func (e *Enhancer) hyde(ctx context.Context, query, userID string) *HyDEResult {
	var key string
	if e.cacheEnabled() {
		key = cache.Key("hyde", userID, query)
		if cached, ok := e.cache.Get(key); ok {
			if result, ok := cached.(*HyDEResult); ok {
				return result
			}
		}
	}

	result := e.generateHyDE(ctx, query)

	if e.cacheEnabled() {
		e.cache.Set(key, result)
	}
	return result
}

func (e *Enhancer) generateHyDE(ctx context.Context, query string) *HyDEResult {
	prompt := fmt.Sprintf(`Write a detailed hypothetical answer to the following query, as if you had retrieved the perfect supporting context. The answer should:
- Be 2-4 sentences
- Directly address the core of the query
- Sound like a real answer, not a description of one
- Not mention that it is hypothetical

Query: "%s"

Respond with only a JSON object:
{"hypothetical_answer": "...", "confidence": 0.0-1.0}`, sanitizeInput(query))

	var parsed struct {
		HypotheticalAnswer string  `json:"hypothetical_answer"`
		Confidence         float64 `json:"confidence"`
	}
	err := generateJSON(ctx, e.llm, "", prompt, e.config.Temperature, 300, &parsed)
	if err != nil || parsed.HypotheticalAnswer == "" {
		slog.Debug("HyDE fell back to original query", "error", err)
		return &HyDEResult{
			HypotheticalAnswer: query,
			Confidence:         0.5,
			OriginalQuery:      query,
		}
	}

	return &HyDEResult{
		HypotheticalAnswer: parsed.HypotheticalAnswer,
		Confidence:         clampScore(parsed.Confidence),
		OriginalQuery:      query,
	}
}

// expand generates alternative phrasings and related queries. Never
// fails: the fallback is empty lists.
func (e *Enhancer) expand(ctx context.Context, query, userID string) *Expansion {
	var key string
	if e.cacheEnabled() {
		key = cache.Key("expansion", userID, query)
		if cached, ok := e.cache.Get(key); ok {
			if result, ok := cached.(*Expansion); ok {
				return result
			}
		}
	}

	result := e.generateExpansion(ctx, query)

	if e.cacheEnabled() {
		e.cache.Set(key, result)
	}
	return result
}

func (e *Enhancer) generateExpansion(ctx context.Context, query string) *Expansion {
	prompt := fmt.Sprintf(`Generate query variations for the following search query.

Original query: "%s"

Produce:
- 2-3 alternative phrasings (different wording, same meaning)
- 1-2 related queries (adjacent topics a good answer would touch)

Respond with only a JSON object:
{"alternatives": ["...", "..."], "related": ["..."]}`, sanitizeInput(query))

	var parsed Expansion
	err := generateJSON(ctx, e.llm, "", prompt, e.config.Temperature, 300, &parsed)
	if err != nil {
		slog.Debug("Query expansion fell back to empty lists", "error", err)
		return &Expansion{}
	}

	if len(parsed.Alternatives) > e.config.MaxAlternatives {
		parsed.Alternatives = parsed.Alternatives[:e.config.MaxAlternatives]
	}
	if len(parsed.Related) > e.config.MaxRelated {
		parsed.Related = parsed.Related[:e.config.MaxRelated]
	}
	return &parsed
}
