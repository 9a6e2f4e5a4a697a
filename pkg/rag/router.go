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
	"strings"
	"time"

	"github.com/kadirpekel/recall/pkg/cache"
	"github.com/kadirpekel/recall/pkg/config"
	"github.com/kadirpekel/recall/pkg/llms"
)

const routerSystemPrompt = `You are a query classifier for a conversational memory system.
Classify the user query into exactly one category:

- conversational: greetings, small talk, acknowledgments ("Hello!", "thanks")
- factual: asks for a specific fact ("What port does the server use?")
- temporal: references past conversation or time ("What did we discuss last time?")
- semantic: asks about meaning or similarity ("Find notes similar to this")
- complex: multi-part, comparative, or analytical ("Compare A and B, then summarize")
- retrieval_required: needs stored context but fits no other category

Also estimate complexity on a 0-10 scale:
- 0-2: trivial, single clause
- 3-5: single question needing lookup
- 6-8: multi-clause or analytical
- 9-10: multi-step research

Examples:
"Hello!" -> {"category": "conversational", "complexity": 1, "needs_retrieval": false, "confidence": 0.95}
"What did we discuss last time?" -> {"category": "temporal", "complexity": 4, "needs_retrieval": true, "confidence": 0.9}
"Compare approach A and approach B, then summarize" -> {"category": "complex", "complexity": 8, "needs_retrieval": true, "confidence": 0.85}

Respond with only a JSON object:
{"category": "...", "complexity": N, "needs_retrieval": true|false, "confidence": 0.0-1.0}`

// multiPartIndicators disqualify a query from the fast path even when
// its complexity is below the threshold.
var multiPartIndicators = []string{
	"then", "compare", "summarize", "and then",
	"first", "second", "third", "finally",
	"1.", "2.", "3.",
}

// vagueTerms mark a query as ambiguous enough to warrant expansion.
var vagueTerms = []string{"it", "that", "this", "thing", "stuff"}

// toolIndicators suggest the query wants a tool-assisted answer.
var toolIndicators = []string{"calculate", "count", "summarize", "extract", "find"}

// Router classifies queries and picks the fast or complex path.
// Classification failures fall back to keyword heuristics; Route never
// returns an error.
type Router struct {
	llm    llms.Provider
	cache  *cache.Cache
	config config.RouterConfig
	cfgC   config.CacheConfig
}

// NewRouter creates a Router. cache may be nil to disable route caching.
func NewRouter(llm llms.Provider, c *cache.Cache, cfg config.RouterConfig, cacheCfg config.CacheConfig) *Router {
	return &Router{
		llm:    llm,
		cache:  c,
		config: cfg,
		cfgC:   cacheCfg,
	}
}

// Route classifies the query and derives a strategy. Cached per user
// and query when route caching is on.
func (r *Router) Route(ctx context.Context, query, userID string) *Route {
	var key string
	if r.cacheRoutes() {
		key = cache.Key("route", userID, query)
		if cached, ok := r.cache.Get(key); ok {
			if route, ok := cached.(*Route); ok {
				return route
			}
		}
	}

	classification := r.classify(ctx, query)
	route := r.buildRoute(query, classification)
	route.CacheKey = key

	if r.cacheRoutes() {
		r.cache.Set(key, route)
	}

	return route
}

func (r *Router) cacheRoutes() bool {
	return r.cache != nil && r.cache.Enabled() &&
		(r.cfgC.CacheRoutes == nil || *r.cfgC.CacheRoutes)
}

// classify asks the LLM for a classification, falling back to keyword
// heuristics on any error.
func (r *Router) classify(ctx context.Context, query string) Classification {
	if r.llm != nil {
		var c Classification
		prompt := fmt.Sprintf("Query: %s", sanitizeInput(query))
		err := generateJSON(ctx, r.llm, routerSystemPrompt, prompt, r.config.Temperature, 200, &c)
		if err == nil && c.Category != "" {
			c.Complexity = clampComplexity(c.Complexity)
			c.Confidence = clampScore(c.Confidence)
			return c
		}
		slog.Debug("Classification fell back to heuristics",
			"query_length", len(query),
			"error", err)
	}
	return heuristicClassification(query)
}

// heuristicClassification maps keyword indicators to a classification
// when the LLM is unavailable or returns garbage.
func heuristicClassification(query string) Classification {
	lower := strings.ToLower(query)

	switch {
	case containsAny(lower, []string{"last time", "yesterday", "earlier", "before", "previous", "recently", "ago"}):
		return Classification{Category: CategoryTemporal, Complexity: 4, NeedsRetrieval: true, Confidence: 0.6}
	case containsAny(lower, []string{"compare", "versus", " vs ", "difference between"}):
		return Classification{Category: CategoryComplex, Complexity: 8, NeedsRetrieval: true, Confidence: 0.6}
	case containsAny(lower, []string{"hello", "hi ", "hey", "thanks", "thank you", "good morning", "good night", "bye"}) ||
		lower == "hi" || lower == "hi!":
		return Classification{Category: CategoryConversational, Complexity: 1, NeedsRetrieval: false, Confidence: 0.7}
	case containsAny(lower, []string{"what", "when", "where", "who", "which", "how"}):
		return Classification{Category: CategoryFactual, Complexity: 3, NeedsRetrieval: true, Confidence: 0.5}
	default:
		return Classification{Category: CategoryRetrievalRequired, Complexity: 5, NeedsRetrieval: true, Confidence: 0.4}
	}
}

// buildRoute derives the strategy flags and path from a classification.
func (r *Router) buildRoute(query string, c Classification) *Route {
	if r.isFastPath(query, c) {
		return &Route{
			Classification:   c,
			Strategy:         Strategy{},
			Path:             PathFast,
			Rationale:        fmt.Sprintf("complexity %d below threshold %d, no multi-part indicators", c.Complexity, r.config.ComplexityThreshold),
			EstimatedLatency: r.config.FastPathMaxLatency.Std(),
		}
	}

	strategy := Strategy{
		UseHybridSearch:   true,
		UseDecomposition:  c.Complexity > r.config.DecompositionThreshold,
		UseHyDE:           c.Complexity > r.config.HyDEThreshold,
		UseQueryExpansion: isAmbiguous(query),
		UseToolPlanning:   containsAny(strings.ToLower(query), toolIndicators),
	}

	return &Route{
		Classification:   c,
		Strategy:         strategy,
		Path:             PathComplex,
		Rationale:        fmt.Sprintf("complexity %d (threshold %d)", c.Complexity, r.config.ComplexityThreshold),
		EstimatedLatency: estimateComplexLatency(strategy),
	}
}

// isFastPath requires complexity strictly below the threshold and no
// multi-part indicators. A query at the exact threshold takes the
// complex path.
func (r *Router) isFastPath(query string, c Classification) bool {
	if c.Complexity >= r.config.ComplexityThreshold {
		return false
	}
	return !containsAny(strings.ToLower(query), multiPartIndicators)
}

// isAmbiguous flags short queries and queries leaning on vague
// referents as candidates for expansion.
func isAmbiguous(query string) bool {
	if len(strings.Fields(query)) <= 3 {
		return true
	}
	lower := strings.ToLower(query)
	for _, term := range vagueTerms {
		for _, word := range strings.Fields(lower) {
			if strings.Trim(word, ".,!?;:'\"") == term {
				return true
			}
		}
	}
	return false
}

func containsAny(s string, substrs []string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// estimateComplexLatency sums rough per-stage costs for metadata.
func estimateComplexLatency(s Strategy) time.Duration {
	estimate := 2 * time.Second
	if s.UseHyDE {
		estimate += time.Second
	}
	if s.UseQueryExpansion {
		estimate += time.Second
	}
	if s.UseDecomposition {
		estimate += time.Second
	}
	if s.UseToolPlanning {
		estimate += time.Second
	}
	return estimate
}
