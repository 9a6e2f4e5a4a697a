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
	"sort"
	"time"

	"github.com/kadirpekel/recall/pkg/config"
	"github.com/kadirpekel/recall/pkg/databases"
	"github.com/kadirpekel/recall/pkg/embedders"
)

// Retriever fans out hybrid dense+BM25 search over query variations.
// Embedding failures skip the affected variation; a vector store
// failure is pipeline-fatal and surfaces as a PipelineError.
type Retriever struct {
	store      databases.Provider
	embedder   embedders.Provider
	collection string
	config     config.RetrieverConfig
	now        func() time.Time
}

// NewRetriever creates a Retriever against the given collection.
func NewRetriever(store databases.Provider, embedder embedders.Provider, collection string, cfg config.RetrieverConfig) *Retriever {
	return &Retriever{
		store:      store,
		embedder:   embedder,
		collection: collection,
		config:     cfg,
		now:        time.Now,
	}
}

// Retrieve runs the hybrid search for the query and its enhancement
// variations, merging per-variation results into a single ranked list
// of at most limit entries.
func (r *Retriever) Retrieve(ctx context.Context, query string, enhanced *EnhancedQuery, filters SearchFilters, limit int) (*RetrievedContext, error) {
	start := r.now()

	variations, usedHyDE, altCount, relCount := buildVariations(query, enhanced)

	type variationResult struct {
		variation string
		results   []HybridResult
	}

	perVariation, err := mapBounded(ctx, variations, 0, func(ctx context.Context, _ int, v string) (variationResult, error) {
		results, err := r.searchVariation(ctx, v, query, filters, limit)
		if err != nil {
			return variationResult{}, err
		}
		return variationResult{variation: v, results: results}, nil
	})
	if err != nil {
		return nil, err
	}

	resultsPerVariation := make(map[string]int, len(perVariation))
	var flat []HybridResult
	for _, vr := range perVariation {
		resultsPerVariation[vr.variation] = len(vr.results)
		flat = append(flat, vr.results...)
	}

	merged := mergeResults(flat, limit)
	filtersApplied := filters.appliedNames(r.config.TemporalThresholds)

	duration := r.now().Sub(start)
	slog.Debug("Hybrid retrieval complete",
		"variations", len(variations),
		"merged", len(merged),
		"duration", duration)

	return &RetrievedContext{
		Results: merged,
		Metadata: RetrievalMetadata{
			ResultsPerVariation: resultsPerVariation,
			FiltersApplied:      filtersApplied,
			UsedHyDE:            usedHyDE,
			AlternativesCount:   altCount,
			RelatedCount:        relCount,
			Duration:            duration,
		},
	}, nil
}

// buildVariations assembles the deduplicated variation list with the
// original query first: original, HyDE hypothetical, alternatives,
// related.
func buildVariations(query string, enhanced *EnhancedQuery) (variations []string, usedHyDE bool, altCount, relCount int) {
	seen := map[string]bool{}
	add := func(v string) bool {
		if v == "" || seen[v] {
			return false
		}
		seen[v] = true
		variations = append(variations, v)
		return true
	}

	add(query)
	if enhanced != nil {
		if enhanced.HyDE != nil && add(enhanced.HyDE.HypotheticalAnswer) {
			usedHyDE = true
		}
		if enhanced.Expansion != nil {
			for _, alt := range enhanced.Expansion.Alternatives {
				if add(alt) {
					altCount++
				}
			}
			for _, rel := range enhanced.Expansion.Related {
				if add(rel) {
					relCount++
				}
			}
		}
	}
	return variations, usedHyDE, altCount, relCount
}

// searchVariation runs one variation end to end: embed, filtered
// vector search, client-side filtering, BM25, fusion.
func (r *Retriever) searchVariation(ctx context.Context, variation, originalQuery string, filters SearchFilters, limit int) ([]HybridResult, error) {
	vector, err := r.embedder.Embed(ctx, variation)
	if err != nil {
		// Localized failure: skip this variation, keep the others.
		slog.Warn("Embedding failed, skipping variation",
			"variation_length", len(variation),
			"error", err)
		return nil, nil
	}

	// Over-fetch so client-side filtering still leaves enough.
	topK := 2 * limit
	storeResults, err := r.store.SearchWithFilter(ctx, r.collection, vector, topK, filters.storeFilter())
	if err != nil {
		return nil, NewPipelineError("retriever", "vector_search", "vector store search failed", originalQuery, err)
	}

	candidates := make([]HybridResult, 0, len(storeResults))
	for _, sr := range storeResults {
		candidates = append(candidates, HybridResult{
			ID:         sr.ID,
			Payload:    payloadFromMetadata(sr.Content, sr.Metadata),
			DenseScore: clampScore(float64(sr.Score)),
		})
	}

	filtered, _ := applyClientFilters(candidates, filters, r.config.TemporalThresholds, r.now())
	if len(filtered) == 0 {
		return nil, nil
	}

	docs := make([]string, len(filtered))
	for i, c := range filtered {
		docs[i] = c.Payload.Content
	}
	bm25 := normalizeScores(bm25Scores(variation, docs, r.config.BM25K1, r.config.BM25B))

	for i := range filtered {
		filtered[i].BM25Score = bm25[i]
		filtered[i].CombinedScore = r.config.DenseWeight*filtered[i].DenseScore + r.config.BM25Weight*filtered[i].BM25Score
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].CombinedScore > filtered[j].CombinedScore
	})

	return filtered, nil
}

// mergeResults flattens per-variation lists: dedup by message id
// keeping the highest combined score, sort descending, truncate.
func mergeResults(results []HybridResult, limit int) []HybridResult {
	best := make(map[string]HybridResult, len(results))
	for _, r := range results {
		if existing, ok := best[r.ID]; !ok || r.CombinedScore > existing.CombinedScore {
			best[r.ID] = r
		}
	}

	merged := make([]HybridResult, 0, len(best))
	for _, r := range best {
		merged = append(merged, r)
	}
	sort.SliceStable(merged, func(i, j int) bool {
		if merged[i].CombinedScore != merged[j].CombinedScore {
			return merged[i].CombinedScore > merged[j].CombinedScore
		}
		return merged[i].ID < merged[j].ID
	})

	if limit > 0 && len(merged) > limit {
		merged = merged[:limit]
	}
	return merged
}

// payloadFromMetadata rebuilds a MessagePayload from stored metadata.
func payloadFromMetadata(content string, metadata map[string]interface{}) MessagePayload {
	payload := MessagePayload{Content: content}
	if payload.Content == "" {
		payload.Content, _ = metadata["content"].(string)
	}

	if role, ok := metadata["role"].(string); ok {
		payload.Role = Role(role)
	}
	if sessionID, ok := metadata["session_id"].(string); ok {
		payload.SessionID = sessionID
	}
	if userID, ok := metadata["user_id"].(string); ok {
		payload.UserID = userID
	}
	if feedback, ok := metadata["feedback"].(string); ok {
		payload.Feedback = Feedback(feedback)
	}
	if intent, ok := metadata["intent_category"].(string); ok {
		payload.IntentCategory = intent
	}

	switch tags := metadata["tags"].(type) {
	case []string:
		payload.Tags = tags
	case []interface{}:
		for _, t := range tags {
			if s, ok := t.(string); ok {
				payload.Tags = append(payload.Tags, s)
			}
		}
	}

	switch ts := metadata["timestamp"].(type) {
	case string:
		if parsed, err := time.Parse(time.RFC3339, ts); err == nil {
			payload.Timestamp = parsed
		}
	case int64:
		payload.Timestamp = time.Unix(ts, 0)
	case float64:
		payload.Timestamp = time.Unix(int64(ts), 0)
	}

	switch ms := metadata["processing_time_ms"].(type) {
	case int64:
		payload.ProcessingTimeMs = ms
	case float64:
		payload.ProcessingTimeMs = int64(ms)
	case string:
		fmt.Sscanf(ms, "%d", &payload.ProcessingTimeMs)
	}

	return payload
}
