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
	"sync"
	"time"

	"github.com/kadirpekel/recall/pkg/config"
	"github.com/kadirpekel/recall/pkg/llms"
)

// ValidationMode selects how results are scored.
type ValidationMode int

const (
	// ValidateLLM asks the LLM to score each result's relevance.
	ValidateLLM ValidationMode = iota
	// ValidateHeuristic reuses the retrieval combined score.
	ValidateHeuristic
)

// Validator scores retrieved results for relevance to the query.
// LLM calls run in bounded-parallel batches; batches are sequential.
// A failed call falls back to the result's combined score so one bad
// call cannot empty the context.
type Validator struct {
	llm    llms.Provider
	config config.ValidatorConfig
	now    func() time.Time
}

// NewValidator creates a Validator.
func NewValidator(llm llms.Provider, cfg config.ValidatorConfig) *Validator {
	return &Validator{
		llm:    llm,
		config: cfg,
		now:    time.Now,
	}
}

// Validate scores results, keeps those at or above minScore, and
// returns them sorted descending by validation score. minScore <= 0
// uses the configured default.
func (v *Validator) Validate(ctx context.Context, query string, results []HybridResult, mode ValidationMode, minScore float64) *ValidatedContext {
	start := v.now()

	if minScore <= 0 {
		minScore = v.config.DefaultMinScore
	}
	if len(results) == 0 {
		return &ValidatedContext{Duration: v.now().Sub(start)}
	}

	scored := make([]ValidationResult, len(results))

	if mode == ValidateHeuristic || v.llm == nil {
		for i, r := range results {
			scored[i] = ValidationResult{
				Result:    r,
				Score:     r.CombinedScore,
				Rationale: "heuristic: combined retrieval score",
			}
		}
	} else {
		offset := 0
		for _, batch := range chunkSlice(results, v.config.MaxParallelValidations) {
			var wg sync.WaitGroup
			for i, r := range batch {
				wg.Add(1)
				go func() {
					defer wg.Done()
					scored[offset+i] = v.validateOne(ctx, query, r)
				}()
			}
			wg.Wait()
			offset += len(batch)
		}
	}

	var kept []ValidationResult
	var sum float64
	passed, failed := 0, 0
	for i := range scored {
		scored[i].Passed = scored[i].Score >= minScore
		sum += scored[i].Score
		if scored[i].Passed {
			passed++
			kept = append(kept, scored[i])
		} else {
			failed++
		}
	}

	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].Score > kept[j].Score
	})

	average := 0.0
	if len(scored) > 0 {
		average = sum / float64(len(scored))
	}

	return &ValidatedContext{
		Results:      kept,
		AverageScore: average,
		PassedCount:  passed,
		FailedCount:  failed,
		Duration:     v.now().Sub(start),
	}
}

// validateOne scores a single result via the LLM, falling back to the
// combined score on failure.
func (v *Validator) validateOne(ctx context.Context, query string, result HybridResult) ValidationResult {
	content := truncateText(result.Payload.Content, 1000)

	prompt := fmt.Sprintf(`Rate how relevant the following stored message is to the user query.

User query: "%s"

Stored message:
%s

Respond with only a JSON object:
{"score": 0.0-1.0, "rationale": "one sentence"}`, sanitizeInput(query), content)

	var parsed struct {
		Score     float64 `json:"score"`
		Rationale string  `json:"rationale"`
	}
	err := generateJSON(ctx, v.llm, "", prompt, v.config.Temperature, 150, &parsed)
	if err != nil {
		slog.Debug("Validation fell back to combined score",
			"message_id", result.ID,
			"error", err)
		return ValidationResult{
			Result:    result,
			Score:     result.CombinedScore,
			Rationale: "fallback: combined retrieval score",
		}
	}

	return ValidationResult{
		Result:    result,
		Score:     clampScore(parsed.Score),
		Rationale: parsed.Rationale,
	}
}
