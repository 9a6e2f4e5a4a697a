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

	"github.com/kadirpekel/recall/pkg/config"
	"github.com/kadirpekel/recall/pkg/llms"
)

// Grader scores a completion after the fact for relevance,
// completeness, and clarity, and extracts entities for feedback into
// stored metadata. Runs fire-and-forget from the orchestrator.
type Grader struct {
	llm    llms.Provider
	config config.GraderConfig
}

// NewGrader creates a Grader.
func NewGrader(llm llms.Provider, cfg config.GraderConfig) *Grader {
	return &Grader{
		llm:    llm,
		config: cfg,
	}
}

// Grade scores the completion against the query. Never fails: on any
// error it returns a neutral 0.5 grading with empty entity lists.
func (g *Grader) Grade(ctx context.Context, query, completion string) *Grading {
	completion = truncateText(completion, 2000)

	prompt := fmt.Sprintf(`Grade the following answer to the user query on three axes, each 0.0-1.0:
- relevance: does it address what was asked?
- completeness: does it cover all parts of the question?
- clarity: is it well organized and unambiguous?

Also extract named entities, key concepts, and keywords from the answer.

User query: "%s"

Answer:
%s

Respond with only a JSON object:
{"relevance": 0.0-1.0, "completeness": 0.0-1.0, "clarity": 0.0-1.0, "rationale": "...", "entities": [], "concepts": [], "keywords": []}`,
		sanitizeInput(query), completion)

	var parsed Grading
	err := generateJSON(ctx, g.llm, "", prompt, g.config.Temperature, 400, &parsed)
	if err != nil {
		slog.Debug("Grading fell back to neutral scores", "error", err)
		return neutralGrading()
	}

	parsed.Relevance = clampScore(parsed.Relevance)
	parsed.Completeness = clampScore(parsed.Completeness)
	parsed.Clarity = clampScore(parsed.Clarity)
	parsed.Overall = g.config.Weights.Relevance*parsed.Relevance +
		g.config.Weights.Completeness*parsed.Completeness +
		g.config.Weights.Clarity*parsed.Clarity

	return &parsed
}

func neutralGrading() *Grading {
	return &Grading{
		Relevance:    0.5,
		Completeness: 0.5,
		Clarity:      0.5,
		Overall:      0.5,
	}
}
