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

// Planner proposes an ordered tool plan for complex queries. The plan
// is advisory: the orchestrator logs it but does not wire it into the
// prompt.
type Planner struct {
	llm    llms.Provider
	config config.PlannerConfig
}

// NewPlanner creates a Planner.
func NewPlanner(llm llms.Provider, cfg config.PlannerConfig) *Planner {
	return &Planner{
		llm:    llm,
		config: cfg,
	}
}

// Plan proposes tool steps for the query. Never fails: errors yield an
// empty plan.
func (p *Planner) Plan(ctx context.Context, query string) *ToolPlan {
	prompt := fmt.Sprintf(`Propose an ordered tool plan for answering the following query.

Available tools: search (look up stored context), calculate (arithmetic), summarize (condense text), extract (pull structured data).

Query: "%s"

Use at most %d steps. Respond with only a JSON object:
{"steps": [{"tool": "search", "purpose": "..."}], "rationale": "..."}`,
		sanitizeInput(query), p.config.MaxSteps)

	var parsed ToolPlan
	err := generateJSON(ctx, p.llm, "", prompt, p.config.Temperature, 400, &parsed)
	if err != nil {
		slog.Debug("Tool planning fell back to empty plan", "error", err)
		return &ToolPlan{}
	}

	if p.config.MaxSteps > 0 && len(parsed.Steps) > p.config.MaxSteps {
		parsed.Steps = parsed.Steps[:p.config.MaxSteps]
	}
	return &parsed
}
