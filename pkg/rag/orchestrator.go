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
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kadirpekel/recall/pkg/cache"
	"github.com/kadirpekel/recall/pkg/config"
	"github.com/kadirpekel/recall/pkg/databases"
	"github.com/kadirpekel/recall/pkg/embedders"
	"github.com/kadirpekel/recall/pkg/llms"
	"github.com/kadirpekel/recall/pkg/tokens"
)

// GradingSink receives quality gradings for feedback into stored
// message metadata.
type GradingSink interface {
	ApplyGrading(ctx context.Context, messageID string, grading *Grading) error
}

// QueryRequest is one orchestration call.
type QueryRequest struct {
	Query     string        `json:"query"`
	SessionID string        `json:"session_id,omitempty"`
	UserID    string        `json:"user_id"`
	Filters   SearchFilters `json:"filters,omitempty"`

	// MaxTokens overrides the context window budget when positive.
	MaxTokens int `json:"max_tokens,omitempty"`

	// Instructions overrides the intent instruction table when set.
	Instructions string `json:"instructions,omitempty"`

	// Heuristic switches validation to combined-score mode.
	Heuristic bool `json:"heuristic,omitempty"`

	// MinScore overrides the validator's configured minimum.
	MinScore float64 `json:"min_score,omitempty"`
}

// Orchestrator composes the pipeline stages into the dual-path flow:
// route, optional enhance and decompose, retrieve, validate, fit,
// optional plan, build prompt. Safe for concurrent use; per-call state
// lives on the stack.
type Orchestrator struct {
	router     *Router
	enhancer   *Enhancer
	decomposer *Decomposer
	retriever  *Retriever
	validator  *Validator
	window     *WindowManager
	prompter   *PromptBuilder
	planner    *Planner
	grader     *Grader
	sink       GradingSink

	maxResults int
	now        func() time.Time
}

// NewOrchestrator wires the pipeline from providers and configuration.
// c may be nil to disable caching.
func NewOrchestrator(llm llms.Provider, embedder embedders.Provider, store databases.Provider, c *cache.Cache, cfg *config.Config) *Orchestrator {
	p := cfg.Pipeline
	var estimator tokens.Estimator = tokens.NewCharEstimator(p.Window.CharsPerToken)
	if p.Window.Tokenizer == config.TokenizerTiktoken {
		if tk, err := tokens.NewTiktokenEstimator(p.Window.TokenizerModel); err == nil {
			estimator = tk
		} else {
			slog.Warn("Falling back to character token estimates", "error", err)
		}
	}

	return &Orchestrator{
		router:     NewRouter(llm, c, p.Router, p.Cache),
		enhancer:   NewEnhancer(llm, c, p.Enhancer, p.Cache),
		decomposer: NewDecomposer(llm, c, p.Decomposer, p.Cache),
		retriever:  NewRetriever(store, embedder, cfg.VectorStore.Collection, p.Retriever),
		validator:  NewValidator(llm, p.Validator),
		window:     NewWindowManager(p.Window, estimator),
		prompter:   NewPromptBuilder(p.Prompt, estimator),
		planner:    NewPlanner(llm, p.Planner),
		grader:     NewGrader(llm, p.Grader),
		maxResults: p.Retriever.MaxResultsPerQuery,
		now:        time.Now,
	}
}

// SetGradingSink wires grading feedback into stored metadata.
func (o *Orchestrator) SetGradingSink(sink GradingSink) {
	o.sink = sink
}

// Process runs one query through the pipeline and returns the
// LLM-ready prompt with its metadata. Component failures degrade via
// per-component fallbacks; only a vector store failure surfaces as an
// error.
func (o *Orchestrator) Process(ctx context.Context, req QueryRequest) (*Response, error) {
	start := o.now()
	messageID := uuid.NewString()
	steps := []string{StepRoute}

	route := o.router.Route(ctx, req.Query, req.UserID)

	if !route.Classification.NeedsRetrieval {
		prompt := o.prompter.Build(req.Query, nil, intentForCategory(route.Classification.Category), req.Instructions)
		steps = append(steps, StepBuildPrompt)

		return &Response{
			Prompt:        *prompt,
			PathTaken:     route.Path,
			MessageID:     messageID,
			Confidence:    Confidence(ConfidenceInput{}),
			Duration:      o.now().Sub(start),
			StepsExecuted: steps,
		}, nil
	}

	var enhanced *EnhancedQuery
	if route.Strategy.UseHyDE || route.Strategy.UseQueryExpansion {
		enhanced = o.enhancer.Enhance(ctx, req.Query, req.UserID, route.Strategy.UseHyDE, route.Strategy.UseQueryExpansion)
		steps = append(steps, StepEnhance)
	}

	// Decomposition feeds only metadata; sub-queries are not routed
	// back into retrieval.
	decomposed := false
	if route.Strategy.UseDecomposition {
		decomposition := o.decomposer.Decompose(ctx, req.Query, req.UserID)
		decomposed = true
		steps = append(steps, StepDecompose)
		slog.Debug("Query decomposed",
			"type", decomposition.Type,
			"sub_queries", len(decomposition.SubQueries))
	}

	limit := o.retrievalLimit(route.Classification.Complexity)
	retrieved, err := o.retriever.Retrieve(ctx, req.Query, enhanced, req.Filters, limit)
	if err != nil {
		return nil, err
	}
	steps = append(steps, StepRetrieve)

	mode := ValidateLLM
	if req.Heuristic {
		mode = ValidateHeuristic
	}
	validated := o.validator.Validate(ctx, req.Query, retrieved.Results, mode, req.MinScore)
	steps = append(steps, StepValidate)

	fitted := o.window.Fit(validated, req.MaxTokens)
	steps = append(steps, StepFit)

	if route.Strategy.UseToolPlanning {
		plan := o.planner.Plan(ctx, req.Query)
		steps = append(steps, StepPlanTools)
		slog.Debug("Tool plan proposed", "steps", len(plan.Steps))
	}

	prompt := o.prompter.Build(req.Query, fitted, intentForCategory(route.Classification.Category), req.Instructions)
	steps = append(steps, StepBuildPrompt)

	confidence := Confidence(ConfidenceInput{
		RetrievedCount: len(retrieved.Results),
		ValidatedCount: len(validated.Results),
		Citations:      prompt.Citations,
		Enhanced:       enhanced != nil,
		Decomposed:     decomposed,
	})

	return &Response{
		Prompt:        *prompt,
		PathTaken:     route.Path,
		MessageID:     messageID,
		Confidence:    confidence,
		Duration:      o.now().Sub(start),
		Enhanced:      enhanced != nil,
		Decomposed:    decomposed,
		StepsExecuted: steps,
		ContextStats: ContextStats{
			Retrieved: len(retrieved.Results),
			Validated: len(validated.Results),
			Fitted:    len(fitted.Results),
		},
	}, nil
}

// retrievalLimit scales the retrieval budget with query complexity.
func (o *Orchestrator) retrievalLimit(complexity int) int {
	switch {
	case complexity <= 3:
		return minInt(10, o.maxResults)
	case complexity <= 6:
		return minInt(30, o.maxResults)
	default:
		return o.maxResults
	}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// GradeAsync schedules quality grading of a completion as a detached
// background task. Failures are logged and discarded; the caller must
// not wait on the result.
func (o *Orchestrator) GradeAsync(query, completion, messageID string) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("Quality grading panicked", "panic", r)
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		grading := o.grader.Grade(ctx, query, completion)
		slog.Debug("Completion graded",
			"message_id", messageID,
			"overall", grading.Overall)

		if o.sink != nil {
			if err := o.sink.ApplyGrading(ctx, messageID, grading); err != nil {
				slog.Warn("Failed to apply grading feedback",
					"message_id", messageID,
					"error", err)
			}
		}
	}()
}
