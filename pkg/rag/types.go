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

// Package rag implements the retrieval-augmented generation pipeline:
// query routing, conditional enhancement and decomposition, hybrid
// dense+BM25 retrieval with query fan-out, LLM relevance validation,
// context-window fitting, citation-bearing prompt assembly, confidence
// scoring, and asynchronous quality grading.
package rag

import (
	"time"
)

// Category classifies a query's intent.
type Category string

const (
	CategoryConversational    Category = "conversational"
	CategoryFactual           Category = "factual"
	CategoryTemporal          Category = "temporal"
	CategorySemantic          Category = "semantic"
	CategoryComplex           Category = "complex"
	CategoryRetrievalRequired Category = "retrieval_required"
)

// Classification is the router's view of a query.
type Classification struct {
	Category       Category `json:"category"`
	Complexity     int      `json:"complexity"`
	NeedsRetrieval bool     `json:"needs_retrieval"`
	Confidence     float64  `json:"confidence"`
}

// Strategy flags select which pipeline stages the route enables.
type Strategy struct {
	UseDecomposition  bool `json:"use_decomposition"`
	UseHybridSearch   bool `json:"use_hybrid_search"`
	UseHyDE           bool `json:"use_hyde"`
	UseQueryExpansion bool `json:"use_query_expansion"`
	UseToolPlanning   bool `json:"use_tool_planning"`
}

// Path labels the routing branch.
type Path string

const (
	PathFast    Path = "fast"
	PathComplex Path = "complex"
)

// Route is the full routing decision for one query.
type Route struct {
	Classification   Classification `json:"classification"`
	Strategy         Strategy       `json:"strategy"`
	Path             Path           `json:"path"`
	Rationale        string         `json:"rationale"`
	EstimatedLatency time.Duration  `json:"estimated_latency"`
	CacheKey         string         `json:"cache_key,omitempty"`
}

// HyDEResult is a hypothetical answer generated for embedding.
type HyDEResult struct {
	HypotheticalAnswer string  `json:"hypothetical_answer"`
	Confidence         float64 `json:"confidence"`
	OriginalQuery      string  `json:"original_query"`
}

// Expansion holds alternative phrasings and related queries.
type Expansion struct {
	Alternatives []string `json:"alternatives"`
	Related      []string `json:"related"`
}

// EnhancedQuery bundles the optional enhancement outputs. Either
// sub-field may be nil when the corresponding pass was not requested
// or produced nothing.
type EnhancedQuery struct {
	Original  string      `json:"original"`
	HyDE      *HyDEResult `json:"hyde,omitempty"`
	Expansion *Expansion  `json:"expansion,omitempty"`
}

// QueryType categorizes a decomposition.
type QueryType string

const (
	QueryTypeSimple       QueryType = "simple"
	QueryTypeComplex      QueryType = "complex"
	QueryTypeComparative  QueryType = "comparative"
	QueryTypeListBuilding QueryType = "list_building"
)

// SubQuery is one independently answerable piece of a complex query.
// DependsOn references prior sub-queries by text.
type SubQuery struct {
	Text          string   `json:"text"`
	Priority      int      `json:"priority"`
	DependsOn     []string `json:"depends_on,omitempty"`
	SuggestedTool string   `json:"suggested_tool,omitempty"`
}

// DecomposedQuery is the decomposer's output.
type DecomposedQuery struct {
	Original   string     `json:"original"`
	Type       QueryType  `json:"type"`
	Complexity int        `json:"complexity"`
	SubQueries []SubQuery `json:"sub_queries"`
}

// Role identifies the author of a stored message.
type Role string

const (
	RoleUser Role = "user"
	RoleBot  Role = "bot"
)

// Feedback is the user's verdict on a stored exchange.
type Feedback string

const (
	FeedbackSuccess Feedback = "success"
	FeedbackFailure Feedback = "failure"
	FeedbackNeutral Feedback = "neutral"
)

// MessagePayload is the stored representation of one conversation turn.
type MessagePayload struct {
	Content          string    `json:"content"`
	Role             Role      `json:"role"`
	SessionID        string    `json:"session_id"`
	UserID           string    `json:"user_id"`
	Tags             []string  `json:"tags,omitempty"`
	Timestamp        time.Time `json:"timestamp"`
	Feedback         Feedback  `json:"feedback,omitempty"`
	IntentCategory   string    `json:"intent_category,omitempty"`
	ProcessingTimeMs int64     `json:"processing_time_ms,omitempty"`
}

// HybridResult is one retrieved message with its fused scores.
// All scores are in [0,1]; CombinedScore is the weighted fusion of
// DenseScore and BM25Score.
type HybridResult struct {
	ID            string         `json:"id"`
	Payload       MessagePayload `json:"payload"`
	DenseScore    float64        `json:"dense_score"`
	BM25Score     float64        `json:"bm25_score"`
	CombinedScore float64        `json:"combined_score"`
}

// RetrievalMetadata describes how a retrieval pass ran.
type RetrievalMetadata struct {
	ResultsPerVariation map[string]int `json:"results_per_variation"`
	FiltersApplied      []string       `json:"filters_applied,omitempty"`
	UsedHyDE            bool           `json:"used_hyde"`
	AlternativesCount   int            `json:"alternatives_count"`
	RelatedCount        int            `json:"related_count"`
	Duration            time.Duration  `json:"duration"`
}

// RetrievedContext is the merged retrieval output.
type RetrievedContext struct {
	Results  []HybridResult    `json:"results"`
	Metadata RetrievalMetadata `json:"metadata"`
}

// ValidationResult pairs a retrieved result with its relevance verdict.
type ValidationResult struct {
	Result    HybridResult `json:"result"`
	Score     float64      `json:"score"`
	Rationale string       `json:"rationale,omitempty"`
	Passed    bool         `json:"passed"`
}

// ValidatedContext is the filtered, re-ordered validation output.
type ValidatedContext struct {
	Results      []ValidationResult `json:"results"`
	AverageScore float64            `json:"average_score"`
	PassedCount  int                `json:"passed_count"`
	FailedCount  int                `json:"failed_count"`
	Duration     time.Duration      `json:"duration"`
}

// TokenUsage summarizes how the token budget was spent.
type TokenUsage struct {
	Total       int     `json:"total"`
	Reserved    int     `json:"reserved"`
	Available   int     `json:"available"`
	Used        int     `json:"used"`
	Utilization float64 `json:"utilization"`
}

// FittedContext is the prefix of validated results that fits the
// token budget.
type FittedContext struct {
	Results        []ValidationResult `json:"results"`
	TruncatedCount int                `json:"truncated_count"`
	Usage          TokenUsage         `json:"usage"`
}

// Citation anchors one context item in the prompt. IDs are 1-indexed
// and dense.
type Citation struct {
	ID        int       `json:"id"`
	Content   string    `json:"content"`
	MessageID string    `json:"message_id"`
	Relevance float64   `json:"relevance"`
	Timestamp time.Time `json:"timestamp"`
}

// PromptMetadata describes the assembled prompt.
type PromptMetadata struct {
	CitationCount    int  `json:"citation_count"`
	ContextItems     int  `json:"context_items"`
	EstimatedTokens  int  `json:"estimated_tokens"`
	IncludeCitations bool `json:"include_citations"`
}

// BuiltPrompt is the final LLM-ready prompt with its citations.
type BuiltPrompt struct {
	Text      string         `json:"text"`
	Citations []Citation     `json:"citations"`
	Metadata  PromptMetadata `json:"metadata"`
}

// ToolPlan is the planner's advisory ordered tool sequence.
type ToolPlan struct {
	Steps     []ToolStep `json:"steps"`
	Rationale string     `json:"rationale,omitempty"`
}

// ToolStep is one entry in a tool plan.
type ToolStep struct {
	Tool    string `json:"tool"`
	Purpose string `json:"purpose,omitempty"`
}

// Grading scores a completion on three axes plus extracted entities.
type Grading struct {
	Relevance    float64  `json:"relevance"`
	Completeness float64  `json:"completeness"`
	Clarity      float64  `json:"clarity"`
	Overall      float64  `json:"overall"`
	Rationale    string   `json:"rationale,omitempty"`
	Entities     []string `json:"entities,omitempty"`
	Concepts     []string `json:"concepts,omitempty"`
	Keywords     []string `json:"keywords,omitempty"`
}

// Pipeline step names, recorded in Response.StepsExecuted in the
// order stages actually ran.
const (
	StepRoute       = "route"
	StepEnhance     = "enhance"
	StepDecompose   = "decompose"
	StepRetrieve    = "retrieve"
	StepValidate    = "validate"
	StepFit         = "fit"
	StepPlanTools   = "plan_tools"
	StepBuildPrompt = "build_prompt"
)

// ContextStats counts results surviving each stage.
type ContextStats struct {
	Retrieved int `json:"retrieved"`
	Validated int `json:"validated"`
	Fitted    int `json:"fitted"`
}

// Response is the orchestration output handed back to the caller.
type Response struct {
	Prompt        BuiltPrompt   `json:"prompt"`
	PathTaken     Path          `json:"path_taken"`
	MessageID     string        `json:"message_id"`
	Confidence    float64       `json:"confidence"`
	Duration      time.Duration `json:"duration"`
	Enhanced      bool          `json:"enhanced"`
	Decomposed    bool          `json:"decomposed"`
	StepsExecuted []string      `json:"steps_executed"`
	ContextStats  ContextStats  `json:"context_stats"`
}

// clampScore bounds a score to [0,1].
func clampScore(s float64) float64 {
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}

// clampComplexity bounds a complexity value to [0,10].
func clampComplexity(c int) int {
	if c < 0 {
		return 0
	}
	if c > 10 {
		return 10
	}
	return c
}
