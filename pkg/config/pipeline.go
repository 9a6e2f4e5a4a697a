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

package config

import (
	"fmt"
	"time"
)

// PipelineConfig groups the per-stage settings of the RAG pipeline.
type PipelineConfig struct {
	Router     RouterConfig     `yaml:"router,omitempty" json:"router,omitempty"`
	Cache      CacheConfig      `yaml:"cache,omitempty" json:"cache,omitempty"`
	Enhancer   EnhancerConfig   `yaml:"enhancer,omitempty" json:"enhancer,omitempty"`
	Decomposer DecomposerConfig `yaml:"decomposer,omitempty" json:"decomposer,omitempty"`
	Retriever  RetrieverConfig  `yaml:"retriever,omitempty" json:"retriever,omitempty"`
	Validator  ValidatorConfig  `yaml:"validator,omitempty" json:"validator,omitempty"`
	Window     WindowConfig     `yaml:"window,omitempty" json:"window,omitempty"`
	Prompt     PromptConfig     `yaml:"prompt,omitempty" json:"prompt,omitempty"`
	Grader     GraderConfig     `yaml:"grader,omitempty" json:"grader,omitempty"`
	Planner    PlannerConfig    `yaml:"planner,omitempty" json:"planner,omitempty"`
}

func (c *PipelineConfig) SetDefaults() {
	c.Router.SetDefaults()
	c.Cache.SetDefaults()
	c.Enhancer.SetDefaults()
	c.Decomposer.SetDefaults()
	c.Retriever.SetDefaults()
	c.Validator.SetDefaults()
	c.Window.SetDefaults()
	c.Prompt.SetDefaults()
	c.Grader.SetDefaults()
	c.Planner.SetDefaults()
}

func (c *PipelineConfig) Validate() error {
	if err := c.Router.Validate(); err != nil {
		return fmt.Errorf("router: %w", err)
	}
	if err := c.Retriever.Validate(); err != nil {
		return fmt.Errorf("retriever: %w", err)
	}
	if err := c.Validator.Validate(); err != nil {
		return fmt.Errorf("validator: %w", err)
	}
	if err := c.Window.Validate(); err != nil {
		return fmt.Errorf("window: %w", err)
	}
	if err := c.Grader.Validate(); err != nil {
		return fmt.Errorf("grader: %w", err)
	}
	return nil
}

// RouterConfig tunes query classification and path selection.
type RouterConfig struct {
	// ComplexityThreshold is the fast/complex boundary. A query takes the
	// fast path only when complexity is strictly below this value.
	ComplexityThreshold int `yaml:"complexity_threshold,omitempty" json:"complexity_threshold,omitempty"`

	// DecompositionThreshold: decomposition runs when complexity exceeds it.
	DecompositionThreshold int `yaml:"decomposition_threshold,omitempty" json:"decomposition_threshold,omitempty"`

	// HyDEThreshold: HyDE runs when complexity exceeds it.
	HyDEThreshold int `yaml:"hyde_threshold,omitempty" json:"hyde_threshold,omitempty"`

	// FastPathMaxLatency is the latency estimate attached to fast routes.
	FastPathMaxLatency Duration `yaml:"fast_path_max_latency,omitempty" json:"fast_path_max_latency,omitempty"`

	// Temperature for the classification call.
	Temperature float64 `yaml:"temperature,omitempty" json:"temperature,omitempty"`
}

func (c *RouterConfig) SetDefaults() {
	if c.ComplexityThreshold == 0 {
		c.ComplexityThreshold = 7
	}
	if c.DecompositionThreshold == 0 {
		c.DecompositionThreshold = 7
	}
	if c.HyDEThreshold == 0 {
		c.HyDEThreshold = 6
	}
	if c.FastPathMaxLatency == 0 {
		c.FastPathMaxLatency = Duration(500 * time.Millisecond)
	}
}

func (c *RouterConfig) Validate() error {
	if c.ComplexityThreshold < 0 || c.ComplexityThreshold > 10 {
		return fmt.Errorf("complexity_threshold must be in [0, 10]")
	}
	return nil
}

// CacheConfig tunes the shared pipeline cache.
type CacheConfig struct {
	// Enabled turns the cache on. When disabled, gets miss and sets no-op.
	Enabled *bool `yaml:"enabled,omitempty" json:"enabled,omitempty"`

	// MaxSize bounds the entry count. Eviction drops the least-hit entry.
	MaxSize int `yaml:"max_size,omitempty" json:"max_size,omitempty"`

	// DefaultTTL applies when a set does not specify a TTL.
	DefaultTTL Duration `yaml:"default_ttl,omitempty" json:"default_ttl,omitempty"`

	// SweepInterval controls periodic expiry sweeps.
	SweepInterval Duration `yaml:"sweep_interval,omitempty" json:"sweep_interval,omitempty"`

	// Per-value-kind toggles.
	CacheRoutes         *bool `yaml:"cache_routes,omitempty" json:"cache_routes,omitempty"`
	CacheHyDE           *bool `yaml:"cache_hyde,omitempty" json:"cache_hyde,omitempty"`
	CacheDecompositions *bool `yaml:"cache_decompositions,omitempty" json:"cache_decompositions,omitempty"`
	CacheSearchResults  *bool `yaml:"cache_search_results,omitempty" json:"cache_search_results,omitempty"`
}

func (c *CacheConfig) SetDefaults() {
	if c.Enabled == nil {
		c.Enabled = BoolPtr(true)
	}
	if c.MaxSize == 0 {
		c.MaxSize = 1000
	}
	if c.DefaultTTL == 0 {
		c.DefaultTTL = Duration(5 * time.Minute)
	}
	if c.SweepInterval == 0 {
		c.SweepInterval = Duration(time.Minute)
	}
	if c.CacheRoutes == nil {
		c.CacheRoutes = BoolPtr(true)
	}
	if c.CacheHyDE == nil {
		c.CacheHyDE = BoolPtr(true)
	}
	if c.CacheDecompositions == nil {
		c.CacheDecompositions = BoolPtr(true)
	}
	if c.CacheSearchResults == nil {
		c.CacheSearchResults = BoolPtr(false)
	}
}

// EnhancerConfig tunes HyDE and query expansion.
type EnhancerConfig struct {
	// MaxAlternatives caps alternative phrasings from expansion.
	MaxAlternatives int `yaml:"max_alternatives,omitempty" json:"max_alternatives,omitempty"`

	// MaxRelated caps related queries from expansion.
	MaxRelated int `yaml:"max_related,omitempty" json:"max_related,omitempty"`

	// Temperature for enhancement calls.
	Temperature float64 `yaml:"temperature,omitempty" json:"temperature,omitempty"`
}

func (c *EnhancerConfig) SetDefaults() {
	if c.MaxAlternatives == 0 {
		c.MaxAlternatives = 3
	}
	if c.MaxRelated == 0 {
		c.MaxRelated = 2
	}
	if c.Temperature == 0 {
		c.Temperature = 0.7
	}
}

// DecomposerConfig tunes query decomposition.
type DecomposerConfig struct {
	// MaxSubQueries caps the sub-query count.
	MaxSubQueries int `yaml:"max_sub_queries,omitempty" json:"max_sub_queries,omitempty"`

	// Temperature for the decomposition call.
	Temperature float64 `yaml:"temperature,omitempty" json:"temperature,omitempty"`
}

func (c *DecomposerConfig) SetDefaults() {
	if c.MaxSubQueries == 0 {
		c.MaxSubQueries = 5
	}
	if c.Temperature == 0 {
		c.Temperature = 0.3
	}
}

// TemporalThresholds maps named temporal scopes to maximum message age.
type TemporalThresholds struct {
	LastMessage Duration `yaml:"last_message,omitempty" json:"last_message,omitempty"`
	Recent      Duration `yaml:"recent,omitempty" json:"recent,omitempty"`
	Session     Duration `yaml:"session,omitempty" json:"session,omitempty"`
}

// RetrieverConfig tunes hybrid retrieval.
type RetrieverConfig struct {
	// BM25K1 is the Okapi k1 term-frequency saturation parameter.
	BM25K1 float64 `yaml:"bm25_k1,omitempty" json:"bm25_k1,omitempty"`

	// BM25B is the Okapi length-normalization parameter.
	BM25B float64 `yaml:"bm25_b,omitempty" json:"bm25_b,omitempty"`

	// DenseWeight and BM25Weight fuse the two scores. They must sum to 1.
	DenseWeight float64 `yaml:"dense_weight,omitempty" json:"dense_weight,omitempty"`
	BM25Weight  float64 `yaml:"bm25_weight,omitempty" json:"bm25_weight,omitempty"`

	// MaxResultsPerQuery caps the merged result count.
	MaxResultsPerQuery int `yaml:"max_results_per_query,omitempty" json:"max_results_per_query,omitempty"`

	// TemporalThresholds configure the named temporal scopes.
	TemporalThresholds TemporalThresholds `yaml:"temporal_thresholds,omitempty" json:"temporal_thresholds,omitempty"`
}

func (c *RetrieverConfig) SetDefaults() {
	if c.BM25K1 == 0 {
		c.BM25K1 = 1.5
	}
	if c.BM25B == 0 {
		c.BM25B = 0.75
	}
	if c.DenseWeight == 0 && c.BM25Weight == 0 {
		c.DenseWeight = 0.6
		c.BM25Weight = 0.4
	}
	if c.MaxResultsPerQuery == 0 {
		c.MaxResultsPerQuery = 50
	}
	if c.TemporalThresholds.LastMessage == 0 {
		c.TemporalThresholds.LastMessage = Duration(5 * time.Minute)
	}
	if c.TemporalThresholds.Recent == 0 {
		c.TemporalThresholds.Recent = Duration(time.Hour)
	}
	if c.TemporalThresholds.Session == 0 {
		c.TemporalThresholds.Session = Duration(24 * time.Hour)
	}
}

func (c *RetrieverConfig) Validate() error {
	sum := c.DenseWeight + c.BM25Weight
	if sum < 0.999 || sum > 1.001 {
		return fmt.Errorf("dense_weight + bm25_weight must equal 1.0, got %v", sum)
	}
	if c.BM25K1 < 0 || c.BM25B < 0 || c.BM25B > 1 {
		return fmt.Errorf("invalid BM25 parameters (k1=%v, b=%v)", c.BM25K1, c.BM25B)
	}
	if c.MaxResultsPerQuery <= 0 {
		return fmt.Errorf("max_results_per_query must be positive")
	}
	return nil
}

// ValidatorConfig tunes LLM relevance validation.
type ValidatorConfig struct {
	// DefaultMinScore filters validated results. Permissive by default for
	// conversational corpora.
	DefaultMinScore float64 `yaml:"default_min_score,omitempty" json:"default_min_score,omitempty"`

	// MaxParallelValidations bounds each validation batch.
	MaxParallelValidations int `yaml:"max_parallel_validations,omitempty" json:"max_parallel_validations,omitempty"`

	// Temperature for validation calls.
	Temperature float64 `yaml:"temperature,omitempty" json:"temperature,omitempty"`
}

func (c *ValidatorConfig) SetDefaults() {
	if c.DefaultMinScore == 0 {
		c.DefaultMinScore = 0.15
	}
	if c.MaxParallelValidations == 0 {
		c.MaxParallelValidations = 5
	}
	if c.Temperature == 0 {
		c.Temperature = 0.1
	}
}

func (c *ValidatorConfig) Validate() error {
	if c.DefaultMinScore < 0 || c.DefaultMinScore > 1 {
		return fmt.Errorf("default_min_score must be in [0, 1]")
	}
	if c.MaxParallelValidations <= 0 {
		return fmt.Errorf("max_parallel_validations must be positive")
	}
	return nil
}

// WindowConfig tunes context-window fitting.
type WindowConfig struct {
	// MaxContextTokens is the full model context budget.
	MaxContextTokens int `yaml:"max_context_tokens,omitempty" json:"max_context_tokens,omitempty"`

	// MinResponseTokens is held back for the completion.
	MinResponseTokens int `yaml:"min_response_tokens,omitempty" json:"min_response_tokens,omitempty"`

	// ReservedTokens is held back for prompt scaffolding.
	ReservedTokens int `yaml:"reserved_tokens,omitempty" json:"reserved_tokens,omitempty"`

	// CharsPerToken drives the character-based token estimate.
	CharsPerToken int `yaml:"chars_per_token,omitempty" json:"chars_per_token,omitempty"`

	// Tokenizer selects the estimator: "chars" or "tiktoken".
	Tokenizer string `yaml:"tokenizer,omitempty" json:"tokenizer,omitempty" jsonschema:"enum=chars,enum=tiktoken"`

	// TokenizerModel names the model whose BPE encoding tiktoken
	// loads. Ignored by the character estimator.
	TokenizerModel string `yaml:"tokenizer_model,omitempty" json:"tokenizer_model,omitempty"`
}

const (
	TokenizerChars    = "chars"
	TokenizerTiktoken = "tiktoken"
)

func (c *WindowConfig) SetDefaults() {
	if c.MaxContextTokens == 0 {
		c.MaxContextTokens = 8192
	}
	if c.MinResponseTokens == 0 {
		c.MinResponseTokens = 1024
	}
	if c.ReservedTokens == 0 {
		c.ReservedTokens = 512
	}
	if c.CharsPerToken == 0 {
		c.CharsPerToken = 4
	}
	if c.Tokenizer == "" {
		c.Tokenizer = TokenizerChars
	}
	if c.TokenizerModel == "" {
		c.TokenizerModel = "gpt-4"
	}
}

func (c *WindowConfig) Validate() error {
	if c.CharsPerToken <= 0 {
		return fmt.Errorf("chars_per_token must be positive")
	}
	if c.MinResponseTokens < 0 || c.ReservedTokens < 0 {
		return fmt.Errorf("token reservations cannot be negative")
	}
	if c.Tokenizer != TokenizerChars && c.Tokenizer != TokenizerTiktoken {
		return fmt.Errorf("invalid tokenizer: %s (must be %q or %q)", c.Tokenizer, TokenizerChars, TokenizerTiktoken)
	}
	return nil
}

// PromptConfig tunes prompt assembly.
type PromptConfig struct {
	// IncludeCitations controls citation anchor emission.
	IncludeCitations *bool `yaml:"include_citations,omitempty" json:"include_citations,omitempty"`

	// MaxCitationLength truncates citation content, with an ellipsis marker.
	MaxCitationLength int `yaml:"max_citation_length,omitempty" json:"max_citation_length,omitempty"`

	// CharsPerToken drives the prompt token estimate.
	CharsPerToken int `yaml:"chars_per_token,omitempty" json:"chars_per_token,omitempty"`
}

func (c *PromptConfig) SetDefaults() {
	if c.IncludeCitations == nil {
		c.IncludeCitations = BoolPtr(true)
	}
	if c.MaxCitationLength == 0 {
		c.MaxCitationLength = 300
	}
	if c.CharsPerToken == 0 {
		c.CharsPerToken = 4
	}
}

// GraderWeights weight the three grading axes.
type GraderWeights struct {
	Relevance    float64 `yaml:"relevance,omitempty" json:"relevance,omitempty"`
	Completeness float64 `yaml:"completeness,omitempty" json:"completeness,omitempty"`
	Clarity      float64 `yaml:"clarity,omitempty" json:"clarity,omitempty"`
}

// GraderConfig tunes asynchronous quality grading.
type GraderConfig struct {
	// Temperature for the grading call.
	Temperature float64 `yaml:"temperature,omitempty" json:"temperature,omitempty"`

	// Weights for the overall score.
	Weights GraderWeights `yaml:"weights,omitempty" json:"weights,omitempty"`
}

func (c *GraderConfig) SetDefaults() {
	if c.Temperature == 0 {
		c.Temperature = 0.3
	}
	if c.Weights.Relevance == 0 && c.Weights.Completeness == 0 && c.Weights.Clarity == 0 {
		c.Weights = GraderWeights{Relevance: 0.4, Completeness: 0.3, Clarity: 0.3}
	}
}

func (c *GraderConfig) Validate() error {
	sum := c.Weights.Relevance + c.Weights.Completeness + c.Weights.Clarity
	if sum < 0.999 || sum > 1.001 {
		return fmt.Errorf("grader weights must sum to 1.0, got %v", sum)
	}
	return nil
}

// PlannerConfig tunes advisory tool planning.
type PlannerConfig struct {
	// MaxSteps caps the plan length.
	MaxSteps int `yaml:"max_steps,omitempty" json:"max_steps,omitempty"`

	// Temperature for the planning call.
	Temperature float64 `yaml:"temperature,omitempty" json:"temperature,omitempty"`
}

func (c *PlannerConfig) SetDefaults() {
	if c.MaxSteps == 0 {
		c.MaxSteps = 5
	}
	if c.Temperature == 0 {
		c.Temperature = 0.3
	}
}
