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
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/recall/pkg/config"
	"github.com/kadirpekel/recall/pkg/llms"
	"github.com/kadirpekel/recall/pkg/testutils"
)

func testEnhancerConfig() config.EnhancerConfig {
	cfg := config.EnhancerConfig{}
	cfg.SetDefaults()
	return cfg
}

func TestEnhanceNothingRequested(t *testing.T) {
	llm := testutils.NewMockLLM()
	enhancer := NewEnhancer(llm, nil, testEnhancerConfig(), testCacheConfig())

	enhanced := enhancer.Enhance(context.Background(), "query", "u1", false, false)

	assert.Equal(t, "query", enhanced.Original)
	assert.Nil(t, enhanced.HyDE)
	assert.Nil(t, enhanced.Expansion)
	assert.Equal(t, 0, llm.Calls())
}

func TestEnhanceHyDE(t *testing.T) {
	llm := testutils.NewMockLLM().Enqueue(`{"hypothetical_answer": "The server listens on port 8080 as configured.", "confidence": 0.9}`)
	enhancer := NewEnhancer(llm, nil, testEnhancerConfig(), testCacheConfig())

	enhanced := enhancer.Enhance(context.Background(), "What port does the server use?", "u1", true, false)

	require.NotNil(t, enhanced.HyDE)
	assert.Equal(t, "The server listens on port 8080 as configured.", enhanced.HyDE.HypotheticalAnswer)
	assert.Equal(t, 0.9, enhanced.HyDE.Confidence)
	assert.Equal(t, "What port does the server use?", enhanced.HyDE.OriginalQuery)
	assert.Nil(t, enhanced.Expansion)
}

func TestEnhanceHyDEFallbackEchoesQuery(t *testing.T) {
	llm := testutils.NewMockLLM().EnqueueError(fmt.Errorf("timeout"))
	enhancer := NewEnhancer(llm, nil, testEnhancerConfig(), testCacheConfig())

	enhanced := enhancer.Enhance(context.Background(), "What port does the server use?", "u1", true, false)

	require.NotNil(t, enhanced.HyDE)
	assert.Equal(t, "What port does the server use?", enhanced.HyDE.HypotheticalAnswer)
	assert.Equal(t, 0.5, enhanced.HyDE.Confidence)
}

func TestEnhanceExpansionTruncatesToLimits(t *testing.T) {
	llm := testutils.NewMockLLM().Enqueue(`{"alternatives": ["a1", "a2", "a3", "a4", "a5"], "related": ["r1", "r2", "r3"]}`)
	enhancer := NewEnhancer(llm, nil, testEnhancerConfig(), testCacheConfig())

	enhanced := enhancer.Enhance(context.Background(), "deployment config", "u1", false, true)

	require.NotNil(t, enhanced.Expansion)
	assert.Equal(t, []string{"a1", "a2", "a3"}, enhanced.Expansion.Alternatives)
	assert.Equal(t, []string{"r1", "r2"}, enhanced.Expansion.Related)
}

func TestEnhanceExpansionFallbackIsEmpty(t *testing.T) {
	llm := testutils.NewMockLLM().Enqueue("no json here")
	enhancer := NewEnhancer(llm, nil, testEnhancerConfig(), testCacheConfig())

	enhanced := enhancer.Enhance(context.Background(), "deployment config", "u1", false, true)

	require.NotNil(t, enhanced.Expansion)
	assert.Empty(t, enhanced.Expansion.Alternatives)
	assert.Empty(t, enhanced.Expansion.Related)
}

func TestEnhanceRunsBothOperations(t *testing.T) {
	llm := testutils.NewMockLLM().Handle(func(req llms.CompletionRequest) (string, error) {
		if strings.Contains(req.Prompt, "hypothetical") {
			return `{"hypothetical_answer": "answer", "confidence": 0.8}`, nil
		}
		return `{"alternatives": ["alt"], "related": ["rel"]}`, nil
	})
	enhancer := NewEnhancer(llm, nil, testEnhancerConfig(), testCacheConfig())

	enhanced := enhancer.Enhance(context.Background(), "complex question about deploys", "u1", true, true)

	require.NotNil(t, enhanced.HyDE)
	require.NotNil(t, enhanced.Expansion)
	assert.Equal(t, 2, llm.Calls())
}

func TestEnhanceCachesSubOperations(t *testing.T) {
	llm := testutils.NewMockLLM().
		Enqueue(`{"hypothetical_answer": "answer", "confidence": 0.8}`).
		Enqueue(`{"hypothetical_answer": "other", "confidence": 0.8}`)
	c := newTestPipelineCache(t)
	enhancer := NewEnhancer(llm, c, testEnhancerConfig(), testCacheConfig())

	first := enhancer.Enhance(context.Background(), "same query", "u1", true, false)
	second := enhancer.Enhance(context.Background(), "same query", "u1", true, false)

	assert.Equal(t, 1, llm.Calls())
	assert.Equal(t, first.HyDE, second.HyDE)
}
