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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/recall/pkg/cache"
	"github.com/kadirpekel/recall/pkg/config"
	"github.com/kadirpekel/recall/pkg/testutils"
)

func testRouterConfig() config.RouterConfig {
	cfg := config.RouterConfig{}
	cfg.SetDefaults()
	return cfg
}

func testCacheConfig() config.CacheConfig {
	cfg := config.CacheConfig{}
	cfg.SetDefaults()
	return cfg
}

func newTestPipelineCache(t *testing.T) *cache.Cache {
	t.Helper()
	c := cache.New(testCacheConfig())
	t.Cleanup(c.Close)
	return c
}

func TestRouteFastPath(t *testing.T) {
	llm := testutils.NewMockLLM().Enqueue(`{"category": "conversational", "complexity": 1, "needs_retrieval": false, "confidence": 0.95}`)
	router := NewRouter(llm, nil, testRouterConfig(), testCacheConfig())

	route := router.Route(context.Background(), "Hello!", "u1")

	assert.Equal(t, PathFast, route.Path)
	assert.Equal(t, CategoryConversational, route.Classification.Category)
	assert.False(t, route.Classification.NeedsRetrieval)
	assert.Equal(t, Strategy{}, route.Strategy)
}

func TestRouteComplexPathEnablesStrategies(t *testing.T) {
	llm := testutils.NewMockLLM().Enqueue(`{"category": "complex", "complexity": 8, "needs_retrieval": true, "confidence": 0.85}`)
	router := NewRouter(llm, nil, testRouterConfig(), testCacheConfig())

	route := router.Route(context.Background(), "Compare approach A and approach B, then summarize", "u1")

	assert.Equal(t, PathComplex, route.Path)
	assert.True(t, route.Strategy.UseHybridSearch)
	assert.True(t, route.Strategy.UseDecomposition)
	assert.True(t, route.Strategy.UseHyDE)
	assert.True(t, route.Strategy.UseToolPlanning)
}

func TestRouteThresholdIsStrict(t *testing.T) {
	// Complexity exactly at the threshold takes the complex path.
	llm := testutils.NewMockLLM().Enqueue(`{"category": "factual", "complexity": 7, "needs_retrieval": true, "confidence": 0.9}`)
	router := NewRouter(llm, nil, testRouterConfig(), testCacheConfig())

	route := router.Route(context.Background(), "Explain the migration plan in detail please", "u1")
	assert.Equal(t, PathComplex, route.Path)
}

func TestRouteMultiPartIndicatorForcesComplex(t *testing.T) {
	llm := testutils.NewMockLLM().Enqueue(`{"category": "factual", "complexity": 3, "needs_retrieval": true, "confidence": 0.9}`)
	router := NewRouter(llm, nil, testRouterConfig(), testCacheConfig())

	route := router.Route(context.Background(), "Look it up and then summarize the findings", "u1")
	assert.Equal(t, PathComplex, route.Path)
}

func TestRouteHeuristicFallback(t *testing.T) {
	llm := testutils.NewMockLLM().EnqueueError(fmt.Errorf("llm down"))
	router := NewRouter(llm, nil, testRouterConfig(), testCacheConfig())

	route := router.Route(context.Background(), "What did we discuss last time?", "u1")

	assert.Equal(t, CategoryTemporal, route.Classification.Category)
	assert.True(t, route.Classification.NeedsRetrieval)
}

func TestRouteHeuristicFallbackOnGarbage(t *testing.T) {
	llm := testutils.NewMockLLM().Enqueue("not json at all")
	router := NewRouter(llm, nil, testRouterConfig(), testCacheConfig())

	route := router.Route(context.Background(), "hello there", "u1")
	assert.Equal(t, CategoryConversational, route.Classification.Category)
}

func TestRouteNilLLMUsesHeuristics(t *testing.T) {
	router := NewRouter(nil, nil, testRouterConfig(), testCacheConfig())

	route := router.Route(context.Background(), "compare redis versus memcached", "u1")
	assert.Equal(t, CategoryComplex, route.Classification.Category)
	assert.Equal(t, PathComplex, route.Path)
}

func TestRouteCachingSingleLLMCall(t *testing.T) {
	llm := testutils.NewMockLLM().Enqueue(`{"category": "temporal", "complexity": 4, "needs_retrieval": true, "confidence": 0.9}`)
	c := newTestPipelineCache(t)
	router := NewRouter(llm, c, testRouterConfig(), testCacheConfig())

	first := router.Route(context.Background(), "What did we discuss last time?", "u2")
	second := router.Route(context.Background(), "What did we discuss last time?", "u2")

	assert.Equal(t, 1, llm.Calls())
	assert.Equal(t, first, second)
}

func TestRouteCacheKeyIncludesUser(t *testing.T) {
	llm := testutils.NewMockLLM().
		Enqueue(`{"category": "temporal", "complexity": 4, "needs_retrieval": true, "confidence": 0.9}`).
		Enqueue(`{"category": "temporal", "complexity": 4, "needs_retrieval": true, "confidence": 0.9}`)
	c := newTestPipelineCache(t)
	router := NewRouter(llm, c, testRouterConfig(), testCacheConfig())

	router.Route(context.Background(), "same query", "alice")
	router.Route(context.Background(), "same query", "bob")

	assert.Equal(t, 2, llm.Calls())
}

func TestRouteClampsOutOfRangeValues(t *testing.T) {
	llm := testutils.NewMockLLM().Enqueue(`{"category": "factual", "complexity": 42, "needs_retrieval": true, "confidence": 3.5}`)
	router := NewRouter(llm, nil, testRouterConfig(), testCacheConfig())

	route := router.Route(context.Background(), "Give me all the deployment details now thanks", "u1")
	assert.Equal(t, 10, route.Classification.Complexity)
	assert.Equal(t, 1.0, route.Classification.Confidence)
}

func TestIsAmbiguous(t *testing.T) {
	assert.True(t, isAmbiguous("fix it"))
	assert.True(t, isAmbiguous("what about that thing we saw"))
	assert.False(t, isAmbiguous("describe the deployment pipeline for staging"))
}

func TestFastRouteLatencyEstimate(t *testing.T) {
	llm := testutils.NewMockLLM().Enqueue(`{"category": "conversational", "complexity": 1, "needs_retrieval": false, "confidence": 0.95}`)
	cfg := testRouterConfig()
	router := NewRouter(llm, nil, cfg, testCacheConfig())

	route := router.Route(context.Background(), "Hello!", "u1")
	require.Equal(t, PathFast, route.Path)
	assert.Equal(t, 500*time.Millisecond, route.EstimatedLatency)
}
