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
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/recall/pkg/config"
)

func testPromptConfig() config.PromptConfig {
	cfg := config.PromptConfig{}
	cfg.SetDefaults()
	return cfg
}

func fittedWith(scores map[string]float64, order ...string) *FittedContext {
	fitted := &FittedContext{}
	for _, id := range order {
		fitted.Results = append(fitted.Results, ValidationResult{
			Result: HybridResult{
				ID:      id,
				Payload: MessagePayload{Content: "content of " + id, Timestamp: time.Now()},
			},
			Score: scores[id],
		})
	}
	return fitted
}

func TestBuildCitationsAreDenseAndOneIndexed(t *testing.T) {
	b := NewPromptBuilder(testPromptConfig(), nil)

	fitted := fittedWith(map[string]float64{"m1": 0.9, "m2": 0.8, "m3": 0.7}, "m1", "m2", "m3")
	prompt := b.Build("what happened?", fitted, IntentFactual, "")

	require.Len(t, prompt.Citations, 3)
	for i, c := range prompt.Citations {
		assert.Equal(t, i+1, c.ID)
	}
	assert.Equal(t, "m1", prompt.Citations[0].MessageID)
	assert.Equal(t, 0.9, prompt.Citations[0].Relevance)

	assert.Contains(t, prompt.Text, "[1] content of m1")
	assert.Contains(t, prompt.Text, "[2] content of m2")
	assert.Contains(t, prompt.Text, "[3] content of m3")
}

func TestBuildTruncatesLongCitations(t *testing.T) {
	cfg := testPromptConfig()
	cfg.MaxCitationLength = 20
	b := NewPromptBuilder(cfg, nil)

	long := strings.Repeat("z", 50)
	fitted := &FittedContext{Results: []ValidationResult{{
		Result: HybridResult{ID: "m1", Payload: MessagePayload{Content: long}},
		Score:  0.9,
	}}}

	prompt := b.Build("query", fitted, IntentFactual, "")
	require.Len(t, prompt.Citations, 1)
	assert.Equal(t, strings.Repeat("z", 20)+"...", prompt.Citations[0].Content)
}

func TestBuildTruncatedCitationsStayValidUTF8(t *testing.T) {
	cfg := testPromptConfig()
	cfg.MaxCitationLength = 20
	b := NewPromptBuilder(cfg, nil)

	fitted := &FittedContext{Results: []ValidationResult{{
		Result: HybridResult{ID: "m1", Payload: MessagePayload{Content: strings.Repeat("日本語", 10)}},
		Score:  0.9,
	}}}

	prompt := b.Build("query", fitted, IntentFactual, "")
	require.Len(t, prompt.Citations, 1)
	assert.True(t, utf8.ValidString(prompt.Citations[0].Content))
	assert.True(t, strings.HasSuffix(prompt.Citations[0].Content, "..."))
}

func TestBuildEmptyContextOmitsContextSection(t *testing.T) {
	b := NewPromptBuilder(testPromptConfig(), nil)

	prompt := b.Build("Hello!", nil, IntentConversational, "")

	assert.NotContains(t, prompt.Text, "Context:")
	assert.Empty(t, prompt.Citations)
	assert.Equal(t, 0, prompt.Metadata.ContextItems)
	assert.Contains(t, prompt.Text, "User query: Hello!")
}

func TestBuildIntentInstructions(t *testing.T) {
	b := NewPromptBuilder(testPromptConfig(), nil)

	prompt := b.Build("when did we decide this?", nil, IntentTemporal, "")
	assert.Contains(t, prompt.Text, "Instructions: "+intentInstructions[IntentTemporal])
}

func TestBuildInstructionsOverride(t *testing.T) {
	b := NewPromptBuilder(testPromptConfig(), nil)

	prompt := b.Build("query", nil, IntentFactual, "Answer in French.")
	assert.Contains(t, prompt.Text, "Instructions: Answer in French.")
	assert.NotContains(t, prompt.Text, intentInstructions[IntentFactual])
}

func TestBuildCitationsDisabled(t *testing.T) {
	cfg := testPromptConfig()
	cfg.IncludeCitations = config.BoolPtr(false)
	b := NewPromptBuilder(cfg, nil)

	fitted := fittedWith(map[string]float64{"m1": 0.9}, "m1")
	prompt := b.Build("query", fitted, IntentFactual, "")

	assert.NotContains(t, prompt.Text, "Context:")
	assert.False(t, prompt.Metadata.IncludeCitations)
	// Citations are still computed for confidence scoring.
	assert.Len(t, prompt.Citations, 1)
}

func TestIntentForCategory(t *testing.T) {
	tests := []struct {
		category Category
		want     Intent
	}{
		{CategoryConversational, IntentConversational},
		{CategoryFactual, IntentFactual},
		{CategoryTemporal, IntentTemporal},
		{CategorySemantic, IntentSemantic},
		{CategoryComplex, IntentComparative},
		{CategoryRetrievalRequired, IntentHybrid},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, intentForCategory(tt.category), string(tt.category))
	}
}

func TestBuildEstimatesTokens(t *testing.T) {
	b := NewPromptBuilder(testPromptConfig(), nil)

	prompt := b.Build("query", nil, IntentFactual, "")
	assert.Greater(t, prompt.Metadata.EstimatedTokens, 0)
}
