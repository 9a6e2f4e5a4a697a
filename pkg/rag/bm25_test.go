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
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"lowercases", "Hello World", []string{"hello", "world"}},
		{"splits punctuation", "foo,bar.baz!qux", []string{"foo", "bar", "baz", "qux"}},
		{"empty", "", nil},
		{"only punctuation", "...!?", nil},
		{"mixed whitespace", "a\tb\nc", []string{"a", "b", "c"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tokenize(tt.input)
			if tt.want == nil {
				assert.Empty(t, got)
			} else {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestBM25ScoresRankByRelevance(t *testing.T) {
	docs := []string{
		"the deployment failed because the config was missing",
		"we talked about lunch options yesterday",
		"deployment config lives in the deploy directory",
	}
	scores := bm25Scores("deployment config", docs, 1.5, 0.75)
	require.Len(t, scores, 3)

	// Both relevant docs must outrank the off-topic one.
	assert.Greater(t, scores[0], scores[1])
	assert.Greater(t, scores[2], scores[1])
}

func TestBM25ScoresRepeatedQueryTerms(t *testing.T) {
	docs := []string{
		"more cats more dogs",
		"more birds",
	}
	scores := bm25Scores("more and more", docs, 1.5, 0.75)
	require.Len(t, scores, 2)

	for i, s := range scores {
		assert.False(t, math.IsNaN(s), "score %d is NaN", i)
	}

	// Repeating a word must score the same as mentioning it once.
	single := bm25Scores("more and", docs, 1.5, 0.75)
	assert.Equal(t, single, scores)

	for _, n := range normalizeScores(scores) {
		assert.GreaterOrEqual(t, n, 0.0)
		assert.LessOrEqual(t, n, 1.0)
	}
}

func TestBM25ScoresEmptyInputs(t *testing.T) {
	assert.Empty(t, bm25Scores("query", nil, 1.5, 0.75))

	scores := bm25Scores("", []string{"doc one", "doc two"}, 1.5, 0.75)
	assert.Equal(t, []float64{0, 0}, scores)
}

func TestBM25TermAbsentEverywhere(t *testing.T) {
	scores := bm25Scores("zebra", []string{"doc one", "doc two"}, 1.5, 0.75)
	assert.Equal(t, []float64{0, 0}, scores)
}

func TestNormalizeScoresMinMax(t *testing.T) {
	normalized := normalizeScores([]float64{1, 3, 5})
	assert.Equal(t, []float64{0, 0.5, 1}, normalized)
}

func TestNormalizeScoresConstantMapsToHalf(t *testing.T) {
	normalized := normalizeScores([]float64{2.5, 2.5, 2.5})
	assert.Equal(t, []float64{0.5, 0.5, 0.5}, normalized)

	// Single element is a constant set.
	assert.Equal(t, []float64{0.5}, normalizeScores([]float64{7}))
}

func TestNormalizeScoresEmpty(t *testing.T) {
	assert.Empty(t, normalizeScores(nil))
}
