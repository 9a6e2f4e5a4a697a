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
	"testing"

	"github.com/stretchr/testify/assert"
)

func citationsWithRelevance(relevances ...float64) []Citation {
	citations := make([]Citation, len(relevances))
	for i, r := range relevances {
		citations[i] = Citation{ID: i + 1, Relevance: r}
	}
	return citations
}

func TestConfidenceBaseOnly(t *testing.T) {
	assert.Equal(t, 0.5, Confidence(ConfidenceInput{}))
}

func TestConfidenceValidatedBoostTiers(t *testing.T) {
	tests := []struct {
		validated int
		boost     float64
	}{
		{0, 0},
		{1, 0.05},
		{2, 0.05},
		{3, 0.10},
		{4, 0.10},
		{5, 0.15},
		{7, 0.15},
		{8, 0.20},
		{20, 0.20},
	}
	for _, tt := range tests {
		b := ExplainConfidence(ConfidenceInput{ValidatedCount: tt.validated})
		assert.Equal(t, tt.boost, b.ValidatedBoost, "validated=%d", tt.validated)
	}
}

func TestConfidenceFullBoostStack(t *testing.T) {
	// 8 validated of 10 retrieved, mean citation relevance 0.7,
	// enhanced: 0.5 + 0.20 + 0.14 + 0.05 = 0.89.
	in := ConfidenceInput{
		RetrievedCount: 10,
		ValidatedCount: 8,
		Citations:      citationsWithRelevance(0.7, 0.7, 0.7),
		Enhanced:       false,
	}
	assert.InDelta(t, 0.89, Confidence(in), 1e-9)
}

func TestConfidenceCitationBoostUsesMeanRelevance(t *testing.T) {
	b := ExplainConfidence(ConfidenceInput{Citations: citationsWithRelevance(0.2, 0.8)})
	assert.InDelta(t, 0.20*0.5, b.CitationBoost, 1e-9)
}

func TestConfidenceEnhancedBoost(t *testing.T) {
	b := ExplainConfidence(ConfidenceInput{Enhanced: true})
	assert.Equal(t, 0.10, b.EnhancedBoost)
}

func TestConfidenceDecomposeBoostNeedsValidated(t *testing.T) {
	withFew := ExplainConfidence(ConfidenceInput{Decomposed: true, ValidatedCount: 4, RetrievedCount: 4})
	assert.Equal(t, 0.0, withFew.DecomposeBoost)

	withEnough := ExplainConfidence(ConfidenceInput{Decomposed: true, ValidatedCount: 5, RetrievedCount: 5})
	assert.Equal(t, 0.05, withEnough.DecomposeBoost)
}

func TestConfidenceRatioTerm(t *testing.T) {
	high := ExplainConfidence(ConfidenceInput{RetrievedCount: 10, ValidatedCount: 5})
	assert.Equal(t, 0.05, high.RatioTerm)

	low := ExplainConfidence(ConfidenceInput{RetrievedCount: 10, ValidatedCount: 1})
	assert.Equal(t, -0.05, low.RatioTerm)

	middle := ExplainConfidence(ConfidenceInput{RetrievedCount: 10, ValidatedCount: 3})
	assert.Equal(t, 0.0, middle.RatioTerm)

	noRetrieval := ExplainConfidence(ConfidenceInput{})
	assert.Equal(t, 0.0, noRetrieval.RatioTerm)
}

func TestConfidenceClampedToOne(t *testing.T) {
	in := ConfidenceInput{
		RetrievedCount: 10,
		ValidatedCount: 10,
		Citations:      citationsWithRelevance(1, 1, 1),
		Enhanced:       true,
		Decomposed:     true,
	}
	// Unclamped: 0.5 + 0.20 + 0.20 + 0.10 + 0.05 + 0.05 = 1.10.
	assert.Equal(t, 1.0, Confidence(in))
}
