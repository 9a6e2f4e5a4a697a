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

// ConfidenceInput carries the pipeline signals the score combines.
type ConfidenceInput struct {
	RetrievedCount int
	ValidatedCount int
	Citations      []Citation
	Enhanced       bool
	Decomposed     bool
}

// ConfidenceBreakdown is the per-term view returned by ExplainConfidence.
type ConfidenceBreakdown struct {
	Base           float64 `json:"base"`
	ValidatedBoost float64 `json:"validated_boost"`
	CitationBoost  float64 `json:"citation_boost"`
	EnhancedBoost  float64 `json:"enhanced_boost"`
	DecomposeBoost float64 `json:"decompose_boost"`
	RatioTerm      float64 `json:"ratio_term"`
	Total          float64 `json:"total"`
}

// Confidence combines pipeline metadata into a single [0,1] score.
func Confidence(in ConfidenceInput) float64 {
	return ExplainConfidence(in).Total
}

// ExplainConfidence computes the confidence score with its per-term
// breakdown. Starts at 0.5 and accumulates boosts from validated
// count, citation relevance, enhancement, decomposition, and the
// validated/retrieved ratio; the total is clamped to [0,1].
func ExplainConfidence(in ConfidenceInput) ConfidenceBreakdown {
	b := ConfidenceBreakdown{Base: 0.5}

	switch {
	case in.ValidatedCount >= 8:
		b.ValidatedBoost = 0.20
	case in.ValidatedCount >= 5:
		b.ValidatedBoost = 0.15
	case in.ValidatedCount >= 3:
		b.ValidatedBoost = 0.10
	case in.ValidatedCount >= 1:
		b.ValidatedBoost = 0.05
	}

	if len(in.Citations) > 0 {
		var sum float64
		for _, c := range in.Citations {
			sum += c.Relevance
		}
		b.CitationBoost = 0.20 * (sum / float64(len(in.Citations)))
	}

	if in.Enhanced {
		b.EnhancedBoost = 0.10
	}
	if in.Decomposed && in.ValidatedCount >= 5 {
		b.DecomposeBoost = 0.05
	}

	if in.RetrievedCount > 0 {
		ratio := float64(in.ValidatedCount) / float64(in.RetrievedCount)
		switch {
		case ratio >= 0.5:
			b.RatioTerm = 0.05
		case ratio < 0.2:
			b.RatioTerm = -0.05
		}
	}

	b.Total = clampScore(b.Base + b.ValidatedBoost + b.CitationBoost + b.EnhancedBoost + b.DecomposeBoost + b.RatioTerm)
	return b
}
