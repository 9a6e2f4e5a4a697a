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
	"strings"
	"unicode"
)

// tokenize lowercases text and splits on whitespace and punctuation.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsPunct(r) || unicode.IsSymbol(r)
	})
}

// uniqueTerms drops repeated terms, keeping first-occurrence order.
// Document frequency is counted per unique term; a repeated query word
// must not push df past the corpus size and flip the IDF argument
// negative.
func uniqueTerms(terms []string) []string {
	seen := make(map[string]bool, len(terms))
	unique := make([]string, 0, len(terms))
	for _, t := range terms {
		if !seen[t] {
			seen[t] = true
			unique = append(unique, t)
		}
	}
	return unique
}

// bm25Scores computes Okapi BM25 scores for query against docs.
// IDF is computed over the local candidate set:
// log((N - df + 0.5)/(df + 0.5)). Scores are raw; callers normalize
// with normalizeScores.
func bm25Scores(query string, docs []string, k1, b float64) []float64 {
	scores := make([]float64, len(docs))
	if len(docs) == 0 {
		return scores
	}

	queryTerms := uniqueTerms(tokenize(query))
	if len(queryTerms) == 0 {
		return scores
	}

	docTokens := make([][]string, len(docs))
	totalLen := 0
	for i, doc := range docs {
		docTokens[i] = tokenize(doc)
		totalLen += len(docTokens[i])
	}
	avgdl := float64(totalLen) / float64(len(docs))
	if avgdl == 0 {
		return scores
	}

	// Document frequency per query term over the candidate set.
	df := make(map[string]int, len(queryTerms))
	for _, tokens := range docTokens {
		seen := make(map[string]bool, len(tokens))
		for _, t := range tokens {
			seen[t] = true
		}
		for _, term := range queryTerms {
			if seen[term] {
				df[term]++
			}
		}
	}

	n := float64(len(docs))
	for i, tokens := range docTokens {
		tf := make(map[string]int, len(tokens))
		for _, t := range tokens {
			tf[t]++
		}

		docLen := float64(len(tokens))
		var score float64
		for _, term := range queryTerms {
			freq := float64(tf[term])
			if freq == 0 {
				continue
			}
			idf := math.Log((n - float64(df[term]) + 0.5) / (float64(df[term]) + 0.5))
			score += idf * (freq * (k1 + 1)) / (freq + k1*(1-b+b*docLen/avgdl))
		}
		scores[i] = score
	}

	return scores
}

// normalizeScores min-max scales scores to [0,1]. Constant input maps
// to all 0.5.
func normalizeScores(scores []float64) []float64 {
	if len(scores) == 0 {
		return scores
	}

	min, max := scores[0], scores[0]
	for _, s := range scores[1:] {
		if s < min {
			min = s
		}
		if s > max {
			max = s
		}
	}

	normalized := make([]float64, len(scores))
	if max == min {
		for i := range normalized {
			normalized[i] = 0.5
		}
		return normalized
	}

	for i, s := range scores {
		normalized[i] = (s - min) / (max - min)
	}
	return normalized
}
