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
	"fmt"
	"strings"

	"github.com/kadirpekel/recall/pkg/config"
	"github.com/kadirpekel/recall/pkg/tokens"
)

// Intent selects the per-intent instruction block in the prompt.
type Intent string

const (
	IntentComparative    Intent = "comparative"
	IntentConversational Intent = "conversational"
	IntentFactual        Intent = "factual"
	IntentHybrid         Intent = "hybrid"
	IntentListBuilding   Intent = "list_building"
	IntentSemantic       Intent = "semantic"
	IntentTemporal       Intent = "temporal"
)

const basePrompt = `You are a helpful assistant with access to the user's prior conversation history. Context items below are cited as [n]; reference them by number when you draw on them. If the context does not cover the question, say so rather than inventing details.`

// intentInstructions maps each intent to its instruction block.
var intentInstructions = map[Intent]string{
	IntentComparative:    "Compare the items the user asks about point by point. Ground each side of the comparison in the cited context and state where the context is silent.",
	IntentConversational: "Respond naturally and briefly. Use the context only if it is clearly relevant to the conversation.",
	IntentFactual:        "Answer with the specific fact requested. Cite the context item that supports it. If the context conflicts, prefer the most recent item.",
	IntentHybrid:         "Combine the relevant context with general knowledge, keeping the two clearly distinguished. Cite context where used.",
	IntentListBuilding:   "Build the requested list from the cited context, one item per line with its citation. Note when the list may be incomplete.",
	IntentSemantic:       "Focus on meaning and similarity. Explain how the cited context relates to the user's query.",
	IntentTemporal:       "Order your answer by time. Anchor each statement to when it was discussed, using the cited context's timestamps.",
}

// intentForCategory maps a classification category to a prompt intent.
func intentForCategory(category Category) Intent {
	switch category {
	case CategoryConversational:
		return IntentConversational
	case CategoryFactual:
		return IntentFactual
	case CategoryTemporal:
		return IntentTemporal
	case CategorySemantic:
		return IntentSemantic
	case CategoryComplex:
		return IntentComparative
	default:
		return IntentHybrid
	}
}

// PromptBuilder assembles the final prompt with citation anchors.
type PromptBuilder struct {
	config    config.PromptConfig
	estimator tokens.Estimator
}

// NewPromptBuilder creates a PromptBuilder. estimator may be nil.
func NewPromptBuilder(cfg config.PromptConfig, estimator tokens.Estimator) *PromptBuilder {
	if estimator == nil {
		estimator = tokens.NewCharEstimator(cfg.CharsPerToken)
	}
	return &PromptBuilder{
		config:    cfg,
		estimator: estimator,
	}
}

// Build assembles the prompt from the fitted context. instructions
// overrides the intent table when non-empty.
func (b *PromptBuilder) Build(query string, fitted *FittedContext, intent Intent, instructions string) *BuiltPrompt {
	citations := b.buildCitations(fitted)

	var sb strings.Builder
	sb.WriteString(basePrompt)
	sb.WriteString("\n\n")

	if len(citations) > 0 && b.includeCitations() {
		sb.WriteString("Context:\n")
		for _, c := range citations {
			sb.WriteString(fmt.Sprintf("[%d] %s\n", c.ID, c.Content))
		}
		sb.WriteString("\n")
	}

	if instructions == "" {
		instructions = intentInstructions[intent]
	}
	if instructions != "" {
		sb.WriteString("Instructions: ")
		sb.WriteString(instructions)
		sb.WriteString("\n\n")
	}

	sb.WriteString("User query: ")
	sb.WriteString(query)

	text := sb.String()

	contextItems := 0
	if fitted != nil {
		contextItems = len(fitted.Results)
	}

	return &BuiltPrompt{
		Text:      text,
		Citations: citations,
		Metadata: PromptMetadata{
			CitationCount:    len(citations),
			ContextItems:     contextItems,
			EstimatedTokens:  b.estimator.Estimate(text),
			IncludeCitations: b.includeCitations(),
		},
	}
}

func (b *PromptBuilder) includeCitations() bool {
	return b.config.IncludeCitations == nil || *b.config.IncludeCitations
}

// buildCitations emits 1-indexed, dense citations for the fitted
// results, truncating content to the configured maximum.
func (b *PromptBuilder) buildCitations(fitted *FittedContext) []Citation {
	if fitted == nil || len(fitted.Results) == 0 {
		return nil
	}

	citations := make([]Citation, 0, len(fitted.Results))
	for i, result := range fitted.Results {
		content := result.Result.Payload.Content
		if b.config.MaxCitationLength > 0 && len(content) > b.config.MaxCitationLength {
			content = truncateText(content, b.config.MaxCitationLength) + "..."
		}
		citations = append(citations, Citation{
			ID:        i + 1,
			Content:   content,
			MessageID: result.Result.ID,
			Relevance: result.Score,
			Timestamp: result.Result.Payload.Timestamp,
		})
	}
	return citations
}
