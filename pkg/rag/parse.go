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
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kadirpekel/recall/pkg/llms"
)

// ExtractJSON pulls a JSON object or array out of an LLM response,
// tolerating fenced code blocks (```json or plain ```) and leading or
// trailing prose. Returns the JSON substring, or the trimmed input if
// no balanced object or array is found.
func ExtractJSON(response string) string {
	s := strings.TrimSpace(response)

	// Strip a fenced code block if present.
	if idx := strings.Index(s, "```"); idx != -1 {
		rest := s[idx+3:]
		if nl := strings.IndexByte(rest, '\n'); nl != -1 {
			// Drop the language tag line ("json", "", ...).
			rest = rest[nl+1:]
		}
		if end := strings.Index(rest, "```"); end != -1 {
			s = strings.TrimSpace(rest[:end])
		}
	}

	if sub := balancedSlice(s, '{', '}'); sub != "" {
		return sub
	}
	if sub := balancedSlice(s, '[', ']'); sub != "" {
		return sub
	}
	return s
}

// balancedSlice returns the first balanced open..close span in s.
func balancedSlice(s string, open, close byte) string {
	start := -1
	depth := 0
	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
		c := s[i]
		if escaped {
			escaped = false
			continue
		}
		switch {
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == open:
			if start == -1 {
				start = i
			}
			depth++
		case c == close:
			if start == -1 {
				continue
			}
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}

// generateJSON calls the LLM and unmarshals the JSON in its response
// into out. Callers apply their component fallback on error.
func generateJSON(ctx context.Context, llm llms.Provider, system, prompt string, temperature float64, maxTokens int, out interface{}) error {
	response, err := llm.Complete(ctx, llms.CompletionRequest{
		System:      system,
		Prompt:      prompt,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return fmt.Errorf("completion failed: %w", err)
	}

	raw := ExtractJSON(response)
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return fmt.Errorf("failed to parse JSON from response: %w", err)
	}
	return nil
}
