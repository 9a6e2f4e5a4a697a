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

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/recall/pkg/testutils"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			"raw object",
			`{"a": 1}`,
			`{"a": 1}`,
		},
		{
			"fenced json block",
			"```json\n{\"a\": 1}\n```",
			`{"a": 1}`,
		},
		{
			"fenced plain block",
			"```\n{\"a\": 1}\n```",
			`{"a": 1}`,
		},
		{
			"leading prose",
			`Here is the classification: {"category": "factual"} hope that helps`,
			`{"category": "factual"}`,
		},
		{
			"nested object",
			`{"a": {"b": 2}}`,
			`{"a": {"b": 2}}`,
		},
		{
			"array",
			`["x", "y"]`,
			`["x", "y"]`,
		},
		{
			"braces inside strings",
			`{"text": "curly } inside"}`,
			`{"text": "curly } inside"}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractJSON(tt.input))
		})
	}
}

func TestGenerateJSON(t *testing.T) {
	llm := testutils.NewMockLLM().Enqueue("```json\n{\"score\": 0.8}\n```")

	var out struct {
		Score float64 `json:"score"`
	}
	err := generateJSON(context.Background(), llm, "", "prompt", 0.1, 100, &out)
	require.NoError(t, err)
	assert.Equal(t, 0.8, out.Score)
}

func TestGenerateJSONCompletionError(t *testing.T) {
	llm := testutils.NewMockLLM().EnqueueError(fmt.Errorf("boom"))

	var out map[string]interface{}
	err := generateJSON(context.Background(), llm, "", "prompt", 0.1, 100, &out)
	assert.Error(t, err)
}

func TestGenerateJSONUnparseable(t *testing.T) {
	llm := testutils.NewMockLLM().Enqueue("I cannot answer in JSON, sorry.")

	var out struct {
		Score float64 `json:"score"`
	}
	err := generateJSON(context.Background(), llm, "", "prompt", 0.1, 100, &out)
	assert.Error(t, err)
}
