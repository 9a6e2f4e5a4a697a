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

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/recall/pkg/config"
)

func testWindowConfig() config.WindowConfig {
	cfg := config.WindowConfig{}
	cfg.SetDefaults()
	return cfg
}

func validatedWith(contents ...string) *ValidatedContext {
	validated := &ValidatedContext{}
	for i, content := range contents {
		validated.Results = append(validated.Results, ValidationResult{
			Result: HybridResult{
				ID:      string(rune('a' + i)),
				Payload: MessagePayload{Content: content},
			},
			Score: 1 - float64(i)*0.1,
		})
	}
	return validated
}

func TestFitAllWithinBudget(t *testing.T) {
	w := NewWindowManager(testWindowConfig(), nil)

	validated := validatedWith("short one", "short two")
	fitted := w.Fit(validated, 1000)

	assert.Len(t, fitted.Results, 2)
	assert.Equal(t, 0, fitted.TruncatedCount)
	assert.Equal(t, 1000, fitted.Usage.Total)
	assert.Equal(t, 512, fitted.Usage.Reserved)
	assert.Equal(t, 488, fitted.Usage.Available)
}

func TestFitStopsAtBudget(t *testing.T) {
	w := NewWindowManager(testWindowConfig(), nil)

	// 4 chars per token: each 400-char message costs 100 tokens.
	long := strings.Repeat("x", 400)
	validated := validatedWith(long, long, long, long, long)

	// total 800, reserved 512 -> 288 available -> two messages fit.
	fitted := w.Fit(validated, 800)

	assert.Len(t, fitted.Results, 2)
	assert.Equal(t, 3, fitted.TruncatedCount)
	assert.Equal(t, 200, fitted.Usage.Used)
}

func TestFitIsPrefixOfValidated(t *testing.T) {
	w := NewWindowManager(testWindowConfig(), nil)

	validated := validatedWith(
		strings.Repeat("a", 40),
		strings.Repeat("b", 4000),
		strings.Repeat("c", 40),
	)

	// The second message blows the budget; the walk stops there even
	// though the third would fit.
	fitted := w.Fit(validated, 600)

	require.Len(t, fitted.Results, 1)
	assert.Equal(t, validated.Results[0], fitted.Results[0])
	assert.Equal(t, 2, fitted.TruncatedCount)
}

func TestFitZeroBudgetEmptiesContext(t *testing.T) {
	cfg := config.WindowConfig{
		MaxContextTokens:  1024,
		MinResponseTokens: 512,
		ReservedTokens:    512,
		CharsPerToken:     4,
	}
	w := NewWindowManager(cfg, nil)

	var contents []string
	for i := 0; i < 20; i++ {
		contents = append(contents, "message")
	}
	validated := validatedWith(contents...)

	// 1024 - 512 - 512 = 0 available: nothing fits.
	fitted := w.Fit(validated, 0)

	assert.Empty(t, fitted.Results)
	assert.Equal(t, 20, fitted.TruncatedCount)
	assert.Equal(t, 0, fitted.Usage.Available)
}

func TestFitDefaultBudgetFromConfig(t *testing.T) {
	w := NewWindowManager(testWindowConfig(), nil)

	fitted := w.Fit(validatedWith("hello"), 0)
	// 8192 - 1024 = 7168 total, minus 512 reserved.
	assert.Equal(t, 7168, fitted.Usage.Total)
	assert.Equal(t, 6656, fitted.Usage.Available)
	assert.Len(t, fitted.Results, 1)
}

func TestFitUtilization(t *testing.T) {
	w := NewWindowManager(testWindowConfig(), nil)

	// 400 chars = 100 tokens against 488 available.
	fitted := w.Fit(validatedWith(strings.Repeat("x", 400)), 1000)
	assert.InDelta(t, 100.0/488.0, fitted.Usage.Utilization, 1e-9)
}

func TestFitEmptyValidated(t *testing.T) {
	w := NewWindowManager(testWindowConfig(), nil)

	fitted := w.Fit(&ValidatedContext{}, 1000)
	assert.Empty(t, fitted.Results)
	assert.Equal(t, 0, fitted.TruncatedCount)
}
