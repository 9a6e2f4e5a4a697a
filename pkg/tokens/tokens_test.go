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

package tokens

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCharEstimator(t *testing.T) {
	e := NewCharEstimator(4)

	tests := []struct {
		text string
		want int
	}{
		{"", 0},
		{"a", 1},
		{"abcd", 1},
		{"abcde", 2},
		{strings.Repeat("x", 400), 100},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, e.Estimate(tt.text), "text length %d", len(tt.text))
	}
}

func TestCharEstimatorInvalidDivisorFallsBack(t *testing.T) {
	e := NewCharEstimator(0)
	assert.Equal(t, 4, e.CharsPerToken)

	e = NewCharEstimator(-2)
	assert.Equal(t, 4, e.CharsPerToken)
}

func TestCharEstimatorMonotone(t *testing.T) {
	e := NewCharEstimator(4)

	prev := 0
	for i := 1; i <= 64; i *= 2 {
		got := e.Estimate(strings.Repeat("a", i))
		assert.GreaterOrEqual(t, got, prev)
		prev = got
	}
}
