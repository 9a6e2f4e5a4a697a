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

// Package tokens estimates token counts for context-window fitting.
//
// The default estimator is character-based (ceil(len/charsPerToken)); a
// tiktoken-backed estimator can be swapped in where accuracy matters. Both
// satisfy the only contract the pipeline relies on: estimates are monotone
// in content length.
package tokens

import (
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// Estimator estimates the token count of a text.
type Estimator interface {
	Estimate(text string) int
}

// CharEstimator estimates ceil(len(text) / CharsPerToken).
type CharEstimator struct {
	CharsPerToken int
}

func NewCharEstimator(charsPerToken int) *CharEstimator {
	if charsPerToken <= 0 {
		charsPerToken = 4
	}
	return &CharEstimator{CharsPerToken: charsPerToken}
}

func (e *CharEstimator) Estimate(text string) int {
	if len(text) == 0 {
		return 0
	}
	return (len(text) + e.CharsPerToken - 1) / e.CharsPerToken
}

var (
	// Cache encodings to avoid repeated initialization
	encodingCache = make(map[string]*tiktoken.Tiktoken)
	cacheMu       sync.RWMutex
)

// TiktokenEstimator counts tokens with a real BPE encoding.
type TiktokenEstimator struct {
	encoding *tiktoken.Tiktoken
	model    string
}

// NewTiktokenEstimator creates an estimator for the given model, falling
// back to cl100k_base for unknown models.
func NewTiktokenEstimator(model string) (*TiktokenEstimator, error) {
	cacheMu.RLock()
	cached, exists := encodingCache[model]
	cacheMu.RUnlock()

	if exists {
		return &TiktokenEstimator{encoding: cached, model: model}, nil
	}

	encoding, err := tiktoken.EncodingForModel(model)
	if err != nil {
		encoding, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, fmt.Errorf("failed to get encoding: %w", err)
		}
	}

	cacheMu.Lock()
	encodingCache[model] = encoding
	cacheMu.Unlock()

	return &TiktokenEstimator{encoding: encoding, model: model}, nil
}

func (e *TiktokenEstimator) Estimate(text string) int {
	return len(e.encoding.Encode(text, nil, nil))
}

// Model returns the model name this estimator is configured for.
func (e *TiktokenEstimator) Model() string {
	return e.model
}
