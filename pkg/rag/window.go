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
	"github.com/kadirpekel/recall/pkg/config"
	"github.com/kadirpekel/recall/pkg/tokens"
)

// WindowManager packs the highest-scoring validated results into the
// token budget. Fitted results are always a prefix of the validated
// list.
type WindowManager struct {
	config    config.WindowConfig
	estimator tokens.Estimator
}

// NewWindowManager creates a WindowManager. estimator may be nil, in
// which case a character-based estimator from the config is used.
func NewWindowManager(cfg config.WindowConfig, estimator tokens.Estimator) *WindowManager {
	if estimator == nil {
		estimator = tokens.NewCharEstimator(cfg.CharsPerToken)
	}
	return &WindowManager{
		config:    cfg,
		estimator: estimator,
	}
}

// Fit walks the validated results in order, accumulating content
// tokens until the next addition would exceed the available budget.
// maxTokens <= 0 uses maxContextTokens - minResponseTokens.
func (w *WindowManager) Fit(validated *ValidatedContext, maxTokens int) *FittedContext {
	total := maxTokens
	if total <= 0 {
		total = w.config.MaxContextTokens - w.config.MinResponseTokens
	}
	reserved := w.config.ReservedTokens
	available := total - reserved

	usage := TokenUsage{
		Total:     total,
		Reserved:  reserved,
		Available: available,
	}

	if available <= 0 {
		usage.Available = 0
		return &FittedContext{
			TruncatedCount: len(validated.Results),
			Usage:          usage,
		}
	}

	var fitted []ValidationResult
	used := 0
	for _, result := range validated.Results {
		cost := w.estimator.Estimate(result.Result.Payload.Content)
		if used+cost > available {
			break
		}
		used += cost
		fitted = append(fitted, result)
	}

	usage.Used = used
	usage.Utilization = float64(used) / float64(available)

	return &FittedContext{
		Results:        fitted,
		TruncatedCount: len(validated.Results) - len(fitted),
		Usage:          usage,
	}
}
