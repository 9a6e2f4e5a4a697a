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
	"time"

	"github.com/kadirpekel/recall/pkg/config"
)

// TemporalScope restricts retrieval to a named time window.
type TemporalScope string

const (
	ScopeLastMessage TemporalScope = "last_message"
	ScopeRecent      TemporalScope = "recent"
	ScopeSession     TemporalScope = "session"
	ScopeAllTime     TemporalScope = "all_time"
)

// SearchFilters narrow a retrieval pass. SessionID and RequiredTags are
// also pushed down to the vector store; everything else is applied
// client-side.
type SearchFilters struct {
	SessionID     string        `json:"session_id,omitempty"`
	TemporalScope TemporalScope `json:"temporal_scope,omitempty"`
	RequiredTags  []string      `json:"required_tags,omitempty"`
	ExcludedTags  []string      `json:"excluded_tags,omitempty"`
	Role          Role          `json:"role,omitempty"`
	MinQuality    bool          `json:"min_quality,omitempty"`
}

// storeFilter builds the filter map pushed down to the vector store.
func (f SearchFilters) storeFilter() map[string]interface{} {
	filter := make(map[string]interface{})
	if f.SessionID != "" {
		filter["session_id"] = f.SessionID
	}
	if len(f.RequiredTags) > 0 {
		filter["tags"] = f.RequiredTags
	}
	if len(filter) == 0 {
		return nil
	}
	return filter
}

// maxAge resolves the temporal scope against configured thresholds.
// Zero means no temporal restriction.
func (f SearchFilters) maxAge(thresholds config.TemporalThresholds) time.Duration {
	switch f.TemporalScope {
	case ScopeLastMessage:
		return thresholds.LastMessage.Std()
	case ScopeRecent:
		return thresholds.Recent.Std()
	case ScopeSession:
		return thresholds.Session.Std()
	default:
		return 0
	}
}

// appliedNames lists the client-side filters this filter set will
// apply, for retrieval metadata.
func (f SearchFilters) appliedNames(thresholds config.TemporalThresholds) []string {
	var applied []string
	if f.maxAge(thresholds) > 0 {
		applied = append(applied, "temporal:"+string(f.TemporalScope))
	}
	if len(f.RequiredTags) > 0 {
		applied = append(applied, "required_tags")
	}
	if len(f.ExcludedTags) > 0 {
		applied = append(applied, "excluded_tags")
	}
	if f.Role != "" {
		applied = append(applied, "role")
	}
	if f.MinQuality {
		applied = append(applied, "min_quality")
	}
	return applied
}

// applyClientFilters drops results the store-side filter cannot
// express: temporal scope, required tags (AND), excluded tags, role,
// and min-quality (feedback = failure). Returns the surviving results
// and the names of the filters that were applied.
func applyClientFilters(results []HybridResult, f SearchFilters, thresholds config.TemporalThresholds, now time.Time) ([]HybridResult, []string) {
	applied := f.appliedNames(thresholds)
	if len(applied) == 0 {
		return results, nil
	}

	maxAge := f.maxAge(thresholds)

	filtered := make([]HybridResult, 0, len(results))
	for _, r := range results {
		if maxAge > 0 && now.Sub(r.Payload.Timestamp) > maxAge {
			continue
		}
		if !hasAllTags(r.Payload.Tags, f.RequiredTags) {
			continue
		}
		if hasAnyTag(r.Payload.Tags, f.ExcludedTags) {
			continue
		}
		if f.Role != "" && r.Payload.Role != f.Role {
			continue
		}
		if f.MinQuality && r.Payload.Feedback == FeedbackFailure {
			continue
		}
		filtered = append(filtered, r)
	}

	return filtered, applied
}

func hasAllTags(tags, required []string) bool {
	for _, want := range required {
		found := false
		for _, t := range tags {
			if t == want {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func hasAnyTag(tags, excluded []string) bool {
	for _, bad := range excluded {
		for _, t := range tags {
			if t == bad {
				return true
			}
		}
	}
	return false
}
