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

// Package memory stores conversation turns in the vector index and
// applies grading feedback to stored metadata.
package memory

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kadirpekel/recall/pkg/databases"
	"github.com/kadirpekel/recall/pkg/embedders"
	"github.com/kadirpekel/recall/pkg/rag"
)

// Store persists message payloads as embedded points in the vector
// store. It implements rag.GradingSink so quality gradings flow back
// into stored metadata.
type Store struct {
	db         databases.Provider
	embedder   embedders.Provider
	collection string
	now        func() time.Time
}

// NewStore creates a Store over the given collection.
func NewStore(db databases.Provider, embedder embedders.Provider, collection string) *Store {
	return &Store{
		db:         db,
		embedder:   embedder,
		collection: collection,
		now:        time.Now,
	}
}

// Remember embeds and upserts one conversation turn. Returns the
// generated message id.
func (s *Store) Remember(ctx context.Context, payload rag.MessagePayload) (string, error) {
	if payload.Content == "" {
		return "", fmt.Errorf("message content cannot be empty")
	}
	if payload.UserID == "" {
		return "", fmt.Errorf("user id cannot be empty")
	}
	if payload.Role == "" {
		payload.Role = rag.RoleUser
	}
	if payload.Timestamp.IsZero() {
		payload.Timestamp = s.now()
	}

	vector, err := s.embedder.Embed(ctx, payload.Content)
	if err != nil {
		return "", fmt.Errorf("failed to embed message: %w", err)
	}

	messageID := uuid.NewString()
	if err := s.db.Upsert(ctx, s.collection, messageID, vector, metadataFromPayload(payload)); err != nil {
		return "", fmt.Errorf("failed to store message: %w", err)
	}

	slog.Debug("Message stored",
		"message_id", messageID,
		"user_id", payload.UserID,
		"role", payload.Role)
	return messageID, nil
}

// RecordFeedback sets the user feedback verdict on a stored message.
func (s *Store) RecordFeedback(ctx context.Context, messageID string, feedback rag.Feedback) error {
	switch feedback {
	case rag.FeedbackSuccess, rag.FeedbackFailure, rag.FeedbackNeutral:
	default:
		return fmt.Errorf("invalid feedback %q (valid: success, failure, neutral)", feedback)
	}

	return s.updateMetadata(ctx, messageID, map[string]interface{}{
		"feedback": string(feedback),
	})
}

// ApplyGrading implements rag.GradingSink: it folds the grading scores
// and extracted entities into the stored message's metadata.
func (s *Store) ApplyGrading(ctx context.Context, messageID string, grading *rag.Grading) error {
	updates := map[string]interface{}{
		"quality_score":        grading.Overall,
		"quality_relevance":    grading.Relevance,
		"quality_completeness": grading.Completeness,
		"quality_clarity":      grading.Clarity,
	}
	if len(grading.Entities) > 0 {
		updates["entities"] = grading.Entities
	}
	if len(grading.Keywords) > 0 {
		updates["keywords"] = grading.Keywords
	}
	return s.updateMetadata(ctx, messageID, updates)
}

// updateMetadata read-modify-writes a stored point's metadata, keeping
// its vector.
func (s *Store) updateMetadata(ctx context.Context, messageID string, updates map[string]interface{}) error {
	point, err := s.db.Get(ctx, s.collection, messageID)
	if err != nil {
		return fmt.Errorf("failed to load message %s: %w", messageID, err)
	}
	if point == nil {
		return fmt.Errorf("message %s not found", messageID)
	}

	metadata := point.Metadata
	if metadata == nil {
		metadata = make(map[string]interface{})
	}
	for k, v := range updates {
		metadata[k] = v
	}

	if err := s.db.Upsert(ctx, s.collection, messageID, point.Vector, metadata); err != nil {
		return fmt.Errorf("failed to update message %s: %w", messageID, err)
	}
	return nil
}

// Forget removes all messages for a user, optionally narrowed to one
// session.
func (s *Store) Forget(ctx context.Context, userID, sessionID string) error {
	if userID == "" {
		return fmt.Errorf("user id cannot be empty")
	}
	filter := map[string]interface{}{"user_id": userID}
	if sessionID != "" {
		filter["session_id"] = sessionID
	}
	return s.db.DeleteByFilter(ctx, s.collection, filter)
}

// metadataFromPayload flattens a payload into store metadata. The
// timestamp is RFC3339 so it survives the string round trip.
func metadataFromPayload(p rag.MessagePayload) map[string]interface{} {
	metadata := map[string]interface{}{
		"content":    p.Content,
		"role":       string(p.Role),
		"user_id":    p.UserID,
		"timestamp":  p.Timestamp.UTC().Format(time.RFC3339),
		"session_id": p.SessionID,
	}
	if len(p.Tags) > 0 {
		metadata["tags"] = normalizeTags(p.Tags)
	}
	if p.Feedback != "" {
		metadata["feedback"] = string(p.Feedback)
	}
	if p.IntentCategory != "" {
		metadata["intent_category"] = p.IntentCategory
	}
	if p.ProcessingTimeMs > 0 {
		metadata["processing_time_ms"] = p.ProcessingTimeMs
	}
	return metadata
}

func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(strings.ToLower(t))
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}
