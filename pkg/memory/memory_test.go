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

package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/recall/pkg/rag"
	"github.com/kadirpekel/recall/pkg/testutils"
)

func newTestStore() (*Store, *testutils.MockStore) {
	db := testutils.NewMockStore()
	return NewStore(db, testutils.NewMockEmbedder(), "messages"), db
}

func TestRememberStoresMessage(t *testing.T) {
	store, db := newTestStore()

	id, err := store.Remember(context.Background(), rag.MessagePayload{
		Content:   "the server uses port 8080",
		UserID:    "u1",
		SessionID: "s1",
		Tags:      []string{" Work ", "URGENT"},
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	point, err := db.Get(context.Background(), "messages", id)
	require.NoError(t, err)
	require.NotNil(t, point)

	assert.Equal(t, "the server uses port 8080", point.Metadata["content"])
	assert.Equal(t, "u1", point.Metadata["user_id"])
	assert.Equal(t, "s1", point.Metadata["session_id"])
	assert.Equal(t, string(rag.RoleUser), point.Metadata["role"])
	assert.Equal(t, []string{"work", "urgent"}, point.Metadata["tags"])
	assert.NotEmpty(t, point.Vector)

	ts, ok := point.Metadata["timestamp"].(string)
	require.True(t, ok)
	parsed, err := time.Parse(time.RFC3339, ts)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), parsed, time.Minute)
}

func TestRememberValidation(t *testing.T) {
	store, _ := newTestStore()

	_, err := store.Remember(context.Background(), rag.MessagePayload{UserID: "u1"})
	assert.ErrorContains(t, err, "content")

	_, err = store.Remember(context.Background(), rag.MessagePayload{Content: "hello"})
	assert.ErrorContains(t, err, "user id")
}

func TestRememberEmbeddingFailure(t *testing.T) {
	db := testutils.NewMockStore()
	embedder := testutils.NewMockEmbedder()
	embedder.FailOn["poisoned"] = true
	store := NewStore(db, embedder, "messages")

	_, err := store.Remember(context.Background(), rag.MessagePayload{Content: "poisoned", UserID: "u1"})
	assert.ErrorContains(t, err, "embed")
}

func TestRecordFeedback(t *testing.T) {
	store, db := newTestStore()

	id, err := store.Remember(context.Background(), rag.MessagePayload{Content: "a fact", UserID: "u1"})
	require.NoError(t, err)

	require.NoError(t, store.RecordFeedback(context.Background(), id, rag.FeedbackSuccess))

	point, err := db.Get(context.Background(), "messages", id)
	require.NoError(t, err)
	assert.Equal(t, "success", point.Metadata["feedback"])
	// The rest of the metadata survives the update.
	assert.Equal(t, "a fact", point.Metadata["content"])
}

func TestRecordFeedbackInvalidVerdict(t *testing.T) {
	store, _ := newTestStore()

	err := store.RecordFeedback(context.Background(), "any", rag.Feedback("great"))
	assert.ErrorContains(t, err, "invalid feedback")
}

func TestRecordFeedbackUnknownMessage(t *testing.T) {
	store, _ := newTestStore()

	err := store.RecordFeedback(context.Background(), "missing", rag.FeedbackNeutral)
	assert.ErrorContains(t, err, "not found")
}

func TestApplyGrading(t *testing.T) {
	store, db := newTestStore()

	id, err := store.Remember(context.Background(), rag.MessagePayload{Content: "a graded answer", UserID: "u1"})
	require.NoError(t, err)

	grading := &rag.Grading{
		Relevance:    0.8,
		Completeness: 0.6,
		Clarity:      1.0,
		Overall:      0.8,
		Entities:     []string{"server"},
		Keywords:     []string{"port"},
	}
	require.NoError(t, store.ApplyGrading(context.Background(), id, grading))

	point, err := db.Get(context.Background(), "messages", id)
	require.NoError(t, err)
	assert.Equal(t, 0.8, point.Metadata["quality_score"])
	assert.Equal(t, 0.8, point.Metadata["quality_relevance"])
	assert.Equal(t, 0.6, point.Metadata["quality_completeness"])
	assert.Equal(t, 1.0, point.Metadata["quality_clarity"])
	assert.Equal(t, []string{"server"}, point.Metadata["entities"])
	assert.Equal(t, []string{"port"}, point.Metadata["keywords"])
}

func TestForget(t *testing.T) {
	store, db := newTestStore()

	keep, err := store.Remember(context.Background(), rag.MessagePayload{Content: "other user", UserID: "u2"})
	require.NoError(t, err)
	gone, err := store.Remember(context.Background(), rag.MessagePayload{Content: "mine", UserID: "u1"})
	require.NoError(t, err)

	require.NoError(t, store.Forget(context.Background(), "u1", ""))

	point, err := db.Get(context.Background(), "messages", gone)
	require.NoError(t, err)
	assert.Nil(t, point)

	point, err = db.Get(context.Background(), "messages", keep)
	require.NoError(t, err)
	assert.NotNil(t, point)
}

func TestForgetScopedToSession(t *testing.T) {
	store, db := newTestStore()

	inSession, err := store.Remember(context.Background(), rag.MessagePayload{Content: "session turn", UserID: "u1", SessionID: "s1"})
	require.NoError(t, err)
	otherSession, err := store.Remember(context.Background(), rag.MessagePayload{Content: "other turn", UserID: "u1", SessionID: "s2"})
	require.NoError(t, err)

	require.NoError(t, store.Forget(context.Background(), "u1", "s1"))

	point, err := db.Get(context.Background(), "messages", inSession)
	require.NoError(t, err)
	assert.Nil(t, point)

	point, err = db.Get(context.Background(), "messages", otherSession)
	require.NoError(t, err)
	assert.NotNil(t, point)
}

func TestForgetRequiresUser(t *testing.T) {
	store, _ := newTestStore()
	assert.Error(t, store.Forget(context.Background(), "", ""))
}
