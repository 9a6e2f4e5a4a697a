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

package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/recall/pkg/config"
	"github.com/kadirpekel/recall/pkg/memory"
	"github.com/kadirpekel/recall/pkg/rag"
	"github.com/kadirpekel/recall/pkg/testutils"
)

// newTestServer wires the server over mock providers. The nil LLM
// drives every stage through its heuristic fallback, which is enough
// for handler-level tests.
func newTestServer(t *testing.T) (*Server, *testutils.MockStore) {
	t.Helper()

	cfg := config.Default()
	db := testutils.NewMockStore()
	embedder := testutils.NewMockEmbedder()

	orchestrator := rag.NewOrchestrator(nil, embedder, db, nil, cfg)
	store := memory.NewStore(db, embedder, cfg.VectorStore.Collection)
	orchestrator.SetGradingSink(store)

	return New(orchestrator, store, nil, nil, cfg.Server), db
}

func doRequest(s *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doRequest(s, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status": "ok"}`, rec.Body.String())
}

func TestQueryFastPath(t *testing.T) {
	s, db := newTestServer(t)

	rec := doRequest(s, http.MethodPost, "/v1/query", rag.QueryRequest{
		Query:  "hello there",
		UserID: "u1",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp rag.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, rag.PathFast, resp.PathTaken)
	assert.Equal(t, 0.5, resp.Confidence)
	assert.Equal(t, 0, db.SearchCalls())
}

func TestQueryRetrievalPath(t *testing.T) {
	s, db := newTestServer(t)
	db.Results = nil

	rec := doRequest(s, http.MethodPost, "/v1/query", rag.QueryRequest{
		Query:  "What did we discuss last time?",
		UserID: "u1",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp rag.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	// Temporal queries stay on the fast path but still hit the store.
	assert.Equal(t, rag.PathFast, resp.PathTaken)
	assert.Greater(t, db.SearchCalls(), 0)
}

func TestQueryMissingFields(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doRequest(s, http.MethodPost, "/v1/query", rag.QueryRequest{Query: "no user"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(s, http.MethodPost, "/v1/query", rag.QueryRequest{UserID: "no query"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestQueryStoreFailure(t *testing.T) {
	s, db := newTestServer(t)
	db.SearchErr = fmt.Errorf("store offline")

	rec := doRequest(s, http.MethodPost, "/v1/query", rag.QueryRequest{
		Query:  "What did we discuss last time?",
		UserID: "u1",
	})
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestStoreMessageAndFeedback(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doRequest(s, http.MethodPost, "/v1/messages", rag.MessagePayload{
		Content: "the deploy finished at noon",
		UserID:  "u1",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var created struct {
		MessageID string `json:"message_id"`
		Success   bool   `json:"success"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.True(t, created.Success)
	require.NotEmpty(t, created.MessageID)

	rec = doRequest(s, http.MethodPost, "/v1/messages/"+created.MessageID+"/feedback",
		map[string]string{"feedback": "success"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestStoreMessageValidation(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doRequest(s, http.MethodPost, "/v1/messages", rag.MessagePayload{UserID: "u1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFeedbackInvalidVerdict(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doRequest(s, http.MethodPost, "/v1/messages/some-id/feedback",
		map[string]string{"feedback": "amazing"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestForgetRequiresUserID(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doRequest(s, http.MethodDelete, "/v1/memory", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(s, http.MethodDelete, "/v1/memory?user_id=u1", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCacheStatsDisabled(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doRequest(s, http.MethodGet, "/v1/cache/stats", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
