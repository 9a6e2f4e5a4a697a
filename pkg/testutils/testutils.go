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

// Package testutils provides scripted mock providers shared across
// package tests.
package testutils

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kadirpekel/recall/pkg/databases"
	"github.com/kadirpekel/recall/pkg/llms"
)

// MockLLM is a scripted llms.Provider. Responses are served by the
// handler when set, otherwise popped from the queue; an empty queue
// yields an error so component fallbacks kick in.
type MockLLM struct {
	mu      sync.Mutex
	queue   []queued
	handler func(req llms.CompletionRequest) (string, error)
	calls   int
	prompts []string
}

type queued struct {
	text string
	err  error
}

// NewMockLLM creates an empty MockLLM.
func NewMockLLM() *MockLLM {
	return &MockLLM{}
}

// Enqueue queues a successful response.
func (m *MockLLM) Enqueue(text string) *MockLLM {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, queued{text: text})
	return m
}

// EnqueueError queues a failing response.
func (m *MockLLM) EnqueueError(err error) *MockLLM {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, queued{err: err})
	return m
}

// Handle routes every completion through fn instead of the queue.
func (m *MockLLM) Handle(fn func(req llms.CompletionRequest) (string, error)) *MockLLM {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handler = fn
	return m
}

// Calls returns the completion call count.
func (m *MockLLM) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Prompts returns the prompts seen, in call order.
func (m *MockLLM) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.prompts...)
}

func (m *MockLLM) Complete(ctx context.Context, req llms.CompletionRequest) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.prompts = append(m.prompts, req.Prompt)

	if m.handler != nil {
		return m.handler(req)
	}
	if len(m.queue) == 0 {
		return "", fmt.Errorf("mock LLM: no response queued")
	}
	next := m.queue[0]
	m.queue = m.queue[1:]
	return next.text, next.err
}

func (m *MockLLM) ModelName() string { return "mock" }
func (m *MockLLM) Close() error      { return nil }

// MockEmbedder returns deterministic vectors derived from the text.
// FailOn makes specific texts error, to exercise per-variation
// degradation.
type MockEmbedder struct {
	mu     sync.Mutex
	calls  int
	FailOn map[string]bool
	Dim    int
}

// NewMockEmbedder creates a MockEmbedder with an 8-dim output.
func NewMockEmbedder() *MockEmbedder {
	return &MockEmbedder{Dim: 8, FailOn: map[string]bool{}}
}

func (m *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()

	if m.FailOn[text] {
		return nil, fmt.Errorf("mock embedder: forced failure")
	}

	vector := make([]float32, m.Dim)
	var h uint32 = 2166136261
	for _, b := range []byte(text) {
		h = (h ^ uint32(b)) * 16777619
	}
	for i := range vector {
		h = h*1664525 + 1013904223
		vector[i] = float32(h%1000) / 1000
	}
	return vector, nil
}

func (m *MockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := m.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// Calls returns the embedding call count.
func (m *MockEmbedder) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *MockEmbedder) Dimension() int    { return m.Dim }
func (m *MockEmbedder) ModelName() string { return "mock-embedder" }
func (m *MockEmbedder) Close() error      { return nil }

// MockStore is an in-memory databases.Provider. Searches return the
// scripted Results regardless of vector, truncated to topK; upserted
// points back Get.
type MockStore struct {
	mu          sync.Mutex
	Results     []databases.SearchResult
	SearchErr   error
	points      map[string]databases.SearchResult
	searchCalls int
}

// NewMockStore creates an empty MockStore.
func NewMockStore() *MockStore {
	return &MockStore{points: map[string]databases.SearchResult{}}
}

// SearchCalls returns how many searches ran.
func (m *MockStore) SearchCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.searchCalls
}

func (m *MockStore) Upsert(ctx context.Context, collection, id string, vector []float32, metadata map[string]interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	content, _ := metadata["content"].(string)
	m.points[id] = databases.SearchResult{
		ID:       id,
		Content:  content,
		Vector:   vector,
		Metadata: metadata,
	}
	return nil
}

func (m *MockStore) Search(ctx context.Context, collection string, queryVector []float32, topK int) ([]databases.SearchResult, error) {
	return m.SearchWithFilter(ctx, collection, queryVector, topK, nil)
}

func (m *MockStore) SearchWithFilter(ctx context.Context, collection string, queryVector []float32, topK int, filter map[string]interface{}) ([]databases.SearchResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.searchCalls++

	if m.SearchErr != nil {
		return nil, m.SearchErr
	}
	results := append([]databases.SearchResult(nil), m.Results...)
	if topK > 0 && len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

func (m *MockStore) Get(ctx context.Context, collection, id string) (*databases.SearchResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if point, ok := m.points[id]; ok {
		return &point, nil
	}
	return nil, nil
}

func (m *MockStore) Delete(ctx context.Context, collection, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.points, id)
	return nil
}

func (m *MockStore) DeleteByFilter(ctx context.Context, collection string, filter map[string]interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, point := range m.points {
		match := true
		for k, v := range filter {
			if point.Metadata[k] != v {
				match = false
				break
			}
		}
		if match {
			delete(m.points, id)
		}
	}
	return nil
}

func (m *MockStore) CreateCollection(ctx context.Context, collection string, vectorSize uint64) error {
	return nil
}

func (m *MockStore) DeleteCollection(ctx context.Context, collection string) error {
	return nil
}

func (m *MockStore) Close() error { return nil }

// StoredMessage builds a scripted search result with the metadata
// shape the retriever expects.
func StoredMessage(id, content string, score float32, age time.Duration) databases.SearchResult {
	return databases.SearchResult{
		ID:      id,
		Content: content,
		Score:   score,
		Metadata: map[string]interface{}{
			"content":    content,
			"role":       "user",
			"user_id":    "test-user",
			"session_id": "test-session",
			"timestamp":  time.Now().Add(-age).UTC().Format(time.RFC3339),
		},
	}
}
