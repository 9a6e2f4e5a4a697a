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

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, VectorStoreTypeChromem, cfg.VectorStore.Type)
	assert.Equal(t, "messages", cfg.VectorStore.Collection)
	assert.Equal(t, 7, cfg.Pipeline.Router.ComplexityThreshold)
	assert.InDelta(t, 0.6, cfg.Pipeline.Retriever.DenseWeight, 1e-9)
	assert.InDelta(t, 0.4, cfg.Pipeline.Retriever.BM25Weight, 1e-9)
	assert.Equal(t, 1.5, cfg.Pipeline.Retriever.BM25K1)
	assert.Equal(t, 0.75, cfg.Pipeline.Retriever.BM25B)
}

func TestParseAppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
vector_store:
  type: chromem
pipeline:
  router:
    complexity_threshold: 5
`))
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Pipeline.Router.ComplexityThreshold)
	// Untouched sections are still defaulted.
	assert.Equal(t, 50, cfg.Pipeline.Retriever.MaxResultsPerQuery)
	assert.Equal(t, 8192, cfg.Pipeline.Window.MaxContextTokens)
}

func TestParseDurations(t *testing.T) {
	cfg, err := Parse([]byte(`
pipeline:
  cache:
    default_ttl: 10m
  retriever:
    temporal_thresholds:
      recent: 2h
`))
	require.NoError(t, err)

	assert.Equal(t, 10*time.Minute, cfg.Pipeline.Cache.DefaultTTL.Std())
	assert.Equal(t, 2*time.Hour, cfg.Pipeline.Retriever.TemporalThresholds.Recent.Std())
}

func TestParseRejectsBadWeights(t *testing.T) {
	_, err := Parse([]byte(`
pipeline:
  retriever:
    dense_weight: 0.9
    bm25_weight: 0.4
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must equal 1.0")
}

func TestParseRejectsUnknownVectorStore(t *testing.T) {
	_, err := Parse([]byte(`
vector_store:
  type: pinecone
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid vector store type")
}

func TestParseQdrantRequiresHost(t *testing.T) {
	_, err := Parse([]byte(`
vector_store:
  type: qdrant
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "host is required")
}

func TestParseExpandsEnvVars(t *testing.T) {
	t.Setenv("RECALL_TEST_KEY", "sk-12345")

	cfg, err := Parse([]byte(`
llm:
  provider: openai
  api_key: ${RECALL_TEST_KEY}
`))
	require.NoError(t, err)
	assert.Equal(t, "sk-12345", cfg.LLM.APIKey)
}

func TestParseMissingEnvVarExpandsEmpty(t *testing.T) {
	cfg, err := Parse([]byte(`
vector_store:
  persist_path: ${RECALL_DEFINITELY_UNSET_VAR}
`))
	require.NoError(t, err)
	assert.Empty(t, cfg.VectorStore.PersistPath)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
vector_store:
  type: chromem
  collection: notes
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "notes", cfg.VectorStore.Collection)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	assert.ErrorContains(t, err, "failed to read config file")
}

func TestWindowTokenizerDefaultsToChars(t *testing.T) {
	cfg := Default()
	assert.Equal(t, TokenizerChars, cfg.Pipeline.Window.Tokenizer)
}

func TestWindowTokenizerAcceptsTiktoken(t *testing.T) {
	cfg, err := Parse([]byte(`
pipeline:
  window:
    tokenizer: tiktoken
    tokenizer_model: gpt-4o
`))
	require.NoError(t, err)
	assert.Equal(t, TokenizerTiktoken, cfg.Pipeline.Window.Tokenizer)
	assert.Equal(t, "gpt-4o", cfg.Pipeline.Window.TokenizerModel)
}

func TestWindowTokenizerRejectsUnknown(t *testing.T) {
	_, err := Parse([]byte(`
pipeline:
  window:
    tokenizer: sentencepiece
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid tokenizer")
}

func TestRouterConfigValidatesThreshold(t *testing.T) {
	cfg := RouterConfig{}
	cfg.SetDefaults()
	cfg.ComplexityThreshold = 11
	assert.Error(t, cfg.Validate())
}

func TestGraderWeightsMustSumToOne(t *testing.T) {
	cfg := GraderConfig{}
	cfg.SetDefaults()
	require.NoError(t, cfg.Validate())

	cfg.Weights = GraderWeights{Relevance: 0.5, Completeness: 0.5, Clarity: 0.5}
	assert.Error(t, cfg.Validate())
}
