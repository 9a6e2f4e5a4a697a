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

package databases

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	chromem "github.com/philippgille/chromem-go"

	"github.com/kadirpekel/recall/pkg/config"
)

// ChromemProvider is an embedded vector store backed by chromem-go.
// It needs no external server, which makes it the default backend and
// the workhorse for tests.
type ChromemProvider struct {
	db          *chromem.DB
	persistPath string
	compress    bool

	mu          sync.RWMutex
	collections map[string]*chromem.Collection

	embeddingFunc chromem.EmbeddingFunc
}

func NewChromemProviderFromConfig(cfg *config.VectorStoreConfig) (*ChromemProvider, error) {
	var db *chromem.DB

	if cfg.PersistPath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.PersistPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create persist directory: %w", err)
		}

		dbPath := cfg.PersistPath
		if cfg.Compress && !strings.HasSuffix(dbPath, ".gz") {
			dbPath += ".gz"
		}

		if _, statErr := os.Stat(dbPath); statErr == nil {
			loaded, err := chromem.NewPersistentDB(dbPath, cfg.Compress)
			if err != nil {
				slog.Warn("Failed to load existing vector database, creating new",
					"path", dbPath,
					"error", err)
				db = chromem.NewDB()
			} else {
				slog.Info("Loaded vector database from file", "path", dbPath)
				db = loaded
			}
		} else {
			created, err := chromem.NewPersistentDB(dbPath, cfg.Compress)
			if err != nil {
				return nil, fmt.Errorf("failed to create persistent vector database: %w", err)
			}
			db = created
			slog.Info("Created new vector database", "path", dbPath)
		}
	} else {
		db = chromem.NewDB()
		slog.Debug("Created in-memory vector database (no persistence)")
	}

	// Vectors arrive pre-computed from the embedder; chromem must never
	// embed on its own.
	identityEmbed := func(ctx context.Context, text string) ([]float32, error) {
		return nil, fmt.Errorf("embedding function called but vectors should be pre-computed")
	}

	return &ChromemProvider{
		db:            db,
		persistPath:   cfg.PersistPath,
		compress:      cfg.Compress,
		collections:   make(map[string]*chromem.Collection),
		embeddingFunc: identityEmbed,
	}, nil
}

func (p *ChromemProvider) getCollection(name string) (*chromem.Collection, error) {
	p.mu.RLock()
	if col, ok := p.collections[name]; ok {
		p.mu.RUnlock()
		return col, nil
	}
	p.mu.RUnlock()

	p.mu.Lock()
	defer p.mu.Unlock()

	if col, ok := p.collections[name]; ok {
		return col, nil
	}

	col, err := p.db.GetOrCreateCollection(name, nil, p.embeddingFunc)
	if err != nil {
		return nil, fmt.Errorf("failed to get/create collection %q: %w", name, err)
	}

	p.collections[name] = col
	return col, nil
}

func (p *ChromemProvider) Upsert(ctx context.Context, collection string, id string, vector []float32, metadata map[string]interface{}) error {
	col, err := p.getCollection(collection)
	if err != nil {
		return err
	}

	// chromem metadata is string-valued; list values join with commas so
	// they survive the round trip (see splitListMetadata).
	strMetadata := make(map[string]string, len(metadata))
	for k, v := range metadata {
		switch val := v.(type) {
		case []string:
			strMetadata[k] = strings.Join(val, ",")
		default:
			strMetadata[k] = fmt.Sprint(v)
		}
	}

	content := ""
	if c, ok := metadata["content"].(string); ok {
		content = c
	}

	doc := chromem.Document{
		ID:        id,
		Content:   content,
		Metadata:  strMetadata,
		Embedding: vector,
	}

	if err := col.AddDocuments(ctx, []chromem.Document{doc}, runtime.NumCPU()); err != nil {
		return fmt.Errorf("failed to upsert document: %w", err)
	}

	return nil
}

func (p *ChromemProvider) Search(ctx context.Context, collection string, queryVector []float32, topK int) ([]SearchResult, error) {
	return p.SearchWithFilter(ctx, collection, queryVector, topK, nil)
}

func (p *ChromemProvider) SearchWithFilter(ctx context.Context, collection string, queryVector []float32, topK int, filter map[string]interface{}) ([]SearchResult, error) {
	col, err := p.getCollection(collection)
	if err != nil {
		return nil, err
	}

	count := col.Count()
	if count == 0 {
		return nil, nil
	}

	// Exact matches go to chromem's where filter; any-of list filters
	// are applied in memory after the query.
	var whereFilter map[string]string
	var listFilters map[string][]string
	for k, v := range filter {
		if keywords, ok := v.([]string); ok {
			if len(keywords) > 0 {
				if listFilters == nil {
					listFilters = make(map[string][]string)
				}
				listFilters[k] = keywords
			}
			continue
		}
		if whereFilter == nil {
			whereFilter = make(map[string]string)
		}
		whereFilter[k] = fmt.Sprint(v)
	}

	nResults := topK
	if len(listFilters) > 0 {
		nResults = count
	}
	if nResults > count {
		nResults = count
	}

	results, err := col.QueryEmbedding(ctx, queryVector, nResults, whereFilter, nil)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	out := make([]SearchResult, 0, len(results))
	for _, r := range results {
		if !matchesListFilters(r.Metadata, listFilters) {
			continue
		}

		metadata := make(map[string]interface{}, len(r.Metadata))
		for k, v := range r.Metadata {
			metadata[k] = splitListMetadata(k, v)
		}

		out = append(out, SearchResult{
			ID:       r.ID,
			Content:  r.Content,
			Vector:   r.Embedding,
			Metadata: metadata,
			Score:    r.Similarity,
		})
		if len(out) == topK {
			break
		}
	}

	return out, nil
}

// matchesListFilters reports whether the document's metadata contains
// at least one of the wanted values for every list filter.
func matchesListFilters(metadata map[string]string, listFilters map[string][]string) bool {
	for key, wanted := range listFilters {
		stored := strings.Split(metadata[key], ",")
		found := false
		for _, w := range wanted {
			for _, s := range stored {
				if s == w {
					found = true
					break
				}
			}
			if found {
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// splitListMetadata reverses the comma join applied on upsert for known
// list-valued fields.
func splitListMetadata(key, value string) interface{} {
	if key != "topics" && key != "entities" {
		return value
	}
	if value == "" {
		return []interface{}{}
	}
	parts := strings.Split(value, ",")
	list := make([]interface{}, len(parts))
	for i, p := range parts {
		list[i] = p
	}
	return list
}

func (p *ChromemProvider) Get(ctx context.Context, collection string, id string) (*SearchResult, error) {
	col, err := p.getCollection(collection)
	if err != nil {
		return nil, err
	}

	doc, err := col.GetByID(ctx, id)
	if err != nil {
		// chromem returns an error for unknown ids; treat as absent.
		return nil, nil
	}

	metadata := make(map[string]interface{}, len(doc.Metadata))
	for k, v := range doc.Metadata {
		metadata[k] = splitListMetadata(k, v)
	}

	return &SearchResult{
		ID:       doc.ID,
		Content:  doc.Content,
		Vector:   doc.Embedding,
		Metadata: metadata,
	}, nil
}

func (p *ChromemProvider) Delete(ctx context.Context, collection string, id string) error {
	col, err := p.getCollection(collection)
	if err != nil {
		return err
	}

	if err := col.Delete(ctx, nil, nil, id); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}

	return nil
}

func (p *ChromemProvider) DeleteByFilter(ctx context.Context, collection string, filter map[string]interface{}) error {
	col, err := p.getCollection(collection)
	if err != nil {
		return err
	}

	whereFilter := make(map[string]string, len(filter))
	for k, v := range filter {
		whereFilter[k] = fmt.Sprint(v)
	}

	if err := col.Delete(ctx, whereFilter, nil); err != nil {
		return fmt.Errorf("failed to delete by filter: %w", err)
	}

	return nil
}

func (p *ChromemProvider) CreateCollection(ctx context.Context, collection string, vectorSize uint64) error {
	_, err := p.getCollection(collection)
	return err
}

func (p *ChromemProvider) DeleteCollection(ctx context.Context, collection string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.db.DeleteCollection(collection); err != nil {
		return fmt.Errorf("failed to delete collection: %w", err)
	}

	delete(p.collections, collection)
	return nil
}

func (p *ChromemProvider) Close() error {
	return nil
}
