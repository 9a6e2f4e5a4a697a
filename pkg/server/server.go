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

// Package server fronts the pipeline with an HTTP API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kadirpekel/recall/pkg/cache"
	"github.com/kadirpekel/recall/pkg/config"
	"github.com/kadirpekel/recall/pkg/memory"
	"github.com/kadirpekel/recall/pkg/metrics"
	"github.com/kadirpekel/recall/pkg/rag"
)

// Server exposes the orchestrator and message store over HTTP.
type Server struct {
	orchestrator *rag.Orchestrator
	store        *memory.Store
	cache        *cache.Cache
	metrics      *metrics.Metrics
	config       config.ServerConfig

	httpServer *http.Server
}

// New creates a Server. cache and m may be nil.
func New(orchestrator *rag.Orchestrator, store *memory.Store, c *cache.Cache, m *metrics.Metrics, cfg config.ServerConfig) *Server {
	s := &Server{
		orchestrator: orchestrator,
		store:        store,
		cache:        c,
		metrics:      m,
		config:       cfg,
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(cfg.RequestTimeout.Std()))

	router.Get("/healthz", s.handleHealth)
	if m != nil {
		router.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}))
	}

	router.Route("/v1", func(r chi.Router) {
		r.Post("/query", s.handleQuery)
		r.Post("/messages", s.handleStoreMessage)
		r.Post("/messages/{id}/feedback", s.handleFeedback)
		r.Get("/cache/stats", s.handleCacheStats)
		r.Delete("/memory", s.handleForget)
	})

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

// Start listens until the context is cancelled, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req rag.QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	if req.Query == "" || req.UserID == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("query and user_id are required"))
		return
	}

	start := time.Now()
	response, err := s.orchestrator.Process(r.Context(), req)
	if err != nil {
		if s.metrics != nil {
			s.metrics.QueryErrors.Inc()
		}
		slog.Error("Query processing failed", "error", err)
		writeError(w, http.StatusBadGateway, err)
		return
	}

	if s.metrics != nil {
		s.metrics.QueriesTotal.WithLabelValues(string(response.PathTaken)).Inc()
		s.metrics.QueryDuration.WithLabelValues(string(response.PathTaken)).Observe(time.Since(start).Seconds())
		s.metrics.ResultsRetrieved.Observe(float64(response.ContextStats.Retrieved))
	}

	writeJSON(w, http.StatusOK, response)
}

type storeMessageRequest struct {
	rag.MessagePayload
}

type storeMessageResponse struct {
	MessageID string `json:"message_id"`
	Success   bool   `json:"success"`
}

func (s *Server) handleStoreMessage(w http.ResponseWriter, r *http.Request) {
	var req storeMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	messageID, err := s.store.Remember(r.Context(), req.MessagePayload)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if s.metrics != nil {
		s.metrics.MessagesStored.Inc()
	}
	writeJSON(w, http.StatusCreated, storeMessageResponse{MessageID: messageID, Success: true})
}

type feedbackRequest struct {
	Feedback rag.Feedback `json:"feedback"`
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	messageID := chi.URLParam(r, "id")

	var req feedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	if err := s.store.RecordFeedback(r.Context(), messageID, req.Feedback); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	if s.cache == nil {
		writeError(w, http.StatusNotFound, fmt.Errorf("cache is disabled"))
		return
	}
	writeJSON(w, http.StatusOK, s.cache.Stats())
}

func (s *Server) handleForget(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	sessionID := r.URL.Query().Get("session_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("user_id is required"))
		return
	}

	if err := s.store.Forget(r.Context(), userID, sessionID); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
