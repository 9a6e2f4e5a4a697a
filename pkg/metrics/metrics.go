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

// Package metrics exposes Prometheus instrumentation for the pipeline.
package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/kadirpekel/recall/pkg/cache"
	"github.com/kadirpekel/recall/pkg/rag"
)

// Metrics holds the pipeline's Prometheus collectors, registered on
// their own registry so tests can instantiate freely.
type Metrics struct {
	Registry *prometheus.Registry

	QueriesTotal     *prometheus.CounterVec
	QueryDuration    *prometheus.HistogramVec
	QueryErrors      prometheus.Counter
	ResultsRetrieved prometheus.Histogram
	MessagesStored   prometheus.Counter
	GradingsApplied  prometheus.Counter
}

// New creates and registers the collectors. pipelineCache may be nil;
// when set, cache hit-rate and size gauges are exported from its
// stats.
func New(pipelineCache *cache.Cache) *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	m := &Metrics{
		Registry: registry,
		QueriesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "recall",
			Name:      "queries_total",
			Help:      "Orchestration calls by path taken.",
		}, []string{"path"}),
		QueryDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "recall",
			Name:      "query_duration_seconds",
			Help:      "End-to-end orchestration latency.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}, []string{"path"}),
		QueryErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "recall",
			Name:      "query_errors_total",
			Help:      "Orchestration calls that surfaced an error.",
		}),
		ResultsRetrieved: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "recall",
			Name:      "results_retrieved",
			Help:      "Merged result count per retrieval pass.",
			Buckets:   []float64{0, 1, 5, 10, 20, 30, 50},
		}),
		MessagesStored: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "recall",
			Name:      "messages_stored_total",
			Help:      "Messages upserted into the vector store.",
		}),
		GradingsApplied: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "recall",
			Name:      "gradings_applied_total",
			Help:      "Quality gradings folded back into stored metadata.",
		}),
	}

	if pipelineCache != nil {
		factory.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "recall",
			Name:      "cache_hit_rate",
			Help:      "Pipeline cache hit rate since start.",
		}, func() float64 {
			return pipelineCache.Stats().HitRate
		})
		factory.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "recall",
			Name:      "cache_entries",
			Help:      "Current pipeline cache entry count.",
		}, func() float64 {
			return float64(pipelineCache.Stats().Size)
		})
	}

	return m
}

// WrapGradingSink decorates sink so applied gradings are counted.
func (m *Metrics) WrapGradingSink(sink rag.GradingSink) rag.GradingSink {
	return &countingGradingSink{inner: sink, counter: m.GradingsApplied}
}

type countingGradingSink struct {
	inner   rag.GradingSink
	counter prometheus.Counter
}

func (s *countingGradingSink) ApplyGrading(ctx context.Context, messageID string, grading *rag.Grading) error {
	if err := s.inner.ApplyGrading(ctx, messageID, grading); err != nil {
		return err
	}
	s.counter.Inc()
	return nil
}
