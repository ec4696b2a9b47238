// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Chunk read results.
const (
	ResultSuccess = "success"
	ResultMissing = "missing"
	ResultError   = "error"
)

var (
	// StoreChunkRequests counts chunk reads against a store backend.
	StoreChunkRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "meamovie_store_chunk_requests_total",
		Help: "Chunk reads by store backend and result",
	}, []string{"backend", "result"})

	// StoreChunkDuration tracks chunk fetch latency.
	StoreChunkDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "meamovie_store_chunk_duration_seconds",
		Help:    "Time to fetch one chunk from the store backend",
		Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"backend"})

	// ChunkCacheTotal counts chunk cache lookups by outcome.
	ChunkCacheTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "meamovie_chunk_cache_total",
		Help: "Chunk cache lookups by backend and outcome (hit, miss, error)",
	}, []string{"backend", "outcome"})
)

// ObserveStoreChunk records one chunk read.
func ObserveStoreChunk(backend, result string, d time.Duration) {
	StoreChunkRequests.WithLabelValues(backend, result).Inc()
	StoreChunkDuration.WithLabelValues(backend).Observe(d.Seconds())
}

// IncChunkCache records a cache lookup outcome.
func IncChunkCache(backend, outcome string) {
	ChunkCacheTotal.WithLabelValues(backend, outcome).Inc()
}
