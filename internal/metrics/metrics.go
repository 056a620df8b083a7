package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "chunkd"

// Merge outcomes.
const (
	OutcomeSuccess          = "success"
	OutcomeIncomplete       = "incomplete"
	OutcomeMissingChunk     = "missing_chunk"
	OutcomeSizeMismatch     = "size_mismatch"
	OutcomeChecksumMismatch = "checksum_mismatch"
	OutcomeStorage          = "storage"
)

var (
	// ChunksReceived counts the persisted chunks.
	ChunksReceived = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "chunks_received_total",
		Help:      "Number of chunks persisted in the chunk store.",
	})

	// ChunkBytes counts the persisted chunk bytes.
	ChunkBytes = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "chunk_bytes_total",
		Help:      "Number of bytes persisted in the chunk store.",
	})

	// Merges counts the reassembly attempts by outcome.
	Merges = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "merges_total",
		Help:      "Number of reassembly attempts.",
	}, []string{"outcome"})

	// MergeDuration observes the reassembly durations.
	MergeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "merge_duration_seconds",
		Help:      "Duration of the reassemblies.",
		Buckets:   prometheus.DefBuckets,
	})

	// SessionsReaped counts the sessions removed by the reaper.
	SessionsReaped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sessions_reaped_total",
		Help:      "Number of stale sessions removed by the reaper.",
	})
)
