// Package rerank re-scores an already-retrieved candidate set against the
// original query.
//
// Three interchangeable strategies share one output shape:
//
//   - Service: an external cross-attention rerank service (primary)
//   - CrossEncoder: per-pair scoring through an injected scorer
//   - BM25: pure statistical term-frequency scoring, zero dependencies
//
// Every strategy honors the same discipline: an empty input or one already
// within budget short-circuits untouched, and any upstream failure falls
// back to the chunks' pre-existing retrieval scores. Nothing in this
// package returns an error to its caller; degradation is the contract.
package rerank

import (
	"context"
	"sort"

	"github.com/JoePa99/joeupup-sub002/internal/retrieval"
)

// Result is the outcome of one rerank pass.
type Result struct {
	// Chunks is the reranked (or fallback-ordered) list, at most topN long.
	Chunks []retrieval.Chunk

	// RerankTimeMs is the wall-clock duration. Zero exactly when the pass
	// short-circuited without any scoring work.
	RerankTimeMs int64
}

// Reranker scores chunks against a query and keeps the top N.
//
// Implementations degrade internally: a failed upstream call yields the
// fallback ordering, never an error.
type Reranker interface {
	Rerank(ctx context.Context, query string, chunks []retrieval.Chunk, topN int) Result
}

// shortCircuit reports whether chunks need no reranking: nothing to
// reorder, nothing to discard.
func shortCircuit(chunks []retrieval.Chunk, topN int) bool {
	return len(chunks) == 0 || len(chunks) <= topN
}

// fallback orders chunks by their pre-existing retrieval score descending
// (ties broken by ID) and truncates to topN. This is the degraded result
// every strategy returns when its scorer is unavailable.
func fallback(chunks []retrieval.Chunk, topN int) []retrieval.Chunk {
	sorted := make([]retrieval.Chunk, len(chunks))
	copy(sorted, chunks)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Score == sorted[j].Score {
			return sorted[i].ID < sorted[j].ID
		}
		return sorted[i].Score > sorted[j].Score
	})
	if topN > 0 && len(sorted) > topN {
		sorted = sorted[:topN]
	}
	return sorted
}
