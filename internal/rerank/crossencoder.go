package rerank

import (
	"context"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"github.com/JoePa99/joeupup-sub002/internal/retrieval"
)

// PairScorer scores a single query/document pair. Higher is more
// relevant. Implementations wrap a locally hosted cross-encoder model.
type PairScorer interface {
	ScorePair(ctx context.Context, query, document string) (float64, error)
}

// CrossEncoder reranks by scoring every query/chunk pair through a
// PairScorer. Any scoring failure abandons the whole pass and falls back
// to retrieval-score ordering.
type CrossEncoder struct {
	scorer PairScorer
	logger *slog.Logger
}

// NewCrossEncoder creates the cross-encoder strategy. logger may be nil.
func NewCrossEncoder(scorer PairScorer, logger *slog.Logger) *CrossEncoder {
	if logger == nil {
		logger = slog.Default()
	}
	return &CrossEncoder{scorer: scorer, logger: logger}
}

// Rerank implements Reranker.
func (c *CrossEncoder) Rerank(ctx context.Context, query string, chunks []retrieval.Chunk, topN int) Result {
	if shortCircuit(chunks, topN) {
		return Result{Chunks: chunks}
	}

	start := time.Now()
	scored := make([]retrieval.Chunk, len(chunks))
	for i, chunk := range chunks {
		score, err := c.scorer.ScorePair(ctx, query, chunk.Content)
		if err != nil {
			c.logger.Warn("cross-encoder scoring failed, falling back to retrieval scores",
				"chunk_id", chunk.ID, "error", err)
			return Result{Chunks: fallback(chunks, topN), RerankTimeMs: time.Since(start).Milliseconds()}
		}
		chunk.RerankScore = &score
		chunk.Metadata = cloneMetadata(chunk.Metadata)
		chunk.Metadata["original_score"] = strconv.FormatFloat(chunk.Score, 'f', 4, 64)
		scored[i] = chunk
	}

	sortByRerankScore(scored)
	if len(scored) > topN {
		scored = scored[:topN]
	}
	return Result{Chunks: scored, RerankTimeMs: time.Since(start).Milliseconds()}
}

// sortByRerankScore orders descending by rerank score with ID as the
// deterministic tiebreak. All entries are expected to carry a score.
func sortByRerankScore(chunks []retrieval.Chunk) {
	sort.SliceStable(chunks, func(i, j int) bool {
		si, sj := *chunks[i].RerankScore, *chunks[j].RerankScore
		if si != sj {
			return si > sj
		}
		return chunks[i].ID < chunks[j].ID
	})
}
