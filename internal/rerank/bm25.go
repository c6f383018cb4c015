package rerank

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/JoePa99/joeupup-sub002/internal/retrieval"
)

// BM25 scoring constants. avgDocLength is a fixed estimate rather than a
// corpus statistic; the candidate pool is too small for a meaningful
// average and the ordering is what matters, not the absolute scores.
const (
	bm25K1       = 1.5
	bm25B        = 0.75
	avgDocLength = 100.0
)

// BM25 is the last-resort lexical reranker. It scores each chunk with a
// simplified BM25: term frequency with saturation, length normalization
// against a fixed average, and a degenerate inverse-document-frequency
// that treats every query term as occurring in one document. It never
// fails and needs no external service.
type BM25 struct{}

// NewBM25 creates the lexical strategy.
func NewBM25() *BM25 {
	return &BM25{}
}

// Rerank implements Reranker.
func (b *BM25) Rerank(ctx context.Context, query string, chunks []retrieval.Chunk, topN int) Result {
	if shortCircuit(chunks, topN) {
		return Result{Chunks: chunks}
	}

	start := time.Now()
	terms := tokenize(query)
	if len(terms) == 0 {
		return Result{Chunks: fallback(chunks, topN), RerankTimeMs: time.Since(start).Milliseconds()}
	}

	scored := make([]retrieval.Chunk, len(chunks))
	for i, chunk := range chunks {
		score := bm25Score(terms, tokenize(chunk.Content))
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

// bm25Score sums the per-term saturated frequency contributions. Scores
// are raw, not normalized to [0, 1].
func bm25Score(queryTerms, docTerms []string) float64 {
	if len(docTerms) == 0 {
		return 0
	}

	freq := make(map[string]int, len(docTerms))
	for _, term := range docTerms {
		freq[term]++
	}

	docLen := float64(len(docTerms))
	var score float64
	for _, term := range queryTerms {
		tf := float64(freq[term])
		if tf == 0 {
			continue
		}
		// Uniform one-document IDF keeps this a pure lexical-overlap
		// ranking without corpus statistics.
		const idf = 1.0
		numerator := tf * (bm25K1 + 1)
		denominator := tf + bm25K1*(1-bm25B+bm25B*docLen/avgDocLength)
		score += idf * numerator / denominator
	}
	return score
}

// tokenize lowercases and splits on non-alphanumeric runs.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		isLower := r >= 'a' && r <= 'z'
		isDigit := r >= '0' && r <= '9'
		return !isLower && !isDigit
	})
}
