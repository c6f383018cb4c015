package rerank

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/JoePa99/joeupup-sub002/internal/log"
)

// overlapScorer scores by naive word overlap, standing in for a hosted
// cross-encoder.
type overlapScorer struct {
	err error
}

func (s *overlapScorer) ScorePair(ctx context.Context, query, document string) (float64, error) {
	if s.err != nil {
		return 0, s.err
	}
	var matches float64
	doc := strings.ToLower(document)
	for _, term := range strings.Fields(strings.ToLower(query)) {
		if strings.Contains(doc, term) {
			matches++
		}
	}
	return matches, nil
}

func TestCrossEncoderRerank(t *testing.T) {
	t.Parallel()

	ce := NewCrossEncoder(&overlapScorer{}, log.NewNop())
	result := ce.Rerank(context.Background(), "pricing discount", candidates(), 2)

	if len(result.Chunks) != 2 {
		t.Fatalf("chunks = %d, want topN", len(result.Chunks))
	}
	// "discount pricing playbook" matches both terms.
	if result.Chunks[0].ID != "c" {
		t.Errorf("top chunk = %q, want c", result.Chunks[0].ID)
	}
	if result.Chunks[0].RerankScore == nil {
		t.Fatal("rerank score not attached")
	}
	if result.Chunks[0].Metadata["original_score"] == "" {
		t.Error("original score not preserved in metadata")
	}
}

func TestCrossEncoderFallbackOnScorerError(t *testing.T) {
	t.Parallel()

	ce := NewCrossEncoder(&overlapScorer{err: errors.New("model unavailable")}, log.NewNop())
	result := ce.Rerank(context.Background(), "pricing", candidates(), 2)

	if result.Chunks[0].ID != "b" || result.Chunks[1].ID != "c" {
		t.Error("scorer failure did not produce the fallback order")
	}
}

func TestCrossEncoderShortCircuit(t *testing.T) {
	t.Parallel()

	ce := NewCrossEncoder(&overlapScorer{err: errors.New("must not be called")}, log.NewNop())
	result := ce.Rerank(context.Background(), "pricing", candidates(), 3)

	if result.RerankTimeMs != 0 {
		t.Errorf("RerankTimeMs = %d, want 0", result.RerankTimeMs)
	}
	if result.Chunks[0].ID != "a" {
		t.Error("short-circuit reordered input")
	}
}
