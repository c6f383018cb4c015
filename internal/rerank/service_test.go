package rerank

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/JoePa99/joeupup-sub002/internal/log"
)

func newTestService(t *testing.T, handler http.HandlerFunc) *Service {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewService(ServiceConfig{
		Endpoint: server.URL,
		Model:    "rerank-test",
		Timeout:  500 * time.Millisecond,
		Logger:   log.NewNop(),
	})
}

func TestServiceRerank(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		var req serviceRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		if req.Query != "pricing" {
			t.Errorf("query = %q", req.Query)
		}
		if len(req.Documents) != 3 {
			t.Errorf("documents = %d, want 3", len(req.Documents))
		}
		// Service considers the lowest-scored candidate most relevant.
		_ = json.NewEncoder(w).Encode(serviceResponse{
			Results: []struct {
				Index          int     `json:"index"`
				RelevanceScore float64 `json:"relevance_score"`
			}{
				{Index: 0, RelevanceScore: 0.95},
				{Index: 2, RelevanceScore: 0.80},
				{Index: 1, RelevanceScore: 0.10},
			},
		})
	})

	result := svc.Rerank(context.Background(), "pricing", candidates(), 2)

	if len(result.Chunks) != 2 {
		t.Fatalf("chunks = %d, want topN", len(result.Chunks))
	}
	if result.Chunks[0].ID != "a" || result.Chunks[1].ID != "c" {
		t.Errorf("order = [%s %s], want service order [a c]", result.Chunks[0].ID, result.Chunks[1].ID)
	}
	if result.Chunks[0].RerankScore == nil || *result.Chunks[0].RerankScore != 0.95 {
		t.Error("rerank score not attached")
	}
	if result.Chunks[0].Metadata["original_score"] != "0.4000" {
		t.Errorf("original_score = %q", result.Chunks[0].Metadata["original_score"])
	}
	if result.RerankTimeMs < 0 {
		t.Errorf("RerankTimeMs = %d", result.RerankTimeMs)
	}
}

func TestServiceRerankFallbackOnError(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "internal error", http.StatusInternalServerError)
	})

	result := svc.Rerank(context.Background(), "pricing", candidates(), 2)

	if len(result.Chunks) != 2 {
		t.Fatalf("chunks = %d, want topN", len(result.Chunks))
	}
	if result.Chunks[0].ID != "b" || result.Chunks[1].ID != "c" {
		t.Errorf("order = [%s %s], want score-descending fallback", result.Chunks[0].ID, result.Chunks[1].ID)
	}
	for _, chunk := range result.Chunks {
		if chunk.RerankScore != nil {
			t.Error("fallback attached a rerank score")
		}
	}
}

func TestServiceRerankFallbackOnTimeout(t *testing.T) {
	t.Parallel()

	started := time.Now()
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(2 * time.Second)
	})

	result := svc.Rerank(context.Background(), "pricing", candidates(), 2)

	if time.Since(started) > 1500*time.Millisecond {
		t.Error("call did not respect the configured timeout")
	}
	if result.Chunks[0].ID != "b" || result.Chunks[1].ID != "c" {
		t.Error("timeout did not produce the fallback order")
	}
	if result.RerankTimeMs <= 0 {
		t.Error("elapsed time not reported after timeout")
	}
}

func TestServiceRerankFallbackOnBadIndex(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results":[{"index":42,"relevance_score":0.9}]}`))
	})

	result := svc.Rerank(context.Background(), "pricing", candidates(), 2)
	if result.Chunks[0].ID != "b" {
		t.Error("out-of-range index did not fall back")
	}
}

func TestServiceRerankShortCircuit(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("service called despite short-circuit")
	})

	result := svc.Rerank(context.Background(), "pricing", candidates(), 10)
	if result.RerankTimeMs != 0 {
		t.Errorf("RerankTimeMs = %d, want 0", result.RerankTimeMs)
	}
}
