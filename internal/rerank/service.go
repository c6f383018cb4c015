package rerank

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/JoePa99/joeupup-sub002/internal/retrieval"
)

// DefaultServiceTimeout bounds one rerank service call. A timeout is
// treated identically to any other service failure: fall back.
const DefaultServiceTimeout = 5 * time.Second

// serviceRequest is the rerank service wire request.
type serviceRequest struct {
	Model     string   `json:"model,omitempty"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	TopN      int      `json:"top_n"`
}

// serviceResponse is the rerank service wire response. Results arrive in
// the service's own relevance order.
type serviceResponse struct {
	Results []struct {
		Index          int     `json:"index"`
		RelevanceScore float64 `json:"relevance_score"`
	} `json:"results"`
}

// ServiceConfig configures the external rerank service strategy.
type ServiceConfig struct {
	// Endpoint is the service base URL (the client POSTs to /rerank).
	Endpoint string

	// APIKey is sent as a bearer token when non-empty.
	APIKey string

	// Model is the rerank model identifier.
	Model string

	// Timeout per call. Zero uses DefaultServiceTimeout.
	Timeout time.Duration

	// Logger may be nil.
	Logger *slog.Logger
}

// Service reranks through an external cross-attention service.
//
// Service is safe for concurrent use.
type Service struct {
	client *resty.Client
	model  string
	logger *slog.Logger
	tracer trace.Tracer
}

// NewService creates the service strategy.
func NewService(cfg ServiceConfig) *Service {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultServiceTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	client := resty.New().
		SetBaseURL(cfg.Endpoint).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")
	if cfg.APIKey != "" {
		client.SetAuthToken(cfg.APIKey)
	}

	return &Service{
		client: client,
		model:  cfg.Model,
		logger: logger,
		tracer: otel.Tracer("joeupup.context.rerank"),
	}
}

// Rerank implements Reranker. On any service failure (HTTP error, bad
// status, malformed payload, timeout) the result is the score-descending
// fallback, with elapsed time still reported.
func (s *Service) Rerank(ctx context.Context, query string, chunks []retrieval.Chunk, topN int) Result {
	if shortCircuit(chunks, topN) {
		return Result{Chunks: chunks}
	}

	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "rerank.service", trace.WithAttributes(
		attribute.Int("candidates", len(chunks)),
		attribute.Int("top_n", topN),
		attribute.String("model", s.model),
	))
	defer span.End()

	reranked, err := s.call(ctx, query, chunks, topN)
	elapsed := time.Since(start).Milliseconds()
	if err != nil {
		s.logger.Warn("rerank service failed, falling back to retrieval scores", "error", err)
		span.RecordError(err)
		return Result{Chunks: fallback(chunks, topN), RerankTimeMs: elapsed}
	}

	span.SetAttributes(attribute.Int("results", len(reranked)))
	return Result{Chunks: reranked, RerankTimeMs: elapsed}
}

// call performs the HTTP exchange and maps service indices back onto the
// original chunks.
func (s *Service) call(ctx context.Context, query string, chunks []retrieval.Chunk, topN int) ([]retrieval.Chunk, error) {
	documents := make([]string, len(chunks))
	for i, chunk := range chunks {
		documents[i] = chunk.Content
	}

	var payload serviceResponse
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(serviceRequest{
			Model:     s.model,
			Query:     query,
			Documents: documents,
			TopN:      topN,
		}).
		SetResult(&payload).
		Post("/rerank")
	if err != nil {
		return nil, fmt.Errorf("calling rerank service: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("rerank service returned %s: %s", resp.Status(), resp.String())
	}
	if len(payload.Results) == 0 {
		return nil, fmt.Errorf("rerank service returned no results")
	}

	// Service order is authoritative; keep original Score and record it in
	// metadata so downstream consumers can audit the re-scoring.
	reranked := make([]retrieval.Chunk, 0, topN)
	for _, result := range payload.Results {
		if result.Index < 0 || result.Index >= len(chunks) {
			return nil, fmt.Errorf("rerank service returned out-of-range index %d", result.Index)
		}
		chunk := chunks[result.Index]
		score := result.RelevanceScore
		chunk.RerankScore = &score
		chunk.Metadata = cloneMetadata(chunk.Metadata)
		chunk.Metadata["original_score"] = strconv.FormatFloat(chunk.Score, 'f', 4, 64)
		reranked = append(reranked, chunk)
		if len(reranked) == topN {
			break
		}
	}
	return reranked, nil
}

// cloneMetadata copies a metadata bag so reranked chunks never alias the
// retrieval stage's maps.
func cloneMetadata(metadata map[string]string) map[string]string {
	cloned := make(map[string]string, len(metadata)+1)
	for k, v := range metadata {
		cloned[k] = v
	}
	return cloned
}
