// Package embed wraps a Genkit ai.Embedder behind a small client that the
// retrieval tiers share.
//
// The client enforces the degrade-to-empty contract: an upstream embedding
// failure is logged and surfaced as an error to the immediate caller, and
// callers treat an empty vector as zero similarity rather than aborting the
// fan-out. Cosine similarity over a zero vector is defined as exactly 0
// (see retrieval.CosineSimilarity).
package embed

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/firebase/genkit/go/ai"
	"golang.org/x/time/rate"
)

// Client generates embedding vectors via a Genkit ai.Embedder.
//
// Client is safe for concurrent use by multiple goroutines.
type Client struct {
	embedder ai.Embedder
	limiter  *rate.Limiter
	logger   *slog.Logger
}

// New creates a new embedding Client.
//
// limiter throttles upstream embedding calls; nil disables throttling.
// logger may be nil (slog.Default is used).
func New(embedder ai.Embedder, limiter *rate.Limiter, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		embedder: embedder,
		limiter:  limiter,
		logger:   logger,
	}
}

// Embed returns the embedding vector for a single text.
// The embedder must return a fixed, consistent dimensionality across calls
// for cosine similarity to remain meaningful.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch embeds multiple texts in one upstream request. The returned
// slice always has len(texts) entries; inputs the upstream did not cover
// come back as empty vectors.
//
// Used by the company-profile retriever, which embeds its decomposed chunk
// set ad hoc on every call.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("waiting for embed rate limit: %w", err)
		}
	}

	input := make([]*ai.Document, len(texts))
	for i, text := range texts {
		input[i] = ai.DocumentFromText(text, nil)
	}

	resp, err := c.embedder.Embed(ctx, &ai.EmbedRequest{Input: input})
	if err != nil {
		return nil, fmt.Errorf("generating embeddings: %w", err)
	}

	vectors := make([][]float32, len(texts))
	for i := range texts {
		if i < len(resp.Embeddings) && resp.Embeddings[i] != nil {
			vectors[i] = resp.Embeddings[i].Embedding
		}
		if len(vectors[i]) == 0 {
			// Empty result degrades to zero similarity downstream.
			c.logger.Warn("empty embedding returned", "index", i, "text_length", len(texts[i]))
			vectors[i] = []float32{}
		}
	}
	return vectors, nil
}
