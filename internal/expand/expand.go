// Package expand produces semantically varied rephrasings of a user query.
//
// Expansion is an accuracy enhancement, never a hard dependency: when the
// language model fails, Expand logs the failure and returns only the
// original query with a nil error, so downstream retrieval proceeds
// unchanged. Results are cached by normalized query text to avoid redundant
// model calls.
package expand

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
)

// ErrEmptyQuery indicates an empty or whitespace-only query was given.
var ErrEmptyQuery = errors.New("empty query")

// DefaultMaxExpansions is used when Options.MaxExpansions is unset.
const DefaultMaxExpansions = 5

// expansionPrompt instructs the model to emit one rephrasing per line.
// %d: max expansions, %s: the query.
const expansionPrompt = `Generate up to %d alternative phrasings of the following business question for a document search engine.

Rules:
- Vary the wording: synonyms, related business concepts, broader and narrower phrasings
- Keep each alternative on its own line
- Do not number the lines or add bullets
- Do not repeat the original question verbatim
- Output only the alternatives, nothing else

Question: %s`

// Options configures a single Expand call.
type Options struct {
	// MaxExpansions caps generated rephrasings. Values < 1 fall back to
	// DefaultMaxExpansions.
	MaxExpansions int

	// DisableCache bypasses the cache lookup and write.
	DisableCache bool

	// Model is the provider-qualified model name for the expansion call.
	Model string
}

// Result is the outcome of one expansion.
type Result struct {
	// OriginalQuery is the query as given.
	OriginalQuery string

	// Queries is the ordered expansion list; the original query is always
	// first, so retrieval is never expansion-dependent-only.
	Queries []string

	// FromCache reports whether the result was served without a model call.
	FromCache bool

	// ElapsedMs is the wall-clock duration of the expansion.
	ElapsedMs int64
}

// Expander produces query expansions through a Genkit model with a
// read-through cache.
//
// Expander is safe for concurrent use.
type Expander struct {
	g      *genkit.Genkit
	model  string
	cache  Cache
	logger *slog.Logger
}

// New creates an Expander. model is the provider-qualified default used
// when a call does not override it; cache may be nil (caching disabled
// entirely); logger may be nil (slog.Default is used).
func New(g *genkit.Genkit, model string, cache Cache, logger *slog.Logger) *Expander {
	if logger == nil {
		logger = slog.Default()
	}
	return &Expander{
		g:      g,
		model:  model,
		cache:  cache,
		logger: logger,
	}
}

// Expand returns rephrasings of query.
//
// Cache hits return the stored list tagged FromCache with no model call.
// On a model failure the returned Result contains only the original query
// and err is nil; degradation, not propagation. The only error returned
// is ErrEmptyQuery for blank input.
func (e *Expander) Expand(ctx context.Context, query string, opts Options) (Result, error) {
	if strings.TrimSpace(query) == "" {
		return Result{}, ErrEmptyQuery
	}

	maxExpansions := opts.MaxExpansions
	if maxExpansions < 1 {
		maxExpansions = DefaultMaxExpansions
	}

	start := time.Now()
	result := Result{
		OriginalQuery: query,
		Queries:       []string{query},
	}

	useCache := e.cache != nil && !opts.DisableCache
	key := CacheKey(query)

	if useCache {
		if cached, ok := e.cache.Get(key); ok {
			result.Queries = append(result.Queries, cached...)
			result.FromCache = true
			result.ElapsedMs = time.Since(start).Milliseconds()
			e.logger.Debug("expansion cache hit", "key", key, "expansions", len(cached))
			return result, nil
		}
	}

	expansions, err := e.generate(ctx, query, maxExpansions, opts.Model)
	if err != nil {
		// Expansion failures degrade to the original query only.
		e.logger.Warn("query expansion failed, using original query only", "error", err)
		result.ElapsedMs = time.Since(start).Milliseconds()
		return result, nil
	}

	if useCache {
		// Best-effort write; a racing write for the same key is fine.
		e.cache.Set(key, expansions)
	}

	result.Queries = append(result.Queries, expansions...)
	result.ElapsedMs = time.Since(start).Milliseconds()
	e.logger.Debug("query expanded", "expansions", len(expansions), "elapsed_ms", result.ElapsedMs)
	return result, nil
}

// generate calls the expansion model and parses its line-oriented output.
func (e *Expander) generate(ctx context.Context, query string, maxExpansions int, model string) ([]string, error) {
	if model == "" {
		model = e.model
	}
	prompt := fmt.Sprintf(expansionPrompt, maxExpansions, query)

	resp, err := genkit.Generate(ctx, e.g,
		ai.WithModelName(model),
		ai.WithPrompt(prompt),
	)
	if err != nil {
		return nil, fmt.Errorf("generating expansions: %w", err)
	}

	return parseExpansions(resp.Text(), query, maxExpansions), nil
}

// parseExpansions extracts up to maxExpansions non-empty lines, stripping
// stray list markers the model may emit despite instructions and dropping
// verbatim repeats of the original query.
func parseExpansions(text, originalQuery string, maxExpansions int) []string {
	normalizedOriginal := CacheKey(originalQuery)

	var expansions []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "-*0123456789. )")
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if CacheKey(line) == normalizedOriginal {
			continue
		}
		expansions = append(expansions, line)
		if len(expansions) == maxExpansions {
			break
		}
	}
	return expansions
}
