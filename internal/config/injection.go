package config

import (
	"errors"
	"fmt"
)

// Sentinel errors for injection configuration validation.
// Checked with errors.Is().
var (
	// ErrInvalidMaxChunksPerSource indicates max_chunks_per_source is out of range.
	ErrInvalidMaxChunksPerSource = errors.New("invalid max chunks per source")

	// ErrInvalidTotalMaxChunks indicates total_max_chunks is out of range.
	ErrInvalidTotalMaxChunks = errors.New("invalid total max chunks")

	// ErrInvalidSimilarityThreshold indicates similarity_threshold is outside [0,1].
	ErrInvalidSimilarityThreshold = errors.New("invalid similarity threshold")

	// ErrInvalidMaxExpandedQueries indicates max_expanded_queries is below 1.
	ErrInvalidMaxExpandedQueries = errors.New("invalid max expanded queries")

	// ErrRerankTopNExceedsTotal indicates rerank_top_n exceeds total_max_chunks.
	ErrRerankTopNExceedsTotal = errors.New("rerank top N exceeds total max chunks")
)

// Injection pipeline defaults.
const (
	// DefaultMaxChunksPerSource caps how many chunks a single tier may return.
	DefaultMaxChunksPerSource = 5

	// DefaultTotalMaxChunks caps how many chunks reach the prompt builder.
	DefaultTotalMaxChunks = 10

	// DefaultSimilarityThreshold discards chunks scoring below it.
	DefaultSimilarityThreshold = 0.3

	// DefaultMaxExpandedQueries caps query-expansion rephrasings.
	DefaultMaxExpandedQueries = 5
)

// ContextInjection is the configuration value object for the context-injection
// pipeline. It is passed in-process; it is not a live entity and carries no
// connection state.
type ContextInjection struct {
	// Per-tier enable flags. A disabled tier resolves immediately to an
	// empty list without any I/O.
	EnableCompanyProfile bool `mapstructure:"enable_company_profile"`
	EnableAgentDocs      bool `mapstructure:"enable_agent_docs"`
	EnableSharedDocs     bool `mapstructure:"enable_shared_docs"`
	EnablePlaybooks      bool `mapstructure:"enable_playbooks"`
	EnableKeywords       bool `mapstructure:"enable_keywords"`

	// MaxChunksPerSource caps each individual tier's output.
	MaxChunksPerSource int `mapstructure:"max_chunks_per_source"`

	// TotalMaxChunks caps the merged candidate pool forwarded to the
	// prompt builder.
	TotalMaxChunks int `mapstructure:"total_max_chunks"`

	// SimilarityThreshold in [0,1]; chunks scoring below it are discarded
	// at the tier boundary.
	SimilarityThreshold float64 `mapstructure:"similarity_threshold"`

	// Query expansion.
	EnableQueryExpansion bool `mapstructure:"enable_query_expansion"`
	MaxExpandedQueries   int  `mapstructure:"max_expanded_queries"`

	// Reranking.
	EnableReranking bool   `mapstructure:"enable_reranking"`
	RerankModel     string `mapstructure:"rerank_model"`
	RerankTopN      int    `mapstructure:"rerank_top_n"` // 0 = use TotalMaxChunks

	// IncludeCitations enables [n] markers and the citation map.
	IncludeCitations bool `mapstructure:"include_citations"`

	// PromptTemplate overrides the default system prompt template when
	// non-empty. Must contain the required placeholders (see prompt package).
	PromptTemplate string `mapstructure:"prompt_template"`
}

// DefaultContextInjection returns the pipeline defaults with all tiers
// enabled, expansion on, reranking off, citations on.
func DefaultContextInjection() ContextInjection {
	return ContextInjection{
		EnableCompanyProfile: true,
		EnableAgentDocs:      true,
		EnableSharedDocs:     true,
		EnablePlaybooks:      true,
		EnableKeywords:       true,
		MaxChunksPerSource:   DefaultMaxChunksPerSource,
		TotalMaxChunks:       DefaultTotalMaxChunks,
		SimilarityThreshold:  DefaultSimilarityThreshold,
		EnableQueryExpansion: true,
		MaxExpandedQueries:   DefaultMaxExpandedQueries,
		EnableReranking:      false,
		RerankModel:          DefaultRerankModel,
		RerankTopN:           0,
		IncludeCitations:     true,
	}
}

// EffectiveRerankTopN resolves the rerank result budget: RerankTopN when set,
// TotalMaxChunks otherwise. Configuration inconsistency is resolved via
// defaults, not errors.
func (c *ContextInjection) EffectiveRerankTopN() int {
	if c.RerankTopN > 0 {
		return c.RerankTopN
	}
	return c.TotalMaxChunks
}

// Validate checks injection invariants. A violation is a local logic error
// that must fail fast rather than silently produce a nonsensical prompt.
func (c *ContextInjection) Validate() error {
	if c.MaxChunksPerSource < 1 {
		return fmt.Errorf("%w: must be >= 1, got %d", ErrInvalidMaxChunksPerSource, c.MaxChunksPerSource)
	}
	if c.TotalMaxChunks < 1 {
		return fmt.Errorf("%w: must be >= 1, got %d", ErrInvalidTotalMaxChunks, c.TotalMaxChunks)
	}
	if c.SimilarityThreshold < 0 || c.SimilarityThreshold > 1 {
		return fmt.Errorf("%w: must be within [0,1], got %.3f", ErrInvalidSimilarityThreshold, c.SimilarityThreshold)
	}
	if c.EnableQueryExpansion && c.MaxExpandedQueries < 1 {
		return fmt.Errorf("%w: must be >= 1, got %d", ErrInvalidMaxExpandedQueries, c.MaxExpandedQueries)
	}
	// Invariant: the rerank budget never exceeds the total chunk budget.
	if c.RerankTopN > c.TotalMaxChunks {
		return fmt.Errorf("%w: rerank_top_n %d > total_max_chunks %d",
			ErrRerankTopNExceedsTotal, c.RerankTopN, c.TotalMaxChunks)
	}
	return nil
}
