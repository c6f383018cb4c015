package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/JoePa99/joeupup-sub002/internal/config"
	"github.com/JoePa99/joeupup-sub002/internal/store"
)

// Embedder generates embedding vectors. Implemented by embed.Client.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// DocumentSearcher performs vector search over document chunks.
// Implemented by store.Postgres.
type DocumentSearcher interface {
	SearchAgentDocuments(ctx context.Context, embedding []float32, agentID string, threshold float64, limit int) ([]store.Hit, error)
	SearchSharedDocuments(ctx context.Context, embedding []float32, companyID string, threshold float64, limit int) ([]store.Hit, error)
}

// PlaybookSearcher performs full-text search over playbook sections.
// Implemented by store.Postgres.
type PlaybookSearcher interface {
	SearchPlaybooks(ctx context.Context, queryText string, companyID string, limit int) ([]store.Hit, error)
}

// KeywordSearcher performs hybrid keyword search across sources.
// Implemented by store.Postgres.
type KeywordSearcher interface {
	SearchKeywords(ctx context.Context, queryText string, companyID string, agentID string, limit int) ([]store.Hit, error)
}

// ProfileLoader loads structured company profiles. Implemented by
// store.Postgres.
type ProfileLoader interface {
	LoadCompanyProfile(ctx context.Context, companyID string) (*store.Profile, error)
}

// Sentinel errors for retrieval input validation.
var (
	// ErrNoQueries indicates the request carried no query text.
	ErrNoQueries = errors.New("no queries")

	// ErrMissingScope indicates agent or company ID is missing.
	ErrMissingScope = errors.New("missing retrieval scope")
)

// Request is one coordinated retrieval across all enabled tiers.
type Request struct {
	AgentID   string
	CompanyID string

	// Queries is the expanded query list; the first entry is the original
	// user query and drives the shared embedding and full-text tiers.
	Queries []string

	Config config.ContextInjection
}

func (r *Request) validate() error {
	if len(r.Queries) == 0 || strings.TrimSpace(r.Queries[0]) == "" {
		return ErrNoQueries
	}
	if r.AgentID == "" || r.CompanyID == "" {
		return fmt.Errorf("%w: agent=%q company=%q", ErrMissingScope, r.AgentID, r.CompanyID)
	}
	return nil
}

// CoordinatorConfig contains all required dependencies for a Coordinator.
type CoordinatorConfig struct {
	Embedder  Embedder
	Documents DocumentSearcher
	Playbooks PlaybookSearcher
	Keywords  KeywordSearcher
	Profiles  ProfileLoader
	Logger    *slog.Logger
}

func (cfg CoordinatorConfig) validate() error {
	if cfg.Embedder == nil {
		return errors.New("embedder is required")
	}
	if cfg.Documents == nil {
		return errors.New("document searcher is required")
	}
	if cfg.Playbooks == nil {
		return errors.New("playbook searcher is required")
	}
	if cfg.Keywords == nil {
		return errors.New("keyword searcher is required")
	}
	if cfg.Profiles == nil {
		return errors.New("profile loader is required")
	}
	return nil
}

// Coordinator fans a query out across the five knowledge tiers.
//
// Coordinator is stateless and safe for concurrent use.
type Coordinator struct {
	embedder  Embedder
	documents DocumentSearcher
	playbooks PlaybookSearcher
	keywords  KeywordSearcher
	profiles  ProfileLoader
	logger    *slog.Logger
	tracer    trace.Tracer
}

// NewCoordinator creates a Coordinator from its dependencies.
func NewCoordinator(cfg CoordinatorConfig) (*Coordinator, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid coordinator config: %w", err)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		embedder:  cfg.Embedder,
		documents: cfg.Documents,
		playbooks: cfg.Playbooks,
		keywords:  cfg.Keywords,
		profiles:  cfg.Profiles,
		logger:    logger,
		tracer:    otel.Tracer("joeupup.context.retrieval"),
	}, nil
}

// Retrieve executes all enabled tier lookups concurrently and merges the
// outcome. Individual tier failures are logged and contribute empty lists;
// the only returned errors are input-validation failures.
func (c *Coordinator) Retrieve(ctx context.Context, req Request) (*Result, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	ctx, span := c.tracer.Start(ctx, "retrieval.retrieve", trace.WithAttributes(
		attribute.String("agent_id", req.AgentID),
		attribute.String("company_id", req.CompanyID),
		attribute.Int("queries", len(req.Queries)),
	))
	defer span.End()

	primary := req.Queries[0]

	// One embedding for the primary query, shared by every vector tier.
	// An embedding failure degrades all vector tiers to empty lists.
	var queryVector []float32
	if req.Config.EnableCompanyProfile || req.Config.EnableAgentDocs || req.Config.EnableSharedDocs {
		vector, err := c.embedder.Embed(ctx, primary)
		if err != nil {
			c.logger.Warn("query embedding failed, vector tiers degrade to empty",
				"error", err)
		} else {
			queryVector = vector
		}
	}

	result := &Result{ByTier: make(map[Source][]Chunk, len(Sources))}
	for _, src := range Sources {
		result.ByTier[src] = nil
	}

	// Joint join: all five tiers complete (or fail locally) before merging.
	// Tier goroutines never return an error upward; degrade-to-empty is the
	// contract, so the group exists purely for the join.
	g, gctx := errgroup.WithContext(ctx)

	type tier struct {
		source  Source
		enabled bool
		run     func(context.Context) ([]Chunk, error)
	}
	tiers := []tier{
		{SourceCompanyProfile, req.Config.EnableCompanyProfile, func(ctx context.Context) ([]Chunk, error) {
			return c.retrieveCompanyProfile(ctx, req, queryVector)
		}},
		{SourceAgentDocs, req.Config.EnableAgentDocs, func(ctx context.Context) ([]Chunk, error) {
			return c.retrieveAgentDocs(ctx, req, queryVector)
		}},
		{SourceSharedDocs, req.Config.EnableSharedDocs, func(ctx context.Context) ([]Chunk, error) {
			return c.retrieveSharedDocs(ctx, req, queryVector)
		}},
		{SourcePlaybooks, req.Config.EnablePlaybooks, func(ctx context.Context) ([]Chunk, error) {
			return c.retrievePlaybooks(ctx, req, primary)
		}},
		{SourceKeywords, req.Config.EnableKeywords, func(ctx context.Context) ([]Chunk, error) {
			return c.retrieveKeywords(ctx, req)
		}},
	}

	// Distinct slots per tier; goroutines never share an element.
	tierChunks := make([][]Chunk, len(tiers))
	for i, t := range tiers {
		if !t.enabled {
			// Disabled tier resolves immediately, no I/O.
			continue
		}
		g.Go(func() error {
			chunks, err := t.run(gctx)
			if err != nil {
				c.logger.Warn("tier retrieval failed, contributing zero chunks",
					"tier", string(t.source), "error", err)
				return nil
			}
			tierChunks[i] = chunks
			return nil
		})
	}
	_ = g.Wait() // goroutines never return errors; this is the join point

	for i, t := range tiers {
		result.ByTier[t.source] = tierChunks[i]
	}

	result.RetrievalTimeMs = time.Since(start).Milliseconds()
	for _, chunks := range result.ByTier {
		result.TotalChunks += len(chunks)
	}

	span.SetAttributes(attribute.Int("chunks", result.TotalChunks))
	c.logger.Debug("retrieval complete",
		"total_chunks", result.TotalChunks,
		"elapsed_ms", result.RetrievalTimeMs,
		"tiers", len(tiers),
	)
	return result, nil
}
