// Package injection orchestrates the context-injection pipeline: query
// expansion, tiered retrieval, reranking, and prompt assembly.
//
// The pipeline is a linear state machine:
//
//	Idle -> Expanding -> Retrieving -> Reranking -> PromptBuilding -> Done
//
// Expansion and reranking are skippable via configuration; retrieval and
// prompt building always execute. The orchestrator adds no recovery of
// its own: every stage degrades internally, so the worst case is a valid
// prompt built from zero chunks with confidence 0.
package injection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/JoePa99/joeupup-sub002/internal/config"
	"github.com/JoePa99/joeupup-sub002/internal/expand"
	"github.com/JoePa99/joeupup-sub002/internal/prompt"
	"github.com/JoePa99/joeupup-sub002/internal/rerank"
	"github.com/JoePa99/joeupup-sub002/internal/retrieval"
)

// Stage identifies the pipeline phase a run is in.
type Stage string

// Pipeline stages in execution order.
const (
	StageIdle           Stage = "idle"
	StageExpanding      Stage = "expanding"
	StageRetrieving     Stage = "retrieving"
	StageReranking      Stage = "reranking"
	StagePromptBuilding Stage = "prompt_building"
	StageDone           Stage = "done"
)

// AgentIdentity is the read-only identity the prompt speaks as.
type AgentIdentity = prompt.AgentIdentity

// QueryExpander produces expanded query lists. Implemented by
// expand.Expander.
type QueryExpander interface {
	Expand(ctx context.Context, query string, opts expand.Options) (expand.Result, error)
}

// Retriever performs the tiered fan-out. Implemented by
// retrieval.Coordinator.
type Retriever interface {
	Retrieve(ctx context.Context, req retrieval.Request) (*retrieval.Result, error)
}

// PromptBuilder assembles the system prompt. Implemented by
// prompt.Builder.
type PromptBuilder interface {
	Build(identity prompt.AgentIdentity, chunks []retrieval.Chunk, userQuery string, cfg config.ContextInjection) (prompt.BuildResult, error)
}

// Input validation errors.
var (
	// ErrEmptyQuery indicates a blank user query.
	ErrEmptyQuery = errors.New("user query cannot be empty")

	// ErrMissingIdentity indicates the agent identity lacks an ID.
	ErrMissingIdentity = errors.New("agent identity is required")

	// ErrMissingCompany indicates no company scope was given.
	ErrMissingCompany = errors.New("company ID is required")
)

// Timings aggregates per-stage wall-clock durations.
type Timings struct {
	ExpandMs   int64
	RetrieveMs int64
	RerankMs   int64
	TotalMs    int64
}

// Result is the outcome of one pipeline run.
type Result struct {
	// RunID uniquely identifies this run in logs and traces.
	RunID string

	// Prompt is the assembled prompt with citation map and token estimate.
	Prompt prompt.BuildResult

	// Footer is the plain-text source summary for the assistant's
	// response. Empty when no chunks survived.
	Footer string

	// Confidence is the clamped mean effective score of the final chunks,
	// 0 when the list is empty.
	Confidence float64

	// ChunksRetrieved counts candidates across all tiers before
	// reranking or truncation; ChunksUsed counts what reached the prompt.
	ChunksRetrieved int
	ChunksUsed      int

	Timings Timings
}

// OrchestratorConfig contains all required dependencies for an
// Orchestrator.
type OrchestratorConfig struct {
	Expander  QueryExpander
	Retriever Retriever
	Reranker  rerank.Reranker
	Builder   PromptBuilder
	Logger    *slog.Logger
}

func (cfg OrchestratorConfig) validate() error {
	if cfg.Expander == nil {
		return errors.New("query expander is required")
	}
	if cfg.Retriever == nil {
		return errors.New("retriever is required")
	}
	if cfg.Reranker == nil {
		return errors.New("reranker is required")
	}
	if cfg.Builder == nil {
		return errors.New("prompt builder is required")
	}
	return nil
}

// Orchestrator drives the pipeline. Stateless and safe for concurrent
// use; per-run state lives on the stack.
type Orchestrator struct {
	expander  QueryExpander
	retriever Retriever
	reranker  rerank.Reranker
	builder   PromptBuilder
	logger    *slog.Logger
	tracer    trace.Tracer
}

// NewOrchestrator creates an Orchestrator from its dependencies.
func NewOrchestrator(cfg OrchestratorConfig) (*Orchestrator, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid orchestrator config: %w", err)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		expander:  cfg.Expander,
		retriever: cfg.Retriever,
		reranker:  cfg.Reranker,
		builder:   cfg.Builder,
		logger:    logger,
		tracer:    otel.Tracer("joeupup.context.injection"),
	}, nil
}

// Run executes the full pipeline for one query. The returned error is
// non-nil only for input or configuration validation failures; upstream
// service trouble degrades inside the stages.
func (o *Orchestrator) Run(ctx context.Context, identity AgentIdentity, companyID, userQuery string, cfg config.ContextInjection) (*Result, error) {
	if strings.TrimSpace(userQuery) == "" {
		return nil, ErrEmptyQuery
	}
	if identity.ID == "" {
		return nil, ErrMissingIdentity
	}
	if companyID == "" {
		return nil, ErrMissingCompany
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid injection config: %w", err)
	}

	runID := uuid.NewString()
	logger := o.logger.With("run_id", runID, "agent_id", identity.ID, "company_id", companyID)

	start := time.Now()
	ctx, span := o.tracer.Start(ctx, "injection.run", trace.WithAttributes(
		attribute.String("run_id", runID),
		attribute.String("agent_id", identity.ID),
		attribute.String("company_id", companyID),
	))
	defer span.End()

	stage := StageIdle
	advance := func(next Stage) {
		stage = next
		logger.Debug("pipeline stage", "stage", string(stage))
	}

	// Expansion. Disabled or failing expansion yields the trivial
	// single-query result.
	advance(StageExpanding)
	expansion := expand.Result{OriginalQuery: userQuery, Queries: []string{userQuery}}
	if cfg.EnableQueryExpansion {
		expanded, err := o.expander.Expand(ctx, userQuery, expand.Options{
			MaxExpansions: cfg.MaxExpandedQueries,
		})
		if err != nil {
			logger.Warn("query expansion failed, continuing with original query", "error", err)
		} else {
			expansion = expanded
		}
	}

	// Retrieval always runs.
	advance(StageRetrieving)
	retrieved, err := o.retriever.Retrieve(ctx, retrieval.Request{
		AgentID:   identity.ID,
		CompanyID: companyID,
		Queries:   expansion.Queries,
		Config:    cfg,
	})
	if err != nil {
		return nil, fmt.Errorf("retrieving context: %w", err)
	}
	pool := retrieved.Merged()

	// Rank the candidate pool down to the final chunk list.
	advance(StageReranking)
	var rerankMs int64
	final := pool
	if cfg.EnableReranking {
		ranked := o.reranker.Rerank(ctx, userQuery, pool, cfg.EffectiveRerankTopN())
		final = ranked.Chunks
		rerankMs = ranked.RerankTimeMs
	} else if len(final) > cfg.TotalMaxChunks {
		final = final[:cfg.TotalMaxChunks]
	}

	advance(StagePromptBuilding)
	built, err := o.builder.Build(identity, final, userQuery, cfg)
	if err != nil {
		return nil, fmt.Errorf("building prompt: %w", err)
	}

	confidence := contextConfidence(final)
	footer := prompt.CitationFooter(final, confidence, retrieved.RetrievalTimeMs)

	advance(StageDone)
	result := &Result{
		RunID:           runID,
		Prompt:          built,
		Footer:          footer,
		Confidence:      confidence,
		ChunksRetrieved: retrieved.TotalChunks,
		ChunksUsed:      len(final),
		Timings: Timings{
			ExpandMs:   expansion.ElapsedMs,
			RetrieveMs: retrieved.RetrievalTimeMs,
			RerankMs:   rerankMs,
			TotalMs:    time.Since(start).Milliseconds(),
		},
	}

	span.SetAttributes(
		attribute.Int("chunks_retrieved", result.ChunksRetrieved),
		attribute.Int("chunks_used", result.ChunksUsed),
		attribute.Float64("confidence", result.Confidence),
	)
	logger.Info("context injection complete",
		"chunks_retrieved", result.ChunksRetrieved,
		"chunks_used", result.ChunksUsed,
		"confidence", result.Confidence,
		"total_ms", result.Timings.TotalMs)
	return result, nil
}

// contextConfidence is the mean effective score over the final chunks,
// clamped to [0,1]. Zero chunks means zero confidence.
func contextConfidence(chunks []retrieval.Chunk) float64 {
	if len(chunks) == 0 {
		return 0
	}
	var sum float64
	for i := range chunks {
		sum += chunks[i].EffectiveScore()
	}
	mean := sum / float64(len(chunks))
	if mean < 0 {
		return 0
	}
	if mean > 1 {
		return 1
	}
	return mean
}
