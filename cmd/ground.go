package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/JoePa99/joeupup-sub002/db"
	"github.com/JoePa99/joeupup-sub002/internal/config"
	"github.com/JoePa99/joeupup-sub002/internal/embed"
	"github.com/JoePa99/joeupup-sub002/internal/expand"
	"github.com/JoePa99/joeupup-sub002/internal/injection"
	"github.com/JoePa99/joeupup-sub002/internal/log"
	"github.com/JoePa99/joeupup-sub002/internal/observability"
	"github.com/JoePa99/joeupup-sub002/internal/prompt"
	"github.com/JoePa99/joeupup-sub002/internal/rerank"
	"github.com/JoePa99/joeupup-sub002/internal/retrieval"
	"github.com/JoePa99/joeupup-sub002/internal/store"
)

var (
	groundAgentID     string
	groundAgentName   string
	groundAgentRole   string
	groundAgentDesc   string
	groundCompanyID   string
	groundNoExpand    bool
	groundNoRerank    bool
	groundNoCitations bool
	groundShowFooter  bool
)

var groundCmd = &cobra.Command{
	Use:   "ground [query]",
	Short: "Build a grounded system prompt for one query",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runGround,
}

func init() {
	groundCmd.Flags().StringVar(&groundAgentID, "agent", "", "agent ID (required)")
	groundCmd.Flags().StringVar(&groundAgentName, "name", "Assistant", "agent display name")
	groundCmd.Flags().StringVar(&groundAgentRole, "role", "a company AI assistant", "agent role")
	groundCmd.Flags().StringVar(&groundAgentDesc, "description", "", "agent description")
	groundCmd.Flags().StringVar(&groundCompanyID, "company", "", "company ID (required)")
	groundCmd.Flags().BoolVar(&groundNoExpand, "no-expand", false, "skip query expansion")
	groundCmd.Flags().BoolVar(&groundNoRerank, "no-rerank", false, "skip reranking")
	groundCmd.Flags().BoolVar(&groundNoCitations, "no-citations", false, "omit citation markers")
	groundCmd.Flags().BoolVar(&groundShowFooter, "footer", true, "print the citation footer")
	_ = groundCmd.MarkFlagRequired("agent")
	_ = groundCmd.MarkFlagRequired("company")
	rootCmd.AddCommand(groundCmd)
}

func runGround(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger := log.New(log.Config{Level: log.LevelFromEnv()})

	shutdownTracing, err := observability.Setup(ctx, cfg.Tracing, logger)
	if err != nil {
		return fmt.Errorf("setting up tracing: %w", err)
	}
	defer func() { _ = shutdownTracing(ctx) }()

	g := genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))

	pool, closePool, err := openPool(ctx, cfg)
	if err != nil {
		return err
	}
	defer closePool()

	orchestrator, err := buildPipeline(g, pool, cfg, logger)
	if err != nil {
		return err
	}

	injectionCfg := cfg.Injection
	if groundNoExpand {
		injectionCfg.EnableQueryExpansion = false
	}
	if groundNoRerank {
		injectionCfg.EnableReranking = false
	}
	if groundNoCitations {
		injectionCfg.IncludeCitations = false
	}

	identity := injection.AgentIdentity{
		ID:          groundAgentID,
		Name:        groundAgentName,
		Role:        groundAgentRole,
		Description: groundAgentDesc,
	}
	query := strings.Join(args, " ")

	result, err := orchestrator.Run(ctx, identity, groundCompanyID, query, injectionCfg)
	if err != nil {
		return err
	}

	fmt.Println(result.Prompt.SystemPrompt)
	if groundShowFooter && result.Footer != "" {
		fmt.Println()
		fmt.Println(result.Footer)
	}
	fmt.Println()
	fmt.Printf("chunks: %d retrieved, %d used | confidence: %.0f%% | tokens: ~%d | %dms (run %s)\n",
		result.ChunksRetrieved, result.ChunksUsed, result.Confidence*100,
		result.Prompt.TotalTokens, result.Timings.TotalMs, result.RunID)
	return nil
}

// openPool runs migrations and opens the pgx connection pool.
func openPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, func(), error) {
	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return nil, nil, fmt.Errorf("running migrations: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresConnectionString())
	if err != nil {
		return nil, nil, fmt.Errorf("parsing connection config: %w", err)
	}
	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	return pool, pool.Close, nil
}

// buildPipeline assembles the orchestrator from its stages.
func buildPipeline(g *genkit.Genkit, pool *pgxpool.Pool, cfg *config.Config, logger log.Logger) (*injection.Orchestrator, error) {
	// Embedding API quota is the scarce resource; cap request rate rather
	// than letting a wide profile decomposition burst through it.
	limiter := rate.NewLimiter(rate.Limit(5), 10)
	embedClient := embed.New(googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel), limiter, logger)

	backend := store.NewPostgres(pool, logger)
	coordinator, err := retrieval.NewCoordinator(retrieval.CoordinatorConfig{
		Embedder:  embedClient,
		Documents: backend,
		Playbooks: backend,
		Keywords:  backend,
		Profiles:  backend,
		Logger:    logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating retrieval coordinator: %w", err)
	}

	cache := expand.NewMemoryCache(expand.DefaultCacheSize, expand.DefaultCacheTTL)
	expander := expand.New(g, cfg.ExpansionModel, cache, logger)

	var reranker rerank.Reranker
	if cfg.RerankEndpoint != "" {
		reranker = rerank.NewService(rerank.ServiceConfig{
			Endpoint: cfg.RerankEndpoint,
			APIKey:   cfg.RerankAPIKey,
			Model:    cfg.Injection.RerankModel,
			Logger:   logger,
		})
	} else {
		// No rerank service configured; lexical scoring needs nothing
		// external and never fails.
		reranker = rerank.NewBM25()
	}

	orchestrator, err := injection.NewOrchestrator(injection.OrchestratorConfig{
		Expander:  expander,
		Retriever: coordinator,
		Reranker:  reranker,
		Builder:   prompt.NewBuilder(logger),
		Logger:    logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating orchestrator: %w", err)
	}
	return orchestrator, nil
}
