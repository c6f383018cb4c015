package config

import (
	"errors"
	"testing"
)

func TestContextInjectionValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*ContextInjection)
		wantErr error
	}{
		{name: "defaults valid", mutate: func(c *ContextInjection) {}},
		{
			name:    "zero max chunks per source",
			mutate:  func(c *ContextInjection) { c.MaxChunksPerSource = 0 },
			wantErr: ErrInvalidMaxChunksPerSource,
		},
		{
			name:    "zero total max chunks",
			mutate:  func(c *ContextInjection) { c.TotalMaxChunks = 0 },
			wantErr: ErrInvalidTotalMaxChunks,
		},
		{
			name:    "negative threshold",
			mutate:  func(c *ContextInjection) { c.SimilarityThreshold = -0.1 },
			wantErr: ErrInvalidSimilarityThreshold,
		},
		{
			name:    "threshold above one",
			mutate:  func(c *ContextInjection) { c.SimilarityThreshold = 1.2 },
			wantErr: ErrInvalidSimilarityThreshold,
		},
		{
			name:   "threshold at bounds",
			mutate: func(c *ContextInjection) { c.SimilarityThreshold = 1 },
		},
		{
			name: "expansion enabled without budget",
			mutate: func(c *ContextInjection) {
				c.EnableQueryExpansion = true
				c.MaxExpandedQueries = 0
			},
			wantErr: ErrInvalidMaxExpandedQueries,
		},
		{
			name: "expansion disabled ignores budget",
			mutate: func(c *ContextInjection) {
				c.EnableQueryExpansion = false
				c.MaxExpandedQueries = 0
			},
		},
		{
			name: "rerank top N above total",
			mutate: func(c *ContextInjection) {
				c.TotalMaxChunks = 10
				c.RerankTopN = 11
			},
			wantErr: ErrRerankTopNExceedsTotal,
		},
		{
			name: "rerank top N at total",
			mutate: func(c *ContextInjection) {
				c.TotalMaxChunks = 10
				c.RerankTopN = 10
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := DefaultContextInjection()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("Validate = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestEffectiveRerankTopN(t *testing.T) {
	t.Parallel()

	cfg := DefaultContextInjection()
	cfg.TotalMaxChunks = 10
	cfg.RerankTopN = 0
	if got := cfg.EffectiveRerankTopN(); got != 10 {
		t.Errorf("unset RerankTopN resolved to %d, want TotalMaxChunks", got)
	}

	cfg.RerankTopN = 4
	if got := cfg.EffectiveRerankTopN(); got != 4 {
		t.Errorf("set RerankTopN resolved to %d, want 4", got)
	}
}
