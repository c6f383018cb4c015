package store_test

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"github.com/stretchr/testify/require"

	"github.com/JoePa99/joeupup-sub002/internal/log"
	"github.com/JoePa99/joeupup-sub002/internal/store"
	"github.com/JoePa99/joeupup-sub002/internal/testutil"
)

// unitVector returns a VectorDimension-wide vector with 1 at index i.
// Identical indices have cosine similarity 1, distinct indices 0.
func unitVector(i int) []float32 {
	v := make([]float32, store.VectorDimension)
	v[i] = 1
	return v
}

func seedFixtures(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()
	ctx := context.Background()

	_, err := pool.Exec(ctx, `
INSERT INTO company_profiles (company_id, company_name, overview, brand_voice)
VALUES ('company-1', 'Acme', 'We sell anvils to coyotes.', 'Confident and direct.')`)
	require.NoError(t, err)

	docs := []struct {
		id      string
		agentID string
		shared  bool
		title   string
		content string
		vec     []float32
	}{
		{"doc-agent", "agent-1", false, "Pricing Guide", "Enterprise pricing is per seat.", unitVector(0)},
		{"doc-agent-far", "agent-1", false, "HR Handbook", "Vacation policy details.", unitVector(1)},
		{"doc-shared", "", true, "Company FAQ", "Shipping times for anvils.", unitVector(0)},
		{"doc-other-agent", "agent-2", false, "Other Notes", "Unrelated agent material.", unitVector(0)},
	}
	for _, d := range docs {
		var agentID any
		if d.agentID != "" {
			agentID = d.agentID
		}
		_, err := pool.Exec(ctx, `
INSERT INTO document_chunks (id, company_id, agent_id, shared, title, content, metadata, embedding)
VALUES ($1, 'company-1', $2, $3, $4, $5, '{"file_name":"source.pdf"}', $6)`,
			d.id, agentID, d.shared, d.title, d.content, pgvector.NewVector(d.vec))
		require.NoError(t, err)
	}

	_, err = pool.Exec(ctx, `
INSERT INTO playbook_sections (id, company_id, playbook_title, section_title, section_order, tags, content)
VALUES
  ('pb-1', 'company-1', 'Sales Playbook', 'Pricing Negotiation', 1, 'pricing,sales', 'Anchor high, concede slowly on pricing.'),
  ('pb-2', 'company-1', 'Sales Playbook', 'Onboarding', 2, NULL, 'Welcome new customers warmly.')`)
	require.NoError(t, err)
}

func TestPostgresIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container-backed integration test in short mode")
	}

	pool, cleanup := testutil.SetupTestDB(t)
	defer cleanup()
	seedFixtures(t, pool)

	p := store.NewPostgres(pool, log.NewNop())
	ctx := context.Background()

	t.Run("agent document vector search", func(t *testing.T) {
		hits, err := p.SearchAgentDocuments(ctx, unitVector(0), "agent-1", 0.5, 10)
		require.NoError(t, err)
		require.Len(t, hits, 1)
		require.Equal(t, "doc-agent", hits[0].ID)
		require.InDelta(t, 1.0, hits[0].Score, 1e-6)
		require.Equal(t, "source.pdf", hits[0].Metadata["file_name"])
	})

	t.Run("empty embedding degrades to no hits", func(t *testing.T) {
		hits, err := p.SearchAgentDocuments(ctx, nil, "agent-1", 0.5, 10)
		require.NoError(t, err)
		require.Empty(t, hits)
	})

	t.Run("dimension mismatch is an error", func(t *testing.T) {
		_, err := p.SearchAgentDocuments(ctx, []float32{1, 0}, "agent-1", 0.5, 10)
		require.Error(t, err)
	})

	t.Run("shared document vector search", func(t *testing.T) {
		hits, err := p.SearchSharedDocuments(ctx, unitVector(0), "company-1", 0.5, 10)
		require.NoError(t, err)
		require.Len(t, hits, 1)
		require.Equal(t, "doc-shared", hits[0].ID)
	})

	t.Run("playbook full-text search", func(t *testing.T) {
		hits, err := p.SearchPlaybooks(ctx, "pricing", "company-1", 10)
		require.NoError(t, err)
		require.Len(t, hits, 1)
		require.Equal(t, "pb-1", hits[0].ID)
		require.Equal(t, "Sales Playbook - Pricing Negotiation", hits[0].Title)
		require.Equal(t, "pricing,sales", hits[0].Metadata["tags"])
		require.GreaterOrEqual(t, hits[0].Score, 0.0)
		require.LessOrEqual(t, hits[0].Score, 1.0)
	})

	t.Run("keyword hybrid search spans tables", func(t *testing.T) {
		hits, err := p.SearchKeywords(ctx, "pricing", "company-1", "agent-1", 10)
		require.NoError(t, err)

		sources := map[string]string{}
		for _, hit := range hits {
			sources[hit.ID] = hit.Source
		}
		require.Equal(t, "document", sources["doc-agent"])
		require.Equal(t, "playbook", sources["pb-1"])
		require.NotContains(t, sources, "doc-other-agent")
	})

	t.Run("load company profile", func(t *testing.T) {
		profile, err := p.LoadCompanyProfile(ctx, "company-1")
		require.NoError(t, err)
		require.Equal(t, "Acme", profile.CompanyName)
		require.Equal(t, "We sell anvils to coyotes.", profile.Overview)
		require.Empty(t, profile.MissionVision)
	})

	t.Run("missing profile", func(t *testing.T) {
		_, err := p.LoadCompanyProfile(ctx, "nope")
		require.True(t, errors.Is(err, store.ErrProfileNotFound))
	})
}
