// Package store implements the PostgreSQL search backend behind the tier
// retrievers.
//
// It provides three query paths over the knowledge tables created by
// db/migrations:
//
//   - vector similarity search over document_chunks (pgvector cosine)
//   - full-text search over playbook_sections (tsvector + ts_rank)
//   - hybrid keyword search across both tables (tsquery OR trigram-free ILIKE)
//
// plus the company-profile loader. The retrieval package defines the
// consumer interfaces these methods satisfy; this package only exports the
// concrete Postgres implementation.
//
// All queries are parameterized; filter values never reach SQL as text.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// VectorDimension is the embedding width of the document_chunks.embedding
// column. Embedders must be configured to emit this dimensionality
// (gemini-embedding-001 truncates to 768 via OutputDimensionality).
const VectorDimension = 768

// ErrProfileNotFound indicates no company profile exists for the given
// company.
var ErrProfileNotFound = errors.New("company profile not found")

// Hit is one raw search result row, before it becomes a retrieval chunk.
type Hit struct {
	ID       string
	Title    string
	Content  string
	Score    float64 // cosine similarity or normalized text rank, in [0,1]
	Source   string  // set by hybrid search: "document" or "playbook"
	Metadata map[string]string
}

// Profile is the structured company-profile record. The company-profile
// retriever decomposes it into semantic chunks; empty fields yield no chunk.
type Profile struct {
	CompanyID            string
	CompanyName          string
	Overview             string
	MissionVision        string
	CoreValues           string
	Positioning          string
	BusinessModel        string
	IdealCustomerProfile string
	CustomerJourney      string
	MarketAnalysis       string
	BrandPurpose         string
	BrandVoice           string
}

// Postgres is the pgx-backed search store.
//
// Postgres is safe for concurrent use; the underlying pool handles
// connection management.
type Postgres struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewPostgres creates a Postgres store. logger may be nil.
func NewPostgres(pool *pgxpool.Pool, logger *slog.Logger) *Postgres {
	if logger == nil {
		logger = slog.Default()
	}
	return &Postgres{pool: pool, logger: logger}
}

// SearchAgentDocuments performs vector search over chunks owned by one agent.
func (p *Postgres) SearchAgentDocuments(
	ctx context.Context,
	embedding []float32,
	agentID string,
	threshold float64,
	limit int,
) ([]Hit, error) {
	const query = `
SELECT id, title, content, metadata, 1 - (embedding <=> $1) AS similarity
FROM document_chunks
WHERE agent_id = $2
  AND 1 - (embedding <=> $1) >= $3
ORDER BY embedding <=> $1 ASC
LIMIT $4`
	return p.vectorSearch(ctx, query, embedding, agentID, threshold, limit)
}

// SearchSharedDocuments performs vector search over a company's shared chunks.
func (p *Postgres) SearchSharedDocuments(
	ctx context.Context,
	embedding []float32,
	companyID string,
	threshold float64,
	limit int,
) ([]Hit, error) {
	const query = `
SELECT id, title, content, metadata, 1 - (embedding <=> $1) AS similarity
FROM document_chunks
WHERE company_id = $2 AND shared = TRUE
  AND 1 - (embedding <=> $1) >= $3
ORDER BY embedding <=> $1 ASC
LIMIT $4`
	return p.vectorSearch(ctx, query, embedding, companyID, threshold, limit)
}

// vectorSearch runs one of the pgvector queries above.
func (p *Postgres) vectorSearch(
	ctx context.Context,
	query string,
	embedding []float32,
	scopeID string,
	threshold float64,
	limit int,
) ([]Hit, error) {
	if len(embedding) == 0 {
		// Degraded embedding upstream; zero similarity matches nothing.
		return nil, nil
	}
	if len(embedding) != VectorDimension {
		return nil, fmt.Errorf("query embedding dimension mismatch: got %d, want %d",
			len(embedding), VectorDimension)
	}

	rows, err := p.pool.Query(ctx, query, pgvector.NewVector(embedding), scopeID, threshold, limit)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		var (
			hit         Hit
			metadataRaw []byte
		)
		if err := rows.Scan(&hit.ID, &hit.Title, &hit.Content, &metadataRaw, &hit.Score); err != nil {
			return nil, fmt.Errorf("scanning vector search row: %w", err)
		}
		hit.Metadata = p.parseMetadata(hit.ID, metadataRaw)
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("vector search rows: %w", err)
	}
	return hits, nil
}

// SearchPlaybooks performs full-text search over a company's playbook
// sections. Scores are ts_rank values clamped to [0,1]; section ordering is
// preserved in metadata.
func (p *Postgres) SearchPlaybooks(
	ctx context.Context,
	queryText string,
	companyID string,
	limit int,
) ([]Hit, error) {
	const query = `
SELECT id, playbook_title, section_title, content, section_order, COALESCE(tags, ''),
       ts_rank(search_vector, websearch_to_tsquery('english', $1)) AS relevance
FROM playbook_sections
WHERE company_id = $2
  AND search_vector @@ websearch_to_tsquery('english', $1)
ORDER BY relevance DESC, section_order ASC
LIMIT $3`

	rows, err := p.pool.Query(ctx, query, queryText, companyID, limit)
	if err != nil {
		return nil, fmt.Errorf("playbook search: %w", err)
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		var (
			hit            Hit
			playbookTitle  string
			sectionTitle   string
			sectionOrder   int
			tags           string
		)
		if err := rows.Scan(&hit.ID, &playbookTitle, &sectionTitle, &hit.Content,
			&sectionOrder, &tags, &hit.Score); err != nil {
			return nil, fmt.Errorf("scanning playbook row: %w", err)
		}
		hit.Title = fmt.Sprintf("%s - %s", playbookTitle, sectionTitle)
		hit.Score = clamp01(hit.Score)
		hit.Metadata = map[string]string{
			"playbook_title": playbookTitle,
			"section_title":  sectionTitle,
			"section_order":  fmt.Sprintf("%d", sectionOrder),
		}
		if tags != "" {
			hit.Metadata["tags"] = tags
		}
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("playbook rows: %w", err)
	}
	return hits, nil
}

// SearchKeywords performs hybrid keyword search across document chunks and
// playbook sections visible to (companyID, agentID). Each hit's Source field
// records the table it matched in for downstream attribution.
func (p *Postgres) SearchKeywords(
	ctx context.Context,
	queryText string,
	companyID string,
	agentID string,
	limit int,
) ([]Hit, error) {
	// Full-text match first, ILIKE as the keyword fallback for terms the
	// english dictionary stems away (product names, SKUs).
	const query = `
SELECT id, title, content, 'document' AS source, metadata,
       ts_rank(search_vector, websearch_to_tsquery('english', $1)) AS relevance
FROM document_chunks
WHERE company_id = $2 AND (agent_id = $3 OR shared = TRUE)
  AND (search_vector @@ websearch_to_tsquery('english', $1) OR content ILIKE '%' || $1 || '%')
UNION ALL
SELECT id, playbook_title || ' - ' || section_title, content, 'playbook' AS source, NULL,
       ts_rank(search_vector, websearch_to_tsquery('english', $1)) AS relevance
FROM playbook_sections
WHERE company_id = $2
  AND (search_vector @@ websearch_to_tsquery('english', $1) OR content ILIKE '%' || $1 || '%')
ORDER BY relevance DESC
LIMIT $4`

	rows, err := p.pool.Query(ctx, query, queryText, companyID, agentID, limit)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		var (
			hit         Hit
			metadataRaw []byte
		)
		if err := rows.Scan(&hit.ID, &hit.Title, &hit.Content, &hit.Source, &metadataRaw, &hit.Score); err != nil {
			return nil, fmt.Errorf("scanning keyword row: %w", err)
		}
		hit.Score = clamp01(hit.Score)
		hit.Metadata = p.parseMetadata(hit.ID, metadataRaw)
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("keyword rows: %w", err)
	}
	return hits, nil
}

// LoadCompanyProfile loads the structured profile record for a company.
// Returns ErrProfileNotFound when no row exists.
func (p *Postgres) LoadCompanyProfile(ctx context.Context, companyID string) (*Profile, error) {
	const query = `
SELECT company_id, company_name,
       COALESCE(overview, ''), COALESCE(mission_vision, ''), COALESCE(core_values, ''),
       COALESCE(positioning, ''), COALESCE(business_model, ''), COALESCE(ideal_customer_profile, ''),
       COALESCE(customer_journey, ''), COALESCE(market_analysis, ''), COALESCE(brand_purpose, ''),
       COALESCE(brand_voice, '')
FROM company_profiles
WHERE company_id = $1`

	var profile Profile
	err := p.pool.QueryRow(ctx, query, companyID).Scan(
		&profile.CompanyID, &profile.CompanyName,
		&profile.Overview, &profile.MissionVision, &profile.CoreValues,
		&profile.Positioning, &profile.BusinessModel, &profile.IdealCustomerProfile,
		&profile.CustomerJourney, &profile.MarketAnalysis, &profile.BrandPurpose,
		&profile.BrandVoice,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: company %q", ErrProfileNotFound, companyID)
		}
		return nil, fmt.Errorf("loading company profile: %w", err)
	}
	return &profile, nil
}

// parseMetadata decodes a JSONB metadata column, degrading to an empty map
// on corrupt data.
func (p *Postgres) parseMetadata(id string, raw []byte) map[string]string {
	if len(raw) == 0 {
		return map[string]string{}
	}
	var metadata map[string]string
	if err := json.Unmarshal(raw, &metadata); err != nil {
		p.logger.Warn("failed to parse metadata", "id", id, "error", err)
		return map[string]string{}
	}
	return metadata
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
