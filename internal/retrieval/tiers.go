package retrieval

import (
	"context"
	"fmt"
	"sort"

	"github.com/JoePa99/joeupup-sub002/internal/config"
	"github.com/JoePa99/joeupup-sub002/internal/store"
)

// profileField is one semantic slice of the company profile.
type profileField struct {
	key   string
	label string
	text  func(*store.Profile) string
}

// profileFields is the fixed decomposition of a company profile. A field
// with no content emits no chunk.
var profileFields = []profileField{
	{"overview", "Company Overview", func(p *store.Profile) string { return p.Overview }},
	{"mission_vision", "Mission & Vision", func(p *store.Profile) string { return p.MissionVision }},
	{"core_values", "Core Values", func(p *store.Profile) string { return p.CoreValues }},
	{"positioning", "Positioning Statement", func(p *store.Profile) string { return p.Positioning }},
	{"business_model", "Business Model", func(p *store.Profile) string { return p.BusinessModel }},
	{"ideal_customer_profile", "Ideal Customer Profile", func(p *store.Profile) string { return p.IdealCustomerProfile }},
	{"customer_journey", "Customer Journey", func(p *store.Profile) string { return p.CustomerJourney }},
	{"market_analysis", "Market Analysis", func(p *store.Profile) string { return p.MarketAnalysis }},
	{"brand_purpose", "Brand Purpose", func(p *store.Profile) string { return p.BrandPurpose }},
	{"brand_voice", "Brand Voice Guidelines", func(p *store.Profile) string { return p.BrandVoice }},
}

// retrieveCompanyProfile loads the profile record, decomposes it into
// semantic chunks, embeds them ad hoc, and scores each against the shared
// query vector.
//
// The per-call embedding is a known inefficiency: profile data changes
// rarely, so a persistent deployment can precompute these vectors without
// changing observable behavior.
//
// Metadata keys: "field", "company_name".
func (c *Coordinator) retrieveCompanyProfile(ctx context.Context, req Request, queryVector []float32) ([]Chunk, error) {
	if len(queryVector) == 0 {
		// Degraded query embedding; cosine against it is zero everywhere.
		return nil, nil
	}

	profile, err := c.profiles.LoadCompanyProfile(ctx, req.CompanyID)
	if err != nil {
		return nil, err
	}

	var (
		fields []profileField
		texts  []string
	)
	for _, f := range profileFields {
		if text := f.text(profile); text != "" {
			fields = append(fields, f)
			texts = append(texts, text)
		}
	}
	if len(texts) == 0 {
		return nil, nil
	}

	vectors, err := c.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embedding profile chunks: %w", err)
	}

	var chunks []Chunk
	for i, f := range fields {
		if len(vectors[i]) != len(queryVector) {
			// Logic error (inconsistent embedder dimensionality); degrade
			// to score 0 rather than aborting the tier.
			c.logger.Error("profile chunk dimension mismatch",
				"field", f.key, "got", len(vectors[i]), "want", len(queryVector))
		}
		score := CosineSimilarity(vectors[i], queryVector)
		if score < req.Config.SimilarityThreshold {
			continue
		}
		chunks = append(chunks, Chunk{
			ID:           "profile:" + f.key,
			Content:      texts[i],
			Source:       SourceCompanyProfile,
			SourceDetail: f.label,
			Score:        score,
			Metadata: map[string]string{
				"field":        f.key,
				"company_name": profile.CompanyName,
			},
		})
	}

	sortChunks(chunks)
	return truncateChunks(chunks, req.Config.MaxChunksPerSource), nil
}

// retrieveAgentDocs delegates to vector search scoped to the agent.
//
// Metadata keys: whatever the ingestion pipeline stored per chunk
// (conventionally "file_name", "chunk_index").
func (c *Coordinator) retrieveAgentDocs(ctx context.Context, req Request, queryVector []float32) ([]Chunk, error) {
	if len(queryVector) == 0 {
		return nil, nil
	}
	hits, err := c.documents.SearchAgentDocuments(ctx, queryVector, req.AgentID,
		req.Config.SimilarityThreshold, req.Config.MaxChunksPerSource)
	if err != nil {
		return nil, err
	}
	return hitsToChunks(hits, SourceAgentDocs, req.Config), nil
}

// retrieveSharedDocs delegates to vector search scoped to the company's
// shared documents. Metadata keys as for agent docs.
func (c *Coordinator) retrieveSharedDocs(ctx context.Context, req Request, queryVector []float32) ([]Chunk, error) {
	if len(queryVector) == 0 {
		return nil, nil
	}
	hits, err := c.documents.SearchSharedDocuments(ctx, queryVector, req.CompanyID,
		req.Config.SimilarityThreshold, req.Config.MaxChunksPerSource)
	if err != nil {
		return nil, err
	}
	return hitsToChunks(hits, SourceSharedDocs, req.Config), nil
}

// retrievePlaybooks performs full-text search using only the primary query;
// expansions are not used for this tier.
//
// Metadata keys: "playbook_title", "section_title", "section_order", "tags".
func (c *Coordinator) retrievePlaybooks(ctx context.Context, req Request, primary string) ([]Chunk, error) {
	hits, err := c.playbooks.SearchPlaybooks(ctx, primary, req.CompanyID, req.Config.MaxChunksPerSource)
	if err != nil {
		return nil, err
	}
	return hitsToChunks(hits, SourcePlaybooks, req.Config), nil
}

// retrieveKeywords runs hybrid keyword search for every query in the
// expanded list and merges by ID, keeping the best score per document.
//
// Metadata keys: "origin_source" ("document" or "playbook") plus the
// matched row's own metadata.
func (c *Coordinator) retrieveKeywords(ctx context.Context, req Request) ([]Chunk, error) {
	best := make(map[string]store.Hit)
	for _, query := range req.Queries {
		hits, err := c.keywords.SearchKeywords(ctx, query, req.CompanyID, req.AgentID,
			req.Config.MaxChunksPerSource)
		if err != nil {
			return nil, err
		}
		for _, hit := range hits {
			if existing, ok := best[hit.ID]; !ok || hit.Score > existing.Score {
				best[hit.ID] = hit
			}
		}
	}

	merged := make([]store.Hit, 0, len(best))
	for _, hit := range best {
		merged = append(merged, hit)
	}

	return hitsToChunks(merged, SourceKeywords, req.Config), nil
}

// hitsToChunks converts store hits into chunks for one tier, applying the
// threshold filter, deterministic ordering, and the per-source budget.
func hitsToChunks(hits []store.Hit, source Source, cfg config.ContextInjection) []Chunk {
	chunks := make([]Chunk, 0, len(hits))
	for _, hit := range hits {
		if hit.Score < cfg.SimilarityThreshold {
			continue
		}
		metadata := hit.Metadata
		if metadata == nil {
			metadata = map[string]string{}
		}
		if hit.Source != "" {
			metadata["origin_source"] = hit.Source
		}
		chunks = append(chunks, Chunk{
			ID:           hit.ID,
			Content:      hit.Content,
			Source:       source,
			SourceDetail: hit.Title,
			Score:        hit.Score,
			Metadata:     metadata,
		})
	}
	sortChunks(chunks)
	return truncateChunks(chunks, cfg.MaxChunksPerSource)
}

// sortChunks orders by descending score with ID as the deterministic
// tie-breaker.
func sortChunks(chunks []Chunk) {
	sort.SliceStable(chunks, func(i, j int) bool {
		if chunks[i].Score == chunks[j].Score {
			return chunks[i].ID < chunks[j].ID
		}
		return chunks[i].Score > chunks[j].Score
	})
}

// truncateChunks caps a tier's output at limit (limit <= 0 means no cap).
func truncateChunks(chunks []Chunk, limit int) []Chunk {
	if limit > 0 && len(chunks) > limit {
		return chunks[:limit]
	}
	return chunks
}
