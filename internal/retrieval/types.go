package retrieval

// Source identifies the knowledge tier a chunk was retrieved from.
// The declared order is the canonical tier order: company profile context
// is rendered first, keyword matches last.
type Source string

// Knowledge tiers, in priority order.
const (
	// SourceCompanyProfile is structured company-level context
	// (mission, values, positioning, brand voice).
	SourceCompanyProfile Source = "company_profile"

	// SourceAgentDocs is documents uploaded for one specific agent.
	SourceAgentDocs Source = "agent_docs"

	// SourceSharedDocs is documents shared across all agents of a company.
	SourceSharedDocs Source = "shared_docs"

	// SourcePlaybooks is structured playbook sections (full-text indexed).
	SourcePlaybooks Source = "playbooks"

	// SourceKeywords is hybrid keyword matches across all sources.
	SourceKeywords Source = "keywords"
)

// Sources lists all knowledge tiers in canonical order.
// Iteration over this slice is the only sanctioned cross-tier ordering.
var Sources = []Source{
	SourceCompanyProfile,
	SourceAgentDocs,
	SourceSharedDocs,
	SourcePlaybooks,
	SourceKeywords,
}

// DisplayName returns the human-readable tier name used in prompt sections
// and citation footers.
func (s Source) DisplayName() string {
	switch s {
	case SourceCompanyProfile:
		return "Company Profile"
	case SourceAgentDocs:
		return "Agent Documents"
	case SourceSharedDocs:
		return "Shared Documents"
	case SourcePlaybooks:
		return "Playbooks"
	case SourceKeywords:
		return "Keyword Matches"
	default:
		return string(s)
	}
}

// Valid reports whether s is one of the five known tiers.
func (s Source) Valid() bool {
	switch s {
	case SourceCompanyProfile, SourceAgentDocs, SourceSharedDocs, SourcePlaybooks, SourceKeywords:
		return true
	}
	return false
}

// Chunk is one unit of retrievable knowledge. Chunks are created fresh on
// every retrieval call, live for the duration of a single orchestration run,
// and are never persisted; only the citation map in the final result
// outlives them.
//
// Metadata is an open key-value bag with tier-specific conventional keys;
// see the individual retrievers for the keys each tier writes.
type Chunk struct {
	// ID is an opaque identifier, unique within the chunk's source.
	ID string

	// Content is the text body.
	Content string

	// Source is the knowledge tier this chunk came from. Immutable.
	Source Source

	// SourceDetail is a human-readable label (document title, section name).
	SourceDetail string

	// Score is the tier-local relevance score in [0,1] (cosine similarity
	// or full-text rank). Set at retrieval time, read-only afterward.
	Score float64

	// RerankScore is set by the reranker; when non-nil it supersedes Score
	// for ordering.
	RerankScore *float64

	// Metadata carries tier-specific attributes (file name, tags, chunk
	// position). No cross-tier schema is imposed.
	Metadata map[string]string
}

// EffectiveScore returns RerankScore when set, Score otherwise.
func (c *Chunk) EffectiveScore() float64 {
	if c.RerankScore != nil {
		return *c.RerankScore
	}
	return c.Score
}

// Result holds the outcome of one coordinated retrieval across all tiers.
type Result struct {
	// ByTier maps each tier to its (already filtered, sorted, truncated)
	// chunk list. Every tier has an entry; disabled or failed tiers map to
	// an empty list.
	ByTier map[Source][]Chunk

	// RetrievalTimeMs is the wall-clock duration of the joint fan-out.
	RetrievalTimeMs int64

	// TotalChunks is the sum of all tier list lengths.
	TotalChunks int
}

// Merged concatenates the tier lists in canonical tier order.
func (r *Result) Merged() []Chunk {
	merged := make([]Chunk, 0, r.TotalChunks)
	for _, src := range Sources {
		merged = append(merged, r.ByTier[src]...)
	}
	return merged
}

// TierCounts returns the number of chunks per tier, omitting empty tiers.
func (r *Result) TierCounts() map[Source]int {
	counts := make(map[Source]int, len(r.ByTier))
	for src, chunks := range r.ByTier {
		if len(chunks) > 0 {
			counts[src] = len(chunks)
		}
	}
	return counts
}
