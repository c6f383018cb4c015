// Package prompt assembles the grounded system prompt handed to the
// language model. It groups ranked chunks into fixed knowledge tiers,
// renders a titled section per non-empty tier, numbers citation markers
// across the merged tier order, and substitutes everything into a
// placeholder template. Assembly is fully deterministic: the same chunks,
// identity, query, and configuration always produce the same bytes.
package prompt

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/JoePa99/joeupup-sub002/internal/config"
	"github.com/JoePa99/joeupup-sub002/internal/retrieval"
)

// Builder-related errors.
var (
	// ErrEmptyUserQuery is returned when Build is called without a query.
	ErrEmptyUserQuery = errors.New("user query cannot be empty")
)

// maxExampleLabels bounds the source labels quoted per tier in summaries
// and footers.
const maxExampleLabels = 3

// AgentIdentity describes the agent the prompt speaks as. Read-only input.
type AgentIdentity struct {
	ID          string
	Name        string
	Role        string
	Description string
}

// SourceSummary describes one non-empty tier for observability output.
type SourceSummary struct {
	Source   retrieval.Source
	Name     string
	Count    int
	Examples []string
}

// BuildResult is the outcome of one prompt assembly.
type BuildResult struct {
	// SystemPrompt is the fully rendered prompt.
	SystemPrompt string

	// ContextSources summarizes the non-empty tiers in canonical order.
	// Empty when no chunks were provided.
	ContextSources []SourceSummary

	// TotalTokens is a crude ceil(len/4) estimate, not an exact count.
	TotalTokens int

	// CitationMap maps each [n] marker to its chunk. Nil when citations
	// are disabled.
	CitationMap map[int]retrieval.Chunk
}

// Builder renders system prompts. Safe for concurrent use.
type Builder struct {
	logger *slog.Logger
}

// NewBuilder creates a Builder. logger may be nil.
func NewBuilder(logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{logger: logger}
}

// tierFraming maps each tier to the sentence that frames its priority.
// Company profile context is binding; every lower tier is supplementary.
var tierFraming = map[retrieval.Source]string{
	retrieval.SourceCompanyProfile: "This is authoritative company-level context. Always use it when responding.",
	retrieval.SourceAgentDocs:      "Supplementary documents uploaded for this agent. Use them when relevant to the question.",
	retrieval.SourceSharedDocs:     "Supplementary documents shared across the company. Use them when relevant to the question.",
	retrieval.SourcePlaybooks:      "Supplementary playbook excerpts describing established processes and best practices.",
	retrieval.SourceKeywords:       "Supplementary keyword matches that may provide additional grounding.",
}

// baseDirectives always appear in the instruction block.
var baseDirectives = []string{
	"Answer the user's question directly and concisely.",
	"Cite specific data points from the provided context rather than speaking in generalities.",
	"Remain consistent with the company profile context at all times.",
	"Prioritize recommendations by business impact.",
}

// citationDirectives are appended when citations are enabled.
var citationDirectives = []string{
	"Attribute information to its source naturally within your answer.",
	"Reference supporting context using its numeric marker, for example [1].",
}

// Build assembles the system prompt from the final chunk list.
func (b *Builder) Build(identity AgentIdentity, chunks []retrieval.Chunk, userQuery string, cfg config.ContextInjection) (BuildResult, error) {
	if strings.TrimSpace(userQuery) == "" {
		return BuildResult{}, ErrEmptyUserQuery
	}

	template := cfg.PromptTemplate
	if template == "" {
		template = DefaultTemplate
	} else if !templateHasRequired(template) {
		b.logger.Warn("custom prompt template missing required placeholders, using default")
		template = DefaultTemplate
	}

	byTier := groupByTier(chunks)

	var (
		citationMap map[int]retrieval.Chunk
		sections    = make(map[retrieval.Source]string, len(retrieval.Sources))
		sources     []SourceSummary
		marker      = 1
	)
	if cfg.IncludeCitations {
		citationMap = make(map[int]retrieval.Chunk, len(chunks))
	}

	// Marker numbering runs across the merged tier order, so section
	// rendering must follow the canonical tier sequence.
	for _, src := range retrieval.Sources {
		tierChunks := byTier[src]
		if len(tierChunks) == 0 {
			sections[src] = ""
			continue
		}

		var section strings.Builder
		fmt.Fprintf(&section, "## %s\n%s\n", src.DisplayName(), tierFraming[src])
		for _, chunk := range tierChunks {
			section.WriteString("\n")
			if cfg.IncludeCitations {
				fmt.Fprintf(&section, "[%d] ", marker)
				citationMap[marker] = chunk
				marker++
			}
			if chunk.SourceDetail != "" {
				fmt.Fprintf(&section, "%s:\n", chunk.SourceDetail)
			}
			section.WriteString(strings.TrimSpace(chunk.Content))
			section.WriteString("\n")
		}
		sections[src] = section.String()

		sources = append(sources, SourceSummary{
			Source:   src,
			Name:     src.DisplayName(),
			Count:    len(tierChunks),
			Examples: exampleLabels(tierChunks),
		})
	}

	rendered := renderTemplate(template, map[string]string{
		PlaceholderAgentName:        identity.Name,
		PlaceholderAgentRole:        identity.Role,
		PlaceholderAgentDescription: identity.Description,
		PlaceholderCompanyContext:   sections[retrieval.SourceCompanyProfile],
		PlaceholderAgentContext:     sections[retrieval.SourceAgentDocs],
		PlaceholderSharedContext:    sections[retrieval.SourceSharedDocs],
		PlaceholderPlaybookContext:  sections[retrieval.SourcePlaybooks],
		PlaceholderKeywordContext:   sections[retrieval.SourceKeywords],
		PlaceholderUserQuery:        userQuery,
		PlaceholderInstructions:     instructionBlock(cfg.IncludeCitations),
	})

	return BuildResult{
		SystemPrompt:   rendered,
		ContextSources: sources,
		TotalTokens:    EstimateTokens(rendered),
		CitationMap:    citationMap,
	}, nil
}

// EstimateTokens approximates token cost as ceil(len/4). Exact
// tokenization is intentionally out of scope.
func EstimateTokens(text string) int {
	return (len(text) + 3) / 4
}

// instructionBlock renders the numbered directive list.
func instructionBlock(includeCitations bool) string {
	directives := baseDirectives
	if includeCitations {
		directives = append(append([]string{}, baseDirectives...), citationDirectives...)
	}

	var block strings.Builder
	for i, directive := range directives {
		if i > 0 {
			block.WriteString("\n")
		}
		fmt.Fprintf(&block, "%d. %s", i+1, directive)
	}
	return block.String()
}

// groupByTier buckets chunks by source, preserving input order within
// each tier.
func groupByTier(chunks []retrieval.Chunk) map[retrieval.Source][]retrieval.Chunk {
	byTier := make(map[retrieval.Source][]retrieval.Chunk, len(retrieval.Sources))
	for _, chunk := range chunks {
		byTier[chunk.Source] = append(byTier[chunk.Source], chunk)
	}
	return byTier
}

// exampleLabels collects up to maxExampleLabels distinct source labels.
func exampleLabels(chunks []retrieval.Chunk) []string {
	labels := make([]string, 0, maxExampleLabels)
	seen := make(map[string]bool, maxExampleLabels)
	for _, chunk := range chunks {
		label := chunk.SourceDetail
		if label == "" {
			label = chunk.ID
		}
		if seen[label] {
			continue
		}
		seen[label] = true
		labels = append(labels, label)
		if len(labels) == maxExampleLabels {
			break
		}
	}
	return labels
}
