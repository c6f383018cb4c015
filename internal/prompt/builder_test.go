package prompt

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"testing"

	"github.com/JoePa99/joeupup-sub002/internal/config"
	"github.com/JoePa99/joeupup-sub002/internal/log"
	"github.com/JoePa99/joeupup-sub002/internal/retrieval"
)

func testIdentity() AgentIdentity {
	return AgentIdentity{
		ID:          "agent-1",
		Name:        "Atlas",
		Role:        "a strategic pricing advisor",
		Description: "Atlas helps teams design and defend pricing decisions.",
	}
}

func testChunks() []retrieval.Chunk {
	return []retrieval.Chunk{
		{ID: "profile:overview", Content: "We sell anvils.", Source: retrieval.SourceCompanyProfile, SourceDetail: "Company Overview", Score: 0.9},
		{ID: "doc-1", Content: "Enterprise plans are priced per seat.", Source: retrieval.SourceAgentDocs, SourceDetail: "Pricing Guide", Score: 0.8},
		{ID: "doc-2", Content: "Discounts cap at 20%.", Source: retrieval.SourceAgentDocs, SourceDetail: "Discount Policy", Score: 0.7},
		{ID: "pb-1", Content: "Negotiate annual terms first.", Source: retrieval.SourcePlaybooks, SourceDetail: "Sales Playbook - Negotiation", Score: 0.6},
	}
}

func TestBuildEmptyQuery(t *testing.T) {
	t.Parallel()

	b := NewBuilder(log.NewNop())
	_, err := b.Build(testIdentity(), nil, "  ", config.DefaultContextInjection())
	if !errors.Is(err, ErrEmptyUserQuery) {
		t.Errorf("error = %v, want ErrEmptyUserQuery", err)
	}
}

func TestBuildDeterminism(t *testing.T) {
	t.Parallel()

	b := NewBuilder(log.NewNop())
	cfg := config.DefaultContextInjection()

	first, err := b.Build(testIdentity(), testChunks(), "how should we price?", cfg)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	second, err := b.Build(testIdentity(), testChunks(), "how should we price?", cfg)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if first.SystemPrompt != second.SystemPrompt {
		t.Error("repeated builds produced different prompts")
	}
	if first.TotalTokens != second.TotalTokens {
		t.Error("repeated builds produced different token estimates")
	}
}

func TestBuildSections(t *testing.T) {
	t.Parallel()

	b := NewBuilder(log.NewNop())
	result, err := b.Build(testIdentity(), testChunks(), "how should we price?", config.DefaultContextInjection())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	prompt := result.SystemPrompt
	if !strings.Contains(prompt, "You are Atlas, a strategic pricing advisor.") {
		t.Error("identity line missing")
	}
	if !strings.Contains(prompt, "## Company Profile") {
		t.Error("company profile section missing")
	}
	if !strings.Contains(prompt, "Always use it when responding.") {
		t.Error("tier 1 framing sentence missing")
	}
	if !strings.Contains(prompt, "## Agent Documents") || !strings.Contains(prompt, "## Playbooks") {
		t.Error("non-empty tier sections missing")
	}
	if strings.Contains(prompt, "## Shared Documents") || strings.Contains(prompt, "## Keyword Matches") {
		t.Error("empty tiers rendered a section")
	}
	if !strings.Contains(prompt, "how should we price?") {
		t.Error("user query missing")
	}

	if len(result.ContextSources) != 3 {
		t.Fatalf("ContextSources = %d entries, want 3", len(result.ContextSources))
	}
	if result.ContextSources[0].Source != retrieval.SourceCompanyProfile {
		t.Error("context sources not in tier order")
	}
	if result.ContextSources[1].Count != 2 {
		t.Errorf("agent docs count = %d, want 2", result.ContextSources[1].Count)
	}
}

func TestBuildCitationMapCompleteness(t *testing.T) {
	t.Parallel()

	b := NewBuilder(log.NewNop())
	cfg := config.DefaultContextInjection()
	cfg.IncludeCitations = true

	result, err := b.Build(testIdentity(), testChunks(), "how should we price?", cfg)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	markerRe := regexp.MustCompile(`\[(\d+)\]`)
	seen := map[int]bool{}
	for _, match := range markerRe.FindAllStringSubmatch(result.SystemPrompt, -1) {
		n, _ := strconv.Atoi(match[1])
		seen[n] = true
		if _, ok := result.CitationMap[n]; !ok {
			t.Errorf("marker [%d] in prompt but not in map", n)
		}
	}
	if len(result.CitationMap) != len(testChunks()) {
		t.Fatalf("CitationMap size = %d, want %d", len(result.CitationMap), len(testChunks()))
	}
	for n := range result.CitationMap {
		if !seen[n] {
			t.Errorf("marker [%d] in map but not in prompt", n)
		}
	}
	// Markers are numbered across the merged tier order.
	if result.CitationMap[1].ID != "profile:overview" {
		t.Errorf("marker [1] = %q, want the tier-1 chunk", result.CitationMap[1].ID)
	}
	if result.CitationMap[4].ID != "pb-1" {
		t.Errorf("marker [4] = %q, want the playbook chunk", result.CitationMap[4].ID)
	}
}

func TestBuildCitationsDisabled(t *testing.T) {
	t.Parallel()

	b := NewBuilder(log.NewNop())
	cfg := config.DefaultContextInjection()
	cfg.IncludeCitations = false

	result, err := b.Build(testIdentity(), testChunks(), "query", cfg)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if result.CitationMap != nil {
		t.Error("CitationMap present with citations disabled")
	}
	if strings.Contains(result.SystemPrompt, "[1] ") {
		t.Error("citation markers rendered with citations disabled")
	}
}

func TestBuildInstructionBlock(t *testing.T) {
	t.Parallel()

	withCitations := instructionBlock(true)
	withoutCitations := instructionBlock(false)

	if got := strings.Count(withoutCitations, "\n") + 1; got != 4 {
		t.Errorf("base directives = %d lines, want 4", got)
	}
	if got := strings.Count(withCitations, "\n") + 1; got != 6 {
		t.Errorf("directives with citations = %d lines, want 6", got)
	}
	if !strings.HasPrefix(withCitations, "1. ") {
		t.Error("directives are not numbered")
	}
}

func TestBuildEmptyChunks(t *testing.T) {
	t.Parallel()

	b := NewBuilder(log.NewNop())
	result, err := b.Build(testIdentity(), nil, "anything out there?", config.DefaultContextInjection())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if result.SystemPrompt == "" {
		t.Error("empty chunk list produced an empty prompt")
	}
	if !strings.Contains(result.SystemPrompt, "anything out there?") {
		t.Error("user query missing from minimal prompt")
	}
	if len(result.ContextSources) != 0 {
		t.Errorf("ContextSources = %v, want empty", result.ContextSources)
	}
}

func TestBuildTokenEstimate(t *testing.T) {
	t.Parallel()

	b := NewBuilder(log.NewNop())
	result, err := b.Build(testIdentity(), testChunks(), "how should we price?", config.DefaultContextInjection())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	want := (len(result.SystemPrompt) + 3) / 4
	if result.TotalTokens != want {
		t.Errorf("TotalTokens = %d, want %d", result.TotalTokens, want)
	}
}

func TestBuildCustomTemplate(t *testing.T) {
	t.Parallel()

	b := NewBuilder(log.NewNop())
	cfg := config.DefaultContextInjection()
	cfg.PromptTemplate = "Q: {{USER_QUERY}}\nRules: {{INSTRUCTIONS}}"

	result, err := b.Build(testIdentity(), nil, "short one", cfg)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !strings.HasPrefix(result.SystemPrompt, "Q: short one") {
		t.Errorf("custom template not used: %q", result.SystemPrompt)
	}
}

func TestBuildInvalidCustomTemplateUsesDefault(t *testing.T) {
	t.Parallel()

	b := NewBuilder(log.NewNop())
	cfg := config.DefaultContextInjection()
	cfg.PromptTemplate = "no placeholders at all"

	result, err := b.Build(testIdentity(), nil, "the query", cfg)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !strings.Contains(result.SystemPrompt, "the query") {
		t.Error("default template fallback did not render the query")
	}
}
