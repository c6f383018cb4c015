package prompt

import (
	"strings"
)

// Placeholder names the default template and any caller-supplied override
// may use. Substitution is map-driven: the renderer scans the template for
// {{NAME}} tokens and replaces known names with their values in a single
// pass. Substituted values are never re-scanned, so placeholder-shaped
// text inside user content or retrieved chunks stays inert.
const (
	PlaceholderAgentName        = "AGENT_NAME"
	PlaceholderAgentRole        = "AGENT_ROLE"
	PlaceholderAgentDescription = "AGENT_DESCRIPTION"
	PlaceholderCompanyContext   = "COMPANY_CONTEXT"
	PlaceholderAgentContext     = "AGENT_CONTEXT"
	PlaceholderSharedContext    = "SHARED_CONTEXT"
	PlaceholderPlaybookContext  = "PLAYBOOK_CONTEXT"
	PlaceholderKeywordContext   = "KEYWORD_CONTEXT"
	PlaceholderUserQuery        = "USER_QUERY"
	PlaceholderInstructions     = "INSTRUCTIONS"
)

// DefaultTemplate is used when the configuration carries no override.
const DefaultTemplate = `You are {{AGENT_NAME}}, {{AGENT_ROLE}}.

{{AGENT_DESCRIPTION}}

# Context

{{COMPANY_CONTEXT}}

{{AGENT_CONTEXT}}

{{SHARED_CONTEXT}}

{{PLAYBOOK_CONTEXT}}

{{KEYWORD_CONTEXT}}

# Instructions

{{INSTRUCTIONS}}

# User Question

{{USER_QUERY}}
`

// RequiredPlaceholders must appear in any usable template. A custom
// template missing one of these is rejected and the default is used
// instead.
var RequiredPlaceholders = []string{
	PlaceholderUserQuery,
	PlaceholderInstructions,
}

// templateHasRequired reports whether every required placeholder token
// appears in the template text.
func templateHasRequired(template string) bool {
	for _, name := range RequiredPlaceholders {
		if !strings.Contains(template, "{{"+name+"}}") {
			return false
		}
	}
	return true
}

// renderTemplate substitutes {{NAME}} tokens in one left-to-right pass.
// Unknown tokens are left verbatim.
func renderTemplate(template string, values map[string]string) string {
	var out strings.Builder
	out.Grow(len(template))

	rest := template
	for {
		open := strings.Index(rest, "{{")
		if open < 0 {
			out.WriteString(rest)
			return out.String()
		}
		end := strings.Index(rest[open:], "}}")
		if end < 0 {
			out.WriteString(rest)
			return out.String()
		}
		end += open

		name := rest[open+2 : end]
		value, known := values[name]
		out.WriteString(rest[:open])
		if known {
			out.WriteString(value)
		} else {
			out.WriteString(rest[open : end+2])
		}
		rest = rest[end+2:]
	}
}
