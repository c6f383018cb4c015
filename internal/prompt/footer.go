package prompt

import (
	"fmt"
	"strings"

	"github.com/JoePa99/joeupup-sub002/internal/retrieval"
)

// TruncationMarker signals lossy truncation to downstream consumers.
const TruncationMarker = "[Context truncated due to length]"

// Truncate returns the prompt unchanged when its token estimate fits the
// budget, otherwise hard-cuts at budget*4 characters and appends the
// truncation marker.
func Truncate(prompt string, tokenBudget int) string {
	if EstimateTokens(prompt) <= tokenBudget {
		return prompt
	}
	cut := tokenBudget * 4
	if cut > len(prompt) {
		cut = len(prompt)
	}
	return prompt[:cut] + "\n" + TruncationMarker
}

// CitationFooter renders the plain-text source summary appended to the
// assistant's response, not to the prompt. Returns "" when there are no
// chunks to summarize.
//
// confidence is a [0,1] scalar; pass a negative value to omit the line.
// retrievalMs is omitted when zero or negative.
func CitationFooter(chunks []retrieval.Chunk, confidence float64, retrievalMs int64) string {
	if len(chunks) == 0 {
		return ""
	}

	byTier := groupByTier(chunks)

	var footer strings.Builder
	footer.WriteString("Sources:\n")
	for _, src := range retrieval.Sources {
		tierChunks := byTier[src]
		if len(tierChunks) == 0 {
			continue
		}
		labels := exampleLabels(tierChunks)
		fmt.Fprintf(&footer, "- %s (%d): %s\n", src.DisplayName(), len(tierChunks), strings.Join(labels, ", "))
	}
	fmt.Fprintf(&footer, "Total context chunks: %d\n", len(chunks))
	if confidence >= 0 {
		fmt.Fprintf(&footer, "Context confidence: %.0f%%\n", confidence*100)
	}
	if retrievalMs > 0 {
		fmt.Fprintf(&footer, "Retrieved in %dms\n", retrievalMs)
	}
	return strings.TrimRight(footer.String(), "\n")
}
