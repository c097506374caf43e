package retrieval

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"ReckonAssist/internal/rag/schema"
)

// AssembleContext packs ranked results into the context string handed to
// the generator. Each result becomes a labeled source block; blocks are
// appended in ranked order until the next would exceed maxChars. Blocks are
// never truncated mid-content. Empty input yields an empty string.
func AssembleContext(results []schema.SearchResult, maxChars int) string {
	if len(results) == 0 {
		return ""
	}

	var sb strings.Builder
	total := 0

	for i, result := range results {
		block := formatSourceBlock(i+1, result)
		blockLen := utf8.RuneCountInString(block)

		// Account for the separator between blocks.
		addition := blockLen
		if sb.Len() > 0 {
			addition++
		}
		if total+addition > maxChars {
			break
		}

		if sb.Len() > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(block)
		total += addition
	}

	return sb.String()
}

func formatSourceBlock(n int, result schema.SearchResult) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("--- Source %d ---\n", n))
	if result.SectionTitle != "" {
		sb.WriteString("Section: " + result.SectionTitle + "\n")
	}
	sb.WriteString(fmt.Sprintf("Confidence: %.2f\n", result.QualityScore))
	sb.WriteString("Content: " + result.ChunkText)
	return sb.String()
}
