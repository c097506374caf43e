package vectorstore

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"ReckonAssist/internal/rag/schema"
)

func TestBuildFilterExpression(t *testing.T) {
	assert.Equal(t, "", BuildFilterExpression(schema.SearchFilter{}))

	expr := BuildFilterExpression(schema.SearchFilter{
		DocumentTypes: []string{"faq", "guide"},
		Industries:    []string{"pharmacy"},
		Language:      "hi",
		MinQuality:    0.5,
	})
	assert.Equal(t,
		`document_type in ["faq", "guide"] and industry in ["pharmacy"] and language == "hi" and quality_score >= 0.5`,
		expr)
}

func TestBuildFilterExpressionSanitizes(t *testing.T) {
	expr := BuildFilterExpression(schema.SearchFilter{
		Language: `hi" or 1 == 1 or language == "`,
	})
	assert.NotContains(t, expr, `""`)
	assert.Equal(t, `language == "hi or 1 == 1 or language == "`, expr)
}

func TestBuildKeywordExpression(t *testing.T) {
	expr := BuildKeywordExpression([]string{"gst", "report"}, schema.SearchFilter{Language: "en"})
	assert.Equal(t,
		`chunk_text like "%gst%" and chunk_text like "%report%" and language == "en"`,
		expr)

	// Wildcard characters are stripped from terms.
	expr = BuildKeywordExpression([]string{"g%s_t"}, schema.SearchFilter{})
	assert.Equal(t, `chunk_text like "%gst%"`, expr)

	// Nothing usable left means no expression at all.
	assert.Equal(t, "", BuildKeywordExpression([]string{"%", "_", "  "}, schema.SearchFilter{}))
	assert.Equal(t, "", BuildKeywordExpression(nil, schema.SearchFilter{}))
}

func TestClampScore(t *testing.T) {
	assert.Equal(t, 0.0, ClampScore(-0.25))
	assert.Equal(t, 0.0, ClampScore(0))
	assert.Equal(t, 0.42, ClampScore(0.42))
	assert.Equal(t, 1.0, ClampScore(1.7))
}
