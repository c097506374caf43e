package generation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ReckonAssist/internal/rag/schema"
	"ReckonAssist/pkg/logger"
)

type fakeLLM struct {
	response  string
	err       error
	gotPrompt string
}

func (f *fakeLLM) Generate(_ context.Context, prompt string) (string, error) {
	f.gotPrompt = prompt
	return f.response, f.err
}

func newTestGenerator(llm *fakeLLM) *AnswerGenerator {
	return NewAnswerGenerator(llm, "test-model", 0.8, logger.New("test", ""))
}

func TestGenerateSuccess(t *testing.T) {
	llm := &fakeLLM{response: "According to the guide: 1. Open the Billing section."}
	g := newTestGenerator(llm)

	result := g.Generate(context.Background(), "how do I bill", "some context", schema.LanguageEnglish, "")
	require.True(t, result.Success)
	assert.Equal(t, "According to the guide: 1. Open the Billing section.", result.Text)
	assert.Equal(t, "test-model", result.ModelUsed)
	// Base 0.8 plus attribution plus structure, clamped at the ceiling.
	assert.InDelta(t, 0.95, result.Confidence, 1e-9)
}

func TestGenerateErrorFallsBack(t *testing.T) {
	llm := &fakeLLM{err: errors.New("quota exceeded")}
	g := newTestGenerator(llm)

	result := g.Generate(context.Background(), "invoice problem", "ctx", schema.LanguageEnglish, "")
	assert.False(t, result.Success)
	assert.InDelta(t, FallbackConfidence, result.Confidence, 1e-9)
	assert.Equal(t, "fallback_text", result.ModelUsed)
	assert.Equal(t, FallbackAnswer("invoice problem", schema.LanguageEnglish), result.Text)
}

func TestGenerateEmptyResponseFallsBack(t *testing.T) {
	llm := &fakeLLM{response: "   "}
	g := newTestGenerator(llm)

	result := g.Generate(context.Background(), "hello", "ctx", schema.LanguageHindi, "")
	assert.False(t, result.Success)
	assert.Equal(t, fallbackResponses[schema.LanguageHindi]["general"], result.Text)
}

func TestGenerateNilLLMFallsBack(t *testing.T) {
	g := NewAnswerGenerator(nil, "none", 0.8, logger.New("test", ""))

	result := g.Generate(context.Background(), "stock count wrong", "", schema.LanguageEnglish, "")
	assert.False(t, result.Success)
	assert.Equal(t, fallbackResponses[schema.LanguageEnglish]["inventory"], result.Text)
}

func TestScoreConfidence(t *testing.T) {
	g := newTestGenerator(&fakeLLM{})

	// Plain answer keeps the model base.
	assert.InDelta(t, 0.8, g.scoreConfidence("The report shows totals.", "ctx"), 1e-9)

	// Uncertainty phrasing is penalized.
	assert.InDelta(t, 0.6, g.scoreConfidence("I don't know the answer.", "ctx"), 1e-9)

	// Hindi uncertainty markers count too.
	assert.InDelta(t, 0.6, g.scoreConfidence("मुझे नहीं पता।", "ctx"), 1e-9)

	// Attribution only counts when context was provided.
	assert.InDelta(t, 0.9, g.scoreConfidence("According to the manual, yes.", "ctx"), 1e-9)
	assert.InDelta(t, 0.8, g.scoreConfidence("According to the manual, yes.", ""), 1e-9)

	// Floor at 0.3 regardless of penalties.
	low := NewAnswerGenerator(&fakeLLM{}, "m", 0.4, logger.New("test", ""))
	assert.InDelta(t, 0.3, low.scoreConfidence("not sure at all", "ctx"), 1e-9)
}

func TestDetectIntent(t *testing.T) {
	assert.Equal(t, "billing", detectIntent("How do I fix this invoice?"))
	assert.Equal(t, "billing", detectIntent("GST calculation wrong"))
	assert.Equal(t, "inventory", detectIntent("stock count is off"))
	assert.Equal(t, "technical", detectIntent("the app shows an error"))
	assert.Equal(t, "general", detectIntent("hello there"))
}

func TestNoKnowledgeAnswerLocalized(t *testing.T) {
	en := NoKnowledgeAnswer(schema.LanguageEnglish)
	hi := NoKnowledgeAnswer(schema.LanguageHindi)

	assert.NotEqual(t, en, hi)
	assert.Contains(t, en, "knowledge base")
	assert.Contains(t, hi, "ReckonSales")

	// Unknown languages fall back to English.
	assert.Equal(t, en, NoKnowledgeAnswer("fr"))
}

func TestBuildPromptEnglish(t *testing.T) {
	g := newTestGenerator(&fakeLLM{})

	prompt := g.BuildPrompt("how to export reports", "CONTEXT BLOCK", schema.LanguageEnglish, "")
	assert.Contains(t, prompt, "ReckonSales ERP platform")
	assert.Contains(t, prompt, "CONTEXT BLOCK")
	assert.Contains(t, prompt, "User Question: how to export reports")
	assert.NotContains(t, prompt, "respond in Hindi")
	assert.NotContains(t, prompt, "You specialize")
}

func TestBuildPromptHindi(t *testing.T) {
	g := newTestGenerator(&fakeLLM{})

	prompt := g.BuildPrompt("GST रिपोर्ट", "CONTEXT BLOCK", schema.LanguageHindi, "")
	assert.Contains(t, prompt, "respond in Hindi")
	assert.Contains(t, prompt, "उपयोगकर्ता का प्रश्न")
	assert.Contains(t, prompt, "GST रिपोर्ट")
}

func TestBuildPromptIndustry(t *testing.T) {
	g := newTestGenerator(&fakeLLM{})

	prompt := g.BuildPrompt("q", "c", schema.LanguageEnglish, "pharmacy")
	assert.Contains(t, prompt, "pharmacy management")

	prompt = g.BuildPrompt("q", "c", schema.LanguageEnglish, "aerospace")
	assert.NotContains(t, prompt, "You specialize")
}
