package generation

import (
	"context"
	"fmt"
	"strings"

	"ReckonAssist/internal/rag/interfaces"
	"ReckonAssist/internal/rag/schema"
	"ReckonAssist/pkg/logger"
)

const (
	// FallbackConfidence is reported whenever canned fallback text stands
	// in for a generated answer.
	FallbackConfidence = 0.3

	// FallbackModelLabel is the model label on responses whose text was
	// canned rather than generated.
	FallbackModelLabel = "fallback_text"

	minConfidence = 0.3
	maxConfidence = 0.95
)

const systemPromptBase = `You are a helpful AI assistant for ReckonSales ERP platform. You help users with:
- Billing, invoicing, and GST management
- Inventory and stock management
- Order processing and customer management
- Technical support and troubleshooting
- Platform setup and configuration

Guidelines:
1. Provide accurate, helpful responses based on the provided context
2. If you don't have enough information, say so clearly
3. Always prioritize user safety and data security
4. Suggest escalation to human support for complex technical issues
5. Be concise but thorough in your explanations
6. Use step-by-step instructions when explaining procedures
7. Focus on practical, actionable advice`

// industryPrompts extends the system prompt for known industry verticals.
// Unknown industries add nothing.
var industryPrompts = map[string]string{
	"pharmacy":   "\nYou specialize in pharmacy management including prescription handling, medicine inventory, patient records, and regulatory compliance.",
	"auto_parts": "\nYou specialize in auto parts inventory, vehicle compatibility, spare parts management, and garage operations.",
	"fmcg":       "\nYou specialize in FMCG retail including grocery inventory, supermarket operations, and consumer goods management.",
	"restaurant": "\nYou specialize in restaurant management including menu planning, kitchen operations, table management, and food service.",
}

const hindiInstruction = "\n\nPlease respond in Hindi (हिंदी) when appropriate, but keep technical terms in English for clarity."

const userPromptEnglish = `Context Information:
%s

User Question: %s

Please answer the user's question based on the context provided above. If the information is not available in the context, please state that clearly.`

const userPromptHindi = `संदर्भ जानकारी (Context Information):
%s

उपयोगकर्ता का प्रश्न (User Question): %s

कृपया उपरोक्त संदर्भ का उपयोग करके उपयोगकर्ता के प्रश्न का उत्तर दें। यदि संदर्भ में जानकारी नहीं है, तो कृपया स्पष्ट रूप से बताएं।`

// fallbackResponses are the canned answers used when generation is
// unavailable, keyed by language and detected intent.
var fallbackResponses = map[string]map[string]string{
	schema.LanguageEnglish: {
		"general":   "I apologize, but I'm currently unable to process your request. Please contact our support team for assistance with your ReckonSales query.",
		"billing":   "For billing and invoice queries, please check your ReckonSales dashboard under the Billing section or contact support.",
		"inventory": "For inventory-related questions, please access the Inventory module in your ReckonSales dashboard.",
		"technical": "For technical issues, please try restarting the application or contact our technical support team.",
	},
	schema.LanguageHindi: {
		"general":   "क्षमा करें, मैं वर्तमान में आपके अनुरोध को प्रोसेस करने में असमर्थ हूं। कृपया अपने ReckonSales प्रश्न के लिए हमारी सहायता टीम से संपर्क करें।",
		"billing":   "बिलिंग और इनवॉइस प्रश्नों के लिए, कृपया बिलिंग सेक्शन के तहत अपने ReckonSales डैशबोर्ड की जांच करें या सहायता से संपर्क करें।",
		"inventory": "इन्वेंट्री संबंधी प्रश्नों के लिए, कृपया अपने ReckonSales डैशबोर्ड में इन्वेंट्री मॉड्यूल का उपयोग करें।",
		"technical": "तकनीकी समस्याओं के लिए, कृपया एप्लिकेशन को पुनः आरंभ करने का प्रयास करें या हमारी तकनीकी सहायता टीम से संपर्क करें।",
	},
}

// noKnowledgeResponses answer queries for which retrieval found nothing
// above the relevance gate.
var noKnowledgeResponses = map[string]string{
	schema.LanguageEnglish: "I could not find information about this in the ReckonSales knowledge base. Please rephrase your question or contact our support team for assistance.",
	schema.LanguageHindi:   "मुझे ReckonSales ज्ञान आधार में इस बारे में जानकारी नहीं मिली। कृपया अपना प्रश्न दोबारा लिखें या सहायता के लिए हमारी सहायता टीम से संपर्क करें।",
}

var attributionMarkers = []string{"according to", "based on", "as mentioned"}

var uncertaintyMarkers = []string{"i don't know", "not sure", "cannot find", "unclear", "नहीं पता", "अस्पष्ट"}

var structureMarkers = []string{"1.", "•", "Step", "First", "Next", "पहले", "फिर"}

// Result is the outcome of answer generation. Success=false means the text
// is canned fallback, not model output.
type Result struct {
	Text       string
	Confidence float64
	ModelUsed  string
	Success    bool
}

// AnswerGenerator builds prompts, calls the generation model, and scores
// the response. Generate never returns an error: total failure produces a
// localized fallback keyed by detected intent.
type AnswerGenerator struct {
	llm            interfaces.LLM
	modelName      string
	baseConfidence float64
	log            *logger.Logger
}

// NewAnswerGenerator creates a generator. baseConfidence is the
// model-specific starting point of the confidence heuristic (0.8 for
// Gemini, 0.7 for OpenAI-class models).
func NewAnswerGenerator(llm interfaces.LLM, modelName string, baseConfidence float64, log *logger.Logger) *AnswerGenerator {
	return &AnswerGenerator{
		llm:            llm,
		modelName:      modelName,
		baseConfidence: baseConfidence,
		log:            log,
	}
}

// Generate answers the query from the assembled context.
func (g *AnswerGenerator) Generate(ctx context.Context, query, contextText, language, industry string) Result {
	if g.llm == nil {
		return g.fallbackResult(query, language)
	}

	prompt := g.BuildPrompt(query, contextText, language, industry)

	text, err := g.llm.Generate(ctx, prompt)
	if err != nil || strings.TrimSpace(text) == "" {
		if err != nil {
			g.log.Error(fmt.Sprintf("Generation failed: %v", err))
		} else {
			g.log.Warn("Generation returned empty text")
		}
		return g.fallbackResult(query, language)
	}

	return Result{
		Text:       strings.TrimSpace(text),
		Confidence: g.scoreConfidence(text, contextText),
		ModelUsed:  g.modelName,
		Success:    true,
	}
}

// NoKnowledgeAnswer returns the localized response for queries the
// knowledge base cannot answer.
func NoKnowledgeAnswer(language string) string {
	if text, ok := noKnowledgeResponses[language]; ok {
		return text
	}
	return noKnowledgeResponses[schema.LanguageEnglish]
}

// FallbackAnswer returns the localized canned response for the query's
// detected intent.
func FallbackAnswer(query, language string) string {
	responses, ok := fallbackResponses[language]
	if !ok {
		responses = fallbackResponses[schema.LanguageEnglish]
	}
	return responses[detectIntent(query)]
}

// BuildPrompt assembles the full single-turn prompt: system preamble,
// optional industry paragraph, optional Hindi instruction, then the
// language-matched user template embedding context and query.
func (g *AnswerGenerator) BuildPrompt(query, contextText, language, industry string) string {
	var sb strings.Builder
	sb.WriteString(systemPromptBase)
	if extra, ok := industryPrompts[industry]; ok {
		sb.WriteString(extra)
	}
	if language == schema.LanguageHindi {
		sb.WriteString(hindiInstruction)
	}
	sb.WriteString("\n\n")

	template := userPromptEnglish
	if language == schema.LanguageHindi {
		template = userPromptHindi
	}
	sb.WriteString(fmt.Sprintf(template, contextText, query))

	return sb.String()
}

// scoreConfidence is a heuristic, not a calibrated probability: start at
// the model base, reward attribution phrasing and structure, penalize
// uncertainty phrasing, clamp to [0.3, 0.95].
func (g *AnswerGenerator) scoreConfidence(response, contextText string) float64 {
	confidence := g.baseConfidence
	lower := strings.ToLower(response)

	if contextText != "" {
		for _, marker := range attributionMarkers {
			if strings.Contains(lower, marker) {
				confidence += 0.1
				break
			}
		}
	}

	for _, marker := range uncertaintyMarkers {
		if strings.Contains(lower, marker) {
			confidence -= 0.2
			break
		}
	}

	for _, marker := range structureMarkers {
		if strings.Contains(response, marker) {
			confidence += 0.05
			break
		}
	}

	if confidence < minConfidence {
		confidence = minConfidence
	}
	if confidence > maxConfidence {
		confidence = maxConfidence
	}
	return confidence
}

func (g *AnswerGenerator) fallbackResult(query, language string) Result {
	return Result{
		Text:       FallbackAnswer(query, language),
		Confidence: FallbackConfidence,
		ModelUsed:  FallbackModelLabel,
		Success:    false,
	}
}

// detectIntent is simple keyword matching, just enough to pick the most
// helpful canned answer.
func detectIntent(query string) string {
	lower := strings.ToLower(query)
	switch {
	case containsAny(lower, "bill", "invoice", "payment", "gst"):
		return "billing"
	case containsAny(lower, "inventory", "stock", "item"):
		return "inventory"
	case containsAny(lower, "error", "bug", "problem", "issue"):
		return "technical"
	default:
		return "general"
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
