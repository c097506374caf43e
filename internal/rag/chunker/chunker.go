package chunker

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"ReckonAssist/internal/rag/interfaces"
	"ReckonAssist/internal/rag/schema"
)

const (
	// DefaultChunkSize and DefaultOverlap are the production chunking
	// parameters; callers may override per document.
	DefaultChunkSize = 1000
	DefaultOverlap   = 200

	// overlapSearchWindow caps the suffix/prefix scan when measuring the
	// real overlap between consecutive chunks.
	overlapSearchWindow = 500
)

// sectionMarkers flag a short first line as a likely section title.
var sectionMarkers = []string{
	"step", "procedure", "guide", "how to", "error", "solution",
	"billing", "invoice", "gst", "inventory", "order", "customer",
	"pharmacy", "auto parts", "fmcg", "restaurant",
}

// domainVocabulary is the fixed keyword set matched against chunk text.
var domainVocabulary = []string{
	"billing", "invoice", "gst", "tax", "payment", "receipt",
	"inventory", "stock", "product", "item", "quantity",
	"order", "purchase", "sale", "customer", "supplier",
	"pharmacy", "medicine", "prescription", "patient",
	"auto parts", "vehicle", "spare parts", "garage",
	"fmcg", "grocery", "supermarket", "retail",
	"restaurant", "menu", "table", "kitchen",
	"error", "solution", "fix", "troubleshoot",
	"setup", "configuration", "installation",
	"report", "analytics", "dashboard", "export",
}

// coreKeywords drive the keyword-density bonus of the quality score.
var coreKeywords = []string{"billing", "inventory", "order", "customer", "gst"}

var (
	paragraphSplitRe = regexp.MustCompile(`\n\s*\n`)
	whitespaceRunRe  = regexp.MustCompile(`\s+`)
	// \p{L}\p{M}\p{N} instead of \w so Devanagari text survives cleaning:
	// matras are combining marks, and the danda terminators are punctuation
	// outside the ASCII set.
	disallowedCharRe   = regexp.MustCompile(`[^\p{L}\p{M}\p{N}_\s.,!?;:\-()\[\]"'/@#$%&*+=।॥]`)
	terminatorSpacesRe = regexp.MustCompile(`([.!?])(\p{Lu})`)
	// Sentences keep their terminator runs so chunk text reconstructs the source.
	sentenceRe     = regexp.MustCompile(`[^.!?।॥]+[.!?।॥]+|[^.!?।॥]+$`)
	stepTitleRe    = regexp.MustCompile(`(?i)^(step\s+\d+|procedure\s+\d+|\d+\.\s*)`)
	proceduralRe   = regexp.MustCompile(`(?i)\b(step|procedure|how to|guide)\b`)
	troubleshootRe = regexp.MustCompile(`(?i)\b(error|problem|issue)\b`)
	structuredRe   = regexp.MustCompile(`(?i)\b(step\s+\d+|procedure|how to)\b`)
)

// Chunker splits cleaned document text into overlapping chunks. Paragraph
// accumulation is tried first; a sliding window is the fallback when the
// primary pass yields nothing.
type Chunker struct{}

// New creates a Chunker.
func New() *Chunker {
	return &Chunker{}
}

type rawChunk struct {
	text         string
	sectionTitle string
}

// Chunk implements the Chunker contract. Empty or whitespace-only input
// yields no chunks. An overlap of chunkSize or more is corrected to a
// quarter of the chunk size before processing.
func (c *Chunker) Chunk(text string, chunkSize, overlap int) []schema.Chunk {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = DefaultOverlap
	}
	if overlap >= chunkSize {
		overlap = chunkSize / 4
	}

	cleaned := CleanText(text)
	if cleaned == "" {
		return nil
	}

	raw := c.accumulateChunks(cleaned, chunkSize, overlap)
	if needsWindowing(raw, chunkSize, overlap) {
		raw = c.slidingWindowChunks(cleaned, chunkSize, overlap)
	}

	return c.postProcess(raw)
}

// CleanText normalizes document text: whitespace runs collapse to single
// spaces, characters outside the allowed set are dropped, and sentence
// terminators get a trailing space. Blank-line paragraph breaks are
// preserved as "\n\n" so the paragraph strategy can see them.
func CleanText(text string) string {
	paragraphs := paragraphSplitRe.Split(text, -1)
	cleaned := make([]string, 0, len(paragraphs))
	for _, p := range paragraphs {
		p = whitespaceRunRe.ReplaceAllString(p, " ")
		p = disallowedCharRe.ReplaceAllString(p, "")
		p = terminatorSpacesRe.ReplaceAllString(p, "$1 $2")
		p = strings.TrimSpace(p)
		if p != "" {
			cleaned = append(cleaned, p)
		}
	}
	return strings.Join(cleaned, "\n\n")
}

// accumulateChunks is the primary strategy: paragraphs accumulate into a
// buffer until the next would exceed the chunk size, at which point the
// buffer is emitted and reseeded with its trailing overlap. Oversized
// paragraphs recurse into sentence accumulation with the same logic.
func (c *Chunker) accumulateChunks(text string, chunkSize, overlap int) []rawChunk {
	paragraphs := strings.Split(text, "\n\n")

	var chunks []rawChunk
	var current string

	emit := func() {
		trimmed := strings.TrimSpace(current)
		if trimmed != "" {
			chunks = append(chunks, rawChunk{text: trimmed, sectionTitle: extractSectionTitle(trimmed)})
		}
	}

	for _, paragraph := range paragraphs {
		if runeLen(current)+runeLen(paragraph) > chunkSize {
			if current != "" {
				emit()
				current = overlapSeed(current, overlap)
			}

			if runeLen(paragraph) > chunkSize {
				for _, sentence := range splitSentences(paragraph) {
					if runeLen(current)+runeLen(sentence) > chunkSize && current != "" {
						emit()
						current = overlapSeed(current, overlap)
					}
					current = appendText(current, sentence)
				}
			} else {
				current = appendText(current, paragraph)
			}
		} else {
			current = appendText(current, paragraph)
		}
	}
	emit()

	return chunks
}

// slidingWindowChunks is the fallback strategy: a fixed-width window with
// step chunkSize-overlap, snapping the window end back to the nearest space
// when that loses no more than 20% of the window.
func (c *Chunker) slidingWindowChunks(text string, chunkSize, overlap int) []rawChunk {
	runes := []rune(text)
	var chunks []rawChunk

	start := 0
	for start < len(runes) {
		end := start + chunkSize
		if end >= len(runes) {
			window := strings.TrimSpace(string(runes[start:]))
			if window != "" {
				chunks = append(chunks, rawChunk{text: window, sectionTitle: extractSectionTitle(window)})
			}
			break
		}

		window := runes[start:end]
		if last := lastSpaceIndex(window); last > int(float64(chunkSize)*0.8) {
			window = window[:last]
			end = start + last
		}

		trimmed := strings.TrimSpace(string(window))
		if trimmed != "" {
			chunks = append(chunks, rawChunk{text: trimmed, sectionTitle: extractSectionTitle(trimmed)})
		}

		next := end - overlap
		if next <= start {
			// Degenerate overlap/snap combination; step forward without overlap.
			next = end
		}
		start = next
	}

	return chunks
}

// needsWindowing reports whether the paragraph strategy failed: either no
// chunks at all, or a chunk beyond the overlap-seeded maximum, which only
// happens for text without usable paragraph or sentence boundaries.
func needsWindowing(raw []rawChunk, chunkSize, overlap int) bool {
	if len(raw) == 0 {
		return true
	}
	// An accumulated chunk is at most seed + separator + piece.
	limit := chunkSize + overlap + 1
	for _, rc := range raw {
		if runeLen(rc.text) > limit {
			return true
		}
	}
	return false
}

func (c *Chunker) postProcess(raw []rawChunk) []schema.Chunk {
	chunks := make([]schema.Chunk, 0, len(raw))
	for i, rc := range raw {
		chunk := schema.Chunk{
			ID:           uuid.New().String(),
			Index:        i,
			Text:         rc.text,
			Size:         runeLen(rc.text),
			SectionTitle: rc.sectionTitle,
			Keywords:     ExtractKeywords(rc.text),
			QualityScore: QualityScore(rc.text),
		}
		if i > 0 {
			chunk.OverlapWithPrevious = measureOverlap(raw[i-1].text, rc.text)
		}
		chunks = append(chunks, chunk)
	}
	return chunks
}

// ExtractKeywords matches the chunk against the domain vocabulary and adds
// the generic "procedure"/"troubleshooting" markers for step and error
// wording. Order is first-seen, without duplicates.
func ExtractKeywords(text string) []string {
	lower := strings.ToLower(text)
	seen := make(map[string]bool)
	var keywords []string

	add := func(kw string) {
		if !seen[kw] {
			seen[kw] = true
			keywords = append(keywords, kw)
		}
	}

	for _, kw := range domainVocabulary {
		if strings.Contains(lower, kw) {
			add(kw)
		}
	}
	if proceduralRe.MatchString(lower) {
		add("procedure")
	}
	if troubleshootRe.MatchString(lower) {
		add("troubleshooting")
	}
	return keywords
}

// QualityScore rates chunk quality in [0,1]: base 0.5, bonuses for sane
// length, domain keyword density and structured step content, penalties for
// degenerate lengths.
func QualityScore(text string) float64 {
	score := 0.5
	length := runeLen(text)

	if length >= 100 && length <= 2000 {
		score += 0.2
	}

	lower := strings.ToLower(text)
	keywordCount := 0
	for _, kw := range coreKeywords {
		if strings.Contains(lower, kw) {
			keywordCount++
		}
	}
	bonus := float64(keywordCount) * 0.1
	if bonus > 0.3 {
		bonus = 0.3
	}
	score += bonus

	if structuredRe.MatchString(lower) {
		score += 0.1
	}

	if length < 50 {
		score -= 0.2
	} else if length > 3000 {
		score -= 0.1
	}

	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return score
}

// overlapSeed returns the trailing overlap characters of text, advanced to
// the next word boundary so the seed does not start mid-word.
func overlapSeed(text string, overlap int) string {
	runes := []rune(text)
	if len(runes) <= overlap {
		return text
	}
	seed := string(runes[len(runes)-overlap:])
	if idx := strings.Index(seed, " "); idx > 0 {
		seed = seed[idx+1:]
	}
	return seed
}

// measureOverlap finds the longest suffix of prev that is a prefix of cur,
// in characters, scanning at most overlapSearchWindow characters.
func measureOverlap(prev, cur string) int {
	prevRunes := []rune(prev)
	curRunes := []rune(cur)

	max := len(prevRunes)
	if len(curRunes) < max {
		max = len(curRunes)
	}
	if max > overlapSearchWindow {
		max = overlapSearchWindow
	}

	for i := max; i > 0; i-- {
		if string(prevRunes[len(prevRunes)-i:]) == string(curRunes[:i]) {
			return i
		}
	}
	return 0
}

// extractSectionTitle treats a short first line containing a domain marker,
// or a numbered step/procedure opener, as the section title.
func extractSectionTitle(text string) string {
	firstLine := text
	if idx := strings.IndexByte(text, '\n'); idx >= 0 {
		firstLine = text[:idx]
	}
	firstLine = strings.TrimSpace(firstLine)

	if runeLen(firstLine) < 100 {
		lower := strings.ToLower(firstLine)
		for _, marker := range sectionMarkers {
			if strings.Contains(lower, marker) {
				return firstLine
			}
		}
	}
	if stepTitleRe.MatchString(firstLine) {
		return firstLine
	}
	return ""
}

func splitSentences(text string) []string {
	matches := sentenceRe.FindAllString(text, -1)
	sentences := make([]string, 0, len(matches))
	for _, m := range matches {
		m = strings.TrimSpace(m)
		if m != "" {
			sentences = append(sentences, m)
		}
	}
	return sentences
}

func appendText(current, piece string) string {
	if current == "" {
		return piece
	}
	return current + " " + piece
}

func lastSpaceIndex(runes []rune) int {
	for i := len(runes) - 1; i >= 0; i-- {
		if runes[i] == ' ' {
			return i
		}
	}
	return -1
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}

var _ interfaces.Chunker = (*Chunker)(nil)
