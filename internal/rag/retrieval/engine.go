package retrieval

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"ReckonAssist/internal/rag/embeddings"
	"ReckonAssist/internal/rag/interfaces"
	"ReckonAssist/internal/rag/schema"
	"ReckonAssist/pkg/logger"
)

// Options are the retrieval tuning knobs. The similarity threshold and the
// hybrid weights are empirical values carried in configuration; nothing
// here assumes they are optimal.
type Options struct {
	TopK           int
	MinSimilarity  float64
	Hybrid         bool
	SemanticWeight float64
	TextWeight     float64

	// EmbedTimeout and SearchTimeout bound the embedding call and each
	// vector-store call separately; zero means no budget.
	EmbedTimeout  time.Duration
	SearchTimeout time.Duration
}

// Engine retrieves relevant chunks for a query: embed with the query role,
// vector search, relevance gate, and optionally a keyword blend pass.
type Engine struct {
	provider  *embeddings.Provider
	store     interfaces.VectorStore
	namespace string
	opts      Options
	log       *logger.Logger
}

// NewEngine creates a retrieval engine bound to one namespace.
func NewEngine(provider *embeddings.Provider, store interfaces.VectorStore, namespace string, opts Options, log *logger.Logger) *Engine {
	if opts.TopK <= 0 {
		opts.TopK = 5
	}
	return &Engine{
		provider:  provider,
		store:     store,
		namespace: namespace,
		opts:      opts,
		log:       log,
	}
}

// Retrieve returns the ranked results for the query. A vector-store failure
// is logged and surfaced as an empty list, so the caller can take the
// insufficient-knowledge path instead of failing; results below the
// similarity gate are discarded rather than padded with weak matches.
func (e *Engine) Retrieve(ctx context.Context, query string, topK int, filter schema.SearchFilter) []schema.SearchResult {
	if topK <= 0 {
		topK = e.opts.TopK
	}

	embedCtx, cancelEmbed := withBudget(ctx, e.opts.EmbedTimeout)
	outcome, err := e.provider.Embed(embedCtx, query, embeddings.RoleQuery)
	cancelEmbed()
	if err != nil {
		e.log.Error(fmt.Sprintf("Failed to embed query: %v", err))
		return nil
	}

	fetchK := topK
	if e.opts.Hybrid {
		// Over-fetch so the blend pass has candidates to rerank.
		fetchK = topK * 2
	}

	searchCtx, cancelSearch := withBudget(ctx, e.opts.SearchTimeout)
	matches, err := e.store.Query(searchCtx, e.namespace, outcome.Vector.Values, fetchK, filter)
	cancelSearch()
	if err != nil {
		e.log.Error(fmt.Sprintf("Vector store query failed: %v", err))
		return nil
	}

	semantic := make([]schema.SearchResult, 0, len(matches))
	for _, m := range matches {
		if m.Score < e.opts.MinSimilarity {
			continue
		}
		semantic = append(semantic, matchToResult(m))
	}

	results := semantic
	if e.opts.Hybrid {
		keyword := e.keywordPass(ctx, query, fetchK, filter)
		results = e.blend(semantic, keyword)
	}

	if len(results) > topK {
		results = results[:topK]
	}
	return results
}

// keywordPass finds chunks containing every query term, case preserved as
// stored. Failures degrade to an empty list; the semantic results stand alone.
func (e *Engine) keywordPass(ctx context.Context, query string, topK int, filter schema.SearchFilter) []schema.SearchResult {
	terms := strings.Fields(strings.ToLower(query))
	if len(terms) == 0 {
		return nil
	}

	keywordCtx, cancel := withBudget(ctx, e.opts.SearchTimeout)
	matches, err := e.store.KeywordQuery(keywordCtx, e.namespace, terms, topK, filter)
	cancel()
	if err != nil {
		e.log.Warn(fmt.Sprintf("Keyword query failed, continuing with semantic results only: %v", err))
		return nil
	}

	results := make([]schema.SearchResult, 0, len(matches))
	for _, m := range matches {
		results = append(results, matchToResult(m))
	}
	return results
}

// blend merges the semantic and keyword lists by chunk id, scoring each
// entry as semantic*semanticWeight + text*textWeight, sorted descending.
// Ties fall back to the semantic score; equal entries keep their original
// retrieval order.
func (e *Engine) blend(semantic, keyword []schema.SearchResult) []schema.SearchResult {
	type blended struct {
		result   schema.SearchResult
		semScore float64
		txtScore float64
	}

	byChunk := make(map[string]*blended)
	var order []string

	for _, r := range semantic {
		byChunk[r.ChunkID] = &blended{result: r, semScore: r.SimilarityScore}
		order = append(order, r.ChunkID)
	}
	for _, r := range keyword {
		if b, ok := byChunk[r.ChunkID]; ok {
			b.txtScore = r.SimilarityScore
		} else {
			byChunk[r.ChunkID] = &blended{result: r, txtScore: r.SimilarityScore}
			order = append(order, r.ChunkID)
		}
	}

	results := make([]schema.SearchResult, 0, len(order))
	combined := make(map[string]float64, len(order))
	semScores := make(map[string]float64, len(order))
	for _, id := range order {
		b := byChunk[id]
		score := b.semScore*e.opts.SemanticWeight + b.txtScore*e.opts.TextWeight
		if score < e.opts.MinSimilarity {
			continue
		}
		r := b.result
		r.SimilarityScore = score
		combined[id] = score
		semScores[id] = b.semScore
		results = append(results, r)
	}

	sort.SliceStable(results, func(i, j int) bool {
		ci, cj := combined[results[i].ChunkID], combined[results[j].ChunkID]
		if ci != cj {
			return ci > cj
		}
		return semScores[results[i].ChunkID] > semScores[results[j].ChunkID]
	})
	return results
}

func withBudget(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}

func matchToResult(m schema.VectorMatch) schema.SearchResult {
	return schema.SearchResult{
		ChunkID:         m.Metadata.ChunkID,
		DocumentID:      m.Metadata.DocumentID,
		SimilarityScore: m.Score,
		ChunkText:       m.Metadata.ChunkText,
		SectionTitle:    m.Metadata.SectionTitle,
		Keywords:        m.Metadata.Keywords,
		QualityScore:    m.Metadata.QualityScore,
		Industry:        m.Metadata.Industry,
		DocumentType:    m.Metadata.DocumentType,
		Language:        m.Metadata.Language,
	}
}
