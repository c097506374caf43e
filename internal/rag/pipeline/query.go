package pipeline

import (
	"context"
	"fmt"
	"time"

	"ReckonAssist/internal/rag/cache"
	"ReckonAssist/internal/rag/generation"
	"ReckonAssist/internal/rag/interfaces"
	"ReckonAssist/internal/rag/retrieval"
	"ReckonAssist/internal/rag/schema"
	"ReckonAssist/pkg/logger"
)

// QueryOptions bounds the read path. Embedding and vector-search budgets
// live on the retrieval engine, which applies them per call.
type QueryOptions struct {
	GenerateTimeout time.Duration
	MaxContextChars int
}

// QueryPipeline answers support questions over the knowledge base. It never
// returns an error and never panics: every failure mode inside it degrades
// to a localized fallback response so the caller always has something to
// show the user.
type QueryPipeline struct {
	engine    *retrieval.Engine
	generator *generation.AnswerGenerator
	queryLog  interfaces.QueryLogger
	answers   interfaces.AnswerCache
	opts      QueryOptions
	log       *logger.Logger
}

func NewQueryPipeline(
	engine *retrieval.Engine,
	generator *generation.AnswerGenerator,
	queryLog interfaces.QueryLogger,
	answers interfaces.AnswerCache,
	opts QueryOptions,
	log *logger.Logger,
) *QueryPipeline {
	if opts.GenerateTimeout <= 0 {
		opts.GenerateTimeout = 45 * time.Second
	}
	if opts.MaxContextChars <= 0 {
		opts.MaxContextChars = 24000
	}
	return &QueryPipeline{
		engine:    engine,
		generator: generator,
		queryLog:  queryLog,
		answers:   answers,
		opts:      opts,
		log:       log.WithComponent("query_pipeline"),
	}
}

// AnswerQuery runs retrieve, assemble, generate. The response always carries
// a confidence, the sources that informed it, and the wall-clock latency.
func (p *QueryPipeline) AnswerQuery(ctx context.Context, req schema.QueryRequest) (resp schema.RAGResponse) {
	start := time.Now()
	language := normalizeLanguage(req.Language)

	defer func() {
		if r := recover(); r != nil {
			p.log.WithPayload(map[string]interface{}{
				"panic": fmt.Sprint(r),
				"query": req.Query,
			}).Error("query pipeline panicked")
			resp = schema.RAGResponse{
				Success:          false,
				AnswerText:       generation.FallbackAnswer(req.Query, language),
				Confidence:       generation.FallbackConfidence,
				Sources:          []schema.SearchResult{},
				ProcessingTimeMs: time.Since(start).Milliseconds(),
				ModelUsed:        generation.FallbackModelLabel,
			}
			p.publishLog(req, nil, resp.ProcessingTimeMs, language)
		}
	}()

	var cacheKey string
	if p.answers != nil {
		cacheKey = cache.CacheKey(req)
		if cached, ok := p.answers.Get(ctx, cacheKey); ok {
			cached.ProcessingTimeMs = time.Since(start).Milliseconds()
			return *cached
		}
	}

	filter := schema.SearchFilter{
		DocumentTypes: req.DocumentTypes,
		Industries:    req.Industries,
		Language:      req.Language,
		MinQuality:    req.MinConfidence,
	}

	results := p.engine.Retrieve(ctx, req.Query, req.TopK, filter)

	if len(results) == 0 {
		resp = schema.RAGResponse{
			Success:          true,
			AnswerText:       generation.NoKnowledgeAnswer(language),
			Confidence:       generation.FallbackConfidence,
			Sources:          []schema.SearchResult{},
			ProcessingTimeMs: time.Since(start).Milliseconds(),
			ModelUsed:        generation.FallbackModelLabel,
		}
		p.publishLog(req, results, resp.ProcessingTimeMs, language)
		return resp
	}

	contextText := retrieval.AssembleContext(results, p.opts.MaxContextChars)
	industry := dominantIndustry(results)

	generateCtx, cancelGenerate := context.WithTimeout(ctx, p.opts.GenerateTimeout)
	answer := p.generator.Generate(generateCtx, req.Query, contextText, language, industry)
	cancelGenerate()

	resp = schema.RAGResponse{
		Success:          answer.Success,
		AnswerText:       answer.Text,
		Confidence:       answer.Confidence,
		Sources:          results,
		ProcessingTimeMs: time.Since(start).Milliseconds(),
		ModelUsed:        answer.ModelUsed,
	}

	if p.answers != nil && resp.Success {
		p.answers.Set(ctx, cacheKey, &resp)
	}
	p.publishLog(req, results, resp.ProcessingTimeMs, language)
	return resp
}

// publishLog emits the analytics event without blocking the response. The
// goroutine carries its own deadline and swallows both errors and panics;
// analytics must never affect the answer path.
func (p *QueryPipeline) publishLog(req schema.QueryRequest, results []schema.SearchResult, latencyMs int64, language string) {
	if p.queryLog == nil {
		return
	}
	chunkIDs := make([]string, 0, len(results))
	for _, r := range results {
		chunkIDs = append(chunkIDs, r.ChunkID)
	}
	entry := &schema.QueryLogEntry{
		Query:           req.Query,
		ChunksRetrieved: len(results),
		ChunkIDs:        chunkIDs,
		LatencyMs:       latencyMs,
		Language:        language,
		Timestamp:       time.Now().UTC(),
	}
	go func() {
		defer func() {
			if r := recover(); r != nil {
				p.log.WithPayload(map[string]interface{}{"panic": fmt.Sprint(r)}).Error("query log publish panicked")
			}
		}()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := p.queryLog.LogQuery(ctx, entry); err != nil {
			p.log.WithPayload(map[string]interface{}{"error": err.Error()}).Warn("failed to publish query log")
		}
	}()
}

// dominantIndustry picks the industry of the top-scored source, which is the
// one most likely to steer the prompt in the right direction.
func dominantIndustry(results []schema.SearchResult) string {
	for _, r := range results {
		if r.Industry != "" {
			return r.Industry
		}
	}
	return ""
}

func normalizeLanguage(lang string) string {
	if lang == schema.LanguageHindi {
		return schema.LanguageHindi
	}
	return schema.LanguageEnglish
}
