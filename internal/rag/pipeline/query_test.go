package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ReckonAssist/internal/rag/docstore"
	"ReckonAssist/internal/rag/embeddings"
	"ReckonAssist/internal/rag/generation"
	"ReckonAssist/internal/rag/interfaces"
	"ReckonAssist/internal/rag/retrieval"
	"ReckonAssist/internal/rag/schema"
	"ReckonAssist/pkg/logger"
)

type scriptedLLM struct {
	mu       sync.Mutex
	response string
	err      error
	panics   bool
	calls    int
}

func (f *scriptedLLM) Generate(context.Context, string) (string, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.panics {
		panic("llm client bug")
	}
	return f.response, f.err
}

func (f *scriptedLLM) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type channelLogger struct {
	entries chan *schema.QueryLogEntry
}

func (c *channelLogger) LogQuery(_ context.Context, entry *schema.QueryLogEntry) error {
	c.entries <- entry
	return nil
}

type mapCache struct {
	mu      sync.Mutex
	entries map[string]*schema.RAGResponse
}

func newMapCache() *mapCache {
	return &mapCache{entries: make(map[string]*schema.RAGResponse)}
}

func (c *mapCache) Get(_ context.Context, key string) (*schema.RAGResponse, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if resp, ok := c.entries[key]; ok {
		copied := *resp
		return &copied, true
	}
	return nil, false
}

func (c *mapCache) Set(_ context.Context, key string, resp *schema.RAGResponse) {
	c.mu.Lock()
	defer c.mu.Unlock()
	copied := *resp
	c.entries[key] = &copied
}

func newTestQueryPipeline(t *testing.T, store *memoryStore, llm *scriptedLLM, queryLog *channelLogger, answers *mapCache) *QueryPipeline {
	t.Helper()
	log := logger.New("test", "")
	provider := embeddings.NewProvider(nil, 64, 512, log)

	engine := retrieval.NewEngine(provider, store, "test-ns", retrieval.Options{
		TopK:          5,
		MinSimilarity: 0,
	}, log)
	generator := generation.NewAnswerGenerator(llm, "test-model", 0.8, log)

	var ql interfaces.QueryLogger
	if queryLog != nil {
		ql = queryLog
	}
	var ac interfaces.AnswerCache
	if answers != nil {
		ac = answers
	}
	return NewQueryPipeline(engine, generator, ql, ac, QueryOptions{
		GenerateTimeout: 5 * time.Second,
		MaxContextChars: 4000,
	}, log)
}

func seedKnowledge(t *testing.T, store *memoryStore, docs *docstore.Store) {
	t.Helper()
	p := newTestIndexing(store, docs)
	_, err := p.Ingest(context.Background(), ingestRequest())
	require.NoError(t, err)
}

func TestAnswerQueryHappyPath(t *testing.T) {
	store := newMemoryStore()
	seedKnowledge(t, store, docstore.NewStore())
	llm := &scriptedLLM{response: "According to the guide, open the billing module first."}
	p := newTestQueryPipeline(t, store, llm, nil, nil)

	resp := p.AnswerQuery(context.Background(), schema.QueryRequest{Query: "how to create an invoice"})
	assert.True(t, resp.Success)
	assert.Equal(t, "According to the guide, open the billing module first.", resp.AnswerText)
	assert.Equal(t, "test-model", resp.ModelUsed)
	assert.NotEmpty(t, resp.Sources)
	assert.GreaterOrEqual(t, resp.Confidence, 0.3)
	assert.GreaterOrEqual(t, resp.ProcessingTimeMs, int64(0))
}

func TestAnswerQueryNoKnowledge(t *testing.T) {
	store := newMemoryStore() // empty index
	llm := &scriptedLLM{response: "never called"}
	p := newTestQueryPipeline(t, store, llm, nil, nil)

	resp := p.AnswerQuery(context.Background(), schema.QueryRequest{Query: "anything", Language: schema.LanguageHindi})
	assert.True(t, resp.Success)
	assert.Equal(t, generation.NoKnowledgeAnswer(schema.LanguageHindi), resp.AnswerText)
	assert.InDelta(t, generation.FallbackConfidence, resp.Confidence, 1e-9)
	assert.Equal(t, generation.FallbackModelLabel, resp.ModelUsed)
	assert.Empty(t, resp.Sources)
	assert.Equal(t, 0, llm.callCount())
}

func TestAnswerQueryStoreFailure(t *testing.T) {
	store := newMemoryStore()
	store.queryErr = errors.New("milvus down")
	llm := &scriptedLLM{response: "never called"}
	p := newTestQueryPipeline(t, store, llm, nil, nil)

	resp := p.AnswerQuery(context.Background(), schema.QueryRequest{Query: "invoice help"})
	assert.True(t, resp.Success)
	assert.Equal(t, generation.NoKnowledgeAnswer(schema.LanguageEnglish), resp.AnswerText)
	assert.Equal(t, 0, llm.callCount())
}

func TestAnswerQueryGenerationFailure(t *testing.T) {
	store := newMemoryStore()
	seedKnowledge(t, store, docstore.NewStore())
	llm := &scriptedLLM{err: errors.New("quota exceeded")}
	p := newTestQueryPipeline(t, store, llm, nil, nil)

	resp := p.AnswerQuery(context.Background(), schema.QueryRequest{Query: "invoice help"})
	assert.False(t, resp.Success)
	assert.InDelta(t, generation.FallbackConfidence, resp.Confidence, 1e-9)
	assert.NotEmpty(t, resp.AnswerText)
	assert.NotEmpty(t, resp.Sources)
}

func TestAnswerQueryRecoversFromPanic(t *testing.T) {
	store := newMemoryStore()
	seedKnowledge(t, store, docstore.NewStore())
	llm := &scriptedLLM{panics: true}
	queryLog := &channelLogger{entries: make(chan *schema.QueryLogEntry, 1)}
	p := newTestQueryPipeline(t, store, llm, queryLog, nil)

	resp := p.AnswerQuery(context.Background(), schema.QueryRequest{Query: "billing help", Language: schema.LanguageHindi})
	assert.False(t, resp.Success)
	assert.InDelta(t, generation.FallbackConfidence, resp.Confidence, 1e-9)
	assert.Equal(t, generation.FallbackAnswer("billing help", schema.LanguageHindi), resp.AnswerText)
	assert.Equal(t, generation.FallbackModelLabel, resp.ModelUsed)

	// The analytics event fires even when the pipeline crashed mid-way.
	select {
	case entry := <-queryLog.entries:
		assert.Equal(t, "billing help", entry.Query)
		assert.Equal(t, 0, entry.ChunksRetrieved)
	case <-time.After(2 * time.Second):
		t.Fatal("query log entry was not published")
	}
}

func TestAnswerQueryPublishesLog(t *testing.T) {
	store := newMemoryStore()
	seedKnowledge(t, store, docstore.NewStore())
	llm := &scriptedLLM{response: "answer"}
	queryLog := &channelLogger{entries: make(chan *schema.QueryLogEntry, 1)}
	p := newTestQueryPipeline(t, store, llm, queryLog, nil)

	p.AnswerQuery(context.Background(), schema.QueryRequest{Query: "gst report"})

	select {
	case entry := <-queryLog.entries:
		assert.Equal(t, "gst report", entry.Query)
		assert.Equal(t, len(entry.ChunkIDs), entry.ChunksRetrieved)
		assert.Equal(t, schema.LanguageEnglish, entry.Language)
		assert.False(t, entry.Timestamp.IsZero())
	case <-time.After(2 * time.Second):
		t.Fatal("query log entry was not published")
	}
}

func TestAnswerQueryUsesCache(t *testing.T) {
	store := newMemoryStore()
	seedKnowledge(t, store, docstore.NewStore())
	llm := &scriptedLLM{response: "cached answer"}
	answers := newMapCache()
	p := newTestQueryPipeline(t, store, llm, nil, answers)

	req := schema.QueryRequest{Query: "invoice help"}
	first := p.AnswerQuery(context.Background(), req)
	require.True(t, first.Success)
	require.Equal(t, 1, llm.callCount())

	second := p.AnswerQuery(context.Background(), req)
	assert.Equal(t, first.AnswerText, second.AnswerText)
	assert.Equal(t, 1, llm.callCount())
}

func TestAnswerQueryMinConfidenceFiltersLowQuality(t *testing.T) {
	store := newMemoryStore()
	record := schema.VectorRecord{
		ID:     "low-1",
		Vector: embeddings.FallbackVector("passage: draft note", 64),
		Metadata: schema.VectorMetadata{
			ChunkID:      "low-1",
			DocumentID:   "doc-low",
			ChunkText:    "Unreviewed draft note.",
			QualityScore: 0.2,
		},
	}
	require.NoError(t, store.Upsert(context.Background(), "test-ns", []schema.VectorRecord{record}))

	llm := &scriptedLLM{response: "summary of the draft"}
	p := newTestQueryPipeline(t, store, llm, nil, nil)

	// min_confidence becomes a quality floor on the search itself, so the
	// low-quality chunk never reaches generation.
	resp := p.AnswerQuery(context.Background(), schema.QueryRequest{Query: "invoice help", MinConfidence: 0.5})
	assert.InDelta(t, 0.5, store.lastFilter().MinQuality, 1e-9)
	assert.Equal(t, generation.NoKnowledgeAnswer(schema.LanguageEnglish), resp.AnswerText)
	assert.Empty(t, resp.Sources)
	assert.Equal(t, 0, llm.callCount())

	// Without the floor the same chunk is retrievable.
	resp = p.AnswerQuery(context.Background(), schema.QueryRequest{Query: "invoice help"})
	assert.Equal(t, 1, llm.callCount())
	assert.NotEmpty(t, resp.Sources)
}
