package interfaces

import (
	"context"

	"ReckonAssist/internal/rag/schema"
)

// Chunker splits raw document text into overlapping, semantically bounded chunks.
type Chunker interface {
	Chunk(text string, chunkSize, overlap int) []schema.Chunk
}

// EmbeddingModel is a remote model that turns text into a raw vector.
// Implementations return the vector as produced by the backend; shape
// validation and normalization happen in the provider above them.
type EmbeddingModel interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// VectorStore stores and queries vectors with typed metadata inside one
// logical namespace per call.
type VectorStore interface {
	// Upsert replaces any prior entry with the same id entirely.
	Upsert(ctx context.Context, namespace string, records []schema.VectorRecord) error
	// Query runs a similarity search constrained by the filter.
	Query(ctx context.Context, namespace string, vector []float32, topK int, filter schema.SearchFilter) ([]schema.VectorMatch, error)
	// KeywordQuery returns chunks whose text contains every term,
	// case-insensitive, for the hybrid blend pass.
	KeywordQuery(ctx context.Context, namespace string, terms []string, topK int, filter schema.SearchFilter) ([]schema.VectorMatch, error)
	// DeleteByIDs removes the given vector ids.
	DeleteByIDs(ctx context.Context, namespace string, ids []string) error
	// DeleteByDocument removes every vector belonging to a document.
	DeleteByDocument(ctx context.Context, namespace string, documentID string) error
}

// LLM is a single-turn text generation model.
type LLM interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// QueryLogger receives fire-and-forget analytics events. Failures must not
// affect the response path.
type QueryLogger interface {
	LogQuery(ctx context.Context, entry *schema.QueryLogEntry) error
}

// AnswerCache is an optional read-path cache of full responses.
type AnswerCache interface {
	Get(ctx context.Context, key string) (*schema.RAGResponse, bool)
	Set(ctx context.Context, key string, resp *schema.RAGResponse)
}
