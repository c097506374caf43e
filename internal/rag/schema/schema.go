package schema

import "time"

// Language codes accepted across the pipeline.
const (
	LanguageEnglish = "en"
	LanguageHindi   = "hi"
)

// Document is a knowledge-base source document. The raw text is immutable
// once chunked; a content update means a full re-chunk.
type Document struct {
	ID           string
	Title        string
	RawText      string
	DocumentType string
	Industry     string // optional category, empty when unclassified
	Language     string // "en" or "hi"
	CreatedAt    time.Time
}

// Chunk is a bounded contiguous slice of a document's text, the unit of
// embedding and retrieval. Chunks of one document, ordered by Index,
// reconstruct the cleaned document text once each chunk's declared
// OverlapWithPrevious prefix is removed.
type Chunk struct {
	ID                  string
	DocumentID          string
	Index               int // 0-based, contiguous within the document
	Text                string
	Size                int // character length
	OverlapWithPrevious int // characters shared with the prior chunk
	SectionTitle        string
	Keywords            []string
	QualityScore        float64 // [0,1]
	EmbeddingID         string
	Embedded            bool
}

// EmbeddingVector is a fixed-length vector representation of a text.
// Values must be unit-norm before storage.
type EmbeddingVector struct {
	Dimension  int
	Values     []float32
	Normalized bool
}

// SearchResult is one retrieval hit, produced per query and never persisted.
type SearchResult struct {
	ChunkID         string
	DocumentID      string
	SimilarityScore float64 // cosine, clamped to [0,1]
	ChunkText       string
	SectionTitle    string
	Keywords        string
	QualityScore    float64
	Industry        string
	DocumentType    string
	Language        string
}

// RAGResponse is the terminal result of a query. It is always fully
// populated; Success=false signals the caller got degraded fallback text.
type RAGResponse struct {
	Success          bool           `json:"success"`
	AnswerText       string         `json:"answer_text"`
	Confidence       float64        `json:"confidence"`
	Sources          []SearchResult `json:"sources"`
	ProcessingTimeMs int64          `json:"processing_time_ms"`
	ModelUsed        string         `json:"model_used"`
}

// IngestRequest is the write-path input.
type IngestRequest struct {
	Title        string `json:"title"`
	Content      string `json:"content"`
	DocumentType string `json:"document_type"`
	Industry     string `json:"industry,omitempty"`
	Language     string `json:"language"`
	ChunkSize    int    `json:"chunk_size,omitempty"`
	ChunkOverlap int    `json:"chunk_overlap,omitempty"`
}

// IngestResult is the write-path output.
type IngestResult struct {
	DocumentID        string `json:"document_id"`
	ChunksCreated     int    `json:"chunks_created"`
	EmbeddingsCreated int    `json:"embeddings_created"`
	ProcessingTimeMs  int64  `json:"processing_time_ms"`
}

// QueryRequest is the read-path input.
type QueryRequest struct {
	Query         string   `json:"query"`
	TopK          int      `json:"top_k,omitempty"`
	DocumentTypes []string `json:"document_types,omitempty"`
	Industries    []string `json:"industries,omitempty"`
	Language      string   `json:"language,omitempty"`
	MinConfidence float64  `json:"min_confidence,omitempty"`
}

// SearchFilter narrows a vector query by metadata. Zero values mean "no
// constraint" for that field.
type SearchFilter struct {
	DocumentTypes []string
	Industries    []string
	Language      string
	MinQuality    float64
}

// VectorMetadata is the fixed metadata record stored alongside every vector.
// The field names form the wire compatibility surface of the index; readers
// and writers share this struct so keys cannot silently drift.
type VectorMetadata struct {
	ChunkID      string  `json:"chunk_id"`
	DocumentID   string  `json:"document_id"`
	ChunkIndex   int64   `json:"chunk_index"`
	SectionTitle string  `json:"section_title"`
	Keywords     string  `json:"keywords"` // comma-joined
	QualityScore float64 `json:"quality_score"`
	Industry     string  `json:"industry"`
	DocumentType string  `json:"document_type"`
	Language     string  `json:"language"`
	ChunkText    string  `json:"chunk_text"` // raw text, so retrieval needs no secondary lookup
}

// VectorRecord pairs an id and vector with its metadata for upsert.
type VectorRecord struct {
	ID       string
	Vector   []float32
	Metadata VectorMetadata
}

// VectorMatch is one raw hit from the vector store.
type VectorMatch struct {
	ID       string
	Score    float64
	Metadata VectorMetadata
}

// QueryLogEntry is the analytics event emitted after every answered query.
type QueryLogEntry struct {
	Query           string    `json:"query"`
	ChunksRetrieved int       `json:"chunks_retrieved"`
	ChunkIDs        []string  `json:"chunk_ids"`
	LatencyMs       int64     `json:"latency_ms"`
	Language        string    `json:"language"`
	Timestamp       time.Time `json:"timestamp"`
}
