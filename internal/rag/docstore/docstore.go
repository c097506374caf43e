package docstore

import (
	"fmt"
	"sort"
	"sync"

	"ReckonAssist/internal/rag/schema"
)

// Store is a thread-safe in-memory registry of documents and their chunks.
// It owns the embedded-flag lifecycle: a chunk's flag flips only through
// MarkEmbedded, after the corresponding vector upsert has succeeded, so
// concurrent readers never observe a half-embedded chunk.
type Store struct {
	mu     sync.RWMutex
	docs   map[string]*schema.Document
	chunks map[string][]schema.Chunk // documentID -> chunks ordered by Index
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		docs:   make(map[string]*schema.Document),
		chunks: make(map[string][]schema.Chunk),
	}
}

// Add registers a document with its chunks. Chunks are stored in Index order.
func (s *Store) Add(doc *schema.Document, chunks []schema.Chunk) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ordered := make([]schema.Chunk, len(chunks))
	copy(ordered, chunks)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Index < ordered[j].Index })

	s.docs[doc.ID] = doc
	s.chunks[doc.ID] = ordered
}

// Document returns the document by id.
func (s *Store) Document(id string) (*schema.Document, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[id]
	return doc, ok
}

// Chunks returns a copy of the document's chunks in Index order.
func (s *Store) Chunks(documentID string) []schema.Chunk {
	s.mu.RLock()
	defer s.mu.RUnlock()
	chunks := s.chunks[documentID]
	out := make([]schema.Chunk, len(chunks))
	copy(out, chunks)
	return out
}

// MarkEmbedded flips a chunk's embedded flag and records its embedding id.
func (s *Store) MarkEmbedded(documentID, chunkID, embeddingID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	chunks, ok := s.chunks[documentID]
	if !ok {
		return fmt.Errorf("unknown document %s", documentID)
	}
	for i := range chunks {
		if chunks[i].ID == chunkID {
			chunks[i].EmbeddingID = embeddingID
			chunks[i].Embedded = true
			return nil
		}
	}
	return fmt.Errorf("unknown chunk %s in document %s", chunkID, documentID)
}

// Delete removes a document and returns the ids of its chunks so the caller
// can cascade the deletion into the vector index.
func (s *Store) Delete(documentID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	chunks := s.chunks[documentID]
	ids := make([]string, 0, len(chunks))
	for _, c := range chunks {
		ids = append(ids, c.ID)
	}

	delete(s.docs, documentID)
	delete(s.chunks, documentID)
	return ids
}
