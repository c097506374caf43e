package docstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ReckonAssist/internal/rag/schema"
)

func testDoc() (*schema.Document, []schema.Chunk) {
	doc := &schema.Document{ID: "doc-1", Title: "Billing Guide"}
	chunks := []schema.Chunk{
		{ID: "c-2", DocumentID: "doc-1", Index: 1},
		{ID: "c-1", DocumentID: "doc-1", Index: 0},
		{ID: "c-3", DocumentID: "doc-1", Index: 2},
	}
	return doc, chunks
}

func TestAddOrdersChunksByIndex(t *testing.T) {
	s := NewStore()
	doc, chunks := testDoc()
	s.Add(doc, chunks)

	got := s.Chunks("doc-1")
	require.Len(t, got, 3)
	assert.Equal(t, "c-1", got[0].ID)
	assert.Equal(t, "c-2", got[1].ID)
	assert.Equal(t, "c-3", got[2].ID)

	stored, ok := s.Document("doc-1")
	require.True(t, ok)
	assert.Equal(t, "Billing Guide", stored.Title)
}

func TestChunksReturnsCopy(t *testing.T) {
	s := NewStore()
	doc, chunks := testDoc()
	s.Add(doc, chunks)

	got := s.Chunks("doc-1")
	got[0].Text = "mutated"

	again := s.Chunks("doc-1")
	assert.Empty(t, again[0].Text)
}

func TestMarkEmbedded(t *testing.T) {
	s := NewStore()
	doc, chunks := testDoc()
	s.Add(doc, chunks)

	require.NoError(t, s.MarkEmbedded("doc-1", "c-2", "emb-2"))

	got := s.Chunks("doc-1")
	assert.False(t, got[0].Embedded)
	assert.True(t, got[1].Embedded)
	assert.Equal(t, "emb-2", got[1].EmbeddingID)

	assert.Error(t, s.MarkEmbedded("doc-1", "missing", "x"))
	assert.Error(t, s.MarkEmbedded("missing", "c-1", "x"))
}

func TestDeleteReturnsChunkIDs(t *testing.T) {
	s := NewStore()
	doc, chunks := testDoc()
	s.Add(doc, chunks)

	ids := s.Delete("doc-1")
	assert.ElementsMatch(t, []string{"c-1", "c-2", "c-3"}, ids)

	_, ok := s.Document("doc-1")
	assert.False(t, ok)
	assert.Empty(t, s.Chunks("doc-1"))

	assert.Empty(t, s.Delete("doc-1"))
}
