package embeddings

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ReckonAssist/pkg/logger"
)

type fakeModel struct {
	gotText string
	vec     []float32
	err     error
}

func (f *fakeModel) Embed(_ context.Context, text string) ([]float32, error) {
	f.gotText = text
	if f.err != nil {
		return nil, f.err
	}
	out := make([]float32, len(f.vec))
	copy(out, f.vec)
	return out, nil
}

func testLogger() *logger.Logger {
	return logger.New("test", "")
}

func vectorNorm(vec []float32) float64 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum)
}

func TestFallbackVectorDeterministic(t *testing.T) {
	a := FallbackVector("how to create an invoice", 1024)
	b := FallbackVector("how to create an invoice", 1024)
	c := FallbackVector("completely different text", 1024)

	require.Len(t, a, 1024)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.InDelta(t, 1.0, vectorNorm(a), 1e-3)
}

func TestProviderFallbackOnly(t *testing.T) {
	p := NewProvider(nil, 64, 512, testLogger())

	out, err := p.Embed(context.Background(), "stock report", RolePassage)
	require.NoError(t, err)
	assert.Equal(t, SourceFallback, out.Source)
	assert.Len(t, out.Vector.Values, 64)
	assert.Equal(t, 64, out.Vector.Dimension)
	assert.True(t, out.Vector.Normalized)
	assert.InDelta(t, 1.0, vectorNorm(out.Vector.Values), 1e-3)
}

func TestProviderRolePrefix(t *testing.T) {
	model := &fakeModel{vec: []float32{1, 2, 3, 4}}
	p := NewProvider(model, 4, 512, testLogger())

	_, err := p.Embed(context.Background(), "gst filing", RoleQuery)
	require.NoError(t, err)
	assert.Equal(t, "query: gst filing", model.gotText)

	_, err = p.Embed(context.Background(), "gst filing", RolePassage)
	require.NoError(t, err)
	assert.Equal(t, "passage: gst filing", model.gotText)
}

func TestProviderNormalizesPrimary(t *testing.T) {
	model := &fakeModel{vec: []float32{3, 0, 4, 0}}
	p := NewProvider(model, 4, 512, testLogger())

	out, err := p.Embed(context.Background(), "billing", RoleQuery)
	require.NoError(t, err)
	assert.Equal(t, SourcePrimary, out.Source)
	assert.Equal(t, 4, out.Vector.Dimension)
	assert.True(t, out.Vector.Normalized)
	assert.InDelta(t, 1.0, vectorNorm(out.Vector.Values), 1e-6)
	assert.InDelta(t, 0.6, float64(out.Vector.Values[0]), 1e-6)
}

func TestProviderFallsBackOnError(t *testing.T) {
	model := &fakeModel{err: errors.New("api down")}
	p := NewProvider(model, 32, 512, testLogger())

	out, err := p.Embed(context.Background(), "billing", RoleQuery)
	require.NoError(t, err)
	assert.Equal(t, SourceFallback, out.Source)
	assert.Len(t, out.Vector.Values, 32)
}

func TestProviderFallsBackOnWrongDimension(t *testing.T) {
	model := &fakeModel{vec: []float32{1, 2}}
	p := NewProvider(model, 32, 512, testLogger())

	out, err := p.Embed(context.Background(), "billing", RoleQuery)
	require.NoError(t, err)
	assert.Equal(t, SourceFallback, out.Source)
	assert.Len(t, out.Vector.Values, 32)
}

func TestProviderFallsBackOnZeroVector(t *testing.T) {
	model := &fakeModel{vec: make([]float32, 32)}
	p := NewProvider(model, 32, 512, testLogger())

	out, err := p.Embed(context.Background(), "billing", RoleQuery)
	require.NoError(t, err)
	assert.Equal(t, SourceFallback, out.Source)
}

func TestProviderTruncatesInput(t *testing.T) {
	model := &fakeModel{vec: []float32{1, 2, 3, 4}}
	p := NewProvider(model, 4, 10, testLogger())

	long := strings.Repeat("x", 50)
	_, err := p.Embed(context.Background(), long, RoleQuery)
	require.NoError(t, err)
	assert.Equal(t, "query: "+strings.Repeat("x", 10), model.gotText)
}

func TestFallbackMatchesRoleSensitivity(t *testing.T) {
	p := NewProvider(nil, 128, 512, testLogger())

	q, err := p.Embed(context.Background(), "invoice", RoleQuery)
	require.NoError(t, err)
	pass, err := p.Embed(context.Background(), "invoice", RolePassage)
	require.NoError(t, err)

	// The prefix is part of the hashed input, so roles produce different
	// fallback vectors for the same text.
	assert.NotEqual(t, q.Vector.Values, pass.Vector.Values)
}
