package tfidf

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var corpus = []string{
	"Bolt was loose on the rear frame",
	"Box arrived damaged with a bent corner",
	"Wrong screws were included in the kit",
	"Manual missing from the package",
}

func prepared(t *testing.T) *Embedder {
	t.Helper()
	e := NewEmbedder(2)
	require.NoError(t, e.Prepare(context.Background(), corpus))
	return e
}

func TestEmbedBeforePrepare(t *testing.T) {
	e := NewEmbedder(0)
	_, err := e.Embed(context.Background(), "x")
	assert.ErrorIs(t, err, errNotPrepared)
	_, err = e.EmbedBatch(context.Background(), []string{"x"})
	assert.ErrorIs(t, err, errNotPrepared)
}

func TestPrepareRejectsStopwordOnlyCorpus(t *testing.T) {
	assert.ErrorIs(t, NewEmbedder(0).Prepare(context.Background(), []string{"the and of"}), errNoTerms)
}

func TestPrepareEmptyCorpus(t *testing.T) {
	e := NewEmbedder(0)
	require.NoError(t, e.Prepare(context.Background(), nil))
	assert.Zero(t, e.Dimension())

	v, err := e.Embed(context.Background(), "loose bolt")
	require.NoError(t, err)
	assert.Empty(t, v)

	batch, err := e.EmbedBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, batch)
}

func TestPrepareReplacesVocabulary(t *testing.T) {
	e := prepared(t)
	require.NoError(t, e.Prepare(context.Background(), []string{"hinge cracked", "hinge loose"}))
	assert.Equal(t, 3, e.Dimension())
	v, err := e.Embed(context.Background(), "bolt")
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 0}, v)
}

func TestEmbedIsDeterministicAndNormalized(t *testing.T) {
	e := prepared(t)
	a, err := e.Embed(context.Background(), corpus[0])
	require.NoError(t, err)
	b, err := e.Embed(context.Background(), corpus[0])
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Len(t, a, e.Dimension())
	norm := 0.0
	for _, v := range a {
		norm += v * v
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-9)
}

func TestEmbedUnknownTermsYieldsZeroVector(t *testing.T) {
	e := prepared(t)
	v, err := e.Embed(context.Background(), "zzz qqq")
	require.NoError(t, err)
	for _, x := range v {
		assert.Zero(t, x)
	}
}

func TestEmbedBatchMatchesEmbed(t *testing.T) {
	e := prepared(t)
	batch, err := e.EmbedBatch(context.Background(), corpus)
	require.NoError(t, err)
	require.Len(t, batch, len(corpus))
	for i, text := range corpus {
		single, err := e.Embed(context.Background(), text)
		require.NoError(t, err)
		assert.Equal(t, single, batch[i])
	}
}

func TestSimilarTextIsCloser(t *testing.T) {
	e := prepared(t)
	q, _ := e.Embed(context.Background(), "frame bolt loose")
	near, _ := e.Embed(context.Background(), corpus[0])
	far, _ := e.Embed(context.Background(), corpus[1])
	assert.Less(t, sqDist(q, near), sqDist(q, far))
}

func TestTokenizeKeepsModelNumbers(t *testing.T) {
	assert.Equal(t, []string{"x200", "handle", "isn't", "fitted"}, tokenize("The X200 handle isn't fitted"))
}

func sqDist(a, b []float64) float64 {
	s := 0.0
	for i := range a {
		d := a[i] - b[i]
		s += d * d
	}
	return s
}
