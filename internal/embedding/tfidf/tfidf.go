package tfidf

import (
	"context"
	"errors"
	"math"
	"regexp"
	"slices"
	"strings"
	"sync/atomic"

	"incident-search/internal/embedding"
)

var (
	errNotPrepared = errors.New("tfidf embedder not prepared")
	errNoTerms     = errors.New("tfidf: corpus has no indexable terms")

	// letters and digits so model numbers and part codes count as terms
	termPattern = regexp.MustCompile(`[\p{L}\p{N}]+(?:['’][\p{L}\p{N}]+)*`)
)

// Embedder maps incident descriptions to L2-normalized TF-IDF vectors over
// the vocabulary of the corpus it was prepared on. Prepare publishes an
// immutable model, so concurrent Embed calls need no locking.
type Embedder struct {
	workers int
	model   atomic.Pointer[model]
}

type model struct {
	terms map[string]int
	idf   []float64
}

// NewEmbedder creates an unprepared TF-IDF embedder. workers bounds EmbedBatch
// parallelism; zero means one goroutine per CPU.
func NewEmbedder(workers int) *Embedder {
	return &Embedder{workers: workers}
}

// Name returns the identifier of this embedder implementation.
func (e *Embedder) Name() string { return "tfidf" }

// Prepare learns the vocabulary and smoothed IDF weights from corpus. An empty
// corpus yields a zero-dimension model; a non-empty corpus made only of
// stopwords is rejected.
func (e *Embedder) Prepare(_ context.Context, corpus []string) error {
	docFreq := make(map[string]int)
	for _, text := range corpus {
		for term := range termCounts(text) {
			docFreq[term]++
		}
	}
	if len(corpus) > 0 && len(docFreq) == 0 {
		return errNoTerms
	}

	vocab := make([]string, 0, len(docFreq))
	for term := range docFreq {
		vocab = append(vocab, term)
	}
	slices.Sort(vocab)

	m := &model{terms: make(map[string]int, len(vocab)), idf: make([]float64, len(vocab))}
	docs := float64(len(corpus))
	for i, term := range vocab {
		m.terms[term] = i
		m.idf[i] = 1 + math.Log((1+docs)/(1+float64(docFreq[term])))
	}
	e.model.Store(m)
	return nil
}

// Dimension returns the vocabulary size, zero before Prepare.
func (e *Embedder) Dimension() int {
	if m := e.model.Load(); m != nil {
		return len(m.idf)
	}
	return 0
}

// Embed computes the TF-IDF vector for text. Terms outside the vocabulary
// are ignored; text with no known terms maps to the zero vector.
func (e *Embedder) Embed(_ context.Context, text string) ([]float64, error) {
	m := e.model.Load()
	if m == nil {
		return nil, errNotPrepared
	}
	return m.vectorize(text), nil
}

// EmbedBatch embeds texts in parallel, preserving input order.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	if e.model.Load() == nil {
		return nil, errNotPrepared
	}
	return embedding.BatchEmbed(ctx, texts, e.workers, e.Embed)
}

func (m *model) vectorize(text string) []float64 {
	vec := make([]float64, len(m.idf))
	known := 0
	counts := termCounts(text)
	for term, n := range counts {
		if _, ok := m.terms[term]; ok {
			known += n
		}
	}
	if known == 0 {
		return vec
	}
	for term, n := range counts {
		if i, ok := m.terms[term]; ok {
			vec[i] = float64(n) / float64(known) * m.idf[i]
		}
	}
	// summed in index order so identical text gives bit-identical vectors
	var sumSq float64
	for _, w := range vec {
		sumSq += w * w
	}
	if norm := math.Sqrt(sumSq); norm > 0 {
		for i := range vec {
			vec[i] /= norm
		}
	}
	return vec
}

// termCounts lowercases text and counts its non-stopword terms.
func termCounts(text string) map[string]int {
	counts := make(map[string]int)
	for _, t := range tokenize(text) {
		counts[t]++
	}
	return counts
}

func tokenize(text string) []string {
	raw := termPattern.FindAllString(strings.ToLower(text), -1)
	out := raw[:0]
	for _, t := range raw {
		if _, stop := stopwords[t]; !stop {
			out = append(out, t)
		}
	}
	return out
}

var stopwords = func() map[string]struct{} {
	m := make(map[string]struct{})
	for _, w := range strings.Fields(`
		a an the and or but if then else for to of in on at by with as is are was were
		be been being it this that these those from up down over under again further
		than so such into about between through during before after above below out off
		own same too very can will just don should now`) {
		m[w] = struct{}{}
	}
	return m
}()
