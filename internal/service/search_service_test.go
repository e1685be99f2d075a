package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"incident-search/internal/annotator"
	"incident-search/internal/corpus"
	"incident-search/internal/domain"
	"incident-search/internal/embedding/tfidf"
	"incident-search/internal/metrics"
	"incident-search/internal/vectorindex/flat"
)

func day(d int) time.Time { return time.Date(2024, 3, d, 0, 0, 0, 0, time.UTC) }

var records = []domain.IncidentRecord{
	{ID: "1", Date: day(1), Department: "Assembly", Model: "X200", SubAssembly: "Frame", Description: "Bolt was loose on the rear frame of X200"},
	{ID: "2", Date: day(2), Department: "Shipping", Model: "X300", SubAssembly: "Box", Description: ""},
	{ID: "3", Date: day(3), Department: "Shipping", Model: "X300", SubAssembly: "Box", Description: "Shipping box arrived damaged and handle bent"},
	{ID: "4", Date: day(4), Department: "Warehouse", Model: "X100", SubAssembly: "Hardware", Description: "Wrong screws supplied with the hardware kit"},
	{ID: "5", Date: day(5), Department: "Packing", Model: "X100", SubAssembly: "Docs", Description: "Assembly manual missing from the package"},
	{ID: "6", Date: day(6), Department: "Upholstery", Model: "X200", SubAssembly: "Seat", Description: "Seat cushion stitching torn along seam"},
	{ID: "7", Date: day(7), Department: "Assembly", Model: "X400", SubAssembly: "Brakes", Description: "Brake cable slipping under load"},
}

func newService(t *testing.T, opts ...Option) (*SearchService, *corpus.Store) {
	t.Helper()
	st := corpus.NewStore(records)
	svc := New(st, tfidf.NewEmbedder(2), flat.New(), annotator.New(), opts...)
	require.NoError(t, svc.Build(context.Background()))
	return svc, st
}

func TestFindSimilarLengthAndOrder(t *testing.T) {
	svc, st := newService(t)
	for _, k := range []int{1, 3, 6, 50} {
		res, err := svc.FindSimilar(context.Background(), "loose bolt on frame", k)
		require.NoError(t, err)
		assert.Len(t, res, min(k, st.Count()))
		for i := range res {
			assert.Equal(t, i+1, res[i].Rank)
			if i > 0 {
				assert.LessOrEqual(t, res[i-1].Distance, res[i].Distance)
			}
		}
	}
}

func TestFindSimilarDefaultK(t *testing.T) {
	svc, _ := newService(t)
	res, err := svc.FindSimilar(context.Background(), "damaged box", 0)
	require.NoError(t, err)
	assert.Len(t, res, DefaultK)

	svc, _ = newService(t, WithDefaultK(2))
	res, err = svc.FindSimilar(context.Background(), "damaged box", -1)
	require.NoError(t, err)
	assert.Len(t, res, 2)
}

func TestFindSimilarEmptyQuery(t *testing.T) {
	svc, _ := newService(t)
	for _, q := range []string{"", "   ", "\n\t"} {
		_, err := svc.FindSimilar(context.Background(), q, 5)
		assert.ErrorIs(t, err, domain.ErrEmptyQuery, "%q", q)
	}
}

func TestFindSimilarBeforeBuild(t *testing.T) {
	svc := New(corpus.NewStore(records), tfidf.NewEmbedder(1), flat.New(), annotator.New())
	_, err := svc.FindSimilar(context.Background(), "bolt", 5)
	assert.ErrorIs(t, err, domain.ErrIndexNotBuilt)
	assert.False(t, svc.Built())
}

func TestExactDescriptionRanksFirstAndStaysAligned(t *testing.T) {
	svc, st := newService(t)
	for i := 0; i < st.Count(); i++ {
		want, err := st.RecordAt(i)
		require.NoError(t, err)
		res, err := svc.FindSimilar(context.Background(), want.Description, 3)
		require.NoError(t, err)
		require.NotEmpty(t, res)
		assert.Equal(t, want, res[0].Record)
		assert.InDelta(t, 0, res[0].Distance, 1e-12)
	}
}

func TestResultsAreAnnotated(t *testing.T) {
	svc, _ := newService(t)
	res, err := svc.FindSimilar(context.Background(), "Wrong screws supplied with the hardware kit", 1)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "4", res[0].Record.ID)
	assert.Equal(t, annotator.Analyze(res[0].Record.Description), res[0].Annotation)
	assert.Equal(t, []string{"Incorrect item picked from inventory or mislabeled part."}, res[0].Annotation.Causes)
}

func TestRebuildIsDeterministic(t *testing.T) {
	a, _ := newService(t)
	b, _ := newService(t)
	ra, err := a.FindSimilar(context.Background(), "package arrived with missing manual", 6)
	require.NoError(t, err)
	rb, err := b.FindSimilar(context.Background(), "package arrived with missing manual", 6)
	require.NoError(t, err)
	assert.Equal(t, ra, rb)

	require.NoError(t, a.Build(context.Background()))
	rc, err := a.FindSimilar(context.Background(), "package arrived with missing manual", 6)
	require.NoError(t, err)
	assert.Equal(t, ra, rc)
}

func TestEmptyCorpus(t *testing.T) {
	svc := New(corpus.NewStore(nil), tfidf.NewEmbedder(1), flat.New(), annotator.New())
	require.NoError(t, svc.Build(context.Background()))
	res, err := svc.FindSimilar(context.Background(), "anything", 5)
	require.NoError(t, err)
	assert.NotNil(t, res)
	assert.Empty(t, res)

	_, err = svc.FindSimilar(context.Background(), "  ", 5)
	assert.ErrorIs(t, err, domain.ErrEmptyQuery)
}

func TestEmptyCorpusSkipsQueryEmbedding(t *testing.T) {
	emb := &failingEmbedder{Embedder: tfidf.NewEmbedder(1), embedErr: errors.New("embedder unavailable")}
	onlyBlank := []domain.IncidentRecord{{ID: "9", Date: day(9), Description: "   "}}
	svc := New(corpus.NewStore(onlyBlank), emb, flat.New(), annotator.New())
	require.NoError(t, svc.Build(context.Background()))
	assert.Zero(t, svc.Count())

	res, err := svc.FindSimilar(context.Background(), "loose bolt", 0)
	require.NoError(t, err)
	assert.Empty(t, res)
}

func TestConcurrentQueries(t *testing.T) {
	svc, _ := newService(t)
	want, err := svc.FindSimilar(context.Background(), "brake cable", 4)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := svc.FindSimilar(context.Background(), "brake cable", 4)
			assert.NoError(t, err)
			assert.Equal(t, want, got)
		}()
	}
	wg.Wait()
}

func TestAccessors(t *testing.T) {
	svc, st := newService(t)
	assert.Equal(t, 6, svc.Count())
	assert.Equal(t, st.Records(), svc.Records())
	rec, err := svc.RecordAt(1)
	require.NoError(t, err)
	assert.Equal(t, "3", rec.ID)
}

func TestMetricsAndLogging(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	svc, _ := newService(t, WithMetrics(m), WithLogger(zaptest.NewLogger(t)))

	_, _ = svc.FindSimilar(context.Background(), "bolt", 2)
	_, _ = svc.FindSimilar(context.Background(), " ", 2)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.QueriesTotal.WithLabelValues(metrics.OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.QueriesTotal.WithLabelValues(metrics.OutcomeEmptyQuery)))
	assert.Equal(t, 6.0, testutil.ToFloat64(m.CorpusRecords))
}

// --- failure paths ---

type failingEmbedder struct {
	domain.Embedder
	prepareErr, batchErr, embedErr error
	short                          bool
}

func (f *failingEmbedder) Prepare(ctx context.Context, c []string) error {
	if f.prepareErr != nil {
		return f.prepareErr
	}
	return f.Embedder.Prepare(ctx, c)
}

func (f *failingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	if f.batchErr != nil {
		return nil, f.batchErr
	}
	out, err := f.Embedder.EmbedBatch(ctx, texts)
	if f.short {
		out = out[1:]
	}
	return out, err
}

func (f *failingEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	if f.embedErr != nil {
		return nil, f.embedErr
	}
	return f.Embedder.Embed(ctx, text)
}

type shortIndex struct{ *flat.Index }

func (shortIndex) Count() int { return 1 }

func TestBuildFailures(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		name  string
		emb   *failingEmbedder
		index domain.VectorIndex
		want  string
	}{
		{"prepare", &failingEmbedder{prepareErr: boom}, flat.New(), "prepare tfidf embedder"},
		{"batch", &failingEmbedder{batchErr: boom}, flat.New(), "embed corpus"},
		{"short batch", &failingEmbedder{short: true}, flat.New(), "got 5 vectors for 6 descriptions"},
		{"misaligned index", &failingEmbedder{}, shortIndex{flat.New()}, "index holds 1 vectors"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.emb.Embedder = tfidf.NewEmbedder(1)
			svc := New(corpus.NewStore(records), tt.emb, tt.index, annotator.New())
			err := svc.Build(context.Background())
			assert.ErrorContains(t, err, tt.want)
			assert.False(t, svc.Built())
		})
	}
}

func TestQueryEmbedFailure(t *testing.T) {
	boom := errors.New("boom")
	emb := &failingEmbedder{Embedder: tfidf.NewEmbedder(1)}
	svc := New(corpus.NewStore(records), emb, flat.New(), annotator.New())
	require.NoError(t, svc.Build(context.Background()))

	emb.embedErr = boom
	_, err := svc.FindSimilar(context.Background(), "bolt", 3)
	assert.ErrorIs(t, err, boom)

	emb.embedErr = nil
	res, err := svc.FindSimilar(context.Background(), "bolt", 3)
	require.NoError(t, err)
	assert.Len(t, res, 3)
}
