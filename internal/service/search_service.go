package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"incident-search/internal/domain"
	"incident-search/internal/logging"
	"incident-search/internal/metrics"
)

// DefaultK is the number of results returned when the caller passes k <= 0.
const DefaultK = 5

// Corpus is the read side of the corpus store the service needs.
type Corpus interface {
	Count() int
	RecordAt(pos int) (domain.IncidentRecord, error)
	Records() []domain.IncidentRecord
	AllDescriptions() []string
}

// SearchService is the application context: corpus, embedder, index and
// annotator wired once at startup and shared read-only by every query.
type SearchService struct {
	corpus    Corpus
	embedder  domain.Embedder
	index     domain.VectorIndex
	annotator domain.Annotator
	log       *zap.Logger
	metrics   *metrics.Metrics
	defaultK  int
	built     atomic.Bool
}

// Option configures a SearchService.
type Option func(*SearchService)

// WithLogger sets the logger; nil keeps the nop logger.
func WithLogger(l *zap.Logger) Option { return func(s *SearchService) { s.log = logging.OrNop(l) } }

// WithMetrics records query and build metrics.
func WithMetrics(m *metrics.Metrics) Option { return func(s *SearchService) { s.metrics = m } }

// WithDefaultK sets the result count used when a query passes k <= 0.
func WithDefaultK(k int) Option {
	return func(s *SearchService) {
		if k > 0 {
			s.defaultK = k
		}
	}
}

// New wires the components into a service. Call Build before FindSimilar.
func New(corpus Corpus, embedder domain.Embedder, index domain.VectorIndex, annotator domain.Annotator, opts ...Option) *SearchService {
	s := &SearchService{
		corpus:    corpus,
		embedder:  embedder,
		index:     index,
		annotator: annotator,
		log:       zap.NewNop(),
		defaultK:  DefaultK,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Build prepares the embedder on the corpus, embeds every description in
// corpus order and builds the index from the result.
func (s *SearchService) Build(ctx context.Context) error {
	start := time.Now()
	descs := s.corpus.AllDescriptions()
	var vectors [][]float64
	if len(descs) > 0 {
		if err := s.embedder.Prepare(ctx, descs); err != nil {
			return fmt.Errorf("prepare %s embedder: %w", s.embedder.Name(), err)
		}
		var err error
		vectors, err = s.embedder.EmbedBatch(ctx, descs)
		if err != nil {
			return fmt.Errorf("embed corpus: %w", err)
		}
		if len(vectors) != len(descs) {
			return fmt.Errorf("embed corpus: got %d vectors for %d descriptions", len(vectors), len(descs))
		}
	}
	embedded := time.Since(start)
	if err := s.index.Build(ctx, vectors); err != nil {
		return fmt.Errorf("build index: %w", err)
	}
	if got, want := s.index.Count(), s.corpus.Count(); got != want {
		return fmt.Errorf("build index: index holds %d vectors, corpus has %d records", got, want)
	}
	s.built.Store(true)

	elapsed := time.Since(start)
	s.metrics.ObserveBuild(len(descs), elapsed)
	s.log.Info("index built",
		zap.String("embedder", s.embedder.Name()),
		zap.Int("records", len(descs)),
		zap.Int("dimension", s.index.Dimension()),
		zap.Duration("embed", embedded),
		zap.Duration("total", elapsed),
	)
	return nil
}

// FindSimilar returns up to k annotated records nearest to query, ranked by
// ascending distance.
func (s *SearchService) FindSimilar(ctx context.Context, query string, k int) ([]domain.QueryResult, error) {
	start := time.Now()
	res, err := s.findSimilar(ctx, query, k)
	switch {
	case err == nil:
		s.metrics.ObserveQuery(metrics.OutcomeOK, time.Since(start))
		s.log.Debug("query served", zap.Int("results", len(res)), zap.Duration("took", time.Since(start)))
	case errors.Is(err, domain.ErrEmptyQuery):
		s.metrics.ObserveQuery(metrics.OutcomeEmptyQuery, 0)
	default:
		s.metrics.ObserveQuery(metrics.OutcomeError, 0)
		s.log.Warn("query failed", zap.Error(err))
	}
	return res, err
}

func (s *SearchService) findSimilar(ctx context.Context, query string, k int) ([]domain.QueryResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, domain.ErrEmptyQuery
	}
	if !s.built.Load() {
		return nil, domain.ErrIndexNotBuilt
	}
	if s.index.Count() == 0 {
		return []domain.QueryResult{}, nil
	}
	if k <= 0 {
		k = s.defaultK
	}
	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	neighbors, err := s.index.Search(ctx, vec, k)
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}
	out := make([]domain.QueryResult, 0, len(neighbors))
	for i, n := range neighbors {
		rec, err := s.corpus.RecordAt(n.Position)
		if err != nil {
			return nil, fmt.Errorf("resolve neighbor: %w", err)
		}
		out = append(out, domain.QueryResult{
			Rank:       i + 1,
			Record:     rec,
			Distance:   n.Distance,
			Annotation: s.annotator.Analyze(rec.Description),
		})
	}
	return out, nil
}

// Built reports whether Build completed successfully.
func (s *SearchService) Built() bool { return s.built.Load() }

// Count returns the corpus size.
func (s *SearchService) Count() int { return s.corpus.Count() }

// Records returns all corpus records in load order.
func (s *SearchService) Records() []domain.IncidentRecord { return s.corpus.Records() }

// RecordAt returns the record at load-order position pos.
func (s *SearchService) RecordAt(pos int) (domain.IncidentRecord, error) {
	return s.corpus.RecordAt(pos)
}
