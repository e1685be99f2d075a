package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"incident-search/internal/annotator"
	"incident-search/internal/config"
	"incident-search/internal/corpus"
	"incident-search/internal/domain"
	"incident-search/internal/embedding/openai"
	"incident-search/internal/embedding/tfidf"
	"incident-search/internal/insights"
	"incident-search/internal/logging"
	"incident-search/internal/metrics"
	"incident-search/internal/service"
	"incident-search/internal/vectorindex/flat"
	"incident-search/internal/vectorindex/qdrant"
)

// App is the process-wide context built once at startup: the loaded corpus
// and a search service whose index has been built.
type App struct {
	Config  *config.AppConfig
	Corpus  *corpus.Store
	Service *service.SearchService
	Log     *zap.Logger

	closers []func() error
}

// New loads the corpus, assembles components by configured type and builds
// the index. Any failure is fatal for this instance.
func New(ctx context.Context, cfg *config.AppConfig, log *zap.Logger, reg prometheus.Registerer) (*App, error) {
	log = logging.OrNop(log)
	a := &App{Config: cfg, Log: log}

	src, err := a.corpusSource(cfg.Corpus)
	if err != nil {
		return nil, a.fail(err)
	}
	start := time.Now()
	st, err := corpus.Load(ctx, src)
	if err != nil {
		return nil, a.fail(err)
	}
	a.Corpus = st
	log.Info("corpus loaded",
		zap.String("source", src.Name()),
		zap.Int("records", st.Count()),
		zap.Int("dropped_without_description", st.Dropped()),
		zap.Duration("took", time.Since(start)),
	)

	emb, err := newEmbedder(cfg.Embedder)
	if err != nil {
		return nil, a.fail(err)
	}
	idx, err := a.vectorIndex(cfg.VectorIndex)
	if err != nil {
		return nil, a.fail(err)
	}

	opts := []service.Option{service.WithLogger(log), service.WithDefaultK(cfg.Search.DefaultK)}
	if reg != nil {
		opts = append(opts, service.WithMetrics(metrics.New(reg)))
	}
	a.Service = service.New(st, emb, idx, annotator.New(), opts...)
	if err := a.Service.Build(ctx); err != nil {
		return nil, a.fail(err)
	}
	return a, nil
}

// Insights aggregates the loaded corpus.
func (a *App) Insights() insights.Report {
	return insights.Compute(a.Corpus.Records(), a.Config.Insights.TopModels)
}

// Close releases database handles and remote connections.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *App) fail(err error) error {
	_ = a.Close()
	return err
}

func (a *App) corpusSource(cfg config.CorpusConfig) (corpus.Source, error) {
	switch cfg.Type {
	case "csv", "":
		return corpus.NewCSVSource(cfg.Path), nil
	case "sqlite":
		src, err := corpus.OpenSQLiteSource(cfg.Path, cfg.Table)
		if err != nil {
			return nil, domain.NewLoadError(cfg.Path, 0, err)
		}
		a.closers = append(a.closers, src.Close)
		return src, nil
	default:
		return nil, fmt.Errorf("unknown corpus source: %s", cfg.Type)
	}
}

func newEmbedder(cfg config.EmbedderConfig) (domain.Embedder, error) {
	switch cfg.Type {
	case "tfidf", "":
		return tfidf.NewEmbedder(cfg.Workers), nil
	case "openai":
		if cfg.OpenAI == nil {
			return nil, errors.New("openai embedder config missing")
		}
		client, err := openai.NewClient(openai.Config{
			BaseURL:           cfg.OpenAI.BaseURL,
			APIKeyEnv:         cfg.OpenAI.APIKeyEnv,
			Model:             cfg.OpenAI.Model,
			Timeout:           time.Duration(cfg.OpenAI.TimeoutSecs) * time.Second,
			RequestsPerSecond: cfg.OpenAI.RequestsPerSecond,
			Workers:           cfg.Workers,
			MaxRetries:        cfg.OpenAI.Retries(),
		})
		if err != nil {
			return nil, fmt.Errorf("openai embedder init failed: %w", err)
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unknown embedder: %s", cfg.Type)
	}
}

func (a *App) vectorIndex(cfg config.VectorIndexConfig) (domain.VectorIndex, error) {
	switch cfg.Type {
	case "flat", "":
		return flat.New(), nil
	case "qdrant":
		if cfg.Qdrant == nil {
			return nil, errors.New("qdrant config missing")
		}
		idx, err := qdrant.New(qdrant.Config{
			Addr:       cfg.Qdrant.Addr,
			APIKey:     cfg.Qdrant.APIKey,
			Collection: cfg.Qdrant.Collection,
		})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, idx.Close)
		return idx, nil
	default:
		return nil, fmt.Errorf("unknown vector index: %s", cfg.Type)
	}
}
