package embedding

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"

	"incident-search/internal/domain"
)

// Embedder converts free text into a numeric vector representation.
// Implementations may require a preparation phase over the corpus.
type Embedder = domain.Embedder

// EmbedFunc embeds a single text.
type EmbedFunc func(ctx context.Context, text string) ([]float64, error)

// BatchEmbed runs fn over texts on up to workers goroutines. The output is
// index-aligned with texts; the first error cancels the remaining work.
func BatchEmbed(ctx context.Context, texts []string, workers int, fn EmbedFunc) ([][]float64, error) {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	out := make([][]float64, len(texts))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range texts {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			vec, err := fn(ctx, texts[i])
			if err != nil {
				return err
			}
			out[i] = vec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
