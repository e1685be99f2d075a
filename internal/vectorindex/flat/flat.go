package flat

import (
	"context"
	"fmt"
	"sync/atomic"

	"incident-search/internal/domain"
	"incident-search/internal/vectorindex"
)

// Index is an exact brute-force L2 index. Each Build publishes an immutable
// snapshot, so searches never take a lock.
type Index struct {
	snap atomic.Pointer[snapshot]
}

type snapshot struct {
	dimension int
	vectors   [][]float64
}

// New returns an empty index; Search fails until Build is called.
func New() *Index { return &Index{} }

// Build copies vectors in order; position i of the index is vectors[i].
func (x *Index) Build(_ context.Context, vectors [][]float64) error {
	dim, err := vectorindex.CheckVectors(vectors)
	if err != nil {
		return err
	}
	s := &snapshot{dimension: dim, vectors: make([][]float64, len(vectors))}
	for i, v := range vectors {
		s.vectors[i] = append([]float64(nil), v...)
	}
	x.snap.Store(s)
	return nil
}

// Search returns the k nearest positions by squared L2, ties broken by
// ascending position.
func (x *Index) Search(ctx context.Context, query []float64, k int) ([]domain.Neighbor, error) {
	s := x.snap.Load()
	if s == nil {
		return nil, domain.ErrIndexNotBuilt
	}
	k = vectorindex.ClampK(k, len(s.vectors))
	if k == 0 {
		return []domain.Neighbor{}, nil
	}
	if len(query) != s.dimension {
		return nil, fmt.Errorf("query dimension mismatch: got %d, want %d", len(query), s.dimension)
	}
	ns := make([]domain.Neighbor, len(s.vectors))
	for i, v := range s.vectors {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		ns[i] = domain.Neighbor{Position: i, Distance: vectorindex.SquaredL2(query, v)}
	}
	vectorindex.SortNeighbors(ns)
	return ns[:k], nil
}

// Count returns the number of indexed vectors.
func (x *Index) Count() int {
	if s := x.snap.Load(); s != nil {
		return len(s.vectors)
	}
	return 0
}

// Dimension returns the vector length, zero before Build.
func (x *Index) Dimension() int {
	if s := x.snap.Load(); s != nil {
		return s.dimension
	}
	return 0
}
