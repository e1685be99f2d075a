package vectorindex

import (
	"fmt"
	"sort"

	"incident-search/internal/domain"
)

// Index holds corpus embeddings aligned with corpus positions.
type Index = domain.VectorIndex

// SquaredL2 returns the squared Euclidean distance between a and b.
// Callers guarantee equal lengths.
func SquaredL2(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

// SortNeighbors orders by ascending distance, then ascending position.
func SortNeighbors(ns []domain.Neighbor) {
	sort.Slice(ns, func(i, j int) bool {
		if ns[i].Distance != ns[j].Distance {
			return ns[i].Distance < ns[j].Distance
		}
		return ns[i].Position < ns[j].Position
	})
}

// ClampK bounds k to the number of stored vectors; non-positive k yields 0.
func ClampK(k, count int) int {
	if k <= 0 {
		return 0
	}
	if k > count {
		return count
	}
	return k
}

// CheckVectors verifies that every vector has the same non-zero dimension and returns it.
func CheckVectors(vectors [][]float64) (int, error) {
	if len(vectors) == 0 {
		return 0, nil
	}
	dim := len(vectors[0])
	if dim == 0 {
		return 0, fmt.Errorf("vector 0 has zero dimension")
	}
	for i, v := range vectors {
		if len(v) != dim {
			return 0, fmt.Errorf("vector %d dimension mismatch: got %d, want %d", i, len(v), dim)
		}
	}
	return dim, nil
}
