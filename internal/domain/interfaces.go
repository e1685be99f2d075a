package domain

import (
	"context"
	"time"
)

// IncidentRecord is one historical incident loaded from the corpus source.
// Records are immutable once loaded.
type IncidentRecord struct {
	ID          string    `json:"id"`
	Date        time.Time `json:"date"`
	Department  string    `json:"department"`
	Model       string    `json:"model"`
	SubAssembly string    `json:"sub_assembly"`
	Description string    `json:"description"`
}

// Annotation holds the probable causes and suggested actions for a description.
// Both slices are non-empty and share the order of the rules that produced them.
type Annotation struct {
	Causes      []string `json:"causes"`
	Suggestions []string `json:"suggestions"`
}

// Neighbor is a single k-NN hit: the corpus position and its squared L2 distance.
type Neighbor struct {
	Position int
	Distance float64
}

// QueryResult is a ranked, annotated match returned to front ends.
type QueryResult struct {
	Rank       int            `json:"rank"`
	Record     IncidentRecord `json:"record"`
	Distance   float64        `json:"distance"`
	Annotation Annotation     `json:"annotation"`
}

// Embedder converts free text into a numeric vector representation.
// Implementations may require a preparation phase over the corpus.
type Embedder interface {
	Name() string
	Prepare(ctx context.Context, corpus []string) error
	Dimension() int
	Embed(ctx context.Context, text string) ([]float64, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float64, error)
}

// VectorIndex holds the corpus embeddings, positionally aligned with the corpus,
// and answers exact nearest-neighbor queries by squared Euclidean distance.
type VectorIndex interface {
	Build(ctx context.Context, vectors [][]float64) error
	Search(ctx context.Context, query []float64, k int) ([]Neighbor, error)
	Count() int
	Dimension() int
}

// Annotator maps description text to probable causes and suggestions.
type Annotator interface {
	Analyze(text string) Annotation
}

// SearchService defines the operations exposed by the application core.
type SearchService interface {
	FindSimilar(ctx context.Context, query string, k int) ([]QueryResult, error)
	Count() int
	Records() []IncidentRecord
}
