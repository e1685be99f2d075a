package qdrant

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"

	"incident-search/internal/domain"
	"incident-search/internal/vectorindex"
)

const upsertBatch = 256

type pointsAPI interface {
	Upsert(ctx context.Context, in *pb.UpsertPoints, opts ...grpc.CallOption) (*pb.PointsOperationResponse, error)
	Search(ctx context.Context, in *pb.SearchPoints, opts ...grpc.CallOption) (*pb.SearchResponse, error)
}

type collectionsAPI interface {
	List(ctx context.Context, in *pb.ListCollectionsRequest, opts ...grpc.CallOption) (*pb.ListCollectionsResponse, error)
	Create(ctx context.Context, in *pb.CreateCollection, opts ...grpc.CallOption) (*pb.CollectionOperationResponse, error)
	Delete(ctx context.Context, in *pb.DeleteCollection, opts ...grpc.CallOption) (*pb.CollectionOperationResponse, error)
}

// Config contains connection details for a Qdrant instance.
type Config struct {
	Addr       string
	APIKey     string
	Collection string
}

// Index keeps the corpus embeddings in a Qdrant collection using Euclid
// distance. The collection is recreated on every Build; point ids are
// corpus positions.
type Index struct {
	conn        *grpc.ClientConn
	points      pointsAPI
	collections collectionsAPI
	collection  string
	apiKey      string
	meta        atomic.Pointer[meta]
}

type meta struct {
	dimension int
	count     int
}

// New dials Qdrant's gRPC endpoint.
func New(cfg Config) (*Index, error) {
	if cfg.Collection == "" {
		return nil, errors.New("qdrant collection name is required")
	}
	conn, err := grpc.NewClient(cfg.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("qdrant: dial %s: %w", cfg.Addr, err)
	}
	x := NewWithClients(pb.NewPointsClient(conn), pb.NewCollectionsClient(conn), cfg.Collection)
	x.conn = conn
	x.apiKey = cfg.APIKey
	return x, nil
}

// NewWithClients builds an index over already constructed gRPC clients.
func NewWithClients(points pointsAPI, collections collectionsAPI, collection string) *Index {
	return &Index{points: points, collections: collections, collection: collection}
}

// Close closes the underlying gRPC connection.
func (x *Index) Close() error {
	if x.conn == nil {
		return nil
	}
	return x.conn.Close()
}

// Build recreates the collection and upserts vectors in batches, point id i
// holding vectors[i].
func (x *Index) Build(ctx context.Context, vectors [][]float64) error {
	dim, err := vectorindex.CheckVectors(vectors)
	if err != nil {
		return err
	}
	ctx = x.withAuth(ctx)
	if err := x.dropCollection(ctx); err != nil {
		return err
	}
	if dim > 0 {
		if err := x.createCollection(ctx, dim); err != nil {
			return err
		}
	}
	wait := true
	for start := 0; start < len(vectors); start += upsertBatch {
		end := min(start+upsertBatch, len(vectors))
		points := make([]*pb.PointStruct, 0, end-start)
		for i := start; i < end; i++ {
			points = append(points, &pb.PointStruct{
				Id: &pb.PointId{PointIdOptions: &pb.PointId_Num{Num: uint64(i)}},
				Vectors: &pb.Vectors{
					VectorsOptions: &pb.Vectors_Vector{Vector: &pb.Vector{Data: toFloat32(vectors[i])}},
				},
			})
		}
		if _, err := x.points.Upsert(ctx, &pb.UpsertPoints{
			CollectionName: x.collection,
			Wait:           &wait,
			Points:         points,
		}); err != nil {
			return fmt.Errorf("qdrant: upsert points %d-%d: %w", start, end-1, err)
		}
	}
	x.meta.Store(&meta{dimension: dim, count: len(vectors)})
	return nil
}

// Search runs an exact search and re-sorts hits by (distance, position).
func (x *Index) Search(ctx context.Context, query []float64, k int) ([]domain.Neighbor, error) {
	m := x.meta.Load()
	if m == nil {
		return nil, domain.ErrIndexNotBuilt
	}
	k = vectorindex.ClampK(k, m.count)
	if k == 0 {
		return []domain.Neighbor{}, nil
	}
	if len(query) != m.dimension {
		return nil, fmt.Errorf("query dimension mismatch: got %d, want %d", len(query), m.dimension)
	}
	exact := true
	resp, err := x.points.Search(x.withAuth(ctx), &pb.SearchPoints{
		CollectionName: x.collection,
		Vector:         toFloat32(query),
		Limit:          uint64(k),
		Params:         &pb.SearchParams{Exact: &exact},
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: search: %w", err)
	}
	ns := make([]domain.Neighbor, 0, len(resp.GetResult()))
	for _, r := range resp.GetResult() {
		pos := int(r.GetId().GetNum())
		if pos < 0 || pos >= m.count {
			return nil, fmt.Errorf("qdrant: point id %d outside corpus of %d", pos, m.count)
		}
		// Euclid scores are plain distances; rank on the squared form.
		d := float64(r.GetScore())
		ns = append(ns, domain.Neighbor{Position: pos, Distance: d * d})
	}
	vectorindex.SortNeighbors(ns)
	return ns, nil
}

// Count returns the number of points written by the last Build.
func (x *Index) Count() int {
	if m := x.meta.Load(); m != nil {
		return m.count
	}
	return 0
}

// Dimension returns the collection vector size.
func (x *Index) Dimension() int {
	if m := x.meta.Load(); m != nil {
		return m.dimension
	}
	return 0
}

func (x *Index) dropCollection(ctx context.Context) error {
	list, err := x.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return fmt.Errorf("qdrant: list collections: %w", err)
	}
	for _, c := range list.GetCollections() {
		if c.GetName() != x.collection {
			continue
		}
		if _, err := x.collections.Delete(ctx, &pb.DeleteCollection{CollectionName: x.collection}); err != nil {
			return fmt.Errorf("qdrant: delete collection %s: %w", x.collection, err)
		}
	}
	return nil
}

func (x *Index) createCollection(ctx context.Context, dim int) error {
	_, err := x.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: x.collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(dim),
					Distance: pb.Distance_Euclid,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("qdrant: create collection %s: %w", x.collection, err)
	}
	return nil
}

func (x *Index) withAuth(ctx context.Context) context.Context {
	if x.apiKey == "" {
		return ctx
	}
	return metadata.AppendToOutgoingContext(ctx, "api-key", x.apiKey)
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, f := range v {
		out[i] = float32(f)
	}
	return out
}
