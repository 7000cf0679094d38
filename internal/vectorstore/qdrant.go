package vectorstore

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/nidhogg/makers-assistant/internal/catalog"
	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// QdrantConfig holds connection settings for a Qdrant instance.
type QdrantConfig struct {
	Host       string        `json:"host"`
	Port       int           `json:"port"`
	Collection string        `json:"collection"`
	Timeout    time.Duration `json:"timeout"`
}

// productNamespace seeds the UUIDv5 point ids derived from product ids;
// Qdrant only accepts UUIDs or unsigned integers as ids.
var productNamespace = uuid.MustParse("8f1c7a4e-5b0d-4c61-9a57-6f3e2d1b0c9a")

// QdrantStore is a Store over Qdrant's gRPC collections and points services.
type QdrantStore struct {
	conn        *grpc.ClientConn
	collections pb.CollectionsClient
	points      pb.PointsClient
	collection  string
	dimension   int
	timeout     time.Duration
}

// NewQdrantStore dials Qdrant and ensures the collection exists.
func NewQdrantStore(ctx context.Context, cfg QdrantConfig, dimension int) (*QdrantStore, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("qdrant connect %s: %w", addr, err)
	}
	s := &QdrantStore{
		conn:        conn,
		collections: pb.NewCollectionsClient(conn),
		points:      pb.NewPointsClient(conn),
		collection:  cfg.Collection,
		dimension:   dimension,
		timeout:     cfg.Timeout,
	}
	if s.collection == "" {
		s.collection = "products"
	}
	if s.timeout <= 0 {
		s.timeout = 10 * time.Second
	}
	if err := s.ensureCollection(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	return s, nil
}

func (s *QdrantStore) ensureCollection(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	_, err := s.collections.Get(ctx, &pb.GetCollectionInfoRequest{CollectionName: s.collection})
	if err == nil {
		return nil
	}
	_, err = s.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(s.dimension),
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("create collection %s: %w", s.collection, err)
	}
	return nil
}

// PointID maps a product id to its Qdrant point id.
func PointID(productID string) string {
	return uuid.NewSHA1(productNamespace, []byte(productID)).String()
}

// Upsert writes all entries in one request.
func (s *QdrantStore) Upsert(ctx context.Context, entries []Entry) error {
	points := make([]*pb.PointStruct, 0, len(entries))
	for _, e := range entries {
		if err := checkDimension(e.Vector, s.dimension); err != nil {
			return fmt.Errorf("product %s: %w", e.ID(), err)
		}
		points = append(points, &pb.PointStruct{
			Id:      &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: PointID(e.ID())}},
			Vectors: &pb.Vectors{VectorsOptions: &pb.Vectors_Vector{Vector: &pb.Vector{Data: e.Vector}}},
			Payload: toPayload(e.Product),
		})
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	wait := true
	_, err := s.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: s.collection,
		Wait:           &wait,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("upsert %s: %w", s.collection, err)
	}
	return nil
}

// Search performs a nearest-neighbor search and returns the top-K results.
func (s *QdrantStore) Search(ctx context.Context, vector []float32, topK int) ([]Match, error) {
	if err := checkDimension(vector, s.dimension); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	resp, err := s.points.Search(ctx, &pb.SearchPoints{
		CollectionName: s.collection,
		Vector:         vector,
		Limit:          uint64(topK),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	})
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", s.collection, err)
	}
	matches := make([]Match, 0, len(resp.Result))
	for _, r := range resp.Result {
		matches = append(matches, Match{Product: fromPayload(r.Payload), Score: r.Score})
	}
	return matches, nil
}

// Close tears down the underlying gRPC connection.
func (s *QdrantStore) Close() error {
	return s.conn.Close()
}

func toPayload(p catalog.Product) map[string]*pb.Value {
	str := func(v string) *pb.Value { return &pb.Value{Kind: &pb.Value_StringValue{StringValue: v}} }
	return map[string]*pb.Value{
		"product_id":  str(p.ID),
		"name":        str(p.Name),
		"brand":       str(p.Brand),
		"category":    str(p.Category),
		"description": str(p.Description),
		"price":       {Kind: &pb.Value_DoubleValue{DoubleValue: p.Price}},
		"stock":       {Kind: &pb.Value_IntegerValue{IntegerValue: int64(p.Stock)}},
	}
}

func fromPayload(payload map[string]*pb.Value) catalog.Product {
	str := func(k string) string {
		if v, ok := payload[k]; ok {
			if sv, ok := v.Kind.(*pb.Value_StringValue); ok {
				return sv.StringValue
			}
		}
		return ""
	}
	num := func(k string) float64 {
		v, ok := payload[k]
		if !ok {
			return 0
		}
		switch kv := v.Kind.(type) {
		case *pb.Value_DoubleValue:
			return kv.DoubleValue
		case *pb.Value_IntegerValue:
			return float64(kv.IntegerValue)
		case *pb.Value_StringValue:
			f, _ := strconv.ParseFloat(kv.StringValue, 64)
			return f
		}
		return 0
	}
	return catalog.Product{
		ID:          str("product_id"),
		Name:        str("name"),
		Brand:       str("brand"),
		Category:    str("category"),
		Description: str("description"),
		Price:       num("price"),
		Stock:       int(num("stock")),
	}
}
