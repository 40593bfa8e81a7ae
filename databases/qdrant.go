package databases

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
)

// QdrantConfig configures the qdrant connection.
type QdrantConfig struct {
	Host   string `yaml:"host"`
	Port   int    `yaml:"port"`
	APIKey string `yaml:"api_key"`
	UseTLS bool   `yaml:"use_tls"`
}

// SetDefaults fills missing connection settings.
func (c *QdrantConfig) SetDefaults() {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 6334
	}
}

// QdrantStore implements VectorStore over the qdrant gRPC client.
type QdrantStore struct {
	client *qdrant.Client
	config QdrantConfig
}

var _ VectorStore = (*QdrantStore)(nil)

// NewQdrantStore connects to qdrant with the given config.
func NewQdrantStore(cfg QdrantConfig) (*QdrantStore, error) {
	cfg.SetDefaults()
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Qdrant client: %w", err)
	}
	return &QdrantStore{client: client, config: cfg}, nil
}

// pointIDNamespace makes point ids deterministic: qdrant point ids must be
// UUIDs, chunk ids are arbitrary strings.
var pointIDNamespace = uuid.MustParse("7b7de4d1-92c7-4a14-9f0b-8a5a2f3dd913")

// PointID derives the stable UUID point id for an external id.
func PointID(id string) string {
	if _, err := uuid.Parse(id); err == nil {
		return id
	}
	return uuid.NewSHA1(pointIDNamespace, []byte(id)).String()
}

// CreateCollection creates a cosine collection if it doesn't exist.
func (s *QdrantStore) CreateCollection(ctx context.Context, name string, dim uint64) error {
	exists, err := s.client.CollectionExists(ctx, name)
	if err != nil {
		return classify(fmt.Errorf("failed to check if collection exists: %w", err))
	}
	if exists {
		return nil
	}
	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     dim,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		if strings.Contains(err.Error(), "already exists") {
			return nil
		}
		return classify(fmt.Errorf("failed to create collection: %w", err))
	}
	return nil
}

// Upsert writes the points in one call. Callers batch at a higher level.
func (s *QdrantStore) Upsert(ctx context.Context, collection string, points []Point) error {
	qpoints := make([]*qdrant.PointStruct, 0, len(points))
	for _, p := range points {
		payload := make(map[string]*qdrant.Value, len(p.Payload))
		for key, value := range p.Payload {
			val, err := qdrant.NewValue(value)
			if err != nil {
				return &FatalError{Err: fmt.Errorf("failed to convert payload value for key %s: %w", key, err)}
			}
			payload[key] = val
		}
		qpoints = append(qpoints, &qdrant.PointStruct{
			Id:      qdrant.NewID(PointID(p.ID)),
			Vectors: qdrant.NewVectors(p.Vector...),
			Payload: payload,
		})
	}
	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Points:         qpoints,
	})
	if err != nil {
		return classify(fmt.Errorf("failed to upsert points: %w", err))
	}
	return nil
}

// Search runs cosine k-NN with an optional score floor and payload filter.
func (s *QdrantStore) Search(ctx context.Context, collection string, vector []float32, limit int, minScore float32, filter *Filter) ([]SearchResult, error) {
	req := &qdrant.SearchPoints{
		CollectionName: collection,
		Vector:         vector,
		Limit:          uint64(limit),
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if minScore > 0 {
		req.ScoreThreshold = &minScore
	}
	if filter != nil {
		req.Filter = toQdrantFilter(filter)
	}

	res, err := s.client.GetPointsClient().Search(ctx, req)
	if err != nil {
		return nil, classify(fmt.Errorf("failed to search points: %w", err))
	}

	results := make([]SearchResult, 0, len(res.Result))
	for _, point := range res.Result {
		var id string
		if point.Id != nil {
			switch idType := point.Id.PointIdOptions.(type) {
			case *qdrant.PointId_Uuid:
				id = idType.Uuid
			case *qdrant.PointId_Num:
				id = fmt.Sprintf("%d", idType.Num)
			}
		}
		results = append(results, SearchResult{
			ID:      id,
			Score:   point.Score,
			Payload: decodePayload(point.Payload),
		})
	}
	return results, nil
}

// Count returns the exact number of points in a collection.
func (s *QdrantStore) Count(ctx context.Context, collection string) (uint64, error) {
	exact := true
	n, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: collection,
		Exact:          &exact,
	})
	if err != nil {
		return 0, classify(fmt.Errorf("failed to count points: %w", err))
	}
	return n, nil
}

// DeleteByFilter removes every point matching the filter.
func (s *QdrantStore) DeleteByFilter(ctx context.Context, collection string, filter *Filter) error {
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: collection,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Filter{
				Filter: toQdrantFilter(filter),
			},
		},
	})
	if err != nil {
		return classify(fmt.Errorf("failed to delete points: %w", err))
	}
	return nil
}

// Close closes the underlying client.
func (s *QdrantStore) Close() error {
	return s.client.Close()
}

func toQdrantFilter(f *Filter) *qdrant.Filter {
	if f == nil {
		return nil
	}
	out := &qdrant.Filter{}
	for _, c := range f.Must {
		out.Must = append(out.Must, toCondition(c))
	}
	for _, c := range f.Should {
		out.Should = append(out.Should, toCondition(c))
	}
	for _, c := range f.MustNot {
		out.MustNot = append(out.MustNot, toCondition(c))
	}
	return out
}

func toCondition(c Condition) *qdrant.Condition {
	switch v := c.Value.(type) {
	case string:
		return qdrant.NewMatch(c.Key, v)
	case bool:
		return qdrant.NewMatchBool(c.Key, v)
	case int:
		return qdrant.NewMatchInt(c.Key, int64(v))
	case int64:
		return qdrant.NewMatchInt(c.Key, v)
	default:
		return qdrant.NewMatch(c.Key, fmt.Sprintf("%v", v))
	}
}

func decodePayload(payload map[string]*qdrant.Value) map[string]any {
	metadata := make(map[string]any, len(payload))
	for key, value := range payload {
		metadata[key] = decodeValue(value)
	}
	return metadata
}

func decodeValue(value *qdrant.Value) any {
	switch v := value.Kind.(type) {
	case *qdrant.Value_StringValue:
		return v.StringValue
	case *qdrant.Value_IntegerValue:
		return v.IntegerValue
	case *qdrant.Value_DoubleValue:
		return v.DoubleValue
	case *qdrant.Value_BoolValue:
		return v.BoolValue
	case *qdrant.Value_ListValue:
		if v.ListValue == nil {
			return nil
		}
		list := make([]any, len(v.ListValue.Values))
		for i, item := range v.ListValue.Values {
			list[i] = decodeValue(item)
		}
		return list
	case *qdrant.Value_StructValue:
		if v.StructValue == nil {
			return nil
		}
		m := make(map[string]any, len(v.StructValue.Fields))
		for k, item := range v.StructValue.Fields {
			m[k] = decodeValue(item)
		}
		return m
	default:
		return nil
	}
}
