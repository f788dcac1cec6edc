// Package qdrant implements the vectorstore Backend on Qdrant's gRPC API.
package qdrant

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	grpccodes "google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"driverag/internal/domain"
	"driverag/internal/vectorstore"
)

// Config contains connection details for a Qdrant server.
type Config struct {
	Host string
	// Port is the gRPC port, 6334 by default (not the 6333 REST port).
	Port   int
	APIKey string
	UseTLS bool
	// MaxMessageSize bounds gRPC messages in both directions.
	MaxMessageSize int
}

// Backend talks to Qdrant through the official Go client.
type Backend struct {
	client *qdrant.Client
}

// New connects to Qdrant.
func New(cfg Config) (*Backend, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}
	if cfg.MaxMessageSize == 0 {
		cfg.MaxMessageSize = 50 * 1024 * 1024
	}
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
		GrpcOptions: []grpc.DialOption{
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(cfg.MaxMessageSize),
				grpc.MaxCallSendMsgSize(cfg.MaxMessageSize),
			),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("connect to qdrant %s:%d: %w", cfg.Host, cfg.Port, err)
	}
	return &Backend{client: client}, nil
}

func (b *Backend) Close() error { return b.client.Close() }

func (b *Backend) CollectionExists(ctx context.Context, name string) (bool, error) {
	return b.client.CollectionExists(ctx, name)
}

func (b *Backend) CreateCollection(ctx context.Context, name string, dimension int, distance vectorstore.Distance) error {
	d, err := toDistance(distance)
	if err != nil {
		return err
	}
	return b.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dimension),
			Distance: d,
		}),
	})
}

// Upsert writes the batch and waits until Qdrant has applied it.
func (b *Backend) Upsert(ctx context.Context, collection string, records []domain.VectorRecord) (vectorstore.WriteStatus, error) {
	points := make([]*qdrant.PointStruct, len(records))
	for i, r := range records {
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(r.ID),
			Vectors: qdrant.NewVectors(r.Vector...),
			Payload: toPayload(r.Payload),
		}
	}
	res, err := b.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Wait:           qdrant.PtrOf(true),
		Points:         points,
	})
	if err != nil {
		return vectorstore.StatusUnknown, mapError(err, collection)
	}
	return toWriteStatus(res.GetStatus()), nil
}

func (b *Backend) Search(ctx context.Context, collection string, vector []float32, limit int, filter domain.Filter) ([]domain.SearchResult, error) {
	info, err := b.client.GetCollectionInfo(ctx, collection)
	if err != nil {
		return nil, mapError(err, collection)
	}
	points, err := b.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
		Filter:         toFilter(filter),
	})
	if err != nil {
		return nil, mapError(err, collection)
	}
	euclid := info.GetConfig().GetParams().GetVectorsConfig().GetParams().GetDistance() == qdrant.Distance_Euclid

	out := make([]domain.SearchResult, len(points))
	for i, p := range points {
		payload := fromPayload(p.GetPayload())
		text, _ := payload[domain.PayloadText].(string)
		score := p.GetScore()
		if euclid {
			// distances grow with dissimilarity; negate so higher is better
			score = -score
		}
		out[i] = domain.SearchResult{ID: pointID(p.GetId()), Score: score, Text: text, Payload: payload}
	}
	return out, nil
}

func (b *Backend) Delete(ctx context.Context, collection string, ids []string) error {
	pids := make([]*qdrant.PointId, 0, len(ids))
	for _, id := range ids {
		if _, err := uuid.Parse(id); err != nil {
			return fmt.Errorf("invalid point id %q: %w", id, err)
		}
		pids = append(pids, qdrant.NewIDUUID(id))
	}
	_, err := b.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: collection,
		Wait:           qdrant.PtrOf(true),
		Points:         qdrant.NewPointsSelector(pids...),
	})
	return mapError(err, collection)
}

func (b *Backend) DeleteCollection(ctx context.Context, name string) error {
	return mapError(b.client.DeleteCollection(ctx, name), name)
}

func toDistance(d vectorstore.Distance) (qdrant.Distance, error) {
	switch d {
	case vectorstore.Cosine:
		return qdrant.Distance_Cosine, nil
	case vectorstore.Dot:
		return qdrant.Distance_Dot, nil
	case vectorstore.Euclid:
		return qdrant.Distance_Euclid, nil
	default:
		return 0, fmt.Errorf("%w: %s", vectorstore.ErrUnsupportedDistance, d)
	}
}

func toWriteStatus(s qdrant.UpdateStatus) vectorstore.WriteStatus {
	switch s {
	case qdrant.UpdateStatus_Completed:
		return vectorstore.StatusCompleted
	case qdrant.UpdateStatus_Acknowledged:
		return vectorstore.StatusAcknowledged
	default:
		return vectorstore.StatusUnknown
	}
}

func mapError(err error, collection string) error {
	if err == nil {
		return nil
	}
	if st, ok := status.FromError(err); ok && st.Code() == grpccodes.NotFound {
		return fmt.Errorf("%w: %s", vectorstore.ErrCollectionNotFound, collection)
	}
	return err
}

func toPayload(payload map[string]any) map[string]*qdrant.Value {
	out := make(map[string]*qdrant.Value, len(payload))
	for k, v := range payload {
		switch val := v.(type) {
		case string:
			out[k] = &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: val}}
		case int:
			out[k] = &qdrant.Value{Kind: &qdrant.Value_IntegerValue{IntegerValue: int64(val)}}
		case int64:
			out[k] = &qdrant.Value{Kind: &qdrant.Value_IntegerValue{IntegerValue: val}}
		case float32:
			out[k] = &qdrant.Value{Kind: &qdrant.Value_DoubleValue{DoubleValue: float64(val)}}
		case float64:
			out[k] = &qdrant.Value{Kind: &qdrant.Value_DoubleValue{DoubleValue: val}}
		case bool:
			out[k] = &qdrant.Value{Kind: &qdrant.Value_BoolValue{BoolValue: val}}
		default:
			out[k] = &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: fmt.Sprint(val)}}
		}
	}
	return out
}

func fromPayload(payload map[string]*qdrant.Value) map[string]any {
	out := make(map[string]any, len(payload))
	for k, v := range payload {
		switch val := v.GetKind().(type) {
		case *qdrant.Value_StringValue:
			out[k] = val.StringValue
		case *qdrant.Value_IntegerValue:
			out[k] = val.IntegerValue
		case *qdrant.Value_DoubleValue:
			out[k] = val.DoubleValue
		case *qdrant.Value_BoolValue:
			out[k] = val.BoolValue
		}
	}
	return out
}

// toFilter builds a conjunction of equality predicates, ordered by key.
// Values that parse as integers also match integer payloads, so filters on
// chunk_index behave as they do for string fields.
func toFilter(filter domain.Filter) *qdrant.Filter {
	if len(filter) == 0 {
		return nil
	}
	keys := make([]string, 0, len(filter))
	for k := range filter {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	conditions := make([]*qdrant.Condition, 0, len(keys))
	for _, k := range keys {
		keyword := fieldMatch(k, &qdrant.Match{MatchValue: &qdrant.Match_Keyword{Keyword: filter[k]}})
		n, err := strconv.ParseInt(filter[k], 10, 64)
		if err != nil {
			conditions = append(conditions, keyword)
			continue
		}
		conditions = append(conditions, &qdrant.Condition{
			ConditionOneOf: &qdrant.Condition_Filter{
				Filter: &qdrant.Filter{Should: []*qdrant.Condition{
					keyword,
					fieldMatch(k, &qdrant.Match{MatchValue: &qdrant.Match_Integer{Integer: n}}),
				}},
			},
		})
	}
	return &qdrant.Filter{Must: conditions}
}

func fieldMatch(key string, match *qdrant.Match) *qdrant.Condition {
	return &qdrant.Condition{
		ConditionOneOf: &qdrant.Condition_Field{
			Field: &qdrant.FieldCondition{Key: key, Match: match},
		},
	}
}

func pointID(id *qdrant.PointId) string {
	if u := id.GetUuid(); u != "" {
		return u
	}
	return fmt.Sprint(id.GetNum())
}
