package databases

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/qdrant/go-client/qdrant"

	"github.com/Dhana009/haystack/pkg/config"
	"github.com/Dhana009/haystack/pkg/filter"
)

// PointRef is an opaque scroll cursor. Callers thread it between
// Scroll calls and never inspect it.
type PointRef struct {
	id *qdrant.PointId
}

// NewQdrantStore connects to a local default-port Qdrant.
func NewQdrantStore() (StoreAdapter, error) {
	cfg := &config.VectorStoreConfig{
		Type:   "qdrant",
		Host:   "localhost",
		Port:   6334,
		UseTLS: config.BoolPtr(false),
	}

	return NewQdrantStoreFromConfig(cfg)
}

// NewQdrantStoreFromConfig connects to the configured Qdrant instance.
func NewQdrantStoreFromConfig(cfg *config.VectorStoreConfig) (StoreAdapter, error) {
	useTLS := false
	if cfg.UseTLS != nil {
		useTLS = *cfg.UseTLS
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: useTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Qdrant client: %w", err)
	}

	return &qdrantStore{
		client: client,
		config: cfg,
	}, nil
}

type qdrantStore struct {
	client *qdrant.Client
	config *config.VectorStoreConfig
}

func (db *qdrantStore) Scroll(ctx context.Context, collection string, f filter.Node, limit uint32, offset *PointRef, withPayload, withVectors bool) (*ScrollPage, error) {
	if limit == 0 || limit > DefaultScrollLimit {
		limit = DefaultScrollLimit
	}

	qf, err := TranslateFilter(f)
	if err != nil {
		return nil, err
	}

	request := &qdrant.ScrollPoints{
		CollectionName: collection,
		Filter:         qf,
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(withPayload),
		WithVectors:    qdrant.NewWithVectors(withVectors),
	}
	if offset != nil {
		request.Offset = offset.id
	}

	response, err := db.client.GetPointsClient().Scroll(ctx, request)
	if err != nil {
		return nil, wrapErr("scroll", fmt.Errorf("failed to scroll points: %w", err))
	}

	page := &ScrollPage{Points: convertRetrievedPoints(response.Result)}
	if next := response.NextPageOffset; next != nil && next.PointIdOptions != nil {
		page.NextOffset = &PointRef{id: next}
	}
	return page, nil
}

func (db *qdrantStore) Upsert(ctx context.Context, collection string, points []Point) error {
	if len(points) == 0 {
		return nil
	}

	structs := make([]*qdrant.PointStruct, 0, len(points))
	for _, p := range points {
		payload := make(map[string]*qdrant.Value, len(p.Payload))
		for key, value := range p.Payload {
			val, err := qdrant.NewValue(value)
			if err != nil {
				return fmt.Errorf("failed to convert payload value for key %s: %w", key, err)
			}
			payload[key] = val
		}

		structs = append(structs, &qdrant.PointStruct{
			Id:      pointIDFromString(p.ID),
			Vectors: qdrant.NewVectors(p.Vector...),
			Payload: payload,
		})
	}

	_, err := db.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Points:         structs,
	})
	if err != nil {
		return wrapErr("upsert", fmt.Errorf("failed to upsert points: %w", err))
	}

	return nil
}

func (db *qdrantStore) Delete(ctx context.Context, collection string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	pointIDs := make([]*qdrant.PointId, 0, len(ids))
	for _, id := range ids {
		pointIDs = append(pointIDs, pointIDFromString(id))
	}

	_, err := db.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: collection,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Points{
				Points: &qdrant.PointsIdsList{Ids: pointIDs},
			},
		},
	})
	if err != nil {
		return wrapErr("delete", fmt.Errorf("failed to delete points from collection %s: %w", collection, err))
	}
	return nil
}

func (db *qdrantStore) SetPayload(ctx context.Context, collection string, ids []string, payload map[string]any) error {
	if len(ids) == 0 {
		return nil
	}

	converted := make(map[string]*qdrant.Value, len(payload))
	for key, value := range payload {
		val, err := qdrant.NewValue(value)
		if err != nil {
			return fmt.Errorf("failed to convert payload value for key %s: %w", key, err)
		}
		converted[key] = val
	}

	pointIDs := make([]*qdrant.PointId, 0, len(ids))
	for _, id := range ids {
		pointIDs = append(pointIDs, pointIDFromString(id))
	}

	_, err := db.client.GetPointsClient().SetPayload(ctx, &qdrant.SetPayloadPoints{
		CollectionName: collection,
		Payload:        converted,
		PointsSelector: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Points{
				Points: &qdrant.PointsIdsList{Ids: pointIDs},
			},
		},
	})
	if err != nil {
		return wrapErr("set_payload", fmt.Errorf("failed to set payload on collection %s: %w", collection, err))
	}
	return nil
}

func (db *qdrantStore) Retrieve(ctx context.Context, collection string, ids []string, withPayload, withVectors bool) ([]Point, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	pointIDs := make([]*qdrant.PointId, 0, len(ids))
	for _, id := range ids {
		pointIDs = append(pointIDs, pointIDFromString(id))
	}

	response, err := db.client.GetPointsClient().Get(ctx, &qdrant.GetPoints{
		CollectionName: collection,
		Ids:            pointIDs,
		WithPayload:    qdrant.NewWithPayload(withPayload),
		WithVectors:    qdrant.NewWithVectors(withVectors),
	})
	if err != nil {
		return nil, wrapErr("retrieve", fmt.Errorf("failed to retrieve points: %w", err))
	}

	return convertRetrievedPoints(response.Result), nil
}

func (db *qdrantStore) Search(ctx context.Context, collection string, vector []float32, f filter.Node, topK int) ([]ScoredPoint, error) {
	qf, err := TranslateFilter(f)
	if err != nil {
		return nil, err
	}

	request := &qdrant.SearchPoints{
		CollectionName: collection,
		Vector:         vector,
		Limit:          uint64(topK),
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(false),
		Filter:         qf,
	}

	response, err := db.client.GetPointsClient().Search(ctx, request)
	if err != nil {
		return nil, wrapErr("search", fmt.Errorf("failed to search points: %w", err))
	}

	return convertScoredPoints(response.Result), nil
}

func (db *qdrantStore) Count(ctx context.Context, collection string, f filter.Node) (uint64, error) {
	qf, err := TranslateFilter(f)
	if err != nil {
		return 0, err
	}

	exact := true
	response, err := db.client.GetPointsClient().Count(ctx, &qdrant.CountPoints{
		CollectionName: collection,
		Filter:         qf,
		Exact:          &exact,
	})
	if err != nil {
		return 0, wrapErr("count", fmt.Errorf("failed to count points: %w", err))
	}

	return response.GetResult().GetCount(), nil
}

func (db *qdrantStore) CollectionInfo(ctx context.Context, collection string) (*CollectionInfo, error) {
	info, err := db.client.GetCollectionInfo(ctx, collection)
	if err != nil {
		return nil, wrapErr("collection_info", fmt.Errorf("failed to get collection info: %w", err))
	}

	out := &CollectionInfo{
		Status: info.GetStatus().String(),
	}
	if info.PointsCount != nil {
		out.PointsCount = *info.PointsCount
	}
	if params := info.GetConfig().GetParams().GetVectorsConfig().GetParams(); params != nil {
		out.VectorSize = params.Size
	}
	for field := range info.GetPayloadSchema() {
		out.IndexedFields = append(out.IndexedFields, field)
	}
	sort.Strings(out.IndexedFields)

	return out, nil
}

func (db *qdrantStore) EnsureCollection(ctx context.Context, collection string, vectorSize uint64) error {
	exists, err := db.client.CollectionExists(ctx, collection)
	if err != nil {
		return wrapErr("ensure_collection", fmt.Errorf("failed to check if collection exists: %w", err))
	}

	if exists {
		return nil
	}

	err = db.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     vectorSize,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		// Concurrent startup may have created it in between.
		if strings.Contains(err.Error(), "already exists") {
			return nil
		}
		return wrapErr("ensure_collection", fmt.Errorf("failed to create collection: %w", err))
	}

	return nil
}

func (db *qdrantStore) EnsureKeywordIndex(ctx context.Context, collection string, field string) error {
	fieldType := qdrant.FieldType_FieldTypeKeyword
	_, err := db.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
		CollectionName: collection,
		FieldName:      field,
		FieldType:      &fieldType,
	})
	if err != nil {
		if strings.Contains(err.Error(), "already exists") {
			return nil
		}
		return wrapErr("ensure_index", fmt.Errorf("failed to create payload index on %s: %w", field, err))
	}
	return nil
}

func (db *qdrantStore) Close() error {
	return db.client.Close()
}

// pointIDFromString maps an ID back onto the wire representation:
// decimal strings become numeric IDs, everything else is a UUID.
func pointIDFromString(id string) *qdrant.PointId {
	if num, err := strconv.ParseUint(id, 10, 64); err == nil && id != "" {
		return qdrant.NewIDNum(num)
	}
	return qdrant.NewID(id)
}

func pointIDString(id *qdrant.PointId) string {
	if id == nil || id.PointIdOptions == nil {
		return ""
	}
	switch idType := id.PointIdOptions.(type) {
	case *qdrant.PointId_Uuid:
		return idType.Uuid
	case *qdrant.PointId_Num:
		return fmt.Sprintf("%d", idType.Num)
	}
	return ""
}

func vectorFromOutput(vectors *qdrant.VectorsOutput) []float32 {
	if vectors == nil {
		return nil
	}
	vectorData := vectors.GetVector()
	if vectorData == nil {
		return nil
	}
	switch v := vectorData.Vector.(type) {
	case *qdrant.VectorOutput_Dense:
		if v.Dense != nil {
			return v.Dense.Data
		}
	}
	// Older servers inline the dense data.
	if len(vectorData.Data) > 0 {
		return vectorData.Data
	}
	return nil
}

// valueToAny unwraps a payload value, recursing into nested structs
// and lists. The meta object round-trips through here.
func valueToAny(value *qdrant.Value) any {
	if value == nil {
		return nil
	}
	switch v := value.Kind.(type) {
	case *qdrant.Value_NullValue:
		return nil
	case *qdrant.Value_StringValue:
		return v.StringValue
	case *qdrant.Value_IntegerValue:
		return v.IntegerValue
	case *qdrant.Value_DoubleValue:
		return v.DoubleValue
	case *qdrant.Value_BoolValue:
		return v.BoolValue
	case *qdrant.Value_StructValue:
		if v.StructValue == nil {
			return nil
		}
		return payloadFromQdrant(v.StructValue.Fields)
	case *qdrant.Value_ListValue:
		if v.ListValue == nil {
			return nil
		}
		list := make([]any, len(v.ListValue.Values))
		for i, item := range v.ListValue.Values {
			list[i] = valueToAny(item)
		}
		return list
	default:
		return value
	}
}

func payloadFromQdrant(payload map[string]*qdrant.Value) map[string]any {
	out := make(map[string]any, len(payload))
	for key, value := range payload {
		out[key] = valueToAny(value)
	}
	return out
}

func convertRetrievedPoints(points []*qdrant.RetrievedPoint) []Point {
	var results []Point
	for _, point := range points {
		results = append(results, Point{
			ID:      pointIDString(point.Id),
			Vector:  vectorFromOutput(point.Vectors),
			Payload: payloadFromQdrant(point.Payload),
		})
	}
	return results
}

func convertScoredPoints(points []*qdrant.ScoredPoint) []ScoredPoint {
	var results []ScoredPoint
	for _, point := range points {
		results = append(results, ScoredPoint{
			Point: Point{
				ID:      pointIDString(point.Id),
				Vector:  vectorFromOutput(point.Vectors),
				Payload: payloadFromQdrant(point.Payload),
			},
			Score: point.Score,
		})
	}
	return results
}
