package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/qdrant/go-client/qdrant"

	"rag-pipeline/internal/contextutil"
)

// payloadText is the payload key holding the chunk text.
const payloadText = "text"

// ErrQdrantUnreachable is returned when Qdrant does not pass the startup health check.
var ErrQdrantUnreachable = errors.New("qdrant unreachable")

// QdrantStore implements VectorStore using Qdrant.
// Collections use Euclidean distance so scores are ascending distances.
type QdrantStore struct {
	client *qdrant.Client
}

// qdrantEndpoint is the gRPC endpoint derived from a Qdrant HTTP URL.
type qdrantEndpoint struct {
	host   string
	port   int
	useTLS bool
}

// parseQdrantURL derives the gRPC endpoint from a URL such as "http://localhost:6333".
// The gRPC port is the HTTP port + 1, or 6334 when no port is given.
func parseQdrantURL(urlStr string) (qdrantEndpoint, error) {
	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return qdrantEndpoint{}, fmt.Errorf("invalid Qdrant URL: %w", err)
	}

	ep := qdrantEndpoint{
		host:   parsedURL.Hostname(),
		port:   6334,
		useTLS: parsedURL.Scheme == "https",
	}
	if ep.host == "" {
		ep.host = "localhost"
	}
	if parsedURL.Port() != "" {
		httpPort, err := strconv.Atoi(parsedURL.Port())
		if err != nil {
			return qdrantEndpoint{}, fmt.Errorf("invalid Qdrant port %q: %w", parsedURL.Port(), err)
		}
		ep.port = httpPort + 1
	}
	return ep, nil
}

// NewQdrantStore connects to Qdrant and waits for it to become healthy.
// The health check is retried with exponential backoff for up to 30 seconds.
func NewQdrantStore(ctx context.Context, urlStr, apiKey string) (*QdrantStore, error) {
	ep, err := parseQdrantURL(urlStr)
	if err != nil {
		return nil, err
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   ep.host,
		Port:   ep.port,
		APIKey: apiKey,
		UseTLS: ep.useTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Qdrant client: %w", err)
	}

	store := &QdrantStore{client: client}
	if err := store.healthCheckWithRetry(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: %v", ErrQdrantUnreachable, err)
	}

	return store, nil
}

// healthCheckWithRetry performs the health check with exponential backoff.
// Initial interval 500ms, max interval 10s, max elapsed 30s.
func (s *QdrantStore) healthCheckWithRetry(ctx context.Context) error {
	logger := contextutil.LoggerFromContext(ctx)

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second

	return backoff.RetryNotify(
		func() error { return s.Health(ctx) },
		backoff.WithContext(b, ctx),
		func(err error, wait time.Duration) {
			logger.WarnContext(ctx, "qdrant not ready, retrying", "wait", wait, "error", err)
		},
	)
}

// Health performs a single health check against Qdrant.
func (s *QdrantStore) Health(ctx context.Context) error {
	result, err := s.client.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	if result == nil || result.Title == "" {
		return fmt.Errorf("health check returned invalid response")
	}
	return nil
}

// Close closes the gRPC connection.
func (s *QdrantStore) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}

// Upsert inserts or updates points in the collection.
func (s *QdrantStore) Upsert(ctx context.Context, collection string, points []Point) error {
	logger := contextutil.LoggerFromContext(ctx)

	if len(points) == 0 {
		return nil
	}

	qdrantPoints, err := toQdrantPoints(points)
	if err != nil {
		return err
	}

	wait := true
	_, err = s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Wait:           &wait,
		Points:         qdrantPoints,
	})
	if err != nil {
		logger.ErrorContext(ctx, "failed to upsert points", "collection", collection, "count", len(points), "error", err)
		return fmt.Errorf("failed to upsert points: %w", err)
	}

	logger.InfoContext(ctx, "upserted points", "collection", collection, "count", len(points))
	return nil
}

func toQdrantPoints(points []Point) ([]*qdrant.PointStruct, error) {
	qdrantPoints := make([]*qdrant.PointStruct, 0, len(points))
	for _, point := range points {
		meta, err := normalizeMeta(point.Meta)
		if err != nil {
			return nil, fmt.Errorf("point %s: %w", point.ID, err)
		}
		if _, ok := meta[payloadText]; ok {
			return nil, fmt.Errorf("point %s: metadata key %q is reserved", point.ID, payloadText)
		}
		meta[payloadText] = point.Text

		qdrantPoints = append(qdrantPoints, &qdrant.PointStruct{
			Id:      qdrant.NewID(point.ID),
			Vectors: qdrant.NewVectors(point.Vec...),
			Payload: qdrant.NewValueMap(meta),
		})
	}
	return qdrantPoints, nil
}

// Search performs a nearest-neighbour search with optional filters.
func (s *QdrantStore) Search(ctx context.Context, collection string, query []float32, k int, filters map[string]any) ([]SearchResult, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if k <= 0 {
		return nil, fmt.Errorf("k must be greater than 0")
	}
	if err := ValidateFilters(filters); err != nil {
		return nil, err
	}

	qdrantFilter, err := buildQdrantFilter(filters)
	if err != nil {
		return nil, err
	}

	limit := uint64(k)
	queryReq := &qdrant.QueryPoints{
		CollectionName: collection,
		Query:          qdrant.NewQuery(query...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if qdrantFilter != nil {
		queryReq.Filter = qdrantFilter
	}

	scoredPoints, err := s.client.Query(ctx, queryReq)
	if err != nil {
		logger.ErrorContext(ctx, "failed to search points", "collection", collection, "k", k, "error", err)
		return nil, fmt.Errorf("failed to search points: %w", err)
	}

	results := make([]SearchResult, 0, len(scoredPoints))
	for _, point := range scoredPoints {
		results = append(results, fromScoredPoint(point))
	}

	logger.InfoContext(ctx, "search completed", "collection", collection, "k", k, "results", len(results))
	return results, nil
}

func fromScoredPoint(point *qdrant.ScoredPoint) SearchResult {
	result := SearchResult{
		Score: point.Score,
		Meta:  convertPayloadToMap(point.Payload),
	}
	if point.Id != nil {
		result.ID = point.Id.GetUuid()
	}
	if text, ok := result.Meta[payloadText].(string); ok {
		result.Text = text
	}
	delete(result.Meta, payloadText)
	return result
}

// buildQdrantFilter translates metadata filters into must conditions.
// Lists become "any of" matches; Qdrant matches array payloads when any element matches.
func buildQdrantFilter(filters map[string]any) (*qdrant.Filter, error) {
	if len(filters) == 0 {
		return nil, nil
	}

	must := make([]*qdrant.Condition, 0, len(filters))
	for key, value := range filters {
		cond, err := qdrantCondition(key, value)
		if err != nil {
			return nil, err
		}
		must = append(must, cond)
	}
	return &qdrant.Filter{Must: must}, nil
}

func qdrantCondition(key string, value any) (*qdrant.Condition, error) {
	if list, ok := toList(value); ok {
		return qdrantListCondition(key, list)
	}

	switch v := value.(type) {
	case string:
		return qdrant.NewMatch(key, v), nil
	case bool:
		return qdrant.NewMatchBool(key, v), nil
	}

	if n, ok := toInt64(value); ok {
		return qdrant.NewMatchInt(key, n), nil
	}
	if f, ok := toFloat(value); ok && !math.IsNaN(f) {
		return qdrant.NewRange(key, &qdrant.Range{Gte: &f, Lte: &f}), nil
	}
	return nil, fmt.Errorf("unsupported filter type %T for key %q", value, key)
}

func qdrantListCondition(key string, list []any) (*qdrant.Condition, error) {
	if len(list) == 0 {
		return nil, fmt.Errorf("empty filter list for key %q", key)
	}

	if _, isString := list[0].(string); isString {
		keywords := make([]string, 0, len(list))
		for _, item := range list {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("mixed filter list for key %q", key)
			}
			keywords = append(keywords, s)
		}
		return qdrant.NewMatchKeywords(key, keywords...), nil
	}

	ints := make([]int64, 0, len(list))
	for _, item := range list {
		n, ok := toInt64(item)
		if !ok {
			return nil, fmt.Errorf("unsupported filter list element %T for key %q", item, key)
		}
		ints = append(ints, n)
	}
	return qdrant.NewMatchInts(key, ints...), nil
}

// Delete removes points by their IDs.
func (s *QdrantStore) Delete(ctx context.Context, collection string, ids []string) error {
	logger := contextutil.LoggerFromContext(ctx)

	if len(ids) == 0 {
		return nil
	}

	qdrantIDs := make([]*qdrant.PointId, 0, len(ids))
	for _, id := range ids {
		qdrantIDs = append(qdrantIDs, qdrant.NewID(id))
	}

	wait := true
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: collection,
		Wait:           &wait,
		Points:         qdrant.NewPointsSelector(qdrantIDs...),
	})
	if err != nil {
		logger.ErrorContext(ctx, "failed to delete points", "collection", collection, "count", len(ids), "error", err)
		return fmt.Errorf("failed to delete points: %w", err)
	}

	logger.InfoContext(ctx, "deleted points", "collection", collection, "count", len(ids))
	return nil
}

// CollectionExists checks if a collection exists.
func (s *QdrantStore) CollectionExists(ctx context.Context, collection string) (bool, error) {
	exists, err := s.client.CollectionExists(ctx, collection)
	if err != nil {
		return false, fmt.Errorf("failed to check collection existence: %w", err)
	}
	return exists, nil
}

// EnsureCollection ensures a collection exists with the specified vector size.
// If the collection exists, validates that the vector size matches.
// If it doesn't exist, creates it with the specified vector size.
func (s *QdrantStore) EnsureCollection(ctx context.Context, collection string, vectorSize int) error {
	logger := contextutil.LoggerFromContext(ctx)

	exists, err := s.CollectionExists(ctx, collection)
	if err != nil {
		return err
	}

	if !exists {
		logger.InfoContext(ctx, "creating collection", "collection", collection, "vector_size", vectorSize)
		err := s.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(vectorSize),
				Distance: qdrant.Distance_Euclid,
			}),
		})
		if err != nil {
			return fmt.Errorf("failed to create collection: %w", err)
		}
		return nil
	}

	info, err := s.client.GetCollectionInfo(ctx, collection)
	if err != nil {
		return fmt.Errorf("failed to get collection info: %w", err)
	}

	params := info.GetConfig().GetParams().GetVectorsConfig().GetParams()
	if params == nil || params.Size == 0 {
		return fmt.Errorf("could not determine collection vector size")
	}
	if int(params.Size) != vectorSize {
		return fmt.Errorf("%w: collection %s has size %d, expected %d", ErrDimensionMismatch, collection, params.Size, vectorSize)
	}
	if params.Distance != qdrant.Distance_Euclid {
		logger.WarnContext(ctx, "collection does not use euclidean distance, scores will not be distances",
			"collection", collection, "distance", params.Distance.String())
	}

	logger.InfoContext(ctx, "collection validated", "collection", collection, "vector_size", vectorSize)
	return nil
}

// convertPayloadToMap converts Qdrant payload to map[string]any.
func convertPayloadToMap(payload map[string]*qdrant.Value) map[string]any {
	result := make(map[string]any, len(payload))
	for k, v := range payload {
		if v == nil {
			continue
		}
		result[k] = convertValue(v)
	}
	return result
}

// convertValue converts a Qdrant Value to Go any type.
func convertValue(v *qdrant.Value) any {
	switch val := v.Kind.(type) {
	case *qdrant.Value_BoolValue:
		return val.BoolValue
	case *qdrant.Value_IntegerValue:
		return val.IntegerValue
	case *qdrant.Value_DoubleValue:
		return val.DoubleValue
	case *qdrant.Value_StringValue:
		return val.StringValue
	case *qdrant.Value_ListValue:
		list := make([]any, len(val.ListValue.Values))
		for i, item := range val.ListValue.Values {
			list[i] = convertValue(item)
		}
		return list
	case *qdrant.Value_StructValue:
		return convertPayloadToMap(val.StructValue.Fields)
	default:
		return nil
	}
}
