// Package qdrant provides a centroid index backed by a Qdrant collection.
package qdrant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/papercomputeco/cortex/pkg/vector"
)

const (
	// DefaultCollection holds cortex centroids.
	DefaultCollection = "cortex_centroids"

	defaultPort = 6334
)

// pointNamespace derives stable point UUIDs from centroid IDs.
var pointNamespace = uuid.MustParse("6f1c2f0e-8a43-4b59-9d0b-2f3c8e6a7d15")

// Config holds configuration for the Qdrant index.
type Config struct {
	// Target is host or host:port of the Qdrant gRPC endpoint.
	Target     string
	APIKey     string
	Collection string
}

// QdrantIndex implements vector.CentroidIndex on Qdrant.
type QdrantIndex struct {
	client     *qdrant.Client
	collection string
	logger     *slog.Logger
}

// NewQdrantIndex connects to Qdrant and creates the collection when missing.
func NewQdrantIndex(ctx context.Context, c Config, logger *slog.Logger) (*QdrantIndex, error) {
	host, port, err := splitTarget(c.Target)
	if err != nil {
		return nil, err
	}
	if c.Collection == "" {
		c.Collection = DefaultCollection
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: c.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", vector.ErrConnection, err)
	}

	exists, err := client.CollectionExists(ctx, c.Collection)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: checking collection: %w", vector.ErrConnection, err)
	}

	if !exists {
		err = client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: c.Collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     3,
				Distance: qdrant.Distance_Euclid,
			}),
		})
		if err != nil {
			client.Close()
			return nil, fmt.Errorf("creating collection %s: %w", c.Collection, err)
		}
		logger.Info("created qdrant collection", "collection", c.Collection)
	}

	return &QdrantIndex{
		client:     client,
		collection: c.Collection,
		logger:     logger,
	}, nil
}

func splitTarget(target string) (string, int, error) {
	if target == "" {
		return "", 0, errors.New("qdrant target is required")
	}

	host, portStr, err := net.SplitHostPort(target)
	if err != nil {
		// No port given.
		return target, defaultPort, nil //nolint:nilerr
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, fmt.Errorf("invalid qdrant port %q: %w", portStr, err)
	}
	return host, port, nil
}

// pointID maps a centroid ID to a Qdrant point id.
func pointID(centroidID string) *qdrant.PointId {
	return qdrant.NewID(uuid.NewSHA1(pointNamespace, []byte(centroidID)).String())
}

func toPoint(c vector.Centroid) *qdrant.PointStruct {
	return &qdrant.PointStruct{
		Id:      pointID(c.ID),
		Vectors: qdrant.NewVectors(float32(c.Point.X), float32(c.Point.Y), float32(c.Point.Z)),
		Payload: qdrant.NewValueMap(map[string]any{
			"centroid_id":    c.ID,
			"scan_file":      c.ScanFile,
			"region_name":    c.RegionName,
			"scan_region_id": c.ScanRegionID,
			"x":              c.Point.X,
			"y":              c.Point.Y,
			"z":              c.Point.Z,
		}),
	}
}

func fromPayload(payload map[string]*qdrant.Value) vector.Centroid {
	return vector.Centroid{
		ID:           payload["centroid_id"].GetStringValue(),
		ScanFile:     payload["scan_file"].GetStringValue(),
		RegionName:   payload["region_name"].GetStringValue(),
		ScanRegionID: payload["scan_region_id"].GetIntegerValue(),
		Point: r3.Vec{
			X: payload["x"].GetDoubleValue(),
			Y: payload["y"].GetDoubleValue(),
			Z: payload["z"].GetDoubleValue(),
		},
	}
}

// Upsert stores centroids, replacing points with the same ID.
func (q *QdrantIndex) Upsert(ctx context.Context, centroids []vector.Centroid) error {
	if len(centroids) == 0 {
		return nil
	}

	points := make([]*qdrant.PointStruct, 0, len(centroids))
	for _, c := range centroids {
		points = append(points, toPoint(c))
	}

	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.collection,
		Wait:           qdrant.PtrOf(true),
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("upserting centroids: %w", err)
	}

	q.logger.Debug("upserted centroids to qdrant", "count", len(centroids))
	return nil
}

// Nearest returns the k centroids closest to p. Qdrant reports the
// Euclidean distance as the score.
func (q *QdrantIndex) Nearest(ctx context.Context, p r3.Vec, k int) ([]vector.Match, error) {
	if k <= 0 {
		k = vector.DefaultK
	}

	points, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.collection,
		Query:          qdrant.NewQuery(float32(p.X), float32(p.Y), float32(p.Z)),
		Limit:          qdrant.PtrOf(uint64(k)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("querying centroids: %w", err)
	}

	matches := make([]vector.Match, 0, len(points))
	for _, point := range points {
		matches = append(matches, vector.Match{
			Centroid: fromPayload(point.GetPayload()),
			Distance: float64(point.GetScore()),
		})
	}

	q.logger.Debug("queried qdrant", "results", len(matches))
	return matches, nil
}

// Get retrieves centroids by their IDs.
func (q *QdrantIndex) Get(ctx context.Context, ids []string) ([]vector.Centroid, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	pointIDs := make([]*qdrant.PointId, 0, len(ids))
	for _, id := range ids {
		pointIDs = append(pointIDs, pointID(id))
	}

	points, err := q.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: q.collection,
		Ids:            pointIDs,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("getting centroids: %w", err)
	}

	centroids := make([]vector.Centroid, 0, len(points))
	for _, point := range points {
		centroids = append(centroids, fromPayload(point.GetPayload()))
	}
	return centroids, nil
}

// Close closes the gRPC connection.
func (q *QdrantIndex) Close() error {
	return q.client.Close()
}
