// Package vector provides a nearest-neighbour index over region centroids.
//
// The index is derived data: it is filled after scans are ingested and can
// be rebuilt from the repository at any time.
package vector

import (
	"context"

	"gonum.org/v1/gonum/spatial/r3"
)

// Centroid is the centroid of one region within one scan.
type Centroid struct {
	// ID is CentroidID(ScanFile, RegionName).
	ID           string `json:"id"`
	ScanFile     string `json:"scan_file"`
	RegionName   string `json:"region_name"`
	ScanRegionID int64  `json:"scan_region_id"`
	Point        r3.Vec `json:"point"`
}

// Match is a centroid found by a nearest-neighbour query.
type Match struct {
	Centroid

	// Distance is the Euclidean distance to the query point.
	Distance float64 `json:"distance"`
}

// CentroidIndex stores centroids and answers nearest-neighbour queries.
type CentroidIndex interface {
	// Upsert stores centroids. An existing centroid with the same ID is
	// replaced.
	Upsert(ctx context.Context, centroids []Centroid) error

	// Nearest returns up to k centroids closest to p, nearest first.
	Nearest(ctx context.Context, p r3.Vec, k int) ([]Match, error)

	// Get retrieves centroids by their IDs. Unknown IDs are skipped.
	Get(ctx context.Context, ids []string) ([]Centroid, error)

	// Close releases any resources held by the index.
	Close() error
}

// CentroidID is the stable index key of a region centroid in a scan.
func CentroidID(scanFile, regionName string) string {
	return scanFile + "#" + regionName
}

// DefaultK is used when a query asks for k <= 0.
const DefaultK = 10
