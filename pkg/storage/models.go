package storage

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/papercomputeco/cortex/pkg/geometry"
)

// Scan is one processed brain-scan file. FileName is its natural key.
type Scan struct {
	ID         int64  `json:"id"`
	FileName   string `json:"file_name"`
	FileSize   int64  `json:"file_size"`
	Dimensions string `json:"dimensions"`
	VoxelSize  string `json:"voxel_size"`
}

// ScanInput holds the attributes used when a scan is first created.
type ScanInput struct {
	FileName   string
	FileSize   int64
	Dimensions string
	VoxelSize  string
}

// Region is an anatomical label shared across scans. Name is its natural key.
type Region struct {
	ID         int64   `json:"id"`
	Name       string  `json:"name"`
	Laterality *string `json:"laterality,omitempty"`
	AtlasValue int     `json:"atlas_value"`
}

// RegionInput holds the attributes used when a region is first created.
type RegionInput struct {
	Name       string
	Laterality *string
	AtlasValue int
}

// RegionStats are the intensity statistics of a region within one scan.
type RegionStats struct {
	VoxelCount int64   `json:"voxel_count"`
	Mean       float64 `json:"mean_intensity"`
	Std        float64 `json:"std_intensity"`
	Min        float64 `json:"min_intensity"`
	Max        float64 `json:"max_intensity"`
	Median     float64 `json:"median_intensity"`
}

// ScanRegion associates a region with a scan. There is at most one per
// (ScanID, RegionID).
type ScanRegion struct {
	ID          int64       `json:"id"`
	ScanID      int64       `json:"scan_id"`
	RegionID    int64       `json:"region_id"`
	Stats       RegionStats `json:"stats"`
	Centroid    r3.Vec      `json:"centroid"`
	BoundingBox *r3.Box     `json:"bounding_box,omitempty"`
}

// ScanRegionInput holds the attributes used when a scan region is first created.
type ScanRegionInput struct {
	Stats       RegionStats
	Centroid    r3.Vec
	BoundingBox *r3.Box
}

// ScanRegionWithRegion is a ScanRegion joined with its Region.
type ScanRegionWithRegion struct {
	ScanRegion
	Region Region `json:"region"`
}

// ScanRegionLOD is one level-of-detail surface of a region within a scan.
// Shape is POLYHEDRALSURFACE Z text.
type ScanRegionLOD struct {
	ID       int64  `json:"id"`
	ScanID   int64  `json:"scan_id"`
	RegionID int64  `json:"region_id"`
	Level    Level  `json:"level"`
	Shape    string `json:"shape"`
}

// Mesh decodes the LOD surface.
func (l *ScanRegionLOD) Mesh() (geometry.Mesh, error) {
	return geometry.DecodeSurface(l.Shape)
}

// RegionLOD is a ScanRegionLOD joined with its Region.
type RegionLOD struct {
	ScanRegionLOD
	Region Region `json:"region"`
}

// Predicate selects the spatial relationship evaluated between regions.
type Predicate string

const (
	// Intersects matches surfaces that touch or cross.
	Intersects Predicate = "intersects"

	// Within matches surfaces whose minimum distance is at most an epsilon.
	Within Predicate = "within"
)

// ParsePredicate parses a predicate name.
func ParsePredicate(s string) (Predicate, bool) {
	switch Predicate(s) {
	case Intersects, Within:
		return Predicate(s), true
	}
	return "", false
}

// PairQuery selects region pairs of one scan at one level of detail.
// Epsilon is only used by Within.
type PairQuery struct {
	ScanID    int64
	Level     Level
	Predicate Predicate
	Epsilon   float64
}

// RegionPair is a matching pair of regions with A.ID < B.ID. Distance is set
// for Within queries; Intersects reports whether the surfaces touch.
type RegionPair struct {
	A          Region   `json:"region_a"`
	B          Region   `json:"region_b"`
	Distance   *float64 `json:"distance,omitempty"`
	Intersects bool     `json:"intersects"`
}
