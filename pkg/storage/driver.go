// Package storage defines the brain-region data model and the repository
// interfaces implemented by each storage backend.
package storage

import (
	"context"

	"github.com/papercomputeco/cortex/pkg/geometry"
)

// Repository reads and idempotently writes scans, regions and their surfaces.
// Entities are append-only: a GetOrCreate call for an existing natural key
// returns the stored entity unchanged.
type Repository interface {
	// GetOrCreateScan returns the scan with in.FileName, creating it if absent.
	GetOrCreateScan(ctx context.Context, in ScanInput) (*Scan, error)

	// GetOrCreateRegion returns the region with in.Name, creating it if absent.
	GetOrCreateRegion(ctx context.Context, in RegionInput) (*Region, error)

	// GetOrCreateScanRegion returns the association of region with scan,
	// creating it with in if absent.
	GetOrCreateScanRegion(ctx context.Context, scan *Scan, region *Region, in ScanRegionInput) (*ScanRegion, error)

	// GetOrCreateScanRegionLOD returns the surface of region in scan at level,
	// encoding and storing mesh if absent. The scan region must exist.
	GetOrCreateScanRegionLOD(ctx context.Context, scan *Scan, region *Region, level Level, mesh geometry.Mesh) (*ScanRegionLOD, error)

	// GetScan retrieves a scan by file name.
	GetScan(ctx context.Context, fileName string) (*Scan, error)

	// GetRegion retrieves a region by name.
	GetRegion(ctx context.Context, name string) (*Region, error)

	// GetScanRegion retrieves the association of a region with a scan.
	GetScanRegion(ctx context.Context, scanID, regionID int64) (*ScanRegion, error)

	// GetScanRegionLOD retrieves one surface of a region in a scan.
	GetScanRegionLOD(ctx context.Context, scanID, regionID int64, level Level) (*ScanRegionLOD, error)

	// ListScans returns all scans ordered by id.
	ListScans(ctx context.Context) ([]*Scan, error)

	// ListScanRegions returns the regions of a scan ordered by region id.
	ListScanRegions(ctx context.Context, scanID int64) ([]*ScanRegionWithRegion, error)

	// MaxLODLevel returns the highest integer level stored for a scan.
	// The bool is false when the scan has no integer levels.
	MaxLODLevel(ctx context.Context, scanID int64) (int, bool, error)

	// ListLODLevels returns the distinct levels stored for a scan, native first.
	ListLODLevels(ctx context.Context, scanID int64) ([]Level, error)

	// ListRegionLODs returns every surface of a scan at exactly level,
	// ordered by region id.
	ListRegionLODs(ctx context.Context, scanID int64, level Level) ([]*RegionLOD, error)

	// RegionPairs evaluates q.Predicate between every pair of regions of
	// q.ScanID at q.Level. Intersects results are ordered by region ids,
	// Within results by distance and then region ids.
	RegionPairs(ctx context.Context, q PairQuery) ([]RegionPair, error)
}

// Driver is a storage backend. Each logical operation should run inside
// one InTx call so that it sees a single transactional handle.
type Driver interface {
	Repository

	// InTx runs fn in a transaction, committing when fn returns nil and
	// rolling back otherwise.
	InTx(ctx context.Context, fn func(Repository) error) error

	// Close closes the store and releases any resources.
	Close() error
}

// SpatialIndex describes a spatial index reported by the database.
type SpatialIndex struct {
	Table      string `json:"table"`
	Name       string `json:"name"`
	Definition string `json:"definition"`
}

// SpatialInspector is implemented by backends with native spatial indexes.
type SpatialInspector interface {
	// SpatialIndexes lists the spatial indexes on region tables.
	SpatialIndexes(ctx context.Context) ([]SpatialIndex, error)

	// ExplainPairs returns the executed plan of the pair query for q.
	ExplainPairs(ctx context.Context, q PairQuery) ([]string, error)
}
