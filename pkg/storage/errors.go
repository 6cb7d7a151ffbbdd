package storage

import "fmt"

// NotFoundError is returned when an entity doesn't exist in the store.
type NotFoundError struct {
	Entity string
	Key    string
}

func (e NotFoundError) Error() string {
	if e.Key == "" {
		return e.Entity + " not found"
	}

	return fmt.Sprintf("%s not found: %s", e.Entity, e.Key)
}

// IntegrityError is returned when a write violates a uniqueness or
// referential constraint. The driver error is kept for errors.Unwrap but is
// not part of the message.
type IntegrityError struct {
	Entity string
	Key    string
	Err    error
}

func (e IntegrityError) Error() string {
	return fmt.Sprintf("integrity violation on %s %s", e.Entity, e.Key)
}

func (e IntegrityError) Unwrap() error {
	return e.Err
}

// Entity names used in NotFoundError and IntegrityError.
const (
	EntityScan          = "scan"
	EntityRegion        = "region"
	EntityScanRegion    = "scan region"
	EntityScanRegionLOD = "scan region lod"
)

// ScanRegionKey formats the natural key of a scan region.
func ScanRegionKey(scanID, regionID int64) string {
	return fmt.Sprintf("scan=%d region=%d", scanID, regionID)
}

// LODKey formats the natural key of a scan region LOD.
func LODKey(scanID, regionID int64, level Level) string {
	return fmt.Sprintf("scan=%d region=%d level=%s", scanID, regionID, level)
}
