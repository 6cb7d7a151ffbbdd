package spatial

import (
	"errors"
	"fmt"

	"github.com/papercomputeco/cortex/pkg/storage"
)

// ErrExplainUnsupported is returned by Explain on backends without a query planner.
var ErrExplainUnsupported = errors.New("query plans are only available on PostgreSQL")

// InvalidQueryError reports a malformed Query.
type InvalidQueryError struct {
	Reason string
}

func (e *InvalidQueryError) Error() string {
	return "invalid spatial query: " + e.Reason
}

// NoRegionsError is returned when a scan has no regions.
type NoRegionsError struct {
	ScanFile string
}

func (e *NoRegionsError) Error() string {
	return fmt.Sprintf("scan %s has no regions", e.ScanFile)
}

// NoLODError is returned when a scan has no surfaces at the requested level.
type NoLODError struct {
	ScanFile string
	Level    storage.Level

	// MaxLevel is the highest integer level the scan has, when HasMax.
	MaxLevel int
	HasMax   bool
}

func (e *NoLODError) Error() string {
	msg := fmt.Sprintf("scan %s has no surfaces at level %s", e.ScanFile, e.Level)
	if e.HasMax {
		msg += fmt.Sprintf(" (max level is %d)", e.MaxLevel)
	}
	return msg
}
