package eventstream

import (
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/cortex/pkg/storage"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeScanIngested is emitted after a scan ingestion commits.
	EventTypeScanIngested = "cortex.scan.ingested"
)

// ScanIngestedEvent is a transport-neutral event payload for an ingested scan.
type ScanIngestedEvent struct {
	SchemaVersion int           `json:"schema_version"`
	EventType     string        `json:"event_type"`
	EventID       string        `json:"event_id"`
	EmittedAt     time.Time     `json:"emitted_at"`
	Source        EventSource   `json:"source"`
	Scan          storage.Scan  `json:"scan"`
	Regions       []RegionEvent `json:"regions"`
	Counts        IngestCounts  `json:"counts"`
}

// EventSource identifies where the ingestion ran.
type EventSource struct {
	// Component is "cli", "api" or "watch".
	Component string `json:"component"`
	RunID     string `json:"run_id"`
	Path      string `json:"path,omitempty"`
}

// RegionEvent describes one region of the ingested scan.
type RegionEvent struct {
	RegionID     int64           `json:"region_id"`
	Name         string          `json:"name"`
	ScanRegionID int64           `json:"scan_region_id"`
	Inserted     bool            `json:"inserted"`
	Levels       []storage.Level `json:"levels"`
}

// IngestCounts counts inserted and already present rows per entity.
type IngestCounts struct {
	ScansInserted       int `json:"scans_inserted"`
	RegionsInserted     int `json:"regions_inserted"`
	RegionsExisting     int `json:"regions_existing"`
	ScanRegionsInserted int `json:"scan_regions_inserted"`
	ScanRegionsExisting int `json:"scan_regions_existing"`
	LODsInserted        int `json:"lods_inserted"`
	LODsExisting        int `json:"lods_existing"`
}

// NewScanIngestedEvent stamps a new event for scan.
func NewScanIngestedEvent(source EventSource, scan storage.Scan) *ScanIngestedEvent {
	return &ScanIngestedEvent{
		SchemaVersion: SchemaVersionV1,
		EventType:     EventTypeScanIngested,
		EventID:       uuid.NewString(),
		EmittedAt:     time.Now().UTC(),
		Source:        source,
		Scan:          scan,
		Regions:       []RegionEvent{},
	}
}
