// Package ingest stores scan records produced by the region extractor.
//
// Every record is written in a single transaction with get-or-create
// semantics, so ingesting the same file twice leaves the database unchanged
// and reports every entity as already present. After the transaction
// commits, a scan event is published and region centroids are indexed when
// those backends are configured.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/cortex/pkg/eventstream"
	"github.com/papercomputeco/cortex/pkg/storage"
	"github.com/papercomputeco/cortex/pkg/vector"
)

// Source components.
const (
	ComponentCLI   = "cli"
	ComponentAPI   = "api"
	ComponentWatch = "watch"
)

// Source identifies where a record came from.
type Source struct {
	Component string
	Path      string
}

// Config is the configuration of an Ingester.
type Config struct {
	// Driver is the storage backend records are written to.
	Driver storage.Driver

	// Publisher is the optional event stream scan events are sent to.
	Publisher eventstream.Publisher

	// Centroids is the optional nearest-centroid index.
	Centroids vector.CentroidIndex

	Logger *slog.Logger
}

// Ingester writes scan records to a storage driver.
type Ingester struct {
	driver    storage.Driver
	publisher eventstream.Publisher
	centroids vector.CentroidIndex
	logger    *slog.Logger
}

// Report describes the outcome of one ingestion.
type Report struct {
	RunID        string                    `json:"run_id"`
	Scan         storage.Scan              `json:"scan"`
	ScanInserted bool                      `json:"scan_inserted"`
	Regions      []eventstream.RegionEvent `json:"regions"`
	Counts       eventstream.IngestCounts  `json:"counts"`
	Elapsed      time.Duration             `json:"elapsed_ns"`
}

// New creates an Ingester.
func New(c *Config) (*Ingester, error) {
	if c.Driver == nil {
		return nil, errors.New("ingest: storage driver is required")
	}

	logger := c.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Ingester{
		driver:    c.Driver,
		publisher: c.Publisher,
		centroids: c.Centroids,
		logger:    logger,
	}, nil
}

// IngestFile decodes and ingests the scan record at path.
func (i *Ingester) IngestFile(ctx context.Context, path, component string) (*Report, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening scan record: %w", err)
	}
	defer f.Close()

	rec, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return i.Ingest(ctx, rec, Source{Component: component, Path: path})
}

// Ingest stores rec and reports which entities were inserted and which were
// already present.
func (i *Ingester) Ingest(ctx context.Context, rec *ScanRecord, src Source) (*Report, error) {
	if err := rec.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	report := &Report{RunID: uuid.NewString()}

	var centroids []vector.Centroid
	err := i.driver.InTx(ctx, func(repo storage.Repository) error {
		// Reset so a retried closure does not double count.
		report.Counts = eventstream.IngestCounts{}
		report.Regions = report.Regions[:0]
		centroids = centroids[:0]

		return i.store(ctx, repo, rec, report, &centroids)
	})
	if err != nil {
		return nil, fmt.Errorf("ingesting scan %s: %w", rec.FileName, err)
	}
	report.Elapsed = time.Since(start)

	i.logger.Info("scan ingested",
		"scan", rec.FileName,
		"run_id", report.RunID,
		"component", src.Component,
		"scan_inserted", report.ScanInserted,
		"regions_inserted", report.Counts.RegionsInserted,
		"regions_existing", report.Counts.RegionsExisting,
		"lods_inserted", report.Counts.LODsInserted,
		"lods_existing", report.Counts.LODsExisting,
		"elapsed_ms", report.Elapsed.Milliseconds(),
	)

	i.publish(ctx, report, src)
	i.indexCentroids(ctx, centroids)

	return report, nil
}

func (i *Ingester) store(ctx context.Context, repo storage.Repository, rec *ScanRecord, report *Report, centroids *[]vector.Centroid) error {
	scan, inserted, err := getOrCreate(
		func() (*storage.Scan, error) { return repo.GetScan(ctx, rec.FileName) },
		func() (*storage.Scan, error) {
			return repo.GetOrCreateScan(ctx, storage.ScanInput{
				FileName:   rec.FileName,
				FileSize:   rec.FileSize,
				Dimensions: rec.Dimensions,
				VoxelSize:  rec.VoxelSize,
			})
		},
	)
	if err != nil {
		return err
	}
	report.Scan = *scan
	report.ScanInserted = inserted
	if inserted {
		report.Counts.ScansInserted++
	}

	type resolved struct {
		region *storage.Region
		event  int
	}
	byName := make(map[string]resolved, len(rec.Regions))

	for _, r := range rec.Regions {
		res, ok := byName[r.Name]
		if !ok {
			region, regionInserted, err := getOrCreate(
				func() (*storage.Region, error) { return repo.GetRegion(ctx, r.Name) },
				func() (*storage.Region, error) {
					return repo.GetOrCreateRegion(ctx, storage.RegionInput{
						Name:       r.Name,
						Laterality: r.Laterality,
						AtlasValue: r.Value,
					})
				},
			)
			if err != nil {
				return err
			}
			if regionInserted {
				report.Counts.RegionsInserted++
			} else {
				report.Counts.RegionsExisting++
			}

			sr, srInserted, err := getOrCreate(
				func() (*storage.ScanRegion, error) { return repo.GetScanRegion(ctx, scan.ID, region.ID) },
				func() (*storage.ScanRegion, error) {
					return repo.GetOrCreateScanRegion(ctx, scan, region, storage.ScanRegionInput{
						Stats:       r.Stats(),
						Centroid:    r.Centroid.Vec(),
						BoundingBox: r.Box(),
					})
				},
			)
			if err != nil {
				return err
			}
			if srInserted {
				report.Counts.ScanRegionsInserted++
			} else {
				report.Counts.ScanRegionsExisting++
			}

			*centroids = append(*centroids, vector.Centroid{
				ID:           vector.CentroidID(scan.FileName, region.Name),
				ScanFile:     scan.FileName,
				RegionName:   region.Name,
				ScanRegionID: sr.ID,
				Point:        sr.Centroid,
			})

			report.Regions = append(report.Regions, eventstream.RegionEvent{
				RegionID:     region.ID,
				Name:         region.Name,
				ScanRegionID: sr.ID,
				Inserted:     srInserted,
				Levels:       []storage.Level{},
			})
			res = resolved{region: region, event: len(report.Regions) - 1}
			byName[r.Name] = res
		}

		level := r.Level()
		_, lodInserted, err := getOrCreate(
			func() (*storage.ScanRegionLOD, error) {
				return repo.GetScanRegionLOD(ctx, scan.ID, res.region.ID, level)
			},
			func() (*storage.ScanRegionLOD, error) {
				return repo.GetOrCreateScanRegionLOD(ctx, scan, res.region, level, r.Shape.Mesh())
			},
		)
		if err != nil {
			return err
		}
		if lodInserted {
			report.Counts.LODsInserted++
		} else {
			report.Counts.LODsExisting++
		}

		ev := &report.Regions[res.event]
		ev.Levels = append(ev.Levels, level)
	}

	for _, ev := range report.Regions {
		storage.SortLevels(ev.Levels)
	}
	return nil
}

// getOrCreate looks an entity up first so that the report can tell inserted
// rows from existing ones, then falls back to the idempotent create.
func getOrCreate[T any](get, create func() (*T, error)) (*T, bool, error) {
	v, err := get()
	if err == nil {
		return v, false, nil
	}

	var notFound storage.NotFoundError
	if !errors.As(err, &notFound) {
		return nil, false, err
	}

	v, err = create()
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

func (i *Ingester) publish(ctx context.Context, report *Report, src Source) {
	if i.publisher == nil {
		return
	}

	event := eventstream.NewScanIngestedEvent(eventstream.EventSource{
		Component: src.Component,
		RunID:     report.RunID,
		Path:      src.Path,
	}, report.Scan)
	event.Regions = report.Regions
	event.Counts = report.Counts

	if err := i.publisher.PublishScan(ctx, event); err != nil {
		i.logger.Warn("failed to publish scan event",
			"scan", report.Scan.FileName,
			"event_id", event.EventID,
			"error", err,
		)
		return
	}

	i.logger.Debug("published scan event",
		"scan", report.Scan.FileName,
		"event_id", event.EventID,
	)
}

func (i *Ingester) indexCentroids(ctx context.Context, centroids []vector.Centroid) {
	if i.centroids == nil || len(centroids) == 0 {
		return
	}

	if err := i.centroids.Upsert(ctx, centroids); err != nil {
		i.logger.Warn("failed to index region centroids",
			"count", len(centroids),
			"error", err,
		)
		return
	}

	i.logger.Debug("indexed region centroids", "count", len(centroids))
}
