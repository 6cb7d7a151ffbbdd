package ingest

import (
	"context"
	"fmt"

	"github.com/papercomputeco/cortex/pkg/storage"
	"github.com/papercomputeco/cortex/pkg/vector"
)

// Reindex writes the centroid of every stored scan region to idx and
// returns the number of centroids written. Centroids are upserted per scan.
func Reindex(ctx context.Context, repo storage.Repository, idx vector.CentroidIndex) (int, error) {
	scans, err := repo.ListScans(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing scans: %w", err)
	}

	total := 0
	for _, scan := range scans {
		regions, err := repo.ListScanRegions(ctx, scan.ID)
		if err != nil {
			return total, fmt.Errorf("listing regions for scan %s: %w", scan.FileName, err)
		}
		if len(regions) == 0 {
			continue
		}

		centroids := make([]vector.Centroid, 0, len(regions))
		for _, sr := range regions {
			centroids = append(centroids, vector.Centroid{
				ID:           vector.CentroidID(scan.FileName, sr.Region.Name),
				ScanFile:     scan.FileName,
				RegionName:   sr.Region.Name,
				ScanRegionID: sr.ID,
				Point:        sr.Centroid,
			})
		}

		if err := idx.Upsert(ctx, centroids); err != nil {
			return total, fmt.Errorf("indexing centroids of scan %s: %w", scan.FileName, err)
		}
		total += len(centroids)
	}
	return total, nil
}
