// Package storagetest provides fixtures and shared ginkgo specs run against
// every storage.Driver implementation.
package storagetest

import (
	"context"

	. "github.com/onsi/gomega"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/papercomputeco/cortex/pkg/geometry"
	"github.com/papercomputeco/cortex/pkg/storage"
)

// NamedMesh is a region surface used to seed a scan.
type NamedMesh struct {
	Name string
	Mesh geometry.Mesh
}

// Cube returns a closed axis-aligned cube with its minimum corner at (x, y, z).
func Cube(x, y, z, size float64) geometry.Mesh {
	return geometry.BoxMesh(r3.NewBox(x, y, z, x+size, y+size, z+size))
}

// ScanInput returns a scan input for fileName.
func ScanInput(fileName string) storage.ScanInput {
	return storage.ScanInput{
		FileName:   fileName,
		FileSize:   1024,
		Dimensions: "(182, 218, 182)",
		VoxelSize:  "(1.0, 1.0, 1.0)",
	}
}

// RegionStats returns fixed statistics for a region with n voxels.
func RegionStats(n int64) storage.RegionStats {
	return storage.RegionStats{VoxelCount: n, Mean: 0.5, Std: 0.1, Min: 0, Max: 1, Median: 0.5}
}

// Seed creates a scan with one region per mesh, in order, each with a scan
// region and a surface at level.
func Seed(ctx context.Context, repo storage.Repository, fileName string, level storage.Level, meshes ...NamedMesh) (*storage.Scan, []*storage.Region) {
	scan, err := repo.GetOrCreateScan(ctx, ScanInput(fileName))
	Expect(err).NotTo(HaveOccurred())

	regions := make([]*storage.Region, 0, len(meshes))
	for i, nm := range meshes {
		region, err := repo.GetOrCreateRegion(ctx, storage.RegionInput{Name: nm.Name, AtlasValue: i + 1})
		Expect(err).NotTo(HaveOccurred())

		_, err = repo.GetOrCreateScanRegion(ctx, scan, region, storage.ScanRegionInput{
			Stats:    RegionStats(int64(len(nm.Mesh.Faces))),
			Centroid: nm.Mesh.Bounds().Center(),
		})
		Expect(err).NotTo(HaveOccurred())

		_, err = repo.GetOrCreateScanRegionLOD(ctx, scan, region, level, nm.Mesh)
		Expect(err).NotTo(HaveOccurred())
		regions = append(regions, region)
	}
	return scan, regions
}

// AddLevel stores a surface at level for regions already seeded in scan.
func AddLevel(ctx context.Context, repo storage.Repository, scan *storage.Scan, level storage.Level, regions []*storage.Region, meshes ...NamedMesh) {
	for i, nm := range meshes {
		_, err := repo.GetOrCreateScanRegionLOD(ctx, scan, regions[i], level, nm.Mesh)
		Expect(err).NotTo(HaveOccurred())
	}
}
