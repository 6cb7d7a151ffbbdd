// Package ingesttest builds scan record fixtures for tests.
package ingesttest

import (
	"encoding/json"
	"os"
	"path/filepath"

	. "github.com/onsi/gomega"

	"github.com/papercomputeco/cortex/pkg/ingest"
	"github.com/papercomputeco/cortex/pkg/storage/storagetest"
)

// Record returns a scan record for fileName with regions.
func Record(fileName string, regions ...ingest.RegionRecord) *ingest.ScanRecord {
	return &ingest.ScanRecord{
		FileName:   fileName,
		FileSize:   2048,
		Dimensions: "(182, 218, 182)",
		VoxelSize:  "(1.0, 1.0, 1.0)",
		Regions:    regions,
	}
}

// CubeRegion returns a region whose surface is a cube with its minimum
// corner at (x, y, z). A nil level is the native surface.
func CubeRegion(name string, value int, x, y, z, size float64, level *int) ingest.RegionRecord {
	mesh := storagetest.Cube(x, y, z, size)

	shape := ingest.Shape{Faces: mesh.Faces}
	for _, v := range mesh.Vertices {
		shape.Vertices = append(shape.Vertices, [3]float64{v.X, v.Y, v.Z})
	}

	half := size / 2
	return ingest.RegionRecord{
		Name:            name,
		Value:           value,
		VoxelCount:      int64(size * size * size),
		MeanIntensity:   0.5,
		StdIntensity:    0.1,
		MinIntensity:    0,
		MaxIntensity:    1,
		MedianIntensity: 0.5,
		Centroid:        ingest.Point3D{X: x + half, Y: y + half, Z: z + half},
		BoundingBox: []ingest.Point3D{
			{X: x, Y: y, Z: z},
			{X: x + size, Y: y + size, Z: z + size},
		},
		Shape:    shape,
		LODLevel: level,
	}
}

// Level returns a pointer to n for RegionRecord.LODLevel.
func Level(n int) *int {
	return &n
}

// Write marshals rec into dir and returns the file path.
func Write(dir, name string, rec *ingest.ScanRecord) string {
	data, err := json.Marshal(rec)
	Expect(err).NotTo(HaveOccurred())

	path := filepath.Join(dir, name)
	Expect(os.WriteFile(path, data, 0o600)).To(Succeed())
	return path
}
