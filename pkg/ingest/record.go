package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/papercomputeco/cortex/pkg/geometry"
	"github.com/papercomputeco/cortex/pkg/storage"
)

// ScanRecord is the JSON document produced by the region extractor for one
// scan. A region may appear once per level of detail.
type ScanRecord struct {
	FileName   string         `json:"file_name"`
	FileSize   int64          `json:"file_size"`
	Dimensions string         `json:"dimensions"`
	VoxelSize  string         `json:"voxel_size"`
	Regions    []RegionRecord `json:"regions"`
}

// RegionRecord is one region surface of a ScanRecord.
type RegionRecord struct {
	Name            string    `json:"name"`
	Value           int       `json:"value"`
	Laterality      *string   `json:"laterality,omitempty"`
	VoxelCount      int64     `json:"voxel_count"`
	MeanIntensity   float64   `json:"mean_intensity"`
	StdIntensity    float64   `json:"std_intensity"`
	MinIntensity    float64   `json:"min_intensity"`
	MaxIntensity    float64   `json:"max_intensity"`
	MedianIntensity float64   `json:"median_intensity"`
	Centroid        Point3D   `json:"centroid"`
	BoundingBox     []Point3D `json:"bounding_box,omitempty"`
	Shape           Shape     `json:"shape"`

	// LODLevel is nil for the native surface.
	LODLevel *int `json:"lod_level,omitempty"`
}

// Point3D is a point in scanner space.
type Point3D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Vec converts p to an r3.Vec.
func (p Point3D) Vec() r3.Vec {
	return r3.Vec{X: p.X, Y: p.Y, Z: p.Z}
}

// Shape is a triangle mesh encoded as [[vertices], [faces]].
type Shape struct {
	Vertices [][3]float64
	Faces    [][3]int
}

func (s Shape) MarshalJSON() ([]byte, error) {
	vertices, faces := s.Vertices, s.Faces
	if vertices == nil {
		vertices = [][3]float64{}
	}
	if faces == nil {
		faces = [][3]int{}
	}
	return json.Marshal([2]any{vertices, faces})
}

func (s *Shape) UnmarshalJSON(data []byte) error {
	var parts []json.RawMessage
	if err := json.Unmarshal(data, &parts); err != nil {
		return fmt.Errorf("shape: %w", err)
	}
	if len(parts) != 2 {
		return fmt.Errorf("shape: want [vertices, faces], got %d elements", len(parts))
	}
	if err := json.Unmarshal(parts[0], &s.Vertices); err != nil {
		return fmt.Errorf("shape vertices: %w", err)
	}
	if err := json.Unmarshal(parts[1], &s.Faces); err != nil {
		return fmt.Errorf("shape faces: %w", err)
	}
	return nil
}

// Mesh converts the shape to a geometry.Mesh.
func (s Shape) Mesh() geometry.Mesh {
	m := geometry.Mesh{
		Vertices: make([]r3.Vec, len(s.Vertices)),
		Faces:    s.Faces,
	}
	for i, v := range s.Vertices {
		m.Vertices[i] = r3.Vec{X: v[0], Y: v[1], Z: v[2]}
	}
	return m
}

// Level returns the level of detail of the region surface.
func (r RegionRecord) Level() storage.Level {
	if r.LODLevel == nil {
		return storage.Native()
	}
	return storage.LevelOf(*r.LODLevel)
}

// Stats returns the intensity statistics of the region.
func (r RegionRecord) Stats() storage.RegionStats {
	return storage.RegionStats{
		VoxelCount: r.VoxelCount,
		Mean:       r.MeanIntensity,
		Std:        r.StdIntensity,
		Min:        r.MinIntensity,
		Max:        r.MaxIntensity,
		Median:     r.MedianIntensity,
	}
}

// Box returns the bounding box, or nil when the record has none.
func (r RegionRecord) Box() *r3.Box {
	if len(r.BoundingBox) != 2 {
		return nil
	}
	b := r3.Box{Min: r.BoundingBox[0].Vec(), Max: r.BoundingBox[1].Vec()}.Canon()
	return &b
}

// ValidationError reports an invalid ScanRecord.
type ValidationError struct {
	FileName string
	Region   string
	Reason   string
	Err      error
}

func (e *ValidationError) Error() string {
	switch {
	case e.Region != "":
		return fmt.Sprintf("invalid scan record %q: region %q: %s", e.FileName, e.Region, e.Reason)
	case e.FileName != "":
		return fmt.Sprintf("invalid scan record %q: %s", e.FileName, e.Reason)
	default:
		return "invalid scan record: " + e.Reason
	}
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Validate checks the record before anything is written.
func (s *ScanRecord) Validate() error {
	if s.FileName == "" {
		return &ValidationError{Reason: "file_name is required"}
	}
	if s.FileSize < 0 {
		return &ValidationError{FileName: s.FileName, Reason: "file_size is negative"}
	}

	type key struct {
		name  string
		level storage.Level
	}
	seen := make(map[key]bool, len(s.Regions))

	for i, r := range s.Regions {
		if r.Name == "" {
			return &ValidationError{FileName: s.FileName, Reason: fmt.Sprintf("region %d has no name", i)}
		}
		if r.LODLevel != nil && *r.LODLevel < 0 {
			return &ValidationError{FileName: s.FileName, Region: r.Name, Reason: fmt.Sprintf("lod_level %d is negative", *r.LODLevel)}
		}
		if len(r.BoundingBox) != 0 && len(r.BoundingBox) != 2 {
			return &ValidationError{FileName: s.FileName, Region: r.Name, Reason: "bounding_box needs exactly two corners"}
		}
		c := r.Centroid
		if math.IsNaN(c.X+c.Y+c.Z) || math.IsInf(c.X+c.Y+c.Z, 0) {
			return &ValidationError{FileName: s.FileName, Region: r.Name, Reason: "centroid is not finite"}
		}

		k := key{name: r.Name, level: r.Level()}
		if seen[k] {
			return &ValidationError{FileName: s.FileName, Region: r.Name, Reason: fmt.Sprintf("duplicate surface at level %s", k.level)}
		}
		seen[k] = true

		if err := r.Shape.Mesh().Validate(); err != nil {
			return &ValidationError{FileName: s.FileName, Region: r.Name, Reason: err.Error(), Err: err}
		}
	}
	return nil
}

// Decode reads and validates one ScanRecord.
func Decode(r io.Reader) (*ScanRecord, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()

	var rec ScanRecord
	if err := dec.Decode(&rec); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &ValidationError{Reason: "empty document"}
		}
		return nil, fmt.Errorf("decoding scan record: %w", err)
	}
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	return &rec, nil
}
