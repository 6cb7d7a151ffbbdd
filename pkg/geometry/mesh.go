// Package geometry encodes triangle meshes as POLYHEDRALSURFACE Z text and
// evaluates 3D relationships between surfaces.
package geometry

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Mesh is an indexed triangle mesh. Each face holds three indexes into
// Vertices; the order of a face is its winding.
type Mesh struct {
	Vertices []r3.Vec
	Faces    [][3]int
}

// Validate reports the first structural problem with the mesh, if any.
func (m Mesh) Validate() error {
	if len(m.Vertices) == 0 {
		return &EncodingError{Reason: "mesh has no vertices"}
	}
	if len(m.Faces) == 0 {
		return &EncodingError{Reason: "mesh has no faces"}
	}
	for i, v := range m.Vertices {
		if !finite(v) {
			return &EncodingError{Reason: fmt.Sprintf("vertex %d has a non-finite coordinate", i)}
		}
	}
	for i, f := range m.Faces {
		for _, idx := range f {
			if idx < 0 || idx >= len(m.Vertices) {
				return &EncodingError{
					Reason: fmt.Sprintf("face %d references vertex %d, mesh has %d vertices", i, idx, len(m.Vertices)),
				}
			}
		}
		a, b, c := m.Vertices[f[0]], m.Vertices[f[1]], m.Vertices[f[2]]
		if a == b || b == c || a == c {
			return &EncodingError{Reason: fmt.Sprintf("face %d has fewer than three distinct vertices", i)}
		}
	}
	return nil
}

// Triangles resolves the faces of a valid mesh.
func (m Mesh) Triangles() []r3.Triangle {
	tris := make([]r3.Triangle, len(m.Faces))
	for i, f := range m.Faces {
		tris[i] = r3.Triangle{m.Vertices[f[0]], m.Vertices[f[1]], m.Vertices[f[2]]}
	}
	return tris
}

// Bounds returns the axis-aligned bounds of the mesh vertices. Flat meshes
// produce a box with zero extent along one axis.
func (m Mesh) Bounds() r3.Box {
	if len(m.Vertices) == 0 {
		return r3.Box{}
	}
	return pointBounds(m.Vertices...)
}

// BoxMesh returns the closed 12-triangle mesh of an axis-aligned box.
func BoxMesh(b r3.Box) Mesh {
	b = b.Canon()
	m := Mesh{Vertices: b.Vertices()}
	for _, q := range boxFaces {
		m.Faces = append(m.Faces, [3]int{q[0], q[1], q[2]}, [3]int{q[0], q[2], q[3]})
	}
	return m
}

// boxFaces indexes r3.Box.Vertices: bottom, top, y-min, y-max, x-min, x-max.
var boxFaces = [6][4]int{
	{0, 1, 2, 3},
	{4, 5, 6, 7},
	{0, 1, 5, 4},
	{3, 2, 6, 7},
	{0, 3, 7, 4},
	{1, 2, 6, 5},
}

func pointBounds(pts ...r3.Vec) r3.Box {
	b := r3.Box{Min: pts[0], Max: pts[0]}
	for _, p := range pts[1:] {
		b.Min = r3.Vec{X: math.Min(b.Min.X, p.X), Y: math.Min(b.Min.Y, p.Y), Z: math.Min(b.Min.Z, p.Z)}
		b.Max = r3.Vec{X: math.Max(b.Max.X, p.X), Y: math.Max(b.Max.Y, p.Y), Z: math.Max(b.Max.Z, p.Z)}
	}
	return b
}

func finite(v r3.Vec) bool {
	for _, c := range [3]float64{v.X, v.Y, v.Z} {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}
