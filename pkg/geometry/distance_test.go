package geometry_test

import (
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/papercomputeco/cortex/pkg/geometry"
)

func cube(x, y, z, size float64) geometry.Mesh {
	return geometry.BoxMesh(r3.NewBox(x, y, z, x+size, y+size, z+size))
}

var _ = Describe("Spatial relationships", func() {
	Describe("Intersects", func() {
		It("is true for cubes sharing a face", func() {
			Expect(geometry.Intersects(cube(0, 0, 0, 1), cube(1, 0, 0, 1))).To(BeTrue())
		})

		It("is true for cubes touching at a single corner", func() {
			Expect(geometry.Intersects(cube(0, 0, 0, 1), cube(1, 1, 1, 1))).To(BeTrue())
		})

		It("is true for overlapping cubes", func() {
			Expect(geometry.Intersects(cube(0, 0, 0, 2), cube(1, 1, 1, 2))).To(BeTrue())
		})

		It("is true when a triangle pierces another", func() {
			a := geometry.Mesh{
				Vertices: []r3.Vec{{X: -1, Y: -1, Z: 0}, {X: 1, Y: -1, Z: 0}, {X: 0, Y: 1, Z: 0}},
				Faces:    [][3]int{{0, 1, 2}},
			}
			b := geometry.Mesh{
				Vertices: []r3.Vec{{X: 0, Y: 0, Z: -1}, {X: 0, Y: 0, Z: 1}, {X: 5, Y: 5, Z: 0.5}},
				Faces:    [][3]int{{0, 1, 2}},
			}
			Expect(geometry.Intersects(a, b)).To(BeTrue())
		})

		It("is false for disjoint cubes", func() {
			Expect(geometry.Intersects(cube(0, 0, 0, 1), cube(3, 0, 0, 1))).To(BeFalse())
		})

		It("treats closed meshes as surfaces", func() {
			Expect(geometry.Intersects(cube(0, 0, 0, 10), cube(4, 4, 4, 1))).To(BeFalse())
			Expect(geometry.Intersects(cube(4, 4, 4, 1), cube(0, 0, 0, 10))).To(BeFalse())
		})

		It("is false for a triangle inside an open mesh", func() {
			open := cube(0, 0, 0, 10)
			open.Faces = open.Faces[2:]
			tri := geometry.Mesh{
				Vertices: []r3.Vec{{X: 4, Y: 4, Z: 4}, {X: 5, Y: 4, Z: 4}, {X: 4, Y: 5, Z: 4}},
				Faces:    [][3]int{{0, 1, 2}},
			}
			Expect(geometry.Intersects(open, tri)).To(BeFalse())
		})

		It("is false for an empty mesh", func() {
			Expect(geometry.Intersects(geometry.Mesh{}, cube(0, 0, 0, 1))).To(BeFalse())
		})
	})

	Describe("Distance", func() {
		It("measures a nested cube to the enclosing surface", func() {
			Expect(geometry.Distance(cube(0, 0, 0, 10), cube(4, 4, 4, 1))).To(BeNumerically("~", 4, 1e-12))
		})

		It("is the gap between separated cubes", func() {
			Expect(geometry.Distance(cube(0, 0, 0, 1), cube(2, 0, 0, 1))).To(BeNumerically("~", 1, 1e-12))
		})

		It("is the corner to corner distance for diagonal cubes", func() {
			Expect(geometry.Distance(cube(0, 0, 0, 1), cube(2, 2, 2, 1))).To(BeNumerically("~", math.Sqrt(3), 1e-12))
		})

		It("is zero for touching cubes", func() {
			Expect(geometry.Distance(cube(0, 0, 0, 1), cube(1, 0, 0, 1))).To(BeZero())
		})

		It("handles skew edges", func() {
			a := geometry.Mesh{
				Vertices: []r3.Vec{{X: -1, Y: 0, Z: 0}, {X: 1, Y: 0, Z: 0}, {X: 0, Y: 0, Z: -5}},
				Faces:    [][3]int{{0, 1, 2}},
			}
			b := geometry.Mesh{
				Vertices: []r3.Vec{{X: 0, Y: -1, Z: 2}, {X: 0, Y: 1, Z: 2}, {X: 0, Y: 0, Z: 7}},
				Faces:    [][3]int{{0, 1, 2}},
			}
			Expect(geometry.Distance(a, b)).To(BeNumerically("~", 2, 1e-12))
		})

		It("is infinite for an empty mesh", func() {
			Expect(math.IsInf(geometry.Distance(geometry.Mesh{}, cube(0, 0, 0, 1)), 1)).To(BeTrue())
		})
	})

	Describe("Within", func() {
		a, b := cube(0, 0, 0, 1), cube(2, 0, 0, 1)

		It("is true when the distance is below epsilon", func() {
			Expect(geometry.Within(a, b, 1.5)).To(BeTrue())
		})

		It("is true when the distance equals epsilon", func() {
			Expect(geometry.Within(a, b, 1)).To(BeTrue())
		})

		It("is false when the distance exceeds epsilon", func() {
			Expect(geometry.Within(a, b, 0.5)).To(BeFalse())
		})

		It("is true for touching meshes at epsilon zero", func() {
			Expect(geometry.Within(cube(0, 0, 0, 1), cube(1, 0, 0, 1), 0)).To(BeTrue())
		})

		It("is false for separated meshes at epsilon zero", func() {
			Expect(geometry.Within(a, b, 0)).To(BeFalse())
		})

		It("is false for a negative epsilon", func() {
			Expect(geometry.Within(a, a, -1)).To(BeFalse())
		})
	})
})
