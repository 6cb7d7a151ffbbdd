package geometry

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

const (
	// ContactTolerance is the distance under which two surfaces touch.
	ContactTolerance = 1e-9

	// eps is the tolerance used for parallel and degenerate checks.
	eps = 1e-12
)

// Intersects reports whether any triangle of a touches or crosses any
// triangle of b. Meshes are compared as surfaces: a mesh nested inside a
// closed mesh without touching it does not intersect it.
func Intersects(a, b Mesh) bool {
	return Within(a, b, ContactTolerance)
}

// Within reports whether the minimum 3D distance between a and b is at most d.
func Within(a, b Mesh, d float64) bool {
	if len(a.Faces) == 0 || len(b.Faces) == 0 || d < 0 {
		return false
	}
	if boxDistance(a.Bounds(), b.Bounds()) > d {
		return false
	}

	ta, tb := indexTriangles(a), indexTriangles(b)
	for _, x := range ta {
		for _, y := range tb {
			if boxDistance(x.box, y.box) > d {
				continue
			}
			if triangleDistance(x.tri, y.tri) <= d {
				return true
			}
		}
	}
	return false
}

// Distance returns the minimum 3D distance between a and b, or +Inf when
// either mesh has no faces.
func Distance(a, b Mesh) float64 {
	best := math.Inf(1)
	if len(a.Faces) == 0 || len(b.Faces) == 0 {
		return best
	}

	ta, tb := indexTriangles(a), indexTriangles(b)
	for _, x := range ta {
		for _, y := range tb {
			if boxDistance(x.box, y.box) >= best {
				continue
			}
			best = math.Min(best, triangleDistance(x.tri, y.tri))
			if best == 0 {
				return 0
			}
		}
	}
	return best
}

type boxedTriangle struct {
	tri r3.Triangle
	box r3.Box
}

func indexTriangles(m Mesh) []boxedTriangle {
	tris := m.Triangles()
	out := make([]boxedTriangle, len(tris))
	for i, t := range tris {
		out[i] = boxedTriangle{tri: t, box: pointBounds(t[0], t[1], t[2])}
	}
	return out
}

// boxDistance is the distance between two boxes, 0 when they overlap.
func boxDistance(a, b r3.Box) float64 {
	gap := func(amin, amax, bmin, bmax float64) float64 {
		return math.Max(0, math.Max(amin-bmax, bmin-amax))
	}
	return r3.Norm(r3.Vec{
		X: gap(a.Min.X, a.Max.X, b.Min.X, b.Max.X),
		Y: gap(a.Min.Y, a.Max.Y, b.Min.Y, b.Max.Y),
		Z: gap(a.Min.Z, a.Max.Z, b.Min.Z, b.Max.Z),
	})
}

// triangleDistance is 0 when the triangles intersect. Otherwise the minimum
// is attained between a vertex and a triangle or between two edges.
func triangleDistance(a, b r3.Triangle) float64 {
	for i := range 3 {
		if segmentCrossesTriangle(a[i], a[(i+1)%3], b) || segmentCrossesTriangle(b[i], b[(i+1)%3], a) {
			return 0
		}
	}

	best := math.Inf(1)
	for i := range 3 {
		best = math.Min(best, pointTriangleDistance(a[i], b))
		best = math.Min(best, pointTriangleDistance(b[i], a))
		for j := range 3 {
			best = math.Min(best, segmentDistance(a[i], a[(i+1)%3], b[j], b[(j+1)%3]))
		}
	}
	return best
}

// segmentCrossesTriangle is the Möller-Trumbore test restricted to the
// segment p-q. Segments parallel to the triangle plane never cross it;
// coplanar contact is found by the vertex and edge distances instead.
func segmentCrossesTriangle(p, q r3.Vec, t r3.Triangle) bool {
	dir := r3.Sub(q, p)
	e1 := r3.Sub(t[1], t[0])
	e2 := r3.Sub(t[2], t[0])
	h := r3.Cross(dir, e2)
	det := r3.Dot(e1, h)
	if math.Abs(det) < eps {
		return false
	}

	f := 1 / det
	s := r3.Sub(p, t[0])
	u := f * r3.Dot(s, h)
	if u < 0 || u > 1 {
		return false
	}
	k := r3.Cross(s, e1)
	v := f * r3.Dot(dir, k)
	if v < 0 || u+v > 1 {
		return false
	}
	w := f * r3.Dot(e2, k)
	return w >= 0 && w <= 1
}

func pointTriangleDistance(p r3.Vec, t r3.Triangle) float64 {
	if r3.Norm2(t.Normal()) < eps {
		return math.Min(
			pointSegmentDistance(p, t[0], t[1]),
			math.Min(pointSegmentDistance(p, t[1], t[2]), pointSegmentDistance(p, t[2], t[0])),
		)
	}
	return r3.Norm(r3.Sub(p, closestOnTriangle(p, t)))
}

// closestOnTriangle returns the point of t nearest to p by Voronoi region
// classification of p against the vertices, edges and face of t.
func closestOnTriangle(p r3.Vec, t r3.Triangle) r3.Vec {
	a, b, c := t[0], t[1], t[2]
	ab, ac := r3.Sub(b, a), r3.Sub(c, a)

	ap := r3.Sub(p, a)
	d1, d2 := r3.Dot(ab, ap), r3.Dot(ac, ap)
	if d1 <= 0 && d2 <= 0 {
		return a
	}

	bp := r3.Sub(p, b)
	d3, d4 := r3.Dot(ab, bp), r3.Dot(ac, bp)
	if d3 >= 0 && d4 <= d3 {
		return b
	}

	vc := d1*d4 - d3*d2
	if vc <= 0 && d1 >= 0 && d3 <= 0 {
		return r3.Add(a, r3.Scale(d1/(d1-d3), ab))
	}

	cp := r3.Sub(p, c)
	d5, d6 := r3.Dot(ab, cp), r3.Dot(ac, cp)
	if d6 >= 0 && d5 <= d6 {
		return c
	}

	vb := d5*d2 - d1*d6
	if vb <= 0 && d2 >= 0 && d6 <= 0 {
		return r3.Add(a, r3.Scale(d2/(d2-d6), ac))
	}

	va := d3*d6 - d5*d4
	if va <= 0 && d4-d3 >= 0 && d5-d6 >= 0 {
		return r3.Add(b, r3.Scale((d4-d3)/((d4-d3)+(d5-d6)), r3.Sub(c, b)))
	}

	denom := 1 / (va + vb + vc)
	return r3.Add(a, r3.Add(r3.Scale(vb*denom, ab), r3.Scale(vc*denom, ac)))
}

func pointSegmentDistance(p, a, b r3.Vec) float64 {
	ab := r3.Sub(b, a)
	l2 := r3.Norm2(ab)
	if l2 < eps {
		return r3.Norm(r3.Sub(p, a))
	}
	t := clamp(r3.Dot(r3.Sub(p, a), ab)/l2, 0, 1)
	return r3.Norm(r3.Sub(p, r3.Add(a, r3.Scale(t, ab))))
}

// segmentDistance returns the distance between segments p1-q1 and p2-q2.
func segmentDistance(p1, q1, p2, q2 r3.Vec) float64 {
	d1, d2 := r3.Sub(q1, p1), r3.Sub(q2, p2)
	r := r3.Sub(p1, p2)
	a, e, f := r3.Dot(d1, d1), r3.Dot(d2, d2), r3.Dot(d2, r)

	var s, t float64
	switch {
	case a < eps && e < eps:
		return r3.Norm(r)
	case a < eps:
		t = clamp(f/e, 0, 1)
	default:
		c := r3.Dot(d1, r)
		if e < eps {
			s = clamp(-c/a, 0, 1)
			break
		}
		b := r3.Dot(d1, d2)
		if denom := a*e - b*b; denom > eps {
			s = clamp((b*f-c*e)/denom, 0, 1)
		}
		t = (b*s + f) / e
		if t < 0 {
			t = 0
			s = clamp(-c/a, 0, 1)
		} else if t > 1 {
			t = 1
			s = clamp((b-c)/a, 0, 1)
		}
	}

	c1 := r3.Add(p1, r3.Scale(s, d1))
	c2 := r3.Add(p2, r3.Scale(t, d2))
	return r3.Norm(r3.Sub(c1, c2))
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
