package geometry

import (
	"strconv"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"
)

// EncodeSurface renders m as POLYHEDRALSURFACE Z text with one closed
// triangular ring per face, in face order, preserving each face's winding.
func EncodeSurface(m Mesh) (string, error) {
	if err := m.Validate(); err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("POLYHEDRALSURFACE Z (")
	for i, f := range m.Faces {
		if i > 0 {
			b.WriteString(", ")
		}
		writeRing(&b, m.Vertices[f[0]], m.Vertices[f[1]], m.Vertices[f[2]])
	}
	b.WriteString(")")
	return b.String(), nil
}

// EncodePoint renders p as POINT Z text.
func EncodePoint(p r3.Vec) (string, error) {
	if !finite(p) {
		return "", &EncodingError{Reason: "point has a non-finite coordinate"}
	}

	var b strings.Builder
	b.WriteString("POINT Z (")
	writeCoord(&b, p)
	b.WriteString(")")
	return b.String(), nil
}

// EncodeBox renders an axis-aligned box as a closed six-face
// POLYHEDRALSURFACE Z with one quadrilateral ring per face.
func EncodeBox(box r3.Box) (string, error) {
	if !finite(box.Min) || !finite(box.Max) {
		return "", &EncodingError{Reason: "box has a non-finite coordinate"}
	}

	corners := box.Canon().Vertices()
	var b strings.Builder
	b.WriteString("POLYHEDRALSURFACE Z (")
	for i, q := range boxFaces {
		if i > 0 {
			b.WriteString(", ")
		}
		writeRing(&b, corners[q[0]], corners[q[1]], corners[q[2]], corners[q[3]])
	}
	b.WriteString(")")
	return b.String(), nil
}

// writeRing writes a ring of pts closed by repeating the first point.
func writeRing(b *strings.Builder, pts ...r3.Vec) {
	b.WriteString("((")
	for _, p := range pts {
		writeCoord(b, p)
		b.WriteString(", ")
	}
	writeCoord(b, pts[0])
	b.WriteString("))")
}

func writeCoord(b *strings.Builder, p r3.Vec) {
	b.WriteString(formatFloat(p.X))
	b.WriteByte(' ')
	b.WriteString(formatFloat(p.Y))
	b.WriteByte(' ')
	b.WriteString(formatFloat(p.Z))
}

// formatFloat returns the shortest decimal text that parses back to v.
func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
