package geometry

import (
	"strconv"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"
)

// DecodeSurface parses POLYHEDRALSURFACE Z text, as written by EncodeSurface
// or returned by ST_AsText / ST_AsEWKT, back into an indexed mesh.
//
// Each ring's closing point is dropped, identical vertices are shared, and
// rings with more than three distinct points are fan-triangulated. EMPTY
// surfaces decode to a mesh with no faces.
func DecodeSurface(text string) (Mesh, error) {
	r := newReader(text)
	if err := r.header("POLYHEDRALSURFACE"); err != nil {
		return Mesh{}, err
	}

	var m Mesh
	if r.keyword("EMPTY") {
		return m, r.end()
	}

	index := map[r3.Vec]int{}
	vertex := func(p r3.Vec) int {
		if i, ok := index[p]; ok {
			return i
		}
		index[p] = len(m.Vertices)
		m.Vertices = append(m.Vertices, p)
		return index[p]
	}

	if err := r.expect('('); err != nil {
		return Mesh{}, err
	}
	for {
		ring, err := r.polygon()
		if err != nil {
			return Mesh{}, err
		}
		ids := make([]int, 0, len(ring))
		for _, p := range ring {
			id := vertex(p)
			if len(ids) > 0 && ids[len(ids)-1] == id {
				continue
			}
			ids = append(ids, id)
		}
		if len(ids) > 1 && ids[0] == ids[len(ids)-1] {
			ids = ids[:len(ids)-1]
		}
		if len(ids) < 3 {
			return Mesh{}, r.fail("polygon has fewer than three distinct points")
		}
		for i := 1; i+1 < len(ids); i++ {
			m.Faces = append(m.Faces, [3]int{ids[0], ids[i], ids[i+1]})
		}

		if r.consume(',') {
			continue
		}
		if err := r.expect(')'); err != nil {
			return Mesh{}, err
		}
		break
	}
	return m, r.end()
}

// DecodePoint parses POINT Z text.
func DecodePoint(text string) (r3.Vec, error) {
	r := newReader(text)
	if err := r.header("POINT"); err != nil {
		return r3.Vec{}, err
	}
	if err := r.expect('('); err != nil {
		return r3.Vec{}, err
	}
	p, err := r.coord()
	if err != nil {
		return r3.Vec{}, err
	}
	if err := r.expect(')'); err != nil {
		return r3.Vec{}, err
	}
	return p, r.end()
}

type wktReader struct {
	s   string
	pos int
}

func newReader(s string) *wktReader {
	return &wktReader{s: s}
}

// header consumes an optional SRID=n; prefix, the geometry tag and the Z
// dimension marker.
func (r *wktReader) header(tag string) error {
	r.skipSpace()
	if strings.HasPrefix(strings.ToUpper(r.s[r.pos:]), "SRID=") {
		semi := strings.IndexByte(r.s[r.pos:], ';')
		if semi < 0 {
			return r.fail("unterminated SRID prefix")
		}
		r.pos += semi + 1
	}
	if !r.keyword(tag) {
		return r.fail("expected " + tag)
	}
	if !r.keyword("Z") {
		return r.fail("expected Z dimension")
	}
	return nil
}

// polygon reads ((ring)) and returns the outer ring.
func (r *wktReader) polygon() ([]r3.Vec, error) {
	if err := r.expect('('); err != nil {
		return nil, err
	}
	ring, err := r.ring()
	if err != nil {
		return nil, err
	}
	if r.consume(',') {
		return nil, r.fail("polygons with interior rings are not supported")
	}
	if err := r.expect(')'); err != nil {
		return nil, err
	}
	return ring, nil
}

func (r *wktReader) ring() ([]r3.Vec, error) {
	if err := r.expect('('); err != nil {
		return nil, err
	}
	var pts []r3.Vec
	for {
		p, err := r.coord()
		if err != nil {
			return nil, err
		}
		pts = append(pts, p)
		if r.consume(',') {
			continue
		}
		if err := r.expect(')'); err != nil {
			return nil, err
		}
		return pts, nil
	}
}

func (r *wktReader) coord() (r3.Vec, error) {
	var c [3]float64
	for i := range c {
		v, err := r.number()
		if err != nil {
			return r3.Vec{}, err
		}
		c[i] = v
	}
	return r3.Vec{X: c[0], Y: c[1], Z: c[2]}, nil
}

func (r *wktReader) number() (float64, error) {
	r.skipSpace()
	start := r.pos
	for r.pos < len(r.s) && strings.IndexByte("+-.0123456789eE", r.s[r.pos]) >= 0 {
		r.pos++
	}
	if start == r.pos {
		return 0, r.fail("expected number")
	}
	text := r.s[start:r.pos]
	v, err := strconv.ParseFloat(text, 64)
	if err != nil {
		r.pos = start
		return 0, r.fail("invalid number " + strconv.Quote(text))
	}
	return v, nil
}

// keyword consumes word case-insensitively when it is next in the input.
func (r *wktReader) keyword(word string) bool {
	r.skipSpace()
	end := r.pos + len(word)
	if end > len(r.s) || !strings.EqualFold(r.s[r.pos:end], word) {
		return false
	}
	if end < len(r.s) && isLetter(r.s[end]) {
		return false
	}
	r.pos = end
	return true
}

func (r *wktReader) consume(c byte) bool {
	r.skipSpace()
	if r.pos < len(r.s) && r.s[r.pos] == c {
		r.pos++
		return true
	}
	return false
}

func (r *wktReader) expect(c byte) error {
	if !r.consume(c) {
		return r.fail("expected " + strconv.QuoteRune(rune(c)))
	}
	return nil
}

func (r *wktReader) end() error {
	r.skipSpace()
	if r.pos != len(r.s) {
		return r.fail("unexpected trailing text")
	}
	return nil
}

func (r *wktReader) skipSpace() {
	for r.pos < len(r.s) && strings.IndexByte(" \t\r\n", r.s[r.pos]) >= 0 {
		r.pos++
	}
}

func (r *wktReader) fail(reason string) error {
	return &DecodeError{Offset: r.pos, Reason: reason}
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
