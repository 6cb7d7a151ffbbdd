package storage

import (
	"context"
	"fmt"
	"sort"

	"github.com/papercomputeco/cortex/pkg/geometry"
)

// Candidate is a pair of surfaces at the same level with A.Region.ID < B.Region.ID.
type Candidate struct {
	A *RegionLOD
	B *RegionLOD
}

// CandidatePairs enumerates the N(N-1)/2 unordered pairs of lods, ordered by
// region ids.
func CandidatePairs(lods []*RegionLOD) []Candidate {
	sorted := make([]*RegionLOD, len(lods))
	copy(sorted, lods)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Region.ID < sorted[j].Region.ID
	})

	out := make([]Candidate, 0, len(sorted)*(len(sorted)-1)/2)
	for i := range sorted {
		for j := i + 1; j < len(sorted); j++ {
			if sorted[i].Region.ID == sorted[j].Region.ID {
				continue
			}
			out = append(out, Candidate{A: sorted[i], B: sorted[j]})
		}
	}
	return out
}

// EvaluatePairs evaluates q over lods in process. It is used by backends
// without native 3D spatial functions.
func EvaluatePairs(ctx context.Context, lods []*RegionLOD, q PairQuery) ([]RegionPair, error) {
	if _, ok := ParsePredicate(string(q.Predicate)); !ok {
		return nil, fmt.Errorf("unknown predicate %q", q.Predicate)
	}

	meshes := make(map[int64]geometry.Mesh, len(lods))
	for _, l := range lods {
		m, err := l.Mesh()
		if err != nil {
			return nil, fmt.Errorf("decoding surface of region %s: %w", l.Region.Name, err)
		}
		meshes[l.Region.ID] = m
	}

	pairs := []RegionPair{}
	for _, c := range CandidatePairs(lods) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		a, b := meshes[c.A.Region.ID], meshes[c.B.Region.ID]
		switch q.Predicate {
		case Intersects:
			if geometry.Intersects(a, b) {
				pairs = append(pairs, RegionPair{A: c.A.Region, B: c.B.Region, Intersects: true})
			}
		case Within:
			if !geometry.Within(a, b, q.Epsilon) {
				continue
			}
			d := geometry.Distance(a, b)
			pairs = append(pairs, RegionPair{
				A:          c.A.Region,
				B:          c.B.Region,
				Distance:   &d,
				Intersects: d <= geometry.ContactTolerance,
			})
		}
	}

	if q.Predicate == Within {
		SortByDistance(pairs)
	}
	return pairs, nil
}

// SortByDistance orders pairs by distance and then by region ids.
func SortByDistance(pairs []RegionPair) {
	sort.SliceStable(pairs, func(i, j int) bool {
		di, dj := distanceOf(pairs[i]), distanceOf(pairs[j])
		if di != dj {
			return di < dj
		}
		if pairs[i].A.ID != pairs[j].A.ID {
			return pairs[i].A.ID < pairs[j].A.ID
		}
		return pairs[i].B.ID < pairs[j].B.ID
	})
}

func distanceOf(p RegionPair) float64 {
	if p.Distance == nil {
		return 0
	}
	return *p.Distance
}
