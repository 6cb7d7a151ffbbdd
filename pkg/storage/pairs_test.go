package storage_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/cortex/pkg/geometry"
	"github.com/papercomputeco/cortex/pkg/storage"
	"github.com/papercomputeco/cortex/pkg/storage/storagetest"
)

func regionLOD(id int64, name string, mesh geometry.Mesh) *storage.RegionLOD {
	shape, err := geometry.EncodeSurface(mesh)
	Expect(err).NotTo(HaveOccurred())
	return &storage.RegionLOD{
		ScanRegionLOD: storage.ScanRegionLOD{ID: id, ScanID: 1, RegionID: id, Level: storage.LevelOf(0), Shape: shape},
		Region:        storage.Region{ID: id, Name: name},
	}
}

var _ = Describe("Pairs", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	Describe("CandidatePairs", func() {
		It("enumerates every unordered pair once", func() {
			lods := []*storage.RegionLOD{}
			for i := int64(5); i >= 1; i-- {
				lods = append(lods, regionLOD(i, "r", storagetest.Cube(float64(i)*3, 0, 0, 1)))
			}

			candidates := storage.CandidatePairs(lods)
			Expect(candidates).To(HaveLen(10))
			for _, c := range candidates {
				Expect(c.A.Region.ID).To(BeNumerically("<", c.B.Region.ID))
			}
			Expect(candidates[0].A.Region.ID).To(Equal(int64(1)))
			Expect(candidates[0].B.Region.ID).To(Equal(int64(2)))
		})

		It("returns nothing for a single surface", func() {
			Expect(storage.CandidatePairs([]*storage.RegionLOD{regionLOD(1, "r", storagetest.Cube(0, 0, 0, 1))})).To(BeEmpty())
		})
	})

	Describe("EvaluatePairs", func() {
		var lods []*storage.RegionLOD

		BeforeEach(func() {
			lods = []*storage.RegionLOD{
				regionLOD(3, "Pallidum", storagetest.Cube(10, 0, 0, 1)),
				regionLOD(1, "Caudate", storagetest.Cube(0, 0, 0, 1)),
				regionLOD(2, "Putamen", storagetest.Cube(1, 0, 0, 1)),
			}
		})

		It("finds intersecting pairs", func() {
			pairs, err := storage.EvaluatePairs(ctx, lods, storage.PairQuery{Predicate: storage.Intersects})
			Expect(err).NotTo(HaveOccurred())
			Expect(pairs).To(HaveLen(1))
			Expect(pairs[0].A.Name).To(Equal("Caudate"))
			Expect(pairs[0].B.Name).To(Equal("Putamen"))
			Expect(pairs[0].Distance).To(BeNil())
			Expect(pairs[0].Intersects).To(BeTrue())
		})

		It("orders within pairs by distance", func() {
			pairs, err := storage.EvaluatePairs(ctx, lods, storage.PairQuery{Predicate: storage.Within, Epsilon: 10})
			Expect(err).NotTo(HaveOccurred())
			Expect(pairs).To(HaveLen(3))

			Expect(*pairs[0].Distance).To(BeNumerically("~", 0, 1e-9))
			Expect(pairs[0].Intersects).To(BeTrue())
			Expect(pairs[1].A.Name).To(Equal("Putamen"))
			Expect(*pairs[1].Distance).To(BeNumerically("~", 8, 1e-9))
			Expect(pairs[1].Intersects).To(BeFalse())
			Expect(*pairs[2].Distance).To(BeNumerically("~", 9, 1e-9))
		})

		It("rejects unknown predicates", func() {
			_, err := storage.EvaluatePairs(ctx, lods, storage.PairQuery{Predicate: "overlaps"})
			Expect(err).To(MatchError(ContainSubstring("unknown predicate")))
		})

		It("reports undecodable surfaces", func() {
			lods[0].Shape = "POINT Z (0 0 0)"
			_, err := storage.EvaluatePairs(ctx, lods, storage.PairQuery{Predicate: storage.Intersects})
			Expect(err).To(MatchError(ContainSubstring("Pallidum")))
		})

		It("stops on a cancelled context", func() {
			cancelled, cancel := context.WithCancel(ctx)
			cancel()
			_, err := storage.EvaluatePairs(cancelled, lods, storage.PairQuery{Predicate: storage.Intersects})
			Expect(err).To(MatchError(context.Canceled))
		})
	})

	It("sorts pairs by distance then ids", func() {
		one, two := 1.0, 2.0
		pairs := []storage.RegionPair{
			{A: storage.Region{ID: 2}, B: storage.Region{ID: 3}, Distance: &two},
			{A: storage.Region{ID: 1}, B: storage.Region{ID: 4}, Distance: &one},
			{A: storage.Region{ID: 1}, B: storage.Region{ID: 3}, Distance: &one},
		}
		storage.SortByDistance(pairs)
		Expect(pairs[0].B.ID).To(Equal(int64(3)))
		Expect(pairs[1].B.ID).To(Equal(int64(4)))
		Expect(*pairs[2].Distance).To(Equal(2.0))
	})
})
