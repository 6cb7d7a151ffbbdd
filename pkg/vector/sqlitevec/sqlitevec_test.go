package sqlitevec_test

import (
	"context"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/papercomputeco/cortex/pkg/logger"
	"github.com/papercomputeco/cortex/pkg/vector"
	"github.com/papercomputeco/cortex/pkg/vector/sqlitevec"
)

func centroid(scan, region string, id int64, x, y, z float64) vector.Centroid {
	return vector.Centroid{
		ID:           vector.CentroidID(scan, region),
		ScanFile:     scan,
		RegionName:   region,
		ScanRegionID: id,
		Point:        r3.Vec{X: x, Y: y, Z: z},
	}
}

var _ = Describe("SQLiteVecIndex", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	Describe("NewSQLiteVecIndex", func() {
		It("should return an error when DBPath is empty", func() {
			_, err := sqlitevec.NewSQLiteVecIndex(sqlitevec.Config{DBPath: ""}, logger.Nop())
			Expect(err).To(MatchError(ContainSubstring("database path is required")))
		})

		It("should create an index with a file database", func() {
			index, err := sqlitevec.NewSQLiteVecIndex(sqlitevec.Config{
				DBPath: filepath.Join(GinkgoT().TempDir(), "vectors.db"),
			}, logger.Nop())
			Expect(err).NotTo(HaveOccurred())
			Expect(index.Close()).To(Succeed())
		})
	})

	Describe("Interface compliance", func() {
		It("should implement vector.CentroidIndex", func() {
			var _ vector.CentroidIndex = (*sqlitevec.SQLiteVecIndex)(nil)
		})
	})

	Context("with an in-memory index", func() {
		var index *sqlitevec.SQLiteVecIndex

		BeforeEach(func() {
			var err error
			index, err = sqlitevec.NewSQLiteVecIndex(sqlitevec.Config{DBPath: ":memory:"}, logger.Nop())
			Expect(err).NotTo(HaveOccurred())

			Expect(index.Upsert(ctx, []vector.Centroid{
				centroid("sub-01.nii.gz", "Caudate", 1, 0, 0, 0),
				centroid("sub-01.nii.gz", "Putamen", 2, 10, 0, 0),
				centroid("sub-02.nii.gz", "Caudate", 3, 1, 0, 0),
			})).To(Succeed())
		})

		AfterEach(func() {
			Expect(index.Close()).To(Succeed())
		})

		It("does nothing when given no centroids", func() {
			Expect(index.Upsert(ctx, nil)).To(Succeed())
		})

		It("returns the nearest centroids first", func() {
			matches, err := index.Nearest(ctx, r3.Vec{X: 0.2}, 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(matches).To(HaveLen(2))

			Expect(matches[0].ID).To(Equal("sub-01.nii.gz#Caudate"))
			Expect(matches[0].Distance).To(BeNumerically("~", 0.2, 1e-6))
			Expect(matches[1].ScanFile).To(Equal("sub-02.nii.gz"))
			Expect(matches[1].Distance).To(BeNumerically("~", 0.8, 1e-6))
			Expect(matches[1].ScanRegionID).To(Equal(int64(3)))
		})

		It("defaults k when not positive", func() {
			matches, err := index.Nearest(ctx, r3.Vec{}, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(matches).To(HaveLen(3))
		})

		It("replaces a centroid with the same ID", func() {
			Expect(index.Upsert(ctx, []vector.Centroid{
				centroid("sub-01.nii.gz", "Putamen", 2, -5, 0, 0),
			})).To(Succeed())

			got, err := index.Get(ctx, []string{vector.CentroidID("sub-01.nii.gz", "Putamen")})
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(HaveLen(1))
			Expect(got[0].Point).To(Equal(r3.Vec{X: -5}))

			matches, err := index.Nearest(ctx, r3.Vec{X: -5}, 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(matches[0].RegionName).To(Equal("Putamen"))
		})

		It("skips unknown IDs on Get", func() {
			got, err := index.Get(ctx, []string{"missing", vector.CentroidID("sub-02.nii.gz", "Caudate")})
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(HaveLen(1))
			Expect(got[0].RegionName).To(Equal("Caudate"))
		})

		It("returns nil for an empty Get", func() {
			got, err := index.Get(ctx, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(BeNil())
		})
	})
})
