package ingest_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/papercomputeco/cortex/pkg/ingest"
	"github.com/papercomputeco/cortex/pkg/ingest/ingesttest"
	"github.com/papercomputeco/cortex/pkg/storage/inmemory"
	testutils "github.com/papercomputeco/cortex/pkg/utils/test"
	"github.com/papercomputeco/cortex/pkg/vector"
)

var _ = Describe("Reindex", func() {
	var (
		ctx    context.Context
		driver *inmemory.Driver
	)

	BeforeEach(func() {
		ctx = context.Background()
		driver = inmemory.NewDriver()

		// Ingest without an index so that only Reindex fills it.
		ing, err := ingest.New(&ingest.Config{Driver: driver})
		Expect(err).NotTo(HaveOccurred())

		for _, rec := range []*ingest.ScanRecord{
			ingesttest.Record("sub-01.nii.gz",
				ingesttest.CubeRegion("hippocampus", 17, 0, 0, 0, 2, nil),
				ingesttest.CubeRegion("amygdala", 18, 4, 4, 4, 2, nil),
			),
			ingesttest.Record("sub-02.nii.gz",
				ingesttest.CubeRegion("hippocampus", 17, 10, 10, 10, 2, nil),
			),
			ingesttest.Record("sub-03.nii.gz"),
		} {
			_, err := ing.Ingest(ctx, rec, ingest.Source{Component: ingest.ComponentCLI})
			Expect(err).NotTo(HaveOccurred())
		}
	})

	It("indexes the centroid of every scan region", func() {
		idx := testutils.NewMockCentroidIndex()

		n, err := ingest.Reindex(ctx, driver, idx)
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(3))
		Expect(idx.Len()).To(Equal(3))

		got, err := idx.Get(ctx, []string{vector.CentroidID("sub-02.nii.gz", "hippocampus")})
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(HaveLen(1))
		Expect(got[0].Point).To(Equal(r3.Vec{X: 11, Y: 11, Z: 11}))
	})

	It("is idempotent", func() {
		idx := testutils.NewMockCentroidIndex()

		_, err := ingest.Reindex(ctx, driver, idx)
		Expect(err).NotTo(HaveOccurred())
		_, err = ingest.Reindex(ctx, driver, idx)
		Expect(err).NotTo(HaveOccurred())
		Expect(idx.Len()).To(Equal(3))
	})

	It("stops at the first index failure", func() {
		idx := testutils.NewMockCentroidIndex()
		idx.FailUpsert = true

		n, err := ingest.Reindex(ctx, driver, idx)
		Expect(err).To(MatchError(ContainSubstring("indexing centroids of scan sub-01.nii.gz")))
		Expect(n).To(Equal(0))
	})
})
