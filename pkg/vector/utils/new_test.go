package vectorutils_test

import (
	"context"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/cortex/pkg/logger"
	"github.com/papercomputeco/cortex/pkg/vector"
	"github.com/papercomputeco/cortex/pkg/vector/sqlitevec"
	vectorutils "github.com/papercomputeco/cortex/pkg/vector/utils"
)

var _ = Describe("NewCentroidIndex", func() {
	It("reports a disabled index", func() {
		_, err := vectorutils.NewCentroidIndex(context.Background(), &vectorutils.NewCentroidIndexOpts{
			ProviderType: "none",
			Logger:       logger.Nop(),
		})
		Expect(err).To(MatchError(vector.ErrDisabled))
	})

	It("opens a sqlite-vec index", func() {
		index, err := vectorutils.NewCentroidIndex(context.Background(), &vectorutils.NewCentroidIndexOpts{
			ProviderType: "sqlite-vec",
			Target:       filepath.Join(GinkgoT().TempDir(), "vectors.db"),
			Logger:       logger.Nop(),
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(index).To(BeAssignableToTypeOf(&sqlitevec.SQLiteVecIndex{}))
		Expect(index.Close()).To(Succeed())
	})

	It("rejects unknown providers", func() {
		_, err := vectorutils.NewCentroidIndex(context.Background(), &vectorutils.NewCentroidIndexOpts{
			ProviderType: "chroma",
			Logger:       logger.Nop(),
		})
		Expect(err).To(MatchError(ContainSubstring("unsupported vector store provider: chroma")))
	})
})
