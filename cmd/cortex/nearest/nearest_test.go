package nearestcmder_test

import (
	"encoding/json"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/cortex/cmd/cortex/cmdutil/cmdtest"
	nearestcmder "github.com/papercomputeco/cortex/cmd/cortex/nearest"
)

var _ = Describe("nearest command", func() {
	var (
		dir    string
		dbPath string
	)

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
		dbPath = cmdtest.SeedSQLite(dir, cmdtest.Record())
	})

	It("requires three coordinates", func() {
		cmd := nearestcmder.NewNearestCmd()
		Expect(cmd.Args(cmd, []string{"1", "2"})).NotTo(Succeed())
		Expect(cmd.Args(cmd, []string{"1", "2", "3"})).To(Succeed())
	})

	It("rejects non-numeric coordinates", func() {
		_, err := cmdtest.Execute(nearestcmder.NewNearestCmd(), "1", "two", "3")
		Expect(err).To(MatchError(ContainSubstring(`invalid coordinate "two"`)))
	})

	It("fails without a centroid index", func() {
		_, err := cmdtest.Execute(nearestcmder.NewNearestCmd(), "0", "0", "0",
			"--driver", "sqlite", "--sqlite", dbPath, "--vector-store-provider", "none")
		Expect(err).To(MatchError(nearestcmder.ErrNoCentroidIndex))
	})

	It("rebuilds the index and returns the nearest centroids", func() {
		out, err := cmdtest.Execute(nearestcmder.NewNearestCmd(), "0", "0", "0",
			"--driver", "sqlite", "--sqlite", dbPath,
			"--vector-store-provider", "sqlite-vec",
			"--vector-store-target", filepath.Join(dir, "vectors.db"),
			"--reindex", "-k", "2", "--format", "json")
		Expect(err).NotTo(HaveOccurred())

		var got nearestcmder.Output
		Expect(json.Unmarshal([]byte(out), &got)).To(Succeed())
		Expect(got.Count).To(Equal(2))
		Expect(got.Matches[0].RegionName).To(Equal("Left-Hippocampus"))
		Expect(got.Matches[0].ScanFile).To(Equal(cmdtest.ScanFile))
		Expect(got.Matches[1].RegionName).To(Equal("Right-Hippocampus"))
	})
})
