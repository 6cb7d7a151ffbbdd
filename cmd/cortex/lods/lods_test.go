package lodscmder_test

import (
	"encoding/json"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/cortex/cmd/cortex/cmdutil/cmdtest"
	lodscmder "github.com/papercomputeco/cortex/cmd/cortex/lods"
	"github.com/papercomputeco/cortex/pkg/storage"
)

var _ = Describe("lods command", func() {
	var dbPath string

	BeforeEach(func() {
		dbPath = cmdtest.SeedSQLite(GinkgoT().TempDir(), cmdtest.Record())
	})

	It("requires a scan argument", func() {
		cmd := lodscmder.NewLODsCmd()
		Expect(cmd.Args(cmd, []string{})).NotTo(Succeed())
	})

	It("reports levels with surface counts and the max level", func() {
		out, err := cmdtest.Execute(lodscmder.NewLODsCmd(), cmdtest.ScanFile, "--driver", "sqlite", "--sqlite", dbPath, "--format", "json")
		Expect(err).NotTo(HaveOccurred())

		var got lodscmder.Output
		Expect(json.Unmarshal([]byte(out), &got)).To(Succeed())
		Expect(got.Scan).To(Equal(cmdtest.ScanFile))
		Expect(got.Levels).To(Equal([]lodscmder.LevelSummary{
			{Level: storage.Native(), Surfaces: 3},
			{Level: storage.LevelOf(1), Surfaces: 1},
		}))
		Expect(got.MaxLevel).To(HaveValue(Equal(1)))
	})

	It("prints a table with the max level", func() {
		out, err := cmdtest.Execute(lodscmder.NewLODsCmd(), cmdtest.ScanFile, "--driver", "sqlite", "--sqlite", dbPath)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("native"))
		Expect(out).To(ContainSubstring("Max level:"))
	})

	It("fails for an unknown scan", func() {
		_, err := cmdtest.Execute(lodscmder.NewLODsCmd(), "missing.nii.gz", "--driver", "sqlite", "--sqlite", dbPath)
		var notFound storage.NotFoundError
		Expect(err).To(HaveOccurred())
		Expect(errors.As(err, &notFound)).To(BeTrue())
		Expect(notFound.Entity).To(Equal(storage.EntityScan))
	})
})
