package cortexcmder_test

import (
	"bytes"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	cortexcmder "github.com/papercomputeco/cortex/cmd/cortex"
	"github.com/papercomputeco/cortex/cmd/cortex/cmdutil/cmdtest"
)

var _ = Describe("NewCortexCmd", func() {
	It("registers every subcommand", func() {
		cmd := cortexcmder.NewCortexCmd()
		names := []string{}
		for _, sub := range cmd.Commands() {
			names = append(names, sub.Name())
		}
		Expect(names).To(ContainElements(
			"init", "config", "ingest", "scans", "lods", "pairs",
			"nearest", "indexes", "migrate", "serve", "version",
		))
	})

	It("has the global flags", func() {
		cmd := cortexcmder.NewCortexCmd()
		Expect(cmd.PersistentFlags().Lookup("debug")).NotTo(BeNil())
		Expect(cmd.PersistentFlags().Lookup("config-dir")).NotTo(BeNil())
	})

	It("reads storage settings from the config directory", func() {
		dir := GinkgoT().TempDir()
		configDir := filepath.Join(dir, ".cortex")
		dbPath := cmdtest.SeedSQLite(dir, cmdtest.Record())

		cmd := cortexcmder.NewCortexCmd()
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetArgs([]string{"config", "set", "storage.sqlite_path", dbPath, "--config-dir", configDir})
		Expect(cmd.Execute()).To(Succeed())

		cmd = cortexcmder.NewCortexCmd()
		out := &bytes.Buffer{}
		cmd.SetOut(out)
		cmd.SetArgs([]string{"scans", "--config-dir", configDir, "--driver", "sqlite"})
		Expect(cmd.Execute()).To(Succeed())
		Expect(out.String()).To(ContainSubstring(cmdtest.ScanFile))
	})
})
