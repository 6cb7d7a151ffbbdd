package ingestcmder_test

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/gbytes"

	"github.com/papercomputeco/cortex/cmd/cortex/cmdutil/cmdtest"
	ingestcmder "github.com/papercomputeco/cortex/cmd/cortex/ingest"
	"github.com/papercomputeco/cortex/pkg/dotdir"
	"github.com/papercomputeco/cortex/pkg/ingest/ingesttest"
	"github.com/papercomputeco/cortex/pkg/storage/sqlite"
)

var _ = Describe("ingest command", func() {
	var (
		dir    string
		dbPath string
	)

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
		dbPath = filepath.Join(dir, "cortex.db")
	})

	ingestJSON := func(args ...string) ([]ingestcmder.FileResult, error) {
		args = append(args, "--driver", "sqlite", "--sqlite", dbPath, "--format", "json")
		out, err := cmdtest.Execute(ingestcmder.NewIngestCmd(), args...)

		var results []ingestcmder.FileResult
		Expect(json.Unmarshal([]byte(out), &results)).To(Succeed())
		return results, err
	}

	Describe("arguments", func() {
		It("requires files or --watch", func() {
			cmd := ingestcmder.NewIngestCmd()
			Expect(cmd.ParseFlags([]string{})).To(Succeed())
			Expect(cmd.Args(cmd, []string{})).NotTo(Succeed())
			Expect(cmd.Args(cmd, []string{"a.json"})).To(Succeed())
		})

		It("rejects files combined with --watch", func() {
			cmd := ingestcmder.NewIngestCmd()
			Expect(cmd.ParseFlags([]string{"--watch", dir})).To(Succeed())
			Expect(cmd.Args(cmd, []string{})).To(Succeed())
			Expect(cmd.Args(cmd, []string{"a.json"})).NotTo(Succeed())
		})
	})

	It("ingests files in argument order and is idempotent", func() {
		first := ingesttest.Write(dir, "sub-01.json", cmdtest.Record())
		second := ingesttest.Write(dir, "sub-02.json", ingesttest.Record("sub-02_T1w.nii.gz",
			ingesttest.CubeRegion("Left-Hippocampus", 17, 0, 0, 0, 2, nil),
		))

		results, err := ingestJSON(first, second)
		Expect(err).NotTo(HaveOccurred())
		Expect(results).To(HaveLen(2))
		Expect(results[0].Path).To(Equal(first))
		Expect(results[0].Report.ScanInserted).To(BeTrue())
		Expect(results[0].Report.Counts.RegionsInserted).To(Equal(3))
		Expect(results[0].Report.Counts.LODsInserted).To(Equal(4))
		Expect(results[1].Report.Scan.FileName).To(Equal("sub-02_T1w.nii.gz"))

		results, err = ingestJSON(first)
		Expect(err).NotTo(HaveOccurred())
		Expect(results[0].Report.ScanInserted).To(BeFalse())
		Expect(results[0].Report.Counts.LODsExisting).To(Equal(4))
		Expect(results[0].Report.Counts.LODsInserted).To(Equal(0))
	})

	It("reads a record from stdin", func() {
		data, err := json.Marshal(cmdtest.Record())
		Expect(err).NotTo(HaveOccurred())

		cmd := ingestcmder.NewIngestCmd()
		cmd.SetIn(bytes.NewReader(data))
		out, err := cmdtest.Execute(cmd, "-", "--driver", "sqlite", "--sqlite", dbPath, "--format", "json")
		Expect(err).NotTo(HaveOccurred())

		var results []ingestcmder.FileResult
		Expect(json.Unmarshal([]byte(out), &results)).To(Succeed())
		Expect(results).To(HaveLen(1))
		Expect(results[0].Path).To(Equal("-"))
		Expect(results[0].Report.Scan.FileName).To(Equal(cmdtest.ScanFile))
	})

	It("reports failed files and still ingests the rest", func() {
		good := ingesttest.Write(dir, "sub-01.json", cmdtest.Record())
		bad := filepath.Join(dir, "broken.json")
		Expect(os.WriteFile(bad, []byte(`{"file_name": ""}`), 0o600)).To(Succeed())

		results, err := ingestJSON(bad, good, filepath.Join(dir, "missing.json"))
		Expect(err).To(MatchError(ingestcmder.ErrIngestFailed))
		Expect(err.Error()).To(ContainSubstring("2 of 3 records"))
		Expect(results[0].Error).To(ContainSubstring("file_name is required"))
		Expect(results[1].Report).NotTo(BeNil())
		Expect(results[2].Error).To(ContainSubstring("opening scan record"))
	})

	It("prints a summary table", func() {
		path := ingesttest.Write(dir, "sub-01.json", cmdtest.Record())
		out, err := cmdtest.Execute(ingestcmder.NewIngestCmd(), path, "--driver", "sqlite", "--sqlite", dbPath)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring(cmdtest.ScanFile))
		Expect(out).To(ContainSubstring("inserted"))
		Expect(out).To(ContainSubstring("3/0"))
	})

	Describe("--watch", func() {
		It("ingests existing and new records and remembers them", func() {
			watchDir := filepath.Join(dir, "records")
			configDir := filepath.Join(dir, ".cortex")
			Expect(os.MkdirAll(watchDir, 0o755)).To(Succeed())
			existing := ingesttest.Write(watchDir, "sub-01.json", cmdtest.Record())

			cmd := ingestcmder.NewIngestCmd()
			cmd.Flags().String("config-dir", "", "")
			out := gbytes.NewBuffer()
			cmd.SetOut(out)
			cmd.SetErr(gbytes.NewBuffer())
			cmd.SetArgs([]string{"--watch", watchDir, "--config-dir", configDir, "--driver", "sqlite", "--sqlite", dbPath})

			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan error, 1)
			go func() {
				defer GinkgoRecover()
				done <- cmd.ExecuteContext(ctx)
			}()

			watched := func() ([]string, error) {
				state, err := dotdir.NewManager().LoadWatchState(configDir)
				if err != nil {
					return nil, err
				}
				paths := []string{}
				for p := range state.Files {
					paths = append(paths, p)
				}
				return paths, nil
			}

			Eventually(watched, "10s", "50ms").Should(ConsistOf(existing))
			Eventually(out).Should(gbytes.Say("watching"))

			added := ingesttest.Write(watchDir, "sub-02.json", ingesttest.Record("sub-02_T1w.nii.gz",
				ingesttest.CubeRegion("Brain-Stem", 16, 0, 0, 0, 1, nil),
			))
			Eventually(watched, "10s", "50ms").Should(ConsistOf(existing, added))

			cancel()
			Eventually(done, "10s").Should(Receive(BeNil()))

			driver, err := sqlite.NewSQLiteDriver(context.Background(), dbPath)
			Expect(err).NotTo(HaveOccurred())
			defer driver.Close()
			scans, err := driver.ListScans(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(scans).To(HaveLen(2))
		})
	})
})
