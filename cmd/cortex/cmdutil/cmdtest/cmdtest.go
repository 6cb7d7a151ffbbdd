// Package cmdtest holds fixtures for cortex command tests.
package cmdtest

import (
	"bytes"
	"context"
	"path/filepath"

	. "github.com/onsi/gomega"
	"github.com/spf13/cobra"

	"github.com/papercomputeco/cortex/pkg/ingest"
	"github.com/papercomputeco/cortex/pkg/ingest/ingesttest"
	"github.com/papercomputeco/cortex/pkg/storage/sqlite"
)

// ScanFile is the file name of the record returned by Record.
const ScanFile = "sub-01_T1w.nii.gz"

// Record is a scan with two overlapping cubes and one cube 2 units away
// from the second. The first region also has a level 1 surface.
func Record() *ingest.ScanRecord {
	return ingesttest.Record(ScanFile,
		ingesttest.CubeRegion("Left-Hippocampus", 17, 0, 0, 0, 2, nil),
		ingesttest.CubeRegion("Left-Hippocampus", 17, 0, 0, 0, 2, ingesttest.Level(1)),
		ingesttest.CubeRegion("Right-Hippocampus", 53, 1, 1, 1, 2, nil),
		ingesttest.CubeRegion("Brain-Stem", 16, 5, 0, 0, 1, nil),
	)
}

// SeedSQLite creates a SQLite database in dir holding recs and returns its
// path.
func SeedSQLite(dir string, recs ...*ingest.ScanRecord) string {
	path := filepath.Join(dir, "cortex.db")
	ctx := context.Background()

	driver, err := sqlite.NewSQLiteDriver(ctx, path)
	Expect(err).NotTo(HaveOccurred())
	defer driver.Close()

	ing, err := ingest.New(&ingest.Config{Driver: driver})
	Expect(err).NotTo(HaveOccurred())

	for _, rec := range recs {
		_, err := ing.Ingest(ctx, rec, ingest.Source{Component: ingest.ComponentCLI})
		Expect(err).NotTo(HaveOccurred())
	}
	return path
}

// Execute runs cmd with args and returns what it wrote to stdout.
func Execute(cmd *cobra.Command, args ...string) (string, error) {
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}
