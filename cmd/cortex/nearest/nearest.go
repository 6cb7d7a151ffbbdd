// Package nearestcmder provides the nearest command for finding the region
// centroids closest to a point across all scans.
package nearestcmder

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/papercomputeco/cortex/cmd/cortex/cmdutil"
	"github.com/papercomputeco/cortex/pkg/cliui"
	"github.com/papercomputeco/cortex/pkg/config"
	"github.com/papercomputeco/cortex/pkg/ingest"
	"github.com/papercomputeco/cortex/pkg/storage"
	"github.com/papercomputeco/cortex/pkg/vector"
)

const nearestLongDesc string = `Find the region centroids nearest to a point across all scans.

Requires a centroid index (vector_store.provider sqlite-vec or qdrant). The
index is filled when scans are ingested; --reindex rebuilds it from the
database first.

Examples:
  cortex nearest 10 -20 5
  cortex nearest 10 -20 5 -k 3 --format json
  cortex nearest 0 0 0 --reindex --vector-store-provider sqlite-vec`

const nearestShortDesc string = "Find region centroids nearest to a point"

// ErrNoCentroidIndex is returned when no centroid index is configured.
var ErrNoCentroidIndex = errors.New("no centroid index configured; set vector_store.provider to sqlite-vec or qdrant")

// Output is the JSON output of the nearest command.
type Output struct {
	Point   r3.Vec         `json:"point"`
	Count   int            `json:"count"`
	Matches []vector.Match `json:"matches"`
}

type nearestCommander struct {
	storage        cmdutil.StorageFlagValues
	vectorProvider string
	vectorTarget   string
	k              int
	reindex        bool
	format         string
}

func NewNearestCmd() *cobra.Command {
	cmder := &nearestCommander{}

	cmd := &cobra.Command{
		Use:   "nearest <x> <y> <z>",
		Short: nearestShortDesc,
		Long:  nearestLongDesc,
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd, args)
		},
	}

	cmdutil.AddStorageFlags(cmd, &cmder.storage)
	cmdutil.AddFormatFlag(cmd, &cmder.format)
	config.AddStringFlag(cmd, config.Flags, config.FlagVectorStoreProv, &cmder.vectorProvider)
	config.AddStringFlag(cmd, config.Flags, config.FlagVectorStoreTgt, &cmder.vectorTarget)
	cmd.Flags().IntVarP(&cmder.k, "top", "k", vector.DefaultK, "Number of centroids to return")
	cmd.Flags().BoolVar(&cmder.reindex, "reindex", false, "Rebuild the centroid index from the database first")

	return cmd
}

func parsePoint(args []string) (r3.Vec, error) {
	var coords [3]float64
	for i, a := range args {
		v, err := strconv.ParseFloat(a, 64)
		if err != nil {
			return r3.Vec{}, fmt.Errorf("invalid coordinate %q: %w", a, err)
		}
		coords[i] = v
	}
	return r3.Vec{X: coords[0], Y: coords[1], Z: coords[2]}, nil
}

func (c *nearestCommander) run(cmd *cobra.Command, args []string) error {
	if err := cmdutil.ValidateFormat(c.format); err != nil {
		return err
	}
	if c.k <= 0 {
		return fmt.Errorf("--top must be positive, got %d", c.k)
	}

	p, err := parsePoint(args)
	if err != nil {
		return err
	}

	keys := append([]string{config.FlagVectorStoreProv, config.FlagVectorStoreTgt}, config.StorageFlags...)
	cfg, err := cmdutil.LoadConfig(cmd, keys)
	if err != nil {
		return err
	}
	l := cmdutil.NewLogger(cmd)
	ctx := cmd.Context()

	idx, err := cmdutil.OpenCentroidIndex(ctx, cfg, l)
	if err != nil {
		return err
	}
	if idx == nil {
		return ErrNoCentroidIndex
	}
	defer cmdutil.CloseAll(l, idx)

	if c.reindex {
		if err := c.rebuild(cmd, cfg, idx); err != nil {
			return err
		}
	}

	matches, err := idx.Nearest(ctx, p, c.k)
	if err != nil {
		return err
	}
	if matches == nil {
		matches = []vector.Match{}
	}

	out := cmd.OutOrStdout()
	if c.format == cmdutil.FormatJSON {
		return cmdutil.WriteJSON(out, Output{Point: p, Count: len(matches), Matches: matches})
	}

	rows := make([][]string, 0, len(matches))
	for i, m := range matches {
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			m.ScanFile,
			m.RegionName,
			fmt.Sprintf("(%.2f, %.2f, %.2f)", m.Point.X, m.Point.Y, m.Point.Z),
			strconv.FormatFloat(m.Distance, 'f', 4, 64),
		})
	}
	title := fmt.Sprintf("Centroids nearest to (%g, %g, %g)", p.X, p.Y, p.Z)
	return cmdutil.WriteRows(out, c.format, title, []string{"#", "Scan", "Region", "Centroid", "Distance"}, rows)
}

func (c *nearestCommander) rebuild(cmd *cobra.Command, cfg *config.Config, idx vector.CentroidIndex) error {
	ctx := cmd.Context()
	l := cmdutil.NewLogger(cmd)

	driver, err := cmdutil.OpenDriver(ctx, cmd, cfg, l, true)
	if err != nil {
		return err
	}
	defer cmdutil.CloseAll(l, driver)

	var n int
	err = cliui.Step(cmd.ErrOrStderr(), "Rebuilding centroid index", func() error {
		return driver.InTx(ctx, func(repo storage.Repository) error {
			var err error
			n, err = ingest.Reindex(ctx, repo, idx)
			return err
		})
	})
	if err != nil {
		return err
	}
	l.Info("centroid index rebuilt", "centroids", n)
	return nil
}
