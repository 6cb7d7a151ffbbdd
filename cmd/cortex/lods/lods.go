// Package lodscmder provides the lods command for listing the level-of-detail
// surfaces stored for a scan.
package lodscmder

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/cortex/cmd/cortex/cmdutil"
	"github.com/papercomputeco/cortex/pkg/cliui"
	"github.com/papercomputeco/cortex/pkg/config"
	"github.com/papercomputeco/cortex/pkg/spatial"
	"github.com/papercomputeco/cortex/pkg/storage"
)

const lodsLongDesc string = `List the level-of-detail levels stored for a scan.

Prints each level with the number of region surfaces stored at it, and the
highest integer level. The native level holds the full resolution surfaces.

Examples:
  cortex lods sub-01_T1w.nii.gz
  cortex lods sub-01_T1w.nii.gz --format json`

const lodsShortDesc string = "List LOD levels of a scan"

// LevelSummary is one stored level and its surface count.
type LevelSummary struct {
	Level    storage.Level `json:"level"`
	Surfaces int           `json:"surfaces"`
}

// Output is the JSON output of the lods command.
type Output struct {
	Scan     string         `json:"scan"`
	Levels   []LevelSummary `json:"levels"`
	MaxLevel *int           `json:"max_level"`
}

type lodsCommander struct {
	storage cmdutil.StorageFlagValues
	format  string
}

func NewLODsCmd() *cobra.Command {
	cmder := &lodsCommander{}

	cmd := &cobra.Command{
		Use:   "lods <scan>",
		Short: lodsShortDesc,
		Long:  lodsLongDesc,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd, args[0])
		},
	}

	cmdutil.AddStorageFlags(cmd, &cmder.storage)
	cmdutil.AddFormatFlag(cmd, &cmder.format)

	return cmd
}

func (c *lodsCommander) run(cmd *cobra.Command, scanFile string) error {
	if err := cmdutil.ValidateFormat(c.format); err != nil {
		return err
	}

	cfg, err := cmdutil.LoadConfig(cmd, config.StorageFlags)
	if err != nil {
		return err
	}
	l := cmdutil.NewLogger(cmd)

	ctx := cmd.Context()
	driver, err := cmdutil.OpenDriver(ctx, cmd, cfg, l, true)
	if err != nil {
		return err
	}
	defer cmdutil.CloseAll(l, driver)

	finder := spatial.NewFinder(driver, l)
	levels, top, hasTop, err := finder.Levels(ctx, scanFile)
	if err != nil {
		return err
	}

	scan, err := driver.GetScan(ctx, scanFile)
	if err != nil {
		return err
	}

	output := Output{Scan: scanFile, Levels: make([]LevelSummary, 0, len(levels))}
	if hasTop {
		output.MaxLevel = &top
	}
	for _, lvl := range levels {
		lods, err := driver.ListRegionLODs(ctx, scan.ID, lvl)
		if err != nil {
			return err
		}
		output.Levels = append(output.Levels, LevelSummary{Level: lvl, Surfaces: len(lods)})
	}

	out := cmd.OutOrStdout()
	if c.format == cmdutil.FormatJSON {
		return cmdutil.WriteJSON(out, output)
	}

	rows := make([][]string, 0, len(output.Levels))
	for _, s := range output.Levels {
		rows = append(rows, []string{s.Level.String(), strconv.Itoa(s.Surfaces)})
	}
	if err := cmdutil.WriteRows(out, c.format, "Levels of "+scanFile, []string{"Level", "Surfaces"}, rows); err != nil {
		return err
	}

	maxLevel := "none"
	if output.MaxLevel != nil {
		maxLevel = strconv.Itoa(*output.MaxLevel)
	}
	if c.format == cmdutil.FormatMarkdown {
		fmt.Fprintf(out, "\nMax level: %s\n", maxLevel)
		return nil
	}
	fmt.Fprintf(out, "  %s %s\n", cliui.KeyStyle.Render("Max level:"), cliui.ValueStyle.Render(maxLevel))
	return nil
}
