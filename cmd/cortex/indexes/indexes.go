// Package indexescmder provides the indexes command for checking the spatial
// indexes of a PostgreSQL database.
package indexescmder

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/cortex/cmd/cortex/cmdutil"
	"github.com/papercomputeco/cortex/pkg/cliui"
	"github.com/papercomputeco/cortex/pkg/config"
	"github.com/papercomputeco/cortex/pkg/storage"
	"github.com/papercomputeco/cortex/pkg/utils"
)

const indexesLongDesc string = `List the spatial (GiST) indexes on the region tables.

Only PostgreSQL/PostGIS databases carry spatial indexes; other drivers report
an error.

Examples:
  cortex indexes --driver postgres
  cortex indexes --format json`

const indexesShortDesc string = "List spatial indexes (PostgreSQL)"

// ErrNoSpatialIndexes is returned for drivers without spatial indexes.
var ErrNoSpatialIndexes = errors.New("spatial indexes are only available on PostgreSQL")

type indexesCommander struct {
	storage cmdutil.StorageFlagValues
	format  string
}

func NewIndexesCmd() *cobra.Command {
	cmder := &indexesCommander{}

	cmd := &cobra.Command{
		Use:   "indexes",
		Short: indexesShortDesc,
		Long:  indexesLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd)
		},
	}

	cmdutil.AddStorageFlags(cmd, &cmder.storage)
	cmdutil.AddFormatFlag(cmd, &cmder.format)

	return cmd
}

func (c *indexesCommander) run(cmd *cobra.Command) error {
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

	inspector, ok := driver.(storage.SpatialInspector)
	if !ok {
		return fmt.Errorf("%w (driver %q)", ErrNoSpatialIndexes, cfg.Storage.Driver)
	}

	indexes, err := inspector.SpatialIndexes(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if c.format == cmdutil.FormatJSON {
		if indexes == nil {
			indexes = []storage.SpatialIndex{}
		}
		return cmdutil.WriteJSON(out, indexes)
	}

	rows := make([][]string, 0, len(indexes))
	for _, idx := range indexes {
		rows = append(rows, []string{idx.Table, idx.Name, utils.Truncate(idx.Definition, 96)})
	}
	if err := cmdutil.WriteRows(out, c.format, "Spatial indexes", []string{"Table", "Index", "Definition"}, rows); err != nil {
		return err
	}
	if len(indexes) == 0 && c.format == cmdutil.FormatTable {
		fmt.Fprintf(out, "  %s no spatial indexes found; run \"cortex migrate up\"\n", cliui.FailMark)
	}
	return nil
}
