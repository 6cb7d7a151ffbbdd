// Package scanscmder provides the scans command for listing ingested scans.
package scanscmder

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/cortex/cmd/cortex/cmdutil"
	"github.com/papercomputeco/cortex/pkg/config"
	"github.com/papercomputeco/cortex/pkg/storage"
)

const scansLongDesc string = `List the scans stored in the cortex database.

Examples:
  cortex scans
  cortex scans --format json
  cortex scans --driver postgres --postgres-dsn postgres://localhost/cortex`

const scansShortDesc string = "List ingested scans"

type scansCommander struct {
	storage cmdutil.StorageFlagValues
	format  string
}

func NewScansCmd() *cobra.Command {
	cmder := &scansCommander{}

	cmd := &cobra.Command{
		Use:   "scans",
		Short: scansShortDesc,
		Long:  scansLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd)
		},
	}

	cmdutil.AddStorageFlags(cmd, &cmder.storage)
	cmdutil.AddFormatFlag(cmd, &cmder.format)

	return cmd
}

func (c *scansCommander) run(cmd *cobra.Command) error {
	if err := cmdutil.ValidateFormat(c.format); err != nil {
		return err
	}

	cfg, err := cmdutil.LoadConfig(cmd, config.StorageFlags)
	if err != nil {
		return err
	}
	l := cmdutil.NewLogger(cmd)

	driver, err := cmdutil.OpenDriver(cmd.Context(), cmd, cfg, l, true)
	if err != nil {
		return err
	}
	defer cmdutil.CloseAll(l, driver)

	scans, err := driver.ListScans(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if c.format == cmdutil.FormatJSON {
		if scans == nil {
			scans = []*storage.Scan{}
		}
		return cmdutil.WriteJSON(out, scans)
	}

	rows := make([][]string, 0, len(scans))
	for _, s := range scans {
		rows = append(rows, []string{
			strconv.FormatInt(s.ID, 10),
			s.FileName,
			strconv.FormatInt(s.FileSize, 10),
			s.Dimensions,
			s.VoxelSize,
		})
	}
	return cmdutil.WriteRows(out, c.format, "Scans", []string{"ID", "File", "Size", "Dimensions", "Voxel size"}, rows)
}
