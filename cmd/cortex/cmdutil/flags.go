package cmdutil

import (
	"github.com/spf13/cobra"

	"github.com/papercomputeco/cortex/pkg/config"
)

// StorageFlagValues are the targets of the shared storage flags. The values
// reach the command through viper, so they are rarely read directly.
type StorageFlagValues struct {
	Driver      string
	PostgresDSN string
	SQLitePath  string
	SRID        int
}

// AddStorageFlags registers config.StorageFlags on cmd.
func AddStorageFlags(cmd *cobra.Command, v *StorageFlagValues) {
	config.AddStringFlag(cmd, config.Flags, config.FlagDriver, &v.Driver)
	config.AddStringFlag(cmd, config.Flags, config.FlagPostgresDSN, &v.PostgresDSN)
	config.AddStringFlag(cmd, config.Flags, config.FlagSQLite, &v.SQLitePath)
	config.AddIntFlag(cmd, config.Flags, config.FlagSRID, &v.SRID)
}

// AddFormatFlag registers --format with the table default.
func AddFormatFlag(cmd *cobra.Command, target *string) {
	cmd.Flags().StringVarP(target, "format", "f", FormatTable, "Output format: table, json or markdown")
}
