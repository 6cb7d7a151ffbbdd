// Package configcmder provides the config command for managing persistent
// cortex configuration stored in the .cortex/ directory.
package configcmder

import (
	"github.com/spf13/cobra"
)

const configLongDesc string = `Manage persistent cortex configuration.

Configuration is stored as config.toml in the .cortex/ directory and provides
default values for command flags. CLI flags and CORTEX_* environment variables
take precedence over config file values.

Keys use dotted notation matching the TOML section structure:
  storage.driver, storage.postgres_dsn, storage.sqlite_path, storage.srid,
  api.listen,
  ingest.workers, ingest.queue_size,
  vector_store.provider, vector_store.target,
  events.provider, events.brokers, events.topic

Use subcommands to get, set, or list configuration values:
  cortex config set <key> <value>    Set a configuration value
  cortex config get <key>            Get a configuration value
  cortex config list                 List all configuration values

Examples:
  cortex config set storage.driver postgres
  cortex config set storage.srid 4326
  cortex config get storage.driver
  cortex config list`

const configShortDesc string = "Manage persistent cortex configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}
