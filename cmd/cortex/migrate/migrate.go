// Package migratecmder provides the migrate command for managing the
// database schema.
package migratecmder

import (
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"strconv"

	_ "github.com/mattn/go-sqlite3"
	"github.com/spf13/cobra"

	"github.com/papercomputeco/cortex/cmd/cortex/cmdutil"
	"github.com/papercomputeco/cortex/pkg/cliui"
	"github.com/papercomputeco/cortex/pkg/config"
	"github.com/papercomputeco/cortex/pkg/storage/postgres"
	"github.com/papercomputeco/cortex/pkg/storage/sqlite"
	"github.com/papercomputeco/cortex/pkg/storage/sqlstore"
)

const migrateLongDesc string = `Manage the cortex database schema.

Commands that open a database migrate it to the latest version on their own;
migrate is for inspecting the schema version, rolling back and recovering
from a failed (dirty) migration.

Examples:
  cortex migrate version
  cortex migrate up --driver postgres
  cortex migrate down --sqlite ./cortex.db
  cortex migrate to 1
  cortex migrate force 1`

const migrateShortDesc string = "Manage the database schema"

func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: migrateShortDesc,
		Long:  migrateLongDesc,
	}

	cmd.AddCommand(newSubCmd("up", "Apply all pending migrations", cobra.NoArgs,
		func(m *sqlstore.Migrator, _ []string) error { return m.Up() }))
	cmd.AddCommand(newSubCmd("down", "Roll back the most recent migration", cobra.NoArgs,
		func(m *sqlstore.Migrator, _ []string) error { return m.Down() }))
	cmd.AddCommand(newSubCmd("to <version>", "Migrate up or down to a version", cobra.ExactArgs(1),
		func(m *sqlstore.Migrator, args []string) error {
			v, err := strconv.ParseUint(args[0], 10, 32)
			if err != nil {
				return fmt.Errorf("invalid version %q: %w", args[0], err)
			}
			return m.To(uint(v))
		}))
	cmd.AddCommand(newSubCmd("force <version>", "Record a version without running migrations", cobra.ExactArgs(1),
		func(m *sqlstore.Migrator, args []string) error {
			v, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid version %q: %w", args[0], err)
			}
			return m.Force(v)
		}))
	cmd.AddCommand(newSubCmd("version", "Print the current schema version", cobra.NoArgs, nil))

	return cmd
}

func newSubCmd(use, short string, args cobra.PositionalArgs, fn func(*sqlstore.Migrator, []string) error) *cobra.Command {
	var flags cmdutil.StorageFlagValues

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cmdutil.LoadConfig(cmd, config.StorageFlags)
			if err != nil {
				return err
			}
			l := cmdutil.NewLogger(cmd)

			m, closer, err := openMigrator(cfg.Storage, l)
			if err != nil {
				return err
			}
			defer cmdutil.CloseAll(l, closer)

			if fn != nil {
				if err := fn(m, args); err != nil {
					return err
				}
			}
			return printVersion(cmd.OutOrStdout(), m)
		},
	}

	cmdutil.AddStorageFlags(cmd, &flags)
	return cmd
}

// openMigrator opens a migrator without applying any migration. The closer
// is nil when the migrator manages its own connections.
func openMigrator(sc config.StorageConfig, l *slog.Logger) (*sqlstore.Migrator, io.Closer, error) {
	switch sc.Driver {
	case "postgres":
		dsn, err := config.PostgresDSN(sc, nil)
		if err != nil {
			return nil, nil, err
		}
		return postgres.NewMigrator(dsn, l), nil, nil

	case "sqlite":
		if sc.SQLitePath == "" {
			return nil, nil, &config.ConfigurationError{Missing: []string{"storage.sqlite_path"}}
		}
		db, err := sql.Open("sqlite3", sc.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open database: %w", err)
		}
		db.SetMaxOpenConns(1)
		return sqlite.NewMigrator(db, l), db, nil

	default:
		return nil, nil, fmt.Errorf("storage driver %q has no schema to migrate", sc.Driver)
	}
}

func printVersion(w io.Writer, m *sqlstore.Migrator) error {
	version, dirty, err := m.Version()
	if err != nil {
		return err
	}

	state := "clean"
	if dirty {
		state = "dirty"
	}
	fmt.Fprintf(w, "  %s %d (%s)\n", cliui.KeyStyle.Render("Schema version:"), version, state)
	return nil
}
