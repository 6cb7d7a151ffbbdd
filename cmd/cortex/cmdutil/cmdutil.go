// Package cmdutil holds the wiring shared by cortex subcommands: config
// resolution, logging and opening the configured backends.
package cmdutil

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/cortex/cmd/cortex/sqlitepath"
	"github.com/papercomputeco/cortex/pkg/cliui"
	"github.com/papercomputeco/cortex/pkg/config"
	"github.com/papercomputeco/cortex/pkg/eventstream"
	eventstreamutils "github.com/papercomputeco/cortex/pkg/eventstream/utils"
	"github.com/papercomputeco/cortex/pkg/logger"
	"github.com/papercomputeco/cortex/pkg/storage"
	storageutils "github.com/papercomputeco/cortex/pkg/storage/utils"
	"github.com/papercomputeco/cortex/pkg/vector"
	vectorutils "github.com/papercomputeco/cortex/pkg/vector/utils"
)

// Output formats shared by the query commands.
const (
	FormatTable    = "table"
	FormatJSON     = "json"
	FormatMarkdown = "markdown"
)

// LoadConfig resolves the effective configuration for cmd. The registered
// flags in flagKeys take precedence over env, config file and defaults.
func LoadConfig(cmd *cobra.Command, flagKeys []string) (*config.Config, error) {
	configDir, _ := cmd.Flags().GetString("config-dir")

	v, err := config.InitViper(configDir)
	if err != nil {
		return nil, err
	}
	config.BindRegisteredFlags(v, cmd, config.Flags, flagKeys)

	return config.FromViper(v), nil
}

// NewLogger builds the CLI logger. Logs go to stderr so that command output
// on stdout stays machine readable.
func NewLogger(cmd *cobra.Command) *slog.Logger {
	debug, _ := cmd.Flags().GetBool("debug")
	debug = debug || config.LegacyDebug(os.LookupEnv)

	return logger.New(
		logger.WithDebug(debug),
		logger.WithPretty(true),
		logger.WithWriter(os.Stderr),
	)
}

// OpenDriver opens the configured storage backend. With mustExist, a sqlite
// database that is not at the configured path is looked up in the well-known
// locations instead of being created.
func OpenDriver(ctx context.Context, cmd *cobra.Command, cfg *config.Config, l *slog.Logger, mustExist bool) (storage.Driver, error) {
	sc := cfg.Storage

	if sc.Driver == "sqlite" && mustExist && !cmd.Flags().Changed(config.Flags[config.FlagSQLite].Name) {
		if _, err := os.Stat(sc.SQLitePath); err != nil {
			path, err := sqlitepath.ResolveSQLitePath("")
			if err != nil {
				return nil, err
			}
			sc.SQLitePath = path
		}
	}

	return storageutils.NewDriver(ctx, sc, l)
}

// OpenCentroidIndex opens the configured centroid index, or returns nil when
// none is configured.
func OpenCentroidIndex(ctx context.Context, cfg *config.Config, l *slog.Logger) (vector.CentroidIndex, error) {
	idx, err := vectorutils.NewCentroidIndex(ctx, &vectorutils.NewCentroidIndexOpts{
		ProviderType: cfg.VectorStore.Provider,
		Target:       cfg.VectorStore.Target,
		Logger:       l,
	})
	if errors.Is(err, vector.ErrDisabled) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening centroid index: %w", err)
	}
	return idx, nil
}

// OpenPublisher opens the configured event publisher.
func OpenPublisher(cfg *config.Config, l *slog.Logger) (eventstream.Publisher, error) {
	p, err := eventstreamutils.NewPublisher(&eventstreamutils.NewPublisherOpts{
		ProviderType: cfg.Events.Provider,
		Brokers:      cfg.Events.Brokers,
		Topic:        cfg.Events.Topic,
		Logger:       l,
	})
	if err != nil {
		return nil, fmt.Errorf("opening event publisher: %w", err)
	}
	return p, nil
}

// ValidateFormat checks an --format value.
func ValidateFormat(format string) error {
	switch format {
	case FormatTable, FormatJSON, FormatMarkdown:
		return nil
	}
	return fmt.Errorf("invalid format %q: want %s, %s or %s", format, FormatTable, FormatJSON, FormatMarkdown)
}

// CloseAll closes each closer, logging failures.
func CloseAll(l *slog.Logger, closers ...io.Closer) {
	for _, c := range closers {
		if c == nil {
			continue
		}
		if err := c.Close(); err != nil {
			l.Warn("close failed", "error", err)
		}
	}
}

// NewServiceLogger builds the logger of long running services: pretty on a
// terminal and JSON lines otherwise. When logFile is set every record is also
// written to it as a JSON line with its source location.
func NewServiceLogger(cmd *cobra.Command, logFile io.Writer) *slog.Logger {
	debug, _ := cmd.Flags().GetBool("debug")
	debug = debug || config.LegacyDebug(os.LookupEnv)

	pretty := cliui.IsTerminal(os.Stderr)
	if logFile != nil && !pretty {
		return logger.New(
			logger.WithDebug(debug),
			logger.WithJSON(true),
			logger.WithSource(true),
			logger.WithWriters(os.Stderr, logFile),
		)
	}

	console := logger.New(
		logger.WithDebug(debug),
		logger.WithPretty(pretty),
		logger.WithJSON(!pretty),
		logger.WithWriter(os.Stderr),
	)
	if logFile == nil {
		return console
	}
	return logger.Multi(console, logger.New(
		logger.WithDebug(debug),
		logger.WithJSON(true),
		logger.WithSource(true),
		logger.WithWriter(logFile),
	))
}
