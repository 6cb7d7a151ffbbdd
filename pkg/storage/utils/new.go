package storageutils

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/papercomputeco/cortex/pkg/config"
	"github.com/papercomputeco/cortex/pkg/storage"
	"github.com/papercomputeco/cortex/pkg/storage/inmemory"
	"github.com/papercomputeco/cortex/pkg/storage/postgres"
	"github.com/papercomputeco/cortex/pkg/storage/sqlite"
)

// NewDriver opens the repository backend selected by c.Driver.
func NewDriver(ctx context.Context, c config.StorageConfig, logger *slog.Logger) (storage.Driver, error) {
	switch c.Driver {
	case "postgres":
		dsn, err := config.PostgresDSN(c, nil)
		if err != nil {
			return nil, err
		}
		driver, err := postgres.NewDriver(ctx, dsn,
			postgres.WithSRID(c.SRID),
			postgres.WithLogger(logger),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create PostgreSQL driver: %w", err)
		}
		logger.Info("using PostgreSQL storage", "srid", c.SRID)
		return driver, nil

	case "sqlite":
		if c.SQLitePath == "" {
			return nil, &config.ConfigurationError{Missing: []string{"storage.sqlite_path"}}
		}
		driver, err := sqlite.NewSQLiteDriver(ctx, c.SQLitePath, sqlite.WithLogger(logger))
		if err != nil {
			return nil, fmt.Errorf("failed to create SQLite driver: %w", err)
		}
		logger.Info("using SQLite storage", "path", c.SQLitePath)
		return driver, nil

	case "inmemory", "":
		logger.Info("using in-memory storage")
		return inmemory.NewDriver(), nil

	default:
		return nil, fmt.Errorf("unsupported storage driver: %s", c.Driver)
	}
}
