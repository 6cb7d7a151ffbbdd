package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// DatabaseFunc opens a migrate database driver and names it.
type DatabaseFunc func() (database.Driver, string, error)

// Migrator applies embedded schema migrations.
type Migrator struct {
	source fs.FS
	dir    string
	open   DatabaseFunc
	logger *slog.Logger

	// closeAfter closes the migrate instance after each operation. Closing
	// also closes the database handle, so it is only set when open returns
	// a dedicated handle.
	closeAfter bool
}

// NewMigrator creates a Migrator reading migrations from dir in source.
func NewMigrator(source fs.FS, dir string, open DatabaseFunc, closeAfter bool, logger *slog.Logger) *Migrator {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Migrator{
		source:     source,
		dir:        dir,
		open:       open,
		logger:     logger,
		closeAfter: closeAfter,
	}
}

// Up runs all pending migrations. It returns nil when the schema is current.
func (m *Migrator) Up() error {
	return m.run(func(mi *migrate.Migrate) error {
		if err := mi.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("migration up failed: %w", err)
		}
		return nil
	})
}

// Down rolls back the most recent migration.
func (m *Migrator) Down() error {
	return m.run(func(mi *migrate.Migrate) error {
		if err := mi.Steps(-1); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("migration down failed: %w", err)
		}
		return nil
	})
}

// To migrates up or down to version.
func (m *Migrator) To(version uint) error {
	return m.run(func(mi *migrate.Migrate) error {
		if err := mi.Migrate(version); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("migration to version %d failed: %w", version, err)
		}
		return nil
	})
}

// Force sets the recorded version without running migrations. It is used to
// recover from a dirty migration.
func (m *Migrator) Force(version int) error {
	return m.run(func(mi *migrate.Migrate) error {
		if err := mi.Force(version); err != nil {
			return fmt.Errorf("force migration to version %d failed: %w", version, err)
		}
		return nil
	})
}

// Version returns the current version and dirty flag, or 0 when no
// migration has been applied.
func (m *Migrator) Version() (uint, bool, error) {
	var (
		version uint
		dirty   bool
	)
	err := m.run(func(mi *migrate.Migrate) error {
		var err error
		version, dirty, err = mi.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			return nil
		}
		return err
	})
	return version, dirty, err
}

func (m *Migrator) run(fn func(*migrate.Migrate) error) error {
	src, err := iofs.New(m.source, m.dir)
	if err != nil {
		return fmt.Errorf("failed to open migrations: %w", err)
	}

	db, name, err := m.open()
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	mi, err := migrate.NewWithInstance("iofs", src, name, db)
	if err != nil {
		if m.closeAfter {
			_ = db.Close()
		}
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	mi.Log = &migrateLogger{logger: m.logger}

	if m.closeAfter {
		defer func() {
			if srcErr, dbErr := mi.Close(); srcErr != nil || dbErr != nil {
				m.logger.Warn("closing migrate instance", "source_error", srcErr, "database_error", dbErr)
			}
		}()
	}

	return fn(mi)
}

// migrateLogger implements migrate.Logger on slog.
type migrateLogger struct {
	logger *slog.Logger
}

func (l *migrateLogger) Printf(format string, v ...any) {
	l.logger.Info(strings.TrimSpace(fmt.Sprintf(format, v...)), "component", "migrate")
}

func (l *migrateLogger) Verbose() bool {
	return l.logger.Enabled(context.Background(), slog.LevelDebug)
}
