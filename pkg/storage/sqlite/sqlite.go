// Package sqlite provides a SQLite-backed storage driver. Geometry is stored
// as WKT text and pair queries are evaluated in process.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"

	"entgo.io/ent/dialect"
	"github.com/golang-migrate/migrate/v4/database"
	sqlitemigrate "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/mattn/go-sqlite3"

	"github.com/papercomputeco/cortex/pkg/logger"
	"github.com/papercomputeco/cortex/pkg/storage/sqlstore"
)

//go:embed migrations/*.sql
var migrations embed.FS

// SQLiteDriver implements storage.Driver using SQLite.
type SQLiteDriver struct {
	*sqlstore.Driver
}

// Option configures a SQLiteDriver.
type Option func(*options)

type options struct {
	logger *slog.Logger
}

// WithLogger sets the logger used for statement timings and migrations.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// NewSQLiteDriver creates a new SQLite-backed driver and migrates the schema.
// The dbPath can be a file path or ":memory:" for an in-memory database.
func NewSQLiteDriver(ctx context.Context, dbPath string, opts ...Option) (*SQLiteDriver, error) {
	o := &options{logger: logger.Nop()}
	for _, opt := range opts {
		opt(o)
	}

	// Open the database using the github.com/mattn/go-sqlite3 driver (registered as "sqlite3")
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single connection keeps ":memory:" databases shared and pragmas in effect.
	db.SetMaxOpenConns(1)

	// SQLite-specific pragmas
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if err := NewMigrator(db, o.logger).Up(); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteDriver{
		Driver: sqlstore.NewDriver(db, newDialect(), o.logger),
	}, nil
}

// NewMigrator creates a migrator for the embedded schema on db. The
// migrate instance is never closed because that would close db.
func NewMigrator(db *sql.DB, l *slog.Logger) *sqlstore.Migrator {
	open := func() (database.Driver, string, error) {
		drv, err := sqlitemigrate.WithInstance(db, &sqlitemigrate.Config{})
		return drv, "sqlite3", err
	}
	return sqlstore.NewMigrator(migrations, "migrations", open, false, l)
}

func newDialect() sqlstore.Dialect {
	return sqlstore.Dialect{
		Name:     dialect.SQLite,
		Classify: classify,
	}
}

func classify(err error) sqlstore.Violation {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return sqlstore.NoViolation
	}
	switch sqliteErr.ExtendedCode {
	case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
		return sqlstore.UniqueViolation
	case sqlite3.ErrConstraintForeignKey:
		return sqlstore.ForeignKeyViolation
	}
	return sqlstore.NoViolation
}
