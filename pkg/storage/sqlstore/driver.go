package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/papercomputeco/cortex/pkg/storage"
)

// Driver implements storage.Driver on an ent SQL driver.
type Driver struct {
	*Store

	drv     *entsql.Driver
	dialect Dialect
	logger  *slog.Logger
}

// NewDriver wraps db with the given dialect. Statement timings are logged at
// debug level.
func NewDriver(db *sql.DB, d Dialect, logger *slog.Logger) *Driver {
	drv := entsql.OpenDB(d.Name, db)
	return &Driver{
		Store:   NewStore(newTimedConn(drv, logger), d),
		drv:     drv,
		dialect: d,
		logger:  logger,
	}
}

// InTx implements storage.Driver.
func (d *Driver) InTx(ctx context.Context, fn func(storage.Repository) error) error {
	tx, err := d.drv.Tx(ctx)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}

	if err := fn(NewStore(newTimedConn(tx, d.logger), d.dialect)); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// DB returns the underlying database handle.
func (d *Driver) DB() *sql.DB {
	return d.drv.DB()
}

// Close implements storage.Driver.
func (d *Driver) Close() error {
	return d.drv.Close()
}
