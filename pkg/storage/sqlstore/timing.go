package sqlstore

import (
	"context"
	"log/slog"
	"time"

	"entgo.io/ent/dialect"
)

// timedConn logs the elapsed time of every statement at debug level.
type timedConn struct {
	dialect.ExecQuerier
	logger *slog.Logger
}

func newTimedConn(conn dialect.ExecQuerier, logger *slog.Logger) dialect.ExecQuerier {
	if logger == nil || !logger.Enabled(context.Background(), slog.LevelDebug) {
		return conn
	}
	return &timedConn{ExecQuerier: conn, logger: logger}
}

func (c *timedConn) Exec(ctx context.Context, query string, args, v any) error {
	start := time.Now()
	err := c.ExecQuerier.Exec(ctx, query, args, v)
	c.log(ctx, query, start, err)
	return err
}

func (c *timedConn) Query(ctx context.Context, query string, args, v any) error {
	start := time.Now()
	err := c.ExecQuerier.Query(ctx, query, args, v)
	c.log(ctx, query, start, err)
	return err
}

func (c *timedConn) log(ctx context.Context, query string, start time.Time, err error) {
	attrs := []any{
		"sql", query,
		"elapsed_ms", float64(time.Since(start).Microseconds()) / 1000,
	}
	if err != nil {
		attrs = append(attrs, "error", err)
	}
	c.logger.DebugContext(ctx, "query executed", attrs...)
}
