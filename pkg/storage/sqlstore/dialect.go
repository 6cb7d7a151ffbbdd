// Package sqlstore implements storage.Driver on top of ent's SQL dialect
// builders. Backends supply a Dialect describing how geometry is written and
// read and how constraint errors are reported.
package sqlstore

import (
	"context"

	"entgo.io/ent/dialect"

	"github.com/papercomputeco/cortex/pkg/storage"
)

// Violation classifies a constraint failure reported by the database.
type Violation int

const (
	NoViolation Violation = iota
	UniqueViolation
	ForeignKeyViolation
)

// PairFunc evaluates a pair query in the database.
type PairFunc func(ctx context.Context, conn dialect.ExecQuerier, q storage.PairQuery) ([]storage.RegionPair, error)

// Dialect adapts Store to one SQL backend.
type Dialect struct {
	// Name is the ent dialect name, e.g. dialect.Postgres.
	Name string

	// Geometry wraps encoded geometry text as an insert argument.
	Geometry func(wkt string) any

	// GeometryText renders a geometry column expression as WKT text.
	GeometryText func(column string) string

	// Classify maps a driver error to a constraint violation.
	Classify func(err error) Violation

	// Pairs evaluates pair queries in SQL. When nil, pairs are evaluated
	// in process with storage.EvaluatePairs.
	Pairs PairFunc
}

func (d Dialect) classify(err error) Violation {
	if d.Classify == nil || err == nil {
		return NoViolation
	}
	return d.Classify(err)
}

func (d Dialect) geometry(wkt string) any {
	if d.Geometry == nil {
		return wkt
	}
	return d.Geometry(wkt)
}

func (d Dialect) geometryText(column string) string {
	if d.GeometryText == nil {
		return column
	}
	return d.GeometryText(column)
}
