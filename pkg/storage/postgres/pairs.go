package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"

	"github.com/papercomputeco/cortex/pkg/storage"
)

// pairQuery builds the self-join of scan_region_lod for q. Candidate pairs
// are restricted to la.region_id < lb.region_id at the same level.
func pairQuery(q storage.PairQuery) (string, []any, error) {
	args := []any{q.ScanID}
	level := "la.level IS NULL AND lb.level IS NULL"
	if n, ok := q.Level.Int(); ok {
		args = append(args, n)
		level = fmt.Sprintf("la.level = $%d AND lb.level = $%d", len(args), len(args))
	}

	var (
		extra, predicate, order string
	)
	switch q.Predicate {
	case storage.Intersects:
		extra = "NULL::double precision AS distance, TRUE AS intersects"
		predicate = "ST_3DIntersects(la.shape, lb.shape)"
		order = "a.id, b.id"
	case storage.Within:
		args = append(args, q.Epsilon)
		extra = "ST_3DDistance(la.shape, lb.shape) AS distance, ST_3DIntersects(la.shape, lb.shape) AS intersects"
		predicate = fmt.Sprintf("ST_3DDWithin(la.shape, lb.shape, $%d)", len(args))
		order = "distance, a.id, b.id"
	default:
		return "", nil, fmt.Errorf("unknown predicate %q", q.Predicate)
	}

	query := strings.Join([]string{
		"SELECT a.id, a.name, a.laterality, a.atlas_value,",
		"b.id, b.name, b.laterality, b.atlas_value,",
		extra,
		"FROM scan_region_lod la",
		"JOIN scan_region_lod lb ON lb.scan_id = la.scan_id AND lb.region_id > la.region_id",
		"JOIN region a ON a.id = la.region_id",
		"JOIN region b ON b.id = lb.region_id",
		"WHERE la.scan_id = $1 AND " + level + " AND " + predicate,
		"ORDER BY " + order,
	}, " ")
	return query, args, nil
}

func regionPairs(ctx context.Context, conn dialect.ExecQuerier, q storage.PairQuery) ([]storage.RegionPair, error) {
	query, args, err := pairQuery(q)
	if err != nil {
		return nil, err
	}

	rows := &entsql.Rows{}
	if err := conn.Query(ctx, query, args, rows); err != nil {
		return nil, fmt.Errorf("failed to query region pairs: %w", err)
	}
	defer rows.Close()

	pairs := []storage.RegionPair{}
	for rows.Next() {
		var (
			p        storage.RegionPair
			latA     sql.NullString
			latB     sql.NullString
			distance sql.NullFloat64
		)
		err := rows.Scan(
			&p.A.ID, &p.A.Name, &latA, &p.A.AtlasValue,
			&p.B.ID, &p.B.Name, &latB, &p.B.AtlasValue,
			&distance, &p.Intersects,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan region pair: %w", err)
		}
		p.A.Laterality = nullString(latA)
		p.B.Laterality = nullString(latB)
		if distance.Valid {
			d := distance.Float64
			p.Distance = &d
		}
		pairs = append(pairs, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read region pairs: %w", err)
	}
	return pairs, nil
}

// SpatialIndexes implements storage.SpatialInspector.
func (d *Driver) SpatialIndexes(ctx context.Context) ([]storage.SpatialIndex, error) {
	rows, err := d.DB().QueryContext(ctx,
		`SELECT tablename, indexname, indexdef FROM pg_indexes
		 WHERE tablename IN ('scan_region', 'scan_region_lod') AND indexdef ILIKE '%USING gist%'
		 ORDER BY tablename, indexname`)
	if err != nil {
		return nil, fmt.Errorf("failed to list spatial indexes: %w", err)
	}
	defer rows.Close()

	indexes := []storage.SpatialIndex{}
	for rows.Next() {
		var idx storage.SpatialIndex
		if err := rows.Scan(&idx.Table, &idx.Name, &idx.Definition); err != nil {
			return nil, fmt.Errorf("failed to scan spatial index: %w", err)
		}
		indexes = append(indexes, idx)
	}
	return indexes, rows.Err()
}

// ExplainPairs implements storage.SpatialInspector. The pair query is
// executed by EXPLAIN ANALYZE.
func (d *Driver) ExplainPairs(ctx context.Context, q storage.PairQuery) ([]string, error) {
	query, args, err := pairQuery(q)
	if err != nil {
		return nil, err
	}

	rows, err := d.DB().QueryContext(ctx, "EXPLAIN (ANALYZE, FORMAT TEXT) "+query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to explain region pairs: %w", err)
	}
	defer rows.Close()

	plan := []string{}
	for rows.Next() {
		var line string
		if err := rows.Scan(&line); err != nil {
			return nil, fmt.Errorf("failed to scan plan: %w", err)
		}
		plan = append(plan, line)
	}
	return plan, rows.Err()
}

func nullString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	return &s.String
}
