package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"

	"github.com/papercomputeco/cortex/pkg/geometry"
	"github.com/papercomputeco/cortex/pkg/storage"
)

const (
	tableScan          = "scan"
	tableRegion        = "region"
	tableScanRegion    = "scan_region"
	tableScanRegionLOD = "scan_region_lod"
)

// Store implements storage.Repository over a connection or transaction.
type Store struct {
	conn    dialect.ExecQuerier
	dialect Dialect
}

// NewStore creates a Store issuing statements on conn.
func NewStore(conn dialect.ExecQuerier, d Dialect) *Store {
	return &Store{conn: conn, dialect: d}
}

func (s *Store) builder() *entsql.DialectBuilder {
	return entsql.Dialect(s.dialect.Name)
}

// query runs a built query and calls scan for each row.
func (s *Store) query(ctx context.Context, q entsql.Querier, scan func(*entsql.Rows) error) error {
	query, args := q.Query()
	rows := &entsql.Rows{}
	if err := s.conn.Query(ctx, query, args, rows); err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		if err := scan(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}

// first runs q and returns the first scanned row, or NotFoundError.
func first[T any](ctx context.Context, s *Store, q entsql.Querier, scan func(*entsql.Rows) (*T, error), notFound storage.NotFoundError) (*T, error) {
	var out *T
	err := s.query(ctx, q, func(rows *entsql.Rows) error {
		if out != nil {
			return nil
		}
		v, err := scan(rows)
		out = v
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", notFound.Entity, err)
	}
	if out == nil {
		return nil, notFound
	}
	return out, nil
}

// getOrCreate looks up an entity, inserts it when absent and looks it up
// again. A concurrent insert of the same key is absorbed by ON CONFLICT DO
// NOTHING, or by the unique violation path on backends that report one.
func getOrCreate[T any](ctx context.Context, s *Store, lookup func() (*T, error), insert *entsql.InsertBuilder, entity, key string) (*T, error) {
	found, err := lookup()
	if err == nil {
		return found, nil
	}
	var nf storage.NotFoundError
	if !errors.As(err, &nf) {
		return nil, err
	}

	query, args := insert.OnConflict(entsql.DoNothing()).Query()
	if err := s.conn.Exec(ctx, query, args, nil); err != nil {
		switch s.dialect.classify(err) {
		case UniqueViolation:
			return lookup()
		case ForeignKeyViolation:
			return nil, storage.IntegrityError{Entity: entity, Key: key, Err: err}
		default:
			return nil, fmt.Errorf("failed to insert %s: %w", entity, err)
		}
	}

	found, err = lookup()
	if errors.As(err, &nf) {
		return nil, storage.IntegrityError{Entity: entity, Key: key, Err: err}
	}
	return found, err
}

// GetOrCreateScan implements storage.Repository.
func (s *Store) GetOrCreateScan(ctx context.Context, in storage.ScanInput) (*storage.Scan, error) {
	insert := s.builder().Insert(tableScan).
		Columns("file_name", "file_size", "dimensions", "voxel_size").
		Values(in.FileName, in.FileSize, in.Dimensions, in.VoxelSize)

	return getOrCreate(ctx, s, func() (*storage.Scan, error) {
		return s.GetScan(ctx, in.FileName)
	}, insert, storage.EntityScan, in.FileName)
}

// GetOrCreateRegion implements storage.Repository.
func (s *Store) GetOrCreateRegion(ctx context.Context, in storage.RegionInput) (*storage.Region, error) {
	insert := s.builder().Insert(tableRegion).
		Columns("name", "laterality", "atlas_value").
		Values(in.Name, nullableString(in.Laterality), in.AtlasValue)

	return getOrCreate(ctx, s, func() (*storage.Region, error) {
		return s.GetRegion(ctx, in.Name)
	}, insert, storage.EntityRegion, in.Name)
}

// GetOrCreateScanRegion implements storage.Repository.
func (s *Store) GetOrCreateScanRegion(ctx context.Context, scan *storage.Scan, region *storage.Region, in storage.ScanRegionInput) (*storage.ScanRegion, error) {
	lookup := func() (*storage.ScanRegion, error) {
		return s.GetScanRegion(ctx, scan.ID, region.ID)
	}
	if found, err := lookup(); err == nil {
		return found, nil
	}

	centroid, err := geometry.EncodePoint(in.Centroid)
	if err != nil {
		return nil, err
	}
	var box any
	if in.BoundingBox != nil {
		wkt, err := geometry.EncodeBox(*in.BoundingBox)
		if err != nil {
			return nil, err
		}
		box = s.dialect.geometry(wkt)
	}

	insert := s.builder().Insert(tableScanRegion).
		Columns(
			"scan_id", "region_id", "voxel_count",
			"mean_intensity", "std_intensity", "min_intensity", "max_intensity", "median_intensity",
			"centroid", "bounding_box",
		).
		Values(
			scan.ID, region.ID, in.Stats.VoxelCount,
			in.Stats.Mean, in.Stats.Std, in.Stats.Min, in.Stats.Max, in.Stats.Median,
			s.dialect.geometry(centroid), box,
		)

	return getOrCreate(ctx, s, lookup, insert, storage.EntityScanRegion, storage.ScanRegionKey(scan.ID, region.ID))
}

// GetOrCreateScanRegionLOD implements storage.Repository.
func (s *Store) GetOrCreateScanRegionLOD(ctx context.Context, scan *storage.Scan, region *storage.Region, level storage.Level, mesh geometry.Mesh) (*storage.ScanRegionLOD, error) {
	lookup := func() (*storage.ScanRegionLOD, error) {
		return s.GetScanRegionLOD(ctx, scan.ID, region.ID, level)
	}
	if found, err := lookup(); err == nil {
		return found, nil
	}

	shape, err := geometry.EncodeSurface(mesh)
	if err != nil {
		return nil, err
	}

	insert := s.builder().Insert(tableScanRegionLOD).
		Columns("scan_id", "region_id", "level", "shape").
		Values(scan.ID, region.ID, levelArg(level), s.dialect.geometry(shape))

	return getOrCreate(ctx, s, lookup, insert, storage.EntityScanRegionLOD, storage.LODKey(scan.ID, region.ID, level))
}

// GetScan implements storage.Repository.
func (s *Store) GetScan(ctx context.Context, fileName string) (*storage.Scan, error) {
	sel := s.builder().Select(scanColumns...).
		From(s.builder().Table(tableScan)).
		Where(entsql.EQ("file_name", fileName))

	return first(ctx, s, sel, scanScan, storage.NotFoundError{Entity: storage.EntityScan, Key: fileName})
}

// GetRegion implements storage.Repository.
func (s *Store) GetRegion(ctx context.Context, name string) (*storage.Region, error) {
	sel := s.builder().Select(regionColumns...).
		From(s.builder().Table(tableRegion)).
		Where(entsql.EQ("name", name))

	return first(ctx, s, sel, scanRegion, storage.NotFoundError{Entity: storage.EntityRegion, Key: name})
}

// GetScanRegion implements storage.Repository.
func (s *Store) GetScanRegion(ctx context.Context, scanID, regionID int64) (*storage.ScanRegion, error) {
	t := s.builder().Table(tableScanRegion)
	sel := s.builder().Select(s.scanRegionColumns(t)...).
		From(t).
		Where(entsql.And(entsql.EQ(t.C("scan_id"), scanID), entsql.EQ(t.C("region_id"), regionID)))

	return first(ctx, s, sel, func(rows *entsql.Rows) (*storage.ScanRegion, error) {
		return scanScanRegion(rows)
	}, storage.NotFoundError{Entity: storage.EntityScanRegion, Key: storage.ScanRegionKey(scanID, regionID)})
}

// GetScanRegionLOD implements storage.Repository.
func (s *Store) GetScanRegionLOD(ctx context.Context, scanID, regionID int64, level storage.Level) (*storage.ScanRegionLOD, error) {
	t := s.builder().Table(tableScanRegionLOD)
	sel := s.builder().Select(s.lodColumns(t)...).
		From(t).
		Where(entsql.And(
			entsql.EQ(t.C("scan_id"), scanID),
			entsql.EQ(t.C("region_id"), regionID),
			levelPredicate(t.C("level"), level),
		))

	return first(ctx, s, sel, scanLOD, storage.NotFoundError{
		Entity: storage.EntityScanRegionLOD,
		Key:    storage.LODKey(scanID, regionID, level),
	})
}

// ListScans implements storage.Repository.
func (s *Store) ListScans(ctx context.Context) ([]*storage.Scan, error) {
	sel := s.builder().Select(scanColumns...).
		From(s.builder().Table(tableScan)).
		OrderBy("id")

	scans := []*storage.Scan{}
	err := s.query(ctx, sel, func(rows *entsql.Rows) error {
		scan, err := scanScan(rows)
		if err != nil {
			return err
		}
		scans = append(scans, scan)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list scans: %w", err)
	}
	return scans, nil
}

// ListScanRegions implements storage.Repository.
func (s *Store) ListScanRegions(ctx context.Context, scanID int64) ([]*storage.ScanRegionWithRegion, error) {
	sr := s.builder().Table(tableScanRegion)
	r := s.builder().Table(tableRegion)
	sel := s.builder().Select(append(s.scanRegionColumns(sr), r.Columns(regionColumns...)...)...).
		From(sr).
		Join(r).On(sr.C("region_id"), r.C("id")).
		Where(entsql.EQ(sr.C("scan_id"), scanID)).
		OrderBy(r.C("id"))

	out := []*storage.ScanRegionWithRegion{}
	err := s.query(ctx, sel, func(rows *entsql.Rows) error {
		var (
			item       storage.ScanRegionWithRegion
			centroid   string
			box        sql.NullString
			laterality sql.NullString
		)
		err := rows.Scan(append(scanRegionDest(&item.ScanRegion, &centroid, &box),
			&item.Region.ID, &item.Region.Name, &laterality, &item.Region.AtlasValue)...)
		if err != nil {
			return err
		}
		if err := decodeScanRegion(&item.ScanRegion, centroid, box); err != nil {
			return err
		}
		item.Region.Laterality = stringPtr(laterality)
		out = append(out, &item)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list scan regions: %w", err)
	}
	return out, nil
}

// MaxLODLevel implements storage.Repository.
func (s *Store) MaxLODLevel(ctx context.Context, scanID int64) (int, bool, error) {
	sel := s.builder().Select(entsql.Max("level")).
		From(s.builder().Table(tableScanRegionLOD)).
		Where(entsql.EQ("scan_id", scanID))

	var level sql.NullInt64
	err := s.query(ctx, sel, func(rows *entsql.Rows) error {
		return rows.Scan(&level)
	})
	if err != nil {
		return 0, false, fmt.Errorf("failed to get max lod level: %w", err)
	}
	return int(level.Int64), level.Valid, nil
}

// ListLODLevels implements storage.Repository.
func (s *Store) ListLODLevels(ctx context.Context, scanID int64) ([]storage.Level, error) {
	sel := s.builder().Select("level").
		Distinct().
		From(s.builder().Table(tableScanRegionLOD)).
		Where(entsql.EQ("scan_id", scanID))

	levels := []storage.Level{}
	err := s.query(ctx, sel, func(rows *entsql.Rows) error {
		var l storage.Level
		if err := rows.Scan(&l); err != nil {
			return err
		}
		levels = append(levels, l)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list lod levels: %w", err)
	}
	storage.SortLevels(levels)
	return levels, nil
}

// ListRegionLODs implements storage.Repository.
func (s *Store) ListRegionLODs(ctx context.Context, scanID int64, level storage.Level) ([]*storage.RegionLOD, error) {
	l := s.builder().Table(tableScanRegionLOD)
	r := s.builder().Table(tableRegion)
	sel := s.builder().Select(append(s.lodColumns(l), r.Columns(regionColumns...)...)...).
		From(l).
		Join(r).On(l.C("region_id"), r.C("id")).
		Where(entsql.And(entsql.EQ(l.C("scan_id"), scanID), levelPredicate(l.C("level"), level))).
		OrderBy(r.C("id"))

	out := []*storage.RegionLOD{}
	err := s.query(ctx, sel, func(rows *entsql.Rows) error {
		var (
			item       storage.RegionLOD
			laterality sql.NullString
		)
		err := rows.Scan(
			&item.ID, &item.ScanID, &item.RegionID, &item.Level, &item.Shape,
			&item.Region.ID, &item.Region.Name, &laterality, &item.Region.AtlasValue,
		)
		if err != nil {
			return err
		}
		item.Region.Laterality = stringPtr(laterality)
		out = append(out, &item)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list region lods: %w", err)
	}
	return out, nil
}

// RegionPairs implements storage.Repository.
func (s *Store) RegionPairs(ctx context.Context, q storage.PairQuery) ([]storage.RegionPair, error) {
	if s.dialect.Pairs != nil {
		return s.dialect.Pairs(ctx, s.conn, q)
	}

	lods, err := s.ListRegionLODs(ctx, q.ScanID, q.Level)
	if err != nil {
		return nil, err
	}
	return storage.EvaluatePairs(ctx, lods, q)
}

var (
	scanColumns   = []string{"id", "file_name", "file_size", "dimensions", "voxel_size"}
	regionColumns = []string{"id", "name", "laterality", "atlas_value"}
)

func (s *Store) scanRegionColumns(t *entsql.SelectTable) []string {
	return append(t.Columns(
		"id", "scan_id", "region_id", "voxel_count",
		"mean_intensity", "std_intensity", "min_intensity", "max_intensity", "median_intensity",
	),
		s.dialect.geometryText(t.C("centroid")),
		s.dialect.geometryText(t.C("bounding_box")),
	)
}

func (s *Store) lodColumns(t *entsql.SelectTable) []string {
	return append(t.Columns("id", "scan_id", "region_id", "level"), s.dialect.geometryText(t.C("shape")))
}

func scanScan(rows *entsql.Rows) (*storage.Scan, error) {
	var scan storage.Scan
	if err := rows.Scan(&scan.ID, &scan.FileName, &scan.FileSize, &scan.Dimensions, &scan.VoxelSize); err != nil {
		return nil, err
	}
	return &scan, nil
}

func scanRegion(rows *entsql.Rows) (*storage.Region, error) {
	var (
		region     storage.Region
		laterality sql.NullString
	)
	if err := rows.Scan(&region.ID, &region.Name, &laterality, &region.AtlasValue); err != nil {
		return nil, err
	}
	region.Laterality = stringPtr(laterality)
	return &region, nil
}

func scanScanRegion(rows *entsql.Rows) (*storage.ScanRegion, error) {
	var (
		sr       storage.ScanRegion
		centroid string
		box      sql.NullString
	)
	if err := rows.Scan(scanRegionDest(&sr, &centroid, &box)...); err != nil {
		return nil, err
	}
	if err := decodeScanRegion(&sr, centroid, box); err != nil {
		return nil, err
	}
	return &sr, nil
}

func scanRegionDest(sr *storage.ScanRegion, centroid *string, box *sql.NullString) []any {
	return []any{
		&sr.ID, &sr.ScanID, &sr.RegionID, &sr.Stats.VoxelCount,
		&sr.Stats.Mean, &sr.Stats.Std, &sr.Stats.Min, &sr.Stats.Max, &sr.Stats.Median,
		centroid, box,
	}
}

func decodeScanRegion(sr *storage.ScanRegion, centroid string, box sql.NullString) error {
	p, err := geometry.DecodePoint(centroid)
	if err != nil {
		return fmt.Errorf("decoding centroid: %w", err)
	}
	sr.Centroid = p

	if box.Valid {
		m, err := geometry.DecodeSurface(box.String)
		if err != nil {
			return fmt.Errorf("decoding bounding box: %w", err)
		}
		b := m.Bounds()
		sr.BoundingBox = &b
	}
	return nil
}

func scanLOD(rows *entsql.Rows) (*storage.ScanRegionLOD, error) {
	var lod storage.ScanRegionLOD
	if err := rows.Scan(&lod.ID, &lod.ScanID, &lod.RegionID, &lod.Level, &lod.Shape); err != nil {
		return nil, err
	}
	return &lod, nil
}

// levelPredicate matches the native level with IS NULL.
func levelPredicate(column string, level storage.Level) *entsql.Predicate {
	n, ok := level.Int()
	if !ok {
		return entsql.IsNull(column)
	}
	return entsql.EQ(column, n)
}

func levelArg(level storage.Level) any {
	n, ok := level.Int()
	if !ok {
		return nil
	}
	return n
}

func nullableString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func stringPtr(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	return &s.String
}
