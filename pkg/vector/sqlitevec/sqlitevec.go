// Package sqlitevec provides a SQLite-backed centroid index using sqlite-vec.
package sqlitevec

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/papercomputeco/cortex/pkg/vector"
)

// dimensions of a centroid embedding: x, y, z.
const dimensions = 3

// SQLiteVecIndex implements vector.CentroidIndex using SQLite with sqlite-vec.
type SQLiteVecIndex struct {
	db     *sql.DB
	logger *slog.Logger
}

// Config holds configuration for the SQLite vec index.
type Config struct {
	// DBPath is the path to the SQLite database file.
	// Use ":memory:" for an in-memory database.
	DBPath string
}

// NewSQLiteVecIndex creates a new centroid index backed by sqlite-vec.
func NewSQLiteVecIndex(c Config, logger *slog.Logger) (*SQLiteVecIndex, error) {
	// enable connection to have sqlite-vec extension
	sqlite_vec.Auto()

	if c.DBPath == "" {
		return nil, errors.New("database path is required")
	}

	db, err := sql.Open("sqlite3", c.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(1)

	// Verify sqlite-vec is loaded
	var vecVersion string
	if err := db.QueryRow("SELECT vec_version()").Scan(&vecVersion); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite-vec not available: %w", err)
	}

	// vec0 virtual tables use integer rowids, so centroid ids and their
	// attributes live in a mapping table.
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS vec_centroids (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			centroid_id TEXT NOT NULL UNIQUE,
			scan_file TEXT NOT NULL,
			region_name TEXT NOT NULL,
			scan_region_id INTEGER NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating centroids table: %w", err)
	}

	createVec := fmt.Sprintf(
		`CREATE VIRTUAL TABLE IF NOT EXISTS vec_centroid_points USING vec0(point float[%d])`,
		dimensions,
	)
	if _, err := db.Exec(createVec); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating vec0 table: %w", err)
	}

	logger.Info("sqlite-vec centroid index initialized",
		"db_path", c.DBPath,
		"vec_version", vecVersion,
	)

	return &SQLiteVecIndex{
		db:     db,
		logger: logger,
	}, nil
}

// serializePoint converts a point to a little-endian float32 blob
// suitable for the sqlite-vec BLOB format.
func serializePoint(p r3.Vec) []byte {
	buf := make([]byte, dimensions*4)
	for i, f := range []float64{p.X, p.Y, p.Z} {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(float32(f)))
	}
	return buf
}

// deserializePoint converts a little-endian float32 blob back to a point.
func deserializePoint(b []byte) (r3.Vec, error) {
	if len(b) != dimensions*4 {
		return r3.Vec{}, fmt.Errorf("invalid point blob length %d: want %d", len(b), dimensions*4)
	}
	coord := func(i int) float64 {
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:])))
	}
	return r3.Vec{X: coord(0), Y: coord(1), Z: coord(2)}, nil
}

// Upsert stores centroids, replacing any with the same ID.
func (d *SQLiteVecIndex) Upsert(ctx context.Context, centroids []vector.Centroid) error {
	if len(centroids) == 0 {
		return nil
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, c := range centroids {
		blob := serializePoint(c.Point)

		var existingRowID int64
		err = tx.QueryRowContext(ctx,
			`SELECT rowid FROM vec_centroids WHERE centroid_id = ?`, c.ID,
		).Scan(&existingRowID)

		switch {
		case err == nil:
			if _, err := tx.ExecContext(ctx,
				`UPDATE vec_centroids SET scan_file = ?, region_name = ?, scan_region_id = ? WHERE rowid = ?`,
				c.ScanFile, c.RegionName, c.ScanRegionID, existingRowID,
			); err != nil {
				return fmt.Errorf("updating centroid %s: %w", c.ID, err)
			}

			// vec0 does not support UPDATE
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM vec_centroid_points WHERE rowid = ?`, existingRowID,
			); err != nil {
				return fmt.Errorf("deleting old point for centroid %s: %w", c.ID, err)
			}

			if _, err := tx.ExecContext(ctx,
				`INSERT INTO vec_centroid_points(rowid, point) VALUES (?, ?)`,
				existingRowID, blob,
			); err != nil {
				return fmt.Errorf("re-inserting point for centroid %s: %w", c.ID, err)
			}
		case errors.Is(err, sql.ErrNoRows):
			result, err := tx.ExecContext(ctx,
				`INSERT INTO vec_centroids(centroid_id, scan_file, region_name, scan_region_id) VALUES (?, ?, ?, ?)`,
				c.ID, c.ScanFile, c.RegionName, c.ScanRegionID,
			)
			if err != nil {
				return fmt.Errorf("inserting centroid %s: %w", c.ID, err)
			}

			rowID, err := result.LastInsertId()
			if err != nil {
				return fmt.Errorf("getting rowid for centroid %s: %w", c.ID, err)
			}

			if _, err := tx.ExecContext(ctx,
				`INSERT INTO vec_centroid_points(rowid, point) VALUES (?, ?)`,
				rowID, blob,
			); err != nil {
				return fmt.Errorf("inserting point for centroid %s: %w", c.ID, err)
			}
		default:
			return fmt.Errorf("checking for existing centroid %s: %w", c.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	d.logger.Debug("upserted centroids to sqlite-vec", "count", len(centroids))

	return nil
}

// Nearest returns the k centroids closest to p by L2 distance.
func (d *SQLiteVecIndex) Nearest(ctx context.Context, p r3.Vec, k int) ([]vector.Match, error) {
	if k <= 0 {
		k = vector.DefaultK
	}

	rows, err := d.db.QueryContext(ctx, `
		SELECT
			c.centroid_id,
			c.scan_file,
			c.region_name,
			c.scan_region_id,
			vp.point,
			vp.distance
		FROM vec_centroid_points vp
		INNER JOIN vec_centroids c ON c.rowid = vp.rowid
		WHERE vp.point MATCH ?
			AND vp.k = ?
		ORDER BY vp.distance, c.centroid_id
	`, serializePoint(p), k)
	if err != nil {
		return nil, fmt.Errorf("querying centroids: %w", err)
	}
	defer rows.Close()

	matches := []vector.Match{}
	for rows.Next() {
		var m vector.Match
		var blob []byte
		if err := rows.Scan(&m.ID, &m.ScanFile, &m.RegionName, &m.ScanRegionID, &blob, &m.Distance); err != nil {
			return nil, fmt.Errorf("scanning query result: %w", err)
		}
		if m.Point, err = deserializePoint(blob); err != nil {
			return nil, err
		}
		matches = append(matches, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating query results: %w", err)
	}

	d.logger.Debug("queried sqlite-vec", "results", len(matches))

	return matches, nil
}

// Get retrieves centroids by their IDs.
func (d *SQLiteVecIndex) Get(ctx context.Context, ids []string) ([]vector.Centroid, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}

	query := fmt.Sprintf(`
		SELECT c.centroid_id, c.scan_file, c.region_name, c.scan_region_id, vp.point
		FROM vec_centroids c
		INNER JOIN vec_centroid_points vp ON vp.rowid = c.rowid
		WHERE c.centroid_id IN (%s)
		ORDER BY c.centroid_id
	`, strings.Join(placeholders, ","))

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying centroids: %w", err)
	}
	defer rows.Close()

	centroids := []vector.Centroid{}
	for rows.Next() {
		var c vector.Centroid
		var blob []byte
		if err := rows.Scan(&c.ID, &c.ScanFile, &c.RegionName, &c.ScanRegionID, &blob); err != nil {
			return nil, fmt.Errorf("scanning centroid: %w", err)
		}
		if c.Point, err = deserializePoint(blob); err != nil {
			return nil, err
		}
		centroids = append(centroids, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating centroids: %w", err)
	}

	return centroids, nil
}

// Close releases resources held by the index.
func (d *SQLiteVecIndex) Close() error {
	return d.db.Close()
}
