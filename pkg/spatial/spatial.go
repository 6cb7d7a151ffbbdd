// Package spatial answers pairwise 3D relationship queries between the
// regions of one scan at one level of detail.
package spatial

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/papercomputeco/cortex/pkg/storage"
)

// Query selects the scan, level and predicate of a pair search.
// Epsilon is required for Within and rejected for Intersects.
type Query struct {
	ScanFile  string
	Level     storage.Level
	Predicate storage.Predicate
	Epsilon   *float64
}

// Validate checks the query without touching storage.
func (q Query) Validate() error {
	if q.ScanFile == "" {
		return &InvalidQueryError{Reason: "scan file name is required"}
	}
	if n, ok := q.Level.Int(); ok && n < 0 {
		return &InvalidQueryError{Reason: fmt.Sprintf("level %d is negative", n)}
	}

	switch q.Predicate {
	case storage.Intersects:
		if q.Epsilon != nil {
			return &InvalidQueryError{Reason: "epsilon is only valid for the within predicate"}
		}
	case storage.Within:
		if q.Epsilon == nil {
			return &InvalidQueryError{Reason: "epsilon is required for the within predicate"}
		}
		if e := *q.Epsilon; math.IsNaN(e) || math.IsInf(e, 0) || e < 0 {
			return &InvalidQueryError{Reason: fmt.Sprintf("epsilon %v must be finite and non-negative", e)}
		}
	default:
		return &InvalidQueryError{Reason: fmt.Sprintf("unknown predicate %q", q.Predicate)}
	}
	return nil
}

// ParseQuery builds a Query from text parameters. An empty level is the
// native level, an empty predicate is Intersects, and a non-empty epsilon
// selects Within when no predicate is given.
func ParseQuery(scanFile, level, predicate, epsilon string) (Query, error) {
	q := Query{ScanFile: scanFile}

	lvl, err := storage.ParseLevel(level)
	if err != nil {
		return Query{}, &InvalidQueryError{Reason: err.Error()}
	}
	q.Level = lvl

	epsilon = strings.TrimSpace(epsilon)
	if epsilon != "" {
		e, err := strconv.ParseFloat(epsilon, 64)
		if err != nil {
			return Query{}, &InvalidQueryError{Reason: fmt.Sprintf("epsilon %q is not a number", epsilon)}
		}
		q.Epsilon = &e
	}

	switch {
	case predicate != "":
		p, ok := storage.ParsePredicate(strings.ToLower(predicate))
		if !ok {
			return Query{}, &InvalidQueryError{Reason: fmt.Sprintf("unknown predicate %q", predicate)}
		}
		q.Predicate = p
	case q.Epsilon != nil:
		q.Predicate = storage.Within
	default:
		q.Predicate = storage.Intersects
	}

	return q, q.Validate()
}

// Result holds the matching pairs and how they were found.
type Result struct {
	Scan      *storage.Scan     `json:"scan"`
	Level     storage.Level     `json:"level"`
	Predicate storage.Predicate `json:"predicate"`
	Epsilon   *float64          `json:"epsilon,omitempty"`
	LODCount  int               `json:"lod_count"`

	// Candidates is the number of unordered region pairs considered.
	Candidates int                  `json:"candidates"`
	Pairs      []storage.RegionPair `json:"pairs"`
	Elapsed    time.Duration        `json:"elapsed_ns"`
}

// Finder runs spatial queries against a repository.
type Finder struct {
	repo   storage.Repository
	logger *slog.Logger
}

// NewFinder creates a Finder.
func NewFinder(repo storage.Repository, logger *slog.Logger) *Finder {
	return &Finder{repo: repo, logger: logger}
}

// Find resolves the scan, checks that it has surfaces at the level and
// evaluates the predicate over every region pair.
func (f *Finder) Find(ctx context.Context, q Query) (*Result, error) {
	start := time.Now()

	pq, scan, lods, err := f.prepare(ctx, q)
	if err != nil {
		return nil, err
	}

	pairs, err := f.repo.RegionPairs(ctx, pq)
	if err != nil {
		return nil, fmt.Errorf("evaluating %s pairs for scan %s: %w", q.Predicate, q.ScanFile, err)
	}

	result := &Result{
		Scan:       scan,
		Level:      q.Level,
		Predicate:  q.Predicate,
		Epsilon:    q.Epsilon,
		LODCount:   lods,
		Candidates: lods * (lods - 1) / 2,
		Pairs:      pairs,
		Elapsed:    time.Since(start),
	}

	f.logger.Debug("spatial query",
		"scan", q.ScanFile,
		"level", q.Level.String(),
		"predicate", string(q.Predicate),
		"candidates", result.Candidates,
		"pairs", len(pairs),
		"elapsed_ms", float64(result.Elapsed.Microseconds())/1000,
	)

	return result, nil
}

// Explain returns the database plan of the pair query for q.
func (f *Finder) Explain(ctx context.Context, q Query) ([]string, error) {
	inspector, ok := f.repo.(storage.SpatialInspector)
	if !ok {
		return nil, ErrExplainUnsupported
	}

	pq, _, _, err := f.prepare(ctx, q)
	if err != nil {
		return nil, err
	}
	return inspector.ExplainPairs(ctx, pq)
}

// Levels returns the levels stored for a scan, native first, and the max
// integer level when there is one.
func (f *Finder) Levels(ctx context.Context, scanFile string) ([]storage.Level, int, bool, error) {
	scan, err := f.repo.GetScan(ctx, scanFile)
	if err != nil {
		return nil, 0, false, err
	}

	levels, err := f.repo.ListLODLevels(ctx, scan.ID)
	if err != nil {
		return nil, 0, false, fmt.Errorf("listing levels for scan %s: %w", scanFile, err)
	}

	top, ok, err := f.repo.MaxLODLevel(ctx, scan.ID)
	if err != nil {
		return nil, 0, false, fmt.Errorf("reading max level for scan %s: %w", scanFile, err)
	}
	return levels, top, ok, nil
}

func (f *Finder) prepare(ctx context.Context, q Query) (storage.PairQuery, *storage.Scan, int, error) {
	if err := q.Validate(); err != nil {
		return storage.PairQuery{}, nil, 0, err
	}

	scan, err := f.repo.GetScan(ctx, q.ScanFile)
	if err != nil {
		return storage.PairQuery{}, nil, 0, err
	}

	regions, err := f.repo.ListScanRegions(ctx, scan.ID)
	if err != nil {
		return storage.PairQuery{}, nil, 0, fmt.Errorf("listing regions for scan %s: %w", q.ScanFile, err)
	}
	if len(regions) == 0 {
		return storage.PairQuery{}, nil, 0, &NoRegionsError{ScanFile: q.ScanFile}
	}

	lods, err := f.repo.ListRegionLODs(ctx, scan.ID, q.Level)
	if err != nil {
		return storage.PairQuery{}, nil, 0, fmt.Errorf("listing surfaces for scan %s: %w", q.ScanFile, err)
	}
	if len(lods) == 0 {
		noLOD := &NoLODError{ScanFile: q.ScanFile, Level: q.Level}
		noLOD.MaxLevel, noLOD.HasMax, err = f.repo.MaxLODLevel(ctx, scan.ID)
		if err != nil {
			return storage.PairQuery{}, nil, 0, fmt.Errorf("reading max level for scan %s: %w", q.ScanFile, err)
		}
		return storage.PairQuery{}, nil, 0, noLOD
	}

	pq := storage.PairQuery{
		ScanID:    scan.ID,
		Level:     q.Level,
		Predicate: q.Predicate,
	}
	if q.Epsilon != nil {
		pq.Epsilon = *q.Epsilon
	}
	return pq, scan, len(lods), nil
}
