// Package inmemory provides a map-backed storage driver with the same
// uniqueness and referential rules as the SQL backends.
package inmemory

import (
	"context"
	"errors"
	"maps"
	"sort"
	"sync"

	"github.com/papercomputeco/cortex/pkg/geometry"
	"github.com/papercomputeco/cortex/pkg/storage"
)

// Driver implements storage.Driver using in-memory maps.
type Driver struct {
	// mu guards data. InTx holds it exclusively for the whole transaction.
	mu   sync.RWMutex
	data *store
}

// NewDriver creates a new in-memory driver.
func NewDriver() *Driver {
	return &Driver{data: newStore()}
}

// InTx implements storage.Driver. fn runs against a copy of the data that
// replaces the live data only when fn succeeds.
func (d *Driver) InTx(_ context.Context, fn func(storage.Repository) error) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	tx := d.data.clone()
	if err := fn(tx); err != nil {
		return err
	}
	d.data = tx
	return nil
}

// Close implements storage.Driver.
func (d *Driver) Close() error {
	return nil
}

func (d *Driver) GetOrCreateScan(ctx context.Context, in storage.ScanInput) (*storage.Scan, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.data.GetOrCreateScan(ctx, in)
}

func (d *Driver) GetOrCreateRegion(ctx context.Context, in storage.RegionInput) (*storage.Region, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.data.GetOrCreateRegion(ctx, in)
}

func (d *Driver) GetOrCreateScanRegion(ctx context.Context, scan *storage.Scan, region *storage.Region, in storage.ScanRegionInput) (*storage.ScanRegion, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.data.GetOrCreateScanRegion(ctx, scan, region, in)
}

func (d *Driver) GetOrCreateScanRegionLOD(ctx context.Context, scan *storage.Scan, region *storage.Region, level storage.Level, mesh geometry.Mesh) (*storage.ScanRegionLOD, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.data.GetOrCreateScanRegionLOD(ctx, scan, region, level, mesh)
}

func (d *Driver) GetScan(ctx context.Context, fileName string) (*storage.Scan, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.data.GetScan(ctx, fileName)
}

func (d *Driver) GetRegion(ctx context.Context, name string) (*storage.Region, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.data.GetRegion(ctx, name)
}

func (d *Driver) GetScanRegion(ctx context.Context, scanID, regionID int64) (*storage.ScanRegion, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.data.GetScanRegion(ctx, scanID, regionID)
}

func (d *Driver) GetScanRegionLOD(ctx context.Context, scanID, regionID int64, level storage.Level) (*storage.ScanRegionLOD, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.data.GetScanRegionLOD(ctx, scanID, regionID, level)
}

func (d *Driver) ListScans(ctx context.Context) ([]*storage.Scan, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.data.ListScans(ctx)
}

func (d *Driver) ListScanRegions(ctx context.Context, scanID int64) ([]*storage.ScanRegionWithRegion, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.data.ListScanRegions(ctx, scanID)
}

func (d *Driver) MaxLODLevel(ctx context.Context, scanID int64) (int, bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.data.MaxLODLevel(ctx, scanID)
}

func (d *Driver) ListLODLevels(ctx context.Context, scanID int64) ([]storage.Level, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.data.ListLODLevels(ctx, scanID)
}

func (d *Driver) ListRegionLODs(ctx context.Context, scanID int64, level storage.Level) ([]*storage.RegionLOD, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.data.ListRegionLODs(ctx, scanID, level)
}

func (d *Driver) RegionPairs(ctx context.Context, q storage.PairQuery) ([]storage.RegionPair, error) {
	d.mu.RLock()
	lods, err := d.data.ListRegionLODs(ctx, q.ScanID, q.Level)
	d.mu.RUnlock()
	if err != nil {
		return nil, err
	}
	return storage.EvaluatePairs(ctx, lods, q)
}

type scanRegionKey struct {
	scanID, regionID int64
}

type lodKey struct {
	scanID, regionID int64
	level            storage.Level
}

// store is the unlocked repository state.
type store struct {
	scans       map[string]storage.Scan
	regions     map[string]storage.Region
	regionsByID map[int64]storage.Region
	scanRegions map[scanRegionKey]storage.ScanRegion
	lods        map[lodKey]storage.ScanRegionLOD

	lastScanID, lastRegionID, lastScanRegionID, lastLODID int64
}

func newStore() *store {
	return &store{
		scans:       map[string]storage.Scan{},
		regions:     map[string]storage.Region{},
		regionsByID: map[int64]storage.Region{},
		scanRegions: map[scanRegionKey]storage.ScanRegion{},
		lods:        map[lodKey]storage.ScanRegionLOD{},
	}
}

func (s *store) clone() *store {
	c := *s
	c.scans = maps.Clone(s.scans)
	c.regions = maps.Clone(s.regions)
	c.regionsByID = maps.Clone(s.regionsByID)
	c.scanRegions = maps.Clone(s.scanRegions)
	c.lods = maps.Clone(s.lods)
	return &c
}

func (s *store) GetOrCreateScan(ctx context.Context, in storage.ScanInput) (*storage.Scan, error) {
	if scan, err := s.GetScan(ctx, in.FileName); err == nil {
		return scan, nil
	}

	s.lastScanID++
	scan := storage.Scan{
		ID:         s.lastScanID,
		FileName:   in.FileName,
		FileSize:   in.FileSize,
		Dimensions: in.Dimensions,
		VoxelSize:  in.VoxelSize,
	}
	s.scans[scan.FileName] = scan
	return &scan, nil
}

func (s *store) GetOrCreateRegion(ctx context.Context, in storage.RegionInput) (*storage.Region, error) {
	if region, err := s.GetRegion(ctx, in.Name); err == nil {
		return region, nil
	}

	s.lastRegionID++
	region := storage.Region{
		ID:         s.lastRegionID,
		Name:       in.Name,
		Laterality: in.Laterality,
		AtlasValue: in.AtlasValue,
	}
	s.regions[region.Name] = region
	s.regionsByID[region.ID] = region
	return &region, nil
}

func (s *store) GetOrCreateScanRegion(ctx context.Context, scan *storage.Scan, region *storage.Region, in storage.ScanRegionInput) (*storage.ScanRegion, error) {
	if sr, err := s.GetScanRegion(ctx, scan.ID, region.ID); err == nil {
		return sr, nil
	}

	key := storage.ScanRegionKey(scan.ID, region.ID)
	if !s.hasScan(scan.ID) || !s.hasRegion(region.ID) {
		return nil, storage.IntegrityError{
			Entity: storage.EntityScanRegion,
			Key:    key,
			Err:    errors.New("scan or region does not exist"),
		}
	}
	if _, err := geometry.EncodePoint(in.Centroid); err != nil {
		return nil, err
	}
	if in.BoundingBox != nil {
		if _, err := geometry.EncodeBox(*in.BoundingBox); err != nil {
			return nil, err
		}
	}

	s.lastScanRegionID++
	sr := storage.ScanRegion{
		ID:          s.lastScanRegionID,
		ScanID:      scan.ID,
		RegionID:    region.ID,
		Stats:       in.Stats,
		Centroid:    in.Centroid,
		BoundingBox: in.BoundingBox,
	}
	if sr.BoundingBox != nil {
		box := sr.BoundingBox.Canon()
		sr.BoundingBox = &box
	}
	s.scanRegions[scanRegionKey{scan.ID, region.ID}] = sr
	return &sr, nil
}

func (s *store) GetOrCreateScanRegionLOD(ctx context.Context, scan *storage.Scan, region *storage.Region, level storage.Level, mesh geometry.Mesh) (*storage.ScanRegionLOD, error) {
	if lod, err := s.GetScanRegionLOD(ctx, scan.ID, region.ID, level); err == nil {
		return lod, nil
	}

	shape, err := geometry.EncodeSurface(mesh)
	if err != nil {
		return nil, err
	}
	if _, ok := s.scanRegions[scanRegionKey{scan.ID, region.ID}]; !ok {
		return nil, storage.IntegrityError{
			Entity: storage.EntityScanRegionLOD,
			Key:    storage.LODKey(scan.ID, region.ID, level),
			Err:    errors.New("scan region does not exist"),
		}
	}

	s.lastLODID++
	lod := storage.ScanRegionLOD{
		ID:       s.lastLODID,
		ScanID:   scan.ID,
		RegionID: region.ID,
		Level:    level,
		Shape:    shape,
	}
	s.lods[lodKey{scan.ID, region.ID, level}] = lod
	return &lod, nil
}

func (s *store) GetScan(_ context.Context, fileName string) (*storage.Scan, error) {
	scan, ok := s.scans[fileName]
	if !ok {
		return nil, storage.NotFoundError{Entity: storage.EntityScan, Key: fileName}
	}
	return &scan, nil
}

func (s *store) GetRegion(_ context.Context, name string) (*storage.Region, error) {
	region, ok := s.regions[name]
	if !ok {
		return nil, storage.NotFoundError{Entity: storage.EntityRegion, Key: name}
	}
	return &region, nil
}

func (s *store) GetScanRegion(_ context.Context, scanID, regionID int64) (*storage.ScanRegion, error) {
	sr, ok := s.scanRegions[scanRegionKey{scanID, regionID}]
	if !ok {
		return nil, storage.NotFoundError{Entity: storage.EntityScanRegion, Key: storage.ScanRegionKey(scanID, regionID)}
	}
	return &sr, nil
}

func (s *store) GetScanRegionLOD(_ context.Context, scanID, regionID int64, level storage.Level) (*storage.ScanRegionLOD, error) {
	lod, ok := s.lods[lodKey{scanID, regionID, level}]
	if !ok {
		return nil, storage.NotFoundError{Entity: storage.EntityScanRegionLOD, Key: storage.LODKey(scanID, regionID, level)}
	}
	return &lod, nil
}

func (s *store) ListScans(_ context.Context) ([]*storage.Scan, error) {
	scans := make([]*storage.Scan, 0, len(s.scans))
	for _, scan := range s.scans {
		scans = append(scans, &scan)
	}
	sort.Slice(scans, func(i, j int) bool { return scans[i].ID < scans[j].ID })
	return scans, nil
}

func (s *store) ListScanRegions(_ context.Context, scanID int64) ([]*storage.ScanRegionWithRegion, error) {
	out := []*storage.ScanRegionWithRegion{}
	for key, sr := range s.scanRegions {
		if key.scanID != scanID {
			continue
		}
		out = append(out, &storage.ScanRegionWithRegion{ScanRegion: sr, Region: s.regionsByID[key.regionID]})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Region.ID < out[j].Region.ID })
	return out, nil
}

func (s *store) MaxLODLevel(_ context.Context, scanID int64) (int, bool, error) {
	top, found := 0, false
	for key := range s.lods {
		n, ok := key.level.Int()
		if key.scanID != scanID || !ok {
			continue
		}
		if !found || n > top {
			top, found = n, true
		}
	}
	return top, found, nil
}

func (s *store) ListLODLevels(_ context.Context, scanID int64) ([]storage.Level, error) {
	seen := map[storage.Level]bool{}
	levels := []storage.Level{}
	for key := range s.lods {
		if key.scanID != scanID || seen[key.level] {
			continue
		}
		seen[key.level] = true
		levels = append(levels, key.level)
	}
	storage.SortLevels(levels)
	return levels, nil
}

func (s *store) ListRegionLODs(_ context.Context, scanID int64, level storage.Level) ([]*storage.RegionLOD, error) {
	out := []*storage.RegionLOD{}
	for key, lod := range s.lods {
		if key.scanID != scanID || key.level != level {
			continue
		}
		out = append(out, &storage.RegionLOD{ScanRegionLOD: lod, Region: s.regionsByID[key.regionID]})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Region.ID < out[j].Region.ID })
	return out, nil
}

func (s *store) RegionPairs(ctx context.Context, q storage.PairQuery) ([]storage.RegionPair, error) {
	lods, err := s.ListRegionLODs(ctx, q.ScanID, q.Level)
	if err != nil {
		return nil, err
	}
	return storage.EvaluatePairs(ctx, lods, q)
}

func (s *store) hasScan(id int64) bool {
	for _, scan := range s.scans {
		if scan.ID == id {
			return true
		}
	}
	return false
}

func (s *store) hasRegion(id int64) bool {
	_, ok := s.regionsByID[id]
	return ok
}

var _ storage.Driver = (*Driver)(nil)
