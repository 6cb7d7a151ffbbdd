package api

import (
	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/cortex/pkg/storage"
)

// ScanListResponse lists every stored scan.
type ScanListResponse struct {
	Count int             `json:"count"`
	Scans []*storage.Scan `json:"scans"`
}

// RegionListResponse lists the regions of one scan.
type RegionListResponse struct {
	Scan    *storage.Scan                   `json:"scan"`
	Count   int                             `json:"count"`
	Regions []*storage.ScanRegionWithRegion `json:"regions"`
}

// LevelsResponse lists the levels of detail stored for one scan.
type LevelsResponse struct {
	Scan     *storage.Scan   `json:"scan"`
	Levels   []storage.Level `json:"levels"`
	MaxLevel *int            `json:"max_level,omitempty"`
}

// LODListResponse lists the region surfaces of one scan at one level.
type LODListResponse struct {
	Scan  *storage.Scan        `json:"scan"`
	Level storage.Level        `json:"level"`
	Count int                  `json:"count"`
	LODs  []*storage.RegionLOD `json:"lods"`
}

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// handleListScans returns all scans ordered by id.
func (s *Server) handleListScans(c *fiber.Ctx) error {
	scans, err := s.storer.ListScans(c.Context())
	if err != nil {
		return s.fail(c, err)
	}

	return c.JSON(ScanListResponse{Count: len(scans), Scans: scans})
}

// handleGetScan returns a single scan by its file name.
func (s *Server) handleGetScan(c *fiber.Ctx) error {
	scan, err := s.storer.GetScan(c.Context(), c.Params("file"))
	if err != nil {
		return s.fail(c, err)
	}

	return c.JSON(scan)
}

// handleListRegions returns the regions of a scan with their statistics.
func (s *Server) handleListRegions(c *fiber.Ctx) error {
	ctx := c.Context()

	scan, err := s.storer.GetScan(ctx, c.Params("file"))
	if err != nil {
		return s.fail(c, err)
	}

	regions, err := s.storer.ListScanRegions(ctx, scan.ID)
	if err != nil {
		return s.fail(c, err)
	}

	return c.JSON(RegionListResponse{Scan: scan, Count: len(regions), Regions: regions})
}

// handleListLODs returns the stored levels of a scan, or with the level
// query parameter the region surfaces at that level.
func (s *Server) handleListLODs(c *fiber.Ctx) error {
	ctx := c.Context()

	scan, err := s.storer.GetScan(ctx, c.Params("file"))
	if err != nil {
		return s.fail(c, err)
	}

	if !c.Context().QueryArgs().Has("level") {
		levels, err := s.storer.ListLODLevels(ctx, scan.ID)
		if err != nil {
			return s.fail(c, err)
		}

		top, ok, err := s.storer.MaxLODLevel(ctx, scan.ID)
		if err != nil {
			return s.fail(c, err)
		}

		resp := LevelsResponse{Scan: scan, Levels: levels}
		if ok {
			resp.MaxLevel = &top
		}
		return c.JSON(resp)
	}

	level, err := storage.ParseLevel(c.Query("level"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: err.Error()})
	}

	lods, err := s.storer.ListRegionLODs(ctx, scan.ID, level)
	if err != nil {
		return s.fail(c, err)
	}

	return c.JSON(LODListResponse{Scan: scan, Level: level, Count: len(lods), LODs: lods})
}
