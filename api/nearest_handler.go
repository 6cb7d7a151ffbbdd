package api

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/papercomputeco/cortex/pkg/vector"
)

// NearestResponse lists the centroids closest to a point.
type NearestResponse struct {
	Point   r3.Vec         `json:"point"`
	Count   int            `json:"count"`
	Matches []vector.Match `json:"matches"`
}

// handleNearest handles GET /v1/centroids/nearest requests.
// Query parameters:
//   - x, y, z (required): the query point in scanner space
//   - k (optional, default 10): number of centroids to return
func (s *Server) handleNearest(c *fiber.Ctx) error {
	if s.config.Centroids == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{
			Error: "nearest-centroid search is not configured: set vector_store.provider",
		})
	}

	var p r3.Vec
	for _, axis := range []struct {
		name string
		dst  *float64
	}{{"x", &p.X}, {"y", &p.Y}, {"z", &p.Z}} {
		raw := c.Query(axis.name)
		if raw == "" {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
				Error: axis.name + " parameter is required",
			})
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
				Error: axis.name + " must be a number",
			})
		}
		*axis.dst = v
	}

	k := vector.DefaultK
	if kStr := c.Query("k"); kStr != "" {
		parsed, err := strconv.Atoi(kStr)
		if err != nil || parsed <= 0 {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
				Error: "k must be a positive integer",
			})
		}
		k = parsed
	}

	matches, err := s.config.Centroids.Nearest(c.Context(), p, k)
	if err != nil {
		return s.fail(c, err)
	}

	return c.JSON(NearestResponse{Point: p, Count: len(matches), Matches: matches})
}
