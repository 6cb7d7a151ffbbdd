package api

import (
	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/cortex/pkg/spatial"
)

// handlePairs handles GET /v1/scans/:file/pairs requests.
// Query parameters:
//   - level (optional, default native): level of detail to compare
//   - predicate (optional): "intersects" or "within"
//   - epsilon (required for within): maximum surface distance
func (s *Server) handlePairs(c *fiber.Ctx) error {
	q, err := spatial.ParseQuery(c.Params("file"), c.Query("level"), c.Query("predicate"), c.Query("epsilon"))
	if err != nil {
		return s.fail(c, err)
	}

	result, err := s.finder.Find(c.Context(), q)
	if err != nil {
		return s.fail(c, err)
	}

	return c.JSON(result)
}
