package api

import (
	"bytes"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/cortex/pkg/ingest"
)

// handleIngestScan handles POST /v1/scans requests with a scan record body.
// It responds 201 when the scan was inserted and 200 when it already existed.
func (s *Server) handleIngestScan(c *fiber.Ctx) error {
	if s.config.Ingester == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{
			Error: "ingestion is not enabled on this server",
		})
	}

	rec, err := ingest.Decode(bytes.NewReader(c.Body()))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: err.Error()})
	}

	report, err := s.config.Ingester.Ingest(c.Context(), rec, ingest.Source{
		Component: ingest.ComponentAPI,
		Path:      c.IP(),
	})
	if err != nil {
		return s.fail(c, err)
	}

	status := fiber.StatusOK
	if report.ScanInserted {
		status = fiber.StatusCreated
	}
	return c.Status(status).JSON(report)
}
