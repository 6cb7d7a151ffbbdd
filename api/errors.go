package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/cortex/pkg/geometry"
	"github.com/papercomputeco/cortex/pkg/ingest"
	"github.com/papercomputeco/cortex/pkg/spatial"
	"github.com/papercomputeco/cortex/pkg/storage"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// fail writes err with the status its type maps to. Unexpected errors are
// logged and reported without their cause.
func (s *Server) fail(c *fiber.Ctx, err error) error {
	status := statusOf(err)
	if status == fiber.StatusInternalServerError {
		s.logger.Error("request failed",
			"method", c.Method(),
			"path", c.Path(),
			"error", err,
		)
		return c.Status(status).JSON(ErrorResponse{Error: "internal server error"})
	}
	return c.Status(status).JSON(ErrorResponse{Error: err.Error()})
}

func statusOf(err error) int {
	var (
		notFound  storage.NotFoundError
		integrity storage.IntegrityError
		encoding  *geometry.EncodingError
		noRegions *spatial.NoRegionsError
		noLOD     *spatial.NoLODError
		invalidQ  *spatial.InvalidQueryError
		invalidR  *ingest.ValidationError
		fiberErr  *fiber.Error
	)

	switch {
	case errors.As(err, &notFound), errors.As(err, &noRegions), errors.As(err, &noLOD):
		return fiber.StatusNotFound
	case errors.As(err, &invalidQ), errors.As(err, &invalidR):
		return fiber.StatusBadRequest
	case errors.As(err, &integrity):
		return fiber.StatusConflict
	case errors.As(err, &encoding):
		return fiber.StatusUnprocessableEntity
	case errors.Is(err, spatial.ErrExplainUnsupported):
		return fiber.StatusNotImplemented
	case errors.As(err, &fiberErr):
		return fiberErr.Code
	default:
		return fiber.StatusInternalServerError
	}
}

// errorHandler renders errors returned outside of handlers, like unknown routes.
func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	msg := "internal server error"

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		code = fiberErr.Code
		msg = fiberErr.Message
	}
	return c.Status(code).JSON(ErrorResponse{Error: msg})
}
