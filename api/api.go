package api

import (
	"fmt"
	"log/slog"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/cortex/api/mcp"
	"github.com/papercomputeco/cortex/pkg/spatial"
	"github.com/papercomputeco/cortex/pkg/storage"
)

// Server is the API server for querying the cortex region database.
type Server struct {
	config Config
	storer storage.Driver
	finder *spatial.Finder
	logger *slog.Logger
	app    *fiber.App
}

// NewServer creates a new API server.
// The storer is injected to allow sharing with other components
// (e.g., the ingest watcher when run from the same process).
func NewServer(config Config, storer storage.Driver, logger *slog.Logger) (*Server, error) {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		UnescapePath:          true,
		ErrorHandler:          errorHandler,
	})

	finder := spatial.NewFinder(storer, logger)

	s := &Server{
		config: config,
		storer: storer,
		finder: finder,
		logger: logger,
		app:    app,
	}

	mcpServer, err := mcp.NewServer(mcp.Config{
		Repository: storer,
		Finder:     finder,
		Centroids:  config.Centroids,
		Logger:     logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create MCP server: %w", err)
	}

	app.Get("/ping", s.handlePing)

	v1 := app.Group("/v1")
	v1.Get("/scans", s.handleListScans)
	v1.Post("/scans", s.handleIngestScan)
	v1.Get("/scans/:file", s.handleGetScan)
	v1.Get("/scans/:file/regions", s.handleListRegions)
	v1.Get("/scans/:file/lods", s.handleListLODs)
	v1.Get("/scans/:file/pairs", s.handlePairs)
	v1.Get("/centroids/nearest", s.handleNearest)

	app.All("/mcp", adaptor.HTTPHandler(mcpServer.Handler()))

	return s, nil
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server",
		"listen", s.config.ListenAddr,
	)
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
