// Package mcp provides an MCP (Model Context Protocol) server exposing the
// cortex spatial queries as tools.
package mcp

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/papercomputeco/cortex/pkg/spatial"
	"github.com/papercomputeco/cortex/pkg/storage"
	"github.com/papercomputeco/cortex/pkg/utils"
	"github.com/papercomputeco/cortex/pkg/vector"
)

type Config struct {
	// Repository reads scans and their levels of detail
	Repository storage.Repository

	// Finder answers region pair queries
	Finder *spatial.Finder

	// Centroids for nearest-region lookups (optional, enables nearest_regions tool)
	Centroids vector.CentroidIndex

	// Noop for empty MCP server
	Noop bool

	Logger *slog.Logger
}

type Server struct {
	config    Config
	mcpServer *mcp.Server
	handler   *mcp.StreamableHTTPHandler
}

// NewServer creates a new MCP server with the scan tools.
func NewServer(c Config) (*Server, error) {
	s := &Server{
		config: c,
	}

	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    "cortex",
			Version: utils.Version,
		},
		&mcp.ServerOptions{},
	)

	if !c.Noop {
		if c.Repository == nil {
			return nil, errors.New("storage repository is required")
		}
		if c.Finder == nil {
			return nil, errors.New("spatial finder is required")
		}
		if c.Logger == nil {
			return nil, errors.New("logger is required")
		}

		mcp.AddTool(mcpServer, &mcp.Tool{
			Name:        listScansToolName,
			Description: listScansDescription,
		}, s.handleListScans)

		mcp.AddTool(mcpServer, &mcp.Tool{
			Name:        scanLevelsToolName,
			Description: scanLevelsDescription,
		}, s.handleScanLevels)

		mcp.AddTool(mcpServer, &mcp.Tool{
			Name:        regionPairsToolName,
			Description: regionPairsDescription,
		}, s.handleRegionPairs)

		if c.Centroids != nil {
			mcp.AddTool(mcpServer, &mcp.Tool{
				Name:        nearestToolName,
				Description: nearestDescription,
			}, s.handleNearest)
		}
	}

	s.mcpServer = mcpServer

	// Create a streamable HTTP net/http handler for stateless operations
	s.handler = mcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcp.Server {
			return mcpServer
		},
		&mcp.StreamableHTTPOptions{
			Stateless: true,
		},
	)

	return s, nil
}

// Handler returns the HTTP handler for the MCP server.
func (s *Server) Handler() http.Handler {
	return s.handler
}
