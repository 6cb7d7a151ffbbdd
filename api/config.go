// Package api provides an HTTP API server for querying scans, their region
// surfaces and the spatial relationships between regions.
package api

import (
	"github.com/papercomputeco/cortex/pkg/ingest"
	"github.com/papercomputeco/cortex/pkg/vector"
)

// Config is the API server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8081")
	ListenAddr string

	// Ingester enables POST /v1/scans when set.
	Ingester *ingest.Ingester

	// Centroids enables the nearest-centroid endpoint and MCP tool when set.
	Centroids vector.CentroidIndex
}
