package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/papercomputeco/cortex/pkg/spatial"
	"github.com/papercomputeco/cortex/pkg/storage"
	"github.com/papercomputeco/cortex/pkg/vector"
)

var (
	listScansToolName    = "list_scans"
	listScansDescription = "List the brain scans stored in the database with their file names, sizes, dimensions and voxel sizes."

	scanLevelsToolName    = "scan_levels"
	scanLevelsDescription = "List the level-of-detail surfaces stored for a scan. The native level is the full resolution surface; integer levels are decimated."

	regionPairsToolName    = "region_pairs"
	regionPairsDescription = "Find pairs of brain regions in a scan whose surfaces intersect, or lie within an epsilon distance of each other, at a chosen level of detail."

	nearestToolName    = "nearest_regions"
	nearestDescription = "Find the region centroids across all scans closest to a point in scanner space."
)

// ListScansInput represents the input arguments for the list_scans tool.
type ListScansInput struct{}

// ListScansOutput represents the output of the list_scans tool.
type ListScansOutput struct {
	Scans []*storage.Scan `json:"scans"`
	Count int             `json:"count"`
}

// ScanLevelsInput represents the input arguments for the scan_levels tool.
type ScanLevelsInput struct {
	Scan string `json:"scan" jsonschema:"the scan file name"`
}

// ScanLevelsOutput represents the output of the scan_levels tool.
type ScanLevelsOutput struct {
	Scan     string   `json:"scan"`
	Levels   []string `json:"levels"`
	MaxLevel *int     `json:"max_level,omitempty"`
}

// RegionPairsInput represents the input arguments for the region_pairs tool.
type RegionPairsInput struct {
	Scan      string   `json:"scan" jsonschema:"the scan file name"`
	Level     string   `json:"level,omitempty" jsonschema:"level of detail, native (default) or a non-negative integer"`
	Predicate string   `json:"predicate,omitempty" jsonschema:"intersects or within (default: intersects, or within when epsilon is set)"`
	Epsilon   *float64 `json:"epsilon,omitempty" jsonschema:"maximum surface distance for the within predicate"`
}

// RegionPair is one matching pair in a region_pairs result.
type RegionPair struct {
	RegionA    string   `json:"region_a"`
	RegionB    string   `json:"region_b"`
	Distance   *float64 `json:"distance,omitempty"`
	Intersects bool     `json:"intersects"`
}

// RegionPairsOutput represents the output of the region_pairs tool.
type RegionPairsOutput struct {
	Scan       string       `json:"scan"`
	Level      string       `json:"level"`
	Predicate  string       `json:"predicate"`
	Candidates int          `json:"candidates"`
	Pairs      []RegionPair `json:"pairs"`
	Count      int          `json:"count"`
}

// NearestInput represents the input arguments for the nearest_regions tool.
type NearestInput struct {
	X float64 `json:"x" jsonschema:"x coordinate of the query point"`
	Y float64 `json:"y" jsonschema:"y coordinate of the query point"`
	Z float64 `json:"z" jsonschema:"z coordinate of the query point"`
	K int     `json:"k,omitempty" jsonschema:"number of centroids to return (default: 10)"`
}

// NearestOutput represents the output of the nearest_regions tool.
type NearestOutput struct {
	Matches []vector.Match `json:"matches"`
	Count   int            `json:"count"`
}

func (s *Server) handleListScans(ctx context.Context, _ *mcp.CallToolRequest, _ ListScansInput) (*mcp.CallToolResult, ListScansOutput, error) {
	scans, err := s.config.Repository.ListScans(ctx)
	if err != nil {
		s.config.Logger.Error("failed to list scans", "error", err)
		return toolError("Failed to list scans: %v", err), ListScansOutput{}, nil
	}

	if scans == nil {
		scans = []*storage.Scan{}
	}
	return textResult(ListScansOutput{Scans: scans, Count: len(scans)})
}

func (s *Server) handleScanLevels(ctx context.Context, _ *mcp.CallToolRequest, input ScanLevelsInput) (*mcp.CallToolResult, ScanLevelsOutput, error) {
	levels, top, ok, err := s.config.Finder.Levels(ctx, input.Scan)
	if err != nil {
		return toolError("Failed to list levels of %s: %v", input.Scan, err), ScanLevelsOutput{}, nil
	}

	out := ScanLevelsOutput{Scan: input.Scan, Levels: make([]string, len(levels))}
	for i, l := range levels {
		out.Levels[i] = l.String()
	}
	if ok {
		out.MaxLevel = &top
	}
	return textResult(out)
}

func (s *Server) handleRegionPairs(ctx context.Context, _ *mcp.CallToolRequest, input RegionPairsInput) (*mcp.CallToolResult, RegionPairsOutput, error) {
	epsilon := ""
	if input.Epsilon != nil {
		epsilon = fmt.Sprint(*input.Epsilon)
	}

	q, err := spatial.ParseQuery(input.Scan, input.Level, input.Predicate, epsilon)
	if err != nil {
		return toolError("%v", err), RegionPairsOutput{}, nil
	}

	s.config.Logger.Debug("MCP region pairs request",
		"scan", q.ScanFile,
		"level", q.Level.String(),
		"predicate", string(q.Predicate),
	)

	result, err := s.config.Finder.Find(ctx, q)
	if err != nil {
		return toolError("Failed to find region pairs: %v", err), RegionPairsOutput{}, nil
	}

	out := RegionPairsOutput{
		Scan:       result.Scan.FileName,
		Level:      result.Level.String(),
		Predicate:  string(result.Predicate),
		Candidates: result.Candidates,
		Pairs:      make([]RegionPair, len(result.Pairs)),
		Count:      len(result.Pairs),
	}
	for i, p := range result.Pairs {
		out.Pairs[i] = RegionPair{
			RegionA:    p.A.Name,
			RegionB:    p.B.Name,
			Distance:   p.Distance,
			Intersects: p.Intersects,
		}
	}
	return textResult(out)
}

func (s *Server) handleNearest(ctx context.Context, _ *mcp.CallToolRequest, input NearestInput) (*mcp.CallToolResult, NearestOutput, error) {
	k := input.K
	if k <= 0 {
		k = vector.DefaultK
	}

	matches, err := s.config.Centroids.Nearest(ctx, r3.Vec{X: input.X, Y: input.Y, Z: input.Z}, k)
	if err != nil {
		s.config.Logger.Error("failed to query centroid index", "error", err)
		return toolError("Failed to query centroid index: %v", err), NearestOutput{}, nil
	}

	if matches == nil {
		matches = []vector.Match{}
	}
	return textResult(NearestOutput{Matches: matches, Count: len(matches)})
}

func toolError(format string, args ...any) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf(format, args...)},
		},
	}
}

// textResult also returns the structured output as JSON text for clients
// that do not read structured content.
func textResult[T any](out T) (*mcp.CallToolResult, T, error) {
	data, err := json.Marshal(out)
	if err != nil {
		var zero T
		return toolError("Failed to serialize results: %v", err), zero, nil
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(data)},
		},
	}, out, nil
}
