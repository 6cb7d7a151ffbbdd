package mcp

import (
	"context"
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gonum.org/v1/gonum/spatial/r3"

	cortexlogger "github.com/papercomputeco/cortex/pkg/logger"
	"github.com/papercomputeco/cortex/pkg/spatial"
	"github.com/papercomputeco/cortex/pkg/storage"
	"github.com/papercomputeco/cortex/pkg/storage/inmemory"
	"github.com/papercomputeco/cortex/pkg/storage/storagetest"
	testutils "github.com/papercomputeco/cortex/pkg/utils/test"
	"github.com/papercomputeco/cortex/pkg/vector"
)

func callTool(ctx context.Context, server *Server, name string, args map[string]any) *mcp.CallToolResult {
	clientTransport, serverTransport := mcp.NewInMemoryTransports()

	ss, err := server.mcpServer.Connect(ctx, serverTransport, nil)
	Expect(err).NotTo(HaveOccurred())
	DeferCleanup(ss.Close)

	client := mcp.NewClient(&mcp.Implementation{Name: "cortex-test", Version: "test"}, nil)
	cs, err := client.Connect(ctx, clientTransport, nil)
	Expect(err).NotTo(HaveOccurred())
	DeferCleanup(cs.Close)

	res, err := cs.CallTool(ctx, &mcp.CallToolParams{Name: name, Arguments: args})
	Expect(err).NotTo(HaveOccurred())
	return res
}

func decodeText(res *mcp.CallToolResult, out any) {
	Expect(res.Content).To(HaveLen(1))
	text, ok := res.Content[0].(*mcp.TextContent)
	Expect(ok).To(BeTrue())
	Expect(json.Unmarshal([]byte(text.Text), out)).To(Succeed())
}

var _ = Describe("MCP tools", func() {
	var (
		ctx       context.Context
		server    *Server
		centroids *testutils.MockCentroidIndex
	)

	BeforeEach(func() {
		ctx = context.Background()
		logger := cortexlogger.Nop()
		driver := inmemory.NewDriver()
		centroids = testutils.NewMockCentroidIndex()

		scan, regions := storagetest.Seed(ctx, driver, "sub-01.nii.gz", storage.Native(),
			storagetest.NamedMesh{Name: "hippocampus", Mesh: storagetest.Cube(0, 0, 0, 2)},
			storagetest.NamedMesh{Name: "amygdala", Mesh: storagetest.Cube(1, 1, 1, 2)},
			storagetest.NamedMesh{Name: "thalamus", Mesh: storagetest.Cube(6, 0, 0, 1)},
		)
		storagetest.AddLevel(ctx, driver, scan, storage.LevelOf(1), regions[:1],
			storagetest.NamedMesh{Name: "hippocampus", Mesh: storagetest.Cube(0, 0, 0, 2)},
		)

		Expect(centroids.Upsert(ctx, []vector.Centroid{
			{ID: vector.CentroidID(scan.FileName, "thalamus"), ScanFile: scan.FileName, RegionName: "thalamus", Point: r3.Vec{X: 6.5, Y: 0.5, Z: 0.5}},
			{ID: vector.CentroidID(scan.FileName, "amygdala"), ScanFile: scan.FileName, RegionName: "amygdala", Point: r3.Vec{X: 2, Y: 2, Z: 2}},
		})).To(Succeed())

		var err error
		server, err = NewServer(Config{
			Repository: driver,
			Finder:     spatial.NewFinder(driver, logger),
			Centroids:  centroids,
			Logger:     logger,
		})
		Expect(err).NotTo(HaveOccurred())
	})

	It("lists scans", func() {
		var out ListScansOutput
		decodeText(callTool(ctx, server, listScansToolName, map[string]any{}), &out)
		Expect(out.Count).To(Equal(1))
		Expect(out.Scans[0].FileName).To(Equal("sub-01.nii.gz"))
	})

	It("lists levels with the max level", func() {
		var out ScanLevelsOutput
		decodeText(callTool(ctx, server, scanLevelsToolName, map[string]any{"scan": "sub-01.nii.gz"}), &out)
		Expect(out.Levels).To(Equal([]string{"native", "1"}))
		Expect(*out.MaxLevel).To(Equal(1))
	})

	It("finds intersecting regions", func() {
		var out RegionPairsOutput
		decodeText(callTool(ctx, server, regionPairsToolName, map[string]any{"scan": "sub-01.nii.gz"}), &out)
		Expect(out.Predicate).To(Equal("intersects"))
		Expect(out.Candidates).To(Equal(3))
		Expect(out.Pairs).To(Equal([]RegionPair{{RegionA: "hippocampus", RegionB: "amygdala", Intersects: true}}))
	})

	It("finds regions within epsilon", func() {
		var out RegionPairsOutput
		decodeText(callTool(ctx, server, regionPairsToolName, map[string]any{"scan": "sub-01.nii.gz", "epsilon": 3.5}), &out)
		Expect(out.Predicate).To(Equal("within"))
		Expect(out.Count).To(Equal(2))
		Expect(out.Pairs[1].RegionB).To(Equal("thalamus"))
		Expect(*out.Pairs[1].Distance).To(BeNumerically("~", 3, 1e-9))
	})

	It("reports a missing scan as a tool error", func() {
		res := callTool(ctx, server, regionPairsToolName, map[string]any{"scan": "missing.nii"})
		Expect(res.IsError).To(BeTrue())
	})

	It("finds the nearest centroids", func() {
		var out NearestOutput
		decodeText(callTool(ctx, server, nearestToolName, map[string]any{"x": 6.0, "y": 0.0, "z": 0.0, "k": 1}), &out)
		Expect(out.Count).To(Equal(1))
		Expect(out.Matches[0].RegionName).To(Equal("thalamus"))
	})
})
