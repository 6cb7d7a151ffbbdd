package mcp_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/cortex/api/mcp"
	cortexlogger "github.com/papercomputeco/cortex/pkg/logger"
	"github.com/papercomputeco/cortex/pkg/spatial"
	"github.com/papercomputeco/cortex/pkg/storage/inmemory"
	testutils "github.com/papercomputeco/cortex/pkg/utils/test"
)

var _ = Describe("MCP Server", func() {
	var (
		server *mcp.Server
		driver *inmemory.Driver
		finder *spatial.Finder
	)

	BeforeEach(func() {
		logger := cortexlogger.Nop()
		driver = inmemory.NewDriver()
		finder = spatial.NewFinder(driver, logger)

		var err error
		server, err = mcp.NewServer(mcp.Config{
			Repository: driver,
			Finder:     finder,
			Centroids:  testutils.NewMockCentroidIndex(),
			Logger:     logger,
		})
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("NewServer", func() {
		It("returns an error when the repository is nil", func() {
			_, err := mcp.NewServer(mcp.Config{
				Finder: finder,
				Logger: cortexlogger.Nop(),
			})
			Expect(err).To(MatchError(ContainSubstring("storage repository is required")))
		})

		It("returns an error when the finder is nil", func() {
			_, err := mcp.NewServer(mcp.Config{
				Repository: driver,
				Logger:     cortexlogger.Nop(),
			})
			Expect(err).To(MatchError(ContainSubstring("spatial finder is required")))
		})

		It("returns an error when logger is nil", func() {
			_, err := mcp.NewServer(mcp.Config{
				Repository: driver,
				Finder:     finder,
			})
			Expect(err).To(MatchError(ContainSubstring("logger is required")))
		})

		It("creates an empty server when disabled", func() {
			noop, err := mcp.NewServer(mcp.Config{Noop: true})
			Expect(err).NotTo(HaveOccurred())
			Expect(noop.Handler()).NotTo(BeNil())
		})

		It("returns an HTTP handler", func() {
			Expect(server.Handler()).NotTo(BeNil())
		})
	})
})
