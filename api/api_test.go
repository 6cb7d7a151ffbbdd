package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"

	"github.com/gofiber/fiber/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/cortex/pkg/geometry"
	"github.com/papercomputeco/cortex/pkg/ingest"
	"github.com/papercomputeco/cortex/pkg/ingest/ingesttest"
	"github.com/papercomputeco/cortex/pkg/logger"
	"github.com/papercomputeco/cortex/pkg/spatial"
	"github.com/papercomputeco/cortex/pkg/storage"
	"github.com/papercomputeco/cortex/pkg/storage/inmemory"
	testutils "github.com/papercomputeco/cortex/pkg/utils/test"
)

func doRequest(server *Server, method, target string, body []byte) (int, []byte) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := server.app.Test(req, -1)
	Expect(err).NotTo(HaveOccurred())
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	Expect(err).NotTo(HaveOccurred())
	return resp.StatusCode, data
}

func get(server *Server, target string, out any) int {
	status, data := doRequest(server, http.MethodGet, target, nil)
	if out != nil {
		Expect(json.Unmarshal(data, out)).To(Succeed(), string(data))
	}
	return status
}

var _ = Describe("Server", func() {
	var (
		ctx       context.Context
		driver    *inmemory.Driver
		centroids *testutils.MockCentroidIndex
		server    *Server
		record    *ingest.ScanRecord
	)

	BeforeEach(func() {
		ctx = context.Background()
		driver = inmemory.NewDriver()
		centroids = testutils.NewMockCentroidIndex()

		ingester, err := ingest.New(&ingest.Config{
			Driver:    driver,
			Centroids: centroids,
			Logger:    logger.Nop(),
		})
		Expect(err).NotTo(HaveOccurred())

		server, err = NewServer(Config{
			ListenAddr: ":0",
			Ingester:   ingester,
			Centroids:  centroids,
		}, driver, logger.Nop())
		Expect(err).NotTo(HaveOccurred())

		record = ingesttest.Record("sub-01.nii.gz",
			ingesttest.CubeRegion("hippocampus", 17, 0, 0, 0, 2, nil),
			ingesttest.CubeRegion("amygdala", 18, 1, 1, 1, 2, nil),
			ingesttest.CubeRegion("thalamus", 10, 5, 0, 0, 1, nil),
			ingesttest.CubeRegion("thalamus", 10, 5, 0, 0, 1, ingesttest.Level(2)),
		)
	})

	AfterEach(func() {
		Expect(driver.Close()).To(Succeed())
	})

	seed := func() {
		_, err := server.config.Ingester.Ingest(ctx, record, ingest.Source{Component: ingest.ComponentCLI})
		Expect(err).NotTo(HaveOccurred())
	}

	It("responds to ping", func() {
		var pong string
		Expect(get(server, "/ping", &pong)).To(Equal(http.StatusOK))
		Expect(pong).To(Equal("pong"))
	})

	It("answers unknown routes with a JSON error", func() {
		var resp ErrorResponse
		Expect(get(server, "/v1/unknown", &resp)).To(Equal(http.StatusNotFound))
		Expect(resp.Error).NotTo(BeEmpty())
	})

	Describe("POST /v1/scans", func() {
		It("creates the scan, then reports it as existing", func() {
			body, err := json.Marshal(record)
			Expect(err).NotTo(HaveOccurred())

			status, data := doRequest(server, http.MethodPost, "/v1/scans", body)
			Expect(status).To(Equal(http.StatusCreated))

			var report ingest.Report
			Expect(json.Unmarshal(data, &report)).To(Succeed())
			Expect(report.Counts.LODsInserted).To(Equal(4))
			Expect(centroids.Len()).To(Equal(3))

			status, data = doRequest(server, http.MethodPost, "/v1/scans", body)
			Expect(status).To(Equal(http.StatusOK))
			Expect(json.Unmarshal(data, &report)).To(Succeed())
			Expect(report.Counts.LODsExisting).To(Equal(4))
		})

		It("rejects an invalid record", func() {
			status, data := doRequest(server, http.MethodPost, "/v1/scans", []byte(`{"regions": []}`))
			Expect(status).To(Equal(http.StatusBadRequest))
			Expect(string(data)).To(ContainSubstring("file_name is required"))
		})

		It("is unavailable without an ingester", func() {
			bare, err := NewServer(Config{}, driver, logger.Nop())
			Expect(err).NotTo(HaveOccurred())

			status, _ := doRequest(bare, http.MethodPost, "/v1/scans", []byte(`{}`))
			Expect(status).To(Equal(http.StatusServiceUnavailable))
		})
	})

	Describe("scan endpoints", func() {
		BeforeEach(seed)

		It("lists scans", func() {
			var resp ScanListResponse
			Expect(get(server, "/v1/scans", &resp)).To(Equal(http.StatusOK))
			Expect(resp.Count).To(Equal(1))
			Expect(resp.Scans[0].FileName).To(Equal("sub-01.nii.gz"))
		})

		It("gets a scan by file name", func() {
			var scan storage.Scan
			Expect(get(server, "/v1/scans/sub-01.nii.gz", &scan)).To(Equal(http.StatusOK))
			Expect(scan.Dimensions).To(Equal("(182, 218, 182)"))
		})

		It("returns 404 for an unknown scan", func() {
			var resp ErrorResponse
			Expect(get(server, "/v1/scans/missing.nii", &resp)).To(Equal(http.StatusNotFound))
			Expect(resp.Error).To(ContainSubstring("missing.nii"))
		})

		It("lists the regions of a scan", func() {
			var resp RegionListResponse
			Expect(get(server, "/v1/scans/sub-01.nii.gz/regions", &resp)).To(Equal(http.StatusOK))
			Expect(resp.Count).To(Equal(3))
			Expect(resp.Regions[0].Region.Name).To(Equal("hippocampus"))
			Expect(resp.Regions[0].Stats.VoxelCount).To(Equal(int64(8)))
		})

		It("lists the levels of a scan", func() {
			var resp LevelsResponse
			Expect(get(server, "/v1/scans/sub-01.nii.gz/lods", &resp)).To(Equal(http.StatusOK))
			Expect(resp.Levels).To(Equal([]storage.Level{storage.Native(), storage.LevelOf(2)}))
			Expect(*resp.MaxLevel).To(Equal(2))
		})

		It("lists the surfaces at one level", func() {
			var resp LODListResponse
			Expect(get(server, "/v1/scans/sub-01.nii.gz/lods?level=2", &resp)).To(Equal(http.StatusOK))
			Expect(resp.Count).To(Equal(1))
			Expect(resp.LODs[0].Region.Name).To(Equal("thalamus"))
			Expect(resp.LODs[0].Shape).To(HavePrefix("POLYHEDRALSURFACE Z"))
		})

		It("rejects a malformed level", func() {
			Expect(get(server, "/v1/scans/sub-01.nii.gz/lods?level=-1", nil)).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("GET /v1/scans/:file/pairs", func() {
		BeforeEach(seed)

		It("finds intersecting regions", func() {
			var result spatial.Result
			Expect(get(server, "/v1/scans/sub-01.nii.gz/pairs", &result)).To(Equal(http.StatusOK))
			Expect(result.Predicate).To(Equal(storage.Intersects))
			Expect(result.Candidates).To(Equal(3))
			Expect(result.Pairs).To(HaveLen(1))
			Expect(result.Pairs[0].A.Name).To(Equal("hippocampus"))
		})

		It("finds regions within epsilon", func() {
			var result spatial.Result
			Expect(get(server, "/v1/scans/sub-01.nii.gz/pairs?predicate=within&epsilon=2", &result)).To(Equal(http.StatusOK))
			Expect(result.Pairs).To(HaveLen(2))
			Expect(result.Pairs[1].B.Name).To(Equal("thalamus"))
			Expect(*result.Pairs[1].Distance).To(BeNumerically("~", 2, 1e-9))
		})

		It("rejects within without epsilon", func() {
			var resp ErrorResponse
			Expect(get(server, "/v1/scans/sub-01.nii.gz/pairs?predicate=within", &resp)).To(Equal(http.StatusBadRequest))
			Expect(resp.Error).To(ContainSubstring("epsilon is required"))
		})

		It("returns 404 for a level without surfaces", func() {
			var resp ErrorResponse
			Expect(get(server, "/v1/scans/sub-01.nii.gz/pairs?level=7", &resp)).To(Equal(http.StatusNotFound))
			Expect(resp.Error).To(ContainSubstring("max level is 2"))
		})
	})

	Describe("GET /v1/centroids/nearest", func() {
		BeforeEach(seed)

		It("returns the closest centroids", func() {
			var resp NearestResponse
			q := url.Values{"x": {"5.5"}, "y": {"0.5"}, "z": {"0.5"}, "k": {"2"}}
			Expect(get(server, "/v1/centroids/nearest?"+q.Encode(), &resp)).To(Equal(http.StatusOK))
			Expect(resp.Count).To(Equal(2))
			Expect(resp.Matches[0].RegionName).To(Equal("thalamus"))
			Expect(resp.Matches[0].Distance).To(BeNumerically("~", 0, 1e-9))
		})

		It("requires every coordinate", func() {
			Expect(get(server, "/v1/centroids/nearest?x=1&y=2", nil)).To(Equal(http.StatusBadRequest))
		})

		It("rejects a non-positive k", func() {
			Expect(get(server, "/v1/centroids/nearest?x=1&y=2&z=3&k=0", nil)).To(Equal(http.StatusBadRequest))
		})
	})

	It("maps error types to status codes", func() {
		Expect(statusOf(storage.NotFoundError{Entity: storage.EntityScan, Key: "a"})).To(Equal(http.StatusNotFound))
		Expect(statusOf(&spatial.NoRegionsError{ScanFile: "a"})).To(Equal(http.StatusNotFound))
		Expect(statusOf(&spatial.InvalidQueryError{Reason: "x"})).To(Equal(http.StatusBadRequest))
		Expect(statusOf(&ingest.ValidationError{Reason: "x"})).To(Equal(http.StatusBadRequest))
		Expect(statusOf(spatial.ErrExplainUnsupported)).To(Equal(http.StatusNotImplemented))
		Expect(statusOf(storage.IntegrityError{Entity: storage.EntityScanRegionLOD, Key: "a"})).To(Equal(http.StatusConflict))
		Expect(statusOf(fmt.Errorf("storing: %w", &geometry.EncodingError{Reason: "x"}))).To(Equal(http.StatusUnprocessableEntity))
		Expect(statusOf(io.ErrUnexpectedEOF)).To(Equal(http.StatusInternalServerError))
	})

	DescribeTable("reports the offending identifier",
		func(err error, status int, message string) {
			app := fiber.New()
			app.Get("/", func(c *fiber.Ctx) error { return server.fail(c, err) })

			resp, testErr := app.Test(httptest.NewRequest(http.MethodGet, "/", nil), -1)
			Expect(testErr).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(status))

			var body ErrorResponse
			Expect(json.NewDecoder(resp.Body).Decode(&body)).To(Succeed())
			Expect(body.Error).To(ContainSubstring(message))
			Expect(body.Error).NotTo(ContainSubstring("violates"))
		},
		Entry("integrity violation", storage.IntegrityError{
			Entity: storage.EntityScanRegionLOD,
			Key:    "sub-01.nii.gz/hippocampus/native",
			Err:    errors.New(`duplicate key value violates unique constraint "scan_region_lod_native_key"`),
		}, http.StatusConflict, "sub-01.nii.gz/hippocampus/native"),
		Entry("encoding failure", &geometry.EncodingError{Reason: "face 3 references vertex 9, mesh has 8 vertices"},
			http.StatusUnprocessableEntity, "face 3 references vertex 9"),
	)
})
