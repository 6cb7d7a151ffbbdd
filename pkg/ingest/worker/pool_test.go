package worker

import (
	"context"
	"fmt"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/cortex/pkg/ingest"
	"github.com/papercomputeco/cortex/pkg/ingest/ingesttest"
	"github.com/papercomputeco/cortex/pkg/logger"
	"github.com/papercomputeco/cortex/pkg/storage/inmemory"
)

type collector struct {
	mu      sync.Mutex
	results []Result
}

func (c *collector) add(r Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results = append(c.results, r)
}

// newTestPool creates a worker pool backed by an in-memory driver.
// Callers should "wp.Close()" to drain enqueued jobs before asserting storage state.
func newTestPool(c *collector, queueSize uint) (*Pool, *inmemory.Driver) {
	driver := inmemory.NewDriver()

	ingester, err := ingest.New(&ingest.Config{Driver: driver, Logger: logger.Nop()})
	Expect(err).NotTo(HaveOccurred())

	wp, err := NewPool(context.Background(), &Config{
		Ingester:  ingester,
		QueueSize: queueSize,
		OnResult:  c.add,
		Logger:    logger.Nop(),
	})
	Expect(err).NotTo(HaveOccurred())

	return wp, driver
}

var _ = Describe("Worker Pool", func() {
	var (
		dir     string
		results *collector
	)

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
		results = &collector{}
	})

	It("requires an ingester", func() {
		_, err := NewPool(context.Background(), &Config{})
		Expect(err).To(HaveOccurred())
	})

	It("applies defaults", func() {
		wp, _ := newTestPool(results, 0)
		defer wp.Close()

		Expect(wp.config.NumWorkers).To(Equal(defaultNumWorkers))
		Expect(wp.config.QueueSize).To(Equal(defaultJobQueueSize))
	})

	It("ingests every enqueued file", func() {
		wp, driver := newTestPool(results, 0)

		for i := range 5 {
			rec := ingesttest.Record(fmt.Sprintf("sub-%02d.nii.gz", i),
				ingesttest.CubeRegion("thalamus", 10, 0, 0, 0, 1, nil),
				ingesttest.CubeRegion("caudate", 11, 2, 0, 0, 1, nil),
			)
			path := ingesttest.Write(dir, fmt.Sprintf("sub-%02d.json", i), rec)
			Expect(wp.Enqueue(Job{Path: path, Component: ingest.ComponentCLI})).To(BeTrue())
		}
		wp.Close()

		Expect(results.results).To(HaveLen(5))
		for _, r := range results.results {
			Expect(r.Err).NotTo(HaveOccurred())
		}

		scans, err := driver.ListScans(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(scans).To(HaveLen(5))

		region, err := driver.GetRegion(context.Background(), "thalamus")
		Expect(err).NotTo(HaveOccurred())
		Expect(region.AtlasValue).To(Equal(10))
	})

	It("reports failed jobs", func() {
		wp, _ := newTestPool(results, 0)

		Expect(wp.Enqueue(Job{Path: dir + "/missing.json"})).To(BeTrue())
		wp.Close()

		Expect(results.results).To(HaveLen(1))
		Expect(results.results[0].Err).To(HaveOccurred())
		Expect(results.results[0].Report).To(BeNil())
	})

	It("fails queued jobs after an abort", func() {
		wp, _ := newTestPool(results, 0)
		wp.cancel()

		path := ingesttest.Write(dir, "sub-01.json", ingesttest.Record("sub-01.nii.gz",
			ingesttest.CubeRegion("thalamus", 10, 0, 0, 0, 1, nil),
		))
		Expect(wp.Enqueue(Job{Path: path})).To(BeTrue())
		wp.Abort()

		Expect(results.results).To(HaveLen(1))
		Expect(results.results[0].Err).To(MatchError(context.Canceled))
	})
})
