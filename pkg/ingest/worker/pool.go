// Package worker provides an asynchronous worker pool that ingests scan
// record files in parallel, one transaction per file.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/papercomputeco/cortex/pkg/ingest"
)

var (
	defaultNumWorkers   uint = 3
	defaultJobQueueSize uint = 256
)

// Job is a scan record file to ingest.
type Job struct {
	Path      string
	Component string
}

// Result is the outcome of one Job.
type Result struct {
	Job    Job
	Report *ingest.Report
	Err    error
}

// Config is the configuration options for the worker pool.
type Config struct {
	// Ingester writes the decoded records.
	Ingester *ingest.Ingester

	// NumWorkers is the number of background workers in the pool.
	NumWorkers uint

	// QueueSize is the capacity of the buffered job channel (defaults to 256).
	QueueSize uint

	// OnResult is called from a worker goroutine after each job.
	OnResult func(Result)

	Logger *slog.Logger
}

// Pool ingests files asynchronously via a worker pool.
type Pool struct {
	config *Config
	queue  chan Job
	wg     sync.WaitGroup
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// NewPool creates a new Pool and starts its worker goroutines.
func NewPool(ctx context.Context, c *Config) (*Pool, error) {
	if c.Ingester == nil {
		return nil, fmt.Errorf("worker pool requires an ingester")
	}

	if c.NumWorkers == 0 {
		c.NumWorkers = defaultNumWorkers
	}

	if c.QueueSize == 0 {
		c.QueueSize = defaultJobQueueSize
	}

	if c.NumWorkers > uint(math.MaxInt) {
		return nil, fmt.Errorf("NumWorkers %d exceeds max int", c.NumWorkers)
	}

	logger := c.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	ctx, cancel := context.WithCancel(ctx)
	wp := &Pool{
		config: c,
		queue:  make(chan Job, c.QueueSize),
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}

	wp.wg.Add(int(c.NumWorkers))
	for i := range c.NumWorkers {
		go wp.worker(i)
	}

	return wp, nil
}

// Enqueue submits a job for processing by the worker pool.
// Returns true if enqueued, false if the queue is full, resulting in the job being dropped
func (p *Pool) Enqueue(job Job) bool {
	select {
	case p.queue <- job:
		p.logger.Debug("job queued", "path", job.Path)
		return true
	default:
		p.logger.Error("job not queued, queue full, job dropped", "path", job.Path)
		return false
	}
}

// Close signals workers to stop and waits for in-flight jobs to drain.
func (p *Pool) Close() {
	close(p.queue)
	p.wg.Wait()
	p.cancel()
}

// Abort cancels in-flight jobs, then closes the pool.
func (p *Pool) Abort() {
	p.cancel()
	p.Close()
}

// worker is the inner worker thread that continuously pulls jobs off the jobs queue
func (p *Pool) worker(id uint) {
	defer p.wg.Done()
	p.logger.Debug("worker started", "worker_id", id)

	for job := range p.queue {
		p.processJob(job)
	}

	p.logger.Debug("ingest worker stopped", "worker_id", id)
}

func (p *Pool) processJob(job Job) {
	res := Result{Job: job}

	if err := p.ctx.Err(); err != nil {
		res.Err = err
	} else {
		res.Report, res.Err = p.config.Ingester.IngestFile(p.ctx, job.Path, job.Component)
	}

	if res.Err != nil {
		p.logger.Error("ingest failed", "path", job.Path, "error", res.Err)
	}

	if p.config.OnResult != nil {
		p.config.OnResult(res)
	}
}
