// Package ingestcmder provides the ingest command for loading scan records
// produced by the region extractor into the cortex database.
package ingestcmder

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/cortex/cmd/cortex/cmdutil"
	"github.com/papercomputeco/cortex/pkg/cliui"
	"github.com/papercomputeco/cortex/pkg/config"
	"github.com/papercomputeco/cortex/pkg/ingest"
	"github.com/papercomputeco/cortex/pkg/ingest/worker"
)

const ingestLongDesc string = `Ingest scan records into the cortex database.

Each argument is a scan record JSON file written by the region extractor; "-"
reads one record from stdin. Files are ingested in parallel, each in its own
transaction. Ingestion is idempotent: scans, regions, scan regions and
surfaces that already exist are reported as existing and left unchanged.

With --watch DIR, existing and new *.json files in DIR are ingested until
interrupted. Files already ingested with the same size and modification time
are skipped; the record of ingested files is kept in .cortex/watch.json.

Examples:
  cortex ingest sub-01.json sub-02.json
  extract-regions sub-01.nii.gz | cortex ingest -
  cortex ingest --watch ./out --workers 8
  cortex ingest sub-*.json --format json`

const ingestShortDesc string = "Ingest scan records"

// ErrIngestFailed is returned when at least one record could not be ingested.
var ErrIngestFailed = errors.New("ingest failed")

// FileResult is the outcome of ingesting one file.
type FileResult struct {
	Path   string         `json:"path"`
	Report *ingest.Report `json:"report,omitempty"`
	Error  string         `json:"error,omitempty"`
}

type ingestCommander struct {
	storage        cmdutil.StorageFlagValues
	workers        uint
	queueSize      uint
	vectorProvider string
	vectorTarget   string
	eventsProvider string
	eventsBrokers  string
	eventsTopic    string
	watchDir       string
	format         string
}

var ingestFlags = append([]string{
	config.FlagWorkers,
	config.FlagQueueSize,
	config.FlagVectorStoreProv,
	config.FlagVectorStoreTgt,
	config.FlagEventsProv,
	config.FlagEventsBrokers,
	config.FlagEventsTopic,
}, config.StorageFlags...)

func NewIngestCmd() *cobra.Command {
	cmder := &ingestCommander{}

	cmd := &cobra.Command{
		Use:   "ingest [file...|-]",
		Short: ingestShortDesc,
		Long:  ingestLongDesc,
		Args: func(cmd *cobra.Command, args []string) error {
			watch, _ := cmd.Flags().GetString("watch")
			if watch == "" && len(args) == 0 {
				return errors.New("requires at least one file, \"-\" or --watch DIR")
			}
			if watch != "" && len(args) > 0 {
				return errors.New("files cannot be combined with --watch")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd, args)
		},
	}

	cmdutil.AddStorageFlags(cmd, &cmder.storage)
	cmdutil.AddFormatFlag(cmd, &cmder.format)
	config.AddUintFlag(cmd, config.Flags, config.FlagWorkers, &cmder.workers)
	config.AddUintFlag(cmd, config.Flags, config.FlagQueueSize, &cmder.queueSize)
	config.AddStringFlag(cmd, config.Flags, config.FlagVectorStoreProv, &cmder.vectorProvider)
	config.AddStringFlag(cmd, config.Flags, config.FlagVectorStoreTgt, &cmder.vectorTarget)
	config.AddStringFlag(cmd, config.Flags, config.FlagEventsProv, &cmder.eventsProvider)
	config.AddStringFlag(cmd, config.Flags, config.FlagEventsBrokers, &cmder.eventsBrokers)
	config.AddStringFlag(cmd, config.Flags, config.FlagEventsTopic, &cmder.eventsTopic)
	cmd.Flags().StringVar(&cmder.watchDir, "watch", "", "Watch a directory and ingest new *.json files")

	return cmd
}

// backends are the stores an ingestion writes to.
type backends struct {
	cfg      *config.Config
	logger   *slog.Logger
	ingester *ingest.Ingester
	closers  []io.Closer
}

func (b *backends) Close() {
	cmdutil.CloseAll(b.logger, b.closers...)
}

func (c *ingestCommander) open(cmd *cobra.Command) (*backends, error) {
	cfg, err := cmdutil.LoadConfig(cmd, ingestFlags)
	if err != nil {
		return nil, err
	}
	l := cmdutil.NewLogger(cmd)
	ctx := cmd.Context()

	b := &backends{cfg: cfg, logger: l}

	driver, err := cmdutil.OpenDriver(ctx, cmd, cfg, l, false)
	if err != nil {
		return nil, err
	}
	b.closers = append(b.closers, driver)

	centroids, err := cmdutil.OpenCentroidIndex(ctx, cfg, l)
	if err != nil {
		b.Close()
		return nil, err
	}
	if centroids != nil {
		b.closers = append(b.closers, centroids)
	}

	publisher, err := cmdutil.OpenPublisher(cfg, l)
	if err != nil {
		b.Close()
		return nil, err
	}
	b.closers = append(b.closers, publisher)

	b.ingester, err = ingest.New(&ingest.Config{
		Driver:    driver,
		Publisher: publisher,
		Centroids: centroids,
		Logger:    l,
	})
	if err != nil {
		b.Close()
		return nil, err
	}
	return b, nil
}

func (c *ingestCommander) run(cmd *cobra.Command, args []string) error {
	if err := cmdutil.ValidateFormat(c.format); err != nil {
		return err
	}

	b, err := c.open(cmd)
	if err != nil {
		return err
	}
	defer b.Close()

	if c.watchDir != "" {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		configDir, _ := cmd.Flags().GetString("config-dir")
		w, err := newDirWatcher(c.watchDir, configDir, b, cmd.OutOrStdout())
		if err != nil {
			return err
		}
		return w.run(ctx)
	}

	results, err := c.ingestAll(cmd, b, args)
	if err != nil {
		return err
	}
	if err := c.print(cmd.OutOrStdout(), results); err != nil {
		return err
	}

	failed := 0
	for _, r := range results {
		if r.Error != "" {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%w: %d of %d records", ErrIngestFailed, failed, len(results))
	}
	return nil
}

// ingestAll ingests stdin synchronously and files on the worker pool. The
// results keep the order of args.
func (c *ingestCommander) ingestAll(cmd *cobra.Command, b *backends, args []string) ([]FileResult, error) {
	ctx := cmd.Context()
	results := make([]FileResult, len(args))
	index := make(map[string][]int, len(args))

	var (
		mu    sync.Mutex
		files int
	)
	for i, a := range args {
		results[i].Path = a
		if a == "-" {
			continue
		}
		index[a] = append(index[a], i)
		files++
	}

	for i, a := range args {
		if a != "-" {
			continue
		}
		rec, err := ingest.Decode(cmd.InOrStdin())
		if err != nil {
			results[i].Error = fmt.Sprintf("stdin: %v", err)
			continue
		}
		report, err := b.ingester.Ingest(ctx, rec, ingest.Source{Component: ingest.ComponentCLI, Path: "-"})
		setResult(&results[i], report, err)
	}

	if files == 0 {
		return results, nil
	}

	queueSize := max(b.cfg.Ingest.QueueSize, uint(files))
	pool, err := worker.NewPool(ctx, &worker.Config{
		Ingester:   b.ingester,
		NumWorkers: b.cfg.Ingest.Workers,
		QueueSize:  queueSize,
		Logger:     b.logger,
		OnResult: func(r worker.Result) {
			mu.Lock()
			defer mu.Unlock()
			slots := index[r.Job.Path]
			setResult(&results[slots[0]], r.Report, r.Err)
			index[r.Job.Path] = slots[1:]
		},
	})
	if err != nil {
		return nil, err
	}

	err = cliui.Step(cmd.ErrOrStderr(), fmt.Sprintf("Ingesting %d files", files), func() error {
		for _, a := range args {
			if a == "-" {
				continue
			}
			pool.Enqueue(worker.Job{Path: a, Component: ingest.ComponentCLI})
		}
		pool.Close()
		return nil
	})
	return results, err
}

func setResult(r *FileResult, report *ingest.Report, err error) {
	if err != nil {
		r.Error = err.Error()
		return
	}
	r.Report = report
}

func (c *ingestCommander) print(w io.Writer, results []FileResult) error {
	if c.format == cmdutil.FormatJSON {
		return cmdutil.WriteJSON(w, results)
	}

	rows := make([][]string, 0, len(results))
	for _, r := range results {
		rows = append(rows, resultRow(r))
	}
	return cmdutil.WriteRows(w, c.format, "Ingested scans", resultHeaders, rows)
}

var resultHeaders = []string{"File", "Scan", "Status", "Regions new/existing", "Surfaces new/existing", "Time"}

func resultRow(r FileResult) []string {
	if r.Report == nil {
		return []string{r.Path, "", "failed: " + r.Error, "", "", ""}
	}

	status := "existing"
	if r.Report.ScanInserted {
		status = "inserted"
	}
	counts := r.Report.Counts
	return []string{
		r.Path,
		r.Report.Scan.FileName,
		status,
		strconv.Itoa(counts.RegionsInserted) + "/" + strconv.Itoa(counts.RegionsExisting),
		strconv.Itoa(counts.LODsInserted) + "/" + strconv.Itoa(counts.LODsExisting),
		cliui.FormatDuration(r.Report.Elapsed),
	}
}
