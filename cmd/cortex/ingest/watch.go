package ingestcmder

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/papercomputeco/cortex/pkg/cliui"
	"github.com/papercomputeco/cortex/pkg/dotdir"
	"github.com/papercomputeco/cortex/pkg/ingest"
	"github.com/papercomputeco/cortex/pkg/ingest/worker"
)

// dirWatcher ingests *.json files that appear in a directory.
type dirWatcher struct {
	dir       string
	configDir string
	backends  *backends
	out       io.Writer
	manager   *dotdir.Manager

	mu       sync.Mutex
	state    *dotdir.WatchState
	inflight map[string]bool
}

func newDirWatcher(dir, configDir string, b *backends, out io.Writer) (*dirWatcher, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving watch directory: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("watch directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("watch directory %s is not a directory", abs)
	}

	manager := dotdir.NewManager()
	state, err := manager.LoadWatchState(configDir)
	if err != nil {
		return nil, err
	}

	return &dirWatcher{
		dir:       abs,
		configDir: configDir,
		backends:  b,
		out:       out,
		manager:   manager,
		state:     state,
		inflight:  map[string]bool{},
	}, nil
}

// run ingests the files already in the directory, then new and changed
// files until ctx is done. Queued files finish before it returns.
func (w *dirWatcher) run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating directory watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(w.dir); err != nil {
		return fmt.Errorf("watching %s: %w", w.dir, err)
	}

	cfg := w.backends.cfg
	pool, err := worker.NewPool(context.WithoutCancel(ctx), &worker.Config{
		Ingester:   w.backends.ingester,
		NumWorkers: cfg.Ingest.Workers,
		QueueSize:  cfg.Ingest.QueueSize,
		Logger:     w.backends.logger,
		OnResult:   w.done,
	})
	if err != nil {
		return err
	}
	defer pool.Close()

	existing, err := filepath.Glob(filepath.Join(w.dir, "*.json"))
	if err != nil {
		return err
	}
	for _, path := range existing {
		w.offer(pool, path)
	}

	fmt.Fprintf(w.out, "  %s watching %s\n", cliui.StepStyle.Render("●"), w.dir)
	w.backends.logger.Info("watching for scan records", "dir", w.dir)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.offer(pool, event.Name)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("directory watcher error: %w", err)
		}
	}
}

// offer enqueues path unless it is not a record, is being ingested or was
// already ingested unchanged.
func (w *dirWatcher) offer(pool *worker.Pool, path string) {
	if !strings.EqualFold(filepath.Ext(path), ".json") {
		return
	}
	path = filepath.Clean(path)

	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() || info.Size() == 0 {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.inflight[path] || w.state.Seen(path, info) {
		return
	}
	if pool.Enqueue(worker.Job{Path: path, Component: ingest.ComponentWatch}) {
		w.inflight[path] = true
	}
}

// done records a finished job. A failed file is retried on its next change.
func (w *dirWatcher) done(r worker.Result) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.inflight, r.Job.Path)

	res := FileResult{Path: r.Job.Path}
	setResult(&res, r.Report, r.Err)
	fmt.Fprintf(w.out, "  %s %s\n", cliui.Mark(r.Err), strings.Join(resultRow(res), "  "))

	if r.Err != nil {
		return
	}

	info, err := os.Stat(r.Job.Path)
	if err != nil {
		return
	}
	w.state.Record(r.Job.Path, info, r.Report.Scan.FileName)
	if err := w.manager.SaveWatchState(w.state, w.configDir); err != nil {
		w.backends.logger.Warn("failed to save watch state", "error", err)
	}
}
