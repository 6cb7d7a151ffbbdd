// Package servecmder provides the serve command for running the cortex API
// server.
package servecmder

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/cortex/api"
	"github.com/papercomputeco/cortex/cmd/cortex/cmdutil"
	"github.com/papercomputeco/cortex/pkg/config"
	"github.com/papercomputeco/cortex/pkg/ingest"
)

const serveLongDesc string = `Run the cortex API server.

Serves scans, regions, level-of-detail surfaces and spatial pair queries over
HTTP, accepts scan records on POST /v1/scans and exposes the same queries as
MCP tools on /mcp.

Examples:
  cortex serve
  cortex serve --listen :9000 --driver postgres
  cortex serve --vector-store-provider qdrant --vector-store-target localhost:6334
  cortex serve --log-file /var/log/cortex.log`

const serveShortDesc string = "Run the cortex API server"

type serveCommander struct {
	storage        cmdutil.StorageFlagValues
	listen         string
	vectorProvider string
	vectorTarget   string
	eventsProvider string
	eventsBrokers  string
	eventsTopic    string
	logFile        string
}

var serveFlags = append([]string{
	config.FlagAPIListen,
	config.FlagVectorStoreProv,
	config.FlagVectorStoreTgt,
	config.FlagEventsProv,
	config.FlagEventsBrokers,
	config.FlagEventsTopic,
}, config.StorageFlags...)

func NewServeCmd() *cobra.Command {
	cmder := &serveCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd)
		},
	}

	cmdutil.AddStorageFlags(cmd, &cmder.storage)
	config.AddStringFlag(cmd, config.Flags, config.FlagAPIListen, &cmder.listen)
	config.AddStringFlag(cmd, config.Flags, config.FlagVectorStoreProv, &cmder.vectorProvider)
	config.AddStringFlag(cmd, config.Flags, config.FlagVectorStoreTgt, &cmder.vectorTarget)
	config.AddStringFlag(cmd, config.Flags, config.FlagEventsProv, &cmder.eventsProvider)
	config.AddStringFlag(cmd, config.Flags, config.FlagEventsBrokers, &cmder.eventsBrokers)
	config.AddStringFlag(cmd, config.Flags, config.FlagEventsTopic, &cmder.eventsTopic)
	cmd.Flags().StringVar(&cmder.logFile, "log-file", "", "Also append JSON logs to this file")

	return cmd
}

func (c *serveCommander) run(cmd *cobra.Command) error {
	cfg, err := cmdutil.LoadConfig(cmd, serveFlags)
	if err != nil {
		return err
	}

	var logFile io.Writer
	if c.logFile != "" {
		f, err := os.OpenFile(c.logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			return fmt.Errorf("opening log file: %w", err)
		}
		defer f.Close()
		logFile = f
	}
	l := cmdutil.NewServiceLogger(cmd, logFile)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server, closeAll, err := newServer(ctx, cmd, cfg, l)
	if err != nil {
		return err
	}
	defer closeAll()

	errChan := make(chan error, 1)
	go func() {
		if err := server.Run(); err != nil {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		l.Info("shutting down API server")
		return server.Shutdown()
	}
}

// newServer opens the configured backends and builds the API server. The
// returned func closes the backends.
func newServer(ctx context.Context, cmd *cobra.Command, cfg *config.Config, l *slog.Logger) (*api.Server, func(), error) {
	driver, err := cmdutil.OpenDriver(ctx, cmd, cfg, l, false)
	if err != nil {
		return nil, nil, err
	}

	centroids, err := cmdutil.OpenCentroidIndex(ctx, cfg, l)
	if err != nil {
		cmdutil.CloseAll(l, driver)
		return nil, nil, err
	}

	publisher, err := cmdutil.OpenPublisher(cfg, l)
	if err != nil {
		cmdutil.CloseAll(l, driver, centroids)
		return nil, nil, err
	}

	closeAll := func() {
		cmdutil.CloseAll(l, publisher, centroids, driver)
	}

	ingester, err := ingest.New(&ingest.Config{
		Driver:    driver,
		Publisher: publisher,
		Centroids: centroids,
		Logger:    l,
	})
	if err != nil {
		closeAll()
		return nil, nil, err
	}

	server, err := api.NewServer(api.Config{
		ListenAddr: cfg.API.Listen,
		Ingester:   ingester,
		Centroids:  centroids,
	}, driver, l)
	if err != nil {
		closeAll()
		return nil, nil, err
	}
	return server, closeAll, nil
}
