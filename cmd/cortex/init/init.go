// Package initcmder provides the init command for initializing a local .cortex
// directory in the current working directory.
package initcmder

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/cortex/pkg/config"
	"github.com/papercomputeco/cortex/pkg/dotdir"
)

const initLongDesc string = `Initialize a new .cortex/ directory in the current working directory.

Creates a local .cortex/ directory that takes precedence over the default
~/.cortex/ directory for configuration, watch state and other cortex
operations, and writes a config.toml with default values.

Use --preset to start from a deployment preset (postgis, sqlite, inmemory)
or from a config.toml fetched over HTTP(S).

Examples:
  cortex init
  cortex init --preset postgis
  cortex init --preset https://example.com/cortex/config.toml`

const initShortDesc string = "Initialize a local .cortex/ directory"

const remoteConfigLimit = 1 << 20

type initCommander struct {
	preset string
}

func NewInitCmd() *cobra.Command {
	cmder := &initCommander{}

	cmd := &cobra.Command{
		Use:   "init",
		Short: initShortDesc,
		Long:  initLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd)
		},
	}

	cmd.Flags().StringVar(&cmder.preset, "preset", "",
		fmt.Sprintf("Config preset (%s) or an http(s) URL to a config.toml", strings.Join(config.ValidPresetNames(), ", ")))

	return cmd
}

func (c *initCommander) run(cmd *cobra.Command) error {
	out := cmd.OutOrStdout()

	cfg, err := c.presetConfig(cmd.Context())
	if err != nil {
		return err
	}

	configDir, _ := cmd.Flags().GetString("config-dir")
	dir, err := dotdir.NewManager().Init(configDir)
	if err != nil {
		return err
	}

	cfger, err := config.NewConfiger(dir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Keep an existing config unless a preset was asked for.
	if c.preset == "" {
		existing, err := cfger.LoadConfig()
		if err != nil {
			return err
		}
		cfg = existing
	}

	if err := cfger.SaveConfig(cfg); err != nil {
		return err
	}

	fmt.Fprintf(out, "Initialized .cortex directory: %s\n", dir)
	fmt.Fprintf(out, "Wrote %s\n", filepath.Join(dir, "config.toml"))
	return nil
}

func (c *initCommander) presetConfig(ctx context.Context) (*config.Config, error) {
	switch {
	case c.preset == "":
		return config.NewDefaultConfig(), nil
	case strings.HasPrefix(c.preset, "http://"), strings.HasPrefix(c.preset, "https://"):
		return fetchConfig(ctx, c.preset)
	default:
		return config.PresetConfig(c.preset)
	}
}

func fetchConfig(ctx context.Context, url string) (*config.Config, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building preset request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching preset %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching preset %s: unexpected status %s", url, resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, remoteConfigLimit))
	if err != nil {
		return nil, fmt.Errorf("reading preset %s: %w", url, err)
	}

	return config.ParseConfigTOML(data)
}
