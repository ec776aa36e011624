package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/docker/go-units"
	"github.com/spf13/cobra"

	"doclingd/internal/assets"
	"doclingd/internal/common/fsutil"
	"doclingd/internal/engine"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download the model into the cache",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()
		return fetch(ctx, cmd.OutOrStdout(), cmd.ErrOrStderr())
	},
}

func init() {
	rootCmd.AddCommand(fetchCmd)
}

// fetch downloads the manifest for the default precision table.
func fetch(ctx context.Context, stdout, stderr io.Writer) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := newApp(cfg, newLogger(cfg.LogLevel, cfg.LogFormat, stderr))
	if err != nil {
		return err
	}
	defer a.Close()

	files := engine.Manifest(engine.DefaultPrecision())
	agg := assets.NewAggregator(engine.CountShards(files), engine.IsShard, newProgressPrinter(stderr))
	dir, err := a.fetcher.Fetch(ctx, cfg.ModelID, cfg.Revision, files, func(ev assets.Event) { agg.Observe(ev) })
	if err != nil {
		return err
	}
	names, size, err := fsutil.DirStats(dir)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(stdout, "%s: %d files, %s\n", dir, len(names), units.HumanSize(float64(size)))
	return err
}
