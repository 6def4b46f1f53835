package main

import (
	"context"
	"fmt"
	"os"

	"github.com/openarchive/openarchive/internal/archtypes"
	"github.com/openarchive/openarchive/internal/engine"
	"github.com/openarchive/openarchive/pkg/retry"
	"github.com/spf13/cobra"
)

var scanFlags struct {
	scanType   string
	srcProduct string
	srcStore   string
	output     string
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Enumerate files under a source store, writing their paths to --output",
	RunE: func(cmd *cobra.Command, args []string) error {
		if scanFlags.scanType != "full" && scanFlags.scanType != "incr" {
			return fmt.Errorf("--type must be %q or %q, got %q", "full", "incr", scanFlags.scanType)
		}

		logger, cfg, err := newLogger()
		if err != nil {
			return err
		}
		defer logger.Close()

		eng := engine.New(engineConfigFromCfg(cfg))
		defer eng.Stop()

		ctx := cmd.Context()

		collector, err := newMetricsCollector()
		if err != nil {
			return fmt.Errorf("start metrics collector: %w", err)
		}
		if err := collector.Start(ctx); err != nil {
			return fmt.Errorf("start metrics collector: %w", err)
		}
		defer collector.Stop(ctx)

		ep, err := buildEndpoint(ctx, eng, cfg, collector, scanFlags.srcProduct, scanFlags.srcStore, true, logger.Logger)
		if err != nil {
			return err
		}

		root := archtypes.NewLocation(scanFlags.srcProduct, scanFlags.srcStore, "/")
		retryer := retry.New(retry.DefaultConfig())
		var locs []archtypes.Location
		err = retryer.DoWithContext(ctx, func(ctx context.Context) error {
			var scanErr error
			locs, scanErr = ep.tree.Scan(ctx, root, scanFlags.scanType == "full")
			return scanErr
		})
		if err != nil {
			return err
		}

		out, err := os.Create(scanFlags.output)
		if err != nil {
			return fmt.Errorf("open --output %s: %w", scanFlags.output, err)
		}
		defer out.Close()

		for _, l := range locs {
			fmt.Fprintln(out, l.Path())
		}
		logger.Info("scan complete", "type", scanFlags.scanType, "count", len(locs), "output", scanFlags.output)
		return nil
	},
}

func init() {
	scanCmd.Flags().StringVar(&scanFlags.scanType, "type", "full", "full or incr")
	scanCmd.Flags().StringVar(&scanFlags.srcProduct, "src-product", "", "source product id")
	scanCmd.Flags().StringVar(&scanFlags.srcStore, "src-store", "", "source store id")
	scanCmd.Flags().StringVar(&scanFlags.output, "output", "", "collect-file output path")
	for _, name := range []string{"src-product", "src-store", "output"} {
		scanCmd.MarkFlagRequired(name)
	}
}
