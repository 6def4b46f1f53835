package main

import (
	"context"
	"fmt"

	"github.com/openarchive/openarchive/internal/engine"
	"github.com/openarchive/openarchive/pkg/retry"
	"github.com/spf13/cobra"
)

type transferFlags struct {
	srcProduct  string
	srcStore    string
	destProduct string
	destStore   string
	input       string
	output      string
}

func bindTransferFlags(cmd *cobra.Command, f *transferFlags) {
	cmd.Flags().StringVar(&f.srcProduct, "src-product", "", "source product id (e.g. glusterfs)")
	cmd.Flags().StringVar(&f.srcStore, "src-store", "", "source store id (volume or bucket)")
	cmd.Flags().StringVar(&f.destProduct, "dest-product", "", "destination product id (e.g. archivestore)")
	cmd.Flags().StringVar(&f.destStore, "dest-store", "", "destination store id")
	cmd.Flags().StringVar(&f.input, "input", "", "source file path")
	cmd.Flags().StringVar(&f.output, "output", "", "destination file path")
	for _, name := range []string{"src-product", "src-store", "dest-product", "dest-store", "input", "output"} {
		cmd.MarkFlagRequired(name)
	}
}

var backupFlags transferFlags

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Copy a file from a source filesystem to an archive-store sink",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTransfer(cmd.Context(), backupFlags, false)
	},
}

func init() {
	bindTransferFlags(backupCmd, &backupFlags)
}

func runTransfer(ctx context.Context, f transferFlags, stub bool) error {
	logger, cfg, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Close()

	eng := engine.New(engineConfigFromCfg(cfg))
	defer eng.Stop()

	collector, err := newMetricsCollector()
	if err != nil {
		return fmt.Errorf("start metrics collector: %w", err)
	}
	if err := collector.Start(ctx); err != nil {
		return fmt.Errorf("start metrics collector: %w", err)
	}
	defer collector.Stop(ctx)

	src, err := buildEndpoint(ctx, eng, cfg, collector, f.srcProduct, f.srcStore, true, logger.Logger)
	if err != nil {
		return err
	}
	dst, err := buildEndpoint(ctx, eng, cfg, collector, f.destProduct, f.destStore, false, logger.Logger)
	if err != nil {
		return err
	}

	retryer := retry.New(retry.DefaultConfig())
	var n int64
	err = retryer.DoWithContext(ctx, func(ctx context.Context) error {
		var copyErr error
		n, copyErr = copyFile(ctx, src, dst, f.input, f.output)
		return copyErr
	})
	if err != nil {
		return err
	}
	logger.Info("transfer complete", "bytes", n, "input", f.input, "output", f.output)

	if stub {
		return stubifySource(ctx, src, dst, f.input, f.output)
	}
	return nil
}
