// Command openarchive drives the backup/stub/scan operations spec.md §6
// describes, wiring config.Configuration into an engine.Engine and the
// iopx trees it builds.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/openarchive/openarchive/internal/config"
	"github.com/openarchive/openarchive/internal/logging"
	"github.com/openarchive/openarchive/internal/metrics"
	"github.com/spf13/cobra"
)

var configPath string
var cacheConfigPath string
var memcacheServers []string
var metricsPort int

var rootCmd = &cobra.Command{
	Use:   "openarchive",
	Short: "Archival data-movement engine: backup, stub, and scan between a volume filesystem and an archive store",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "/etc/archivestore.conf", "path to the openarchive config file")
	rootCmd.PersistentFlags().StringVar(&cacheConfigPath, "cache-config", "", "path to the YAML overlay for cache/write-buffer knobs (optional)")
	rootCmd.PersistentFlags().StringSliceVar(&memcacheServers, "memcache-servers", nil, "memcached server addresses for the meta iopx front cache; in-process cache if unset")
	rootCmd.PersistentFlags().IntVar(&metricsPort, "metrics-port", 0, "serve Prometheus metrics on this port; disabled if 0")
	rootCmd.AddCommand(backupCmd, stubCmd, scanCmd)
}

func loadConfig() (*config.Configuration, error) {
	cfg := config.NewDefault()
	if err := cfg.LoadPrimary(configPath); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if cacheConfigPath != "" {
		if err := cfg.LoadSecondaryYAML(cacheConfigPath); err != nil {
			return nil, fmt.Errorf("load cache config: %w", err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func newLogger() (*logging.Logger, *config.Configuration, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	return logging.New(cfg), cfg, nil
}

// newMetricsCollector builds a Collector bound to --metrics-port, or a
// disabled one if the flag was left at its default 0, so perfiopx always
// has something to call RecordOperation on.
func newMetricsCollector() (*metrics.Collector, error) {
	return metrics.NewCollector(&metrics.Config{
		Enabled:        metricsPort != 0,
		Port:           metricsPort,
		Path:           "/metrics",
		Namespace:      "openarchive",
		UpdateInterval: 30 * time.Second,
	})
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
