/*
Package metrics exposes the perf iopx's per-operation counters as
Prometheus metrics over HTTP.

# Overview

Every layer in an iopx tree can call into a shared Collector to record
operation counts, latencies, and byte totals. The collector owns a
dedicated Prometheus registry and serves it alongside a small set of
debug endpoints.

	collector, err := metrics.NewCollector(&metrics.Config{
		Enabled:   true,
		Port:      9090,
		Path:      "/metrics",
		Namespace: "openarchive",
	})
	if err != nil {
		log.Fatal(err)
	}
	if err := collector.Start(ctx); err != nil {
		log.Fatal(err)
	}
	defer collector.Stop(ctx)

# Recording operations

	start := time.Now()
	err := driver.Pread(ctx, f, req)
	collector.RecordOperation("pread", time.Since(start), int64(req.ResultN), err == nil)

# Prometheus metrics

Counters:
  - openarchive_operations_total{operation,status}
  - openarchive_cache_requests_total{type,source}
  - openarchive_errors_total{operation,type}

Histograms:
  - openarchive_operation_duration_seconds{operation}
  - openarchive_operation_size_bytes{operation}

Gauges:
  - openarchive_cache_size_bytes{level}
  - openarchive_active_connections

# HTTP endpoints

/metrics serves Prometheus-formatted output; /health reports collector
liveness; /debug/metrics returns a human-readable summary for
troubleshooting without a Prometheus server on hand.

# See also

  - internal/circuit: circuit breaker sitting above the archive-store driver
  - pkg/errors: the structured error taxonomy these metrics classify against
*/
package metrics
