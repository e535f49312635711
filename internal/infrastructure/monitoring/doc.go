/*
Package monitoring provides Prometheus metrics for the shell.

# Overview

Each session owns a Metrics value backed by its own registry, so tests and
multiple sessions never collide on global collectors.

# Metrics

  - medsh_commands_total{kind}: submitted lines by dispatcher classification
  - medsh_history_appends_total: lines recorded into a history ring
  - medsh_identities: identities created so far
  - medsh_aliases: aliases currently defined
  - medsh_launches_total{mode}: programs started (foreground/background)
  - medsh_launch_failures_total{mode}: programs that failed to start
  - medsh_uptime_seconds: session uptime

# Usage

	metrics := monitoring.NewMetrics()
	metrics.RecordCommand(monitoring.KindPlain)

	// Optional scrape endpoint
	go monitoring.Serve(ctx, "127.0.0.1:9464", metrics, logger)
*/
package monitoring
