// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianDrift/services/driftwatch/config"
	"github.com/AleutianAI/AleutianDrift/services/driftwatch/datatypes"
	"github.com/AleutianAI/AleutianDrift/services/driftwatch/observability"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var runJSONOutput bool // Print the run report as JSON to stdout

// =============================================================================
// COMMAND DEFINITION
// =============================================================================

// runCmd executes one full drift cycle and exits.
//
// # Examples
//
//	driftwatch run           # One detection cycle, summary to stderr logs
//	driftwatch run --json    # Also print the full run report to stdout
//
// Exit code 1 when the run completed with errors, so cron and CI can alert.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one drift detection cycle",
	Long: `Runs one complete drift cycle: detect drift across all monitors,
decide corrective actions, execute them, and write the run report.

The report lands in DRIFT_REPORT_DIR as drift_report_<run_id>.json and
is archived in the log store.`,
	RunE: runRunCommand,
}

func init() {
	runCmd.Flags().BoolVar(&runJSONOutput, "json", false,
		"Print the full run report as JSON to stdout")
	rootCmd.AddCommand(runCmd)
}

// =============================================================================
// COMMAND IMPLEMENTATION
// =============================================================================

func runRunCommand(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logWrapper := newLogger(cfg)
	defer logWrapper.Close()
	logger := logWrapper.Slog()

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	metrics := observability.NewDriftMetrics(prometheus.NewRegistry())
	orch, err := buildOrchestrator(cfg, store, metrics, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	run, err := orch.Run(ctx)
	if err != nil {
		return fmt.Errorf("pipeline run: %w", err)
	}

	if runJSONOutput {
		data, err := json.MarshalIndent(run, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal run report: %w", err)
		}
		fmt.Println(string(data))
	}

	if run.Status == datatypes.RunStatusCompletedWithErrors {
		return fmt.Errorf("run %s completed with errors", run.RunID)
	}
	return nil
}
