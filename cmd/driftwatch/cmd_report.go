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

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianDrift/services/driftwatch/config"
)

// reportCmd prints the most recent archived run report.
//
// # Examples
//
//	driftwatch report          # Human-oriented summary
//	driftwatch report --json   # Full report as JSON
var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Show the most recent drift run report",
	RunE:  runReportCommand,
}

var reportJSONOutput bool

func init() {
	reportCmd.Flags().BoolVar(&reportJSONOutput, "json", false,
		"Print the full report as JSON")
	rootCmd.AddCommand(reportCmd)
}

func runReportCommand(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	run, err := store.LatestRunReport()
	if err != nil {
		return fmt.Errorf("load latest report: %w", err)
	}
	if run == nil {
		return fmt.Errorf("no completed runs in %s", cfg.DataDir)
	}

	if reportJSONOutput {
		data, err := json.MarshalIndent(run, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	fmt.Printf("Run:      %s\n", run.RunID)
	fmt.Printf("Status:   %s\n", run.Status)
	fmt.Printf("Started:  %s\n", run.StartTime.Format("2006-01-02 15:04:05 MST"))
	fmt.Printf("Duration: %.1fs\n", run.DurationSeconds)
	if report := run.DriftReport; report != nil {
		fmt.Printf("Drift:    detected=%t score=%.3f\n",
			report.OverallDriftDetected, report.OverallDriftScore)
		for monitor, msg := range report.MonitorErrors {
			fmt.Printf("  monitor %s failed: %s\n", monitor, msg)
		}
	}
	if len(run.ActionsTaken) == 0 {
		fmt.Println("Actions:  none")
	} else {
		fmt.Println("Actions:")
		for _, action := range run.ActionsTaken {
			result := run.ActionResults[action]
			fmt.Printf("  %s: %s\n", action, result.Status)
		}
	}
	return nil
}
