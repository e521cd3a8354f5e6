// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"log"

	"github.com/spf13/cobra"
)

// rootCmd is the driftwatch entry point. Configuration comes from the
// environment (see the config package for recognized variables); flags
// only cover per-invocation choices.
var rootCmd = &cobra.Command{
	Use:   "driftwatch",
	Short: "Drift detection and automated retraining for deployed models",
	Long: `driftwatch monitors a deployed model-serving system for drift and
dispatches corrective actions when drift is detected.

It compares a recent window of production telemetry against a baseline
window across three dimensions:
  - embedding drift (query/document distribution shift)
  - behavior drift (refusal, toxicity, error, and length anomalies)
  - accuracy drift (evaluations, user feedback, task outcomes)

Detected drift maps to corrective actions: document reindexing,
fine-tuning, or safety-filter updates. Every run produces a write-once
JSON report.`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Error executing command: %v", err)
	}
}
