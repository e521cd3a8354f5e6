// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import (
	"fmt"
	"time"
)

// Action is one corrective action the pipeline can take. The set is fixed;
// each run recomputes its own action list from its own combined report.
type Action string

const (
	ActionReindexDocuments    Action = "reindex_documents"
	ActionFineTuneModel       Action = "fine_tune_model"
	ActionUpdateSafetyFilters Action = "update_safety_filters"
)

// Valid reports whether a is a member of the action enumeration.
func (a Action) Valid() bool {
	switch a {
	case ActionReindexDocuments, ActionFineTuneModel, ActionUpdateSafetyFilters:
		return true
	}
	return false
}

// ActionStatus is the terminal state of one dispatched action.
type ActionStatus string

const (
	ActionStatusSuccess ActionStatus = "success"
	ActionStatusFailed  ActionStatus = "failed"
)

// ActionResult records the outcome of a single dispatcher call. Details
// carries dispatcher-specific fields (documents_processed, job_id, ...).
type ActionResult struct {
	Status  ActionStatus   `json:"status"`
	Details map[string]any `json:"details,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// Event is one entry in the ordered pipeline event log.
type Event struct {
	Timestamp time.Time      `json:"timestamp"`
	Type      string         `json:"event_type"`
	Details   map[string]any `json:"details,omitempty"`
}

// RunStatus classifies how a pipeline run ended. A run always completes and
// always yields a RunReport; the status distinguishes "nothing to do" from
// "acted" from "degraded".
type RunStatus string

const (
	// RunStatusNoDrift: all monitors ran, none reported drift.
	RunStatusNoDrift RunStatus = "no_drift"

	// RunStatusActionsExecuted: drift was found and every decided action
	// was attempted (individual actions may still have failed).
	RunStatusActionsExecuted RunStatus = "drift_actions_executed"

	// RunStatusCompletedWithErrors: at least one monitor or action failed;
	// detection is incomplete but the run still produced a report.
	RunStatusCompletedWithErrors RunStatus = "completed_with_errors"
)

// RunReport is the durable audit artifact for one pipeline run. It is
// created when the orchestrator starts, finalized exactly once when the
// orchestrator ends, and never updated in place afterwards.
type RunReport struct {
	RunID           string                  `json:"run_id"`
	StartTime       time.Time               `json:"start_time"`
	EndTime         time.Time               `json:"end_time"`
	DurationSeconds float64                 `json:"duration_seconds"`
	Status          RunStatus               `json:"status"`
	DriftReport     *CombinedDriftReport    `json:"drift_report"`
	ActionsTaken    []Action                `json:"actions_taken"`
	ActionResults   map[Action]ActionResult `json:"action_results,omitempty"`
	Events          []Event                 `json:"events"`
}

// RunID derives the report identifier from the run's start timestamp,
// matching the drift_report_<id>.json file naming.
func RunID(start time.Time) string {
	return fmt.Sprintf("drift-%s", start.UTC().Format("20060102-150405"))
}

// Filename returns the write-once report file name for this run.
func (r *RunReport) Filename() string {
	return fmt.Sprintf("drift_report_%s.json", r.RunID)
}
