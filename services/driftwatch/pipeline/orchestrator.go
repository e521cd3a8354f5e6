// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package pipeline runs the end-to-end drift cycle: detect, decide,
// execute, report.
//
// # Description
//
// The Orchestrator is a linear state machine:
//
//	INIT -> DETECTING -> DECIDING -> EXECUTING -> REPORTING -> DONE
//
// A run always reaches DONE and always yields a RunReport. Individual
// monitor and action failures degrade the run (status
// completed_with_errors) instead of aborting it: a partially observed
// system still produces a usable audit artifact.
//
// # Concurrency
//
// The three monitors run concurrently over the same window pair; each
// failure is isolated into the combined report's monitor_errors map.
// Actions execute sequentially in the decided order.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/AleutianDrift/services/driftwatch/actions"
	"github.com/AleutianAI/AleutianDrift/services/driftwatch/datatypes"
	"github.com/AleutianAI/AleutianDrift/services/driftwatch/decision"
	"github.com/AleutianAI/AleutianDrift/services/driftwatch/observability"
)

// =============================================================================
// States and events
// =============================================================================

// state names the orchestrator's position in the run lifecycle.
type state string

const (
	stateInit      state = "INIT"
	stateDetecting state = "DETECTING"
	stateDeciding  state = "DECIDING"
	stateExecuting state = "EXECUTING"
	stateReporting state = "REPORTING"
	stateDone      state = "DONE"
)

// Event types recorded on the run report.
const (
	eventRunStarted     = "run_started"
	eventMonitorFailed  = "monitor_failed"
	eventDriftDetected  = "drift_detected"
	eventNoDrift        = "no_drift_detected"
	eventActionExecuted = "action_executed"
	eventActionFailed   = "action_failed"
	eventActionSkipped  = "action_skipped"
	eventReportWritten  = "report_written"
	eventReportFailed   = "report_write_failed"
	eventRunCompleted   = "run_completed"
)

// =============================================================================
// Collaborator interfaces
// =============================================================================

// EmbeddingDetector, BehaviorDetector, and AccuracyDetector are the three
// monitor entry points. The monitors package provides the production
// implementations; tests substitute fakes.
type EmbeddingDetector interface {
	DetectDrift(ctx context.Context, baseline, current datatypes.TimeWindow) (*datatypes.EmbeddingDriftReport, error)
}

type BehaviorDetector interface {
	DetectDrift(ctx context.Context, baseline, current datatypes.TimeWindow) (*datatypes.BehaviorDriftReport, error)
}

type AccuracyDetector interface {
	DetectDrift(ctx context.Context, baseline, current datatypes.TimeWindow) (*datatypes.AccuracyDriftReport, error)
}

// ReportArchive persists finalized run reports. BadgerStore implements it.
type ReportArchive interface {
	SaveRunReport(report *datatypes.RunReport) error
}

// =============================================================================
// Orchestrator
// =============================================================================

// Config holds the orchestrator's window geometry and report destination.
type Config struct {
	// BaselineDays and CurrentDays define the comparison windows.
	// Defaults: 30 and 7.
	BaselineDays int
	CurrentDays  int

	// ReportDir is where drift_report_<run_id>.json files land.
	// Empty means the current working directory.
	ReportDir string
}

// DefaultConfig returns the production window geometry.
func DefaultConfig() Config {
	return Config{BaselineDays: 30, CurrentDays: 7}
}

func (c *Config) applyDefaults() {
	def := DefaultConfig()
	if c.BaselineDays <= 0 {
		c.BaselineDays = def.BaselineDays
	}
	if c.CurrentDays <= 0 {
		c.CurrentDays = def.CurrentDays
	}
}

// Orchestrator wires the monitors, the decision engine, the action
// registry, and the reporting sinks into one runnable pipeline.
type Orchestrator struct {
	embedding EmbeddingDetector
	behavior  BehaviorDetector
	accuracy  AccuracyDetector

	engine   *decision.Engine
	registry *actions.Registry
	metrics  *observability.DriftMetrics
	archive  ReportArchive

	cfg    Config
	logger *slog.Logger
	now    func() time.Time
}

// NewOrchestrator assembles a pipeline. Any detector may be nil, in which
// case that monitor is skipped and contributes nothing to the combined
// report. metrics and archive may be nil in tests.
func NewOrchestrator(
	embedding EmbeddingDetector,
	behavior BehaviorDetector,
	accuracy AccuracyDetector,
	engine *decision.Engine,
	registry *actions.Registry,
	metrics *observability.DriftMetrics,
	archive ReportArchive,
	cfg Config,
	logger *slog.Logger,
) *Orchestrator {
	cfg.applyDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	if engine == nil {
		engine = decision.NewEngine(nil, logger)
	}
	return &Orchestrator{
		embedding: embedding,
		behavior:  behavior,
		accuracy:  accuracy,
		engine:    engine,
		registry:  registry,
		metrics:   metrics,
		archive:   archive,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

// Run executes one full drift cycle and returns the finalized report.
// Run never returns an error for monitor or action failures; those are
// folded into the report. The error return covers only a nil receiver
// misuse or a context already cancelled before the run started.
func (o *Orchestrator) Run(ctx context.Context) (*datatypes.RunReport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := o.now()
	run := &datatypes.RunReport{
		RunID:         datatypes.RunID(start),
		StartTime:     start,
		ActionsTaken:  []datatypes.Action{},
		ActionResults: make(map[datatypes.Action]datatypes.ActionResult),
	}
	logger := o.logger.With("run_id", run.RunID)

	o.transition(logger, stateInit, stateDetecting)
	o.addEvent(run, eventRunStarted, map[string]any{
		"baseline_days": o.cfg.BaselineDays,
		"current_days":  o.cfg.CurrentDays,
	})

	baseline, current := datatypes.Windows(start, o.cfg.BaselineDays, o.cfg.CurrentDays)
	combined := o.detect(ctx, logger, run, baseline, current)
	run.DriftReport = combined

	if o.metrics != nil {
		o.metrics.ObserveReport(combined)
	}

	o.transition(logger, stateDetecting, stateDeciding)
	decided := o.engine.Decide(combined)
	if combined.OverallDriftDetected {
		o.addEvent(run, eventDriftDetected, map[string]any{
			"overall_drift_score": combined.OverallDriftScore,
			"actions":             decided,
		})
	} else {
		o.addEvent(run, eventNoDrift, nil)
	}

	o.transition(logger, stateDeciding, stateExecuting)
	o.execute(ctx, logger, run, decided)

	o.transition(logger, stateExecuting, stateReporting)
	run.EndTime = o.now()
	run.DurationSeconds = run.EndTime.Sub(run.StartTime).Seconds()
	run.Status = o.finalStatus(run, decided)
	o.addEvent(run, eventRunCompleted, map[string]any{"status": string(run.Status)})

	o.report(logger, run)

	if o.metrics != nil {
		o.metrics.ObserveRun(run.Status)
	}

	o.transition(logger, stateReporting, stateDone)
	logger.Info("drift pipeline run finished",
		"status", string(run.Status),
		"duration_seconds", run.DurationSeconds,
		"actions_taken", len(run.ActionsTaken),
	)
	return run, nil
}

// detect runs the three monitors concurrently and folds their outcomes
// into one combined report. A monitor error lands in MonitorErrors; the
// other monitors' reports are kept.
func (o *Orchestrator) detect(ctx context.Context, logger *slog.Logger, run *datatypes.RunReport, baseline, current datatypes.TimeWindow) *datatypes.CombinedDriftReport {
	combined := &datatypes.CombinedDriftReport{
		Timestamp:     o.now(),
		MonitorErrors: make(map[string]string),
	}

	var mu sync.Mutex
	fail := func(monitor string, err error) {
		mu.Lock()
		defer mu.Unlock()
		combined.MonitorErrors[monitor] = err.Error()
		logger.Error("monitor failed", "monitor", monitor, "error", err)
		o.addEvent(run, eventMonitorFailed, map[string]any{
			"monitor": monitor,
			"error":   err.Error(),
		})
	}

	g, gctx := errgroup.WithContext(ctx)
	if o.embedding != nil {
		g.Go(func() error {
			report, err := o.embedding.DetectDrift(gctx, baseline, current)
			if err != nil {
				fail("embedding", err)
				return nil
			}
			mu.Lock()
			combined.EmbeddingDrift = report
			mu.Unlock()
			return nil
		})
	}
	if o.behavior != nil {
		g.Go(func() error {
			report, err := o.behavior.DetectDrift(gctx, baseline, current)
			if err != nil {
				fail("behavior", err)
				return nil
			}
			mu.Lock()
			combined.BehaviorDrift = report
			mu.Unlock()
			return nil
		})
	}
	if o.accuracy != nil {
		g.Go(func() error {
			report, err := o.accuracy.DetectDrift(gctx, baseline, current)
			if err != nil {
				fail("accuracy", err)
				return nil
			}
			mu.Lock()
			combined.AccuracyDrift = report
			mu.Unlock()
			return nil
		})
	}
	// Closures always return nil; errors are folded above.
	_ = g.Wait()

	if len(combined.MonitorErrors) == 0 {
		combined.MonitorErrors = nil
	}
	combined.Finalize()

	logger.Info("drift detection complete",
		"overall_drift_detected", combined.OverallDriftDetected,
		"overall_drift_score", combined.OverallDriftScore,
		"monitor_errors", len(combined.MonitorErrors),
	)
	return combined
}

// execute dispatches the decided actions sequentially. Each action is
// attempted at most once; a failure is recorded and the remaining actions
// still run.
func (o *Orchestrator) execute(ctx context.Context, logger *slog.Logger, run *datatypes.RunReport, decided []datatypes.Action) {
	for _, action := range decided {
		if o.registry == nil {
			o.addEvent(run, eventActionSkipped, map[string]any{
				"action": string(action),
				"reason": "no dispatcher registry configured",
			})
			continue
		}
		dispatcher, ok := o.registry.Lookup(action)
		if !ok {
			logger.Warn("no dispatcher registered for action", "action", string(action))
			o.addEvent(run, eventActionSkipped, map[string]any{
				"action": string(action),
				"reason": "no dispatcher registered",
			})
			continue
		}

		details, err := dispatcher.Execute(ctx)
		if err != nil {
			logger.Error("action failed", "action", string(action), "error", err)
			run.ActionResults[action] = datatypes.ActionResult{
				Status: datatypes.ActionStatusFailed,
				Error:  err.Error(),
			}
			o.addEvent(run, eventActionFailed, map[string]any{
				"action": string(action),
				"error":  err.Error(),
			})
			continue
		}

		run.ActionsTaken = append(run.ActionsTaken, action)
		run.ActionResults[action] = datatypes.ActionResult{
			Status:  datatypes.ActionStatusSuccess,
			Details: details,
		}
		if o.metrics != nil {
			o.metrics.RecordAction(action)
		}
		logger.Info("action executed", "action", string(action))
		o.addEvent(run, eventActionExecuted, map[string]any{
			"action":  string(action),
			"details": details,
		})
	}
}

// finalStatus classifies the finished run. Any monitor error or action
// failure degrades the run; otherwise the status reflects whether drift
// required action.
func (o *Orchestrator) finalStatus(run *datatypes.RunReport, decided []datatypes.Action) datatypes.RunStatus {
	degraded := run.DriftReport != nil && len(run.DriftReport.MonitorErrors) > 0
	for _, result := range run.ActionResults {
		if result.Status == datatypes.ActionStatusFailed {
			degraded = true
		}
	}
	if len(decided) > len(run.ActionsTaken) {
		degraded = true
	}
	switch {
	case degraded:
		return datatypes.RunStatusCompletedWithErrors
	case len(decided) > 0:
		return datatypes.RunStatusActionsExecuted
	default:
		return datatypes.RunStatusNoDrift
	}
}

// report writes the run report to its write-once JSON file and archives it.
// Reporting failures are logged and appended as events; the run is already
// classified by this point and its status does not change.
func (o *Orchestrator) report(logger *slog.Logger, run *datatypes.RunReport) {
	path := filepath.Join(o.cfg.ReportDir, run.Filename())
	if err := writeReportFile(path, run); err != nil {
		logger.Error("failed to write report file", "path", path, "error", err)
		o.addEvent(run, eventReportFailed, map[string]any{
			"path":  path,
			"error": err.Error(),
		})
	} else {
		logger.Info("report written", "path", path)
		o.addEvent(run, eventReportWritten, map[string]any{"path": path})
	}

	if o.archive != nil {
		if err := o.archive.SaveRunReport(run); err != nil {
			logger.Error("failed to archive report", "error", err)
		}
	}
}

// writeReportFile persists the report with O_EXCL so a run ID can never be
// overwritten.
func writeReportFile(path string, run *datatypes.RunReport) error {
	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal run report: %w", err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("create report file: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("write report file: %w", err)
	}
	return nil
}

func (o *Orchestrator) transition(logger *slog.Logger, from, to state) {
	logger.Debug("pipeline state transition", "from", string(from), "to", string(to))
}

func (o *Orchestrator) addEvent(run *datatypes.RunReport, eventType string, details map[string]any) {
	run.Events = append(run.Events, datatypes.Event{
		Timestamp: o.now(),
		Type:      eventType,
		Details:   details,
	})
}
