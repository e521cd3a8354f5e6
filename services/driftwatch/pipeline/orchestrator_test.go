// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianDrift/services/driftwatch/actions"
	"github.com/AleutianAI/AleutianDrift/services/driftwatch/datatypes"
	"github.com/AleutianAI/AleutianDrift/services/driftwatch/observability"
)

// =============================================================================
// Fakes
// =============================================================================

type fakeEmbedding struct {
	report *datatypes.EmbeddingDriftReport
	err    error
}

func (f fakeEmbedding) DetectDrift(ctx context.Context, baseline, current datatypes.TimeWindow) (*datatypes.EmbeddingDriftReport, error) {
	return f.report, f.err
}

type fakeBehavior struct {
	report *datatypes.BehaviorDriftReport
	err    error
}

func (f fakeBehavior) DetectDrift(ctx context.Context, baseline, current datatypes.TimeWindow) (*datatypes.BehaviorDriftReport, error) {
	return f.report, f.err
}

type fakeAccuracy struct {
	report *datatypes.AccuracyDriftReport
	err    error
}

func (f fakeAccuracy) DetectDrift(ctx context.Context, baseline, current datatypes.TimeWindow) (*datatypes.AccuracyDriftReport, error) {
	return f.report, f.err
}

type fakeDispatcher struct {
	action datatypes.Action
	err    error
	calls  int
}

func (f *fakeDispatcher) Action() datatypes.Action { return f.action }

func (f *fakeDispatcher) Execute(ctx context.Context) (map[string]any, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return map[string]any{"status": "done"}, nil
}

type fakeArchive struct {
	saved []*datatypes.RunReport
	err   error
}

func (f *fakeArchive) SaveRunReport(report *datatypes.RunReport) error {
	if f.err != nil {
		return f.err
	}
	f.saved = append(f.saved, report)
	return nil
}

// newTestOrchestrator wires fakes around a temp report directory.
func newTestOrchestrator(t *testing.T, embedding EmbeddingDetector, behavior BehaviorDetector, accuracy AccuracyDetector, registry *actions.Registry, metrics *observability.DriftMetrics, archive ReportArchive) *Orchestrator {
	t.Helper()
	return NewOrchestrator(
		embedding, behavior, accuracy,
		nil, registry, metrics, archive,
		Config{ReportDir: t.TempDir()},
		nil,
	)
}

func hasEvent(run *datatypes.RunReport, eventType string) bool {
	for _, event := range run.Events {
		if event.Type == eventType {
			return true
		}
	}
	return false
}

// =============================================================================
// Run outcomes
// =============================================================================

func TestOrchestrator_NoDrift(t *testing.T) {
	orch := newTestOrchestrator(t,
		fakeEmbedding{report: &datatypes.EmbeddingDriftReport{}},
		fakeBehavior{report: &datatypes.BehaviorDriftReport{}},
		fakeAccuracy{report: &datatypes.AccuracyDriftReport{}},
		nil, nil, nil,
	)

	run, err := orch.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, datatypes.RunStatusNoDrift, run.Status)
	assert.Empty(t, run.ActionsTaken)
	assert.True(t, hasEvent(run, "run_started"))
	assert.True(t, hasEvent(run, "no_drift_detected"))
	assert.True(t, hasEvent(run, "run_completed"))
	assert.False(t, hasEvent(run, "drift_detected"))
	require.NotNil(t, run.DriftReport)
	assert.False(t, run.DriftReport.OverallDriftDetected)
}

func TestOrchestrator_DriftExecutesActions(t *testing.T) {
	fineTune := &fakeDispatcher{action: datatypes.ActionFineTuneModel}
	registry, err := actions.NewRegistry(fineTune)
	require.NoError(t, err)

	metrics := observability.NewDriftMetrics(prometheus.NewRegistry())

	orch := newTestOrchestrator(t,
		fakeEmbedding{report: &datatypes.EmbeddingDriftReport{}},
		fakeBehavior{report: &datatypes.BehaviorDriftReport{
			DriftDetected: true,
			DriftScore:    0.9,
			Changes:       datatypes.BehaviorChanges{RefusalDriftDetected: true},
		}},
		fakeAccuracy{report: &datatypes.AccuracyDriftReport{}},
		registry, metrics, nil,
	)

	run, err := orch.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, datatypes.RunStatusActionsExecuted, run.Status)
	assert.Equal(t, []datatypes.Action{datatypes.ActionFineTuneModel}, run.ActionsTaken)
	assert.Equal(t, 1, fineTune.calls)
	assert.Equal(t, datatypes.ActionStatusSuccess, run.ActionResults[datatypes.ActionFineTuneModel].Status)
	assert.True(t, hasEvent(run, "drift_detected"))
	assert.True(t, hasEvent(run, "action_executed"))

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.RetrainEventsTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.RunsTotal.WithLabelValues("drift_actions_executed")))
}

func TestOrchestrator_MonitorFailureDegradesRun(t *testing.T) {
	orch := newTestOrchestrator(t,
		fakeEmbedding{err: errors.New("store unavailable")},
		fakeBehavior{report: &datatypes.BehaviorDriftReport{DriftScore: 0.1}},
		fakeAccuracy{report: &datatypes.AccuracyDriftReport{}},
		nil, nil, nil,
	)

	run, err := orch.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, datatypes.RunStatusCompletedWithErrors, run.Status)
	require.NotNil(t, run.DriftReport)
	assert.Contains(t, run.DriftReport.MonitorErrors, "embedding")
	// Sibling monitors still contribute their reports.
	assert.NotNil(t, run.DriftReport.BehaviorDrift)
	assert.NotNil(t, run.DriftReport.AccuracyDrift)
	assert.True(t, hasEvent(run, "monitor_failed"))
}

func TestOrchestrator_ActionFailureDegradesRun(t *testing.T) {
	reindex := &fakeDispatcher{action: datatypes.ActionReindexDocuments, err: errors.New("weaviate down")}
	registry, err := actions.NewRegistry(reindex)
	require.NoError(t, err)

	orch := newTestOrchestrator(t,
		fakeEmbedding{report: &datatypes.EmbeddingDriftReport{DriftDetected: true, DriftScore: 0.8}},
		fakeBehavior{report: &datatypes.BehaviorDriftReport{}},
		fakeAccuracy{report: &datatypes.AccuracyDriftReport{}},
		registry, nil, nil,
	)

	run, err := orch.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, datatypes.RunStatusCompletedWithErrors, run.Status)
	assert.Empty(t, run.ActionsTaken)
	result := run.ActionResults[datatypes.ActionReindexDocuments]
	assert.Equal(t, datatypes.ActionStatusFailed, result.Status)
	assert.Contains(t, result.Error, "weaviate down")
	assert.True(t, hasEvent(run, "action_failed"))
}

func TestOrchestrator_MissingDispatcherSkipsAction(t *testing.T) {
	registry, err := actions.NewRegistry() // empty
	require.NoError(t, err)

	orch := newTestOrchestrator(t,
		fakeEmbedding{report: &datatypes.EmbeddingDriftReport{DriftDetected: true, DriftScore: 0.8}},
		fakeBehavior{report: &datatypes.BehaviorDriftReport{}},
		fakeAccuracy{report: &datatypes.AccuracyDriftReport{}},
		registry, nil, nil,
	)

	run, err := orch.Run(context.Background())
	require.NoError(t, err)

	// A decided-but-undispatchable action degrades the run.
	assert.Equal(t, datatypes.RunStatusCompletedWithErrors, run.Status)
	assert.Empty(t, run.ActionsTaken)
	assert.True(t, hasEvent(run, "action_skipped"))
}

func TestOrchestrator_WritesReportFile(t *testing.T) {
	dir := t.TempDir()
	archive := &fakeArchive{}
	orch := NewOrchestrator(
		fakeEmbedding{report: &datatypes.EmbeddingDriftReport{}},
		fakeBehavior{report: &datatypes.BehaviorDriftReport{}},
		fakeAccuracy{report: &datatypes.AccuracyDriftReport{}},
		nil, nil, nil, archive,
		Config{ReportDir: dir},
		nil,
	)

	run, err := orch.Run(context.Background())
	require.NoError(t, err)

	path := filepath.Join(dir, run.Filename())
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), run.RunID)
	assert.True(t, hasEvent(run, "report_written"))

	require.Len(t, archive.saved, 1)
	assert.Equal(t, run.RunID, archive.saved[0].RunID)
}

func TestOrchestrator_CancelledContext(t *testing.T) {
	orch := newTestOrchestrator(t,
		fakeEmbedding{report: &datatypes.EmbeddingDriftReport{}},
		nil, nil, nil, nil, nil,
	)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := orch.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOrchestrator_NilDetectorsSkipped(t *testing.T) {
	orch := newTestOrchestrator(t, nil, nil, nil, nil, nil, nil)

	run, err := orch.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, datatypes.RunStatusNoDrift, run.Status)
	require.NotNil(t, run.DriftReport)
	assert.Nil(t, run.DriftReport.EmbeddingDrift)
	assert.Nil(t, run.DriftReport.BehaviorDrift)
	assert.Nil(t, run.DriftReport.AccuracyDrift)
	assert.Nil(t, run.DriftReport.MonitorErrors)
}

func TestOrchestrator_RunIDMatchesStartTime(t *testing.T) {
	orch := newTestOrchestrator(t,
		fakeEmbedding{report: &datatypes.EmbeddingDriftReport{}},
		nil, nil, nil, nil, nil,
	)

	run, err := orch.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, datatypes.RunID(run.StartTime), run.RunID)
	assert.GreaterOrEqual(t, run.DurationSeconds, 0.0)
	assert.False(t, run.EndTime.Before(run.StartTime))
}
