// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package monitors

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianDrift/services/driftwatch/datatypes"
	"github.com/AleutianAI/AleutianDrift/services/driftwatch/logstore"
)

// seedEvaluations writes n evaluation records with the given accuracy.
func seedEvaluations(t *testing.T, store *logstore.BadgerStore, day, n int, accuracy float64) {
	t.Helper()
	for i := 0; i < n; i++ {
		require.NoError(t, store.AppendEvaluation(datatypes.EvaluationRecord{
			Timestamp:         mtime(day, i),
			EvaluationSetName: "qa-benchmark",
			Accuracy:          accuracy,
			Precision:         accuracy,
			Recall:            accuracy,
			F1Score:           accuracy,
		}))
	}
}

// seedFeedback writes n interactions carrying the given feedback score.
func seedFeedback(t *testing.T, store *logstore.BadgerStore, day, n int, score float64) {
	t.Helper()
	seedInteractions(t, store, day, n, func(i int, rec *datatypes.InteractionRecord) {
		s := score
		rec.UserFeedbackScore = &s
	})
}

// seedTasks writes n task records, the first successes of which succeed.
func seedTasks(t *testing.T, store *logstore.BadgerStore, day, n, successes int) {
	t.Helper()
	for i := 0; i < n; i++ {
		require.NoError(t, store.AppendTask(datatypes.TaskRecord{
			Timestamp:   mtime(day, i),
			SuccessFlag: i < successes,
		}))
	}
}

func TestAccuracyMonitor_NoData(t *testing.T) {
	store := newTestStore(t)
	baseline, current := testWindows()

	monitor := NewAccuracyMonitor(store, AccuracyConfig{}, nil)
	report, err := monitor.DetectDrift(context.Background(), baseline, current)
	require.NoError(t, err)

	assert.False(t, report.DriftDetected)
	assert.Equal(t, 0.0, report.DriftScore)
	assert.Nil(t, report.Changes.AccuracyDrop)
	assert.Nil(t, report.Changes.FeedbackDropPct)
	assert.Nil(t, report.Changes.TaskSuccessDrop)
	assert.True(t, report.BaselinePeriod.Tasks.StreamMissing)
	assert.True(t, report.CurrentPeriod.Tasks.StreamMissing)
}

func TestAccuracyMonitor_AccuracyDrop(t *testing.T) {
	store := newTestStore(t)
	baseline, current := testWindows()
	seedEvaluations(t, store, 5, 5, 0.90)
	seedEvaluations(t, store, 15, 5, 0.80)

	monitor := NewAccuracyMonitor(store, AccuracyConfig{}, nil)
	report, err := monitor.DetectDrift(context.Background(), baseline, current)
	require.NoError(t, err)

	assert.True(t, report.DriftDetected)
	assert.True(t, report.Changes.AccuracyDriftDetected)
	require.NotNil(t, report.Changes.AccuracyDrop)
	assert.InDelta(t, 0.10, *report.Changes.AccuracyDrop, 1e-9)
	// 0.10 drop against a 0.05 threshold saturates the score.
	assert.Equal(t, 1.0, report.DriftScore)
}

func TestAccuracyMonitor_AccuracyStable(t *testing.T) {
	store := newTestStore(t)
	baseline, current := testWindows()
	seedEvaluations(t, store, 5, 5, 0.90)
	seedEvaluations(t, store, 15, 5, 0.89)

	monitor := NewAccuracyMonitor(store, AccuracyConfig{}, nil)
	report, err := monitor.DetectDrift(context.Background(), baseline, current)
	require.NoError(t, err)

	assert.False(t, report.DriftDetected)
	require.NotNil(t, report.Changes.AccuracyDrop)
	assert.InDelta(t, 0.01, *report.Changes.AccuracyDrop, 1e-9)
}

func TestAccuracyMonitor_FeedbackDrop(t *testing.T) {
	store := newTestStore(t)
	baseline, current := testWindows()
	seedFeedback(t, store, 5, 10, 4.0)
	seedFeedback(t, store, 15, 10, 2.0)

	monitor := NewAccuracyMonitor(store, AccuracyConfig{}, nil)
	report, err := monitor.DetectDrift(context.Background(), baseline, current)
	require.NoError(t, err)

	assert.True(t, report.DriftDetected)
	assert.True(t, report.Changes.FeedbackDriftDetected)
	require.NotNil(t, report.Changes.FeedbackDropPct)
	assert.InDelta(t, 0.5, *report.Changes.FeedbackDropPct, 1e-9)
}

func TestAccuracyMonitor_FeedbackCounts(t *testing.T) {
	store := newTestStore(t)
	baseline, current := testWindows()
	seedFeedback(t, store, 5, 4, 5.0)
	// Current: two positive (4.5), one negative (1.0), one neutral (3.0).
	seedInteractions(t, store, 15, 4, func(i int, rec *datatypes.InteractionRecord) {
		scores := []float64{4.5, 4.5, 1.0, 3.0}
		rec.UserFeedbackScore = ptr(scores[i])
	})

	monitor := NewAccuracyMonitor(store, AccuracyConfig{}, nil)
	report, err := monitor.DetectDrift(context.Background(), baseline, current)
	require.NoError(t, err)

	feedback := report.CurrentPeriod.Feedback
	assert.Equal(t, 4, feedback.FeedbackCount)
	assert.Equal(t, 2, feedback.PositiveCount)
	assert.Equal(t, 1, feedback.NegativeCount)
	assert.InDelta(t, 0.5, feedback.PositiveRate, 1e-9)
	assert.InDelta(t, 0.25, feedback.NegativeRate, 1e-9)
}

func TestAccuracyMonitor_TaskSuccessDrop(t *testing.T) {
	store := newTestStore(t)
	baseline, current := testWindows()
	seedTasks(t, store, 5, 10, 10)
	seedTasks(t, store, 15, 10, 5)

	monitor := NewAccuracyMonitor(store, AccuracyConfig{}, nil)
	report, err := monitor.DetectDrift(context.Background(), baseline, current)
	require.NoError(t, err)

	assert.True(t, report.DriftDetected)
	assert.True(t, report.Changes.TaskDriftDetected)
	require.NotNil(t, report.Changes.TaskSuccessDrop)
	assert.InDelta(t, 0.5, *report.Changes.TaskSuccessDrop, 1e-9)
	assert.False(t, report.BaselinePeriod.Tasks.StreamMissing)
}

func TestAccuracyMonitor_MissingTaskStreamIsSilent(t *testing.T) {
	store := newTestStore(t)
	baseline, current := testWindows()
	seedEvaluations(t, store, 5, 3, 0.9)
	seedEvaluations(t, store, 15, 3, 0.9)

	monitor := NewAccuracyMonitor(store, AccuracyConfig{}, nil)
	report, err := monitor.DetectDrift(context.Background(), baseline, current)
	require.NoError(t, err)

	assert.False(t, report.DriftDetected)
	assert.Nil(t, report.Changes.TaskSuccessDrop)
	assert.True(t, report.CurrentPeriod.Tasks.StreamMissing)
}
