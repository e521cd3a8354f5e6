// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package monitors

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/AleutianAI/AleutianDrift/services/driftwatch/datatypes"
	"github.com/AleutianAI/AleutianDrift/services/driftwatch/logstore"
	"github.com/AleutianAI/AleutianDrift/services/driftwatch/stats"
)

// Feedback score boundaries on the 0-5 rating scale.
const (
	positiveFeedbackMin = 4.0
	negativeFeedbackMax = 2.0
)

// AccuracyConfig holds the accuracy monitor thresholds. Zero values get
// production defaults.
type AccuracyConfig struct {
	// AccuracyThreshold is the max acceptable absolute accuracy drop
	// between windows, also applied to the task success rate. Default 0.05.
	AccuracyThreshold float64

	// FeedbackThreshold is the max acceptable relative drop in the mean
	// user rating. Default 0.30.
	FeedbackThreshold float64

	// QueryLimit bounds each window's record fetch.
	QueryLimit int
}

// DefaultAccuracyConfig returns the production thresholds.
func DefaultAccuracyConfig() AccuracyConfig {
	return AccuracyConfig{AccuracyThreshold: 0.05, FeedbackThreshold: 0.30}
}

func (c *AccuracyConfig) applyDefaults() {
	def := DefaultAccuracyConfig()
	if c.AccuracyThreshold <= 0 {
		c.AccuracyThreshold = def.AccuracyThreshold
	}
	if c.FeedbackThreshold <= 0 {
		c.FeedbackThreshold = def.FeedbackThreshold
	}
	if c.QueryLimit <= 0 {
		c.QueryLimit = logstore.DefaultQueryLimit
	}
}

// AccuracyMonitor tracks model performance degradation across three
// independent signals: held-out evaluation accuracy, user feedback ratings,
// and task success rates.
//
// Each sub-comparison is computed only when both windows have at least one
// qualifying record; otherwise it is omitted from the report and the score.
// The task stream may not exist at all, which is not an error.
type AccuracyMonitor struct {
	store  logstore.Store
	cfg    AccuracyConfig
	logger *slog.Logger
	now    func() time.Time
}

// NewAccuracyMonitor builds a monitor over the given store.
func NewAccuracyMonitor(store logstore.Store, cfg AccuracyConfig, logger *slog.Logger) *AccuracyMonitor {
	cfg.applyDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &AccuracyMonitor{store: store, cfg: cfg, logger: logger, now: time.Now}
}

// DetectDrift compares evaluation, feedback, and task metrics between the
// baseline and current windows. DriftScore is the max of the normalized
// drops that were computable, 0 when none were, clipped to [0,1].
func (m *AccuracyMonitor) DetectDrift(ctx context.Context, baseline, current datatypes.TimeWindow) (*datatypes.AccuracyDriftReport, error) {
	m.logger.Info("starting accuracy drift detection")

	basePeriod, err := m.periodMetrics(ctx, baseline)
	if err != nil {
		return nil, fmt.Errorf("fetch baseline accuracy metrics: %w", err)
	}
	curPeriod, err := m.periodMetrics(ctx, current)
	if err != nil {
		return nil, fmt.Errorf("fetch current accuracy metrics: %w", err)
	}

	report := &datatypes.AccuracyDriftReport{
		Timestamp:      m.now(),
		BaselinePeriod: basePeriod,
		CurrentPeriod:  curPeriod,
		Thresholds: datatypes.AccuracyThresholds{
			AccuracyThreshold: m.cfg.AccuracyThreshold,
			FeedbackThreshold: m.cfg.FeedbackThreshold,
		},
	}

	var components []float64

	if basePeriod.Evaluation.AvgAccuracy != nil && curPeriod.Evaluation.AvgAccuracy != nil {
		drop := *basePeriod.Evaluation.AvgAccuracy - *curPeriod.Evaluation.AvgAccuracy
		report.Changes.AccuracyDrop = &drop
		report.Changes.AccuracyDriftDetected = drop > m.cfg.AccuracyThreshold
		components = append(components, drop/m.cfg.AccuracyThreshold)
		if report.Changes.AccuracyDriftDetected {
			m.logger.Warn("evaluation accuracy dropped", "accuracy_drop", drop)
		}
	}

	if basePeriod.Feedback.AvgRating != nil && curPeriod.Feedback.AvgRating != nil && *basePeriod.Feedback.AvgRating > 0 {
		dropPct := (*basePeriod.Feedback.AvgRating - *curPeriod.Feedback.AvgRating) / *basePeriod.Feedback.AvgRating
		report.Changes.FeedbackDropPct = &dropPct
		report.Changes.FeedbackDriftDetected = dropPct > m.cfg.FeedbackThreshold
		components = append(components, dropPct/m.cfg.FeedbackThreshold)
		if report.Changes.FeedbackDriftDetected {
			m.logger.Warn("user feedback dropped", "feedback_drop_pct", dropPct*100)
		}
	}

	if basePeriod.Tasks.SuccessRate != nil && curPeriod.Tasks.SuccessRate != nil {
		drop := *basePeriod.Tasks.SuccessRate - *curPeriod.Tasks.SuccessRate
		report.Changes.TaskSuccessDrop = &drop
		report.Changes.TaskDriftDetected = drop > m.cfg.AccuracyThreshold
		components = append(components, drop/m.cfg.AccuracyThreshold)
		if report.Changes.TaskDriftDetected {
			m.logger.Warn("task success rate dropped", "task_success_drop", drop)
		}
	}

	report.DriftDetected = report.Changes.AccuracyDriftDetected ||
		report.Changes.FeedbackDriftDetected ||
		report.Changes.TaskDriftDetected

	if len(components) > 0 {
		report.DriftScore = stats.Clip(maxOf(components...), 0, 1)
	}

	m.logger.Info("accuracy drift detection complete",
		"drift_detected", report.DriftDetected,
		"drift_score", report.DriftScore,
	)
	return report, nil
}

func (m *AccuracyMonitor) periodMetrics(ctx context.Context, w datatypes.TimeWindow) (datatypes.AccuracyPeriod, error) {
	evaluation, err := m.evaluationMetrics(ctx, w)
	if err != nil {
		return datatypes.AccuracyPeriod{}, err
	}
	feedback, err := m.feedbackMetrics(ctx, w)
	if err != nil {
		return datatypes.AccuracyPeriod{}, err
	}
	tasks, err := m.taskMetrics(ctx, w)
	if err != nil {
		return datatypes.AccuracyPeriod{}, err
	}
	return datatypes.AccuracyPeriod{Window: w, Evaluation: evaluation, Feedback: feedback, Tasks: tasks}, nil
}

func (m *AccuracyMonitor) evaluationMetrics(ctx context.Context, w datatypes.TimeWindow) (datatypes.EvaluationMetrics, error) {
	records, err := m.store.Evaluations(ctx, w, m.cfg.QueryLimit)
	if err != nil {
		return datatypes.EvaluationMetrics{}, err
	}
	metrics := datatypes.EvaluationMetrics{EvaluationCount: len(records)}
	if len(records) == 0 {
		return metrics, nil
	}

	var accSum, precSum, recSum, f1Sum float64
	for _, rec := range records {
		accSum += rec.Accuracy
		precSum += rec.Precision
		recSum += rec.Recall
		f1Sum += rec.F1Score
	}
	n := float64(len(records))
	metrics.AvgAccuracy = ptr(accSum / n)
	metrics.AvgPrecision = ptr(precSum / n)
	metrics.AvgRecall = ptr(recSum / n)
	metrics.AvgF1 = ptr(f1Sum / n)
	return metrics, nil
}

func (m *AccuracyMonitor) feedbackMetrics(ctx context.Context, w datatypes.TimeWindow) (datatypes.FeedbackMetrics, error) {
	records, err := m.store.Interactions(ctx, w, m.cfg.QueryLimit)
	if err != nil {
		return datatypes.FeedbackMetrics{}, err
	}

	var metrics datatypes.FeedbackMetrics
	sum := 0.0
	for _, rec := range records {
		if rec.UserFeedbackScore == nil {
			continue
		}
		score := *rec.UserFeedbackScore
		metrics.FeedbackCount++
		sum += score
		if score >= positiveFeedbackMin {
			metrics.PositiveCount++
		}
		if score <= negativeFeedbackMax {
			metrics.NegativeCount++
		}
	}
	if metrics.FeedbackCount > 0 {
		metrics.AvgRating = ptr(sum / float64(metrics.FeedbackCount))
		metrics.PositiveRate = float64(metrics.PositiveCount) / float64(metrics.FeedbackCount)
		metrics.NegativeRate = float64(metrics.NegativeCount) / float64(metrics.FeedbackCount)
	}
	return metrics, nil
}

// taskMetrics reads the optional task stream. A missing stream is recorded
// on the metrics, not treated as an error.
func (m *AccuracyMonitor) taskMetrics(ctx context.Context, w datatypes.TimeWindow) (datatypes.TaskMetrics, error) {
	records, err := m.store.Tasks(ctx, w, m.cfg.QueryLimit)
	if errors.Is(err, logstore.ErrStreamMissing) {
		m.logger.Info("task stream not found, skipping task metrics")
		return datatypes.TaskMetrics{StreamMissing: true}, nil
	}
	if err != nil {
		return datatypes.TaskMetrics{}, err
	}

	metrics := datatypes.TaskMetrics{TotalTasks: len(records)}
	if len(records) == 0 {
		return metrics, nil
	}
	for _, rec := range records {
		if rec.SuccessFlag {
			metrics.SuccessfulTasks++
		}
	}
	metrics.SuccessRate = ptr(float64(metrics.SuccessfulTasks) / float64(metrics.TotalTasks))
	return metrics, nil
}

func ptr(v float64) *float64 { return &v }
