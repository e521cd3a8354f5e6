// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import "time"

// =============================================================================
// Embedding drift
// =============================================================================

// PeriodSummary describes one analysis window and how many samples it held.
type PeriodSummary struct {
	Window      TimeWindow `json:"window"`
	SampleCount int        `json:"sample_count"`
}

// CentroidDistanceResult holds the centroid-distance sub-signal.
type CentroidDistanceResult struct {
	EuclideanDistance float64 `json:"euclidean_distance"`
	CosineDistance    float64 `json:"cosine_distance"`
	Threshold         float64 `json:"threshold"`
	DriftDetected     bool    `json:"drift_detected"`
}

// VarianceChangeResult holds the population-variance sub-signal.
type VarianceChangeResult struct {
	BaselineVariance  float64 `json:"baseline_variance"`
	CurrentVariance   float64 `json:"current_variance"`
	VarianceChangePct float64 `json:"variance_change_pct"`
	Threshold         float64 `json:"threshold"`
	DriftDetected     bool    `json:"drift_detected"`
}

// ClusterDriftResult holds the cluster-structure sub-signal.
//
// When either window has fewer samples than the cluster count the method is
// skipped entirely: Skipped is true, SkipReason explains why, and the
// remaining fields are zero.
type ClusterDriftResult struct {
	Skipped            bool    `json:"skipped,omitempty"`
	SkipReason         string  `json:"skip_reason,omitempty"`
	BaselineSilhouette float64 `json:"baseline_silhouette"`
	CurrentSilhouette  float64 `json:"current_silhouette"`
	SilhouetteChange   float64 `json:"silhouette_change"`
	AvgCentroidShift   float64 `json:"avg_centroid_shift"`
	NClusters          int     `json:"n_clusters"`
	DriftDetected      bool    `json:"drift_detected"`
}

// PSI drift levels.
const (
	PSILevelLow      = "low"
	PSILevelModerate = "moderate"
	PSILevelHigh     = "high"
)

// PSIResult holds the population-stability-index sub-signal.
type PSIResult struct {
	PSI           float64 `json:"psi"`
	DriftLevel    string  `json:"drift_level"`
	DriftDetected bool    `json:"drift_detected"`
}

// EmbeddingDriftReport is the full output of the embedding drift detector.
//
// DriftDetected is the logical OR of the four sub-signals; DriftScore is the
// mean of the threshold-normalized sub-signals, clipped to [0,1]. When either
// window held no vectors the report carries only InsufficientData/Error and
// the sample counts.
type EmbeddingDriftReport struct {
	Timestamp        time.Time     `json:"timestamp"`
	EmbeddingType    EmbeddingType `json:"embedding_type"`
	InsufficientData bool          `json:"insufficient_data,omitempty"`
	Error            string        `json:"error,omitempty"`

	BaselinePeriod PeriodSummary `json:"baseline_period"`
	CurrentPeriod  PeriodSummary `json:"current_period"`

	DriftDetected bool    `json:"drift_detected"`
	DriftScore    float64 `json:"drift_score"`

	Centroid CentroidDistanceResult `json:"centroid_distance"`
	Variance VarianceChangeResult   `json:"variance_change"`
	Cluster  ClusterDriftResult     `json:"cluster_analysis"`
	PSI      PSIResult              `json:"population_stability_index"`
}

// =============================================================================
// Behavior drift
// =============================================================================

// InteractionMetrics summarizes one window of interaction records.
type InteractionMetrics struct {
	TotalInteractions int     `json:"total_interactions"`
	RefusalCount      int     `json:"refusal_count"`
	RefusalRate       float64 `json:"refusal_rate"`
	ToxicityCount     int     `json:"toxicity_count"`
	ToxicityRate      float64 `json:"toxicity_rate"`
	ErrorCount        int     `json:"error_count"`
	ErrorRate         float64 `json:"error_rate"`
	AvgResponseLength float64 `json:"avg_response_length"`
}

// BehaviorPeriod pairs a window with its interaction metrics.
type BehaviorPeriod struct {
	Window  TimeWindow         `json:"window"`
	Metrics InteractionMetrics `json:"metrics"`
}

// BehaviorChanges holds the four behavior sub-signals.
//
// Refusal and toxicity compare the CURRENT rate against an absolute
// threshold rather than against the baseline rate. A persistently bad rate
// keeps re-triggering even when nothing changed recently; the *RateChange
// fields are informational.
type BehaviorChanges struct {
	RefusalRateChange       float64 `json:"refusal_rate_change"`
	RefusalDriftDetected    bool    `json:"refusal_drift_detected"`
	ToxicityRateChange      float64 `json:"toxicity_rate_change"`
	ToxicityDriftDetected   bool    `json:"toxicity_drift_detected"`
	ErrorRateChange         float64 `json:"error_rate_change"`
	ErrorDriftDetected      bool    `json:"error_drift_detected"`
	ResponseLengthChangePct float64 `json:"response_length_change_pct"`
	LengthAnomalyDetected   bool    `json:"length_anomaly_detected"`
}

// BehaviorThresholds echoes the thresholds a report was computed with.
type BehaviorThresholds struct {
	RefusalRate  float64 `json:"refusal_rate"`
	ToxicityRate float64 `json:"toxicity_rate"`
	ErrorRate    float64 `json:"error_rate"`
}

// BehaviorDriftReport is the full output of the behavior drift monitor.
type BehaviorDriftReport struct {
	Timestamp        time.Time `json:"timestamp"`
	InsufficientData bool      `json:"insufficient_data,omitempty"`
	Error            string    `json:"error,omitempty"`

	BaselineInteractions int `json:"baseline_interactions"`
	CurrentInteractions  int `json:"current_interactions"`

	DriftDetected bool    `json:"drift_detected"`
	DriftScore    float64 `json:"drift_score"`

	BaselinePeriod BehaviorPeriod     `json:"baseline_period"`
	CurrentPeriod  BehaviorPeriod     `json:"current_period"`
	Changes        BehaviorChanges    `json:"changes"`
	Thresholds     BehaviorThresholds `json:"thresholds"`
}

// =============================================================================
// Accuracy drift
// =============================================================================

// EvaluationMetrics summarizes one window of evaluation records. Averages
// are nil when the window held no evaluations.
type EvaluationMetrics struct {
	AvgAccuracy     *float64 `json:"avg_accuracy"`
	AvgPrecision    *float64 `json:"avg_precision"`
	AvgRecall       *float64 `json:"avg_recall"`
	AvgF1           *float64 `json:"avg_f1"`
	EvaluationCount int      `json:"evaluation_count"`
}

// FeedbackMetrics summarizes user feedback inside one window. AvgRating is
// nil when no interaction carried a feedback score.
type FeedbackMetrics struct {
	AvgRating     *float64 `json:"avg_rating"`
	FeedbackCount int      `json:"feedback_count"`
	PositiveCount int      `json:"positive_count"`
	NegativeCount int      `json:"negative_count"`
	PositiveRate  float64  `json:"positive_rate"`
	NegativeRate  float64  `json:"negative_rate"`
}

// TaskMetrics summarizes the optional task stream inside one window.
// StreamMissing is true when the stream does not exist at all; SuccessRate
// is nil when there were no tasks to measure.
type TaskMetrics struct {
	TotalTasks      int      `json:"total_tasks"`
	SuccessfulTasks int      `json:"successful_tasks"`
	SuccessRate     *float64 `json:"success_rate"`
	StreamMissing   bool     `json:"stream_missing,omitempty"`
}

// AccuracyPeriod pairs a window with its three metric groups.
type AccuracyPeriod struct {
	Window     TimeWindow        `json:"window"`
	Evaluation EvaluationMetrics `json:"evaluation_metrics"`
	Feedback   FeedbackMetrics   `json:"feedback_metrics"`
	Tasks      TaskMetrics       `json:"task_metrics"`
}

// AccuracyChanges holds the accuracy sub-signals. A nil drop means the
// sub-comparison was not computable (one of the periods lacked data).
type AccuracyChanges struct {
	AccuracyDrop          *float64 `json:"accuracy_drop"`
	AccuracyDriftDetected bool     `json:"accuracy_drift_detected"`
	FeedbackDropPct       *float64 `json:"feedback_drop_pct"`
	FeedbackDriftDetected bool     `json:"feedback_drift_detected"`
	TaskSuccessDrop       *float64 `json:"task_success_drop"`
	TaskDriftDetected     bool     `json:"task_drift_detected"`
}

// AccuracyThresholds echoes the thresholds a report was computed with.
type AccuracyThresholds struct {
	AccuracyThreshold float64 `json:"accuracy_threshold"`
	FeedbackThreshold float64 `json:"feedback_threshold"`
}

// AccuracyDriftReport is the full output of the accuracy drift monitor.
type AccuracyDriftReport struct {
	Timestamp time.Time `json:"timestamp"`

	DriftDetected bool    `json:"drift_detected"`
	DriftScore    float64 `json:"drift_score"`

	BaselinePeriod AccuracyPeriod     `json:"baseline_period"`
	CurrentPeriod  AccuracyPeriod     `json:"current_period"`
	Changes        AccuracyChanges    `json:"changes"`
	Thresholds     AccuracyThresholds `json:"thresholds"`
}

// =============================================================================
// Combined report
// =============================================================================

// CombinedDriftReport aggregates the three monitor reports for one run.
//
// A nil monitor report means that monitor failed outright (data source
// error); the failure reason is recorded in MonitorErrors keyed by monitor
// name. Failed or insufficient-data monitors contribute neither drift nor
// score.
type CombinedDriftReport struct {
	Timestamp time.Time `json:"timestamp"`

	EmbeddingDrift *EmbeddingDriftReport `json:"embedding_drift,omitempty"`
	BehaviorDrift  *BehaviorDriftReport  `json:"behavior_drift,omitempty"`
	AccuracyDrift  *AccuracyDriftReport  `json:"accuracy_drift,omitempty"`

	MonitorErrors map[string]string `json:"monitor_errors,omitempty"`

	OverallDriftDetected bool    `json:"overall_drift_detected"`
	OverallDriftScore    float64 `json:"overall_drift_score"`
}

// Finalize recomputes the overall verdict from the component reports:
// detection is the logical OR, score is the max. The score invariant
// (each component already clipped to [0,1]) keeps the overall in [0,1].
func (r *CombinedDriftReport) Finalize() {
	r.OverallDriftDetected = false
	r.OverallDriftScore = 0

	if r.EmbeddingDrift != nil {
		r.OverallDriftDetected = r.OverallDriftDetected || r.EmbeddingDrift.DriftDetected
		r.OverallDriftScore = max(r.OverallDriftScore, r.EmbeddingDrift.DriftScore)
	}
	if r.BehaviorDrift != nil {
		r.OverallDriftDetected = r.OverallDriftDetected || r.BehaviorDrift.DriftDetected
		r.OverallDriftScore = max(r.OverallDriftScore, r.BehaviorDrift.DriftScore)
	}
	if r.AccuracyDrift != nil {
		r.OverallDriftDetected = r.OverallDriftDetected || r.AccuracyDrift.DriftDetected
		r.OverallDriftScore = max(r.OverallDriftScore, r.AccuracyDrift.DriftScore)
	}
}

// Incomplete reports whether any monitor failed during this run.
func (r *CombinedDriftReport) Incomplete() bool {
	return len(r.MonitorErrors) > 0
}
