// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package observability provides metrics and instrumentation for the drift
// pipeline.
//
// # Description
//
// This package implements Prometheus metrics for monitoring drift detection
// runs. Metrics include:
//   - Drift score gauges (embedding, behavior, accuracy, overall)
//   - Model health gauges (accuracy, refusal rate, toxicity rate)
//   - Action counters (retrain, reindex events)
//   - External API cost tracking
//
// # Integration
//
// Metrics are exposed via /metrics endpoint. Use with Prometheus + Grafana
// for dashboards and alerting.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal locking.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/AleutianAI/AleutianDrift/services/driftwatch/datatypes"
)

// =============================================================================
// Metric Definitions
// =============================================================================

// Namespace for all metrics
const metricsNamespace = "aleutian"

// Subsystem for drift pipeline metrics
const driftSubsystem = "drift"

// DriftMetrics holds all Prometheus metrics for the drift pipeline.
//
// # Description
//
// Provides gauges and counters for monitoring drift scores and corrective
// actions. Gauges reflect the most recent completed run; counters accumulate
// across the process lifetime.
//
// # Fields
//
//   - EmbeddingScore: Gauge of the embedding drift score [0,1]
//   - BehaviorScore: Gauge of the behavior drift score [0,1]
//   - AccuracyScore: Gauge of the accuracy drift score [0,1]
//   - OverallScore: Gauge of the combined drift score [0,1]
//   - ModelAccuracy: Gauge of current-window evaluation accuracy
//   - ModelRefusalRate: Gauge of current-window refusal rate
//   - ModelToxicityRate: Gauge of current-window toxicity rate
//   - RetrainEventsTotal: Counter of fine-tuning jobs triggered
//   - ReindexEventsTotal: Counter of reindex passes triggered
//   - APICostUSDTotal: Counter of estimated external API spend in USD
//   - RunsTotal: Counter of pipeline runs by final status
//
// # Thread Safety
//
// All operations are thread-safe.
type DriftMetrics struct {
	// EmbeddingScore is the latest embedding drift score.
	EmbeddingScore prometheus.Gauge

	// BehaviorScore is the latest behavior drift score.
	BehaviorScore prometheus.Gauge

	// AccuracyScore is the latest accuracy drift score.
	AccuracyScore prometheus.Gauge

	// OverallScore is the latest combined drift score.
	OverallScore prometheus.Gauge

	// ModelAccuracy is the latest current-window evaluation accuracy.
	ModelAccuracy prometheus.Gauge

	// ModelRefusalRate is the latest current-window refusal rate.
	ModelRefusalRate prometheus.Gauge

	// ModelToxicityRate is the latest current-window toxicity rate.
	ModelToxicityRate prometheus.Gauge

	// RetrainEventsTotal counts fine-tuning jobs successfully triggered.
	RetrainEventsTotal prometheus.Counter

	// ReindexEventsTotal counts reindex passes successfully triggered.
	ReindexEventsTotal prometheus.Counter

	// APICostUSDTotal accumulates estimated external API spend.
	APICostUSDTotal prometheus.Counter

	// RunsTotal counts pipeline runs by final status.
	// Labels: status (no_drift, drift_actions_executed, completed_with_errors)
	RunsTotal *prometheus.CounterVec
}

// DefaultMetrics is the singleton instance of DriftMetrics.
// Initialized by InitMetrics().
var DefaultMetrics *DriftMetrics

// InitMetrics initializes the default metrics instance on the default
// Prometheus registry. Call once at startup; a second call panics on
// duplicate registration.
func InitMetrics() *DriftMetrics {
	DefaultMetrics = NewDriftMetrics(prometheus.DefaultRegisterer)
	return DefaultMetrics
}

// NewDriftMetrics creates and registers all pipeline metrics on the given
// registerer. Tests pass an isolated registry.
func NewDriftMetrics(reg prometheus.Registerer) *DriftMetrics {
	factory := promauto.With(reg)

	gauge := func(name, help string) prometheus.Gauge {
		return factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: driftSubsystem,
			Name:      name,
			Help:      help,
		})
	}
	counter := func(name, help string) prometheus.Counter {
		return factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: driftSubsystem,
			Name:      name,
			Help:      help,
		})
	}

	return &DriftMetrics{
		EmbeddingScore:    gauge("embedding_score", "Embedding drift score from the latest run (0-1)"),
		BehaviorScore:     gauge("behavior_score", "Behavior drift score from the latest run (0-1)"),
		AccuracyScore:     gauge("accuracy_score", "Accuracy drift score from the latest run (0-1)"),
		OverallScore:      gauge("overall_score", "Combined drift score from the latest run (0-1)"),
		ModelAccuracy:     gauge("model_accuracy", "Current-window average evaluation accuracy"),
		ModelRefusalRate:  gauge("model_refusal_rate", "Current-window refusal rate"),
		ModelToxicityRate: gauge("model_toxicity_rate", "Current-window toxicity rate"),

		RetrainEventsTotal: counter("retrain_events_total", "Total fine-tuning jobs triggered"),
		ReindexEventsTotal: counter("reindex_events_total", "Total document reindex passes triggered"),
		APICostUSDTotal:    counter("api_cost_usd_total", "Estimated external API spend in USD"),

		RunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: driftSubsystem,
				Name:      "runs_total",
				Help:      "Total pipeline runs by final status",
			},
			[]string{"status"},
		),
	}
}

// =============================================================================
// Helper Methods
// =============================================================================

// ObserveReport publishes the drift scores and model-health gauges from a
// combined report. Gauges for monitors that produced no report keep their
// previous values.
func (m *DriftMetrics) ObserveReport(report *datatypes.CombinedDriftReport) {
	if report == nil {
		return
	}
	m.OverallScore.Set(report.OverallDriftScore)

	if emb := report.EmbeddingDrift; emb != nil {
		m.EmbeddingScore.Set(emb.DriftScore)
	}
	if beh := report.BehaviorDrift; beh != nil {
		m.BehaviorScore.Set(beh.DriftScore)
		if !beh.InsufficientData {
			m.ModelRefusalRate.Set(beh.CurrentPeriod.Metrics.RefusalRate)
			m.ModelToxicityRate.Set(beh.CurrentPeriod.Metrics.ToxicityRate)
		}
	}
	if acc := report.AccuracyDrift; acc != nil {
		m.AccuracyScore.Set(acc.DriftScore)
		if avg := acc.CurrentPeriod.Evaluation.AvgAccuracy; avg != nil {
			m.ModelAccuracy.Set(*avg)
		}
	}
}

// ObserveRun records the final status of one pipeline run.
func (m *DriftMetrics) ObserveRun(status datatypes.RunStatus) {
	m.RunsTotal.WithLabelValues(string(status)).Inc()
}

// RecordAction bumps the event counter matching a successfully executed
// action. Safety-filter updates have no dedicated counter.
func (m *DriftMetrics) RecordAction(action datatypes.Action) {
	switch action {
	case datatypes.ActionFineTuneModel:
		m.RetrainEventsTotal.Inc()
	case datatypes.ActionReindexDocuments:
		m.ReindexEventsTotal.Inc()
	}
}

// AddAPICost accumulates estimated API spend. Negative amounts are ignored.
func (m *DriftMetrics) AddAPICost(usd float64) {
	if usd <= 0 {
		return
	}
	m.APICostUSDTotal.Add(usd)
}
