// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package monitors

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/AleutianAI/AleutianDrift/services/driftwatch/datatypes"
	"github.com/AleutianAI/AleutianDrift/services/driftwatch/logstore"
	"github.com/AleutianAI/AleutianDrift/services/driftwatch/stats"
)

// errorRateThreshold is fixed: an error rate above 10% is drift regardless
// of configuration.
const errorRateThreshold = 0.10

// lengthAnomalyThreshold flags a >50% relative change in mean response
// length between windows.
const lengthAnomalyThreshold = 0.5

// refusalPatterns are the response substrings that classify a reply as a
// refusal. Matching is case-insensitive.
var refusalPatterns = []string{
	"i cannot",
	"i can't",
	"i'm unable to",
	"i am unable to",
	"i don't have",
	"i do not have",
	"i apologize, but i cannot",
	"i'm sorry, but i cannot",
	"i'm not able to",
	"i am not able to",
	"as an ai",
	"i don't feel comfortable",
	"that's not something i can",
}

// DetectRefusal reports whether a model response reads as a refusal rather
// than substantive content. Used at ingest to set InteractionRecord flags.
func DetectRefusal(response string) bool {
	lower := strings.ToLower(response)
	for _, pattern := range refusalPatterns {
		if strings.Contains(lower, pattern) {
			return true
		}
	}
	return false
}

// BehaviorConfig holds the behavior monitor thresholds. Zero values get
// production defaults.
type BehaviorConfig struct {
	// RefusalRateThreshold is the max acceptable CURRENT refusal rate.
	// Default 0.10.
	RefusalRateThreshold float64

	// ToxicityRateThreshold is the max acceptable CURRENT toxicity rate.
	// Default 0.05.
	ToxicityRateThreshold float64

	// QueryLimit bounds each window's interaction fetch.
	QueryLimit int
}

// DefaultBehaviorConfig returns the production thresholds.
func DefaultBehaviorConfig() BehaviorConfig {
	return BehaviorConfig{RefusalRateThreshold: 0.10, ToxicityRateThreshold: 0.05}
}

func (c *BehaviorConfig) applyDefaults() {
	def := DefaultBehaviorConfig()
	if c.RefusalRateThreshold <= 0 {
		c.RefusalRateThreshold = def.RefusalRateThreshold
	}
	if c.ToxicityRateThreshold <= 0 {
		c.ToxicityRateThreshold = def.ToxicityRateThreshold
	}
	if c.QueryLimit <= 0 {
		c.QueryLimit = logstore.DefaultQueryLimit
	}
}

// BehaviorMonitor tracks behavior metrics that indicate drift in model
// outputs: refusal rate, toxicity rate, error rate, and response-length
// anomalies.
//
// Refusal and toxicity are judged against ABSOLUTE thresholds on the
// current window, not against the baseline. Some behaviors should never be
// tolerated regardless of history: a model that has refused 15% of queries
// for two months straight still needs fixing, even though nothing changed
// recently. Error rate and length use the same pattern (fixed threshold and
// relative change respectively).
type BehaviorMonitor struct {
	store  logstore.Store
	cfg    BehaviorConfig
	logger *slog.Logger
	now    func() time.Time
}

// NewBehaviorMonitor builds a monitor over the given store.
func NewBehaviorMonitor(store logstore.Store, cfg BehaviorConfig, logger *slog.Logger) *BehaviorMonitor {
	cfg.applyDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &BehaviorMonitor{store: store, cfg: cfg, logger: logger, now: time.Now}
}

// DetectDrift compares interaction metrics between the baseline and current
// windows. If either window has zero interactions the report carries an
// explicit insufficient-data marker and no further computation happens.
func (m *BehaviorMonitor) DetectDrift(ctx context.Context, baseline, current datatypes.TimeWindow) (*datatypes.BehaviorDriftReport, error) {
	m.logger.Info("starting behavior drift detection")

	baseMetrics, err := m.interactionMetrics(ctx, baseline)
	if err != nil {
		return nil, fmt.Errorf("fetch baseline interactions: %w", err)
	}
	curMetrics, err := m.interactionMetrics(ctx, current)
	if err != nil {
		return nil, fmt.Errorf("fetch current interactions: %w", err)
	}

	report := &datatypes.BehaviorDriftReport{
		Timestamp:            m.now(),
		BaselineInteractions: baseMetrics.TotalInteractions,
		CurrentInteractions:  curMetrics.TotalInteractions,
		BaselinePeriod:       datatypes.BehaviorPeriod{Window: baseline, Metrics: baseMetrics},
		CurrentPeriod:        datatypes.BehaviorPeriod{Window: current, Metrics: curMetrics},
		Thresholds: datatypes.BehaviorThresholds{
			RefusalRate:  m.cfg.RefusalRateThreshold,
			ToxicityRate: m.cfg.ToxicityRateThreshold,
			ErrorRate:    errorRateThreshold,
		},
	}

	if baseMetrics.TotalInteractions == 0 || curMetrics.TotalInteractions == 0 {
		m.logger.Warn("insufficient interaction data",
			"baseline_interactions", baseMetrics.TotalInteractions,
			"current_interactions", curMetrics.TotalInteractions,
		)
		report.InsufficientData = true
		report.Error = "Insufficient data for behavior drift detection"
		return report, nil
	}

	refusalDrift := curMetrics.RefusalRate > m.cfg.RefusalRateThreshold
	toxicityDrift := curMetrics.ToxicityRate > m.cfg.ToxicityRateThreshold
	errorDrift := curMetrics.ErrorRate > errorRateThreshold

	lengthChangePct := 0.0
	if baseMetrics.AvgResponseLength > 0 {
		lengthChangePct = abs(curMetrics.AvgResponseLength-baseMetrics.AvgResponseLength) / baseMetrics.AvgResponseLength
	}
	lengthAnomaly := lengthChangePct > lengthAnomalyThreshold

	report.Changes = datatypes.BehaviorChanges{
		RefusalRateChange:       curMetrics.RefusalRate - baseMetrics.RefusalRate,
		RefusalDriftDetected:    refusalDrift,
		ToxicityRateChange:      curMetrics.ToxicityRate - baseMetrics.ToxicityRate,
		ToxicityDriftDetected:   toxicityDrift,
		ErrorRateChange:         curMetrics.ErrorRate - baseMetrics.ErrorRate,
		ErrorDriftDetected:      errorDrift,
		ResponseLengthChangePct: lengthChangePct * 100,
		LengthAnomalyDetected:   lengthAnomaly,
	}
	report.DriftDetected = refusalDrift || toxicityDrift || errorDrift || lengthAnomaly

	score := maxOf(
		curMetrics.RefusalRate/m.cfg.RefusalRateThreshold,
		curMetrics.ToxicityRate/m.cfg.ToxicityRateThreshold,
		curMetrics.ErrorRate/errorRateThreshold,
		lengthChangePct/lengthAnomalyThreshold,
	)
	report.DriftScore = stats.Clip(score, 0, 1)

	if refusalDrift {
		m.logger.Warn("refusal rate exceeds threshold",
			"refusal_rate", curMetrics.RefusalRate,
			"threshold", m.cfg.RefusalRateThreshold,
		)
	}
	if toxicityDrift {
		m.logger.Warn("toxicity rate exceeds threshold",
			"toxicity_rate", curMetrics.ToxicityRate,
			"threshold", m.cfg.ToxicityRateThreshold,
		)
	}
	if errorDrift {
		m.logger.Warn("error rate exceeds threshold",
			"error_rate", curMetrics.ErrorRate,
			"threshold", errorRateThreshold,
		)
	}

	m.logger.Info("behavior drift detection complete",
		"drift_detected", report.DriftDetected,
		"drift_score", report.DriftScore,
	)
	return report, nil
}

// interactionMetrics aggregates one window of interaction records into
// counts and rates. Response length averages only non-empty responses.
func (m *BehaviorMonitor) interactionMetrics(ctx context.Context, w datatypes.TimeWindow) (datatypes.InteractionMetrics, error) {
	records, err := m.store.Interactions(ctx, w, m.cfg.QueryLimit)
	if err != nil {
		return datatypes.InteractionMetrics{}, err
	}

	metrics := datatypes.InteractionMetrics{TotalInteractions: len(records)}
	if len(records) == 0 {
		return metrics, nil
	}

	lengthSum := 0
	lengthCount := 0
	for _, rec := range records {
		if rec.RefusalFlag {
			metrics.RefusalCount++
		}
		if rec.ToxicityFlag {
			metrics.ToxicityCount++
		}
		if rec.ErrorFlag {
			metrics.ErrorCount++
		}
		if rec.ModelResponse != "" {
			lengthSum += len(rec.ModelResponse)
			lengthCount++
		}
	}

	total := float64(metrics.TotalInteractions)
	metrics.RefusalRate = float64(metrics.RefusalCount) / total
	metrics.ToxicityRate = float64(metrics.ToxicityCount) / total
	metrics.ErrorRate = float64(metrics.ErrorCount) / total
	if lengthCount > 0 {
		metrics.AvgResponseLength = float64(lengthSum) / float64(lengthCount)
	}
	return metrics, nil
}

// RefusalSample is one flagged interaction returned for qualitative review.
type RefusalSample struct {
	Query     string    `json:"query"`
	Response  string    `json:"response"`
	Timestamp time.Time `json:"timestamp"`
}

// RecentRefusals returns up to limit of the most recent refusal-flagged
// interactions in the last days, newest first. It is a review tool and is
// not gated on drift status.
//
// The store returns the oldest records first and caps each fetch at the
// configured query limit, so a busy lookback is scanned in pages until the
// window is exhausted. Only the newest limit matches are kept.
func (m *BehaviorMonitor) RecentRefusals(ctx context.Context, days, limit int) ([]RefusalSample, error) {
	if limit <= 0 {
		limit = 20
	}
	now := m.now()
	window := datatypes.TimeWindow{Start: now.AddDate(0, 0, -days), End: now}

	var samples []RefusalSample
	for {
		records, err := m.store.Interactions(ctx, window, m.cfg.QueryLimit)
		if err != nil {
			return nil, fmt.Errorf("fetch refusal samples: %w", err)
		}
		for _, rec := range records {
			if rec.RefusalFlag {
				samples = append(samples, RefusalSample{
					Query:     rec.UserQuery,
					Response:  rec.ModelResponse,
					Timestamp: rec.Timestamp,
				})
			}
		}
		// Pages arrive in chronological order, so the newest matches are
		// at the tail.
		if len(samples) > limit {
			samples = samples[len(samples)-limit:]
		}
		if len(records) < m.cfg.QueryLimit {
			break
		}
		window.Start = records[len(records)-1].Timestamp.Add(time.Nanosecond)
	}

	// Newest first.
	for i, j := 0, len(samples)-1; i < j; i, j = i+1, j-1 {
		samples[i], samples[j] = samples[j], samples[i]
	}
	return samples, nil
}

func maxOf(vals ...float64) float64 {
	out := vals[0]
	for _, v := range vals[1:] {
		if v > out {
			out = v
		}
	}
	return out
}
