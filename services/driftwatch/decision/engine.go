// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package decision maps drift reports to corrective actions.
//
// The engine is a pure function of the combined drift report: identical
// inputs always yield the identical, deduplicated, ordered action list.
// The mapping lives in a declarative rule table so adding a new
// signal/action pair is a table row, not new control flow.
package decision

import (
	"log/slog"

	"github.com/AleutianAI/AleutianDrift/services/driftwatch/datatypes"
)

// Signal names one boolean drift sub-signal extracted from the combined
// report.
type Signal string

const (
	// SignalEmbeddingDrift: any embedding method flagged drift.
	SignalEmbeddingDrift Signal = "embedding_drift"

	// SignalRefusalDrift: current refusal rate above the absolute threshold.
	SignalRefusalDrift Signal = "refusal_drift"

	// SignalToxicityDrift: current toxicity rate above the absolute threshold.
	SignalToxicityDrift Signal = "toxicity_drift"

	// SignalAccuracyDrift: any accuracy sub-comparison flagged drift.
	SignalAccuracyDrift Signal = "accuracy_drift"
)

// Rule binds one signal to one corrective action.
type Rule struct {
	Signal Signal
	Action datatypes.Action
}

// DefaultRules is the production signal→action table. Rules are evaluated
// independently (non-exclusive) in order; duplicate actions collapse to the
// first occurrence.
var DefaultRules = []Rule{
	{Signal: SignalEmbeddingDrift, Action: datatypes.ActionReindexDocuments},
	{Signal: SignalRefusalDrift, Action: datatypes.ActionFineTuneModel},
	{Signal: SignalToxicityDrift, Action: datatypes.ActionUpdateSafetyFilters},
	{Signal: SignalAccuracyDrift, Action: datatypes.ActionFineTuneModel},
}

// Engine evaluates a rule table against combined drift reports.
type Engine struct {
	rules  []Rule
	logger *slog.Logger
}

// NewEngine builds an engine over the given rules; nil means DefaultRules.
func NewEngine(rules []Rule, logger *slog.Logger) *Engine {
	if rules == nil {
		rules = DefaultRules
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{rules: rules, logger: logger}
}

// Decide returns the ordered, deduplicated action list for the report.
// An empty list is the valid "no drift, no action" outcome.
func (e *Engine) Decide(report *datatypes.CombinedDriftReport) []datatypes.Action {
	active := extractSignals(report)

	var actions []datatypes.Action
	seen := make(map[datatypes.Action]bool)
	for _, rule := range e.rules {
		if !active[rule.Signal] {
			continue
		}
		if seen[rule.Action] {
			continue
		}
		seen[rule.Action] = true
		actions = append(actions, rule.Action)
		e.logger.Info("drift signal mapped to action",
			"signal", string(rule.Signal),
			"action", string(rule.Action),
		)
	}

	if len(actions) == 0 {
		e.logger.Info("no drift detected - no actions needed")
	}
	return actions
}

// extractSignals flattens the three monitor reports into the boolean
// signal view the rule table is written against. A nil or insufficient-data
// report contributes no signals.
func extractSignals(report *datatypes.CombinedDriftReport) map[Signal]bool {
	signals := make(map[Signal]bool, 4)
	if report == nil {
		return signals
	}
	if emb := report.EmbeddingDrift; emb != nil && emb.DriftDetected {
		signals[SignalEmbeddingDrift] = true
	}
	if beh := report.BehaviorDrift; beh != nil && !beh.InsufficientData {
		signals[SignalRefusalDrift] = beh.Changes.RefusalDriftDetected
		signals[SignalToxicityDrift] = beh.Changes.ToxicityDriftDetected
	}
	if acc := report.AccuracyDrift; acc != nil && acc.DriftDetected {
		signals[SignalAccuracyDrift] = true
	}
	return signals
}
