// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package actions

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/AleutianAI/AleutianDrift/services/driftwatch/datatypes"
)

const (
	moderationThresholdKey = "moderation_threshold"
	safetyUpdatedAtKey     = "safety_filters_updated_at"

	// defaultModerationThreshold applies when no threshold has been
	// configured yet.
	defaultModerationThreshold = 0.7

	// tighteningFactor scales the threshold down on each update;
	// minModerationThreshold is the floor so repeated updates cannot
	// silence the model entirely.
	tighteningFactor       = 0.9
	minModerationThreshold = 0.1
)

// ConfigStore is the configuration bucket the safety updater reads and
// writes. BadgerStore implements it.
type ConfigStore interface {
	GetConfigValue(key string) (string, error)
	SetConfigValue(key, value string) error
}

// SafetyFilterUpdater tightens the serving-side moderation threshold.
// Dispatched when the current toxicity rate crosses its absolute threshold.
//
// Tightening is multiplicative with a floor, so the update is idempotent
// in the sense that re-running after an uncertain outcome converges toward
// the floor rather than oscillating.
type SafetyFilterUpdater struct {
	config ConfigStore
	logger *slog.Logger
	now    func() time.Time
}

var _ Dispatcher = (*SafetyFilterUpdater)(nil)

// NewSafetyFilterUpdater builds the safety dispatcher over the config store.
func NewSafetyFilterUpdater(config ConfigStore, logger *slog.Logger) *SafetyFilterUpdater {
	if logger == nil {
		logger = slog.Default()
	}
	return &SafetyFilterUpdater{config: config, logger: logger, now: time.Now}
}

func (u *SafetyFilterUpdater) Action() datatypes.Action {
	return datatypes.ActionUpdateSafetyFilters
}

// Execute lowers the moderation threshold by the tightening factor and
// records the update time.
func (u *SafetyFilterUpdater) Execute(ctx context.Context) (map[string]any, error) {
	u.logger.Info("updating safety filters")

	previous, err := u.currentThreshold()
	if err != nil {
		return nil, fmt.Errorf("read moderation threshold: %w", err)
	}

	updated := previous * tighteningFactor
	if updated < minModerationThreshold {
		updated = minModerationThreshold
	}

	if err := u.config.SetConfigValue(moderationThresholdKey, strconv.FormatFloat(updated, 'f', -1, 64)); err != nil {
		return nil, fmt.Errorf("write moderation threshold: %w", err)
	}
	if err := u.config.SetConfigValue(safetyUpdatedAtKey, u.now().UTC().Format(time.RFC3339)); err != nil {
		return nil, fmt.Errorf("record safety update time: %w", err)
	}

	u.logger.Info("safety filters tightened",
		"previous_threshold", previous,
		"new_threshold", updated,
	)
	return map[string]any{
		"status":             "updated",
		"previous_threshold": previous,
		"new_threshold":      updated,
	}, nil
}

func (u *SafetyFilterUpdater) currentThreshold() (float64, error) {
	raw, err := u.config.GetConfigValue(moderationThresholdKey)
	if err != nil {
		return 0, err
	}
	if raw == "" {
		return defaultModerationThreshold, nil
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed moderation threshold %q: %w", raw, err)
	}
	return value, nil
}
