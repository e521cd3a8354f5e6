// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCombinedDriftReport_FinalizeEmpty(t *testing.T) {
	r := &CombinedDriftReport{}
	r.Finalize()
	assert.False(t, r.OverallDriftDetected)
	assert.Equal(t, 0.0, r.OverallDriftScore)
}

func TestCombinedDriftReport_FinalizeORAndMax(t *testing.T) {
	r := &CombinedDriftReport{
		EmbeddingDrift: &EmbeddingDriftReport{DriftDetected: false, DriftScore: 0.3},
		BehaviorDrift:  &BehaviorDriftReport{DriftDetected: true, DriftScore: 0.8},
		AccuracyDrift:  &AccuracyDriftReport{DriftDetected: false, DriftScore: 0.1},
	}
	r.Finalize()
	assert.True(t, r.OverallDriftDetected)
	assert.Equal(t, 0.8, r.OverallDriftScore)
}

func TestCombinedDriftReport_FinalizeIgnoresNilMonitors(t *testing.T) {
	r := &CombinedDriftReport{
		AccuracyDrift: &AccuracyDriftReport{DriftDetected: true, DriftScore: 0.4},
	}
	r.Finalize()
	assert.True(t, r.OverallDriftDetected)
	assert.Equal(t, 0.4, r.OverallDriftScore)
}

func TestCombinedDriftReport_FinalizeResetsPriorVerdict(t *testing.T) {
	// Stale values must not survive a recompute.
	r := &CombinedDriftReport{
		OverallDriftDetected: true,
		OverallDriftScore:    0.9,
	}
	r.Finalize()
	assert.False(t, r.OverallDriftDetected)
	assert.Equal(t, 0.0, r.OverallDriftScore)
}

func TestCombinedDriftReport_Incomplete(t *testing.T) {
	r := &CombinedDriftReport{}
	assert.False(t, r.Incomplete())

	r.MonitorErrors = map[string]string{"behavior": "store closed"}
	assert.True(t, r.Incomplete())
}
