// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRunID_FormatAndUTC(t *testing.T) {
	start := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)
	assert.Equal(t, "drift-20250314-092653", RunID(start))

	// Non-UTC start times normalize to the same identifier.
	est := time.FixedZone("EST", -5*3600)
	assert.Equal(t, "drift-20250314-092653", RunID(start.In(est)))
}

func TestRunReport_Filename(t *testing.T) {
	r := &RunReport{RunID: "drift-20250314-092653"}
	assert.Equal(t, "drift_report_drift-20250314-092653.json", r.Filename())
}

func TestAction_Valid(t *testing.T) {
	assert.True(t, ActionReindexDocuments.Valid())
	assert.True(t, ActionFineTuneModel.Valid())
	assert.True(t, ActionUpdateSafetyFilters.Valid())
	assert.False(t, Action("restart_model").Valid())
	assert.False(t, Action("").Valid())
}
