// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import "time"

// TimeWindow is a half-open interval [Start, End).
type TimeWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether t falls inside the window.
func (w TimeWindow) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// Duration returns End - Start.
func (w TimeWindow) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

// Windows derives the baseline and current analysis windows relative to now.
//
// The current window covers the most recent currentDays; the baseline window
// covers the baselineDays immediately preceding it. The two windows share an
// edge: baseline.End == current.Start. Every monitor in a run uses the same
// pair so their reports are comparable.
func Windows(now time.Time, baselineDays, currentDays int) (baseline, current TimeWindow) {
	current = TimeWindow{
		Start: now.AddDate(0, 0, -currentDays),
		End:   now,
	}
	baseline = TimeWindow{
		Start: current.Start.AddDate(0, 0, -baselineDays),
		End:   current.Start,
	}
	return baseline, current
}
