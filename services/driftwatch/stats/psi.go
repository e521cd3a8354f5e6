// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package stats

import (
	"fmt"
	"math"
)

// PSI computes the population stability index between a baseline sample and
// a current sample of one scalar variable.
//
// Bins are nBins equal-width intervals spanning the baseline's own min/max;
// both samples are counted into those same bins (current values falling
// outside the baseline range are not counted, matching histogram semantics
// over fixed edges). Counts get +1 Laplace smoothing so empty bins do not
// produce infinite log ratios:
//
//	pct = (count + 1) / (len(sample) + nBins)
//	PSI = Σ (current_pct − baseline_pct) · ln(current_pct / baseline_pct)
//
// Identical samples therefore yield exactly 0. Interpretation: < 0.1 low,
// 0.1–0.2 moderate, > 0.2 high drift.
func PSI(baseline, current []float64, nBins int) (float64, error) {
	if nBins < 2 {
		return 0, fmt.Errorf("stats: PSI needs at least 2 bins, got %d", nBins)
	}
	if len(baseline) == 0 || len(current) == 0 {
		return 0, fmt.Errorf("stats: PSI needs non-empty samples")
	}

	lo, hi := baseline[0], baseline[0]
	for _, v := range baseline {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if lo == hi {
		// Degenerate baseline: everything lands in one bin either way.
		hi = lo + 1
	}

	baselineCounts := histogram(baseline, lo, hi, nBins)
	currentCounts := histogram(current, lo, hi, nBins)

	psi := 0.0
	for b := 0; b < nBins; b++ {
		basePct := float64(baselineCounts[b]+1) / float64(len(baseline)+nBins)
		curPct := float64(currentCounts[b]+1) / float64(len(current)+nBins)
		psi += (curPct - basePct) * math.Log(curPct/basePct)
	}
	return psi, nil
}

// histogram counts values into nBins equal-width bins over [lo, hi]. The
// last bin is closed on the right so hi itself is counted.
func histogram(values []float64, lo, hi float64, nBins int) []int {
	counts := make([]int, nBins)
	width := (hi - lo) / float64(nBins)
	for _, v := range values {
		if v < lo || v > hi {
			continue
		}
		bin := int((v - lo) / width)
		if bin >= nBins {
			bin = nBins - 1
		}
		counts[bin]++
	}
	return counts
}
