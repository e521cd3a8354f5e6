// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package stats

import "math"

// Silhouette returns the mean silhouette coefficient over all samples,
// a clustering-quality measure in [-1, 1]. Higher means better-separated
// clusters.
//
// Samples in singleton clusters score 0 by convention. Returns 0 when the
// labeling has fewer than two distinct clusters, where the coefficient is
// undefined.
func Silhouette(samples [][]float64, labels []int) float64 {
	n := len(samples)
	if n == 0 || len(labels) != n {
		return 0
	}

	clusters := make(map[int][]int)
	for i, label := range labels {
		clusters[label] = append(clusters[label], i)
	}
	if len(clusters) < 2 {
		return 0
	}

	total := 0.0
	for i, sample := range samples {
		own := clusters[labels[i]]
		if len(own) <= 1 {
			continue // singleton contributes 0
		}

		// a(i): mean distance to other members of its own cluster.
		a := 0.0
		for _, j := range own {
			if j == i {
				continue
			}
			a += EuclideanDistance(sample, samples[j])
		}
		a /= float64(len(own) - 1)

		// b(i): smallest mean distance to any other cluster.
		b := math.Inf(1)
		for label, members := range clusters {
			if label == labels[i] {
				continue
			}
			d := 0.0
			for _, j := range members {
				d += EuclideanDistance(sample, samples[j])
			}
			d /= float64(len(members))
			if d < b {
				b = d
			}
		}

		denom := math.Max(a, b)
		if denom > 0 {
			total += (b - a) / denom
		}
	}
	return total / float64(n)
}
