// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package stats

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
)

// kmeansMaxIterations bounds a single Lloyd's-algorithm run.
const kmeansMaxIterations = 300

// KMeansResult holds the outcome of one clustering.
type KMeansResult struct {
	// Centroids are the k cluster centers, index-aligned with Labels.
	Centroids [][]float64

	// Labels assigns each input sample to a centroid index.
	Labels []int

	// Inertia is the sum of squared distances from each sample to its
	// assigned centroid. Lower is better; used to pick the best restart.
	Inertia float64
}

// KMeans clusters samples into k clusters via Lloyd's algorithm with
// k-means++ seeding.
//
// The clustering is restarted nInit times and the lowest-inertia result is
// kept. Seeding is deterministic for a given seed so two windows clustered
// with the same parameters are comparable run to run.
//
// Requires at least k samples.
func KMeans(samples [][]float64, k, nInit int, seed int64) (*KMeansResult, error) {
	if k < 1 {
		return nil, fmt.Errorf("stats: invalid cluster count %d", k)
	}
	if len(samples) < k {
		return nil, errors.New("stats: fewer samples than clusters")
	}
	if nInit < 1 {
		nInit = 1
	}
	dim := len(samples[0])
	if err := checkDimensions(samples, dim); err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewSource(seed))

	var best *KMeansResult
	for run := 0; run < nInit; run++ {
		result := kmeansOnce(samples, k, rng)
		if best == nil || result.Inertia < best.Inertia {
			best = result
		}
	}
	return best, nil
}

// kmeansOnce runs a single seeded clustering to convergence.
func kmeansOnce(samples [][]float64, k int, rng *rand.Rand) *KMeansResult {
	centroids := seedPlusPlus(samples, k, rng)
	labels := make([]int, len(samples))

	for iter := 0; iter < kmeansMaxIterations; iter++ {
		changed := false
		for i, sample := range samples {
			nearest := nearestCentroid(sample, centroids)
			if labels[i] != nearest {
				labels[i] = nearest
				changed = true
			}
		}

		// Recompute centers; empty clusters keep their previous center.
		counts := make([]int, k)
		sums := make([][]float64, k)
		for c := range sums {
			sums[c] = make([]float64, len(samples[0]))
		}
		for i, sample := range samples {
			floats.Add(sums[labels[i]], sample)
			counts[labels[i]]++
		}
		for c := 0; c < k; c++ {
			if counts[c] == 0 {
				continue
			}
			floats.Scale(1/float64(counts[c]), sums[c])
			centroids[c] = sums[c]
		}

		if !changed && iter > 0 {
			break
		}
	}

	inertia := 0.0
	for i, sample := range samples {
		d := EuclideanDistance(sample, centroids[labels[i]])
		inertia += d * d
	}
	return &KMeansResult{Centroids: centroids, Labels: labels, Inertia: inertia}
}

// seedPlusPlus picks k initial centers with k-means++ weighting.
func seedPlusPlus(samples [][]float64, k int, rng *rand.Rand) [][]float64 {
	centroids := make([][]float64, 0, k)
	first := samples[rng.Intn(len(samples))]
	centroids = append(centroids, cloneVector(first))

	dists := make([]float64, len(samples))
	for len(centroids) < k {
		total := 0.0
		for i, sample := range samples {
			d := math.Inf(1)
			for _, c := range centroids {
				if cd := EuclideanDistance(sample, c); cd < d {
					d = cd
				}
			}
			dists[i] = d * d
			total += dists[i]
		}

		if total == 0 {
			// All remaining mass is on existing centers (duplicate points);
			// fall back to uniform choice.
			centroids = append(centroids, cloneVector(samples[rng.Intn(len(samples))]))
			continue
		}

		target := rng.Float64() * total
		acc := 0.0
		chosen := len(samples) - 1
		for i, d := range dists {
			acc += d
			if acc >= target {
				chosen = i
				break
			}
		}
		centroids = append(centroids, cloneVector(samples[chosen]))
	}
	return centroids
}

func nearestCentroid(sample []float64, centroids [][]float64) int {
	best := 0
	bestDist := math.Inf(1)
	for c, centroid := range centroids {
		if d := EuclideanDistance(sample, centroid); d < bestDist {
			bestDist = d
			best = c
		}
	}
	return best
}

func cloneVector(v []float64) []float64 {
	out := make([]float64, len(v))
	copy(out, v)
	return out
}

// MatchCentroids pairs each baseline centroid with its nearest current
// centroid (greedy, without replacement) and returns the mean distance over
// the matched pairs.
//
// K-means label order is arbitrary across independent fits, so comparing
// centroid i to centroid i directly would measure labeling noise rather
// than structural shift. Nearest matching makes the shift metric invariant
// to label permutation.
func MatchCentroids(baseline, current [][]float64) float64 {
	if len(baseline) == 0 || len(current) == 0 {
		return 0
	}
	used := make([]bool, len(current))
	total := 0.0
	matched := 0
	for _, b := range baseline {
		best := -1
		bestDist := math.Inf(1)
		for j, c := range current {
			if used[j] {
				continue
			}
			if d := EuclideanDistance(b, c); d < bestDist {
				bestDist = d
				best = j
			}
		}
		if best < 0 {
			break
		}
		used[best] = true
		total += bestDist
		matched++
	}
	if matched == 0 {
		return 0
	}
	return total / float64(matched)
}
