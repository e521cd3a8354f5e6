// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package stats implements the numeric primitives behind embedding drift
// detection: centroid distances, population variance, PCA, k-means,
// silhouette scoring, and the population stability index.
//
// All functions are pure and operate on [][]float64 sample matrices
// (rows are samples, columns are dimensions). Heavier linear algebra is
// delegated to gonum.
package stats

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/floats"
)

// normEpsilon guards divisions by vector norms and variances.
const normEpsilon = 1e-10

// ErrDimensionMismatch is returned when two vector sets do not share a
// fixed dimensionality.
var ErrDimensionMismatch = errors.New("stats: vectors have mismatched dimensions")

// Centroid returns the coordinate-wise mean of the sample rows.
// Returns nil for an empty input.
func Centroid(samples [][]float64) []float64 {
	if len(samples) == 0 {
		return nil
	}
	dim := len(samples[0])
	centroid := make([]float64, dim)
	for _, row := range samples {
		floats.Add(centroid, row)
	}
	floats.Scale(1/float64(len(samples)), centroid)
	return centroid
}

// EuclideanDistance returns the L2 distance between a and b.
func EuclideanDistance(a, b []float64) float64 {
	return floats.Distance(a, b, 2)
}

// Normalize returns v scaled to unit L2 norm. An epsilon is added to the
// norm so a zero vector maps to a zero vector instead of NaN.
func Normalize(v []float64) []float64 {
	norm := floats.Norm(v, 2)
	out := make([]float64, len(v))
	copy(out, v)
	floats.Scale(1/(norm+normEpsilon), out)
	return out
}

// CosineDistance returns 1 - cos(a, b). Inputs are expected to be
// pre-normalized (see Normalize); the epsilon keeps zero vectors finite.
func CosineDistance(a, b []float64) float64 {
	dot := floats.Dot(a, b)
	na := floats.Norm(a, 2)
	nb := floats.Norm(b, 2)
	return 1 - dot/(na*nb+normEpsilon)
}

// PopulationVariance returns the variance of every element of the sample
// matrix treated as one flat population (divisor n, not n-1). This measures
// the overall spread of an embedding cloud, not per-dimension variance.
func PopulationVariance(samples [][]float64) float64 {
	n := 0
	sum := 0.0
	for _, row := range samples {
		for _, v := range row {
			sum += v
			n++
		}
	}
	if n == 0 {
		return 0
	}
	mean := sum / float64(n)
	ss := 0.0
	for _, row := range samples {
		for _, v := range row {
			d := v - mean
			ss += d * d
		}
	}
	return ss / float64(n)
}

// Clip bounds v to [lo, hi].
func Clip(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}

// checkDimensions verifies every row has the given width.
func checkDimensions(samples [][]float64, dim int) error {
	for _, row := range samples {
		if len(row) != dim {
			return ErrDimensionMismatch
		}
	}
	return nil
}
