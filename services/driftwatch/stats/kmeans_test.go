// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// twoBlobs returns two well-separated point clouds around (0,0) and (10,10).
func twoBlobs() [][]float64 {
	return [][]float64{
		{0, 0}, {0.1, 0}, {0, 0.1}, {-0.1, 0.1},
		{10, 10}, {10.1, 10}, {10, 10.1}, {9.9, 9.9},
	}
}

func TestKMeans_InvalidK(t *testing.T) {
	_, err := KMeans(twoBlobs(), 0, 1, 42)
	assert.Error(t, err)
}

func TestKMeans_FewerSamplesThanClusters(t *testing.T) {
	_, err := KMeans([][]float64{{1, 1}}, 2, 1, 42)
	assert.Error(t, err)
}

func TestKMeans_RaggedRows(t *testing.T) {
	_, err := KMeans([][]float64{{1, 2}, {3}}, 1, 1, 42)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestKMeans_SeparatedClusters(t *testing.T) {
	samples := twoBlobs()
	result, err := KMeans(samples, 2, 10, 42)
	require.NoError(t, err)
	require.Len(t, result.Centroids, 2)
	require.Len(t, result.Labels, len(samples))

	// First four points share one label, last four the other.
	first := result.Labels[0]
	for i := 1; i < 4; i++ {
		assert.Equal(t, first, result.Labels[i], "sample %d", i)
	}
	second := result.Labels[4]
	assert.NotEqual(t, first, second)
	for i := 5; i < 8; i++ {
		assert.Equal(t, second, result.Labels[i], "sample %d", i)
	}

	assert.Less(t, result.Inertia, 1.0)
}

func TestKMeans_Deterministic(t *testing.T) {
	samples := twoBlobs()
	a, err := KMeans(samples, 2, 5, 7)
	require.NoError(t, err)
	b, err := KMeans(samples, 2, 5, 7)
	require.NoError(t, err)

	assert.Equal(t, a.Labels, b.Labels)
	assert.Equal(t, a.Centroids, b.Centroids)
	assert.Equal(t, a.Inertia, b.Inertia)
}

func TestKMeans_DuplicatePoints(t *testing.T) {
	// All-identical samples exercise the degenerate seeding fallback.
	samples := [][]float64{{1, 1}, {1, 1}, {1, 1}}
	result, err := KMeans(samples, 2, 3, 42)
	require.NoError(t, err)
	assert.Equal(t, 0.0, result.Inertia)
}

func TestMatchCentroids_Empty(t *testing.T) {
	assert.Equal(t, 0.0, MatchCentroids(nil, [][]float64{{1}}))
	assert.Equal(t, 0.0, MatchCentroids([][]float64{{1}}, nil))
}

func TestMatchCentroids_IdenticalSets(t *testing.T) {
	centroids := [][]float64{{0, 0}, {5, 5}}
	assert.InDelta(t, 0.0, MatchCentroids(centroids, centroids), 1e-12)
}

func TestMatchCentroids_PermutationInvariant(t *testing.T) {
	baseline := [][]float64{{0, 0}, {10, 10}}
	shifted := [][]float64{{0, 1}, {10, 11}}
	swapped := [][]float64{{10, 11}, {0, 1}}

	d1 := MatchCentroids(baseline, shifted)
	d2 := MatchCentroids(baseline, swapped)
	assert.InDelta(t, d1, d2, 1e-12)
	assert.InDelta(t, 1.0, d1, 1e-12)
}

func TestMatchCentroids_MeanOverPairs(t *testing.T) {
	baseline := [][]float64{{0, 0}, {10, 0}}
	current := [][]float64{{3, 4}, {10, 0}}
	// Pairs: (0,0)->(3,4) distance 5 matched after (10,0)->(10,0) distance 0
	// or in greedy order; mean is 2.5 either way.
	assert.InDelta(t, 2.5, MatchCentroids(baseline, current), 1e-12)
}
