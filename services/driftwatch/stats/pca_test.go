// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package stats

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFitPCA_Empty(t *testing.T) {
	_, err := FitPCA(nil, 2)
	assert.Error(t, err)
}

func TestFitPCA_InvalidComponents(t *testing.T) {
	_, err := FitPCA([][]float64{{1, 2}}, 0)
	assert.Error(t, err)
}

func TestFitPCA_RaggedRows(t *testing.T) {
	_, err := FitPCA([][]float64{{1, 2}, {3}}, 1)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestFitPCA_ComponentCapping(t *testing.T) {
	// 3 samples of dimension 2: effective k is min(requested, dim, n) = 2.
	samples := [][]float64{{1, 0}, {0, 1}, {1, 1}}
	pca, err := FitPCA(samples, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, pca.NComponents())
}

func TestPCA_TransformDimensions(t *testing.T) {
	samples := [][]float64{
		{1, 0, 0}, {2, 0.1, 0}, {3, -0.1, 0}, {4, 0, 0.1},
	}
	pca, err := FitPCA(samples, 2)
	require.NoError(t, err)

	out, err := pca.Transform(samples)
	require.NoError(t, err)
	require.Len(t, out, 4)
	for _, row := range out {
		assert.Len(t, row, pca.NComponents())
	}
}

func TestPCA_MeanProjectsToOrigin(t *testing.T) {
	samples := [][]float64{{1, 2}, {3, 4}, {5, 8}}
	pca, err := FitPCA(samples, 2)
	require.NoError(t, err)

	mean := Centroid(samples)
	out, err := pca.Transform([][]float64{mean})
	require.NoError(t, err)
	for _, v := range out[0] {
		assert.InDelta(t, 0.0, v, 1e-9)
	}
}

func TestPCA_FirstComponentCapturesVariance(t *testing.T) {
	// Points along the x axis with tiny y noise: the first component's
	// projection must preserve the spread in x.
	samples := [][]float64{
		{-2, 0.01}, {-1, -0.01}, {0, 0}, {1, 0.01}, {2, -0.01},
	}
	pca, err := FitPCA(samples, 1)
	require.NoError(t, err)

	proj, err := pca.TransformTo1D(samples)
	require.NoError(t, err)
	require.Len(t, proj, 5)

	lo, hi := proj[0], proj[0]
	for _, v := range proj {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	assert.InDelta(t, 4.0, hi-lo, 0.01)
}

func TestPCA_TransformWrongDimension(t *testing.T) {
	samples := [][]float64{{1, 2}, {3, 4}}
	pca, err := FitPCA(samples, 1)
	require.NoError(t, err)

	_, err = pca.Transform([][]float64{{1, 2, 3}})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}
