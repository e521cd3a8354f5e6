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

	"gonum.org/v1/gonum/mat"
)

// PCA is a principal-component projection fit on one sample set and
// reusable on others. Drift detection fits on the baseline window and
// transforms both windows, so current-period vectors are expressed in the
// baseline's coordinate frame.
//
// Internally this is a thin SVD of the mean-centered sample matrix; the
// stored mean comes from the fit set and is subtracted before every
// projection.
type PCA struct {
	mean       []float64
	components *mat.Dense // dim x nComponents
}

// FitPCA fits a projection with at most nComponents components.
//
// The effective component count is capped at both the vector dimensionality
// and the sample count, mirroring how much variance the data can carry.
// Returns an error for an empty sample set or ragged rows.
func FitPCA(samples [][]float64, nComponents int) (*PCA, error) {
	if len(samples) == 0 {
		return nil, errors.New("stats: cannot fit PCA on empty sample set")
	}
	dim := len(samples[0])
	if err := checkDimensions(samples, dim); err != nil {
		return nil, err
	}
	if nComponents < 1 {
		return nil, fmt.Errorf("stats: invalid component count %d", nComponents)
	}
	n := len(samples)
	k := min(nComponents, dim, n)

	mean := Centroid(samples)

	centered := mat.NewDense(n, dim, nil)
	for i, row := range samples {
		for j, v := range row {
			centered.Set(i, j, v-mean[j])
		}
	}

	var svd mat.SVD
	if ok := svd.Factorize(centered, mat.SVDThin); !ok {
		return nil, errors.New("stats: SVD factorization failed")
	}
	var v mat.Dense
	svd.VTo(&v)

	_, cols := v.Dims()
	if k > cols {
		k = cols
	}
	components := mat.DenseCopyOf(v.Slice(0, dim, 0, k))

	return &PCA{mean: mean, components: components}, nil
}

// NComponents returns the effective number of fitted components.
func (p *PCA) NComponents() int {
	_, k := p.components.Dims()
	return k
}

// Transform projects samples into the fitted component space. Rows must
// match the fit dimensionality.
func (p *PCA) Transform(samples [][]float64) ([][]float64, error) {
	dim := len(p.mean)
	if err := checkDimensions(samples, dim); err != nil {
		return nil, err
	}
	_, k := p.components.Dims()

	out := make([][]float64, len(samples))
	row := make([]float64, dim)
	for i, sample := range samples {
		for j, v := range sample {
			row[j] = v - p.mean[j]
		}
		projected := make([]float64, k)
		vec := mat.NewVecDense(dim, row)
		var res mat.VecDense
		res.MulVec(p.components.T(), vec)
		for j := 0; j < k; j++ {
			projected[j] = res.AtVec(j)
		}
		out[i] = projected
	}
	return out, nil
}

// TransformTo1D projects samples onto the first principal component only,
// used for PSI binning.
func (p *PCA) TransformTo1D(samples [][]float64) ([]float64, error) {
	projected, err := p.Transform(samples)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(projected))
	for i, row := range projected {
		out[i] = row[0]
	}
	return out, nil
}
