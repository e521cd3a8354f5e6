// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package monitors implements the three drift monitors: embedding
// distribution drift, behavioral drift, and accuracy drift.
//
// Monitors are pure readers: they query the log store for two time windows,
// compute their report, and never mutate system state. Insufficient data is
// a report outcome, not an error; only data-source failures surface as
// errors, which the pipeline records and tolerates per monitor.
package monitors

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/AleutianAI/AleutianDrift/services/driftwatch/datatypes"
	"github.com/AleutianAI/AleutianDrift/services/driftwatch/logstore"
	"github.com/AleutianAI/AleutianDrift/services/driftwatch/stats"
)

// PSI decision boundaries (industry-standard interpretation).
const (
	psiModerateBound = 0.1
	psiHighBound     = 0.2
)

// insufficientDataMsg matches the report error emitted when a window holds
// no samples.
const insufficientDataMsg = "Insufficient data for drift detection"

// kmeansSeed keeps clustering deterministic across runs so two windows are
// compared under identical seeding.
const kmeansSeed = 42

// kmeansRestarts is the number of k-means restarts per window.
const kmeansRestarts = 10

// EmbeddingConfig holds the thresholds and shape parameters for the
// embedding drift detector. Zero values are replaced with defaults by
// NewEmbeddingDetector.
type EmbeddingConfig struct {
	// DistanceThreshold is the max acceptable centroid distance, applied to
	// both the euclidean and cosine distances and to the cluster centroid
	// shift. Default 0.15.
	DistanceThreshold float64

	// SilhouetteThreshold is the max acceptable silhouette-score drop
	// between windows. Default 0.2.
	SilhouetteThreshold float64

	// VarianceThreshold is the max acceptable relative variance change.
	// Default 0.3.
	VarianceThreshold float64

	// NClusters is the k for k-means. Default 5.
	NClusters int

	// NComponents is the PCA target dimensionality for clustering, capped
	// at the vector dimensionality. Default 50.
	NComponents int

	// NBins is the PSI histogram bin count. Default 10.
	NBins int

	// QueryLimit bounds each window's embedding fetch. Default
	// logstore.DefaultQueryLimit.
	QueryLimit int
}

// DefaultEmbeddingConfig returns the production thresholds.
func DefaultEmbeddingConfig() EmbeddingConfig {
	return EmbeddingConfig{
		DistanceThreshold:   0.15,
		SilhouetteThreshold: 0.2,
		VarianceThreshold:   0.3,
		NClusters:           5,
		NComponents:         50,
		NBins:               10,
	}
}

func (c *EmbeddingConfig) applyDefaults() {
	def := DefaultEmbeddingConfig()
	if c.DistanceThreshold <= 0 {
		c.DistanceThreshold = def.DistanceThreshold
	}
	if c.SilhouetteThreshold <= 0 {
		c.SilhouetteThreshold = def.SilhouetteThreshold
	}
	if c.VarianceThreshold <= 0 {
		c.VarianceThreshold = def.VarianceThreshold
	}
	if c.NClusters <= 0 {
		c.NClusters = def.NClusters
	}
	if c.NComponents <= 0 {
		c.NComponents = def.NComponents
	}
	if c.NBins <= 0 {
		c.NBins = def.NBins
	}
	if c.QueryLimit <= 0 {
		c.QueryLimit = logstore.DefaultQueryLimit
	}
}

// EmbeddingDetector detects distribution shift between two windows of
// embedding vectors using four independent methods: centroid distance,
// overall variance change, cluster-structure comparison, and the
// population stability index.
type EmbeddingDetector struct {
	store  logstore.Store
	cfg    EmbeddingConfig
	logger *slog.Logger
	now    func() time.Time
}

// NewEmbeddingDetector builds a detector over the given store. Zero config
// fields get production defaults.
func NewEmbeddingDetector(store logstore.Store, cfg EmbeddingConfig, logger *slog.Logger) *EmbeddingDetector {
	cfg.applyDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &EmbeddingDetector{store: store, cfg: cfg, logger: logger, now: time.Now}
}

// DetectDrift runs all four methods over the baseline and current windows
// for the requested embedding type.
//
// If either window yields zero vectors the report carries an explicit
// insufficient-data marker and no score. A store failure is returned as an
// error (data-source failure, handled by the orchestrator). DriftDetected
// is the OR of the four methods; DriftScore is the mean of the
// threshold-normalized sub-signals clipped to [0,1].
func (d *EmbeddingDetector) DetectDrift(ctx context.Context, baseline, current datatypes.TimeWindow, typ datatypes.EmbeddingType) (*datatypes.EmbeddingDriftReport, error) {
	d.logger.Info("starting embedding drift detection", "embedding_type", typ)

	baselineVecs, err := d.fetchVectors(ctx, baseline, typ)
	if err != nil {
		return nil, fmt.Errorf("fetch baseline embeddings: %w", err)
	}
	currentVecs, err := d.fetchVectors(ctx, current, typ)
	if err != nil {
		return nil, fmt.Errorf("fetch current embeddings: %w", err)
	}

	report := &datatypes.EmbeddingDriftReport{
		Timestamp:      d.now(),
		EmbeddingType:  typ,
		BaselinePeriod: datatypes.PeriodSummary{Window: baseline, SampleCount: len(baselineVecs)},
		CurrentPeriod:  datatypes.PeriodSummary{Window: current, SampleCount: len(currentVecs)},
	}

	if len(baselineVecs) == 0 || len(currentVecs) == 0 {
		d.logger.Warn("insufficient embedding data",
			"baseline_count", len(baselineVecs),
			"current_count", len(currentVecs),
		)
		report.InsufficientData = true
		report.Error = insufficientDataMsg
		return report, nil
	}

	dim := len(baselineVecs[0])
	if len(currentVecs[0]) != dim {
		return nil, fmt.Errorf("embedding dimensionality mismatch: baseline %d, current %d", dim, len(currentVecs[0]))
	}

	report.Centroid = d.centroidDistance(baselineVecs, currentVecs)
	report.Variance = d.varianceChange(baselineVecs, currentVecs)
	report.Cluster = d.clusterDrift(baselineVecs, currentVecs)
	psi, err := d.populationStability(baselineVecs, currentVecs)
	if err != nil {
		return nil, fmt.Errorf("compute PSI: %w", err)
	}
	report.PSI = psi

	report.DriftDetected = report.Centroid.DriftDetected ||
		report.Variance.DriftDetected ||
		report.Cluster.DriftDetected ||
		report.PSI.DriftDetected

	score := (report.Centroid.EuclideanDistance/d.cfg.DistanceThreshold +
		report.Variance.VarianceChangePct/100/d.cfg.VarianceThreshold +
		report.Cluster.SilhouetteChange/d.cfg.SilhouetteThreshold +
		report.PSI.PSI/psiHighBound) / 4
	report.DriftScore = stats.Clip(score, 0, 1)

	d.logger.Info("embedding drift detection complete",
		"drift_detected", report.DriftDetected,
		"drift_score", report.DriftScore,
	)
	return report, nil
}

func (d *EmbeddingDetector) fetchVectors(ctx context.Context, w datatypes.TimeWindow, typ datatypes.EmbeddingType) ([][]float64, error) {
	records, err := d.store.Embeddings(ctx, w, typ, d.cfg.QueryLimit)
	if err != nil {
		return nil, err
	}
	vectors := make([][]float64, len(records))
	for i, rec := range records {
		vectors[i] = rec.Vector
	}
	return vectors, nil
}

// centroidDistance compares the mean vectors of the two windows. The cosine
// distance is taken between L2-normalized centroids so it is invariant to
// uniform scaling of the inputs.
func (d *EmbeddingDetector) centroidDistance(baseline, current [][]float64) datatypes.CentroidDistanceResult {
	baseCentroid := stats.Centroid(baseline)
	curCentroid := stats.Centroid(current)

	euclidean := stats.EuclideanDistance(baseCentroid, curCentroid)
	cosine := stats.CosineDistance(stats.Normalize(baseCentroid), stats.Normalize(curCentroid))

	return datatypes.CentroidDistanceResult{
		EuclideanDistance: euclidean,
		CosineDistance:    cosine,
		Threshold:         d.cfg.DistanceThreshold,
		DriftDetected:     euclidean > d.cfg.DistanceThreshold || cosine > d.cfg.DistanceThreshold,
	}
}

// varianceChange compares the flat population variance of the two windows.
// A large relative change means the query mix got substantially more (or
// less) scattered.
func (d *EmbeddingDetector) varianceChange(baseline, current [][]float64) datatypes.VarianceChangeResult {
	baseVar := stats.PopulationVariance(baseline)
	curVar := stats.PopulationVariance(current)

	const epsilon = 1e-10
	change := abs(curVar-baseVar) / (baseVar + epsilon)

	return datatypes.VarianceChangeResult{
		BaselineVariance:  baseVar,
		CurrentVariance:   curVar,
		VarianceChangePct: change * 100,
		Threshold:         d.cfg.VarianceThreshold,
		DriftDetected:     change > d.cfg.VarianceThreshold,
	}
}

// clusterDrift reduces both windows with PCA fit on the baseline, clusters
// each window independently, and compares silhouette quality and centroid
// positions. Centroids from independent fits have arbitrary label order, so
// the shift is measured over nearest-centroid pairs rather than same-index
// pairs.
func (d *EmbeddingDetector) clusterDrift(baseline, current [][]float64) datatypes.ClusterDriftResult {
	k := d.cfg.NClusters
	if len(baseline) < k || len(current) < k {
		d.logger.Warn("not enough samples for clustering",
			"baseline_count", len(baseline),
			"current_count", len(current),
			"n_clusters", k,
		)
		return datatypes.ClusterDriftResult{Skipped: true, SkipReason: "insufficient_samples", NClusters: k}
	}

	pca, err := stats.FitPCA(baseline, d.cfg.NComponents)
	if err != nil {
		return datatypes.ClusterDriftResult{Skipped: true, SkipReason: err.Error(), NClusters: k}
	}
	baseReduced, err := pca.Transform(baseline)
	if err != nil {
		return datatypes.ClusterDriftResult{Skipped: true, SkipReason: err.Error(), NClusters: k}
	}
	curReduced, err := pca.Transform(current)
	if err != nil {
		return datatypes.ClusterDriftResult{Skipped: true, SkipReason: err.Error(), NClusters: k}
	}

	baseClusters, err := stats.KMeans(baseReduced, k, kmeansRestarts, kmeansSeed)
	if err != nil {
		return datatypes.ClusterDriftResult{Skipped: true, SkipReason: err.Error(), NClusters: k}
	}
	curClusters, err := stats.KMeans(curReduced, k, kmeansRestarts, kmeansSeed)
	if err != nil {
		return datatypes.ClusterDriftResult{Skipped: true, SkipReason: err.Error(), NClusters: k}
	}

	baseSilhouette := stats.Silhouette(baseReduced, baseClusters.Labels)
	curSilhouette := stats.Silhouette(curReduced, curClusters.Labels)
	silhouetteChange := baseSilhouette - curSilhouette

	avgShift := stats.MatchCentroids(baseClusters.Centroids, curClusters.Centroids)

	return datatypes.ClusterDriftResult{
		BaselineSilhouette: baseSilhouette,
		CurrentSilhouette:  curSilhouette,
		SilhouetteChange:   silhouetteChange,
		AvgCentroidShift:   avgShift,
		NClusters:          k,
		DriftDetected: silhouetteChange > d.cfg.SilhouetteThreshold ||
			avgShift > d.cfg.DistanceThreshold,
	}
}

// populationStability projects both windows onto the baseline's first
// principal component and computes the PSI over baseline-spanned bins.
func (d *EmbeddingDetector) populationStability(baseline, current [][]float64) (datatypes.PSIResult, error) {
	pca, err := stats.FitPCA(baseline, 1)
	if err != nil {
		return datatypes.PSIResult{}, err
	}
	base1d, err := pca.TransformTo1D(baseline)
	if err != nil {
		return datatypes.PSIResult{}, err
	}
	cur1d, err := pca.TransformTo1D(current)
	if err != nil {
		return datatypes.PSIResult{}, err
	}

	psi, err := stats.PSI(base1d, cur1d, d.cfg.NBins)
	if err != nil {
		return datatypes.PSIResult{}, err
	}

	level := datatypes.PSILevelLow
	switch {
	case psi > psiHighBound:
		level = datatypes.PSILevelHigh
	case psi > psiModerateBound:
		level = datatypes.PSILevelModerate
	}

	return datatypes.PSIResult{
		PSI:           psi,
		DriftLevel:    level,
		DriftDetected: psi > psiHighBound,
	}, nil
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
