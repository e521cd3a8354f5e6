// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"

	"github.com/AleutianAI/AleutianDrift/pkg/logging"
	"github.com/AleutianAI/AleutianDrift/services/driftwatch/actions"
	"github.com/AleutianAI/AleutianDrift/services/driftwatch/config"
	"github.com/AleutianAI/AleutianDrift/services/driftwatch/datatypes"
	"github.com/AleutianAI/AleutianDrift/services/driftwatch/decision"
	"github.com/AleutianAI/AleutianDrift/services/driftwatch/logstore"
	"github.com/AleutianAI/AleutianDrift/services/driftwatch/monitors"
	"github.com/AleutianAI/AleutianDrift/services/driftwatch/observability"
	"github.com/AleutianAI/AleutianDrift/services/driftwatch/pipeline"
)

// newLogger builds the service logger from config. Callers own Close().
func newLogger(cfg config.Config) *logging.Logger {
	return logging.New(logging.Config{
		Level:   logging.LevelInfo,
		LogDir:  cfg.LogDir,
		Service: "driftwatch",
		JSON:    cfg.LogJSON,
		Quiet:   cfg.Quiet,
	})
}

// openStore opens the badger-backed log store at the configured path.
func openStore(cfg config.Config) (*logstore.BadgerStore, error) {
	store, err := logstore.Open(logstore.DefaultConfig(cfg.DataDir))
	if err != nil {
		return nil, fmt.Errorf("open log store at %s: %w", cfg.DataDir, err)
	}
	return store, nil
}

// buildRegistry wires the corrective-action dispatchers from config.
// Dispatchers whose external dependency is not configured are left out;
// the orchestrator records their actions as skipped.
func buildRegistry(cfg config.Config, store *logstore.BadgerStore, metrics *observability.DriftMetrics, logger *slog.Logger) (*actions.Registry, error) {
	var dispatchers []actions.Dispatcher

	var costs actions.CostRecorder
	if metrics != nil {
		costs = metrics.AddAPICost
	}

	if cfg.OpenAIAPIKey != "" {
		client := openai.NewClient(cfg.OpenAIAPIKey)
		fineTuneClient := actions.NewOpenAIFineTuneClient(client, cfg.FineTuneModel)
		dispatchers = append(dispatchers,
			actions.NewFineTuner(store, fineTuneClient, 0, costs, logger))

		if cfg.WeaviateURL != "" {
			weaviateClient, err := newWeaviateClient(cfg.WeaviateURL)
			if err != nil {
				return nil, err
			}
			index := actions.NewWeaviateIndex(weaviateClient, logger)
			embedder := actions.NewOpenAIEmbedder(client, openai.EmbeddingModel(cfg.EmbeddingModel))
			dispatchers = append(dispatchers,
				actions.NewReindexer(index, embedder, cfg.MaxDocuments, costs, logger))
		} else {
			logger.Warn("WEAVIATE_SERVICE_URL not set, reindex dispatcher disabled")
		}
	} else {
		logger.Warn("OPENAI_API_KEY not set, fine-tune and reindex dispatchers disabled")
	}

	dispatchers = append(dispatchers, actions.NewSafetyFilterUpdater(store, logger))

	return actions.NewRegistry(dispatchers...)
}

// embeddingStream pins an embedding detector to one stream so it fits the
// pipeline's two-window detector shape.
type embeddingStream struct {
	detector *monitors.EmbeddingDetector
	typ      datatypes.EmbeddingType
}

func (e embeddingStream) DetectDrift(ctx context.Context, baseline, current datatypes.TimeWindow) (*datatypes.EmbeddingDriftReport, error) {
	return e.detector.DetectDrift(ctx, baseline, current, e.typ)
}

// buildOrchestrator assembles the full pipeline over the opened store.
func buildOrchestrator(cfg config.Config, store *logstore.BadgerStore, metrics *observability.DriftMetrics, logger *slog.Logger) (*pipeline.Orchestrator, error) {
	embedding := embeddingStream{
		detector: monitors.NewEmbeddingDetector(store, monitors.EmbeddingConfig{
			DistanceThreshold:   cfg.DistanceThreshold,
			SilhouetteThreshold: cfg.SilhouetteThreshold,
			VarianceThreshold:   cfg.VarianceThreshold,
		}, logger),
		typ: datatypes.EmbeddingTypeQuery,
	}

	behavior := monitors.NewBehaviorMonitor(store, monitors.BehaviorConfig{
		RefusalRateThreshold:  cfg.RefusalRateThreshold,
		ToxicityRateThreshold: cfg.ToxicityRateThreshold,
	}, logger)

	accuracy := monitors.NewAccuracyMonitor(store, monitors.AccuracyConfig{
		AccuracyThreshold: cfg.AccuracyThreshold,
		FeedbackThreshold: cfg.FeedbackThreshold,
	}, logger)

	registry, err := buildRegistry(cfg, store, metrics, logger)
	if err != nil {
		return nil, err
	}

	engine := decision.NewEngine(nil, logger)

	return pipeline.NewOrchestrator(
		embedding, behavior, accuracy,
		engine, registry, metrics, store,
		pipeline.Config{
			BaselineDays: cfg.BaselineDays,
			CurrentDays:  cfg.CurrentDays,
			ReportDir:    cfg.ReportDir,
		},
		logger,
	), nil
}

// newWeaviateClient connects to Weaviate from a URL with optional scheme.
func newWeaviateClient(url string) (*weaviate.Client, error) {
	wcfg := weaviate.Config{
		Host:   url,
		Scheme: "http",
	}
	if strings.HasPrefix(url, "https://") {
		wcfg.Scheme = "https"
		wcfg.Host = url[8:]
	} else if strings.HasPrefix(url, "http://") {
		wcfg.Host = url[7:]
	}
	client, err := weaviate.NewClient(wcfg)
	if err != nil {
		return nil, fmt.Errorf("create weaviate client: %w", err)
	}
	return client, nil
}
