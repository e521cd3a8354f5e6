// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package config loads and validates the drift pipeline's runtime
// configuration from environment variables.
//
// Unrecognized variables are ignored. A recognized variable that fails to
// parse, or a parsed configuration that fails validation, is a fatal
// startup error: the pipeline never runs with a half-applied config.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/go-playground/validator/v10"
)

// configValidate is the validator instance for the pipeline config.
var configValidate = validator.New()

// Config is the full runtime configuration. Defaults mirror production.
type Config struct {
	// Window geometry.
	BaselineDays int `validate:"gt=0,lte=365"`
	CurrentDays  int `validate:"gt=0,lte=365"`

	// Storage and reporting.
	DataDir   string `validate:"required"`
	ReportDir string

	// Metrics endpoint.
	MetricsPort int `validate:"gt=0,lte=65535"`

	// Embedding drift thresholds.
	DistanceThreshold   float64 `validate:"gt=0"`
	SilhouetteThreshold float64 `validate:"gt=0"`
	VarianceThreshold   float64 `validate:"gt=0"`

	// Behavior drift thresholds (absolute rates).
	RefusalRateThreshold  float64 `validate:"gt=0,lte=1"`
	ToxicityRateThreshold float64 `validate:"gt=0,lte=1"`

	// Accuracy drift thresholds.
	AccuracyThreshold float64 `validate:"gt=0,lte=1"`
	FeedbackThreshold float64 `validate:"gt=0,lte=1"`

	// Corrective-action settings.
	MaxDocuments   int `validate:"gt=0"`
	FineTuneModel  string
	EmbeddingModel string

	// External services. Empty values disable the corresponding
	// dispatcher rather than failing startup.
	OpenAIAPIKey string
	WeaviateURL  string

	// Logging.
	LogDir  string
	LogJSON bool
	Quiet   bool
}

// Default returns the production configuration.
func Default() Config {
	return Config{
		BaselineDays:          30,
		CurrentDays:           7,
		DataDir:               "./data/driftwatch",
		ReportDir:             ".",
		MetricsPort:           9464,
		DistanceThreshold:     0.15,
		SilhouetteThreshold:   0.2,
		VarianceThreshold:     0.3,
		RefusalRateThreshold:  0.10,
		ToxicityRateThreshold: 0.05,
		AccuracyThreshold:     0.05,
		FeedbackThreshold:     0.30,
		MaxDocuments:          1000,
	}
}

// Load reads the environment over the defaults and validates the result.
func Load() (Config, error) {
	cfg := Default()

	var err error
	set := func(f func() error) {
		if err == nil {
			err = f()
		}
	}

	set(envInt("DRIFT_BASELINE_DAYS", &cfg.BaselineDays))
	set(envInt("DRIFT_CURRENT_DAYS", &cfg.CurrentDays))
	set(envString("DRIFT_DATA_DIR", &cfg.DataDir))
	set(envString("DRIFT_REPORT_DIR", &cfg.ReportDir))
	set(envInt("DRIFT_METRICS_PORT", &cfg.MetricsPort))
	set(envFloat("DRIFT_DISTANCE_THRESHOLD", &cfg.DistanceThreshold))
	set(envFloat("DRIFT_SILHOUETTE_THRESHOLD", &cfg.SilhouetteThreshold))
	set(envFloat("DRIFT_VARIANCE_THRESHOLD", &cfg.VarianceThreshold))
	set(envFloat("DRIFT_REFUSAL_THRESHOLD", &cfg.RefusalRateThreshold))
	set(envFloat("DRIFT_TOXICITY_THRESHOLD", &cfg.ToxicityRateThreshold))
	set(envFloat("DRIFT_ACCURACY_THRESHOLD", &cfg.AccuracyThreshold))
	set(envFloat("DRIFT_FEEDBACK_THRESHOLD", &cfg.FeedbackThreshold))
	set(envInt("DRIFT_MAX_DOCUMENTS", &cfg.MaxDocuments))
	set(envString("DRIFT_FINE_TUNE_MODEL", &cfg.FineTuneModel))
	set(envString("DRIFT_EMBEDDING_MODEL", &cfg.EmbeddingModel))
	set(envString("OPENAI_API_KEY", &cfg.OpenAIAPIKey))
	set(envString("WEAVIATE_SERVICE_URL", &cfg.WeaviateURL))
	set(envString("LOG_DIR", &cfg.LogDir))
	set(envBool("LOG_JSON", &cfg.LogJSON))
	set(envBool("DRIFT_QUIET", &cfg.Quiet))
	if err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the configured values against their tags.
func (c Config) Validate() error {
	if err := configValidate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func envString(key string, dst *string) func() error {
	return func() error {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
		return nil
	}
}

func envInt(key string, dst *int) func() error {
	return func() error {
		v, ok := os.LookupEnv(key)
		if !ok {
			return nil
		}
		parsed, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s=%q: %w", key, v, err)
		}
		*dst = parsed
		return nil
	}
}

func envFloat(key string, dst *float64) func() error {
	return func() error {
		v, ok := os.LookupEnv(key)
		if !ok {
			return nil
		}
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid %s=%q: %w", key, v, err)
		}
		*dst = parsed
		return nil
	}
}

func envBool(key string, dst *bool) func() error {
	return func() error {
		v, ok := os.LookupEnv(key)
		if !ok {
			return nil
		}
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s=%q: %w", key, v, err)
		}
		*dst = parsed
		return nil
	}
}
