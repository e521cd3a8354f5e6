// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianDrift/services/driftwatch/config"
	"github.com/AleutianAI/AleutianDrift/services/driftwatch/observability"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var serveInterval time.Duration // Time between drift cycles

// =============================================================================
// COMMAND DEFINITION
// =============================================================================

// serveCmd runs the pipeline on a schedule and exposes the monitoring
// endpoints.
//
// # Examples
//
//	driftwatch serve                   # Cycle every 24h, metrics on :9464
//	driftwatch serve --interval 1h     # Hourly cycles
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run drift cycles on a schedule with a metrics endpoint",
	Long: `Runs the drift pipeline on a fixed interval and serves monitoring
endpoints over HTTP:

  GET /health              Liveness probe
  GET /metrics             Prometheus metrics
  GET /v1/reports/latest   Most recent run report

The first cycle starts immediately. SIGINT/SIGTERM drains the HTTP
server and stops after the in-flight cycle finishes.`,
	RunE: runServeCommand,
}

func init() {
	serveCmd.Flags().DurationVar(&serveInterval, "interval", 24*time.Hour,
		"Time between drift detection cycles")
	rootCmd.AddCommand(serveCmd)
}

// =============================================================================
// COMMAND IMPLEMENTATION
// =============================================================================

func runServeCommand(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logWrapper := newLogger(cfg)
	defer logWrapper.Close()
	logger := logWrapper.Slog()

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	registry := prometheus.NewRegistry()
	metrics := observability.NewDriftMetrics(registry)
	orch, err := buildOrchestrator(cfg, store, metrics, logger)
	if err != nil {
		return err
	}

	server := observability.NewServer(cfg.MetricsPort, registry, store, logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()

	logger.Info("drift scheduler started", "interval", serveInterval.String())
	ticker := time.NewTicker(serveInterval)
	defer ticker.Stop()

	runOnce := func() {
		if _, err := orch.Run(ctx); err != nil {
			logger.Error("drift cycle failed to start", "error", err)
		}
	}
	runOnce()

loop:
	for {
		select {
		case <-ticker.C:
			runOnce()
		case <-ctx.Done():
			break loop
		case err := <-serverErr:
			if err != nil {
				return err
			}
			break loop
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("monitoring server shutdown failed", "error", err)
	}
	logger.Info("driftwatch stopped")
	return nil
}
