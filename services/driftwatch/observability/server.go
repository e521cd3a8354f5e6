// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package observability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AleutianAI/AleutianDrift/services/driftwatch/datatypes"
)

// ReportSource fetches the most recent archived run report.
// Nil report with nil error means no run has completed yet.
type ReportSource interface {
	LatestRunReport() (*datatypes.RunReport, error)
}

// SetupRoutes registers the monitoring surface on the router.
func SetupRoutes(router *gin.Engine, gatherer prometheus.Gatherer, reports ReportSource) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "driftwatch"})
	})

	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	v1 := router.Group("/v1")
	{
		v1.GET("/reports/latest", func(c *gin.Context) {
			if reports == nil {
				c.JSON(http.StatusNotFound, gin.H{"error": "report archive not configured"})
				return
			}
			report, err := reports.LatestRunReport()
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			if report == nil {
				c.JSON(http.StatusNotFound, gin.H{"error": "no completed runs"})
				return
			}
			c.JSON(http.StatusOK, report)
		})
	}
}

// Server exposes /health, /metrics, and the report API over HTTP.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer builds the monitoring server on the given port.
func NewServer(port int, gatherer prometheus.Gatherer, reports ReportSource, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	SetupRoutes(router, gatherer, reports)

	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// Start serves until Shutdown is called. It blocks.
func (s *Server) Start() error {
	s.logger.Info("monitoring server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("monitoring server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
