// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package observability

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/AleutianAI/AleutianDrift/services/driftwatch/datatypes"
)

// ============================================================================
// Test Setup
// ============================================================================

func init() {
	// Set Gin to test mode to reduce noise in test output
	gin.SetMode(gin.TestMode)
}

// mockReportSource serves a canned report or a canned error.
type mockReportSource struct {
	report *datatypes.RunReport
	err    error
}

func (m *mockReportSource) LatestRunReport() (*datatypes.RunReport, error) {
	return m.report, m.err
}

func setupTestRouter(reports ReportSource) (*gin.Engine, *prometheus.Registry) {
	router := gin.New()
	registry := prometheus.NewRegistry()
	SetupRoutes(router, registry, reports)
	return router, registry
}

// ============================================================================
// Route Tests
// ============================================================================

func TestSetupRoutes_RegistersEndpoints(t *testing.T) {
	router, _ := setupTestRouter(nil)

	expected := []struct {
		method string
		path   string
	}{
		{"GET", "/health"},
		{"GET", "/metrics"},
		{"GET", "/v1/reports/latest"},
	}

	routes := router.Routes()
	for _, want := range expected {
		found := false
		for _, r := range routes {
			if r.Method == want.method && r.Path == want.path {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("Expected route %s %s not found", want.method, want.path)
		}
	}
}

func TestHealthEndpoint(t *testing.T) {
	router, _ := setupTestRouter(nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d, want 200", w.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid health body: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("health status = %q, want ok", body["status"])
	}
}

func TestMetricsEndpoint(t *testing.T) {
	router, registry := setupTestRouter(nil)
	metrics := NewDriftMetrics(registry)
	metrics.OverallScore.Set(0.42)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("GET /metrics = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "aleutian_drift_overall_score 0.42") {
		t.Errorf("metrics output missing overall score gauge:\n%s", w.Body.String())
	}
}

func TestLatestReportEndpoint(t *testing.T) {
	report := &datatypes.RunReport{
		RunID:  "drift-20250620-000000",
		Status: datatypes.RunStatusNoDrift,
	}
	router, _ := setupTestRouter(&mockReportSource{report: report})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/reports/latest", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("GET /v1/reports/latest = %d, want 200", w.Code)
	}
	var got datatypes.RunReport
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("invalid report body: %v", err)
	}
	if got.RunID != report.RunID {
		t.Errorf("run_id = %q, want %q", got.RunID, report.RunID)
	}
}

func TestLatestReportEndpoint_NoRuns(t *testing.T) {
	router, _ := setupTestRouter(&mockReportSource{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/reports/latest", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("GET /v1/reports/latest = %d, want 404", w.Code)
	}
}

func TestLatestReportEndpoint_SourceError(t *testing.T) {
	router, _ := setupTestRouter(&mockReportSource{err: errors.New("store closed")})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/reports/latest", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("GET /v1/reports/latest = %d, want 500", w.Code)
	}
}

func TestLatestReportEndpoint_NilSource(t *testing.T) {
	router, _ := setupTestRouter(nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/reports/latest", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("GET /v1/reports/latest = %d, want 404", w.Code)
	}
}
