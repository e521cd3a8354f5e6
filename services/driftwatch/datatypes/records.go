// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package datatypes defines the record shapes, report shapes, and run
// artifacts used by the driftwatch service.
//
// Records (InteractionRecord, EvaluationRecord, TaskRecord, EmbeddingRecord)
// are produced by the serving stack and are read-only here. Reports are
// computed once per pipeline run and never mutated after creation.
package datatypes

import "time"

// EmbeddingType selects which embedding stream to analyze.
type EmbeddingType string

const (
	EmbeddingTypeQuery EmbeddingType = "query"
	EmbeddingTypeDoc   EmbeddingType = "doc"
	EmbeddingTypeAll   EmbeddingType = "all"
)

// InteractionRecord is one logged request/response pair from the serving
// system. Immutable once written.
type InteractionRecord struct {
	Timestamp     time.Time `json:"timestamp"`
	UserQuery     string    `json:"user_query"`
	ModelResponse string    `json:"model_response"`
	RefusalFlag   bool      `json:"refusal_flag"`
	ToxicityFlag  bool      `json:"toxicity_flag"`
	ErrorFlag     bool      `json:"error_flag"`

	// UserFeedbackScore is an optional rating (0-5). Nil when the user
	// gave no feedback.
	UserFeedbackScore *float64 `json:"user_feedback_score,omitempty"`
}

// EvaluationRecord is one row from the external evaluation harness.
type EvaluationRecord struct {
	Timestamp         time.Time `json:"timestamp"`
	EvaluationSetName string    `json:"evaluation_set_name"`
	Accuracy          float64   `json:"accuracy"`
	Precision         float64   `json:"precision"`
	Recall            float64   `json:"recall"`
	F1Score           float64   `json:"f1_score"`
}

// TaskRecord is one row from the optional task-outcome stream. The stream
// may not exist at all; callers must treat its absence as "no signal",
// not as an error.
type TaskRecord struct {
	Timestamp   time.Time `json:"timestamp"`
	SuccessFlag bool      `json:"success_flag"`
}

// EmbeddingRecord is one logged embedding vector. All vectors within a
// stream share a fixed dimensionality.
type EmbeddingRecord struct {
	Timestamp time.Time     `json:"timestamp"`
	Type      EmbeddingType `json:"type"`
	Vector    []float64     `json:"vector"`
}
