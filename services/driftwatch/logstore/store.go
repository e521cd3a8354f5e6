// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package logstore provides read access to the serving stack's log streams:
// interactions, evaluations, task outcomes, and embeddings.
//
// Every query is bounded by an explicit time window and row limit; a window
// with no matching rows yields an empty slice, not an error. The monitors
// consume the Store interface so tests substitute in-memory fakes, and the
// production implementation is backed by BadgerDB.
package logstore

import (
	"context"
	"errors"

	"github.com/AleutianAI/AleutianDrift/services/driftwatch/datatypes"
)

// DefaultQueryLimit bounds queries that pass limit <= 0. No read is ever
// unbounded.
const DefaultQueryLimit = 10000

// ErrStreamMissing is returned by Tasks when the task stream has never been
// written. Callers distinguish "the stream does not exist" (skip the signal
// silently) from "the stream exists but this window is empty".
var ErrStreamMissing = errors.New("logstore: stream does not exist")

// Store is the read-only query surface over the log streams.
//
// Implementations must return records ordered by timestamp ascending and
// must treat an empty window as a valid result. All reads are bounded by
// the window and the row limit; none block indefinitely.
type Store interface {
	// Interactions returns interaction records inside the window.
	Interactions(ctx context.Context, w datatypes.TimeWindow, limit int) ([]datatypes.InteractionRecord, error)

	// Evaluations returns evaluation-harness records inside the window.
	Evaluations(ctx context.Context, w datatypes.TimeWindow, limit int) ([]datatypes.EvaluationRecord, error)

	// Tasks returns task-outcome records inside the window, or
	// ErrStreamMissing when the stream has never existed.
	Tasks(ctx context.Context, w datatypes.TimeWindow, limit int) ([]datatypes.TaskRecord, error)

	// Embeddings returns embedding records of the given type inside the
	// window. EmbeddingTypeAll matches every type.
	Embeddings(ctx context.Context, w datatypes.TimeWindow, typ datatypes.EmbeddingType, limit int) ([]datatypes.EmbeddingRecord, error)
}
