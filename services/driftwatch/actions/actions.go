// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package actions implements the corrective-action dispatchers: document
// reindexing, fine-tune triggering, and safety-filter tightening.
//
// Each dispatcher executes exactly one action, is attempted at most once
// per pipeline run, and never retries internally. Every action is
// idempotent: safe to invoke even when a prior invocation's outcome is
// unknown. Failures are returned to the orchestrator, which records them
// per action without blocking sibling actions.
package actions

import (
	"context"
	"fmt"

	"github.com/AleutianAI/AleutianDrift/services/driftwatch/datatypes"
)

// Dispatcher executes one corrective action.
//
// Execute must be atomic from the orchestrator's point of view: it either
// fully attempts its single operation or returns an error without partial
// dispatch. The details map carries dispatcher-specific outcome fields
// (documents_processed, job_id, status).
type Dispatcher interface {
	Action() datatypes.Action
	Execute(ctx context.Context) (details map[string]any, err error)
}

// CostRecorder receives the estimated spend in USD for one external API
// call. Production wires it to the observability cost counter; nil
// disables recording.
type CostRecorder func(usd float64)

// Payload-based spend estimates, at roughly four bytes per token.
const (
	bytesPerTokenEstimate    = 4
	embeddingPricePerKTokens = 0.0001
	fineTunePricePerKTokens  = 0.0080
)

// estimatedCostUSD approximates the spend for a call from its payload size.
func estimatedCostUSD(payloadBytes int, pricePerKTokens float64) float64 {
	tokens := float64(payloadBytes) / bytesPerTokenEstimate
	return tokens / 1000 * pricePerKTokens
}

// Registry resolves an Action to its Dispatcher.
type Registry struct {
	dispatchers map[datatypes.Action]Dispatcher
}

// NewRegistry builds a registry from the given dispatchers. Registering
// two dispatchers for the same action is a programming error.
func NewRegistry(dispatchers ...Dispatcher) (*Registry, error) {
	r := &Registry{dispatchers: make(map[datatypes.Action]Dispatcher, len(dispatchers))}
	for _, d := range dispatchers {
		if _, dup := r.dispatchers[d.Action()]; dup {
			return nil, fmt.Errorf("duplicate dispatcher for action %q", d.Action())
		}
		r.dispatchers[d.Action()] = d
	}
	return r, nil
}

// Lookup returns the dispatcher for the action, or false when no
// dispatcher is registered for it.
func (r *Registry) Lookup(action datatypes.Action) (Dispatcher, bool) {
	d, ok := r.dispatchers[action]
	return d, ok
}
