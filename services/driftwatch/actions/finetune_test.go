// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package actions

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianDrift/services/driftwatch/datatypes"
	"github.com/AleutianAI/AleutianDrift/services/driftwatch/logstore"
)

// fakeFineTuneClient records the uploaded payload and returns canned IDs.
type fakeFineTuneClient struct {
	uploadedName string
	uploadedData []byte
	uploadErr    error
	jobErr       error
}

func (f *fakeFineTuneClient) UploadTrainingFile(ctx context.Context, name string, data []byte) (string, error) {
	f.uploadedName = name
	f.uploadedData = data
	if f.uploadErr != nil {
		return "", f.uploadErr
	}
	return "file-123", nil
}

func (f *fakeFineTuneClient) CreateJob(ctx context.Context, fileID string) (string, error) {
	if f.jobErr != nil {
		return "", f.jobErr
	}
	return "ftjob-456", nil
}

func newFineTuneStore(t *testing.T) *logstore.BadgerStore {
	t.Helper()
	store, err := logstore.Open(logstore.InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func score(v float64) *float64 { return &v }

func TestFineTuner_Execute(t *testing.T) {
	store := newFineTuneStore(t)
	now := time.Date(2025, 6, 20, 0, 0, 0, 0, time.UTC)

	interactions := []datatypes.InteractionRecord{
		{Timestamp: now.AddDate(0, 0, -5), UserQuery: "q1", ModelResponse: "a1", UserFeedbackScore: score(5)},
		{Timestamp: now.AddDate(0, 0, -10), UserQuery: "q2", ModelResponse: "a2", UserFeedbackScore: score(4)},
		{Timestamp: now.AddDate(0, 0, -15), UserQuery: "q3", ModelResponse: "a3", UserFeedbackScore: score(3)}, // below cutoff
		{Timestamp: now.AddDate(0, 0, -20), UserQuery: "q4", ModelResponse: "a4"},                              // unrated
		{Timestamp: now.AddDate(0, 0, -45), UserQuery: "q5", ModelResponse: "a5", UserFeedbackScore: score(5)}, // too old
	}
	for _, rec := range interactions {
		require.NoError(t, store.AppendInteraction(rec))
	}

	client := &fakeFineTuneClient{}
	tuner := NewFineTuner(store, client, 0, nil, nil)
	tuner.now = func() time.Time { return now }

	details, err := tuner.Execute(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "initiated", details["status"])
	assert.Equal(t, "ftjob-456", details["job_id"])
	assert.Equal(t, "file-123", details["file_id"])
	assert.Equal(t, "training_data.jsonl", client.uploadedName)

	// Only the two well-rated recent interactions qualify, newest first.
	examples := decodeTrainingData(t, client.uploadedData)
	require.Len(t, examples, 2)
	assert.Equal(t, "q1", examples[0].Messages[0].Content)
	assert.Equal(t, "a1", examples[0].Messages[1].Content)
	assert.Equal(t, "user", examples[0].Messages[0].Role)
	assert.Equal(t, "assistant", examples[0].Messages[1].Role)
	assert.Equal(t, "q2", examples[1].Messages[0].Content)
}

func TestFineTuner_NoQualifyingExamples(t *testing.T) {
	store := newFineTuneStore(t)
	now := time.Date(2025, 6, 20, 0, 0, 0, 0, time.UTC)

	require.NoError(t, store.AppendInteraction(datatypes.InteractionRecord{
		Timestamp: now.AddDate(0, 0, -1), UserQuery: "q", ModelResponse: "a", UserFeedbackScore: score(2),
	}))

	tuner := NewFineTuner(store, &fakeFineTuneClient{}, 0, nil, nil)
	tuner.now = func() time.Time { return now }

	_, err := tuner.Execute(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no qualifying training examples")
}

func TestFineTuner_LimitCapsExamples(t *testing.T) {
	store := newFineTuneStore(t)
	now := time.Date(2025, 6, 20, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		require.NoError(t, store.AppendInteraction(datatypes.InteractionRecord{
			Timestamp:         now.Add(-time.Duration(i+1) * time.Hour),
			UserQuery:         "q",
			ModelResponse:     "a",
			UserFeedbackScore: score(5),
		}))
	}

	client := &fakeFineTuneClient{}
	tuner := NewFineTuner(store, client, 3, nil, nil)
	tuner.now = func() time.Time { return now }

	_, err := tuner.Execute(context.Background())
	require.NoError(t, err)
	assert.Len(t, decodeTrainingData(t, client.uploadedData), 3)
}

func TestFineTuner_UploadFailure(t *testing.T) {
	store := newFineTuneStore(t)
	now := time.Date(2025, 6, 20, 0, 0, 0, 0, time.UTC)

	require.NoError(t, store.AppendInteraction(datatypes.InteractionRecord{
		Timestamp: now.Add(-time.Hour), UserQuery: "q", ModelResponse: "a", UserFeedbackScore: score(5),
	}))

	spent := 0.0
	record := func(usd float64) { spent += usd }
	tuner := NewFineTuner(store, &fakeFineTuneClient{uploadErr: errors.New("quota exceeded")}, 0, record, nil)
	tuner.now = func() time.Time { return now }

	_, err := tuner.Execute(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upload training file")
	assert.Equal(t, 0.0, spent, "a failed upload must not be billed")
}

func TestFineTuner_RecordsEstimatedCost(t *testing.T) {
	store := newFineTuneStore(t)
	now := time.Date(2025, 6, 20, 0, 0, 0, 0, time.UTC)

	require.NoError(t, store.AppendInteraction(datatypes.InteractionRecord{
		Timestamp: now.Add(-time.Hour), UserQuery: "q", ModelResponse: "a", UserFeedbackScore: score(5),
	}))

	spent := 0.0
	client := &fakeFineTuneClient{}
	tuner := NewFineTuner(store, client, 0, func(usd float64) { spent += usd }, nil)
	tuner.now = func() time.Time { return now }

	_, err := tuner.Execute(context.Background())
	require.NoError(t, err)
	assert.Greater(t, spent, 0.0)
}

func TestFineTuner_ActionName(t *testing.T) {
	tuner := NewFineTuner(nil, nil, 0, nil, nil)
	assert.Equal(t, datatypes.ActionFineTuneModel, tuner.Action())
}

// decodeTrainingData parses the uploaded JSONL back into examples.
func decodeTrainingData(t *testing.T, data []byte) []trainingExample {
	t.Helper()
	var examples []trainingExample
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var ex trainingExample
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &ex))
		examples = append(examples, ex)
	}
	require.NoError(t, scanner.Err())
	return examples
}
