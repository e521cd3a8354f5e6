// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package actions

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/AleutianAI/AleutianDrift/services/driftwatch/datatypes"
	"github.com/AleutianAI/AleutianDrift/services/driftwatch/logstore"
)

// Training-data selection: interactions from the last 30 days rated 4 or
// higher, capped at 1000 examples.
const (
	trainingLookbackDays = 30
	trainingFeedbackMin  = 4.0
	defaultTrainingLimit = 1000
	trainingDataFileName = "training_data.jsonl"
	defaultFineTuneModel = "gpt-3.5-turbo"
)

// FineTuneClient abstracts the fine-tuning API: upload a training file,
// start a job. The production implementation is OpenAI.
type FineTuneClient interface {
	UploadTrainingFile(ctx context.Context, name string, data []byte) (fileID string, err error)
	CreateJob(ctx context.Context, fileID string) (jobID string, err error)
}

// chatMessage and trainingExample form the JSONL chat fine-tuning format.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type trainingExample struct {
	Messages []chatMessage `json:"messages"`
}

// FineTuner triggers a model fine-tuning job on recent well-rated
// interactions. Dispatched on refusal drift or accuracy drift.
//
// The trigger itself is fire-and-forget: it uploads the training set,
// starts the job, and reports the job ID. Job progress belongs to the
// fine-tuning runner, not to this pipeline.
type FineTuner struct {
	store  logstore.Store
	client FineTuneClient
	limit  int
	costs  CostRecorder
	logger *slog.Logger
	now    func() time.Time
}

var _ Dispatcher = (*FineTuner)(nil)

// NewFineTuner builds the fine-tune dispatcher. limit <= 0 selects the
// default cap of 1000 training examples.
func NewFineTuner(store logstore.Store, client FineTuneClient, limit int, costs CostRecorder, logger *slog.Logger) *FineTuner {
	if limit <= 0 {
		limit = defaultTrainingLimit
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FineTuner{store: store, client: client, limit: limit, costs: costs, logger: logger, now: time.Now}
}

func (f *FineTuner) Action() datatypes.Action {
	return datatypes.ActionFineTuneModel
}

// Execute prepares the training JSONL, uploads it, and starts the job.
func (f *FineTuner) Execute(ctx context.Context) (map[string]any, error) {
	f.logger.Info("starting model fine-tuning trigger")

	data, count, err := f.prepareTrainingData(ctx)
	if err != nil {
		return nil, fmt.Errorf("prepare training data: %w", err)
	}
	if count == 0 {
		return nil, fmt.Errorf("no qualifying training examples in the last %d days", trainingLookbackDays)
	}
	f.logger.Info("prepared training examples", "count", count)

	fileID, err := f.client.UploadTrainingFile(ctx, trainingDataFileName, data)
	if err != nil {
		return nil, fmt.Errorf("upload training file: %w", err)
	}
	f.logger.Info("uploaded training file", "file_id", fileID)

	jobID, err := f.client.CreateJob(ctx, fileID)
	if err != nil {
		return nil, fmt.Errorf("create fine-tuning job: %w", err)
	}
	f.logger.Info("fine-tuning job started", "job_id", jobID)

	if f.costs != nil {
		f.costs(estimatedCostUSD(len(data), fineTunePricePerKTokens))
	}

	return map[string]any{
		"status":  "initiated",
		"job_id":  jobID,
		"file_id": fileID,
	}, nil
}

// prepareTrainingData selects recent high-feedback interactions and renders
// them as JSONL chat examples, newest window first.
func (f *FineTuner) prepareTrainingData(ctx context.Context) ([]byte, int, error) {
	now := f.now()
	window := datatypes.TimeWindow{Start: now.AddDate(0, 0, -trainingLookbackDays), End: now}

	records, err := f.store.Interactions(ctx, window, logstore.DefaultQueryLimit)
	if err != nil {
		return nil, 0, err
	}

	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	count := 0
	for i := len(records) - 1; i >= 0 && count < f.limit; i-- {
		rec := records[i]
		if rec.UserFeedbackScore == nil || *rec.UserFeedbackScore < trainingFeedbackMin {
			continue
		}
		example := trainingExample{Messages: []chatMessage{
			{Role: "user", Content: rec.UserQuery},
			{Role: "assistant", Content: rec.ModelResponse},
		}}
		if err := encoder.Encode(example); err != nil {
			return nil, 0, err
		}
		count++
	}
	return buf.Bytes(), count, nil
}

// =============================================================================
// OpenAI-backed FineTuneClient
// =============================================================================

// OpenAIFineTuneClient triggers fine-tuning jobs via the OpenAI API.
type OpenAIFineTuneClient struct {
	client *openai.Client
	model  string
}

var _ FineTuneClient = (*OpenAIFineTuneClient)(nil)

// NewOpenAIFineTuneClient wraps an OpenAI client. An empty model selects
// gpt-3.5-turbo.
func NewOpenAIFineTuneClient(client *openai.Client, model string) *OpenAIFineTuneClient {
	if model == "" {
		model = defaultFineTuneModel
	}
	return &OpenAIFineTuneClient{client: client, model: model}
}

func (c *OpenAIFineTuneClient) UploadTrainingFile(ctx context.Context, name string, data []byte) (string, error) {
	file, err := c.client.CreateFileBytes(ctx, openai.FileBytesRequest{
		Name:    name,
		Bytes:   data,
		Purpose: openai.PurposeFineTune,
	})
	if err != nil {
		return "", fmt.Errorf("openai file upload: %w", err)
	}
	return file.ID, nil
}

func (c *OpenAIFineTuneClient) CreateJob(ctx context.Context, fileID string) (string, error) {
	job, err := c.client.CreateFineTuningJob(ctx, openai.FineTuningJobRequest{
		TrainingFile: fileID,
		Model:        c.model,
	})
	if err != nil {
		return "", fmt.Errorf("openai fine-tuning job: %w", err)
	}
	return job.ID, nil
}
