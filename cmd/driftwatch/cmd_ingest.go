// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianDrift/services/driftwatch/config"
	"github.com/AleutianAI/AleutianDrift/services/driftwatch/datatypes"
	"github.com/AleutianAI/AleutianDrift/services/driftwatch/logstore"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var ingestStream string // Which telemetry stream the file belongs to

// =============================================================================
// COMMAND DEFINITION
// =============================================================================

// ingestCmd loads production telemetry from JSONL files into the log store.
//
// # Examples
//
//	driftwatch ingest --stream interactions logs/interactions.jsonl
//	driftwatch ingest --stream embeddings logs/query_embeddings.jsonl
var ingestCmd = &cobra.Command{
	Use:   "ingest [files...]",
	Short: "Load telemetry records from JSONL files into the log store",
	Long: `Reads one record per line from the given JSONL files and appends
them to the configured log store.

The --stream flag selects the record shape:
  interactions   request/response pairs with behavior flags
  evaluations    evaluation harness results
  tasks          task success/failure outcomes
  embeddings     embedding vectors with a type tag

Malformed lines abort the ingest so a bad export is caught immediately.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngestCommand,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestStream, "stream", "interactions",
		"Telemetry stream: interactions, evaluations, tasks, or embeddings")
	rootCmd.AddCommand(ingestCmd)
}

// =============================================================================
// COMMAND IMPLEMENTATION
// =============================================================================

func runIngestCommand(cmd *cobra.Command, args []string) error {
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

	total := 0
	for _, path := range args {
		count, err := ingestFile(store, path)
		if err != nil {
			return fmt.Errorf("ingest %s: %w", path, err)
		}
		logger.Info("ingested file", "path", path, "stream", ingestStream, "records", count)
		total += count
	}

	fmt.Printf("Ingested %d records into stream %q\n", total, ingestStream)
	return nil
}

// ingestFile appends each JSONL line of the file to the selected stream.
func ingestFile(store *logstore.BadgerStore, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1024*1024), 16*1024*1024)

	count := 0
	line := 0
	for scanner.Scan() {
		line++
		data := scanner.Bytes()
		if len(data) == 0 {
			continue
		}
		if err := appendRecord(store, data); err != nil {
			return count, fmt.Errorf("line %d: %w", line, err)
		}
		count++
	}
	if err := scanner.Err(); err != nil {
		return count, err
	}
	return count, nil
}

func appendRecord(store *logstore.BadgerStore, data []byte) error {
	switch ingestStream {
	case "interactions":
		var rec datatypes.InteractionRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return err
		}
		return store.AppendInteraction(rec)
	case "evaluations":
		var rec datatypes.EvaluationRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return err
		}
		return store.AppendEvaluation(rec)
	case "tasks":
		var rec datatypes.TaskRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return err
		}
		return store.AppendTask(rec)
	case "embeddings":
		var rec datatypes.EmbeddingRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return err
		}
		return store.AppendEmbedding(rec)
	default:
		return fmt.Errorf("unknown stream %q", ingestStream)
	}
}
