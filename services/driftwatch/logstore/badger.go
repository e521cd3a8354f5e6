// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package logstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/AleutianAI/AleutianDrift/services/driftwatch/datatypes"
)

// Key layout. Timestamps are zero-padded UnixNano so lexicographic key
// order is chronological order and range scans stay cheap:
//
//	log:interaction:<0-padded-unixnano>:<uuid> -> InteractionRecord JSON
//	log:evaluation:<...>                       -> EvaluationRecord JSON
//	log:task:<...>                             -> TaskRecord JSON
//	log:embedding:<...>                        -> EmbeddingRecord JSON
//	stream:<name>                              -> existence marker
//	report:<run_id>                            -> RunReport JSON
//	config:<key>                               -> service config values
const (
	prefixInteraction = "log:interaction:"
	prefixEvaluation  = "log:evaluation:"
	prefixTask        = "log:task:"
	prefixEmbedding   = "log:embedding:"
	prefixReport      = "report:"
	prefixStream      = "stream:"
	prefixConfig      = "config:"
)

// Config holds configuration for the Badger-backed store.
type Config struct {
	// Path is the directory for the database files. Ignored when InMemory
	// is true.
	Path string

	// InMemory enables in-memory mode. Used by tests.
	InMemory bool

	// SyncWrites enables synchronous writes for durability.
	SyncWrites bool

	// Logger receives store-level log events. Badger's own chatter is
	// disabled.
	Logger *slog.Logger
}

// DefaultConfig returns production defaults: on-disk, synchronous writes.
func DefaultConfig(path string) Config {
	return Config{Path: path, SyncWrites: true}
}

// InMemoryConfig returns a configuration for tests: no disk I/O.
func InMemoryConfig() Config {
	return Config{InMemory: true}
}

// BadgerStore is the embedded-KV implementation of Store. It also persists
// run reports and the mutable safety-filter configuration, which live in
// separate key spaces of the same database.
type BadgerStore struct {
	db     *badger.DB
	logger *slog.Logger
}

var _ Store = (*BadgerStore)(nil)

// Open opens (or creates) the store at the configured path.
func Open(cfg Config) (*BadgerStore, error) {
	opts := badger.DefaultOptions(cfg.Path).
		WithInMemory(cfg.InMemory).
		WithSyncWrites(cfg.SyncWrites).
		WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger store: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &BadgerStore{db: db, logger: logger}, nil
}

// Close releases the underlying database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

// =============================================================================
// Store interface (reads)
// =============================================================================

func (s *BadgerStore) Interactions(ctx context.Context, w datatypes.TimeWindow, limit int) ([]datatypes.InteractionRecord, error) {
	var out []datatypes.InteractionRecord
	err := s.scan(ctx, prefixInteraction, w, limit, func(val []byte) error {
		var rec datatypes.InteractionRecord
		if err := json.Unmarshal(val, &rec); err != nil {
			return err
		}
		out = append(out, rec)
		return nil
	})
	return out, err
}

func (s *BadgerStore) Evaluations(ctx context.Context, w datatypes.TimeWindow, limit int) ([]datatypes.EvaluationRecord, error) {
	var out []datatypes.EvaluationRecord
	err := s.scan(ctx, prefixEvaluation, w, limit, func(val []byte) error {
		var rec datatypes.EvaluationRecord
		if err := json.Unmarshal(val, &rec); err != nil {
			return err
		}
		out = append(out, rec)
		return nil
	})
	return out, err
}

func (s *BadgerStore) Tasks(ctx context.Context, w datatypes.TimeWindow, limit int) ([]datatypes.TaskRecord, error) {
	exists, err := s.streamExists("task")
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrStreamMissing
	}
	var out []datatypes.TaskRecord
	err = s.scan(ctx, prefixTask, w, limit, func(val []byte) error {
		var rec datatypes.TaskRecord
		if err := json.Unmarshal(val, &rec); err != nil {
			return err
		}
		out = append(out, rec)
		return nil
	})
	return out, err
}

func (s *BadgerStore) Embeddings(ctx context.Context, w datatypes.TimeWindow, typ datatypes.EmbeddingType, limit int) ([]datatypes.EmbeddingRecord, error) {
	var out []datatypes.EmbeddingRecord
	err := s.scan(ctx, prefixEmbedding, w, limit, func(val []byte) error {
		var rec datatypes.EmbeddingRecord
		if err := json.Unmarshal(val, &rec); err != nil {
			return err
		}
		if typ != datatypes.EmbeddingTypeAll && rec.Type != typ {
			return nil
		}
		out = append(out, rec)
		return nil
	})
	return out, err
}

// scan iterates one stream's keys inside [w.Start, w.End), decoding at most
// limit values. Keys sort chronologically, so iteration seeks to the window
// start and stops at the first key past the window end.
func (s *BadgerStore) scan(ctx context.Context, prefix string, w datatypes.TimeWindow, limit int, decode func([]byte) error) error {
	if limit <= 0 {
		limit = DefaultQueryLimit
	}
	startKey := []byte(prefix + timestampKey(w.Start))
	endKey := prefix + timestampKey(w.End)

	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		count := 0
		for it.Seek(startKey); it.Valid() && count < limit; it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			key := string(it.Item().Key())
			if key >= endKey {
				break
			}
			if err := it.Item().Value(decode); err != nil {
				return fmt.Errorf("decode %s: %w", key, err)
			}
			count++
		}
		return nil
	})
}

func (s *BadgerStore) streamExists(name string) (bool, error) {
	exists := false
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(prefixStream + name))
		if err == nil {
			exists = true
			return nil
		}
		if err == badger.ErrKeyNotFound {
			return nil
		}
		return err
	})
	return exists, err
}

// =============================================================================
// Writes (ingest path, report archive, config bucket)
// =============================================================================

// AppendInteraction stores one interaction record.
func (s *BadgerStore) AppendInteraction(rec datatypes.InteractionRecord) error {
	return s.append(prefixInteraction, "interaction", rec.Timestamp, rec)
}

// AppendEvaluation stores one evaluation record.
func (s *BadgerStore) AppendEvaluation(rec datatypes.EvaluationRecord) error {
	return s.append(prefixEvaluation, "evaluation", rec.Timestamp, rec)
}

// AppendTask stores one task record and marks the task stream as existing.
func (s *BadgerStore) AppendTask(rec datatypes.TaskRecord) error {
	return s.append(prefixTask, "task", rec.Timestamp, rec)
}

// AppendEmbedding stores one embedding record.
func (s *BadgerStore) AppendEmbedding(rec datatypes.EmbeddingRecord) error {
	return s.append(prefixEmbedding, "embedding", rec.Timestamp, rec)
}

func (s *BadgerStore) append(prefix, stream string, ts time.Time, rec any) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal %s record: %w", stream, err)
	}
	key := fmt.Sprintf("%s%s:%s", prefix, timestampKey(ts), uuid.NewString())
	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(key), payload); err != nil {
			return err
		}
		return txn.Set([]byte(prefixStream+stream), []byte{1})
	})
}

// SaveRunReport archives a finalized run report. Reports are write-once:
// saving an existing run ID is rejected.
func (s *BadgerStore) SaveRunReport(report *datatypes.RunReport) error {
	payload, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal run report: %w", err)
	}
	key := []byte(prefixReport + report.RunID)
	return s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key); err == nil {
			return fmt.Errorf("run report %s already exists", report.RunID)
		} else if err != badger.ErrKeyNotFound {
			return err
		}
		return txn.Set(key, payload)
	})
}

// LatestRunReport returns the most recently archived run report, or nil
// when no run has completed yet.
func (s *BadgerStore) LatestRunReport() (*datatypes.RunReport, error) {
	var latest *datatypes.RunReport
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefixReport)
		it := txn.NewIterator(opts)
		defer it.Close()

		var lastKey string
		for it.Seek([]byte(prefixReport)); it.Valid(); it.Next() {
			key := string(it.Item().Key())
			if key > lastKey {
				lastKey = key
				if err := it.Item().Value(func(val []byte) error {
					var report datatypes.RunReport
					if err := json.Unmarshal(val, &report); err != nil {
						return err
					}
					latest = &report
					return nil
				}); err != nil {
					return err
				}
			}
		}
		return nil
	})
	return latest, err
}

// GetConfigValue reads one value from the config bucket. Returns "" when
// the key has never been set.
func (s *BadgerStore) GetConfigValue(key string) (string, error) {
	var value string
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(prefixConfig + key))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			value = string(val)
			return nil
		})
	})
	return value, err
}

// SetConfigValue writes one value into the config bucket.
func (s *BadgerStore) SetConfigValue(key, value string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(prefixConfig+key), []byte(value))
	})
}

// timestampKey renders ts as a fixed-width sortable key segment.
func timestampKey(ts time.Time) string {
	return fmt.Sprintf("%020d", ts.UnixNano())
}
