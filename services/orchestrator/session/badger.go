// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/pitwall-ai/pitwall/services/orchestrator/datatypes"
)

const badgerKeyPrefix = "session/"

// BadgerConfig holds configuration for the embedded session store.
type BadgerConfig struct {
	// Path is the directory for Badger data files. Ignored when
	// InMemory is true.
	Path string

	// InMemory runs Badger without disk persistence. Tests only.
	InMemory bool

	// SyncWrites fsyncs every write. Slower, survives power loss.
	SyncWrites bool

	// GCInterval is how often value-log garbage collection runs.
	GCInterval time.Duration

	// GCDiscardRatio is the fraction of a value-log file that must be
	// garbage before it is rewritten.
	GCDiscardRatio float64
}

// DefaultBadgerConfig returns sensible defaults for the given path.
func DefaultBadgerConfig(path string) BadgerConfig {
	return BadgerConfig{
		Path:           path,
		SyncWrites:     true,
		GCInterval:     5 * time.Minute,
		GCDiscardRatio: 0.5,
	}
}

// BadgerStore persists sessions in an embedded Badger database.
type BadgerStore struct {
	db     *badger.DB
	stopGC chan struct{}
}

func NewBadgerStore(cfg BadgerConfig) (*BadgerStore, error) {
	opts := badger.DefaultOptions(cfg.Path).
		WithInMemory(cfg.InMemory).
		WithSyncWrites(cfg.SyncWrites).
		WithLogger(nil)
	if cfg.InMemory {
		opts = opts.WithDir("").WithValueDir("")
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger at %s: %w", cfg.Path, err)
	}

	store := &BadgerStore{db: db, stopGC: make(chan struct{})}
	if cfg.GCInterval > 0 {
		go store.runGC(cfg.GCInterval, cfg.GCDiscardRatio)
	}
	return store, nil
}

func (b *BadgerStore) runGC(interval time.Duration, discardRatio float64) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-b.stopGC:
			return
		case <-ticker.C:
			// ErrNoRewrite just means there was nothing to collect.
			if err := b.db.RunValueLogGC(discardRatio); err != nil &&
				!errors.Is(err, badger.ErrNoRewrite) {
				slog.Warn("Badger value log GC failed", "error", err)
			}
		}
	}
}

// Close stops GC and closes the database.
func (b *BadgerStore) Close() error {
	close(b.stopGC)
	return b.db.Close()
}

func badgerKey(sessionID string) []byte {
	return []byte(badgerKeyPrefix + sessionID)
}

func (b *BadgerStore) Load(ctx context.Context, sessionID string) (*datatypes.PipelineState, error) {
	var state *datatypes.PipelineState
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(badgerKey(sessionID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			var decoded datatypes.PipelineState
			if err := json.Unmarshal(val, &decoded); err != nil {
				return fmt.Errorf("corrupt session %s: %w", sessionID, err)
			}
			state = &decoded
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return state, nil
}

func (b *BadgerStore) Save(ctx context.Context, state *datatypes.PipelineState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to serialize session %s: %w", state.SessionID, err)
	}
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(badgerKey(state.SessionID), raw)
	})
}

func (b *BadgerStore) Delete(ctx context.Context, sessionID string) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(badgerKey(sessionID))
	})
}

func (b *BadgerStore) List(ctx context.Context) ([]string, error) {
	var ids []string
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		prefix := []byte(badgerKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			ids = append(ids, string(it.Item().Key()[len(prefix):]))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}
