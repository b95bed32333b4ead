// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package session persists pipeline state between turns. Three backends
// exist: in-memory (tests, dev), Badger (single-node durability), and
// Weaviate (shared with the document store).
package session

import (
	"context"
	"sort"
	"sync"

	"github.com/pitwall-ai/pitwall/services/orchestrator/datatypes"
)

// Store loads and saves pipeline state keyed by session ID.
//
// Load returns (nil, nil) for an unknown session; callers create a fresh
// state in that case.
type Store interface {
	Load(ctx context.Context, sessionID string) (*datatypes.PipelineState, error)
	Save(ctx context.Context, state *datatypes.PipelineState) error
	Delete(ctx context.Context, sessionID string) error
	List(ctx context.Context) ([]string, error)
}

// MemoryStore keeps sessions in a map. State is deep-copied through JSON
// on the Badger and Weaviate backends; the memory store stores pointers
// and is for tests and single-process development only.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*datatypes.PipelineState
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*datatypes.PipelineState)}
}

func (m *MemoryStore) Load(ctx context.Context, sessionID string) (*datatypes.PipelineState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessions[sessionID], nil
}

func (m *MemoryStore) Save(ctx context.Context, state *datatypes.PipelineState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[state.SessionID] = state
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionID)
	return nil
}

func (m *MemoryStore) List(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}
