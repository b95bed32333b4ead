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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pitwall-ai/pitwall/services/orchestrator/datatypes"
)

func exerciseStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	loaded, err := store.Load(ctx, "missing")
	require.NoError(t, err)
	require.Nil(t, loaded, "unknown session must load as nil, nil")

	state := datatypes.NewPipelineState("sess_1")
	state.BeginTurn("who was faster in Monza?")
	state.Iteration = 1
	state.Feedback = "need HAM laps too"
	require.NoError(t, store.Save(ctx, state))

	loaded, err = store.Load(ctx, "sess_1")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	require.Equal(t, "sess_1", loaded.SessionID)
	require.Equal(t, 1, loaded.Iteration)
	require.Equal(t, "need HAM laps too", loaded.Feedback)
	require.Equal(t, "who was faster in Monza?", loaded.LastUserMessage())

	// Overwrite with a later turn.
	state.BeginTurn("and the stints?")
	require.NoError(t, store.Save(ctx, state))
	loaded, err = store.Load(ctx, "sess_1")
	require.NoError(t, err)
	require.Equal(t, "and the stints?", loaded.LastUserMessage())

	other := datatypes.NewPipelineState("sess_2")
	require.NoError(t, store.Save(ctx, other))
	ids, err := store.List(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"sess_1", "sess_2"}, ids)

	require.NoError(t, store.Delete(ctx, "sess_1"))
	loaded, err = store.Load(ctx, "sess_1")
	require.NoError(t, err)
	require.Nil(t, loaded)
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestBadgerStore(t *testing.T) {
	cfg := DefaultBadgerConfig("")
	cfg.InMemory = true
	cfg.SyncWrites = false
	cfg.GCInterval = 0
	store, err := NewBadgerStore(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	exerciseStore(t, store)
}

func TestBadgerStoreOnDisk(t *testing.T) {
	cfg := DefaultBadgerConfig(t.TempDir())
	cfg.SyncWrites = false
	cfg.GCInterval = 0
	store, err := NewBadgerStore(cfg)
	require.NoError(t, err)

	state := datatypes.NewPipelineState("durable")
	state.BeginTurn("hello")
	require.NoError(t, store.Save(context.Background(), state))
	require.NoError(t, store.Close())

	// Reopen and verify the session survived.
	store, err = NewBadgerStore(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	loaded, err := store.Load(context.Background(), "durable")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	require.Equal(t, "hello", loaded.LastUserMessage())
}
