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
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"

	"github.com/pitwall-ai/pitwall/services/orchestrator/datatypes"
)

const agentSessionClass = "AgentSession"

// WeaviateStore persists sessions as AgentSession objects, one per
// session ID. Object UUIDs are derived deterministically from the
// session ID so saves are idempotent upserts.
type WeaviateStore struct {
	client *weaviate.Client
}

func NewWeaviateStore(client *weaviate.Client) *WeaviateStore {
	return &WeaviateStore{client: client}
}

func sessionUUID(sessionID string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(sessionID)).String()
}

func (w *WeaviateStore) Load(ctx context.Context, sessionID string) (*datatypes.PipelineState, error) {
	where := filters.Where().
		WithPath([]string{"session_id"}).
		WithOperator(filters.Equal).
		WithValueString(sessionID)

	fields := []graphql.Field{
		{Name: "session_id"},
		{Name: "state"},
		{Name: "updated_at"},
	}

	result, err := w.client.GraphQL().Get().
		WithClassName(agentSessionClass).
		WithFields(fields...).
		WithWhere(where).
		WithLimit(1).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("weaviate session query failed: %w", err)
	}

	parsed, err := datatypes.ParseGraphQLResponse[datatypes.AgentSessionQueryResponse](result)
	if err != nil {
		return nil, fmt.Errorf("failed to parse session query: %w", err)
	}
	if len(parsed.Get.AgentSession) == 0 {
		return nil, nil
	}

	var state datatypes.PipelineState
	if err := json.Unmarshal([]byte(parsed.Get.AgentSession[0].State), &state); err != nil {
		return nil, fmt.Errorf("corrupt session %s: %w", sessionID, err)
	}
	return &state, nil
}

func (w *WeaviateStore) Save(ctx context.Context, state *datatypes.PipelineState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to serialize session %s: %w", state.SessionID, err)
	}

	props := datatypes.AgentSessionProperties{
		SessionID: state.SessionID,
		State:     string(raw),
		UpdatedAt: time.Now().UnixMilli(),
	}
	id := sessionUUID(state.SessionID)

	// Try create first; an existing object means this is an update.
	_, err = w.client.Data().Creator().
		WithClassName(agentSessionClass).
		WithID(id).
		WithProperties(props.ToMap()).
		Do(ctx)
	if err == nil {
		return nil
	}

	updateErr := w.client.Data().Updater().
		WithClassName(agentSessionClass).
		WithID(id).
		WithProperties(props.ToMap()).
		Do(ctx)
	if updateErr != nil {
		slog.Error("Failed to upsert session", "session_id", state.SessionID,
			"create_error", err, "update_error", updateErr)
		return fmt.Errorf("failed to save session %s: %w", state.SessionID, updateErr)
	}
	return nil
}

func (w *WeaviateStore) Delete(ctx context.Context, sessionID string) error {
	err := w.client.Data().Deleter().
		WithClassName(agentSessionClass).
		WithID(sessionUUID(sessionID)).
		Do(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete session %s: %w", sessionID, err)
	}
	return nil
}

func (w *WeaviateStore) List(ctx context.Context) ([]string, error) {
	fields := []graphql.Field{{Name: "session_id"}}
	result, err := w.client.GraphQL().Get().
		WithClassName(agentSessionClass).
		WithFields(fields...).
		WithLimit(1000).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("weaviate session list failed: %w", err)
	}
	parsed, err := datatypes.ParseGraphQLResponse[datatypes.AgentSessionQueryResponse](result)
	if err != nil {
		return nil, fmt.Errorf("failed to parse session list: %w", err)
	}
	ids := make([]string, 0, len(parsed.Get.AgentSession))
	for _, s := range parsed.Get.AgentSession {
		ids = append(ids, s.SessionID)
	}
	return ids, nil
}
