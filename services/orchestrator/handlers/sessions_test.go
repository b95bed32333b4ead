// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pitwall-ai/pitwall/services/orchestrator/datatypes"
	"github.com/pitwall-ai/pitwall/services/orchestrator/session"
)

func newSessionRouter(store session.Store) *gin.Engine {
	router := gin.New()
	sessions := router.Group("/v1/sessions")
	{
		sessions.GET("", ListSessions(store))
		sessions.GET("/:sessionId/history", GetSessionHistory(store))
		sessions.DELETE("/:sessionId", DeleteSession(store))
	}
	return router
}

func seedSession(t *testing.T, store session.Store, id string) {
	t.Helper()
	state := datatypes.NewPipelineState(id)
	state.Messages = []datatypes.Message{
		{Role: "user", Content: "How was the race?"},
		{Role: "assistant", Content: "Processional, mostly."},
	}
	require.NoError(t, store.Save(context.Background(), state))
}

func TestListSessions(t *testing.T) {
	store := session.NewMemoryStore()
	seedSession(t, store, "sess_b")
	seedSession(t, store, "sess_a")

	router := newSessionRouter(store)
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/v1/sessions", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var response struct {
		Sessions []string `json:"sessions"`
		Count    int      `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, []string{"sess_a", "sess_b"}, response.Sessions)
	assert.Equal(t, 2, response.Count)
}

func TestGetSessionHistory(t *testing.T) {
	store := session.NewMemoryStore()
	seedSession(t, store, "sess_h")

	router := newSessionRouter(store)
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/v1/sessions/sess_h/history", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var response struct {
		SessionID string               `json:"session_id"`
		Messages  []datatypes.Message  `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "sess_h", response.SessionID)
	require.Len(t, response.Messages, 2)
	assert.Equal(t, "user", response.Messages[0].Role)
}

func TestGetSessionHistory_NotFound(t *testing.T) {
	router := newSessionRouter(session.NewMemoryStore())
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/v1/sessions/missing/history", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDeleteSession(t *testing.T) {
	store := session.NewMemoryStore()
	seedSession(t, store, "sess_d")

	router := newSessionRouter(store)
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("DELETE", "/v1/sessions/sess_d", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	state, err := store.Load(context.Background(), "sess_d")
	require.NoError(t, err)
	assert.Nil(t, state)
}
