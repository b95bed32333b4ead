// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pitwall-ai/pitwall/services/llm"
	"github.com/pitwall-ai/pitwall/services/orchestrator/agent"
	"github.com/pitwall-ai/pitwall/services/orchestrator/datatypes"
	"github.com/pitwall-ai/pitwall/services/orchestrator/session"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type silentGenerator struct{}

func (silentGenerator) Chat(ctx context.Context, messages []datatypes.Message,
	tier llm.Tier, params llm.GenerationParams) (string, error) {
	return "", llm.ErrAllProvidersExhausted
}
func (silentGenerator) LastProvider() string { return "" }
func (silentGenerator) Providers() []string  { return []string{"primary"} }

func TestSetupRoutes(t *testing.T) {
	store := session.NewMemoryStore()
	pipeline, err := agent.NewPipeline(agent.Params{
		Generator: silentGenerator{},
		Registry:  agent.NewRegistry(),
		Sessions:  store,
	})
	require.NoError(t, err)

	router := gin.New()
	SetupRoutes(router, pipeline, store, "")

	cases := []struct {
		method string
		path   string
		want   int
	}{
		{"GET", "/health", http.StatusOK},
		{"GET", "/metrics", http.StatusOK},
		{"GET", "/v1/sessions", http.StatusOK},
		{"GET", "/v1/sessions/none/history", http.StatusNotFound},
		{"GET", "/v1/unknown", http.StatusNotFound},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest(tc.method, tc.path, nil)
		router.ServeHTTP(w, req)
		assert.Equal(t, tc.want, w.Code, "%s %s", tc.method, tc.path)
	}
}

func TestSetupRoutes_TokenGuardsV1Only(t *testing.T) {
	store := session.NewMemoryStore()
	pipeline, err := agent.NewPipeline(agent.Params{
		Generator: silentGenerator{},
		Registry:  agent.NewRegistry(),
		Sessions:  store,
	})
	require.NoError(t, err)

	router := gin.New()
	SetupRoutes(router, pipeline, store, "sekrit")

	// Health stays open.
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/health", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	// The API rejects missing tokens.
	w = httptest.NewRecorder()
	req, _ = http.NewRequest("GET", "/v1/sessions", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// And accepts the configured one.
	w = httptest.NewRecorder()
	req, _ = http.NewRequest("GET", "/v1/sessions", nil)
	req.Header.Set("Authorization", "Bearer sekrit")
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}
