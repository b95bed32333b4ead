// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package tools

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pitwall-ai/pitwall/services/orchestrator/agent"
)

// --- Mock HTTP Client ---

type MockHTTPClient struct {
	DoFunc   func(req *http.Request) (*http.Response, error)
	Requests []*http.Request
}

func (m *MockHTTPClient) Do(req *http.Request) (*http.Response, error) {
	m.Requests = append(m.Requests, req)
	if m.DoFunc != nil {
		return m.DoFunc(req)
	}
	return jsonResponse(http.StatusOK, `{}`), nil
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Status:     http.StatusText(status),
		Body:       io.NopCloser(bytes.NewBufferString(body)),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
	}
}

func TestGetDriverInfo(t *testing.T) {
	mock := &MockHTTPClient{
		DoFunc: func(req *http.Request) (*http.Response, error) {
			return jsonResponse(http.StatusOK,
				`{"driver": "VER", "team": "Red Bull Racing", "championships": 4}`), nil
		},
	}
	g := NewGraphTools("http://graph:8090", mock)

	result, err := g.getDriverInfo(context.Background(), map[string]any{"driver": "ver"})
	require.NoError(t, err)

	payload, ok := result.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Red Bull Racing", payload["team"])

	require.Len(t, mock.Requests, 1)
	assert.Equal(t, "http://graph:8090/v1/drivers/VER", mock.Requests[0].URL.String())
	assert.Equal(t, "application/json", mock.Requests[0].Header.Get("Accept"))
}

func TestGetRaceInfo(t *testing.T) {
	mock := &MockHTTPClient{
		DoFunc: func(req *http.Request) (*http.Response, error) {
			return jsonResponse(http.StatusOK, `{"race": "Monza", "laps": 53}`), nil
		},
	}
	g := NewGraphTools("http://graph:8090", mock)

	_, err := g.getRaceInfo(context.Background(), map[string]any{
		"race": "Monza",
		"year": float64(2024),
	})
	require.NoError(t, err)

	require.Len(t, mock.Requests, 1)
	url := mock.Requests[0].URL
	assert.Equal(t, "/v1/races", url.Path)
	assert.Equal(t, "Monza", url.Query().Get("name"))
	assert.Equal(t, "2024", url.Query().Get("year"))

	_, err = g.getRaceInfo(context.Background(), map[string]any{})
	assert.Error(t, err, "race is required")
}

func TestFindSimilarSituations(t *testing.T) {
	mock := &MockHTTPClient{
		DoFunc: func(req *http.Request) (*http.Response, error) {
			return jsonResponse(http.StatusOK, `{"matches": []}`), nil
		},
	}
	g := NewGraphTools("http://graph:8090", mock)

	_, err := g.findSimilarSituations(context.Background(), map[string]any{
		"description": "late safety car with a pit window open",
	})
	require.NoError(t, err)

	url := mock.Requests[0].URL
	assert.Equal(t, "/v1/situations/similar", url.Path)
	assert.Equal(t, "late safety car with a pit window open", url.Query().Get("q"))
	assert.Equal(t, "5", url.Query().Get("limit"), "limit defaults to 5")
}

func TestGraphToolsErrorStatuses(t *testing.T) {
	notFound := &MockHTTPClient{
		DoFunc: func(req *http.Request) (*http.Response, error) {
			return jsonResponse(http.StatusNotFound, `{"error": "unknown driver"}`), nil
		},
	}
	g := NewGraphTools("http://graph:8090", notFound)
	_, err := g.getDriverInfo(context.Background(), map[string]any{"driver": "XXX"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no entry")

	failing := &MockHTTPClient{
		DoFunc: func(req *http.Request) (*http.Response, error) {
			return jsonResponse(http.StatusInternalServerError, `backend exploded`), nil
		},
	}
	g = NewGraphTools("http://graph:8090", failing)
	_, err = g.getDriverInfo(context.Background(), map[string]any{"driver": "VER"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backend exploded")
}

func TestGraphRegister(t *testing.T) {
	r := agent.NewRegistry()
	g := NewGraphTools("http://graph:8090", &MockHTTPClient{})
	require.NoError(t, g.Register(r))

	for _, name := range []string{"get_driver_info", "get_race_info", "find_similar_situations"} {
		_, ok := r.Lookup(name)
		assert.True(t, ok, "tool %q must be registered", name)
	}
}
