// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pitwall-ai/pitwall/services/orchestrator/datatypes"
)

func nopTool(name string, params ...ParamSpec) Tool {
	return Tool{
		Name:        name,
		Description: "test tool",
		Params:      params,
		Run: func(ctx context.Context, p map[string]any) (any, error) {
			return nil, nil
		},
	}
}

func TestRegistryRegister(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(nopTool("get_lap_times")))

	err := r.Register(nopTool("get_lap_times"))
	assert.Error(t, err, "duplicate registration must fail")

	assert.Error(t, r.Register(Tool{Name: "", Run: nil}))
	assert.Error(t, r.Register(Tool{Name: "no_run"}))

	_, ok := r.Lookup("get_lap_times")
	assert.True(t, ok)
	_, ok = r.Lookup("missing")
	assert.False(t, ok)
	assert.Equal(t, []string{"get_lap_times"}, r.Names())
}

func TestRegistryCatalog(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(nopTool("get_lap_times",
		ParamSpec{Name: "driver", Type: "string", Required: true, Description: "three-letter code"},
		ParamSpec{Name: "year", Type: "int", Description: "season"},
	)))

	catalog := r.Catalog()
	assert.Contains(t, catalog, "get_lap_times")
	assert.Contains(t, catalog, "driver (string, required)")
	assert.Contains(t, catalog, "year (int, optional)")
}

func TestRegistryValidateCall(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(nopTool("get_lap_times",
		ParamSpec{Name: "driver", Type: "string", Required: true},
		ParamSpec{Name: "year", Type: "int"},
		ParamSpec{Name: "drivers", Type: "[]string"},
	)))

	valid := datatypes.ToolCall{ID: "a", Tool: "get_lap_times",
		Params: map[string]any{"driver": "VER", "year": float64(2024)}}
	assert.NoError(t, r.ValidateCall(valid))

	unknownTool := datatypes.ToolCall{ID: "b", Tool: "hallucinated"}
	assert.Error(t, r.ValidateCall(unknownTool))

	missingRequired := datatypes.ToolCall{ID: "c", Tool: "get_lap_times",
		Params: map[string]any{"year": float64(2024)}}
	assert.Error(t, r.ValidateCall(missingRequired))

	wrongType := datatypes.ToolCall{ID: "d", Tool: "get_lap_times",
		Params: map[string]any{"driver": 44}}
	assert.Error(t, r.ValidateCall(wrongType))

	fractionalInt := datatypes.ToolCall{ID: "e", Tool: "get_lap_times",
		Params: map[string]any{"driver": "VER", "year": 2024.5}}
	assert.Error(t, r.ValidateCall(fractionalInt))

	jsonStringList := datatypes.ToolCall{ID: "f", Tool: "get_lap_times",
		Params: map[string]any{"driver": "VER", "drivers": []any{"VER", "HAM"}}}
	assert.NoError(t, r.ValidateCall(jsonStringList))

	// Params the tool does not declare are tolerated.
	extra := datatypes.ToolCall{ID: "g", Tool: "get_lap_times",
		Params: map[string]any{"driver": "VER", "session": "race"}}
	assert.NoError(t, r.ValidateCall(extra))
}

func TestRegistryValidatePlan(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(nopTool("get_lap_times",
		ParamSpec{Name: "driver", Type: "string", Required: true})))

	plan := &datatypes.ExecutionPlan{Calls: []datatypes.ToolCall{
		{ID: "good", Tool: "get_lap_times", Params: map[string]any{"driver": "VER"}},
		{ID: "bad", Tool: "get_lap_times", Params: map[string]any{}},
		{ID: "worse", Tool: "nope"},
	}}
	defects := r.ValidatePlan(plan)
	assert.Len(t, defects, 2)
}
