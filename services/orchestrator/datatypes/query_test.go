// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

import "testing"

func TestNormalizeQueryType(t *testing.T) {
	cases := []struct {
		raw  string
		want QueryType
	}{
		{"comparison", QueryComparison},
		{" Strategy ", QueryStrategy},
		{"PACE", QueryPace},
		{"what_if", QueryWhatIf},
		{"telemetry", QueryTelemetry},
		{"", QueryGeneral},
		{"vibes", QueryGeneral},
	}
	for _, tc := range cases {
		if got := NormalizeQueryType(tc.raw); got != tc.want {
			t.Errorf("NormalizeQueryType(%q) = %q, want %q", tc.raw, got, tc.want)
		}
	}
}

func TestQueryUnderstandingNormalize(t *testing.T) {
	q := QueryUnderstanding{QueryType: "Comparison", Confidence: 1.7}
	q.Normalize()
	if q.QueryType != QueryComparison {
		t.Errorf("expected comparison, got %q", q.QueryType)
	}
	if q.Scope != ScopeFullRace {
		t.Errorf("expected default scope full_race, got %q", q.Scope)
	}
	if q.Confidence != 1 {
		t.Errorf("expected confidence clamped to 1, got %f", q.Confidence)
	}
}

func TestExecutionPlanValidate(t *testing.T) {
	plan := ExecutionPlan{
		Calls: []ToolCall{
			{ID: "laps_VER", Tool: "get_lap_times"},
			{ID: "laps_HAM", Tool: "get_lap_times"},
			{ID: "compare", Tool: "compare_drivers", DependsOn: []string{"laps_VER", "laps_HAM"}},
		},
		ParallelGroups: [][]string{{"laps_VER", "laps_HAM"}},
	}
	if err := plan.Validate(); err != nil {
		t.Fatalf("valid plan rejected: %v", err)
	}

	empty := ExecutionPlan{}
	if err := empty.Validate(); err == nil {
		t.Error("expected error for empty plan")
	}

	dupe := ExecutionPlan{Calls: []ToolCall{
		{ID: "a", Tool: "x"},
		{ID: "a", Tool: "y"},
	}}
	if err := dupe.Validate(); err == nil {
		t.Error("expected error for duplicate call id")
	}

	dangling := ExecutionPlan{Calls: []ToolCall{
		{ID: "a", Tool: "x", DependsOn: []string{"ghost"}},
	}}
	if err := dangling.Validate(); err == nil {
		t.Error("expected error for unresolved dependency")
	}

	// Unknown IDs inside groups are tolerated at validation time.
	looseGroup := ExecutionPlan{
		Calls:          []ToolCall{{ID: "a", Tool: "x"}},
		ParallelGroups: [][]string{{"a", "ghost"}},
	}
	if err := looseGroup.Validate(); err != nil {
		t.Errorf("group with unknown id should validate, got: %v", err)
	}
}

func TestExecutionPlanGroupedIDs(t *testing.T) {
	plan := ExecutionPlan{
		Calls: []ToolCall{
			{ID: "a", Tool: "x"},
			{ID: "b", Tool: "x"},
			{ID: "c", Tool: "x"},
		},
		ParallelGroups: [][]string{{"a"}, {"b"}},
	}
	grouped := plan.GroupedIDs()
	if !grouped["a"] || !grouped["b"] {
		t.Error("expected a and b to be grouped")
	}
	if grouped["c"] {
		t.Error("c is not in any group")
	}
}

func TestPipelineStateBeginTurn(t *testing.T) {
	state := NewPipelineState("sess_1")
	state.BeginTurn("how did VER compare to HAM?")
	state.Iteration = 2
	state.Feedback = "need more laps"
	state.Plan = &ExecutionPlan{Calls: []ToolCall{{ID: "a", Tool: "x"}}}
	state.Messages = append(state.Messages, Message{Role: "assistant", Content: "answer one"})

	state.BeginTurn("and what about the stints?")
	if state.Iteration != 0 {
		t.Errorf("iteration should reset per turn, got %d", state.Iteration)
	}
	if state.Feedback != "" || state.Plan != nil {
		t.Error("per-turn fields should be cleared")
	}
	if len(state.Messages) != 3 {
		t.Errorf("transcript should survive across turns, got %d messages", len(state.Messages))
	}
	if got := state.LastUserMessage(); got != "and what about the stints?" {
		t.Errorf("unexpected last user message: %q", got)
	}
}
