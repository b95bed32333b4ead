// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes provides data structures shared by the agent pipeline,
// the LLM routing layer, and the HTTP handlers.
//
// This file contains the structured interpretation of a user question
// (QueryUnderstanding) and the data-retrieval plan derived from it
// (ExecutionPlan / ToolCall).
package datatypes

import (
	"fmt"
	"strings"
)

// =============================================================================
// Query Classification
// =============================================================================

// QueryType classifies what kind of analysis the user is asking for.
type QueryType string

const (
	QueryComparison QueryType = "comparison"
	QueryStrategy   QueryType = "strategy"
	QueryPace       QueryType = "pace"
	QueryTelemetry  QueryType = "telemetry"
	QueryIncident   QueryType = "incident"
	QueryPrediction QueryType = "prediction"
	QueryHistorical QueryType = "historical"
	QueryWhatIf     QueryType = "what_if"
	QueryGeneral    QueryType = "general"
)

// KnownQueryTypes lists every recognized classification. Anything outside
// this set is normalized to QueryGeneral.
var KnownQueryTypes = []QueryType{
	QueryComparison, QueryStrategy, QueryPace, QueryTelemetry,
	QueryIncident, QueryPrediction, QueryHistorical, QueryWhatIf,
	QueryGeneral,
}

// NormalizeQueryType maps a raw model-emitted string onto a known QueryType.
func NormalizeQueryType(raw string) QueryType {
	candidate := QueryType(strings.ToLower(strings.TrimSpace(raw)))
	for _, qt := range KnownQueryTypes {
		if candidate == qt {
			return qt
		}
	}
	return QueryGeneral
}

// Scope narrows the portion of a race weekend an analysis should cover.
type Scope string

const (
	ScopeFullRace  Scope = "full_race"
	ScopeSingleLap Scope = "single_lap"
	ScopeStint     Scope = "stint"
	ScopeSector    Scope = "sector"
	ScopeSeason    Scope = "season"
)

// QueryUnderstanding is the structured interpretation of a natural-language
// question, produced by the understanding stage.
type QueryUnderstanding struct {
	QueryType  QueryType `json:"query_type"`
	Drivers    []string  `json:"drivers"`
	Race       string    `json:"race"`
	Year       int       `json:"year"`
	Scope      Scope     `json:"scope"`
	Metrics    []string  `json:"metrics"`
	Confidence float64   `json:"confidence"`
	// Clarified is the question restated unambiguously, used to seed
	// planning and context retrieval.
	Clarified string `json:"clarified_query"`
}

// Normalize clamps model-emitted fields into their legal ranges.
func (q *QueryUnderstanding) Normalize() {
	q.QueryType = NormalizeQueryType(string(q.QueryType))
	if q.Scope == "" {
		q.Scope = ScopeFullRace
	}
	if q.Confidence < 0 {
		q.Confidence = 0
	}
	if q.Confidence > 1 {
		q.Confidence = 1
	}
}

// =============================================================================
// Execution Plan
// =============================================================================

// ToolCall is a single planned invocation of a registered tool.
//
// # Fields
//
//   - ID: unique handle for this call within the plan; results are keyed by it.
//   - Tool: registered tool name.
//   - Params: tool arguments as loosely-typed JSON values.
//   - DependsOn: IDs of calls whose results must exist before this one runs.
type ToolCall struct {
	ID        string         `json:"id"`
	Tool      string         `json:"tool"`
	Params    map[string]any `json:"params"`
	DependsOn []string       `json:"depends_on,omitempty"`
}

// ExecutionPlan is the full data-retrieval plan for one pipeline iteration.
//
// ParallelGroups lists call IDs that may run concurrently; groups run in
// declaration order. Calls not named by any group run sequentially after
// all groups finish.
type ExecutionPlan struct {
	Calls          []ToolCall `json:"tool_calls"`
	ParallelGroups [][]string `json:"parallel_groups,omitempty"`
	Reasoning      string     `json:"reasoning,omitempty"`
}

// CallByID returns the call with the given ID, if present.
func (p *ExecutionPlan) CallByID(id string) (ToolCall, bool) {
	for _, c := range p.Calls {
		if c.ID == id {
			return c, true
		}
	}
	return ToolCall{}, false
}

// Validate checks structural integrity: non-empty call IDs and tool names,
// no duplicate IDs, and dependency references that resolve within the plan.
// Group members referencing unknown IDs are tolerated (the executor skips
// them) and are not an error here.
func (p *ExecutionPlan) Validate() error {
	if len(p.Calls) == 0 {
		return fmt.Errorf("plan has no tool calls")
	}
	seen := make(map[string]bool, len(p.Calls))
	for i, c := range p.Calls {
		if c.ID == "" {
			return fmt.Errorf("call %d has an empty id", i)
		}
		if c.Tool == "" {
			return fmt.Errorf("call %q has an empty tool name", c.ID)
		}
		if seen[c.ID] {
			return fmt.Errorf("duplicate call id %q", c.ID)
		}
		seen[c.ID] = true
	}
	for _, c := range p.Calls {
		for _, dep := range c.DependsOn {
			if !seen[dep] {
				return fmt.Errorf("call %q depends on unknown id %q", c.ID, dep)
			}
		}
	}
	return nil
}

// GroupedIDs returns the set of call IDs claimed by any parallel group.
func (p *ExecutionPlan) GroupedIDs() map[string]bool {
	grouped := make(map[string]bool)
	for _, group := range p.ParallelGroups {
		for _, id := range group {
			grouped[id] = true
		}
	}
	return grouped
}
