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
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/pitwall-ai/pitwall/services/llm"
	"github.com/pitwall-ai/pitwall/services/orchestrator/datatypes"
)

// runPlan derives the retrieval plan on the fast tier. Parameter
// validation happens here, before anything executes: calls that fail
// validation are dropped, and a plan with nothing valid left is replaced
// by the deterministic fallback plan.
func (p *Pipeline) runPlan(ctx context.Context, state *datatypes.PipelineState) {
	params := llm.GenerationParams{
		Temperature: llm.Float32Ptr(0.2),
		MaxTokens:   llm.IntPtr(2048),
	}

	plan := p.requestPlan(ctx, state, params)
	if plan == nil {
		plan = fallbackPlan(state.Understanding)
		slog.Info("Using fallback retrieval plan", "session_id", state.SessionID,
			"calls", len(plan.Calls))
	}
	state.Plan = plan
	state.Stage = datatypes.StageExecute
}

// requestPlan asks the model for a plan and sanitizes it. Returns nil
// when no usable plan could be obtained.
func (p *Pipeline) requestPlan(ctx context.Context, state *datatypes.PipelineState,
	params llm.GenerationParams) *datatypes.ExecutionPlan {

	response, err := p.generator.Chat(ctx, buildPlanMessages(state, p.registry.Catalog()),
		llm.TierFast, params)
	if err != nil {
		slog.Warn("Planning call failed", "error", err)
		return nil
	}

	var plan datatypes.ExecutionPlan
	if err := json.Unmarshal([]byte(ExtractJSON(response)), &plan); err != nil {
		slog.Warn("Plan response was not valid JSON", "error", err,
			"response_length", len(response))
		return nil
	}
	pruneDanglingDeps(&plan)
	if err := plan.Validate(); err != nil {
		slog.Warn("Planned calls are structurally invalid", "error", err)
		return nil
	}

	return p.sanitizePlan(&plan)
}

// pruneDanglingDeps drops depends_on references that name no call in the
// plan. Models hallucinate such ids occasionally; one bad reference
// should not cost the otherwise valid plan.
func pruneDanglingDeps(plan *datatypes.ExecutionPlan) {
	known := make(map[string]bool, len(plan.Calls))
	for _, call := range plan.Calls {
		known[call.ID] = true
	}
	for i, call := range plan.Calls {
		var kept []string
		for _, dep := range call.DependsOn {
			if known[dep] {
				kept = append(kept, dep)
				continue
			}
			slog.Warn("Dropping dangling dependency reference",
				"call_id", call.ID, "depends_on", dep)
		}
		plan.Calls[i].DependsOn = kept
	}
}

// sanitizePlan drops calls that fail registry validation, along with
// their group memberships and any calls depending on them. Returns nil
// when nothing survives.
func (p *Pipeline) sanitizePlan(plan *datatypes.ExecutionPlan) *datatypes.ExecutionPlan {
	defects := p.registry.ValidatePlan(plan)
	if len(defects) == 0 {
		return plan
	}
	for _, d := range defects {
		slog.Warn("Dropping invalid planned call", "defect", d)
	}

	invalid := make(map[string]bool)
	for _, call := range plan.Calls {
		if err := p.registry.ValidateCall(call); err != nil {
			invalid[call.ID] = true
		}
	}
	// A call whose dependency was dropped cannot run either.
	changed := true
	for changed {
		changed = false
		for _, call := range plan.Calls {
			if invalid[call.ID] {
				continue
			}
			for _, dep := range call.DependsOn {
				if invalid[dep] {
					invalid[call.ID] = true
					changed = true
					break
				}
			}
		}
	}

	sanitized := &datatypes.ExecutionPlan{Reasoning: plan.Reasoning}
	for _, call := range plan.Calls {
		if !invalid[call.ID] {
			sanitized.Calls = append(sanitized.Calls, call)
		}
	}
	if len(sanitized.Calls) == 0 {
		return nil
	}
	for _, group := range plan.ParallelGroups {
		var kept []string
		for _, id := range group {
			if !invalid[id] {
				kept = append(kept, id)
			}
		}
		if len(kept) > 0 {
			sanitized.ParallelGroups = append(sanitized.ParallelGroups, kept)
		}
	}
	return sanitized
}

// fallbackPlan is the deterministic plan used when planning fails: lap
// times per requested driver in one parallel group, or a session results
// query when no drivers were identified.
func fallbackPlan(understanding *datatypes.QueryUnderstanding) *datatypes.ExecutionPlan {
	plan := &datatypes.ExecutionPlan{
		Reasoning: "fallback plan: direct lap time retrieval",
	}

	race, year := "", 0
	var drivers []string
	if understanding != nil {
		race = understanding.Race
		year = understanding.Year
		drivers = understanding.Drivers
	}

	if len(drivers) == 0 {
		plan.Calls = append(plan.Calls, datatypes.ToolCall{
			ID:   "results",
			Tool: "get_session_results",
			Params: map[string]any{
				"race": race,
				"year": year,
			},
		})
		return plan
	}

	var group []string
	for _, driver := range drivers {
		id := fmt.Sprintf("laps_%s", driver)
		plan.Calls = append(plan.Calls, datatypes.ToolCall{
			ID:   id,
			Tool: "get_lap_times",
			Params: map[string]any{
				"driver": driver,
				"race":   race,
				"year":   year,
			},
		})
		group = append(group, id)
	}
	plan.ParallelGroups = [][]string{group}
	return plan
}
