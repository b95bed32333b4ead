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
	"log/slog"

	"github.com/pitwall-ai/pitwall/services/llm"
	"github.com/pitwall-ai/pitwall/services/orchestrator/datatypes"
)

// runUnderstand classifies the question on the fast tier. A failed or
// unparseable classification falls back to a low-confidence general
// interpretation; the turn always proceeds to planning.
func (p *Pipeline) runUnderstand(ctx context.Context, state *datatypes.PipelineState) {
	params := llm.GenerationParams{
		Temperature: llm.Float32Ptr(0.1),
		MaxTokens:   llm.IntPtr(1024),
	}

	response, err := p.generator.Chat(ctx, buildUnderstandMessages(state), llm.TierFast, params)
	if err != nil {
		slog.Warn("Understanding call failed, using fallback interpretation", "error", err)
		state.Understanding = fallbackUnderstanding(state)
		state.Stage = datatypes.StagePlan
		return
	}

	var understanding datatypes.QueryUnderstanding
	if err := json.Unmarshal([]byte(ExtractJSON(response)), &understanding); err != nil {
		slog.Warn("Understanding response was not valid JSON, using fallback",
			"error", err, "response_length", len(response))
		state.Understanding = fallbackUnderstanding(state)
		state.Stage = datatypes.StagePlan
		return
	}

	understanding.Normalize()
	if understanding.Clarified == "" {
		understanding.Clarified = state.LastUserMessage()
	}
	state.Understanding = &understanding
	state.Stage = datatypes.StagePlan
}

func fallbackUnderstanding(state *datatypes.PipelineState) *datatypes.QueryUnderstanding {
	return &datatypes.QueryUnderstanding{
		QueryType:  datatypes.QueryGeneral,
		Scope:      datatypes.ScopeFullRace,
		Confidence: 0.3,
		Clarified:  state.LastUserMessage(),
	}
}
