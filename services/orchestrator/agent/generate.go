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
	"sort"
	"strings"

	"github.com/pitwall-ai/pitwall/services/llm"
	"github.com/pitwall-ai/pitwall/services/orchestrator/datatypes"
)

// runGenerate writes the final answer on the capable tier. Exhausted
// providers produce a degraded answer that still surfaces the computed
// numbers; the turn never errors out here.
func (p *Pipeline) runGenerate(ctx context.Context, state *datatypes.PipelineState) {
	params := llm.GenerationParams{
		Temperature: llm.Float32Ptr(0.3),
		MaxTokens:   llm.IntPtr(4096),
	}

	text, err := p.generator.Chat(ctx, buildGenerateMessages(state), llm.TierCapable, params)
	if err != nil {
		slog.Error("Answer generation failed", "session_id", state.SessionID, "error", err)
		state.Error = err.Error()
		state.Answer = p.degradedAnswer(state, degradedText(state))
		state.Stage = datatypes.StageDone
		return
	}

	confidence := 0.5
	if state.Processed != nil {
		confidence = state.Processed.Confidence
	}
	state.Answer = &datatypes.Answer{
		SessionID:  state.SessionID,
		Text:       text,
		Confidence: confidence,
		Provider:   p.generator.LastProvider(),
		Iterations: state.Iteration,
		Visual:     visualSpec(state),
	}

	if p.validateAnswers && len(text) >= validationMinChars {
		state.Stage = datatypes.StageValidate
		return
	}
	state.Stage = datatypes.StageDone
}

// runValidate cross-checks a substantial answer against the data it was
// written from. The verdict is logged and attached to confidence; it
// never blocks the answer.
func (p *Pipeline) runValidate(ctx context.Context, state *datatypes.PipelineState) {
	state.Stage = datatypes.StageDone

	response, err := p.generator.Chat(ctx,
		buildValidateMessages(state, state.Answer.Text),
		llm.TierCapable,
		llm.GenerationParams{
			Temperature: llm.Float32Ptr(0.0),
			MaxTokens:   llm.IntPtr(1024),
		})
	if err != nil {
		slog.Warn("Answer validation call failed", "error", err)
		return
	}

	var verdict struct {
		Passes bool     `json:"passes_validation"`
		Score  float64  `json:"score"`
		Issues []string `json:"issues"`
	}
	if err := json.Unmarshal([]byte(ExtractJSON(response)), &verdict); err != nil {
		slog.Warn("Answer validation response was not valid JSON", "error", err)
		return
	}

	slog.Info("Answer validation verdict", "session_id", state.SessionID,
		"passes", verdict.Passes, "score", verdict.Score, "issues", verdict.Issues)
	if !verdict.Passes && verdict.Score > 0 && verdict.Score < 1 {
		state.Answer.Confidence *= verdict.Score
	}
}

// degradedText surfaces whatever deterministic analysis exists when no
// model is available to narrate it.
func degradedText(state *datatypes.PipelineState) string {
	var b strings.Builder
	b.WriteString("Analysis is temporarily unavailable (no language model could be reached).")
	if state.Processed != nil && len(state.Processed.Insights) > 0 {
		b.WriteString(" Computed findings:\n")
		for _, insight := range state.Processed.Insights {
			fmt.Fprintf(&b, "- %s\n", insight)
		}
	}
	return b.String()
}

func visualSpec(state *datatypes.PipelineState) *datatypes.VisualizationSpec {
	if state.Processed == nil || state.Processed.RecommendedVisual == "" ||
		state.Processed.RecommendedVisual == "none" {
		return nil
	}

	var series []string
	for driver := range state.Processed.Laps {
		series = append(series, driver)
	}
	sort.Strings(series)

	spec := &datatypes.VisualizationSpec{
		Kind:   state.Processed.RecommendedVisual,
		Series: series,
	}
	switch spec.Kind {
	case "lap_time_series":
		spec.XLabel, spec.YLabel = "lap", "lap time (s)"
	case "gap_bar":
		spec.XLabel, spec.YLabel = "driver pair", "gap (s)"
	case "stint_boxes":
		spec.XLabel, spec.YLabel = "stint", "lap time (s)"
	}
	return spec
}
