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
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pitwall-ai/pitwall/services/orchestrator/datatypes"
)

const understandSystemPrompt = `You are a motorsport analysis assistant. ` +
	`Classify the user's question and extract its entities. Respond with a ` +
	`single JSON object and nothing else:
{
  "query_type": "comparison|strategy|pace|telemetry|incident|prediction|historical|what_if|general",
  "drivers": ["three-letter driver codes"],
  "race": "race name or empty",
  "year": 0,
  "scope": "full_race|single_lap|stint|sector|season",
  "metrics": ["lap_time", "sector_time", "tyre_deg"],
  "confidence": 0.0,
  "clarified_query": "the question restated unambiguously"
}`

const planSystemPrompt = `You are a data retrieval planner for motorsport ` +
	`telemetry. Given the interpreted question and the tool catalog, emit a ` +
	`single JSON object and nothing else:
{
  "tool_calls": [
    {"id": "unique_id", "tool": "tool_name", "params": {}, "depends_on": []}
  ],
  "parallel_groups": [["id1", "id2"]],
  "reasoning": "one sentence on the retrieval strategy"
}
Independent calls belong in the same parallel group. A call that needs
another call's output lists it in depends_on and stays out of that group.`

const generateSystemPrompt = `You are a motorsport race engineer writing for ` +
	`an informed fan. Answer the question using only the analysis and context ` +
	`provided. Cite concrete numbers from the analysis. If data is missing, ` +
	`say so plainly rather than guessing.`

const validateSystemPrompt = `You are reviewing an analytical answer for ` +
	`internal consistency with the data it cites. Respond with a single JSON ` +
	`object and nothing else:
{"passes_validation": true, "score": 0.0, "issues": ["..."]}`

func buildUnderstandMessages(state *datatypes.PipelineState) []datatypes.Message {
	messages := []datatypes.Message{{Role: "system", Content: understandSystemPrompt}}
	// Carry a short transcript window so follow-ups resolve referents
	// ("and what about his teammate?").
	start := len(state.Messages) - 6
	if start < 0 {
		start = 0
	}
	messages = append(messages, state.Messages[start:]...)
	return messages
}

func buildPlanMessages(state *datatypes.PipelineState, catalog string) []datatypes.Message {
	understandingJSON, _ := json.MarshalIndent(state.Understanding, "", "  ")
	var b strings.Builder
	fmt.Fprintf(&b, "Interpreted question:\n%s\n\nAvailable tools:\n%s\n", understandingJSON, catalog)
	if state.Feedback != "" {
		fmt.Fprintf(&b, "\nThe previous retrieval round was insufficient. Address this feedback:\n%s\n",
			state.Feedback)
	}
	b.WriteString("\nEmit the retrieval plan.")
	return []datatypes.Message{
		{Role: "system", Content: planSystemPrompt},
		{Role: "user", Content: b.String()},
	}
}

func buildGenerateMessages(state *datatypes.PipelineState) []datatypes.Message {
	processedJSON, _ := json.MarshalIndent(state.Processed, "", "  ")
	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n\nProcessed analysis:\n%s\n",
		state.LastUserMessage(), processedJSON)
	if len(state.Context) > 0 {
		b.WriteString("\nBackground context:\n")
		for _, hit := range state.Context {
			fmt.Fprintf(&b, "[%s] %s\n", hit.Collection, hit.Content)
		}
	}
	if state.Evaluation != nil && state.Evaluation.Score < state.Evaluation.Threshold {
		b.WriteString("\nThe data set is incomplete; qualify conclusions accordingly.\n")
	}
	return []datatypes.Message{
		{Role: "system", Content: generateSystemPrompt},
		{Role: "user", Content: b.String()},
	}
}

func buildValidateMessages(state *datatypes.PipelineState, answer string) []datatypes.Message {
	processedJSON, _ := json.Marshal(state.Processed)
	content := fmt.Sprintf("Answer under review:\n%s\n\nData it was written from:\n%s",
		answer, processedJSON)
	return []datatypes.Message{
		{Role: "system", Content: validateSystemPrompt},
		{Role: "user", Content: content},
	}
}

// ExtractJSON strips markdown code fences and any prose around the first
// top-level JSON object in a model response. Models wrap JSON in fences
// regardless of instructions often enough that this runs on every
// structured response.
func ExtractJSON(response string) string {
	s := strings.TrimSpace(response)

	if idx := strings.Index(s, "```"); idx >= 0 {
		s = s[idx+3:]
		s = strings.TrimPrefix(s, "json")
		if end := strings.Index(s, "```"); end >= 0 {
			s = s[:end]
		}
		s = strings.TrimSpace(s)
	}

	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return s
	}
	open := s[start]
	var close byte = '}'
	if open == '[' {
		close = ']'
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return s[start:]
}
