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

import "time"

// Stage identifies where a turn currently sits in the pipeline
// state machine.
type Stage string

const (
	StageUnderstand Stage = "understand"
	StagePlan       Stage = "plan"
	StageExecute    Stage = "execute"
	StageProcess    Stage = "process"
	StageEvaluate   Stage = "evaluate"
	StageEnrich     Stage = "enrich"
	StageGenerate   Stage = "generate"
	StageValidate   Stage = "validate"
	StageDone       Stage = "done"
)

// PipelineState carries everything one turn accumulates while moving
// through the stages, plus the durable conversation transcript. It is
// the unit of persistence for session stores.
type PipelineState struct {
	SessionID string    `json:"session_id"`
	Messages  []Message `json:"messages"`
	Stage     Stage     `json:"stage"`

	Understanding *QueryUnderstanding `json:"understanding,omitempty"`
	Plan          *ExecutionPlan      `json:"plan,omitempty"`
	RawResults    map[string]any      `json:"raw_results,omitempty"`
	Processed     *ProcessedAnalysis  `json:"processed,omitempty"`
	Evaluation    *EvaluationResult   `json:"evaluation,omitempty"`

	// Feedback from the last insufficient evaluation, injected into the
	// next planning prompt.
	Feedback  string `json:"feedback,omitempty"`
	Iteration int    `json:"iteration"`

	Context []SearchHit `json:"context,omitempty"`
	Answer  *Answer     `json:"answer,omitempty"`
	Error   string      `json:"error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewPipelineState returns an empty state for a fresh session.
func NewPipelineState(sessionID string) *PipelineState {
	now := time.Now().UTC()
	return &PipelineState{
		SessionID: sessionID,
		Stage:     StageUnderstand,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// BeginTurn appends the user message and clears every per-turn field.
// The transcript survives across turns; iteration counting, plans, and
// results do not.
func (s *PipelineState) BeginTurn(userMessage string) {
	s.Messages = append(s.Messages, Message{Role: "user", Content: userMessage})
	s.Stage = StageUnderstand
	s.Understanding = nil
	s.Plan = nil
	s.RawResults = nil
	s.Processed = nil
	s.Evaluation = nil
	s.Feedback = ""
	s.Iteration = 0
	s.Context = nil
	s.Answer = nil
	s.Error = ""
	s.UpdatedAt = time.Now().UTC()
}

// LastUserMessage returns the most recent user turn, or "".
func (s *PipelineState) LastUserMessage() string {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == "user" {
			return s.Messages[i].Content
		}
	}
	return ""
}
