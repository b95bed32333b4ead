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
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/pitwall-ai/pitwall/services/llm"
	"github.com/pitwall-ai/pitwall/services/orchestrator/datatypes"
	"github.com/pitwall-ai/pitwall/services/orchestrator/observability"
	"github.com/pitwall-ai/pitwall/services/orchestrator/session"
)

var pipelineTracer = otel.Tracer("pitwall.agent.pipeline")

// Generator is the slice of the LLM router the pipeline needs. The
// concrete implementation is llm.ProviderRouter; tests substitute fakes.
type Generator interface {
	Chat(ctx context.Context, messages []datatypes.Message, tier llm.Tier,
		params llm.GenerationParams) (string, error)
	LastProvider() string
	Providers() []string
}

// ContextSearcher retrieves unstructured background context for answer
// enrichment. Implemented by the Weaviate search tools.
type ContextSearcher interface {
	Search(ctx context.Context, query, category string, limit int) ([]datatypes.SearchHit, error)
}

const (
	defaultTurnBudget = 2 * time.Minute
	// Answers shorter than this skip the validation pass; there is not
	// enough substance to cross-check.
	validationMinChars = 400
)

// Params wires a Pipeline. Generator, Registry, and Sessions are
// required; the rest have working defaults.
type Params struct {
	Generator Generator
	Registry  *Registry
	Executor  *Executor
	Evaluator *Evaluator
	Sessions  session.Store
	Searcher  ContextSearcher
	Metrics   *observability.AgentMetrics

	TurnBudget      time.Duration
	ValidateAnswers bool
}

// Pipeline is the turn state machine: understand, plan, execute,
// process, evaluate (looping back to plan while insufficient), enrich,
// generate, and optionally validate.
type Pipeline struct {
	generator Generator
	registry  *Registry
	executor  *Executor
	evaluator *Evaluator
	sessions  session.Store
	searcher  ContextSearcher
	metrics   *observability.AgentMetrics

	turnBudget      time.Duration
	validateAnswers bool
}

func NewPipeline(p Params) (*Pipeline, error) {
	if p.Generator == nil {
		return nil, fmt.Errorf("pipeline requires a generator")
	}
	if p.Registry == nil {
		return nil, fmt.Errorf("pipeline requires a tool registry")
	}
	if p.Sessions == nil {
		return nil, fmt.Errorf("pipeline requires a session store")
	}
	if p.Executor == nil {
		p.Executor = NewExecutor(p.Registry, 0, 0)
	}
	if p.Evaluator == nil {
		p.Evaluator = NewEvaluator()
	}
	if p.TurnBudget <= 0 {
		p.TurnBudget = defaultTurnBudget
	}

	pipe := &Pipeline{
		generator:       p.Generator,
		registry:        p.Registry,
		executor:        p.Executor,
		evaluator:       p.Evaluator,
		sessions:        p.Sessions,
		searcher:        p.Searcher,
		metrics:         p.Metrics,
		turnBudget:      p.TurnBudget,
		validateAnswers: p.ValidateAnswers,
	}
	if pipe.metrics != nil && pipe.executor.OnToolError == nil {
		pipe.executor.OnToolError = pipe.metrics.RecordToolError
	}
	return pipe, nil
}

// RunTurn processes one user message end to end and returns the answer.
//
// # Description
//
// The session state is loaded (or created), the message appended, and
// the state machine driven until StageDone. Stage failures downgrade the
// answer rather than erroring the turn: the only error returns are
// session-store failures and a spent turn budget before any answer
// exists.
//
// # Inputs
//
//   - ctx: Caller cancellation; additionally bounded by the turn budget.
//   - sessionID: Session to continue; empty starts a new session.
//   - userMessage: The user's question.
func (p *Pipeline) RunTurn(ctx context.Context, sessionID, userMessage string) (*datatypes.Answer, error) {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	ctx, span := pipelineTracer.Start(ctx, "Pipeline.RunTurn")
	defer span.End()
	span.SetAttributes(attribute.String("session.id", sessionID))

	if p.metrics != nil {
		p.metrics.TurnStarted()
		defer p.metrics.TurnEnded()
	}

	state, err := p.sessions.Load(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", sessionID, err)
	}
	if state == nil {
		state = datatypes.NewPipelineState(sessionID)
	}
	state.BeginTurn(userMessage)

	turnCtx, cancel := context.WithTimeout(ctx, p.turnBudget)
	defer cancel()

	for state.Stage != datatypes.StageDone {
		if err := turnCtx.Err(); err != nil && state.Answer == nil {
			state.Error = fmt.Sprintf("turn budget exhausted in stage %s", state.Stage)
			state.Answer = p.degradedAnswer(state, "The analysis ran out of time. Try a narrower question.")
			state.Stage = datatypes.StageDone
			break
		}
		p.runStage(turnCtx, state)
	}

	answer := state.Answer
	if answer == nil {
		answer = p.degradedAnswer(state, "Analysis is temporarily unavailable.")
		state.Answer = answer
	}
	state.Messages = append(state.Messages,
		datatypes.Message{Role: "assistant", Content: answer.Text})
	state.UpdatedAt = time.Now().UTC()

	// Persist on a fresh context so a spent turn budget cannot lose the
	// transcript.
	saveCtx, saveCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer saveCancel()
	if err := p.sessions.Save(saveCtx, state); err != nil {
		slog.Error("Failed to save session", "session_id", sessionID, "error", err)
		span.RecordError(err)
	}

	p.recordTurnMetrics(state, answer)
	if answer.Degraded {
		span.SetStatus(codes.Error, state.Error)
	}
	return answer, nil
}

// runStage executes the current stage and advances state.Stage.
func (p *Pipeline) runStage(ctx context.Context, state *datatypes.PipelineState) {
	stage := state.Stage
	start := time.Now()

	switch stage {
	case datatypes.StageUnderstand:
		p.runUnderstand(ctx, state)
	case datatypes.StagePlan:
		p.runPlan(ctx, state)
	case datatypes.StageExecute:
		p.runExecute(ctx, state)
	case datatypes.StageProcess:
		p.runProcess(state)
	case datatypes.StageEvaluate:
		p.runEvaluate(state)
	case datatypes.StageEnrich:
		p.runEnrich(ctx, state)
	case datatypes.StageGenerate:
		p.runGenerate(ctx, state)
	case datatypes.StageValidate:
		p.runValidate(ctx, state)
	default:
		slog.Error("Unknown pipeline stage", "stage", stage)
		state.Error = fmt.Sprintf("unknown stage %q", stage)
		state.Stage = datatypes.StageDone
	}

	elapsed := time.Since(start)
	slog.Debug("Pipeline stage completed", "session_id", state.SessionID,
		"stage", stage, "next", state.Stage, "duration", elapsed)
	if p.metrics != nil {
		p.metrics.ObserveStage(string(stage), elapsed.Seconds())
	}
}

func (p *Pipeline) runExecute(ctx context.Context, state *datatypes.PipelineState) {
	state.RawResults = p.executor.Execute(ctx, state.Plan)
	state.Stage = datatypes.StageProcess
}

func (p *Pipeline) runProcess(state *datatypes.PipelineState) {
	state.Processed = ProcessResults(state.RawResults, state.Understanding)
	state.Stage = datatypes.StageEvaluate
}

func (p *Pipeline) runEvaluate(state *datatypes.PipelineState) {
	eval := p.evaluator.Evaluate(state.Processed, state.Understanding, state.Iteration)
	state.Evaluation = &eval

	if eval.Sufficient {
		state.Stage = datatypes.StageEnrich
		return
	}
	// Only the insufficient path consumes an iteration.
	state.Iteration++
	state.Feedback = eval.Feedback
	slog.Info("Result set insufficient, re-planning",
		"session_id", state.SessionID, "iteration", state.Iteration,
		"score", eval.Score, "threshold", eval.Threshold, "feedback", eval.Feedback)
	state.Stage = datatypes.StagePlan
}

func (p *Pipeline) runEnrich(ctx context.Context, state *datatypes.PipelineState) {
	state.Stage = datatypes.StageGenerate
	if p.searcher == nil {
		return
	}

	query := state.LastUserMessage()
	if state.Understanding != nil && state.Understanding.Clarified != "" {
		query = state.Understanding.Clarified
	}

	hits, err := p.searcher.Search(ctx, query, "race_report", 3)
	if err != nil {
		slog.Warn("Race report enrichment failed", "error", err)
	} else {
		state.Context = append(state.Context, hits...)
	}

	if state.Understanding != nil &&
		(state.Understanding.QueryType == datatypes.QueryStrategy ||
			state.Understanding.QueryType == datatypes.QueryIncident) {
		hits, err := p.searcher.Search(ctx, query, "regulation", 2)
		if err != nil {
			slog.Warn("Regulation enrichment failed", "error", err)
		} else {
			state.Context = append(state.Context, hits...)
		}
	}
}

func (p *Pipeline) degradedAnswer(state *datatypes.PipelineState, text string) *datatypes.Answer {
	return &datatypes.Answer{
		SessionID:  state.SessionID,
		Text:       text,
		Confidence: 0.1,
		Degraded:   true,
		Iterations: state.Iteration,
	}
}

func (p *Pipeline) recordTurnMetrics(state *datatypes.PipelineState, answer *datatypes.Answer) {
	if p.metrics == nil {
		return
	}
	status := observability.TurnSuccess
	switch {
	case state.Error != "" && answer.Degraded:
		status = observability.TurnError
	case answer.Degraded:
		status = observability.TurnDegraded
	}
	p.metrics.RecordTurn(status)
	p.metrics.ObserveIterations(state.Iteration)

	providers := p.generator.Providers()
	last := p.generator.LastProvider()
	if len(providers) > 0 && last != "" && last != providers[0] {
		p.metrics.RecordFallback(last)
	}
}
