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
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/semaphore"

	"github.com/pitwall-ai/pitwall/services/orchestrator/datatypes"
)

var executorTracer = otel.Tracer("pitwall.agent.executor")

const (
	defaultMaxParallel = 8
	defaultCallTimeout = 30 * time.Second
)

// Executor runs an ExecutionPlan against the tool registry.
//
// # Description
//
// Declared parallel groups run in order, members concurrently under a
// semaphore cap. Calls not claimed by any group run sequentially after
// all groups finish. Plans without groups but with depends_on edges are
// scheduled as dependency waves instead.
//
// Failures never abort the plan: a failed call contributes an error
// marker ({"error": "..."}) and every other call still runs. The result
// map always contains exactly one entry per plan call ID.
type Executor struct {
	registry    *Registry
	maxParallel int64
	callTimeout time.Duration

	// OnToolError, when set, is invoked once per failed call with the
	// tool name. Used to feed metrics without coupling to them.
	OnToolError func(tool string)
}

// NewExecutor builds an executor. Zero maxParallel or callTimeout select
// the defaults (8 concurrent calls, 30s per call).
func NewExecutor(registry *Registry, maxParallel int, callTimeout time.Duration) *Executor {
	if maxParallel <= 0 {
		maxParallel = defaultMaxParallel
	}
	if callTimeout <= 0 {
		callTimeout = defaultCallTimeout
	}
	return &Executor{
		registry:    registry,
		maxParallel: int64(maxParallel),
		callTimeout: callTimeout,
	}
}

// ErrorMarker wraps a failure message in the shape stored for failed
// calls, so downstream stages can treat it as data.
func ErrorMarker(msg string) map[string]any {
	return map[string]any{"error": msg}
}

// IsErrorMarker reports whether a stored result is a failure marker and
// returns its message.
func IsErrorMarker(result any) (string, bool) {
	m, ok := result.(map[string]any)
	if !ok {
		return "", false
	}
	if len(m) != 1 {
		return "", false
	}
	msg, ok := m["error"].(string)
	return msg, ok
}

// Execute runs the plan and returns one result per call ID.
func (e *Executor) Execute(ctx context.Context, plan *datatypes.ExecutionPlan) map[string]any {
	ctx, span := executorTracer.Start(ctx, "Executor.Execute")
	defer span.End()
	span.SetAttributes(
		attribute.Int("plan.calls", len(plan.Calls)),
		attribute.Int("plan.groups", len(plan.ParallelGroups)),
	)

	if len(plan.ParallelGroups) == 0 && planHasDeps(plan) {
		return e.executeWaves(ctx, plan)
	}
	return e.executeGroups(ctx, plan)
}

func planHasDeps(plan *datatypes.ExecutionPlan) bool {
	for _, c := range plan.Calls {
		if len(c.DependsOn) > 0 {
			return true
		}
	}
	return false
}

// executeGroups honors the plan's declared parallel groups.
func (e *Executor) executeGroups(ctx context.Context, plan *datatypes.ExecutionPlan) map[string]any {
	for _, defect := range groupDefects(plan) {
		slog.Warn("Plan group defect", "defect", defect)
	}

	results := make(map[string]any, len(plan.Calls))
	var mu sync.Mutex

	executed := make(map[string]bool, len(plan.Calls))
	for _, group := range plan.ParallelGroups {
		calls := make([]datatypes.ToolCall, 0, len(group))
		for _, id := range group {
			call, ok := plan.CallByID(id)
			if !ok {
				// Hallucinated group members are dropped, not failed.
				slog.Debug("Skipping unknown call id in parallel group", "id", id)
				continue
			}
			if executed[id] {
				// An id listed in more than one group still runs once.
				slog.Debug("Skipping already-executed call id in parallel group", "id", id)
				continue
			}
			executed[id] = true
			calls = append(calls, call)
		}
		e.runParallel(ctx, calls, results, &mu)
	}

	for _, call := range plan.Calls {
		if executed[call.ID] {
			continue
		}
		result := e.runCall(ctx, call)
		mu.Lock()
		results[call.ID] = result
		mu.Unlock()
	}
	return results
}

// executeWaves schedules purely from depends_on edges: every call whose
// dependencies have completed joins the next parallel wave. Calls stuck
// in a dependency cycle receive error markers.
func (e *Executor) executeWaves(ctx context.Context, plan *datatypes.ExecutionPlan) map[string]any {
	results := make(map[string]any, len(plan.Calls))
	var mu sync.Mutex

	done := make(map[string]bool, len(plan.Calls))
	for len(done) < len(plan.Calls) {
		wave := readyCalls(plan, done)
		if len(wave) == 0 {
			for _, call := range plan.Calls {
				if !done[call.ID] {
					results[call.ID] = ErrorMarker(
						fmt.Sprintf("call %q is part of a dependency cycle", call.ID))
					done[call.ID] = true
				}
			}
			break
		}
		e.runParallel(ctx, wave, results, &mu)
		for _, call := range wave {
			done[call.ID] = true
		}
	}
	return results
}

// runParallel executes the calls concurrently, bounded by the semaphore.
func (e *Executor) runParallel(ctx context.Context, calls []datatypes.ToolCall,
	results map[string]any, mu *sync.Mutex) {

	sem := semaphore.NewWeighted(e.maxParallel)
	var wg sync.WaitGroup
	for _, call := range calls {
		if err := sem.Acquire(ctx, 1); err != nil {
			mu.Lock()
			results[call.ID] = ErrorMarker(fmt.Sprintf("cancelled before start: %v", err))
			mu.Unlock()
			continue
		}
		wg.Add(1)
		go func(call datatypes.ToolCall) {
			defer wg.Done()
			defer sem.Release(1)
			result := e.runCall(ctx, call)
			mu.Lock()
			results[call.ID] = result
			mu.Unlock()
		}(call)
	}
	wg.Wait()
}

// runCall executes one tool call with its own timeout and converts every
// failure mode, including panics, into an error marker.
func (e *Executor) runCall(ctx context.Context, call datatypes.ToolCall) (result any) {
	ctx, span := executorTracer.Start(ctx, "Executor.runCall")
	defer span.End()
	span.SetAttributes(
		attribute.String("tool.call_id", call.ID),
		attribute.String("tool.name", call.Tool),
	)

	fail := func(msg string) any {
		span.SetStatus(codes.Error, msg)
		slog.Warn("Tool call failed", "id", call.ID, "tool", call.Tool, "error", msg)
		if e.OnToolError != nil {
			e.OnToolError(call.Tool)
		}
		return ErrorMarker(msg)
	}

	defer func() {
		if r := recover(); r != nil {
			result = fail(fmt.Sprintf("tool %q panicked: %v", call.Tool, r))
		}
	}()

	tool, ok := e.registry.Lookup(call.Tool)
	if !ok {
		return fail(fmt.Sprintf("unknown tool %q", call.Tool))
	}

	callCtx, cancel := context.WithTimeout(ctx, e.callTimeout)
	defer cancel()

	start := time.Now()
	out, err := tool.Run(callCtx, call.Params)
	if err != nil {
		return fail(err.Error())
	}
	slog.Debug("Tool call completed", "id", call.ID, "tool", call.Tool,
		"duration", time.Since(start))
	return out
}
