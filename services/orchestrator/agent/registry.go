// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package agent implements the analysis pipeline: understanding a question,
// planning data retrieval, executing tools, aggregating results, judging
// sufficiency, and generating the final answer.
package agent

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/pitwall-ai/pitwall/services/orchestrator/datatypes"
)

// ToolFunc is the signature every registered tool implements. Params are
// the loosely-typed JSON arguments from the plan.
type ToolFunc func(ctx context.Context, params map[string]any) (any, error)

// ParamSpec declares one tool parameter for plan-time validation and for
// the tool catalog shown to the planning model.
type ParamSpec struct {
	Name        string
	Type        string // "string", "int", "float", "bool", "[]string"
	Required    bool
	Description string
}

// Tool is a named, documented operation the planner may call.
type Tool struct {
	Name        string
	Description string
	Params      []ParamSpec
	Run         ToolFunc
}

// Registry holds the tools available to the planner and executor.
//
// # Thread Safety
//
// Safe for concurrent use; registration normally happens once at startup.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool. Re-registering a name is an error.
func (r *Registry) Register(t Tool) error {
	if t.Name == "" {
		return fmt.Errorf("tool has no name")
	}
	if t.Run == nil {
		return fmt.Errorf("tool %q has no run function", t.Name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[t.Name]; exists {
		return fmt.Errorf("tool %q already registered", t.Name)
	}
	r.tools[t.Name] = t
	return nil
}

// MustRegister panics on registration failure. Startup wiring only.
func (r *Registry) MustRegister(t Tool) {
	if err := r.Register(t); err != nil {
		panic(err)
	}
}

// Lookup returns the named tool.
func (r *Registry) Lookup(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Names returns registered tool names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Catalog renders the tool list for the planning prompt: one block per
// tool with its parameters and types.
func (r *Registry) Catalog() string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		t := r.tools[name]
		fmt.Fprintf(&b, "- %s: %s\n", t.Name, t.Description)
		for _, p := range t.Params {
			req := "optional"
			if p.Required {
				req = "required"
			}
			fmt.Fprintf(&b, "    %s (%s, %s): %s\n", p.Name, p.Type, req, p.Description)
		}
	}
	return b.String()
}

// ValidateCall checks a planned call against the tool's parameter specs:
// the tool must exist, required params must be present, and provided
// params must have compatible types. Unknown params are tolerated.
func (r *Registry) ValidateCall(call datatypes.ToolCall) error {
	tool, ok := r.Lookup(call.Tool)
	if !ok {
		return fmt.Errorf("call %q names unknown tool %q", call.ID, call.Tool)
	}
	for _, spec := range tool.Params {
		val, present := call.Params[spec.Name]
		if !present {
			if spec.Required {
				return fmt.Errorf("call %q missing required param %q", call.ID, spec.Name)
			}
			continue
		}
		if !typeMatches(spec.Type, val) {
			return fmt.Errorf("call %q param %q: expected %s, got %T",
				call.ID, spec.Name, spec.Type, val)
		}
	}
	return nil
}

// ValidatePlan runs ValidateCall over every call and collects the
// defects. An empty slice means the plan is executable as written.
func (r *Registry) ValidatePlan(plan *datatypes.ExecutionPlan) []error {
	var defects []error
	for _, call := range plan.Calls {
		if err := r.ValidateCall(call); err != nil {
			defects = append(defects, err)
		}
	}
	return defects
}

// typeMatches checks a JSON-decoded value against a declared param type.
// JSON numbers arrive as float64, so "int" accepts integral floats.
func typeMatches(declared string, val any) bool {
	switch declared {
	case "string":
		_, ok := val.(string)
		return ok
	case "bool":
		_, ok := val.(bool)
		return ok
	case "float":
		switch val.(type) {
		case float64, float32, int:
			return true
		}
		return false
	case "int":
		switch v := val.(type) {
		case int:
			return true
		case float64:
			return v == float64(int64(v))
		}
		return false
	case "[]string":
		switch v := val.(type) {
		case []string:
			return true
		case []any:
			for _, item := range v {
				if _, ok := item.(string); !ok {
					return false
				}
			}
			return true
		}
		return false
	default:
		// Unknown declared types do not fail validation.
		return true
	}
}
