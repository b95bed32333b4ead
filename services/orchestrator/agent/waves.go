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
	"fmt"

	"github.com/pitwall-ai/pitwall/services/orchestrator/datatypes"
)

// readyCalls returns every call that has not run yet and whose
// dependencies have all completed. This is the wave frontier.
// A dependency on an id that is not in the plan at all is treated as
// satisfied, so a hallucinated reference cannot starve its dependent.
func readyCalls(plan *datatypes.ExecutionPlan, done map[string]bool) []datatypes.ToolCall {
	known := make(map[string]bool, len(plan.Calls))
	for _, call := range plan.Calls {
		known[call.ID] = true
	}

	var ready []datatypes.ToolCall
	for _, call := range plan.Calls {
		if done[call.ID] {
			continue
		}
		depsMet := true
		for _, dep := range call.DependsOn {
			if known[dep] && !done[dep] {
				depsMet = false
				break
			}
		}
		if depsMet {
			ready = append(ready, call)
		}
	}
	return ready
}

// groupDefects flags declared parallel groups that contain a dependency
// edge between two of their own members. Such calls cannot actually run
// concurrently; the groups are honored anyway and the defect is logged.
func groupDefects(plan *datatypes.ExecutionPlan) []string {
	var defects []string
	for gi, group := range plan.ParallelGroups {
		members := make(map[string]bool, len(group))
		for _, id := range group {
			members[id] = true
		}
		for _, id := range group {
			call, ok := plan.CallByID(id)
			if !ok {
				continue
			}
			for _, dep := range call.DependsOn {
				if members[dep] {
					defects = append(defects, fmt.Sprintf(
						"group %d runs %q concurrently with its dependency %q", gi, id, dep))
				}
			}
		}
	}
	return defects
}
