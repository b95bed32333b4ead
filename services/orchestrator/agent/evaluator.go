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
	"strings"

	"github.com/pitwall-ai/pitwall/services/orchestrator/datatypes"
)

// MaxIterations caps how many plan-execute-evaluate rounds one turn may
// take. At the cap the turn proceeds to generation with whatever data it
// has.
const MaxIterations = 2

// defaultThreshold applies to query types without an explicit entry.
const defaultThreshold = 0.7

// sufficiencyThresholds sets the completeness score a result set must
// reach per query type. Data-heavy analyses demand more; speculative
// ones get by on less.
var sufficiencyThresholds = map[datatypes.QueryType]float64{
	datatypes.QueryTelemetry:  0.8,
	datatypes.QueryComparison: 0.75,
	datatypes.QueryStrategy:   0.7,
	datatypes.QueryPace:       0.65,
	datatypes.QueryIncident:   0.6,
	datatypes.QueryHistorical: 0.5,
	datatypes.QueryPrediction: 0.5,
	datatypes.QueryWhatIf:     0.5,
	datatypes.QueryGeneral:    0.5,
}

// Evaluator judges whether a processed result set is good enough to
// answer from, and synthesizes re-planning feedback when it is not.
type Evaluator struct {
	maxIterations int
	thresholds    map[datatypes.QueryType]float64
}

func NewEvaluator() *Evaluator {
	return &Evaluator{
		maxIterations: MaxIterations,
		thresholds:    sufficiencyThresholds,
	}
}

// Threshold returns the sufficiency threshold for a query type.
func (e *Evaluator) Threshold(qt datatypes.QueryType) float64 {
	if t, ok := e.thresholds[qt]; ok {
		return t
	}
	return defaultThreshold
}

// Evaluate scores the processed analysis against the query-type
// threshold.
//
// # Description
//
// The result is sufficient when the completeness score meets the
// threshold, or unconditionally when the iteration cap is reached so a
// turn can never loop forever. Feedback is only synthesized on the
// insufficient path; it feeds the next planning round.
//
// # Inputs
//
//   - processed: Aggregated results; may be nil when processing found nothing.
//   - understanding: The interpreted query, for threshold and feedback context.
//   - iteration: Zero-based count of completed re-planning rounds.
func (e *Evaluator) Evaluate(processed *datatypes.ProcessedAnalysis,
	understanding *datatypes.QueryUnderstanding, iteration int) datatypes.EvaluationResult {

	qt := datatypes.QueryGeneral
	if understanding != nil {
		qt = understanding.QueryType
	}
	threshold := e.Threshold(qt)

	score := 0.0
	if processed != nil {
		score = processed.Completeness
	}

	result := datatypes.EvaluationResult{
		Score:     score,
		Threshold: threshold,
		Iteration: iteration,
	}

	if score >= threshold {
		result.Sufficient = true
		return result
	}
	if iteration >= e.maxIterations {
		// Cap reached: answer with what we have rather than loop again.
		result.Sufficient = true
		result.Feedback = fmt.Sprintf(
			"iteration cap reached with score %.2f below threshold %.2f", score, threshold)
		return result
	}

	result.Sufficient = false
	result.Feedback = e.feedback(processed, understanding, score, threshold)
	return result
}

// feedback builds a concrete instruction for the next planning round,
// most specific condition first.
func (e *Evaluator) feedback(processed *datatypes.ProcessedAnalysis,
	understanding *datatypes.QueryUnderstanding, score, threshold float64) string {

	if processed == nil || processed.TotalLaps == 0 {
		return "No data retrieved from any source. Retry the core lap time queries, " +
			"checking driver codes and the race identifier."
	}

	var parts []string
	if len(processed.MissingData) > 0 {
		parts = append(parts, fmt.Sprintf("Missing data: %s.",
			strings.Join(processed.MissingData, ", ")))
	}
	if processed.TotalLaps < 50 {
		parts = append(parts, fmt.Sprintf(
			"Only %d laps retrieved; widen the lap range or drop restrictive filters.",
			processed.TotalLaps))
	}
	if understanding != nil && understanding.QueryType == datatypes.QueryComparison &&
		len(understanding.Drivers) >= 2 && len(processed.Comparisons) == 0 {
		parts = append(parts, fmt.Sprintf(
			"No comparisons were computed; fetch lap times for all of: %s.",
			strings.Join(understanding.Drivers, ", ")))
	}
	if understanding != nil && understanding.QueryType == datatypes.QueryStrategy &&
		len(processed.Stints) == 0 {
		parts = append(parts, "No stint data found; fetch stint summaries for the drivers involved.")
	}
	if len(parts) == 0 {
		parts = append(parts, fmt.Sprintf(
			"Retrieved data scored %.2f against threshold %.2f; fetch more complete data for the question.",
			score, threshold))
	}
	return strings.Join(parts, " ")
}
