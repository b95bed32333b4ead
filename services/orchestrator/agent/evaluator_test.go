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
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pitwall-ai/pitwall/services/orchestrator/datatypes"
)

func understandingFor(qt datatypes.QueryType, drivers ...string) *datatypes.QueryUnderstanding {
	return &datatypes.QueryUnderstanding{QueryType: qt, Drivers: drivers, Confidence: 0.9}
}

func processedWithScore(score float64, totalLaps int) *datatypes.ProcessedAnalysis {
	return &datatypes.ProcessedAnalysis{
		Laps:         map[string]datatypes.LapAnalysis{},
		TotalLaps:    totalLaps,
		Completeness: score,
	}
}

func TestEvaluatorThresholdSensitivity(t *testing.T) {
	ev := NewEvaluator()

	// The same 0.72 score passes a pace query (0.65) and fails a
	// telemetry query (0.8).
	processed := processedWithScore(0.72, 60)

	pace := ev.Evaluate(processed, understandingFor(datatypes.QueryPace), 0)
	assert.True(t, pace.Sufficient)
	assert.Equal(t, 0.65, pace.Threshold)
	assert.Empty(t, pace.Feedback)

	telemetry := ev.Evaluate(processed, understandingFor(datatypes.QueryTelemetry), 0)
	assert.False(t, telemetry.Sufficient)
	assert.Equal(t, 0.8, telemetry.Threshold)
	assert.NotEmpty(t, telemetry.Feedback)
}

func TestEvaluatorThresholds(t *testing.T) {
	ev := NewEvaluator()
	cases := []struct {
		qt   datatypes.QueryType
		want float64
	}{
		{datatypes.QueryTelemetry, 0.8},
		{datatypes.QueryComparison, 0.75},
		{datatypes.QueryStrategy, 0.7},
		{datatypes.QueryPace, 0.65},
		{datatypes.QueryIncident, 0.6},
		{datatypes.QueryHistorical, 0.5},
		{datatypes.QueryPrediction, 0.5},
		{datatypes.QueryWhatIf, 0.5},
		{datatypes.QueryGeneral, 0.5},
		{datatypes.QueryType("unheard_of"), 0.7},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ev.Threshold(tc.qt), "threshold for %s", tc.qt)
	}
}

func TestEvaluatorIterationCap(t *testing.T) {
	ev := NewEvaluator()
	processed := processedWithScore(0.1, 5)
	u := understandingFor(datatypes.QueryComparison, "VER", "HAM")

	first := ev.Evaluate(processed, u, 0)
	assert.False(t, first.Sufficient)

	second := ev.Evaluate(processed, u, 1)
	assert.False(t, second.Sufficient)

	// At the cap the verdict flips regardless of score.
	capped := ev.Evaluate(processed, u, MaxIterations)
	assert.True(t, capped.Sufficient)
	assert.Contains(t, capped.Feedback, "iteration cap")
}

func TestEvaluatorFeedbackNoData(t *testing.T) {
	ev := NewEvaluator()
	u := understandingFor(datatypes.QueryComparison, "VER", "HAM")

	result := ev.Evaluate(processedWithScore(0, 0), u, 0)
	assert.False(t, result.Sufficient)
	assert.Contains(t, result.Feedback, "No data retrieved")

	nilResult := ev.Evaluate(nil, u, 0)
	assert.False(t, nilResult.Sufficient)
	assert.Contains(t, nilResult.Feedback, "No data retrieved")
}

func TestEvaluatorFeedbackComposition(t *testing.T) {
	ev := NewEvaluator()
	u := understandingFor(datatypes.QueryComparison, "VER", "HAM")

	processed := &datatypes.ProcessedAnalysis{
		Laps: map[string]datatypes.LapAnalysis{
			"VER": {Driver: "VER", LapCount: 30},
		},
		TotalLaps:    30,
		Completeness: 0.4,
		MissingData:  []string{"laps_HAM (database unreachable)"},
	}

	result := ev.Evaluate(processed, u, 0)
	assert.False(t, result.Sufficient)
	assert.Contains(t, result.Feedback, "laps_HAM")
	assert.Contains(t, result.Feedback, "Only 30 laps")
	assert.Contains(t, result.Feedback, "VER, HAM")
}

func TestEvaluatorFeedbackStrategyStints(t *testing.T) {
	ev := NewEvaluator()
	u := understandingFor(datatypes.QueryStrategy, "LEC")

	processed := &datatypes.ProcessedAnalysis{
		Laps:         map[string]datatypes.LapAnalysis{"LEC": {Driver: "LEC", LapCount: 55}},
		TotalLaps:    55,
		Completeness: 0.6,
	}
	result := ev.Evaluate(processed, u, 0)
	assert.False(t, result.Sufficient)
	assert.True(t, strings.Contains(result.Feedback, "stint"),
		"strategy feedback should mention stints, got: %s", result.Feedback)
}

func TestEvaluatorGenericFallbackFeedback(t *testing.T) {
	ev := NewEvaluator()
	u := understandingFor(datatypes.QueryTelemetry, "VER")

	processed := &datatypes.ProcessedAnalysis{
		Laps:         map[string]datatypes.LapAnalysis{"VER": {Driver: "VER", LapCount: 57}},
		TotalLaps:    57,
		Completeness: 0.7,
	}
	result := ev.Evaluate(processed, u, 0)
	assert.False(t, result.Sufficient)
	assert.Contains(t, result.Feedback, "0.70")
	assert.Contains(t, result.Feedback, "0.80")
}
