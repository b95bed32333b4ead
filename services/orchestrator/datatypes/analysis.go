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

// LapRecord is one lap of timing data as returned by the telemetry tools.
// Times are seconds. A zero LapTimeSeconds means the lap was not timed
// (in-lap after a red flag, for example) and is excluded from aggregation.
type LapRecord struct {
	Driver         string  `json:"driver"`
	Lap            int     `json:"lap"`
	LapTimeSeconds float64 `json:"lap_time_seconds"`
	Sector1        float64 `json:"sector1,omitempty"`
	Sector2        float64 `json:"sector2,omitempty"`
	Sector3        float64 `json:"sector3,omitempty"`
	Stint          int     `json:"stint,omitempty"`
	Compound       string  `json:"compound,omitempty"`
	PitIn          bool    `json:"pit_in,omitempty"`
	PitOut         bool    `json:"pit_out,omitempty"`
	TrackStatus    string  `json:"track_status,omitempty"`
}

// SessionResult is one driver's final classification for a session.
type SessionResult struct {
	Driver       string  `json:"driver"`
	Position     int     `json:"position"`
	GridPosition int     `json:"grid_position,omitempty"`
	Points       float64 `json:"points,omitempty"`
	Status       string  `json:"status,omitempty"`
	LapsDone     int     `json:"laps_done,omitempty"`
}

// LapAnalysis is the per-driver aggregation computed by the processing stage.
type LapAnalysis struct {
	Driver          string  `json:"driver"`
	LapCount        int     `json:"lap_count"`
	FastestLap      int     `json:"fastest_lap"`
	FastestTime     float64 `json:"fastest_time"`
	AverageTime     float64 `json:"average_time"`
	StdDev          float64 `json:"std_dev"`
	BestSector1     float64 `json:"best_sector1,omitempty"`
	BestSector2     float64 `json:"best_sector2,omitempty"`
	BestSector3     float64 `json:"best_sector3,omitempty"`
	TheoreticalBest float64 `json:"theoretical_best,omitempty"`
}

// StintSummary describes one stint for one driver, with a linear tyre
// degradation estimate in seconds per lap.
type StintSummary struct {
	Driver            string  `json:"driver"`
	Stint             int     `json:"stint"`
	Compound          string  `json:"compound,omitempty"`
	Laps              int     `json:"laps"`
	AverageTime       float64 `json:"average_time"`
	DegradationPerLap float64 `json:"degradation_per_lap"`
}

// DriverComparison is a pairwise gap summary. Positive gaps mean DriverA
// was faster.
type DriverComparison struct {
	DriverA    string  `json:"driver_a"`
	DriverB    string  `json:"driver_b"`
	FastestGap float64 `json:"fastest_gap"`
	AverageGap float64 `json:"average_gap"`
	Summary    string  `json:"summary,omitempty"`
}

// ProcessedAnalysis is the deterministic aggregation of all raw tool
// results for one pipeline iteration. It is the sole input to the
// sufficiency evaluation and the factual backbone of answer generation.
type ProcessedAnalysis struct {
	Laps        map[string]LapAnalysis `json:"lap_analysis"`
	Stints      []StintSummary         `json:"stints,omitempty"`
	Comparisons []DriverComparison     `json:"comparisons,omitempty"`
	Insights    []string               `json:"insights,omitempty"`
	MissingData []string               `json:"missing_data,omitempty"`
	TotalLaps   int                    `json:"total_laps"`
	// Completeness in [0,1] scores how much of the requested data was
	// actually retrieved and aggregated.
	Completeness float64 `json:"completeness"`
	Confidence   float64 `json:"confidence"`
	// RecommendedVisual hints which chart suits the result set
	// ("lap_time_series", "gap_bar", "stint_boxes", "none").
	RecommendedVisual string `json:"recommended_visual,omitempty"`
}

// EvaluationResult is the sufficiency verdict over a ProcessedAnalysis.
type EvaluationResult struct {
	Sufficient bool    `json:"sufficient"`
	Score      float64 `json:"score"`
	Threshold  float64 `json:"threshold"`
	Feedback   string  `json:"feedback,omitempty"`
	Iteration  int     `json:"iteration"`
}

// VisualizationSpec describes a chart the UI can render alongside an answer.
type VisualizationSpec struct {
	Kind   string   `json:"kind"`
	Title  string   `json:"title,omitempty"`
	Series []string `json:"series,omitempty"`
	XLabel string   `json:"x_label,omitempty"`
	YLabel string   `json:"y_label,omitempty"`
}

// Answer is the final product of one pipeline turn.
type Answer struct {
	SessionID  string             `json:"session_id"`
	Text       string             `json:"answer"`
	Confidence float64            `json:"confidence"`
	Degraded   bool               `json:"degraded,omitempty"`
	Provider   string             `json:"provider,omitempty"`
	Iterations int                `json:"iterations"`
	Visual     *VisualizationSpec `json:"visualization,omitempty"`
}
