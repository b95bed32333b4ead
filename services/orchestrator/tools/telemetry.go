// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package tools implements the retrieval tools the planner can schedule:
// telemetry queries against InfluxDB, entity lookups against the graph
// service, and document search against Weaviate.
package tools

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/influxdata/influxdb-client-go/v2/api"
	"go.opentelemetry.io/otel"

	"github.com/pitwall-ai/pitwall/pkg/validation"
	"github.com/pitwall-ai/pitwall/services/orchestrator/agent"
	"github.com/pitwall-ai/pitwall/services/orchestrator/datatypes"
)

var telemetryTracer = otel.Tracer("pitwall.tools.telemetry")

const (
	lapMeasurement     = "lap_times"
	resultsMeasurement = "session_results"
)

// TelemetryTools answers lap time, classification, and stint questions
// from the timing bucket. Driver and race parameters come from LLM
// output and are validated before they reach a Flux query.
type TelemetryTools struct {
	queryAPI api.QueryAPI
	bucket   string
}

func NewTelemetryTools(queryAPI api.QueryAPI, bucket string) *TelemetryTools {
	return &TelemetryTools{queryAPI: queryAPI, bucket: bucket}
}

// Register adds the telemetry tools to the registry.
func (t *TelemetryTools) Register(r *agent.Registry) error {
	tools := []agent.Tool{
		{
			Name:        "get_lap_times",
			Description: "Per-lap times and sector splits for one driver in one race",
			Params: []agent.ParamSpec{
				{Name: "driver", Type: "string", Required: true, Description: "three-letter driver code"},
				{Name: "race", Type: "string", Description: "event name"},
				{Name: "year", Type: "int", Description: "season year"},
				{Name: "lap_start", Type: "int", Description: "first lap to include"},
				{Name: "lap_end", Type: "int", Description: "last lap to include"},
			},
			Run: t.getLapTimes,
		},
		{
			Name:        "get_session_results",
			Description: "Final classification for a session: positions, points, status",
			Params: []agent.ParamSpec{
				{Name: "race", Type: "string", Description: "event name"},
				{Name: "year", Type: "int", Description: "season year"},
			},
			Run: t.getSessionResults,
		},
		{
			Name:        "get_stint_summary",
			Description: "Per-stint lap counts, compounds, and tyre degradation for one driver",
			Params: []agent.ParamSpec{
				{Name: "driver", Type: "string", Required: true, Description: "three-letter driver code"},
				{Name: "race", Type: "string", Description: "event name"},
				{Name: "year", Type: "int", Description: "season year"},
			},
			Run: t.getStintSummary,
		},
	}
	for _, tool := range tools {
		if err := r.Register(tool); err != nil {
			return err
		}
	}
	return nil
}

func (t *TelemetryTools) getLapTimes(ctx context.Context, params map[string]any) (any, error) {
	ctx, span := telemetryTracer.Start(ctx, "TelemetryTools.getLapTimes")
	defer span.End()

	driver, race, year, err := lapScope(params)
	if err != nil {
		return nil, err
	}

	laps, err := t.fetchLaps(ctx, driver, race, year)
	if err != nil {
		return nil, err
	}

	if start, ok := intParam(params, "lap_start"); ok {
		laps = filterLaps(laps, func(l datatypes.LapRecord) bool { return l.Lap >= start })
	}
	if end, ok := intParam(params, "lap_end"); ok {
		laps = filterLaps(laps, func(l datatypes.LapRecord) bool { return l.Lap <= end })
	}

	slog.Debug("Fetched lap times", "driver", driver, "race", race, "year", year, "laps", len(laps))
	return laps, nil
}

func (t *TelemetryTools) getSessionResults(ctx context.Context, params map[string]any) (any, error) {
	ctx, span := telemetryTracer.Start(ctx, "TelemetryTools.getSessionResults")
	defer span.End()

	race, year, err := sessionScope(params)
	if err != nil {
		return nil, err
	}

	query := t.resultsQuery(race, year)
	result, err := t.queryAPI.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("influx query failed: %w", err)
	}

	var results []datatypes.SessionResult
	for result.Next() {
		values := result.Record().Values()
		results = append(results, datatypes.SessionResult{
			Driver:       asString(values["driver"]),
			Position:     asInt(values["position"]),
			GridPosition: asInt(values["grid_position"]),
			Points:       asFloat(values["points"]),
			Status:       asString(values["status"]),
			LapsDone:     asInt(values["laps_done"]),
		})
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("influx result error: %w", err)
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Position < results[j].Position })
	slog.Debug("Fetched session results", "race", race, "year", year, "drivers", len(results))
	return results, nil
}

func (t *TelemetryTools) getStintSummary(ctx context.Context, params map[string]any) (any, error) {
	ctx, span := telemetryTracer.Start(ctx, "TelemetryTools.getStintSummary")
	defer span.End()

	driver, race, year, err := lapScope(params)
	if err != nil {
		return nil, err
	}

	laps, err := t.fetchLaps(ctx, driver, race, year)
	if err != nil {
		return nil, err
	}
	return SummarizeStints(laps), nil
}

// fetchLaps runs the pivoted lap query and decodes the result rows.
func (t *TelemetryTools) fetchLaps(ctx context.Context, driver, race string, year int) ([]datatypes.LapRecord, error) {
	result, err := t.queryAPI.Query(ctx, t.lapQuery(driver, race, year))
	if err != nil {
		return nil, fmt.Errorf("influx query failed: %w", err)
	}

	var laps []datatypes.LapRecord
	for result.Next() {
		laps = append(laps, LapFromFluxValues(result.Record().Values()))
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("influx result error: %w", err)
	}

	sort.Slice(laps, func(i, j int) bool { return laps[i].Lap < laps[j].Lap })
	return laps, nil
}

// lapQuery builds the Flux query for one driver's laps. Inputs have
// been validated; %q interpolation keeps the string literals closed.
func (t *TelemetryTools) lapQuery(driver, race string, year int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "from(bucket: %q)\n", t.bucket)
	b.WriteString("  |> range(start: 0)\n")
	fmt.Fprintf(&b, "  |> filter(fn: (r) => r._measurement == %q)\n", lapMeasurement)
	fmt.Fprintf(&b, "  |> filter(fn: (r) => r.driver == %q)\n", driver)
	if race != "" {
		fmt.Fprintf(&b, "  |> filter(fn: (r) => r.race == %q)\n", race)
	}
	if year > 0 {
		fmt.Fprintf(&b, "  |> filter(fn: (r) => r.year == %q)\n", strconv.Itoa(year))
	}
	b.WriteString("  |> pivot(rowKey: [\"_time\"], columnKey: [\"_field\"], valueColumn: \"_value\")\n")
	b.WriteString("  |> sort(columns: [\"_time\"])")
	return b.String()
}

func (t *TelemetryTools) resultsQuery(race string, year int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "from(bucket: %q)\n", t.bucket)
	b.WriteString("  |> range(start: 0)\n")
	fmt.Fprintf(&b, "  |> filter(fn: (r) => r._measurement == %q)\n", resultsMeasurement)
	if race != "" {
		fmt.Fprintf(&b, "  |> filter(fn: (r) => r.race == %q)\n", race)
	}
	if year > 0 {
		fmt.Fprintf(&b, "  |> filter(fn: (r) => r.year == %q)\n", strconv.Itoa(year))
	}
	b.WriteString("  |> pivot(rowKey: [\"_time\"], columnKey: [\"_field\"], valueColumn: \"_value\")")
	return b.String()
}

// LapFromFluxValues decodes one pivoted Flux row into a LapRecord. Tags
// arrive as strings and fields keep their stored types; missing columns
// decode to zero values.
func LapFromFluxValues(values map[string]any) datatypes.LapRecord {
	return datatypes.LapRecord{
		Driver:         asString(values["driver"]),
		Lap:            asInt(values["lap"]),
		LapTimeSeconds: asFloat(values["lap_time_seconds"]),
		Sector1:        asFloat(values["sector1"]),
		Sector2:        asFloat(values["sector2"]),
		Sector3:        asFloat(values["sector3"]),
		Stint:          asInt(values["stint"]),
		Compound:       asString(values["compound"]),
		PitIn:          asBool(values["pit_in"]),
		PitOut:         asBool(values["pit_out"]),
		TrackStatus:    asString(values["track_status"]),
	}
}

// SummarizeStints aggregates laps into per-stint summaries with a
// least-squares degradation estimate. Pit laps and untimed laps are
// excluded from the fit.
func SummarizeStints(laps []datatypes.LapRecord) []datatypes.StintSummary {
	byStint := make(map[int][]datatypes.LapRecord)
	for _, lap := range laps {
		if lap.LapTimeSeconds <= 0 || lap.PitIn || lap.PitOut {
			continue
		}
		byStint[lap.Stint] = append(byStint[lap.Stint], lap)
	}

	stints := make([]int, 0, len(byStint))
	for stint := range byStint {
		stints = append(stints, stint)
	}
	sort.Ints(stints)

	summaries := make([]datatypes.StintSummary, 0, len(stints))
	for _, stint := range stints {
		group := byStint[stint]
		var sum float64
		for _, lap := range group {
			sum += lap.LapTimeSeconds
		}
		summaries = append(summaries, datatypes.StintSummary{
			Driver:            group[0].Driver,
			Stint:             stint,
			Compound:          group[0].Compound,
			Laps:              len(group),
			AverageTime:       sum / float64(len(group)),
			DegradationPerLap: lapTimeSlope(group),
		})
	}
	return summaries
}

// lapTimeSlope fits lap time against lap number. Fewer than three laps
// is too little signal for a degradation estimate.
func lapTimeSlope(laps []datatypes.LapRecord) float64 {
	if len(laps) < 3 {
		return 0
	}
	var sumX, sumY, sumXY, sumXX float64
	for _, lap := range laps {
		x := float64(lap.Lap)
		y := lap.LapTimeSeconds
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}
	n := float64(len(laps))
	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0
	}
	return (n*sumXY - sumX*sumY) / denom
}

// lapScope validates the driver/race/year parameters shared by the lap
// oriented tools.
func lapScope(params map[string]any) (driver, race string, year int, err error) {
	driver, err = validation.SanitizeDriverCode(stringParam(params, "driver"))
	if err != nil {
		return "", "", 0, err
	}
	race, year, err = sessionScope(params)
	if err != nil {
		return "", "", 0, err
	}
	return driver, race, year, nil
}

func sessionScope(params map[string]any) (race string, year int, err error) {
	race = stringParam(params, "race")
	if race != "" {
		race, err = validation.SanitizeRaceName(race)
		if err != nil {
			return "", 0, err
		}
	}
	if y, ok := intParam(params, "year"); ok {
		if err := validation.ValidateSeasonYear(y); err != nil {
			return "", 0, err
		}
		year = y
	}
	return race, year, nil
}

func filterLaps(laps []datatypes.LapRecord, keep func(datatypes.LapRecord) bool) []datatypes.LapRecord {
	out := laps[:0]
	for _, lap := range laps {
		if keep(lap) {
			out = append(out, lap)
		}
	}
	return out
}

func stringParam(params map[string]any, key string) string {
	v, _ := params[key].(string)
	return strings.TrimSpace(v)
}

// intParam accepts native ints and the float64 form JSON decoding
// produces, rejecting fractional values.
func intParam(params map[string]any, key string) (int, bool) {
	switch v := params[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		if v == float64(int(v)) {
			return int(v), true
		}
	}
	return 0, false
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asInt(v any) int {
	switch n := v.(type) {
	case int64:
		return int(n)
	case int:
		return n
	case float64:
		return int(n)
	}
	return 0
}

func asFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	case int:
		return float64(n)
	}
	return 0
}

func asBool(v any) bool {
	b, _ := v.(bool)
	return b
}
