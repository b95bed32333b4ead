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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pitwall-ai/pitwall/services/orchestrator/datatypes"
)

// raceLaps builds a plausible stint of laps with linear degradation.
func raceLaps(driver string, firstLap, count int, base float64, degradation float64, stint int) []datatypes.LapRecord {
	laps := make([]datatypes.LapRecord, count)
	for i := 0; i < count; i++ {
		laps[i] = datatypes.LapRecord{
			Driver:         driver,
			Lap:            firstLap + i,
			LapTimeSeconds: base + degradation*float64(i),
			Sector1:        28.0,
			Sector2:        31.0,
			Sector3:        base - 60.0,
			Stint:          stint,
			Compound:       "medium",
		}
	}
	return laps
}

func TestProcessResultsComparison(t *testing.T) {
	verLaps := append(raceLaps("VER", 1, 28, 80.0, 0.05, 1),
		raceLaps("VER", 29, 28, 79.5, 0.06, 2)...)
	hamLaps := append(raceLaps("HAM", 1, 28, 80.4, 0.05, 1),
		raceLaps("HAM", 29, 28, 79.9, 0.06, 2)...)

	raw := map[string]any{
		"laps_VER": verLaps,
		"laps_HAM": hamLaps,
	}
	u := understandingFor(datatypes.QueryComparison, "VER", "HAM")

	p := ProcessResults(raw, u)
	require.NotNil(t, p)
	assert.Equal(t, 112, p.TotalLaps)
	require.Contains(t, p.Laps, "VER")
	require.Contains(t, p.Laps, "HAM")

	ver := p.Laps["VER"]
	assert.Equal(t, 56, ver.LapCount)
	assert.InDelta(t, 79.5, ver.FastestTime, 0.001)
	assert.Equal(t, 29, ver.FastestLap)
	assert.Greater(t, ver.AverageTime, ver.FastestTime)
	assert.Greater(t, ver.StdDev, 0.0)
	assert.InDelta(t, 28.0+31.0+19.5, ver.TheoreticalBest, 0.001)

	require.Len(t, p.Comparisons, 1)
	cmp := p.Comparisons[0]
	assert.Equal(t, "VER", cmp.DriverA)
	assert.Equal(t, "HAM", cmp.DriverB)
	assert.InDelta(t, 0.4, cmp.FastestGap, 0.001)
	assert.Contains(t, cmp.Summary, "VER")

	// Both drivers present, plenty of laps, comparisons computed, no
	// failures: completeness must be essentially full.
	assert.GreaterOrEqual(t, p.Completeness, 0.95)
	assert.Equal(t, "gap_bar", p.RecommendedVisual)
	assert.NotEmpty(t, p.Insights)
}

func TestProcessResultsStintDegradation(t *testing.T) {
	raw := map[string]any{
		"laps_LEC": raceLaps("LEC", 1, 20, 81.0, 0.08, 1),
	}
	u := understandingFor(datatypes.QueryStrategy, "LEC")

	p := ProcessResults(raw, u)
	require.Len(t, p.Stints, 1)
	stint := p.Stints[0]
	assert.Equal(t, "LEC", stint.Driver)
	assert.Equal(t, 1, stint.Stint)
	assert.Equal(t, 20, stint.Laps)
	assert.Equal(t, "medium", stint.Compound)
	assert.InDelta(t, 0.08, stint.DegradationPerLap, 0.001)
	assert.Equal(t, "stint_boxes", p.RecommendedVisual)
}

func TestProcessResultsErrorMarkers(t *testing.T) {
	raw := map[string]any{
		"laps_VER": raceLaps("VER", 1, 30, 80.0, 0.05, 1),
		"laps_HAM": ErrorMarker("influx timeout"),
	}
	u := understandingFor(datatypes.QueryComparison, "VER", "HAM")

	p := ProcessResults(raw, u)
	require.Len(t, p.MissingData, 1)
	assert.Contains(t, p.MissingData[0], "laps_HAM")
	assert.Contains(t, p.MissingData[0], "influx timeout")
	assert.Empty(t, p.Comparisons, "one driver cannot be compared")
	assert.Less(t, p.Completeness, 0.75)
}

func TestProcessResultsEmpty(t *testing.T) {
	u := understandingFor(datatypes.QueryComparison, "VER", "HAM")

	p := ProcessResults(map[string]any{
		"laps_VER": []datatypes.LapRecord{},
		"laps_HAM": []datatypes.LapRecord{},
	}, u)
	assert.Equal(t, 0, p.TotalLaps)
	assert.Empty(t, p.Laps)
	assert.Equal(t, 0.0, p.Completeness)
	assert.Equal(t, "none", p.RecommendedVisual)
}

func TestProcessResultsAfterJSONRoundTrip(t *testing.T) {
	// Session stores round-trip raw results through JSON; lap records
	// come back as []any of maps and must still aggregate.
	raw := map[string]any{
		"laps_VER": []any{
			map[string]any{"driver": "VER", "lap": float64(1), "lap_time_seconds": 80.1},
			map[string]any{"driver": "VER", "lap": float64(2), "lap_time_seconds": 79.9},
		},
	}
	p := ProcessResults(raw, understandingFor(datatypes.QueryPace, "VER"))
	require.Contains(t, p.Laps, "VER")
	assert.Equal(t, 2, p.Laps["VER"].LapCount)
	assert.InDelta(t, 79.9, p.Laps["VER"].FastestTime, 0.001)
}

func TestProcessResultsSkipsUntimedLaps(t *testing.T) {
	raw := map[string]any{
		"laps_VER": []datatypes.LapRecord{
			{Driver: "VER", Lap: 1, LapTimeSeconds: 80.0},
			{Driver: "VER", Lap: 2, LapTimeSeconds: 0}, // red flag in-lap
			{Driver: "", Lap: 3, LapTimeSeconds: 81.0}, // no driver attribution
		},
	}
	p := ProcessResults(raw, nil)
	require.Contains(t, p.Laps, "VER")
	assert.Equal(t, 1, p.Laps["VER"].LapCount)
}
