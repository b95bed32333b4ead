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
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"github.com/pitwall-ai/pitwall/services/orchestrator/datatypes"
)

// ProcessResults deterministically aggregates raw tool results into a
// ProcessedAnalysis. No model calls happen here; everything downstream
// of this function can trust the numbers.
//
// # Inputs
//
//   - raw: One entry per executed call ID. Values are tool outputs or
//     error markers.
//   - understanding: The interpreted query, used for driver lists,
//     completeness weighting, and the visual recommendation. May be nil.
func ProcessResults(raw map[string]any, understanding *datatypes.QueryUnderstanding) *datatypes.ProcessedAnalysis {
	processed := &datatypes.ProcessedAnalysis{
		Laps: make(map[string]datatypes.LapAnalysis),
	}

	byDriver := make(map[string][]datatypes.LapRecord)

	ids := make([]string, 0, len(raw))
	for id := range raw {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		result := raw[id]
		if msg, failed := IsErrorMarker(result); failed {
			processed.MissingData = append(processed.MissingData,
				fmt.Sprintf("%s (%s)", id, msg))
			continue
		}
		for _, rec := range decodeLapRecords(result) {
			if rec.Driver == "" || rec.LapTimeSeconds <= 0 {
				continue
			}
			byDriver[rec.Driver] = append(byDriver[rec.Driver], rec)
		}
	}

	for driver, laps := range byDriver {
		processed.Laps[driver] = analyzeLaps(driver, laps)
		processed.TotalLaps += len(laps)
		processed.Stints = append(processed.Stints, summarizeStints(driver, laps)...)
	}
	sort.Slice(processed.Stints, func(i, j int) bool {
		if processed.Stints[i].Driver != processed.Stints[j].Driver {
			return processed.Stints[i].Driver < processed.Stints[j].Driver
		}
		return processed.Stints[i].Stint < processed.Stints[j].Stint
	})

	processed.Comparisons = compareDrivers(processed.Laps, understanding)
	processed.Insights = buildInsights(processed)
	processed.Completeness = completeness(processed, understanding)
	processed.Confidence = confidence(processed.Completeness, understanding)
	processed.RecommendedVisual = recommendVisual(processed, understanding)
	return processed
}

// decodeLapRecords accepts tool output in either its native typed form
// or the loosely-typed form it takes after a JSON round trip through a
// session store.
func decodeLapRecords(result any) []datatypes.LapRecord {
	switch v := result.(type) {
	case []datatypes.LapRecord:
		return v
	case datatypes.LapRecord:
		return []datatypes.LapRecord{v}
	}
	raw, err := json.Marshal(result)
	if err != nil {
		return nil
	}
	var records []datatypes.LapRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil
	}
	return records
}

func analyzeLaps(driver string, laps []datatypes.LapRecord) datatypes.LapAnalysis {
	analysis := datatypes.LapAnalysis{Driver: driver, LapCount: len(laps)}

	times := make([]float64, 0, len(laps))
	for _, lap := range laps {
		times = append(times, lap.LapTimeSeconds)
		if analysis.FastestTime == 0 || lap.LapTimeSeconds < analysis.FastestTime {
			analysis.FastestTime = lap.LapTimeSeconds
			analysis.FastestLap = lap.Lap
		}
		if lap.Sector1 > 0 && (analysis.BestSector1 == 0 || lap.Sector1 < analysis.BestSector1) {
			analysis.BestSector1 = lap.Sector1
		}
		if lap.Sector2 > 0 && (analysis.BestSector2 == 0 || lap.Sector2 < analysis.BestSector2) {
			analysis.BestSector2 = lap.Sector2
		}
		if lap.Sector3 > 0 && (analysis.BestSector3 == 0 || lap.Sector3 < analysis.BestSector3) {
			analysis.BestSector3 = lap.Sector3
		}
	}
	analysis.AverageTime = mean(times)
	analysis.StdDev = stdDev(times)
	if analysis.BestSector1 > 0 && analysis.BestSector2 > 0 && analysis.BestSector3 > 0 {
		analysis.TheoreticalBest = analysis.BestSector1 + analysis.BestSector2 + analysis.BestSector3
	}
	return analysis
}

// summarizeStints groups a driver's laps by stint number and fits a
// linear degradation slope per stint. Laps without stint metadata are
// ignored here; they still count toward lap analysis.
func summarizeStints(driver string, laps []datatypes.LapRecord) []datatypes.StintSummary {
	byStint := make(map[int][]datatypes.LapRecord)
	for _, lap := range laps {
		if lap.Stint > 0 && !lap.PitIn && !lap.PitOut {
			byStint[lap.Stint] = append(byStint[lap.Stint], lap)
		}
	}

	stints := make([]int, 0, len(byStint))
	for stint := range byStint {
		stints = append(stints, stint)
	}
	sort.Ints(stints)

	var summaries []datatypes.StintSummary
	for _, stint := range stints {
		stintLaps := byStint[stint]
		sort.Slice(stintLaps, func(i, j int) bool { return stintLaps[i].Lap < stintLaps[j].Lap })
		times := make([]float64, len(stintLaps))
		for i, lap := range stintLaps {
			times[i] = lap.LapTimeSeconds
		}
		summaries = append(summaries, datatypes.StintSummary{
			Driver:            driver,
			Stint:             stint,
			Compound:          stintLaps[0].Compound,
			Laps:              len(stintLaps),
			AverageTime:       mean(times),
			DegradationPerLap: slope(times),
		})
	}
	return summaries
}

// compareDrivers builds pairwise gaps. The pair order follows the
// requested driver list when one exists, otherwise sorted driver codes.
func compareDrivers(analyses map[string]datatypes.LapAnalysis,
	understanding *datatypes.QueryUnderstanding) []datatypes.DriverComparison {

	var drivers []string
	if understanding != nil && len(understanding.Drivers) > 0 {
		for _, d := range understanding.Drivers {
			if _, ok := analyses[d]; ok {
				drivers = append(drivers, d)
			}
		}
	} else {
		for d := range analyses {
			drivers = append(drivers, d)
		}
		sort.Strings(drivers)
	}
	if len(drivers) < 2 {
		return nil
	}

	var comparisons []datatypes.DriverComparison
	for i := 0; i < len(drivers); i++ {
		for j := i + 1; j < len(drivers); j++ {
			a, b := analyses[drivers[i]], analyses[drivers[j]]
			cmp := datatypes.DriverComparison{
				DriverA:    a.Driver,
				DriverB:    b.Driver,
				FastestGap: b.FastestTime - a.FastestTime,
				AverageGap: b.AverageTime - a.AverageTime,
			}
			faster := a.Driver
			gap := cmp.AverageGap
			if gap < 0 {
				faster = b.Driver
				gap = -gap
			}
			cmp.Summary = fmt.Sprintf("%s was %.3fs per lap faster on average", faster, gap)
			comparisons = append(comparisons, cmp)
		}
	}
	return comparisons
}

func buildInsights(p *datatypes.ProcessedAnalysis) []string {
	var insights []string

	var fastest datatypes.LapAnalysis
	for _, a := range p.Laps {
		if fastest.FastestTime == 0 || (a.FastestTime > 0 && a.FastestTime < fastest.FastestTime) {
			fastest = a
		}
	}
	if fastest.Driver != "" {
		insights = append(insights, fmt.Sprintf(
			"Fastest lap in the data set: %s, %.3fs on lap %d.",
			fastest.Driver, fastest.FastestTime, fastest.FastestLap))
	}

	var worstStint *datatypes.StintSummary
	for i := range p.Stints {
		s := &p.Stints[i]
		if s.Laps >= 5 && (worstStint == nil || s.DegradationPerLap > worstStint.DegradationPerLap) {
			worstStint = s
		}
	}
	if worstStint != nil && worstStint.DegradationPerLap > 0.05 {
		insights = append(insights, fmt.Sprintf(
			"Highest degradation: %s stint %d at %.3fs per lap.",
			worstStint.Driver, worstStint.Stint, worstStint.DegradationPerLap))
	}

	for _, c := range p.Comparisons {
		insights = append(insights, c.Summary)
	}
	return insights
}

// completeness scores how much of the requested data actually arrived.
//
// Components: drivers covered (0.4), lap volume against a 50-lap target
// (0.3), a query-type specific component (0.2), and clean execution with
// no failed calls (0.1).
func completeness(p *datatypes.ProcessedAnalysis, understanding *datatypes.QueryUnderstanding) float64 {
	score := 0.0

	if understanding != nil && len(understanding.Drivers) > 0 {
		found := 0
		for _, d := range understanding.Drivers {
			if _, ok := p.Laps[d]; ok {
				found++
			}
		}
		score += 0.4 * float64(found) / float64(len(understanding.Drivers))
	} else if len(p.Laps) > 0 {
		score += 0.4
	}

	score += 0.3 * math.Min(float64(p.TotalLaps)/50.0, 1.0)

	qt := datatypes.QueryGeneral
	if understanding != nil {
		qt = understanding.QueryType
	}
	switch qt {
	case datatypes.QueryComparison:
		if len(p.Comparisons) > 0 {
			score += 0.2
		}
	case datatypes.QueryStrategy:
		if len(p.Stints) > 0 {
			score += 0.2
		}
	default:
		if p.TotalLaps > 0 {
			score += 0.2
		}
	}

	if len(p.MissingData) == 0 && p.TotalLaps > 0 {
		score += 0.1
	}
	return math.Min(score, 1.0)
}

func confidence(completeness float64, understanding *datatypes.QueryUnderstanding) float64 {
	uConf := 0.5
	if understanding != nil && understanding.Confidence > uConf {
		uConf = understanding.Confidence
	}
	return completeness * uConf
}

func recommendVisual(p *datatypes.ProcessedAnalysis, understanding *datatypes.QueryUnderstanding) string {
	if p.TotalLaps == 0 {
		return "none"
	}
	qt := datatypes.QueryGeneral
	if understanding != nil {
		qt = understanding.QueryType
	}
	switch qt {
	case datatypes.QueryComparison:
		return "gap_bar"
	case datatypes.QueryStrategy:
		return "stint_boxes"
	case datatypes.QueryPace, datatypes.QueryTelemetry:
		return "lap_time_series"
	default:
		return "none"
	}
}

// --- small stats helpers ---

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func stdDev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	m := mean(xs)
	sum := 0.0
	for _, x := range xs {
		sum += (x - m) * (x - m)
	}
	return math.Sqrt(sum / float64(len(xs)-1))
}

// slope fits y = a + b*x over x = 0..n-1 and returns b.
func slope(ys []float64) float64 {
	n := float64(len(ys))
	if n < 2 {
		return 0
	}
	var sumX, sumY, sumXY, sumXX float64
	for i, y := range ys {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}
	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0
	}
	return (n*sumXY - sumX*sumY) / denom
}
