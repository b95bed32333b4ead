// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides metrics and instrumentation for the
// orchestrator.
//
// # Description
//
// This package implements Prometheus metrics for monitoring agent
// pipeline turns. Metrics include:
//   - Turn counters (by final status)
//   - Stage latency histograms
//   - Provider fallback and tool error counters
//   - Re-planning iteration histograms
//   - Active turn gauges
//
// # Integration
//
// Metrics are exposed via /metrics endpoint. Use with Prometheus + Grafana
// for dashboards and alerting.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal locking.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace for all metrics
const metricsNamespace = "pitwall"

// Subsystem for agent pipeline metrics
const agentSubsystem = "agent"

// AgentMetrics holds all Prometheus metrics for pipeline turns.
// Initialize once at startup via InitMetrics().
type AgentMetrics struct {
	// TurnsTotal counts completed turns by final status.
	// Labels: status (success, degraded, error)
	TurnsTotal *prometheus.CounterVec

	// StageDurationSeconds measures wall time per pipeline stage.
	// Labels: stage (understand, plan, execute, ...)
	StageDurationSeconds *prometheus.HistogramVec

	// ProviderFallbacksTotal counts requests served by a backend other
	// than the primary. Labels: provider
	ProviderFallbacksTotal *prometheus.CounterVec

	// ToolErrorsTotal counts failed tool calls. Labels: tool
	ToolErrorsTotal *prometheus.CounterVec

	// PlanIterations measures re-planning rounds per turn.
	PlanIterations prometheus.Histogram

	// ActiveTurns tracks turns currently in flight.
	ActiveTurns prometheus.Gauge
}

// DefaultMetrics is the singleton instance of AgentMetrics.
// Initialized by InitMetrics().
var DefaultMetrics *AgentMetrics

// InitMetrics creates and registers all Prometheus metrics. Call once at
// application startup; a second call panics on duplicate registration.
func InitMetrics() *AgentMetrics {
	DefaultMetrics = &AgentMetrics{
		TurnsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: agentSubsystem,
				Name:      "turns_total",
				Help:      "Total completed pipeline turns by final status",
			},
			[]string{"status"},
		),

		StageDurationSeconds: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: agentSubsystem,
				Name:      "stage_duration_seconds",
				Help:      "Wall time spent in each pipeline stage",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0},
			},
			[]string{"stage"},
		),

		ProviderFallbacksTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: agentSubsystem,
				Name:      "provider_fallbacks_total",
				Help:      "Requests served by a non-primary LLM backend",
			},
			[]string{"provider"},
		),

		ToolErrorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: agentSubsystem,
				Name:      "tool_errors_total",
				Help:      "Failed tool calls by tool name",
			},
			[]string{"tool"},
		),

		PlanIterations: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: agentSubsystem,
				Name:      "plan_iterations",
				Help:      "Re-planning rounds taken per turn",
				Buckets:   []float64{0, 1, 2},
			},
		),

		ActiveTurns: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: agentSubsystem,
				Name:      "active_turns",
				Help:      "Pipeline turns currently in flight",
			},
		),
	}

	return DefaultMetrics
}

// TurnStatus labels a completed turn for TurnsTotal.
type TurnStatus string

const (
	TurnSuccess  TurnStatus = "success"
	TurnDegraded TurnStatus = "degraded"
	TurnError    TurnStatus = "error"
)

// RecordTurn records a completed turn.
func (m *AgentMetrics) RecordTurn(status TurnStatus) {
	m.TurnsTotal.WithLabelValues(string(status)).Inc()
}

// ObserveStage records the wall time of one stage execution.
func (m *AgentMetrics) ObserveStage(stage string, seconds float64) {
	m.StageDurationSeconds.WithLabelValues(stage).Observe(seconds)
}

// RecordFallback records a request served by a non-primary backend.
func (m *AgentMetrics) RecordFallback(provider string) {
	m.ProviderFallbacksTotal.WithLabelValues(provider).Inc()
}

// RecordToolError records a failed tool call.
func (m *AgentMetrics) RecordToolError(tool string) {
	m.ToolErrorsTotal.WithLabelValues(tool).Inc()
}

// ObserveIterations records the re-planning rounds a turn took.
func (m *AgentMetrics) ObserveIterations(n int) {
	m.PlanIterations.Observe(float64(n))
}

// TurnStarted increments the in-flight gauge.
func (m *AgentMetrics) TurnStarted() { m.ActiveTurns.Inc() }

// TurnEnded decrements the in-flight gauge.
func (m *AgentMetrics) TurnEnded() { m.ActiveTurns.Dec() }
