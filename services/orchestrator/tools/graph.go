// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/pitwall-ai/pitwall/pkg/validation"
	"github.com/pitwall-ai/pitwall/services/orchestrator/agent"
)

var graphTracer = otel.Tracer("pitwall.tools.graph")

// HTTPClient interface for testing
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// GraphTools looks up structured entities (drivers, races, comparable
// past situations) from the graph service over HTTP.
type GraphTools struct {
	baseURL string
	client  HTTPClient
}

// NewGraphTools creates graph tools against the given base URL. A nil
// client gets a default with a 15 second timeout.
func NewGraphTools(baseURL string, client HTTPClient) *GraphTools {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &GraphTools{baseURL: baseURL, client: client}
}

// Register adds the graph lookup tools to the registry.
func (g *GraphTools) Register(r *agent.Registry) error {
	tools := []agent.Tool{
		{
			Name:        "get_driver_info",
			Description: "Biography, team, and career summary for one driver",
			Params: []agent.ParamSpec{
				{Name: "driver", Type: "string", Required: true, Description: "three-letter driver code"},
			},
			Run: g.getDriverInfo,
		},
		{
			Name:        "get_race_info",
			Description: "Circuit, weather, and event facts for one race",
			Params: []agent.ParamSpec{
				{Name: "race", Type: "string", Required: true, Description: "event name"},
				{Name: "year", Type: "int", Description: "season year"},
			},
			Run: g.getRaceInfo,
		},
		{
			Name:        "find_similar_situations",
			Description: "Past races or incidents similar to a described situation",
			Params: []agent.ParamSpec{
				{Name: "description", Type: "string", Required: true, Description: "the situation to match"},
				{Name: "limit", Type: "int", Description: "maximum matches, default 5"},
			},
			Run: g.findSimilarSituations,
		},
	}
	for _, tool := range tools {
		if err := r.Register(tool); err != nil {
			return err
		}
	}
	return nil
}

func (g *GraphTools) getDriverInfo(ctx context.Context, params map[string]any) (any, error) {
	driver, err := validation.SanitizeDriverCode(stringParam(params, "driver"))
	if err != nil {
		return nil, err
	}
	var payload map[string]any
	if err := g.getJSON(ctx, "/v1/drivers/"+url.PathEscape(driver), nil, &payload); err != nil {
		return nil, err
	}
	return payload, nil
}

func (g *GraphTools) getRaceInfo(ctx context.Context, params map[string]any) (any, error) {
	race, year, err := sessionScope(params)
	if err != nil {
		return nil, err
	}
	if race == "" {
		return nil, fmt.Errorf("race parameter is required")
	}

	query := url.Values{"name": {race}}
	if year > 0 {
		query.Set("year", strconv.Itoa(year))
	}
	var payload map[string]any
	if err := g.getJSON(ctx, "/v1/races", query, &payload); err != nil {
		return nil, err
	}
	return payload, nil
}

func (g *GraphTools) findSimilarSituations(ctx context.Context, params map[string]any) (any, error) {
	description := stringParam(params, "description")
	if description == "" {
		return nil, fmt.Errorf("description parameter is required")
	}
	limit, ok := intParam(params, "limit")
	if !ok || limit <= 0 {
		limit = 5
	}

	query := url.Values{"q": {description}, "limit": {strconv.Itoa(limit)}}
	var payload map[string]any
	if err := g.getJSON(ctx, "/v1/situations/similar", query, &payload); err != nil {
		return nil, err
	}
	return payload, nil
}

func (g *GraphTools) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	ctx, span := graphTracer.Start(ctx, "GraphTools.getJSON")
	defer span.End()

	endpoint := g.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("graph service call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("graph service has no entry for %s", path)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("graph service returned status %s: %s", resp.Status, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode graph response: %w", err)
	}
	return nil
}
