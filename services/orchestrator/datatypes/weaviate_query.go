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

import (
	"encoding/json"
	"fmt"

	"github.com/weaviate/weaviate/entities/models"
)

// =============================================================================
// Generic GraphQL Response Parser
// =============================================================================

// ParseGraphQLResponse parses a Weaviate GraphQL response into the target type.
//
// # Description
//
// This generic function encapsulates the marshal/unmarshal pattern required to
// convert Weaviate's dynamic response (map[string]models.JSONObject) into a
// strongly-typed Go struct. The target type T must have json tags matching
// the expected response shape.
//
// # Inputs
//
//   - resp: The GraphQL response from Weaviate client's Do() method.
//
// # Outputs
//
//   - *T: Pointer to the parsed struct.
//   - error: Non-nil if response is nil or parsing fails.
//
// # Limitations
//
//   - Type mismatches result in zero values, not errors.
func ParseGraphQLResponse[T any](resp *models.GraphQLResponse) (*T, error) {
	if resp == nil {
		return nil, fmt.Errorf("nil GraphQL response")
	}

	respBytes, err := json.Marshal(resp.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal GraphQL response data: %w", err)
	}

	var result T
	if err := json.Unmarshal(respBytes, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal into target type: %w", err)
	}

	return &result, nil
}

// =============================================================================
// Hybrid Search
// =============================================================================

// SearchHit is one hybrid-search result, normalized across collections.
type SearchHit struct {
	Collection string  `json:"collection"`
	Content    string  `json:"content"`
	Source     string  `json:"source,omitempty"`
	Score      float64 `json:"score"`
}

// RaceDocumentQueryResponse is the response shape for RaceDocument queries.
type RaceDocumentQueryResponse struct {
	Get struct {
		RaceDocument []RaceDocumentResult `json:"RaceDocument"`
	} `json:"Get"`
}

// RaceDocumentResult is a single RaceDocument from a hybrid query.
type RaceDocumentResult struct {
	Content    string `json:"content"`
	Source     string `json:"source"`
	Category   string `json:"category"`
	Race       string `json:"race"`
	Year       *int   `json:"year"`
	Additional struct {
		ID    string   `json:"id"`
		Score *string  `json:"score"`
		Dist  *float32 `json:"distance"`
	} `json:"_additional"`
}

// AgentSessionQueryResponse is the response shape for AgentSession queries.
type AgentSessionQueryResponse struct {
	Get struct {
		AgentSession []AgentSessionResult `json:"AgentSession"`
	} `json:"Get"`
}

// AgentSessionResult is a single persisted session from a query.
type AgentSessionResult struct {
	SessionID  string `json:"session_id"`
	State      string `json:"state"`
	UpdatedAt  int64  `json:"updated_at"`
	Additional struct {
		ID string `json:"id"`
	} `json:"_additional"`
}

// =============================================================================
// Property Structs
// =============================================================================

// RaceDocumentProperties represents the properties for creating a
// RaceDocument object.
type RaceDocumentProperties struct {
	Content  string `json:"content"`
	Source   string `json:"source"`
	Category string `json:"category"`
	Race     string `json:"race"`
	Year     int    `json:"year"`
}

// ToMap converts RaceDocumentProperties to the map format required by
// Weaviate's WithProperties() method.
func (p *RaceDocumentProperties) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"content":  p.Content,
		"source":   p.Source,
		"category": p.Category,
		"race":     p.Race,
		"year":     p.Year,
	}
}

// AgentSessionProperties represents the properties for persisting a
// pipeline session. State holds the JSON-serialized PipelineState.
type AgentSessionProperties struct {
	SessionID string `json:"session_id"`
	State     string `json:"state"`
	UpdatedAt int64  `json:"updated_at"`
}

// ToMap converts AgentSessionProperties to the map format required by
// Weaviate's WithProperties() method.
func (p *AgentSessionProperties) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"session_id": p.SessionID,
		"state":      p.State,
		"updated_at": p.UpdatedAt,
	}
}
