// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weaviate/weaviate/entities/models"
)

// =============================================================================
// GetRaceDocumentSchema Tests
// =============================================================================

func TestGetRaceDocumentSchema_ReturnsValidClass(t *testing.T) {
	schema := GetRaceDocumentSchema()

	require.NotNil(t, schema)
	assert.Equal(t, "RaceDocument", schema.Class)
	assert.Equal(t, "none", schema.Vectorizer)
}

func TestGetRaceDocumentSchema_HasRequiredProperties(t *testing.T) {
	schema := GetRaceDocumentSchema()

	names := propertyNames(schema)
	for _, want := range []string{"content", "source", "category", "race", "year"} {
		assert.Contains(t, names, want)
	}
}

func TestGetRaceDocumentSchema_CategoryIsFilterable(t *testing.T) {
	schema := GetRaceDocumentSchema()

	prop := findProperty(t, schema, "category")
	require.NotNil(t, prop.IndexFilterable)
	assert.True(t, *prop.IndexFilterable)
	assert.Equal(t, "field", prop.Tokenization)
}

func TestGetRaceDocumentSchema_YearIsInt(t *testing.T) {
	schema := GetRaceDocumentSchema()

	prop := findProperty(t, schema, "year")
	assert.Equal(t, []string{"int"}, prop.DataType)
}

// =============================================================================
// GetAgentSessionSchema Tests
// =============================================================================

func TestGetAgentSessionSchema_ReturnsValidClass(t *testing.T) {
	schema := GetAgentSessionSchema()

	require.NotNil(t, schema)
	assert.Equal(t, "AgentSession", schema.Class)
	assert.Equal(t, "none", schema.Vectorizer)
}

func TestGetAgentSessionSchema_HasRequiredProperties(t *testing.T) {
	schema := GetAgentSessionSchema()

	names := propertyNames(schema)
	for _, want := range []string{"session_id", "state", "updated_at"} {
		assert.Contains(t, names, want)
	}
}

func TestGetAgentSessionSchema_SessionIDIsFilterable(t *testing.T) {
	schema := GetAgentSessionSchema()

	prop := findProperty(t, schema, "session_id")
	require.NotNil(t, prop.IndexFilterable)
	assert.True(t, *prop.IndexFilterable)
}

// =============================================================================
// ParseGraphQLResponse Tests
// =============================================================================

func TestParseGraphQLResponse_NilResponse(t *testing.T) {
	_, err := ParseGraphQLResponse[RaceDocumentQueryResponse](nil)
	assert.Error(t, err)
}

func TestParseGraphQLResponse_RaceDocuments(t *testing.T) {
	score := "0.87"
	resp := &models.GraphQLResponse{
		Data: map[string]models.JSONObject{
			"Get": map[string]any{
				"RaceDocument": []any{
					map[string]any{
						"content":  "Hamilton managed his tyres through the middle stint.",
						"source":   "race-report-2024-silverstone",
						"category": "race_report",
						"race":     "Silverstone",
						"year":     2024,
						"_additional": map[string]any{
							"id":    "abc-123",
							"score": score,
						},
					},
				},
			},
		},
	}

	parsed, err := ParseGraphQLResponse[RaceDocumentQueryResponse](resp)
	require.NoError(t, err)
	require.Len(t, parsed.Get.RaceDocument, 1)

	doc := parsed.Get.RaceDocument[0]
	assert.Equal(t, "race_report", doc.Category)
	assert.Equal(t, "Silverstone", doc.Race)
	require.NotNil(t, doc.Year)
	assert.Equal(t, 2024, *doc.Year)
	require.NotNil(t, doc.Additional.Score)
	assert.Equal(t, "0.87", *doc.Additional.Score)
}

func TestParseGraphQLResponse_EmptyData(t *testing.T) {
	resp := &models.GraphQLResponse{Data: map[string]models.JSONObject{}}

	parsed, err := ParseGraphQLResponse[AgentSessionQueryResponse](resp)
	require.NoError(t, err)
	assert.Empty(t, parsed.Get.AgentSession)
}

// =============================================================================
// Property Struct Tests
// =============================================================================

func TestRaceDocumentProperties_ToMap(t *testing.T) {
	props := RaceDocumentProperties{
		Content:  "Safety car on lap 31 reset the gaps.",
		Source:   "stewards-bulletin",
		Category: "regulation",
		Race:     "Monza",
		Year:     2024,
	}

	m := props.ToMap()
	assert.Equal(t, "regulation", m["category"])
	assert.Equal(t, "Monza", m["race"])
	assert.Equal(t, 2024, m["year"])
}

func TestAgentSessionProperties_ToMap(t *testing.T) {
	props := AgentSessionProperties{
		SessionID: "sess_42",
		State:     `{"stage":"done"}`,
		UpdatedAt: 1700000000000,
	}

	m := props.ToMap()
	assert.Equal(t, "sess_42", m["session_id"])
	assert.Equal(t, `{"stage":"done"}`, m["state"])
	assert.Equal(t, int64(1700000000000), m["updated_at"])
}

func propertyNames(class *models.Class) []string {
	names := make([]string, 0, len(class.Properties))
	for _, p := range class.Properties {
		names = append(names, p.Name)
	}
	return names
}

func findProperty(t *testing.T, class *models.Class, name string) *models.Property {
	t.Helper()
	for _, p := range class.Properties {
		if p.Name == name {
			return p
		}
	}
	t.Fatalf("property %s not found on class %s", name, class.Class)
	return nil
}
