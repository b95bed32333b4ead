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
	"context"
	"log"
	"log/slog"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate/entities/models"
)

// GetRaceDocumentSchema returns the schema for the RaceDocument class.
//
// # Description
//
// RaceDocument holds unstructured race context used for answer enrichment:
// race reports, regulation excerpts, and community analysis. Hybrid search
// over this class feeds the enrichment stage before answer generation.
//
// # Properties
//
//   - content: The document text.
//   - source: Origin of the document (URL, filename, feed name).
//   - category: One of 'race_report', 'regulation', 'community'.
//   - race: Race name the document covers, if any.
//   - year: Season the document covers, if any.
func GetRaceDocumentSchema() *models.Class {
	indexFilterable := new(bool)
	*indexFilterable = true

	return &models.Class{
		Class:       "RaceDocument",
		Description: "Unstructured race context: reports, regulations, community analysis.",
		Vectorizer:  "none",
		InvertedIndexConfig: &models.InvertedIndexConfig{
			IndexNullState:  true,
			IndexTimestamps: true,
		},
		Properties: []*models.Property{
			{
				Name:         "content",
				DataType:     []string{"text"},
				Description:  "The main content of the document.",
				Tokenization: "word",
			},
			{
				Name:            "source",
				DataType:        []string{"text"},
				Description:     "The original source of the document.",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
			},
			{
				Name:            "category",
				DataType:        []string{"text"},
				Description:     "Document category: race_report, regulation, or community.",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
			},
			{
				Name:            "race",
				DataType:        []string{"text"},
				Description:     "Race the document covers, empty if not race-specific.",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
			},
			{
				Name:            "year",
				DataType:        []string{"int"},
				Description:     "Season the document covers, 0 if not season-specific.",
				IndexFilterable: indexFilterable,
			},
		},
	}
}

// GetAgentSessionSchema returns the schema for the AgentSession class.
//
// AgentSession persists the serialized pipeline state for a conversation
// so follow-up questions keep their transcript across restarts.
func GetAgentSessionSchema() *models.Class {
	indexFilterable := new(bool)
	*indexFilterable = true

	return &models.Class{
		Class:               "AgentSession",
		Description:         "Serialized pipeline state for a single conversation session.",
		Vectorizer:          "none",
		InvertedIndexConfig: &models.InvertedIndexConfig{IndexTimestamps: true},
		Properties: []*models.Property{
			{
				Name:            "session_id",
				DataType:        []string{"text"},
				Description:     "The unique ID for the conversation session.",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
			},
			{
				Name:         "state",
				DataType:     []string{"text"},
				Description:  "JSON-serialized pipeline state.",
				Tokenization: "field",
			},
			{
				Name:            "updated_at",
				DataType:        []string{"number"},
				Description:     "Unix milliseconds of the last state save.",
				IndexFilterable: indexFilterable,
			},
		},
	}
}

func EnsureWeaviateSchema(client *weaviate.Client) {
	// A list of functions that return our schema definitions.
	schemaGetters := []func() *models.Class{
		GetAgentSessionSchema,
		GetRaceDocumentSchema,
	}

	for _, getSchema := range schemaGetters {
		class := getSchema()
		slog.Info("Checking schema", "class", class.Class)

		// Check if the class already exists.
		_, err := client.Schema().ClassGetter().WithClassName(class.Class).Do(context.Background())
		if err != nil {
			// If it doesn't exist, the client returns an error. We can now create it.
			slog.Info("Schema not found, creating it...", "class", class.Class)
			err := client.Schema().ClassCreator().WithClass(class).Do(context.Background())
			if err != nil {
				// If we fail to create it, it's a fatal error.
				log.Fatalf("Failed to create schema for class %s: %v", class.Class, err)
			}
			slog.Info("Successfully created schema", "class", class.Class)
		} else {
			slog.Info("Schema already exists", "class", class.Class)
		}
	}
}
