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
	"fmt"
	"log/slog"
	"strconv"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"go.opentelemetry.io/otel"

	"github.com/pitwall-ai/pitwall/services/orchestrator/agent"
	"github.com/pitwall-ai/pitwall/services/orchestrator/datatypes"
)

var searchTracer = otel.Tracer("pitwall.tools.search")

const raceDocumentClass = "RaceDocument"

// DocumentSearch runs hybrid (semantic + keyword) queries over the
// RaceDocument collection: race reports, regulations, and community
// discussion. It backs both the search_documents tool and the answer
// enrichment stage.
//
// DocumentSearch is safe for concurrent use. The underlying Weaviate
// client handles connection pooling.
type DocumentSearch struct {
	client *weaviate.Client
	alpha  float32
}

// NewDocumentSearch creates a document searcher. Alpha balances keyword
// against vector relevance; 0.5 weighs them equally.
func NewDocumentSearch(client *weaviate.Client) *DocumentSearch {
	return &DocumentSearch{client: client, alpha: 0.5}
}

// Search implements the enrichment search over RaceDocument. An empty
// category searches every collection.
func (s *DocumentSearch) Search(ctx context.Context, query, category string, limit int) ([]datatypes.SearchHit, error) {
	ctx, span := searchTracer.Start(ctx, "DocumentSearch.Search")
	defer span.End()

	if limit <= 0 {
		limit = 5
	}

	fields := []graphql.Field{
		{Name: "content"},
		{Name: "source"},
		{Name: "category"},
		{Name: "_additional", Fields: []graphql.Field{
			{Name: "score"},
		}},
	}

	hybrid := s.client.GraphQL().HybridArgumentBuilder().
		WithQuery(query).
		WithAlpha(s.alpha)

	builder := s.client.GraphQL().Get().
		WithClassName(raceDocumentClass).
		WithFields(fields...).
		WithHybrid(hybrid).
		WithLimit(limit)

	if category != "" {
		builder = builder.WithWhere(filters.Where().
			WithPath([]string{"category"}).
			WithOperator(filters.Equal).
			WithValueText(category))
	}

	result, err := builder.Do(ctx)
	if err != nil {
		slog.Error("Failed to search RaceDocument class", "category", category, "error", err)
		return nil, fmt.Errorf("weaviate search failed: %w", err)
	}

	parsed, err := datatypes.ParseGraphQLResponse[datatypes.RaceDocumentQueryResponse](result)
	if err != nil {
		return nil, fmt.Errorf("failed to parse results: %w", err)
	}

	hits := make([]datatypes.SearchHit, 0, len(parsed.Get.RaceDocument))
	for _, doc := range parsed.Get.RaceDocument {
		hits = append(hits, datatypes.SearchHit{
			Collection: doc.Category,
			Content:    doc.Content,
			Source:     doc.Source,
			Score:      hybridScore(doc),
		})
	}
	slog.Debug("Document search completed", "category", category, "hits", len(hits))
	return hits, nil
}

// Register adds the document search tool to the registry so the planner
// can schedule unstructured retrieval explicitly.
func (s *DocumentSearch) Register(r *agent.Registry) error {
	return r.Register(agent.Tool{
		Name:        "search_documents",
		Description: "Hybrid search over race reports, regulations, and community discussion",
		Params: []agent.ParamSpec{
			{Name: "query", Type: "string", Required: true, Description: "what to search for"},
			{Name: "category", Type: "string", Description: "race_report, regulation, or community"},
			{Name: "limit", Type: "int", Description: "maximum hits, default 5"},
		},
		Run: func(ctx context.Context, params map[string]any) (any, error) {
			query := stringParam(params, "query")
			if query == "" {
				return nil, fmt.Errorf("query parameter is required")
			}
			limit, _ := intParam(params, "limit")
			return s.Search(ctx, query, stringParam(params, "category"), limit)
		},
	})
}

// hybridScore extracts the hybrid relevance score, which Weaviate
// returns as a string in _additional.
func hybridScore(doc datatypes.RaceDocumentResult) float64 {
	if doc.Additional.Score == nil {
		return 0
	}
	score, err := strconv.ParseFloat(*doc.Additional.Score, 64)
	if err != nil {
		return 0
	}
	return score
}
