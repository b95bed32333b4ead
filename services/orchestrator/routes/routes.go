// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pitwall-ai/pitwall/services/orchestrator/agent"
	"github.com/pitwall-ai/pitwall/services/orchestrator/handlers"
	"github.com/pitwall-ai/pitwall/services/orchestrator/middleware"
	"github.com/pitwall-ai/pitwall/services/orchestrator/session"
)

// SetupRoutes registers all HTTP routes. Health and metrics stay open;
// the v1 API requires the bearer token when one is configured.
func SetupRoutes(router *gin.Engine, pipeline *agent.Pipeline, store session.Store, apiToken string) {
	router.GET("/health", handlers.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API version 1 group
	v1 := router.Group("/v1")
	if apiToken != "" {
		v1.Use(middleware.TokenAuth(apiToken))
	}
	{
		v1.POST("/agent/chat", handlers.HandleAgentChat(pipeline))
		// Session administration routes
		sessions := v1.Group("/sessions")
		{
			sessions.GET("", handlers.ListSessions(store))
			sessions.GET("/:sessionId/history", handlers.GetSessionHistory(store))
			sessions.DELETE("/:sessionId", handlers.DeleteSession(store))
		}
	}
}
