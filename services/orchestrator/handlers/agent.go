// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pitwall-ai/pitwall/services/orchestrator/agent"
)

// AgentChatRequest is one conversational turn. An empty SessionID
// starts a new session; the response carries the assigned id.
type AgentChatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message" binding:"required"`
}

// HandleAgentChat runs one pipeline turn and returns the answer.
//
// The pipeline degrades internally rather than failing, so an error
// here means infrastructure trouble (session store unreachable), not a
// bad question.
func HandleAgentChat(pipeline *agent.Pipeline) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req AgentChatRequest
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
			return
		}

		answer, err := pipeline.RunTurn(c.Request.Context(), req.SessionID, req.Message)
		if err != nil {
			slog.Error("Agent turn failed", "session_id", req.SessionID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "agent turn failed"})
			return
		}
		c.JSON(http.StatusOK, answer)
	}
}
