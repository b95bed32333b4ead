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

	"github.com/pitwall-ai/pitwall/services/orchestrator/session"
)

func ListSessions(store session.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		ids, err := store.List(c.Request.Context())
		if err != nil {
			slog.Error("Failed to list sessions", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list sessions"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"sessions": ids, "count": len(ids)})
	}
}

func GetSessionHistory(store session.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := c.Param("sessionId")
		state, err := store.Load(c.Request.Context(), sessionID)
		if err != nil {
			slog.Error("Failed to load session", "session_id", sessionID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load session"})
			return
		}
		if state == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found", "session_id": sessionID})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"session_id": state.SessionID,
			"messages":   state.Messages,
			"stage":      state.Stage,
			"iteration":  state.Iteration,
			"updated_at": state.UpdatedAt,
		})
	}
}

func DeleteSession(store session.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := c.Param("sessionId")
		slog.Info("Received a request to delete a session", "sessionId", sessionID)

		if err := store.Delete(c.Request.Context(), sessionID); err != nil {
			slog.Error("Failed to delete session", "session_id", sessionID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete session"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "success", "deleted_session_id": sessionID})
	}
}
