// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ttl

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/pitwall-ai/pitwall/services/orchestrator/session"
)

var cleanerTracer = otel.Tracer("pitwall.ttl.cleaner")

// CleanupResult summarizes one sweep over the session store.
type CleanupResult struct {
	Scanned int
	Deleted int
	Errors  int
}

// Cleaner deletes sessions whose last update is older than TTL.
//
// # Thread Safety
//
// Safe for concurrent use; all state lives in the store.
type Cleaner struct {
	store session.Store
	ttl   time.Duration
	clock Clock
}

// NewCleaner builds a Cleaner over the given store. A nil clock defaults
// to the system clock.
func NewCleaner(store session.Store, ttl time.Duration, clock Clock) *Cleaner {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Cleaner{store: store, ttl: ttl, clock: clock}
}

// CleanupExpired scans every session and deletes the expired ones.
//
// # Description
//
// A session expires when now minus its UpdatedAt exceeds the TTL.
// Sessions that fail to load or delete are counted as errors and left in
// place for the next sweep; one bad record must not stop the scan.
//
// # Inputs
//
//   - ctx: Cancellation context. Checked between sessions.
//
// # Outputs
//
//   - CleanupResult: Counts of scanned, deleted, and errored sessions.
//   - error: Non-nil only when the store listing itself fails.
func (c *Cleaner) CleanupExpired(ctx context.Context) (CleanupResult, error) {
	ctx, span := cleanerTracer.Start(ctx, "ttl.cleanup_expired")
	defer span.End()

	var result CleanupResult
	ids, err := c.store.List(ctx)
	if err != nil {
		return result, err
	}

	cutoff := c.clock.Now().Add(-c.ttl)
	for _, id := range ids {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		result.Scanned++

		state, err := c.store.Load(ctx, id)
		if err != nil {
			slog.Warn("TTL sweep failed to load session", "session_id", id, "error", err)
			result.Errors++
			continue
		}
		if state == nil || !state.UpdatedAt.Before(cutoff) {
			continue
		}

		if err := c.store.Delete(ctx, id); err != nil {
			slog.Warn("TTL sweep failed to delete session", "session_id", id, "error", err)
			result.Errors++
			continue
		}
		result.Deleted++
		slog.Info("Expired session deleted",
			"session_id", id, "updated_at", state.UpdatedAt, "ttl", c.ttl)
	}
	return result, nil
}
