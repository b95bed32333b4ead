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
	"sync"
	"time"
)

// Scheduler runs the cleaner on a fixed interval until stopped.
type Scheduler struct {
	cleaner  *Cleaner
	interval time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewScheduler builds a scheduler that sweeps every interval.
func NewScheduler(cleaner *Cleaner, interval time.Duration) *Scheduler {
	return &Scheduler{cleaner: cleaner, interval: interval}
}

// Start launches the background sweep loop. Calling Start on a running
// scheduler is a no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				result, err := s.cleaner.CleanupExpired(ctx)
				if err != nil {
					if ctx.Err() == nil {
						slog.Error("Session TTL sweep failed", "error", err)
					}
					continue
				}
				if result.Deleted > 0 || result.Errors > 0 {
					slog.Info("Session TTL sweep finished",
						"scanned", result.Scanned,
						"deleted", result.Deleted,
						"errors", result.Errors)
				}
			}
		}
	}()
}

// Stop halts the loop and waits for the in-flight sweep to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}
