// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/pitwall-ai/pitwall/services/orchestrator/datatypes"
)

var routerTracer = otel.Tracer("pitwall.llm.router")

// Tier selects which model class a request should hit. Planning and
// classification run on the fast tier; analysis and answer generation
// run on the capable tier.
type Tier string

const (
	TierFast    Tier = "fast"
	TierCapable Tier = "capable"
)

// Backend is one configured provider in the fallback chain. Fast may be
// nil, in which case fast-tier requests use the Capable client.
type Backend struct {
	Name    string
	Capable LLMClient
	Fast    LLMClient
}

const (
	defaultMaxAttempts = 3
	defaultBaseDelay   = time.Second
)

// ProviderRouter fans requests across a static priority-ordered chain of
// LLM backends.
//
// # Description
//
// Every request walks the chain in declaration order. A backend that
// fails is skipped and the next one tried; a backend that fails with a
// rate-limit signal is retried in place with exponential backoff before
// the router moves on. When the whole chain fails the router returns
// ErrAllProvidersExhausted wrapped with the individual failures.
//
// # Thread Safety
//
// Safe for concurrent use. Only LastProvider is mutable state and it is
// mutex-guarded.
type ProviderRouter struct {
	backends    []Backend
	maxAttempts int
	baseDelay   time.Duration

	mu           sync.Mutex
	lastProvider string
}

// NewProviderRouter builds a router over the given priority-ordered
// backends. maxAttempts and baseDelay control the in-place rate-limit
// retry; zero values select the defaults (3 attempts, 1s base delay).
func NewProviderRouter(backends []Backend, maxAttempts int, baseDelay time.Duration) (*ProviderRouter, error) {
	if len(backends) == 0 {
		return nil, fmt.Errorf("no LLM backends configured")
	}
	for i, b := range backends {
		if b.Name == "" {
			return nil, fmt.Errorf("backend %d has no name", i)
		}
		if b.Capable == nil {
			return nil, fmt.Errorf("backend %q has no capable client", b.Name)
		}
	}
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	if baseDelay <= 0 {
		baseDelay = defaultBaseDelay
	}
	return &ProviderRouter{
		backends:    backends,
		maxAttempts: maxAttempts,
		baseDelay:   baseDelay,
	}, nil
}

// Providers returns the backend names in priority order.
func (r *ProviderRouter) Providers() []string {
	names := make([]string, len(r.backends))
	for i, b := range r.backends {
		names[i] = b.Name
	}
	return names
}

// LastProvider returns the name of the backend that served the most
// recent successful request, or "".
func (r *ProviderRouter) LastProvider() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastProvider
}

func (r *ProviderRouter) setLastProvider(name string) {
	r.mu.Lock()
	r.lastProvider = name
	r.mu.Unlock()
}

// Chat sends the messages to the first backend in the chain that can
// serve them.
//
// # Inputs
//
//   - ctx: Cancellation and deadline for the whole fallback walk.
//   - messages: Chat transcript to send.
//   - tier: TierFast or TierCapable.
//   - params: Generation parameters passed through to the client.
//
// # Outputs
//
//   - string: The completion text from the first backend that succeeds.
//   - error: ErrAllProvidersExhausted (wrapped with per-backend failures)
//     when the chain is spent, or ctx.Err() on cancellation.
func (r *ProviderRouter) Chat(ctx context.Context, messages []datatypes.Message,
	tier Tier, params GenerationParams) (string, error) {

	ctx, span := routerTracer.Start(ctx, "ProviderRouter.Chat")
	defer span.End()
	span.SetAttributes(attribute.String("llm.tier", string(tier)))

	var failures []error
	for i, backend := range r.backends {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		client := backend.Capable
		if tier == TierFast && backend.Fast != nil {
			client = backend.Fast
		}
		if i > 0 {
			slog.Warn("Falling over to next LLM backend",
				"backend", backend.Name, "position", i)
		}

		text, err := r.chatWithRetry(ctx, client, backend.Name, messages, params)
		if err == nil {
			r.setLastProvider(backend.Name)
			span.SetAttributes(attribute.String("llm.provider", backend.Name))
			return text, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		slog.Error("LLM backend failed", "backend", backend.Name,
			"rate_limited", IsRateLimit(err) || LooksRateLimited(err), "error", err)
		failures = append(failures, fmt.Errorf("%s: %w", backend.Name, err))
	}

	span.SetStatus(codes.Error, "all providers exhausted")
	return "", fmt.Errorf("%w: %d backends failed: %v",
		ErrAllProvidersExhausted, len(failures), failures)
}

// Generate is a single-prompt convenience over Chat.
func (r *ProviderRouter) Generate(ctx context.Context, prompt string,
	tier Tier, params GenerationParams) (string, error) {

	return r.Chat(ctx, []datatypes.Message{{Role: "user", Content: prompt}}, tier, params)
}

// TwoStageResult pairs the outputs of a fast preliminary pass and a
// capable main pass.
type TwoStageResult struct {
	Fast    string
	Capable string
}

// TwoStageChat runs a fast-tier call and a capable-tier call
// concurrently and returns both completions.
//
// # Description
//
// Used when a cheap preliminary pass, like classification, should not
// block on the expensive pass. Each call walks the fallback chain
// independently; the first error cancels nothing, both results are
// collected and the errors joined.
func (r *ProviderRouter) TwoStageChat(ctx context.Context,
	fastMessages, capableMessages []datatypes.Message,
	params GenerationParams) (TwoStageResult, error) {

	ctx, span := routerTracer.Start(ctx, "ProviderRouter.TwoStageChat")
	defer span.End()

	var result TwoStageResult
	var fastErr, capableErr error
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		result.Fast, fastErr = r.Chat(ctx, fastMessages, TierFast, params)
	}()
	go func() {
		defer wg.Done()
		result.Capable, capableErr = r.Chat(ctx, capableMessages, TierCapable, params)
	}()
	wg.Wait()

	if fastErr != nil || capableErr != nil {
		return result, errors.Join(fastErr, capableErr)
	}
	return result, nil
}

// chatWithRetry retries a single backend on rate-limit signals with
// exponential backoff. Any other failure is returned immediately so the
// chain can move on.
func (r *ProviderRouter) chatWithRetry(ctx context.Context, client LLMClient,
	name string, messages []datatypes.Message, params GenerationParams) (string, error) {

	delay := r.baseDelay
	var lastErr error
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		text, err := client.Chat(ctx, messages, params)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if !IsRateLimit(err) && !LooksRateLimited(err) {
			return "", err
		}
		if attempt == r.maxAttempts {
			break
		}
		slog.Warn("LLM backend rate limited, backing off",
			"backend", name, "attempt", attempt, "delay", delay)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", ctx.Err()
		case <-timer.C:
		}
		delay *= 2
	}
	return "", lastErr
}
