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
	"errors"
	"strings"
)

// ErrAllProvidersExhausted is returned by the router when every configured
// backend has failed for a request.
var ErrAllProvidersExhausted = errors.New("all LLM providers exhausted")

// RateLimitError marks a backend failure caused by request throttling.
// The router retries the same backend with backoff before failing over.
type RateLimitError struct {
	Provider string
	Message  string
}

func (e *RateLimitError) Error() string {
	return "rate limited by " + e.Provider + ": " + e.Message
}

// IsRateLimit reports whether err is a typed rate-limit error.
func IsRateLimit(err error) bool {
	var rle *RateLimitError
	return errors.As(err, &rle)
}

// rateLimitHints are substrings that show up in untyped provider errors
// when the real cause is throttling.
var rateLimitHints = []string{
	"rate limit",
	"rate_limit",
	"429",
	"too many requests",
	"quota",
	"overloaded",
}

// LooksRateLimited reports whether an untyped error message smells like
// throttling. Used for classification in logs and to extend the narrow
// retry to providers that do not surface a typed error.
func LooksRateLimited(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, hint := range rateLimitHints {
		if strings.Contains(msg, hint) {
			return true
		}
	}
	return false
}
