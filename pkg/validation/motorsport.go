// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package validation provides input validation utilities for security-critical operations.
//
// This package contains validators for user-provided inputs that are used in
// database queries. Tool parameters originate from LLM output and must be
// treated as untrusted; using these validators prevents Flux injection when
// the values are interpolated into telemetry queries.
package validation

import (
	"fmt"
	"regexp"
	"strings"
)

// driverPattern matches driver abbreviations as used in timing data:
// 2-4 uppercase alphanumeric characters starting with a letter (VER, HAM, ZHO).
var driverPattern = regexp.MustCompile(`^[A-Z][A-Z0-9]{1,3}$`)

// racePattern matches event names: letters, digits, spaces and hyphens,
// up to 48 characters ("Monza", "Sao Paulo Grand Prix", "Abu-Dhabi").
var racePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9 \-]{0,47}$`)

// ValidateDriverCode validates a driver abbreviation before it is
// interpolated into a Flux query.
//
// Example:
//
//	if err := validation.ValidateDriverCode(driver); err != nil {
//	    return nil, fmt.Errorf("invalid driver: %w", err)
//	}
//	// Safe to use in Flux query
func ValidateDriverCode(code string) error {
	if code == "" {
		return fmt.Errorf("driver code cannot be empty")
	}
	if !driverPattern.MatchString(code) {
		return fmt.Errorf("invalid driver code: %q (must be 2-4 uppercase alphanumeric chars)", code)
	}
	return nil
}

// SanitizeDriverCode normalizes and validates a driver abbreviation.
// Returns the uppercase code if valid, or an error if invalid.
func SanitizeDriverCode(code string) (string, error) {
	normalized := strings.ToUpper(strings.TrimSpace(code))
	if err := ValidateDriverCode(normalized); err != nil {
		return "", err
	}
	return normalized, nil
}

// SanitizeRaceName trims and validates an event name. The original
// casing is preserved; timing data stores race names as written.
func SanitizeRaceName(race string) (string, error) {
	normalized := strings.TrimSpace(race)
	if normalized == "" {
		return "", fmt.Errorf("race name cannot be empty")
	}
	if !racePattern.MatchString(normalized) {
		return "", fmt.Errorf("invalid race name: %q (letters, digits, spaces, and hyphens only)", normalized)
	}
	return normalized, nil
}

// ValidateSeasonYear bounds a season year to the plausible range for
// championship data.
func ValidateSeasonYear(year int) error {
	if year < 1950 || year > 2100 {
		return fmt.Errorf("season year %d out of range [1950, 2100]", year)
	}
	return nil
}
