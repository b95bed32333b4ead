// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package validation

import "testing"

func TestValidateDriverCode(t *testing.T) {
	valid := []string{"VER", "HAM", "ZHO", "AL", "SAI2"}
	for _, code := range valid {
		if err := ValidateDriverCode(code); err != nil {
			t.Errorf("ValidateDriverCode(%q) = %v, want nil", code, err)
		}
	}

	invalid := []string{
		"",
		"V",
		"VERST",
		"ver",
		"V R",
		`VER" or r._field == "`,
		"VER\n|> drop()",
		"1AM",
	}
	for _, code := range invalid {
		if err := ValidateDriverCode(code); err == nil {
			t.Errorf("ValidateDriverCode(%q) = nil, want error", code)
		}
	}
}

func TestSanitizeDriverCode(t *testing.T) {
	got, err := SanitizeDriverCode("  ver ")
	if err != nil {
		t.Fatalf("SanitizeDriverCode failed: %v", err)
	}
	if got != "VER" {
		t.Errorf("SanitizeDriverCode = %q, want VER", got)
	}

	if _, err := SanitizeDriverCode(`x"); import "evil`); err == nil {
		t.Error("expected error for injection attempt")
	}
}

func TestSanitizeRaceName(t *testing.T) {
	valid := []string{"Monza", "Sao Paulo Grand Prix", "Abu-Dhabi", "Las Vegas 2024"}
	for _, race := range valid {
		if _, err := SanitizeRaceName(race); err != nil {
			t.Errorf("SanitizeRaceName(%q) = %v, want nil", race, err)
		}
	}

	invalid := []string{
		"",
		"   ",
		`Monza" and r._measurement == "secrets`,
		"Monza\n|> yield()",
	}
	for _, race := range invalid {
		if _, err := SanitizeRaceName(race); err == nil {
			t.Errorf("SanitizeRaceName(%q) = nil, want error", race)
		}
	}
}

func TestValidateSeasonYear(t *testing.T) {
	for _, year := range []int{1950, 2024, 2100} {
		if err := ValidateSeasonYear(year); err != nil {
			t.Errorf("ValidateSeasonYear(%d) = %v, want nil", year, err)
		}
	}
	for _, year := range []int{0, 1949, 2101, -5} {
		if err := ValidateSeasonYear(year); err == nil {
			t.Errorf("ValidateSeasonYear(%d) = nil, want error", year)
		}
	}
}
