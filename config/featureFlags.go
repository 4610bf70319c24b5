package config

import (
	"os"
	"strings"
)

// LegacyCalculation selects the calculation regime stamped onto NEW documents.
// Existing documents keep the regime they were created with; the engine never
// re-reads this flag during a recompute.
//
// Set via env:
// - LEGACY_CALCULATION=true
func LegacyCalculation() bool {
	return boolFromEnv("LEGACY_CALCULATION")
}

// ReadOnlyOnCreditNote flips the source invoice to read-only after a credit
// note is created against it.
//
// Set via env:
// - READ_ONLY_ON_CREDIT_NOTE=true
func ReadOnlyOnCreditNote() bool {
	return boolFromEnv("READ_ONLY_ON_CREDIT_NOTE")
}

func boolFromEnv(key string) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	return v == "1" || v == "true" || v == "yes" || v == "y"
}
