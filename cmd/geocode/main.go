// Command block-geocode resolves a CSV of latitude/longitude pairs to 15-digit
// census block FIPS codes using the FCC Census Block API.
//
// Usage:
//
//	block-geocode run --input points.csv --output blocks.csv
//	block-geocode check
//
// Settings are read from the environment (GEOCODE_INPUT, GEOCODE_OUTPUT,
// BACKOFF_MINUTES, ...) and overridden by flags.
package main

import (
	"log/slog"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		slog.Error("block-geocode failed", "error", err)
		os.Exit(1)
	}
}
