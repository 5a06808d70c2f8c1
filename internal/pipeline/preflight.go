package pipeline

import (
	"context"
	"fmt"

	"github.com/couchcryptid/fcc-block-geocoder/internal/domain"
)

// Preflight is a lookup with a known answer, made before any input pair to
// confirm the provider is reachable and answering as expected.
type Preflight struct {
	Coordinate domain.Coordinate
	FIPS       string
}

// DefaultPreflight is a point in midtown Manhattan.
var DefaultPreflight = Preflight{
	Coordinate: domain.Coordinate{Latitude: "40.752726", Longitude: "-73.977229"},
	FIPS:       "360610092001007",
}

// Preflight performs the known-good lookup. Any failure wraps domain.ErrPreflight.
func (r *Runner) Preflight(ctx context.Context) error {
	c := r.preflight.Coordinate
	out, err := r.geocoder.Lookup(ctx, c, false)
	if err != nil {
		return fmt.Errorf("%w: lookup %s,%s: %w", domain.ErrPreflight, c.Latitude, c.Longitude, err)
	}
	if out.Status != domain.StatusOK {
		return fmt.Errorf("%w: status %q", domain.ErrPreflight, out.Status)
	}
	if got := out.FIPSOrEmpty(); got != r.preflight.FIPS {
		return fmt.Errorf("%w: got block %q, want %q", domain.ErrPreflight, got, r.preflight.FIPS)
	}

	r.ready.Store(true)
	r.logger.Info("preflight passed", "fips", r.preflight.FIPS)
	return nil
}
