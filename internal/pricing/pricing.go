// Package pricing turns a store-to-address distance and the admin-configured
// tier set into a delivery fee, and enforces the maximum service radius.
package pricing

import (
	"fmt"
	"math"
)

// Config is the admin-owned tier set, in decimal currency units.
// It is read-only to this subsystem.
type Config struct {
	BaseRate           float64
	ThresholdKm        float64
	ExtendedPricePerKm float64
	MaxDistanceKm      float64
}

// Quote is the priced outcome of a checkout attempt.
type Quote struct {
	DistanceKm float64
	FeeCents   int64
	// DistanceUnverified is set when either coordinate was missing. The fee
	// falls back to the base rate, but callers must collect an explicit
	// confirmation before charging against an unverified distance.
	DistanceUnverified bool
}

// RadiusError rejects checkout for addresses outside the service radius.
type RadiusError struct {
	DistanceKm    float64
	MaxDistanceKm float64
}

func (e *RadiusError) Error() string {
	return fmt.Sprintf("delivery distance %.2f km exceeds service radius of %.0f km", e.DistanceKm, e.MaxDistanceKm)
}

// FeeFor prices a known distance against the tier set:
// base rate plus the per-km extended price for every km past the threshold,
// rounded to 2 decimal places and returned in minor units.
func FeeFor(distanceKm float64, cfg Config) int64 {
	fee := cfg.BaseRate
	if over := distanceKm - cfg.ThresholdKm; over > 0 {
		fee += over * cfg.ExtendedPricePerKm
	}
	return toCents(fee)
}

// QuoteDistance prices the distance, or rejects it when it exceeds the
// configured radius. known=false means the distance could not be computed
// (missing coordinates on either side): the fee falls back to the base rate
// alone rather than failing the checkout.
func QuoteDistance(distanceKm float64, known bool, cfg Config) (Quote, error) {
	if !known {
		return Quote{FeeCents: toCents(cfg.BaseRate), DistanceUnverified: true}, nil
	}
	if cfg.MaxDistanceKm > 0 && distanceKm > cfg.MaxDistanceKm {
		return Quote{}, &RadiusError{DistanceKm: distanceKm, MaxDistanceKm: cfg.MaxDistanceKm}
	}
	return Quote{DistanceKm: distanceKm, FeeCents: FeeFor(distanceKm, cfg)}, nil
}

// toCents rounds to 2 decimal places and converts to minor units in one step.
func toCents(units float64) int64 {
	return int64(math.Round(units * 100))
}
