package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var tiers = Config{
	BaseRate:           30,
	ThresholdKm:        5,
	ExtendedPricePerKm: 2.5,
	MaxDistanceKm:      35,
}

func TestFeeFor_WithinThreshold(t *testing.T) {
	assert.Equal(t, int64(3000), FeeFor(0, tiers))
	assert.Equal(t, int64(3000), FeeFor(3.2, tiers))
	// at the threshold exactly, no extended charge
	assert.Equal(t, int64(3000), FeeFor(5, tiers))
}

func TestFeeFor_BeyondThreshold(t *testing.T) {
	// 1 km over: 30 + 2.5
	assert.Equal(t, int64(3250), FeeFor(6, tiers))
	// 10 km total, 5 over: 30 + 12.50
	assert.Equal(t, int64(4250), FeeFor(10, tiers))
	// fractional overage rounds at the cents boundary
	assert.Equal(t, int64(3001), FeeFor(5.005, tiers))
}

func TestQuoteDistance_WithinRadius(t *testing.T) {
	q, err := QuoteDistance(10, true, tiers)
	require.NoError(t, err)
	assert.Equal(t, 10.0, q.DistanceKm)
	assert.Equal(t, int64(4250), q.FeeCents)
	assert.False(t, q.DistanceUnverified)
}

func TestQuoteDistance_BeyondRadius(t *testing.T) {
	_, err := QuoteDistance(35.1, true, tiers)
	var re *RadiusError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, 35.1, re.DistanceKm)
	assert.Equal(t, 35.0, re.MaxDistanceKm)

	// the boundary itself is serviceable
	q, err := QuoteDistance(35, true, tiers)
	require.NoError(t, err)
	assert.Equal(t, int64(10500), q.FeeCents)
}

func TestQuoteDistance_UnknownDistance(t *testing.T) {
	q, err := QuoteDistance(0, false, tiers)
	require.NoError(t, err)
	assert.True(t, q.DistanceUnverified)
	// base rate only, never rejected on radius
	assert.Equal(t, int64(3000), q.FeeCents)
	assert.Equal(t, 0.0, q.DistanceKm)
}

func TestQuoteDistance_ZeroRadiusDisablesCap(t *testing.T) {
	open := tiers
	open.MaxDistanceKm = 0

	q, err := QuoteDistance(120, true, open)
	require.NoError(t, err)
	assert.Equal(t, FeeFor(120, open), q.FeeCents)
}
