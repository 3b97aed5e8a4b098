package fx

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contango-scanner/internal/venue"
)

func TestRatePrefersAsk(t *testing.T) {
	c := NewCache(0)
	rate, err := c.Rate(venue.Upbit, venue.Quote{Ask: venue.Float(1400), Last: venue.Float(1390)}, true)
	require.NoError(t, err)
	assert.Equal(t, 1400.0, rate)
}

func TestRateFallsBackToLast(t *testing.T) {
	c := NewCache(0)
	rate, err := c.Rate(venue.Upbit, venue.Quote{Last: venue.Float(1390)}, true)
	require.NoError(t, err)
	assert.Equal(t, 1390.0, rate)
}

func TestRateMissing(t *testing.T) {
	c := NewCache(0)

	_, err := c.Rate(venue.Upbit, venue.Quote{}, false)
	assert.ErrorIs(t, err, ErrMissingUsdKrw)

	_, err = c.Rate(venue.Upbit, venue.Quote{FundingRate: venue.Float(0.1)}, true)
	assert.ErrorIs(t, err, ErrMissingUsdKrw)

	_, err = c.Rate(venue.Upbit, venue.Quote{Ask: venue.Float(-1)}, true)
	assert.ErrorIs(t, err, ErrMissingUsdKrw)
}

func TestRateMemoisedWithinTTL(t *testing.T) {
	c := NewCache(30 * time.Second)
	now := time.Unix(1000, 0)
	c.now = func() time.Time { return now }

	q := venue.Quote{Ask: venue.Float(1400)}
	first, err := c.Rate(venue.Upbit, q, true)
	require.NoError(t, err)

	now = now.Add(10 * time.Second)
	second, err := c.Rate(venue.Upbit, q, true)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	// A changed raw reading takes effect immediately.
	moved, err := c.Rate(venue.Upbit, venue.Quote{Ask: venue.Float(1410)}, true)
	require.NoError(t, err)
	assert.Equal(t, 1410.0, moved)
}

func TestRateRefreshedPastTTL(t *testing.T) {
	c := NewCache(30 * time.Second)
	now := time.Unix(1000, 0)
	c.now = func() time.Time { return now }

	q := venue.Quote{Ask: venue.Float(1400)}
	_, err := c.Rate(venue.Upbit, q, true)
	require.NoError(t, err)

	now = now.Add(31 * time.Second)
	rate, err := c.Rate(venue.Upbit, q, true)
	require.NoError(t, err)
	assert.Equal(t, 1400.0, rate)
}

func TestRatePerVenueIsolation(t *testing.T) {
	c := NewCache(0)
	up, err := c.Rate(venue.Upbit, venue.Quote{Ask: venue.Float(1400)}, true)
	require.NoError(t, err)
	bit, err := c.Rate(venue.Bithumb, venue.Quote{Ask: venue.Float(1402)}, true)
	require.NoError(t, err)
	assert.Equal(t, 1400.0, up)
	assert.Equal(t, 1402.0, bit)
}
