package hedge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contango-scanner/internal/venue"
)

var testKey = Key{SpotVenue: venue.Upbit, FuturesVenue: venue.OKX, Base: "BTC"}

func TestRecordEntryAppendsTranche(t *testing.T) {
	p := NewPosition(testKey, 2000)

	added := p.RecordEntry(50, 100, 99)
	assert.Equal(t, 50.0, added)
	assert.Equal(t, 50.0, p.NotionalUSD)
	require.Len(t, p.Tranches, 1)
	assert.Equal(t, 100.0, p.Tranches[0].EntryFutures)
	assert.Equal(t, 99.0, p.Tranches[0].EntrySpot)
	require.NoError(t, p.CheckInvariant())
}

func TestRecordEntryClampsToCapacity(t *testing.T) {
	p := NewPosition(testKey, 2000)

	for i := 0; i < 40; i++ {
		assert.Equal(t, 50.0, p.RecordEntry(50, 100, 99))
	}
	assert.Equal(t, 2000.0, p.NotionalUSD)

	// The 41st tranche finds no capacity.
	assert.Equal(t, 0.0, p.RecordEntry(50, 100, 99))
	assert.Equal(t, 2000.0, p.NotionalUSD)
	require.NoError(t, p.CheckInvariant())
}

func TestRecordEntryPartialClamp(t *testing.T) {
	p := NewPosition(testKey, 120)

	assert.Equal(t, 50.0, p.RecordEntry(50, 100, 99))
	assert.Equal(t, 50.0, p.RecordEntry(50, 100, 99))
	assert.Equal(t, 20.0, p.RecordEntry(50, 100, 99))
	assert.Equal(t, 120.0, p.NotionalUSD)
}

func TestRecordExitFIFOPnl(t *testing.T) {
	p := NewPosition(testKey, 2000)
	p.RecordEntry(50, 100, 99)
	p.RecordEntry(50, 110, 108)

	closed, pnl, portions := p.RecordExit(80, 95, 96)

	assert.InDelta(t, 80.0, closed, Epsilon)
	require.Len(t, portions, 2)

	// First tranche fully consumed: qty 0.5, pnl 0.5*((100-95)+(96-99)) = 1.
	assert.InDelta(t, 50.0, portions[0].USD, Epsilon)
	assert.InDelta(t, 0.5, portions[0].Qty, Epsilon)
	assert.InDelta(t, 1.0, portions[0].PnlUSD, Epsilon)

	// Second tranche partial: qty 30/110, pnl (30/110)*((110-95)+(96-108)) = 9/11.
	assert.InDelta(t, 30.0, portions[1].USD, Epsilon)
	assert.InDelta(t, 30.0/110.0, portions[1].Qty, Epsilon)
	assert.InDelta(t, 30.0/110.0*3.0, portions[1].PnlUSD, Epsilon)

	assert.InDelta(t, 1.0+30.0/110.0*3.0, pnl, Epsilon)
	assert.InDelta(t, 20.0, p.NotionalUSD, Epsilon)
	require.Len(t, p.Tranches, 1)
	assert.InDelta(t, 20.0, p.Tranches[0].USD, Epsilon)
	assert.Equal(t, 110.0, p.Tranches[0].EntryFutures)
	require.NoError(t, p.CheckInvariant())
}

func TestRecordExitClampsToNotional(t *testing.T) {
	p := NewPosition(testKey, 2000)
	p.RecordEntry(50, 100, 99)

	closed, _, portions := p.RecordExit(500, 100, 99)
	assert.InDelta(t, 50.0, closed, Epsilon)
	require.Len(t, portions, 1)
	assert.True(t, p.Empty())
}

func TestRecordExitEmptyPosition(t *testing.T) {
	p := NewPosition(testKey, 2000)
	closed, pnl, portions := p.RecordExit(50, 100, 99)
	assert.Zero(t, closed)
	assert.Zero(t, pnl)
	assert.Empty(t, portions)
}

func TestRoundTripReturnsToZero(t *testing.T) {
	p := NewPosition(testKey, 2000)

	const k = 7
	for i := 0; i < k; i++ {
		require.Equal(t, 50.0, p.RecordEntry(50, 100, 99))
	}
	for i := 0; i < k; i++ {
		closed, _, _ := p.RecordExit(50, 100, 99)
		require.InDelta(t, 50.0, closed, Epsilon)
	}

	assert.True(t, p.Empty())
	assert.Empty(t, p.Tranches)
	require.NoError(t, p.CheckInvariant())
}

func TestBookLazyCreateAndRemove(t *testing.T) {
	b := NewBook(2000)

	_, ok := b.Lookup(testKey)
	assert.False(t, ok)

	p := b.Get(testKey)
	require.NotNil(t, p)
	assert.Same(t, p, b.Get(testKey))

	p.RecordEntry(50, 100, 99)
	assert.Equal(t, 50.0, b.TotalNotionalUSD())

	b.Remove(testKey)
	_, ok = b.Lookup(testKey)
	assert.False(t, ok)
}

func TestBookPositionsStableOrder(t *testing.T) {
	b := NewBook(2000)
	k1 := Key{SpotVenue: venue.Upbit, FuturesVenue: venue.OKX, Base: "ETH"}
	k2 := Key{SpotVenue: venue.Bithumb, FuturesVenue: venue.Gate, Base: "BTC"}
	b.Get(k1)
	b.Get(k2)

	positions := b.Positions()
	require.Len(t, positions, 2)
	assert.Equal(t, k2, positions[0].Key)
	assert.Equal(t, k1, positions[1].Key)
}
