package venue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheApplyFieldMerge(t *testing.T) {
	c := NewCache()
	c.now = func() float64 { return 100 }

	c.Apply(Update{Key: "BTC", Bid: Float(99.5), Ask: Float(100.5)})
	c.Apply(Update{Key: "BTC", FundingRate: Float(0.0001)})

	q, ok := c.Get("BTC")
	require.True(t, ok)
	require.NotNil(t, q.Bid)
	assert.Equal(t, 99.5, *q.Bid)
	require.NotNil(t, q.Ask)
	assert.Equal(t, 100.5, *q.Ask)
	require.NotNil(t, q.FundingRate)
	assert.Equal(t, 0.0001, *q.FundingRate)
	assert.Nil(t, q.Mark)
	assert.Equal(t, 100.0, q.Timestamp)
}

func TestCacheApplyOverwritesOnlyUpdatedFields(t *testing.T) {
	c := NewCache()
	c.Apply(Update{Key: "ETH", Bid: Float(10), Ask: Float(11)})
	c.Apply(Update{Key: "ETH", Bid: Float(12)})

	q, ok := c.Get("ETH")
	require.True(t, ok)
	assert.Equal(t, 12.0, *q.Bid)
	assert.Equal(t, 11.0, *q.Ask)
}

func TestCacheGetMissing(t *testing.T) {
	c := NewCache()
	_, ok := c.Get("nope")
	assert.False(t, ok)
}

func TestCacheSnapshotIsIndependent(t *testing.T) {
	c := NewCache()
	c.Apply(Update{Key: "BTC", Bid: Float(1)})

	snap := c.Snapshot()
	require.Len(t, snap, 1)

	c.Apply(Update{Key: "BTC", Bid: Float(2)})
	c.Apply(Update{Key: "ETH", Bid: Float(3)})

	assert.Equal(t, 1.0, *snap["BTC"].Bid)
	assert.Len(t, snap, 1)
	assert.Equal(t, 2, c.Len())
}

func TestQuoteHasPrice(t *testing.T) {
	assert.False(t, Quote{}.HasPrice())
	assert.False(t, Quote{FundingRate: Float(0.1)}.HasPrice())
	assert.True(t, Quote{Bid: Float(1)}.HasPrice())
	assert.True(t, Quote{Ask: Float(1)}.HasPrice())
}

func TestNormalizeBase(t *testing.T) {
	assert.Equal(t, "BTC", NormalizeBase("btc"))
	assert.Equal(t, "1000PEPE", NormalizeBase("1000pepe"))
	assert.Equal(t, "BTCUSDTSWAP", NormalizeBase("BTC-USDT-SWAP"))
}

func TestChunks(t *testing.T) {
	items := []string{"a", "b", "c", "d", "e"}

	chunks := Chunks(items, 2)
	require.Len(t, chunks, 3)
	assert.Equal(t, []string{"a", "b"}, chunks[0])
	assert.Equal(t, []string{"c", "d"}, chunks[1])
	assert.Equal(t, []string{"e"}, chunks[2])

	assert.Nil(t, Chunks(nil, 2))
	assert.Nil(t, Chunks(items, 0))

	whole := Chunks(items, 10)
	require.Len(t, whole, 1)
	assert.Equal(t, items, whole[0])
}
