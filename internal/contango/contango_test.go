package contango

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contango-scanner/internal/venue"
)

func spotSide(prices map[string]float64) SpotSide {
	return SpotSide{Venue: venue.Upbit, Prices: prices}
}

func futSide(quotes map[string]venue.Quote, instruments ...venue.Instrument) FuturesSide {
	return FuturesSide{Venue: venue.OKX, Instruments: instruments, Quotes: quotes}
}

var btcSwap = venue.Instrument{Key: "BTC-USDT-SWAP", Base: "BTC", Symbol: "BTC/USDT:USDT"}

func TestProjectSpotUSD(t *testing.T) {
	instruments := []venue.Instrument{
		{Key: "KRW-BTC", Base: "BTC", Symbol: "BTC/KRW"},
		{Key: "KRW-ETH", Base: "ETH", Symbol: "ETH/KRW"},
		{Key: "KRW-XRP", Base: "XRP", Symbol: "XRP/KRW"},
		{Key: "BTC-ETH", Base: "ETH", Symbol: "ETH/BTC"},
	}
	quotes := map[string]venue.Quote{
		"KRW-BTC": {Ask: venue.Float(140000000)},
		"KRW-ETH": {Last: venue.Float(4900000)},
		"KRW-XRP": {FundingRate: venue.Float(0)},
		"BTC-ETH": {Ask: venue.Float(0.035)},
	}

	out := ProjectSpotUSD(instruments, quotes, 1400)
	require.Len(t, out, 2)
	assert.InDelta(t, 100000.0, out["BTC"], 1e-9)
	assert.InDelta(t, 3500.0, out["ETH"], 1e-9)
	_, hasXRP := out["XRP"]
	assert.False(t, hasXRP)
}

func TestProjectSpotUSDZeroRate(t *testing.T) {
	out := ProjectSpotUSD([]venue.Instrument{{Key: "KRW-BTC", Base: "BTC", Symbol: "BTC/KRW"}},
		map[string]venue.Quote{"KRW-BTC": {Ask: venue.Float(1)}}, 0)
	assert.Empty(t, out)
}

func TestEvaluateSpreadFilter(t *testing.T) {
	spots := []SpotSide{spotSide(map[string]float64{"BTC": 100000})}
	futures := []FuturesSide{futSide(map[string]venue.Quote{
		"BTC-USDT-SWAP": {Bid: venue.Float(100500), FundingRate: venue.Float(0.0001)},
	}, btcSwap)}

	rows := Evaluate(spots, futures, Params{MinSpreadPct: 0.6})
	assert.Empty(t, rows)

	rows = Evaluate(spots, futures, Params{MinSpreadPct: 0.4})
	require.Len(t, rows, 1)
	assert.InDelta(t, 0.5, rows[0].Pct, 1e-9)
	assert.Equal(t, "BTC", rows[0].Base)
	assert.Equal(t, "BTC/USDT:USDT", rows[0].FuturesSymbol)
}

func TestEvaluateSkipsNonPositiveSpread(t *testing.T) {
	spots := []SpotSide{spotSide(map[string]float64{"BTC": 100000})}
	futures := []FuturesSide{futSide(map[string]venue.Quote{
		"BTC-USDT-SWAP": {Bid: venue.Float(99000), FundingRate: venue.Float(0.0001)},
	}, btcSwap)}

	assert.Empty(t, Evaluate(spots, futures, Params{}))
}

func TestEvaluateFeeNetting(t *testing.T) {
	// Spot fee 0.05% (upbit) + futures fee 0.05% (okx), round trip.
	spots := []SpotSide{spotSide(map[string]float64{"BTC": 100000})}
	futures := []FuturesSide{futSide(map[string]venue.Quote{
		"BTC-USDT-SWAP": {Bid: venue.Float(101200), FundingRate: venue.Float(0)},
	}, btcSwap)}

	rows := Evaluate(spots, futures, Params{})
	require.Len(t, rows, 1)
	assert.InDelta(t, 1.2, rows[0].Pct, 1e-9)
	assert.InDelta(t, 0.2, rows[0].FeesPct, 1e-9)
	assert.InDelta(t, 1.0, rows[0].NetPct, 1e-9)
	assert.InDelta(t, 0.8, rows[0].NetPctBufLow, 1e-9)
	assert.InDelta(t, 0.6, rows[0].NetPctBufHigh, 1e-9)
}

func TestEvaluateFeeNettingHyperliquid(t *testing.T) {
	// Futures fee 0.035% yields total fees of 0.170%.
	spots := []SpotSide{spotSide(map[string]float64{"BTC": 100000})}
	futures := []FuturesSide{{
		Venue:       venue.Hyperliquid,
		Instruments: []venue.Instrument{{Key: "BTC", Base: "BTC", Symbol: "BTC/USDC:USDC"}},
		Quotes: map[string]venue.Quote{
			"BTC": {Bid: venue.Float(101200), FundingRate: venue.Float(0)},
		},
	}}

	rows := Evaluate(spots, futures, Params{})
	require.Len(t, rows, 1)
	assert.InDelta(t, 0.170, rows[0].FeesPct, 1e-9)
	assert.InDelta(t, 1.030, rows[0].NetPct, 1e-9)
}

func TestEvaluateFundingGates(t *testing.T) {
	spots := []SpotSide{spotSide(map[string]float64{"BTC": 100000})}

	missing := []FuturesSide{futSide(map[string]venue.Quote{
		"BTC-USDT-SWAP": {Bid: venue.Float(101000)},
	}, btcSwap)}
	assert.Empty(t, Evaluate(spots, missing, Params{}), "missing funding is skipped")

	negative := []FuturesSide{futSide(map[string]venue.Quote{
		"BTC-USDT-SWAP": {Bid: venue.Float(101000), FundingRate: venue.Float(-0.0001)},
	}, btcSwap)}
	assert.Empty(t, Evaluate(spots, negative, Params{RequireNonNegativeFunding: true}))
	assert.Len(t, Evaluate(spots, negative, Params{}), 1, "negative funding passes without the gate")
}

func TestEvaluateRanksByRawPct(t *testing.T) {
	ethSwap := venue.Instrument{Key: "ETH-USDT-SWAP", Base: "ETH", Symbol: "ETH/USDT:USDT"}
	spots := []SpotSide{spotSide(map[string]float64{"BTC": 100000, "ETH": 3500})}
	futures := []FuturesSide{futSide(map[string]venue.Quote{
		"BTC-USDT-SWAP": {Bid: venue.Float(100500), FundingRate: venue.Float(0)},
		"ETH-USDT-SWAP": {Bid: venue.Float(3570), FundingRate: venue.Float(0)},
	}, btcSwap, ethSwap)}

	rows := Evaluate(spots, futures, Params{})
	require.Len(t, rows, 2)
	assert.Equal(t, "ETH", rows[0].Base, "2% spread ranks above 0.5%")
	assert.Equal(t, "BTC", rows[1].Base)
	assert.Greater(t, rows[0].Pct, rows[1].Pct)
}

func TestEvaluateIgnoresNonPositiveSpotPrice(t *testing.T) {
	futures := []FuturesSide{futSide(map[string]venue.Quote{
		"BTC-USDT-SWAP": {Bid: venue.Float(101000), FundingRate: venue.Float(0)},
	}, btcSwap)}

	assert.Empty(t, Evaluate([]SpotSide{spotSide(map[string]float64{"BTC": 0})}, futures, Params{}))
	assert.Empty(t, Evaluate([]SpotSide{spotSide(map[string]float64{"BTC": -1})}, futures, Params{}))
}

func TestEvaluateMissingSnapshotVenues(t *testing.T) {
	spots := []SpotSide{spotSide(map[string]float64{"BTC": 100000})}
	futures := []FuturesSide{futSide(map[string]venue.Quote{}, btcSwap)}
	assert.Empty(t, Evaluate(spots, futures, Params{}))
	assert.Empty(t, Evaluate(nil, futures, Params{}))
	assert.Empty(t, Evaluate(spots, nil, Params{}))
}

func TestRowInvariant(t *testing.T) {
	spots := []SpotSide{spotSide(map[string]float64{"BTC": 99850.25})}
	futures := []FuturesSide{futSide(map[string]venue.Quote{
		"BTC-USDT-SWAP": {Bid: venue.Float(100700.5), FundingRate: venue.Float(0.00005)},
	}, btcSwap)}

	rows := Evaluate(spots, futures, Params{})
	require.Len(t, rows, 1)
	row := rows[0]
	assert.Greater(t, row.FuturesPriceUSD, row.SpotPriceUSD)
	assert.Greater(t, row.SpotPriceUSD, 0.0)
	assert.InDelta(t, 100*(row.FuturesPriceUSD-row.SpotPriceUSD)/row.SpotPriceUSD, row.Pct, 1e-9)
}
