package contango

import (
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"contango-scanner/internal/fx"
	"contango-scanner/internal/metrics"
	"contango-scanner/internal/venue"
)

// SpotFeed binds a KRW spot venue's catalog to its live quote cache.
// USDTKey is the instrument key of that venue's USDT/KRW ticker.
type SpotFeed struct {
	Venue       venue.ID
	Instruments []venue.Instrument
	Cache       *venue.Cache
	USDTKey     string
}

// FuturesFeed binds a perp venue's catalog to its live quote cache.
type FuturesFeed struct {
	Venue       venue.ID
	Instruments []venue.Instrument
	Cache       *venue.Cache
}

// Engine snapshots the live caches and evaluates one scan on demand. It is
// driven by a single caller; the caches do their own locking.
type Engine struct {
	rates   *fx.Cache
	spots   []SpotFeed
	futures []FuturesFeed
}

// NewEngine creates an evaluation engine over the given feeds.
func NewEngine(rates *fx.Cache, spots []SpotFeed, futures []FuturesFeed) *Engine {
	return &Engine{rates: rates, spots: spots, futures: futures}
}

// Scan projects every spot venue into USD, snapshots every futures venue
// and returns the ranked rows. A spot venue without a usable USDT/KRW
// quote is skipped for this tick.
func (e *Engine) Scan(p Params) []Row {
	start := time.Now()

	spotSides := make([]SpotSide, 0, len(e.spots))
	for _, feed := range e.spots {
		snap := feed.Cache.Snapshot()
		q, ok := snap[feed.USDTKey]
		rate, err := e.rates.Rate(feed.Venue, q, ok)
		if err != nil {
			if errors.Is(err, fx.ErrMissingUsdKrw) {
				log.Warn().Str("venue", string(feed.Venue)).Msg("no USDT/KRW reference, skipping venue")
				continue
			}
			log.Error().Err(err).Str("venue", string(feed.Venue)).Msg("usd rate")
			continue
		}
		spotSides = append(spotSides, SpotSide{
			Venue:  feed.Venue,
			Prices: ProjectSpotUSD(feed.Instruments, snap, rate),
		})
	}

	futSides := make([]FuturesSide, 0, len(e.futures))
	for _, feed := range e.futures {
		futSides = append(futSides, FuturesSide{
			Venue:       feed.Venue,
			Instruments: feed.Instruments,
			Quotes:      feed.Cache.Snapshot(),
		})
	}

	rows := Evaluate(spotSides, futSides, p)

	best := 0.0
	if len(rows) > 0 {
		best = rows[0].Pct
	}
	metrics.RecordScan(time.Since(start), len(rows), best)
	return rows
}
