package hedge

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"contango-scanner/internal/contango"
	"contango-scanner/internal/exec"
	"contango-scanner/internal/metrics"
	"contango-scanner/internal/tradelog"
	"contango-scanner/internal/venue"
)

// Scanner produces ranked opportunity rows on demand.
type Scanner interface {
	Scan(p contango.Params) []contango.Row
}

// EventSink receives trade events besides the JSONL log. Optional.
type EventSink interface {
	PublishTradeEvent(ctx context.Context, event tradelog.Event) error
}

// Config holds the trader thresholds. Zero values fall back to defaults.
type Config struct {
	EntryThresholdPct float64
	ExitThresholdPct  float64
	Interval          time.Duration
	TrancheUSD        float64
	MaxPerLegUSD      float64
}

func (c Config) withDefaults() Config {
	if c.EntryThresholdPct == 0 {
		c.EntryThresholdPct = 1.0
	}
	if c.ExitThresholdPct == 0 {
		c.ExitThresholdPct = 0.2
	}
	if c.Interval <= 0 {
		c.Interval = 10 * time.Second
	}
	if c.TrancheUSD <= 0 {
		c.TrancheUSD = DefaultTrancheUSD
	}
	if c.MaxPerLegUSD <= 0 {
		c.MaxPerLegUSD = DefaultMaxPerLegUSD
	}
	return c
}

// Trader is the periodic driver that opens tranches on wide spreads and
// unwinds them when the spread collapses. Single writer of the book.
type Trader struct {
	cfg      Config
	scanner  Scanner
	book     *Book
	executor exec.Executor
	events   *tradelog.Writer
	sink     EventSink
}

// NewTrader wires the trader. sink may be nil.
func NewTrader(cfg Config, scanner Scanner, executor exec.Executor, events *tradelog.Writer, sink EventSink) *Trader {
	cfg = cfg.withDefaults()
	return &Trader{
		cfg:      cfg,
		scanner:  scanner,
		book:     NewBook(cfg.MaxPerLegUSD),
		executor: executor,
		events:   events,
		sink:     sink,
	}
}

// Book exposes the position book for inspection.
func (t *Trader) Book() *Book {
	return t.book
}

// Run ticks every configured interval until ctx is cancelled. In-flight
// order pairs are not rolled back on cancellation.
func (t *Trader) Run(ctx context.Context) {
	ticker := time.NewTicker(t.cfg.Interval)
	defer ticker.Stop()
	for {
		t.Tick(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Tick runs one entry/exit pass over the current opportunity set.
func (t *Trader) Tick(ctx context.Context) {
	rows := t.scanner.Scan(contango.Params{MinSpreadPct: 0})
	t.tryEnter(ctx, rows)
	t.tryExit(ctx, rows)
}

// execution is the payload embedded in trade events.
type execution struct {
	Mode  string              `json:"mode"`
	Qty   float64             `json:"qty"`
	USD   float64             `json:"usd_amount"`
	Legs  []exec.Confirmation `json:"legs,omitempty"`
	Error string              `json:"error,omitempty"`
}

func (t *Trader) tryEnter(ctx context.Context, rows []contango.Row) {
	var best *contango.Row
	for i := range rows {
		if rows[i].Pct >= t.cfg.EntryThresholdPct && rows[i].FundingRate >= 0 {
			best = &rows[i]
			break
		}
	}
	if best == nil {
		return
	}

	key := Key{SpotVenue: best.SpotVenue, FuturesVenue: best.FuturesVenue, Base: best.Base}
	pos := t.book.Get(key)
	usd := t.cfg.TrancheUSD
	if remaining := t.cfg.MaxPerLegUSD - pos.NotionalUSD; usd > remaining {
		usd = remaining
	}
	if usd <= Epsilon {
		return
	}

	// Short futures first, then buy spot. The book records the entry
	// only after the executor returns.
	qty := usd / best.FuturesPriceUSD
	payload := execution{Mode: "open", Qty: qty, USD: usd}
	legs := []exec.Order{
		{Venue: best.FuturesVenue, Symbol: best.FuturesSymbol, Side: exec.Sell, Qty: qty},
		{Venue: best.SpotVenue, Symbol: best.Base + "/KRW", Side: exec.Buy, Qty: qty},
	}
	for _, order := range legs {
		conf, err := t.executor.Place(ctx, order)
		if err != nil {
			log.Error().Err(err).Str("position", key.String()).Msg("entry leg failed")
			payload.Error = err.Error()
			break
		}
		payload.Legs = append(payload.Legs, conf)
	}
	if len(payload.Legs) == 0 {
		// Nothing filled; no exposure to record.
		return
	}

	added := pos.RecordEntry(usd, best.FuturesPriceUSD, best.SpotPriceUSD)
	if err := pos.CheckInvariant(); err != nil {
		log.Error().Err(err).Msg("position invariant")
	}
	metrics.PositionNotional.WithLabelValues(key.String()).Set(pos.NotionalUSD)
	metrics.RecordTradeEvent("entry")

	log.Info().
		Str("position", key.String()).
		Float64("usd", added).
		Float64("pct", best.Pct).
		Float64("net_pct", best.NetPct).
		Msg("entered tranche")
	t.emit(ctx, tradelog.Event{
		Event:           "entry",
		Base:            best.Base,
		SpotExchange:    best.SpotVenue,
		FuturesExchange: best.FuturesVenue,
		USD:             added,
		SpreadPct:       best.Pct,
		NetPct:          best.NetPct,
		FundingRate:     best.FundingRate,
		Execution:       payload,
	})
}

func (t *Trader) tryExit(ctx context.Context, rows []contango.Row) {
	// Highest-pct row per key; rows arrive sorted descending.
	current := make(map[Key]*contango.Row, len(rows))
	for i := range rows {
		k := Key{SpotVenue: rows[i].SpotVenue, FuturesVenue: rows[i].FuturesVenue, Base: rows[i].Base}
		if _, ok := current[k]; !ok {
			current[k] = &rows[i]
		}
	}

	for _, pos := range t.book.Positions() {
		row, ok := current[pos.Key]
		if !ok || row.Pct > t.cfg.ExitThresholdPct || pos.NotionalUSD <= Epsilon {
			continue
		}

		usd := t.cfg.TrancheUSD
		if usd > pos.NotionalUSD {
			usd = pos.NotionalUSD
		}

		// The book records the unwind before the executor runs; fills
		// that diverge from intent are an operator problem.
		closed, pnl, portions := pos.RecordExit(usd, row.FuturesPriceUSD, row.SpotPriceUSD)
		if err := pos.CheckInvariant(); err != nil {
			log.Error().Err(err).Msg("position invariant")
		}
		if closed <= 0 {
			continue
		}

		qty := closed / row.FuturesPriceUSD
		payload := execution{Mode: "close", Qty: qty, USD: closed}
		legs := []exec.Order{
			{Venue: pos.Key.FuturesVenue, Symbol: row.FuturesSymbol, Side: exec.Buy, Qty: qty},
			{Venue: pos.Key.SpotVenue, Symbol: pos.Key.Base + "/KRW", Side: exec.Sell, Qty: qty},
		}
		for _, order := range legs {
			conf, err := t.executor.Place(ctx, order)
			if err != nil {
				log.Error().Err(err).Str("position", pos.Key.String()).Msg("exit leg failed")
				payload.Error = err.Error()
				break
			}
			payload.Legs = append(payload.Legs, conf)
		}

		metrics.PositionNotional.WithLabelValues(pos.Key.String()).Set(pos.NotionalUSD)
		metrics.RecordTradeEvent("exit")

		log.Info().
			Str("position", pos.Key.String()).
			Float64("usd", closed).
			Float64("pnl_usd", pnl).
			Float64("pct", row.Pct).
			Msg("closed tranche")
		t.emit(ctx, tradelog.Event{
			Event:           "exit",
			Base:            pos.Key.Base,
			SpotExchange:    pos.Key.SpotVenue,
			FuturesExchange: pos.Key.FuturesVenue,
			USD:             closed,
			SpreadPct:       row.Pct,
			NetPct:          row.NetPct,
			FundingRate:     row.FundingRate,
			PnlUSD:          &pnl,
			Portions:        portions,
			Execution:       payload,
		})

		if pos.Empty() {
			t.book.Remove(pos.Key)
			metrics.PositionNotional.DeleteLabelValues(pos.Key.String())
		}
	}
}

func (t *Trader) emit(ctx context.Context, event tradelog.Event) {
	event.Timestamp = venue.Now()
	if t.events != nil {
		if err := t.events.Append(event); err != nil {
			log.Error().Err(err).Msg("trade log append")
		}
	}
	if t.sink != nil {
		if err := t.sink.PublishTradeEvent(ctx, event); err != nil {
			log.Warn().Err(err).Msg("trade event publish")
		}
	}
}
