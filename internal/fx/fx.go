// Package fx derives the KRW to USD conversion factor from a spot venue's
// USDT/KRW ticker and memoises it over a short TTL.
package fx

import (
	"errors"
	"sync"
	"time"

	"contango-scanner/internal/venue"
)

// ErrMissingUsdKrw is returned when a spot venue has no usable USDT/KRW
// quote. The venue contributes no rows for that tick.
var ErrMissingUsdKrw = errors.New("missing USDT/KRW reference quote")

// DefaultTTL bounds how long a memoised rate may be reused.
const DefaultTTL = 30 * time.Second

type record struct {
	raw  float64
	rate float64
	at   time.Time
}

// Cache holds one memoised KRW->USD rate per spot venue. Re-queries within
// the TTL that see an unchanged raw reading return the identical value, so
// the rate is stable across tick bursts.
type Cache struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	records map[venue.ID]*record
}

// NewCache creates a rate cache with the given TTL (DefaultTTL if zero).
func NewCache(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		ttl:     ttl,
		now:     time.Now,
		records: make(map[venue.ID]*record),
	}
}

// Rate extracts the KRW-per-USDT price from the venue's USDT/KRW quote,
// preferring ask and falling back to last. Non-positive or absent readings
// yield ErrMissingUsdKrw.
func (c *Cache) Rate(id venue.ID, usdtKrw venue.Quote, ok bool) (float64, error) {
	if !ok {
		return 0, ErrMissingUsdKrw
	}
	var raw float64
	switch {
	case usdtKrw.Ask != nil && *usdtKrw.Ask > 0:
		raw = *usdtKrw.Ask
	case usdtKrw.Last != nil && *usdtKrw.Last > 0:
		raw = *usdtKrw.Last
	default:
		return 0, ErrMissingUsdKrw
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if rec, exists := c.records[id]; exists && rec.raw == raw && now.Sub(rec.at) < c.ttl {
		return rec.rate, nil
	}
	c.records[id] = &record{raw: raw, rate: raw, at: now}
	return raw, nil
}
