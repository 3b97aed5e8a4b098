package venue

import "sync"

// Cache is the concurrency-safe quote store for a single venue. There is
// one writer (the venue's stream client) and any number of readers; the
// whole map is guarded by one lock and readers always receive a deep copy.
type Cache struct {
	mu     sync.Mutex
	quotes map[string]*Quote
	now    func() float64
}

// NewCache creates an empty quote cache.
func NewCache() *Cache {
	return &Cache{
		quotes: make(map[string]*Quote),
		now:    Now,
	}
}

// Apply field-merges an update into the cached quote for its key and
// stamps the quote with the local wall clock. Records are created on
// first observation and never deleted.
func (c *Cache) Apply(u Update) {
	c.mu.Lock()
	defer c.mu.Unlock()

	q, ok := c.quotes[u.Key]
	if !ok {
		q = &Quote{}
		c.quotes[u.Key] = q
	}
	if u.Bid != nil {
		q.Bid = u.Bid
	}
	if u.Ask != nil {
		q.Ask = u.Ask
	}
	if u.Last != nil {
		q.Last = u.Last
	}
	if u.Mark != nil {
		q.Mark = u.Mark
	}
	if u.FundingRate != nil {
		q.FundingRate = u.FundingRate
	}
	q.Timestamp = c.now()
}

// Get returns the current quote for a key.
func (c *Cache) Get(key string) (Quote, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	q, ok := c.quotes[key]
	if !ok {
		return Quote{}, false
	}
	return *q, true
}

// Snapshot returns an independent point-in-time copy of the whole map so
// downstream iteration is lock-free.
func (c *Cache) Snapshot() map[string]Quote {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[string]Quote, len(c.quotes))
	for key, q := range c.quotes {
		out[key] = *q
	}
	return out
}

// Len returns the number of instruments seen so far.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.quotes)
}
