package venue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"contango-scanner/internal/metrics"
)

const (
	// SubscribeChunkDelay is the pause between subscription frames so
	// bursts stay below per-connection rate limits.
	SubscribeChunkDelay = 200 * time.Millisecond

	reconnectDelay   = 3 * time.Second
	handshakeTimeout = 10 * time.Second
)

// SendFunc writes one text frame to the venue connection. Writes are
// serialized by the stream client.
type SendFunc func(payload []byte) error

// Protocol captures everything that differs between venues: the
// subscription frame builder, the frame dispatcher and the keepalive
// policy. The reconnect loop in StreamClient is shared.
type Protocol interface {
	Venue() ID
	URL() string

	// Subscribe sends the venue's chunked subscription frames.
	Subscribe(ctx context.Context, send SendFunc) error

	// HandleFrame parses one inbound frame into zero or more cache
	// updates. It may use send to answer protocol-level pings. A non-nil
	// error drops the frame; it never terminates the connection.
	HandleFrame(frame []byte, send SendFunc) ([]Update, error)

	// KeepaliveInterval returns how often Keepalive must be invoked,
	// or 0 when the venue needs no application-level ping.
	KeepaliveInterval() time.Duration
	Keepalive(send SendFunc) error
}

// StreamClient owns one long-lived WebSocket session and the write half
// of its venue's quote cache. Run reconnects forever with a fixed delay;
// transient outages self-heal.
type StreamClient struct {
	proto Protocol
	cache *Cache
}

// NewStreamClient creates a stream client writing into cache.
func NewStreamClient(proto Protocol, cache *Cache) *StreamClient {
	return &StreamClient{proto: proto, cache: cache}
}

// Cache exposes the client's quote cache.
func (c *StreamClient) Cache() *Cache {
	return c.cache
}

// Snapshot returns a deep copy of the current per-instrument map.
func (c *StreamClient) Snapshot() map[string]Quote {
	return c.cache.Snapshot()
}

// Run dials, subscribes and reads until the connection fails, then
// sleeps and retries. It returns only when ctx is cancelled.
func (c *StreamClient) Run(ctx context.Context) {
	id := string(c.proto.Venue())
	for {
		err := c.session(ctx)
		metrics.RecordConnectionStatus(id, false)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			log.Error().Err(err).Str("venue", id).Msg("stream error")
			metrics.RecordStreamError(id)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(reconnectDelay):
			metrics.RecordReconnect(id)
		}
	}
}

func (c *StreamClient) session(ctx context.Context) error {
	id := string(c.proto.Venue())

	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, c.proto.URL(), nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.proto.URL(), err)
	}

	// Closing the conn unblocks the read loop when ctx is cancelled.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
			conn.Close()
		}
	}()

	var writeMu sync.Mutex
	send := func(payload []byte) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteMessage(websocket.TextMessage, payload)
	}

	if err := c.proto.Subscribe(ctx, send); err != nil {
		return fmt.Errorf("subscribe %s: %w", id, err)
	}
	metrics.RecordConnectionStatus(id, true)
	log.Info().Str("venue", id).Msg("stream connected")

	if interval := c.proto.KeepaliveInterval(); interval > 0 {
		go c.keepalive(done, interval, send)
	}

	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}
		updates, err := c.proto.HandleFrame(frame, send)
		if err != nil {
			// Parse errors drop the frame, not the connection.
			log.Debug().Err(err).Str("venue", id).Msg("dropped frame")
			continue
		}
		for _, u := range updates {
			c.cache.Apply(u)
		}
		if len(updates) > 0 {
			metrics.RecordQuoteUpdates(id, len(updates))
		}
	}
}

func (c *StreamClient) keepalive(done <-chan struct{}, interval time.Duration, send SendFunc) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := c.proto.Keepalive(send); err != nil {
				return
			}
		}
	}
}

// Chunks splits items into slices of at most size elements.
func Chunks(items []string, size int) [][]string {
	if size <= 0 || len(items) == 0 {
		return nil
	}
	out := make([][]string, 0, (len(items)+size-1)/size)
	for i := 0; i < len(items); i += size {
		end := i + size
		if end > len(items) {
			end = len(items)
		}
		out = append(out, items[i:end])
	}
	return out
}

// SleepChunk waits the inter-chunk delay, honoring cancellation.
func SleepChunk(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(SubscribeChunkDelay):
		return nil
	}
}
