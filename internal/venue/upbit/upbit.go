// Package upbit implements the Upbit KRW spot feed: public WebSocket
// orderbook stream plus the REST market catalog.
package upbit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"contango-scanner/internal/metrics"
	"contango-scanner/internal/venue"
)

const (
	wsURL      = "wss://sg-api.upbit.com/websocket/v1"
	restURL    = "https://api.upbit.com"
	chunkSize  = 50
	quoteAsset = "KRW"
)

// Protocol streams top-of-book orderbooks for a fixed set of KRW markets.
type Protocol struct {
	codes []string
}

// NewProtocol creates the protocol for the given market codes ("KRW-BTC").
func NewProtocol(codes []string) *Protocol {
	return &Protocol{codes: codes}
}

func (p *Protocol) Venue() venue.ID { return venue.Upbit }
func (p *Protocol) URL() string { return wsURL }

// Subscribe sends one ticketed orderbook subscription per 50-code chunk.
func (p *Protocol) Subscribe(ctx context.Context, send venue.SendFunc) error {
	for i, chunk := range venue.Chunks(p.codes, chunkSize) {
		if i > 0 {
			if err := venue.SleepChunk(ctx); err != nil {
				return err
			}
		}
		frame, err := subscribeFrame(chunk)
		if err != nil {
			return err
		}
		if err := send(frame); err != nil {
			return fmt.Errorf("send subscribe: %w", err)
		}
	}
	return nil
}

func subscribeFrame(codes []string) ([]byte, error) {
	msg := []interface{}{
		map[string]string{"ticket": uuid.NewString()},
		map[string]interface{}{
			"type":             "orderbook",
			"codes":            codes,
			"is_only_realtime": true,
		},
		map[string]string{"format": "DEFAULT"},
	}
	return json.Marshal(msg)
}

type orderbookMsg struct {
	Type   string `json:"type"`
	Market string `json:"market"`
	Units  []struct {
		AskPrice float64 `json:"ask_price"`
		AskSize  float64 `json:"ask_size"`
		BidPrice float64 `json:"bid_price"`
		BidSize  float64 `json:"bid_size"`
	} `json:"orderbook_units"`
}

// HandleFrame parses an orderbook frame. The spot side of the hedge only
// ever buys, so just the best ask is kept.
func (p *Protocol) HandleFrame(frame []byte, _ venue.SendFunc) ([]venue.Update, error) {
	var msg orderbookMsg
	if err := json.Unmarshal(frame, &msg); err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	if msg.Type != "orderbook" || msg.Market == "" || len(msg.Units) == 0 {
		return nil, nil
	}
	return []venue.Update{{
		Key: msg.Market,
		Ask: venue.Float(msg.Units[0].AskPrice),
	}}, nil
}

// No application-level ping; the server keeps the connection alive.
func (p *Protocol) KeepaliveInterval() time.Duration { return 0 }
func (p *Protocol) Keepalive(_ venue.SendFunc) error { return nil }

type market struct {
	Market string `json:"market"`
}

// LoadCatalog fetches every KRW spot market.
func LoadCatalog(ctx context.Context, rest *venue.RESTClient) ([]venue.Instrument, error) {
	return loadCatalog(ctx, rest, restURL)
}

func loadCatalog(ctx context.Context, rest *venue.RESTClient, base string) ([]venue.Instrument, error) {
	var markets []market
	if err := rest.GetJSON(ctx, "market_all", base+"/v1/market/all", &markets); err != nil {
		return nil, err
	}
	out := make([]venue.Instrument, 0, len(markets))
	for _, m := range markets {
		base, ok := strings.CutPrefix(m.Market, quoteAsset+"-")
		if !ok {
			continue
		}
		out = append(out, venue.Instrument{
			Key:    m.Market,
			Base:   venue.NormalizeBase(base),
			Symbol: base + "/" + quoteAsset,
		})
	}
	metrics.InstrumentsLoaded.WithLabelValues(string(venue.Upbit)).Set(float64(len(out)))
	return out, nil
}
