// Package okx implements the OKX USDT perpetual feed over the public v5
// WebSocket: tickers, books5 and funding-rate channels.
package okx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"contango-scanner/internal/metrics"
	"contango-scanner/internal/venue"
)

const (
	wsURL     = "wss://ws.okx.com:8443/ws/v5/public"
	restURL   = "https://www.okx.com"
	chunkSize = 20
)

var channels = []string{"tickers", "books5", "funding-rate"}

// Protocol streams quotes and funding for a fixed set of SWAP instruments.
type Protocol struct {
	instIDs []string
}

// NewProtocol creates the protocol for the given instIds ("BTC-USDT-SWAP").
func NewProtocol(instIDs []string) *Protocol {
	return &Protocol{instIDs: instIDs}
}

func (p *Protocol) Venue() venue.ID { return venue.OKX }
func (p *Protocol) URL() string { return wsURL }

type subArg struct {
	Channel string `json:"channel"`
	InstID  string `json:"instId"`
}

type subRequest struct {
	Op   string   `json:"op"`
	Args []subArg `json:"args"`
}

// Subscribe sends every channel in 20-instrument batches.
func (p *Protocol) Subscribe(ctx context.Context, send venue.SendFunc) error {
	first := true
	for _, ch := range channels {
		for _, chunk := range venue.Chunks(p.instIDs, chunkSize) {
			if !first {
				if err := venue.SleepChunk(ctx); err != nil {
					return err
				}
			}
			first = false

			args := make([]subArg, 0, len(chunk))
			for _, id := range chunk {
				args = append(args, subArg{Channel: ch, InstID: id})
			}
			frame, err := json.Marshal(subRequest{Op: "subscribe", Args: args})
			if err != nil {
				return err
			}
			if err := send(frame); err != nil {
				return fmt.Errorf("send subscribe: %w", err)
			}
		}
	}
	return nil
}

type wsMessage struct {
	Op    string          `json:"op"`
	Event string          `json:"event"`
	Arg   subArg          `json:"arg"`
	Data  json.RawMessage `json:"data"`
}

type tickerData struct {
	InstID string `json:"instId"`
	BidPx  string `json:"bidPx"`
	AskPx  string `json:"askPx"`
	Last   string `json:"last"`
	MarkPx string `json:"markPx"`
}

type booksData struct {
	Bids [][]string `json:"bids"`
	Asks [][]string `json:"asks"`
}

type fundingData struct {
	InstID      string `json:"instId"`
	FundingRate string `json:"fundingRate"`
}

// HandleFrame answers server pings and routes data frames by channel.
func (p *Protocol) HandleFrame(frame []byte, send venue.SendFunc) ([]venue.Update, error) {
	if bytes.Equal(frame, []byte("ping")) {
		return nil, send([]byte("pong"))
	}

	var msg wsMessage
	if err := json.Unmarshal(frame, &msg); err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	if msg.Op == "ping" {
		return nil, send([]byte(`{"op":"pong"}`))
	}
	if msg.Event != "" || len(msg.Data) == 0 {
		return nil, nil
	}

	switch msg.Arg.Channel {
	case "tickers":
		return p.handleTickers(msg.Data)
	case "books5":
		return p.handleBooks(msg.Arg.InstID, msg.Data)
	case "funding-rate":
		return p.handleFunding(msg.Data)
	}
	return nil, nil
}

func (p *Protocol) handleTickers(data json.RawMessage) ([]venue.Update, error) {
	var tickers []tickerData
	if err := json.Unmarshal(data, &tickers); err != nil {
		return nil, fmt.Errorf("decode tickers: %w", err)
	}
	updates := make([]venue.Update, 0, len(tickers))
	for _, t := range tickers {
		if t.InstID == "" {
			continue
		}
		updates = append(updates, venue.Update{
			Key:  t.InstID,
			Bid:  parsePx(t.BidPx),
			Ask:  parsePx(t.AskPx),
			Last: parsePx(t.Last),
			Mark: parsePx(t.MarkPx),
		})
	}
	return updates, nil
}

func (p *Protocol) handleBooks(instID string, data json.RawMessage) ([]venue.Update, error) {
	var books []booksData
	if err := json.Unmarshal(data, &books); err != nil {
		return nil, fmt.Errorf("decode books5: %w", err)
	}
	if instID == "" || len(books) == 0 {
		return nil, nil
	}
	u := venue.Update{Key: instID}
	if b := books[0]; len(b.Bids) > 0 && len(b.Bids[0]) > 0 {
		u.Bid = parsePx(b.Bids[0][0])
	}
	if b := books[0]; len(b.Asks) > 0 && len(b.Asks[0]) > 0 {
		u.Ask = parsePx(b.Asks[0][0])
	}
	if u.Bid == nil && u.Ask == nil {
		return nil, nil
	}
	return []venue.Update{u}, nil
}

func (p *Protocol) handleFunding(data json.RawMessage) ([]venue.Update, error) {
	var rates []fundingData
	if err := json.Unmarshal(data, &rates); err != nil {
		return nil, fmt.Errorf("decode funding-rate: %w", err)
	}
	updates := make([]venue.Update, 0, len(rates))
	for _, r := range rates {
		rate := parsePx(r.FundingRate)
		if r.InstID == "" || rate == nil {
			continue
		}
		metrics.RecordFundingRate(string(venue.OKX), r.InstID, *rate)
		updates = append(updates, venue.Update{Key: r.InstID, FundingRate: rate})
	}
	return updates, nil
}

func (p *Protocol) KeepaliveInterval() time.Duration { return 0 }
func (p *Protocol) Keepalive(_ venue.SendFunc) error { return nil }

func parsePx(s string) *float64 {
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return venue.Float(v)
}

type instrumentsResponse struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
	Data []struct {
		InstID string `json:"instId"`
		State  string `json:"state"`
	} `json:"data"`
}

// LoadCatalog fetches every live USDT-margined perpetual.
func LoadCatalog(ctx context.Context, rest *venue.RESTClient) ([]venue.Instrument, error) {
	return loadCatalog(ctx, rest, restURL)
}

func loadCatalog(ctx context.Context, rest *venue.RESTClient, base string) ([]venue.Instrument, error) {
	var resp instrumentsResponse
	url := base + "/api/v5/public/instruments?instType=SWAP"
	if err := rest.GetJSON(ctx, "instruments", url, &resp); err != nil {
		return nil, err
	}
	if resp.Code != "0" {
		return nil, fmt.Errorf("okx instruments: code %s: %s", resp.Code, resp.Msg)
	}
	out := make([]venue.Instrument, 0, len(resp.Data))
	for _, inst := range resp.Data {
		base, ok := strings.CutSuffix(inst.InstID, "-USDT-SWAP")
		if !ok || (inst.State != "" && inst.State != "live") {
			continue
		}
		out = append(out, venue.Instrument{
			Key:    inst.InstID,
			Base:   venue.NormalizeBase(base),
			Symbol: base + "/USDT:USDT",
		})
	}
	metrics.InstrumentsLoaded.WithLabelValues(string(venue.OKX)).Set(float64(len(out)))
	return out, nil
}
