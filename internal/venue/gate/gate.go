// Package gate implements the Gate USDT perpetual feed over the v4
// futures WebSocket: tickers, order book and funding rate channels.
package gate

import (
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
	wsURL     = "wss://fx-ws.gateio.ws/v4/ws/usdt"
	restURL   = "https://api.gateio.ws"
	chunkSize = 30

	bookDepth    = "20"
	bookInterval = "0"
)

// Protocol streams quotes and funding for a fixed set of USDT contracts.
type Protocol struct {
	contracts []string
}

// NewProtocol creates the protocol for the given contracts ("BTC_USDT").
func NewProtocol(contracts []string) *Protocol {
	return &Protocol{contracts: contracts}
}

func (p *Protocol) Venue() venue.ID { return venue.Gate }
func (p *Protocol) URL() string { return wsURL }

type request struct {
	Time    int64       `json:"time"`
	Channel string      `json:"channel"`
	Event   string      `json:"event,omitempty"`
	Payload interface{} `json:"payload,omitempty"`
}

// Subscribe sends tickers, order book and funding subscriptions in
// 30-contract batches.
func (p *Protocol) Subscribe(ctx context.Context, send venue.SendFunc) error {
	first := true
	for _, chunk := range venue.Chunks(p.contracts, chunkSize) {
		books := make([][]string, 0, len(chunk))
		for _, c := range chunk {
			books = append(books, []string{c, bookDepth, bookInterval})
		}
		frames := []request{
			{Channel: "futures.tickers", Event: "subscribe", Payload: chunk},
			{Channel: "futures.order_book", Event: "subscribe", Payload: books},
			{Channel: "futures.funding_rate", Event: "subscribe", Payload: chunk},
		}
		for _, req := range frames {
			if !first {
				if err := venue.SleepChunk(ctx); err != nil {
					return err
				}
			}
			first = false

			req.Time = time.Now().Unix()
			frame, err := json.Marshal(req)
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
	Channel string          `json:"channel"`
	Event   string          `json:"event"`
	Result  json.RawMessage `json:"result"`
}

type tickerResult struct {
	Contract    string `json:"contract"`
	Last        string `json:"last"`
	MarkPrice   string `json:"mark_price"`
	FundingRate string `json:"funding_rate"`
}

type bookLevel struct {
	Price string  `json:"p"`
	Size  float64 `json:"s"`
}

type bookResult struct {
	Contract string      `json:"contract"`
	Bids     []bookLevel `json:"bids"`
	Asks     []bookLevel `json:"asks"`
}

// HandleFrame echoes pings and routes updates by channel.
func (p *Protocol) HandleFrame(frame []byte, send venue.SendFunc) ([]venue.Update, error) {
	var msg wsMessage
	if err := json.Unmarshal(frame, &msg); err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	if msg.Event == "ping" || msg.Channel == "futures.ping" {
		pong, err := json.Marshal(request{Time: time.Now().Unix(), Channel: "futures.ping"})
		if err != nil {
			return nil, err
		}
		return nil, send(pong)
	}
	if msg.Event == "subscribe" || len(msg.Result) == 0 {
		return nil, nil
	}

	switch msg.Channel {
	case "futures.tickers":
		return p.handleTickers(msg.Result)
	case "futures.order_book":
		return p.handleBook(msg.Result)
	case "futures.funding_rate":
		return p.handleFunding(msg.Result)
	}
	return nil, nil
}

func (p *Protocol) handleTickers(result json.RawMessage) ([]venue.Update, error) {
	var tickers []tickerResult
	if err := json.Unmarshal(result, &tickers); err != nil {
		return nil, fmt.Errorf("decode tickers: %w", err)
	}
	updates := make([]venue.Update, 0, len(tickers))
	for _, t := range tickers {
		if t.Contract == "" {
			continue
		}
		u := venue.Update{
			Key:         t.Contract,
			Last:        parseDecimal(t.Last),
			Mark:        parseDecimal(t.MarkPrice),
			FundingRate: parseDecimal(t.FundingRate),
		}
		if u.FundingRate != nil {
			metrics.RecordFundingRate(string(venue.Gate), t.Contract, *u.FundingRate)
		}
		updates = append(updates, u)
	}
	return updates, nil
}

// Full-book snapshots ("all" events) and incremental updates both carry a
// sorted bid side; only the top level matters here.
func (p *Protocol) handleBook(result json.RawMessage) ([]venue.Update, error) {
	var book bookResult
	if err := json.Unmarshal(result, &book); err != nil {
		return nil, fmt.Errorf("decode order_book: %w", err)
	}
	if book.Contract == "" {
		return nil, nil
	}
	u := venue.Update{Key: book.Contract}
	if len(book.Bids) > 0 {
		u.Bid = parseDecimal(book.Bids[0].Price)
	}
	if len(book.Asks) > 0 {
		u.Ask = parseDecimal(book.Asks[0].Price)
	}
	if u.Bid == nil && u.Ask == nil {
		return nil, nil
	}
	return []venue.Update{u}, nil
}

func (p *Protocol) handleFunding(result json.RawMessage) ([]venue.Update, error) {
	var rates []struct {
		Contract string `json:"contract"`
		Rate     string `json:"funding_rate"`
	}
	if err := json.Unmarshal(result, &rates); err != nil {
		return nil, fmt.Errorf("decode funding_rate: %w", err)
	}
	updates := make([]venue.Update, 0, len(rates))
	for _, r := range rates {
		rate := parseDecimal(r.Rate)
		if r.Contract == "" || rate == nil {
			continue
		}
		metrics.RecordFundingRate(string(venue.Gate), r.Contract, *rate)
		updates = append(updates, venue.Update{Key: r.Contract, FundingRate: rate})
	}
	return updates, nil
}

func (p *Protocol) KeepaliveInterval() time.Duration { return 0 }
func (p *Protocol) Keepalive(_ venue.SendFunc) error { return nil }

func parseDecimal(s string) *float64 {
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return venue.Float(v)
}

type contract struct {
	Name        string `json:"name"`
	InDelisting bool   `json:"in_delisting"`
}

// LoadCatalog fetches every listed USDT-settled perpetual contract.
func LoadCatalog(ctx context.Context, rest *venue.RESTClient) ([]venue.Instrument, error) {
	return loadCatalog(ctx, rest, restURL)
}

func loadCatalog(ctx context.Context, rest *venue.RESTClient, base string) ([]venue.Instrument, error) {
	var contracts []contract
	url := base + "/api/v4/futures/usdt/contracts"
	if err := rest.GetJSON(ctx, "contracts", url, &contracts); err != nil {
		return nil, err
	}
	out := make([]venue.Instrument, 0, len(contracts))
	for _, c := range contracts {
		base, ok := strings.CutSuffix(c.Name, "_USDT")
		if !ok || c.InDelisting {
			continue
		}
		out = append(out, venue.Instrument{
			Key:    c.Name,
			Base:   venue.NormalizeBase(base),
			Symbol: base + "/USDT:USDT",
		})
	}
	metrics.InstrumentsLoaded.WithLabelValues(string(venue.Gate)).Set(float64(len(out)))
	return out, nil
}
