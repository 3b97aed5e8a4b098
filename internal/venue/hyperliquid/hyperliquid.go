// Package hyperliquid implements the Hyperliquid perpetual feed: per-coin
// bbo and activeAssetCtx subscriptions plus the info meta catalog.
package hyperliquid

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"contango-scanner/internal/metrics"
	"contango-scanner/internal/venue"
)

const (
	wsURL     = "wss://api.hyperliquid.xyz/ws"
	restURL   = "https://api.hyperliquid.xyz"
	chunkSize = 40

	pingInterval = 30 * time.Second
)

// Protocol streams best bid/offer and asset context for a set of coins.
type Protocol struct {
	coins []string
}

// NewProtocol creates the protocol for the given coin names ("BTC").
func NewProtocol(coins []string) *Protocol {
	return &Protocol{coins: coins}
}

func (p *Protocol) Venue() venue.ID { return venue.Hyperliquid }
func (p *Protocol) URL() string { return wsURL }

type subscription struct {
	Type string `json:"type"`
	Coin string `json:"coin"`
}

type wsRequest struct {
	Method       string        `json:"method"`
	Subscription *subscription `json:"subscription,omitempty"`
}

// Subscribe requests bbo and activeAssetCtx per coin, pausing between
// 40-coin batches.
func (p *Protocol) Subscribe(ctx context.Context, send venue.SendFunc) error {
	for i, chunk := range venue.Chunks(p.coins, chunkSize) {
		if i > 0 {
			if err := venue.SleepChunk(ctx); err != nil {
				return err
			}
		}
		for _, coin := range chunk {
			for _, typ := range []string{"bbo", "activeAssetCtx"} {
				frame, err := json.Marshal(wsRequest{
					Method:       "subscribe",
					Subscription: &subscription{Type: typ, Coin: coin},
				})
				if err != nil {
					return err
				}
				if err := send(frame); err != nil {
					return fmt.Errorf("send subscribe: %w", err)
				}
			}
		}
	}
	return nil
}

type wsMessage struct {
	Channel string          `json:"channel"`
	Data    json.RawMessage `json:"data"`
}

type bboLevel struct {
	Px string `json:"px"`
	Sz string `json:"sz"`
}

type bboData struct {
	Coin string      `json:"coin"`
	BBO  [2]*bboLevel `json:"bbo"`
}

type assetCtxData struct {
	Coin string `json:"coin"`
	Ctx  struct {
		Funding string `json:"funding"`
		MarkPx  string `json:"markPx"`
	} `json:"ctx"`
}

// HandleFrame routes bbo and activeAssetCtx updates; everything else
// (pong, subscriptionResponse) is ignored.
func (p *Protocol) HandleFrame(frame []byte, _ venue.SendFunc) ([]venue.Update, error) {
	var msg wsMessage
	if err := json.Unmarshal(frame, &msg); err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}

	switch msg.Channel {
	case "bbo":
		var data bboData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			return nil, fmt.Errorf("decode bbo: %w", err)
		}
		if data.Coin == "" {
			return nil, nil
		}
		u := venue.Update{Key: data.Coin}
		if data.BBO[0] != nil {
			u.Bid = parsePx(data.BBO[0].Px)
		}
		if data.BBO[1] != nil {
			u.Ask = parsePx(data.BBO[1].Px)
		}
		if u.Bid == nil && u.Ask == nil {
			return nil, nil
		}
		return []venue.Update{u}, nil

	case "activeAssetCtx":
		var data assetCtxData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			return nil, fmt.Errorf("decode activeAssetCtx: %w", err)
		}
		if data.Coin == "" {
			return nil, nil
		}
		u := venue.Update{
			Key:         data.Coin,
			Mark:        parsePx(data.Ctx.MarkPx),
			FundingRate: parsePx(data.Ctx.Funding),
		}
		if u.FundingRate != nil {
			metrics.RecordFundingRate(string(venue.Hyperliquid), data.Coin, *u.FundingRate)
		}
		if u.Mark == nil && u.FundingRate == nil {
			return nil, nil
		}
		return []venue.Update{u}, nil
	}
	return nil, nil
}

// The server drops connections idle for a minute; ping every 30 s.
func (p *Protocol) KeepaliveInterval() time.Duration { return pingInterval }

func (p *Protocol) Keepalive(send venue.SendFunc) error {
	return send([]byte(`{"method":"ping"}`))
}

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

type metaResponse struct {
	Universe []struct {
		Name       string `json:"name"`
		IsDelisted bool   `json:"isDelisted"`
	} `json:"universe"`
}

// LoadCatalog fetches the perpetual universe from the info endpoint.
func LoadCatalog(ctx context.Context, rest *venue.RESTClient) ([]venue.Instrument, error) {
	return loadCatalog(ctx, rest, restURL)
}

func loadCatalog(ctx context.Context, rest *venue.RESTClient, base string) ([]venue.Instrument, error) {
	var resp metaResponse
	body := map[string]string{"type": "meta"}
	if err := rest.PostJSON(ctx, "meta", base+"/info", body, &resp); err != nil {
		return nil, err
	}
	out := make([]venue.Instrument, 0, len(resp.Universe))
	for _, asset := range resp.Universe {
		if asset.Name == "" || asset.IsDelisted {
			continue
		}
		out = append(out, venue.Instrument{
			Key:    asset.Name,
			Base:   venue.NormalizeBase(asset.Name),
			Symbol: asset.Name + "/USDC:USDC",
		})
	}
	metrics.InstrumentsLoaded.WithLabelValues(string(venue.Hyperliquid)).Set(float64(len(out)))
	return out, nil
}
