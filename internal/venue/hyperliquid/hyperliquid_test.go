package hyperliquid

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contango-scanner/internal/venue"
)

func TestSubscribeTwoFramesPerCoin(t *testing.T) {
	p := NewProtocol([]string{"BTC", "ETH"})

	var frames []wsRequest
	send := func(payload []byte) error {
		var req wsRequest
		require.NoError(t, json.Unmarshal(payload, &req))
		frames = append(frames, req)
		return nil
	}
	require.NoError(t, p.Subscribe(context.Background(), send))

	require.Len(t, frames, 4)
	assert.Equal(t, "subscribe", frames[0].Method)
	assert.Equal(t, "bbo", frames[0].Subscription.Type)
	assert.Equal(t, "BTC", frames[0].Subscription.Coin)
	assert.Equal(t, "activeAssetCtx", frames[1].Subscription.Type)
	assert.Equal(t, "ETH", frames[2].Subscription.Coin)
}

func TestHandleFrameBBO(t *testing.T) {
	p := NewProtocol(nil)
	frame := []byte(`{
		"channel": "bbo",
		"data": {
			"coin": "BTC",
			"time": 1700000000000,
			"bbo": [{"px": "100499.0", "sz": "1.5", "n": 3}, {"px": "100501.0", "sz": "0.8", "n": 2}]
		}
	}`)

	updates, err := p.HandleFrame(frame, nil)
	require.NoError(t, err)
	require.Len(t, updates, 1)
	assert.Equal(t, "BTC", updates[0].Key)
	assert.Equal(t, 100499.0, *updates[0].Bid)
	assert.Equal(t, 100501.0, *updates[0].Ask)
}

func TestHandleFrameBBOMissingSide(t *testing.T) {
	p := NewProtocol(nil)
	frame := []byte(`{"channel": "bbo", "data": {"coin": "BTC", "bbo": [null, {"px": "100501.0"}]}}`)

	updates, err := p.HandleFrame(frame, nil)
	require.NoError(t, err)
	require.Len(t, updates, 1)
	assert.Nil(t, updates[0].Bid)
	assert.Equal(t, 100501.0, *updates[0].Ask)
}

func TestHandleFrameActiveAssetCtx(t *testing.T) {
	p := NewProtocol(nil)
	frame := []byte(`{
		"channel": "activeAssetCtx",
		"data": {"coin": "ETH", "ctx": {"funding": "0.0000125", "markPx": "3500.4"}}
	}`)

	updates, err := p.HandleFrame(frame, nil)
	require.NoError(t, err)
	require.Len(t, updates, 1)
	assert.Equal(t, "ETH", updates[0].Key)
	assert.Equal(t, 0.0000125, *updates[0].FundingRate)
	assert.Equal(t, 3500.4, *updates[0].Mark)
	assert.Nil(t, updates[0].Bid)
}

func TestHandleFrameIgnoresPong(t *testing.T) {
	p := NewProtocol(nil)
	updates, err := p.HandleFrame([]byte(`{"channel": "pong"}`), nil)
	require.NoError(t, err)
	assert.Empty(t, updates)
}

func TestKeepalivePing(t *testing.T) {
	p := NewProtocol(nil)
	assert.Equal(t, pingInterval, p.KeepaliveInterval())

	var sent []byte
	require.NoError(t, p.Keepalive(func(payload []byte) error {
		sent = payload
		return nil
	}))
	assert.JSONEq(t, `{"method":"ping"}`, string(sent))
}

func TestLoadCatalogPostsMeta(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/info", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"type":"meta"}`, string(body))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"universe": [
			{"name": "BTC"},
			{"name": "OLDCOIN", "isDelisted": true},
			{"name": "kPEPE"}
		]}`))
	}))
	defer srv.Close()

	rest := venue.NewRESTClient(venue.Hyperliquid, 100)
	out, err := loadCatalog(context.Background(), rest, srv.URL)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "BTC", out[0].Key)
	assert.Equal(t, "KPEPE", out[1].Base)
}
