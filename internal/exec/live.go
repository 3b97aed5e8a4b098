package exec

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"contango-scanner/internal/venue"
)

const orderRPS = 5.0

// liveHosts lists the venues the executor can sign orders for. Hyperliquid
// is absent: its exchange wants wallet-signed payloads, not API keys.
var liveHosts = map[venue.ID]string{
	venue.Upbit:   "https://api.upbit.com",
	venue.Bithumb: "https://api.bithumb.com",
	venue.OKX:     "https://www.okx.com",
	venue.Gate:    "https://api.gateio.ws",
}

func liveSupported(id venue.ID) bool {
	_, ok := liveHosts[id]
	return ok
}

// Live signs and posts market orders against venue REST APIs. One
// credential set per supported venue is resolved up front; construction
// fails before any order when a set is missing.
type Live struct {
	creds map[venue.ID]Credentials
	hosts map[venue.ID]string
	rest  map[venue.ID]*venue.RESTClient

	mu          sync.Mutex
	multipliers map[string]float64 // Gate contract -> coins per contract
}

// NewLive creates the live executor for the given venues. Venues without
// order support are skipped; their orders fail at Place time.
func NewLive(ids []venue.ID) (*Live, error) {
	supported := make([]venue.ID, 0, len(ids))
	for _, id := range ids {
		if !liveSupported(id) {
			log.Warn().Str("venue", string(id)).Msg("no live order support, venue trades only on paper")
			continue
		}
		supported = append(supported, id)
	}
	creds, err := LoadCredentials(supported)
	if err != nil {
		return nil, err
	}

	l := &Live{
		creds:       creds,
		hosts:       make(map[venue.ID]string, len(supported)),
		rest:        make(map[venue.ID]*venue.RESTClient, len(supported)),
		multipliers: make(map[string]float64),
	}
	for _, id := range supported {
		l.hosts[id] = liveHosts[id]
		l.rest[id] = venue.NewRESTClient(id, orderRPS)
	}
	return l, nil
}

var _ Executor = (*Live)(nil)

func (l *Live) Place(ctx context.Context, order Order) (Confirmation, error) {
	if !liveSupported(order.Venue) {
		return Confirmation{}, fmt.Errorf("live orders not supported on %s", order.Venue)
	}
	creds, ok := l.creds[order.Venue]
	if !ok {
		return Confirmation{}, fmt.Errorf("%w for %s", ErrMissingCredentials, order.Venue)
	}

	var (
		id  string
		err error
	)
	switch order.Venue {
	case venue.Gate:
		id, err = l.placeGate(ctx, creds, order)
	case venue.OKX:
		id, err = l.placeOKX(ctx, creds, order)
	case venue.Upbit, venue.Bithumb:
		id, err = l.placeKoreanSpot(ctx, creds, order)
	}
	if err != nil {
		return Confirmation{}, err
	}

	log.Info().
		Str("venue", string(order.Venue)).
		Str("symbol", order.Symbol).
		Str("side", string(order.Side)).
		Float64("qty", order.Qty).
		Str("order_id", id).
		Msg("order placed")
	return Confirmation{
		Venue:   order.Venue,
		Symbol:  order.Symbol,
		Side:    order.Side,
		Qty:     order.Qty,
		OrderID: id,
	}, nil
}

// baseAsset extracts the base from a display symbol like "BTC/USDT:USDT".
func baseAsset(symbol string) string {
	if i := strings.IndexByte(symbol, '/'); i > 0 {
		return symbol[:i]
	}
	return symbol
}

// Gate futures order, signed per the v4 scheme:
// HMAC-SHA512(method\npath\nquery\nsha512(body)\ntimestamp).
// Gate sizes orders in contracts, not coins; the coin quantity is
// converted through the contract's quanto multiplier.
func (l *Live) placeGate(ctx context.Context, creds Credentials, order Order) (string, error) {
	contract := baseAsset(order.Symbol) + "_USDT"
	mult, err := l.gateMultiplier(ctx, contract)
	if err != nil {
		return "", err
	}
	contracts := math.Floor(order.Qty/mult + 1e-9)
	if contracts < 1 {
		return "", fmt.Errorf("gate order: qty %g is below one %s contract (%g coins per contract)",
			order.Qty, contract, mult)
	}
	size := int64(contracts)
	if order.Side == Sell {
		size = -size
	}
	body, err := json.Marshal(map[string]interface{}{
		"contract": contract,
		"size":     size,
		"price":    "0",
		"tif":      "ioc",
	})
	if err != nil {
		return "", err
	}

	path := "/api/v4/futures/usdt/orders"
	ts := time.Now().Unix()
	bodyHash := sha512.Sum512(body)
	payload := fmt.Sprintf("POST\n%s\n\n%s\n%d", path, hex.EncodeToString(bodyHash[:]), ts)
	mac := hmac.New(sha512.New, []byte(creds.Secret))
	mac.Write([]byte(payload))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.hosts[venue.Gate]+path, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("KEY", creds.Key)
	req.Header.Set("Timestamp", strconv.FormatInt(ts, 10))
	req.Header.Set("SIGN", hex.EncodeToString(mac.Sum(nil)))

	var resp struct {
		ID int64 `json:"id"`
	}
	if err := l.rest[venue.Gate].Do(req, "orders", &resp); err != nil {
		return "", fmt.Errorf("gate order: %w", err)
	}
	return strconv.FormatInt(resp.ID, 10), nil
}

// gateMultiplier resolves and caches the coins-per-contract size of a
// Gate USDT contract.
func (l *Live) gateMultiplier(ctx context.Context, contract string) (float64, error) {
	l.mu.Lock()
	if m, ok := l.multipliers[contract]; ok {
		l.mu.Unlock()
		return m, nil
	}
	l.mu.Unlock()

	var detail struct {
		QuantoMultiplier string `json:"quanto_multiplier"`
	}
	url := l.hosts[venue.Gate] + "/api/v4/futures/usdt/contracts/" + contract
	if err := l.rest[venue.Gate].GetJSON(ctx, "contract_detail", url, &detail); err != nil {
		return 0, fmt.Errorf("gate contract %s: %w", contract, err)
	}
	m, err := strconv.ParseFloat(detail.QuantoMultiplier, 64)
	if err != nil || m <= 0 {
		return 0, fmt.Errorf("gate contract %s: bad quanto_multiplier %q", contract, detail.QuantoMultiplier)
	}

	l.mu.Lock()
	l.multipliers[contract] = m
	l.mu.Unlock()
	return m, nil
}

// OKX trade order, signed per the v5 scheme:
// base64(HMAC-SHA256(timestamp+method+path+body)).
func (l *Live) placeOKX(ctx context.Context, creds Credentials, order Order) (string, error) {
	body, err := json.Marshal(map[string]string{
		"instId":  baseAsset(order.Symbol) + "-USDT-SWAP",
		"tdMode":  "cross",
		"side":    string(order.Side),
		"ordType": "market",
		"sz":      strconv.FormatFloat(order.Qty, 'f', -1, 64),
	})
	if err != nil {
		return "", err
	}

	path := "/api/v5/trade/order"
	ts := time.Now().UTC().Format("2006-01-02T15:04:05.000Z")
	mac := hmac.New(sha256.New, []byte(creds.Secret))
	mac.Write([]byte(ts + http.MethodPost + path + string(body)))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.hosts[venue.OKX]+path, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("OK-ACCESS-KEY", creds.Key)
	req.Header.Set("OK-ACCESS-SIGN", base64.StdEncoding.EncodeToString(mac.Sum(nil)))
	req.Header.Set("OK-ACCESS-TIMESTAMP", ts)
	req.Header.Set("OK-ACCESS-PASSPHRASE", creds.Password)

	var resp struct {
		Code string `json:"code"`
		Msg  string `json:"msg"`
		Data []struct {
			OrdID string `json:"ordId"`
			SMsg  string `json:"sMsg"`
		} `json:"data"`
	}
	if err := l.rest[venue.OKX].Do(req, "orders", &resp); err != nil {
		return "", fmt.Errorf("okx order: %w", err)
	}
	if resp.Code != "0" || len(resp.Data) == 0 {
		detail := resp.Msg
		if len(resp.Data) > 0 {
			detail = resp.Data[0].SMsg
		}
		return "", fmt.Errorf("okx order: code %s: %s", resp.Code, detail)
	}
	return resp.Data[0].OrdID, nil
}

// Upbit and Bithumb share the v1 order API authenticated with a JWT whose
// payload carries a SHA512 hash of the query string. Market bids spend a
// KRW amount (ord_type "price"); only asks take a volume.
func (l *Live) placeKoreanSpot(ctx context.Context, creds Credentials, order Order) (string, error) {
	market := "KRW-" + baseAsset(order.Symbol)
	params := map[string]string{"market": market}
	if order.Side == Buy {
		px, err := l.koreanTradePrice(ctx, order.Venue, market)
		if err != nil {
			return "", err
		}
		funds := math.Round(order.Qty*px*10000) / 10000
		params["side"] = "bid"
		params["ord_type"] = "price"
		params["price"] = strconv.FormatFloat(funds, 'f', -1, 64)
	} else {
		params["side"] = "ask"
		params["ord_type"] = "market"
		params["volume"] = strconv.FormatFloat(order.Qty, 'f', -1, 64)
	}

	body, err := json.Marshal(params)
	if err != nil {
		return "", err
	}
	token, err := signedJWT(creds, encodeQuery(params))
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.hosts[order.Venue]+"/v1/orders", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	var resp struct {
		UUID string `json:"uuid"`
	}
	if err := l.rest[order.Venue].Do(req, "orders", &resp); err != nil {
		return "", fmt.Errorf("%s order: %w", order.Venue, err)
	}
	return resp.UUID, nil
}

// koreanTradePrice fetches the latest trade price used to size market-bid
// funds. Upbit and Bithumb share the ticker shape.
func (l *Live) koreanTradePrice(ctx context.Context, id venue.ID, market string) (float64, error) {
	var tickers []struct {
		TradePrice float64 `json:"trade_price"`
	}
	url := l.hosts[id] + "/v1/ticker?markets=" + market
	if err := l.rest[id].GetJSON(ctx, "ticker", url, &tickers); err != nil {
		return 0, fmt.Errorf("%s ticker %s: %w", id, market, err)
	}
	if len(tickers) == 0 || tickers[0].TradePrice <= 0 {
		return 0, fmt.Errorf("%s ticker %s: no trade price", id, market)
	}
	return tickers[0].TradePrice, nil
}

// encodeQuery renders params as the sorted query string the JWT hash covers.
func encodeQuery(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+params[k])
	}
	return strings.Join(parts, "&")
}

func signedJWT(creds Credentials, query string) (string, error) {
	queryHash := sha512.Sum512([]byte(query))
	payload, err := json.Marshal(map[string]string{
		"access_key":     creds.Key,
		"nonce":          uuid.NewString(),
		"query_hash":     hex.EncodeToString(queryHash[:]),
		"query_hash_alg": "SHA512",
	})
	if err != nil {
		return "", err
	}

	enc := base64.RawURLEncoding
	header := enc.EncodeToString([]byte(`{"alg":"HS256","typ":"JWT"}`))
	signing := header + "." + enc.EncodeToString(payload)
	mac := hmac.New(sha256.New, []byte(creds.Secret))
	mac.Write([]byte(signing))
	return signing + "." + enc.EncodeToString(mac.Sum(nil)), nil
}
