package venue

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"contango-scanner/internal/metrics"
)

// RESTClient is a rate-limited JSON HTTP client shared by catalog loaders
// and the order gateway. One client per venue keeps request pacing within
// that venue's public limits.
type RESTClient struct {
	venue   ID
	http    *http.Client
	limiter *rate.Limiter
}

// NewRESTClient creates a client allowing rps requests per second with a
// small burst.
func NewRESTClient(id ID, rps float64) *RESTClient {
	return &RESTClient{
		venue:   id,
		http:    &http.Client{Timeout: 15 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(rps), 2),
	}
}

// GetJSON fetches url and decodes the response body into out.
func (c *RESTClient) GetJSON(ctx context.Context, endpoint, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	return c.do(req, endpoint, out)
}

// PostJSON sends body as a JSON POST to url and decodes the response into out.
func (c *RESTClient) PostJSON(ctx context.Context, endpoint, url string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, endpoint, out)
}

// Do waits for the rate limiter, executes req and decodes the JSON body
// into out. Callers that need headers or signing prepare req themselves.
func (c *RESTClient) Do(req *http.Request, endpoint string, out interface{}) error {
	return c.do(req, endpoint, out)
}

func (c *RESTClient) do(req *http.Request, endpoint string, out interface{}) error {
	id := string(c.venue)
	if err := c.limiter.Wait(req.Context()); err != nil {
		return err
	}

	timer := metrics.NewTimer()
	resp, err := c.http.Do(req)
	if err != nil {
		metrics.RestFetchErrors.WithLabelValues(id, endpoint).Inc()
		return fmt.Errorf("%s %s: %w", id, endpoint, err)
	}
	defer resp.Body.Close()
	timer.ObserveDuration(metrics.RestFetchDuration, id, endpoint)

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		metrics.RestFetchErrors.WithLabelValues(id, endpoint).Inc()
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("%s %s: status %d: %s", id, endpoint, resp.StatusCode, snippet)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		metrics.RestFetchErrors.WithLabelValues(id, endpoint).Inc()
		return fmt.Errorf("%s %s: decode: %w", id, endpoint, err)
	}
	return nil
}
