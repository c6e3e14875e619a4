// Package httpx provides the pooled JSON HTTP client shared by exchange
// fetchers, discovery probes, and the price service.
package httpx

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

const defaultUserAgent = "opportune/1.0 (+https://github.com/quantpulse/opportune)"

// Client wraps http.Client with the headers and limits every outbound call
// in the engine uses. The zero read cap is 8 MiB; exchange ticker payloads
// stay well under it.
type Client struct {
	hc        *http.Client
	userAgent string
	maxBody   int64
	log       zerolog.Logger
}

// New creates a client with the given per-request timeout.
func New(timeout time.Duration, log zerolog.Logger) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		hc: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        64,
				MaxIdleConnsPerHost: 8,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		userAgent: defaultUserAgent,
		maxBody:   8 << 20,
		log:       log.With().Str("component", "httpx").Logger(),
	}
}

// GetRaw performs a GET and returns the status code and body. A non-2xx
// status is not an error; callers inspect the code (429 handling needs it).
func (c *Client) GetRaw(ctx context.Context, url string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("get %s: %w", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read body: %w", err)
	}
	return resp.StatusCode, body, nil
}

// GetJSON performs a GET and decodes a 2xx JSON body into out.
func (c *Client) GetJSON(ctx context.Context, url string, out any) (int, error) {
	status, body, err := c.GetRaw(ctx, url)
	if err != nil {
		return status, err
	}
	if status < 200 || status >= 300 {
		return status, fmt.Errorf("get %s: status %d", url, status)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return status, fmt.Errorf("decode %s: %w", url, err)
	}
	return status, nil
}
