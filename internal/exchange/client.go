package exchange

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

// HTTPClient talks to the exchange connector sidecar over its JSON API.
type HTTPClient struct {
	httpClient *http.Client
	baseURL    string
}

// NewHTTPClient creates a connector client with a per-call timeout.
func NewHTTPClient(serviceURL string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPClient{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimSuffix(serviceURL, "/"),
	}
}

// FetchTicker returns the current top-of-book for a venue-scoped symbol.
func (c *HTTPClient) FetchTicker(ctx context.Context, venue, symbol string) (*TickerResponse, error) {
	path := fmt.Sprintf("/api/ticker/%s/%s", url.PathEscape(venue), url.PathEscape(symbol))
	var resp TickerResponse
	if err := c.makeRequest(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// FetchMarkets lists the symbols currently tradable on a venue.
func (c *HTTPClient) FetchMarkets(ctx context.Context, venue string) (*MarketsResponse, error) {
	path := fmt.Sprintf("/api/markets/%s", url.PathEscape(venue))
	var resp MarketsResponse
	if err := c.makeRequest(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// PlaceMarketOrder submits a market order through the connector.
func (c *HTTPClient) PlaceMarketOrder(ctx context.Context, req *OrderRequest) (*FillResult, error) {
	var resp FillResult
	if err := c.makeRequest(ctx, http.MethodPost, "/api/orders", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Close is provided for interface compatibility; the HTTP client holds no
// resources that need explicit release.
func (c *HTTPClient) Close() error {
	return nil
}

// makeRequest performs one HTTP round-trip against the connector and maps its
// error payloads onto the package error kinds.
func (c *HTTPClient) makeRequest(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "Arbihedron-Go/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return fmt.Errorf("%w: %s %s: %v", ErrNetworkTimeout, method, path, err)
		}
		return fmt.Errorf("connector request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		return c.classifyError(resp.StatusCode, respBody)
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to unmarshal response: %w", err)
		}
	}
	return nil
}

// classifyError turns a connector error payload into a typed error kind.
func (c *HTTPClient) classifyError(status int, body []byte) error {
	var errResp ErrorResponse
	msg := string(body)
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
		msg = errResp.Error
	}

	switch errResp.Code {
	case "network":
		return fmt.Errorf("%w: %s", ErrNetworkTimeout, msg)
	case "rate_limited":
		return fmt.Errorf("%w: %s", ErrRateLimited, msg)
	case "symbol_not_found":
		return fmt.Errorf("%w: %s", ErrSymbolNotFound, msg)
	case "insufficient_balance":
		return fmt.Errorf("%w: %s", ErrInsufficientBalance, msg)
	case "rejected":
		return fmt.Errorf("%w: %s", ErrExchangeRejected, msg)
	}

	switch {
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", ErrRateLimited, msg)
	case status == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrSymbolNotFound, msg)
	case status == http.StatusGatewayTimeout, status == http.StatusBadGateway, status == http.StatusServiceUnavailable:
		return fmt.Errorf("%w: connector error (%d): %s", ErrNetworkTimeout, status, msg)
	default:
		return fmt.Errorf("%w: connector error (%d): %s", ErrExchangeRejected, status, msg)
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ue *url.Error
	if errors.As(err, &ue) {
		return ue.Timeout()
	}
	return false
}
