package polymarket

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/buttenhook/polymarket-bot/internal/crypto"
	"github.com/buttenhook/polymarket-bot/internal/domain"
)

// ClobClient is the REST client for the Polymarket CLOB (Central Limit Order
// Book) API. It submits market orders for the funded wallet address using
// HMAC-authenticated requests.
type ClobClient struct {
	baseURL    string
	address    string
	httpClient *http.Client
	hmacAuth   *crypto.HMACAuth
}

var _ domain.ExecutionGateway = (*ClobClient)(nil)

// NewClobClient creates a new CLOB REST client.
//
// baseURL is the CLOB API root, e.g. "https://clob.polymarket.com".
// address is the funded wallet address the API credentials belong to.
func NewClobClient(baseURL, address string, hmacAuth *crypto.HMACAuth) *ClobClient {
	return &ClobClient{
		baseURL: baseURL,
		address: address,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		hmacAuth: hmacAuth,
	}
}

// SubmitOrder places a marketable order on the given side and returns the
// exchange order ID. A rejection from the exchange surfaces as
// ErrOrderRejected; transport failures surface as ErrConnectivity so callers
// can retry.
func (c *ClobClient) SubmitOrder(ctx context.Context, marketID string, side domain.Side, sizeUSD float64) (string, error) {
	if side != domain.SideYes && side != domain.SideNo {
		return "", fmt.Errorf("polymarket/clob: side %q: %w", side, domain.ErrOrderRejected)
	}

	body := map[string]any{
		"market":    marketID,
		"outcome":   string(side),
		"side":      "BUY",
		"sizeUsd":   fmt.Sprintf("%.2f", sizeUSD),
		"orderType": "FOK",
	}

	respBody, err := c.doAuthenticatedRequest(ctx, http.MethodPost, "/order", body)
	if err != nil {
		return "", fmt.Errorf("polymarket/clob: post order: %w", err)
	}

	var result APIOrderResult
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("polymarket/clob: decode order result: %w", err)
	}
	if !result.Success {
		if result.ShouldRetry {
			return "", fmt.Errorf("polymarket/clob: order not accepted: %s: %w",
				result.ErrorMsg, domain.ErrConnectivity)
		}
		return "", fmt.Errorf("polymarket/clob: %s: %w", result.ErrorMsg, domain.ErrOrderRejected)
	}
	return result.OrderID, nil
}

// doAuthenticatedRequest builds, signs (HMAC), sends, and reads an HTTP
// request against the CLOB API. It returns the raw response body.
func (c *ClobClient) doAuthenticatedRequest(ctx context.Context, method, path string, body any) ([]byte, error) {
	var bodyReader io.Reader
	var bodyStr string

	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		bodyStr = string(jsonBody)
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if c.hmacAuth != nil {
		for k, v := range c.hmacAuth.L2Headers(c.address, method, path, bodyStr) {
			req.Header.Set(k, v)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w: %v", domain.ErrConnectivity, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if err := checkHTTPStatus(resp.StatusCode, respBody); err != nil {
		return nil, err
	}
	return respBody, nil
}

// checkHTTPStatus maps non-2xx status codes to appropriate domain errors.
func checkHTTPStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	bodyStr := string(body)
	switch statusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, bodyStr)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", domain.ErrUnauthorized, bodyStr)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", domain.ErrRateLimited, bodyStr)
	default:
		return fmt.Errorf("HTTP %d: %s", statusCode, bodyStr)
	}
}
