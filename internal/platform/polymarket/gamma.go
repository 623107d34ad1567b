// Package polymarket provides the Polymarket API clients: the Gamma REST API
// for market discovery and pricing, the CLOB REST API for order execution,
// and the CLOB WebSocket for streaming prices.
package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/buttenhook/polymarket-bot/internal/domain"
)

// GammaClient is the REST client for the Polymarket Gamma API, which provides
// market discovery, metadata, and pricing.
type GammaClient struct {
	baseURL    string
	httpClient *http.Client
}

var _ domain.MarketDataSource = (*GammaClient)(nil)

// NewGammaClient creates a new Gamma API client.
//
// baseURL is the Gamma API root, e.g. "https://gamma-api.polymarket.com".
func NewGammaClient(baseURL string) *GammaClient {
	return &GammaClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// ListActiveMarkets returns up to limit active, open markets ordered by
// volume.
func (g *GammaClient) ListActiveMarkets(ctx context.Context, limit int) ([]domain.Market, error) {
	if limit <= 0 {
		limit = 20
	}
	params := url.Values{}
	params.Set("active", "true")
	params.Set("closed", "false")
	params.Set("limit", strconv.Itoa(limit))
	params.Set("order", "volume")
	params.Set("ascending", "false")

	body, err := g.doGet(ctx, "/markets?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("polymarket/gamma: list markets: %w", err)
	}

	var apiMarkets []APIMarket
	if err := json.Unmarshal(body, &apiMarkets); err != nil {
		return nil, fmt.Errorf("polymarket/gamma: decode markets: %w", err)
	}

	markets := make([]domain.Market, 0, len(apiMarkets))
	for i := range apiMarkets {
		markets = append(markets, apiMarkets[i].ToDomainMarket())
	}
	return markets, nil
}

// CurrentPrice returns the market's implied YES probability. A closed market
// surfaces as ErrMarketUnavailable, a price outside the open interval (0,1)
// as ErrInvalidMarketData.
func (g *GammaClient) CurrentPrice(ctx context.Context, marketID string) (float64, error) {
	m, err := g.getMarket(ctx, marketID)
	if err != nil {
		return 0, err
	}
	if m.Closed {
		return 0, fmt.Errorf("polymarket/gamma: market %s: %w", marketID, domain.ErrMarketUnavailable)
	}
	price := m.yesPrice()
	if price <= 0 || price >= 1 {
		return 0, fmt.Errorf("polymarket/gamma: market %s price %v: %w",
			marketID, price, domain.ErrInvalidMarketData)
	}
	return price, nil
}

// Resolution returns whether the market has resolved and which side won.
func (g *GammaClient) Resolution(ctx context.Context, marketID string) (domain.MarketResolution, error) {
	m, err := g.getMarket(ctx, marketID)
	if err != nil {
		return domain.MarketResolution{}, err
	}
	if !m.Closed {
		return domain.MarketResolution{}, nil
	}
	return domain.MarketResolution{Resolved: true, YesWon: m.yesWon()}, nil
}

func (g *GammaClient) getMarket(ctx context.Context, id string) (APIMarket, error) {
	body, err := g.doGet(ctx, "/markets/"+url.PathEscape(id))
	if err != nil {
		return APIMarket{}, fmt.Errorf("polymarket/gamma: get market %s: %w", id, err)
	}
	var m APIMarket
	if err := json.Unmarshal(body, &m); err != nil {
		return APIMarket{}, fmt.Errorf("polymarket/gamma: decode market: %w", err)
	}
	return m, nil
}

// doGet sends an unauthenticated GET request to the Gamma API.
func (g *GammaClient) doGet(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if err := checkHTTPStatus(resp.StatusCode, body); err != nil {
		return nil, err
	}
	return body, nil
}
