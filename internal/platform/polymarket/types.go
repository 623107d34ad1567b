package polymarket

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/buttenhook/polymarket-bot/internal/domain"
)

// flexBool unmarshals from JSON bool or string ("true"/"false") so Gamma API
// responses work whether "active" is sent as bool or string.
type flexBool bool

func (f *flexBool) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*f = flexBool(b)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*f = flexBool(strings.EqualFold(s, "true") || s == "1")
	return nil
}

// APIMarket represents a market as returned by the Polymarket Gamma API.
type APIMarket struct {
	ID            string   `json:"id"`
	Question      string   `json:"question"`
	Slug          string   `json:"slug"`
	Category      string   `json:"category"`
	Active        flexBool `json:"active"` // API may send bool or "true"/"false" string
	Closed        bool     `json:"closed"`
	Outcomes      string   `json:"outcomes"`      // JSON-encoded: e.g. "[\"Yes\",\"No\"]"
	OutcomePrices string   `json:"outcomePrices"` // JSON-encoded: e.g. "[\"0.65\",\"0.35\"]"
	Volume        string   `json:"volume"`
	Liquidity     string   `json:"liquidity"`
	EndDateISO    string   `json:"endDate"`
	Tokens        []Token  `json:"tokens"`
}

// Token is a token entry inside the Gamma API market response.
type Token struct {
	TokenID string `json:"token_id"`
	Outcome string `json:"outcome"`
	Winner  bool   `json:"winner"`
}

// APIOrderResult is the response from placing an order via the CLOB API.
type APIOrderResult struct {
	Success     bool   `json:"success"`
	ErrorMsg    string `json:"errorMsg,omitempty"`
	OrderID     string `json:"orderID,omitempty"`
	Status      string `json:"status,omitempty"`
	ShouldRetry bool   `json:"shouldRetry,omitempty"`
}

// ToDomainMarket converts a Gamma APIMarket to a domain.Market. The implied
// probability is the first entry of outcomePrices (the YES price); when that
// is missing or malformed it stays zero and Validate rejects the market
// downstream.
func (m *APIMarket) ToDomainMarket() domain.Market {
	dm := domain.Market{
		ID:       m.ID,
		Question: m.Question,
		Slug:     m.Slug,
		Category: mapCategory(m.Category),
	}

	dm.ImpliedProbability = m.yesPrice()

	if v, err := strconv.ParseFloat(m.Volume, 64); err == nil {
		dm.Volume = v
	}
	if l, err := strconv.ParseFloat(m.Liquidity, 64); err == nil {
		dm.Liquidity = l
	}

	switch {
	case m.Closed:
		dm.Status = domain.MarketStatusClosed
	case bool(m.Active):
		dm.Status = domain.MarketStatusActive
	default:
		dm.Status = domain.MarketStatusResolved
	}

	if m.EndDateISO != "" {
		if t, err := time.Parse(time.RFC3339, m.EndDateISO); err == nil {
			dm.CloseTime = t
		}
	}

	return dm
}

// yesPrice decodes the doubly-encoded outcomePrices field and returns the
// first (YES) price, or 0 when absent.
func (m *APIMarket) yesPrice() float64 {
	if m.OutcomePrices == "" {
		return 0
	}
	var prices []string
	if err := json.Unmarshal([]byte(m.OutcomePrices), &prices); err != nil || len(prices) == 0 {
		return 0
	}
	p, err := strconv.ParseFloat(prices[0], 64)
	if err != nil {
		return 0
	}
	return p
}

// mapCategory normalizes the Gamma category label onto the domain categories.
func mapCategory(s string) domain.MarketCategory {
	switch strings.ToLower(s) {
	case "crypto", "cryptocurrency":
		return domain.CategoryCrypto
	case "politics", "elections", "geopolitics":
		return domain.CategoryPolitics
	case "sports":
		return domain.CategorySports
	case "tech", "technology", "science":
		return domain.CategoryTechnology
	default:
		return domain.CategoryOther
	}
}

// yesWon reports whether the YES outcome won a resolved market. The Gamma API
// marks the winning token; resolved markets also pin outcomePrices to 1/0.
func (m *APIMarket) yesWon() bool {
	for _, t := range m.Tokens {
		if strings.EqualFold(t.Outcome, "Yes") {
			return t.Winner
		}
	}
	return m.yesPrice() > 0.5
}
