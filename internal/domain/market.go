package domain

import "time"

// MarketStatus represents the lifecycle state of a market.
type MarketStatus string

const (
	MarketStatusActive   MarketStatus = "active"
	MarketStatusClosed   MarketStatus = "closed"
	MarketStatusResolved MarketStatus = "resolved"
)

// MarketCategory groups markets by topic for news query building.
type MarketCategory string

const (
	CategoryCrypto     MarketCategory = "crypto"
	CategoryPolitics   MarketCategory = "politics"
	CategorySports     MarketCategory = "sports"
	CategoryTechnology MarketCategory = "technology"
	CategoryOther      MarketCategory = "other"
)

// Market represents a Polymarket prediction market as seen by one pipeline
// run. It is an immutable value record; a fresh copy is fetched per scan.
type Market struct {
	ID                 string
	Question           string
	Slug               string
	Category           MarketCategory
	ImpliedProbability float64 // current YES price, must be strictly inside (0,1)
	Liquidity          float64
	Volume             float64
	CloseTime          time.Time
	Status             MarketStatus
}

// Validate checks the market's own price. A price outside the open interval
// (0,1) is a data-integrity failure: the pipeline rejects the market rather
// than clamping it.
func (m Market) Validate() error {
	if m.ImpliedProbability <= 0 || m.ImpliedProbability >= 1 {
		return ErrInvalidMarketData
	}
	return nil
}

// MarketResolution holds the terminal outcome of a market.
type MarketResolution struct {
	Resolved bool
	YesWon   bool // only meaningful when Resolved
}

// PriceUpdate is one streamed price tick for a market's YES token.
type PriceUpdate struct {
	MarketID  string
	Price     float64
	Timestamp time.Time
}
