package domain

import (
	"context"
	"time"
)

// PriceCache provides fast access to the latest implied probabilities. The
// websocket feed writes ticks; the scan engine reads them to evaluate on
// fresher prices than the listing snapshot.
type PriceCache interface {
	SetPrice(ctx context.Context, marketID string, price float64, ts time.Time) error
	GetPrice(ctx context.Context, marketID string) (float64, time.Time, error)
	// GetPrices batch-reads the latest prices; markets without a cached tick
	// are omitted from the result.
	GetPrices(ctx context.Context, marketIDs []string) (map[string]float64, error)
}

// EvidenceCache caches news search results by query so repeated evaluations
// of the same market within the TTL do not re-hit the search API.
type EvidenceCache interface {
	Get(ctx context.Context, query string) ([]EvidenceItem, error)
	Set(ctx context.Context, query string, items []EvidenceItem, ttl time.Duration) error
}

// RateLimiter provides distributed rate limiting, shared across bot
// instances that hit the same external API quota.
type RateLimiter interface {
	// Allow reports whether a request for key is permitted under the limit,
	// counting it when permitted.
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
	// Wait blocks until a request for key is allowed or ctx is done.
	Wait(ctx context.Context, key string) error
}
