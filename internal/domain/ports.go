package domain

import "context"

// MarketDataSource provides market discovery and current pricing. Calls are
// I/O-bound; implementations must honor ctx deadlines.
type MarketDataSource interface {
	ListActiveMarkets(ctx context.Context, limit int) ([]Market, error)
	// CurrentPrice returns the market's implied YES probability, strictly
	// inside (0,1), or ErrMarketUnavailable / ErrInvalidMarketData.
	CurrentPrice(ctx context.Context, marketID string) (float64, error)
	Resolution(ctx context.Context, marketID string) (MarketResolution, error)
}

// NewsSource retrieves fresh evidence text for a query. A timeout surfaces as
// ErrSearchTimeout, which callers degrade to the empty-evidence case.
type NewsSource interface {
	Search(ctx context.Context, query string) ([]EvidenceItem, error)
}

// TextScorer scores a single text snippet in [-1,1]. Any implementation
// satisfying the range contract is acceptable, including test fixtures.
type TextScorer interface {
	Score(text string) float64
}

// ExecutionGateway submits approved orders to the exchange. It returns the
// exchange order ID, or ErrOrderRejected / ErrConnectivity.
type ExecutionGateway interface {
	SubmitOrder(ctx context.Context, marketID string, side Side, sizeUSD float64) (orderID string, err error)
}
