// Package feed streams live Polymarket prices into the price cache so scan
// cycles read near-real-time implied probabilities without extra REST calls.
package feed

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/buttenhook/polymarket-bot/internal/domain"
	"github.com/buttenhook/polymarket-bot/internal/platform/polymarket"
)

// PriceFeed connects to the Polymarket CLOB WebSocket, subscribes to price
// ticks for the given asset IDs, and writes each tick into the price cache.
// It reconnects on disconnect.
type PriceFeed struct {
	wsURL     string
	assetIDs  []string
	cache     domain.PriceCache
	logger    *slog.Logger
	closeOnce sync.Once
	done      chan struct{}
}

// NewPriceFeed creates a feed that will subscribe to the given asset IDs.
func NewPriceFeed(wsURL string, assetIDs []string, cache domain.PriceCache, logger *slog.Logger) *PriceFeed {
	return &PriceFeed{
		wsURL:    wsURL,
		assetIDs: assetIDs,
		cache:    cache,
		logger:   logger.With(slog.String("component", "price_feed")),
		done:     make(chan struct{}),
	}
}

// Run connects, subscribes, and runs until ctx is cancelled. Reconnects with
// backoff on disconnect.
func (f *PriceFeed) Run(ctx context.Context) error {
	if len(f.assetIDs) == 0 {
		f.logger.Info("no asset IDs to subscribe, exiting")
		return nil
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-f.done:
			return nil
		default:
		}

		err := f.runConnection(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		f.logger.Warn("polymarket ws disconnected, reconnecting", slog.String("error", err.Error()))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
}

func (f *PriceFeed) runConnection(ctx context.Context) error {
	client := polymarket.NewWSClient(f.wsURL)
	defer client.Close()

	client.OnPriceUpdate(func(u domain.PriceUpdate) {
		if u.MarketID == "" || u.Price <= 0 || u.Price >= 1 {
			return
		}
		if err := f.cache.SetPrice(context.Background(), u.MarketID, u.Price, u.Timestamp); err != nil {
			f.logger.Debug("price cache write failed",
				slog.String("market_id", u.MarketID),
				slog.String("error", err.Error()),
			)
		}
	})

	connCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	err := client.Connect(connCtx)
	cancel()
	if err != nil {
		return err
	}
	if err := client.Subscribe(ctx, f.assetIDs); err != nil {
		return err
	}
	f.logger.Info("polymarket ws subscribed", slog.Int("assets", len(f.assetIDs)))

	<-ctx.Done()
	return ctx.Err()
}

// Close stops the feed.
func (f *PriceFeed) Close() {
	f.closeOnce.Do(func() { close(f.done) })
}
