package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/buttenhook/polymarket-bot/internal/domain"
)

// Config holds the scan loop settings.
type Config struct {
	ScanInterval  time.Duration // time between full market scans
	MarketLimit   int           // max markets fetched per scan
	Concurrency   int           // parallel per-market evaluations
	ListTimeout   time.Duration // bound on the market listing call
	MaxDaysAhead  int           // pre-filter horizon for market close times
	MinVolumeUSD  float64       // pre-filter on market volume
}

// DefaultConfig returns the settings used when the config file leaves the
// engine section empty.
func DefaultConfig() Config {
	return Config{
		ScanInterval: 10 * time.Minute,
		MarketLimit:  20,
		Concurrency:  4,
		ListTimeout:  30 * time.Second,
		MaxDaysAhead: 30,
		MinVolumeUSD: 10_000,
	}
}

// Engine drives the scan loop: list active markets, pre-filter, evaluate each
// through the decision pipeline, and dispatch the terminal decisions. A
// failure on one market never aborts the rest of the scan.
type Engine struct {
	markets    domain.MarketDataSource
	prices     domain.PriceCache // optional
	evaluator  *Evaluator
	dispatcher *Dispatcher
	filter     *MarketFilter
	cfg        Config
	logger     *slog.Logger
}

// New creates an Engine. prices may be nil, in which case every evaluation
// uses the implied probability from the listing snapshot.
func New(
	markets domain.MarketDataSource,
	prices domain.PriceCache,
	evaluator *Evaluator,
	dispatcher *Dispatcher,
	cfg Config,
	logger *slog.Logger,
) *Engine {
	def := DefaultConfig()
	if cfg.ScanInterval <= 0 {
		cfg.ScanInterval = def.ScanInterval
	}
	if cfg.MarketLimit <= 0 {
		cfg.MarketLimit = def.MarketLimit
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = def.Concurrency
	}
	if cfg.ListTimeout <= 0 {
		cfg.ListTimeout = def.ListTimeout
	}
	return &Engine{
		markets:    markets,
		prices:     prices,
		evaluator:  evaluator,
		dispatcher: dispatcher,
		filter:     NewMarketFilter(cfg.MaxDaysAhead),
		cfg:        cfg,
		logger:     logger.With(slog.String("component", "engine")),
	}
}

// Run executes scan cycles on a fixed interval until the context is
// cancelled. The first scan starts immediately.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Info("engine started",
		slog.Duration("scan_interval", e.cfg.ScanInterval),
		slog.Int("concurrency", e.cfg.Concurrency),
	)
	defer e.logger.Info("engine stopped")

	ticker := time.NewTicker(e.cfg.ScanInterval)
	defer ticker.Stop()

	for {
		if err := e.Scan(ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				return ctx.Err()
			}
			e.logger.Error("scan cycle failed", slog.String("error", err.Error()))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Scan runs one full cycle: fetch, filter, evaluate concurrently, dispatch.
// It returns an error only when the market listing itself fails; per-market
// evaluation failures are logged and skipped.
func (e *Engine) Scan(ctx context.Context) error {
	listCtx, cancel := context.WithTimeout(ctx, e.cfg.ListTimeout)
	markets, err := e.markets.ListActiveMarkets(listCtx, e.cfg.MarketLimit)
	cancel()
	if err != nil {
		return fmt.Errorf("engine: list active markets: %w", err)
	}

	candidates := e.filter.Apply(e.prefilterVolume(markets))
	e.refreshPrices(ctx, candidates)
	e.logger.Info("scan cycle",
		slog.Int("fetched", len(markets)),
		slog.Int("candidates", len(candidates)),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Concurrency)
	for _, m := range candidates {
		m := m
		g.Go(func() error {
			e.evaluateOne(gctx, m)
			return nil
		})
	}
	return g.Wait()
}

// evaluateOne runs the pipeline for a single market. Errors are terminal for
// this market only.
func (e *Engine) evaluateOne(ctx context.Context, m domain.Market) {
	dec, err := e.evaluator.Evaluate(ctx, m)
	if err != nil {
		e.logger.Warn("market evaluation failed",
			slog.String("market_id", m.ID),
			slog.String("error", err.Error()),
		)
		return
	}
	e.dispatcher.Dispatch(ctx, dec)
}

// refreshPrices overwrites listing-snapshot prices with the latest
// websocket-fed ticks so evaluations run on the freshest implied probability
// available. Markets without a cached tick, and any cache failure, keep the
// snapshot price.
func (e *Engine) refreshPrices(ctx context.Context, markets []domain.Market) {
	if e.prices == nil || len(markets) == 0 {
		return
	}
	ids := make([]string, len(markets))
	for i := range markets {
		ids[i] = markets[i].ID
	}
	cached, err := e.prices.GetPrices(ctx, ids)
	if err != nil {
		e.logger.Debug("price cache read failed", slog.String("error", err.Error()))
		return
	}
	refreshed := 0
	for i := range markets {
		if p, ok := cached[markets[i].ID]; ok && p > 0 && p < 1 {
			markets[i].ImpliedProbability = p
			refreshed++
		}
	}
	if refreshed > 0 {
		e.logger.Debug("prices refreshed from cache", slog.Int("markets", refreshed))
	}
}

func (e *Engine) prefilterVolume(markets []domain.Market) []domain.Market {
	if e.cfg.MinVolumeUSD <= 0 {
		return markets
	}
	out := make([]domain.Market, 0, len(markets))
	for _, m := range markets {
		if m.Volume >= e.cfg.MinVolumeUSD {
			out = append(out, m)
		}
	}
	return out
}
