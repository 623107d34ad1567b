package app

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/buttenhook/polymarket-bot/internal/crypto"
	"github.com/buttenhook/polymarket-bot/internal/domain"
	"github.com/buttenhook/polymarket-bot/internal/engine"
	"github.com/buttenhook/polymarket-bot/internal/feed"
	"github.com/buttenhook/polymarket-bot/internal/platform/polymarket"
	"github.com/buttenhook/polymarket-bot/internal/platform/tavily"
	"github.com/buttenhook/polymarket-bot/internal/predict"
	"github.com/buttenhook/polymarket-bot/internal/risk"
	"github.com/buttenhook/polymarket-bot/internal/sentiment"
)

// pipeline bundles the evaluation stack built by buildPipeline.
type pipeline struct {
	gamma   *polymarket.GammaClient
	riskMgr *risk.Manager
	engine  *engine.Engine
	tracker *engine.Tracker
}

// buildPipeline constructs the full market evaluation pipeline: news source,
// sentiment aggregation, probability estimation, risk admission, dispatch, and
// the scan loop driving them. When withGateway is false (or CLOB credentials
// are missing) the dispatcher runs without an execution gateway, so decisions
// are recorded and notified but no orders are placed.
func (a *App) buildPipeline(ctx context.Context, deps *Dependencies, withGateway bool) *pipeline {
	cfg := a.cfg

	gamma := polymarket.NewGammaClient(cfg.Polymarket.GammaHost)

	aggregator := sentiment.NewAggregator(sentiment.NewLexiconScorer(), sentiment.Config{
		RecencyHalfLife: cfg.Sentiment.RecencyHalfLife.Duration,
		StrengthScale:   cfg.Sentiment.StrengthScale,
	})
	estimator := predict.NewEstimator(predict.Config{
		MaxLogOddsShift: cfg.Predict.MaxLogOddsShift,
		MinProbability:  cfg.Predict.MinProbability,
		MaxProbability:  cfg.Predict.MaxProbability,
	})

	riskMgr := risk.NewManager(risk.Config{
		MaxTradeSizeUSD:      cfg.Risk.MaxTradeSizeUSD,
		MinConfidence:        cfg.Risk.MinConfidence,
		MaxOpenPositions:     cfg.Risk.MaxOpenPositions,
		DailyLossLimitR:      cfg.Risk.DailyLossLimitR,
		ApprovalThresholdUSD: cfg.Risk.ApprovalThresholdUSD,
		AutoExecute:          cfg.Risk.AutoExecute,
		MagnitudeRef:         cfg.Risk.MagnitudeRef,
	}, a.logger)
	a.restoreRiskState(ctx, deps.Ledger, riskMgr)

	news := tavily.NewClient(tavily.Config{
		BaseURL:    cfg.Tavily.BaseURL,
		APIKey:     cfg.Tavily.ApiKey,
		MaxResults: cfg.Tavily.MaxResults,
		Days:       cfg.Tavily.Days,
	})
	if cfg.Tavily.RateLimited && deps.RateLimiter != nil {
		news = news.WithLimiter(deps.RateLimiter)
	}

	evaluator := engine.NewEvaluator(
		news, deps.EvidenceCache, aggregator, estimator, riskMgr,
		engine.EvaluatorConfig{
			NewsTimeout: cfg.Engine.NewsTimeout.Duration,
			EvidenceTTL: cfg.Engine.EvidenceTTL.Duration,
		},
		a.logger,
	)

	var gateway domain.ExecutionGateway
	if withGateway {
		if cfg.Polymarket.ApiKey != "" && cfg.Polymarket.Address != "" {
			auth := &crypto.HMACAuth{
				Key:        cfg.Polymarket.ApiKey,
				Secret:     cfg.Polymarket.ApiSecret,
				Passphrase: cfg.Polymarket.ApiPassphrase,
			}
			gateway = polymarket.NewClobClient(cfg.Polymarket.ClobHost, cfg.Polymarket.Address, auth)
		} else {
			a.logger.WarnContext(ctx, "CLOB credentials missing; running without execution gateway")
		}
	}

	dispatcher := engine.NewDispatcher(gateway, deps.Notifier, deps.Ledger, riskMgr, a.logger)

	eng := engine.New(gamma, deps.PriceCache, evaluator, dispatcher, engine.Config{
		ScanInterval: cfg.Engine.ScanInterval.Duration,
		MarketLimit:  cfg.Engine.MarketLimit,
		Concurrency:  cfg.Engine.Concurrency,
		ListTimeout:  cfg.Engine.ListTimeout.Duration,
		MaxDaysAhead: cfg.Engine.MaxDaysAhead,
		MinVolumeUSD: cfg.Engine.MinVolumeUSD,
	}, a.logger)

	tracker := engine.NewTracker(gamma, deps.Ledger, riskMgr, deps.Notifier, engine.ResolutionConfig{
		PollInterval: cfg.Engine.ResolutionPollInterval.Duration,
		RiskUnitUSD:  cfg.Risk.MaxTradeSizeUSD,
	}, a.logger)

	return &pipeline{
		gamma:   gamma,
		riskMgr: riskMgr,
		engine:  eng,
		tracker: tracker,
	}
}

// restoreRiskState seeds the risk manager from the ledger so a restart does
// not forget open positions or losses already booked today.
func (a *App) restoreRiskState(ctx context.Context, ledger domain.DecisionLedger, mgr *risk.Manager) {
	open, err := ledger.ListOpenExecuted(ctx)
	if err != nil {
		a.logger.WarnContext(ctx, "risk state restore: open positions unavailable",
			slog.String("error", err.Error()))
		return
	}
	pnlR, err := ledger.SumDailyPnLR(ctx, time.Now().UTC())
	if err != nil {
		a.logger.WarnContext(ctx, "risk state restore: daily pnl unavailable",
			slog.String("error", err.Error()))
		return
	}
	mgr.Restore(len(open), pnlR)
	a.logger.InfoContext(ctx, "risk state restored",
		slog.Int("open_positions", len(open)),
		slog.Float64("daily_pnl_r", pnlR),
	)
}

// TradeMode runs the continuous scan loop and the resolution tracker, placing
// orders through the CLOB gateway when admitted.
func (a *App) TradeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting trade mode")

	p := a.buildPipeline(ctx, deps, true)
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return p.engine.Run(ctx)
	})
	g.Go(func() error {
		return p.tracker.Run(ctx)
	})
	a.startArchiver(ctx, g, deps)

	return g.Wait()
}

// ScanMode runs a single scan pass without an execution gateway. Decisions
// are recorded in the ledger and notified, but no orders are placed.
func (a *App) ScanMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting scan mode (single pass, no execution)")

	p := a.buildPipeline(ctx, deps, false)
	return p.engine.Scan(ctx)
}

// MonitorMode tracks resolutions of already-executed decisions and mirrors
// live prices into the cache. No new markets are evaluated.
func (a *App) MonitorMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting monitor mode")

	p := a.buildPipeline(ctx, deps, false)
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return p.tracker.Run(ctx)
	})
	a.startPriceFeed(ctx, g, deps, p.gamma)

	return g.Wait()
}

// FullMode runs every subsystem: the scan loop with execution, resolution
// tracking, the websocket price feed, and archival.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	p := a.buildPipeline(ctx, deps, true)
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return p.engine.Run(ctx)
	})
	g.Go(func() error {
		return p.tracker.Run(ctx)
	})
	a.startPriceFeed(ctx, g, deps, p.gamma)
	a.startArchiver(ctx, g, deps)

	return g.Wait()
}

// startPriceFeed subscribes the websocket price feed to the currently active
// markets and mirrors updates into the price cache. Skipped when no websocket
// host is configured or no markets are listed.
func (a *App) startPriceFeed(ctx context.Context, g *errgroup.Group, deps *Dependencies, gamma *polymarket.GammaClient) {
	if a.cfg.Polymarket.WsHost == "" {
		return
	}

	listCtx, cancel := context.WithTimeout(ctx, a.cfg.Engine.ListTimeout.Duration)
	defer cancel()
	markets, err := gamma.ListActiveMarkets(listCtx, a.cfg.Engine.MarketLimit)
	if err != nil {
		a.logger.WarnContext(ctx, "price feed: listing markets failed, feed disabled",
			slog.String("error", err.Error()))
		return
	}
	ids := make([]string, 0, len(markets))
	for _, m := range markets {
		if m.ID != "" {
			ids = append(ids, m.ID)
		}
	}
	if len(ids) == 0 {
		return
	}

	pf := feed.NewPriceFeed(a.cfg.Polymarket.WsHost, ids, deps.PriceCache, a.logger)
	g.Go(func() error {
		defer pf.Close()
		return pf.Run(ctx)
	})
}

// startArchiver periodically moves resolved decisions past the retention
// window into cold storage. No-op when archival is disabled.
func (a *App) startArchiver(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	if deps.Archiver == nil {
		return
	}

	interval := a.cfg.Archive.Interval.Duration
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	retention := a.cfg.Archive.RetentionDays

	g.Go(func() error {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				cutoff := time.Now().UTC().AddDate(0, 0, -retention)
				n, err := deps.Archiver.ArchiveDecisions(ctx, cutoff)
				if err != nil {
					a.logger.ErrorContext(ctx, "archival pass failed",
						slog.String("error", err.Error()))
					continue
				}
				if n > 0 {
					a.logger.InfoContext(ctx, "archival pass complete", slog.Int64("archived", n))
				}
			}
		}
	})
}
