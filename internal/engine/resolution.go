package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/buttenhook/polymarket-bot/internal/domain"
	"github.com/buttenhook/polymarket-bot/internal/risk"
)

// ResolutionConfig holds the outcome tracker settings.
type ResolutionConfig struct {
	PollInterval time.Duration // time between resolution sweeps
	RiskUnitUSD  float64       // divisor converting realized USD PnL to R units
}

// Tracker polls open executed decisions for market resolution, realizes their
// PnL into the ledger and the risk manager, and notifies the operator.
type Tracker struct {
	markets  domain.MarketDataSource
	ledger   domain.DecisionLedger
	riskMgr  *risk.Manager
	notifier Notifier
	cfg      ResolutionConfig
	logger   *slog.Logger
	now      func() time.Time
}

// NewTracker creates a Tracker. notifier may be nil.
func NewTracker(
	markets domain.MarketDataSource,
	ledger domain.DecisionLedger,
	riskMgr *risk.Manager,
	notifier Notifier,
	cfg ResolutionConfig,
	logger *slog.Logger,
) *Tracker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 30 * time.Minute
	}
	if cfg.RiskUnitUSD <= 0 {
		cfg.RiskUnitUSD = risk.DefaultConfig().MaxTradeSizeUSD
	}
	return &Tracker{
		markets:  markets,
		ledger:   ledger,
		riskMgr:  riskMgr,
		notifier: notifier,
		cfg:      cfg,
		logger:   logger.With(slog.String("component", "resolution")),
		now:      time.Now,
	}
}

// Run sweeps on a fixed interval until the context is cancelled.
func (t *Tracker) Run(ctx context.Context) error {
	t.logger.Info("resolution tracker started",
		slog.Duration("poll_interval", t.cfg.PollInterval),
	)
	defer t.logger.Info("resolution tracker stopped")

	ticker := time.NewTicker(t.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if err := t.Sweep(ctx); err != nil {
			t.logger.Error("resolution sweep failed", slog.String("error", err.Error()))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Sweep checks every open executed decision once. A failure on one decision
// does not stop the sweep.
func (t *Tracker) Sweep(ctx context.Context) error {
	open, err := t.ledger.ListOpenExecuted(ctx)
	if err != nil {
		return fmt.Errorf("resolution: list open decisions: %w", err)
	}
	if len(open) == 0 {
		return nil
	}
	t.logger.Info("checking open decisions", slog.Int("count", len(open)))

	for _, dec := range open {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := t.settle(ctx, dec); err != nil {
			t.logger.Warn("settlement failed",
				slog.String("decision_id", dec.ID),
				slog.String("market_id", dec.MarketID),
				slog.String("error", err.Error()),
			)
		}
	}
	return nil
}

// settle checks one decision's market and, if resolved, books the outcome.
func (t *Tracker) settle(ctx context.Context, dec domain.TradeDecision) error {
	res, err := t.markets.Resolution(ctx, dec.MarketID)
	if err != nil {
		return fmt.Errorf("resolution: market %s: %w", dec.MarketID, err)
	}
	if !res.Resolved {
		return nil
	}

	won := res.YesWon == (dec.Side == domain.SideYes)
	pnlUSD := settlePnL(dec, won)
	out := domain.DecisionOutcome{
		Won:        won,
		PnLUSD:     pnlUSD,
		PnLR:       pnlUSD / t.cfg.RiskUnitUSD,
		ResolvedAt: t.now().UTC(),
	}

	if err := t.ledger.RecordOutcome(ctx, dec.ID, out); err != nil {
		return fmt.Errorf("resolution: record outcome %s: %w", dec.ID, err)
	}
	t.riskMgr.BookPnL(out.PnLR)
	t.riskMgr.ReleasePosition()

	t.logger.Info("decision resolved",
		slog.String("decision_id", dec.ID),
		slog.String("market_id", dec.MarketID),
		slog.Bool("won", won),
		slog.Float64("pnl_usd", out.PnLUSD),
		slog.Float64("pnl_r", out.PnLR),
	)

	verdict := "LOST"
	if won {
		verdict = "WON"
	}
	t.notifyOutcome(ctx, fmt.Sprintf("%s: %s $%+.2f", verdict, dec.Side, out.PnLUSD), dec.Question)
	return nil
}

// settlePnL computes the realized USD PnL of a binary position. The entry
// price is the decision's prior for YES and its complement for NO; a winning
// share pays out $1.
func settlePnL(dec domain.TradeDecision, won bool) float64 {
	if !won {
		return -dec.SizeUSD
	}
	entry := dec.Prior
	if dec.Side == domain.SideNo {
		entry = 1 - dec.Prior
	}
	return dec.SizeUSD * (1/entry - 1)
}

func (t *Tracker) notifyOutcome(ctx context.Context, title, message string) {
	if t.notifier == nil {
		return
	}
	if err := t.notifier.Notify(ctx, "market_resolved", title, message); err != nil {
		t.logger.Warn("notification failed", slog.String("error", err.Error()))
	}
}
