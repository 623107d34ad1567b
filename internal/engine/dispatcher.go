package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/buttenhook/polymarket-bot/internal/domain"
	"github.com/buttenhook/polymarket-bot/internal/risk"
)

// Notifier is the interface through which the dispatcher emits operator
// alerts. Delivery is best-effort; failures are logged, never propagated.
type Notifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

// Dispatcher resolves each terminal decision into its external effects:
// ledger append, order submission (Execute), and operator notification
// (NotifyForApproval, execution failures). The action was decided upstream
// and is never re-derived here.
type Dispatcher struct {
	gateway  domain.ExecutionGateway
	notifier Notifier
	ledger   domain.DecisionLedger
	riskMgr  *risk.Manager
	logger   *slog.Logger
}

// NewDispatcher creates a Dispatcher. gateway, notifier, and ledger may each
// be nil in reduced modes (e.g. a dry-run cycle); missing collaborators are
// skipped.
func NewDispatcher(
	gateway domain.ExecutionGateway,
	notifier Notifier,
	ledger domain.DecisionLedger,
	riskMgr *risk.Manager,
	logger *slog.Logger,
) *Dispatcher {
	return &Dispatcher{
		gateway:  gateway,
		notifier: notifier,
		ledger:   ledger,
		riskMgr:  riskMgr,
		logger:   logger.With(slog.String("component", "dispatcher")),
	}
}

// Dispatch records the decision and forwards it to the collaborators its
// action requires, returning the decision with its final status. A failure
// here never re-runs the pricing pipeline.
func (d *Dispatcher) Dispatch(ctx context.Context, dec domain.TradeDecision) domain.TradeDecision {
	log := d.logger.With(
		slog.String("decision_id", dec.ID),
		slog.String("market_id", dec.MarketID),
		slog.String("action", string(dec.Action)),
	)

	if d.ledger != nil {
		if err := d.ledger.Append(ctx, dec); err != nil {
			log.Warn("ledger append failed", slog.String("error", err.Error()))
		}
	}

	switch dec.Action {
	case domain.ActionExecute:
		dec = d.execute(ctx, dec, log)

	case domain.ActionNotifyForApproval:
		d.notify(ctx, "approval_required",
			fmt.Sprintf("Approval required: %s $%.2f", dec.Side, dec.SizeUSD),
			fmt.Sprintf("%s\n%s", dec.Question, dec.Rationale),
		)
		log.Info("decision awaiting approval", slog.Float64("size_usd", dec.SizeUSD))

	case domain.ActionSkip, domain.ActionReject:
		log.Info("decision not tradable", slog.String("rationale", dec.Rationale))
	}

	return dec
}

// execute submits the order with at most one retry. On repeated failure the
// decision is marked Failed, the position slot is released, and the failure
// is escalated through the notifier. The probability and risk computation is
// never redone.
func (d *Dispatcher) execute(ctx context.Context, dec domain.TradeDecision, log *slog.Logger) domain.TradeDecision {
	if d.gateway == nil {
		log.Info("no execution gateway configured, leaving decision pending")
		return dec
	}

	orderID, err := d.gateway.SubmitOrder(ctx, dec.MarketID, dec.Side, dec.SizeUSD)
	if err != nil && retryable(err) {
		log.Warn("order submission failed, retrying once", slog.String("error", err.Error()))
		orderID, err = d.gateway.SubmitOrder(ctx, dec.MarketID, dec.Side, dec.SizeUSD)
	}

	if err != nil {
		log.Error("order submission failed", slog.String("error", err.Error()))
		dec.Status = domain.DecisionStatusFailed
		d.riskMgr.ReleasePosition()
		d.updateStatus(ctx, dec.ID, domain.DecisionStatusFailed, "", log)
		d.notify(ctx, "execution_failed",
			"Order submission failed",
			fmt.Sprintf("%s %s $%.2f: %v", dec.MarketID, dec.Side, dec.SizeUSD, err),
		)
		return dec
	}

	dec.OrderID = orderID
	dec.Status = domain.DecisionStatusSubmitted
	d.updateStatus(ctx, dec.ID, domain.DecisionStatusSubmitted, orderID, log)
	d.notify(ctx, "trade_executed",
		fmt.Sprintf("Executed: %s $%.2f", dec.Side, dec.SizeUSD),
		fmt.Sprintf("%s\n%s", dec.Question, dec.Rationale),
	)
	log.Info("order submitted",
		slog.String("order_id", orderID),
		slog.Float64("size_usd", dec.SizeUSD),
	)
	return dec
}

// retryable reports whether an execution error is worth the single allowed
// retry. Hard rejections are final.
func retryable(err error) bool {
	return !errors.Is(err, domain.ErrOrderRejected)
}

func (d *Dispatcher) updateStatus(ctx context.Context, id string, status domain.DecisionStatus, orderID string, log *slog.Logger) {
	if d.ledger == nil {
		return
	}
	if err := d.ledger.UpdateStatus(ctx, id, status, orderID); err != nil {
		log.Warn("ledger status update failed", slog.String("error", err.Error()))
	}
}

func (d *Dispatcher) notify(ctx context.Context, event, title, message string) {
	if d.notifier == nil {
		return
	}
	if err := d.notifier.Notify(ctx, event, title, message); err != nil {
		d.logger.Warn("notification failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}
