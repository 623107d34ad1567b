package domain

import (
	"context"
	"time"
)

// DecisionLedger is the append-only record of trade decisions and their
// outcomes, used for auditing and performance tracking.
type DecisionLedger interface {
	Append(ctx context.Context, d TradeDecision) error
	UpdateStatus(ctx context.Context, id string, status DecisionStatus, orderID string) error
	RecordOutcome(ctx context.Context, id string, out DecisionOutcome) error
	GetByID(ctx context.Context, id string) (TradeDecision, error)
	// ListOpenExecuted returns submitted decisions whose market outcome is
	// not yet recorded (the resolution tracker's work queue).
	ListOpenExecuted(ctx context.Context) ([]TradeDecision, error)
	// SumDailyPnLR sums realized PnL in risk units for the UTC day of t.
	SumDailyPnLR(ctx context.Context, t time.Time) (float64, error)
	// ListResolvedBefore returns resolved decisions older than cutoff, for
	// cold-storage archival.
	ListResolvedBefore(ctx context.Context, cutoff time.Time, limit int) ([]TradeDecision, error)
	DeleteByIDs(ctx context.Context, ids []string) (int64, error)
}
