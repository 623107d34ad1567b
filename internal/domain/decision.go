package domain

import "time"

// Side is the traded outcome of a binary market.
type Side string

const (
	SideYes  Side = "YES"
	SideNo   Side = "NO"
	SideNone Side = "" // no actionable side (zero edge)
)

// Action is the terminal verdict of one market evaluation.
type Action string

const (
	ActionExecute           Action = "execute"
	ActionNotifyForApproval Action = "notify_for_approval"
	ActionSkip              Action = "skip"
	ActionReject            Action = "reject"
)

// DecisionStatus tracks a decision's delivery lifecycle after dispatch.
type DecisionStatus string

const (
	DecisionStatusPending   DecisionStatus = "pending"   // recorded, not yet submitted
	DecisionStatusSubmitted DecisionStatus = "submitted" // order accepted by the gateway
	DecisionStatusFailed    DecisionStatus = "failed"    // execution failed after retry
	DecisionStatusResolved  DecisionStatus = "resolved"  // market resolved, outcome recorded
)

// TradeDecision is the terminal output of one market evaluation. It carries
// every intermediate value so the rationale is auditable after the fact.
type TradeDecision struct {
	ID         string // UUID
	MarketID   string
	Question   string
	Side       Side
	SizeUSD    float64 // >= 0, always <= configured max per trade
	Action     Action
	Rationale  string // names exactly the risk check that fired
	Prior      float64
	Posterior  float64
	Confidence float64
	Sentiment  SentimentSignal
	Edge       float64
	OrderID    string
	Status     DecisionStatus
	CreatedAt  time.Time
}

// DecisionOutcome records the realized result of an executed decision once
// its market resolves.
type DecisionOutcome struct {
	Won        bool
	PnLUSD     float64
	PnLR       float64 // PnL normalized to risk units
	ResolvedAt time.Time
}
