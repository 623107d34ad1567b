// Package risk gates and sizes trade candidates against shared mutable risk
// state (open positions, daily PnL). All checks for one evaluation run inside
// a single critical section so concurrent evaluations can never jointly
// violate the position cap or the daily loss stop.
package risk

import (
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/buttenhook/polymarket-bot/internal/domain"
)

// Config holds the risk limits.
type Config struct {
	MaxTradeSizeUSD      float64 // hard cap per trade
	MinConfidence        float64 // below this the evaluation is skipped
	MaxOpenPositions     int
	DailyLossLimitR      float64 // positive number of R units
	ApprovalThresholdUSD float64 // above this, manual approval is required
	AutoExecute          bool    // when set, the approval threshold is bypassed
	// MagnitudeRef is the edge magnitude at which sizing saturates; edges at
	// or above it size purely on confidence.
	MagnitudeRef float64
}

// DefaultConfig returns the default risk limits.
func DefaultConfig() Config {
	return Config{
		MaxTradeSizeUSD:      50,
		MinConfidence:        0.65,
		MaxOpenPositions:     5,
		DailyLossLimitR:      3,
		ApprovalThresholdUSD: 25,
		AutoExecute:          false,
		MagnitudeRef:         0.25,
	}
}

// State is a snapshot of the shared risk state. It is mutated only through
// Manager transactions.
type State struct {
	OpenPositions int
	DailyPnLR     float64
	Day           time.Time // UTC midnight of the current trading day
}

// Verdict is the outcome of one risk evaluation.
type Verdict struct {
	Action          domain.Action
	ApprovedSizeUSD float64
	Reason          string // names exactly the check that fired
}

// Manager owns the process-wide RiskState. Evaluate, ReleasePosition, and
// BookPnL are atomic transactions against it.
type Manager struct {
	mu     sync.Mutex
	state  State
	cfg    Config
	now    func() time.Time
	logger *slog.Logger
}

// NewManager creates a Manager with zeroed state for the current UTC day.
func NewManager(cfg Config, logger *slog.Logger) *Manager {
	m := &Manager{
		cfg:    cfg,
		now:    time.Now,
		logger: logger.With(slog.String("component", "risk_manager")),
	}
	m.state.Day = utcDay(m.now())
	return m
}

// Restore seeds the state from persisted values (used at startup to rebuild
// today's PnL and open position count from the ledger).
func (m *Manager) Restore(openPositions int, dailyPnLR float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetIfNewDayLocked()
	if openPositions >= 0 {
		m.state.OpenPositions = openPositions
	}
	m.state.DailyPnLR = dailyPnLR
}

// Evaluate runs the ordered admission checks for one trade candidate as a
// single transaction. The first failing check determines the outcome and
// short-circuits with no side effects; only an Execute verdict mutates state
// (incrementing the open position count inside the same critical section).
//
// Check order:
//  1. daily loss stop
//  2. confidence threshold
//  3. open position cap
//  4. candidate sizing (monotone in magnitude and confidence, capped)
//  5. approval threshold (unless auto-execute)
//  6. execute
func (m *Manager) Evaluate(edge domain.Edge, confidence float64) Verdict {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.resetIfNewDayLocked()

	// 1. Daily loss stop.
	if m.state.DailyPnLR <= -m.cfg.DailyLossLimitR {
		return Verdict{
			Action: domain.ActionReject,
			Reason: fmt.Sprintf("day stopped: daily PnL %.2fR at or below -%.2fR limit",
				m.state.DailyPnLR, m.cfg.DailyLossLimitR),
		}
	}

	// 2. Confidence threshold.
	if confidence < m.cfg.MinConfidence {
		return Verdict{
			Action: domain.ActionSkip,
			Reason: fmt.Sprintf("confidence %.2f below threshold %.2f",
				confidence, m.cfg.MinConfidence),
		}
	}

	// 3. Position cap.
	if m.state.OpenPositions >= m.cfg.MaxOpenPositions {
		return Verdict{
			Action: domain.ActionReject,
			Reason: fmt.Sprintf("position cap reached: %d open of %d max",
				m.state.OpenPositions, m.cfg.MaxOpenPositions),
		}
	}

	// 4. Candidate size.
	size := m.candidateSize(edge.Magnitude, confidence)

	// 5. Approval threshold. The boundary is inclusive of Execute: a size of
	// exactly the threshold executes; only sizes strictly above it require
	// approval.
	if size > m.cfg.ApprovalThresholdUSD && !m.cfg.AutoExecute {
		return Verdict{
			Action:          domain.ActionNotifyForApproval,
			ApprovedSizeUSD: size,
			Reason: fmt.Sprintf("size $%.2f above approval threshold $%.2f",
				size, m.cfg.ApprovalThresholdUSD),
		}
	}

	// 6. Execute. The position slot is taken inside the same transaction so
	// concurrent evaluations cannot jointly exceed the cap.
	m.state.OpenPositions++
	m.logger.Debug("position admitted",
		slog.Int("open_positions", m.state.OpenPositions),
		slog.Float64("size_usd", size),
	)
	return Verdict{
		Action:          domain.ActionExecute,
		ApprovedSizeUSD: size,
		Reason:          fmt.Sprintf("edge %.3f, confidence %.2f", edge.Magnitude, confidence),
	}
}

// candidateSize is maxTradeSize * min(1, magnitude/magnitudeRef) * confidence:
// monotone increasing in both inputs and never above the per-trade cap.
func (m *Manager) candidateSize(magnitude, confidence float64) float64 {
	ref := m.cfg.MagnitudeRef
	if ref <= 0 {
		ref = DefaultConfig().MagnitudeRef
	}
	size := m.cfg.MaxTradeSizeUSD * math.Min(1, magnitude/ref) * confidence
	return math.Min(size, m.cfg.MaxTradeSizeUSD)
}

// ReleasePosition frees one position slot after an executed decision's order
// failed or its market resolved.
func (m *Manager) ReleasePosition() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.OpenPositions > 0 {
		m.state.OpenPositions--
	}
}

// BookPnL adds realized PnL (in R units) to the current trading day.
func (m *Manager) BookPnL(pnlR float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetIfNewDayLocked()
	m.state.DailyPnLR += pnlR
	if m.state.DailyPnLR <= -m.cfg.DailyLossLimitR {
		m.logger.Warn("daily loss limit reached, new trades stopped for today",
			slog.Float64("daily_pnl_r", m.state.DailyPnLR),
			slog.Float64("limit_r", m.cfg.DailyLossLimitR),
		)
	}
}

// Snapshot returns a copy of the current state.
func (m *Manager) Snapshot() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetIfNewDayLocked()
	return m.state
}

// resetIfNewDayLocked clears the daily PnL when the UTC day has rolled over.
// Open positions survive the boundary: they are real exposure, released only
// on resolution. Caller must hold mu.
func (m *Manager) resetIfNewDayLocked() {
	day := utcDay(m.now())
	if day.After(m.state.Day) {
		m.logger.Info("trading day boundary, daily PnL reset",
			slog.Time("new_day", day),
			slog.Float64("previous_pnl_r", m.state.DailyPnLR),
		)
		m.state.Day = day
		m.state.DailyPnLR = 0
	}
}

func utcDay(t time.Time) time.Time {
	return t.UTC().Truncate(24 * time.Hour)
}
