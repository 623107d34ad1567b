package risk

import (
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/buttenhook/polymarket-bot/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func strongEdge() domain.Edge {
	return domain.Edge{Value: 0.27, Side: domain.SideYes, Magnitude: 0.27}
}

func TestEvaluate_DayStoppedRejects(t *testing.T) {
	m := NewManager(DefaultConfig(), testLogger())
	m.Restore(0, -3.0)

	v := m.Evaluate(strongEdge(), 0.9)

	assert.Equal(t, domain.ActionReject, v.Action)
	assert.Contains(t, v.Reason, "day stopped")
	assert.Equal(t, 0, m.Snapshot().OpenPositions, "reject must have no side effects")
}

func TestEvaluate_LowConfidenceSkips(t *testing.T) {
	m := NewManager(DefaultConfig(), testLogger())

	v := m.Evaluate(strongEdge(), 0.35)

	assert.Equal(t, domain.ActionSkip, v.Action)
	assert.Contains(t, v.Reason, "confidence")
	assert.Equal(t, 0, m.Snapshot().OpenPositions)
}

func TestEvaluate_PositionCapRejects(t *testing.T) {
	m := NewManager(DefaultConfig(), testLogger())
	m.Restore(5, 0)

	v := m.Evaluate(strongEdge(), 0.9)

	assert.Equal(t, domain.ActionReject, v.Action)
	assert.Contains(t, v.Reason, "position cap")
}

func TestEvaluate_CheckOrder_DayStopBeforeConfidence(t *testing.T) {
	m := NewManager(DefaultConfig(), testLogger())
	m.Restore(0, -4.0)

	// Low confidence AND day stopped: the day stop fires first.
	v := m.Evaluate(strongEdge(), 0.1)

	assert.Equal(t, domain.ActionReject, v.Action)
	assert.Contains(t, v.Reason, "day stopped")
}

func TestEvaluate_SizeAlwaysCapped(t *testing.T) {
	m := NewManager(DefaultConfig(), testLogger())

	for _, c := range []struct{ mag, conf float64 }{
		{0.01, 0.65}, {0.27, 0.71}, {0.5, 0.9}, {1.0, 1.0}, {10, 1.0},
	} {
		m.Restore(0, 0)
		v := m.Evaluate(domain.Edge{Magnitude: c.mag, Side: domain.SideYes}, c.conf)
		assert.LessOrEqual(t, v.ApprovedSizeUSD, DefaultConfig().MaxTradeSizeUSD,
			"mag=%v conf=%v", c.mag, c.conf)
	}
}

func TestCandidateSize_MonotoneInBoth(t *testing.T) {
	m := NewManager(DefaultConfig(), testLogger())

	prev := 0.0
	for _, mag := range []float64{0.02, 0.05, 0.10, 0.20, 0.25} {
		size := m.candidateSize(mag, 0.8)
		assert.GreaterOrEqual(t, size, prev, "size must not decrease with magnitude")
		prev = size
	}

	prev = 0.0
	for _, conf := range []float64{0.65, 0.7, 0.8, 0.9, 1.0} {
		size := m.candidateSize(0.15, conf)
		assert.Greater(t, size, prev, "size must increase with confidence")
		prev = size
	}
}

// Approval boundary: exactly at the threshold executes; strictly above
// requires approval.
func TestEvaluate_ApprovalBoundary(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MagnitudeRef = 0.25
	// Pick magnitude at saturation so size = 50 * confidence exactly.
	edge := domain.Edge{Magnitude: 0.25, Side: domain.SideYes}

	t.Run("just below threshold executes", func(t *testing.T) {
		m := NewManager(cfg, testLogger())
		v := m.Evaluate(edge, 24.99/50.0) // size = $24.99
		assert.Equal(t, domain.ActionExecute, v.Action)
		assert.InDelta(t, 24.99, v.ApprovedSizeUSD, 1e-9)
		assert.Equal(t, 1, m.Snapshot().OpenPositions)
	})

	t.Run("just above threshold requires approval", func(t *testing.T) {
		m := NewManager(cfg, testLogger())
		v := m.Evaluate(edge, 25.01/50.0) // size = $25.01
		assert.Equal(t, domain.ActionNotifyForApproval, v.Action)
		assert.InDelta(t, 25.01, v.ApprovedSizeUSD, 1e-9)
		assert.Equal(t, 0, m.Snapshot().OpenPositions, "approval must not commit the slot")
	})

	t.Run("exactly at threshold executes", func(t *testing.T) {
		m := NewManager(cfg, testLogger())
		v := m.Evaluate(edge, 0.5) // size = $25.00
		assert.Equal(t, domain.ActionExecute, v.Action)
	})

	t.Run("auto execute bypasses approval", func(t *testing.T) {
		auto := cfg
		auto.AutoExecute = true
		m := NewManager(auto, testLogger())
		v := m.Evaluate(edge, 0.9) // size = $45 > threshold
		assert.Equal(t, domain.ActionExecute, v.Action)
	})
}

// Concurrency property: N concurrent evaluations that would each individually
// pass the position-cap check must never jointly exceed the cap.
func TestEvaluate_ConcurrentNeverExceedsCap(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AutoExecute = true
	m := NewManager(cfg, testLogger())

	const n = 50
	var wg sync.WaitGroup
	executed := make(chan struct{}, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v := m.Evaluate(strongEdge(), 0.9)
			if v.Action == domain.ActionExecute {
				executed <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(executed)

	count := 0
	for range executed {
		count++
	}
	assert.Equal(t, cfg.MaxOpenPositions, count)
	assert.Equal(t, cfg.MaxOpenPositions, m.Snapshot().OpenPositions)
}

func TestBookPnL_TriggersDayStop(t *testing.T) {
	m := NewManager(DefaultConfig(), testLogger())

	m.BookPnL(-1.5)
	v := m.Evaluate(strongEdge(), 0.9)
	assert.NotEqual(t, domain.ActionReject, v.Action)
	m.ReleasePosition()

	m.BookPnL(-1.5)
	v = m.Evaluate(strongEdge(), 0.9)
	assert.Equal(t, domain.ActionReject, v.Action)
	assert.Contains(t, v.Reason, "day stopped")
}

func TestDayBoundary_ResetsDailyPnLOnly(t *testing.T) {
	m := NewManager(DefaultConfig(), testLogger())
	m.Restore(2, -3.5)

	// Roll the clock past midnight UTC.
	m.now = func() time.Time { return time.Now().UTC().Add(48 * time.Hour) }

	snap := m.Snapshot()
	assert.Equal(t, 0.0, snap.DailyPnLR, "daily PnL resets at the day boundary")
	assert.Equal(t, 2, snap.OpenPositions, "open positions survive the boundary")

	v := m.Evaluate(strongEdge(), 0.9)
	assert.NotEqual(t, domain.ActionReject, v.Action, "new day lifts the loss stop")
}

func TestReleasePosition_NeverNegative(t *testing.T) {
	m := NewManager(DefaultConfig(), testLogger())
	m.ReleasePosition()
	assert.Equal(t, 0, m.Snapshot().OpenPositions)
}
