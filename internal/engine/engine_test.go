package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buttenhook/polymarket-bot/internal/domain"
	"github.com/buttenhook/polymarket-bot/internal/predict"
	"github.com/buttenhook/polymarket-bot/internal/risk"
	"github.com/buttenhook/polymarket-bot/internal/sentiment"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fixedScorer returns the same score for every snippet.
type fixedScorer struct{ score float64 }

func (s fixedScorer) Score(string) float64 { return s.score }

type fakeNews struct {
	items []domain.EvidenceItem
	err   error
	calls int
}

func (n *fakeNews) Search(ctx context.Context, query string) ([]domain.EvidenceItem, error) {
	n.calls++
	if n.err != nil {
		return nil, n.err
	}
	return n.items, nil
}

type fakeEvCache struct {
	items []domain.EvidenceItem
	sets  int
}

func (c *fakeEvCache) Get(ctx context.Context, query string) ([]domain.EvidenceItem, error) {
	if c.items == nil {
		return nil, domain.ErrNotFound
	}
	return c.items, nil
}

func (c *fakeEvCache) Set(ctx context.Context, query string, items []domain.EvidenceItem, ttl time.Duration) error {
	c.sets++
	c.items = items
	return nil
}

type fakePrices struct {
	prices map[string]float64
	reads  int
}

func (p *fakePrices) SetPrice(ctx context.Context, marketID string, price float64, ts time.Time) error {
	if p.prices == nil {
		p.prices = map[string]float64{}
	}
	p.prices[marketID] = price
	return nil
}

func (p *fakePrices) GetPrice(ctx context.Context, marketID string) (float64, time.Time, error) {
	if v, ok := p.prices[marketID]; ok {
		return v, time.Now(), nil
	}
	return 0, time.Time{}, domain.ErrNotFound
}

func (p *fakePrices) GetPrices(ctx context.Context, marketIDs []string) (map[string]float64, error) {
	p.reads++
	out := make(map[string]float64, len(marketIDs))
	for _, id := range marketIDs {
		if v, ok := p.prices[id]; ok {
			out[id] = v
		}
	}
	return out, nil
}

type fakeGateway struct {
	orderID string
	errs    []error // consumed per call; nil entry means success
	calls   int
}

func (g *fakeGateway) SubmitOrder(ctx context.Context, marketID string, side domain.Side, sizeUSD float64) (string, error) {
	g.calls++
	if len(g.errs) > 0 {
		err := g.errs[0]
		g.errs = g.errs[1:]
		if err != nil {
			return "", err
		}
	}
	return g.orderID, nil
}

type fakeNotifier struct {
	events []string
}

func (n *fakeNotifier) Notify(ctx context.Context, event, title, message string) error {
	n.events = append(n.events, event)
	return nil
}

type fakeLedger struct {
	appended []domain.TradeDecision
	statuses map[string]domain.DecisionStatus
	outcomes map[string]domain.DecisionOutcome
	open     []domain.TradeDecision
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		statuses: map[string]domain.DecisionStatus{},
		outcomes: map[string]domain.DecisionOutcome{},
	}
}

func (l *fakeLedger) Append(ctx context.Context, d domain.TradeDecision) error {
	l.appended = append(l.appended, d)
	return nil
}

func (l *fakeLedger) UpdateStatus(ctx context.Context, id string, status domain.DecisionStatus, orderID string) error {
	l.statuses[id] = status
	return nil
}

func (l *fakeLedger) RecordOutcome(ctx context.Context, id string, out domain.DecisionOutcome) error {
	l.outcomes[id] = out
	return nil
}

func (l *fakeLedger) GetByID(ctx context.Context, id string) (domain.TradeDecision, error) {
	for _, d := range l.appended {
		if d.ID == id {
			return d, nil
		}
	}
	return domain.TradeDecision{}, domain.ErrNotFound
}

func (l *fakeLedger) ListOpenExecuted(ctx context.Context) ([]domain.TradeDecision, error) {
	return l.open, nil
}

func (l *fakeLedger) SumDailyPnLR(ctx context.Context, t time.Time) (float64, error) {
	return 0, nil
}

func (l *fakeLedger) ListResolvedBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.TradeDecision, error) {
	return nil, nil
}

func (l *fakeLedger) DeleteByIDs(ctx context.Context, ids []string) (int64, error) {
	return int64(len(ids)), nil
}

type fakeMarkets struct {
	markets    []domain.Market
	resolution domain.MarketResolution
	resErr     error
}

func (m *fakeMarkets) ListActiveMarkets(ctx context.Context, limit int) ([]domain.Market, error) {
	return m.markets, nil
}

func (m *fakeMarkets) CurrentPrice(ctx context.Context, marketID string) (float64, error) {
	return 0.5, nil
}

func (m *fakeMarkets) Resolution(ctx context.Context, marketID string) (domain.MarketResolution, error) {
	return m.resolution, m.resErr
}

func testMarket() domain.Market {
	return domain.Market{
		ID:                 "mkt-1",
		Question:           "Will bitcoin reach 100k this cycle",
		Category:           domain.CategoryCrypto,
		ImpliedProbability: 0.35,
		Volume:             50_000,
		Status:             domain.MarketStatusActive,
	}
}

func freshEvidence(n int) []domain.EvidenceItem {
	items := make([]domain.EvidenceItem, n)
	for i := range items {
		items[i] = domain.EvidenceItem{
			Text:            "bullish breakout rally continues",
			SourceTimestamp: time.Now(),
			RelevanceWeight: 1.0,
		}
	}
	return items
}

func newTestEvaluator(news domain.NewsSource, cache domain.EvidenceCache, score float64, riskCfg risk.Config) (*Evaluator, *risk.Manager) {
	rm := risk.NewManager(riskCfg, testLogger())
	ev := NewEvaluator(
		news,
		cache,
		sentiment.NewAggregator(fixedScorer{score: score}, sentiment.DefaultConfig()),
		predict.NewEstimator(predict.DefaultConfig()),
		rm,
		EvaluatorConfig{},
		testLogger(),
	)
	return ev, rm
}

func TestEvaluate_InvalidPriceFails(t *testing.T) {
	ev, _ := newTestEvaluator(&fakeNews{}, nil, 0, risk.DefaultConfig())

	m := testMarket()
	m.ImpliedProbability = 1.2
	_, err := ev.Evaluate(context.Background(), m)
	assert.ErrorIs(t, err, domain.ErrInvalidMarketData)
}

func TestEvaluate_NewsFailureDegradesToSkip(t *testing.T) {
	news := &fakeNews{err: domain.ErrSearchTimeout}
	ev, _ := newTestEvaluator(news, nil, 0.65, risk.DefaultConfig())

	dec, err := ev.Evaluate(context.Background(), testMarket())
	require.NoError(t, err, "news failure must not fail the evaluation")

	assert.Equal(t, domain.ActionSkip, dec.Action)
	assert.Equal(t, domain.SideNone, dec.Side)
	assert.Equal(t, dec.Prior, dec.Posterior, "neutral evidence leaves the prior unchanged")
	assert.Zero(t, dec.Sentiment.EvidenceStrength)
}

func TestEvaluate_StrongEvidenceProducesYesCandidate(t *testing.T) {
	news := &fakeNews{items: freshEvidence(10)}
	ev, _ := newTestEvaluator(news, nil, 0.65, risk.DefaultConfig())

	dec, err := ev.Evaluate(context.Background(), testMarket())
	require.NoError(t, err)

	assert.Equal(t, domain.SideYes, dec.Side)
	assert.Greater(t, dec.Posterior, dec.Prior)
	assert.Equal(t, domain.ActionNotifyForApproval, dec.Action,
		"large sized candidate needs approval under the default config")
	assert.Greater(t, dec.SizeUSD, risk.DefaultConfig().ApprovalThresholdUSD)
	assert.Contains(t, dec.Rationale, "approval threshold")
}

func TestEvaluate_CacheHitSkipsSearch(t *testing.T) {
	news := &fakeNews{items: freshEvidence(3)}
	cache := &fakeEvCache{items: freshEvidence(3)}
	ev, _ := newTestEvaluator(news, cache, 0.5, risk.DefaultConfig())

	_, err := ev.Evaluate(context.Background(), testMarket())
	require.NoError(t, err)
	assert.Zero(t, news.calls, "cache hit must not reach the news source")
}

func TestEvaluate_CacheMissFillsCache(t *testing.T) {
	news := &fakeNews{items: freshEvidence(3)}
	cache := &fakeEvCache{}
	ev, _ := newTestEvaluator(news, cache, 0.5, risk.DefaultConfig())

	_, err := ev.Evaluate(context.Background(), testMarket())
	require.NoError(t, err)
	assert.Equal(t, 1, news.calls)
	assert.Equal(t, 1, cache.sets)
}

func TestEvaluate_DeterministicDecisionID(t *testing.T) {
	fixed := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	// Zero timestamps get full recency weight, keeping the strength
	// independent of the wall clock.
	items := []domain.EvidenceItem{{Text: "surge rally", RelevanceWeight: 1}}

	run := func() domain.TradeDecision {
		ev, _ := newTestEvaluator(&fakeNews{items: items}, nil, 0.4, risk.DefaultConfig())
		ev.now = func() time.Time { return fixed }
		dec, err := ev.Evaluate(context.Background(), testMarket())
		require.NoError(t, err)
		return dec
	}

	first, second := run(), run()
	assert.Equal(t, first.ID, second.ID, "identical inputs on the same day share an ID")
	assert.Equal(t, first.Posterior, second.Posterior)
}

func TestDispatch_ExecuteSuccess(t *testing.T) {
	ledger := newFakeLedger()
	gw := &fakeGateway{orderID: "ord-7"}
	notifier := &fakeNotifier{}
	rm := risk.NewManager(risk.DefaultConfig(), testLogger())
	d := NewDispatcher(gw, notifier, ledger, rm, testLogger())

	dec := domain.TradeDecision{
		ID: "dec-1", MarketID: "mkt-1", Side: domain.SideYes,
		SizeUSD: 20, Action: domain.ActionExecute, Status: domain.DecisionStatusPending,
	}
	out := d.Dispatch(context.Background(), dec)

	assert.Equal(t, domain.DecisionStatusSubmitted, out.Status)
	assert.Equal(t, "ord-7", out.OrderID)
	assert.Len(t, ledger.appended, 1)
	assert.Equal(t, domain.DecisionStatusSubmitted, ledger.statuses["dec-1"])
	assert.Equal(t, []string{"trade_executed"}, notifier.events)
}

func TestDispatch_RetriesOnceThenFails(t *testing.T) {
	ledger := newFakeLedger()
	gw := &fakeGateway{errs: []error{domain.ErrConnectivity, domain.ErrConnectivity}}
	notifier := &fakeNotifier{}
	rm := risk.NewManager(risk.DefaultConfig(), testLogger())
	rm.Restore(1, 0) // the slot taken when the decision was admitted

	d := NewDispatcher(gw, notifier, ledger, rm, testLogger())
	dec := domain.TradeDecision{
		ID: "dec-2", MarketID: "mkt-1", Side: domain.SideYes,
		SizeUSD: 20, Action: domain.ActionExecute, Status: domain.DecisionStatusPending,
	}
	out := d.Dispatch(context.Background(), dec)

	assert.Equal(t, 2, gw.calls, "exactly one retry")
	assert.Equal(t, domain.DecisionStatusFailed, out.Status)
	assert.Equal(t, domain.DecisionStatusFailed, ledger.statuses["dec-2"])
	assert.Equal(t, 0, rm.Snapshot().OpenPositions, "failed execution releases the slot")
	assert.Equal(t, []string{"execution_failed"}, notifier.events)
}

func TestDispatch_HardRejectionNotRetried(t *testing.T) {
	gw := &fakeGateway{errs: []error{domain.ErrOrderRejected}}
	rm := risk.NewManager(risk.DefaultConfig(), testLogger())
	rm.Restore(1, 0)
	d := NewDispatcher(gw, &fakeNotifier{}, newFakeLedger(), rm, testLogger())

	out := d.Dispatch(context.Background(), domain.TradeDecision{
		ID: "dec-3", Action: domain.ActionExecute,
	})

	assert.Equal(t, 1, gw.calls, "a hard rejection is final")
	assert.Equal(t, domain.DecisionStatusFailed, out.Status)
}

func TestDispatch_ApprovalGoesToNotifier(t *testing.T) {
	ledger := newFakeLedger()
	gw := &fakeGateway{}
	notifier := &fakeNotifier{}
	rm := risk.NewManager(risk.DefaultConfig(), testLogger())
	d := NewDispatcher(gw, notifier, ledger, rm, testLogger())

	d.Dispatch(context.Background(), domain.TradeDecision{
		ID: "dec-4", Action: domain.ActionNotifyForApproval, SizeUSD: 40,
	})

	assert.Zero(t, gw.calls, "approval must not submit an order")
	assert.Equal(t, []string{"approval_required"}, notifier.events)
	assert.Len(t, ledger.appended, 1, "every decision reaches the ledger")
}

func TestDispatch_SkipStillRecorded(t *testing.T) {
	ledger := newFakeLedger()
	d := NewDispatcher(nil, nil, ledger, risk.NewManager(risk.DefaultConfig(), testLogger()), testLogger())

	d.Dispatch(context.Background(), domain.TradeDecision{ID: "dec-5", Action: domain.ActionSkip})

	assert.Len(t, ledger.appended, 1)
}

func TestSettlePnL(t *testing.T) {
	tests := []struct {
		name string
		dec  domain.TradeDecision
		won  bool
		want float64
	}{
		{"yes win", domain.TradeDecision{Side: domain.SideYes, Prior: 0.35, SizeUSD: 10}, true, 10 * (1/0.35 - 1)},
		{"yes loss", domain.TradeDecision{Side: domain.SideYes, Prior: 0.35, SizeUSD: 10}, false, -10},
		{"no win", domain.TradeDecision{Side: domain.SideNo, Prior: 0.8, SizeUSD: 10}, true, 10 * (1/0.2 - 1)},
		{"no loss", domain.TradeDecision{Side: domain.SideNo, Prior: 0.8, SizeUSD: 10}, false, -10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, settlePnL(tt.dec, tt.won), 1e-9)
		})
	}
}

func TestSweep_SettlesResolvedDecision(t *testing.T) {
	ledger := newFakeLedger()
	ledger.open = []domain.TradeDecision{{
		ID: "dec-9", MarketID: "mkt-1", Side: domain.SideYes,
		Prior: 0.35, SizeUSD: 10, Status: domain.DecisionStatusSubmitted,
	}}
	markets := &fakeMarkets{resolution: domain.MarketResolution{Resolved: true, YesWon: true}}
	notifier := &fakeNotifier{}
	rm := risk.NewManager(risk.DefaultConfig(), testLogger())
	rm.Restore(1, 0)

	tr := NewTracker(markets, ledger, rm, notifier, ResolutionConfig{RiskUnitUSD: 50}, testLogger())
	require.NoError(t, tr.Sweep(context.Background()))

	out, ok := ledger.outcomes["dec-9"]
	require.True(t, ok)
	assert.True(t, out.Won)
	assert.InDelta(t, 10*(1/0.35-1), out.PnLUSD, 1e-9)
	assert.InDelta(t, out.PnLUSD/50, out.PnLR, 1e-9)

	snap := rm.Snapshot()
	assert.Equal(t, 0, snap.OpenPositions, "resolution frees the slot")
	assert.InDelta(t, out.PnLR, snap.DailyPnLR, 1e-9)
	assert.Equal(t, []string{"market_resolved"}, notifier.events)
}

func TestSweep_UnresolvedLeftOpen(t *testing.T) {
	ledger := newFakeLedger()
	ledger.open = []domain.TradeDecision{{ID: "dec-10", MarketID: "mkt-1", Side: domain.SideYes}}
	markets := &fakeMarkets{resolution: domain.MarketResolution{Resolved: false}}
	rm := risk.NewManager(risk.DefaultConfig(), testLogger())

	tr := NewTracker(markets, ledger, rm, nil, ResolutionConfig{}, testLogger())
	require.NoError(t, tr.Sweep(context.Background()))

	assert.Empty(t, ledger.outcomes)
}

func TestSweep_ResolutionErrorDoesNotAbort(t *testing.T) {
	ledger := newFakeLedger()
	ledger.open = []domain.TradeDecision{{ID: "dec-11", MarketID: "mkt-1"}}
	markets := &fakeMarkets{resErr: errors.New("upstream 500")}
	rm := risk.NewManager(risk.DefaultConfig(), testLogger())

	tr := NewTracker(markets, ledger, rm, nil, ResolutionConfig{}, testLogger())
	assert.NoError(t, tr.Sweep(context.Background()))
}

func TestScan_DispatchesCandidates(t *testing.T) {
	markets := &fakeMarkets{markets: []domain.Market{testMarket()}}
	ledger := newFakeLedger()
	news := &fakeNews{err: domain.ErrSearchTimeout}

	ev, rm := newTestEvaluator(news, nil, 0, risk.DefaultConfig())
	d := NewDispatcher(nil, nil, ledger, rm, testLogger())
	eng := New(markets, nil, ev, d, Config{MinVolumeUSD: 1000}, testLogger())

	require.NoError(t, eng.Scan(context.Background()))
	require.Len(t, ledger.appended, 1, "the surviving market is evaluated and recorded")
	assert.Equal(t, domain.ActionSkip, ledger.appended[0].Action)
}

func TestScan_CachedPriceOverridesSnapshot(t *testing.T) {
	m := testMarket() // snapshot price 0.35
	markets := &fakeMarkets{markets: []domain.Market{m}}
	prices := &fakePrices{prices: map[string]float64{m.ID: 0.62}}
	ledger := newFakeLedger()

	ev, rm := newTestEvaluator(&fakeNews{err: domain.ErrSearchTimeout}, nil, 0, risk.DefaultConfig())
	d := NewDispatcher(nil, nil, ledger, rm, testLogger())
	eng := New(markets, prices, ev, d, Config{MinVolumeUSD: 1000}, testLogger())

	require.NoError(t, eng.Scan(context.Background()))
	require.Len(t, ledger.appended, 1)
	assert.Equal(t, 1, prices.reads, "scan consults the price cache once per cycle")
	assert.Equal(t, 0.62, ledger.appended[0].Prior,
		"the websocket tick replaces the listing snapshot price")
}

func TestScan_StalePriceKeepsSnapshot(t *testing.T) {
	m := testMarket()
	markets := &fakeMarkets{markets: []domain.Market{m}}
	prices := &fakePrices{} // no cached tick for the market
	ledger := newFakeLedger()

	ev, rm := newTestEvaluator(&fakeNews{err: domain.ErrSearchTimeout}, nil, 0, risk.DefaultConfig())
	d := NewDispatcher(nil, nil, ledger, rm, testLogger())
	eng := New(markets, prices, ev, d, Config{MinVolumeUSD: 1000}, testLogger())

	require.NoError(t, eng.Scan(context.Background()))
	require.Len(t, ledger.appended, 1)
	assert.Equal(t, m.ImpliedProbability, ledger.appended[0].Prior)
}

func TestScan_VolumeFilterDropsThinMarkets(t *testing.T) {
	thin := testMarket()
	thin.ID = "mkt-thin"
	thin.Volume = 100
	markets := &fakeMarkets{markets: []domain.Market{thin, testMarket()}}
	ledger := newFakeLedger()

	ev, rm := newTestEvaluator(&fakeNews{}, nil, 0, risk.DefaultConfig())
	d := NewDispatcher(nil, nil, ledger, rm, testLogger())
	eng := New(markets, nil, ev, d, Config{MinVolumeUSD: 10_000}, testLogger())

	require.NoError(t, eng.Scan(context.Background()))
	require.Len(t, ledger.appended, 1)
	assert.Equal(t, "mkt-1", ledger.appended[0].MarketID)
}
