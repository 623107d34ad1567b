// Package engine runs the per-market decision pipeline (sentiment →
// probability → edge → risk → decision), dispatches terminal decisions to the
// execution and notification collaborators, and drives the scan loop.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/buttenhook/polymarket-bot/internal/domain"
	"github.com/buttenhook/polymarket-bot/internal/predict"
	"github.com/buttenhook/polymarket-bot/internal/risk"
	"github.com/buttenhook/polymarket-bot/internal/sentiment"
)

// decisionNamespace makes decision IDs deterministic: identical inputs on the
// same trading day produce the same UUID, so re-running a pipeline with
// unchanged inputs yields an identical decision and an idempotent ledger
// append.
var decisionNamespace = uuid.MustParse("9f2c1b0e-5a77-4d11-8c35-2f4a9e6d0b41")

// EvaluatorConfig holds per-evaluation timeouts and cache policy.
type EvaluatorConfig struct {
	NewsTimeout time.Duration // mandatory bound on each news search call
	EvidenceTTL time.Duration // how long cached search results stay fresh
}

// Evaluator runs the strict stage order for one market. It is stateless
// except for the shared risk manager, so evaluations of different markets can
// run concurrently.
type Evaluator struct {
	news       domain.NewsSource
	evCache    domain.EvidenceCache // optional
	aggregator *sentiment.Aggregator
	estimator  *predict.Estimator
	riskMgr    *risk.Manager
	cfg        EvaluatorConfig
	logger     *slog.Logger
	now        func() time.Time
}

// NewEvaluator creates an Evaluator. evCache may be nil, in which case every
// evaluation hits the news source directly.
func NewEvaluator(
	news domain.NewsSource,
	evCache domain.EvidenceCache,
	aggregator *sentiment.Aggregator,
	estimator *predict.Estimator,
	riskMgr *risk.Manager,
	cfg EvaluatorConfig,
	logger *slog.Logger,
) *Evaluator {
	if cfg.NewsTimeout <= 0 {
		cfg.NewsTimeout = 15 * time.Second
	}
	if cfg.EvidenceTTL <= 0 {
		cfg.EvidenceTTL = 30 * time.Minute
	}
	return &Evaluator{
		news:       news,
		evCache:    evCache,
		aggregator: aggregator,
		estimator:  estimator,
		riskMgr:    riskMgr,
		cfg:        cfg,
		logger:     logger.With(slog.String("component", "evaluator")),
		now:        time.Now,
	}
}

// Evaluate runs the full pipeline for one market and returns its terminal
// decision. It returns an error only for data-integrity failures
// (ErrInvalidMarketData); transient news failures degrade to the neutral
// empty-evidence signal instead.
func (ev *Evaluator) Evaluate(ctx context.Context, m domain.Market) (domain.TradeDecision, error) {
	if err := m.Validate(); err != nil {
		return domain.TradeDecision{}, fmt.Errorf("engine: market %s price %v: %w",
			m.ID, m.ImpliedProbability, err)
	}

	items := ev.gatherEvidence(ctx, m)
	sig := ev.aggregator.Aggregate(items)

	pred, err := ev.estimator.Estimate(m.ID, m.ImpliedProbability, sig)
	if err != nil {
		return domain.TradeDecision{}, err
	}

	edge := predict.ComputeEdge(pred, m.ImpliedProbability)

	dec := domain.TradeDecision{
		ID:         ev.decisionID(m, sig),
		MarketID:   m.ID,
		Question:   m.Question,
		Side:       edge.Side,
		Prior:      m.ImpliedProbability,
		Posterior:  pred.PosteriorProbability,
		Confidence: pred.Confidence,
		Sentiment:  sig,
		Edge:       edge.Value,
		Status:     domain.DecisionStatusPending,
		CreatedAt:  ev.now().UTC(),
	}

	if edge.Side == domain.SideNone {
		dec.Action = domain.ActionSkip
		dec.Rationale = rationale(dec, "no actionable edge: posterior equals market price")
		return dec, nil
	}

	verdict := ev.riskMgr.Evaluate(edge, pred.Confidence)
	dec.Action = verdict.Action
	dec.SizeUSD = verdict.ApprovedSizeUSD
	dec.Rationale = rationale(dec, verdict.Reason)
	return dec, nil
}

// gatherEvidence fetches evidence for the market's question, consulting the
// cache first. Any search failure, including a timeout, degrades to the
// empty-evidence case rather than failing the evaluation.
func (ev *Evaluator) gatherEvidence(ctx context.Context, m domain.Market) []domain.EvidenceItem {
	category := string(m.Category)
	if category == "" || category == "other" {
		category = DetectCategory(m.Question)
	}
	query := BuildQuery(m.Question, category)
	if query == "" {
		return nil
	}

	if ev.evCache != nil {
		if items, err := ev.evCache.Get(ctx, query); err == nil {
			return items
		}
	}

	searchCtx, cancel := context.WithTimeout(ctx, ev.cfg.NewsTimeout)
	defer cancel()

	items, err := ev.news.Search(searchCtx, query)
	if err != nil {
		ev.logger.Warn("news search failed, degrading to neutral evidence",
			slog.String("market_id", m.ID),
			slog.String("error", err.Error()),
		)
		return nil
	}

	if ev.evCache != nil {
		if err := ev.evCache.Set(ctx, query, items, ev.cfg.EvidenceTTL); err != nil {
			ev.logger.Debug("evidence cache write failed",
				slog.String("error", err.Error()),
			)
		}
	}
	return items
}

// decisionID derives a deterministic UUID from the evaluation inputs and the
// trading day.
func (ev *Evaluator) decisionID(m domain.Market, sig domain.SentimentSignal) string {
	day := ev.now().UTC().Format("2006-01-02")
	seed := fmt.Sprintf("decision:%s:%s:%.6f:%.6f:%.6f",
		m.ID, day, m.ImpliedProbability, sig.Score, sig.EvidenceStrength)
	return uuid.NewSHA1(decisionNamespace, []byte(seed)).String()
}

// rationale builds the auditable one-line explanation carried on every
// decision: all intermediate values plus the check that decided the outcome.
func rationale(d domain.TradeDecision, reason string) string {
	return fmt.Sprintf(
		"prior=%.3f posterior=%.3f sentiment=%+.2f(strength %.2f) edge=%+.3f confidence=%.2f → %s: %s",
		d.Prior, d.Posterior, d.Sentiment.Score, d.Sentiment.EvidenceStrength,
		d.Edge, d.Confidence, d.Action, reason,
	)
}
