// Package sentiment turns retrieved evidence text into a single scalar
// sentiment signal with an evidence-strength measure.
package sentiment

import (
	"math"
	"time"

	"github.com/buttenhook/polymarket-bot/internal/domain"
)

// Config holds the tunable parameters for evidence aggregation.
type Config struct {
	// RecencyHalfLife is the age at which an item's recency weight halves.
	// The decay curve is 0.5^(age/halfLife): strictly monotone decreasing
	// in age, 1.0 at age zero.
	RecencyHalfLife time.Duration
	// StrengthScale controls how fast evidence strength saturates: strength
	// is 1 - exp(-totalWeight/scale), asymptotically bounded by 1.
	StrengthScale float64
}

// DefaultConfig returns the aggregation parameters used in production.
func DefaultConfig() Config {
	return Config{
		RecencyHalfLife: 24 * time.Hour,
		StrengthScale:   3.0,
	}
}

// Aggregator combines per-item scores from a pluggable TextScorer into one
// SentimentSignal per market evaluation.
type Aggregator struct {
	scorer domain.TextScorer
	cfg    Config
	now    func() time.Time
}

// NewAggregator creates an Aggregator using the given scorer.
func NewAggregator(scorer domain.TextScorer, cfg Config) *Aggregator {
	if cfg.RecencyHalfLife <= 0 {
		cfg.RecencyHalfLife = DefaultConfig().RecencyHalfLife
	}
	if cfg.StrengthScale <= 0 {
		cfg.StrengthScale = DefaultConfig().StrengthScale
	}
	return &Aggregator{scorer: scorer, cfg: cfg, now: time.Now}
}

// Aggregate computes the relevance- and recency-weighted mean of per-item
// sentiment scores plus a saturating evidence strength.
//
// An empty input (or one whose total weight is zero) yields the neutral
// no-confidence signal {0, 0}; it must never be treated as positive evidence.
func (a *Aggregator) Aggregate(items []domain.EvidenceItem) domain.SentimentSignal {
	if len(items) == 0 {
		return domain.SentimentSignal{}
	}

	now := a.now()
	var weightedSum, totalWeight float64
	for _, item := range items {
		w := clamp01(item.RelevanceWeight) * a.recencyWeight(now, item.SourceTimestamp)
		if w <= 0 {
			continue
		}
		weightedSum += w * clampScore(a.scorer.Score(item.Text))
		totalWeight += w
	}

	if totalWeight == 0 {
		return domain.SentimentSignal{}
	}

	return domain.SentimentSignal{
		Score:            weightedSum / totalWeight,
		EvidenceStrength: 1 - math.Exp(-totalWeight/a.cfg.StrengthScale),
	}
}

// recencyWeight returns 0.5^(age/halfLife). Items with a zero or future
// timestamp get full weight.
func (a *Aggregator) recencyWeight(now, ts time.Time) float64 {
	if ts.IsZero() || !ts.Before(now) {
		return 1.0
	}
	age := now.Sub(ts)
	return math.Pow(0.5, float64(age)/float64(a.cfg.RecencyHalfLife))
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

// clampScore bounds a scorer output to [-1,1]. NaN defaults to 0 so a
// misbehaving scorer degrades to neutral rather than poisoning the mean.
func clampScore(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return 0
	case v < -1:
		return -1
	case v > 1:
		return 1
	}
	return v
}
