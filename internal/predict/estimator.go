// Package predict estimates posterior probabilities for markets by pooling
// the market's implied probability with sentiment evidence in log-odds space,
// and derives the tradable edge from the result.
package predict

import (
	"fmt"
	"math"

	"github.com/buttenhook/polymarket-bot/internal/domain"
)

// Config holds the tunable parameters of the probability update.
type Config struct {
	// MaxLogOddsShift bounds how far full-strength, full-score evidence can
	// move the prior in log-odds space.
	MaxLogOddsShift float64
	// MinProbability / MaxProbability clamp the posterior strictly inside
	// (0,1) so no amount of evidence produces unbounded certainty.
	MinProbability float64
	MaxProbability float64
}

// DefaultConfig returns the production estimator parameters.
func DefaultConfig() Config {
	return Config{
		MaxLogOddsShift: 1.9,
		MinProbability:  0.01,
		MaxProbability:  0.99,
	}
}

// Confidence model constants: confidence spans [confidenceBase,
// confidenceBase+confidenceSpan] scaled by evidence strength and
// direction agreement.
const (
	confidenceBase = 0.35
	confidenceSpan = 0.40
)

// Estimator computes a posterior Prediction from a prior probability and a
// SentimentSignal.
//
// The update is log-odds pooling:
//
//	posterior = sigmoid(logit(prior) + maxShift * score * strength)
//
// which satisfies the three required properties: monotone in score for fixed
// strength, monotone in strength for fixed nonzero score, and identity when
// strength is zero.
type Estimator struct {
	cfg Config
}

// NewEstimator creates an Estimator, falling back to defaults for unset
// parameters.
func NewEstimator(cfg Config) *Estimator {
	def := DefaultConfig()
	if cfg.MaxLogOddsShift <= 0 {
		cfg.MaxLogOddsShift = def.MaxLogOddsShift
	}
	if cfg.MinProbability <= 0 || cfg.MinProbability >= 1 {
		cfg.MinProbability = def.MinProbability
	}
	if cfg.MaxProbability <= 0 || cfg.MaxProbability >= 1 {
		cfg.MaxProbability = def.MaxProbability
	}
	return &Estimator{cfg: cfg}
}

// Estimate returns the posterior prediction for one market.
//
// A prior outside the open interval (0,1) is the market's own malformed
// price; it fails with ErrInvalidMarketData rather than being clamped.
func (e *Estimator) Estimate(marketID string, prior float64, sig domain.SentimentSignal) (domain.Prediction, error) {
	if prior <= 0 || prior >= 1 || math.IsNaN(prior) {
		return domain.Prediction{}, fmt.Errorf("predict: prior %v for market %s: %w",
			prior, marketID, domain.ErrInvalidMarketData)
	}

	delta := e.cfg.MaxLogOddsShift * sig.Score * sig.EvidenceStrength
	posterior := e.clamp(sigmoid(logit(prior) + delta))

	return domain.Prediction{
		MarketID:             marketID,
		PosteriorProbability: posterior,
		Confidence:           e.confidence(prior, posterior, sig),
	}, nil
}

// confidence is confidenceBase + confidenceSpan*strength*agreement, where
// agreement is 1 when the posterior moved in the direction the sentiment
// score points, 0.5 when neutral (zero score or unmoved posterior), and 0
// when clamping reversed the move. Deterministic and in [0,1].
func (e *Estimator) confidence(prior, posterior float64, sig domain.SentimentSignal) float64 {
	agreement := 0.5
	move := posterior - prior
	switch {
	case sig.Score == 0 || move == 0:
		agreement = 0.5
	case (move > 0) == (sig.Score > 0):
		agreement = 1.0
	default:
		agreement = 0.0
	}
	return confidenceBase + confidenceSpan*sig.EvidenceStrength*agreement
}

func (e *Estimator) clamp(p float64) float64 {
	switch {
	case p < e.cfg.MinProbability:
		return e.cfg.MinProbability
	case p > e.cfg.MaxProbability:
		return e.cfg.MaxProbability
	}
	return p
}

func logit(p float64) float64 {
	return math.Log(p / (1 - p))
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}
