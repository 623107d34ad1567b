package predict

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buttenhook/polymarket-bot/internal/domain"
)

func TestEstimate_InvalidPrior(t *testing.T) {
	e := NewEstimator(DefaultConfig())

	for _, prior := range []float64{0, 1, -0.2, 1.5} {
		_, err := e.Estimate("m1", prior, domain.SentimentSignal{})
		assert.ErrorIs(t, err, domain.ErrInvalidMarketData, "prior=%v", prior)
	}
}

func TestEstimate_ZeroStrengthReturnsPrior(t *testing.T) {
	e := NewEstimator(DefaultConfig())

	for _, prior := range []float64{0.05, 0.35, 0.5, 0.9} {
		pred, err := e.Estimate("m1", prior, domain.SentimentSignal{Score: 0.8, EvidenceStrength: 0})
		require.NoError(t, err)
		assert.InDelta(t, prior, pred.PosteriorProbability, 1e-12, "prior=%v", prior)
	}
}

func TestEstimate_MonotoneInScore(t *testing.T) {
	e := NewEstimator(DefaultConfig())

	prev := -1.0
	for _, score := range []float64{-1, -0.5, -0.1, 0, 0.1, 0.5, 1} {
		pred, err := e.Estimate("m1", 0.4, domain.SentimentSignal{Score: score, EvidenceStrength: 0.7})
		require.NoError(t, err)
		assert.Greater(t, pred.PosteriorProbability, prev,
			"posterior must strictly increase with score (score=%v)", score)
		prev = pred.PosteriorProbability
	}
}

func TestEstimate_MonotoneInStrength(t *testing.T) {
	e := NewEstimator(DefaultConfig())

	prev := 0.0
	for i, strength := range []float64{0.1, 0.3, 0.6, 0.9, 1.0} {
		pred, err := e.Estimate("m1", 0.4, domain.SentimentSignal{Score: 0.8, EvidenceStrength: strength})
		require.NoError(t, err)
		if i > 0 {
			assert.Greater(t, pred.PosteriorProbability, prev,
				"positive-score posterior must grow with strength (strength=%v)", strength)
		}
		prev = pred.PosteriorProbability
	}
}

func TestEstimate_PosteriorAlwaysClamped(t *testing.T) {
	e := NewEstimator(DefaultConfig())

	cases := []struct {
		prior    float64
		score    float64
		strength float64
	}{
		{0.005, -1, 1}, {0.995, 1, 1}, {0.5, 1, 1}, {0.5, -1, 1},
		{0.011, -1, 1}, {0.989, 1, 1}, {0.35, 0.65, 0.9},
	}
	for _, c := range cases {
		pred, err := e.Estimate("m1", c.prior, domain.SentimentSignal{Score: c.score, EvidenceStrength: c.strength})
		require.NoError(t, err)
		assert.GreaterOrEqual(t, pred.PosteriorProbability, 0.01)
		assert.LessOrEqual(t, pred.PosteriorProbability, 0.99)
	}
}

// Scenario from the problem statement: price 0.35, aggregate sentiment +0.65
// with high evidence strength → posterior ≈ 0.62, confidence ≈ 0.71.
func TestEstimate_ReferenceScenario(t *testing.T) {
	e := NewEstimator(DefaultConfig())

	pred, err := e.Estimate("m1", 0.35, domain.SentimentSignal{Score: 0.65, EvidenceStrength: 0.9})
	require.NoError(t, err)

	assert.InDelta(t, 0.62, pred.PosteriorProbability, 0.01)
	assert.InDelta(t, 0.71, pred.Confidence, 0.005)
}

func TestConfidence_Range(t *testing.T) {
	e := NewEstimator(DefaultConfig())

	for _, c := range []struct {
		prior    float64
		score    float64
		strength float64
	}{
		{0.5, 0, 0}, {0.5, 1, 1}, {0.5, -1, 1}, {0.2, 0.3, 0.5}, {0.995, 1, 1},
	} {
		pred, err := e.Estimate("m1", c.prior, domain.SentimentSignal{Score: c.score, EvidenceStrength: c.strength})
		require.NoError(t, err)
		assert.GreaterOrEqual(t, pred.Confidence, 0.0)
		assert.LessOrEqual(t, pred.Confidence, 1.0)
	}
}

func TestConfidence_ZeroStrengthBelowDefaultThreshold(t *testing.T) {
	e := NewEstimator(DefaultConfig())

	pred, err := e.Estimate("m1", 0.5, domain.SentimentSignal{})
	require.NoError(t, err)

	// Empty evidence must always land below the default min_confidence 0.65.
	assert.Less(t, pred.Confidence, 0.65)
}

func TestConfidence_ClampDisagreementLowersTrust(t *testing.T) {
	e := NewEstimator(DefaultConfig())

	// Prior above the clamp ceiling with positive sentiment: the clamp pulls
	// the posterior below the prior, so direction agreement fails.
	clamped, err := e.Estimate("m1", 0.995, domain.SentimentSignal{Score: 1, EvidenceStrength: 1})
	require.NoError(t, err)
	agreed, err := e.Estimate("m1", 0.5, domain.SentimentSignal{Score: 1, EvidenceStrength: 1})
	require.NoError(t, err)

	assert.Less(t, clamped.Confidence, agreed.Confidence)
}

func TestEstimate_Deterministic(t *testing.T) {
	e := NewEstimator(DefaultConfig())
	sig := domain.SentimentSignal{Score: 0.42, EvidenceStrength: 0.77}

	a, err := e.Estimate("m1", 0.33, sig)
	require.NoError(t, err)
	b, err := e.Estimate("m1", 0.33, sig)
	require.NoError(t, err)

	assert.Equal(t, a, b)
}
