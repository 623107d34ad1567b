package predict

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/buttenhook/polymarket-bot/internal/domain"
)

func TestComputeEdge_SignDeterminesSide(t *testing.T) {
	cases := []struct {
		name      string
		posterior float64
		price     float64
		side      domain.Side
	}{
		{"posterior above price", 0.62, 0.35, domain.SideYes},
		{"posterior below price", 0.30, 0.55, domain.SideNo},
		{"posterior equals price", 0.50, 0.50, domain.SideNone},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			edge := ComputeEdge(domain.Prediction{PosteriorProbability: c.posterior}, c.price)
			assert.Equal(t, c.side, edge.Side)
			assert.InDelta(t, c.posterior-c.price, edge.Value, 1e-12)
			assert.GreaterOrEqual(t, edge.Magnitude, 0.0)
		})
	}
}

func TestComputeEdge_ReferenceScenario(t *testing.T) {
	edge := ComputeEdge(domain.Prediction{PosteriorProbability: 0.62}, 0.35)

	assert.Equal(t, domain.SideYes, edge.Side)
	assert.InDelta(t, 0.27, edge.Value, 1e-9)
	assert.InDelta(t, 0.27, edge.Magnitude, 1e-9)
}
