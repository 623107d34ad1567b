package predict

import (
	"math"

	"github.com/buttenhook/polymarket-bot/internal/domain"
)

// ComputeEdge returns the signed edge between the model's posterior and the
// market price, the implied side, and the magnitude used for sizing.
//
// Sign determines side: positive → YES, negative → NO. A zero edge has no
// actionable side and routes the evaluation to Skip downstream.
func ComputeEdge(pred domain.Prediction, marketPrice float64) domain.Edge {
	value := pred.PosteriorProbability - marketPrice

	side := domain.SideNone
	switch {
	case value > 0:
		side = domain.SideYes
	case value < 0:
		side = domain.SideNo
	}

	return domain.Edge{
		Value:     value,
		Side:      side,
		Magnitude: math.Abs(value),
	}
}
