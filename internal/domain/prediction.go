package domain

// Prediction is the posterior probability estimate for one market after
// combining the market's implied probability with sentiment evidence.
type Prediction struct {
	MarketID             string
	PosteriorProbability float64 // strictly inside (0,1); clamped to [0.01, 0.99]
	Confidence           float64 // in [0,1]
}

// Edge is the signed difference between the model's posterior and the
// market's implied probability. A positive edge favors YES, negative NO.
type Edge struct {
	Value     float64 // posterior - price, in [-1,1]
	Side      Side    // SideNone when Value == 0
	Magnitude float64 // |Value|, primary sizing signal
}
