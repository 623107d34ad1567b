package domain

import "time"

// EvidenceItem is a single retrieved text snippet about a market's underlying
// event. Items are produced by a NewsSource and consumed once per evaluation.
type EvidenceItem struct {
	Text            string
	SourceTimestamp time.Time
	RelevanceWeight float64 // in [0,1]
}

// SentimentSignal is the aggregate of all evidence for one market: a scalar
// sentiment score plus a measure of how much evidence backs it.
//
// The zero value is the neutral no-confidence signal and is what an empty
// evidence set must aggregate to.
type SentimentSignal struct {
	Score            float64 // in [-1,1]
	EvidenceStrength float64 // in [0,1], saturating in weighted item count
}
