package sentiment

import "strings"

// LexiconScorer is the default TextScorer: a keyword-count scorer over
// bullish/bearish word lists. It is deliberately simple; any richer model
// satisfying the TextScorer contract can replace it.
type LexiconScorer struct {
	bullish []string
	bearish []string
}

// NewLexiconScorer creates a scorer with the built-in word lists.
func NewLexiconScorer() *LexiconScorer {
	return &LexiconScorer{
		bullish: []string{
			"bull", "bullish", "rally", "surge", "strong", "higher",
			"growth", "confident", "expected", "likely", "reach",
			"target", "momentum", "record", "beat",
		},
		bearish: []string{
			"bear", "bearish", "crash", "dump", "fall", "lower", "weak",
			"unlikely", "doubt", "correction", "decline", "miss",
			"delay", "fail",
		},
	}
}

// Score returns (pos - neg) / max(pos + neg, 1) over keyword hits, a value
// in [-1,1]. Matching is case-insensitive on whole words.
func (s *LexiconScorer) Score(text string) float64 {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	})
	seen := make(map[string]bool, len(words))
	for _, w := range words {
		seen[w] = true
	}

	var pos, neg int
	for _, w := range s.bullish {
		if seen[w] {
			pos++
		}
	}
	for _, w := range s.bearish {
		if seen[w] {
			neg++
		}
	}

	total := pos + neg
	if total == 0 {
		return 0
	}
	return float64(pos-neg) / float64(total)
}
