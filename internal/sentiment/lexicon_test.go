package sentiment

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLexiconScorer_Bullish(t *testing.T) {
	s := NewLexiconScorer()
	score := s.Score("Analysts confident: strong rally expected, higher target likely")
	assert.Greater(t, score, 0.5)
	assert.LessOrEqual(t, score, 1.0)
}

func TestLexiconScorer_Bearish(t *testing.T) {
	s := NewLexiconScorer()
	score := s.Score("Bearish correction: prices fall as doubt grows, crash unlikely to reverse")
	assert.Less(t, score, 0.0)
	assert.GreaterOrEqual(t, score, -1.0)
}

func TestLexiconScorer_Neutral(t *testing.T) {
	s := NewLexiconScorer()
	assert.Equal(t, 0.0, s.Score("The committee will meet on Tuesday."))
	assert.Equal(t, 0.0, s.Score(""))
}

func TestLexiconScorer_WholeWordsOnly(t *testing.T) {
	s := NewLexiconScorer()
	// "bullhorn" must not count as "bull"
	assert.Equal(t, 0.0, s.Score("the bullhorn announcement"))
}

func TestLexiconScorer_CaseInsensitive(t *testing.T) {
	s := NewLexiconScorer()
	assert.Equal(t, s.Score("RALLY SURGE"), s.Score("rally surge"))
}
