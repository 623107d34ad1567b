package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/buttenhook/polymarket-bot/internal/domain"
)

func TestBuildQuery(t *testing.T) {
	q := BuildQuery("Will Bitcoin reach $100,000 by the end of 2026?", "crypto")
	assert.Equal(t, "bitcoin reach 100,000 end 2026 price prediction forecast", q)
}

func TestBuildQuery_UnknownCategoryNoSuffix(t *testing.T) {
	q := BuildQuery("Will it rain tomorrow?", "other")
	assert.Equal(t, "it rain tomorrow", q)
}

func TestBuildQuery_Truncates(t *testing.T) {
	long := ""
	for i := 0; i < 30; i++ {
		long += "verylongword "
	}
	q := BuildQuery(long, "other")
	assert.LessOrEqual(t, len(q), 100)
	assert.NotEmpty(t, q)
}

func TestDetectCategory(t *testing.T) {
	tests := []struct {
		question string
		want     string
	}{
		{"Will Bitcoin hit 100k?", "crypto"},
		{"Who wins the Senate election?", "politics"},
		{"Will the Chiefs win the Super Bowl?", "sports"},
		{"Will OpenAI release a new model this year?", "technology"},
		{"Will it rain in Paris tomorrow?", "other"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DetectCategory(tt.question), tt.question)
	}
}

func TestMarketFilter(t *testing.T) {
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	f := NewMarketFilter(30)
	f.now = func() time.Time { return now }

	markets := []domain.Market{
		{ID: "ok", Question: "Will X happen", CloseTime: now.Add(48 * time.Hour)},
		{ID: "ended", Question: "Will Y happen", CloseTime: now.Add(-time.Hour)},
		{ID: "far", Question: "Will Z happen", CloseTime: now.Add(90 * 24 * time.Hour)},
		{ID: "stale", Question: "Will A happen in 2024", CloseTime: now.Add(24 * time.Hour)},
		{ID: "no-close", Question: "Will B happen"},
	}

	kept := f.Apply(markets)
	ids := make([]string, 0, len(kept))
	for _, m := range kept {
		ids = append(ids, m.ID)
	}
	assert.Equal(t, []string{"ok", "no-close"}, ids)
}
