package engine

import (
	"regexp"
	"strconv"
	"time"

	"github.com/buttenhook/polymarket-bot/internal/domain"
)

var yearRe = regexp.MustCompile(`20\d\d`)

// MarketFilter drops markets that are not worth evaluating: already ended,
// resolving too far out, or whose question references a past year (stale
// listings the upstream API sometimes still reports as active).
type MarketFilter struct {
	MaxDaysAhead int
	now          func() time.Time
}

// NewMarketFilter creates a filter with the given horizon in days.
func NewMarketFilter(maxDaysAhead int) *MarketFilter {
	if maxDaysAhead <= 0 {
		maxDaysAhead = 30
	}
	return &MarketFilter{MaxDaysAhead: maxDaysAhead, now: time.Now}
}

// Apply returns the subset of markets that pass all pre-filters.
func (f *MarketFilter) Apply(markets []domain.Market) []domain.Market {
	out := make([]domain.Market, 0, len(markets))
	for _, m := range markets {
		if f.keep(m) {
			out = append(out, m)
		}
	}
	return out
}

func (f *MarketFilter) keep(m domain.Market) bool {
	now := f.now().UTC()

	if !m.CloseTime.IsZero() {
		if m.CloseTime.Before(now) {
			return false
		}
		if m.CloseTime.Sub(now) > time.Duration(f.MaxDaysAhead)*24*time.Hour {
			return false
		}
	}

	for _, y := range yearRe.FindAllString(m.Question, -1) {
		if year, err := strconv.Atoi(y); err == nil && year < now.Year() {
			return false
		}
	}

	return true
}
