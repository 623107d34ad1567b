package engine

import "strings"

// categoryContext is appended to search queries to steer results toward
// forecast-relevant content per topic.
var categoryContext = map[string]string{
	"crypto":     "price prediction forecast",
	"politics":   "polls odds prediction",
	"sports":     "odds prediction",
	"technology": "forecast",
}

// queryStopwords are dropped from the market question when building the
// search query.
var queryStopwords = map[string]bool{
	"will": true, "by": true, "the": true, "in": true, "on": true, "if": true,
	"a": true, "an": true, "to": true, "of": true,
}

// BuildQuery turns a market question into a news search query: lowercase,
// stop-words removed, category context appended, truncated to 100 chars.
func BuildQuery(question, category string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case '?', '$', '%', '"', '\'':
			return -1
		}
		return r
	}, strings.ToLower(question))

	var kept []string
	for _, w := range strings.Fields(cleaned) {
		if !queryStopwords[w] {
			kept = append(kept, w)
		}
	}
	query := strings.Join(kept, " ")

	if suffix, ok := categoryContext[category]; ok {
		query += " " + suffix
	}

	if len(query) > 100 {
		query = strings.TrimSpace(query[:100])
	}
	return strings.TrimSpace(query)
}

// categoryKeywords drives DetectCategory.
var categoryKeywords = []struct {
	category string
	words    []string
}{
	{"crypto", []string{"bitcoin", "btc", "crypto", "ethereum", "eth", "solana"}},
	{"politics", []string{"election", "senate", "congress", "president", "parliament", "vote"}},
	{"sports", []string{"super bowl", "nba", "nfl", "championship", "world cup", "olympics"}},
	{"technology", []string{"ai", "openai", "spacex", "apple", "launch", "release"}},
}

// DetectCategory classifies a market question by keyword.
func DetectCategory(question string) string {
	q := strings.ToLower(question)
	for _, c := range categoryKeywords {
		for _, w := range c.words {
			if strings.Contains(q, w) {
				return c.category
			}
		}
	}
	return "other"
}
