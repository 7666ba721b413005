package frontier

import (
	"math"
	"strings"
)

// Scorer ranks items by topic keywords in the URL text and by in-link count.
// Lower is better.
type Scorer struct {
	keywords []string
}

func NewScorer(keywords []string) *Scorer {
	s := &Scorer{keywords: make([]string, 0, len(keywords))}
	for _, k := range keywords {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			s.keywords = append(s.keywords, k)
		}
	}
	return s
}

// Hits counts the distinct keywords contained in text, ignoring case.
func (s *Scorer) Hits(text string) int {
	text = strings.ToLower(text)
	n := 0
	for _, k := range s.keywords {
		if strings.Contains(text, k) {
			n++
		}
	}
	return n
}

// Score is exp(-hits) + exp(-inlinks), computed from the item's current state.
func (s *Scorer) Score(it *Item) float64 {
	text := it.RawURL
	if text == "" {
		text = it.URL
	}
	return math.Exp(-float64(s.Hits(text))) + math.Exp(-float64(it.InLinks.Len()))
}
