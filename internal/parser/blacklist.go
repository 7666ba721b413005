package parser

import "strings"

// Blacklist matches URLs containing any of its keywords, ignoring case.
type Blacklist []string

func NewBlacklist(keywords []string) Blacklist {
	b := make(Blacklist, 0, len(keywords))
	for _, k := range keywords {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			b = append(b, k)
		}
	}
	return b
}

// Match reports the first keyword found in u.
func (b Blacklist) Match(u string) (string, bool) {
	lower := strings.ToLower(u)
	for _, k := range b {
		if strings.Contains(lower, k) {
			return k, true
		}
	}
	return "", false
}
