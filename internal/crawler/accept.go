package crawler

import (
	"strings"

	"focused-crawler/internal/parser"

	"golang.org/x/text/language"
)

// Acceptor decides whether a fetched page belongs in the crawl.
type Acceptor struct {
	codes     []string
	bases     []language.Base
	blacklist parser.Blacklist
}

func NewAcceptor(languages []string, blacklist parser.Blacklist) *Acceptor {
	a := &Acceptor{blacklist: blacklist}
	for _, code := range languages {
		code = strings.ToLower(strings.TrimSpace(code))
		if code == "" {
			continue
		}
		a.codes = append(a.codes, code)
		if tag, err := language.Parse(code); err == nil {
			base, _ := tag.Base()
			a.bases = append(a.bases, base)
		}
	}
	return a
}

// Check returns a rejection reason, or "" if the page is accepted.
func (a *Acceptor) Check(pageURL, lang string) string {
	if !a.languageOK(lang) {
		return "language " + lang
	}
	if key, hit := a.blacklist.Match(pageURL); hit {
		return "blacklisted " + key
	}
	return ""
}

func (a *Acceptor) languageOK(lang string) bool {
	if len(a.codes) == 0 {
		return true
	}
	lang = strings.ToLower(strings.TrimSpace(lang))
	if tag, err := language.Parse(lang); err == nil {
		base, _ := tag.Base()
		for _, b := range a.bases {
			if b == base {
				return true
			}
		}
	}
	// substring match covers declarations such as "english"
	for _, code := range a.codes {
		if strings.Contains(lang, code) {
			return true
		}
	}
	return false
}
