package parser

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
)

// Links returns every <a href> value in document order, untouched.
func Links(content []byte) []string {
	z := html.NewTokenizer(bytes.NewReader(content))
	links := make([]string, 0)

	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			return links
		}
		if tt != html.StartTagToken && tt != html.SelfClosingTagToken {
			continue
		}
		t := z.Token()
		if t.Data != "a" {
			continue
		}
		if href, ok := attr(t, "href"); ok && strings.TrimSpace(href) != "" {
			links = append(links, href)
		}
	}
}

func attr(tok html.Token, key string) (string, bool) {
	for _, a := range tok.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}
