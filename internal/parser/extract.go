// internal/parser/extract.go
package parser

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// DefaultLang is reported when a page declares no language.
const DefaultLang = "en"

// Page is what the crawler needs from one HTML document.
type Page struct {
	Title string
	Lang  string
	Text  string
	Links []string
}

// Parse extracts title, declared language, paragraph text and raw hrefs.
func Parse(content []byte) Page {
	page := Page{Lang: DefaultLang, Links: Links(content)}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return page
	}

	page.Title = strings.TrimSpace(doc.Find("title").First().Text())
	if lang, ok := doc.Find("html").First().Attr("lang"); ok && strings.TrimSpace(lang) != "" {
		page.Lang = strings.TrimSpace(lang)
	}

	// Gather text from paragraphs only
	blocks := make([]string, 0)
	doc.Find("p").Each(func(i int, s *goquery.Selection) {
		if t := strings.Join(strings.Fields(s.Text()), " "); t != "" {
			blocks = append(blocks, t)
		}
	})
	page.Text = strings.Join(blocks, " ")
	return page
}
