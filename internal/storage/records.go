package storage

import (
	"bytes"
	"encoding/json"
	"net/http"
	"sort"
	"strings"
	"time"
)

// HeaderField is one response header. Repeated headers are joined with ", ".
type HeaderField struct {
	Name  string `bson:"name" json:"name"`
	Value string `bson:"value" json:"value"`
}

// Header is an ordered string-to-string mapping of response headers.
type Header []HeaderField

// HeaderFrom flattens h, sorted by canonical header name.
func HeaderFrom(h http.Header) Header {
	names := make([]string, 0, len(h))
	for name := range h {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make(Header, 0, len(names))
	for _, name := range names {
		out = append(out, HeaderField{
			Name:  http.CanonicalHeaderKey(name),
			Value: strings.Join(h[name], ", "),
		})
	}
	return out
}

func (h Header) Get(name string) string {
	for _, f := range h {
		if strings.EqualFold(f.Name, name) {
			return f.Value
		}
	}
	return ""
}

// MarshalJSON writes h as a JSON object, keeping field order.
func (h Header) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range h {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(f.Name)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(f.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Document is one accepted page.
type Document struct {
	RunID     string    `bson:"run_id"`
	ID        int       `bson:"doc_id"`
	URL       string    `bson:"url"`
	Title     string    `bson:"title,omitempty"`
	Header    Header    `bson:"header"`
	Text      string    `bson:"text"`
	Wave      int       `bson:"wave"`
	Score     float64   `bson:"score"`
	CrawledAt time.Time `bson:"crawled_at"`
}

type RawPage struct {
	URL  string
	HTML string
}

// LinkSet maps one page to a list of URLs (its out-links or in-links).
type LinkSet struct {
	URL   string
	Links []string
}
