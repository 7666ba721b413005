package crawler

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"focused-crawler/internal/frontier"
	"focused-crawler/internal/metrics"
	"focused-crawler/internal/parser"
	"focused-crawler/internal/storage"

	"github.com/sirupsen/logrus"
)

// -----------------------------------------------------------------------------
// visit handles the whole life-cycle of one popped URL. Every early return
// abandons the URL; nothing is re-queued.
// -----------------------------------------------------------------------------
func (c *Controller) visit(ctx context.Context, e frontier.Entry) {
	if c.crawled.Has(e.URL) {
		return
	}
	metrics.CurrentWave.Set(float64(e.Wave))

	target := e.URL
	if it, ok := c.frontier.Get(e.URL); ok {
		target = it.FetchURL()
	}
	u, err := url.Parse(target)
	if err != nil {
		c.events.Error("parse", target, err)
		return
	}

	// ----- politeness --------------------------------------------------------
	policy, err := c.gate.Ensure(ctx, u)
	if err != nil {
		c.events.Error("robots", target, err)
		metrics.Rejected.WithLabelValues("robots_unavailable").Inc()
		return
	}
	if !c.gate.CanFetch(target) {
		c.events.NotAllowed(target)
		metrics.Rejected.WithLabelValues("robots").Inc()
		return
	}
	if err := c.gate.Wait(ctx, u.Host); err != nil {
		return
	}
	c.events.Current(target)
	c.log.WithFields(logrus.Fields{
		"url":    target,
		"wave":   e.Wave,
		"robots": policy.Status,
		"delay":  c.gate.Delay(u.Host),
	}).Debug("visiting")

	// ----- metadata ----------------------------------------------------------
	head := c.fetcher.Head(ctx, target)
	if head.Outcome != OK && (head.Outcome != HTTPError || head.Status == http.StatusNotFound) {
		c.fetchFailed("head", target, head)
		return
	}
	// a refused HEAD carries no usable content type
	if ct := head.Header.Get("Content-Type"); head.Outcome == OK && ct != "" && !strings.Contains(strings.ToLower(ct), "text/html") {
		c.events.Rejected(target, "content type "+ct)
		metrics.Rejected.WithLabelValues("content_type").Inc()
		return
	}

	// ----- body --------------------------------------------------------------
	if err := c.gate.Wait(ctx, u.Host); err != nil {
		return
	}
	page := c.fetcher.Get(ctx, target)
	if page.Outcome != OK {
		c.fetchFailed("get", target, page)
		return
	}
	metrics.PagesFetched.Inc()
	metrics.BytesFetched.Add(float64(len(page.Body)))
	if page.Truncated {
		c.events.Error("truncated", target, fmt.Errorf("body exceeds %d bytes", c.opts.MaxBodyBytes))
		metrics.Truncated.Inc()
	}

	resolved, err := c.canon.Normalize(page.FinalURL)
	if err != nil {
		c.events.Error("resolve", page.FinalURL, err)
		return
	}
	if resolved.Key != e.URL && c.crawled.Has(resolved.Key) {
		c.frontier.Merge(resolved.Key, e.URL)
		c.recordRedirect(e.URL, resolved.Key)
		c.events.Collision(e.URL, resolved.Key)
		return
	}

	doc := parser.Parse(page.Body)
	if reason := c.accept.Check(resolved.Target, doc.Lang); reason != "" {
		c.events.Rejected(resolved.Target, reason)
		metrics.Rejected.WithLabelValues(strings.Fields(reason)[0]).Inc()
		return
	}

	c.crawled.Add(resolved.Key)
	c.discovered.Add(resolved.Key)
	if resolved.Key != e.URL {
		c.frontier.Merge(resolved.Key, e.URL)
		c.recordRedirect(e.URL, resolved.Key)
	}

	outLinks := c.expand(resolved, doc.Links, e.Wave)
	c.count++

	header := head.Header
	if head.Outcome != OK || len(header) == 0 {
		header = page.Header
	}
	c.persist(ctx, e, resolved.Key, doc, storage.HeaderFrom(header), page.Body, outLinks)
}

// expand canonicalizes every href of the page at from. New URLs are held for
// the next wave; known ones gain an in-link. It returns the distinct out-links.
func (c *Controller) expand(from parser.Link, hrefs []string, wave int) []string {
	domain, err := parser.Domain(from.Target)
	if err != nil {
		c.events.Error("domain", from.Target, err)
		return []string{}
	}

	out := frontier.NewURLSet()
	for _, href := range hrefs {
		link := c.canon.CanonicalizeLink(from.Target, domain, href)
		c.events.Canonicalized(href, link.Key)
		if link.Key == "" || !out.Add(link.Key) {
			continue
		}
		if c.discovered.Add(link.Key) {
			c.frontier.Put(frontier.NewItem(link.Key, link.Target, href, from.Key), wave+1)
			continue
		}
		c.frontier.AddInLink(c.resolveRedirect(link.Key), from.Key)
	}
	return out.List()
}

func (c *Controller) persist(ctx context.Context, e frontier.Entry, pageURL string, doc parser.Page, header storage.Header, body []byte, outLinks []string) {
	// the page is committed; finish writing it even if the crawl is stopping
	ctx = context.WithoutCancel(ctx)

	if err := c.sink.WriteRawHTML(ctx, storage.RawPage{URL: pageURL, HTML: string(body)}); err != nil {
		c.events.Error("sink", pageURL, err)
	}
	if err := c.sink.WriteOutLinks(ctx, storage.LinkSet{URL: pageURL, Links: outLinks}); err != nil {
		c.events.Error("sink", pageURL, err)
	}
	err := c.sink.WriteDocument(ctx, storage.Document{
		ID:        c.count,
		URL:       pageURL,
		Title:     doc.Title,
		Header:    header,
		Text:      doc.Text,
		Wave:      e.Wave,
		Score:     e.Score,
		CrawledAt: time.Now(),
	})
	if err != nil {
		c.events.Error("sink", pageURL, err)
	}

	c.events.Page(c.count, e.Wave, e.URL, e.Score)
	c.events.Summary(c.crawled.Len(), c.discovered.Len())

	metrics.PagesCrawled.Inc()
	metrics.Discovered.Set(float64(c.discovered.Len()))
	metrics.FrontierSize.Set(float64(c.frontier.Len()))
}

func (c *Controller) fetchFailed(stage, target string, res FetchResult) {
	c.events.Error(stage, target, res.Cause())
	metrics.FetchFailures.WithLabelValues(stage, res.Outcome.String()).Inc()
}
