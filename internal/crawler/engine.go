// internal/crawler/engine.go
package crawler

import (
	"context"
	"time"

	"focused-crawler/internal/eventlog"
	"focused-crawler/internal/frontier"
	"focused-crawler/internal/hostman"
	"focused-crawler/internal/metrics"
	"focused-crawler/internal/parser"
	"focused-crawler/internal/storage"

	"github.com/sirupsen/logrus"
)

// Reason says why a crawl stopped.
type Reason string

const (
	ReasonDrained   Reason = "frontier drained"
	ReasonPageCap   Reason = "page cap reached"
	ReasonCancelled Reason = "cancelled"
)

type Summary struct {
	Crawled    int // distinct canonical URLs crawled
	Discovered int // distinct canonical URLs seen, crawled or not
	Pages      int // pages persisted
	LastWave   int // wave of the last popped URL
	Admitted   int // URLs ever queued, seeds included
	Pruned     int // held URLs dropped by the relevance cutoff
	Reason     Reason
}

// Controller runs one crawl. It is driven by a single goroutine.
type Controller struct {
	opts     Options
	canon    *parser.Canonicalizer
	frontier *frontier.Frontier
	gate     *hostman.Manager
	fetcher  *Fetcher
	accept   *Acceptor
	sink     storage.Sink
	events   eventlog.Log
	log      logrus.FieldLogger

	crawled    *frontier.URLSet
	discovered *frontier.URLSet
	redirects  map[string]string // pre-redirect URL -> resolved URL
	count      int
}

func New(opts Options, deps Deps) *Controller {
	deps = deps.withDefaults(opts)

	c := &Controller{
		opts:       opts,
		canon:      parser.NewCanonicalizer(opts.Rules, deps.Events),
		frontier:   frontier.New(frontier.NewScorer(opts.Keywords), opts.Cutoff),
		gate:       hostman.New(deps.Client, opts.Politeness, deps.Log),
		fetcher:    NewFetcher(deps.Client, opts.UserAgent, opts.MaxBodyBytes),
		accept:     NewAcceptor(opts.AcceptLanguages, parser.NewBlacklist(opts.AcceptBlacklist)),
		sink:       deps.Sink,
		events:     deps.Events,
		log:        deps.Log,
		crawled:    frontier.NewURLSet(),
		discovered: frontier.NewURLSet(),
		redirects:  make(map[string]string),
	}
	c.frontier.OnAdvance(c.onAdvance)
	return c
}

// Seed normalizes urls and queues them in wave 0. It returns how many were added.
func (c *Controller) Seed(urls []string) int {
	items := make([]*frontier.Item, 0, len(urls))
	for _, raw := range urls {
		link, err := c.canon.Normalize(raw)
		if err != nil {
			c.events.Error("seed", raw, err)
			continue
		}
		if c.discovered.Add(link.Key) {
			items = append(items, frontier.NewItem(link.Key, link.Target, ""))
		}
	}
	n := c.frontier.Seed(items...)
	metrics.Discovered.Set(float64(c.discovered.Len()))
	metrics.FrontierSize.Set(float64(c.frontier.Len()))
	return n
}

// Run crawls until the page cap is reached, the frontier drains or ctx is
// cancelled. The final link data is written in every case; a cancelled run
// also returns ctx.Err().
func (c *Controller) Run(ctx context.Context) (Summary, error) {
	start := time.Now()
	reason := ReasonDrained
	for {
		if ctx.Err() != nil {
			reason = ReasonCancelled
			break
		}
		e, ok := c.frontier.Pop()
		if !ok {
			break
		}
		c.visit(ctx, e)
		if c.count >= c.opts.PageCap {
			reason = ReasonPageCap
			break
		}
	}

	sum := c.finish(context.WithoutCancel(ctx), reason)
	c.log.WithFields(logrus.Fields{
		"crawled":    sum.Crawled,
		"discovered": sum.Discovered,
		"pages":      sum.Pages,
		"waves":      sum.LastWave + 1,
		"pruned":     sum.Pruned,
		"drained":    c.frontier.Drained(),
		"elapsed":    time.Since(start).Round(time.Second),
	}).Info(string(reason))

	if reason == ReasonCancelled {
		return sum, ctx.Err()
	}
	return sum, nil
}

// finish writes the crawled list, per-URL in-links and the discovered set.
func (c *Controller) finish(ctx context.Context, reason Reason) Summary {
	crawled := c.crawled.List()
	inLinks := make([]storage.LinkSet, 0, len(crawled))
	for _, u := range crawled {
		set := storage.LinkSet{URL: u, Links: []string{}}
		if it, ok := c.frontier.Get(u); ok {
			set.Links = it.InLinks.List()
		}
		inLinks = append(inLinks, set)
	}

	if err := c.sink.WriteCrawled(ctx, crawled); err != nil {
		c.events.Error("sink", "crawled links", err)
	}
	if err := c.sink.WriteInLinks(ctx, inLinks); err != nil {
		c.events.Error("sink", "in-links", err)
	}
	if err := c.sink.WriteDiscovered(ctx, c.discovered.List()); err != nil {
		c.events.Error("sink", "discovered links", err)
	}
	c.events.Summary(c.crawled.Len(), c.discovered.Len())

	return Summary{
		Crawled:    c.crawled.Len(),
		Discovered: c.discovered.Len(),
		Pages:      c.count,
		LastWave:   c.frontier.Wave(),
		Admitted:   c.frontier.Admitted(),
		Pruned:     c.frontier.Pruned(),
		Reason:     reason,
	}
}

func (c *Controller) onAdvance(wave int, admitted []frontier.Entry, pruned int) {
	scores := make([]eventlog.Score, 0, len(admitted))
	for _, e := range admitted {
		scores = append(scores, eventlog.Score{URL: e.URL, Score: e.Score})
	}
	c.events.WaveScores(wave, scores)
	metrics.FrontierPruned.Add(float64(pruned))
	c.log.WithFields(logrus.Fields{
		"wave":     wave,
		"admitted": len(admitted),
		"pruned":   pruned,
	}).Debug("wave advanced")
}

// resolveRedirect follows the redirect map from u to its final destination.
func (c *Controller) resolveRedirect(u string) string {
	for i := 0; i < len(c.redirects)+1; i++ {
		to, ok := c.redirects[u]
		if !ok {
			break
		}
		u = to
	}
	return u
}

// recordRedirect maps from onto the end of to's chain, so every value in
// the map is a URL that is not itself a key.
func (c *Controller) recordRedirect(from, to string) {
	to = c.resolveRedirect(to)
	if from == to {
		return
	}
	c.redirects[from] = to
	for k, v := range c.redirects {
		if v == from {
			c.redirects[k] = to
		}
	}
}
