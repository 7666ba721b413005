package crawler

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"

	"focused-crawler/internal/config"
	"focused-crawler/internal/eventlog"
	"focused-crawler/internal/storage"

	"github.com/sirupsen/logrus"
)

// ----- fake web ---------------------------------------------------------------

type fakePage struct {
	status      int    // 0 means 200, or 301 when location is set
	contentType string // "" means text/html
	noType      bool
	body        string
	location    string
	headStatus  int // overrides status for HEAD
}

type fakeSite struct {
	mu       sync.Mutex
	pages    map[string]fakePage
	robots   map[string]int // host -> robots.txt status, 0 means 404
	requests []string
}

func newFakeSite(pages map[string]fakePage) *fakeSite {
	return &fakeSite{pages: pages, robots: make(map[string]int)}
}

func (s *fakeSite) RoundTrip(req *http.Request) (*http.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req.Method+" "+req.URL.String())

	if req.URL.Path == "/robots.txt" {
		status := s.robots[req.URL.Host]
		if status == 0 {
			status = http.StatusNotFound
		}
		return newStringResponse(req, status, ""), nil
	}

	p, ok := s.pages[req.URL.String()]
	if !ok {
		return newStringResponse(req, http.StatusNotFound, "not found"), nil
	}

	status := p.status
	switch {
	case req.Method == http.MethodHead && p.headStatus != 0:
		status = p.headStatus
	case status == 0 && p.location != "":
		status = http.StatusMovedPermanently
	case status == 0:
		status = http.StatusOK
	}
	body := p.body
	if req.Method == http.MethodHead {
		body = ""
	}
	resp := newStringResponse(req, status, body)
	if p.location != "" {
		resp.Header.Set("Location", p.location)
	}
	if !p.noType {
		ct := p.contentType
		if ct == "" {
			ct = "text/html; charset=utf-8"
		}
		resp.Header.Set("Content-Type", ct)
	}
	return resp, nil
}

func (s *fakeSite) count(prefix string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.requests {
		if strings.HasPrefix(r, prefix) {
			n++
		}
	}
	return n
}

func newStringResponse(req *http.Request, status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     make(http.Header),
		Request:    req,
	}
}

func html(body string) string {
	return "<html><head><title>t</title></head><body>" + body + "</body></html>"
}

// ----- recorders ---------------------------------------------------------------

type recorder struct {
	mu         sync.Mutex
	current    []string
	notAllowed []string
	rejected   []string
	collisions [][2]string
	errors     []string
	pages      []string
	waves      map[int][]eventlog.Score
	summaries  [][2]int
}

func newRecorder() *recorder { return &recorder{waves: make(map[int][]eventlog.Score)} }

func (r *recorder) Current(url string) {
	r.mu.Lock()
	r.current = append(r.current, url)
	r.mu.Unlock()
}
func (r *recorder) Canonicalized(string, string) {}
func (r *recorder) NotAllowed(url string) {
	r.mu.Lock()
	r.notAllowed = append(r.notAllowed, url)
	r.mu.Unlock()
}
func (r *recorder) Rejected(url, reason string) {
	r.mu.Lock()
	r.rejected = append(r.rejected, url+" "+reason)
	r.mu.Unlock()
}
func (r *recorder) Collision(url, resolved string) {
	r.mu.Lock()
	r.collisions = append(r.collisions, [2]string{url, resolved})
	r.mu.Unlock()
}
func (r *recorder) Error(kind, subject string, err error) {
	r.mu.Lock()
	r.errors = append(r.errors, kind+" "+subject)
	r.mu.Unlock()
}
func (r *recorder) Page(_, _ int, url string, _ float64) {
	r.mu.Lock()
	r.pages = append(r.pages, url)
	r.mu.Unlock()
}
func (r *recorder) WaveScores(wave int, scores []eventlog.Score) {
	r.mu.Lock()
	r.waves[wave] = scores
	r.mu.Unlock()
}
func (r *recorder) Summary(crawled, discovered int) {
	r.mu.Lock()
	r.summaries = append(r.summaries, [2]int{crawled, discovered})
	r.mu.Unlock()
}

type memorySink struct {
	mu         sync.Mutex
	docs       []storage.Document
	outLinks   map[string][]string
	inLinks    map[string][]string
	crawled    []string
	discovered []string
}

func newMemorySink() *memorySink {
	return &memorySink{outLinks: make(map[string][]string), inLinks: make(map[string][]string)}
}

func (m *memorySink) WriteDocument(_ context.Context, doc storage.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs = append(m.docs, doc)
	return nil
}

func (m *memorySink) WriteRawHTML(context.Context, storage.RawPage) error { return nil }

func (m *memorySink) WriteOutLinks(_ context.Context, l storage.LinkSet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outLinks[l.URL] = l.Links
	return nil
}

func (m *memorySink) WriteInLinks(_ context.Context, sets []storage.LinkSet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range sets {
		m.inLinks[l.URL] = l.Links
	}
	return nil
}

func (m *memorySink) WriteCrawled(_ context.Context, urls []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.crawled = urls
	return nil
}

func (m *memorySink) WriteDiscovered(_ context.Context, urls []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.discovered = urls
	return nil
}

func (m *memorySink) Close() error { return nil }

// ----- controller under test ----------------------------------------------------

type harness struct {
	c      *Controller
	site   *fakeSite
	events *recorder
	sink   *memorySink
}

// newHarness builds a controller with no politeness delay and a cutoff high
// enough that nothing is pruned unless mutate says otherwise.
func newHarness(t *testing.T, site *fakeSite, mutate func(*config.Config)) *harness {
	t.Helper()

	cfg := config.Default()
	cfg.PageCap = 100
	cfg.RelevanceCutoff = 10
	cfg.DefaultDelay = 0
	cfg.MaxDelay = 0
	cfg.RobotsBackoff = 0
	if mutate != nil {
		mutate(cfg)
	}

	log := logrus.New()
	log.SetOutput(io.Discard)

	h := &harness{site: site, events: newRecorder(), sink: newMemorySink()}
	h.c = New(FromConfig(cfg), Deps{
		Client: &http.Client{Transport: site},
		Sink:   h.sink,
		Events: h.events,
		Log:    log,
	})
	return h
}
