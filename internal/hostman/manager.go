package hostman

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"focused-crawler/internal/metrics"

	"github.com/sirupsen/logrus"
	"github.com/temoto/robotstxt"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

// ErrPolicyFetch means robots.txt could not be read (network error or
// timeout). The domain is not cached and will be tried again.
var ErrPolicyFetch = errors.New("robots policy fetch failed")

const maxRobotsBytes = 512 << 10

// Doer is satisfied by *http.Client.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

type Options struct {
	UserAgent    string
	DefaultDelay time.Duration // used when robots.txt declares none
	MaxDelay     time.Duration // cap on any declared delay; zero means no waiting
	Timeout      time.Duration // per robots.txt request
	Retry        Backoff
}

// Policy is the cached crawl policy for one domain.
type Policy struct {
	Domain  string
	Status  int // robots.txt HTTP status
	Delay   time.Duration
	robots  *robotstxt.RobotsData
	limiter *rate.Limiter
}

// Allowed tests a request URI against the robots rules.
func (p *Policy) Allowed(requestURI, agent string) bool {
	return p.robots.TestAgent(requestURI, agent)
}

// Manager holds the Policy of every domain we touch.
type Manager struct {
	mu     sync.RWMutex
	hosts  map[string]*Policy
	flight singleflight.Group
	client Doer
	opts   Options
	log    logrus.FieldLogger
}

// New returns a ready Manager.
func New(client Doer, opts Options, log logrus.FieldLogger) *Manager {
	if opts.UserAgent == "" {
		opts.UserAgent = "*"
	}
	if opts.MaxDelay > 0 && opts.DefaultDelay > opts.MaxDelay {
		opts.DefaultDelay = opts.MaxDelay
	}
	return &Manager{
		hosts:  make(map[string]*Policy),
		client: client,
		opts:   opts,
		log:    log,
	}
}

func (m *Manager) lookup(domain string) (*Policy, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.hosts[domain]
	return p, ok
}

// Ensure returns u's domain policy, fetching robots.txt on first use.
// Concurrent callers for the same domain share one fetch.
func (m *Manager) Ensure(ctx context.Context, u *url.URL) (*Policy, error) {
	domain := strings.ToLower(u.Host)
	if p, ok := m.lookup(domain); ok {
		return p, nil
	}

	v, err, _ := m.flight.Do(domain, func() (any, error) {
		if p, ok := m.lookup(domain); ok {
			return p, nil
		}
		p, err := m.fetchPolicy(ctx, u.Scheme, domain)
		if err != nil {
			return nil, err
		}
		m.mu.Lock()
		m.hosts[domain] = p
		m.mu.Unlock()
		return p, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Policy), nil
}

// CanFetch consults cached rules only. Unknown domains are not fetchable.
func (m *Manager) CanFetch(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	p, ok := m.lookup(strings.ToLower(u.Host))
	if !ok {
		return false
	}
	return p.Allowed(u.RequestURI(), m.opts.UserAgent)
}

// Wait blocks until the domain's crawl delay has passed since its last access.
func (m *Manager) Wait(ctx context.Context, domain string) error {
	p, ok := m.lookup(strings.ToLower(domain))
	if !ok {
		return fmt.Errorf("no robots policy for %s", domain)
	}
	return p.limiter.Wait(ctx)
}

// Delay is the negotiated delay for domain, or the default if unknown.
func (m *Manager) Delay(domain string) time.Duration {
	if p, ok := m.lookup(strings.ToLower(domain)); ok {
		return p.Delay
	}
	return m.opts.DefaultDelay
}

// --- helpers -------------------------------------------------------------

func (m *Manager) fetchPolicy(ctx context.Context, scheme, domain string) (*Policy, error) {
	if scheme != "https" {
		scheme = "http"
	}
	robotsURL := scheme + "://" + domain + "/robots.txt"

	var (
		robots *robotstxt.RobotsData
		status int
	)
	err := m.opts.Retry.Do(ctx, func(attempt int) error {
		var err error
		robots, status, err = m.fetchRobots(ctx, robotsURL)
		if err != nil {
			m.log.WithError(err).WithField("url", robotsURL).WithField("attempt", attempt).Debug("robots fetch failed")
		}
		return err
	})
	if err != nil {
		metrics.RobotsFetches.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("%w: %s: %v", ErrPolicyFetch, robotsURL, err)
	}
	metrics.RobotsFetches.WithLabelValues(resultLabel(status)).Inc()

	delay := m.opts.DefaultDelay
	if g := robots.FindGroup(m.opts.UserAgent); g != nil && g.CrawlDelay > 0 {
		delay = g.CrawlDelay
	}
	if delay > m.opts.MaxDelay {
		delay = max(m.opts.MaxDelay, 0)
	}

	p := &Policy{
		Domain:  domain,
		Status:  status,
		Delay:   delay,
		robots:  robots,
		limiter: rate.NewLimiter(rate.Every(delay), 1),
	}
	// the robots.txt request itself counts as an access
	p.limiter.Allow()

	m.log.WithFields(logrus.Fields{
		"domain": domain,
		"status": status,
		"delay":  delay,
	}).Debug("robots policy cached")
	return p, nil
}

func (m *Manager) fetchRobots(ctx context.Context, robotsURL string) (*robotstxt.RobotsData, int, error) {
	ctx, cancel := context.WithTimeout(ctx, m.opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("User-Agent", m.opts.UserAgent)
	req.Close = true

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		robots, err := robotstxt.FromString("User-agent: *\nDisallow: /\n")
		return robots, resp.StatusCode, err
	case resp.StatusCode >= 400:
		robots, err := robotstxt.FromString("")
		return robots, resp.StatusCode, err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRobotsBytes))
	if err != nil {
		return nil, resp.StatusCode, err
	}
	robots, err := robotstxt.FromBytes(body)
	if err != nil {
		// unparseable rules are treated like a missing file
		robots, err = robotstxt.FromString("")
	}
	return robots, resp.StatusCode, err
}

func resultLabel(status int) string {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return "denied"
	case status >= 400:
		return "missing"
	default:
		return "ok"
	}
}
