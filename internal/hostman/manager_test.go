package hostman

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"focused-crawler/internal/metrics"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) { return f(req) }

func newStringResponse(req *http.Request, status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     make(http.Header),
		Request:    req,
	}
}

func testLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func testOptions() Options {
	return Options{
		UserAgent:    "focused-crawler-test",
		DefaultDelay: 10 * time.Millisecond,
		MaxDelay:     3 * time.Second,
		Timeout:      time.Second,
		Retry:        Backoff{Attempts: 2, Base: time.Millisecond},
	}
}

// robotsServer answers robots.txt with a fixed status/body and counts requests.
func robotsServer(status int, body string, calls *atomic.Int32) *http.Client {
	return &http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
		calls.Add(1)
		if req.URL.Path != "/robots.txt" {
			return nil, errors.New("unexpected request " + req.URL.String())
		}
		return newStringResponse(req, status, body), nil
	})}
}

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func TestForbiddenRobotsDisallowsEverything(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	denied := testutil.ToFloat64(metrics.RobotsFetches.WithLabelValues("denied"))
	m := New(robotsServer(http.StatusForbidden, "", &calls), testOptions(), testLogger())

	p, err := m.Ensure(context.Background(), mustParse(t, "http://locked.example/a"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, p.Status)

	for _, u := range []string{"http://locked.example/", "http://locked.example/a", "http://LOCKED.example/b?c=d"} {
		assert.False(t, m.CanFetch(u), u)
	}
	_, err = m.Ensure(context.Background(), mustParse(t, "http://locked.example/b"))
	require.NoError(t, err)

	assert.EqualValues(t, 1, calls.Load())
	assert.Equal(t, denied+1, testutil.ToFloat64(metrics.RobotsFetches.WithLabelValues("denied")))
}

func TestMissingRobotsAllowsEverything(t *testing.T) {
	t.Parallel()

	for _, status := range []int{http.StatusNotFound, http.StatusGone, http.StatusInternalServerError} {
		var calls atomic.Int32
		m := New(robotsServer(status, "", &calls), testOptions(), testLogger())

		_, err := m.Ensure(context.Background(), mustParse(t, "http://open.example/"))
		require.NoError(t, err)
		assert.True(t, m.CanFetch("http://open.example/anything"), status)
		assert.Equal(t, testOptions().DefaultDelay, m.Delay("open.example"))
	}
}

func TestRobotsRulesAndDelay(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	body := "User-agent: *\nDisallow: /private\nCrawl-delay: 2\n"
	m := New(robotsServer(http.StatusOK, body, &calls), testOptions(), testLogger())

	p, err := m.Ensure(context.Background(), mustParse(t, "https://rules.example/"))
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, p.Delay)
	assert.Equal(t, 2*time.Second, m.Delay("rules.example"))

	assert.False(t, m.CanFetch("https://rules.example/private/page"))
	assert.True(t, m.CanFetch("https://rules.example/public/page"))
}

func TestCrawlDelayIsCapped(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	m := New(robotsServer(http.StatusOK, "User-agent: *\nCrawl-delay: 120\n", &calls), testOptions(), testLogger())

	_, err := m.Ensure(context.Background(), mustParse(t, "http://slow.example/"))
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, m.Delay("slow.example"))
}

func TestZeroMaxDelayIsACap(t *testing.T) {
	t.Parallel()

	opts := testOptions()
	opts.DefaultDelay = 0
	opts.MaxDelay = 0

	var calls atomic.Int32
	m := New(robotsServer(http.StatusOK, "User-agent: *\nCrawl-delay: 120\n", &calls), opts, testLogger())

	p, err := m.Ensure(context.Background(), mustParse(t, "http://slow.example/"))
	require.NoError(t, err)
	assert.Zero(t, p.Delay)
	assert.Zero(t, m.Delay("slow.example"))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	for i := 0; i < 3; i++ {
		require.NoError(t, m.Wait(ctx, "slow.example"))
	}
}

func TestPolicyFetchFailureIsNotCached(t *testing.T) {
	t.Parallel()

	var (
		calls atomic.Int32
		up    atomic.Bool
	)
	client := &http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
		calls.Add(1)
		if !up.Load() {
			return nil, errors.New("connection refused")
		}
		return newStringResponse(req, http.StatusOK, "User-agent: *\nAllow: /\n"), nil
	})}
	m := New(client, testOptions(), testLogger())
	u := mustParse(t, "http://flaky.example/page")

	_, err := m.Ensure(context.Background(), u)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPolicyFetch)
	assert.EqualValues(t, 2, calls.Load(), "one retry")
	assert.False(t, m.CanFetch(u.String()))

	up.Store(true)
	_, err = m.Ensure(context.Background(), u)
	require.NoError(t, err)
	assert.EqualValues(t, 3, calls.Load())
	assert.True(t, m.CanFetch(u.String()))
}

func TestCanFetchNeverTouchesTheNetwork(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	m := New(robotsServer(http.StatusOK, "", &calls), testOptions(), testLogger())

	assert.False(t, m.CanFetch("http://unknown.example/"))
	assert.False(t, m.CanFetch("::not a url"))
	assert.Zero(t, calls.Load())
	assert.Error(t, m.Wait(context.Background(), "unknown.example"))
}

func TestConcurrentEnsureSharesOneFetch(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	release := make(chan struct{})
	client := &http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
		calls.Add(1)
		<-release
		return newStringResponse(req, http.StatusNotFound, ""), nil
	})}
	m := New(client, testOptions(), testLogger())
	u := mustParse(t, "http://busy.example/")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.Ensure(context.Background(), u)
			assert.NoError(t, err)
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.EqualValues(t, 1, calls.Load())
}

func TestWaitEnforcesDelay(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	opts := testOptions()
	opts.DefaultDelay = 50 * time.Millisecond
	m := New(robotsServer(http.StatusNotFound, "", &calls), opts, testLogger())

	_, err := m.Ensure(context.Background(), mustParse(t, "http://polite.example/"))
	require.NoError(t, err)
	fetched := time.Now()

	var starts []time.Time
	for i := 0; i < 3; i++ {
		require.NoError(t, m.Wait(context.Background(), "polite.example"))
		starts = append(starts, time.Now())
	}

	const slack = 5 * time.Millisecond
	assert.GreaterOrEqual(t, starts[0].Sub(fetched), opts.DefaultDelay-slack)
	for i := 1; i < len(starts); i++ {
		assert.GreaterOrEqual(t, starts[i].Sub(starts[i-1]), opts.DefaultDelay-slack)
	}
}

func TestWaitHonoursContext(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	opts := testOptions()
	opts.DefaultDelay = time.Second
	m := New(robotsServer(http.StatusNotFound, "", &calls), opts, testLogger())

	_, err := m.Ensure(context.Background(), mustParse(t, "http://patient.example/"))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, m.Wait(ctx, "patient.example"))
}
