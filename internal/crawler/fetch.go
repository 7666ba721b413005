package crawler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"focused-crawler/internal/hostman"
)

// Outcome classifies a fetch.
type Outcome int

const (
	OK Outcome = iota
	Timeout
	HTTPError
	NetworkError
)

func (o Outcome) String() string {
	switch o {
	case OK:
		return "ok"
	case Timeout:
		return "timeout"
	case HTTPError:
		return "http_error"
	case NetworkError:
		return "network_error"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// FetchResult is what one request produced. Failures are values, not errors.
type FetchResult struct {
	Outcome  Outcome
	Status   int
	Header   http.Header
	Body     []byte
	FinalURL string // after redirects
	Err      error

	// Truncated is set when the body was cut at the size limit.
	Truncated bool
}

// Cause describes a failed result for the error log.
func (r FetchResult) Cause() error {
	if r.Err != nil {
		return r.Err
	}
	if r.Outcome == HTTPError {
		return fmt.Errorf("status %d", r.Status)
	}
	return nil
}

// NewHTTPClient returns a client that opens a fresh connection per request
// and gives up after timeout.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			DisableKeepAlives:   true,
			TLSHandshakeTimeout: timeout,
		},
	}
}

// Fetcher issues metadata and body requests.
type Fetcher struct {
	client    hostman.Doer
	userAgent string
	maxBody   int64
}

func NewFetcher(client hostman.Doer, userAgent string, maxBody int64) *Fetcher {
	return &Fetcher{client: client, userAgent: userAgent, maxBody: maxBody}
}

// Head fetches headers only.
func (f *Fetcher) Head(ctx context.Context, rawURL string) FetchResult {
	return f.do(ctx, http.MethodHead, rawURL)
}

// Get fetches the body, truncated to the configured maximum.
func (f *Fetcher) Get(ctx context.Context, rawURL string) FetchResult {
	return f.do(ctx, http.MethodGet, rawURL)
}

func (f *Fetcher) do(ctx context.Context, method, rawURL string) FetchResult {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return FetchResult{Outcome: NetworkError, Err: err}
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Close = true

	resp, err := f.client.Do(req)
	if err != nil {
		return FetchResult{Outcome: classify(err), Err: err}
	}
	defer resp.Body.Close()

	res := FetchResult{
		Outcome:  OK,
		Status:   resp.StatusCode,
		Header:   resp.Header,
		FinalURL: rawURL,
	}
	if resp.Request != nil && resp.Request.URL != nil {
		res.FinalURL = resp.Request.URL.String()
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		res.Outcome = HTTPError
		return res
	}
	if method == http.MethodHead {
		return res
	}

	res.Body, err = io.ReadAll(io.LimitReader(resp.Body, f.maxBody+1))
	if err != nil {
		res.Outcome, res.Err = classify(err), err
		return res
	}
	if int64(len(res.Body)) > f.maxBody {
		res.Body, res.Truncated = res.Body[:f.maxBody], true
	}
	return res
}

func classify(err error) Outcome {
	if errors.Is(err, context.DeadlineExceeded) {
		return Timeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return Timeout
	}
	return NetworkError
}
