package probe

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptrace"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

// DefaultTimeout bounds a probe when the caller passes no timeout.
const DefaultTimeout = 5 * time.Second

const maxResponseBodySize = 1 << 20 // 1MB

// connection pooling limits; watchlists are small and mostly point at localhost
const (
	defaultMaxIdleConns        = 32
	defaultMaxIdleConnsPerHost = 4
	defaultIdleConnTimeout     = 30 * time.Second
)

// Target identifies the endpoint a probe is sent to.
type Target struct {
	Host string
	Port int
	Path string
}

// URL returns http://host:port/path with the path normalized.
func (t Target) URL() string {
	return "http://" + net.JoinHostPort(t.Host, strconv.Itoa(t.Port)) + NormalizePath(t.Path)
}

// NormalizePath makes path begin with a slash. An empty path becomes "/".
func NormalizePath(path string) string {
	if path == "" {
		return "/"
	}
	if !strings.HasPrefix(path, "/") {
		return "/" + path
	}
	return path
}

// Prober runs two-tier reachability checks.
//
// Prober has no global client timeout; every probe is bounded by a deadline
// applied through the request context. Response bodies are limited to 1MB.
// A single Prober is safe for concurrent use.
type Prober struct {
	transport http.RoundTripper

	// readable follows redirects and reads the body (first tier).
	readable *http.Client

	// opaque never follows redirects and never reads the body (second tier).
	opaque *http.Client
}

// NewProber creates a [Prober] that sends requests through transport.
// If transport is nil a pooled [http.Transport] is used.
func NewProber(transport http.RoundTripper) *Prober {
	if transport == nil {
		transport = &http.Transport{
			Proxy:               nil, // watched ports are local, never proxy them
			MaxIdleConns:        defaultMaxIdleConns,
			MaxIdleConnsPerHost: defaultMaxIdleConnsPerHost,
			IdleConnTimeout:     defaultIdleConnTimeout,
		}
	}

	return &Prober{
		transport: transport,
		readable:  &http.Client{Transport: transport},
		opaque: &http.Client{
			Transport: transport,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// Probe checks target and returns the outcome. It never returns an error;
// every failure is folded into an [Inactive] result.
//
// Both tiers share one deadline of start+timeout, each under its own
// context so that aborting the first never cancels the second. When the
// first tier used up the whole budget the second fails immediately and the
// result is a timeout. A timeout of zero or less means [DefaultTimeout].
func (p *Prober) Probe(ctx context.Context, target Target, timeout time.Duration) Result {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if ctx == nil {
		ctx = context.Background()
	}

	rawURL := target.URL()
	start := time.Now()
	deadline := start.Add(timeout)

	if page, err := p.read(ctx, rawURL, start, deadline); err == nil {
		return page
	}

	err := p.touch(ctx, rawURL, deadline)
	if err == nil {
		return Opaque{Elapsed: time.Since(start)}
	}

	return classify(err, timeout, time.Since(start))
}

// read is the first tier: a GET whose status code and body are inspected.
func (p *Prober) read(ctx context.Context, rawURL string, start, deadline time.Time) (Active, error) {
	ctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Active{}, err
	}

	resp, err := p.readable.Do(req)
	if err != nil {
		return Active{}, err
	}
	defer func() { _ = resp.Body.Close() }()

	page := Active{
		Elapsed:    time.Since(start),
		HTTPStatus: resp.StatusCode,
	}

	// a body that cannot be read still proves liveness, it just has no title
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	if err == nil {
		page.Title = ExtractTitle(body)
	}

	return page, nil
}

// touch is the second tier: a HEAD that succeeds as soon as any response
// byte arrives, even if the response cannot be parsed as HTTP.
func (p *Prober) touch(ctx context.Context, rawURL string, deadline time.Time) error {
	ctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	var responded atomic.Bool
	trace := &httptrace.ClientTrace{
		GotFirstResponseByte: func() { responded.Store(true) },
	}

	req, err := http.NewRequestWithContext(httptrace.WithClientTrace(ctx, trace), http.MethodHead, rawURL, nil)
	if err != nil {
		return err
	}

	resp, err := p.opaque.Do(req)
	if err != nil {
		if responded.Load() {
			return nil
		}
		return err
	}
	_ = resp.Body.Close()
	return nil
}

// Close releases idle connections held by the default transport.
// Safe to call multiple times and on a nil receiver. The Prober stays usable.
func (p *Prober) Close() {
	if p == nil {
		return
	}
	if t, ok := p.transport.(interface{ CloseIdleConnections() }); ok {
		t.CloseIdleConnections()
	}
}

// classify turns the final transport error into an [Inactive] result.
func classify(err error, timeout, elapsed time.Duration) Inactive {
	if isTimeout(err) {
		return Inactive{Elapsed: timeout, Err: TimeoutMessage, TimedOut: true}
	}
	return Inactive{Elapsed: elapsed, Err: describe(err)}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// describe strips the method and URL that *url.Error prepends; the caller
// already knows which entry failed.
func describe(err error) string {
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		err = urlErr.Err
	}
	if errors.Is(err, context.Canceled) {
		return "Request cancelled"
	}
	return err.Error()
}
