// Package httpclient implements the scanner's HTTP capability: a thin,
// read-only-after-construction transport that applies baseline headers and
// cookies, merges per-request header overlays, and reports a
// ResponseSnapshot. It never interprets status codes or probe semantics —
// that belongs to the cache oracle and the probe families.
package httpclient

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

const defaultUserAgent = "Web-Cache-Scanner/1.0 (Nsisong Labs)"

// TransportError wraps a transport-level failure: DNS, TCP, TLS, timeout,
// or body-read failure. It is never retried by the core.
type TransportError struct {
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error fetching %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ErrRedirectLimit is returned (wrapped in a TransportError) when the
// configured redirect cap is exceeded.
var ErrRedirectLimit = errors.New("redirect limit exceeded")

// Header is a single (name, value) pair. Overlay entries are applied in
// order; a later entry with the same name (case-insensitive) replaces an
// earlier one, so each header name is sent at most once.
type Header struct {
	Name  string
	Value string
}

// RequestOverlay is merged over the baseline headers for a single request.
// Overlay headers replace matching baseline header names (case-insensitive);
// they never remove a baseline header that isn't named in the overlay.
type RequestOverlay struct {
	Headers []Header
}

// ResponseSnapshot is the atomically captured result of one HTTP request.
type ResponseSnapshot struct {
	Status  int
	Headers http.Header
	Body    []byte
	Elapsed time.Duration
}

// Clock abstracts time for elapsed-duration measurement and timestamps, so
// tests can substitute a deterministic clock.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Logger is the best-effort debug/info/warn/error sink consumed from the
// caller. A nil Logger discards all messages, matching the teacher's
// Logf-callback idiom.
type Logger interface {
	Debugf(format string, args ...any)
	Warnf(format string, args ...any)
}

// Config is the builder surface for a Client, matching spec.md §6's HTTP
// transport builder collaborator.
type Config struct {
	Timeout         time.Duration
	FollowRedirects bool
	MaxRedirects    int
	VerifySSL       bool
	Proxy           *url.URL
	BasicAuth       *BasicAuth
	UserAgent       string
	BaselineHeaders []Header
	BaselineCookies []Header

	// RateLimit, when > 0, caps requests per second via a token-bucket
	// limiter (bucket size equals the rate) interposed on the transport.
	RateLimit float64

	Clock  Clock
	Logger Logger
}

// BasicAuth holds HTTP basic-auth credentials.
type BasicAuth struct {
	User string
	Pass string
}

// Client is the HTTP capability. It is safe for concurrent use by multiple
// probe families and the cache oracle; its connection pool and rate limiter
// are shared, and its only mutable state after construction is the atomic
// request counter.
type Client struct {
	inner     *http.Client
	userAgent string
	baseline  []Header
	cookie    string
	basicAuth *BasicAuth
	clock     Clock
	logger    Logger
	limiter   *rate.Limiter

	// requestCount is incremented on every GET issued, satisfying
	// spec.md §4.4's "count every issued HTTP request" requirement when the
	// scheduler reads it via Client.RequestCount after the scan.
	requestCount atomic.Uint64
}

// New builds a Client from cfg. The underlying net/http.Client, its
// transport, TLS verification, proxy, and redirect policy are fixed at
// construction and never mutated afterward.
func New(cfg Config) (*Client, error) {
	ua := cfg.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}

	transport := &http.Transport{
		TLSClientConfig: &tls.Config{InsecureSkipVerify: !cfg.VerifySSL}, // #nosec G402 -- verify_ssl is an explicit, operator-controlled toggle
	}
	if cfg.Proxy != nil {
		transport.Proxy = http.ProxyURL(cfg.Proxy)
	}

	var rt http.RoundTripper = transport
	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), int(cfg.RateLimit))
		rt = &rateLimitedTransport{next: rt, limiter: limiter}
	}

	hc := &http.Client{
		Transport: rt,
		Timeout:   cfg.Timeout,
	}
	if !cfg.FollowRedirects {
		hc.CheckRedirect = func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}
	} else if cfg.MaxRedirects > 0 {
		max := cfg.MaxRedirects
		hc.CheckRedirect = func(_ *http.Request, via []*http.Request) error {
			if len(via) > max {
				return ErrRedirectLimit
			}
			return nil
		}
	}

	var cookieStr string
	if len(cfg.BaselineCookies) > 0 {
		parts := make([]string, 0, len(cfg.BaselineCookies))
		for _, c := range cfg.BaselineCookies {
			parts = append(parts, c.Name+"="+c.Value)
		}
		cookieStr = strings.Join(parts, "; ")
	}

	clock := cfg.Clock
	if clock == nil {
		clock = realClock{}
	}

	c := &Client{
		inner:     hc,
		userAgent: ua,
		baseline:  cfg.BaselineHeaders,
		cookie:    cookieStr,
		basicAuth: cfg.BasicAuth,
		clock:     clock,
		logger:    cfg.Logger,
		limiter:   limiter,
	}
	return c, nil
}

type rateLimitedTransport struct {
	next    http.RoundTripper
	limiter *rate.Limiter
}

func (t *rateLimitedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.limiter.Wait(req.Context()); err != nil {
		return nil, err
	}
	return t.next.RoundTrip(req)
}

// Now returns the current time according to the client's injected Clock,
// the same Clock used to measure per-request elapsed time, so callers
// timestamping findings or scan results go through the single Clock
// collaborator named in spec.md §6 instead of calling time.Now directly.
func (c *Client) Now() time.Time { return c.clock.Now() }

// RequestCount returns the number of GETs issued by this client so far.
func (c *Client) RequestCount() uint64 { return c.requestCount.Load() }

// ResetRequestCount zeroes the request counter. Used by the scheduler at
// the start of a scan so Client instances can be reused across scans
// without their counters bleeding into the next ScanResult.
func (c *Client) ResetRequestCount() { c.requestCount.Store(0) }

// Get issues a GET request with only the baseline headers and cookies
// applied.
func (c *Client) Get(ctx context.Context, rawurl string) (ResponseSnapshot, error) {
	return c.do(ctx, rawurl, RequestOverlay{})
}

// GetWithOverlay issues a GET request with the baseline headers applied
// first, then the overlay merged on top (overlay wins on name collision).
func (c *Client) GetWithOverlay(ctx context.Context, rawurl string, overlay RequestOverlay) (ResponseSnapshot, error) {
	return c.do(ctx, rawurl, overlay)
}

func (c *Client) do(ctx context.Context, rawurl string, overlay RequestOverlay) (ResponseSnapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawurl, nil)
	if err != nil {
		return ResponseSnapshot{}, &TransportError{URL: rawurl, Err: err}
	}

	for _, h := range c.baseline {
		req.Header.Set(h.Name, h.Value)
	}
	if c.basicAuth != nil {
		req.SetBasicAuth(c.basicAuth.User, c.basicAuth.Pass)
	}
	if c.cookie != "" {
		req.Header.Set("Cookie", c.cookie)
	}
	req.Header.Set("User-Agent", c.userAgent)

	// Overlay is applied last so it wins on name collision, per
	// spec.md §3's RequestOverlay contract.
	for _, h := range overlay.Headers {
		req.Header.Set(h.Name, h.Value)
	}
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	start := c.clock.Now()
	c.requestCount.Add(1)
	resp, err := c.inner.Do(req)
	if err != nil {
		if errors.Is(err, ErrRedirectLimit) {
			return ResponseSnapshot{}, &TransportError{URL: rawurl, Err: ErrRedirectLimit}
		}
		c.debugf("GET %s failed: %v", rawurl, err)
		return ResponseSnapshot{}, &TransportError{URL: rawurl, Err: err}
	}
	defer resp.Body.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, resp.Body); err != nil {
		return ResponseSnapshot{}, &TransportError{URL: rawurl, Err: fmt.Errorf("reading body: %w", err)}
	}
	elapsed := c.clock.Now().Sub(start)

	c.debugf("GET %s -> %d (%d bytes, %v)", rawurl, resp.StatusCode, buf.Len(), elapsed)

	return ResponseSnapshot{
		Status:  resp.StatusCode,
		Headers: resp.Header.Clone(),
		Body:    buf.Bytes(),
		Elapsed: elapsed,
	}, nil
}

func (c *Client) debugf(format string, args ...any) {
	if c.logger != nil {
		c.logger.Debugf(format, args...)
	}
}
