// Package cacheoracle decides, from two probes of the same resource, whether
// a response is being cached and how. It never mutates shared state and
// never issues more than two requests per classification.
package cacheoracle

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/creachadair/mds/cache"
	"github.com/creachadair/mds/mapset"

	"github.com/nsisonglabs/webcachescan/lib/httpclient"
)

// settleDelay is the wait between the two probes, long enough for an
// intermediate cache to install the entry.
const settleDelay = 100 * time.Millisecond

// Behavior is the tagged classification of a URL's cache status.
type Behavior string

const (
	Cached            Behavior = "Cached"
	NotCached         Behavior = "NotCached"
	PotentiallyCached Behavior = "PotentiallyCached"
	Dynamic           Behavior = "Dynamic"
)

// hintHeaders are the response headers whose mere presence suggests an
// intermediate cache is in play.
var hintHeaders = mapset.New("x-cache", "cf-cache-status", "age", "cache-control")

// cacheIndicatorHeaders are the headers that, when present, are strong
// enough evidence on their own to call a response Cached.
var cacheIndicatorHeaders = mapset.New("x-cache", "cf-cache-status", "age")

// HeaderInfo is a projection of a ResponseSnapshot's headers into the
// cache-relevant fields named in spec.md §3.
type HeaderInfo struct {
	CacheControl  *string
	ETag          *string
	LastModified  *string
	Expires       *string
	Vary          *string
	Age           *string
	Pragma        *string
	CustomHeaders map[string]string
}

// Error wraps a transport failure encountered while classifying. Callers
// treat this as "cannot determine" and skip dependent findings.
type Error struct {
	URL string
	Err error
}

func (e *Error) Error() string { return fmt.Sprintf("cache oracle: classifying %s: %v", e.URL, e.Err) }
func (e *Error) Unwrap() error { return e.Err }

// Prober is the subset of httpclient.Client the oracle needs. Kept as an
// interface so tests can substitute a mock without standing up a real
// Client.
type Prober interface {
	Get(ctx context.Context, url string) (httpclient.ResponseSnapshot, error)
}

// Oracle classifies cache behavior and memoizes results for the lifetime of
// one scan, keyed by the exact URL string, so probe families that oracle
// the same URL don't repeat the two-probe dance.
type Oracle struct {
	client Prober
	memo   *cache.Cache[string, Behavior]
}

// New constructs an Oracle backed by client.
func New(client Prober) *Oracle {
	return &Oracle{
		client: client,
		memo:   cache.New(cache.LRU[string, Behavior](256).WithSize(func(string, Behavior) int64 { return 1 })),
	}
}

// Classify implements the algorithm in spec.md §4.2: two probes separated
// by a settle delay, compared byte-exact, with header hints used to
// distinguish Cached/NotCached/PotentiallyCached when the bodies match.
func (o *Oracle) Classify(ctx context.Context, url string) (Behavior, error) {
	if b, ok := o.memo.Get(url); ok {
		return b, nil
	}

	resp1, err := o.client.Get(ctx, url)
	if err != nil {
		return "", &Error{URL: url, Err: err}
	}
	select {
	case <-time.After(settleDelay):
	case <-ctx.Done():
		return "", &Error{URL: url, Err: ctx.Err()}
	}
	resp2, err := o.client.Get(ctx, url)
	if err != nil {
		return "", &Error{URL: url, Err: err}
	}

	behavior := classify(resp1, resp2)
	o.memo.Put(url, behavior)
	return behavior, nil
}

func classify(resp1, resp2 httpclient.ResponseSnapshot) Behavior {
	if !bytes.Equal(resp1.Body, resp2.Body) {
		return Dynamic
	}

	if !hasCacheHint(resp1.Headers) {
		return PotentiallyCached
	}

	cc := headerValue(resp1.Headers, "cache-control")
	if cc != "" {
		for _, directive := range strings.Split(cc, ",") {
			d := strings.TrimSpace(strings.ToLower(directive))
			if d == "no-store" || d == "no-cache" {
				return NotCached
			}
		}
	}

	for name := range resp1.Headers {
		if cacheIndicatorHeaders.Has(strings.ToLower(name)) {
			return Cached
		}
	}

	return PotentiallyCached
}

func hasCacheHint(h http.Header) bool {
	for name := range h {
		if hintHeaders.Has(strings.ToLower(name)) {
			return true
		}
	}
	return false
}

func headerValue(h http.Header, name string) string {
	for k, v := range h {
		if strings.EqualFold(k, name) && len(v) > 0 {
			return v[0]
		}
	}
	return ""
}

// ExtractHeaderInfo projects snap's headers into a HeaderInfo, per
// spec.md §3's CacheHeaderInfo. Custom headers are any header whose
// lowercased name contains "cache" or begins with "x-cache".
func ExtractHeaderInfo(snap httpclient.ResponseSnapshot) HeaderInfo {
	info := HeaderInfo{CustomHeaders: map[string]string{}}
	info.CacheControl = headerPtr(snap.Headers, "cache-control")
	info.ETag = headerPtr(snap.Headers, "etag")
	info.LastModified = headerPtr(snap.Headers, "last-modified")
	info.Expires = headerPtr(snap.Headers, "expires")
	info.Vary = headerPtr(snap.Headers, "vary")
	info.Age = headerPtr(snap.Headers, "age")
	info.Pragma = headerPtr(snap.Headers, "pragma")

	for name, vals := range snap.Headers {
		lower := strings.ToLower(name)
		if strings.Contains(lower, "cache") || strings.HasPrefix(lower, "x-cache") {
			if len(vals) > 0 {
				info.CustomHeaders[lower] = vals[0]
			}
		}
	}
	return info
}

func headerPtr(h http.Header, name string) *string {
	v := headerValue(h, name)
	if v == "" {
		return nil
	}
	return &v
}
