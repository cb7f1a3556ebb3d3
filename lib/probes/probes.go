// Package probes implements the five probe families: pure async functions
// over (HTTP capability, cache oracle, target URL) that return zero or more
// findings. No family mutates shared state, and each bounds its own request
// count per spec.md §4.3.
package probes

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/nsisonglabs/webcachescan/lib/cacheoracle"
	"github.com/nsisonglabs/webcachescan/lib/finding"
	"github.com/nsisonglabs/webcachescan/lib/httpclient"
)

// Prober is the HTTP capability surface a probe family needs.
type Prober interface {
	Get(ctx context.Context, url string) (httpclient.ResponseSnapshot, error)
	GetWithOverlay(ctx context.Context, url string, overlay httpclient.RequestOverlay) (httpclient.ResponseSnapshot, error)
	// Now reports the current time from the shared Clock collaborator, so
	// findings are stamped consistently with request-elapsed measurement.
	Now() time.Time
}

// Oracle is the cache-behavior classifier surface a probe family needs.
type Oracle interface {
	Classify(ctx context.Context, url string) (cacheoracle.Behavior, error)
}

// Family is one of the five probe functions; each returns 0 or more
// findings and never fails the overall scan — transport and oracle errors
// are converted to zero findings by the caller (the scheduler), per
// spec.md §7.
type Family func(ctx context.Context, client Prober, oracle Oracle, target *url.URL) ([]finding.Finding, error)

// Families lists the five probe families named in spec.md §2, in the order
// the scheduler dispatches them. Ordering across families is not
// guaranteed by spec.md §5, but a stable list makes the scheduler's
// fan-out code straightforward to read.
var Families = []struct {
	Name string
	Run  Family
}{
	{"cache-poisoning", CachePoisoning},
	{"cache-deception", CacheDeception},
	{"cache-timing", CacheTiming},
	{"cache-key-manipulation", CacheKeyManipulation},
	{"sensitive-path-probing", SensitivePathProbing},
}

func curl(rawurl string) string {
	return fmt.Sprintf("curl '%s'", rawurl)
}

func curlHeader(name, value, rawurl string) string {
	return fmt.Sprintf("curl -H '%s: %s' %s", name, value, rawurl)
}

// withPath returns a copy of u with its path replaced by rawPath, a literal
// wire-form path that may already contain percent-encoded octets (several
// of the path-confusion vectors in deception.go do, by design). Setting
// only u.Path and clearing RawPath would make url.URL re-escape any '%' in
// rawPath when serialized, double-encoding it and changing which bytes
// actually reach the origin. Setting RawPath to the literal string (with
// Path set to its one-pass-unescaped form, matching what url.URL.String
// requires to honor RawPath) preserves rawPath on the wire exactly as
// given.
func withPath(u *url.URL, rawPath string) *url.URL {
	cp := *u
	if decoded, err := url.PathUnescape(rawPath); err == nil {
		cp.Path = decoded
		cp.RawPath = rawPath
	} else {
		cp.Path = rawPath
		cp.RawPath = ""
	}
	return &cp
}

// appendToQuery builds the URL string u + suffix, preserving u's existing
// query exactly as the spec's parameter-cloaking test cases require (the
// suffix is appended verbatim, not re-encoded, since several test cases
// rely on percent-encoded CR/LF/hash sequences such as %0d%0a and %23 that
// decoding and re-encoding the query would alter).
func appendToQuery(u *url.URL, suffix string) string {
	return u.String() + suffix
}
