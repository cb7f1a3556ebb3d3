// Package scanner implements the scheduler / core engine: it validates a
// target, bounds probe-family concurrency with a semaphore, dispatches the
// five probe families in parallel, aggregates their findings, and produces
// a ScanResult.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"time"

	"github.com/creachadair/taskgroup"
	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/nsisonglabs/webcachescan/lib/cacheoracle"
	"github.com/nsisonglabs/webcachescan/lib/evidence"
	"github.com/nsisonglabs/webcachescan/lib/finding"
	"github.com/nsisonglabs/webcachescan/lib/httpclient"
	"github.com/nsisonglabs/webcachescan/lib/probes"
)

const scannerVersion = "1.0.0"

// ErrInvalidTarget is returned (wrapped, with detail) when the scan target
// fails validation: unparseable, non-http(s) scheme, or unreachable.
var ErrInvalidTarget = errors.New("invalid scan target")

// defaultConcurrency is T from spec.md §5.
const defaultConcurrency = 10

// defaultTimeout bounds each HTTP call, per spec.md §5.
const defaultTimeout = 30 * time.Second

// Logger is the best-effort log sink, matching httpclient.Logger so a
// single implementation can back both.
type Logger interface {
	Debugf(format string, args ...any)
	Warnf(format string, args ...any)
}

// Result is the sealed outcome of one scan, per spec.md §3's ScanResult.
type Result struct {
	ScanID         string
	Target         string
	Findings       []finding.Finding
	Duration       time.Duration
	RequestsSent   uint64
	Timestamp      time.Time
	ScannerVersion string
}

// Scanner is constructed once with its HTTP capability configuration. All
// Scan calls on one Scanner share its HTTP client's request counter, which
// each Scan resets when it starts; RequestsSent is therefore exact only
// when Scan calls on the same Scanner do not overlap.
type Scanner struct {
	client      *httpclient.Client
	concurrency int64
	timeout     time.Duration
	logger      Logger
	evidence    evidence.Store
}

// Config is the construction surface for a Scanner.
type Config struct {
	HTTP        httpclient.Config
	Concurrency int
	Timeout     time.Duration
	Logger      Logger
	Evidence    evidence.Store
}

// New builds a Scanner from cfg.
func New(cfg Config) (*Scanner, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.HTTP.Timeout <= 0 {
		cfg.HTTP.Timeout = cfg.Timeout
	}
	if cfg.HTTP.Logger == nil && cfg.Logger != nil {
		cfg.HTTP.Logger = loggerAdapter{cfg.Logger}
	}

	client, err := httpclient.New(cfg.HTTP)
	if err != nil {
		return nil, fmt.Errorf("building HTTP client: %w", err)
	}

	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}

	return &Scanner{
		client:      client,
		concurrency: int64(concurrency),
		timeout:     cfg.Timeout,
		logger:      cfg.Logger,
		evidence:    cfg.Evidence,
	}, nil
}

type loggerAdapter struct{ Logger }

// Scan is the primary entry point named in spec.md §4.4: scan(target) →
// ScanResult. It validates target, then runs the five probe families
// concurrently (bounded by the scanner's semaphore) and aggregates their
// findings into a sealed Result. A Scanner may be reused for many Scan
// calls against different targets.
//
// A fresh Oracle is built for each call so its per-URL classification memo
// (cacheoracle.Oracle) is scoped to the lifetime of this one scan, per
// spec.md §4.2 — a second Scan of the same target must re-probe rather
// than reuse classifications the first Scan already memoized.
func (s *Scanner) Scan(ctx context.Context, rawTarget string) (*Result, error) {
	start := s.client.Now()
	s.client.ResetRequestCount()

	target, err := s.validateTarget(ctx, rawTarget)
	if err != nil {
		return nil, err
	}

	oracle := cacheoracle.New(s.client)
	findings := s.runFamilies(ctx, target, oracle)
	findings = dedupe(findings)
	sort.Slice(findings, func(i, j int) bool {
		if findings[i].Kind != findings[j].Kind {
			return findings[i].Kind < findings[j].Kind
		}
		return findings[i].URL < findings[j].URL
	})

	if s.evidence != nil {
		s.archiveEvidence(ctx, findings)
	}

	finish := s.client.Now()
	return &Result{
		ScanID:         uuid.NewString(),
		Target:         target.String(),
		Findings:       findings,
		Duration:       finish.Sub(start),
		RequestsSent:   s.client.RequestCount(),
		Timestamp:      finish,
		ScannerVersion: scannerVersion,
	}, nil
}

// validateTarget parses target, requires http/https, and performs one
// liveness GET, per spec.md §4.4 step 1. A non-2xx liveness response is
// logged but does not fail the scan, per spec.md §8 testable property 9.
func (s *Scanner) validateTarget(ctx context.Context, rawTarget string) (*url.URL, error) {
	u, err := url.Parse(rawTarget)
	if err != nil {
		return nil, fmt.Errorf("%w: %q is not a valid URL: %v", ErrInvalidTarget, rawTarget, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: scheme %q is not http/https", ErrInvalidTarget, u.Scheme)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	resp, err := s.client.Get(ctx, u.String())
	if err != nil {
		return nil, fmt.Errorf("%w: target unreachable: %v", ErrInvalidTarget, err)
	}
	if resp.Status < 200 || resp.Status >= 300 {
		s.warnf("target %s returned non-2xx status %d on liveness check", u, resp.Status)
	}

	return u, nil
}

// runFamilies dispatches the five probe families as concurrent tasks, each
// holding one semaphore permit for its lifetime, and joins them without
// ever short-circuiting on a single family's failure, per spec.md §4.4
// steps 2-4. Per-family errors are logged and contribute zero findings.
func (s *Scanner) runFamilies(ctx context.Context, target *url.URL, oracle *cacheoracle.Oracle) []finding.Finding {
	sem := semaphore.NewWeighted(s.concurrency)
	g := taskgroup.New(nil)
	results := make([][]finding.Finding, len(probes.Families))

	for i, fam := range probes.Families {
		i, fam := i, fam
		g.Go(func() error {
			if err := sem.Acquire(ctx, 1); err != nil {
				s.warnf("probe family %s: acquiring permit: %v", fam.Name, err)
				return nil
			}
			defer sem.Release(1)

			found, err := fam.Run(ctx, s.client, oracle, target)
			if err != nil {
				s.warnf("probe family %s failed: %v", fam.Name, err)
				return nil
			}
			results[i] = found
			return nil
		})
	}
	_ = g.Wait()

	var all []finding.Finding
	for _, r := range results {
		all = append(all, r...)
	}
	return all
}

// dedupe removes findings that share a (kind, url, description) key, per
// spec.md §3's ScanResult invariant. The first occurrence wins.
func dedupe(findings []finding.Finding) []finding.Finding {
	seen := make(map[[3]string]bool, len(findings))
	out := make([]finding.Finding, 0, len(findings))
	for _, f := range findings {
		key := f.DedupKey()
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, f)
	}
	return out
}

func (s *Scanner) archiveEvidence(ctx context.Context, findings []finding.Finding) {
	for i := range findings {
		resp, err := s.client.Get(ctx, findings[i].URL)
		if err != nil {
			s.warnf("archiving evidence for %s: %v", findings[i].URL, err)
			continue
		}
		ref, err := s.evidence.Put(ctx, findings[i].URL, resp)
		if err != nil {
			s.warnf("archiving evidence for %s: %v", findings[i].URL, err)
			continue
		}
		findings[i].EvidenceRef = ref
	}
}

// RunFamily runs a single named probe family against target, outside of a
// full Scan, for test isolation and targeted scans per spec.md §6's
// "individual probe entry points" requirement. The name must match one of
// probes.Families; an unknown name returns an error. Like Scan, it builds
// its own Oracle so the classification memo doesn't leak across calls.
func (s *Scanner) RunFamily(ctx context.Context, name string, rawTarget string) ([]finding.Finding, error) {
	target, err := url.Parse(rawTarget)
	if err != nil {
		return nil, fmt.Errorf("%w: %q is not a valid URL: %v", ErrInvalidTarget, rawTarget, err)
	}
	oracle := cacheoracle.New(s.client)
	for _, fam := range probes.Families {
		if fam.Name == name {
			return fam.Run(ctx, s.client, oracle, target)
		}
	}
	return nil, fmt.Errorf("unknown probe family %q", name)
}

func (s *Scanner) warnf(format string, args ...any) {
	if s.logger != nil {
		s.logger.Warnf(format, args...)
	}
}
