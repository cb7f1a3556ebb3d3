package probes

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/nsisonglabs/webcachescan/lib/finding"
)

// deceptionPaths is the fixed list of path-traversal variants tried by the
// path-confusion test, per spec.md §4.3.3.
var deceptionPaths = []string{
	"/static/../private/data",
	"/static/%2e%2e/private/data",
	"/static/..%2fprivate/data",
	"/static/%252e%252e/private/data",
	"/.%2e/private/data",
}

// deceptionExtensions is the fixed list of extensions tried by the
// content-type-confusion test, per spec.md §4.3.4.
var deceptionExtensions = []string{".css", ".js", ".png", ".jpg", ".gif"}

// CacheDeception implements spec.md §4.3.3 and §4.3.4: path confusion and
// content-type confusion. Each sub-test stops at its first match.
func CacheDeception(ctx context.Context, client Prober, _ Oracle, target *url.URL) ([]finding.Finding, error) {
	var out []finding.Finding

	if f, err := testPathConfusion(ctx, client, target); err != nil {
		return out, err
	} else if f != nil {
		out = append(out, *f)
	}

	if f, err := testContentTypeConfusion(ctx, client, target); err != nil {
		return out, err
	} else if f != nil {
		out = append(out, *f)
	}

	return out, nil
}

func testPathConfusion(ctx context.Context, client Prober, target *url.URL) (*finding.Finding, error) {
	for _, path := range deceptionPaths {
		testURL := withPath(target, path)
		resp, err := client.Get(ctx, testURL.String())
		if err != nil {
			return nil, fmt.Errorf("path confusion probe %s: %w", path, err)
		}
		if resp.Status >= 200 && resp.Status < 300 {
			f := finding.New(
				finding.CacheDeception,
				target.String(),
				"Path confusion vulnerability detected",
				finding.CVSSPtr(6.5),
				curl(testURL.String()),
				"Normalize request paths before the cache key is computed and reject traversal sequences",
				[]string{
					"https://portswigger.net/research/web-cache-deception-attack",
					"https://cwe.mitre.org/data/definitions/526.html",
				},
				client.Now(),
			)
			return &f, nil
		}
	}
	return nil, nil
}

func testContentTypeConfusion(ctx context.Context, client Prober, target *url.URL) (*finding.Finding, error) {
	for _, ext := range deceptionExtensions {
		testURL := withPath(target, target.Path+ext)
		resp, err := client.Get(ctx, testURL.String())
		if err != nil {
			return nil, fmt.Errorf("content-type confusion probe %s: %w", ext, err)
		}
		if resp.Status < 200 || resp.Status >= 300 {
			continue
		}
		contentType := resp.Headers.Get("Content-Type")
		token := strings.TrimPrefix(ext, ".")
		if !strings.Contains(contentType, token) {
			f := finding.New(
				finding.CacheDeception,
				target.String(),
				fmt.Sprintf("Content-Type confusion with %s extension", ext),
				finding.CVSSPtr(5.5),
				curl(testURL.String()),
				"Validate that the Content-Type matches the requested resource before it is cached",
				[]string{"https://portswigger.net/research/web-cache-deception-attack"},
				client.Now(),
			)
			return &f, nil
		}
	}
	return nil, nil
}
