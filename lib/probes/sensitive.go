package probes

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/nsisonglabs/webcachescan/lib/cacheoracle"
	"github.com/nsisonglabs/webcachescan/lib/finding"
)

// sensitivePaths is the fixed list of paths tried by the sensitive-path
// probing test, per spec.md §4.3.7.
var sensitivePaths = []string{"/admin", "/api", "/internal", "/private", "/config"}

// SensitivePathProbing implements spec.md §4.3.7: for each sensitive path,
// GET it and oracle it; a successful, Cached response means the cache is
// willing to store a response that should never be shared.
func SensitivePathProbing(ctx context.Context, client Prober, oracle Oracle, target *url.URL) ([]finding.Finding, error) {
	var out []finding.Finding

	for _, path := range sensitivePaths {
		testURL := withPath(target, path)
		resp, err := client.Get(ctx, testURL.String())
		if err != nil {
			return out, fmt.Errorf("sensitive path probe %s: %w", path, err)
		}

		behavior, err := oracle.Classify(ctx, testURL.String())
		if err != nil {
			var oracleErr *cacheoracle.Error
			if errors.As(err, &oracleErr) {
				continue
			}
			return out, err
		}

		if resp.Status >= 200 && resp.Status < 300 && behavior == cacheoracle.Cached {
			out = append(out, finding.New(
				finding.CacheProbing,
				testURL.String(),
				fmt.Sprintf("Sensitive path %s is being cached", path),
				finding.CVSSPtr(7.2),
				curl(testURL.String()),
				"Review and adjust caching rules for sensitive paths; mark them no-store at the origin",
				[]string{
					"https://portswigger.net/research/web-cache-entanglement",
					"https://owasp.org/www-project-web-security-testing-guide/latest/4-Web_Application_Security_Testing/04-Authentication_Testing/04-Testing_for_Bypassing_Authentication_Schema",
				},
				client.Now(),
			))
		}
	}

	return out, nil
}
