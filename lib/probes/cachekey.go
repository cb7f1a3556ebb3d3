package probes

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/nsisonglabs/webcachescan/lib/cacheoracle"
	"github.com/nsisonglabs/webcachescan/lib/finding"
	"github.com/nsisonglabs/webcachescan/lib/httpclient"
)

// cacheKeyOverrides is the fixed list of (name, header, value) overrides
// tried by the cache-key manipulation test, per spec.md §4.3.6.
var cacheKeyOverrides = []struct {
	Name   string
	Header string
	Value  string
}{
	{"Cache-Key Override", "X-Cache-Key", "custom-key"},
	{"Cache-Control Override", "Cache-Control", "max-age=0"},
	{"Vary Override", "Vary", "*"},
}

// CacheKeyManipulation implements spec.md §4.3.6: for each override,
// issue one overlay request, then oracle the bare URL; a Cached
// classification means the override reached an unkeyed dimension of the
// cache. Unlike the poisoning/deception families this one does not stop
// at the first match — each override is an independent mechanism.
func CacheKeyManipulation(ctx context.Context, client Prober, oracle Oracle, target *url.URL) ([]finding.Finding, error) {
	var out []finding.Finding

	for _, tc := range cacheKeyOverrides {
		overlay := httpclient.RequestOverlay{Headers: []httpclient.Header{{Name: tc.Header, Value: tc.Value}}}
		if _, err := client.GetWithOverlay(ctx, target.String(), overlay); err != nil {
			return out, fmt.Errorf("cache-key override %s: %w", tc.Name, err)
		}

		behavior, err := oracle.Classify(ctx, target.String())
		if err != nil {
			var oracleErr *cacheoracle.Error
			if errors.As(err, &oracleErr) {
				continue // cannot determine; skip this dependent finding
			}
			return out, err
		}

		if behavior == cacheoracle.Cached {
			out = append(out, finding.New(
				finding.CacheKeyManipulation,
				target.String(),
				fmt.Sprintf("%s vulnerability detected", tc.Name),
				finding.CVSSPtr(6.8),
				curlHeader(tc.Header, tc.Value, target.String()),
				"Include this header in the cache key, or strip it before the request reaches the cache",
				[]string{"https://portswigger.net/research/practical-web-cache-poisoning"},
				client.Now(),
			))
		}
	}

	return out, nil
}
