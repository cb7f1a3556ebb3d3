package probes

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/nsisonglabs/webcachescan/lib/finding"
	"github.com/nsisonglabs/webcachescan/lib/httpclient"
)

// unkeyedHeaders is the fixed list of headers tried by the unkeyed-header
// poisoning test, per spec.md §4.3.1.
var unkeyedHeaders = []string{
	"X-Forwarded-Host",
	"X-Forwarded-Proto",
	"X-Host",
	"X-Forwarded-Server",
	"X-HTTP-Host-Override",
	"X-Original-URL",
	"X-Rewrite-URL",
	"X-Custom-IP-Authorization",
}

const poisonMarker = "evil-domain.com"

// cloakingSuffixes is the fixed list of query suffixes tried by the
// parameter-cloaking test, per spec.md §4.3.2.
var cloakingSuffixes = []string{
	"?param=normal&param=evil",
	"?param=normal%0d%0aparam=evil",
	"?param=normal%0aparam=evil",
	"?param=normal%23param=evil",
	"?param=normal%0dparam=evil",
	"?param=normal%0a%0dparam=evil",
}

// CachePoisoning implements spec.md §4.3.1 and §4.3.2: unkeyed-header
// reflection and parameter-cloaking reflection. Each sub-test stops at its
// first match and the two sub-tests run independently, so this family
// emits at most two findings.
func CachePoisoning(ctx context.Context, client Prober, _ Oracle, target *url.URL) ([]finding.Finding, error) {
	var out []finding.Finding

	if f, err := testUnkeyedHeaders(ctx, client, target); err != nil {
		return out, err
	} else if f != nil {
		out = append(out, *f)
	}

	if f, err := testParameterCloaking(ctx, client, target); err != nil {
		return out, err
	} else if f != nil {
		out = append(out, *f)
	}

	return out, nil
}

func testUnkeyedHeaders(ctx context.Context, client Prober, target *url.URL) (*finding.Finding, error) {
	for _, header := range unkeyedHeaders {
		overlay := httpclient.RequestOverlay{Headers: []httpclient.Header{{Name: header, Value: poisonMarker}}}
		resp, err := client.GetWithOverlay(ctx, target.String(), overlay)
		if err != nil {
			return nil, fmt.Errorf("unkeyed header probe %s: %w", header, err)
		}
		if strings.Contains(string(resp.Body), poisonMarker) {
			f := finding.New(
				finding.CachePoisoning,
				target.String(),
				fmt.Sprintf("Unkeyed header %s is reflected in the response", header),
				finding.CVSSPtr(7.5),
				curlHeader(header, poisonMarker, target.String()),
				"Configure the cache to key on this header, or strip it at the edge before caching",
				[]string{
					"https://portswigger.net/research/practical-web-cache-poisoning",
					"https://cwe.mitre.org/data/definitions/444.html",
				},
				client.Now(),
			)
			return &f, nil
		}
	}
	return nil, nil
}

func testParameterCloaking(ctx context.Context, client Prober, target *url.URL) (*finding.Finding, error) {
	for _, suffix := range cloakingSuffixes {
		testURL := appendToQuery(target, suffix)
		resp, err := client.Get(ctx, testURL)
		if err != nil {
			return nil, fmt.Errorf("parameter cloaking probe %q: %w", suffix, err)
		}
		if strings.Contains(string(resp.Body), "evil") {
			f := finding.New(
				finding.CachePoisoning,
				target.String(),
				"Parameter cloaking vulnerability detected",
				finding.CVSSPtr(7.0),
				curl(testURL),
				"Normalize parameters before caching and reject ambiguous parameter encodings",
				[]string{
					"https://portswigger.net/research/web-cache-entanglement",
					"https://cwe.mitre.org/data/definitions/444.html",
				},
				client.Now(),
			)
			return &f, nil
		}
	}
	return nil, nil
}
