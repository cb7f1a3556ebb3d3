package probes

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nsisonglabs/webcachescan/lib/finding"
	"github.com/nsisonglabs/webcachescan/lib/httpclient"
)

func newTestClient(t *testing.T) *httpclient.Client {
	t.Helper()
	c, err := httpclient.New(httpclient.Config{Timeout: 2 * time.Second})
	require.NoError(t, err)
	return c
}

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func TestCachePoisoningDetectsUnkeyedHeaderReflection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if v := r.Header.Get("X-Forwarded-Host"); v != "" {
			fmt.Fprintf(w, "<html>%s</html>", v)
			return
		}
		fmt.Fprint(w, "<html>normal</html>")
	}))
	defer srv.Close()

	client := newTestClient(t)
	findings, err := CachePoisoning(context.Background(), client, nil, mustParse(t, srv.URL))
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, finding.CachePoisoning, findings[0].Kind)
	assert.Contains(t, findings[0].Description, "X-Forwarded-Host")
}

func TestCachePoisoningDetectsParameterCloaking(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "<html>%s</html>", r.URL.RawQuery)
	}))
	defer srv.Close()

	client := newTestClient(t)
	findings, err := CachePoisoning(context.Background(), client, nil, mustParse(t, srv.URL))
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, "Parameter cloaking vulnerability detected", findings[0].Description)
}

func TestCachePoisoningNoFindingsOnCleanResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html>nothing to see here</html>")
	}))
	defer srv.Close()

	client := newTestClient(t)
	findings, err := CachePoisoning(context.Background(), client, nil, mustParse(t, srv.URL))
	require.NoError(t, err)
	assert.Empty(t, findings)
}

func TestCachePoisoningStopsAtFirstUnkeyedHeaderMatch(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		fmt.Fprintf(w, "<html>%s</html>", poisonMarker)
	}))
	defer srv.Close()

	client := newTestClient(t)
	findings, err := CachePoisoning(context.Background(), client, nil, mustParse(t, srv.URL))
	require.NoError(t, err)
	require.Len(t, findings, 2)
	// One request for the first unkeyed header (stops there), plus the
	// independent parameter-cloaking sub-test which also stops at its first
	// suffix since this handler reflects the marker unconditionally.
	assert.Equal(t, 2, calls)
}
