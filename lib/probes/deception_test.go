package probes

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheDeceptionDetectsPathConfusion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/static/../private/data" || r.URL.Path == "/private/data" {
			w.WriteHeader(http.StatusOK)
			fmt.Fprint(w, "secret")
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := newTestClient(t)
	findings, err := CacheDeception(context.Background(), client, nil, mustParse(t, srv.URL))
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(findings), 1)
	assert.Equal(t, "Path confusion vulnerability detected", findings[0].Description)
}

func TestCacheDeceptionDetectsContentTypeConfusion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Reject the path-confusion variants outright so only the
		// content-type-confusion sub-test can fire.
		for _, p := range deceptionPaths {
			if r.URL.EscapedPath() == p {
				w.WriteHeader(http.StatusNotFound)
				return
			}
		}
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "body")
	}))
	defer srv.Close()

	client := newTestClient(t)
	findings, err := CacheDeception(context.Background(), client, nil, mustParse(t, srv.URL+"/page"))
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Contains(t, findings[0].Description, "Content-Type confusion")
}

func TestCacheDeceptionNoFindingsWhenEverythingIs404(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := newTestClient(t)
	findings, err := CacheDeception(context.Background(), client, nil, mustParse(t, srv.URL))
	require.NoError(t, err)
	assert.Empty(t, findings)
}
