package probes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheTimingDetectsSignificantDifference(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.RawQuery == "" {
			// Baseline (cached) path: fast.
			w.Write([]byte("ok"))
			return
		}
		// Cache-busted path: artificially slow.
		time.Sleep(5 * time.Millisecond)
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	client := newTestClient(t)
	findings, err := CacheTiming(context.Background(), client, nil, mustParse(t, srv.URL))
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Contains(t, findings[0].Description, "timing difference")
}

func TestCacheTimingNoFindingWhenLatencyComparable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	client := newTestClient(t)
	findings, err := CacheTiming(context.Background(), client, nil, mustParse(t, srv.URL))
	require.NoError(t, err)
	assert.Empty(t, findings)
}
