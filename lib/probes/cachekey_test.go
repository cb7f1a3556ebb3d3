package probes

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nsisonglabs/webcachescan/lib/cacheoracle"
)

type fakeOracle struct {
	behavior cacheoracle.Behavior
	err      error
}

func (f fakeOracle) Classify(_ context.Context, _ string) (cacheoracle.Behavior, error) {
	return f.behavior, f.err
}

func TestCacheKeyManipulationFlagsEveryCachedOverride(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	client := newTestClient(t)
	findings, err := CacheKeyManipulation(context.Background(), client, fakeOracle{behavior: cacheoracle.Cached}, mustParse(t, srv.URL))
	require.NoError(t, err)
	assert.Len(t, findings, len(cacheKeyOverrides))
}

func TestCacheKeyManipulationNoFindingsWhenNotCached(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	client := newTestClient(t)
	findings, err := CacheKeyManipulation(context.Background(), client, fakeOracle{behavior: cacheoracle.NotCached}, mustParse(t, srv.URL))
	require.NoError(t, err)
	assert.Empty(t, findings)
}

func TestCacheKeyManipulationSkipsOracleErrorsWithoutFailingTheFamily(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	client := newTestClient(t)
	oerr := &cacheoracle.Error{URL: srv.URL, Err: errors.New("boom")}
	findings, err := CacheKeyManipulation(context.Background(), client, fakeOracle{err: oerr}, mustParse(t, srv.URL))
	require.NoError(t, err)
	assert.Empty(t, findings)
}
