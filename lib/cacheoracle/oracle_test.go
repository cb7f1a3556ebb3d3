package cacheoracle

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nsisonglabs/webcachescan/lib/httpclient"
)

type fakeProber struct {
	responses []httpclient.ResponseSnapshot
	calls     int
	err       error
}

func (f *fakeProber) Get(_ context.Context, _ string) (httpclient.ResponseSnapshot, error) {
	if f.err != nil {
		return httpclient.ResponseSnapshot{}, f.err
	}
	resp := f.responses[f.calls%len(f.responses)]
	f.calls++
	return resp, nil
}

func header(pairs ...[2]string) http.Header {
	h := http.Header{}
	for _, p := range pairs {
		h.Set(p[0], p[1])
	}
	return h
}

func TestClassifyDynamicOnBodyMismatch(t *testing.T) {
	p := &fakeProber{responses: []httpclient.ResponseSnapshot{
		{Status: 200, Body: []byte("one"), Headers: header()},
		{Status: 200, Body: []byte("two"), Headers: header()},
	}}
	o := New(p)

	b, err := o.Classify(context.Background(), "http://example.com")
	require.NoError(t, err)
	assert.Equal(t, Dynamic, b)
}

func TestClassifyPotentiallyCachedWithoutHints(t *testing.T) {
	resp := httpclient.ResponseSnapshot{Status: 200, Body: []byte("same"), Headers: header()}
	p := &fakeProber{responses: []httpclient.ResponseSnapshot{resp, resp}}
	o := New(p)

	b, err := o.Classify(context.Background(), "http://example.com")
	require.NoError(t, err)
	assert.Equal(t, PotentiallyCached, b)
}

func TestClassifyNotCachedOnNoStore(t *testing.T) {
	resp := httpclient.ResponseSnapshot{
		Status:  200,
		Body:    []byte("same"),
		Headers: header([2]string{"Cache-Control", "no-store"}),
	}
	p := &fakeProber{responses: []httpclient.ResponseSnapshot{resp, resp}}
	o := New(p)

	b, err := o.Classify(context.Background(), "http://example.com")
	require.NoError(t, err)
	assert.Equal(t, NotCached, b)
}

func TestClassifyCachedOnIndicatorHeader(t *testing.T) {
	resp := httpclient.ResponseSnapshot{
		Status:  200,
		Body:    []byte("same"),
		Headers: header([2]string{"X-Cache", "HIT"}),
	}
	p := &fakeProber{responses: []httpclient.ResponseSnapshot{resp, resp}}
	o := New(p)

	b, err := o.Classify(context.Background(), "http://example.com")
	require.NoError(t, err)
	assert.Equal(t, Cached, b)
}

func TestClassifyMemoizesPerURL(t *testing.T) {
	resp := httpclient.ResponseSnapshot{
		Status:  200,
		Body:    []byte("same"),
		Headers: header([2]string{"Age", "10"}),
	}
	p := &fakeProber{responses: []httpclient.ResponseSnapshot{resp, resp, resp, resp}}
	o := New(p)

	_, err := o.Classify(context.Background(), "http://example.com/a")
	require.NoError(t, err)
	_, err = o.Classify(context.Background(), "http://example.com/a")
	require.NoError(t, err)

	assert.Equal(t, 2, p.calls, "second Classify of the same URL should hit the memo, not probe again")
}

func TestClassifyWrapsTransportErrors(t *testing.T) {
	p := &fakeProber{err: assertErr{}}
	o := New(p)

	_, err := o.Classify(context.Background(), "http://example.com")
	require.Error(t, err)
	var oerr *Error
	require.ErrorAs(t, err, &oerr)
}

type assertErr struct{}

func (assertErr) Error() string { return "boom" }

func TestExtractHeaderInfoProjectsCustomCacheHeaders(t *testing.T) {
	snap := httpclient.ResponseSnapshot{
		Headers: header(
			[2]string{"Cache-Control", "max-age=60"},
			[2]string{"X-Cache-Status", "HIT"},
			[2]string{"ETag", `"abc"`},
		),
	}
	info := ExtractHeaderInfo(snap)
	require.NotNil(t, info.CacheControl)
	assert.Equal(t, "max-age=60", *info.CacheControl)
	require.NotNil(t, info.ETag)
	assert.Equal(t, `"abc"`, *info.ETag)
	assert.Equal(t, "HIT", info.CustomHeaders["x-cache-status"])
}
