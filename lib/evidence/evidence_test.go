package evidence

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nsisonglabs/webcachescan/lib/httpclient"
)

func TestDigestIsStableAndHex(t *testing.T) {
	a := Digest("http://example.com/x")
	b := Digest("http://example.com/x")
	c := Digest("http://example.com/y")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
}

func TestLocalStorePutWritesRetrievableFile(t *testing.T) {
	dir := t.TempDir()
	store := NewLocalStore(dir)

	snap := httpclient.ResponseSnapshot{
		Status:  200,
		Headers: http.Header{"X-Cache": {"HIT"}},
		Body:    []byte("hello world"),
	}

	ref, err := store.Put(context.Background(), "http://example.com/x", snap)
	require.NoError(t, err)
	require.Len(t, ref, 64)

	path := filepath.Join(dir, ref[:2], ref)
	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	headers, body := splitHeaderSection(raw)
	assert.Equal(t, "HIT", headers.Get("X-Cache"))
	assert.Equal(t, "hello world", string(body))
}

func TestLocalStorePutCreatesPrefixDirectory(t *testing.T) {
	dir := t.TempDir()
	store := NewLocalStore(dir)

	ref, err := store.Put(context.Background(), "http://example.com/x", httpclient.ResponseSnapshot{Status: 200})
	require.NoError(t, err)

	info, err := os.Stat(filepath.Join(dir, ref[:2]))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
