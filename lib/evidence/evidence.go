// Package evidence archives the raw response bytes behind a Finding's
// proof-of-concept, addressed by the same request-URL digest scheme the
// teacher's reverse proxy cache uses for its own objects. This is ambient
// infrastructure: scans run fine with no Store configured (see
// SPEC_FULL.md §2 item 6).
package evidence

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/creachadair/atomicfile"

	"github.com/nsisonglabs/webcachescan/lib/httpclient"
)

// Store archives a response snapshot keyed by the URL it came from and
// returns an opaque reference for Finding.EvidenceRef.
type Store interface {
	Put(ctx context.Context, url string, snap httpclient.ResponseSnapshot) (ref string, err error)
}

// Digest returns the storage digest for a URL, matching the teacher's
// hashRequestURL scheme in lib/revproxy/revproxy.go.
func Digest(url string) string {
	return fmt.Sprintf("%x", sha256.Sum256([]byte(url)))
}

// LocalStore archives evidence as flat files under a local directory, one
// per request URL (a later Put for the same URL overwrites the file),
// fanned out into two-character prefix subdirectories exactly as the
// teacher's local cache layout does.
type LocalStore struct {
	Dir string
}

// NewLocalStore returns a Store rooted at dir. The directory is created
// lazily on first Put.
func NewLocalStore(dir string) *LocalStore {
	return &LocalStore{Dir: dir}
}

func (s *LocalStore) Put(_ context.Context, url string, snap httpclient.ResponseSnapshot) (string, error) {
	digest := Digest(url)
	path := filepath.Join(s.Dir, digest[:2], digest)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("evidence: creating %s: %w", filepath.Dir(path), err)
	}

	var buf strings.Builder
	writeHeaderSection(&buf, snap)
	buf.Write(snap.Body) //nolint:errcheck // strings.Builder.Write never errors

	if err := atomicfile.WriteAll(path, strings.NewReader(buf.String()), 0o644); err != nil {
		return "", fmt.Errorf("evidence: writing %s: %w", path, err)
	}
	return digest, nil
}

func writeHeaderSection(w io.Writer, snap httpclient.ResponseSnapshot) {
	fmt.Fprintf(w, "status: %d\n", snap.Status)
	for name, vals := range snap.Headers {
		for _, v := range vals {
			fmt.Fprintf(w, "%s: %s\n", name, v)
		}
	}
	fmt.Fprint(w, "\n")
}

// splitHeaderSection is the inverse of writeHeaderSection, used by tests
// that round-trip a LocalStore entry.
func splitHeaderSection(raw []byte) (http.Header, []byte) {
	idx := strings.Index(string(raw), "\n\n")
	if idx < 0 {
		return http.Header{}, raw
	}
	headerBlock, body := raw[:idx], raw[idx+2:]
	h := http.Header{}
	for _, line := range strings.Split(string(headerBlock), "\n") {
		name, val, ok := strings.Cut(line, ": ")
		if !ok {
			continue
		}
		h.Add(name, val)
	}
	return h, body
}
