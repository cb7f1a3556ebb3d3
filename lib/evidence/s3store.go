package evidence

import (
	"bytes"
	"context"
	"fmt"
	"path"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/nsisonglabs/webcachescan/lib/httpclient"
)

// S3Store archives evidence as objects in an S3-compatible bucket, mirroring
// the teacher's own cacheStoreS3 path in lib/revproxy/revproxy.go.
type S3Store struct {
	Client    *s3.Client
	Bucket    string
	KeyPrefix string
}

// NewS3Store returns a Store backed by client and bucket. keyPrefix, if
// non-empty, is prepended to each object key with an intervening slash.
func NewS3Store(client *s3.Client, bucket, keyPrefix string) *S3Store {
	return &S3Store{Client: client, Bucket: bucket, KeyPrefix: keyPrefix}
}

// NewGCSStore returns an S3Store pointed at a GCS bucket's S3-compatible
// endpoint, with the signing and checksum workarounds from
// WithGCSCompatibility applied.
func NewGCSStore(ctx context.Context, endpoint, bucket, keyPrefix string) (*S3Store, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("evidence: loading AWS config: %w", err)
	}
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = &endpoint
		o.UsePathStyle = true
		WithGCSCompatibility(o)
	})
	return NewS3Store(client, bucket, keyPrefix), nil
}

func (s *S3Store) makeKey(digest string) string {
	return path.Join(s.KeyPrefix, digest[:2], digest)
}

func (s *S3Store) Put(ctx context.Context, url string, snap httpclient.ResponseSnapshot) (string, error) {
	digest := Digest(url)
	key := s.makeKey(digest)

	var buf bytes.Buffer
	writeHeaderSection(&buf, snap)
	buf.Write(snap.Body)

	_, err := s.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: &s.Bucket,
		Key:    &key,
		Body:   bytes.NewReader(buf.Bytes()),
	})
	if err != nil {
		return "", fmt.Errorf("evidence: putting %s to s3://%s: %w", key, s.Bucket, err)
	}
	return digest, nil
}
