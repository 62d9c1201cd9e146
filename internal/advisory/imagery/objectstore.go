package imagery

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioSink mirrors live rasters into an S3-compatible bucket.
type MinioSink struct {
	client *minio.Client
	bucket string
}

// NewMinioSink creates a sink for bucket. The endpoint may carry an
// http:// or https:// prefix.
func NewMinioSink(endpoint, accessKey, secretKey, bucket string, secure bool) (*MinioSink, error) {
	endpoint = strings.TrimPrefix(endpoint, "http://")
	endpoint = strings.TrimPrefix(endpoint, "https://")

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: secure,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize MinIO client: %w", err)
	}
	return &MinioSink{client: client, bucket: bucket}, nil
}

// EnsureBucket creates the bucket when it does not exist yet.
func (m *MinioSink) EnsureBucket(ctx context.Context) error {
	exists, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return fmt.Errorf("error checking bucket existence: %w", err)
	}
	if exists {
		return nil
	}
	if err := m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("error creating bucket %s: %w", m.bucket, err)
	}
	return nil
}

// Upload stores data as a PNG object and returns its URL.
func (m *MinioSink) Upload(ctx context.Context, name string, data []byte) (string, error) {
	_, err := m.client.PutObject(ctx, m.bucket, name, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "image/png",
	})
	if err != nil {
		return "", fmt.Errorf("put object %s: %w", name, err)
	}
	return fmt.Sprintf("%s/%s/%s", m.client.EndpointURL().String(), m.bucket, name), nil
}
