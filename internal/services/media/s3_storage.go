package media

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
)

const s3KeyPrefix = "gallery_uploads"

type S3Storage struct {
	client        *minio.Client
	bucket        string
	publicBaseURL string
	now           func() time.Time

	ensureOnce sync.Once
	ensureErr  error
}

// NewS3Storage stores photos in bucket. Photo URLs are built from publicBaseURL when set,
// otherwise from the client endpoint in path style.
func NewS3Storage(client *minio.Client, bucket, publicBaseURL string) *S3Storage {
	return &S3Storage{
		client:        client,
		bucket:        strings.TrimSpace(bucket),
		publicBaseURL: strings.TrimRight(strings.TrimSpace(publicBaseURL), "/"),
		now:           time.Now,
	}
}

func (s *S3Storage) EnsureBucket(ctx context.Context) error {
	if s.client == nil {
		return fmt.Errorf("s3 client is nil")
	}
	if s.bucket == "" {
		return fmt.Errorf("s3 bucket is empty")
	}

	s.ensureOnce.Do(func() {
		exists, err := s.client.BucketExists(ctx, s.bucket)
		if err != nil {
			s.ensureErr = err
			return
		}
		if exists {
			return
		}
		s.ensureErr = s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{})
	})

	if s.ensureErr != nil {
		return fmt.Errorf("ensure s3 bucket %q: %w", s.bucket, s.ensureErr)
	}

	return nil
}

func (s *S3Storage) Upload(ctx context.Context, fileName string, body io.Reader, size int64, contentType string) (Object, error) {
	if s.client == nil {
		return Object{}, fmt.Errorf("s3 client is nil")
	}
	if body == nil || size <= 0 {
		return Object{}, ErrValidation
	}

	if err := s.EnsureBucket(ctx); err != nil {
		return Object{}, err
	}

	key := buildObjectKey(s3KeyPrefix, fileName, s.now())
	_, err := s.client.PutObject(ctx, s.bucket, key, body, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return Object{}, fmt.Errorf("put object to s3: %w", err)
	}

	return Object{Key: key, URL: s.objectURL(key)}, nil
}

func (s *S3Storage) Delete(ctx context.Context, key string) error {
	if s.client == nil {
		return fmt.Errorf("s3 client is nil")
	}
	if key == "" {
		return nil
	}
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}

func (s *S3Storage) objectURL(key string) string {
	escaped := (&url.URL{Path: key}).EscapedPath()
	if s.publicBaseURL != "" {
		return s.publicBaseURL + "/" + escaped
	}
	if s.client == nil {
		return escaped
	}
	endpoint := s.client.EndpointURL()
	return fmt.Sprintf("%s://%s/%s/%s", endpoint.Scheme, endpoint.Host, s.bucket, escaped)
}
