package s3

import (
	"errors"
	"fmt"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/honnyfrontend/joao-fotografo/internal/config"
)

// NewClient builds the minio client for the gallery bucket. The endpoint may carry an
// http:// or https:// scheme, which then decides TLS instead of use_ssl.
func NewClient(cfg config.S3Config) (*minio.Client, error) {
	endpoint, secure, err := splitEndpoint(cfg.Endpoint, cfg.UseSSL)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, errors.New("s3 bucket is required")
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: secure,
	})
	if err != nil {
		return nil, fmt.Errorf("create s3 client for %s: %w", endpoint, err)
	}

	return client, nil
}

func splitEndpoint(raw string, useSSL bool) (string, bool, error) {
	endpoint := strings.TrimSpace(raw)
	switch {
	case strings.HasPrefix(endpoint, "https://"):
		endpoint, useSSL = strings.TrimPrefix(endpoint, "https://"), true
	case strings.HasPrefix(endpoint, "http://"):
		endpoint, useSSL = strings.TrimPrefix(endpoint, "http://"), false
	}
	endpoint = strings.TrimRight(endpoint, "/")

	if endpoint == "" {
		return "", false, errors.New("s3 endpoint is required")
	}
	if strings.Contains(endpoint, "/") {
		return "", false, fmt.Errorf("s3 endpoint %q must be host[:port] without a path", raw)
	}
	return endpoint, useSSL, nil
}
