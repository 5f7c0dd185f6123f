package s3

import (
	"testing"

	"github.com/honnyfrontend/joao-fotografo/internal/config"
)

func TestSplitEndpoint(t *testing.T) {
	cases := []struct {
		name     string
		raw      string
		useSSL   bool
		endpoint string
		secure   bool
		wantErr  bool
	}{
		{name: "bare host keeps use_ssl", raw: "localhost:9000", useSSL: true, endpoint: "localhost:9000", secure: true},
		{name: "https scheme forces tls", raw: "https://s3.example.com/", endpoint: "s3.example.com", secure: true},
		{name: "http scheme disables tls", raw: "http://minio:9000", useSSL: true, endpoint: "minio:9000", secure: false},
		{name: "empty", raw: "  ", wantErr: true},
		{name: "path", raw: "https://s3.example.com/bucket", wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			endpoint, secure, err := splitEndpoint(tc.raw, tc.useSSL)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tc.raw)
				}
				return
			}
			if err != nil {
				t.Fatalf("split endpoint: %v", err)
			}
			if endpoint != tc.endpoint || secure != tc.secure {
				t.Fatalf("got (%q, %v), want (%q, %v)", endpoint, secure, tc.endpoint, tc.secure)
			}
		})
	}
}

func TestNewClientRequiresBucket(t *testing.T) {
	if _, err := NewClient(config.S3Config{Endpoint: "localhost:9000"}); err == nil {
		t.Fatalf("expected error without bucket")
	}

	client, err := NewClient(config.S3Config{Endpoint: "http://localhost:9000", Bucket: "gallery-uploads"})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if client.EndpointURL().Scheme != "http" {
		t.Fatalf("unexpected scheme: %s", client.EndpointURL().Scheme)
	}
}
