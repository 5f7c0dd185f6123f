package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/honnyfrontend/joao-fotografo/internal/config"
)

func TestShutdownTimeoutFollowsWriteTimeout(t *testing.T) {
	if got := shutdownTimeout(config.HTTPConfig{WriteTimeout: 90 * time.Second}); got != 90*time.Second {
		t.Fatalf("unexpected timeout: %v", got)
	}
	if got := shutdownTimeout(config.HTTPConfig{}); got != fallbackShutdownTimeout {
		t.Fatalf("unexpected fallback timeout: %v", got)
	}
}

func TestConfigPathFromEnv(t *testing.T) {
	t.Setenv("APP_CONFIG", "/etc/gallery/config.yaml")
	if got := configPath(); got != "/etc/gallery/config.yaml" {
		t.Fatalf("unexpected config path: %q", got)
	}

	t.Setenv("APP_CONFIG", "")
	if got := configPath(); got != "configs/config.yaml" {
		t.Fatalf("unexpected default config path: %q", got)
	}
}

func TestRunFailsOnMalformedConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("http: [unterminated"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if err := run(path); err == nil {
		t.Fatalf("expected error for malformed config")
	}
}
