package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"cryptocrawl/models"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeConfig(t, "crawler:\n  name: test\n  version: 1.0.0\n")
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Reader.Retry.MaxAttempts != 3 {
		t.Errorf("retry max_attempts = %d, want default 3", cfg.Reader.Retry.MaxAttempts)
	}
	if cfg.Engine.IdleTimeout != 60*time.Second {
		t.Errorf("idle_timeout = %v, want default 60s", cfg.Engine.IdleTimeout)
	}
}

func TestLoadConfigFallbackSymbols(t *testing.T) {
	path := writeConfig(t, `
crawler:
  name: test
  version: 1.0.0
source:
  okx:
    fallback_symbols:
      option:
        - BTC-USD
        - ETH-USD
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	fb := cfg.Exchange("okx").Fallback(models.Option)
	if len(fb) != 2 || fb[0] != "BTC-USD" {
		t.Errorf("okx option fallback = %v", fb)
	}
	if got := cfg.Exchange("okx").Fallback(models.Spot); got != nil {
		t.Errorf("okx spot fallback = %v, want nil", got)
	}
}

func TestLoadConfigValidation(t *testing.T) {
	path := writeConfig(t, `
crawler:
  name: test
  version: 1.0.0
storage:
  s3:
    enabled: true
`)
	if _, err := LoadConfig(path); err == nil {
		t.Error("expected validation error for enabled S3 without bucket")
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yml")); err == nil {
		t.Error("expected error for missing file")
	}
}
