package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "database:\n  dsn: \"file::memory:\"\n")

	cfg, err := Load(context.Background(), path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Database.Driver != "sqlite" {
		t.Fatalf("database.driver = %q", cfg.Database.Driver)
	}
	if cfg.Database.DSN != "file::memory:" {
		t.Fatalf("database.dsn = %q", cfg.Database.DSN)
	}
	if cfg.Verification.Timeout != 30*time.Second {
		t.Fatalf("verification.timeout = %s", cfg.Verification.Timeout)
	}
	if cfg.Verification.HealthTimeout != 5*time.Second {
		t.Fatalf("verification.health_timeout = %s", cfg.Verification.HealthTimeout)
	}
	if !cfg.Lifecycle.AutoCrossCheck {
		t.Fatalf("lifecycle.auto_cross_check should default to true")
	}
	if cfg.Bootstrap.StartTimeout != 90*time.Second {
		t.Fatalf("bootstrap.start_timeout = %s", cfg.Bootstrap.StartTimeout)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "verification:\n  enabled: true\n  base_url: http://ai.local\n")
	t.Setenv("CF_VERIFICATION_ENABLED", "false")
	t.Setenv("CF_DISTRIBUTION_QUEUE_SIZE", "7")

	cfg, err := Load(context.Background(), path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Verification.Enabled {
		t.Fatalf("verification.enabled should be overridden by env")
	}
	if cfg.Verification.BaseURL != "http://ai.local" {
		t.Fatalf("verification.base_url = %q", cfg.Verification.BaseURL)
	}
	if cfg.Distribution.QueueSize != 7 {
		t.Fatalf("distribution.queue_size = %d", cfg.Distribution.QueueSize)
	}
}

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(context.Background(), filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.App.Name != "civicfix" {
		t.Fatalf("app.name = %q", cfg.App.Name)
	}
}

func TestValidateRejectsBadCacheDriver(t *testing.T) {
	path := writeConfig(t, "cache:\n  driver: memcached\n")
	if _, err := Load(context.Background(), path); err == nil {
		t.Fatalf("Load() expected error for unsupported cache driver")
	}

	path = writeConfig(t, "cache:\n  driver: redis\n")
	if _, err := Load(context.Background(), path); err == nil {
		t.Fatalf("Load() expected error for redis without url")
	}
}
