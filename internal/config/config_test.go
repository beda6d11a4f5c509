package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.RedisURL != "redis://localhost:6379" {
		t.Errorf("RedisURL = %s", cfg.RedisURL)
	}
	if cfg.ConsumerGroup != "stickernest-workers" {
		t.Errorf("ConsumerGroup = %s", cfg.ConsumerGroup)
	}
	if got := cfg.QueueSettingsFor("ai:video").Concurrency; got != 1 {
		t.Errorf("video concurrency = %d, want 1", got)
	}
	if got := cfg.QueueSettingsFor("ai:lora").MaxAttempts; got != 2 {
		t.Errorf("lora max attempts = %d, want 2", got)
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nestd.yaml")
	data := []byte(`
redis_url: redis://cache.internal:6379
generation_url: http://gen.internal:8100
queues:
  ai:image:
    concurrency: 4
    max_attempts: 5
    timeout_seconds: 120
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.RedisURL != "redis://cache.internal:6379" {
		t.Errorf("RedisURL = %s", cfg.RedisURL)
	}
	s := cfg.QueueSettingsFor("ai:image")
	if s.Concurrency != 4 || s.MaxAttempts != 5 {
		t.Errorf("image settings = %+v", s)
	}
	if s.Timeout() != 2*time.Minute {
		t.Errorf("image timeout = %v, want 2m", s.Timeout())
	}
}

func TestLoadMalformedFileErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("queues: ["), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("Load() of malformed yaml succeeded, want error")
	}
}

func TestEnvOverridesFile(t *testing.T) {
	t.Setenv("REDIS_URL", "redis://from-env:6379")
	t.Setenv("GENERATION_URL", "http://gen-from-env:8100")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.RedisURL != "redis://from-env:6379" {
		t.Errorf("RedisURL = %s, want env override", cfg.RedisURL)
	}
	if cfg.GenerationURL != "http://gen-from-env:8100" {
		t.Errorf("GenerationURL = %s, want env override", cfg.GenerationURL)
	}
}

func TestQueueSettingsForUnknownQueue(t *testing.T) {
	cfg := Default()
	s := cfg.QueueSettingsFor("ai:unknown")
	if s.Concurrency != 1 || s.MaxAttempts != 3 {
		t.Errorf("fallback settings = %+v, want concurrency 1 / attempts 3", s)
	}
	if s.Timeout() != 0 {
		t.Errorf("fallback timeout = %v, want disabled", s.Timeout())
	}
}

func TestMaxAttemptsByQueue(t *testing.T) {
	got := Default().MaxAttemptsByQueue()
	if got["ai:lora"] != 2 {
		t.Errorf("lora attempts = %d, want 2", got["ai:lora"])
	}
	if got["ai:image"] != 3 {
		t.Errorf("image attempts = %d, want 3", got["ai:image"])
	}
}
