package sources

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoaderLoad(t *testing.T) {
	t.Setenv("TEST_ADZUNA_APP_ID", "my-app")

	tmpDir := t.TempDir()
	yamlPath := filepath.Join(tmpDir, "providers.yaml")

	yamlContent := `---
defaults:
  timeout: 10s
  rate_limit:
    max_requests: 20
    window: 30s
providers:
  adzuna:
    options:
      app_id: ${TEST_ADZUNA_APP_ID}
      country: fr
    breaker:
      failure_threshold: 2
  remotive:
    enabled: false
`
	if err := os.WriteFile(yamlPath, []byte(yamlContent), 0o644); err != nil {
		t.Fatalf("Failed to create test YAML file: %v", err)
	}

	cfg, err := NewLoader(yamlPath).Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	adzuna := cfg.For("adzuna")
	if !adzuna.Enabled {
		t.Error("adzuna should be enabled by default")
	}
	if got := adzuna.Option("app_id", ""); got != "my-app" {
		t.Errorf("app_id = %q, want env-expanded value", got)
	}
	if adzuna.Timeout != 10*time.Second {
		t.Errorf("Timeout = %v, want file default 10s", adzuna.Timeout)
	}
	if adzuna.RateLimit.MaxRequests != 20 || adzuna.RateLimit.Window != 30*time.Second {
		t.Errorf("RateLimit = %+v", adzuna.RateLimit)
	}
	if adzuna.Breaker.FailureThreshold != 2 {
		t.Errorf("FailureThreshold = %d, want 2", adzuna.Breaker.FailureThreshold)
	}
	if adzuna.Breaker.ResetTimeout != time.Minute {
		t.Errorf("ResetTimeout = %v, want built-in 60s", adzuna.Breaker.ResetTimeout)
	}

	if cfg.For("remotive").Enabled {
		t.Error("remotive is disabled in the file")
	}
}

func TestLoaderEmptyPath(t *testing.T) {
	cfg, err := NewLoader("").Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	s := cfg.For("greenhouse")
	if !s.Enabled {
		t.Error("providers are enabled without a file")
	}
	if s.Timeout != DefaultTimeout {
		t.Errorf("Timeout = %v, want %v", s.Timeout, DefaultTimeout)
	}
	if s.RateLimit.MaxRequests != 30 {
		t.Errorf("MaxRequests = %d, want 30", s.RateLimit.MaxRequests)
	}
	if got := s.Option("boards", "fallback"); got != "fallback" {
		t.Errorf("Option() = %q, want fallback", got)
	}
}

func TestNilConfigFor(t *testing.T) {
	var cfg *ProvidersConfig
	if s := cfg.For("adzuna"); !s.Enabled || s.Name != "adzuna" {
		t.Errorf("For() on nil config = %+v", s)
	}
}

func TestLoaderFileNotFound(t *testing.T) {
	if _, err := NewLoader("/nonexistent/path/providers.yaml").Load(); err == nil {
		t.Error("Load() with non-existent file should return error")
	}
}

func TestParseInvalidYAML(t *testing.T) {
	if _, err := Parse([]byte("providers: [unterminated")); err == nil {
		t.Error("Parse() should fail on invalid yaml")
	}
}
