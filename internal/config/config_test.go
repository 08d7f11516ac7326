package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultAndNormalize(t *testing.T) {
	cfg := Default()
	if cfg.Server.Port == 0 || cfg.Server.DataDir == "" || cfg.Server.MaxConcurrentJobs < 1 {
		t.Fatalf("default config invalid: %+v", cfg)
	}
	if cfg.Tool.PollInterval != 5*time.Second || cfg.Tool.PollMaxAttempts != 60 {
		t.Fatalf("unexpected default poll policy: %+v", cfg.Tool)
	}

	got := normalizeOrigins([]string{"https://Example.org/", "https://example.org", "  ", "http://localhost:3000"})
	if len(got) != 2 || got[0] != "https://example.org" || got[1] != "http://localhost:3000" {
		t.Fatalf("unexpected normalized origins: %v", got)
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load("not_exists.yml")
	if err != nil {
		t.Fatalf("expected no error for missing file, got %v", err)
	}
	if cfg.Server.Store != StoreFile {
		t.Fatalf("expected file store by default, got %q", cfg.Server.Store)
	}
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{EnvPort, EnvBackendURL, EnvSiteKey, EnvCaptchaSecret, EnvDataDir} {
		t.Setenv(key, "")
	}
}

func TestLoadReadsAndValidates(t *testing.T) {
	clearEnv(t)
	tempDir := t.TempDir()
	path := filepath.Join(tempDir, "cfg.yml")
	content := []byte(`server:
  port: 9090
  data_dir: testdata
  store: SQLite
  max_concurrent_jobs: 4
captcha:
  site_key: site-key-123
  pass_ttl: 90s
tool:
  backend_url: https://api.example.org
  poll_interval: 2s
  poll_max_attempts: 10
`)
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 9090 || cfg.Server.DataDir != "testdata" || cfg.Server.MaxConcurrentJobs != 4 {
		t.Fatalf("unexpected server cfg: %+v", cfg.Server)
	}
	if cfg.Server.Store != StoreSQLite {
		t.Fatalf("store not normalized: %q", cfg.Server.Store)
	}
	if cfg.Captcha.PassTTL != 90*time.Second {
		t.Fatalf("unexpected pass ttl %v", cfg.Captcha.PassTTL)
	}
	opts := cfg.Tool.PollOptions()
	if opts.Interval != 2*time.Second || opts.MaxAttempts != 10 {
		t.Fatalf("unexpected poll options: %+v", opts)
	}
	if cfg.Tool.MaxURLLength == 0 || cfg.Captcha.VerifyURL == "" {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
}

func TestLoadRejectsInvalidConcurrency(t *testing.T) {
	tempDir := t.TempDir()
	path := filepath.Join(tempDir, "cfg.yml")
	content := []byte("server:\n  max_concurrent_jobs: 0\n")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for invalid concurrency")
	}
}

func TestLoadRejectsUnknownStore(t *testing.T) {
	tempDir := t.TempDir()
	path := filepath.Join(tempDir, "cfg.yml")
	if err := os.WriteFile(path, []byte("server:\n  store: redis\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for unknown store")
	}
}

func TestEnvOverridesFile(t *testing.T) {
	tempDir := t.TempDir()
	envPath := filepath.Join(tempDir, ".env")
	env := "WORKBENCH_BACKEND_URL=https://env.example.org\nWORKBENCH_CAPTCHA_SITE_KEY=env-site-key\n"
	if err := os.WriteFile(envPath, []byte(env), 0o600); err != nil {
		t.Fatalf("write env: %v", err)
	}
	clearEnv(t)
	// godotenv never overrides variables that exist, even when empty.
	_ = os.Unsetenv(EnvBackendURL)
	_ = os.Unsetenv(EnvSiteKey)
	t.Setenv(EnvPort, "7070")

	if err := LoadEnvFile(envPath); err != nil {
		t.Fatalf("load env: %v", err)
	}
	if err := LoadEnvFile(filepath.Join(tempDir, "missing.env")); err != nil {
		t.Fatalf("missing env file must be ignored, got %v", err)
	}

	cfgPath := filepath.Join(tempDir, "cfg.yml")
	if err := os.WriteFile(cfgPath, []byte("server:\n  port: 9090\ntool:\n  backend_url: https://file.example.org\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 7070 {
		t.Fatalf("expected env port, got %d", cfg.Server.Port)
	}
	if cfg.Tool.BackendURL != "https://env.example.org" || cfg.Captcha.SiteKey != "env-site-key" {
		t.Fatalf("env overrides not applied: %+v", cfg)
	}
}

func TestLoadRejectsBadPortEnv(t *testing.T) {
	t.Setenv(EnvPort, "eighty")
	if _, err := Load("not_exists.yml"); err == nil {
		t.Fatalf("expected error for non-numeric port")
	}
}
