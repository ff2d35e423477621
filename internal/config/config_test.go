package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadUsesDefaultsAndYAMLOverrides(t *testing.T) {
	clearConfigEnv(t)

	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.yaml")
	yaml := `
http:
  addr: ":9090"
apple:
  shared_secret: secret-from-yaml
  attempt_timeout: 4s
  verify_budget: 12s
auth:
  jwt_access_ttl: 20m
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write temp config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if cfg.HTTP.Addr != ":9090" {
		t.Fatalf("unexpected http addr: %s", cfg.HTTP.Addr)
	}
	if cfg.Apple.SharedSecret != "secret-from-yaml" {
		t.Fatalf("unexpected apple shared secret: %s", cfg.Apple.SharedSecret)
	}
	if cfg.Apple.AttemptTimeout != 4*time.Second {
		t.Fatalf("unexpected apple attempt timeout: %s", cfg.Apple.AttemptTimeout)
	}
	if cfg.Apple.VerifyBudget != 12*time.Second {
		t.Fatalf("unexpected apple verify budget: %s", cfg.Apple.VerifyBudget)
	}
	if cfg.Auth.JWTAccessTTL != 20*time.Minute {
		t.Fatalf("unexpected jwt access ttl: %s", cfg.Auth.JWTAccessTTL)
	}

	if cfg.Apple.ProductionURL != "https://buy.itunes.apple.com/verifyReceipt" {
		t.Fatalf("apple production url default should stay, got %s", cfg.Apple.ProductionURL)
	}
	if cfg.Apple.SandboxURL != "https://sandbox.itunes.apple.com/verifyReceipt" {
		t.Fatalf("apple sandbox url default should stay, got %s", cfg.Apple.SandboxURL)
	}
}

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	clearConfigEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("load config with missing file: %v", err)
	}

	if cfg.HTTP.Addr != ":8080" {
		t.Fatalf("unexpected default http addr: %s", cfg.HTTP.Addr)
	}
	if cfg.Apple.AttemptTimeout != 10*time.Second {
		t.Fatalf("unexpected default apple attempt timeout: %s", cfg.Apple.AttemptTimeout)
	}
	if cfg.Apple.VerifyBudget != 30*time.Second {
		t.Fatalf("unexpected default apple verify budget: %s", cfg.Apple.VerifyBudget)
	}
}

func TestLoadAppleEnvOverridesInMilliseconds(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("APPLE_SHARED_SECRET", "env-secret")
	t.Setenv("APPLE_VERIFY_PROD_URL", "http://localhost:1/verifyReceipt")
	t.Setenv("APPLE_VERIFY_SANDBOX_URL", "http://localhost:2/verifyReceipt")
	t.Setenv("APPLE_VERIFY_TIMEOUT_MS", "2500")
	t.Setenv("APPLE_VERIFY_BUDGET_MS", "9000")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if cfg.Apple.SharedSecret != "env-secret" {
		t.Fatalf("unexpected apple shared secret: %s", cfg.Apple.SharedSecret)
	}
	if cfg.Apple.ProductionURL != "http://localhost:1/verifyReceipt" {
		t.Fatalf("unexpected apple production url: %s", cfg.Apple.ProductionURL)
	}
	if cfg.Apple.SandboxURL != "http://localhost:2/verifyReceipt" {
		t.Fatalf("unexpected apple sandbox url: %s", cfg.Apple.SandboxURL)
	}
	if cfg.Apple.AttemptTimeout != 2500*time.Millisecond {
		t.Fatalf("unexpected apple attempt timeout: %s", cfg.Apple.AttemptTimeout)
	}
	if cfg.Apple.VerifyBudget != 9*time.Second {
		t.Fatalf("unexpected apple verify budget: %s", cfg.Apple.VerifyBudget)
	}
}

func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"APP_ENV",
		"HTTP_ADDR",
		"HTTP_READ_TIMEOUT",
		"HTTP_WRITE_TIMEOUT",
		"HTTP_IDLE_TIMEOUT",
		"LOG_LEVEL",
		"POSTGRES_DSN",
		"REDIS_ADDR",
		"REDIS_PASSWORD",
		"REDIS_DB",
		"S3_ENDPOINT",
		"S3_ACCESS_KEY",
		"S3_SECRET_KEY",
		"S3_BUCKET",
		"S3_USE_SSL",
		"JWT_SECRET",
		"JWT_ACCESS_TTL",
		"REFRESH_TTL",
		"APPLE_SHARED_SECRET",
		"APPLE_VERIFY_PROD_URL",
		"APPLE_VERIFY_SANDBOX_URL",
		"APPLE_VERIFY_TIMEOUT_MS",
		"APPLE_VERIFY_BUDGET_MS",
	} {
		t.Setenv(key, "")
	}
}
