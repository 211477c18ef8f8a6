package config

import (
	"strings"
	"testing"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("OTP_HASH_SECRET", "test-secret")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.ServerPort != "8080" {
		t.Errorf("expected default port 8080, got %q", cfg.ServerPort)
	}
	if cfg.OtpExpiryMinutes != 10 {
		t.Errorf("expected default otp expiry 10, got %d", cfg.OtpExpiryMinutes)
	}
	if cfg.OtpMaxAttempts != 3 {
		t.Errorf("expected default max attempts 3, got %d", cfg.OtpMaxAttempts)
	}
	if cfg.OtpMaxPerWindow != 3 {
		t.Errorf("expected default issuance cap 3, got %d", cfg.OtpMaxPerWindow)
	}
	if cfg.OtpRateWindowHours != 24 {
		t.Errorf("expected default rate window 24h, got %d", cfg.OtpRateWindowHours)
	}
	if cfg.NotificationExchange != "notifications" {
		t.Errorf("expected default exchange, got %q", cfg.NotificationExchange)
	}
	if !strings.Contains(cfg.OtpSweepSchedule, "*") {
		t.Errorf("expected a cron default sweep schedule, got %q", cfg.OtpSweepSchedule)
	}
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("OTP_HASH_SECRET", "test-secret")
	t.Setenv("SERVER_PORT", "9999")
	t.Setenv("APP_ENV", "development")
	t.Setenv("OTP_MAX_ATTEMPTS", "5")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.ServerPort != "9999" {
		t.Errorf("expected port 9999, got %q", cfg.ServerPort)
	}
	if cfg.OtpMaxAttempts != 5 {
		t.Errorf("expected max attempts 5, got %d", cfg.OtpMaxAttempts)
	}
	if !cfg.IsDevelopment() {
		t.Error("expected development mode")
	}
}

func TestLoadConfigRequiresOtpSecret(t *testing.T) {
	t.Setenv("OTP_HASH_SECRET", "")
	t.Setenv("OTP_SECRET", "")

	if _, err := LoadConfig(t.TempDir()); err == nil {
		t.Fatal("expected error when OTP_HASH_SECRET is missing")
	}
}

func TestIsDevelopment(t *testing.T) {
	cases := map[string]bool{
		"development": true,
		"dev":         true,
		"local":       true,
		" Development": true,
		"production":  false,
		"staging":     false,
		"":            false,
	}
	for env, want := range cases {
		cfg := Config{AppEnv: env}
		if got := cfg.IsDevelopment(); got != want {
			t.Errorf("IsDevelopment(%q) = %v, want %v", env, got, want)
		}
	}
}
