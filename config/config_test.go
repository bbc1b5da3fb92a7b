package config

import (
	"os"
	"testing"
	"time"
)

func TestParseDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/rt")

	cfg, err := Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Server.Port != "5200" {
		t.Errorf("port: got %q, want %q", cfg.Server.Port, "5200")
	}
	if len(cfg.Server.AllowedOrigins) != 1 || cfg.Server.AllowedOrigins[0] != "http://localhost:3000" {
		t.Errorf("origins: got %v", cfg.Server.AllowedOrigins)
	}
	if cfg.Database.StoreTimeout != 5*time.Second {
		t.Errorf("store timeout: got %v, want 5s", cfg.Database.StoreTimeout)
	}
	if cfg.Limits.MaxDailySubmissions != 3 {
		t.Errorf("daily cap: got %d, want 3", cfg.Limits.MaxDailySubmissions)
	}
	if cfg.Jobs.RankRepairInterval != time.Hour {
		t.Errorf("rank repair: got %v, want 1h", cfg.Jobs.RankRepairInterval)
	}
	if cfg.Auth.UsesJWT() {
		t.Error("UsesJWT without a secret")
	}
}

func TestParseOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/rt")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example,https://b.example")
	t.Setenv("STORE_TIMEOUT", "250ms")
	t.Setenv("MAX_DAILY_SUBMISSIONS", "5")
	t.Setenv("AUTH_JWT_SECRET", "s3cret")

	cfg, err := Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := cfg.Server.AllowedOrigins; len(got) != 2 || got[1] != "https://b.example" {
		t.Errorf("origins: got %v", got)
	}
	if cfg.Database.StoreTimeout != 250*time.Millisecond {
		t.Errorf("store timeout: got %v", cfg.Database.StoreTimeout)
	}
	if cfg.Limits.MaxDailySubmissions != 5 {
		t.Errorf("daily cap: got %d, want 5", cfg.Limits.MaxDailySubmissions)
	}
	if !cfg.Auth.UsesJWT() {
		t.Error("UsesJWT: got false")
	}
}

func TestParseRequiresDatabaseURL(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		t.Setenv("DATABASE_URL", "")
		if _, err := Parse(); err == nil {
			t.Fatal("expected error for empty DATABASE_URL")
		}
	})
	t.Run("unset", func(t *testing.T) {
		t.Setenv("DATABASE_URL", "")
		os.Unsetenv("DATABASE_URL")
		if _, err := Parse(); err == nil {
			t.Fatal("expected error without DATABASE_URL")
		}
	})
}
