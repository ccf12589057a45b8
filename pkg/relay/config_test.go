package relay

import (
	"testing"
	"time"
)

func TestLoadFromEnvDefaults(t *testing.T) {
	t.Setenv("AURA_GEMINI_API_KEY", "secret")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":3001" {
		t.Fatalf("addr = %q", cfg.Addr)
	}
	if cfg.RateLimit != 100 || cfg.RateWindow != 15*time.Minute {
		t.Fatalf("rate defaults = %d/%s", cfg.RateLimit, cfg.RateWindow)
	}
	if cfg.UpstreamHTTP == "" || cfg.UpstreamWS == "" {
		t.Fatal("upstream defaults missing")
	}
}

func TestLoadFromEnvRequiresKey(t *testing.T) {
	t.Setenv("AURA_GEMINI_API_KEY", "")
	if _, err := LoadFromEnv(); err == nil {
		t.Fatal("expected error without server credential")
	}
}

func TestLoadFromEnvValidatesRate(t *testing.T) {
	t.Setenv("AURA_GEMINI_API_KEY", "secret")
	t.Setenv("AURA_RELAY_RATE_LIMIT", "-5")
	if _, err := LoadFromEnv(); err == nil {
		t.Fatal("expected error for negative rate limit")
	}
}
