// Package relay implements the backend proxy: HTTP forwarding with
// credential injection, WebSocket bridging, rate limiting, and the small REST
// aggregation endpoints the client consumes.
package relay

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config is the relay process configuration, loaded from the environment.
type Config struct {
	// Addr is the listen address.
	Addr string

	// UpstreamHTTP and UpstreamWS are the model provider's base URLs.
	UpstreamHTTP string
	UpstreamWS   string

	// GeminiKey is the server-held credential injected into proxied
	// requests so clients never carry it.
	GeminiKey string

	// Aggregation upstream keys. Empty keys make the endpoint serve mock
	// data instead of calling out.
	GNewsKey   string
	WeatherKey string
	SerperKey  string

	// CachePath is the badger directory for last-good responses. Empty
	// selects an in-memory cache.
	CachePath string

	// RateLimit allows this many proxy requests per RateWindow per client.
	RateLimit  int
	RateWindow time.Duration

	ShutdownGrace time.Duration
}

// LoadFromEnv reads AURA_RELAY_* variables, applying defaults and validating.
func LoadFromEnv() (Config, error) {
	cfg := Config{
		Addr:          envOr("AURA_RELAY_ADDR", ":3001"),
		UpstreamHTTP:  envOr("AURA_UPSTREAM_HTTP", "https://generativelanguage.googleapis.com"),
		UpstreamWS:    envOr("AURA_UPSTREAM_WS", "wss://generativelanguage.googleapis.com"),
		GeminiKey:     os.Getenv("AURA_GEMINI_API_KEY"),
		GNewsKey:      os.Getenv("AURA_GNEWS_API_KEY"),
		WeatherKey:    os.Getenv("AURA_OPENWEATHER_API_KEY"),
		SerperKey:     os.Getenv("AURA_SERPER_API_KEY"),
		CachePath:     os.Getenv("AURA_RELAY_CACHE_PATH"),
		RateLimit:     envIntOr("AURA_RELAY_RATE_LIMIT", 100),
		RateWindow:    envDurationOr("AURA_RELAY_RATE_WINDOW", 15*time.Minute),
		ShutdownGrace: envDurationOr("AURA_RELAY_SHUTDOWN_GRACE", 10*time.Second),
	}

	if cfg.Addr == "" {
		return Config{}, fmt.Errorf("AURA_RELAY_ADDR must not be empty")
	}
	if cfg.GeminiKey == "" {
		return Config{}, fmt.Errorf("AURA_GEMINI_API_KEY is required")
	}
	if cfg.RateLimit <= 0 {
		return Config{}, fmt.Errorf("AURA_RELAY_RATE_LIMIT must be positive, got %d", cfg.RateLimit)
	}
	if cfg.RateWindow <= 0 {
		return Config{}, fmt.Errorf("AURA_RELAY_RATE_WINDOW must be positive, got %s", cfg.RateWindow)
	}
	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
