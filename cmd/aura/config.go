package main

import (
	"os"
	"strconv"

	"github.com/aura-voice/aura/pkg/session"
)

// clientConfig is the headless client's environment-driven configuration.
type clientConfig struct {
	Session session.Config

	// RelayBase is the relay's HTTP base URL for the aggregation endpoints.
	RelayBase string

	// DatabaseURL enables the Postgres-backed entity store when set.
	DatabaseURL string
}

const defaultLiveEndpoint = "ws://localhost:3001/api-proxy/ws/google.ai.generativelanguage.v1beta.GenerativeService.BidiGenerateContent"

func loadClientConfig() (clientConfig, error) {
	cfg := clientConfig{
		Session: session.Config{
			Endpoint:    envOr("AURA_LIVE_ENDPOINT", defaultLiveEndpoint),
			Model:       envOr("AURA_MODEL", session.DefaultModel),
			PlatformKey: os.Getenv("AURA_PLATFORM_API_KEY"),
			UserKey:     os.Getenv("AURA_USER_API_KEY"),
			Profile: session.Profile{
				Name:             os.Getenv("AURA_USER_NAME"),
				Location:         envOr("AURA_USER_LOCATION", "Lisboa"),
				Language:         envOr("AURA_LANGUAGE", "Portuguese"),
				Tier:             os.Getenv("AURA_TIER"),
				VoiceGender:      os.Getenv("AURA_VOICE_GENDER"),
				PreferredVoice:   os.Getenv("AURA_VOICE_NAME"),
				UsePlatformVoice: envBoolOr("AURA_USE_PLATFORM_VOICE", true),
				WebSearchEnabled: envBoolOr("AURA_WEB_SEARCH", false),
			},
		},
		RelayBase:   envOr("AURA_RELAY_URL", "http://localhost:3001"),
		DatabaseURL: os.Getenv("AURA_DATABASE_URL"),
	}
	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
