// Package session owns the realtime connection to the model service: dialing,
// the setup handshake, outbound frame transmission, and inbound dispatch to
// playback, tools, and the state store.
package session

import "time"

const (
	// DefaultModel is the realtime multimodal model spoken to over the wire.
	DefaultModel = "models/gemini-2.0-flash-exp"

	// DefaultDialTimeout bounds dialing plus the setup handshake.
	DefaultDialTimeout = 15 * time.Second
)

// Profile is the user-facing configuration the engine folds into the session
// negotiation: identity for the system instruction, voice selection, and the
// billing/integration flags that drive credential resolution.
type Profile struct {
	Name           string
	Location       string
	Language       string
	Tier           string
	VoiceGender    string // "male", "female" or "neutral"
	PreferredVoice string

	// UsePlatformVoice selects the platform credential; when the user opts
	// out, their own key is used instead.
	UsePlatformVoice bool

	// WebSearchEnabled appends the search capability to the setup frame.
	WebSearchEnabled bool
}

// Config is everything needed to open a session.
type Config struct {
	// Endpoint is the WebSocket URL of the relay's bridge path.
	Endpoint string

	Model       string
	PlatformKey string
	UserKey     string
	DialTimeout time.Duration

	Profile Profile
}

func (c Config) model() string {
	if c.Model != "" {
		return c.Model
	}
	return DefaultModel
}

func (c Config) dialTimeout() time.Duration {
	if c.DialTimeout > 0 {
		return c.DialTimeout
	}
	return DefaultDialTimeout
}
