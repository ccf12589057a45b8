package session

import (
	"fmt"
	"strings"
)

// VoiceName maps the profile to a synthetic voice identity: an explicit
// preference wins, then gender, defaulting to Kore.
func VoiceName(p Profile) string {
	if p.PreferredVoice != "" {
		return p.PreferredVoice
	}
	switch p.VoiceGender {
	case "male":
		return "Puck"
	case "neutral":
		return "Aoede"
	}
	return "Kore"
}

// BuildSystemInstruction composes the session's system instruction from the
// user profile, location, and billing context.
func BuildSystemInstruction(p Profile) string {
	var b strings.Builder

	b.WriteString("You are Aura, a helpful realtime voice assistant. ")
	b.WriteString("Keep spoken responses short and natural. ")
	b.WriteString("Use the provided functions to operate the app instead of describing actions.")

	if p.Name != "" {
		fmt.Fprintf(&b, " The user's name is %s; address them by name when natural.", p.Name)
	}
	if p.Language != "" {
		fmt.Fprintf(&b, " Always respond in %s.", p.Language)
	}
	if p.Location != "" {
		fmt.Fprintf(&b, " The user is located in %s; use this for time, weather and local context.", p.Location)
	}
	if p.Tier != "" {
		fmt.Fprintf(&b, " The user is on the %s plan.", p.Tier)
	}
	return b.String()
}
