package session

import "github.com/aura-voice/aura/pkg/core"

// ResolveCredential selects which API key the session dials with. Users on
// the platform voice offering get the platform key; users who opted out use
// their own. Absence of the selected key fails the connect attempt before any
// transport is opened.
func (c Config) ResolveCredential() (string, error) {
	if c.Profile.UsePlatformVoice {
		if c.PlatformKey != "" {
			return c.PlatformKey, nil
		}
		return "", core.NewCredentialMissingError()
	}
	if c.UserKey != "" {
		return c.UserKey, nil
	}
	return "", core.NewCredentialMissingError()
}
