package config

import "time"

const defaultSessionTTL = 24 * time.Hour

// SessionConfig contains session lifetime configuration.
type SessionConfig struct {
	// TTL is the browser session lifetime, refreshed on activity.
	TTL time.Duration `env:"SESSION_TTL" envDefault:"24h"`
}

// Sanitize applies guardrails to session configuration values.
func (s *SessionConfig) Sanitize() {
	if s.TTL <= 0 {
		s.TTL = defaultSessionTTL
	}
}
