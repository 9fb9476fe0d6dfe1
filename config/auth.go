package config

import (
	"fmt"
	"strings"
)

// AuthMode represents the identity provider mode for the gateway.
type AuthMode string

const (
	// AuthModeOAuth uses OIDC for federated authentication.
	AuthModeOAuth AuthMode = "oauth"
	// AuthModePassword uses the identity-toolkit REST provider for
	// email/password authentication.
	AuthModePassword AuthMode = "password"
	// AuthModeMock uses the in-memory dev provider (for development only).
	AuthModeMock AuthMode = "mock"
)

// UnmarshalText implements encoding.TextUnmarshaler for AuthMode.
func (a *AuthMode) UnmarshalText(text []byte) error {
	v := strings.ToLower(string(text))
	switch v {
	case "oauth", "password", "mock":
		*a = AuthMode(v)
		return nil
	default:
		return fmt.Errorf("invalid AuthMode: %q (valid options: oauth, password, mock)", v)
	}
}

// OAuthConfig contains OIDC configuration for federated sign-in.
type OAuthConfig struct {
	ClientID     string `env:"CLIENT_ID"     envDefault:"bloodbridge"`
	ClientSecret string `env:"CLIENT_SECRET"`
	IssuerURL    string `env:"ISSUER_URL"`
	RedirectURL  string `env:"REDIRECT_URL"  envDefault:"http://localhost:8080/auth/callback"`
	Scope        string `env:"SCOPE"         envDefault:"openid profile email"`
}

// ToolkitConfig contains configuration for the identity-toolkit REST
// provider. The claim expressions are jmespath queries over the provider's
// account payload; leave them empty to use the provider defaults.
type ToolkitConfig struct {
	BaseURL  string `env:"BASE_URL"`
	TokenURL string `env:"TOKEN_URL"`
	APIKey   string `env:"API_KEY"`

	SubjectClaim string `env:"SUBJECT_CLAIM"`
	EmailClaim   string `env:"EMAIL_CLAIM"`
	NameClaim    string `env:"NAME_CLAIM"`
	AvatarClaim  string `env:"AVATAR_CLAIM"`
}

// DevAuthConfig controls the mock provider identity used when
// AUTH_MODE=mock for development and testing.
type DevAuthConfig struct {
	Email    string `env:"EMAIL"    envDefault:"dev@example.com"`
	Password string `env:"PASSWORD" envDefault:"devpass"`
	Name     string `env:"NAME"     envDefault:"Dev User"`
}

// AuthConfig groups all authentication-related configuration.
type AuthConfig struct {
	// Mode determines which identity provider to use.
	Mode AuthMode `env:"AUTH_MODE" envDefault:"oauth"`

	// OAuth configuration (used when Mode=oauth).
	OAuth OAuthConfig `envPrefix:"OAUTH_"`

	// Toolkit configuration (used when Mode=password).
	Toolkit ToolkitConfig `envPrefix:"TOOLKIT_"`

	// DevAuth configuration (used when Mode=mock).
	DevAuth DevAuthConfig `envPrefix:"DEV_AUTH_"`
}

// Sanitize applies guardrails to auth configuration values.
func (a *AuthConfig) Sanitize() {
	a.OAuth.IssuerURL = strings.TrimSpace(a.OAuth.IssuerURL)
	a.Toolkit.BaseURL = strings.TrimRight(strings.TrimSpace(a.Toolkit.BaseURL), "/")
	a.Toolkit.TokenURL = strings.TrimRight(strings.TrimSpace(a.Toolkit.TokenURL), "/")
}
