package bootstrap

import (
	"context"
	"log/slog"

	"github.com/bloodbridge/ui-gateway/config"
	"github.com/bloodbridge/ui-gateway/internal/adapters/devauth"
	"github.com/bloodbridge/ui-gateway/internal/adapters/idtoolkit"
	"github.com/bloodbridge/ui-gateway/internal/adapters/oidc"
	domainauth "github.com/bloodbridge/ui-gateway/internal/domain/auth"
	errorsx "github.com/bloodbridge/ui-gateway/internal/errors"
	"github.com/bloodbridge/ui-gateway/internal/ports"
)

// AuthStack bundles the identity-provider ports built for the configured
// auth mode. Fields may be nil when the mode does not cover the concern;
// the auth service and session manager degrade per missing port.
type AuthStack struct {
	Provider  ports.IdentityProvider
	Federated ports.FederatedProvider
	Tokens    ports.TokenSource
	Prober    ports.SessionProber
}

// AuthStackConfig contains configuration for the auth stack.
type AuthStackConfig struct {
	Auth   config.AuthConfig
	Logger *slog.Logger
}

// BuildAuthStack creates the provider adapters for the configured auth
// mode. Returns a zero stack when configuration is missing or invalid; the
// gateway then serves public routes but every sign-in fails.
func BuildAuthStack(cfg AuthStackConfig) AuthStack {
	switch cfg.Auth.Mode {
	case config.AuthModeMock:
		return buildDevAuthStack(cfg)

	case config.AuthModePassword:
		return buildPasswordStack(cfg)

	case config.AuthModeOAuth:
		return buildOAuthStack(cfg)

	default:
		if cfg.Logger != nil {
			cfg.Logger.Warn("unknown auth mode; auth disabled", "mode", cfg.Auth.Mode)
		}
		return AuthStack{}
	}
}

func buildDevAuthStack(cfg AuthStackConfig) AuthStack {
	// Explicitly enabled dev auth mode; build a local provider.
	prov, err := devauth.NewProvider(devauth.Config{
		Email:       cfg.Auth.DevAuth.Email,
		Password:    cfg.Auth.DevAuth.Password,
		DisplayName: cfg.Auth.DevAuth.Name,
		// session duration defaults inside provider
	})
	if err != nil {
		if cfg.Logger != nil {
			cfg.Logger.Warn("failed to create dev auth provider, auth disabled", "error", err)
		}
		return AuthStack{}
	}

	return AuthStack{
		Provider:  prov,
		Federated: prov,
		Tokens:    prov,
		Prober:    prov,
	}
}

func buildPasswordStack(cfg AuthStackConfig) AuthStack {
	prov := buildToolkitProvider(cfg)
	if prov == nil {
		if cfg.Logger != nil {
			toolkit := cfg.Auth.Toolkit
			cfg.Logger.Warn("AuthModePassword selected but required config missing; auth disabled",
				"base_url_empty", toolkit.BaseURL == "",
				"api_key_empty", toolkit.APIKey == "",
			)
		}
		return AuthStack{}
	}

	stack := AuthStack{
		Provider: prov,
		Tokens:   prov,
		Prober:   prov,
	}

	// Federated sign-in stays available alongside the password surface
	// when the OIDC relying party is also configured.
	if federated := buildOIDCProvider(cfg); federated != nil {
		stack.Federated = federated
	}

	return stack
}

func buildOAuthStack(cfg AuthStackConfig) AuthStack {
	federated := buildOIDCProvider(cfg)
	if federated == nil {
		if cfg.Logger != nil {
			oauth := cfg.Auth.OAuth
			cfg.Logger.Warn("AuthModeOAuth selected but required config missing; auth disabled",
				"issuer_url_empty", oauth.IssuerURL == "",
				"client_id_empty", oauth.ClientID == "",
				"client_secret_empty", oauth.ClientSecret == "",
			)
		}
		return AuthStack{}
	}

	stack := AuthStack{
		Federated: federated,
		Tokens:    federated,
		Prober:    federated,
	}

	// A toolkit provider keeps the password endpoints working; without one
	// the stack still needs a sign-out path for federated sessions.
	if prov := buildToolkitProvider(cfg); prov != nil {
		stack.Provider = prov
	} else {
		stack.Provider = &federatedOnlyProvider{signOut: federated.SignOut}
	}

	return stack
}

func buildToolkitProvider(cfg AuthStackConfig) *idtoolkit.Provider {
	toolkit := cfg.Auth.Toolkit
	if toolkit.BaseURL == "" || toolkit.APIKey == "" {
		return nil
	}

	prov, err := idtoolkit.NewProvider(idtoolkit.Config{
		BaseURL:  toolkit.BaseURL,
		TokenURL: toolkit.TokenURL,
		APIKey:   toolkit.APIKey,
		ClaimMap: idtoolkit.ClaimMap{
			SubjectID:   toolkit.SubjectClaim,
			Email:       toolkit.EmailClaim,
			DisplayName: toolkit.NameClaim,
			AvatarURL:   toolkit.AvatarClaim,
		},
	})
	if err != nil {
		if cfg.Logger != nil {
			cfg.Logger.Warn("failed to create identity toolkit provider", "error", err)
		}
		return nil
	}
	return prov
}

func buildOIDCProvider(cfg AuthStackConfig) *oidc.Provider {
	oauth := cfg.Auth.OAuth
	if oauth.IssuerURL == "" || oauth.ClientID == "" || oauth.ClientSecret == "" {
		return nil
	}

	prov, err := oidc.NewProvider(oidc.ProviderConfig{
		ClientID:     oauth.ClientID,
		ClientSecret: oauth.ClientSecret,
		RedirectURL:  oauth.RedirectURL,
		Scope:        oauth.Scope,
		DiscoveryURL: oauth.IssuerURL,
	})
	if err != nil {
		if cfg.Logger != nil {
			cfg.Logger.Warn("failed to create OIDC provider", "error", err)
		}
		return nil
	}
	return prov
}

// federatedOnlyProvider fills the credential port for deployments with no
// password surface. Credential operations are rejected; sign-out still
// revokes the federated provider session.
type federatedOnlyProvider struct {
	signOut func(ctx context.Context, subjectID string) error
}

var _ ports.IdentityProvider = (*federatedOnlyProvider)(nil)

func (p *federatedOnlyProvider) SignIn(context.Context, string, string) (domainauth.Identity, error) {
	return domainauth.Identity{}, errorsx.Internal("password sign-in is not configured")
}

func (p *federatedOnlyProvider) CreateAccount(context.Context, string, string) (domainauth.Identity, error) {
	return domainauth.Identity{}, errorsx.Internal("registration is not configured")
}

func (p *federatedOnlyProvider) UpdateAccountProfile(context.Context, ports.ProfileUpdate) (domainauth.Identity, error) {
	return domainauth.Identity{}, errorsx.Internal("profile updates are not configured")
}

func (p *federatedOnlyProvider) SignOut(ctx context.Context, subjectID string) error {
	return p.signOut(ctx, subjectID)
}
