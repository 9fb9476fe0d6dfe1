package ports

// Package ports defines interfaces (hexagonal ports) for session and
// authorization behavior. Implementations live in internal/adapters;
// orchestration in internal/service.

import (
	"context"

	domainauth "github.com/bloodbridge/ui-gateway/internal/domain/auth"
)

// ProfileUpdate carries display metadata applied to an existing identity.
type ProfileUpdate struct {
	SubjectID   string
	DisplayName string
	AvatarURL   string
}

// IdentityProvider is the email/password surface of the external
// authentication service. It owns the only code path allowed to touch
// raw credentials.
type IdentityProvider interface {
	// SignIn authenticates an existing account. Rejected credentials
	// surface as an invalid_credentials error, transport failures as
	// network errors.
	SignIn(ctx context.Context, email, password string) (domainauth.Identity, error)

	// CreateAccount registers a new identity with the provider.
	CreateAccount(ctx context.Context, email, password string) (domainauth.Identity, error)

	// UpdateAccountProfile sets display name and avatar on the identity
	// record and returns the updated identity.
	UpdateAccountProfile(ctx context.Context, update ProfileUpdate) (domainauth.Identity, error)

	// SignOut revokes the provider session for the subject.
	SignOut(ctx context.Context, subjectID string) error
}

// TokenSource mints a short-lived bearer token for the subject. Tokens are
// requested per outgoing call; callers never cache them beyond the
// provider's own refresh machinery.
type TokenSource interface {
	FreshToken(ctx context.Context, subjectID string) (string, error)
}

// SessionProber re-validates a restored identity against the provider,
// covering the initial-load notification a long-lived client would get
// from its auth-state subscription.
type SessionProber interface {
	// Probe returns the current identity for the subject, or a
	// not_found/unauthenticated error when the provider session is gone.
	Probe(ctx context.Context, subjectID string) (domainauth.Identity, error)
}

// BeginInput carries inputs for initiating a federated auth flow.
type BeginInput struct {
	RedirectURL string
}

// ExchangeInput groups parameters for the code/token exchange.
type ExchangeInput struct {
	Code  string
	State string
	Nonce string
}

// FederatedProvider initiates and completes a federated (OIDC) sign-in flow.
type FederatedProvider interface {
	// Begin starts the flow and returns the provider auth URL, an opaque
	// state, and a nonce.
	Begin(ctx context.Context, in BeginInput) (authURL, state, nonce string, err error)

	// Exchange completes the flow, verifying state and nonce, and returns
	// the authenticated identity.
	Exchange(ctx context.Context, in ExchangeInput) (domainauth.Identity, error)
}

// RoleSource resolves the application role for an identity, keyed by email.
// Unknown users surface as a not_found error, never a zero-value role with
// nil error.
type RoleSource interface {
	RoleByEmail(ctx context.Context, email string) (domainauth.Role, error)
}

// SessionPersistence stores session snapshots so a restarted gateway can
// restore browser sessions. Misses surface as not_found errors.
type SessionPersistence interface {
	Save(ctx context.Context, sess domainauth.Session) error
	Get(ctx context.Context, id string) (domainauth.Session, error)
	Delete(ctx context.Context, id string) error
}
