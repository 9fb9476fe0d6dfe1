package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bloodbridge/ui-gateway/internal/backend"
	domainauth "github.com/bloodbridge/ui-gateway/internal/domain/auth"
	errorsx "github.com/bloodbridge/ui-gateway/internal/errors"
	"github.com/bloodbridge/ui-gateway/internal/observability/metrics"
	"github.com/bloodbridge/ui-gateway/internal/observability/statsd"
	"github.com/bloodbridge/ui-gateway/internal/ports"
	"github.com/bloodbridge/ui-gateway/internal/session"
)

const defaultUpsertTimeout = 10 * time.Second

// Directory is the slice of the coordination backend the auth flows need:
// keeping the user directory in sync with the identity provider.
type Directory interface {
	UpsertUser(ctx context.Context, user backend.User) error
}

// AuthServiceOptions groups dependencies for AuthService.
type AuthServiceOptions struct {
	Provider  ports.IdentityProvider
	Federated ports.FederatedProvider
	Directory Directory
	Metrics   statsd.Sink
	Logger    *slog.Logger
	// UpsertTimeout bounds the background directory upsert after a
	// federated login. Defaults to 10s.
	UpsertTimeout time.Duration
}

// AuthService orchestrates sign-in, registration and sign-out flows,
// writing the outcome into the caller's session store.
type AuthService struct {
	provider      ports.IdentityProvider
	federated     ports.FederatedProvider
	directory     Directory
	metrics       statsd.Sink
	logger        *slog.Logger
	upsertTimeout time.Duration
}

// NewAuthService constructs a new AuthService.
func NewAuthService(opts AuthServiceOptions) *AuthService {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := opts.UpsertTimeout
	if timeout <= 0 {
		timeout = defaultUpsertTimeout
	}
	return &AuthService{
		provider:      opts.Provider,
		federated:     opts.Federated,
		directory:     opts.Directory,
		metrics:       opts.Metrics,
		logger:        logger,
		upsertTimeout: timeout,
	}
}

// SignIn authenticates the credentials and installs the identity in the
// session store. The backend role arrives asynchronously through the role
// resolver watching the store.
func (s *AuthService) SignIn(ctx context.Context, store *session.Store, email, password string) (domainauth.Identity, error) {
	started := time.Now()
	if email == "" || password == "" {
		return domainauth.Identity{}, errorsx.Validation("email and password are required")
	}
	if s.provider == nil {
		return domainauth.Identity{}, errorsx.Internal("password sign-in is not configured")
	}

	identity, err := s.provider.SignIn(ctx, email, password)
	if err != nil {
		metrics.EmitAuthFlow(s.metrics, metrics.AuthFlowMetric{
			Flow: metrics.FlowPasswordSignIn, Result: metrics.ResultError, Duration: time.Since(started), Err: err,
		})
		return domainauth.Identity{}, err
	}

	store.SetIdentity(&identity)
	metrics.EmitAuthFlow(s.metrics, metrics.AuthFlowMetric{
		Flow: metrics.FlowPasswordSignIn, Result: metrics.ResultSuccess, Duration: time.Since(started),
	})
	return identity, nil
}

// RegisterInput groups parameters for registering a new donor account.
type RegisterInput struct {
	Name       string
	Email      string
	Password   string
	AvatarURL  string
	BloodGroup string
	District   string
	Upazila    string
}

func (in RegisterInput) validate() error {
	switch {
	case in.Name == "":
		return errorsx.Validation("name is required")
	case in.Email == "":
		return errorsx.Validation("email is required")
	case in.Password == "":
		return errorsx.Validation("password is required")
	case in.BloodGroup == "":
		return errorsx.Validation("blood group is required")
	case in.District == "", in.Upazila == "":
		return errorsx.Validation("district and upazila are required")
	}
	return nil
}

// Register creates the account with the identity provider, applies display
// metadata, and records the donor in the coordination backend. The three
// steps run in order with no rollback: a later failure returns an error but
// leaves the earlier steps in place, so the caller may retry with the same
// email and find the account already exists.
func (s *AuthService) Register(ctx context.Context, store *session.Store, in RegisterInput) (domainauth.Identity, error) {
	started := time.Now()
	if err := in.validate(); err != nil {
		return domainauth.Identity{}, err
	}
	if s.provider == nil {
		return domainauth.Identity{}, errorsx.Internal("registration is not configured")
	}

	identity, err := s.provider.CreateAccount(ctx, in.Email, in.Password)
	if err != nil {
		metrics.EmitAuthFlow(s.metrics, metrics.AuthFlowMetric{
			Flow: metrics.FlowRegistration, Result: metrics.ResultError, Duration: time.Since(started), Err: err,
		})
		return domainauth.Identity{}, err
	}
	store.SetIdentity(&identity)

	updated, err := s.provider.UpdateAccountProfile(ctx, ports.ProfileUpdate{
		SubjectID:   identity.SubjectID,
		DisplayName: in.Name,
		AvatarURL:   in.AvatarURL,
	})
	if err != nil {
		metrics.EmitAuthFlow(s.metrics, metrics.AuthFlowMetric{
			Flow: metrics.FlowRegistration, Result: metrics.ResultError, Duration: time.Since(started), Err: err,
		})
		return identity, fmt.Errorf("apply profile: %w", err)
	}
	updated.Email = identity.Email
	updated.ExpiresAt = identity.ExpiresAt
	store.SetIdentity(&updated)

	if err := s.directory.UpsertUser(ctx, backend.User{
		Name:       in.Name,
		Email:      in.Email,
		Avatar:     in.AvatarURL,
		Role:       string(domainauth.RoleDonor),
		Status:     backend.UserStatusActive,
		BloodGroup: in.BloodGroup,
		District:   in.District,
		Upazila:    in.Upazila,
	}); err != nil {
		metrics.EmitAuthFlow(s.metrics, metrics.AuthFlowMetric{
			Flow: metrics.FlowRegistration, Result: metrics.ResultError, Duration: time.Since(started), Err: err,
		})
		return updated, fmt.Errorf("record donor: %w", err)
	}

	metrics.EmitAuthFlow(s.metrics, metrics.AuthFlowMetric{
		Flow: metrics.FlowRegistration, Result: metrics.ResultSuccess, Duration: time.Since(started),
	})
	return updated, nil
}

// BeginLoginResult contains the result of beginning a federated login flow.
type BeginLoginResult struct {
	AuthURL string
	State   string
	Nonce   string
}

// BeginFederatedLogin initiates the federated flow and returns the provider
// auth URL with state and nonce for the caller to stash.
func (s *AuthService) BeginFederatedLogin(ctx context.Context, redirectURL string) (*BeginLoginResult, error) {
	if redirectURL == "" {
		return nil, errorsx.Validation("redirect URL is required")
	}
	if s.federated == nil {
		return nil, errorsx.Internal("federated sign-in is not configured")
	}

	authURL, state, nonce, err := s.federated.Begin(ctx, ports.BeginInput{RedirectURL: redirectURL})
	if err != nil {
		return nil, fmt.Errorf("begin auth flow: %w", err)
	}

	return &BeginLoginResult{
		AuthURL: authURL,
		State:   state,
		Nonce:   nonce,
	}, nil
}

// CompleteLoginInput groups parameters for completing a federated login.
type CompleteLoginInput struct {
	Code  string
	State string
	Nonce string
}

// CompleteFederatedLogin exchanges the code for an identity, installs it in
// the session store, and records the user in the backend directory in the
// background. A directory failure never blocks the sign-in; it is logged
// and the user proceeds without a backend record until the next login.
func (s *AuthService) CompleteFederatedLogin(ctx context.Context, store *session.Store, in CompleteLoginInput) (domainauth.Identity, error) {
	started := time.Now()
	if in.Code == "" {
		return domainauth.Identity{}, errorsx.Validation("authorization code is required")
	}
	if in.State == "" {
		return domainauth.Identity{}, errorsx.Validation("state parameter is required")
	}
	if in.Nonce == "" {
		return domainauth.Identity{}, errorsx.Validation("nonce parameter is required")
	}
	if s.federated == nil {
		return domainauth.Identity{}, errorsx.Internal("federated sign-in is not configured")
	}

	identity, err := s.federated.Exchange(ctx, ports.ExchangeInput{
		Code:  in.Code,
		State: in.State,
		Nonce: in.Nonce,
	})
	if err != nil {
		metrics.EmitAuthFlow(s.metrics, metrics.AuthFlowMetric{
			Flow: metrics.FlowFederated, Result: metrics.ResultError, Duration: time.Since(started), Err: err,
		})
		return domainauth.Identity{}, fmt.Errorf("exchange authorization code: %w", err)
	}

	store.SetIdentity(&identity)

	if identity.Email != "" {
		go s.upsertFederatedUser(identity)
	}

	metrics.EmitAuthFlow(s.metrics, metrics.AuthFlowMetric{
		Flow: metrics.FlowFederated, Result: metrics.ResultSuccess, Duration: time.Since(started),
	})
	return identity, nil
}

// upsertFederatedUser records a federated login in the backend directory.
// New users default to the donor role with an active status; existing
// records are refreshed with the provider's display metadata.
func (s *AuthService) upsertFederatedUser(identity domainauth.Identity) {
	ctx, cancel := context.WithTimeout(context.Background(), s.upsertTimeout)
	defer cancel()

	err := s.directory.UpsertUser(ctx, backend.User{
		Name:       identity.DisplayName,
		Email:      identity.Email,
		Avatar:     identity.AvatarURL,
		Role:       string(domainauth.RoleDonor),
		Status:     backend.UserStatusActive,
		BloodGroup: "",
		District:   "",
		Upazila:    "",
	})
	if err != nil {
		s.logger.Warn("directory upsert after federated login failed",
			"email", identity.Email,
			"error", err)
	}
}

// SignOut revokes the provider session and clears the store. Local state is
// cleared even when the provider call fails so the browser session never
// stays signed in against a dead provider session.
func (s *AuthService) SignOut(ctx context.Context, store *session.Store) error {
	snap := store.Snapshot()
	store.SetIdentity(nil)
	if snap.Identity == nil || s.provider == nil {
		return nil
	}

	if err := s.provider.SignOut(ctx, snap.Identity.SubjectID); err != nil {
		metrics.EmitAuthFlow(s.metrics, metrics.AuthFlowMetric{
			Flow: metrics.FlowSignOut, Result: metrics.ResultError, Err: err,
		})
		return fmt.Errorf("revoke provider session: %w", err)
	}
	metrics.EmitAuthFlow(s.metrics, metrics.AuthFlowMetric{
		Flow: metrics.FlowSignOut, Result: metrics.ResultSuccess,
	})
	return nil
}
