package devauth

// Package devauth provides a simple, in-memory identity provider for local
// development. It serves both the password and the federated surface so the
// gateway can run without any external auth service.

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"strconv"
	"sync"
	"time"

	domainauth "github.com/bloodbridge/ui-gateway/internal/domain/auth"
	errorsx "github.com/bloodbridge/ui-gateway/internal/errors"
	"github.com/bloodbridge/ui-gateway/internal/ports"
)

// Config controls the dev auth provider behavior. Email and Password seed
// one pre-created account; more can be registered at runtime.
type Config struct {
	Email           string
	Password        string
	DisplayName     string
	SessionDuration time.Duration // default 8h when zero
}

type account struct {
	subjectID   string
	email       string
	password    string
	displayName string
	avatarURL   string
}

// Provider implements the identity provider ports against in-memory
// accounts. The federated flow short-circuits by redirecting straight back
// to the local callback.
type Provider struct {
	sessionDuration time.Duration

	mu          sync.Mutex
	accounts    map[string]*account // keyed by email
	subjects    map[string]*account // keyed by subject ID
	nextID      int
	tokenSerial int
}

// NewProvider constructs a dev auth provider from cfg.
func NewProvider(cfg Config) (*Provider, error) {
	if cfg.Email == "" {
		return nil, errors.New("dev auth: Email is required")
	}
	dur := cfg.SessionDuration
	if dur == 0 {
		dur = 8 * time.Hour
	}
	p := &Provider{
		sessionDuration: dur,
		accounts:        make(map[string]*account),
		subjects:        make(map[string]*account),
	}
	p.register(cfg.Email, cfg.Password, cfg.DisplayName)
	return p, nil
}

func (p *Provider) register(email, password, displayName string) *account {
	p.nextID++
	acct := &account{
		subjectID:   "dev-" + strconv.Itoa(p.nextID),
		email:       email,
		password:    password,
		displayName: displayName,
	}
	p.accounts[email] = acct
	p.subjects[acct.subjectID] = acct
	return acct
}

func (p *Provider) identity(acct *account) domainauth.Identity {
	return domainauth.Identity{
		SubjectID:   acct.subjectID,
		Email:       acct.email,
		DisplayName: acct.displayName,
		AvatarURL:   acct.avatarURL,
		ExpiresAt:   time.Now().Add(p.sessionDuration),
	}
}

func (p *Provider) SignIn(_ context.Context, email, password string) (domainauth.Identity, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	acct, ok := p.accounts[email]
	if !ok || acct.password != password {
		return domainauth.Identity{}, errorsx.InvalidCredentials("email or password is incorrect")
	}
	return p.identity(acct), nil
}

func (p *Provider) CreateAccount(_ context.Context, email, password string) (domainauth.Identity, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.accounts[email]; exists {
		return domainauth.Identity{}, errorsx.Validation("an account with this email already exists")
	}
	return p.identity(p.register(email, password, "")), nil
}

func (p *Provider) UpdateAccountProfile(_ context.Context, update ports.ProfileUpdate) (domainauth.Identity, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	acct, ok := p.subjects[update.SubjectID]
	if !ok {
		return domainauth.Identity{}, errorsx.NotFoundf("account %q", update.SubjectID)
	}
	acct.displayName = update.DisplayName
	acct.avatarURL = update.AvatarURL
	return p.identity(acct), nil
}

func (p *Provider) SignOut(_ context.Context, _ string) error {
	return nil
}

// FreshToken mints a unique dev token per call.
func (p *Provider) FreshToken(_ context.Context, subjectID string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.subjects[subjectID]; !ok {
		return "", errorsx.Unauthenticated("no provider session for subject")
	}
	p.tokenSerial++
	return "dev-token-" + subjectID + "-" + strconv.Itoa(p.tokenSerial), nil
}

func (p *Provider) Probe(_ context.Context, subjectID string) (domainauth.Identity, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	acct, ok := p.subjects[subjectID]
	if !ok {
		return domainauth.Identity{}, errorsx.NotFoundf("account %q", subjectID)
	}
	return p.identity(acct), nil
}

// Begin returns a local callback URL with generated state and nonce.
func (p *Provider) Begin(_ context.Context, _ ports.BeginInput) (string, string, string, error) {
	state, err := randomString(24)
	if err != nil {
		return "", "", "", err
	}
	nonce, err := randomString(24)
	if err != nil {
		return "", "", "", err
	}
	// The standard handler expects GET /auth/callback?code=...&state=...
	authURL := "/auth/callback?code=dev&state=" + state
	return authURL, state, nonce, nil
}

// Exchange ignores the code and returns the seeded account's identity.
func (p *Provider) Exchange(_ context.Context, _ ports.ExchangeInput) (domainauth.Identity, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, acct := range p.subjects {
		if acct.subjectID == "dev-1" {
			return p.identity(acct), nil
		}
	}
	return domainauth.Identity{}, errorsx.Internal("dev account missing")
}

func randomString(n int) (string, error) {
	if n <= 0 {
		return "", nil
	}
	bLen := (n*3 + 3) / 4
	b := make([]byte, bLen)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	s := base64.RawURLEncoding.EncodeToString(b)
	if len(s) < n {
		extra := make([]byte, 1)
		if _, err := rand.Read(extra); err != nil {
			return "", err
		}
		s += base64.RawURLEncoding.EncodeToString(extra)
	}
	return s[:n], nil
}

var (
	_ ports.IdentityProvider  = (*Provider)(nil)
	_ ports.FederatedProvider = (*Provider)(nil)
	_ ports.TokenSource       = (*Provider)(nil)
	_ ports.SessionProber     = (*Provider)(nil)
)
