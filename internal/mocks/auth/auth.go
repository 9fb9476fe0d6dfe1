package auth

// Package auth contains simple hand-written test doubles for the auth
// ports. These are lightweight and suitable for unit tests without codegen.

import (
	"context"
	"strconv"
	"sync"
	"time"

	domainauth "github.com/bloodbridge/ui-gateway/internal/domain/auth"
	errorsx "github.com/bloodbridge/ui-gateway/internal/errors"
	"github.com/bloodbridge/ui-gateway/internal/ports"
)

// Ensure compile-time conformance to ports.
var (
	_ ports.IdentityProvider   = (*MockIdentityProvider)(nil)
	_ ports.FederatedProvider  = (*MockFederatedProvider)(nil)
	_ ports.TokenSource        = (*MockIdentityProvider)(nil)
	_ ports.SessionProber      = (*MockIdentityProvider)(nil)
	_ ports.RoleSource         = (*StubRoleSource)(nil)
	_ ports.SessionPersistence = (*MemoryPersistence)(nil)
)

// Identity returns a populated identity for tests.
func Identity(subjectID, email string) domainauth.Identity {
	return domainauth.Identity{
		SubjectID:   subjectID,
		Email:       email,
		DisplayName: "Test User",
		ExpiresAt:   time.Now().Add(time.Hour),
	}
}

// MockIdentityProvider simulates the email/password provider surface with
// overridable funcs and sensible defaults.
type MockIdentityProvider struct {
	SignInFunc        func(ctx context.Context, email, password string) (domainauth.Identity, error)
	CreateAccountFunc func(ctx context.Context, email, password string) (domainauth.Identity, error)
	UpdateProfileFunc func(ctx context.Context, update ports.ProfileUpdate) (domainauth.Identity, error)
	SignOutFunc       func(ctx context.Context, subjectID string) error
	FreshTokenFunc    func(ctx context.Context, subjectID string) (string, error)
	ProbeFunc         func(ctx context.Context, subjectID string) (domainauth.Identity, error)

	mu          sync.Mutex
	signOutIDs  []string
	tokenMints  int
	lastProfile ports.ProfileUpdate
}

func (m *MockIdentityProvider) SignIn(ctx context.Context, email, password string) (domainauth.Identity, error) {
	if m.SignInFunc != nil {
		return m.SignInFunc(ctx, email, password)
	}
	return Identity("mock-"+email, email), nil
}

func (m *MockIdentityProvider) CreateAccount(ctx context.Context, email, password string) (domainauth.Identity, error) {
	if m.CreateAccountFunc != nil {
		return m.CreateAccountFunc(ctx, email, password)
	}
	return Identity("mock-"+email, email), nil
}

func (m *MockIdentityProvider) UpdateAccountProfile(ctx context.Context, update ports.ProfileUpdate) (domainauth.Identity, error) {
	m.mu.Lock()
	m.lastProfile = update
	m.mu.Unlock()
	if m.UpdateProfileFunc != nil {
		return m.UpdateProfileFunc(ctx, update)
	}
	id := Identity(update.SubjectID, "")
	id.DisplayName = update.DisplayName
	id.AvatarURL = update.AvatarURL
	return id, nil
}

func (m *MockIdentityProvider) SignOut(ctx context.Context, subjectID string) error {
	m.mu.Lock()
	m.signOutIDs = append(m.signOutIDs, subjectID)
	m.mu.Unlock()
	if m.SignOutFunc != nil {
		return m.SignOutFunc(ctx, subjectID)
	}
	return nil
}

func (m *MockIdentityProvider) FreshToken(ctx context.Context, subjectID string) (string, error) {
	m.mu.Lock()
	m.tokenMints++
	mints := m.tokenMints
	m.mu.Unlock()
	if m.FreshTokenFunc != nil {
		return m.FreshTokenFunc(ctx, subjectID)
	}
	return "token-" + subjectID + "-" + strconv.Itoa(mints), nil
}

func (m *MockIdentityProvider) Probe(ctx context.Context, subjectID string) (domainauth.Identity, error) {
	if m.ProbeFunc != nil {
		return m.ProbeFunc(ctx, subjectID)
	}
	return Identity(subjectID, subjectID+"@example.com"), nil
}

// SignedOutSubjects returns the subject IDs SignOut was called with.
func (m *MockIdentityProvider) SignedOutSubjects() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.signOutIDs...)
}

// TokenMints returns how many times FreshToken was called.
func (m *MockIdentityProvider) TokenMints() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tokenMints
}

// LastProfileUpdate returns the most recent UpdateAccountProfile input.
func (m *MockIdentityProvider) LastProfileUpdate() ports.ProfileUpdate {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastProfile
}

// MockFederatedProvider simulates the OIDC flow with deterministic state
// and nonce values.
type MockFederatedProvider struct {
	BeginFunc    func(ctx context.Context, in ports.BeginInput) (string, string, string, error)
	ExchangeFunc func(ctx context.Context, in ports.ExchangeInput) (domainauth.Identity, error)

	AuthURL  string
	Identity domainauth.Identity

	mu    sync.Mutex
	calls int
}

func (m *MockFederatedProvider) Begin(ctx context.Context, in ports.BeginInput) (string, string, string, error) {
	if m.BeginFunc != nil {
		return m.BeginFunc(ctx, in)
	}
	m.mu.Lock()
	m.calls++
	n := m.calls
	m.mu.Unlock()

	authURL := m.AuthURL
	if authURL == "" {
		authURL = "https://mock-idp/auth"
	}
	return authURL, "state-" + strconv.Itoa(n), "nonce-" + strconv.Itoa(n), nil
}

func (m *MockFederatedProvider) Exchange(ctx context.Context, in ports.ExchangeInput) (domainauth.Identity, error) {
	if m.ExchangeFunc != nil {
		return m.ExchangeFunc(ctx, in)
	}
	if m.Identity.SubjectID != "" {
		return m.Identity, nil
	}
	return Identity("federated-user", "federated@example.com"), nil
}

// StubRoleSource returns scripted roles per email and records lookups.
// Delay, when set, makes completions controllable for stale-response tests.
type StubRoleSource struct {
	Roles map[string]domainauth.Role
	Err   error
	Delay time.Duration

	mu      sync.Mutex
	lookups []string
}

func (s *StubRoleSource) RoleByEmail(ctx context.Context, email string) (domainauth.Role, error) {
	s.mu.Lock()
	s.lookups = append(s.lookups, email)
	s.mu.Unlock()

	if s.Delay > 0 {
		select {
		case <-time.After(s.Delay):
		case <-ctx.Done():
			return domainauth.RoleAbsent, ctx.Err()
		}
	}
	if s.Err != nil {
		return domainauth.RoleAbsent, s.Err
	}
	role, ok := s.Roles[email]
	if !ok {
		return domainauth.RoleAbsent, errorsx.NotFoundf("user %q", email)
	}
	return role, nil
}

// Lookups returns the emails looked up so far.
func (s *StubRoleSource) Lookups() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.lookups...)
}

// MemoryPersistence is an in-memory ports.SessionPersistence.
type MemoryPersistence struct {
	mu       sync.Mutex
	sessions map[string]domainauth.Session
}

// NewMemoryPersistence creates an empty in-memory persistence.
func NewMemoryPersistence() *MemoryPersistence {
	return &MemoryPersistence{sessions: make(map[string]domainauth.Session)}
}

func (p *MemoryPersistence) Save(_ context.Context, sess domainauth.Session) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sessions[sess.ID] = sess
	return nil
}

func (p *MemoryPersistence) Get(_ context.Context, id string) (domainauth.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	sess, ok := p.sessions[id]
	if !ok || time.Now().After(sess.ExpiresAt) {
		return domainauth.Session{}, errorsx.NotFoundf("session %q", id)
	}
	return sess, nil
}

func (p *MemoryPersistence) Delete(_ context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.sessions, id)
	return nil
}

// Len returns the number of stored sessions.
func (p *MemoryPersistence) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.sessions)
}
