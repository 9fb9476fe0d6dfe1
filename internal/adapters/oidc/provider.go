package oidc

// Package oidc implements the federated sign-in flow against any
// OpenID Connect provider. Exchanged tokens are cached per subject so the
// provider can also mint fresh bearer tokens and re-validate restored
// sessions via the userinfo endpoint.

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	domainauth "github.com/bloodbridge/ui-gateway/internal/domain/auth"
	errorsx "github.com/bloodbridge/ui-gateway/internal/errors"
	"github.com/bloodbridge/ui-gateway/internal/ports"
)

// Provider implements ports.FederatedProvider, ports.TokenSource and
// ports.SessionProber on top of go-oidc.
type Provider struct {
	config     *oauth2.Config
	httpClient *http.Client

	oidcProvider *gooidc.Provider
	verifier     *gooidc.IDTokenVerifier

	mu       sync.Mutex
	sessions map[string]oauth2.TokenSource
}

// ProviderConfig holds configuration for the OIDC provider.
type ProviderConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scope        string
	DiscoveryURL string
	HTTPClient   *http.Client // Optional, defaults to a 30s-timeout client
}

// NewProvider creates a provider from config, fetching the discovery
// document once.
func NewProvider(config ProviderConfig) (*Provider, error) {
	if config.ClientID == "" {
		return nil, errors.New("client ID is required")
	}
	if config.ClientSecret == "" {
		return nil, errors.New("client secret is required")
	}
	if config.RedirectURL == "" {
		return nil, errors.New("redirect URL is required")
	}
	if config.DiscoveryURL == "" {
		return nil, errors.New("discovery URL is required")
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	p := &Provider{
		httpClient: httpClient,
		sessions:   make(map[string]oauth2.TokenSource),
	}

	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, httpClient)
	issuer := strings.TrimSuffix(config.DiscoveryURL, "/")
	issuer = strings.TrimSuffix(issuer, "/.well-known/openid-configuration")
	issuer = strings.TrimSuffix(issuer, ".well-known/openid-configuration")
	op, err := gooidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("oidc new provider: %w", err)
	}
	p.oidcProvider = op
	p.verifier = op.Verifier(&gooidc.Config{ClientID: config.ClientID})

	scope := config.Scope
	if scope == "" {
		scope = "openid email profile"
	}
	p.config = &oauth2.Config{
		ClientID:     config.ClientID,
		ClientSecret: config.ClientSecret,
		RedirectURL:  config.RedirectURL,
		Scopes:       strings.Fields(scope),
		Endpoint:     op.Endpoint(),
	}

	return p, nil
}

func (p *Provider) Begin(_ context.Context, in ports.BeginInput) (string, string, string, error) {
	if in.RedirectURL == "" {
		return "", "", "", errorsx.Validation("redirect URL is required")
	}

	state, err := generateRandomString(32)
	if err != nil {
		return "", "", "", fmt.Errorf("generate state: %w", err)
	}
	nonce, err := generateRandomString(32)
	if err != nil {
		return "", "", "", fmt.Errorf("generate nonce: %w", err)
	}

	// redirect_uri must match the configured RedirectURL exactly, so it is
	// not overridden here.
	authURL := p.config.AuthCodeURL(state,
		oauth2.SetAuthURLParam("nonce", nonce),
		oauth2.SetAuthURLParam("response_type", "code"),
		oauth2.SetAuthURLParam("prompt", "select_account"),
	)

	return authURL, state, nonce, nil
}

func (p *Provider) Exchange(ctx context.Context, in ports.ExchangeInput) (domainauth.Identity, error) {
	if in.Code == "" {
		return domainauth.Identity{}, errorsx.Validation("authorization code is required")
	}
	if in.State == "" {
		return domainauth.Identity{}, errorsx.Validation("state is required")
	}
	if in.Nonce == "" {
		return domainauth.Identity{}, errorsx.Validation("nonce is required")
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
	token, err := p.config.Exchange(ctx, in.Code)
	if err != nil {
		return domainauth.Identity{}, errorsx.Wrap(err, errorsx.ErrCodeNetwork, "exchange code for token")
	}

	claims, err := p.extractClaims(ctx, token, in.Nonce)
	if err != nil {
		return domainauth.Identity{}, err
	}
	if claims.Email == "" || claims.Subject == "" {
		if err := p.fillFromUserInfo(ctx, token, &claims); err != nil {
			return domainauth.Identity{}, err
		}
	}
	if claims.Subject == "" {
		return domainauth.Identity{}, errorsx.Internal("provider returned no subject")
	}

	expiresAt := time.Now().Add(time.Hour)
	if !token.Expiry.IsZero() {
		expiresAt = token.Expiry
	}

	p.mu.Lock()
	p.sessions[claims.Subject] = p.config.TokenSource(
		context.WithValue(context.Background(), oauth2.HTTPClient, p.httpClient), token)
	p.mu.Unlock()

	return domainauth.Identity{
		SubjectID:   claims.Subject,
		Email:       claims.Email,
		DisplayName: claims.Name,
		AvatarURL:   claims.Picture,
		ExpiresAt:   expiresAt,
	}, nil
}

// FreshToken returns a currently valid access token for the subject,
// refreshing through the cached oauth2 token source when needed.
func (p *Provider) FreshToken(_ context.Context, subjectID string) (string, error) {
	ts, ok := p.tokenSource(subjectID)
	if !ok {
		return "", errorsx.Unauthenticated("no provider session for subject")
	}
	token, err := ts.Token()
	if err != nil {
		return "", errorsx.Wrap(err, errorsx.ErrCodeUnauthenticated, "refresh access token")
	}
	return token.AccessToken, nil
}

// Probe re-validates the subject against the userinfo endpoint and returns
// the current identity.
func (p *Provider) Probe(ctx context.Context, subjectID string) (domainauth.Identity, error) {
	ts, ok := p.tokenSource(subjectID)
	if !ok {
		return domainauth.Identity{}, errorsx.Unauthenticated("no provider session for subject")
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
	ui, err := p.oidcProvider.UserInfo(ctx, ts)
	if err != nil {
		return domainauth.Identity{}, errorsx.Wrap(err, errorsx.ErrCodeUnauthenticated, "fetch user info")
	}

	var claims standardClaims
	if err := ui.Claims(&claims); err != nil {
		return domainauth.Identity{}, fmt.Errorf("decode user info: %w", err)
	}
	subject := claims.Subject
	if subject == "" {
		subject = ui.Subject
	}
	email := claims.Email
	if email == "" {
		email = ui.Email
	}

	return domainauth.Identity{
		SubjectID:   subject,
		Email:       email,
		DisplayName: claims.Name,
		AvatarURL:   claims.Picture,
		ExpiresAt:   time.Now().Add(time.Hour),
	}, nil
}

// SignOut forgets the cached provider session for the subject.
func (p *Provider) SignOut(_ context.Context, subjectID string) error {
	p.mu.Lock()
	delete(p.sessions, subjectID)
	p.mu.Unlock()
	return nil
}

func (p *Provider) tokenSource(subjectID string) (oauth2.TokenSource, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	ts, ok := p.sessions[subjectID]
	return ts, ok
}

// standardClaims is the subset of standard OIDC claims the gateway uses.
type standardClaims struct {
	Subject string `json:"sub"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
	Nonce   string `json:"nonce"`
}

func (p *Provider) extractClaims(ctx context.Context, tok *oauth2.Token, expectedNonce string) (standardClaims, error) {
	var claims standardClaims
	if !p.hasOpenIDScope() {
		return claims, nil
	}
	rawID, err := getIDTokenFromToken(tok)
	if err != nil {
		return claims, err
	}
	idTok, err := p.verifier.Verify(ctx, rawID)
	if err != nil {
		return claims, errorsx.Wrap(err, errorsx.ErrCodeUnauthenticated, "verify id_token")
	}
	if err := idTok.Claims(&claims); err != nil {
		return claims, fmt.Errorf("parse id_token claims: %w", err)
	}
	if expectedNonce != "" && claims.Nonce != expectedNonce {
		return standardClaims{}, errorsx.Unauthenticated("invalid nonce")
	}
	if claims.Subject == "" {
		claims.Subject = idTok.Subject
	}
	return claims, nil
}

func (p *Provider) fillFromUserInfo(ctx context.Context, tok *oauth2.Token, claims *standardClaims) error {
	ui, err := p.oidcProvider.UserInfo(ctx, oauth2.StaticTokenSource(tok))
	if err != nil {
		return errorsx.Wrap(err, errorsx.ErrCodeNetwork, "fetch user info")
	}
	var extra standardClaims
	if err := ui.Claims(&extra); err != nil {
		return fmt.Errorf("decode user info: %w", err)
	}
	if claims.Subject == "" {
		claims.Subject = firstNonEmpty(extra.Subject, ui.Subject)
	}
	if claims.Email == "" {
		claims.Email = firstNonEmpty(extra.Email, ui.Email)
	}
	if claims.Name == "" {
		claims.Name = extra.Name
	}
	if claims.Picture == "" {
		claims.Picture = extra.Picture
	}
	return nil
}

// firstNonEmpty returns the first non-empty string from vals, or empty string if none.
func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// generateRandomString generates a cryptographically secure URL-safe random string of exact length.
func generateRandomString(length int) (string, error) {
	if length <= 0 {
		return "", nil
	}
	nBytes := (length*3 + 3) / 4
	b := make([]byte, nBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	s := base64.RawURLEncoding.EncodeToString(b)
	if len(s) < length {
		extra := make([]byte, 1)
		if _, err := rand.Read(extra); err != nil {
			return "", err
		}
		s += base64.RawURLEncoding.EncodeToString(extra)
	}
	return s[:length], nil
}

// hasOpenIDScope reports whether the configured scopes include "openid".
func (p *Provider) hasOpenIDScope() bool {
	for _, sc := range p.config.Scopes {
		if sc == "openid" {
			return true
		}
	}
	return false
}

// getIDTokenFromToken extracts the id_token from oauth2.Token.
func getIDTokenFromToken(tok *oauth2.Token) (string, error) {
	if tok == nil {
		return "", errors.New("nil token")
	}
	raw := tok.Extra("id_token")
	s, ok := raw.(string)
	if !ok || s == "" {
		return "", errors.New("missing id_token in token response")
	}
	return s, nil
}

var (
	_ ports.FederatedProvider = (*Provider)(nil)
	_ ports.TokenSource       = (*Provider)(nil)
	_ ports.SessionProber     = (*Provider)(nil)
)
