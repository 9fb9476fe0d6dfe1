package idtoolkit

// Package idtoolkit implements the email/password identity provider against
// an Identity Toolkit style REST API: signUp, signInWithPassword, account
// update and lookup, plus refresh-token exchange for short-lived ID tokens.

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	jmespath "github.com/jmespath-community/go-jmespath"

	domainauth "github.com/bloodbridge/ui-gateway/internal/domain/auth"
	errorsx "github.com/bloodbridge/ui-gateway/internal/errors"
	"github.com/bloodbridge/ui-gateway/internal/ports"
)

const (
	// Tokens are refreshed this long before their reported expiry.
	refreshSkew = time.Minute

	defaultTimeout = 30 * time.Second
)

// ClaimMap holds JMESPath expressions that extract identity fields from the
// provider's account payloads. Zero-value fields fall back to the standard
// Identity Toolkit field names.
type ClaimMap struct {
	SubjectID   string
	Email       string
	DisplayName string
	AvatarURL   string
}

func (m ClaimMap) withDefaults() ClaimMap {
	if m.SubjectID == "" {
		m.SubjectID = "localId"
	}
	if m.Email == "" {
		m.Email = "email"
	}
	if m.DisplayName == "" {
		m.DisplayName = "displayName"
	}
	if m.AvatarURL == "" {
		m.AvatarURL = "photoUrl"
	}
	return m
}

func (m ClaimMap) validate() error {
	for _, expr := range []string{m.SubjectID, m.Email, m.DisplayName, m.AvatarURL} {
		if _, err := jmespath.Compile(expr); err != nil {
			return fmt.Errorf("invalid claim expression %q: %w", expr, err)
		}
	}
	return nil
}

// Config holds configuration for the identity toolkit provider.
type Config struct {
	// BaseURL of the accounts API, e.g. https://identitytoolkit.example.com/v1.
	BaseURL string
	// TokenURL of the refresh-token exchange endpoint.
	TokenURL string
	// APIKey is appended as the key query parameter on every call.
	APIKey string
	// ClaimMap customizes identity extraction; zero value uses standard names.
	ClaimMap ClaimMap
	// HTTPClient is optional and defaults to a 30s-timeout client.
	HTTPClient *http.Client
}

// Provider implements ports.IdentityProvider, ports.TokenSource and
// ports.SessionProber.
type Provider struct {
	baseURL    string
	tokenURL   string
	apiKey     string
	claims     ClaimMap
	httpClient *http.Client

	mu     sync.Mutex
	tokens map[string]*tokenState
}

// tokenState is the cached credential pair for one subject.
type tokenState struct {
	idToken      string
	refreshToken string
	expiresAt    time.Time
}

// NewProvider creates a provider from config.
func NewProvider(config Config) (*Provider, error) {
	if config.BaseURL == "" {
		return nil, errors.New("base URL is required")
	}
	if config.TokenURL == "" {
		return nil, errors.New("token URL is required")
	}
	if config.APIKey == "" {
		return nil, errors.New("API key is required")
	}
	claims := config.ClaimMap.withDefaults()
	if err := claims.validate(); err != nil {
		return nil, err
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}

	return &Provider{
		baseURL:    strings.TrimSuffix(config.BaseURL, "/"),
		tokenURL:   config.TokenURL,
		apiKey:     config.APIKey,
		claims:     claims,
		httpClient: httpClient,
		tokens:     make(map[string]*tokenState),
	}, nil
}

func (p *Provider) SignIn(ctx context.Context, email, password string) (domainauth.Identity, error) {
	if email == "" || password == "" {
		return domainauth.Identity{}, errorsx.Validation("email and password are required")
	}
	return p.credentialCall(ctx, "accounts:signInWithPassword", email, password)
}

func (p *Provider) CreateAccount(ctx context.Context, email, password string) (domainauth.Identity, error) {
	if email == "" || password == "" {
		return domainauth.Identity{}, errorsx.Validation("email and password are required")
	}
	return p.credentialCall(ctx, "accounts:signUp", email, password)
}

func (p *Provider) UpdateAccountProfile(ctx context.Context, update ports.ProfileUpdate) (domainauth.Identity, error) {
	idToken, err := p.FreshToken(ctx, update.SubjectID)
	if err != nil {
		return domainauth.Identity{}, err
	}

	var resp map[string]any
	err = p.post(ctx, "accounts:update", map[string]any{
		"idToken":           idToken,
		"displayName":       update.DisplayName,
		"photoUrl":          update.AvatarURL,
		"returnSecureToken": false,
	}, &resp)
	if err != nil {
		return domainauth.Identity{}, err
	}

	identity := p.extractIdentity(resp)
	if identity.SubjectID == "" {
		identity.SubjectID = update.SubjectID
	}
	p.mu.Lock()
	if ts, ok := p.tokens[update.SubjectID]; ok {
		identity.ExpiresAt = ts.expiresAt
	}
	p.mu.Unlock()
	return identity, nil
}

// SignOut drops the cached tokens. The provider API has no server-side
// session to revoke; tokens simply age out.
func (p *Provider) SignOut(_ context.Context, subjectID string) error {
	p.mu.Lock()
	delete(p.tokens, subjectID)
	p.mu.Unlock()
	return nil
}

// FreshToken returns a currently valid ID token for the subject, exchanging
// the refresh token when the cached one is near expiry.
func (p *Provider) FreshToken(ctx context.Context, subjectID string) (string, error) {
	p.mu.Lock()
	ts, ok := p.tokens[subjectID]
	if !ok {
		p.mu.Unlock()
		return "", errorsx.Unauthenticated("no provider session for subject")
	}
	if time.Until(ts.expiresAt) > refreshSkew {
		token := ts.idToken
		p.mu.Unlock()
		return token, nil
	}
	refreshToken := ts.refreshToken
	p.mu.Unlock()

	return p.refresh(ctx, subjectID, refreshToken)
}

// Probe looks the account up with a fresh token and returns the current
// identity.
func (p *Provider) Probe(ctx context.Context, subjectID string) (domainauth.Identity, error) {
	idToken, err := p.FreshToken(ctx, subjectID)
	if err != nil {
		return domainauth.Identity{}, err
	}

	var resp struct {
		Users []map[string]any `json:"users"`
	}
	if err := p.post(ctx, "accounts:lookup", map[string]any{"idToken": idToken}, &resp); err != nil {
		return domainauth.Identity{}, err
	}
	if len(resp.Users) == 0 {
		return domainauth.Identity{}, errorsx.NotFoundf("account %q", subjectID)
	}

	identity := p.extractIdentity(resp.Users[0])
	if identity.SubjectID == "" {
		identity.SubjectID = subjectID
	}
	p.mu.Lock()
	if ts, ok := p.tokens[subjectID]; ok {
		identity.ExpiresAt = ts.expiresAt
	}
	p.mu.Unlock()
	return identity, nil
}

// credentialCall runs signUp or signInWithPassword and caches the returned
// token pair.
func (p *Provider) credentialCall(ctx context.Context, endpoint, email, password string) (domainauth.Identity, error) {
	var resp map[string]any
	err := p.post(ctx, endpoint, map[string]any{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	}, &resp)
	if err != nil {
		return domainauth.Identity{}, err
	}

	identity := p.extractIdentity(resp)
	if identity.SubjectID == "" {
		return domainauth.Identity{}, errorsx.Internal("provider returned no subject")
	}
	if identity.Email == "" {
		identity.Email = email
	}

	expiresAt := time.Now().Add(time.Hour)
	if raw, ok := resp["expiresIn"].(string); ok {
		if secs, convErr := strconv.Atoi(raw); convErr == nil {
			expiresAt = time.Now().Add(time.Duration(secs) * time.Second)
		}
	}
	identity.ExpiresAt = expiresAt

	idToken, _ := resp["idToken"].(string)
	refreshToken, _ := resp["refreshToken"].(string)
	p.mu.Lock()
	p.tokens[identity.SubjectID] = &tokenState{
		idToken:      idToken,
		refreshToken: refreshToken,
		expiresAt:    expiresAt,
	}
	p.mu.Unlock()

	return identity, nil
}

// refresh exchanges the refresh token and updates the cache.
func (p *Provider) refresh(ctx context.Context, subjectID, refreshToken string) (string, error) {
	if refreshToken == "" {
		return "", errorsx.Unauthenticated("no refresh token for subject")
	}

	form := url.Values{
		"grant_type":    []string{"refresh_token"},
		"refresh_token": []string{refreshToken},
	}
	endpoint := p.tokenURL + "?key=" + url.QueryEscape(p.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	httpResp, err := p.httpClient.Do(req)
	if err != nil {
		return "", errorsx.Wrap(err, errorsx.ErrCodeNetwork, "refresh token")
	}
	defer func() { _ = httpResp.Body.Close() }()

	if httpResp.StatusCode != http.StatusOK {
		return "", p.apiError(httpResp)
	}

	var resp struct {
		IDToken      string `json:"id_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    string `json:"expires_in"`
	}
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return "", fmt.Errorf("decode refresh response: %w", err)
	}

	expiresAt := time.Now().Add(time.Hour)
	if secs, convErr := strconv.Atoi(resp.ExpiresIn); convErr == nil {
		expiresAt = time.Now().Add(time.Duration(secs) * time.Second)
	}

	p.mu.Lock()
	p.tokens[subjectID] = &tokenState{
		idToken:      resp.IDToken,
		refreshToken: resp.RefreshToken,
		expiresAt:    expiresAt,
	}
	p.mu.Unlock()

	return resp.IDToken, nil
}

func (p *Provider) post(ctx context.Context, endpoint string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", endpoint, err)
	}

	u := p.baseURL + "/" + endpoint + "?key=" + url.QueryEscape(p.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build %s request: %w", endpoint, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return errorsx.Wrapf(err, errorsx.ErrCodeNetwork, "call %s", endpoint)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return p.apiError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", endpoint, err)
	}
	return nil
}

// apiError maps the provider's error message codes onto the gateway's error
// taxonomy.
func (p *Provider) apiError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))

	var body struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	_ = json.Unmarshal(data, &body)
	message := body.Error.Message
	if message == "" {
		message = fmt.Sprintf("provider returned status %d", resp.StatusCode)
	}

	// Messages may carry a suffix, e.g. "TOO_MANY_ATTEMPTS_TRY_LATER : ...".
	code, _, _ := strings.Cut(message, " ")
	switch code {
	case "INVALID_PASSWORD", "EMAIL_NOT_FOUND", "INVALID_LOGIN_CREDENTIALS":
		return errorsx.InvalidCredentials("email or password is incorrect")
	case "USER_DISABLED":
		return errorsx.Forbidden("account is disabled")
	case "EMAIL_EXISTS":
		return errorsx.Validation("an account with this email already exists")
	case "WEAK_PASSWORD":
		return errorsx.Validation("password is too weak")
	case "INVALID_EMAIL":
		return errorsx.Validation("email address is malformed")
	case "TOKEN_EXPIRED", "INVALID_ID_TOKEN", "INVALID_REFRESH_TOKEN", "USER_NOT_FOUND":
		return errorsx.Unauthenticated("provider session is no longer valid")
	default:
		return &errorsx.AppError{Code: errorsx.ErrCodeUpstream, Message: message}
	}
}

// extractIdentity applies the claim map to a provider payload.
func (p *Provider) extractIdentity(payload map[string]any) domainauth.Identity {
	return domainauth.Identity{
		SubjectID:   p.claim(p.claims.SubjectID, payload),
		Email:       p.claim(p.claims.Email, payload),
		DisplayName: p.claim(p.claims.DisplayName, payload),
		AvatarURL:   p.claim(p.claims.AvatarURL, payload),
	}
}

func (p *Provider) claim(expr string, payload map[string]any) string {
	v, err := jmespath.Search(expr, payload)
	if err != nil {
		return ""
	}
	s, _ := v.(string)
	return s
}

var (
	_ ports.IdentityProvider = (*Provider)(nil)
	_ ports.TokenSource      = (*Provider)(nil)
	_ ports.SessionProber    = (*Provider)(nil)
)
