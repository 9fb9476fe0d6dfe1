package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bloodbridge/ui-gateway/internal/backend"
	domainauth "github.com/bloodbridge/ui-gateway/internal/domain/auth"
	errorsx "github.com/bloodbridge/ui-gateway/internal/errors"
	mocksauth "github.com/bloodbridge/ui-gateway/internal/mocks/auth"
	"github.com/bloodbridge/ui-gateway/internal/service"
	"github.com/bloodbridge/ui-gateway/internal/session"
)

// fakeDirectory records upserts and optionally fails them.
type fakeDirectory struct {
	mu      sync.Mutex
	err     error
	upserts []backend.User
}

func (d *fakeDirectory) UpsertUser(_ context.Context, user backend.User) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.upserts = append(d.upserts, user)
	return nil
}

type authFixture struct {
	handlers  *AuthHandlers
	sessions  *session.Manager
	provider  *mocksauth.MockIdentityProvider
	federated *mocksauth.MockFederatedProvider
	directory *fakeDirectory
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()

	provider := &mocksauth.MockIdentityProvider{}
	federated := &mocksauth.MockFederatedProvider{}
	directory := &fakeDirectory{}
	svc := service.NewAuthService(service.AuthServiceOptions{
		Provider:  provider,
		Federated: federated,
		Directory: directory,
	})
	sessions := session.NewManager(session.ManagerOptions{})
	return &authFixture{
		handlers: &AuthHandlers{
			Svc:             svc,
			Sessions:        sessions,
			ExternalBaseURL: "https://bloodbridge.example.com",
		},
		sessions:  sessions,
		provider:  provider,
		federated: federated,
		directory: directory,
	}
}

func cookieByName(t *testing.T, w *httptest.ResponseRecorder, name string) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestSignIn_Success(t *testing.T) {
	t.Parallel()
	fx := newAuthFixture(t)

	body := strings.NewReader(`{"email":"donor@example.com","password":"secret"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/auth/sign-in", body)
	w := httptest.NewRecorder()
	fx.handlers.SignIn(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	cookie := cookieByName(t, w, SessionCookieName)
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)

	store, ok := fx.sessions.Get(context.Background(), cookie.Value)
	require.True(t, ok)
	snap := store.Snapshot()
	require.NotNil(t, snap.Identity)
	assert.Equal(t, "donor@example.com", snap.Identity.Email)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	assert.Equal(t, true, payload["authenticated"])
}

func TestSignIn_InvalidCredentials(t *testing.T) {
	t.Parallel()
	fx := newAuthFixture(t)
	fx.provider.SignInFunc = func(_ context.Context, _, _ string) (domainauth.Identity, error) {
		return domainauth.Identity{}, errorsx.InvalidCredentials("wrong password")
	}

	body := strings.NewReader(`{"email":"donor@example.com","password":"nope"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/auth/sign-in", body)
	w := httptest.NewRecorder()
	fx.handlers.SignIn(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Nil(t, cookieByName(t, w, SessionCookieName))
	assert.Contains(t, w.Body.String(), "invalid_credentials")
}

func TestSignIn_FailureLeavesNoLiveSession(t *testing.T) {
	t.Parallel()
	fx := newAuthFixture(t)
	fx.provider.SignInFunc = func(_ context.Context, _, _ string) (domainauth.Identity, error) {
		return domainauth.Identity{}, errorsx.InvalidCredentials("wrong password")
	}

	var mu sync.Mutex
	var issued []string
	fx.sessions.Watch(func(id string, _ *session.Store) {
		mu.Lock()
		issued = append(issued, id)
		mu.Unlock()
	})

	body := strings.NewReader(`{"email":"donor@example.com","password":"nope"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/auth/sign-in", body)
	w := httptest.NewRecorder()
	fx.handlers.SignIn(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	// The session issued for the attempt is gone again.
	mu.Lock()
	ids := append([]string(nil), issued...)
	mu.Unlock()
	require.Len(t, ids, 1)
	_, ok := fx.sessions.Get(context.Background(), ids[0])
	assert.False(t, ok)
}

func TestSignIn_FailureKeepsExistingSession(t *testing.T) {
	t.Parallel()
	fx := newAuthFixture(t)
	fx.provider.SignInFunc = func(_ context.Context, _, _ string) (domainauth.Identity, error) {
		return domainauth.Identity{}, errorsx.InvalidCredentials("wrong password")
	}

	id, _ := fx.sessions.Issue(context.Background())

	body := strings.NewReader(`{"email":"donor@example.com","password":"nope"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/auth/sign-in", body)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: id})
	w := httptest.NewRecorder()
	fx.handlers.SignIn(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	// A session that predated the attempt survives it.
	_, ok := fx.sessions.Get(context.Background(), id)
	assert.True(t, ok)
}

func TestSignIn_MalformedJSON(t *testing.T) {
	t.Parallel()
	fx := newAuthFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/sign-in", strings.NewReader("{"))
	w := httptest.NewRecorder()
	fx.handlers.SignIn(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid_json")
}

func TestRegister_Success(t *testing.T) {
	t.Parallel()
	fx := newAuthFixture(t)

	body := strings.NewReader(`{
		"name":"Rahim Uddin",
		"email":"rahim@example.com",
		"password":"secret",
		"bloodGroup":"O+",
		"district":"Dhaka",
		"upazila":"Savar"
	}`)
	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", body)
	w := httptest.NewRecorder()
	fx.handlers.Register(w, req)

	require.Equal(t, http.StatusCreated, w.Code)
	require.NotNil(t, cookieByName(t, w, SessionCookieName))

	require.Len(t, fx.directory.upserts, 1)
	assert.Equal(t, "rahim@example.com", fx.directory.upserts[0].Email)
	assert.Equal(t, "donor", fx.directory.upserts[0].Role)
}

func TestRegister_DirectoryFailureKeepsSessionSignedIn(t *testing.T) {
	t.Parallel()
	fx := newAuthFixture(t)
	fx.directory.err = errorsx.Wrap(errors.New("boom"), errorsx.ErrCodeUpstream, "backend unavailable")

	body := strings.NewReader(`{
		"name":"Rahim Uddin",
		"email":"rahim@example.com",
		"password":"secret",
		"bloodGroup":"O+",
		"district":"Dhaka",
		"upazila":"Savar"
	}`)
	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", body)
	w := httptest.NewRecorder()
	fx.handlers.Register(w, req)

	assert.Equal(t, http.StatusBadGateway, w.Code)

	// The identity was created and installed before step 3 failed, so the
	// session cookie is still issued.
	cookie := cookieByName(t, w, SessionCookieName)
	require.NotNil(t, cookie)
	store, ok := fx.sessions.Get(context.Background(), cookie.Value)
	require.True(t, ok)
	assert.True(t, store.Snapshot().Authenticated())
}

func TestLogin_RedirectsToProviderAndStashesState(t *testing.T) {
	t.Parallel()
	fx := newAuthFixture(t)
	fx.federated.AuthURL = "https://idp.example.com/authorize"

	req := httptest.NewRequest(http.MethodGet, "/login?redirect_uri=/dashboard", nil)
	w := httptest.NewRecorder()
	fx.handlers.Login(w, req)

	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "https://idp.example.com/authorize", w.Header().Get("Location"))

	state := cookieByName(t, w, "oauth_state")
	require.NotNil(t, state)
	assert.NotEmpty(t, state.Value)
	require.NotNil(t, cookieByName(t, w, "oauth_nonce"))

	redirect := cookieByName(t, w, "post_login_redirect")
	require.NotNil(t, redirect)
	assert.Equal(t, "/dashboard", redirect.Value)
}

func TestCallback_StateMismatchRejected(t *testing.T) {
	t.Parallel()
	fx := newAuthFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/auth/callback?code=abc&state=forged", nil)
	req.AddCookie(&http.Cookie{Name: "oauth_state", Value: "state-1"})
	req.AddCookie(&http.Cookie{Name: "oauth_nonce", Value: "nonce-1"})
	w := httptest.NewRecorder()
	fx.handlers.Callback(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid_state")
}

func TestCallback_SignsInAndReturnsToOriginalPath(t *testing.T) {
	t.Parallel()
	fx := newAuthFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/auth/callback?code=abc&state=state-1", nil)
	req.AddCookie(&http.Cookie{Name: "oauth_state", Value: "state-1"})
	req.AddCookie(&http.Cookie{Name: "oauth_nonce", Value: "nonce-1"})
	req.AddCookie(&http.Cookie{Name: "post_login_redirect", Value: "/dashboard"})
	w := httptest.NewRecorder()
	fx.handlers.Callback(w, req)

	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/dashboard", w.Header().Get("Location"))

	cookie := cookieByName(t, w, SessionCookieName)
	require.NotNil(t, cookie)
	store, ok := fx.sessions.Get(context.Background(), cookie.Value)
	require.True(t, ok)
	assert.True(t, store.Snapshot().Authenticated())
}

func TestLogout_ClearsSessionAndCookie(t *testing.T) {
	t.Parallel()
	fx := newAuthFixture(t)

	id, store := fx.sessions.Issue(context.Background())
	store.SetIdentity(&domainauth.Identity{SubjectID: "u-1", Email: "donor@example.com"})

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: id})
	w := httptest.NewRecorder()
	fx.handlers.Logout(w, req)

	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))

	cleared := cookieByName(t, w, SessionCookieName)
	require.NotNil(t, cleared)
	assert.Equal(t, -1, cleared.MaxAge)

	assert.False(t, store.Snapshot().Authenticated())
	assert.Equal(t, []string{"u-1"}, fx.provider.SignedOutSubjects())
	_, ok := fx.sessions.Get(context.Background(), id)
	assert.False(t, ok)
}

func TestLogout_JSONForAJAXClients(t *testing.T) {
	t.Parallel()
	fx := newAuthFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req.Header.Set("Accept", "application/json")
	w := httptest.NewRecorder()
	fx.handlers.Logout(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"redirect_to":"/"`)
}

func TestSession_Anonymous(t *testing.T) {
	t.Parallel()
	fx := newAuthFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/session", nil)
	w := httptest.NewRecorder()
	fx.handlers.Session(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var payload map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	assert.Equal(t, false, payload["authenticated"])
}

func TestSession_SignedInWithPendingRole(t *testing.T) {
	t.Parallel()
	fx := newAuthFixture(t)

	store := session.NewStore()
	store.SetIdentity(&domainauth.Identity{SubjectID: "u-1", Email: "donor@example.com"})

	req := requestWithStore(http.MethodGet, "/api/auth/session", store)
	w := httptest.NewRecorder()
	fx.handlers.Session(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var payload map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	assert.Equal(t, true, payload["authenticated"])
	assert.Equal(t, true, payload["role_pending"])
	assert.Equal(t, "", payload["role"])
}
