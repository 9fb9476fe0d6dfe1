package httpx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	domainauth "github.com/bloodbridge/ui-gateway/internal/domain/auth"
	"github.com/bloodbridge/ui-gateway/internal/service"
	"github.com/bloodbridge/ui-gateway/internal/session"
)

// AuthServiceInterface defines the interface for auth service operations.
type AuthServiceInterface interface {
	SignIn(ctx context.Context, store *session.Store, email, password string) (domainauth.Identity, error)
	Register(ctx context.Context, store *session.Store, in service.RegisterInput) (domainauth.Identity, error)
	BeginFederatedLogin(ctx context.Context, redirectURL string) (*service.BeginLoginResult, error)
	CompleteFederatedLogin(ctx context.Context, store *session.Store, in service.CompleteLoginInput) (domainauth.Identity, error)
	SignOut(ctx context.Context, store *session.Store) error
}

// AuthHandlers provides HTTP handlers for authentication operations.
type AuthHandlers struct {
	Svc          AuthServiceInterface
	Sessions     *session.Manager
	CookieDomain string
	// ExternalBaseURL is the public origin of this gateway, used to build
	// the OAuth callback URL.
	ExternalBaseURL string
	// SessionTTL bounds the session cookie lifetime. Defaults to 24h.
	SessionTTL time.Duration
	Logger     *slog.Logger
}

func (h *AuthHandlers) logger() *slog.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

func (h *AuthHandlers) sessionTTL() time.Duration {
	if h.SessionTTL > 0 {
		return h.SessionTTL
	}
	return 24 * time.Hour
}

// Login handles the federated login initiation endpoint.
// GET /login?redirect_uri=<optional_redirect>.
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	redirectURI := safeRedirectPath(r.URL.Query().Get("redirect_uri"))

	callbackURL := strings.TrimSuffix(h.ExternalBaseURL, "/") + "/auth/callback"
	result, err := h.Svc.BeginFederatedLogin(r.Context(), callbackURL)
	if err != nil {
		WriteError(w, ErrorParams{
			Code:    http.StatusInternalServerError,
			ErrCode: "login_failed",
			Err:     err,
		})
		return
	}

	h.setOAuthCookies(w, r, oauthCookieParams{State: result.State, Nonce: result.Nonce, RedirectURI: redirectURI})
	http.Redirect(w, r, result.AuthURL, http.StatusFound)
}

// Callback handles the OAuth callback endpoint.
// GET /auth/callback?code=<code>&state=<state>.
func (h *AuthHandlers) Callback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	state := r.URL.Query().Get("state")
	if code == "" {
		WriteError(w, ErrorParams{
			Code:    http.StatusBadRequest,
			ErrCode: "missing_code",
			Err:     errors.New("authorization code is required"),
		})
		return
	}

	stateCookie, err := r.Cookie("oauth_state")
	if err != nil || state == "" || stateCookie.Value != state {
		WriteError(w, ErrorParams{
			Code:    http.StatusBadRequest,
			ErrCode: "invalid_state",
			Err:     errors.New("invalid or missing state parameter"),
		})
		return
	}
	nonceCookie, err := r.Cookie("oauth_nonce")
	if err != nil {
		WriteError(w, ErrorParams{
			Code:    http.StatusBadRequest,
			ErrCode: "missing_nonce",
			Err:     errors.New("missing nonce parameter"),
		})
		return
	}

	id, store, fresh := h.ensureSession(r)
	_, err = h.Svc.CompleteFederatedLogin(r.Context(), store, service.CompleteLoginInput{
		Code:  code,
		State: state,
		Nonce: nonceCookie.Value,
	})
	if err != nil {
		h.discardFresh(r, id, fresh)
		h.logger().WarnContext(r.Context(), "federated login failed", "error", err)
		WriteError(w, ErrorParams{
			Code:    http.StatusInternalServerError,
			ErrCode: "login_completion_failed",
			Err:     err,
		})
		return
	}

	h.setSessionCookie(w, r, id)
	h.clearCookie(w, r, "oauth_state")
	h.clearCookie(w, r, "oauth_nonce")

	redirectURI := h.getPostLoginRedirect(w, r)
	http.Redirect(w, r, redirectURI, http.StatusFound)
}

// signInRequest is the JSON body for password sign-in.
type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignIn handles password sign-in.
// POST /api/auth/sign-in.
func (h *AuthHandlers) SignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	id, store, fresh := h.ensureSession(r)
	identity, err := h.Svc.SignIn(r.Context(), store, req.Email, req.Password)
	if err != nil {
		h.discardFresh(r, id, fresh)
		WriteAppError(w, err)
		return
	}

	h.setSessionCookie(w, r, id)
	WriteJSON(w, http.StatusOK, sessionPayload(store.Snapshot(), identity.ExpiresAt))
}

// registerRequest is the JSON body for donor registration.
type registerRequest struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Password   string `json:"password"`
	AvatarURL  string `json:"avatar_url"`
	BloodGroup string `json:"bloodGroup"`
	District   string `json:"district"`
	Upazila    string `json:"upazila"`
}

// Register handles new donor registration.
// POST /api/auth/register.
func (h *AuthHandlers) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	id, store, fresh := h.ensureSession(r)
	identity, err := h.Svc.Register(r.Context(), store, service.RegisterInput{
		Name:       req.Name,
		Email:      req.Email,
		Password:   req.Password,
		AvatarURL:  req.AvatarURL,
		BloodGroup: req.BloodGroup,
		District:   req.District,
		Upazila:    req.Upazila,
	})
	if err != nil {
		// Step 3 of registration can fail after the identity was created;
		// the session is signed in either way, so report the partial state.
		if store.Snapshot().Authenticated() {
			h.setSessionCookie(w, r, id)
		} else {
			h.discardFresh(r, id, fresh)
		}
		WriteAppError(w, err)
		return
	}

	h.setSessionCookie(w, r, id)
	WriteJSON(w, http.StatusCreated, sessionPayload(store.Snapshot(), identity.ExpiresAt))
}

// Logout handles the logout endpoint.
// POST /auth/logout.
func (h *AuthHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(SessionCookieName); err == nil {
		if store, ok := h.Sessions.Get(r.Context(), cookie.Value); ok {
			if signOutErr := h.Svc.SignOut(r.Context(), store); signOutErr != nil {
				h.logger().WarnContext(r.Context(), "provider sign-out failed", "error", signOutErr)
			}
		}
		h.Sessions.Drop(r.Context(), cookie.Value)
	}

	h.clearCookie(w, r, SessionCookieName)

	redirectURI := r.FormValue("redirect_uri")
	if redirectURI == "" {
		redirectURI = r.URL.Query().Get("redirect_uri")
	}
	redirectURI = safeRedirectPath(redirectURI)

	if wantsJSON(r) {
		WriteJSON(w, http.StatusOK, map[string]string{
			"status":      "success",
			"redirect_to": redirectURI,
		})
		return
	}
	http.Redirect(w, r, redirectURI, http.StatusFound)
}

// Session returns the current session state.
// GET /api/auth/session.
func (h *AuthHandlers) Session(w http.ResponseWriter, r *http.Request) {
	store, ok := session.FromContext(r.Context())
	if !ok {
		WriteJSON(w, http.StatusOK, map[string]any{"authenticated": false})
		return
	}

	snap := store.Snapshot()
	if !snap.Authenticated() {
		if snap.Bootstrapping {
			w.Header().Set("Retry-After", "1")
			WriteJSON(w, http.StatusOK, map[string]any{"authenticated": false, "bootstrapping": true})
			return
		}
		WriteJSON(w, http.StatusOK, map[string]any{"authenticated": false})
		return
	}
	WriteJSON(w, http.StatusOK, sessionPayload(snap, snap.Identity.ExpiresAt))
}

// sessionPayload is the JSON shape shared by sign-in, register and session
// endpoints.
func sessionPayload(snap domainauth.SessionState, expiresAt time.Time) map[string]any {
	payload := map[string]any{
		"authenticated": snap.Authenticated(),
		"role":          string(snap.Role),
		"role_pending":  snap.RolePending(),
	}
	if snap.Identity != nil {
		payload["user"] = map[string]any{
			"subject_id":   snap.Identity.SubjectID,
			"email":        snap.Identity.Email,
			"display_name": snap.Identity.DisplayName,
			"avatar_url":   snap.Identity.AvatarURL,
		}
		payload["expires_at"] = expiresAt
	}
	return payload
}

// ensureSession returns the request's session, issuing a fresh one when the
// cookie is missing or no longer maps to a session. fresh reports whether the
// session was issued here; callers drop a fresh session when the auth attempt
// fails so a rejected sign-in leaves nothing behind.
func (h *AuthHandlers) ensureSession(r *http.Request) (id string, store *session.Store, fresh bool) {
	if cookie, err := r.Cookie(SessionCookieName); err == nil {
		if store, ok := h.Sessions.Get(r.Context(), cookie.Value); ok {
			return cookie.Value, store, false
		}
	}
	id, store = h.Sessions.Issue(r.Context())
	return id, store, true
}

func (h *AuthHandlers) discardFresh(r *http.Request, id string, fresh bool) {
	if fresh {
		h.Sessions.Drop(r.Context(), id)
	}
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json") ||
		strings.EqualFold(r.Header.Get("X-Requested-With"), "XMLHttpRequest")
}

// clearCookie clears a cookie by setting it to expire immediately. It mirrors
// the attributes used when setting cookies so deletion works across browsers.
func (h *AuthHandlers) clearCookie(w http.ResponseWriter, r *http.Request, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Domain:   h.CookieDomain,
		HttpOnly: true,
		Secure:   isSecureRequest(r),
		MaxAge:   -1,
		Expires:  time.Unix(0, 0).UTC(),
		SameSite: http.SameSiteLaxMode,
	})
}

// oauthCookieParams groups values needed to set OAuth cookies.
type oauthCookieParams struct {
	State       string
	Nonce       string
	RedirectURI string
}

// setOAuthCookies stores OAuth state, nonce, and the post-login redirect in
// short-lived cookies.
func (h *AuthHandlers) setOAuthCookies(w http.ResponseWriter, r *http.Request, p oauthCookieParams) {
	const oauthCookieMaxAge = 600 // 10 minutes

	for name, value := range map[string]string{
		"oauth_state":         p.State,
		"oauth_nonce":         p.Nonce,
		"post_login_redirect": p.RedirectURI,
	} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    value,
			Path:     "/",
			Domain:   h.CookieDomain,
			HttpOnly: true,
			Secure:   isSecureRequest(r),
			SameSite: http.SameSiteLaxMode,
			MaxAge:   oauthCookieMaxAge,
		})
	}
}

// setSessionCookie writes the session cookie for the given session ID.
func (h *AuthHandlers) setSessionCookie(w http.ResponseWriter, r *http.Request, sessionID string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    sessionID,
		Path:     "/",
		Domain:   h.CookieDomain,
		HttpOnly: true,
		Secure:   isSecureRequest(r),
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(h.sessionTTL().Seconds()),
	})
}

// getPostLoginRedirect returns the post-login redirect URL and clears the cookie.
func (h *AuthHandlers) getPostLoginRedirect(w http.ResponseWriter, r *http.Request) string {
	redirectURI := "/"
	if cookie, err := r.Cookie("post_login_redirect"); err == nil {
		redirectURI = safeRedirectPath(cookie.Value)
		h.clearCookie(w, r, "post_login_redirect")
	}
	return redirectURI
}

func isSecureRequest(r *http.Request) bool {
	return r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}
