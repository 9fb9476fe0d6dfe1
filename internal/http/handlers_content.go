package httpx

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/bloodbridge/ui-gateway/internal/backend"
	errorsx "github.com/bloodbridge/ui-gateway/internal/errors"
	"github.com/bloodbridge/ui-gateway/internal/session"
)

// ContentService is the slice of the backend client the read-through
// endpoints need.
type ContentService interface {
	RecentDonationRequests(ctx context.Context, limit int) ([]backend.DonationRequest, error)
	PublishedBlogs(ctx context.Context) ([]backend.Blog, error)
	UserByEmail(ctx context.Context, email string) (*backend.User, error)
}

// ContentHandlers proxies backend read endpoints through the authenticated
// request layer. The session store travels in the request context, so the
// backend client attaches a bearer token exactly when the caller is signed in.
type ContentHandlers struct {
	Backend ContentService
}

// RecentDonationRequests lists pending donation requests.
// GET /api/donations/recent?limit=<n>.
func (h *ContentHandlers) RecentDonationRequests(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 100 {
			WriteError(w, ErrorParams{
				Code:    http.StatusBadRequest,
				ErrCode: "invalid_limit",
				Err:     errors.New("limit must be an integer between 1 and 100"),
			})
			return
		}
		limit = parsed
	}

	requests, err := h.Backend.RecentDonationRequests(r.Context(), limit)
	if err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"requests": requests})
}

// PublishedBlogs lists published blog posts.
// GET /api/blogs.
func (h *ContentHandlers) PublishedBlogs(w http.ResponseWriter, r *http.Request) {
	blogs, err := h.Backend.PublishedBlogs(r.Context())
	if err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"blogs": blogs})
}

// Profile returns the signed-in user's backend directory record. A 404 from
// the backend means the record has not been created yet; the session itself
// stays valid.
// GET /api/me.
func (h *ContentHandlers) Profile(w http.ResponseWriter, r *http.Request) {
	store, ok := session.FromContext(r.Context())
	if !ok {
		WriteError(w, ErrorParams{
			Code:    http.StatusUnauthorized,
			ErrCode: "authentication_required",
			Err:     errors.New("authentication required"),
		})
		return
	}
	snap := store.Snapshot()
	if snap.Identity == nil || snap.Identity.Email == "" {
		WriteJSON(w, http.StatusOK, map[string]any{"profile": nil})
		return
	}

	user, err := h.Backend.UserByEmail(r.Context(), snap.Identity.Email)
	if err != nil {
		if errorsx.IsNotFound(err) {
			WriteJSON(w, http.StatusOK, map[string]any{"profile": nil})
			return
		}
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"profile": user})
}
