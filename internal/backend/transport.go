package backend

import (
	"net/http"

	errorsx "github.com/bloodbridge/ui-gateway/internal/errors"
	"github.com/bloodbridge/ui-gateway/internal/ports"
	"github.com/bloodbridge/ui-gateway/internal/session"
)

// authTransport attaches current proof of identity to every outgoing
// request. The session store travels in the request context; when it holds
// an identity, a bearer token is minted fresh from the provider for this
// request. Requests without an identity go out bare and the backend is the
// one to reject them.
type authTransport struct {
	base   http.RoundTripper
	tokens ports.TokenSource
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	store, ok := session.FromContext(req.Context())
	if !ok || t.tokens == nil {
		return t.base.RoundTrip(req)
	}

	snap := store.Snapshot()
	if snap.Identity == nil {
		return t.base.RoundTrip(req)
	}

	token, err := t.tokens.FreshToken(req.Context(), snap.Identity.SubjectID)
	if err != nil {
		return nil, errorsx.Wrap(err, errorsx.ErrCodeUnauthenticated, "mint bearer token")
	}

	// Clone before mutating headers; the transport does not own req.
	clone := req.Clone(req.Context())
	clone.Header.Set("Authorization", "Bearer "+token)
	return t.base.RoundTrip(clone)
}
