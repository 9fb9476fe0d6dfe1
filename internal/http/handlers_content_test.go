package httpx

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bloodbridge/ui-gateway/internal/backend"
	domainauth "github.com/bloodbridge/ui-gateway/internal/domain/auth"
	errorsx "github.com/bloodbridge/ui-gateway/internal/errors"
)

func TestRecentDonationRequests_LimitValidation(t *testing.T) {
	t.Parallel()

	h := &ContentHandlers{Backend: &stubContent{}}

	tests := []struct {
		name   string
		target string
		status int
	}{
		{name: "no limit", target: "/api/donations/recent", status: http.StatusOK},
		{name: "valid limit", target: "/api/donations/recent?limit=5", status: http.StatusOK},
		{name: "zero", target: "/api/donations/recent?limit=0", status: http.StatusBadRequest},
		{name: "too large", target: "/api/donations/recent?limit=101", status: http.StatusBadRequest},
		{name: "not a number", target: "/api/donations/recent?limit=ten", status: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			w := httptest.NewRecorder()
			h.RecentDonationRequests(w, httptest.NewRequest(http.MethodGet, tt.target, nil))
			assert.Equal(t, tt.status, w.Code)
		})
	}
}

func TestRecentDonationRequests_WrapsPayload(t *testing.T) {
	t.Parallel()

	h := &ContentHandlers{Backend: &stubContent{
		requests: []backend.DonationRequest{{ID: "req-1", BloodGroup: "O+"}},
	}}

	w := httptest.NewRecorder()
	h.RecentDonationRequests(w, httptest.NewRequest(http.MethodGet, "/api/donations/recent?limit=1", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Requests []backend.DonationRequest `json:"requests"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Requests, 1)
	assert.Equal(t, "req-1", body.Requests[0].ID)
}

func TestProfile_RequiresSession(t *testing.T) {
	t.Parallel()

	h := &ContentHandlers{Backend: &stubContent{}}

	w := httptest.NewRecorder()
	h.Profile(w, httptest.NewRequest(http.MethodGet, "/api/me", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestProfile_MissingBackendRecordIsNull(t *testing.T) {
	t.Parallel()

	h := &ContentHandlers{Backend: &stubContent{err: errorsx.NotFound("user not found")}}
	store := signedInStore(domainauth.RoleDonor)

	w := httptest.NewRecorder()
	h.Profile(w, requestWithStore(http.MethodGet, "/api/me", store))

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"profile":null}`, w.Body.String())
}

func TestProfile_ReturnsBackendRecord(t *testing.T) {
	t.Parallel()

	h := &ContentHandlers{Backend: &stubContent{
		user: &backend.User{Name: "A Donor", Email: "user@example.com", Role: "donor"},
	}}
	store := signedInStore(domainauth.RoleDonor)

	w := httptest.NewRecorder()
	h.Profile(w, requestWithStore(http.MethodGet, "/api/me", store))

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Profile *backend.User `json:"profile"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.NotNil(t, body.Profile)
	assert.Equal(t, "user@example.com", body.Profile.Email)
}
