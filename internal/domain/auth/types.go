package auth

// Package auth contains domain-level types for sessions and authorization.
// It is pure and free of framework/adapter concerns.

import (
	"strings"
	"time"
)

// Role is the application-level authorization label assigned by the
// coordination backend, independent of the identity provider's concepts.
// The zero value means the role has not been resolved yet; guards must
// treat it as pending, never as denied.
type Role string

const (
	RoleDonor     Role = "donor"
	RoleVolunteer Role = "volunteer"
	RoleAdmin     Role = "admin"

	// RoleAbsent marks a session whose backend role lookup has not
	// completed (or resolved to no record).
	RoleAbsent Role = ""
)

// Valid reports whether the role is one of the known backend roles.
func (r Role) Valid() bool {
	switch r {
	case RoleDonor, RoleVolunteer, RoleAdmin:
		return true
	default:
		return false
	}
}

// ParseRole normalizes a backend role string and reports whether it is known.
func ParseRole(value string) (Role, bool) {
	role := Role(strings.ToLower(strings.TrimSpace(value)))
	if role.Valid() {
		return role, true
	}
	return RoleAbsent, false
}

// Identity is the authenticated principal returned by an identity provider.
// Adapters map provider-specific claims into this shape. It is replaced
// wholesale on every auth-state change and absent after sign-out.
type Identity struct {
	SubjectID   string    `json:"subject_id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name,omitempty"`
	AvatarURL   string    `json:"avatar_url,omitempty"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// SessionState is the per-session view of "who is the current user and what
// can they do". Identity nil means no authenticated principal. Role carries
// meaning only while Identity is present.
type SessionState struct {
	Identity *Identity `json:"identity"`
	Role     Role      `json:"role"`

	// Bootstrapping is true from session creation until the first
	// identity notification has been applied.
	Bootstrapping bool `json:"bootstrapping"`
}

// Authenticated reports whether an identity is present.
func (s SessionState) Authenticated() bool { return s.Identity != nil }

// RolePending reports whether an identity is present but its backend role
// has not been resolved yet.
func (s SessionState) RolePending() bool {
	return s.Identity != nil && s.Role == RoleAbsent
}

// Capability is the static access requirement attached to a route.
type Capability string

const (
	CapabilityNone             Capability = "none"
	CapabilityAuthenticated    Capability = "authenticated"
	CapabilityAdmin            Capability = "admin"
	CapabilityAdminOrVolunteer Capability = "admin-or-volunteer"
)

// RequiresRole reports whether the capability depends on a resolved role,
// not just the presence of an identity.
func (c Capability) RequiresRole() bool {
	return c == CapabilityAdmin || c == CapabilityAdminOrVolunteer
}

// Satisfied reports whether the given resolved role meets the capability.
// It assumes an identity is present; presence checks belong to the caller.
func (c Capability) Satisfied(role Role) bool {
	switch c {
	case CapabilityNone, CapabilityAuthenticated:
		return true
	case CapabilityAdmin:
		return role == RoleAdmin
	case CapabilityAdminOrVolunteer:
		return role == RoleAdmin || role == RoleVolunteer
	default:
		return false
	}
}

// AccessDecision is the outcome of evaluating a SessionState against a
// route capability.
type AccessDecision int

const (
	// DecisionAllow lets the request through.
	DecisionAllow AccessDecision = iota
	// DecisionRedirectToLogin sends the client to sign-in, preserving the
	// originally requested location.
	DecisionRedirectToLogin
	// DecisionShowRestricted renders the restricted-access view.
	DecisionShowRestricted
	// DecisionShowLoading renders a retryable placeholder while the
	// session is still bootstrapping or the role is pending.
	DecisionShowLoading
)

// String returns the decision name for logging.
func (d AccessDecision) String() string {
	switch d {
	case DecisionAllow:
		return "allow"
	case DecisionRedirectToLogin:
		return "redirect_to_login"
	case DecisionShowRestricted:
		return "show_restricted"
	case DecisionShowLoading:
		return "show_loading"
	default:
		return "unknown"
	}
}

// Session is the persisted snapshot of a browser session, keyed by an
// opaque session ID carried in a cookie.
type Session struct {
	ID        string       `json:"id"`
	State     SessionState `json:"state"`
	ExpiresAt time.Time    `json:"expires_at"`
}
