package guard

// Package guard computes access decisions for protected routes. The
// decision logic is a pure function of session state plus the route's
// capability, decoupled from transport concerns; HTTP enforcement lives in
// internal/http.

import (
	domainauth "github.com/bloodbridge/ui-gateway/internal/domain/auth"
)

// Decide evaluates a session state against a route capability.
//
// A bootstrapping session and a pending role both yield ShowLoading: a
// guard must never flash the restricted view or a redirect while the
// identity notification or role resolution is still in flight.
func Decide(state domainauth.SessionState, capability domainauth.Capability) domainauth.AccessDecision {
	if capability == domainauth.CapabilityNone {
		return domainauth.DecisionAllow
	}
	if state.Bootstrapping {
		return domainauth.DecisionShowLoading
	}
	if !state.Authenticated() {
		return domainauth.DecisionRedirectToLogin
	}
	if !capability.RequiresRole() {
		return domainauth.DecisionAllow
	}
	if state.RolePending() {
		return domainauth.DecisionShowLoading
	}
	if capability.Satisfied(state.Role) {
		return domainauth.DecisionAllow
	}
	return domainauth.DecisionShowRestricted
}
