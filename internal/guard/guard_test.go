package guard

import (
	"testing"

	"github.com/stretchr/testify/assert"

	domainauth "github.com/bloodbridge/ui-gateway/internal/domain/auth"
)

func identity() *domainauth.Identity {
	return &domainauth.Identity{SubjectID: "sub-1", Email: "user@example.com"}
}

func TestDecide(t *testing.T) {
	t.Parallel()

	anonymous := domainauth.SessionState{}
	bootstrapping := domainauth.SessionState{Bootstrapping: true}
	pending := domainauth.SessionState{Identity: identity()}
	donor := domainauth.SessionState{Identity: identity(), Role: domainauth.RoleDonor}
	volunteer := domainauth.SessionState{Identity: identity(), Role: domainauth.RoleVolunteer}
	admin := domainauth.SessionState{Identity: identity(), Role: domainauth.RoleAdmin}

	tests := []struct {
		name       string
		state      domainauth.SessionState
		capability domainauth.Capability
		want       domainauth.AccessDecision
	}{
		{"open route always allows", anonymous, domainauth.CapabilityNone, domainauth.DecisionAllow},
		{"open route allows while bootstrapping", bootstrapping, domainauth.CapabilityNone, domainauth.DecisionAllow},

		{"authenticated: anonymous redirects", anonymous, domainauth.CapabilityAuthenticated, domainauth.DecisionRedirectToLogin},
		{"authenticated: bootstrapping waits", bootstrapping, domainauth.CapabilityAuthenticated, domainauth.DecisionShowLoading},
		{"authenticated: pending role still allows", pending, domainauth.CapabilityAuthenticated, domainauth.DecisionAllow},
		{"authenticated: donor allows", donor, domainauth.CapabilityAuthenticated, domainauth.DecisionAllow},

		{"admin: anonymous redirects", anonymous, domainauth.CapabilityAdmin, domainauth.DecisionRedirectToLogin},
		{"admin: bootstrapping waits", bootstrapping, domainauth.CapabilityAdmin, domainauth.DecisionShowLoading},
		{"admin: pending role waits, never restricted", pending, domainauth.CapabilityAdmin, domainauth.DecisionShowLoading},
		{"admin: admin allows", admin, domainauth.CapabilityAdmin, domainauth.DecisionAllow},
		{"admin: donor restricted", donor, domainauth.CapabilityAdmin, domainauth.DecisionShowRestricted},
		{"admin: volunteer restricted", volunteer, domainauth.CapabilityAdmin, domainauth.DecisionShowRestricted},

		{"triage: anonymous redirects", anonymous, domainauth.CapabilityAdminOrVolunteer, domainauth.DecisionRedirectToLogin},
		{"triage: pending role waits", pending, domainauth.CapabilityAdminOrVolunteer, domainauth.DecisionShowLoading},
		{"triage: admin allows", admin, domainauth.CapabilityAdminOrVolunteer, domainauth.DecisionAllow},
		{"triage: volunteer allows", volunteer, domainauth.CapabilityAdminOrVolunteer, domainauth.DecisionAllow},
		{"triage: donor restricted", donor, domainauth.CapabilityAdminOrVolunteer, domainauth.DecisionShowRestricted},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, Decide(tc.state, tc.capability))
		})
	}
}
