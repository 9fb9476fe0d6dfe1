package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseRole(t *testing.T) {
	t.Parallel()

	role, ok := ParseRole("  Admin ")
	assert.True(t, ok)
	assert.Equal(t, RoleAdmin, role)

	role, ok = ParseRole("moderator")
	assert.False(t, ok)
	assert.Equal(t, RoleAbsent, role)

	_, ok = ParseRole("")
	assert.False(t, ok)
}

func TestCapabilitySatisfied(t *testing.T) {
	t.Parallel()

	assert.True(t, CapabilityAdmin.Satisfied(RoleAdmin))
	assert.False(t, CapabilityAdmin.Satisfied(RoleVolunteer))
	assert.False(t, CapabilityAdmin.Satisfied(RoleDonor))

	assert.True(t, CapabilityAdminOrVolunteer.Satisfied(RoleAdmin))
	assert.True(t, CapabilityAdminOrVolunteer.Satisfied(RoleVolunteer))
	assert.False(t, CapabilityAdminOrVolunteer.Satisfied(RoleDonor))

	assert.True(t, CapabilityAuthenticated.Satisfied(RoleAbsent))
	assert.True(t, CapabilityNone.Satisfied(RoleAbsent))
}

func TestSessionStateRolePending(t *testing.T) {
	t.Parallel()

	var s SessionState
	assert.False(t, s.RolePending(), "no identity means nothing to resolve")

	s.Identity = &Identity{SubjectID: "u1", Email: "u1@example.com"}
	assert.True(t, s.RolePending())

	s.Role = RoleDonor
	assert.False(t, s.RolePending())
}
