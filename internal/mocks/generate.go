// Package mocks provides mock implementations for testing the gateway's
// session and authorization ports.
//
// This package uses go.uber.org/mock (gomock) to generate type-safe mocks
// for the port interfaces. Hand-written doubles for the identity provider
// ports live in the auth subpackage; gomock covers the call-verification
// cases where expectations on argument values and call counts matter.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	defer ctrl.Finish()
//	source := mocks.NewMockRoleSource(ctrl)
//	source.EXPECT().RoleByEmail(gomock.Any(), "donor@example.com").Return(domainauth.RoleDonor, nil)
package mocks

// Generate mock for RoleSource interface from internal/ports.
// This creates MockRoleSource with RoleByEmail.
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=role_source_mock.go github.com/bloodbridge/ui-gateway/internal/ports RoleSource

// Generate mock for SessionPersistence interface from internal/ports.
// This creates MockSessionPersistence with Save, Get, Delete.
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=session_persistence_mock.go github.com/bloodbridge/ui-gateway/internal/ports SessionPersistence
