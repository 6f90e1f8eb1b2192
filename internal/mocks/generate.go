// Package mocks provides mock implementations for testing the login gateway.
//
// This package uses go.uber.org/mock (gomock) to generate type-safe mocks for the port interfaces.
// The mocks are generated using go:generate directives and provide a fluent API for setting up test expectations.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	store := mocks.NewMockUserStore(ctrl)
//	store.EXPECT().Get(gomock.Any(), "abc12").Return(user, nil)
package mocks

// Generate mock for UserStore interface from internal/ports package.
// This creates MockUserStore with methods for all UserStore interface methods:
// Exists, Get, Create, Update
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=user_store_mock.go github.com/cmpt474/mm-login-gateway/internal/ports UserStore

// Generate mock for ChallengeVerifier interface from internal/ports package.
// This creates MockChallengeVerifier with methods for all ChallengeVerifier interface methods:
// Verify
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=challenge_verifier_mock.go github.com/cmpt474/mm-login-gateway/internal/ports ChallengeVerifier
