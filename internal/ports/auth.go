package ports

// Package ports defines interfaces (hexagonal ports) for auth-related behavior.
// Implementations live in internal/adapters and internal/data; orchestration in internal/service.

import (
	"context"

	domainauth "github.com/cmpt474/mm-login-gateway/internal/domain/auth"
)

// TicketValidator checks an identity provider ticket against the provider.
// Implementations never return an error; every failure is reported in the result.
type TicketValidator interface {
	// ValidateTicket verifies ticket for the given service origin, echoing service unchanged to the provider.
	ValidateTicket(ctx context.Context, service, ticket string) domainauth.TicketValidation
}

// ChallengeVerifier decides whether a bot challenge response is genuine.
type ChallengeVerifier interface {
	// Verify reports whether response passes the challenge for a submission made from referrer.
	Verify(ctx context.Context, response, referrer string) bool
}

// UserStore is the authoritative identity to role mapping.
type UserStore interface {
	Exists(ctx context.Context, identity string) (bool, error)
	// Get returns domainauth.ErrUserNotFound when no record exists.
	Get(ctx context.Context, identity string) (domainauth.User, error)
	// Create inserts a record unless one already exists; it never overwrites and reports false on conflict.
	Create(ctx context.Context, u domainauth.NewUser) (bool, error)
	// Update merges the given fields into an existing record; it reports false when the identity is unknown.
	Update(ctx context.Context, identity string, upd domainauth.UserUpdate) (bool, error)
}

// TokenIssuer mints and validates session tokens.
type TokenIssuer interface {
	Issue(identity string, role domainauth.Role) (string, error)
	Validate(token string) (domainauth.Claims, error)
}

// PasswordHasher hashes and compares legacy credentials.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) bool
}

// IdentityLocker serialises critical sections per identity.
type IdentityLocker interface {
	// Lock blocks until the identity is held or ctx ends. The returned func releases it.
	Lock(ctx context.Context, identity string) (unlock func(), err error)
}
