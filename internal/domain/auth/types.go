package auth

// Package auth contains domain-level types for authentication and sessions.
// It is pure and free of framework/adapter concerns.

import (
	"errors"
	"time"
)

// Role represents an application's authorization role.
// Keep string form for easy persistence and token claims.
type Role string

const (
	RoleStudent Role = "student"
	RoleMentor  Role = "mentor"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleStudent || r == RoleMentor
}

// DefaultRole is assigned to every newly created user.
const DefaultRole = RoleStudent

// ErrUserNotFound is returned by user stores when no record exists for an identity.
var ErrUserNotFound = errors.New("user not found")

// ErrTokenInvalid is wrapped by every session token validation failure.
var ErrTokenInvalid = errors.New("token invalid")

// User is the authoritative record for an identity. Identity never changes once
// created; Role changes only through elevation.
type User struct {
	Identity  string
	Role      Role
	AuthHash  string `json:"-"` // legacy credential flow only
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewUser carries the fields for a create-if-absent call.
type NewUser struct {
	Identity string
	Role     Role
	AuthHash string
}

// UserUpdate lists the mergeable fields of a user. Nil fields are left untouched.
type UserUpdate struct {
	Role *Role
}

// IsEmpty reports whether the update would change nothing.
func (u UserUpdate) IsEmpty() bool { return u.Role == nil }

// TicketValidation is the outcome of checking an identity provider ticket.
// Failures are carried in Error rather than returned, so callers always get a value.
type TicketValidation struct {
	Success  bool
	Identity string
	Courses  []string
	Error    string
}

// Claims is the canonical claim set carried by a session token.
type Claims struct {
	ID        string
	Identity  string
	Role      Role
	Domains   []string
	IssuedAt  time.Time
	ExpiresAt time.Time
}
