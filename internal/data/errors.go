package data

import "errors"

// Shared sentinel errors for data-layer repositories.
var (
	ErrIdentityRequired = errors.New("identity is required")
	ErrInvalidRole      = errors.New("invalid role")
)
