package devauth

// Package devauth provides a config-driven ticket validator for local development.
// It never contacts an identity provider.

import (
	"context"
	"errors"
	"strings"

	domainauth "github.com/cmpt474/mm-login-gateway/internal/domain/auth"
	"github.com/cmpt474/mm-login-gateway/internal/ports"
)

// TicketPrefix lets a developer pick the identity per login: "dev:abc12" logs in as abc12.
const TicketPrefix = "dev:"

// Config controls the dev validator behavior.
type Config struct {
	// Identity is returned for any ticket without TicketPrefix.
	Identity string
	Courses  []string
}

// Validator implements ports.TicketValidator for local development.
type Validator struct {
	identity string
	courses  []string
}

var _ ports.TicketValidator = (*Validator)(nil)

// NewValidator constructs a dev validator from Config.
func NewValidator(cfg Config) (*Validator, error) {
	identity := strings.TrimSpace(cfg.Identity)
	if identity == "" {
		return nil, errors.New("dev auth: Identity is required")
	}
	return &Validator{
		identity: identity,
		courses:  domainauth.FilterCourses(cfg.Courses),
	}, nil
}

// ValidateTicket accepts any non-empty ticket.
func (v *Validator) ValidateTicket(_ context.Context, _, ticket string) domainauth.TicketValidation {
	ticket = strings.TrimSpace(ticket)
	if ticket == "" {
		return domainauth.TicketValidation{Error: "Invalid SFU login", Courses: []string{}}
	}

	identity := v.identity
	if rest, ok := strings.CutPrefix(ticket, TicketPrefix); ok {
		if rest = strings.TrimSpace(rest); rest != "" {
			identity = rest
		}
	}
	return domainauth.TicketValidation{
		Success:  true,
		Identity: identity,
		Courses:  append([]string{}, v.courses...),
	}
}
