package auth

// Package auth contains simple hand-written test doubles for auth ports.
// These are lightweight and suitable for unit tests without codegen.

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	domainauth "github.com/cmpt474/mm-login-gateway/internal/domain/auth"
	"github.com/cmpt474/mm-login-gateway/internal/ports"
)

// Ensure compile-time conformance to ports.
var (
	_ ports.TicketValidator   = (*StubTicketValidator)(nil)
	_ ports.ChallengeVerifier = (*StubChallengeVerifier)(nil)
	_ ports.TokenIssuer       = (*StaticTokenIssuer)(nil)
	_ ports.PasswordHasher    = PlainHasher{}
)

// StubTicketValidator returns a fixed result per ticket and records the service origins it saw.
type StubTicketValidator struct {
	// Results keyed by ticket. Unknown tickets fail with "Invalid SFU login".
	Results      map[string]domainauth.TicketValidation
	ValidateFunc func(ctx context.Context, service, ticket string) domainauth.TicketValidation

	mu       sync.Mutex
	services []string
}

// NewStubTicketValidator returns a validator that accepts ticket for identity as a student.
func NewStubTicketValidator(ticket, identity string, courses ...string) *StubTicketValidator {
	return &StubTicketValidator{
		Results: map[string]domainauth.TicketValidation{
			ticket: {Success: true, Identity: identity, Courses: courses},
		},
	}
}

func (s *StubTicketValidator) ValidateTicket(ctx context.Context, service, ticket string) domainauth.TicketValidation {
	s.mu.Lock()
	s.services = append(s.services, service)
	s.mu.Unlock()

	if s.ValidateFunc != nil {
		return s.ValidateFunc(ctx, service, ticket)
	}
	if res, ok := s.Results[ticket]; ok {
		return res
	}
	return domainauth.TicketValidation{Error: "Invalid SFU login"}
}

// Services returns the service origins passed to ValidateTicket, in call order.
func (s *StubTicketValidator) Services() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.services...)
}

// StubChallengeVerifier passes a fixed set of responses.
type StubChallengeVerifier struct {
	// Accept lists responses that pass. Everything else fails.
	Accept []string
	// Calls counts Verify invocations.
	Calls int
}

func (s *StubChallengeVerifier) Verify(_ context.Context, response, _ string) bool {
	s.Calls++
	for _, a := range s.Accept {
		if a == response {
			return true
		}
	}
	return false
}

// StaticTokenIssuer encodes claims as "identity|role" strings. Useful where real signing is noise.
type StaticTokenIssuer struct {
	Domains []string
	TTL     time.Duration
	// IssueErr, when set, is returned from Issue.
	IssueErr error
}

// ErrBadToken is returned by StaticTokenIssuer for tokens it did not mint.
var ErrBadToken = errors.New("static token: malformed")

func (s *StaticTokenIssuer) Issue(identity string, role domainauth.Role) (string, error) {
	if s.IssueErr != nil {
		return "", s.IssueErr
	}
	return fmt.Sprintf("%s|%s", identity, role), nil
}

func (s *StaticTokenIssuer) Validate(token string) (domainauth.Claims, error) {
	identity, role, ok := strings.Cut(token, "|")
	if !ok || identity == "" || !domainauth.Role(role).Valid() {
		return domainauth.Claims{}, ErrBadToken
	}
	ttl := s.TTL
	if ttl == 0 {
		ttl = time.Hour
	}
	now := time.Now()
	return domainauth.Claims{
		ID:        token,
		Identity:  identity,
		Role:      domainauth.Role(role),
		Domains:   s.Domains,
		IssuedAt:  now,
		ExpiresAt: now.Add(ttl),
	}, nil
}

// PlainHasher "hashes" by prefixing. Never use outside tests.
type PlainHasher struct{}

func (PlainHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", errors.New("empty password")
	}
	return "plain:" + password, nil
}

func (PlainHasher) Compare(hash, password string) bool {
	return hash == "plain:"+password
}
