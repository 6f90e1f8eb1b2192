package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	domainauth "github.com/cmpt474/mm-login-gateway/internal/domain/auth"
	apperrors "github.com/cmpt474/mm-login-gateway/internal/errors"
	"github.com/cmpt474/mm-login-gateway/internal/observability/metrics"
	"github.com/cmpt474/mm-login-gateway/internal/ports"
)

// Client-facing messages.
const (
	msgInvalidLogin       = "Invalid login request"
	msgInvalidSignup      = "Invalid user signup request"
	msgInvalidCaptcha     = "Invalid captcha"
	msgInvalidCredentials = "Invalid credentials"
	msgUserExists         = "User already exists"
	msgUnauthorized       = "Unauthorized"
	msgMissingCode        = "Missing mentor application code"
	msgIncorrectCode      = "Incorrect mentor application code"
	msgAlreadyMentor      = "Already a mentor"
	msgLoginFailed        = "Login failed"
)

// maxPasswordBytes is bcrypt's input limit.
const maxPasswordBytes = 72

// GatewayServiceOptions groups dependencies for GatewayService.
type GatewayServiceOptions struct {
	Tickets ports.TicketValidator
	Users   ports.UserStore
	Tokens  ports.TokenIssuer
	Locker  ports.IdentityLocker

	// Challenge and Hasher back the credential flows; both are required when LegacyEnabled.
	Challenge     ports.ChallengeVerifier
	Hasher        ports.PasswordHasher
	LegacyEnabled bool

	// ElevationCode is the shared secret for the mentor role.
	ElevationCode string
	// EchoElevationCode includes the submitted code in rejection messages.
	EchoElevationCode bool

	Metrics metrics.Recorder
	Logger  *slog.Logger
}

// GatewayService orchestrates ticket login, credential login, signup, introspection and elevation.
// Every call is one-shot; the user store is the only shared state.
type GatewayService struct {
	tickets   ports.TicketValidator
	users     ports.UserStore
	tokens    ports.TokenIssuer
	locker    ports.IdentityLocker
	challenge ports.ChallengeVerifier
	hasher    ports.PasswordHasher
	legacy    bool
	code      string
	echoCode  bool
	metrics   metrics.Recorder
	logger    *slog.Logger
}

// NewGatewayService constructs a GatewayService.
func NewGatewayService(opts GatewayServiceOptions) (*GatewayService, error) {
	if opts.Tickets == nil || opts.Users == nil || opts.Tokens == nil || opts.Locker == nil {
		return nil, errors.New("gateway service: tickets, users, tokens and locker are required")
	}
	if opts.LegacyEnabled && (opts.Challenge == nil || opts.Hasher == nil) {
		return nil, errors.New("gateway service: legacy login requires a challenge verifier and hasher")
	}
	if opts.ElevationCode == "" {
		return nil, errors.New("gateway service: elevation code is required")
	}

	rec := opts.Metrics
	if rec == nil {
		rec = metrics.Nop{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &GatewayService{
		tickets:   opts.Tickets,
		users:     opts.Users,
		tokens:    opts.Tokens,
		locker:    opts.Locker,
		challenge: opts.Challenge,
		hasher:    opts.Hasher,
		legacy:    opts.LegacyEnabled,
		code:      opts.ElevationCode,
		echoCode:  opts.EchoElevationCode,
		metrics:   rec,
		logger:    logger.With("component", "gateway"),
	}, nil
}

// LegacyEnabled reports whether credential login and signup are served.
func (s *GatewayService) LegacyEnabled() bool { return s.legacy }

// TicketLoginInput is the body of a ticket login.
type TicketLoginInput struct {
	Referrer string
	Ticket   string
}

// CredentialsInput is the body of a credential login or signup.
type CredentialsInput struct {
	Username        string
	Password        string
	CaptchaResponse string
	// Referrer is the submitting page's origin, used for the challenge origin check.
	Referrer string
}

// LoginResult is returned by every flow that mints a token.
type LoginResult struct {
	Token    string
	Identity string
	Role     domainauth.Role
	// Courses is only populated by ticket login.
	Courses []string
}

// LoginWithTicket exchanges an identity provider ticket for a session token,
// creating a student record on first login.
func (s *GatewayService) LoginWithTicket(ctx context.Context, in TicketLoginInput) (_ *LoginResult, err error) {
	defer s.observe(metrics.FlowTicketLogin, time.Now(), &err)

	if blank(in.Ticket) || blank(in.Referrer) {
		return nil, apperrors.Validation(msgInvalidLogin)
	}

	res := s.tickets.ValidateTicket(ctx, in.Referrer, in.Ticket)
	if !res.Success {
		reason := res.Error
		if reason == "" {
			reason = msgLoginFailed
		}
		return nil, apperrors.Unauthorized(reason)
	}

	user, err := s.reconcile(ctx, res.Identity)
	if err != nil {
		return nil, err
	}

	token, err := s.issue(user)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "login succeeded", "identity", user.Identity, "flow", metrics.FlowTicketLogin)
	return &LoginResult{Token: token, Identity: user.Identity, Role: user.Role, Courses: res.Courses}, nil
}

// reconcile creates the record if absent and returns the stored record, whose role is authoritative.
func (s *GatewayService) reconcile(ctx context.Context, identity string) (domainauth.User, error) {
	unlock, err := s.locker.Lock(ctx, identity)
	if err != nil {
		return domainauth.User{}, apperrors.Wrap(err, apperrors.ErrCodeInternal, msgLoginFailed)
	}
	defer unlock()

	exists, err := s.users.Exists(ctx, identity)
	if err != nil {
		return domainauth.User{}, apperrors.Wrap(err, apperrors.ErrCodeInternal, msgLoginFailed)
	}
	if !exists {
		created, err := s.users.Create(ctx, domainauth.NewUser{Identity: identity, Role: domainauth.DefaultRole})
		if err != nil {
			return domainauth.User{}, apperrors.Wrap(err, apperrors.ErrCodeInternal, msgLoginFailed)
		}
		if created {
			s.logger.InfoContext(ctx, "user created", "identity", identity)
		}
	}

	user, err := s.users.Get(ctx, identity)
	if err != nil {
		return domainauth.User{}, apperrors.Wrap(err, apperrors.ErrCodeInternal, msgLoginFailed)
	}
	return user, nil
}

// LoginWithCredentials authenticates a legacy username and password.
// Unknown users and wrong passwords are indistinguishable to the caller.
func (s *GatewayService) LoginWithCredentials(ctx context.Context, in CredentialsInput) (_ *LoginResult, err error) {
	defer s.observe(metrics.FlowCredentialLogin, time.Now(), &err)

	if !s.legacy || blank(in.Username) || in.Password == "" || blank(in.CaptchaResponse) {
		return nil, apperrors.Validation(msgInvalidLogin)
	}
	if !s.challenge.Verify(ctx, in.CaptchaResponse, in.Referrer) {
		return nil, apperrors.Challenge(msgInvalidCaptcha)
	}

	user, err := s.users.Get(ctx, in.Username)
	switch {
	case errors.Is(err, domainauth.ErrUserNotFound):
		return nil, apperrors.Unauthorized(msgInvalidCredentials)
	case err != nil:
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, msgLoginFailed)
	}
	if !s.hasher.Compare(user.AuthHash, in.Password) {
		return nil, apperrors.Unauthorized(msgInvalidCredentials)
	}

	token, err := s.issue(user)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "login succeeded", "identity", user.Identity, "flow", metrics.FlowCredentialLogin)
	return &LoginResult{Token: token, Identity: user.Identity, Role: user.Role}, nil
}

// Signup registers a legacy credential user as a student and logs them in.
func (s *GatewayService) Signup(ctx context.Context, in CredentialsInput) (_ *LoginResult, err error) {
	defer s.observe(metrics.FlowSignup, time.Now(), &err)

	if !s.legacy || blank(in.Username) || in.Password == "" || blank(in.CaptchaResponse) {
		return nil, apperrors.Validation(msgInvalidSignup)
	}
	if len(in.Password) > maxPasswordBytes {
		return nil, apperrors.ValidationField("password", msgInvalidSignup)
	}
	if !s.challenge.Verify(ctx, in.CaptchaResponse, in.Referrer) {
		return nil, apperrors.Challenge(msgInvalidCaptcha)
	}

	exists, err := s.users.Exists(ctx, in.Username)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "Failed to create user")
	}
	if exists {
		return nil, apperrors.Conflict(msgUserExists)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "Failed to create user")
	}

	created, err := s.users.Create(ctx, domainauth.NewUser{
		Identity: in.Username,
		Role:     domainauth.DefaultRole,
		AuthHash: hash,
	})
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "Failed to create user")
	}
	if !created {
		return nil, apperrors.Conflict(msgUserExists)
	}
	s.logger.InfoContext(ctx, "user created", "identity", in.Username)

	user := domainauth.User{Identity: in.Username, Role: domainauth.DefaultRole}
	token, err := s.issue(user)
	if err != nil {
		return nil, err
	}
	return &LoginResult{Token: token, Identity: user.Identity, Role: user.Role}, nil
}

// Authenticate validates a bearer token's signature, expiry and domain binding.
// It does not consult the store; use Introspect for that.
func (s *GatewayService) Authenticate(token string) (domainauth.Claims, error) {
	claims, err := s.tokens.Validate(token)
	if err != nil {
		return domainauth.Claims{}, apperrors.Wrap(err, apperrors.ErrCodeTokenInvalid, msgUnauthorized)
	}
	return claims, nil
}

// Introspect validates token and checks its role claim against the store.
// Every failure, including store errors, is reported as the same TokenInvalid error.
func (s *GatewayService) Introspect(ctx context.Context, token string) (_ domainauth.Claims, err error) {
	defer s.observe(metrics.FlowIntrospect, time.Now(), &err)

	claims, err := s.Authenticate(token)
	if err != nil {
		return domainauth.Claims{}, err
	}

	user, err := s.users.Get(ctx, claims.Identity)
	if err != nil {
		if !errors.Is(err, domainauth.ErrUserNotFound) {
			s.logger.ErrorContext(ctx, "introspection store lookup failed", "identity", claims.Identity, "error", err)
		}
		return domainauth.Claims{}, apperrors.Wrap(err, apperrors.ErrCodeTokenInvalid, msgUnauthorized)
	}
	if user.Role != claims.Role {
		return domainauth.Claims{}, apperrors.Wrap(
			fmt.Errorf("%w: role claim %q, stored %q", domainauth.ErrTokenInvalid, claims.Role, user.Role),
			apperrors.ErrCodeTokenInvalid, msgUnauthorized)
	}
	return claims, nil
}

// ApplyMentor elevates the token holder to mentor when code matches the configured secret,
// returning a fresh token carrying the new role.
func (s *GatewayService) ApplyMentor(ctx context.Context, claims domainauth.Claims, code string) (_ *LoginResult, err error) {
	defer s.observe(metrics.FlowElevation, time.Now(), &err)

	if claims.Identity == "" {
		return nil, apperrors.TokenInvalid(msgUnauthorized)
	}
	if code == "" {
		return nil, apperrors.ValidationField("applicationCode", s.codeMessage(msgMissingCode, code))
	}
	if subtle.ConstantTimeCompare([]byte(code), []byte(s.code)) != 1 {
		s.logger.InfoContext(ctx, "mentor application rejected", "identity", claims.Identity)
		return nil, apperrors.ValidationField("applicationCode", s.codeMessage(msgIncorrectCode, code))
	}

	unlock, err := s.locker.Lock(ctx, claims.Identity)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, grantFailed(claims.Identity))
	}
	defer unlock()

	user, err := s.users.Get(ctx, claims.Identity)
	switch {
	case errors.Is(err, domainauth.ErrUserNotFound):
		return nil, apperrors.Wrap(err, apperrors.ErrCodeTokenInvalid, msgUnauthorized)
	case err != nil:
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, grantFailed(claims.Identity))
	}
	if user.Role == domainauth.RoleMentor {
		return nil, apperrors.Conflict(msgAlreadyMentor)
	}

	mentor := domainauth.RoleMentor
	updated, err := s.users.Update(ctx, user.Identity, domainauth.UserUpdate{Role: &mentor})
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, grantFailed(user.Identity))
	}
	if !updated {
		return nil, apperrors.Internal(grantFailed(user.Identity))
	}
	s.logger.InfoContext(ctx, "mentor role granted", "identity", user.Identity)

	user.Role = mentor
	token, err := s.issue(user)
	if err != nil {
		return nil, err
	}
	return &LoginResult{Token: token, Identity: user.Identity, Role: user.Role}, nil
}

func (s *GatewayService) codeMessage(base, code string) string {
	if !s.echoCode {
		return base
	}
	return fmt.Sprintf("%s. Got %q", base, code)
}

func grantFailed(identity string) string {
	return fmt.Sprintf("Failed to give %s mentor role", identity)
}

func (s *GatewayService) issue(user domainauth.User) (string, error) {
	token, err := s.tokens.Issue(user.Identity, user.Role)
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrCodeInternal, msgLoginFailed)
	}
	return token, nil
}

func (s *GatewayService) observe(flow string, start time.Time, errp *error) {
	var err error
	if errp != nil {
		err = *errp
	}
	s.metrics.RecordFlow(metrics.FlowMetric{Flow: flow, Duration: time.Since(start), Err: err})
	if apperrors.IsInternal(err) {
		s.logger.Error("gateway flow failed", "flow", flow, "error", err)
	}
}

func blank(s string) bool { return strings.TrimSpace(s) == "" }
