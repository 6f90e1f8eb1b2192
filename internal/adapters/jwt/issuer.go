// Package jwt issues and validates HS256 session tokens bound to the gateway and web app domains.
package jwt

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	domainauth "github.com/cmpt474/mm-login-gateway/internal/domain/auth"
	"github.com/cmpt474/mm-login-gateway/internal/ports"
)

const (
	signingAlg   = "HS256"
	minSecretLen = 32
)

var _ ports.TokenIssuer = (*Issuer)(nil)

// IssuerOptions configures an Issuer. All values come from deployment configuration.
type IssuerOptions struct {
	Secret        []byte
	GatewayDomain string
	WebappDomain  string
	TTL           time.Duration
	Leeway        time.Duration
	// Now overrides the clock; nil uses time.Now.
	Now func() time.Time
}

// Issuer implements ports.TokenIssuer.
type Issuer struct {
	secret   []byte
	gateway  string
	webapp   string
	ttl      time.Duration
	leeway   time.Duration
	now      func() time.Time
	audience jwt.ClaimStrings
}

// sessionClaims is the wire form of domainauth.Claims.
type sessionClaims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// NewIssuer constructs an Issuer.
func NewIssuer(opts IssuerOptions) (*Issuer, error) {
	if len(opts.Secret) < minSecretLen {
		return nil, fmt.Errorf("jwt: secret must be at least %d bytes", minSecretLen)
	}
	if opts.GatewayDomain == "" || opts.WebappDomain == "" {
		return nil, errors.New("jwt: gateway and webapp domains are required")
	}
	if opts.TTL <= 0 {
		return nil, errors.New("jwt: ttl must be positive")
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Issuer{
		secret:   slices.Clone(opts.Secret),
		gateway:  opts.GatewayDomain,
		webapp:   opts.WebappDomain,
		ttl:      opts.TTL,
		leeway:   opts.Leeway,
		now:      now,
		audience: jwt.ClaimStrings{opts.GatewayDomain, opts.WebappDomain},
	}, nil
}

// Issue mints a signed token for identity and role.
func (i *Issuer) Issue(identity string, role domainauth.Role) (string, error) {
	if identity == "" {
		return "", errors.New("jwt: identity is required")
	}
	if !role.Valid() {
		return "", fmt.Errorf("jwt: invalid role %q", role)
	}

	now := i.now().UTC().Truncate(time.Second)
	claims := sessionClaims{
		Username: identity,
		Role:     string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   identity,
			Issuer:    i.gateway,
			Audience:  i.audience,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("jwt: sign token: %w", err)
	}
	return signed, nil
}

// Validate checks signature, algorithm, expiry and domain binding, returning the canonical claims.
// Every rejection wraps domainauth.ErrTokenInvalid.
func (i *Issuer) Validate(token string) (domainauth.Claims, error) {
	if token == "" {
		return domainauth.Claims{}, fmt.Errorf("%w: empty token", domainauth.ErrTokenInvalid)
	}

	var claims sessionClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{signingAlg}),
		jwt.WithIssuer(i.gateway),
		jwt.WithLeeway(i.leeway),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return domainauth.Claims{}, fmt.Errorf("%w: %w", domainauth.ErrTokenInvalid, err)
	}

	// WithIssuedAt only checks iat when present; a token without one is not ours.
	if claims.IssuedAt == nil || claims.ExpiresAt == nil {
		return domainauth.Claims{}, fmt.Errorf("%w: %w", domainauth.ErrTokenInvalid, jwt.ErrTokenRequiredClaimMissing)
	}
	if !slices.Contains(claims.Audience, i.gateway) || !slices.Contains(claims.Audience, i.webapp) {
		return domainauth.Claims{}, fmt.Errorf("%w: %w", domainauth.ErrTokenInvalid, jwt.ErrTokenInvalidAudience)
	}
	role := domainauth.Role(claims.Role)
	if claims.Username == "" || !role.Valid() {
		return domainauth.Claims{}, fmt.Errorf("%w: %w", domainauth.ErrTokenInvalid, jwt.ErrTokenInvalidClaims)
	}

	return domainauth.Claims{
		ID:        claims.ID,
		Identity:  claims.Username,
		Role:      role,
		Domains:   []string(claims.Audience),
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}
