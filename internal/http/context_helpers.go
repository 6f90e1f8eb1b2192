package httpx

import (
	"context"

	domainauth "github.com/cmpt474/mm-login-gateway/internal/domain/auth"
)

// claimsKey is an unexported context key type to avoid collisions across packages.
type claimsKey struct{}

// SetClaimsInContext returns a child context that carries validated token claims.
func SetClaimsInContext(ctx context.Context, claims domainauth.Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, claims)
}

// GetClaimsFromContext returns the token claims placed by RequireToken and whether they were present.
func GetClaimsFromContext(ctx context.Context) (domainauth.Claims, bool) {
	claims, ok := ctx.Value(claimsKey{}).(domainauth.Claims)
	if !ok || claims.Identity == "" {
		return domainauth.Claims{}, false
	}
	return claims, true
}
