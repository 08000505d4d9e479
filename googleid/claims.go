package googleid

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// ExtractClaims parses claims from a token without verifying it.
// Only use the result for diagnostics, never for authorization.
func ExtractClaims(tokenString string) (*ParsedClaims, error) {
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())

	claims := &Claims{}
	if _, _, err := parser.ParseUnverified(tokenString, claims); err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	return parseClaims(claims), nil
}

func parseClaims(claims *Claims) *ParsedClaims {
	parsed := &ParsedClaims{
		Subject:       claims.Subject,
		Email:         claims.Email,
		EmailVerified: claims.EmailVerified,
		Name:          claims.Name,
		HostedDomain:  claims.HostedDomain,
		Issuer:        claims.Issuer,
	}
	if claims.IssuedAt != nil {
		parsed.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		parsed.ExpiresAt = claims.ExpiresAt.Time
	}
	return parsed
}
