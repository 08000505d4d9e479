// Package googleid verifies Google-issued OpenID Connect ID tokens, such as
// the credential set by Google Identity Services ("Sign in with Google").
//
// Verification checks the RS256 signature against Google's published JWKS,
// the issuer, the audience (our OAuth client ID) and the expiry. Keys are
// cached and refetched when an unknown kid appears.
package googleid
