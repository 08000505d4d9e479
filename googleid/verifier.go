package googleid

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	jose "github.com/go-jose/go-jose/v4"
	"github.com/golang-jwt/jwt/v5"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// DefaultJWKSURL is where Google publishes the keys that sign ID tokens.
const DefaultJWKSURL = "https://www.googleapis.com/oauth2/v3/certs"

// DefaultIssuers are the two issuer spellings Google uses for ID tokens.
var DefaultIssuers = []string{"accounts.google.com", "https://accounts.google.com"}

const keyCacheSize = 32

// forcedRefreshInterval is the minimum gap between refetches triggered by an
// unknown kid. kid is read before the signature is checked, so any caller
// can present one.
const forcedRefreshInterval = time.Minute

var (
	// ErrInvalidToken is returned when the token is malformed or its signature does not verify
	ErrInvalidToken = errors.New("invalid token")

	// ErrTokenExpired is returned when the token has expired
	ErrTokenExpired = errors.New("token expired")

	// ErrInvalidIssuer is returned when the token issuer is not Google
	ErrInvalidIssuer = errors.New("invalid issuer")

	// ErrInvalidAudience is returned when the token was not issued for our client ID
	ErrInvalidAudience = errors.New("invalid audience")

	// ErrMissingEmail is returned when the token carries no email claim
	ErrMissingEmail = errors.New("missing email claim")

	// ErrEmailNotVerified is returned when verified email is required and the claim is false
	ErrEmailNotVerified = errors.New("email not verified")

	// ErrJWKSFetchFailed is returned when JWKS fetching fails
	ErrJWKSFetchFailed = errors.New("failed to fetch JWKS")

	// ErrKeyNotFound is returned when no signing key matches the token's kid
	ErrKeyNotFound = errors.New("signing key not found")
)

// Claims represents the claims of a Google ID token
type Claims struct {
	jwt.RegisteredClaims
	Email           string `json:"email"`
	EmailVerified   bool   `json:"email_verified"`
	Name            string `json:"name"`
	HostedDomain    string `json:"hd"`
	AuthorizedParty string `json:"azp"`
}

// ParsedClaims represents verified claims
type ParsedClaims struct {
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
	HostedDomain  string
	Issuer        string
	IssuedAt      time.Time
	ExpiresAt     time.Time
}

// Config holds configuration for Verifier
type Config struct {
	ClientID             string
	JWKSURL              string
	Issuers              []string
	RequireVerifiedEmail bool
	CacheTTL             time.Duration
	HTTPTimeout          time.Duration
	Leeway               time.Duration
}

// Verifier validates Google-issued ID tokens against Google's published keys.
// It is safe for concurrent use.
type Verifier struct {
	clientID             string
	issuers              []string
	requireVerifiedEmail bool
	leeway               time.Duration
	jwksURL              string
	httpClient           *http.Client

	// Cache for JWKS
	jwksCache    *jose.JSONWebKeySet
	jwksCacheExp time.Time
	jwksCacheTTL time.Duration
	lastForced   time.Time
	cacheMu      sync.RWMutex

	// Cache for parsed public keys
	keyCache *expirable.LRU[string, *rsa.PublicKey]

	now func() time.Time
}

// NewVerifier creates a new Google ID token verifier
func NewVerifier(config Config) *Verifier {
	if config.CacheTTL == 0 {
		config.CacheTTL = 1 * time.Hour
	}
	if config.HTTPTimeout == 0 {
		config.HTTPTimeout = 10 * time.Second
	}
	if config.JWKSURL == "" {
		config.JWKSURL = DefaultJWKSURL
	}
	if len(config.Issuers) == 0 {
		config.Issuers = DefaultIssuers
	}

	return &Verifier{
		clientID:             config.ClientID,
		issuers:              append([]string(nil), config.Issuers...),
		requireVerifiedEmail: config.RequireVerifiedEmail,
		leeway:               config.Leeway,
		jwksURL:              config.JWKSURL,
		jwksCacheTTL:         config.CacheTTL,
		httpClient: &http.Client{
			Timeout: config.HTTPTimeout,
		},
		keyCache: expirable.NewLRU[string, *rsa.PublicKey](keyCacheSize, nil, config.CacheTTL),
		now:      time.Now,
	}
}

// VerifyToken checks signature, issuer, audience and expiry of an ID token
// and returns its claims. ctx bounds any JWKS fetch.
func (v *Verifier) VerifyToken(ctx context.Context, tokenString string) (*ParsedClaims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(v.leeway),
		jwt.WithTimeFunc(v.now),
	)

	token, err := parser.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		kid, ok := token.Header["kid"].(string)
		if !ok || kid == "" {
			return nil, errors.New("kid header not found")
		}

		publicKey, err := v.getPublicKey(ctx, kid)
		if err != nil {
			return nil, fmt.Errorf("failed to get public key: %w", err)
		}
		return publicKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		if errors.Is(err, ErrJWKSFetchFailed) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	if !v.validIssuer(claims.Issuer) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidIssuer, claims.Issuer)
	}

	if !containsAudience(claims.Audience, v.clientID) {
		return nil, ErrInvalidAudience
	}

	if claims.Email == "" {
		return nil, ErrMissingEmail
	}
	if v.requireVerifiedEmail && !claims.EmailVerified {
		return nil, ErrEmailNotVerified
	}

	return parseClaims(claims), nil
}

// FetchJWKS returns Google's key set, from cache when fresh
func (v *Verifier) FetchJWKS(ctx context.Context) (*jose.JSONWebKeySet, error) {
	v.cacheMu.RLock()
	if v.jwksCache != nil && v.now().Before(v.jwksCacheExp) {
		defer v.cacheMu.RUnlock()
		return v.jwksCache, nil
	}
	v.cacheMu.RUnlock()

	return v.downloadJWKS(ctx)
}

// downloadJWKS fetches the key set and replaces the cached one on success.
// A failed fetch leaves the cache untouched.
func (v *Verifier) downloadJWKS(ctx context.Context) (*jose.JSONWebKeySet, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.jwksURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrJWKSFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status code %d", ErrJWKSFetchFailed, resp.StatusCode)
	}

	var jwks jose.JSONWebKeySet
	if err := json.NewDecoder(resp.Body).Decode(&jwks); err != nil {
		return nil, fmt.Errorf("%w: decoding JWKS: %v", ErrJWKSFetchFailed, err)
	}

	v.cacheMu.Lock()
	v.jwksCache = &jwks
	v.jwksCacheExp = v.now().Add(v.jwksCacheTTL)
	v.cacheMu.Unlock()

	return &jwks, nil
}

// getPublicKey resolves kid to an RSA key. A kid missing from a cached set
// forces a refetch, since Google rotates keys ahead of the cache TTL, at most
// once per forcedRefreshInterval.
func (v *Verifier) getPublicKey(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	if key, ok := v.keyCache.Get(kid); ok {
		return key, nil
	}

	jwks, err := v.FetchJWKS(ctx)
	if err != nil {
		return nil, err
	}

	key, err := findRSAKey(jwks, kid)
	if errors.Is(err, ErrKeyNotFound) && v.claimForcedRefresh() {
		if jwks, err = v.downloadJWKS(ctx); err != nil {
			return nil, err
		}
		key, err = findRSAKey(jwks, kid)
	}
	if err != nil {
		return nil, err
	}

	v.keyCache.Add(kid, key)
	return key, nil
}

// claimForcedRefresh reports whether a kid-triggered refetch may run now and,
// if so, records it.
func (v *Verifier) claimForcedRefresh() bool {
	v.cacheMu.Lock()
	defer v.cacheMu.Unlock()

	now := v.now()
	if !v.lastForced.IsZero() && now.Sub(v.lastForced) < forcedRefreshInterval {
		return false
	}
	v.lastForced = now
	return true
}

func findRSAKey(jwks *jose.JSONWebKeySet, kid string) (*rsa.PublicKey, error) {
	for _, jwk := range jwks.Key(kid) {
		if jwk.Use != "" && jwk.Use != "sig" {
			continue
		}
		if key, ok := jwk.Key.(*rsa.PublicKey); ok {
			return key, nil
		}
	}
	return nil, fmt.Errorf("%w: kid %s", ErrKeyNotFound, kid)
}

func (v *Verifier) validIssuer(iss string) bool {
	for _, allowed := range v.issuers {
		if iss == allowed {
			return true
		}
	}
	return false
}

// containsAudience checks if the audience list contains the expected client ID
func containsAudience(audiences jwt.ClaimStrings, clientID string) bool {
	if clientID == "" {
		return false
	}
	for _, aud := range audiences {
		if aud == clientID {
			return true
		}
	}
	return false
}

func (v *Verifier) invalidateJWKS() {
	v.cacheMu.Lock()
	defer v.cacheMu.Unlock()
	v.jwksCache = nil
	v.jwksCacheExp = time.Time{}
}

// InvalidateCache drops the cached key set and parsed keys
func (v *Verifier) InvalidateCache() {
	v.invalidateJWKS()
	v.keyCache.Purge()
}

// CacheStats returns cache statistics
func (v *Verifier) CacheStats() map[string]interface{} {
	v.cacheMu.RLock()
	defer v.cacheMu.RUnlock()

	stats := map[string]interface{}{
		"jwks_cached":       v.jwksCache != nil,
		"jwks_expires_at":   v.jwksCacheExp,
		"cached_keys_count": v.keyCache.Len(),
	}
	if v.jwksCache != nil {
		stats["jwks_keys_count"] = len(v.jwksCache.Keys)
	}
	return stats
}
