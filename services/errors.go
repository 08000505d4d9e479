package services

import (
	"errors"
	"fmt"
)

// ErrorKind classifies why a credential could not be used.
type ErrorKind string

const (
	// KindMalformedCookie is a cookie header problem. Never surfaced; the
	// cookie is treated as absent.
	KindMalformedCookie ErrorKind = "malformed_cookie"

	// KindInvalidCredential is an opaque credential that failed to decrypt
	// or authenticate. Treated as absent.
	KindInvalidCredential ErrorKind = "invalid_credential"

	// KindTokenVerificationFailed is an external identity token that failed
	// signature, issuer, audience or expiry checks.
	KindTokenVerificationFailed ErrorKind = "token_verification_failed"

	// KindNotAuthorized is a valid identity that is not on the allow list.
	KindNotAuthorized ErrorKind = "not_authorized"

	// KindNoCredentialPresented means neither credential form was usable.
	KindNoCredentialPresented ErrorKind = "no_credential_presented"

	// KindInternal is an unexpected failure in the gateway itself.
	KindInternal ErrorKind = "internal"
)

// AuthError is a classified credential failure with optional cause.
type AuthError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

// Error implements the error interface
func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *AuthError) Unwrap() error {
	return e.Err
}

// Is matches any AuthError of the same kind.
func (e *AuthError) Is(target error) bool {
	t, ok := target.(*AuthError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// NewAuthError creates a new AuthError
func NewAuthError(kind ErrorKind, message string, err error) *AuthError {
	return &AuthError{
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

var (
	ErrMalformedCookie         = NewAuthError(KindMalformedCookie, "malformed cookie", nil)
	ErrInvalidCredential       = NewAuthError(KindInvalidCredential, "invalid credential", nil)
	ErrTokenVerificationFailed = NewAuthError(KindTokenVerificationFailed, "token verification failed", nil)
	ErrNotAuthorized           = NewAuthError(KindNotAuthorized, "not authorized", nil)
	ErrNoCredentialPresented   = NewAuthError(KindNoCredentialPresented, "no credential presented", nil)
	ErrInternal                = NewAuthError(KindInternal, "internal error", nil)
)

// KindOf returns the ErrorKind of err, or "" if err is nil or unclassified.
func KindOf(err error) ErrorKind {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr.Kind
	}
	return ""
}

// WrapError wraps an error with a kind and message
func WrapError(kind ErrorKind, message string, err error) error {
	return NewAuthError(kind, message, err)
}
