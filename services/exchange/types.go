package exchange

import (
	"context"
	"time"

	"github.com/upb/cookie-auth-gateway/internal/policy"
)

// Verdict is the outcome of one evaluation.
type Verdict string

const (
	// VerdictAuthorized: a credential resolved to an identity on the allow list.
	VerdictAuthorized Verdict = "authorized"

	// VerdictDenied: a verified identity that is not on the allow list.
	VerdictDenied Verdict = "denied"

	// VerdictInvalidCredential: the external token failed verification.
	VerdictInvalidCredential Verdict = "invalid_credential"

	// VerdictNoCredentialPresented: nothing usable was presented.
	VerdictNoCredentialPresented Verdict = "no_credential_presented"

	// VerdictError: the gateway failed internally.
	VerdictError Verdict = "error"
)

// MutationOp is what to do with a cookie.
type MutationOp string

const (
	MutationSet    MutationOp = "set"
	MutationDelete MutationOp = "delete"
)

// CookieMutation names exactly one cookie to set or delete.
type CookieMutation struct {
	Op    MutationOp
	Name  string
	Value string // empty for MutationDelete
}

// Source says which credential form decided the verdict.
type Source string

const (
	SourceNone     Source = "none"
	SourceOpaque   Source = "opaque"
	SourceExternal Source = "external"
)

// Result is the verdict of one evaluation plus at most one cookie mutation.
type Result struct {
	Verdict  Verdict
	Source   Source
	Identity string
	Mutation *CookieMutation

	// Err is the classified reason for any verdict other than
	// VerdictAuthorized. It is for logging only.
	Err error
}

// Codec mints and opens opaque credentials.
type Codec interface {
	Encrypt(identity string) (string, error)
	Decrypt(blob string) (string, error)
}

// VerifiedToken is what the exchange needs from a verified external token.
type VerifiedToken struct {
	Identity  string
	ExpiresAt time.Time
}

// TokenVerifier checks an externally issued identity token. It may block
// on the network and must honour ctx.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (*VerifiedToken, error)
}

// Policy decides whether an identity may pass.
type Policy interface {
	Evaluate(identity string) policy.Decision
}

// CookieNames configures which cookies carry each credential form.
type CookieNames struct {
	Opaque   string
	External string
}
