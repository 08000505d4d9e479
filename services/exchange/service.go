// Package exchange decides, from a request's cookies, whether the caller
// may pass the gateway and which single cookie to update.
//
// Two credential forms are reconciled. The opaque credential is minted by
// this service and never expires. The external token is a short-lived
// identity token issued by Google. A verified external token for an
// authorized identity is exchanged for an opaque credential.
//
// The fronting proxy can forward only one Set-Cookie per auth subrequest,
// so every evaluation emits at most one CookieMutation. When a token is
// exchanged the new opaque cookie is set and the external cookie is left in
// place; it is deleted on the next request, once the opaque cookie is seen.
package exchange

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/upb/cookie-auth-gateway/internal/cookiejar"
	"github.com/upb/cookie-auth-gateway/internal/observability"
	"github.com/upb/cookie-auth-gateway/services"
)

// DefaultVerifyTimeout bounds a single external token verification.
const DefaultVerifyTimeout = 10 * time.Second

// Config holds Service settings.
type Config struct {
	Cookies       CookieNames
	VerifyTimeout time.Duration
}

// Service runs the credential exchange. It holds only immutable
// collaborators and is safe for concurrent use.
type Service struct {
	codec    Codec
	verifier TokenVerifier
	policy   Policy
	cookies  CookieNames
	timeout  time.Duration
	logger   observability.Logger
	metrics  observability.Metrics
	now      func() time.Time
}

// NewService creates a new exchange Service.
func NewService(cfg Config, codec Codec, verifier TokenVerifier, policy Policy, logger observability.Logger, metrics observability.Metrics) *Service {
	if cfg.VerifyTimeout <= 0 {
		cfg.VerifyTimeout = DefaultVerifyTimeout
	}
	if logger == nil {
		logger = observability.NewLogger(nil)
	}
	if metrics == nil {
		metrics = observability.NopMetrics{}
	}
	return &Service{
		codec:    codec,
		verifier: verifier,
		policy:   policy,
		cookies:  cfg.Cookies,
		timeout:  cfg.VerifyTimeout,
		logger:   logger,
		metrics:  metrics,
		now:      time.Now,
	}
}

// stepResult is the outcome of checking one credential form: an identity,
// or an error classified by services.ErrorKind.
type stepResult struct {
	identity string
	err      error
}

func accepted(identity string) stepResult { return stepResult{identity: identity} }

func fail(kind services.ErrorKind, message string, err error) stepResult {
	return stepResult{err: services.WrapError(kind, message, err)}
}

// EvaluateHeader parses a raw Cookie header and evaluates it.
func (s *Service) EvaluateHeader(ctx context.Context, rawCookieHeader string) Result {
	return s.Evaluate(ctx, cookiejar.Parse(rawCookieHeader))
}

// Evaluate runs the exchange over jar.
//
// The opaque credential is checked first. If it opens and its identity is
// authorized the caller passes and the external cookie is deleted. Any
// other opaque outcome falls through to the external token. A verified,
// authorized external token is exchanged for a new opaque cookie. A
// verified but unauthorized one is denied without touching cookies. A
// token that fails verification is deleted.
func (s *Service) Evaluate(ctx context.Context, jar cookiejar.Jar) Result {
	start := s.now()
	res := s.evaluate(ctx, jar)
	s.record(ctx, res, s.now().Sub(start))
	return res
}

func (s *Service) evaluate(ctx context.Context, jar cookiejar.Jar) Result {
	// Last reason a credential was rejected without ending evaluation.
	var fallthroughErr error

	if blob, present := jar.Get(s.cookies.Opaque); present {
		step := s.checkOpaque(ctx, blob)
		switch services.KindOf(step.err) {
		case "":
			s.logger.Info(ctx, "opaque credential accepted", zap.String("identity", step.identity))
			return Result{
				Verdict:  VerdictAuthorized,
				Source:   SourceOpaque,
				Identity: step.identity,
				Mutation: s.deleteCookie(s.cookies.External),
			}
		default:
			fallthroughErr = step.err
		}
	}

	if token, present := jar.Get(s.cookies.External); present {
		step := s.checkExternal(ctx, token)
		switch services.KindOf(step.err) {
		case "":
			return s.mintOpaque(ctx, step.identity)
		case services.KindNotAuthorized:
			return Result{
				Verdict:  VerdictDenied,
				Source:   SourceExternal,
				Identity: step.identity,
				Err:      step.err,
			}
		default:
			return Result{
				Verdict:  VerdictInvalidCredential,
				Source:   SourceExternal,
				Mutation: s.deleteCookie(s.cookies.External),
				Err:      step.err,
			}
		}
	}

	return Result{
		Verdict: VerdictNoCredentialPresented,
		Source:  SourceNone,
		Err:     services.WrapError(services.KindNoCredentialPresented, "no usable credential", fallthroughErr),
	}
}

// checkOpaque opens the opaque credential and applies the allow list.
func (s *Service) checkOpaque(ctx context.Context, blob string) (res stepResult) {
	defer s.recoverStep(ctx, services.KindInvalidCredential, "opaque credential rejected", &res)

	identity, err := s.codec.Decrypt(blob)
	if err != nil {
		s.logger.Warn(ctx, "opaque credential invalid", zap.Error(err))
		return fail(services.KindInvalidCredential, "opaque credential rejected", err)
	}

	s.logger.Debug(ctx, "opaque credential opened", zap.String("identity", identity))
	return s.authorize(ctx, identity, SourceOpaque)
}

// checkExternal verifies the external token under the verify timeout and
// applies the allow list.
func (s *Service) checkExternal(ctx context.Context, token string) (res stepResult) {
	defer s.recoverStep(ctx, services.KindTokenVerificationFailed, "external token rejected", &res)

	verifyCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	verified, err := s.verifier.VerifyToken(verifyCtx, token)
	if err == nil && (verified == nil || verified.Identity == "") {
		err = errEmptyIdentity
	}
	if err != nil {
		s.logger.Warn(ctx, "external token invalid", zap.Error(err))
		return fail(services.KindTokenVerificationFailed, "external token rejected", err)
	}

	s.logger.Info(ctx, "external token verified",
		zap.String("identity", verified.Identity),
		zap.Duration("expires_in", verified.ExpiresAt.Sub(s.now()).Round(time.Second)))

	return s.authorize(ctx, verified.Identity, SourceExternal)
}

func (s *Service) authorize(ctx context.Context, identity string, source Source) stepResult {
	decision := s.policy.Evaluate(identity)
	if !decision.Allowed {
		s.logger.Warn(ctx, decision.Reason, zap.String("identity", identity), zap.String("source", string(source)))
		return stepResult{identity: identity, err: services.NewAuthError(services.KindNotAuthorized, decision.Reason, nil)}
	}
	return accepted(identity)
}

// recoverStep turns a panic in a collaborator into a failed step of kind,
// so a faulty codec or verifier still yields one of the normal verdicts.
// It must be deferred directly.
func (s *Service) recoverStep(ctx context.Context, kind services.ErrorKind, message string, res *stepResult) {
	r := recover()
	if r == nil {
		return
	}
	err := panicError(r)
	s.logger.Error(ctx, "credential check panicked", zap.String("kind", string(kind)), zap.Error(err), zap.Stack("stack"))
	*res = fail(kind, message, err)
}

func panicError(r interface{}) error {
	if err, ok := r.(error); ok {
		return fmt.Errorf("recovered panic: %w", err)
	}
	return fmt.Errorf("recovered panic: %v", r)
}

// mintOpaque exchanges an authorized identity for a new opaque credential.
// The external cookie is left alone: the one mutation slot goes to the new
// opaque cookie.
func (s *Service) mintOpaque(ctx context.Context, identity string) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			err := panicError(r)
			s.logger.Error(ctx, "minting opaque credential panicked", zap.String("identity", identity), zap.Error(err), zap.Stack("stack"))
			res = Result{
				Verdict:  VerdictError,
				Source:   SourceExternal,
				Identity: identity,
				Err:      services.WrapError(services.KindInternal, "minting opaque credential", err),
			}
		}
	}()

	blob, err := s.codec.Encrypt(identity)
	if err != nil {
		s.logger.Error(ctx, "minting opaque credential failed", zap.String("identity", identity), zap.Error(err))
		return Result{
			Verdict:  VerdictError,
			Source:   SourceExternal,
			Identity: identity,
			Err:      services.WrapError(services.KindInternal, "minting opaque credential", err),
		}
	}

	s.logger.Info(ctx, "external token exchanged for opaque credential", zap.String("identity", identity))
	return Result{
		Verdict:  VerdictAuthorized,
		Source:   SourceExternal,
		Identity: identity,
		Mutation: &CookieMutation{Op: MutationSet, Name: s.cookies.Opaque, Value: blob},
	}
}

func (s *Service) deleteCookie(name string) *CookieMutation {
	return &CookieMutation{Op: MutationDelete, Name: name}
}

func (s *Service) record(ctx context.Context, res Result, elapsed time.Duration) {
	mutation := "none"
	if res.Mutation != nil {
		mutation = string(res.Mutation.Op)
	}

	fields := []observability.Field{
		zap.String("verdict", string(res.Verdict)),
		zap.String("source", string(res.Source)),
		zap.String("mutation", mutation),
	}
	if res.Identity != "" {
		fields = append(fields, zap.String("identity", res.Identity))
	}
	if res.Err != nil {
		fields = append(fields, zap.Error(res.Err))
	}
	s.logger.Info(ctx, "credential exchange evaluated", fields...)

	s.metrics.RecordEvaluation(ctx, observability.EvaluationLabels{
		Verdict:  string(res.Verdict),
		Source:   string(res.Source),
		Mutation: mutation,
	}, elapsed)
}
