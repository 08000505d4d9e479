package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/upb/cookie-auth-gateway/config"
	"github.com/upb/cookie-auth-gateway/googleid"
	"github.com/upb/cookie-auth-gateway/handlers"
	"github.com/upb/cookie-auth-gateway/internal/credential"
	"github.com/upb/cookie-auth-gateway/internal/observability"
	"github.com/upb/cookie-auth-gateway/internal/policy"
	"github.com/upb/cookie-auth-gateway/services/exchange"
)

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config  *config.Config
	Logger  *zap.Logger
	Metrics observability.Metrics

	// Credentials
	Codec     *credential.Codec
	AllowList *policy.AllowList

	// Google sign-in. GoogleVerifier is nil when no client ID is configured.
	GoogleVerifier *googleid.Verifier
	TokenVerifier  exchange.TokenVerifier

	// Exchange
	Exchange *exchange.Service

	shutdownMetrics func(context.Context) error
}

// NewDependencies creates and wires up all application dependencies.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	if err := deps.initCredentials(cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize credentials: %w", err)
	}

	deps.initAuth(ctx, cfg)
	if err := deps.initMetrics(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}

	deps.Exchange = exchange.NewService(
		exchange.Config{
			Cookies: exchange.CookieNames{
				Opaque:   cfg.Cookies.OpaqueName,
				External: cfg.Cookies.ExternalName,
			},
			VerifyTimeout: cfg.Google.VerifyTimeout,
		},
		deps.Codec,
		deps.TokenVerifier,
		deps.AllowList,
		observability.NewLogger(logger),
		deps.Metrics,
	)

	logger.Info("all dependencies initialized successfully",
		zap.Int("authorized_users", deps.AllowList.Len()),
		zap.String("opaque_cookie", cfg.Cookies.OpaqueName),
		zap.String("external_cookie", cfg.Cookies.ExternalName))
	return deps, nil
}

// initCredentials builds the codec and the allow list. Both are immutable
// for the life of the process.
func (d *Dependencies) initCredentials(cfg *config.Config) error {
	codec, err := credential.NewCodec(cfg.Credentials.PrivateKey)
	if err != nil {
		return err
	}
	d.Codec = codec

	d.AllowList = policy.NewAllowList(cfg.Credentials.AuthorizedUsers)
	if d.AllowList.Len() == 0 {
		d.Logger.Warn("allow list is empty, every identity will be denied")
	}
	return nil
}

func (d *Dependencies) initAuth(ctx context.Context, cfg *config.Config) {
	if cfg.Google.ClientID == "" {
		d.Logger.Warn("google client ID not configured, external tokens will be rejected")
		// Use reject-all verifier so only opaque credentials can pass
		d.TokenVerifier = &rejectAllVerifier{}
		return
	}

	d.GoogleVerifier = googleid.NewVerifier(googleid.Config{
		ClientID:             cfg.Google.ClientID,
		JWKSURL:              cfg.Google.JWKSURL,
		RequireVerifiedEmail: cfg.Google.RequireVerifiedEmail,
		CacheTTL:             cfg.Google.CacheTTL,
		HTTPTimeout:          cfg.Google.HTTPTimeout,
	})
	// Adapter converts googleid.ParsedClaims to exchange.VerifiedToken
	d.TokenVerifier = &googleTokenVerifierAdapter{
		verifier: d.GoogleVerifier,
		logger:   observability.NewLogger(d.Logger),
	}

	// Warm the key cache; failure is not fatal, the first request refetches
	if _, err := d.GoogleVerifier.FetchJWKS(ctx); err != nil {
		d.Logger.Warn("initial JWKS fetch failed", zap.String("url", cfg.Google.JWKSURL), zap.Error(err))
	}
	d.Logger.Info("google ID token verifier initialized")
}

// initMetrics installs the OTLP meter provider when an endpoint is
// configured. Instrument creation failures only disable metrics.
func (d *Dependencies) initMetrics(ctx context.Context, cfg *config.Config) error {
	provider, shutdown, err := observability.NewMeterProvider(ctx, observability.TelemetryConfig{
		OTLPEndpoint: cfg.Observability.OTLPEndpoint,
		Insecure:     cfg.Observability.OTLPInsecure,
		ServiceName:  cfg.Observability.ServiceName,
		Environment:  cfg.Environment,
		Interval:     cfg.Observability.MetricInterval,
	})
	if err != nil {
		return err
	}
	d.shutdownMetrics = shutdown

	metrics, err := observability.NewExchangeMetricsWithProvider(provider)
	if err != nil {
		d.Logger.Warn("metrics disabled", zap.Error(err))
		d.Metrics = observability.NopMetrics{}
		return nil
	}
	d.Metrics = metrics

	if cfg.Observability.OTLPEndpoint != "" {
		d.Logger.Info("exporting metrics over OTLP",
			zap.String("endpoint", cfg.Observability.OTLPEndpoint),
			zap.Duration("interval", cfg.Observability.MetricInterval))
	}
	return nil
}

// ReadinessChecks returns the checks served on /readyz.
func (d *Dependencies) ReadinessChecks() []handlers.ReadinessCheck {
	checks := []handlers.ReadinessCheck{
		{
			Name: "allow_list",
			Check: func(context.Context) error {
				if d.AllowList.Len() == 0 {
					return errors.New("no authorized users configured")
				}
				return nil
			},
		},
	}

	if d.GoogleVerifier != nil {
		checks = append(checks, handlers.ReadinessCheck{
			Name: "google_jwks",
			Check: func(ctx context.Context) error {
				_, err := d.GoogleVerifier.FetchJWKS(ctx)
				return err
			},
			Details: d.GoogleVerifier.CacheStats,
		})
	}
	return checks
}

// googleTokenVerifierAdapter adapts googleid.Verifier to exchange.TokenVerifier
type googleTokenVerifierAdapter struct {
	verifier *googleid.Verifier
	logger   observability.Logger
}

func (a *googleTokenVerifierAdapter) VerifyToken(ctx context.Context, token string) (*exchange.VerifiedToken, error) {
	parsed, err := a.verifier.VerifyToken(ctx, token)
	if err != nil {
		// Unverified claims help explain rejections; never trust them
		if unverified, perr := googleid.ExtractClaims(token); perr == nil {
			a.logger.Debug(ctx, "rejected token claims",
				zap.String("email", unverified.Email),
				zap.String("issuer", unverified.Issuer),
				zap.Time("expires_at", unverified.ExpiresAt))
		}
		return nil, err
	}
	return &exchange.VerifiedToken{
		Identity:  parsed.Email,
		ExpiresAt: parsed.ExpiresAt,
	}, nil
}

// rejectAllVerifier rejects all tokens (used when Google sign-in is not configured)
type rejectAllVerifier struct{}

func (*rejectAllVerifier) VerifyToken(context.Context, string) (*exchange.VerifiedToken, error) {
	return nil, fmt.Errorf("google sign-in not configured")
}

// Close gracefully shuts down all dependencies
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var err error
	if d.shutdownMetrics != nil {
		if err = d.shutdownMetrics(ctx); err != nil {
			d.Logger.Error("failed to flush metrics", zap.Error(err))
		}
	}

	// Sync logger
	_ = d.Logger.Sync()

	return err
}
